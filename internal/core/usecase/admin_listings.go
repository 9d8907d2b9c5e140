package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"property-catalog/internal/contextkeys"
	"property-catalog/internal/core/domain"
	"property-catalog/internal/core/port"
	"property-catalog/internal/core/port/usecases_port"

	"github.com/google/uuid"
)

const defaultDeleteConfirmTTL = 5 * time.Minute

// AdminListingsUseCase is the CRUD controller of one listing category.
// Writes are validated before dispatch and followed by a full refetch; the
// local view is never patched optimistically.
type AdminListingsUseCase struct {
	category  domain.Category
	catalog   port.CatalogPort
	validator port.DraftValidatorPort
	events    port.CatalogEventsPort
	now       func() time.Time
	ttl       time.Duration

	mu        sync.Mutex
	lastQuery domain.ListingQuery
	pending   map[string]pendingDelete
}

type pendingDelete struct {
	id        domain.ListingID
	title     string
	expiresAt time.Time
}

// NewAdminListingsUseCase builds the controller. events may be nil.
func NewAdminListingsUseCase(category domain.Category, catalog port.CatalogPort, validator port.DraftValidatorPort, events port.CatalogEventsPort) *AdminListingsUseCase {
	return &AdminListingsUseCase{
		category:  category,
		catalog:   catalog,
		validator: validator,
		events:    events,
		now:       time.Now,
		ttl:       defaultDeleteConfirmTTL,
		lastQuery: domain.ListingQuery{
			SortField:     domain.SortCreatedAt,
			SortDirection: domain.SortDesc,
			Limit:         10,
		},
		pending: make(map[string]pendingDelete),
	}
}

func (uc *AdminListingsUseCase) Category() domain.Category { return uc.category }

func (uc *AdminListingsUseCase) logger(ctx context.Context, method string) port.LoggerPort {
	return contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"use_case": "AdminListings",
		"category": uc.category,
		"method":   method,
	})
}

// List fetches a page and remembers the query for the refetch after writes.
func (uc *AdminListingsUseCase) List(ctx context.Context, query domain.ListingQuery) (*domain.ListingPage, error) {
	uc.mu.Lock()
	uc.lastQuery = query
	uc.mu.Unlock()

	page, err := uc.catalog.FetchListings(ctx, uc.category, query)
	if err != nil {
		uc.logger(ctx, "List").Error("Failed to fetch listings", err, nil)
		return nil, err
	}
	return page, nil
}

func (uc *AdminListingsUseCase) Get(ctx context.Context, id domain.ListingID) (*domain.Listing, error) {
	listing, err := uc.catalog.FetchListing(ctx, uc.category, id)
	if err != nil {
		uc.logger(ctx, "Get").Error("Failed to fetch listing details", err, port.Fields{"listing_id": id})
		return nil, err
	}
	return listing, nil
}

func (uc *AdminListingsUseCase) Create(ctx context.Context, draft domain.ListingDraft) (*domain.MutationResult, error) {
	logger := uc.logger(ctx, "Create")
	draft = withDraftDefaults(draft)
	if err := uc.validator.ValidateDraft(draft); err != nil {
		logger.Info("Draft rejected by validation", port.Fields{"error": err.Error()})
		return nil, err
	}

	created, err := uc.catalog.CreateListing(ctx, uc.category, draft)
	if err != nil {
		logger.Error("Backend rejected create", err, nil)
		return nil, err
	}

	logger.Info("Listing created", port.Fields{"listing_id": created.ID})
	uc.publish(ctx, domain.ListingCreated, created.ID)
	return &domain.MutationResult{Listing: created, Page: uc.refresh(ctx)}, nil
}

func (uc *AdminListingsUseCase) Update(ctx context.Context, id domain.ListingID, draft domain.ListingDraft) (*domain.MutationResult, error) {
	logger := uc.logger(ctx, "Update").WithFields(port.Fields{"listing_id": id})
	draft = withDraftDefaults(draft)
	if err := uc.validator.ValidateDraft(draft); err != nil {
		logger.Info("Draft rejected by validation", port.Fields{"error": err.Error()})
		return nil, err
	}

	updated, err := uc.catalog.UpdateListing(ctx, uc.category, id, draft)
	if err != nil {
		logger.Error("Backend rejected update", err, nil)
		return nil, err
	}

	logger.Info("Listing updated", nil)
	uc.publish(ctx, domain.ListingUpdated, id)
	return &domain.MutationResult{Listing: updated, Page: uc.refresh(ctx)}, nil
}

// RequestDelete is the first phase of a delete: it resolves the listing and
// hands out a confirmation token. Nothing is deleted yet.
func (uc *AdminListingsUseCase) RequestDelete(ctx context.Context, id domain.ListingID) (*domain.DeleteConfirmation, error) {
	listing, err := uc.catalog.FetchListing(ctx, uc.category, id)
	if err != nil {
		uc.logger(ctx, "RequestDelete").Error("Failed to resolve listing for delete", err, port.Fields{"listing_id": id})
		return nil, err
	}

	now := uc.now()
	token := uuid.New().String()
	expiresAt := now.Add(uc.ttl)

	uc.mu.Lock()
	uc.purgeExpiredLocked(now)
	uc.pending[token] = pendingDelete{id: listing.ID, title: listing.Title, expiresAt: expiresAt}
	uc.mu.Unlock()

	return &domain.DeleteConfirmation{
		Token:     token,
		ListingID: listing.ID,
		Title:     listing.Title,
		ExpiresAt: expiresAt,
	}, nil
}

// ConfirmDelete issues the destructive call for a previously requested delete.
// The token is consumed even when the backend call fails; the caller requests
// again to retry.
func (uc *AdminListingsUseCase) ConfirmDelete(ctx context.Context, token string) (*domain.MutationResult, error) {
	logger := uc.logger(ctx, "ConfirmDelete")

	uc.mu.Lock()
	uc.purgeExpiredLocked(uc.now())
	req, ok := uc.pending[token]
	delete(uc.pending, token)
	uc.mu.Unlock()

	if !ok {
		return nil, domain.ErrDeleteNotRequested
	}

	if err := uc.catalog.DeleteListing(ctx, uc.category, req.id); err != nil {
		logger.Error("Backend rejected delete", err, port.Fields{"listing_id": req.id})
		return nil, err
	}

	logger.Info("Listing deleted", port.Fields{"listing_id": req.id})
	uc.publish(ctx, domain.ListingDeleted, req.id)
	return &domain.MutationResult{Page: uc.refresh(ctx)}, nil
}

// CancelDelete drops a pending delete. It reports whether the token was known.
func (uc *AdminListingsUseCase) CancelDelete(token string) bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	_, ok := uc.pending[token]
	delete(uc.pending, token)
	return ok
}

func (uc *AdminListingsUseCase) purgeExpiredLocked(now time.Time) {
	for token, req := range uc.pending {
		if !now.Before(req.expiresAt) {
			delete(uc.pending, token)
		}
	}
}

func (uc *AdminListingsUseCase) refresh(ctx context.Context) *domain.ListingPage {
	uc.mu.Lock()
	query := uc.lastQuery
	uc.mu.Unlock()

	page, err := uc.catalog.FetchListings(ctx, uc.category, query)
	if err != nil {
		uc.logger(ctx, "refresh").Warn("Refetch after write failed", port.Fields{"error": err.Error()})
		return nil
	}
	return page
}

func (uc *AdminListingsUseCase) publish(ctx context.Context, changeType domain.ListingChangeType, id domain.ListingID) {
	if uc.events == nil {
		return
	}
	event := domain.ListingChangedEvent{
		Type:       changeType,
		Category:   uc.category,
		ListingID:  id,
		OccurredAt: uc.now().UTC(),
	}
	if err := uc.events.PublishListingChanged(ctx, event); err != nil {
		uc.logger(ctx, "publish").Warn("Failed to publish listing change", port.Fields{
			"error": err.Error(),
			"event": string(changeType),
		})
	}
}

func withDraftDefaults(draft domain.ListingDraft) domain.ListingDraft {
	if draft.Status == "" {
		draft.Status = domain.StatusActive
	}
	draft.Amenities = domain.UniqueStrings(draft.Amenities)
	return draft
}

// AdminCatalog groups one controller per category.
type AdminCatalog struct {
	controllers map[domain.Category]*AdminListingsUseCase
}

func NewAdminCatalog(catalog port.CatalogPort, validator port.DraftValidatorPort, events port.CatalogEventsPort) *AdminCatalog {
	controllers := make(map[domain.Category]*AdminListingsUseCase)
	for _, c := range domain.Categories() {
		controllers[c] = NewAdminListingsUseCase(c, catalog, validator, events)
	}
	return &AdminCatalog{controllers: controllers}
}

func (a *AdminCatalog) For(category domain.Category) (usecases_port.AdminListingsUseCase, error) {
	uc, ok := a.controllers[category]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidCategory, category)
	}
	return uc, nil
}
