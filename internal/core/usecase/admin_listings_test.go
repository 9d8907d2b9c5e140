package usecase

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"property-catalog/internal/core/domain"
)

type requiredTitleValidator struct{}

func (requiredTitleValidator) ValidateDraft(d domain.ListingDraft) error {
	if d.Title == "" {
		return &domain.ValidationError{Fields: map[string]string{"title": "is required"}}
	}
	return nil
}

type recordingEvents struct {
	events []domain.ListingChangedEvent
	err    error
}

func (r *recordingEvents) PublishListingChanged(ctx context.Context, e domain.ListingChangedEvent) error {
	r.events = append(r.events, e)
	return r.err
}

// adminBackend is a tiny in-memory catalog for one category.
type adminBackend struct {
	nextID   int
	listings []domain.Listing
	queries  []domain.ListingQuery
}

func (b *adminBackend) catalog() *fakeCatalog {
	return &fakeCatalog{
		fetchListings: func(_ domain.Category, q domain.ListingQuery) (*domain.ListingPage, error) {
			b.queries = append(b.queries, q)
			out := append([]domain.Listing(nil), b.listings...)
			return &domain.ListingPage{Listings: out, Pagination: domain.Pagination{Total: len(out), Limit: q.Limit}}, nil
		},
		fetchListing: func(_ domain.Category, id domain.ListingID) (*domain.Listing, error) {
			for _, l := range b.listings {
				if l.ID == id {
					l := l
					return &l, nil
				}
			}
			return nil, domain.ErrNotFound
		},
		createListing: func(c domain.Category, d domain.ListingDraft) (*domain.Listing, error) {
			b.nextID++
			l := domain.Listing{ID: domain.ListingID(strconv.Itoa(b.nextID)), Title: d.Title, Status: d.Status, Category: c}
			b.listings = append(b.listings, l)
			return &l, nil
		},
		updateListing: func(c domain.Category, id domain.ListingID, d domain.ListingDraft) (*domain.Listing, error) {
			for i := range b.listings {
				if b.listings[i].ID == id {
					b.listings[i].Title = d.Title
					l := b.listings[i]
					return &l, nil
				}
			}
			return nil, domain.ErrNotFound
		},
		deleteListing: func(_ domain.Category, id domain.ListingID) error {
			for i := range b.listings {
				if b.listings[i].ID == id {
					b.listings = append(b.listings[:i], b.listings[i+1:]...)
					return nil
				}
			}
			return domain.ErrNotFound
		},
	}
}

func TestAdminListings_CreateValidatesBeforeDispatch(t *testing.T) {
	backend := &adminBackend{}
	catalog := backend.catalog()
	uc := NewAdminListingsUseCase(domain.CategoryBuy, catalog, requiredTitleValidator{}, nil)

	_, err := uc.Create(context.Background(), domain.ListingDraft{Price: 100})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Fields["title"] == "" {
		t.Fatalf("expected a title validation error, got %v", err)
	}
	if catalog.count("CreateListing") != 0 {
		t.Fatal("invalid draft must not reach the backend")
	}
}

func TestAdminListings_CreateRefetchesWithLastQuery(t *testing.T) {
	backend := &adminBackend{}
	events := &recordingEvents{}
	uc := NewAdminListingsUseCase(domain.CategoryRent, backend.catalog(), requiredTitleValidator{}, events)
	ctx := context.Background()

	query := domain.ListingQuery{Search: "villa", Limit: 25}
	if _, err := uc.List(ctx, query); err != nil {
		t.Fatal(err)
	}

	res, err := uc.Create(ctx, domain.ListingDraft{Title: "Garden Villa"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Listing == nil || res.Listing.Status != domain.StatusActive {
		t.Fatalf("created listing must default to Active, got %+v", res.Listing)
	}
	if res.Page == nil || len(res.Page.Listings) != 1 {
		t.Fatalf("refetched page must contain the new listing, got %+v", res.Page)
	}
	last := backend.queries[len(backend.queries)-1]
	if last.Search != "villa" || last.Limit != 25 {
		t.Fatalf("refetch must reuse the last query, got %+v", last)
	}
	if len(events.events) != 1 || events.events[0].Type != domain.ListingCreated || events.events[0].Category != domain.CategoryRent {
		t.Fatalf("unexpected events %+v", events.events)
	}
}

func TestAdminListings_UpdateFailureSurfaces(t *testing.T) {
	backend := &adminBackend{}
	catalog := backend.catalog()
	catalog.updateListing = func(domain.Category, domain.ListingID, domain.ListingDraft) (*domain.Listing, error) {
		return nil, &domain.CatalogError{Kind: domain.FailureBackend, Message: "Database error"}
	}
	events := &recordingEvents{}
	uc := NewAdminListingsUseCase(domain.CategoryBuy, catalog, requiredTitleValidator{}, events)

	_, err := uc.Update(context.Background(), "1", domain.ListingDraft{Title: "x"})
	if !domain.IsKind(err, domain.FailureBackend) {
		t.Fatalf("expected backend failure, got %v", err)
	}
	if catalog.count("FetchListings") != 0 || len(events.events) != 0 {
		t.Fatal("failed mutation must neither refetch nor publish")
	}
}

func TestAdminListings_PublishFailureDoesNotBlock(t *testing.T) {
	backend := &adminBackend{}
	events := &recordingEvents{err: errors.New("broker down")}
	uc := NewAdminListingsUseCase(domain.CategorySell, backend.catalog(), requiredTitleValidator{}, events)

	if _, err := uc.Create(context.Background(), domain.ListingDraft{Title: "Plot"}); err != nil {
		t.Fatalf("publish failure must not fail the mutation: %v", err)
	}
}

func TestAdminListings_TwoPhaseDelete(t *testing.T) {
	backend := &adminBackend{listings: []domain.Listing{{ID: "1", Title: "Hill House"}, {ID: "2", Title: "Loft"}}}
	catalog := backend.catalog()
	events := &recordingEvents{}
	uc := NewAdminListingsUseCase(domain.CategoryBuy, catalog, requiredTitleValidator{}, events)
	ctx := context.Background()

	conf, err := uc.RequestDelete(ctx, "1")
	if err != nil {
		t.Fatal(err)
	}
	if conf.Title != "Hill House" || conf.Token == "" {
		t.Fatalf("unexpected confirmation %+v", conf)
	}
	if catalog.count("DeleteListing") != 0 {
		t.Fatal("requesting a delete must not delete")
	}

	res, err := uc.ConfirmDelete(ctx, conf.Token)
	if err != nil {
		t.Fatal(err)
	}
	if res.Page == nil || len(res.Page.Listings) != 1 || res.Page.Listings[0].ID != "2" {
		t.Fatalf("refetched page must not contain the deleted listing, got %+v", res.Page)
	}
	if len(events.events) != 1 || events.events[0].Type != domain.ListingDeleted || events.events[0].ListingID != "1" {
		t.Fatalf("unexpected events %+v", events.events)
	}

	if _, err := uc.ConfirmDelete(ctx, conf.Token); !errors.Is(err, domain.ErrDeleteNotRequested) {
		t.Fatalf("a token is single use, got %v", err)
	}
}

func TestAdminListings_DeleteCancelAndExpiry(t *testing.T) {
	backend := &adminBackend{listings: []domain.Listing{{ID: "1", Title: "Hill House"}}}
	catalog := backend.catalog()
	uc := NewAdminListingsUseCase(domain.CategoryBuy, catalog, requiredTitleValidator{}, nil)
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	uc.now = func() time.Time { return now }
	ctx := context.Background()

	conf, err := uc.RequestDelete(ctx, "1")
	if err != nil {
		t.Fatal(err)
	}
	if !uc.CancelDelete(conf.Token) {
		t.Fatal("pending token must be cancellable")
	}
	if uc.CancelDelete(conf.Token) {
		t.Fatal("token must be gone after cancel")
	}

	conf, _ = uc.RequestDelete(ctx, "1")
	now = now.Add(defaultDeleteConfirmTTL)
	if _, err := uc.ConfirmDelete(ctx, conf.Token); !errors.Is(err, domain.ErrDeleteNotRequested) {
		t.Fatalf("expired token must be rejected, got %v", err)
	}
	if catalog.count("DeleteListing") != 0 {
		t.Fatal("nothing may be deleted without a valid confirmation")
	}
}

func TestAdminListings_RequestDeleteUnknownListing(t *testing.T) {
	uc := NewAdminListingsUseCase(domain.CategoryBuy, (&adminBackend{}).catalog(), requiredTitleValidator{}, nil)
	if _, err := uc.RequestDelete(context.Background(), "404"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAdminCatalog_For(t *testing.T) {
	admin := NewAdminCatalog(&fakeCatalog{}, requiredTitleValidator{}, nil)
	for _, c := range domain.Categories() {
		if _, err := admin.For(c); err != nil {
			t.Errorf("category %s: %v", c, err)
		}
	}
	if _, err := admin.For("lease"); !errors.Is(err, domain.ErrInvalidCategory) {
		t.Fatalf("expected invalid category, got %v", err)
	}
}
