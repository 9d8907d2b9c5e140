package usecase

import (
	"context"
	"errors"
	"fmt"

	"property-catalog/internal/contextkeys"
	"property-catalog/internal/core/domain"
	"property-catalog/internal/core/port"
)

// SnapshotRefresher is the part of FavoritesSessions the change handler needs.
type SnapshotRefresher interface {
	RefreshSnapshots(ctx context.Context, listing domain.Listing) int
}

// ListingChangesUseCase keeps favorite snapshots current after an admin
// update. Created listings cannot be favorites yet, and deleted ones keep
// their last snapshot so the entry stays viewable.
type ListingChangesUseCase struct {
	catalog  port.CatalogPort
	sessions SnapshotRefresher
}

func NewListingChangesUseCase(catalog port.CatalogPort, sessions SnapshotRefresher) *ListingChangesUseCase {
	return &ListingChangesUseCase{catalog: catalog, sessions: sessions}
}

func (uc *ListingChangesUseCase) HandleListingChanged(ctx context.Context, event domain.ListingChangedEvent) error {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"use_case":   "ListingChanges",
		"event_type": event.Type,
		"category":   event.Category,
		"listing_id": event.ListingID,
	})

	if event.Type != domain.ListingUpdated {
		logger.Debug("Event does not affect favorite snapshots", nil)
		return nil
	}
	if event.ListingID == "" {
		return domain.ErrInvalidListingID
	}

	listing, err := uc.catalog.FetchListing(ctx, event.Category, event.ListingID)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Info("Updated listing is gone, keeping cached snapshots", nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to fetch updated listing %s: %w", event.ListingID, err)
	}

	refreshed := uc.sessions.RefreshSnapshots(ctx, *listing)
	logger.Info("Favorite snapshots refreshed", port.Fields{"sessions": refreshed})
	return nil
}
