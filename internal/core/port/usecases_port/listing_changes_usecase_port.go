package usecases_port

import (
	"context"
	"property-catalog/internal/core/domain"
)

// ListingChangesUseCase reacts to catalog change events published by any
// instance of the service.
type ListingChangesUseCase interface {
	HandleListingChanged(ctx context.Context, event domain.ListingChangedEvent) error
}
