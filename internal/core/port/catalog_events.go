package port

import (
	"context"
	"property-catalog/internal/core/domain"
)

// CatalogEventsPort announces successful admin mutations to other consumers.
type CatalogEventsPort interface {
	PublishListingChanged(ctx context.Context, event domain.ListingChangedEvent) error
}
