package port

import (
	"context"
	"property-catalog/internal/core/domain"
)

// FavoritesStorePort is one durable favorites slot (one device, one namespace).
type FavoritesStorePort interface {
	// Load never fails: a missing or corrupt slot reads as empty.
	Load(ctx context.Context) []domain.FavoriteEntry
	// Save fully replaces the slot content.
	Save(ctx context.Context, entries []domain.FavoriteEntry) error
}

// FavoritesSlotProvider opens the favorites slot of a device.
type FavoritesSlotProvider interface {
	Slot(deviceID string) (FavoritesStorePort, error)
}
