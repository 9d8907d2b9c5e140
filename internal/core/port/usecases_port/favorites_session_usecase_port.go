package usecases_port

import (
	"context"
	"property-catalog/internal/core/domain"
)

// FavoritesSession is the favorites state of one device.
type FavoritesSession interface {
	Load(ctx context.Context, userToken string) []domain.FavoriteEntry
	Toggle(ctx context.Context, listing domain.Listing, userToken string) (domain.ToggleResult, error)
	Remove(ctx context.Context, id domain.ListingID, userToken string) (domain.ToggleResult, error)
	Clear(ctx context.Context) error
	Favorites() []domain.FavoriteEntry
	IsFavorite(id domain.ListingID) bool
	Count() int
}

type FavoritesSessionsUseCase interface {
	Open(ctx context.Context, deviceID, userToken string) (FavoritesSession, error)
}
