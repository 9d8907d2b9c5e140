package port

import (
	"context"
	"property-catalog/internal/core/domain"
)

// CatalogPort is the contract of the client talking to the remote PHP catalog.
// Every method returns *domain.CatalogError on failure and never retries.
type CatalogPort interface {
	FetchListings(ctx context.Context, category domain.Category, query domain.ListingQuery) (*domain.ListingPage, error)
	FetchListing(ctx context.Context, category domain.Category, id domain.ListingID) (*domain.Listing, error)
	// FetchListingsByIDs enriches favorite ids with full listing data. Ids
	// unknown to the backend are simply absent from the result.
	FetchListingsByIDs(ctx context.Context, ids []domain.ListingID) ([]domain.Listing, error)

	FetchFavorites(ctx context.Context, userToken string) ([]domain.ListingID, error)
	ToggleFavorite(ctx context.Context, id domain.ListingID, userToken string) (domain.FavoriteAction, error)

	CreateListing(ctx context.Context, category domain.Category, draft domain.ListingDraft) (*domain.Listing, error)
	UpdateListing(ctx context.Context, category domain.Category, id domain.ListingID, draft domain.ListingDraft) (*domain.Listing, error)
	DeleteListing(ctx context.Context, category domain.Category, id domain.ListingID) error
}
