package usecases_port

import (
	"context"
	"property-catalog/internal/core/domain"
)

type AdminListingsUseCase interface {
	List(ctx context.Context, query domain.ListingQuery) (*domain.ListingPage, error)
	Get(ctx context.Context, id domain.ListingID) (*domain.Listing, error)
	Create(ctx context.Context, draft domain.ListingDraft) (*domain.MutationResult, error)
	Update(ctx context.Context, id domain.ListingID, draft domain.ListingDraft) (*domain.MutationResult, error)
	RequestDelete(ctx context.Context, id domain.ListingID) (*domain.DeleteConfirmation, error)
	ConfirmDelete(ctx context.Context, token string) (*domain.MutationResult, error)
	CancelDelete(token string) bool
}

type AdminCatalogUseCase interface {
	For(category domain.Category) (AdminListingsUseCase, error)
}
