package usecases_port

import (
	"context"
	"property-catalog/internal/core/domain"
)

type BrowseListingsUseCase interface {
	Execute(ctx context.Context, category domain.Category, query domain.ListingQuery, criteria domain.FilterCriteria) (*domain.ListingPage, error)
}
