package usecase

import (
	"context"
	"fmt"

	"property-catalog/internal/contextkeys"
	"property-catalog/internal/core/domain"
	"property-catalog/internal/core/port"
)

// BrowseListingsUseCase reads one category page from the remote catalog and
// runs the filter/sort engine over it.
type BrowseListingsUseCase struct {
	catalog port.CatalogPort
}

func NewBrowseListingsUseCase(catalog port.CatalogPort) *BrowseListingsUseCase {
	return &BrowseListingsUseCase{catalog: catalog}
}

func (uc *BrowseListingsUseCase) Execute(ctx context.Context, category domain.Category, query domain.ListingQuery, criteria domain.FilterCriteria) (*domain.ListingPage, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	ucLogger := logger.WithFields(port.Fields{
		"use_case": "BrowseListings",
		"category": category,
		"limit":    query.Limit,
		"offset":   query.Offset,
	})

	ucLogger.Debug("Use case started", nil)

	page, err := uc.catalog.FetchListings(ctx, category, query)
	if err != nil {
		ucLogger.Error("Catalog read failed", err, nil)
		return nil, fmt.Errorf("failed to fetch %s listings: %w", category, err)
	}

	filtered := ApplyFilters(page.Listings, criteria)

	ucLogger.Info("Use case finished successfully", port.Fields{
		"fetched":  len(page.Listings),
		"filtered": len(filtered),
		"total":    page.Pagination.Total,
	})
	return &domain.ListingPage{Listings: filtered, Pagination: page.Pagination}, nil
}
