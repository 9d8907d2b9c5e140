package usecase

import (
	"cmp"
	"slices"
	"strings"

	"property-catalog/internal/core/domain"

	"golang.org/x/text/cases"
)

// ApplyFilters derives the view list from an in-memory catalog snapshot.
// Every present constraint must hold (AND); absent ones are ignored. The
// result is a new slice: the input is never reordered or modified. Sorting is
// stable, so listings with equal keys keep their relative order.
func ApplyFilters(listings []domain.Listing, criteria domain.FilterCriteria) []domain.Listing {
	// cases.Caser is stateful, one per call.
	folder := cases.Fold()
	search := folder.String(strings.TrimSpace(criteria.SearchText))
	propertyType := strings.TrimSpace(criteria.PropertyType)
	status := strings.TrimSpace(criteria.Status)

	out := make([]domain.Listing, 0, len(listings))
	for _, l := range listings {
		if search != "" && !matchesSearch(folder, l, search) {
			continue
		}
		if criteria.MinBedrooms > 0 && l.Bedrooms < criteria.MinBedrooms {
			continue
		}
		if !criteria.PriceRange.Contains(l.Price) {
			continue
		}
		if criteria.MinPrice != nil && l.Price < *criteria.MinPrice {
			continue
		}
		if criteria.MaxPrice != nil && l.Price > *criteria.MaxPrice {
			continue
		}
		if propertyType != "" && !strings.EqualFold(l.PropertyType, propertyType) {
			continue
		}
		if status != "" && !strings.EqualFold(string(l.Status), status) {
			continue
		}
		out = append(out, l)
	}

	if criteria.SortField != domain.SortNone {
		desc := criteria.SortDirection == domain.SortDesc
		slices.SortStableFunc(out, func(a, b domain.Listing) int {
			c := compareListings(folder, a, b, criteria.SortField)
			if desc {
				return -c
			}
			return c
		})
	}
	return out
}

func matchesSearch(folder cases.Caser, l domain.Listing, search string) bool {
	return strings.Contains(folder.String(l.Title), search) ||
		strings.Contains(folder.String(l.Location), search) ||
		strings.Contains(folder.String(l.PropertyType), search)
}

func compareListings(folder cases.Caser, a, b domain.Listing, field domain.SortField) int {
	switch field {
	case domain.SortPrice:
		return cmp.Compare(a.Price, b.Price)
	case domain.SortBedrooms:
		return cmp.Compare(a.Bedrooms, b.Bedrooms)
	case domain.SortBathrooms:
		return cmp.Compare(a.Bathrooms, b.Bathrooms)
	case domain.SortArea:
		return cmp.Compare(a.Area, b.Area)
	case domain.SortRating:
		return cmp.Compare(a.Rating, b.Rating)
	case domain.SortReviewCount:
		return cmp.Compare(a.ReviewCount, b.ReviewCount)
	case domain.SortCreatedAt:
		return a.CreatedAt.Compare(b.CreatedAt)
	case domain.SortTitle:
		return strings.Compare(folder.String(a.Title), folder.String(b.Title))
	default:
		return 0
	}
}
