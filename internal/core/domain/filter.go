package domain

import (
	"fmt"
	"strings"
)

// SortField names a listing attribute the catalog can be ordered by.
type SortField string

const (
	SortNone        SortField = ""
	SortPrice       SortField = "price"
	SortBedrooms    SortField = "bedrooms"
	SortBathrooms   SortField = "bathrooms"
	SortArea        SortField = "area"
	SortRating      SortField = "rating"
	SortReviewCount SortField = "review_count"
	SortCreatedAt   SortField = "created_at"
	SortTitle       SortField = "title"
)

var sortFields = []SortField{SortPrice, SortBedrooms, SortBathrooms, SortArea, SortRating, SortReviewCount, SortCreatedAt, SortTitle}

func ParseSortField(s string) (SortField, error) {
	f := SortField(strings.ToLower(strings.TrimSpace(s)))
	if f == SortNone {
		return SortNone, nil
	}
	for _, known := range sortFields {
		if f == known {
			return f, nil
		}
	}
	return SortNone, fmt.Errorf("%w: %q", ErrInvalidSortField, s)
}

type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// ParseSortDirection accepts asc/desc in any case; anything else is ascending.
func ParseSortDirection(s string) SortDirection {
	if strings.EqualFold(strings.TrimSpace(s), string(SortDesc)) {
		return SortDesc
	}
	return SortAsc
}

// PriceRange is a named price bucket from the listing filters.
type PriceRange string

const (
	PriceAny      PriceRange = ""
	PriceUnder20k PriceRange = "under-20k"
	Price20kTo40k PriceRange = "20k-40k"
	PriceAbove40k PriceRange = "above-40k"
)

type priceBucket struct {
	min, max       float64
	hasMin, hasMax bool
	minOpen        bool
	maxOpen        bool
}

// Buckets: "under X" excludes X, "X to Y" includes both ends, "above Y" excludes Y.
var priceBuckets = map[PriceRange]priceBucket{
	PriceUnder20k: {max: 20000, hasMax: true, maxOpen: true},
	Price20kTo40k: {min: 20000, max: 40000, hasMin: true, hasMax: true},
	PriceAbove40k: {min: 40000, hasMin: true, minOpen: true},
}

func ParsePriceRange(s string) (PriceRange, error) {
	r := PriceRange(strings.ToLower(strings.TrimSpace(s)))
	if r == PriceAny {
		return PriceAny, nil
	}
	if _, ok := priceBuckets[r]; !ok {
		return PriceAny, fmt.Errorf("%w: %q", ErrInvalidPriceRange, s)
	}
	return r, nil
}

// Contains reports whether price falls into the bucket. PriceAny contains everything.
func (r PriceRange) Contains(price float64) bool {
	b, ok := priceBuckets[r]
	if !ok {
		return true
	}
	if b.hasMin {
		if (b.minOpen && price <= b.min) || (!b.minOpen && price < b.min) {
			return false
		}
	}
	if b.hasMax {
		if (b.maxOpen && price >= b.max) || (!b.maxOpen && price > b.max) {
			return false
		}
	}
	return true
}

// FilterCriteria is the transient, UI-session scoped filter state.
// Zero values mean "no constraint".
type FilterCriteria struct {
	SearchText    string
	MinBedrooms   int
	PriceRange    PriceRange
	MinPrice      *float64
	MaxPrice      *float64
	PropertyType  string
	Status        string
	SortField     SortField
	SortDirection SortDirection
}

// IsZero reports whether the criteria constrain nothing and sort nothing.
func (c FilterCriteria) IsZero() bool {
	return strings.TrimSpace(c.SearchText) == "" &&
		c.MinBedrooms <= 0 &&
		c.PriceRange == PriceAny &&
		c.MinPrice == nil && c.MaxPrice == nil &&
		strings.TrimSpace(c.PropertyType) == "" &&
		strings.TrimSpace(c.Status) == "" &&
		c.SortField == SortNone
}
