package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ListingID is the canonical listing identifier. The backend sends ids both as
// JSON numbers and as strings; everything is normalized to the decimal string
// form at the ingestion boundary so set membership never compares 5 with "5".
type ListingID string

// NormalizeListingID trims the raw value and collapses numeric forms
// ("5", "05", "5.0") to their integer representation.
func NormalizeListingID(raw string) (ListingID, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrInvalidListingID
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ListingID(strconv.FormatInt(n, 10)), nil
	}
	if u, err := strconv.ParseUint(s, 10, 64); err == nil {
		return ListingID(strconv.FormatUint(u, 10)), nil
	}
	// float64(math.MaxInt64) rounds up to 2^63, hence the strict upper bound.
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) && f >= math.MinInt64 && f < -math.MinInt64 {
		return ListingID(strconv.FormatInt(int64(f), 10)), nil
	}
	return ListingID(s), nil
}

// MustListingID is NormalizeListingID for values known to be valid (tests, constants).
func MustListingID(raw string) ListingID {
	id, err := NormalizeListingID(raw)
	if err != nil {
		panic(err)
	}
	return id
}

func (id ListingID) String() string { return string(id) }

// UnmarshalJSON accepts both numbers and strings. Blank and null read as
// the empty id, which callers treat as absent.
func (id *ListingID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	var raw string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("listing id: %w", err)
		}
	} else {
		var num json.Number
		if err := json.Unmarshal(data, &num); err != nil {
			return fmt.Errorf("listing id: %w", err)
		}
		raw = num.String()
	}
	if strings.TrimSpace(raw) == "" {
		*id = ""
		return nil
	}
	normalized, err := NormalizeListingID(raw)
	if err != nil {
		return err
	}
	*id = normalized
	return nil
}

// Category is the deal type a listing is published under.
type Category string

const (
	CategoryBuy  Category = "buy"
	CategoryRent Category = "rent"
	CategorySell Category = "sell"
)

var categories = []Category{CategoryBuy, CategoryRent, CategorySell}

// Categories lists all known categories in display order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range categories {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
}

// DisplayName returns "Buy", "Rent", "Sell".
func (c Category) DisplayName() string {
	return cases.Title(language.English).String(string(c))
}

// ListingStatus is the lifecycle state of a listing.
type ListingStatus string

const (
	StatusActive   ListingStatus = "Active"
	StatusPending  ListingStatus = "Pending"
	StatusSold     ListingStatus = "Sold"
	StatusInactive ListingStatus = "Inactive"
)

var statuses = []ListingStatus{StatusActive, StatusPending, StatusSold, StatusInactive}

// ParseListingStatus matches case-insensitively and returns the canonical spelling.
func ParseListingStatus(s string) (ListingStatus, bool) {
	for _, st := range statuses {
		if strings.EqualFold(strings.TrimSpace(s), string(st)) {
			return st, true
		}
	}
	return "", false
}

// Listing is a single property record shown in the catalog.
type Listing struct {
	ID           ListingID
	Title        string
	Location     string
	Description  string
	Price        float64
	Bedrooms     int
	Bathrooms    int
	Area         float64
	PropertyType string
	Status       ListingStatus
	Category     Category
	Rating       float64
	ReviewCount  int
	Images       []string
	Amenities    []string
	OwnerID      string
	CreatedAt    time.Time
}

// PrimaryImage returns the first image or an empty string.
func (l Listing) PrimaryImage() string {
	if len(l.Images) == 0 {
		return ""
	}
	return l.Images[0]
}

// Sanitize enforces the record invariants on data coming from outside:
// price and review count are non negative, rating is clamped into [0,5],
// amenities are a set with first-seen order kept.
func (l Listing) Sanitize() Listing {
	if l.Price < 0 || math.IsNaN(l.Price) {
		l.Price = 0
	}
	if l.ReviewCount < 0 {
		l.ReviewCount = 0
	}
	switch {
	case math.IsNaN(l.Rating) || l.Rating < 0:
		l.Rating = 0
	case l.Rating > 5:
		l.Rating = 5
	}
	l.Amenities = UniqueStrings(l.Amenities)
	if l.Images != nil {
		images := make([]string, 0, len(l.Images))
		for _, img := range l.Images {
			if img = strings.TrimSpace(img); img != "" {
				images = append(images, img)
			}
		}
		l.Images = images
	}
	return l
}

// HasDetails reports whether l carries listing data beyond its id. A bare
// Listing{ID: id} is a placeholder waiting for enrichment.
func (l Listing) HasDetails() bool {
	return strings.TrimSpace(l.Title) != ""
}

// Clone returns a deep copy so snapshots never share slices with live data.
func (l Listing) Clone() Listing {
	if l.Images != nil {
		l.Images = append([]string(nil), l.Images...)
	}
	if l.Amenities != nil {
		l.Amenities = append([]string(nil), l.Amenities...)
	}
	return l
}

// UniqueStrings drops blanks and duplicates, keeping first-seen order.
func UniqueStrings(in []string) []string {
	if in == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// ListingDraft is the create/update payload of the admin and seller forms.
type ListingDraft struct {
	Title        string
	Location     string
	Description  string
	Price        float64
	Bedrooms     int
	Bathrooms    int
	Area         float64
	PropertyType string
	Status       ListingStatus
	Rating       *float64
	ReviewCount  *int
	Images       []string
	Amenities    []string
	OwnerID      string
}

// ListingQuery holds the server side read parameters of the catalog endpoint.
type ListingQuery struct {
	Search        string
	Status        string
	PropertyType  string
	MinPrice      *float64
	MaxPrice      *float64
	SortField     SortField
	SortDirection SortDirection
	Limit         int
	Offset        int
}

// Pagination mirrors the backend pagination block.
type Pagination struct {
	Total  int
	Limit  int
	Offset int
	Pages  int
}

type ListingPage struct {
	Listings   []Listing
	Pagination Pagination
}
