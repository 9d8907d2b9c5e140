package rest

import (
	"strings"
	"time"

	"property-catalog/internal/core/domain"
)

// ErrorResponse is the body of every failed request. Fields is only set for
// validation failures.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// ListingResponse is a listing as the UI renders it. The same shape is
// accepted back as the snapshot of a favorite toggle.
type ListingResponse struct {
	ID           domain.ListingID `json:"id"`
	Title        string           `json:"title"`
	Location     string           `json:"location"`
	Description  string           `json:"description,omitempty"`
	Price        float64          `json:"price"`
	Bedrooms     int              `json:"bedrooms"`
	Bathrooms    int              `json:"bathrooms"`
	Area         float64          `json:"area"`
	PropertyType string           `json:"property_type"`
	Status       string           `json:"status"`
	Category     string           `json:"category,omitempty"`
	Rating       float64          `json:"rating"`
	ReviewCount  int              `json:"review_count"`
	Images       []string         `json:"images"`
	Image        string           `json:"image,omitempty"`
	Amenities    []string         `json:"amenities"`
	OwnerID      string           `json:"owner_id,omitempty"`
	CreatedAt    *time.Time       `json:"created_at,omitempty"`
}

func toListingResponse(l domain.Listing) ListingResponse {
	resp := ListingResponse{
		ID:           l.ID,
		Title:        l.Title,
		Location:     l.Location,
		Description:  l.Description,
		Price:        l.Price,
		Bedrooms:     l.Bedrooms,
		Bathrooms:    l.Bathrooms,
		Area:         l.Area,
		PropertyType: l.PropertyType,
		Status:       string(l.Status),
		Category:     string(l.Category),
		Rating:       l.Rating,
		ReviewCount:  l.ReviewCount,
		Images:       nonNil(l.Images),
		Image:        l.PrimaryImage(),
		Amenities:    nonNil(l.Amenities),
		OwnerID:      l.OwnerID,
	}
	if !l.CreatedAt.IsZero() {
		t := l.CreatedAt
		resp.CreatedAt = &t
	}
	return resp
}

func (r ListingResponse) toDomain() domain.Listing {
	l := domain.Listing{
		ID:           r.ID,
		Title:        strings.TrimSpace(r.Title),
		Location:     strings.TrimSpace(r.Location),
		Description:  r.Description,
		Price:        r.Price,
		Bedrooms:     r.Bedrooms,
		Bathrooms:    r.Bathrooms,
		Area:         r.Area,
		PropertyType: r.PropertyType,
		Rating:       r.Rating,
		ReviewCount:  r.ReviewCount,
		Images:       r.Images,
		Amenities:    r.Amenities,
		OwnerID:      r.OwnerID,
	}
	if len(l.Images) == 0 && r.Image != "" {
		l.Images = []string{r.Image}
	}
	if status, ok := domain.ParseListingStatus(r.Status); ok {
		l.Status = status
	}
	if c, err := domain.ParseCategory(r.Category); err == nil {
		l.Category = c
	}
	if r.CreatedAt != nil {
		l.CreatedAt = *r.CreatedAt
	}
	return l.Sanitize()
}

func toListingResponses(listings []domain.Listing) []ListingResponse {
	out := make([]ListingResponse, len(listings))
	for i, l := range listings {
		out[i] = toListingResponse(l)
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

type PaginationResponse struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Pages  int `json:"pages"`
}

type ListingPageResponse struct {
	Data       []ListingResponse  `json:"data"`
	Pagination PaginationResponse `json:"pagination"`
}

func toListingPageResponse(p *domain.ListingPage) ListingPageResponse {
	return ListingPageResponse{
		Data: toListingResponses(p.Listings),
		Pagination: PaginationResponse{
			Total:  p.Pagination.Total,
			Limit:  p.Pagination.Limit,
			Offset: p.Pagination.Offset,
			Pages:  p.Pagination.Pages,
		},
	}
}

// ListingDraftRequest is the admin and seller form body.
type ListingDraftRequest struct {
	Title        string   `json:"title"`
	Location     string   `json:"location"`
	Description  string   `json:"description"`
	Price        float64  `json:"price"`
	Bedrooms     int      `json:"bedrooms"`
	Bathrooms    int      `json:"bathrooms"`
	Area         float64  `json:"area"`
	PropertyType string   `json:"property_type"`
	Status       string   `json:"status"`
	Rating       *float64 `json:"rating"`
	ReviewCount  *int     `json:"review_count"`
	Images       []string `json:"images"`
	Amenities    []string `json:"amenities"`
	OwnerID      string   `json:"owner_id"`
}

// toDomain keeps an unknown status verbatim so the validator can name it.
func (r ListingDraftRequest) toDomain() domain.ListingDraft {
	status := domain.ListingStatus(strings.TrimSpace(r.Status))
	if canonical, ok := domain.ParseListingStatus(r.Status); ok {
		status = canonical
	}
	return domain.ListingDraft{
		Title:        strings.TrimSpace(r.Title),
		Location:     strings.TrimSpace(r.Location),
		Description:  r.Description,
		Price:        r.Price,
		Bedrooms:     r.Bedrooms,
		Bathrooms:    r.Bathrooms,
		Area:         r.Area,
		PropertyType: strings.TrimSpace(r.PropertyType),
		Status:       status,
		Rating:       r.Rating,
		ReviewCount:  r.ReviewCount,
		Images:       r.Images,
		Amenities:    r.Amenities,
		OwnerID:      strings.TrimSpace(r.OwnerID),
	}
}

// MutationResponse is the answer of every admin write. Page is null when
// the refetch after a successful write failed.
type MutationResponse struct {
	Listing *ListingResponse     `json:"listing,omitempty"`
	Page    *ListingPageResponse `json:"page"`
}

func toMutationResponse(res *domain.MutationResult) MutationResponse {
	var out MutationResponse
	if res.Listing != nil {
		l := toListingResponse(*res.Listing)
		out.Listing = &l
	}
	if res.Page != nil {
		p := toListingPageResponse(res.Page)
		out.Page = &p
	}
	return out
}

type DeleteConfirmationResponse struct {
	Token     string           `json:"token"`
	ListingID domain.ListingID `json:"listing_id"`
	Title     string           `json:"title"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// ToggleFavoriteRequest names the listing to toggle. Listing is the card the
// UI shows and becomes the cached snapshot; without it only the id is kept.
type ToggleFavoriteRequest struct {
	ListingID domain.ListingID `json:"listing_id"`
	Listing   *ListingResponse `json:"listing"`
}

type ToggleFavoriteResponse struct {
	ListingID domain.ListingID `json:"listing_id"`
	Favorited bool             `json:"favorited"`
	Degraded  bool             `json:"degraded"`
	Persisted bool             `json:"persisted"`
	Count     int              `json:"count"`
}

type FavoriteEntryResponse struct {
	ListingID domain.ListingID `json:"listing_id"`
	Listing   ListingResponse  `json:"listing"`
	Quantity  int              `json:"quantity"`
	AddedAt   *time.Time       `json:"added_at,omitempty"`
}

type FavoritesResponse struct {
	Items []FavoriteEntryResponse `json:"items"`
	IDs   []domain.ListingID      `json:"ids"`
	Count int                     `json:"count"`
}

func toFavoritesResponse(entries []domain.FavoriteEntry) FavoritesResponse {
	resp := FavoritesResponse{
		Items: make([]FavoriteEntryResponse, len(entries)),
		IDs:   make([]domain.ListingID, len(entries)),
		Count: len(entries),
	}
	for i, e := range entries {
		item := FavoriteEntryResponse{
			ListingID: e.ListingID,
			Listing:   toListingResponse(e.Snapshot),
			Quantity:  e.Quantity,
		}
		if !e.AddedAt.IsZero() {
			t := e.AddedAt
			item.AddedAt = &t
		}
		resp.Items[i] = item
		resp.IDs[i] = e.ListingID
	}
	return resp
}

type NavItemResponse struct {
	Label  string `json:"label"`
	Path   string `json:"path"`
	Active bool   `json:"active"`
}
