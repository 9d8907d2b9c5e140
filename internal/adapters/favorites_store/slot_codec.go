package favorites_store

import (
	"encoding/json"
	"fmt"
	"time"

	"property-catalog/internal/core/domain"
)

// slotItem is one element of the persisted "cart" array: the denormalized
// listing plus the quantity counter, the same shape the browser cart used.
type slotItem struct {
	ID           domain.ListingID `json:"id"`
	Title        string           `json:"title"`
	Location     string           `json:"location"`
	Description  string           `json:"description,omitempty"`
	Price        float64          `json:"price"`
	Bedrooms     int              `json:"bedrooms"`
	Bathrooms    int              `json:"bathrooms"`
	Area         float64          `json:"area"`
	PropertyType string           `json:"property_type,omitempty"`
	Status       string           `json:"status,omitempty"`
	Category     string           `json:"category,omitempty"`
	Rating       float64          `json:"rating"`
	ReviewCount  int              `json:"review_count"`
	Images       []string         `json:"images,omitempty"`
	Image        string           `json:"image,omitempty"`
	Amenities    []string         `json:"amenities,omitempty"`
	OwnerID      string           `json:"owner_id,omitempty"`
	CreatedAt    *time.Time       `json:"created_at,omitempty"`
	Quantity     int              `json:"quantity"`
	AddedAt      *time.Time       `json:"added_at,omitempty"`
}

// EncodeSlot serializes entries into the slot format.
func EncodeSlot(entries []domain.FavoriteEntry) ([]byte, error) {
	items := make([]slotItem, 0, len(entries))
	for _, e := range entries {
		l := e.Snapshot
		item := slotItem{
			ID:           e.ListingID,
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
			Images:       l.Images,
			Image:        l.PrimaryImage(),
			Amenities:    l.Amenities,
			OwnerID:      l.OwnerID,
			Quantity:     e.Quantity,
		}
		if !l.CreatedAt.IsZero() {
			t := l.CreatedAt
			item.CreatedAt = &t
		}
		if !e.AddedAt.IsZero() {
			t := e.AddedAt
			item.AddedAt = &t
		}
		if item.Quantity < 1 {
			item.Quantity = 1
		}
		items = append(items, item)
	}
	return json.Marshal(items)
}

// DecodeSlot parses the slot format. A payload that is not a JSON array is
// an error; single unreadable items are skipped and counted.
func DecodeSlot(data []byte) ([]domain.FavoriteEntry, int, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, fmt.Errorf("favorites slot is not a JSON array: %w", err)
	}

	entries := make([]domain.FavoriteEntry, 0, len(raw))
	skipped := 0
	for _, r := range raw {
		var item slotItem
		if err := json.Unmarshal(r, &item); err != nil || item.ID == "" {
			skipped++
			continue
		}
		entries = append(entries, item.toEntry())
	}
	return entries, skipped, nil
}

func (item slotItem) toEntry() domain.FavoriteEntry {
	l := domain.Listing{
		ID:           item.ID,
		Title:        item.Title,
		Location:     item.Location,
		Description:  item.Description,
		Price:        item.Price,
		Bedrooms:     item.Bedrooms,
		Bathrooms:    item.Bathrooms,
		Area:         item.Area,
		PropertyType: item.PropertyType,
		Rating:       item.Rating,
		ReviewCount:  item.ReviewCount,
		Images:       item.Images,
		Amenities:    item.Amenities,
		OwnerID:      item.OwnerID,
	}
	if status, ok := domain.ParseListingStatus(item.Status); ok {
		l.Status = status
	}
	if c, err := domain.ParseCategory(item.Category); err == nil {
		l.Category = c
	}
	if len(l.Images) == 0 && item.Image != "" {
		l.Images = []string{item.Image}
	}
	if item.CreatedAt != nil {
		l.CreatedAt = *item.CreatedAt
	}

	e := domain.FavoriteEntry{
		ListingID: item.ID,
		Snapshot:  l.Sanitize(),
		Quantity:  item.Quantity,
	}
	if e.Quantity < 1 {
		e.Quantity = 1
	}
	if item.AddedAt != nil {
		e.AddedAt = *item.AddedAt
	}
	return e
}
