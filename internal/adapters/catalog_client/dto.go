package catalog_client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"property-catalog/internal/core/domain"
)

// envelope is the common response wrapper of the PHP endpoints. Paginated
// reads add pagination; the favorites toggle answers with action.
type envelope struct {
	Status     string           `json:"status"`
	Message    string           `json:"message"`
	Data       json.RawMessage  `json:"data"`
	Pagination *paginationDTO   `json:"pagination"`
	Action     string           `json:"action"`
	ID         domain.ListingID `json:"id"`
}

func (e *envelope) hasData() bool {
	d := bytes.TrimSpace(e.Data)
	return len(d) > 0 && !bytes.Equal(d, []byte("null"))
}

type paginationDTO struct {
	Total  flexInt `json:"total"`
	Limit  flexInt `json:"limit"`
	Offset flexInt `json:"offset"`
	Pages  flexInt `json:"pages"`
}

// listingDTO accepts every spelling the three PHP endpoints use for the same
// listing fields.
type listingDTO struct {
	ID           domain.ListingID `json:"id"`
	Title        string           `json:"title"`
	Location     string           `json:"location"`
	Description  string           `json:"description"`
	Price        flexFloat        `json:"price"`
	Bedrooms     flexInt          `json:"bedrooms"`
	Bathrooms    flexInt          `json:"bathrooms"`
	Area         flexFloat        `json:"area"`
	PropertyType string           `json:"property_type"`
	Type         string           `json:"type"`
	Status       string           `json:"status"`
	Category     string           `json:"category"`
	Rating       flexFloat        `json:"rating"`
	ReviewCount  *flexInt         `json:"review_count"`
	Reviews      *flexInt         `json:"reviews"`
	Images       flexStrings      `json:"images"`
	Image        string           `json:"image"`
	Amenities    flexStrings      `json:"amenities"`
	UserID       flexString       `json:"user_id"`
	OwnerID      flexString       `json:"owner_id"`
	CreatedAt    flexTime         `json:"created_at"`
}

// toDomain maps the record; category is used when the record does not name its own.
func (d listingDTO) toDomain(category domain.Category) domain.Listing {
	if c, err := domain.ParseCategory(d.Category); err == nil {
		category = c
	}
	l := domain.Listing{
		ID:           d.ID,
		Title:        strings.TrimSpace(d.Title),
		Location:     strings.TrimSpace(d.Location),
		Description:  d.Description,
		Price:        float64(d.Price),
		Bedrooms:     int(d.Bedrooms),
		Bathrooms:    int(d.Bathrooms),
		Area:         float64(d.Area),
		PropertyType: firstNonEmpty(d.PropertyType, d.Type),
		Category:     category,
		Rating:       float64(d.Rating),
		Images:       []string(d.Images),
		Amenities:    []string(d.Amenities),
		OwnerID:      firstNonEmpty(string(d.OwnerID), string(d.UserID)),
		CreatedAt:    time.Time(d.CreatedAt),
	}
	switch {
	case d.ReviewCount != nil:
		l.ReviewCount = int(*d.ReviewCount)
	case d.Reviews != nil:
		l.ReviewCount = int(*d.Reviews)
	}
	if d.Image != "" && len(l.Images) == 0 {
		l.Images = []string{d.Image}
	}
	if status, ok := domain.ParseListingStatus(d.Status); ok {
		l.Status = status
	} else {
		l.Status = domain.StatusActive
	}
	return l.Sanitize()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// draftRequest is the create/update body. Both spellings of the renamed
// fields are sent so every endpoint finds the one it reads.
type draftRequest struct {
	ID           domain.ListingID `json:"id,omitempty"`
	Title        string           `json:"title"`
	Location     string           `json:"location"`
	Description  string           `json:"description,omitempty"`
	Price        float64          `json:"price"`
	Bedrooms     int              `json:"bedrooms"`
	Bathrooms    int              `json:"bathrooms"`
	Area         float64          `json:"area"`
	PropertyType string           `json:"property_type"`
	Type         string           `json:"type"`
	Status       string           `json:"status,omitempty"`
	Rating       *float64         `json:"rating,omitempty"`
	ReviewCount  *int             `json:"review_count,omitempty"`
	Reviews      *int             `json:"reviews,omitempty"`
	Images       []string         `json:"images,omitempty"`
	Image        string           `json:"image,omitempty"`
	Amenities    []string         `json:"amenities,omitempty"`
	UserID       string           `json:"user_id,omitempty"`
}

func newDraftRequest(id domain.ListingID, d domain.ListingDraft) draftRequest {
	req := draftRequest{
		ID:           id,
		Title:        d.Title,
		Location:     d.Location,
		Description:  d.Description,
		Price:        d.Price,
		Bedrooms:     d.Bedrooms,
		Bathrooms:    d.Bathrooms,
		Area:         d.Area,
		PropertyType: d.PropertyType,
		Type:         d.PropertyType,
		Status:       string(d.Status),
		Rating:       d.Rating,
		ReviewCount:  d.ReviewCount,
		Reviews:      d.ReviewCount,
		Images:       d.Images,
		Amenities:    d.Amenities,
		UserID:       d.OwnerID,
	}
	if len(d.Images) > 0 {
		req.Image = d.Images[0]
	}
	return req
}

// draftListing is what a write returns when the backend answers without
// echoing the record.
func draftListing(id domain.ListingID, category domain.Category, d domain.ListingDraft) domain.Listing {
	l := domain.Listing{
		ID:           id,
		Title:        d.Title,
		Location:     d.Location,
		Description:  d.Description,
		Price:        d.Price,
		Bedrooms:     d.Bedrooms,
		Bathrooms:    d.Bathrooms,
		Area:         d.Area,
		PropertyType: d.PropertyType,
		Status:       d.Status,
		Category:     category,
		Images:       d.Images,
		Amenities:    d.Amenities,
		OwnerID:      d.OwnerID,
	}
	if d.Rating != nil {
		l.Rating = *d.Rating
	}
	if d.ReviewCount != nil {
		l.ReviewCount = *d.ReviewCount
	}
	return l.Sanitize()
}

type favoritesRequest struct {
	Action     string           `json:"action"`
	PropertyID domain.ListingID `json:"property_id,omitempty"`
}

type deleteRequest struct {
	ID domain.ListingID `json:"id"`
}

// flexFloat decodes numbers, numeric strings, "" and null.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s, isNull, err := scalarText(data)
	if err != nil || isNull || s == "" {
		*f = 0
		return err
	}
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number: %q", s)
	}
	*f = flexFloat(v)
	return nil
}

// flexInt decodes integers, integral floats and their string forms.
type flexInt int

func (n *flexInt) UnmarshalJSON(data []byte) error {
	var f flexFloat
	if err := f.UnmarshalJSON(data); err != nil {
		return err
	}
	*n = flexInt(int(f))
	return nil
}

// flexString decodes strings and numbers as text.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	text, isNull, err := scalarText(data)
	if err != nil {
		return err
	}
	if isNull {
		*s = ""
		return nil
	}
	*s = flexString(text)
	return nil
}

// flexStrings decodes a JSON array, a JSON-encoded array inside a string
// or a comma separated string.
type flexStrings []string

func (fs *flexStrings) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*fs = nil
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*fs = items
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		var items []string
		if err := json.Unmarshal([]byte(s), &items); err == nil {
			*fs = items
			return nil
		}
	}
	if s == "" {
		*fs = nil
		return nil
	}
	*fs = strings.Split(s, ",")
	return nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// flexTime decodes MySQL DATETIME and RFC 3339 timestamps. The zero MySQL
// date reads as the zero time.
type flexTime time.Time

func (t *flexTime) UnmarshalJSON(data []byte) error {
	s, isNull, err := scalarText(data)
	if err != nil {
		return err
	}
	if isNull || s == "" || strings.HasPrefix(s, "0000-00-00") {
		*t = flexTime(time.Time{})
		return nil
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = flexTime(parsed)
			return nil
		}
	}
	return fmt.Errorf("unsupported timestamp %q", s)
}

// scalarText returns the text of a JSON string or number.
func scalarText(data []byte) (string, bool, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return "", true, nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", false, err
		}
		return strings.TrimSpace(s), false, nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return "", false, fmt.Errorf("expected a scalar, got %s", data)
	}
	return num.String(), false, nil
}
