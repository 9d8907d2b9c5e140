package contracts

import (
	"encoding/json"
	"fmt"
	"strings"

	"property-catalog/internal/core/domain"
	"property-catalog/internal/core/port"
)

// draftDocument is the JSON shape the listing form schema is written against.
// Blank strings are omitted so they are reported as missing.
type draftDocument struct {
	Title        string   `json:"title,omitempty"`
	Location     string   `json:"location,omitempty"`
	Description  string   `json:"description,omitempty"`
	Price        float64  `json:"price"`
	Bedrooms     int      `json:"bedrooms"`
	Bathrooms    int      `json:"bathrooms"`
	Area         float64  `json:"area"`
	PropertyType string   `json:"property_type,omitempty"`
	Status       string   `json:"status,omitempty"`
	Rating       *float64 `json:"rating,omitempty"`
	ReviewCount  *int     `json:"review_count,omitempty"`
	Images       []string `json:"images,omitempty"`
	Amenities    []string `json:"amenities,omitempty"`
	OwnerID      string   `json:"owner_id,omitempty"`
}

// DraftValidator checks listing forms against the embedded ListingDraft schema.
type DraftValidator struct{}

var _ port.DraftValidatorPort = (*DraftValidator)(nil)

// NewDraftValidator compiles the embedded schemas up front so a broken
// schema fails at startup rather than on the first form.
func NewDraftValidator() (*DraftValidator, error) {
	if _, err := loadSchemas(); err != nil {
		return nil, err
	}
	return &DraftValidator{}, nil
}

func (v *DraftValidator) ValidateDraft(draft domain.ListingDraft) error {
	doc := draftDocument{
		Title:        strings.TrimSpace(draft.Title),
		Location:     strings.TrimSpace(draft.Location),
		Description:  draft.Description,
		Price:        draft.Price,
		Bedrooms:     draft.Bedrooms,
		Bathrooms:    draft.Bathrooms,
		Area:         draft.Area,
		PropertyType: strings.TrimSpace(draft.PropertyType),
		Status:       string(draft.Status),
		Rating:       draft.Rating,
		ReviewCount:  draft.ReviewCount,
		Images:       draft.Images,
		Amenities:    draft.Amenities,
		OwnerID:      draft.OwnerID,
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode listing draft: %w", err)
	}

	if err := Validate(ListingDraftSchema, body); err != nil {
		fields := FieldErrors(err)
		if len(fields) == 0 {
			// Not a schema violation: the schema itself is unavailable.
			return err
		}
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}
