package contracts

import (
	"errors"
	"testing"

	"property-catalog/internal/core/domain"
)

func validDraft() domain.ListingDraft {
	return domain.ListingDraft{
		Title:        "Garden Villa",
		Location:     "Bangalore",
		Price:        25000,
		Bedrooms:     3,
		Bathrooms:    2,
		Area:         1800,
		PropertyType: "Villa",
		Status:       domain.StatusActive,
		Amenities:    []string{"Pool", "Gym"},
	}
}

func TestGenerateKeyFromPath(t *testing.T) {
	tests := map[string]string{
		"forms/listing-draft/v1.json":    ListingDraftSchema,
		"events/listing-changed/v1.json": ListingChangedSchema,
		"events/v1.json":                 "",
		"other/thing/v2.json":            "",
	}
	for path, want := range tests {
		if got := generateKeyFromPath(path); got != want {
			t.Errorf("generateKeyFromPath(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestDraftValidator(t *testing.T) {
	v, err := NewDraftValidator()
	if err != nil {
		t.Fatalf("schemas must compile: %v", err)
	}

	if err := v.ValidateDraft(validDraft()); err != nil {
		t.Fatalf("valid draft rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(d *domain.ListingDraft)
		fields []string
	}{
		{"missing title and location", func(d *domain.ListingDraft) { d.Title = " "; d.Location = "" }, []string{"title", "location"}},
		{"negative price", func(d *domain.ListingDraft) { d.Price = -1 }, []string{"price"}},
		{"zero area", func(d *domain.ListingDraft) { d.Area = 0 }, []string{"area"}},
		{"unknown status", func(d *domain.ListingDraft) { d.Status = "Archived" }, []string{"status"}},
		{"unknown property type", func(d *domain.ListingDraft) { d.PropertyType = "Castle" }, []string{"property_type"}},
		{"rating out of range", func(d *domain.ListingDraft) { r := 6.0; d.Rating = &r }, []string{"rating"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDraft()
			tt.mutate(&d)
			err := v.ValidateDraft(d)
			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *domain.ValidationError, got %v", err)
			}
			for _, f := range tt.fields {
				if verr.Fields[f] == "" {
					t.Errorf("missing message for %q in %v", f, verr.Fields)
				}
			}
		})
	}
}

func TestValidateListingChangedEvent(t *testing.T) {
	ok := []byte(`{"event_type":"listing.deleted","category":"rent","listing_id":"12","occurred_at":"2024-05-01T09:00:00Z"}`)
	if err := Validate(ListingChangedSchema, ok); err != nil {
		t.Fatalf("valid event rejected: %v", err)
	}
	bad := []byte(`{"event_type":"listing.moved","category":"rent","listing_id":"12","occurred_at":"yesterday"}`)
	if err := Validate(ListingChangedSchema, bad); err == nil {
		t.Fatal("invalid event accepted")
	}
	if err := Validate("Nope/1.0.0", ok); err == nil {
		t.Fatal("unknown schema key must fail")
	}
}
