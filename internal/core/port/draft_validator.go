package port

import "property-catalog/internal/core/domain"

// DraftValidatorPort checks a listing form before it is dispatched.
// It returns *domain.ValidationError when required fields are missing or invalid.
type DraftValidatorPort interface {
	ValidateDraft(draft domain.ListingDraft) error
}
