package domain

import "time"

type ListingChangeType string

const (
	ListingCreated ListingChangeType = "listing.created"
	ListingUpdated ListingChangeType = "listing.updated"
	ListingDeleted ListingChangeType = "listing.deleted"
)

// ListingChangedEvent is emitted after the backend confirmed an admin mutation.
type ListingChangedEvent struct {
	Type       ListingChangeType
	Category   Category
	ListingID  ListingID
	OccurredAt time.Time
}

// DeleteConfirmation is the first phase of a two-phase delete. The delete is
// only issued when the token is confirmed before ExpiresAt.
type DeleteConfirmation struct {
	Token     string
	ListingID ListingID
	Title     string
	ExpiresAt time.Time
}

// MutationResult is what an admin write returns: the record the backend
// answered with and the refetched collection. Page is nil when the refetch
// failed; the mutation itself still succeeded.
type MutationResult struct {
	Listing *Listing
	Page    *ListingPage
}
