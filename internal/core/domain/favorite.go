package domain

import "time"

// FavoriteEntry is one saved listing in the local favorites slot. Snapshot is
// a denormalized copy taken when the listing was favorited so the entry stays
// viewable after the listing disappears remotely.
type FavoriteEntry struct {
	ListingID ListingID
	Snapshot  Listing
	Quantity  int
	AddedAt   time.Time
}

// NewFavoriteEntry snapshots listing as a fresh entry.
func NewFavoriteEntry(listing Listing, now time.Time) FavoriteEntry {
	return FavoriteEntry{
		ListingID: listing.ID,
		Snapshot:  listing.Clone(),
		Quantity:  1,
		AddedAt:   now,
	}
}

// FavoriteAction is what the server reports after a toggle.
type FavoriteAction string

const (
	FavoriteAdded   FavoriteAction = "added"
	FavoriteRemoved FavoriteAction = "removed"
)

// ToggleResult describes the membership state after a toggle.
type ToggleResult struct {
	ListingID ListingID
	Favorited bool
	// Degraded is set when the remote call failed (or was skipped for an
	// anonymous session) and the local flip was applied instead.
	Degraded bool
}
