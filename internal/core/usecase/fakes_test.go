package usecase

import (
	"context"
	"errors"
	"sync"

	"property-catalog/internal/core/domain"
	"property-catalog/internal/core/port"
)

var errOffline = &domain.CatalogError{Kind: domain.FailureNetwork, Message: "connection refused"}

// fakeCatalog answers from function fields; a nil field fails with errOffline.
type fakeCatalog struct {
	mu    sync.Mutex
	calls map[string]int

	fetchListings      func(category domain.Category, query domain.ListingQuery) (*domain.ListingPage, error)
	fetchListing       func(category domain.Category, id domain.ListingID) (*domain.Listing, error)
	fetchListingsByIDs func(ids []domain.ListingID) ([]domain.Listing, error)
	fetchFavorites     func(token string) ([]domain.ListingID, error)
	toggleFavorite     func(id domain.ListingID, token string) (domain.FavoriteAction, error)
	createListing      func(category domain.Category, draft domain.ListingDraft) (*domain.Listing, error)
	updateListing      func(category domain.Category, id domain.ListingID, draft domain.ListingDraft) (*domain.Listing, error)
	deleteListing      func(category domain.Category, id domain.ListingID) error
}

var _ port.CatalogPort = (*fakeCatalog)(nil)

func (f *fakeCatalog) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
}

func (f *fakeCatalog) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeCatalog) FetchListings(ctx context.Context, category domain.Category, query domain.ListingQuery) (*domain.ListingPage, error) {
	f.record("FetchListings")
	if f.fetchListings == nil {
		return nil, errOffline
	}
	return f.fetchListings(category, query)
}

func (f *fakeCatalog) FetchListing(ctx context.Context, category domain.Category, id domain.ListingID) (*domain.Listing, error) {
	f.record("FetchListing")
	if f.fetchListing == nil {
		return nil, errOffline
	}
	return f.fetchListing(category, id)
}

func (f *fakeCatalog) FetchListingsByIDs(ctx context.Context, ids []domain.ListingID) ([]domain.Listing, error) {
	f.record("FetchListingsByIDs")
	if f.fetchListingsByIDs == nil {
		return nil, errOffline
	}
	return f.fetchListingsByIDs(ids)
}

func (f *fakeCatalog) FetchFavorites(ctx context.Context, userToken string) ([]domain.ListingID, error) {
	f.record("FetchFavorites")
	if f.fetchFavorites == nil {
		return nil, errOffline
	}
	return f.fetchFavorites(userToken)
}

func (f *fakeCatalog) ToggleFavorite(ctx context.Context, id domain.ListingID, userToken string) (domain.FavoriteAction, error) {
	f.record("ToggleFavorite")
	if f.toggleFavorite == nil {
		return "", errOffline
	}
	action, err := f.toggleFavorite(id, userToken)
	// a real transport drops the answer of a cancelled request
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", &domain.CatalogError{Kind: domain.FailureNetwork, Message: "request cancelled", Err: ctxErr}
	}
	return action, err
}

func (f *fakeCatalog) CreateListing(ctx context.Context, category domain.Category, draft domain.ListingDraft) (*domain.Listing, error) {
	f.record("CreateListing")
	if f.createListing == nil {
		return nil, errOffline
	}
	return f.createListing(category, draft)
}

func (f *fakeCatalog) UpdateListing(ctx context.Context, category domain.Category, id domain.ListingID, draft domain.ListingDraft) (*domain.Listing, error) {
	f.record("UpdateListing")
	if f.updateListing == nil {
		return nil, errOffline
	}
	return f.updateListing(category, id, draft)
}

func (f *fakeCatalog) DeleteListing(ctx context.Context, category domain.Category, id domain.ListingID) error {
	f.record("DeleteListing")
	if f.deleteListing == nil {
		return errOffline
	}
	return f.deleteListing(category, id)
}

// memoryStore is an in-memory favorites slot.
type memoryStore struct {
	mu      sync.Mutex
	entries []domain.FavoriteEntry
	saves   int
	failErr error
}

func (m *memoryStore) Load(ctx context.Context) []domain.FavoriteEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.FavoriteEntry(nil), m.entries...)
}

func (m *memoryStore) Save(ctx context.Context, entries []domain.FavoriteEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.failErr != nil {
		return m.failErr
	}
	m.entries = append([]domain.FavoriteEntry(nil), entries...)
	return nil
}

func (m *memoryStore) ids() []domain.ListingID {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.ListingID, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.ListingID
	}
	return out
}

type memorySlots struct {
	mu    sync.Mutex
	slots map[string]*memoryStore
	err   error
}

func (p *memorySlots) Slot(deviceID string) (port.FavoritesStorePort, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.slots == nil {
		p.slots = make(map[string]*memoryStore)
	}
	s, ok := p.slots[deviceID]
	if !ok {
		s = &memoryStore{}
		p.slots[deviceID] = s
	}
	return s, nil
}

var errDiskFull = errors.New("disk full")

func listing(id string, title string, price float64, bedrooms int) domain.Listing {
	return domain.Listing{
		ID:       domain.MustListingID(id),
		Title:    title,
		Price:    price,
		Bedrooms: bedrooms,
		Status:   domain.StatusActive,
	}
}

func idsOf(listings []domain.Listing) []domain.ListingID {
	out := make([]domain.ListingID, len(listings))
	for i, l := range listings {
		out[i] = l.ID
	}
	return out
}

func entryIDs(entries []domain.FavoriteEntry) []domain.ListingID {
	out := make([]domain.ListingID, len(entries))
	for i, e := range entries {
		out[i] = e.ListingID
	}
	return out
}
