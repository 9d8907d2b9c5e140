package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"property-catalog/internal/contextkeys"
	"property-catalog/internal/core/domain"
	"property-catalog/internal/core/port"
	"property-catalog/internal/core/port/usecases_port"

	"golang.org/x/sync/singleflight"
)

// FavoritesReconciler keeps the favorite set of one device consistent between
// the local slot and the remote mirror. The local slot is the degraded-mode
// source of truth; a successful remote answer always wins.
//
// State is guarded by mu, which is never held across a network call.
type FavoritesReconciler struct {
	catalog port.CatalogPort
	store   port.FavoritesStorePort
	now     func() time.Time

	mu      sync.Mutex
	entries []domain.FavoriteEntry
	index   map[domain.ListingID]int

	// saveMu orders snapshot+write pairs so an older snapshot never
	// overwrites a newer one.
	saveMu sync.Mutex

	// inflight coalesces concurrent toggles of the same listing.
	inflight singleflight.Group

	// loadMu serializes EnsureLoaded. loaded and loadedWithToken are guarded by mu.
	loadMu          sync.Mutex
	loaded          bool
	loadedWithToken bool
}

func NewFavoritesReconciler(catalog port.CatalogPort, store port.FavoritesStorePort) *FavoritesReconciler {
	return &FavoritesReconciler{
		catalog: catalog,
		store:   store,
		now:     time.Now,
		index:   make(map[domain.ListingID]int),
	}
}

// EnsureLoaded runs Load on first use, and once more when a user token shows
// up for a set that so far was only loaded anonymously.
func (r *FavoritesReconciler) EnsureLoaded(ctx context.Context, userToken string) {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()

	r.mu.Lock()
	upToDate := r.loaded && (r.loadedWithToken || userToken == "")
	r.mu.Unlock()
	if upToDate {
		return
	}
	r.Load(ctx, userToken)
}

// Load builds the favorite set. With a user token the remote id list is
// authoritative: cached snapshots are kept for ids that remain, while new ids
// and cached placeholders are enriched from the catalog. Any remote failure falls back to the local slot
// without surfacing an error.
func (r *FavoritesReconciler) Load(ctx context.Context, userToken string) []domain.FavoriteEntry {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component": "FavoritesReconciler",
		"method":    "Load",
	})

	local := dedupeEntries(r.store.Load(ctx))
	defer r.markLoaded(userToken != "")

	if userToken == "" {
		logger.Debug("Anonymous session, using local favorites only", port.Fields{"count": len(local)})
		r.replace(local)
		return r.Favorites()
	}

	remoteIDs, err := r.catalog.FetchFavorites(ctx, userToken)
	if err != nil {
		logger.Warn("Remote favorites unavailable, falling back to local slot", port.Fields{
			"error":       err.Error(),
			"local_count": len(local),
		})
		r.replace(local)
		return r.Favorites()
	}

	merged := r.mergeAuthoritative(ctx, local, remoteIDs)
	r.replace(merged)
	if err := r.persist(ctx); err != nil {
		logger.Error("Failed to persist reconciled favorites", err, nil)
	}

	logger.Info("Favorites reconciled with remote", port.Fields{
		"local_count":  len(local),
		"remote_count": len(merged),
	})
	return r.Favorites()
}

func (r *FavoritesReconciler) mergeAuthoritative(ctx context.Context, local []domain.FavoriteEntry, remoteIDs []domain.ListingID) []domain.FavoriteEntry {
	logger := contextkeys.LoggerFromContext(ctx)

	cached := make(map[domain.ListingID]domain.FavoriteEntry, len(local))
	for _, e := range local {
		cached[e.ListingID] = e
	}

	now := r.now()
	merged := make([]domain.FavoriteEntry, 0, len(remoteIDs))
	seen := make(map[domain.ListingID]struct{}, len(remoteIDs))
	missing := make(map[domain.ListingID]int)
	var missingIDs []domain.ListingID

	for _, id := range remoteIDs {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		e, ok := cached[id]
		if ok && e.Snapshot.HasDetails() {
			merged = append(merged, e)
			continue
		}
		// Placeholder keeps the id set equal to the remote set even if
		// enrichment fails below. A cached placeholder is enriched again.
		if !ok {
			e = domain.FavoriteEntry{
				ListingID: id,
				Snapshot:  domain.Listing{ID: id},
				Quantity:  1,
				AddedAt:   now,
			}
		}
		missing[id] = len(merged)
		missingIDs = append(missingIDs, id)
		merged = append(merged, e)
	}

	if len(missingIDs) == 0 {
		return merged
	}

	listings, err := r.catalog.FetchListingsByIDs(ctx, missingIDs)
	if err != nil {
		logger.Warn("Failed to enrich new favorites, keeping placeholders", port.Fields{
			"error":   err.Error(),
			"missing": len(missingIDs),
		})
		return merged
	}
	for _, l := range listings {
		if pos, ok := missing[l.ID]; ok {
			e := merged[pos]
			e.Snapshot = l.Sanitize()
			merged[pos] = e
		}
	}
	return merged
}

// Toggle flips the favorite state of listing. The remote answer decides the new
// membership; if the remote call fails (or the session is anonymous) the local
// state is flipped instead. The full set is persisted after the remote attempt
// resolved. A returned error only reports a failed local write; the in-memory
// state has already been updated at that point.
func (r *FavoritesReconciler) Toggle(ctx context.Context, listing domain.Listing, userToken string) (domain.ToggleResult, error) {
	if listing.ID == "" {
		return domain.ToggleResult{}, domain.ErrInvalidListingID
	}

	// Coalesced callers share the result, so one caller going away must not
	// cancel it for the others. The catalog client timeout still applies.
	shared := context.WithoutCancel(ctx)
	v, err, coalesced := r.inflight.Do(string(listing.ID), func() (interface{}, error) {
		return r.toggle(shared, listing, userToken)
	})
	if coalesced {
		contextkeys.LoggerFromContext(ctx).Debug("Toggle coalesced with an in-flight request", port.Fields{
			"listing_id": listing.ID,
		})
	}
	res, _ := v.(domain.ToggleResult)
	return res, err
}

func (r *FavoritesReconciler) toggle(ctx context.Context, listing domain.Listing, userToken string) (domain.ToggleResult, error) {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component":  "FavoritesReconciler",
		"method":     "Toggle",
		"listing_id": listing.ID,
	})

	wasMember := r.IsFavorite(listing.ID)
	result := domain.ToggleResult{ListingID: listing.ID}
	remoteFailed := false

	if userToken == "" {
		result.Favorited = !wasMember
		result.Degraded = true
	} else {
		action, err := r.catalog.ToggleFavorite(ctx, listing.ID, userToken)
		if err != nil {
			logger.Warn("Remote toggle failed, applying local toggle", port.Fields{"error": err.Error()})
			result.Favorited = !wasMember
			result.Degraded = true
			remoteFailed = true
		} else {
			result.Favorited = action == domain.FavoriteAdded
		}
	}

	if result.Favorited && !listing.HasDetails() && !remoteFailed {
		listing = r.enrich(ctx, listing)
	}

	r.mu.Lock()
	if result.Favorited {
		r.addLocked(listing)
	} else {
		r.removeLocked(listing.ID)
	}
	r.mu.Unlock()

	if err := r.persist(ctx); err != nil {
		logger.Error("Failed to persist favorites after toggle", err, nil)
		return result, fmt.Errorf("failed to persist favorites: %w", err)
	}

	logger.Debug("Toggle applied", port.Fields{
		"favorited": result.Favorited,
		"degraded":  result.Degraded,
	})
	return result, nil
}

// Remove makes sure id is not a favorite. When the remote mirror disagreed
// (it did not hold the id and reported "added"), a second toggle takes it
// back out so both sides end without it.
func (r *FavoritesReconciler) Remove(ctx context.Context, id domain.ListingID, userToken string) (domain.ToggleResult, error) {
	entry, ok := r.entry(id)
	if !ok {
		return domain.ToggleResult{ListingID: id}, nil
	}
	res, err := r.Toggle(ctx, entry.Snapshot, userToken)
	if err != nil || !res.Favorited {
		return res, err
	}
	return r.Toggle(ctx, entry.Snapshot, userToken)
}

// Clear empties the local slot. The remote mirror has no bulk endpoint and is
// left alone; the next authoritative Load mirrors it again.
func (r *FavoritesReconciler) Clear(ctx context.Context) error {
	r.replace(nil)
	if err := r.persist(ctx); err != nil {
		return fmt.Errorf("failed to clear favorites: %w", err)
	}
	return nil
}

// RefreshSnapshot replaces the cached copy of listing when it is a favorite
// and persists the slot. It reports whether the listing was held.
func (r *FavoritesReconciler) RefreshSnapshot(ctx context.Context, listing domain.Listing) (bool, error) {
	r.mu.Lock()
	pos, ok := r.index[listing.ID]
	if ok {
		r.entries[pos].Snapshot = listing.Sanitize().Clone()
	}
	r.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := r.persist(ctx); err != nil {
		return true, fmt.Errorf("failed to persist refreshed snapshot: %w", err)
	}
	return true, nil
}

// Favorites returns a copy of the current entries in insertion order.
func (r *FavoritesReconciler) Favorites() []domain.FavoriteEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.copyLocked()
}

func (r *FavoritesReconciler) IDs() []domain.ListingID {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]domain.ListingID, len(r.entries))
	for i, e := range r.entries {
		ids[i] = e.ListingID
	}
	return ids
}

func (r *FavoritesReconciler) IsFavorite(id domain.ListingID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.index[id]
	return ok
}

func (r *FavoritesReconciler) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *FavoritesReconciler) entry(id domain.ListingID) (domain.FavoriteEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pos, ok := r.index[id]
	if !ok {
		return domain.FavoriteEntry{}, false
	}
	return r.entries[pos], true
}

func (r *FavoritesReconciler) replace(entries []domain.FavoriteEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make([]domain.FavoriteEntry, 0, len(entries))
	r.index = make(map[domain.ListingID]int, len(entries))
	for _, e := range entries {
		r.index[e.ListingID] = len(r.entries)
		r.entries = append(r.entries, e)
	}
}

// enrich looks up the full data of a bare listing. On failure the
// placeholder is returned unchanged and the next authoritative Load retries.
func (r *FavoritesReconciler) enrich(ctx context.Context, listing domain.Listing) domain.Listing {
	if e, ok := r.entry(listing.ID); ok && e.Snapshot.HasDetails() {
		return e.Snapshot
	}
	found, err := r.catalog.FetchListingsByIDs(ctx, []domain.ListingID{listing.ID})
	if err != nil {
		contextkeys.LoggerFromContext(ctx).Warn("Failed to enrich favorite, keeping placeholder", port.Fields{
			"listing_id": listing.ID,
			"error":      err.Error(),
		})
		return listing
	}
	for _, l := range found {
		if l.ID == listing.ID {
			return l.Sanitize()
		}
	}
	return listing
}

func (r *FavoritesReconciler) addLocked(listing domain.Listing) {
	if pos, ok := r.index[listing.ID]; ok {
		// Already present: refresh the snapshot, keep position and counter.
		// A bare placeholder never overwrites known data.
		e := r.entries[pos]
		if listing.HasDetails() || !e.Snapshot.HasDetails() {
			e.Snapshot = listing.Clone()
		}
		r.entries[pos] = e
		return
	}
	r.index[listing.ID] = len(r.entries)
	r.entries = append(r.entries, domain.NewFavoriteEntry(listing, r.now()))
}

func (r *FavoritesReconciler) markLoaded(withToken bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded = true
	r.loadedWithToken = r.loadedWithToken || withToken
}

func (r *FavoritesReconciler) removeLocked(id domain.ListingID) {
	pos, ok := r.index[id]
	if !ok {
		return
	}
	r.entries = append(r.entries[:pos], r.entries[pos+1:]...)
	delete(r.index, id)
	for i := pos; i < len(r.entries); i++ {
		r.index[r.entries[i].ListingID] = i
	}
}

func (r *FavoritesReconciler) copyLocked() []domain.FavoriteEntry {
	out := make([]domain.FavoriteEntry, len(r.entries))
	for i, e := range r.entries {
		e.Snapshot = e.Snapshot.Clone()
		out[i] = e
	}
	return out
}

func (r *FavoritesReconciler) persist(ctx context.Context) error {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()
	return r.store.Save(ctx, r.Favorites())
}

// dedupeEntries drops entries without an id and keeps the first of duplicates.
func dedupeEntries(entries []domain.FavoriteEntry) []domain.FavoriteEntry {
	out := make([]domain.FavoriteEntry, 0, len(entries))
	seen := make(map[domain.ListingID]struct{}, len(entries))
	for _, e := range entries {
		if e.ListingID == "" {
			continue
		}
		if _, dup := seen[e.ListingID]; dup {
			continue
		}
		seen[e.ListingID] = struct{}{}
		out = append(out, e)
	}
	return out
}

// FavoritesSessions hands out one reconciler per device and loads it once.
type FavoritesSessions struct {
	catalog port.CatalogPort
	slots   port.FavoritesSlotProvider
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*favoritesSession
}

type favoritesSession struct {
	reconciler *FavoritesReconciler
	lastSeen   time.Time
}

func NewFavoritesSessions(catalog port.CatalogPort, slots port.FavoritesSlotProvider) *FavoritesSessions {
	return &FavoritesSessions{
		catalog:  catalog,
		slots:    slots,
		now:      time.Now,
		sessions: make(map[string]*favoritesSession),
	}
}

// Open returns the reconciler of deviceID, creating and loading it on first use.
func (s *FavoritesSessions) Open(ctx context.Context, deviceID, userToken string) (usecases_port.FavoritesSession, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("%w: device id is required", domain.ErrInvalidDeviceID)
	}

	s.mu.Lock()
	sess, ok := s.sessions[deviceID]
	if !ok {
		slot, err := s.slots.Slot(deviceID)
		if err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("failed to open favorites slot: %w", err)
		}
		sess = &favoritesSession{reconciler: NewFavoritesReconciler(s.catalog, slot)}
		s.sessions[deviceID] = sess
	}
	sess.lastSeen = s.now()
	s.mu.Unlock()

	sess.reconciler.EnsureLoaded(ctx, userToken)
	return sess.reconciler, nil
}

// RefreshSnapshots pushes a fresh copy of listing into every live session
// that holds it and returns how many were updated. Failed writes are logged;
// the in-memory snapshot is refreshed regardless.
func (s *FavoritesSessions) RefreshSnapshots(ctx context.Context, listing domain.Listing) int {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component":  "FavoritesSessions",
		"method":     "RefreshSnapshots",
		"listing_id": listing.ID,
	})

	s.mu.Lock()
	reconcilers := make([]*FavoritesReconciler, 0, len(s.sessions))
	for _, sess := range s.sessions {
		reconcilers = append(reconcilers, sess.reconciler)
	}
	s.mu.Unlock()

	refreshed := 0
	for _, r := range reconcilers {
		held, err := r.RefreshSnapshot(ctx, listing)
		if err != nil {
			logger.Error("Failed to persist refreshed snapshot", err, nil)
		}
		if held {
			refreshed++
		}
	}
	return refreshed
}

// EvictIdle forgets sessions not used for maxIdle. Their slots stay on disk.
func (s *FavoritesSessions) EvictIdle(maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-maxIdle)
	evicted := 0
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}

func (s *FavoritesSessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
