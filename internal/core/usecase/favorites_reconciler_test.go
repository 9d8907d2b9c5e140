package usecase

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"property-catalog/internal/core/domain"
)

// serverFavorites emulates the remote mirror: a toggle flips membership and
// reports the resulting action.
type serverFavorites struct {
	mu  sync.Mutex
	ids []domain.ListingID
}

func (s *serverFavorites) list(string) ([]domain.ListingID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ListingID(nil), s.ids...), nil
}

func (s *serverFavorites) toggle(id domain.ListingID, _ string) (domain.FavoriteAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := slices.Index(s.ids, id); i >= 0 {
		s.ids = slices.Delete(s.ids, i, i+1)
		return domain.FavoriteRemoved, nil
	}
	s.ids = append(s.ids, id)
	return domain.FavoriteAdded, nil
}

func TestFavoritesReconciler_ToggleRoundTrip(t *testing.T) {
	server := &serverFavorites{}
	catalog := &fakeCatalog{toggleFavorite: server.toggle, fetchFavorites: server.list}
	store := &memoryStore{}
	r := NewFavoritesReconciler(catalog, store)
	ctx := context.Background()
	l := listing("7", "Lake House", 30000, 3)

	on, err := r.Toggle(ctx, l, "token")
	if err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	if !on.Favorited || on.Degraded {
		t.Fatalf("expected favorited, non degraded result, got %+v", on)
	}
	if !r.IsFavorite("7") || !slices.Equal(store.ids(), []domain.ListingID{"7"}) {
		t.Fatalf("listing must be in memory and in the slot, slot=%v", store.ids())
	}

	off, err := r.Toggle(ctx, l, "token")
	if err != nil {
		t.Fatalf("second toggle: %v", err)
	}
	if off.Favorited {
		t.Fatalf("expected unfavorited, got %+v", off)
	}
	if r.Count() != 0 || len(store.ids()) != 0 {
		t.Fatalf("set must be empty again, memory=%d slot=%v", r.Count(), store.ids())
	}
}

func TestFavoritesReconciler_DegradedModeFlipsLocally(t *testing.T) {
	catalog := &fakeCatalog{} // every remote call fails
	store := &memoryStore{}
	r := NewFavoritesReconciler(catalog, store)
	ctx := context.Background()
	l := listing("9", "Farm House", 50000, 5)

	res, err := r.Toggle(ctx, l, "token")
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !res.Favorited || !res.Degraded {
		t.Fatalf("expected degraded add, got %+v", res)
	}
	if catalog.count("ToggleFavorite") != 1 {
		t.Fatalf("remote toggle must be attempted once, got %d", catalog.count("ToggleFavorite"))
	}

	res, _ = r.Toggle(ctx, l, "token")
	if res.Favorited || !res.Degraded {
		t.Fatalf("expected degraded removal, got %+v", res)
	}
	if len(store.ids()) != 0 {
		t.Fatalf("slot must be empty, got %v", store.ids())
	}
}

func TestFavoritesReconciler_AnonymousSessionSkipsRemote(t *testing.T) {
	server := &serverFavorites{}
	catalog := &fakeCatalog{toggleFavorite: server.toggle, fetchFavorites: server.list}
	r := NewFavoritesReconciler(catalog, &memoryStore{})

	res, err := r.Toggle(context.Background(), listing("3", "Loft", 100, 1), "")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Favorited || !res.Degraded {
		t.Fatalf("got %+v", res)
	}
	if catalog.count("ToggleFavorite") != 0 {
		t.Fatal("anonymous toggles must not reach the remote mirror")
	}
}

func TestFavoritesReconciler_LoadFallsBackToLocal(t *testing.T) {
	store := &memoryStore{entries: []domain.FavoriteEntry{
		domain.NewFavoriteEntry(listing("5", "Cached", 10, 1), time.Now()),
	}}
	r := NewFavoritesReconciler(&fakeCatalog{}, store)

	got := r.Load(context.Background(), "token")
	if !slices.Equal(entryIDs(got), []domain.ListingID{"5"}) {
		t.Fatalf("expected local {5}, got %v", entryIDs(got))
	}
	if got[0].Snapshot.Title != "Cached" {
		t.Fatalf("snapshot lost: %+v", got[0].Snapshot)
	}
}

func TestFavoritesReconciler_LoadRemoteIsAuthoritative(t *testing.T) {
	store := &memoryStore{entries: []domain.FavoriteEntry{
		domain.NewFavoriteEntry(listing("1", "Stale local only", 10, 1), time.Now()),
		domain.NewFavoriteEntry(listing("2", "Kept snapshot", 20, 2), time.Now()),
	}}
	var enrichedWith []domain.ListingID
	catalog := &fakeCatalog{
		fetchFavorites: func(string) ([]domain.ListingID, error) {
			return []domain.ListingID{"2", "3", "2", "4"}, nil
		},
		fetchListingsByIDs: func(ids []domain.ListingID) ([]domain.Listing, error) {
			enrichedWith = ids
			// 4 is gone from the catalog.
			return []domain.Listing{{ID: "3", Title: "Fresh", Rating: 9}}, nil
		},
	}
	r := NewFavoritesReconciler(catalog, store)

	got := r.Load(context.Background(), "token")

	if !slices.Equal(entryIDs(got), []domain.ListingID{"2", "3", "4"}) {
		t.Fatalf("ids must equal the deduped remote list, got %v", entryIDs(got))
	}
	if !slices.Equal(enrichedWith, []domain.ListingID{"3", "4"}) {
		t.Fatalf("only unknown ids are enriched, got %v", enrichedWith)
	}
	if got[0].Snapshot.Title != "Kept snapshot" {
		t.Errorf("cached snapshot must be kept, got %q", got[0].Snapshot.Title)
	}
	if got[1].Snapshot.Title != "Fresh" || got[1].Snapshot.Rating != 5 {
		t.Errorf("enriched snapshot must be sanitized, got %+v", got[1].Snapshot)
	}
	if got[2].Snapshot.ID != "4" || got[2].Snapshot.Title != "" {
		t.Errorf("missing listing must stay as a placeholder, got %+v", got[2].Snapshot)
	}
	if !slices.Equal(store.ids(), []domain.ListingID{"2", "3", "4"}) {
		t.Errorf("reconciled set must be persisted, got %v", store.ids())
	}
}

func TestFavoritesReconciler_EnrichmentFailureKeepsPlaceholders(t *testing.T) {
	catalog := &fakeCatalog{
		fetchFavorites: func(string) ([]domain.ListingID, error) {
			return []domain.ListingID{"8"}, nil
		},
	}
	r := NewFavoritesReconciler(catalog, &memoryStore{})

	got := r.Load(context.Background(), "token")
	if !slices.Equal(entryIDs(got), []domain.ListingID{"8"}) {
		t.Fatalf("got %v", entryIDs(got))
	}
}

func TestFavoritesReconciler_PlaceholderIsEnrichedOnNextLoad(t *testing.T) {
	store := &memoryStore{}
	remote := func(string) ([]domain.ListingID, error) {
		return []domain.ListingID{"8", "9"}, nil
	}
	ctx := context.Background()

	offline := &fakeCatalog{fetchFavorites: remote}
	NewFavoritesReconciler(offline, store).Load(ctx, "token")
	if got := store.Load(ctx); len(got) != 2 || got[0].Snapshot.HasDetails() {
		t.Fatalf("first load must persist placeholders, got %+v", got)
	}
	addedAt := store.Load(ctx)[0].AddedAt

	var enrichedWith []domain.ListingID
	healthy := &fakeCatalog{
		fetchFavorites: remote,
		fetchListingsByIDs: func(ids []domain.ListingID) ([]domain.Listing, error) {
			enrichedWith = ids
			return []domain.Listing{{ID: "8", Title: "Cottage"}}, nil
		},
	}
	got := NewFavoritesReconciler(healthy, store).Load(ctx, "token")

	if healthy.count("FetchListingsByIDs") != 1 || !slices.Equal(enrichedWith, []domain.ListingID{"8", "9"}) {
		t.Fatalf("cached placeholders must be enriched again, calls=%d ids=%v", healthy.count("FetchListingsByIDs"), enrichedWith)
	}
	if got[0].Snapshot.Title != "Cottage" || !got[0].AddedAt.Equal(addedAt) {
		t.Fatalf("enriched entry must keep its place and date, got %+v", got[0])
	}
	if got[1].Snapshot.HasDetails() {
		t.Fatalf("unknown listing stays a placeholder, got %+v", got[1].Snapshot)
	}
	if persisted := store.Load(ctx); persisted[0].Snapshot.Title != "Cottage" {
		t.Fatalf("enriched snapshot must be persisted, got %+v", persisted[0].Snapshot)
	}
}

func TestFavoritesReconciler_ToggleEnrichesBareListing(t *testing.T) {
	tests := []struct {
		name      string
		lookup    func(ids []domain.ListingID) ([]domain.Listing, error)
		wantTitle string
	}{
		{
			name: "lookup succeeds",
			lookup: func(ids []domain.ListingID) ([]domain.Listing, error) {
				return []domain.Listing{{ID: ids[0], Title: "Barn", Rating: 8}}, nil
			},
			wantTitle: "Barn",
		},
		{name: "lookup fails", lookup: nil, wantTitle: ""},
		{
			name: "listing gone",
			lookup: func([]domain.ListingID) ([]domain.Listing, error) {
				return nil, nil
			},
			wantTitle: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := &serverFavorites{}
			catalog := &fakeCatalog{toggleFavorite: server.toggle, fetchListingsByIDs: tt.lookup}
			store := &memoryStore{}
			r := NewFavoritesReconciler(catalog, store)

			res, err := r.Toggle(context.Background(), domain.Listing{ID: "12"}, "token")
			if err != nil {
				t.Fatal(err)
			}
			if !res.Favorited || res.Degraded {
				t.Fatalf("got %+v", res)
			}
			favs := r.Favorites()
			if len(favs) != 1 || favs[0].Snapshot.Title != tt.wantTitle {
				t.Fatalf("snapshot = %+v, want title %q", favs, tt.wantTitle)
			}
			if favs[0].Snapshot.Rating > 5 {
				t.Fatalf("enriched snapshot must be sanitized, got %+v", favs[0].Snapshot)
			}
			if persisted := store.Load(context.Background()); persisted[0].Snapshot.Title != tt.wantTitle {
				t.Fatalf("slot = %+v", persisted)
			}
		})
	}
}

func TestFavoritesReconciler_NormalizedIDsMatch(t *testing.T) {
	server := &serverFavorites{ids: []domain.ListingID{domain.MustListingID("5")}}
	catalog := &fakeCatalog{toggleFavorite: server.toggle, fetchFavorites: server.list}
	r := NewFavoritesReconciler(catalog, &memoryStore{})
	ctx := context.Background()
	r.Load(ctx, "token")

	// The UI may send the id as "5.0" or " 05 "; all normalize to "5".
	for _, raw := range []string{"5", "5.0", " 05 "} {
		if !r.IsFavorite(domain.MustListingID(raw)) {
			t.Errorf("%q must be recognized as a favorite", raw)
		}
	}

	res, err := r.Toggle(ctx, domain.Listing{ID: domain.MustListingID("5.0")}, "token")
	if err != nil {
		t.Fatal(err)
	}
	if res.Favorited || r.Count() != 0 {
		t.Fatalf("toggle must remove the existing favorite, got %+v count=%d", res, r.Count())
	}
}

func TestFavoritesReconciler_SaveFailureIsReported(t *testing.T) {
	store := &memoryStore{failErr: errDiskFull}
	r := NewFavoritesReconciler(&fakeCatalog{}, store)

	res, err := r.Toggle(context.Background(), listing("1", "A", 1, 1), "")
	if !errors.Is(err, errDiskFull) {
		t.Fatalf("expected wrapped save error, got %v", err)
	}
	if !res.Favorited || !r.IsFavorite("1") {
		t.Fatal("in-memory state must reflect the toggle")
	}
}

func TestFavoritesReconciler_ConcurrentTogglesAreCoalesced(t *testing.T) {
	release := make(chan struct{})
	var remoteCalls atomic.Int32
	catalog := &fakeCatalog{
		toggleFavorite: func(domain.ListingID, string) (domain.FavoriteAction, error) {
			remoteCalls.Add(1)
			<-release
			return domain.FavoriteAdded, nil
		},
	}
	r := NewFavoritesReconciler(catalog, &memoryStore{})
	l := listing("11", "Penthouse", 90000, 4)

	const callers = 5
	var wg sync.WaitGroup
	results := make([]domain.ToggleResult, callers)
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			results[i], _ = r.Toggle(context.Background(), l, "token")
		}(i)
	}

	// Let the first call reach the remote before releasing it.
	deadline := time.Now().Add(2 * time.Second)
	for remoteCalls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, res := range results {
		if !res.Favorited {
			t.Errorf("caller %d saw %+v", i, res)
		}
	}
	if !r.IsFavorite("11") || r.Count() != 1 {
		t.Fatalf("expected exactly one favorite, count=%d", r.Count())
	}
}

func TestFavoritesReconciler_CoalescedToggleSurvivesFirstCallerCancel(t *testing.T) {
	release := make(chan struct{})
	var remoteCalls atomic.Int32
	catalog := &fakeCatalog{
		toggleFavorite: func(domain.ListingID, string) (domain.FavoriteAction, error) {
			remoteCalls.Add(1)
			<-release
			return domain.FavoriteAdded, nil
		},
	}
	r := NewFavoritesReconciler(catalog, &memoryStore{})
	l := listing("13", "Villa", 120000, 6)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	var first, second domain.ToggleResult
	wg.Add(2)
	go func() {
		defer wg.Done()
		first, _ = r.Toggle(firstCtx, l, "token")
	}()

	deadline := time.Now().Add(2 * time.Second)
	for remoteCalls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	go func() {
		defer wg.Done()
		second, _ = r.Toggle(context.Background(), l, "token")
	}()
	time.Sleep(20 * time.Millisecond)

	// the first client disconnects while the shared remote call is running
	cancelFirst()
	close(release)
	wg.Wait()

	if second.Degraded || !second.Favorited {
		t.Fatalf("second caller must get the remote answer, got %+v", second)
	}
	if first.Degraded {
		t.Fatalf("shared call must not see the cancellation, got %+v", first)
	}
	if !r.IsFavorite("13") || r.Count() != 1 {
		t.Fatalf("expected exactly one favorite, count=%d", r.Count())
	}
}

func TestFavoritesReconciler_RemoveAndClear(t *testing.T) {
	server := &serverFavorites{}
	catalog := &fakeCatalog{toggleFavorite: server.toggle, fetchFavorites: server.list}
	store := &memoryStore{}
	r := NewFavoritesReconciler(catalog, store)
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3"} {
		if _, err := r.Toggle(ctx, listing(id, "L"+id, 100, 1), "token"); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := r.Remove(ctx, "2", "token"); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(store.ids(), []domain.ListingID{"1", "3"}) {
		t.Fatalf("after remove got %v", store.ids())
	}
	if slices.Contains(server.ids, domain.ListingID("2")) {
		t.Fatal("remote mirror must drop the removed id")
	}

	// Removing a non member is a no-op and never reaches the remote.
	before := catalog.count("ToggleFavorite")
	if _, err := r.Remove(ctx, "42", "token"); err != nil {
		t.Fatal(err)
	}
	if catalog.count("ToggleFavorite") != before {
		t.Fatal("remove of a non member must not call the remote")
	}

	if err := r.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if r.Count() != 0 || len(store.ids()) != 0 {
		t.Fatal("clear must empty memory and slot")
	}
}

func TestFavoritesReconciler_RemoveWhenRemoteDisagrees(t *testing.T) {
	// Local holds 6 from an offline session, the mirror does not.
	server := &serverFavorites{}
	catalog := &fakeCatalog{toggleFavorite: server.toggle}
	store := &memoryStore{entries: []domain.FavoriteEntry{
		domain.NewFavoriteEntry(listing("6", "Offline pick", 1, 1), time.Now()),
	}}
	r := NewFavoritesReconciler(catalog, store)
	ctx := context.Background()
	r.Load(ctx, "")

	res, err := r.Remove(ctx, "6", "token")
	if err != nil {
		t.Fatal(err)
	}
	if res.Favorited || r.IsFavorite("6") || len(server.ids) != 0 {
		t.Fatalf("both sides must end without 6: res=%+v server=%v", res, server.ids)
	}
}

func TestFavoritesSessions_OpenLoadsOncePerDevice(t *testing.T) {
	server := &serverFavorites{ids: []domain.ListingID{"1"}}
	catalog := &fakeCatalog{
		fetchFavorites: server.list,
		fetchListingsByIDs: func(ids []domain.ListingID) ([]domain.Listing, error) {
			return nil, nil
		},
	}
	sessions := NewFavoritesSessions(catalog, &memorySlots{})
	ctx := context.Background()

	a, err := sessions.Open(ctx, "device-a", "token")
	if err != nil {
		t.Fatal(err)
	}
	again, _ := sessions.Open(ctx, "device-a", "token")
	if a != again {
		t.Fatal("same device must get the same session")
	}
	if catalog.count("FetchFavorites") != 1 {
		t.Fatalf("initial load must run once, ran %d times", catalog.count("FetchFavorites"))
	}
	if a.Count() != 1 {
		t.Fatalf("expected the remote favorite, got %d", a.Count())
	}

	if _, err := sessions.Open(ctx, "", "token"); err == nil {
		t.Fatal("empty device id must be rejected")
	}
}

func TestFavoritesSessions_TokenAfterAnonymousOpenReconciles(t *testing.T) {
	server := &serverFavorites{ids: []domain.ListingID{"1"}}
	catalog := &fakeCatalog{
		fetchFavorites: server.list,
		fetchListingsByIDs: func(ids []domain.ListingID) ([]domain.Listing, error) {
			return []domain.Listing{{ID: "1", Title: "Remote pick"}}, nil
		},
	}
	sessions := NewFavoritesSessions(catalog, &memorySlots{})
	ctx := context.Background()

	steps := []struct {
		token         string
		wantFetches   int
		wantFavorites int
	}{
		{token: "", wantFetches: 0, wantFavorites: 0},
		{token: "", wantFetches: 0, wantFavorites: 0},
		{token: "token", wantFetches: 1, wantFavorites: 1},
		{token: "token", wantFetches: 1, wantFavorites: 1},
		{token: "", wantFetches: 1, wantFavorites: 1},
	}
	for i, step := range steps {
		s, err := sessions.Open(ctx, "device-a", step.token)
		if err != nil {
			t.Fatal(err)
		}
		if got := catalog.count("FetchFavorites"); got != step.wantFetches {
			t.Fatalf("step %d: remote loads = %d, want %d", i, got, step.wantFetches)
		}
		if s.Count() != step.wantFavorites {
			t.Fatalf("step %d: favorites = %d, want %d", i, s.Count(), step.wantFavorites)
		}
	}
	if favs := sessions.sessions["device-a"].reconciler.Favorites(); favs[0].Snapshot.Title != "Remote pick" {
		t.Fatalf("remote favorite must be merged, got %+v", favs)
	}
}

func TestFavoritesSessions_EvictIdle(t *testing.T) {
	sessions := NewFavoritesSessions(&fakeCatalog{}, &memorySlots{})
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	sessions.now = func() time.Time { return now }
	ctx := context.Background()

	_, _ = sessions.Open(ctx, "old", "")
	now = now.Add(time.Hour)
	_, _ = sessions.Open(ctx, "fresh", "")

	if n := sessions.EvictIdle(30 * time.Minute); n != 1 {
		t.Fatalf("expected one eviction, got %d", n)
	}
	if sessions.Len() != 1 {
		t.Fatalf("expected one session left, got %d", sessions.Len())
	}
}
