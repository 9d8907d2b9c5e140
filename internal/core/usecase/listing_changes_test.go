package usecase

import (
	"context"
	"testing"

	"property-catalog/internal/core/domain"
)

func TestListingChanges_UpdateRefreshesHeldSnapshots(t *testing.T) {
	slots := &memorySlots{}
	catalog := &fakeCatalog{
		fetchListing: func(_ domain.Category, id domain.ListingID) (*domain.Listing, error) {
			l := listing(string(id), "Lake House (renovated)", 42000, 4)
			return &l, nil
		},
	}
	sessions := NewFavoritesSessions(catalog, slots)
	ctx := context.Background()

	holder, _ := sessions.Open(ctx, "device-a", "")
	if _, err := holder.Toggle(ctx, listing("7", "Lake House", 30000, 3), ""); err != nil {
		t.Fatal(err)
	}
	other, _ := sessions.Open(ctx, "device-b", "")

	uc := NewListingChangesUseCase(catalog, sessions)
	err := uc.HandleListingChanged(ctx, domain.ListingChangedEvent{
		Type: domain.ListingUpdated, Category: domain.CategoryBuy, ListingID: "7",
	})
	if err != nil {
		t.Fatal(err)
	}

	favs := holder.Favorites()
	if len(favs) != 1 || favs[0].Snapshot.Title != "Lake House (renovated)" || favs[0].Snapshot.Price != 42000 {
		t.Fatalf("snapshot not refreshed: %+v", favs)
	}
	stored, _ := slots.Slot("device-a")
	if got := stored.Load(ctx); len(got) != 1 || got[0].Snapshot.Title != "Lake House (renovated)" {
		t.Fatalf("refreshed snapshot must be persisted, got %+v", got)
	}
	if other.Count() != 0 {
		t.Fatal("sessions that do not hold the listing must stay untouched")
	}
}

func TestListingChanges_IgnoredAndFailingEvents(t *testing.T) {
	ctx := context.Background()

	t.Run("created and deleted events do not fetch", func(t *testing.T) {
		catalog := &fakeCatalog{}
		uc := NewListingChangesUseCase(catalog, NewFavoritesSessions(catalog, &memorySlots{}))
		for _, typ := range []domain.ListingChangeType{domain.ListingCreated, domain.ListingDeleted} {
			if err := uc.HandleListingChanged(ctx, domain.ListingChangedEvent{Type: typ, ListingID: "1"}); err != nil {
				t.Fatalf("%s: %v", typ, err)
			}
		}
		if catalog.count("FetchListing") != 0 {
			t.Fatal("only updates need a fetch")
		}
	})

	t.Run("vanished listing is not an error", func(t *testing.T) {
		catalog := &fakeCatalog{fetchListing: func(domain.Category, domain.ListingID) (*domain.Listing, error) {
			return nil, &domain.CatalogError{Kind: domain.FailureBackend, Err: domain.ErrNotFound}
		}}
		uc := NewListingChangesUseCase(catalog, NewFavoritesSessions(catalog, &memorySlots{}))
		if err := uc.HandleListingChanged(ctx, domain.ListingChangedEvent{Type: domain.ListingUpdated, ListingID: "1"}); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("read failure surfaces", func(t *testing.T) {
		catalog := &fakeCatalog{}
		uc := NewListingChangesUseCase(catalog, NewFavoritesSessions(catalog, &memorySlots{}))
		err := uc.HandleListingChanged(ctx, domain.ListingChangedEvent{Type: domain.ListingUpdated, ListingID: "1"})
		if !domain.IsKind(err, domain.FailureNetwork) {
			t.Fatalf("expected network failure, got %v", err)
		}
	})

	t.Run("missing id is rejected", func(t *testing.T) {
		catalog := &fakeCatalog{}
		uc := NewListingChangesUseCase(catalog, NewFavoritesSessions(catalog, &memorySlots{}))
		if err := uc.HandleListingChanged(ctx, domain.ListingChangedEvent{Type: domain.ListingUpdated}); err != domain.ErrInvalidListingID {
			t.Fatalf("expected invalid id, got %v", err)
		}
	})
}
