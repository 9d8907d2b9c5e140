package postgres_adapter

import (
	"context"
	"errors"
	"strings"
	"testing"

	"property-catalog/internal/adapters/favorites_store"
	"property-catalog/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeDB keeps favorite_slots rows in a map keyed by device/namespace.
type fakeDB struct {
	rows    map[string]string
	execErr error
	readErr error
	execs   []string
}

type fakeRow struct {
	payload string
	err     error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*[]byte)) = []byte(r.payload)
	return nil
}

func (db *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.execs = append(db.execs, sql)
	if db.execErr != nil {
		return pgconn.CommandTag{}, db.execErr
	}
	if strings.Contains(sql, "INSERT INTO favorite_slots") {
		if db.rows == nil {
			db.rows = make(map[string]string)
		}
		db.rows[args[0].(string)+"/"+args[1].(string)] = args[2].(string)
	}
	return pgconn.CommandTag{}, nil
}

func (db *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if db.readErr != nil {
		return fakeRow{err: db.readErr}
	}
	payload, ok := db.rows[args[0].(string)+"/"+args[1].(string)]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{payload: payload}
}

func TestFavoritesSlotRepository_SaveLoadRoundTrip(t *testing.T) {
	db := &fakeDB{}
	repo := newFavoritesSlotRepository(db, "")
	ctx := context.Background()

	slot, err := repo.Slot("device-1")
	if err != nil {
		t.Fatal(err)
	}
	if got := slot.Load(ctx); len(got) != 0 {
		t.Fatalf("missing row must read as empty, got %v", got)
	}

	entries := []domain.FavoriteEntry{
		{ListingID: "3", Snapshot: domain.Listing{ID: "3", Title: "Loft", Price: 1200}, Quantity: 1},
		{ListingID: "8", Snapshot: domain.Listing{ID: "8", Title: "Villa"}, Quantity: 2},
	}
	if err := slot.Save(ctx, entries); err != nil {
		t.Fatal(err)
	}
	if _, ok := db.rows["device-1/"+favorites_store.DefaultNamespace]; !ok {
		t.Fatalf("row must be keyed by device and default namespace, rows=%v", db.rows)
	}

	got := slot.Load(ctx)
	if len(got) != 2 || got[0].ListingID != "3" || got[1].Quantity != 2 || got[0].Snapshot.Title != "Loft" {
		t.Fatalf("unexpected round trip %+v", got)
	}

	other, _ := repo.Slot("device-2")
	if len(other.Load(ctx)) != 0 {
		t.Fatal("slots of different devices must not mix")
	}
}

func TestFavoritesSlotRepository_FailuresReadAsEmpty(t *testing.T) {
	ctx := context.Background()

	corrupt := &fakeDB{rows: map[string]string{"d/cart": `{"not":"an array"}`}}
	slot, _ := newFavoritesSlotRepository(corrupt, "cart").Slot("d")
	if got := slot.Load(ctx); len(got) != 0 {
		t.Fatalf("corrupt payload must read as empty, got %v", got)
	}

	down := &fakeDB{readErr: errors.New("connection reset")}
	slot, _ = newFavoritesSlotRepository(down, "cart").Slot("d")
	if got := slot.Load(ctx); len(got) != 0 {
		t.Fatalf("read failure must read as empty, got %v", got)
	}
}

func TestFavoritesSlotRepository_SaveFailureIsReturned(t *testing.T) {
	db := &fakeDB{execErr: errors.New("read-only transaction")}
	slot, _ := newFavoritesSlotRepository(db, "cart").Slot("d")
	if err := slot.Save(context.Background(), nil); err == nil {
		t.Fatal("expected the write error")
	}
}

func TestFavoritesSlotRepository_RejectsUnsafeDeviceID(t *testing.T) {
	repo := newFavoritesSlotRepository(&fakeDB{}, "cart")
	if _, err := repo.Slot("../etc"); !errors.Is(err, favorites_store.ErrInvalidDeviceID) {
		t.Fatalf("expected invalid device id, got %v", err)
	}
}

func TestFavoritesSlotRepository_EnsureSchema(t *testing.T) {
	db := &fakeDB{}
	if err := newFavoritesSlotRepository(db, "").EnsureSchema(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(db.execs) != 1 || !strings.Contains(db.execs[0], "CREATE TABLE IF NOT EXISTS favorite_slots") {
		t.Fatalf("unexpected statements %v", db.execs)
	}
}
