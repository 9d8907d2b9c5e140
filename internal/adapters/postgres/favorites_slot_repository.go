package postgres_adapter

import (
	"context"
	"errors"
	"fmt"

	"property-catalog/internal/adapters/favorites_store"
	"property-catalog/internal/contextkeys"
	"property-catalog/internal/core/domain"
	"property-catalog/internal/core/port"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is the subset of *pgxpool.Pool the repository uses.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const createFavoriteSlotsTable = `
CREATE TABLE IF NOT EXISTS favorite_slots (
	device_id  TEXT        NOT NULL,
	namespace  TEXT        NOT NULL,
	payload    JSONB       NOT NULL DEFAULT '[]'::jsonb,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (device_id, namespace)
)`

// FavoritesSlotRepository stores every device's favorites slot as one JSONB
// row in favorite_slots. The payload has the same shape as the file slot.
type FavoritesSlotRepository struct {
	db        querier
	namespace string
}

var _ port.FavoritesSlotProvider = (*FavoritesSlotRepository)(nil)

func NewFavoritesSlotRepository(pool *pgxpool.Pool, namespace string) (*FavoritesSlotRepository, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgxpool.Pool cannot be nil")
	}
	return newFavoritesSlotRepository(pool, namespace), nil
}

func newFavoritesSlotRepository(db querier, namespace string) *FavoritesSlotRepository {
	if namespace == "" {
		namespace = favorites_store.DefaultNamespace
	}
	return &FavoritesSlotRepository{db: db, namespace: namespace}
}

// EnsureSchema creates the favorite_slots table when it does not exist.
func (r *FavoritesSlotRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, createFavoriteSlotsTable); err != nil {
		return fmt.Errorf("failed to create favorite_slots table: %w", err)
	}
	return nil
}

func (r *FavoritesSlotRepository) Slot(deviceID string) (port.FavoritesStorePort, error) {
	if err := favorites_store.ValidateDeviceID(deviceID); err != nil {
		return nil, err
	}
	return &postgresSlot{repo: r, deviceID: deviceID}, nil
}

// postgresSlot is one (device, namespace) row.
type postgresSlot struct {
	repo     *FavoritesSlotRepository
	deviceID string
}

func (s *postgresSlot) logger(ctx context.Context, method string) port.LoggerPort {
	return contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component": "FavoritesSlotRepository",
		"method":    method,
		"device_id": s.deviceID,
		"namespace": s.repo.namespace,
	})
}

// Load reads the slot. A missing row, a query failure or an undecodable
// payload all read as an empty slot.
func (s *postgresSlot) Load(ctx context.Context) []domain.FavoriteEntry {
	repoLogger := s.logger(ctx, "Load")

	query := `SELECT payload FROM favorite_slots WHERE device_id = $1 AND namespace = $2`
	var payload []byte
	err := s.repo.db.QueryRow(ctx, query, s.deviceID, s.repo.namespace).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		repoLogger.Debug("No favorites slot yet", nil)
		return nil
	}
	if err != nil {
		repoLogger.Warn("Failed to read favorites slot, treating as empty", port.Fields{"error": err.Error()})
		return nil
	}

	entries, skipped, err := favorites_store.DecodeSlot(payload)
	if err != nil {
		repoLogger.Warn("Corrupt favorites slot, treating as empty", port.Fields{"error": err.Error()})
		return nil
	}
	if skipped > 0 {
		repoLogger.Warn("Skipped malformed favorites entries", port.Fields{"skipped": skipped})
	}
	return entries
}

// Save replaces the slot content in a single upsert.
func (s *postgresSlot) Save(ctx context.Context, entries []domain.FavoriteEntry) error {
	repoLogger := s.logger(ctx, "Save")

	payload, err := favorites_store.EncodeSlot(entries)
	if err != nil {
		return fmt.Errorf("failed to encode favorites slot: %w", err)
	}

	query := `
		INSERT INTO favorite_slots (device_id, namespace, payload, updated_at)
		VALUES ($1, $2, $3::jsonb, now())
		ON CONFLICT (device_id, namespace)
		DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`

	if _, err := s.repo.db.Exec(ctx, query, s.deviceID, s.repo.namespace, string(payload)); err != nil {
		repoLogger.Error("Failed to save favorites slot", err, port.Fields{"count": len(entries)})
		return fmt.Errorf("failed to save favorites slot: %w", err)
	}
	repoLogger.Debug("Favorites slot saved", port.Fields{"count": len(entries)})
	return nil
}
