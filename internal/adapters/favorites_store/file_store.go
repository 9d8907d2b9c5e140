package favorites_store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"property-catalog/internal/contextkeys"
	"property-catalog/internal/core/domain"
	"property-catalog/internal/core/port"
)

// DefaultNamespace is the fixed slot key the browser cart used.
const DefaultNamespace = "cart"

var ErrInvalidDeviceID = domain.ErrInvalidDeviceID

var deviceIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidateDeviceID rejects ids that are unsafe as a path segment or key.
func ValidateDeviceID(deviceID string) error {
	if !deviceIDPattern.MatchString(deviceID) {
		return fmt.Errorf("%w: %q", ErrInvalidDeviceID, deviceID)
	}
	return nil
}

// FileSlotProvider keeps one JSON file per device: <dir>/<device>/<namespace>.json.
type FileSlotProvider struct {
	dir       string
	namespace string
}

var _ port.FavoritesSlotProvider = (*FileSlotProvider)(nil)

func NewFileSlotProvider(dir, namespace string) (*FileSlotProvider, error) {
	if dir == "" {
		return nil, fmt.Errorf("favorites directory cannot be empty")
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create favorites directory %q: %w", dir, err)
	}
	return &FileSlotProvider{dir: dir, namespace: namespace}, nil
}

func (p *FileSlotProvider) Slot(deviceID string) (port.FavoritesStorePort, error) {
	if err := ValidateDeviceID(deviceID); err != nil {
		return nil, err
	}
	return &FileSlot{
		path: filepath.Join(p.dir, deviceID, p.namespace+".json"),
	}, nil
}

// FileSlot is a single favorites slot on disk.
type FileSlot struct {
	path string
	mu   sync.Mutex
}

var _ port.FavoritesStorePort = (*FileSlot)(nil)

// NewFileSlot opens a slot at an explicit path.
func NewFileSlot(path string) *FileSlot {
	return &FileSlot{path: path}
}

func (s *FileSlot) Load(ctx context.Context) []domain.FavoriteEntry {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component": "FileSlot",
		"path":      s.path,
	})

	s.mu.Lock()
	data, err := os.ReadFile(s.path)
	s.mu.Unlock()

	if errors.Is(err, os.ErrNotExist) {
		return []domain.FavoriteEntry{}
	}
	if err != nil {
		logger.Warn("Favorites slot unreadable, starting empty", port.Fields{"error": err.Error()})
		return []domain.FavoriteEntry{}
	}

	entries, skipped, err := DecodeSlot(data)
	if err != nil {
		logger.Warn("Favorites slot corrupt, starting empty", port.Fields{"error": err.Error()})
		return []domain.FavoriteEntry{}
	}
	if skipped > 0 {
		logger.Warn("Skipped unreadable favorites entries", port.Fields{"skipped": skipped})
	}
	return entries
}

// Save replaces the slot. The file is written to a temp file and renamed so
// a crash never leaves a half-written slot behind.
func (s *FileSlot) Save(ctx context.Context, entries []domain.FavoriteEntry) error {
	data, err := EncodeSlot(entries)
	if err != nil {
		return fmt.Errorf("failed to encode favorites: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create slot directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".slot-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp slot file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write favorites slot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync favorites slot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close favorites slot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace favorites slot: %w", err)
	}

	contextkeys.LoggerFromContext(ctx).Debug("Favorites slot saved", port.Fields{
		"component": "FileSlot",
		"path":      s.path,
		"count":     len(entries),
	})
	return nil
}
