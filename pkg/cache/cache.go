package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"syscall"

	"workshopcast/pkg/logger"
	"workshopcast/pkg/models"
)

// ErrNotCached is returned when an item has no cache entry.
var ErrNotCached = errors.New("item is not cached")

// Manager stores packaged items under <root>/<id>/ next to a <id>.json
// sidecar. One process at a time may use a given root.
type Manager struct {
	root   string
	logger logger.Logger
}

// NewManager creates the cache root if needed.
func NewManager(root string, log logger.Logger) (*Manager, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache root: %w", err)
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Manager{root: root, logger: log.WithField("component", "cache")}, nil
}

// Root returns the cache root directory.
func (m *Manager) Root() string {
	return m.root
}

// EntryDir returns the directory holding an item's parts.
func (m *Manager) EntryDir(id string) string {
	return filepath.Join(m.root, id)
}

func (m *Manager) sidecarPath(id string) string {
	return filepath.Join(m.EntryDir(id), id+".json")
}

// Store replaces any existing entry for the item, moves its archive parts
// from sourceDir into the entry and writes the sidecar.
func (m *Manager) Store(item *models.WorkshopItem, sourceDir string) error {
	if !models.IsValidID(item.PublisherID) {
		return fmt.Errorf("%w: %q", models.ErrInvalidID, item.PublisherID)
	}
	dir := m.EntryDir(item.PublisherID)

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to clear cache entry: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache entry: %w", err)
	}

	for _, part := range item.ArchiveParts {
		if err := moveFile(filepath.Join(sourceDir, part), filepath.Join(dir, part)); err != nil {
			return fmt.Errorf("failed to cache %s: %w", part, err)
		}
	}

	if err := m.save(item); err != nil {
		return err
	}

	m.logger.InfoWithFields("Item cached", map[string]interface{}{
		"item_id": item.PublisherID,
		"parts":   len(item.ArchiveParts),
		"path":    dir,
	})
	return nil
}

// save writes the sidecar atomically
func (m *Manager) save(item *models.WorkshopItem) error {
	path := m.sidecarPath(item.PublisherID)
	tempPath := path + ".tmp"

	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary sidecar: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(item); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode sidecar: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync sidecar: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close sidecar: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace sidecar: %w", err)
	}
	return nil
}

// Load reads an item's sidecar.
func (m *Manager) Load(id string) (*models.WorkshopItem, error) {
	file, err := os.Open(m.sidecarPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotCached, id)
		}
		return nil, fmt.Errorf("failed to open sidecar: %w", err)
	}
	defer file.Close()

	var item models.WorkshopItem
	if err := json.NewDecoder(file).Decode(&item); err != nil {
		return nil, fmt.Errorf("failed to decode sidecar for %s: %w", id, err)
	}
	return &item, nil
}

// ListPending loads every entry whose directory name is a publisher ID,
// sorted by ID.
func (m *Manager) ListPending() ([]*models.WorkshopItem, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache root: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() && models.IsValidID(entry.Name()) {
			ids = append(ids, entry.Name())
		}
	}
	sort.Strings(ids)

	items := make([]*models.WorkshopItem, 0, len(ids))
	for _, id := range ids {
		item, err := m.Load(id)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// HasPending reports whether any entry is waiting to be published.
func (m *Manager) HasPending() (bool, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return false, fmt.Errorf("failed to read cache root: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() && models.IsValidID(entry.Name()) {
			return true, nil
		}
	}
	return false, nil
}

// Has reports whether an entry exists for id.
func (m *Manager) Has(id string) bool {
	info, err := os.Stat(m.EntryDir(id))
	return err == nil && info.IsDir()
}

// Evict removes an item's entry.
func (m *Manager) Evict(id string) error {
	if !models.IsValidID(id) {
		return fmt.Errorf("%w: %q", models.ErrInvalidID, id)
	}
	if err := os.RemoveAll(m.EntryDir(id)); err != nil {
		return fmt.Errorf("failed to evict %s: %w", id, err)
	}
	m.logger.WithField("item_id", id).Info("Cache entry evicted")
	return nil
}

// moveFile renames src to dst, copying across filesystems when needed.
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tempPath := dst + ".tmp"
	out, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	_, err = io.Copy(out, in)
	closeErr := out.Close()
	if err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to copy data: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempPath, dst); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return os.Remove(src)
}
