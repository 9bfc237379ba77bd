package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workshopcast/pkg/models"
)

func sampleItem(id string) *models.WorkshopItem {
	langs := models.NewLanguages()
	langs["en"] = true
	langs["fr"] = true

	return &models.WorkshopItem{
		PublisherID:   id,
		Title:         "Castle Remake",
		FolderName:    "zm_castle_remake",
		Type:          "map",
		Authors:       "Alice, Bob",
		ReleaseDate:   "2023.03.05",
		PreviewURL:    "https://images.example/p.jpg?imw=637&imh=358",
		HighlightURLs: []string{"https://images.example/1.jpg", "https://images.example/2.jpg"},
		Languages:     langs,
		ContentSize:   "1.2GB",
		ArchiveParts:  []string{"[T7] Castle_Remake (1.2GB).part1.rar", "[T7] Castle_Remake (1.2GB).part2.rar"},
		Tags:          []string{"Map", "Zombies"},
	}
}

func newManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(filepath.Join(t.TempDir(), "telegramcache"), nil)
	require.NoError(t, err)
	return m
}

func writeParts(t *testing.T, dir string, item *models.WorkshopItem) {
	t.Helper()
	for _, part := range item.ArchiveParts {
		require.NoError(t, os.WriteFile(filepath.Join(dir, part), []byte(part), 0644))
	}
}

func TestStoreAndListPendingRoundTrip(t *testing.T) {
	m := newManager(t)
	src := t.TempDir()
	item := sampleItem("2893712123")
	writeParts(t, src, item)

	require.NoError(t, m.Store(item, src))

	for _, part := range item.ArchiveParts {
		assert.FileExists(t, filepath.Join(m.EntryDir(item.PublisherID), part))
		assert.NoFileExists(t, filepath.Join(src, part))
	}

	pending, err := m.ListPending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, item, pending[0])
	assert.False(t, pending[0].Languages["ru"], "false flags survive the round trip")
}

func TestSidecarIsPrettyPrinted(t *testing.T) {
	m := newManager(t)
	item := sampleItem("2893712123")
	item.ArchiveParts = nil

	require.NoError(t, m.Store(item, t.TempDir()))

	data, err := os.ReadFile(filepath.Join(m.EntryDir(item.PublisherID), "2893712123.json"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "{\n  \"publisher_id\": \"2893712123\""))
	assert.Contains(t, string(data), "?imw=637&imh=358", "URLs are not HTML-escaped")
}

func TestStoreReplacesExistingEntry(t *testing.T) {
	m := newManager(t)
	id := "2893712123"
	stale := filepath.Join(m.EntryDir(id), "old.rar")
	require.NoError(t, os.MkdirAll(m.EntryDir(id), 0755))
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0644))

	item := sampleItem(id)
	item.ArchiveParts = nil
	require.NoError(t, m.Store(item, t.TempDir()))

	assert.NoFileExists(t, stale)
}

func TestStoreRejectsBadID(t *testing.T) {
	m := newManager(t)
	err := m.Store(sampleItem("../escape"), t.TempDir())
	assert.ErrorIs(t, err, models.ErrInvalidID)
}

func TestStoreMissingPart(t *testing.T) {
	m := newManager(t)
	assert.Error(t, m.Store(sampleItem("2893712123"), t.TempDir()))
}

func TestListPendingFiltersAndSorts(t *testing.T) {
	m := newManager(t)
	for _, id := range []string{"3000000000", "1000000000"} {
		item := sampleItem(id)
		item.ArchiveParts = nil
		require.NoError(t, m.Store(item, t.TempDir()))
	}
	require.NoError(t, os.Mkdir(filepath.Join(m.Root(), "12345"), 0755))
	require.NoError(t, os.Mkdir(filepath.Join(m.Root(), "not-an-id0"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(m.Root(), "2000000000"), nil, 0644))

	pending, err := m.ListPending()
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "1000000000", pending[0].PublisherID)
	assert.Equal(t, "3000000000", pending[1].PublisherID)

	has, err := m.HasPending()
	require.NoError(t, err)
	assert.True(t, has)
}

func TestHasPendingEmpty(t *testing.T) {
	has, err := newManager(t).HasPending()
	require.NoError(t, err)
	assert.False(t, has)
}

func TestLoadAndEvict(t *testing.T) {
	m := newManager(t)
	id := "2893712123"

	_, err := m.Load(id)
	assert.ErrorIs(t, err, ErrNotCached)

	item := sampleItem(id)
	item.ArchiveParts = nil
	require.NoError(t, m.Store(item, t.TempDir()))
	assert.True(t, m.Has(id))

	loaded, err := m.Load(id)
	require.NoError(t, err)
	assert.Equal(t, item.Title, loaded.Title)

	require.NoError(t, m.Evict(id))
	assert.False(t, m.Has(id))
	assert.NoDirExists(t, m.EntryDir(id))
}

func TestCorruptSidecar(t *testing.T) {
	m := newManager(t)
	id := "2893712123"
	require.NoError(t, os.MkdirAll(m.EntryDir(id), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(m.EntryDir(id), id+".json"), []byte("{"), 0644))

	_, err := m.ListPending()
	assert.Error(t, err)
}
