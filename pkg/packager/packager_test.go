package packager

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workshopcast/pkg/config"
	"workshopcast/pkg/models"
)

const itemID = "2893712123"

// fakeArchiver records its invocation and leaves the given volumes behind.
type fakeArchiver struct {
	volumes []string
	code    int
	dir     string
	args    []string
}

func (f *fakeArchiver) Run(ctx context.Context, dir, name string, args []string, onLine func(string)) (int, error) {
	f.dir = dir
	f.args = args
	onLine("RAR 6.24   Copyright (c) 1993-2023 Alexander Roshal")
	for _, v := range f.volumes {
		if err := os.WriteFile(filepath.Join(dir, v), []byte("rar"), 0644); err != nil {
			return -1, err
		}
	}
	return f.code, nil
}

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0644))
}

func setupItem(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Paths.ContentRoot = t.TempDir()

	item := filepath.Join(cfg.Paths.ContentRoot, itemID)
	require.NoError(t, os.MkdirAll(item, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(item, ManifestName),
		[]byte(`{"Title":"Castle: Remake!","FolderName":"zm_castle_remake","Type":"map","Tags":"Map, Zombies"}`), 0644))
	writeFile(t, filepath.Join(item, "en_audio", "sound.pak"), 1300)
	writeFile(t, filepath.Join(item, "fr_audio", "sound.pak"), 1000)
	writeFile(t, filepath.Join(item, "zone", "core.ff"), 2000)
	return cfg
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0.0B"},
		{5, "5.0B"},
		{950, "950.0B"},
		{999, "999.0B"},
		{1000, "1.0KB"},
		{1500000, "1.5MB"},
		{2_340_000_000, "2.3GB"},
		{7_000_000_000_000, "7.0TB"},
		{4_200_000_000_000_000, "4200.0TB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatBytes(tt.in), "FormatBytes(%d)", tt.in)
	}
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Castle Remake", "Castle_Remake"},
		{"Castle: Remake!", "Castle_Remake_"},
		{"  Der   Riese -- Declassified ", "_Der_Riese_Declassified_"},
		{"Café Élite", "Cafe_Elite"},
		{"zm_castle_remake", "zm_castle_remake"},
	}

	for _, tt := range tests {
		got := NormalizeTitle(tt.in)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, got, NormalizeTitle(got), "normalization must be idempotent")
	}

	assert.Equal(t, NormalizeTitle("Kino der Toten!!"), NormalizeTitle("Kino   der-Toten?"))
}

func TestDetectLanguages(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "en_audio"), 0755))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "fr_audio"), 0755))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "zone"), 0755))

	langs, err := DetectLanguages(dir)
	require.NoError(t, err)

	for _, code := range models.AllLanguages {
		assert.Equal(t, code == "en" || code == "fr", langs[code], code)
	}
	assert.NotEqual(t, models.SummaryEnglishOnly, langs.Summary())
	assert.Equal(t, "en, fr", langs.Summary())
}

func TestReadManifest(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "ok.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"Title":"T","FolderName":"f","Tags":["Map"," Mod "]}`), 0644))
	m, err := ReadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Map", "Mod"}, m.Tags)

	_, err = ReadManifest(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, ErrManifest)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"Title":`), 0644))
	_, err = ReadManifest(bad)
	assert.ErrorIs(t, err, ErrManifest)

	noFolder := filepath.Join(dir, "nofolder.json")
	require.NoError(t, os.WriteFile(noFolder, []byte(`{"Title":"T"}`), 0644))
	_, err = ReadManifest(noFolder)
	assert.ErrorIs(t, err, ErrManifest)
}

func TestPackage(t *testing.T) {
	cfg := setupItem(t)
	root := cfg.Paths.ContentRoot
	base := "[T7] Castle_Remake_ (4.4KB)"

	archiver := &fakeArchiver{volumes: []string{base + ".part2.rar", base + ".part1.rar"}}
	p := New(cfg, archiver, nil, nil)

	res, err := p.Package(context.Background(), itemID)
	require.NoError(t, err)

	assert.Equal(t, "Castle: Remake!", res.Title)
	assert.Equal(t, "map", res.Type)
	assert.Equal(t, []string{"Map", "Zombies"}, res.Tags)
	assert.Equal(t, "4.4KB", res.ContentSize)
	assert.Equal(t, "en, fr", res.Languages.Summary())
	assert.Equal(t, []string{base + ".part1.rar", base + ".part2.rar"}, res.Parts)
	assert.Equal(t, root, res.Dir)

	// the archiver runs in the content root on relative paths
	assert.Equal(t, root, archiver.dir)
	assert.Equal(t, []string{
		"a", "-v49m", "-zREADME.txt", "-df", "-ep1",
		base + ".rar",
		filepath.Join("Castle_Remake_", "zm_castle_remake"),
		"README.txt",
	}, archiver.args)

	// contents moved under <title>/<folder>/zone
	zone := filepath.Join(root, "Castle_Remake_", "zm_castle_remake", "zone")
	assert.FileExists(t, filepath.Join(zone, "en_audio", "sound.pak"))
	assert.FileExists(t, filepath.Join(zone, "zone", "core.ff"))
	assert.NoDirExists(t, filepath.Join(root, itemID))

	readme, err := os.ReadFile(filepath.Join(root, ReadmeName))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(readme), "====== COD Resources"))

	item := res.Item(itemID)
	assert.Equal(t, itemID, item.PublisherID)
	assert.Equal(t, res.Parts, item.ArchiveParts)
}

func TestPackageIgnoresExitStatusWhenPartsExist(t *testing.T) {
	cfg := setupItem(t)
	archiver := &fakeArchiver{volumes: []string{"[T7] Castle_Remake_ (4.4KB).rar"}, code: 1}

	res, err := New(cfg, archiver, nil, nil).Package(context.Background(), itemID)
	require.NoError(t, err)
	assert.Len(t, res.Parts, 1)
}

func TestPackageWithoutParts(t *testing.T) {
	cfg := setupItem(t)

	_, err := New(cfg, &fakeArchiver{}, nil, nil).Package(context.Background(), itemID)
	assert.ErrorIs(t, err, ErrNoParts)
}

func TestPackageMissingManifest(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Paths.ContentRoot = t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(cfg.Paths.ContentRoot, itemID), 0755))

	archiver := &fakeArchiver{}
	_, err := New(cfg, archiver, nil, nil).Package(context.Background(), itemID)
	assert.ErrorIs(t, err, ErrManifest)
	assert.Nil(t, archiver.args, "archiver must not run without a manifest")
}

func TestPartsIgnoreOtherArchives(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Paths.ContentRoot = t.TempDir()
	for _, name := range []string{"[T7] Other (1.0MB).rar", "[T7] Castle (1.0MB).rar", "[T7] Castle (1.0MB).txt"} {
		writeFile(t, filepath.Join(cfg.Paths.ContentRoot, name), 1)
	}

	parts, err := New(cfg, nil, nil, nil).findParts("[T7] Castle (1.0MB)")
	require.NoError(t, err)
	assert.Equal(t, []string{"[T7] Castle (1.0MB).rar"}, parts)
}
