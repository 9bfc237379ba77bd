package packager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"workshopcast/pkg/command"
	"workshopcast/pkg/config"
	errs "workshopcast/pkg/errors"
	"workshopcast/pkg/logger"
	"workshopcast/pkg/models"
)

// ReadmeName is the instructions file embedded as archive comment and entry.
const ReadmeName = "README.txt"

// ReadmeContents explains where the extracted folder goes.
const ReadmeContents = `====== COD Resources ======

 > MAPAS / FOR MAPS
- Coloque essa pasta na pasta usermaps (crie-a caso não exista) onde fica seu Black Ops III para carregar no jogo.
- Drag this folder to your usermaps folder inside Black Ops III to load in game.

 > MODS / FOR MODS
- Coloque essa pasta na pasta mods (crie-a caso não exista) onde fica seu Black Ops III para carregar no jogo.
- Drag this folder to your mods folder inside Black Ops III to load in game.

============================
`

// ErrNoParts is returned when the archiver left no volume behind.
var ErrNoParts = errors.New("archiver produced no archive parts")

// Result describes a packaged item.
type Result struct {
	Manifest
	ContentSize string
	Languages   models.Languages
	// Parts are archive volume file names inside Dir, in volume order.
	Parts []string
	Dir   string
}

// Item converts the result into a workshop item for the given ID.
func (r *Result) Item(id string) *models.WorkshopItem {
	return &models.WorkshopItem{
		PublisherID:  id,
		Title:        r.Title,
		FolderName:   r.FolderName,
		Type:         r.Type,
		Tags:         r.Tags,
		Languages:    r.Languages,
		ContentSize:  r.ContentSize,
		ArchiveParts: r.Parts,
	}
}

// Packager turns a downloaded item directory into split RAR volumes.
type Packager struct {
	contentRoot string
	tools       config.ToolsConfig
	runner      command.Runner
	log         logger.Logger
	out         io.Writer
}

// New creates a packager. out receives the archiver output and may be nil.
func New(cfg *config.Config, runner command.Runner, log logger.Logger, out io.Writer) *Packager {
	if runner == nil {
		runner = command.ExecRunner{}
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	if out == nil {
		out = io.Discard
	}
	return &Packager{
		contentRoot: cfg.Paths.ContentRoot,
		tools:       cfg.Tools,
		runner:      runner,
		log:         log.WithField("component", "packager"),
		out:         out,
	}
}

// ItemDir is where steamcmd leaves the downloaded item.
func (p *Packager) ItemDir(id string) string {
	return filepath.Join(p.contentRoot, id)
}

// ArchiveBase is the archive name without the volume suffix.
func (p *Packager) ArchiveBase(normTitle, size string) string {
	return fmt.Sprintf("%s %s (%s)", p.tools.ArchivePrefix, normTitle, size)
}

// Package reads the manifest, measures the item, moves it under
// <content root>/<title>/<folder>/zone and archives that folder.
func (p *Packager) Package(ctx context.Context, id string) (*Result, error) {
	log := p.log.WithField("item_id", id)
	itemDir := p.ItemDir(id)

	manifest, err := ReadManifest(filepath.Join(itemDir, ManifestName))
	if err != nil {
		return nil, err
	}

	size, err := DirSize(itemDir)
	if err != nil {
		return nil, fmt.Errorf("failed to measure %s: %w", itemDir, err)
	}
	langs, err := DetectLanguages(itemDir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", itemDir, err)
	}

	res := &Result{
		Manifest:    *manifest,
		ContentSize: FormatBytes(size),
		Languages:   langs,
		Dir:         p.contentRoot,
	}
	normTitle := NormalizeTitle(manifest.Title)

	log.WithFields(map[string]interface{}{
		"title":     manifest.Title,
		"size":      res.ContentSize,
		"languages": langs.Supported(),
	}).Info("Manifest read")

	folder := filepath.Join(normTitle, manifest.FolderName)
	if err := relocate(itemDir, filepath.Join(p.contentRoot, folder, "zone")); err != nil {
		return nil, err
	}

	if err := os.WriteFile(filepath.Join(p.contentRoot, ReadmeName), []byte(ReadmeContents), 0644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", ReadmeName, err)
	}

	base := p.ArchiveBase(normTitle, res.ContentSize)
	args := []string{
		"a",
		"-v" + p.tools.VolumeSize,
		"-z" + ReadmeName,
		"-df",
		"-ep1",
		base + ".rar",
		folder,
		ReadmeName,
	}

	code, err := p.runner.Run(ctx, p.contentRoot, p.tools.Archiver, args, func(line string) {
		fmt.Fprintln(p.out, line)
		log.Debug(line)
	})
	if err != nil {
		return nil, errs.Tool("archiver could not run", err)
	}
	if code != 0 {
		log.WithField("exit_code", code).Warn("Archiver exited abnormally")
	}

	// -df leaves the emptied title directory behind
	_ = os.Remove(filepath.Join(p.contentRoot, folder))
	_ = os.Remove(filepath.Join(p.contentRoot, normTitle))

	res.Parts, err = p.findParts(base)
	if err != nil {
		return nil, err
	}
	if len(res.Parts) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoParts, base)
	}

	logger.LogToolRun(log, "archiver", 1, fmt.Sprintf("%d parts", len(res.Parts)), nil)
	return res, nil
}

func (p *Packager) findParts(base string) ([]string, error) {
	entries, err := os.ReadDir(p.contentRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to list archive parts: %w", err)
	}

	var parts []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.Type().IsRegular() && strings.HasPrefix(name, base) && strings.HasSuffix(name, ".rar") {
			parts = append(parts, name)
		}
	}
	sort.Strings(parts)
	return parts, nil
}

// Available checks that the archiver can be found.
func (p *Packager) Available() error {
	if _, err := exec.LookPath(p.tools.Archiver); err != nil {
		return errs.Tool(fmt.Sprintf("archiver not found at %s", p.tools.Archiver), err)
	}
	return nil
}

// relocate moves every entry of src into dst, then removes src.
func relocate(src, dst string) error {
	if err := os.MkdirAll(dst, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", src, err)
	}
	for _, entry := range entries {
		target := filepath.Join(dst, entry.Name())
		if err := os.RemoveAll(target); err != nil {
			return fmt.Errorf("failed to replace %s: %w", target, err)
		}
		if err := os.Rename(filepath.Join(src, entry.Name()), target); err != nil {
			return fmt.Errorf("failed to move %s: %w", entry.Name(), err)
		}
	}

	return os.RemoveAll(src)
}
