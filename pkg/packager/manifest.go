package packager

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"
)

// ManifestName is the file steamcmd leaves in every downloaded item directory.
const ManifestName = "workshop.json"

// ErrManifest is returned when the manifest is absent or lacks required fields.
var ErrManifest = errors.New("workshop manifest missing or invalid")

// Manifest holds the fields read from workshop.json.
type Manifest struct {
	Title      string
	FolderName string
	Type       string
	Tags       []string
}

// ReadManifest parses a workshop.json file. Title and FolderName are required.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifest, err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: %s is not valid JSON", ErrManifest, path)
	}

	fields := gjson.GetManyBytes(data, "Title", "FolderName", "Type", "Tags")
	m := &Manifest{
		Title:      strings.TrimSpace(fields[0].String()),
		FolderName: strings.TrimSpace(fields[1].String()),
		Type:       strings.TrimSpace(fields[2].String()),
		Tags:       parseTags(fields[3]),
	}

	if m.Title == "" {
		return nil, fmt.Errorf("%w: Title is empty", ErrManifest)
	}
	if m.FolderName == "" {
		return nil, fmt.Errorf("%w: FolderName is empty", ErrManifest)
	}
	return m, nil
}

// parseTags accepts either a comma separated string or an array of strings.
func parseTags(value gjson.Result) []string {
	var raw []string
	if value.IsArray() {
		for _, v := range value.Array() {
			raw = append(raw, v.String())
		}
	} else if value.Exists() {
		raw = strings.Split(value.String(), ",")
	}

	var tags []string
	for _, tag := range raw {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
