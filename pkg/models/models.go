package models

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidID is returned when input is neither a workshop ID nor a workshop URL.
var ErrInvalidID = errors.New("invalid workshop id")

var idPattern = regexp.MustCompile(`^[0-9]{10}$`)

// WorkshopItem is everything known about one workshop item. It is also the
// cache sidecar format, so field names are part of the on-disk contract.
type WorkshopItem struct {
	PublisherID   string    `json:"publisher_id"`
	Title         string    `json:"title"`
	FolderName    string    `json:"folder_name"`
	Type          string    `json:"type"`
	Authors       string    `json:"authors"`
	ReleaseDate   string    `json:"release_date"`
	PreviewURL    string    `json:"preview_url"`
	HighlightURLs []string  `json:"highlight_urls"`
	Languages     Languages `json:"languages"`
	ContentSize   string    `json:"content_size"`
	ArchiveParts  []string  `json:"archive_parts"`
	Tags          []string  `json:"tags"`
}

// Metadata is the subset of a WorkshopItem scraped from the Steam pages.
type Metadata struct {
	Title         string
	Authors       string
	ReleaseDate   string
	PreviewURL    string
	HighlightURLs []string
	Tags          []string
}

// Merge applies scraped metadata over the item. Non-empty scraped values win.
func (w *WorkshopItem) Merge(meta *Metadata) {
	if meta == nil {
		return
	}
	if meta.Title != "" {
		w.Title = meta.Title
	}
	if meta.Authors != "" {
		w.Authors = meta.Authors
	}
	if meta.ReleaseDate != "" {
		w.ReleaseDate = meta.ReleaseDate
	}
	if meta.PreviewURL != "" {
		w.PreviewURL = meta.PreviewURL
	}
	if len(meta.HighlightURLs) > 0 {
		w.HighlightURLs = meta.HighlightURLs
	}
	if len(meta.Tags) > 0 {
		w.Tags = meta.Tags
	}
}

// FromMetadata builds an item that has been scraped but never fetched.
func FromMetadata(id string, meta *Metadata) *WorkshopItem {
	item := &WorkshopItem{PublisherID: id}
	item.Merge(meta)
	return item
}

// IsValidID reports whether s has the shape of a publisher ID.
func IsValidID(s string) bool {
	return idPattern.MatchString(s)
}

// ParseID extracts a publisher ID from a bare ID, an item page URL
// (`...filedetails/?id=<id>`) or a changelog URL (`.../changelog/<id>`).
func ParseID(input string) (string, error) {
	s := strings.TrimSpace(input)

	if _, after, ok := strings.Cut(s, "?id="); ok {
		s = after
	} else if _, after, ok := strings.Cut(s, "/changelog/"); ok {
		s = after
	}
	if i := strings.IndexAny(s, "&#/?"); i >= 0 {
		s = s[:i]
	}

	if !IsValidID(s) {
		return "", ErrInvalidID
	}
	return s, nil
}
