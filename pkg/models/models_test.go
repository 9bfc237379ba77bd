package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"bare id", "2893712123", "2893712123", false},
		{"bare id with spaces", "  2893712123\n", "2893712123", false},
		{"item url", "https://steamcommunity.com/sharedfiles/filedetails/?id=2893712123", "2893712123", false},
		{"item url with search", "https://steamcommunity.com/sharedfiles/filedetails/?id=2893712123&searchtext=zm", "2893712123", false},
		{"changelog url", "https://steamcommunity.com/sharedfiles/filedetails/changelog/2893712123", "2893712123", false},
		{"short id", "12345", "", true},
		{"letters", "28937x2123", "", true},
		{"empty", "", "", true},
		{"unrelated url", "https://example.com/", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseID(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLanguagesSummary(t *testing.T) {
	all := NewLanguages()
	for code := range all {
		all[code] = true
	}

	tests := []struct {
		name string
		set  []string
		want string
	}{
		{"english only", []string{"en"}, "English only"},
		{"single non english", []string{"fr"}, "fr"},
		{"english and french", []string{"en", "fr"}, "en, fr"},
		{"canonical order", []string{"ru", "bp", "it"}, "bp, it, ru"},
		{"none", nil, ""},
		{"all", AllLanguages, "All languages"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			langs := NewLanguages()
			for _, code := range tt.set {
				langs[code] = true
			}
			assert.Equal(t, tt.want, langs.Summary())
		})
	}
}

func TestLanguagesSummaryIgnoresMissingKeys(t *testing.T) {
	assert.Equal(t, "English only", Languages{"en": true}.Summary())
	assert.Equal(t, "", Languages(nil).Summary())
}

func TestMerge(t *testing.T) {
	item := &WorkshopItem{
		PublisherID: "2893712123",
		Title:       "Manifest Title",
		FolderName:  "zm_castle_remake",
		Tags:        []string{"Map"},
	}

	item.Merge(&Metadata{
		Title:         "Castle Remake",
		Authors:       "Alice, Bob",
		ReleaseDate:   "2024.03.05",
		PreviewURL:    "https://images.example/preview.jpg?imw=637&imh=358",
		HighlightURLs: []string{"https://images.example/1.jpg"},
	})

	assert.Equal(t, "Castle Remake", item.Title)
	assert.Equal(t, "Alice, Bob", item.Authors)
	assert.Equal(t, "zm_castle_remake", item.FolderName)
	// empty scraped tags keep the manifest ones
	assert.Equal(t, []string{"Map"}, item.Tags)

	item.Merge(nil)
	assert.Equal(t, "Castle Remake", item.Title)
}

func TestWorkshopItemJSONFieldNames(t *testing.T) {
	item := FromMetadata("2893712123", &Metadata{Title: "Castle"})
	item.Languages = Languages{"en": true}

	data, err := json.Marshal(item)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "2893712123", raw["publisher_id"])
	assert.Equal(t, "Castle", raw["title"])
	assert.Contains(t, raw, "archive_parts")
	assert.Contains(t, raw, "highlight_urls")
	assert.Equal(t, map[string]interface{}{"en": true}, raw["languages"])
}
