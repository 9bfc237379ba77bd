package steam

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// BaseURL is the workshop file details page
	BaseURL = "https://steamcommunity.com/sharedfiles/filedetails"

	// PreviewSize is appended to preview image URLs
	PreviewSize = "?imw=637&imh=358"

	// HighlightSize is appended to highlight screenshot URLs
	HighlightSize = "?imw=637&imh=358&impolicy=Letterbox&ima=fit"
)

// ItemURL returns the item page URL for id.
func ItemURL(base, id string) string {
	params := url.Values{}
	params.Set("id", id)
	return fmt.Sprintf("%s/?%s", strings.TrimRight(base, "/"), params.Encode())
}

// ChangelogURL returns the changelog page URL for id.
func ChangelogURL(base, id string) string {
	return fmt.Sprintf("%s/changelog/%s", strings.TrimRight(base, "/"), url.PathEscape(id))
}

// stripQuery drops everything from the first '?'.
func stripQuery(u string) string {
	before, _, _ := strings.Cut(u, "?")
	return before
}
