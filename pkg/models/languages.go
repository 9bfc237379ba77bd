package models

import "strings"

// AllLanguages lists the supported language codes in display order.
var AllLanguages = []string{"bp", "ea", "en", "es", "fr", "ge", "it", "ru"}

const (
	SummaryEnglishOnly = "English only"
	SummaryAll         = "All languages"
)

// Languages flags which language packs an item ships, keyed by code.
type Languages map[string]bool

// NewLanguages returns flags for every supported code, all false.
func NewLanguages() Languages {
	langs := make(Languages, len(AllLanguages))
	for _, code := range AllLanguages {
		langs[code] = false
	}
	return langs
}

// Supported returns the flagged codes in display order.
func (l Languages) Supported() []string {
	var codes []string
	for _, code := range AllLanguages {
		if l[code] {
			codes = append(codes, code)
		}
	}
	return codes
}

// Summary renders the flags for display: "English only" when en is the only
// flag set, "All languages" when every flag is set, otherwise the set codes
// joined with ", " (empty when none is set).
func (l Languages) Summary() string {
	codes := l.Supported()
	switch {
	case len(codes) == 1 && codes[0] == "en":
		return SummaryEnglishOnly
	case len(codes) == len(AllLanguages):
		return SummaryAll
	default:
		return strings.Join(codes, ", ")
	}
}
