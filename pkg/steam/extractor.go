package steam

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	errs "workshopcast/pkg/errors"
	"workshopcast/pkg/models"
)

// Field names reported by NotFound extraction errors.
const (
	FieldTitle       = "title"
	FieldAuthors     = "authors"
	FieldPreview     = "preview"
	FieldHighlights  = "highlights"
	FieldReleaseDate = "release_date"
)

// DateLayout is the release date format stored on items.
const DateLayout = "2006.01.02"

const (
	enlargeStart = "ShowEnlargedImagePreview( '"
	enlargeEnd   = "' );"
)

// changelog dates come with or without a year, day first or month first
var changelogLayouts = []struct {
	layout   string
	yearless string
}{
	{"2 Jan, 2006", "2 Jan"},
	{"Jan 2, 2006", "Jan 2"},
}

// Documents are the two pages metadata is extracted from.
type Documents struct {
	Item      *goquery.Document
	Changelog *goquery.Document
}

// Extractor turns fetched pages into metadata. Implementations fail with a
// not_found error naming the missing field.
type Extractor interface {
	Extract(docs Documents) (*models.Metadata, error)
}

// HTMLExtractor reads the Steam community workshop markup.
type HTMLExtractor struct {
	// Now supplies the date used when the changelog has no entry.
	Now func() time.Time
}

// NewHTMLExtractor returns an extractor using the wall clock.
func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{Now: time.Now}
}

// PageExists reports whether an item page describes a real item.
func PageExists(doc *goquery.Document) bool {
	return doc.Find("div.error_ctn").Length() == 0
}

// Extract implements Extractor.
func (e *HTMLExtractor) Extract(docs Documents) (*models.Metadata, error) {
	if docs.Item == nil {
		return nil, errs.NotFound(FieldTitle, "item page missing")
	}

	date, err := e.releaseDate(docs.Changelog)
	if err != nil {
		return nil, err
	}
	authors, err := authors(docs.Item)
	if err != nil {
		return nil, err
	}
	preview, err := previewURL(docs.Item)
	if err != nil {
		return nil, err
	}
	highlights, err := highlightURLs(docs.Item)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(docs.Item.Find("div.workshopItemTitle").First().Text())
	if title == "" {
		return nil, errs.NotFound(FieldTitle, "div.workshopItemTitle is missing")
	}

	return &models.Metadata{
		Title:         title,
		Authors:       authors,
		ReleaseDate:   date,
		PreviewURL:    preview,
		HighlightURLs: highlights,
		Tags:          tags(docs.Item),
	}, nil
}

func (e *HTMLExtractor) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

// releaseDate parses the newest changelog entry, e.g. "Update: 5 Mar @ 3:12pm".
func (e *HTMLExtractor) releaseDate(doc *goquery.Document) (string, error) {
	now := e.now()
	if doc == nil {
		return now.Format(DateLayout), nil
	}

	text := strings.TrimSpace(doc.Find("div.detailBox > div.changelog").First().Text())
	text = strings.TrimSpace(strings.TrimPrefix(text, "Update:"))
	text, _, _ = strings.Cut(text, " @ ")
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return now.Format(DateLayout), nil
	}

	for _, l := range changelogLayouts {
		if t, err := time.Parse(l.layout, text); err == nil {
			return t.Format(DateLayout), nil
		}
		if _, err := time.Parse(l.yearless, text); err != nil {
			continue
		}
		// entries from the current year omit it
		t, err := time.Parse(l.layout, fmt.Sprintf("%s, %d", text, now.Year()))
		if err != nil {
			return "", &errs.Error{
				Type:    errs.ErrorTypeParsing,
				Field:   FieldReleaseDate,
				Message: fmt.Sprintf("invalid changelog date %q in %d", text, now.Year()),
				Err:     err,
			}
		}
		return t.Format(DateLayout), nil
	}

	return "", &errs.Error{
		Type:    errs.ErrorTypeParsing,
		Field:   FieldReleaseDate,
		Message: fmt.Sprintf("unrecognised changelog date %q", text),
	}
}

// authors returns the creator display names joined with ", ".
func authors(doc *goquery.Document) (string, error) {
	block := doc.Find("div.creatorsBlock").First()
	if block.Length() == 0 {
		return "", errs.NotFound(FieldAuthors, "div.creatorsBlock is missing")
	}

	var names []string
	block.Children().Each(func(_ int, child *goquery.Selection) {
		content := child.Find("div.friendBlockContent").First()
		if content.Length() == 0 {
			return
		}
		first := content.Contents().FilterFunction(func(_ int, s *goquery.Selection) bool {
			return goquery.NodeName(s) == "#text" && strings.TrimSpace(s.Text()) != ""
		}).First()
		if name := strings.TrimSpace(first.Text()); name != "" {
			names = append(names, name)
		}
	})
	return strings.Join(names, ", "), nil
}

func previewURL(doc *goquery.Document) (string, error) {
	img := doc.Find("img#previewImageMain").First()
	if img.Length() == 0 {
		img = doc.Find("img#previewImage").First()
	}
	src, ok := img.Attr("src")
	if !ok || src == "" {
		return "", errs.NotFound(FieldPreview, "no preview image")
	}
	return stripQuery(src) + PreviewSize, nil
}

// highlightURLs reads the screenshot strip, whose full size URLs only appear
// inside onclick handlers, or the single image shown when there is no strip.
func highlightURLs(doc *goquery.Document) ([]string, error) {
	area := doc.Find("div#highlight_player_area").First()
	if area.Length() == 0 {
		return nil, nil
	}

	screenshots := area.Children().Filter(".highlight_screenshot")
	if screenshots.Length() == 0 {
		src, ok := area.Find("img").First().Attr("src")
		if !ok || src == "" {
			return nil, nil
		}
		return []string{src}, nil
	}

	var urls []string
	var missing error
	screenshots.EachWithBreak(func(i int, shot *goquery.Selection) bool {
		onclick, _ := shot.Find("a[data-panel]").First().Attr("onclick")
		_, rest, ok := strings.Cut(onclick, enlargeStart)
		if ok {
			rest, _, ok = strings.Cut(rest, enlargeEnd)
		}
		if !ok || rest == "" {
			missing = errs.NotFound(FieldHighlights, fmt.Sprintf("screenshot %d has no enlarge handler", i+1))
			return false
		}
		urls = append(urls, stripQuery(rest)+HighlightSize)
		return true
	})
	if missing != nil {
		return nil, missing
	}
	return urls, nil
}

func tags(doc *goquery.Document) []string {
	var out []string
	doc.Find("div.workshopTags a").Each(func(_ int, a *goquery.Selection) {
		if tag := strings.TrimSpace(a.Text()); tag != "" {
			out = append(out, tag)
		}
	})
	return out
}
