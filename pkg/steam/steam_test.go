package steam

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workshopcast/pkg/config"
	errs "workshopcast/pkg/errors"
	"workshopcast/pkg/logger"
)

const itemPage = `<html><body>
<div class="workshopItemTitle"> Castle Remake </div>
<div class="workshopTags"><span class="workshopTagsTitle">Type:&nbsp;</span><a href="#">Map</a><a href="#">Zombies</a></div>
<div class="creatorsBlock">
  <div class="friendBlock"><div class="friendBlockContent">
    Alice<br><span class="friendSmallText">Offline</span>
  </div></div>
  <div class="friendBlock"><div class="friendBlockContent">Bob<br><span class="friendSmallText">Online</span></div></div>
</div>
<img id="previewImageMain" src="https://images.steamusercontent.com/ugc/111/ABC/?ima=fit&imw=200">
<div id="highlight_player_area">
  <div class="highlight_screenshot"><a data-panel="{}" onclick="ShowEnlargedImagePreview( 'https://images.steamusercontent.com/ugc/1/AAA/?ima=fit' );"></a></div>
  <div class="highlight_screenshot"><a data-panel="{}" onclick="ShowEnlargedImagePreview( 'https://images.steamusercontent.com/ugc/2/BBB/' );"></a></div>
</div>
</body></html>`

const changelogPage = `<html><body>
<div class="detailBox"><div class="changelog headline">Update: 5 Mar, 2023 @ 3:12pm</div></div>
<div class="detailBox"><div class="changelog headline">Update: 1 Jan, 2020 @ 9:00am</div></div>
</body></html>`

const missingPage = `<html><body><div class="error_ctn">There was a problem accessing the item.</div></body></html>`

func parse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func fixedExtractor() *HTMLExtractor {
	return &HTMLExtractor{Now: func() time.Time {
		return time.Date(2024, 7, 14, 12, 0, 0, 0, time.UTC)
	}}
}

func TestURLs(t *testing.T) {
	assert.Equal(t, "https://steamcommunity.com/sharedfiles/filedetails/?id=2893712123", ItemURL(BaseURL, "2893712123"))
	assert.Equal(t, "https://steamcommunity.com/sharedfiles/filedetails/changelog/2893712123", ChangelogURL(BaseURL+"/", "2893712123"))
}

func TestExtract(t *testing.T) {
	meta, err := fixedExtractor().Extract(Documents{
		Item:      parse(t, itemPage),
		Changelog: parse(t, changelogPage),
	})
	require.NoError(t, err)

	assert.Equal(t, "Castle Remake", meta.Title)
	assert.Equal(t, "Alice, Bob", meta.Authors)
	assert.Equal(t, "2023.03.05", meta.ReleaseDate)
	assert.Equal(t, "https://images.steamusercontent.com/ugc/111/ABC/?imw=637&imh=358", meta.PreviewURL)
	assert.Equal(t, []string{
		"https://images.steamusercontent.com/ugc/1/AAA/?imw=637&imh=358&impolicy=Letterbox&ima=fit",
		"https://images.steamusercontent.com/ugc/2/BBB/?imw=637&imh=358&impolicy=Letterbox&ima=fit",
	}, meta.HighlightURLs)
	assert.Equal(t, []string{"Map", "Zombies"}, meta.Tags)
}

func TestReleaseDateFormats(t *testing.T) {
	tests := []struct {
		headline string
		want     string
	}{
		{"Update: 5 Mar, 2023 @ 3:12pm", "2023.03.05"},
		{"Update: 15 Nov @ 10:01am", "2024.11.15"},
		{"Update: Mar 5, 2023 @ 3:12pm", "2023.03.05"},
		{"Update: Dec 24 @ 1:00pm", "2024.12.24"},
	}

	for _, tt := range tests {
		t.Run(tt.headline, func(t *testing.T) {
			doc := parse(t, `<div class="detailBox"><div class="changelog">`+tt.headline+`</div></div>`)
			got, err := fixedExtractor().releaseDate(doc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReleaseDateLeapDayWithoutYear(t *testing.T) {
	doc := parse(t, `<div class="detailBox"><div class="changelog">Update: 29 Feb @ 3:12pm</div></div>`)

	got, err := fixedExtractor().releaseDate(doc)
	require.NoError(t, err)
	assert.Equal(t, "2024.02.29", got)

	e := &HTMLExtractor{Now: func() time.Time {
		return time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	}}
	_, err = e.releaseDate(doc)
	require.Error(t, err)
	var typed *errs.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, errs.ErrorTypeParsing, typed.Type)
	assert.Equal(t, FieldReleaseDate, typed.Field)
}

func TestReleaseDateFallsBackToToday(t *testing.T) {
	got, err := fixedExtractor().releaseDate(parse(t, `<html><body>no changelog</body></html>`))
	require.NoError(t, err)
	assert.Equal(t, "2024.07.14", got)
}

func TestReleaseDateUnparseable(t *testing.T) {
	doc := parse(t, `<div class="detailBox"><div class="changelog">Update: sometime @ noon</div></div>`)
	_, err := fixedExtractor().releaseDate(doc)
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeParsing))
}

func TestExtractMissingFields(t *testing.T) {
	changelog := parse(t, changelogPage)

	tests := []struct {
		name   string
		remove string
		field  string
	}{
		{"no creators", `<div class="creatorsBlock">`, FieldAuthors},
		{"no preview", `<img id="previewImageMain"`, FieldPreview},
		{"no title", `<div class="workshopItemTitle">`, FieldTitle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html := strings.Replace(itemPage, tt.remove, `<div class="gone">`, 1)
			_, err := fixedExtractor().Extract(Documents{Item: parse(t, html), Changelog: changelog})
			require.Error(t, err)
			assert.Equal(t, tt.field, errs.MissingField(err))
		})
	}
}

func TestPreviewFallback(t *testing.T) {
	doc := parse(t, `<img id="previewImage" src="https://img.example/p.jpg?x=1">`)
	got, err := previewURL(doc)
	require.NoError(t, err)
	assert.Equal(t, "https://img.example/p.jpg?imw=637&imh=358", got)
}

func TestHighlights(t *testing.T) {
	single := parse(t, `<div id="highlight_player_area"><div class="highlight_player_item"><img src="https://img.example/one.jpg"></div></div>`)
	urls, err := highlightURLs(single)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://img.example/one.jpg"}, urls)

	none, err := highlightURLs(parse(t, `<div>nothing</div>`))
	require.NoError(t, err)
	assert.Empty(t, none)

	broken := parse(t, `<div id="highlight_player_area"><div class="highlight_screenshot"><a data-panel="{}" onclick="other()"></a></div></div>`)
	_, err = highlightURLs(broken)
	assert.Equal(t, FieldHighlights, errs.MissingField(err))
}

func TestPageExists(t *testing.T) {
	assert.True(t, PageExists(parse(t, itemPage)))
	assert.False(t, PageExists(parse(t, missingPage)))
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.DefaultConfig().Steam
	cfg.BaseURL = server.URL + "/sharedfiles/filedetails"
	cfg.Timeout = 5 * time.Second
	cfg.ImagePause = 50 * time.Millisecond

	c := NewClient(cfg, logger.NewNopLogger())
	c.backoff = instantBackoff{}
	return c
}

// instantBackoff keeps retries fast in tests.
type instantBackoff struct{}

func (instantBackoff) NextDelay(int) time.Duration { return time.Millisecond }

func TestScraperScrape(t *testing.T) {
	var userAgent atomic.Value
	mux := http.NewServeMux()
	mux.HandleFunc("/sharedfiles/filedetails/", func(w http.ResponseWriter, r *http.Request) {
		userAgent.Store(r.Header.Get("User-Agent"))
		assert.Equal(t, "2893712123", r.URL.Query().Get("id"))
		w.Write([]byte(itemPage))
	})
	mux.HandleFunc("/sharedfiles/filedetails/changelog/2893712123", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(changelogPage))
	})

	s := NewScraper(newTestClient(t, mux), fixedExtractor(), nil)
	meta, err := s.Scrape(context.Background(), "2893712123")
	require.NoError(t, err)

	assert.Equal(t, "Castle Remake", meta.Title)
	assert.Contains(t, userAgent.Load(), "Mozilla/5.0")
}

func TestScraperExists(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sharedfiles/filedetails/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id") == "1111111111" {
			w.Write([]byte(missingPage))
			return
		}
		w.Write([]byte(itemPage))
	})
	s := NewScraper(newTestClient(t, mux), nil, nil)

	ok, err := s.Exists(context.Background(), "2893712123")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(context.Background(), "1111111111")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("<html></html>"))
	}))

	_, err := c.FetchPage(context.Background(), c.BaseURL()+"/?id=1")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientSurfacesNotFound(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))

	_, err := c.FetchPage(context.Background(), c.BaseURL()+"/?id=1")
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeNotFound))
	assert.Equal(t, int32(1), calls.Load(), "not found is not retried")
}

func TestCheckResponseStatusRetryAfter(t *testing.T) {
	c := NewClient(config.DefaultConfig().Steam, logger.NewNopLogger())
	resp := &http.Response{StatusCode: http.StatusTooManyRequests, Header: http.Header{"Retry-After": []string{"7"}}}

	err := c.checkResponseStatus(resp)
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeRateLimit))
	assert.Equal(t, 7*time.Second, errs.RetryAfterOf(err))
}

func TestDownloadImagePaces(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte{0xff, 0xd8})
	}))

	start := time.Now()
	for i := 0; i < 3; i++ {
		data, err := c.DownloadImage(context.Background(), c.BaseURL()+"/img.jpg")
		require.NoError(t, err)
		assert.Equal(t, []byte{0xff, 0xd8}, data)
	}
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}
