package steam

import (
	"context"
	"fmt"

	"workshopcast/pkg/logger"
	"workshopcast/pkg/models"
)

// Scraper fetches an item's pages and extracts its metadata.
type Scraper struct {
	client    *Client
	extractor Extractor
	logger    logger.Logger
}

// NewScraper creates a scraper. A nil extractor uses HTMLExtractor.
func NewScraper(client *Client, extractor Extractor, log logger.Logger) *Scraper {
	if extractor == nil {
		extractor = NewHTMLExtractor()
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Scraper{client: client, extractor: extractor, logger: log}
}

// Client returns the underlying page client.
func (s *Scraper) Client() *Client {
	return s.client
}

// Exists reports whether the item page exists.
func (s *Scraper) Exists(ctx context.Context, id string) (bool, error) {
	doc, err := s.client.FetchPage(ctx, ItemURL(s.client.BaseURL(), id))
	if err != nil {
		return false, err
	}
	return PageExists(doc), nil
}

// Scrape fetches the item and changelog pages and extracts metadata.
func (s *Scraper) Scrape(ctx context.Context, id string) (*models.Metadata, error) {
	log := s.logger.WithField("item_id", id)

	item, err := s.client.FetchPage(ctx, ItemURL(s.client.BaseURL(), id))
	if err != nil {
		return nil, fmt.Errorf("fetch item page: %w", err)
	}
	changelog, err := s.client.FetchPage(ctx, ChangelogURL(s.client.BaseURL(), id))
	if err != nil {
		return nil, fmt.Errorf("fetch changelog page: %w", err)
	}

	meta, err := s.extractor.Extract(Documents{Item: item, Changelog: changelog})
	if err != nil {
		return nil, fmt.Errorf("extract metadata for %s: %w", id, err)
	}

	log.WithFields(map[string]interface{}{
		"title":      meta.Title,
		"authors":    meta.Authors,
		"date":       meta.ReleaseDate,
		"highlights": len(meta.HighlightURLs),
	}).Info("Metadata scraped")
	return meta, nil
}
