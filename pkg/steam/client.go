package steam

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"workshopcast/pkg/config"
	errs "workshopcast/pkg/errors"
	"workshopcast/pkg/logger"
	"workshopcast/pkg/ratelimit"
	"workshopcast/pkg/retry"
)

// Client fetches Steam community pages and images.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	limiter    ratelimit.Limiter
	maxRetries int
	backoff    retry.BackoffStrategy
	logger     logger.Logger

	imagePause time.Duration
	mu         sync.Mutex
	lastImage  time.Time
}

// NewClient creates a page client from the steam configuration section.
func NewClient(cfg config.SteamConfig, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	base := cfg.BaseURL
	if base == "" {
		base = BaseURL
	}
	perMinute := cfg.RequestsPerMinute
	if perMinute <= 0 {
		perMinute = 60
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		headers: map[string]string{
			"User-Agent":      cfg.UserAgent,
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
			"Cache-Control":   "no-cache",
		},
		baseURL:    base,
		limiter:    ratelimit.NewTokenBucket(perMinute, time.Minute),
		maxRetries: cfg.MaxRetries,
		backoff:    retry.DefaultExponentialBackoff(),
		imagePause: cfg.ImagePause,
		logger:     log.WithField("component", "steam"),
	}
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// BaseURL returns the file details base URL the client was configured with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// doRequest performs one HTTP request with the configured headers
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		if value != "" {
			req.Header.Set(key, value)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("network error: %v", err),
			Err:     err,
		}
	}

	logger.LogRequest(c.logger, req.Method, req.URL.String(), resp.StatusCode, float64(duration.Milliseconds()))
	return resp, nil
}

// checkResponseStatus maps HTTP error statuses to typed errors
func (c *Client) checkResponseStatus(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	e := &errs.Error{
		Type:    errs.ErrorTypeUnknown,
		Message: fmt.Sprintf("unexpected status code: %d", resp.StatusCode),
		Code:    resp.StatusCode,
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		e.Type, e.Message = errs.ErrorTypeAuth, "access denied"
	case resp.StatusCode == http.StatusNotFound:
		e.Type, e.Message = errs.ErrorTypeNotFound, "resource not found"
	case resp.StatusCode == http.StatusTooManyRequests:
		e.Type, e.Message = errs.ErrorTypeRateLimit, "rate limit exceeded"
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			e.RetryAfter = time.Duration(secs) * time.Second
		}
	case errs.IsRetryableStatusCode(resp.StatusCode):
		e.Type, e.Message = errs.ErrorTypeServerError, "server error"
	}
	return e
}

// get fetches url and returns the body, retrying transient failures.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	return retry.DoWithResult(func() ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, &errs.Error{
				Type:    errs.ErrorTypeUnknown,
				Message: fmt.Sprintf("failed to create request: %v", err),
			}
		}

		resp, err := c.doRequest(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if err := c.checkResponseStatus(resp); err != nil {
			return nil, err
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &errs.Error{
				Type:    errs.ErrorTypeNetwork,
				Message: fmt.Sprintf("failed to read response body: %v", err),
				Code:    resp.StatusCode,
				Err:     err,
			}
		}
		return body, nil
	}, &retry.Config{
		MaxAttempts: c.maxRetries + 1,
		Backoff:     c.backoff,
		RetryIf:     retry.DefaultRetryIf,
		Context:     ctx,
		Logger:      c.logger,
	})
}

// FetchPage fetches and parses an HTML page.
func (c *Client) FetchPage(ctx context.Context, url string) (*goquery.Document, error) {
	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to parse HTML from %s: %v", url, err),
			Err:     err,
		}
	}
	return doc, nil
}

// DownloadImage fetches image bytes, keeping at least the configured pause
// between the starts of successive downloads.
func (c *Client) DownloadImage(ctx context.Context, url string) ([]byte, error) {
	c.mu.Lock()
	var wait time.Duration
	if !c.lastImage.IsZero() {
		wait = c.imagePause - time.Since(c.lastImage)
	}
	c.mu.Unlock()

	if wait > 0 {
		if err := retry.Wait(ctx, wait); err != nil {
			return nil, err
		}
	}

	c.mu.Lock()
	c.lastImage = time.Now()
	c.mu.Unlock()

	data, err := c.get(ctx, url)
	if err != nil {
		c.logger.WithError(err).WithField("url", url).Error("failed to download image")
		return nil, err
	}
	return data, nil
}
