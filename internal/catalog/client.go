// Package catalog is a small client for the imdbapi.dev title catalog.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"filmklub/internal/apperr"
	"filmklub/pkg/cache"
	"filmklub/pkg/retrylimit"
)

type Config struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	cache      cache.Cache
	limiter    *retrylimit.AdaptiveLimiter
	retry      retrylimit.RetryConfig
	log        zerolog.Logger
	observe    func(op string, err error)
}

// NewClient builds a client. A nil cache disables caching.
func NewClient(cfg Config, c cache.Cache, logger zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.imdbapi.dev"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	retry := retrylimit.DefaultRetryConfig()
	retry.Logger = logger

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		cache:      c,
		limiter:    retrylimit.NewAdaptiveLimiter(5, 1, 10, 1, 0.5),
		retry:      retry,
		log:        logger,
	}
}

func (c *Client) SetHTTPClient(httpClient *http.Client) {
	if httpClient != nil {
		c.httpClient = httpClient
	}
}

// SetRetryConfig replaces the retry policy.
func (c *Client) SetRetryConfig(cfg retrylimit.RetryConfig) {
	c.retry = cfg
}

// OnRequest registers a hook called once per logical lookup.
func (c *Client) OnRequest(fn func(op string, err error)) {
	c.observe = fn
}

// statusError carries a non-2xx response code.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("catalog responded %d: %s", e.code, e.body)
}

func (e *statusError) StatusCode() int { return e.code }

// Title fetches a title by IMDb id. An unknown id is a NotFound error.
func (c *Client) Title(ctx context.Context, id string) (*Title, error) {
	key := "title:" + id
	if c.cache != nil {
		if t, ok := cache.GetJSON[Title](ctx, c.cache, key); ok {
			return &t, nil
		}
	}

	var t Title
	err := c.getJSON(ctx, "/titles/"+url.PathEscape(id), &t)
	c.report("title", err)
	if err != nil {
		return nil, c.classify("catalog.title", id, err)
	}
	if t.ID == "" {
		return nil, apperr.NotFound("catalog.title", "Movie not found.")
	}

	if c.cache != nil {
		if err := cache.SetJSON(ctx, c.cache, key, t, c.cfg.CacheTTL); err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("Failed to cache title")
		}
	}
	return &t, nil
}

// Search returns titles matching query in catalog order.
func (c *Client) Search(ctx context.Context, query string) ([]Title, error) {
	key := "search:" + strings.ToLower(strings.TrimSpace(query))
	if c.cache != nil {
		if ts, ok := cache.GetJSON[[]Title](ctx, c.cache, key); ok {
			return ts, nil
		}
	}

	var res searchResponse
	err := c.getJSON(ctx, "/search/titles?query="+url.QueryEscape(query), &res)
	c.report("search", err)
	if err != nil {
		cerr := c.classify("catalog.search", query, err)
		if errors.Is(cerr, apperr.ErrNotFound) {
			return nil, nil
		}
		return nil, cerr
	}

	if c.cache != nil {
		if err := cache.SetJSON(ctx, c.cache, key, res.Titles, c.cfg.CacheTTL); err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("Failed to cache search")
		}
	}
	return res.Titles, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return retrylimit.WithRetryConfig(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
		if err != nil {
			return retrylimit.Fatal(fmt.Errorf("build request: %w", err))
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("do request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			serr := &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(body))}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return serr
			}
			return retrylimit.Fatal(serr)
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return retrylimit.Fatal(fmt.Errorf("decode response: %w", err))
		}
		return nil
	}, c.limiter, c.retry)
}

func (c *Client) classify(op, subject string, err error) error {
	var serr *statusError
	if errors.As(err, &serr) && (serr.code == http.StatusNotFound || serr.code == http.StatusBadRequest) {
		return apperr.NotFound(op, "Movie not found.")
	}
	c.log.Error().Err(err).Str("op", op).Str("subject", subject).Msg("Catalog request failed")
	return apperr.External(op, "catalog unavailable", err)
}

func (c *Client) report(op string, err error) {
	if c.observe != nil {
		c.observe(op, err)
	}
}
