// Package geocode resolves postal addresses to coordinates through a
// Nominatim-compatible search API.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/lifeline/donation-api/pkg/geo"
)

var ErrNoMatch = errors.New("address could not be geocoded")

// Geocoder turns a display address into a point.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (geo.Point, error)
}

type Config struct {
	BaseURL    string
	APIKey     string
	UserAgent  string
	Timeout    time.Duration
	RetryCount int
	CacheTTL   time.Duration
}

// searchResult is one entry of the provider's search response.
type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Observer receives the outcome and duration of every provider call.
type Observer func(status string, elapsed time.Duration)

type Client struct {
	httpClient *resty.Client
	cache      *cache.Cache
	apiKey     string
	logger     *zap.Logger
	observe    Observer
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		SetHeader("Accept", "application/json")
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}

	return &Client{
		httpClient: client,
		cache:      cache.New(ttl, 2*ttl),
		apiKey:     cfg.APIKey,
		logger:     logger,
		observe:    func(string, time.Duration) {},
	}
}

// WithObserver installs a hook for metrics.
func (c *Client) WithObserver(fn Observer) *Client {
	c.observe = fn
	return c
}

func (c *Client) Geocode(ctx context.Context, address string) (geo.Point, error) {
	key := strings.ToLower(strings.TrimSpace(address))
	if key == "" {
		return geo.Point{}, ErrNoMatch
	}
	if p, ok := c.cache.Get(key); ok {
		return p.(geo.Point), nil
	}

	c.logger.Debug("Calling geocoding API", zap.String("address", address))

	params := map[string]string{
		"q":      address,
		"format": "json",
		"limit":  "1",
	}
	if c.apiKey != "" {
		params["key"] = c.apiKey
	}

	var results []searchResult
	start := time.Now()
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&results).
		Get("/search")
	if err != nil {
		c.observe("error", time.Since(start))
		c.logger.Error("Geocoding API call failed", zap.Error(err), zap.String("address", address))
		return geo.Point{}, fmt.Errorf("failed to call geocoding API: %w", err)
	}
	if resp.IsError() {
		c.observe("error", time.Since(start))
		c.logger.Error("Geocoding API returned error",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("address", address),
		)
		return geo.Point{}, fmt.Errorf("geocoding API error: status %d", resp.StatusCode())
	}

	if len(results) == 0 {
		c.observe("no_match", time.Since(start))
		c.logger.Warn("No geocoding match", zap.String("address", address))
		return geo.Point{}, ErrNoMatch
	}

	p, err := parsePoint(results[0])
	if err != nil {
		c.observe("error", time.Since(start))
		return geo.Point{}, err
	}
	c.observe("ok", time.Since(start))

	c.logger.Info("Geocoded address",
		zap.String("address", address),
		zap.Float64("latitude", p.Latitude),
		zap.Float64("longitude", p.Longitude),
	)

	c.cache.SetDefault(key, p)
	return p, nil
}

func parsePoint(r searchResult) (geo.Point, error) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("invalid latitude %q: %w", r.Lat, err)
	}
	lng, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("invalid longitude %q: %w", r.Lon, err)
	}
	p := geo.Point{Latitude: lat, Longitude: lng}
	if err := p.Validate(); err != nil {
		return geo.Point{}, err
	}
	return p, nil
}
