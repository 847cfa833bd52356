package adsb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yegors/overhead/internal/physics"
	"github.com/yegors/overhead/internal/retry"
	"github.com/yegors/overhead/pkg/logger"
)

// Nearby query selectors
const (
	SelectorLatLonDist = "lat-lon-dist"
	SelectorPoint      = "point"
	SelectorClosest    = "closest"
)

// DefaultAPIBase is used when no API base is configured
const DefaultAPIBase = "https://api.adsb.lol"

// ErrOffline is returned when the connectivity check fails before a fetch
var ErrOffline = errors.New("network offline")

// RateLimitError is returned when the API answers 429 Too Many Requests
type RateLimitError struct {
	StatusCode int
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limit exceeded (status %d): %s (retry after %v)", e.StatusCode, e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("rate limit exceeded (status %d): %s", e.StatusCode, e.Message)
}

// RetryAfterDuration exposes the server wait hint to the retry helper
func (e *RateLimitError) RetryAfterDuration() time.Duration {
	return e.RetryAfter
}

// IsRateLimitError reports whether err wraps a RateLimitError
func IsRateLimitError(err error) bool {
	var rle *RateLimitError
	return errors.As(err, &rle)
}

// StatusError is returned for any other non-200 answer
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d from %s", e.StatusCode, e.URL)
}

// ClientConfig holds the settings for the nearby-aircraft client
type ClientConfig struct {
	APIBase        string
	Selector       string
	SourceType     string
	LocalSourceURL string
	Home           physics.Point
	RadiusKm       float64
	Timeout        time.Duration
	ConnectTimeout time.Duration
	UserAgent      string
	Retry          retry.Config
}

// Client is responsible for fetching nearby aircraft from the aggregation API
type Client struct {
	httpClient     *http.Client
	apiBase        string
	selector       string
	sourceType     string
	localSourceURL string
	radiusKm       float64
	userAgent      string
	retry          retry.Config
	logger         *logger.Logger

	mu        sync.RWMutex
	home      physics.Point
	simulator TrafficSource
}

// NewClient creates a new ADS-B client
func NewClient(cfg ClientConfig, loggerObj *logger.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 15 * time.Second
	}
	if cfg.Selector == "" {
		cfg.Selector = SelectorLatLonDist
	}
	if cfg.SourceType == "" {
		cfg.SourceType = SourceExternal
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "overhead/dev"
	}

	return &Client{
		httpClient:     NewHTTPClient(cfg.Timeout, cfg.ConnectTimeout),
		apiBase:        NormalizeBase(cfg.APIBase, DefaultAPIBase),
		selector:       cfg.Selector,
		sourceType:     cfg.SourceType,
		localSourceURL: cfg.LocalSourceURL,
		radiusKm:       cfg.RadiusKm,
		userAgent:      cfg.UserAgent,
		retry:          cfg.Retry,
		home:           cfg.Home,
		logger:         loggerObj.Named("adsb-cli"),
	}
}

// NewHTTPClient builds an http.Client with separate connect and overall timeouts
func NewHTTPClient(timeout, connectTimeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSHandshakeTimeout = connectTimeout

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// NormalizeBase trims a trailing slash and adds https:// to plain hosts
func NormalizeBase(base, fallback string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		base = fallback
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	return strings.TrimRight(base, "/")
}

// APIBase returns the normalized API base URL
func (c *Client) APIBase() string {
	return c.apiBase
}

// Home returns the current station coordinates
func (c *Client) Home() physics.Point {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.home
}

// UpdateStationCoords updates the station coordinates used for nearby queries
func (c *Client) UpdateStationCoords(lat, lon float64) {
	c.mu.Lock()
	c.home = physics.Point{Lat: lat, Lon: lon}
	c.mu.Unlock()

	c.logger.Debug("Station coordinates updated",
		logger.Float64("latitude", lat),
		logger.Float64("longitude", lon))
}

// SetSimulator installs the traffic source used when source_type is "simulation"
func (c *Client) SetSimulator(src TrafficSource) {
	c.mu.Lock()
	c.simulator = src
	c.mu.Unlock()
}

func (c *Client) trafficSource() TrafficSource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.simulator
}

// NearbyURL builds the query URL for the configured selector
func (c *Client) NearbyURL() (string, error) {
	switch c.sourceType {
	case SourceSimulation:
		return "simulation://local", nil
	case SourceLocal:
		if c.localSourceURL == "" {
			return "", fmt.Errorf("local source URL is not configured")
		}
		return c.localSourceURL, nil
	}

	home := c.Home()
	nm := physics.RadiusNMFromKm(c.radiusKm)

	switch c.selector {
	case SelectorLatLonDist:
		return fmt.Sprintf("%s/v2/lat/%.6f/lon/%.6f/dist/%d", c.apiBase, home.Lat, home.Lon, nm), nil
	case SelectorPoint:
		return fmt.Sprintf("%s/v2/point/%.6f/%.6f/%d", c.apiBase, home.Lat, home.Lon, nm), nil
	case SelectorClosest:
		return fmt.Sprintf("%s/v2/closest/%.6f/%.6f/%d", c.apiBase, home.Lat, home.Lon, nm), nil
	default:
		return "", fmt.Errorf("unknown selector: %s", c.selector)
	}
}

// FetchNearby fetches the aircraft list around the station, retrying transient
// failures when retries are configured
func (c *Client) FetchNearby(ctx context.Context) (*FetchResult, error) {
	urlStr, err := c.NearbyURL()
	if err != nil {
		return nil, err
	}
	if c.sourceType == SourceSimulation {
		return c.simulate(urlStr)
	}

	return retry.DoResult(ctx, c.retry, func() (*FetchResult, error) {
		res, err := c.fetch(ctx, urlStr)
		if err != nil {
			var se *StatusError
			if errors.As(err, &se) && se.StatusCode >= 400 && se.StatusCode < 500 {
				return nil, retry.Permanent(err)
			}
			return nil, err
		}
		return res, nil
	})
}

func (c *Client) fetch(ctx context.Context, urlStr string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	c.logger.Debug("Fetching nearby aircraft", logger.String("url", urlStr))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &RateLimitError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
			Message:    strings.TrimSpace(string(body)),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: urlStr}
	}

	var data APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	records := data.Records()
	if records == nil {
		records = []ADSBTarget{}
	}
	for i := range records {
		records[i].SourceType = c.sourceType
	}

	c.logger.Debug("Successfully fetched nearby aircraft",
		logger.Int("aircraft_count", len(records)),
		logger.String("source", c.sourceType),
	)

	return &FetchResult{
		Records:   records,
		FetchedAt: time.Now(),
		URL:       urlStr,
	}, nil
}

func (c *Client) simulate(urlStr string) (*FetchResult, error) {
	src := c.trafficSource()
	if src == nil {
		return nil, errors.New("simulation source is not configured")
	}

	now := time.Now()
	records := src.Targets(now)
	if records == nil {
		records = []ADSBTarget{}
	}
	for i := range records {
		records[i].SourceType = SourceSimulation
	}

	c.logger.Debug("Generated simulated aircraft", logger.Int("aircraft_count", len(records)))
	return &FetchResult{Records: records, FetchedAt: now, URL: urlStr}, nil
}

// parseRetryAfter reads a Retry-After header given either as seconds or an HTTP date
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}

	if t, err := http.ParseTime(value); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
