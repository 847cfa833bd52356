package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/yegors/overhead/internal/physics"
	"github.com/yegors/overhead/pkg/logger"
)

// ErrRouteUnparsable is returned when a routeset answer has no recognizable shape
var ErrRouteUnparsable = errors.New("unrecognized route response")

const maxRouteBody = 64 << 10

// RouteLookup resolves a callsign to an origin-destination string using the
// aggregation API's routeset endpoint. Only the last successful answer is cached.
type RouteLookup struct {
	httpClient *http.Client
	url        string
	userAgent  string
	ttl        time.Duration
	now        func() time.Time
	logger     *logger.Logger

	mu       sync.Mutex
	callsign string
	route    string
	storedAt time.Time
}

type routePlane struct {
	Callsign string   `json:"callsign"`
	Lat      *float64 `json:"lat,omitempty"`
	Lng      *float64 `json:"lng,omitempty"`
}

type routeRequest struct {
	Planes []routePlane `json:"planes"`
}

// NewRouteLookup creates a route lookup against {apiBase}/api/0/routeset
func NewRouteLookup(httpClient *http.Client, apiBase, userAgent string, ttl time.Duration, now func() time.Time, log *logger.Logger) *RouteLookup {
	if now == nil {
		now = time.Now
	}
	return &RouteLookup{
		httpClient: httpClient,
		url:        strings.TrimRight(apiBase, "/") + "/api/0/routeset",
		userAgent:  userAgent,
		ttl:        ttl,
		now:        now,
		logger:     log.Named("route"),
	}
}

// Lookup returns the route for callsign. pos is sent as a hint when known.
func (r *RouteLookup) Lookup(ctx context.Context, callsign string, pos *physics.Point) (string, error) {
	callsign = strings.TrimSpace(callsign)
	if callsign == "" {
		return "", ErrNotFound
	}

	if route, ok := r.cached(callsign); ok {
		r.logger.Debug("Route cache hit", logger.String("callsign", callsign))
		return route, nil
	}

	plane := routePlane{Callsign: callsign}
	if pos != nil {
		lat, lon := pos.Lat, pos.Lon
		plane.Lat = &lat
		plane.Lng = &lon
	}
	payload, err := json.Marshal(routeRequest{Planes: []routePlane{plane}})
	if err != nil {
		return "", fmt.Errorf("failed to encode route request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute route request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("routeset returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRouteBody))
	if err != nil {
		return "", fmt.Errorf("failed to read route response: %w", err)
	}

	route, err := ParseRoute(body)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	r.callsign = callsign
	r.route = route
	r.storedAt = r.now()
	r.mu.Unlock()

	r.logger.Debug("Route resolved",
		logger.String("callsign", callsign),
		logger.String("route", route))
	return route, nil
}

func (r *RouteLookup) cached(callsign string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.callsign != callsign || r.route == "" {
		return "", false
	}
	if r.now().Sub(r.storedAt) >= r.ttl {
		return "", false
	}
	return r.route, true
}

// Len returns 1 when a route is cached, else 0
func (r *RouteLookup) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.route == "" {
		return 0
	}
	return 1
}

// ParseRoute extracts the route string from a routeset answer. Accepted shapes,
// in order: an array whose first element is a string or an object with one of
// _airport_codes_iata, route or routes; an object with one of those keys or
// result; a bare string. Empty and "unknown" routes are errors.
func ParseRoute(body []byte) (string, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("failed to parse route response: %w", err)
	}

	var route string
	switch v := doc.(type) {
	case []any:
		if len(v) == 0 {
			return "", ErrNotFound
		}
		switch first := v[0].(type) {
		case string:
			route = first
		case map[string]any:
			route = firstStringKey(first, "_airport_codes_iata", "route", "routes")
		default:
			return "", ErrRouteUnparsable
		}
	case map[string]any:
		route = firstStringKey(v, "_airport_codes_iata", "route", "routes", "result")
	case string:
		route = v
	default:
		return "", ErrRouteUnparsable
	}

	route = strings.TrimSpace(route)
	if route == "" || strings.EqualFold(route, "unknown") {
		return "", ErrNotFound
	}
	return route, nil
}

// firstStringKey returns the value of the first present key; a present
// non-string value yields ""
func firstStringKey(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		v, ok := obj[k]
		if !ok || v == nil {
			continue
		}
		s, _ := v.(string)
		return s
	}
	return ""
}
