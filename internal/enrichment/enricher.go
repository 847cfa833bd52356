package enrichment

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/yegors/overhead/internal/physics"
	"github.com/yegors/overhead/pkg/logger"
)

// Config holds the enrichment settings
type Config struct {
	APIBase   string
	HexDBBase string
	UserAgent string

	MilitaryEnabled   bool
	MilitaryTTL       time.Duration
	MilitaryCacheSize int

	HexDBEnabled     bool
	HexDBTTL         time.Duration
	HexDBCacheSize   int
	HexDBMinInterval time.Duration
	HexDBMinHeadroom uint64

	RouteEnabled bool
	RouteTTL     time.Duration
}

// DefaultConfig returns the stock cache sizes and lifetimes
func DefaultConfig() Config {
	return Config{
		MilitaryEnabled:   true,
		MilitaryTTL:       6 * time.Hour,
		MilitaryCacheSize: 16,
		HexDBEnabled:      true,
		HexDBTTL:          24 * time.Hour,
		HexDBCacheSize:    12,
		HexDBMinInterval:  15 * time.Second,
		HexDBMinHeadroom:  50000,
		RouteEnabled:      true,
		RouteTTL:          6 * time.Hour,
	}
}

// LookupStats counts outcomes for one lookup kind
type LookupStats struct {
	Enabled  bool   `json:"enabled"`
	Requests uint64 `json:"requests"`
	Success  uint64 `json:"success"`
	Failures uint64 `json:"failures"`
	Skipped  uint64 `json:"skipped"`
	Cached   int    `json:"cached"`
}

// Stats is a snapshot of the enrichment counters
type Stats struct {
	Military LookupStats `json:"military"`
	HexDB    LookupStats `json:"hexdb"`
	Route    LookupStats `json:"route"`
}

type counters struct {
	requests atomic.Uint64
	success  atomic.Uint64
	failures atomic.Uint64
	skipped  atomic.Uint64
}

func (c *counters) record(err error) {
	c.requests.Add(1)
	switch {
	case err == nil:
		c.success.Add(1)
	case errors.Is(err, ErrLowMemory), errors.Is(err, ErrRateLimited):
		c.skipped.Add(1)
	default:
		c.failures.Add(1)
	}
}

func (c *counters) snapshot(enabled bool, cached int) LookupStats {
	return LookupStats{
		Enabled:  enabled,
		Requests: c.requests.Load(),
		Success:  c.success.Load(),
		Failures: c.failures.Load(),
		Skipped:  c.skipped.Load(),
		Cached:   cached,
	}
}

// Enricher owns the three lookups and their caches
type Enricher struct {
	cfg      Config
	military *MilitaryLookup
	hexdb    *HexDBLookup
	route    *RouteLookup

	milCache   *Cache[string, bool]
	ownerCache *Cache[string, OwnerInfo]

	milStats   counters
	hexdbStats counters
	routeStats counters

	logger *logger.Logger
}

// NewEnricher wires the lookups to a shared HTTP client. now may be nil.
func NewEnricher(cfg Config, httpClient *http.Client, memory HeadroomReporter, now func() time.Time, log *logger.Logger) *Enricher {
	if now == nil {
		now = time.Now
	}
	log = log.Named("enrichment")

	milCache := NewCache[string, bool](cfg.MilitaryCacheSize, cfg.MilitaryTTL, now)
	ownerCache := NewCache[string, OwnerInfo](cfg.HexDBCacheSize, cfg.HexDBTTL, now)

	return &Enricher{
		cfg:        cfg,
		military:   NewMilitaryLookup(httpClient, cfg.APIBase, cfg.UserAgent, milCache, log),
		hexdb:      NewHexDBLookup(httpClient, HexDBConfig{BaseURL: cfg.HexDBBase, MinInterval: cfg.HexDBMinInterval, MinHeadroom: cfg.HexDBMinHeadroom, UserAgent: cfg.UserAgent}, ownerCache, memory, now, log),
		route:      NewRouteLookup(httpClient, cfg.APIBase, cfg.UserAgent, cfg.RouteTTL, now, log),
		milCache:   milCache,
		ownerCache: ownerCache,
		logger:     log,
	}
}

// Military resolves a batch of addresses; see MilitaryLookup.ResolveBatch
func (e *Enricher) Military(ctx context.Context, hexes []string) (map[string]bool, error) {
	if !e.cfg.MilitaryEnabled {
		return map[string]bool{}, ErrDisabled
	}
	res, err := e.military.ResolveBatch(ctx, hexes)
	e.milStats.record(err)
	return res, err
}

// IsMilitary resolves one address; see MilitaryLookup.IsMilitary
func (e *Enricher) IsMilitary(ctx context.Context, hex string) (bool, error) {
	if !e.cfg.MilitaryEnabled {
		return false, ErrDisabled
	}
	isMil, err := e.military.IsMilitary(ctx, hex)
	e.milStats.record(err)
	return isMil, err
}

// Owner resolves airframe data; see HexDBLookup.Lookup
func (e *Enricher) Owner(ctx context.Context, hex string) (OwnerInfo, error) {
	if !e.cfg.HexDBEnabled {
		return OwnerInfo{}, ErrDisabled
	}
	info, err := e.hexdb.Lookup(ctx, hex)
	e.hexdbStats.record(err)
	return info, err
}

// Route resolves a callsign; see RouteLookup.Lookup
func (e *Enricher) Route(ctx context.Context, callsign string, pos *physics.Point) (string, error) {
	if !e.cfg.RouteEnabled {
		return "", ErrDisabled
	}
	route, err := e.route.Lookup(ctx, callsign, pos)
	e.routeStats.record(err)
	return route, err
}

// Stats returns a snapshot of the lookup counters
func (e *Enricher) Stats() Stats {
	return Stats{
		Military: e.milStats.snapshot(e.cfg.MilitaryEnabled, e.milCache.Len()),
		HexDB:    e.hexdbStats.snapshot(e.cfg.HexDBEnabled, e.ownerCache.Len()),
		Route:    e.routeStats.snapshot(e.cfg.RouteEnabled, e.route.Len()),
	}
}
