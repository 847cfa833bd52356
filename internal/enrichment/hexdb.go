package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/yegors/overhead/pkg/logger"
)

// DefaultHexDBBase is the public HexDB service
const DefaultHexDBBase = "https://hexdb.io"

// OwnerInfo is the per-airframe data returned by HexDB
type OwnerInfo struct {
	DisplayName     string `json:"display_name,omitempty"`
	ICAOTypeCode    string `json:"icao_type_code,omitempty"`
	RegisteredOwner string `json:"registered_owner,omitempty"`
	Registration    string `json:"registration,omitempty"`
}

// Empty reports whether none of the fields used for display are set
func (o OwnerInfo) Empty() bool {
	return o.DisplayName == "" && o.ICAOTypeCode == "" && o.RegisteredOwner == ""
}

type hexDBResponse struct {
	ModeS            string `json:"ModeS"`
	Registration     string `json:"Registration"`
	Manufacturer     string `json:"Manufacturer"`
	ICAOTypeCode     string `json:"ICAOTypeCode"`
	Type             string `json:"Type"`
	RegisteredOwners string `json:"RegisteredOwners"`
}

// HeadroomReporter reports how many bytes can still be allocated
type HeadroomReporter interface {
	Headroom() uint64
}

// HexDBConfig tunes the HexDB guards
type HexDBConfig struct {
	BaseURL     string
	MinInterval time.Duration
	MinHeadroom uint64
	UserAgent   string
}

// HexDBLookup fetches owner and type data for an ICAO address from HexDB. It is
// guarded by a cache, a memory headroom check and a minimum fetch interval.
type HexDBLookup struct {
	httpClient  *http.Client
	baseURL     string
	userAgent   string
	cache       *Cache[string, OwnerInfo]
	limiter     *rate.Limiter
	memory      HeadroomReporter
	minHeadroom uint64
	now         func() time.Time
	logger      *logger.Logger
}

// NewHexDBLookup creates a HexDB lookup. memory may be nil to skip the headroom check.
func NewHexDBLookup(httpClient *http.Client, cfg HexDBConfig, cache *Cache[string, OwnerInfo], memory HeadroomReporter, now func() time.Time, log *logger.Logger) *HexDBLookup {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultHexDBBase
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 15 * time.Second
	}
	if now == nil {
		now = time.Now
	}
	return &HexDBLookup{
		httpClient:  httpClient,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:   cfg.UserAgent,
		cache:       cache,
		limiter:     rate.NewLimiter(rate.Every(cfg.MinInterval), 1),
		memory:      memory,
		minHeadroom: cfg.MinHeadroom,
		now:         now,
		logger:      log.Named("hexdb"),
	}
}

// Lookup returns owner data for hex. Guard failures return ErrLowMemory or
// ErrRateLimited; an answer with no usable fields returns ErrNotFound.
func (h *HexDBLookup) Lookup(ctx context.Context, hex string) (OwnerInfo, error) {
	key := normalizeHex(hex)
	if key == "" {
		return OwnerInfo{}, ErrNotFound
	}

	if info, ok := h.cache.Get(key); ok {
		h.logger.Debug("HexDB cache hit", logger.String("hex", key))
		return info, nil
	}

	if h.memory != nil && h.minHeadroom > 0 {
		if headroom := h.memory.Headroom(); headroom < h.minHeadroom {
			h.logger.Debug("HexDB skipped on low memory",
				logger.Uint64("headroom", headroom),
				logger.Uint64("required", h.minHeadroom))
			return OwnerInfo{}, ErrLowMemory
		}
	}

	if !h.limiter.AllowN(h.now(), 1) {
		return OwnerInfo{}, ErrRateLimited
	}

	info, err := h.fetch(ctx, key)
	if err != nil {
		return OwnerInfo{}, err
	}
	if info.Empty() {
		return OwnerInfo{}, ErrNotFound
	}

	h.cache.Put(key, info)
	return info, nil
}

func (h *HexDBLookup) fetch(ctx context.Context, hex string) (OwnerInfo, error) {
	urlStr := fmt.Sprintf("%s/api/v1/aircraft/%s", h.baseURL, hex)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return OwnerInfo{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if h.userAgent != "" {
		req.Header.Set("User-Agent", h.userAgent)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return OwnerInfo{}, fmt.Errorf("failed to execute hexdb request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return OwnerInfo{}, fmt.Errorf("hexdb returned status %d", resp.StatusCode)
	}

	var body hexDBResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return OwnerInfo{}, fmt.Errorf("failed to parse hexdb response: %w", err)
	}

	manufacturer := strings.TrimSpace(body.Manufacturer)
	model := strings.TrimSpace(body.Type)

	var name string
	switch {
	case manufacturer != "" && model != "":
		name = manufacturer + " " + model
	case model != "":
		name = model
	default:
		name = manufacturer
	}

	info := OwnerInfo{
		DisplayName:     name,
		ICAOTypeCode:    strings.TrimSpace(body.ICAOTypeCode),
		RegisteredOwner: strings.TrimSpace(body.RegisteredOwners),
		Registration:    strings.TrimSpace(body.Registration),
	}

	h.logger.Debug("HexDB lookup complete",
		logger.String("hex", hex),
		logger.String("name", info.DisplayName),
		logger.String("type", info.ICAOTypeCode),
		logger.String("owner", info.RegisteredOwner))

	return info, nil
}
