package enrichment

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yegors/overhead/pkg/logger"
)

// MaxBatchHexes is the largest batch accepted by ResolveBatch
const MaxBatchHexes = 48

const scanBufferSize = 4096

// MilitaryLookup answers whether an ICAO address belongs to a military aircraft
// using the aggregation API's military list
type MilitaryLookup struct {
	httpClient *http.Client
	url        string
	userAgent  string
	cache      *Cache[string, bool]
	logger     *logger.Logger
}

// NewMilitaryLookup creates a military lookup against {apiBase}/v2/mil
func NewMilitaryLookup(httpClient *http.Client, apiBase, userAgent string, cache *Cache[string, bool], log *logger.Logger) *MilitaryLookup {
	return &MilitaryLookup{
		httpClient: httpClient,
		url:        strings.TrimRight(apiBase, "/") + "/v2/mil",
		userAgent:  userAgent,
		cache:      cache,
		logger:     log.Named("mil-lookup"),
	}
}

func normalizeHex(hex string) string {
	return strings.ToLower(strings.TrimSpace(hex))
}

// Cached returns the cached military flag for hex
func (m *MilitaryLookup) Cached(hex string) (isMil bool, ok bool) {
	return m.cache.Get(normalizeHex(hex))
}

// IsMilitary resolves a single address, from cache when possible. The result
// is cached on success.
func (m *MilitaryLookup) IsMilitary(ctx context.Context, hex string) (bool, error) {
	key := normalizeHex(hex)
	if key == "" {
		return false, ErrNotFound
	}
	if isMil, ok := m.cache.Get(key); ok {
		return isMil, nil
	}

	want, ok := ParseHex(key)
	if !ok {
		return false, fmt.Errorf("invalid hex %q", hex)
	}

	found := false
	entries, err := m.scan(ctx, func(addr uint32) bool {
		if addr == want {
			found = true
			return true
		}
		return false
	})
	if err != nil {
		return false, err
	}

	m.logger.Debug("Military list scanned",
		logger.String("hex", key),
		logger.Bool("military", found),
		logger.Uint64("entries", entries))

	m.cache.Put(key, found)
	return found, nil
}

// ResolveBatch resolves up to MaxBatchHexes addresses with a single fetch of the
// military list. Cached addresses are answered without I/O. On success every
// queried address is cached; on failure the cached subset is returned with the error.
func (m *MilitaryLookup) ResolveBatch(ctx context.Context, hexes []string) (map[string]bool, error) {
	if len(hexes) > MaxBatchHexes {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyHexes, len(hexes), MaxBatchHexes)
	}

	result := make(map[string]bool, len(hexes))
	pending := make(map[uint32][]string)
	queued := make(map[string]bool)
	var pendingKeys []string

	for _, hex := range hexes {
		key := normalizeHex(hex)
		if key == "" || queued[key] {
			continue
		}
		if _, done := result[key]; done {
			continue
		}
		if isMil, ok := m.cache.Get(key); ok {
			result[key] = isMil
			continue
		}
		queued[key] = true
		pendingKeys = append(pendingKeys, key)
		if v, ok := ParseHex(key); ok {
			pending[v] = append(pending[v], key)
		}
	}

	if len(pendingKeys) == 0 {
		return result, nil
	}

	want := len(pending)
	matched := make(map[uint32]bool, want)
	entries, err := m.scan(ctx, func(addr uint32) bool {
		if _, ok := pending[addr]; ok {
			matched[addr] = true
		}
		return len(matched) >= want
	})
	if err != nil {
		return result, err
	}

	for _, key := range pendingKeys {
		result[key] = false
	}
	for addr := range matched {
		for _, key := range pending[addr] {
			result[key] = true
		}
	}
	for _, key := range pendingKeys {
		m.cache.Put(key, result[key])
	}

	m.logger.Debug("Military batch resolved",
		logger.Int("queried", len(pendingKeys)),
		logger.Int("military", len(matched)),
		logger.Uint64("entries", entries))

	return result, nil
}

// scan streams the military list through a HexScanner, calling visit for every
// address until it returns true or the body ends
func (m *MilitaryLookup) scan(ctx context.Context, visit func(addr uint32) bool) (uint64, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if m.userAgent != "" {
		req.Header.Set("User-Agent", m.userAgent)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch military list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("military list returned status %d", resp.StatusCode)
	}

	var scanner HexScanner
	buf := make([]byte, scanBufferSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			for _, addr := range scanner.Feed(buf[:n]) {
				if visit(addr) {
					m.logger.Debug("Military scan stopped early",
						logger.Duration("elapsed", time.Since(start)))
					return scanner.Tokens(), nil
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return scanner.Tokens(), fmt.Errorf("failed to read military list: %w", readErr)
		}
	}

	return scanner.Tokens(), nil
}
