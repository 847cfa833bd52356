package enrichment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/overhead/internal/physics"
	"github.com/yegors/overhead/pkg/logger"
)

func TestParseRouteShapes(t *testing.T) {
	shapes := map[string]string{
		"bare string":         `"TLV-RMO"`,
		"array of string":     `["TLV-RMO"]`,
		"array of object":     `[{"_airport_codes_iata":"TLV-RMO","callsign":"ELY001"}]`,
		"array object route":  `[{"route":"TLV-RMO"}]`,
		"array object routes": `[{"routes":" TLV-RMO "}]`,
		"object route":        `{"route":"TLV-RMO"}`,
		"object iata":         `{"_airport_codes_iata":"TLV-RMO","route":"ignored"}`,
		"object result":       `{"result":"TLV-RMO"}`,
	}
	for name, body := range shapes {
		t.Run(name, func(t *testing.T) {
			got, err := ParseRoute([]byte(body))
			require.NoError(t, err)
			assert.Equal(t, "TLV-RMO", got)
		})
	}
}

func TestParseRouteFailures(t *testing.T) {
	tests := map[string]string{
		"unknown":          `[{"_airport_codes_iata":"unknown"}]`,
		"Unknown string":   `"Unknown"`,
		"UNKNOWN object":   `{"route":"UNKNOWN"}`,
		"empty":            `""`,
		"empty array":      `[]`,
		"number":           `42`,
		"array of numbers": `[1,2]`,
		"no known key":     `{"foo":"TLV-RMO"}`,
		"non-string value": `{"route":123}`,
		"malformed":        `{"route":`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRoute([]byte(body))
			assert.Error(t, err)
		})
	}
}

func TestRouteLookupRequestAndCache(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/0/routeset", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req struct {
			Planes []map[string]any `json:"planes"`
		}
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) || !assert.Len(t, req.Planes, 1) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, "ELY001", req.Planes[0]["callsign"])
		assert.InDelta(t, 32.1, req.Planes[0]["lat"], 1e-9)
		assert.InDelta(t, 34.8, req.Planes[0]["lng"], 1e-9)

		_, _ = w.Write([]byte(`[{"_airport_codes_iata":"TLV-JFK"}]`))
	}))
	defer srv.Close()

	clock := newFakeClock()
	r := NewRouteLookup(srv.Client(), srv.URL, "overhead/test", 6*time.Hour, clock.Now, logger.NewNop())

	pos := &physics.Point{Lat: 32.1, Lon: 34.8}
	route, err := r.Lookup(context.Background(), "ELY001", pos)
	require.NoError(t, err)
	assert.Equal(t, "TLV-JFK", route)

	route, err = r.Lookup(context.Background(), " ELY001 ", pos)
	require.NoError(t, err)
	assert.Equal(t, "TLV-JFK", route)
	assert.Equal(t, int32(1), calls.Load(), "second lookup served from cache")
	assert.Equal(t, 1, r.Len())

	clock.Advance(6 * time.Hour)
	_, err = r.Lookup(context.Background(), "ELY001", pos)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "expired entry refetched")
}

func TestRouteLookupOmitsUnknownPosition(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Planes []map[string]any `json:"planes"`
		}
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) || !assert.Len(t, req.Planes, 1) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, hasLat := req.Planes[0]["lat"]
		assert.False(t, hasLat)
		_, _ = w.Write([]byte(`"unknown"`))
	}))
	defer srv.Close()

	r := NewRouteLookup(srv.Client(), srv.URL, "", time.Hour, nil, logger.NewNop())
	_, err := r.Lookup(context.Background(), "ELY001", nil)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, r.Len(), "failures are not cached")

	_, err = r.Lookup(context.Background(), "  ", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}
