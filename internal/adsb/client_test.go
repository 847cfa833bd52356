package adsb

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/overhead/internal/physics"
	"github.com/yegors/overhead/internal/retry"
	"github.com/yegors/overhead/pkg/logger"
)

func newTestClient(t *testing.T, base string, mutate func(*ClientConfig)) *Client {
	t.Helper()
	cfg := ClientConfig{
		APIBase:  base,
		Home:     physics.Point{Lat: 32.0853, Lon: 34.7818},
		RadiusKm: 25,
		Timeout:  2 * time.Second,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewClient(cfg, logger.NewNop())
}

func TestNearbyURLSelectors(t *testing.T) {
	tests := []struct {
		selector string
		want     string
	}{
		{SelectorLatLonDist, "https://api.adsb.lol/v2/lat/32.085300/lon/34.781800/dist/13"},
		{SelectorPoint, "https://api.adsb.lol/v2/point/32.085300/34.781800/13"},
		{SelectorClosest, "https://api.adsb.lol/v2/closest/32.085300/34.781800/13"},
	}
	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			c := newTestClient(t, "api.adsb.lol/", func(cfg *ClientConfig) { cfg.Selector = tt.selector })
			got, err := c.NearbyURL()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	c := newTestClient(t, "", func(cfg *ClientConfig) { cfg.Selector = "bogus" })
	_, err := c.NearbyURL()
	assert.Error(t, err)
}

func TestNormalizeBase(t *testing.T) {
	assert.Equal(t, DefaultAPIBase, NormalizeBase("", DefaultAPIBase))
	assert.Equal(t, "https://example.com", NormalizeBase("example.com", DefaultAPIBase))
	assert.Equal(t, "http://localhost:8080", NormalizeBase("http://localhost:8080/", DefaultAPIBase))
}

func TestFetchNearbyExternal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/lat/32.085300/lon/34.781800/dist/13", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "overhead/test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ac":[{"hex":"738065","flight":"ELY001 ","lat":32.1,"lon":34.8,"alt_baro":3000}],"msg":"No error","now":1700000000000}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, func(cfg *ClientConfig) { cfg.UserAgent = "overhead/test" })
	res, err := c.FetchNearby(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "738065", res.Records[0].Hex)
	assert.Equal(t, SourceExternal, res.Records[0].SourceType)
	assert.Equal(t, 3000, res.Records[0].AltBaro.Int())
}

func TestFetchNearbyLocalAircraftKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"now":1700000000.1,"messages":42,"aircraft":[{"hex":"a1"},{"hex":"a2"}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, "", func(cfg *ClientConfig) {
		cfg.SourceType = SourceLocal
		cfg.LocalSourceURL = srv.URL + "/data/aircraft.json"
	})
	res, err := c.FetchNearby(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Records, 2)
	assert.Equal(t, SourceLocal, res.Records[1].SourceType)
}

func TestFetchNearbyEmptyList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ac":null}`))
	}))
	defer srv.Close()

	res, err := newTestClient(t, srv.URL, nil).FetchNearby(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, res.Records)
	assert.Empty(t, res.Records)
}

func TestFetchNearbyErrors(t *testing.T) {
	t.Run("rate limited", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "120")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte("slow down"))
		}))
		defer srv.Close()

		_, err := newTestClient(t, srv.URL, nil).FetchNearby(context.Background())
		require.Error(t, err)
		assert.True(t, IsRateLimitError(err))

		var rle *RateLimitError
		require.True(t, errors.As(err, &rle))
		assert.Equal(t, 2*time.Minute, rle.RetryAfter)
		assert.Equal(t, "slow down", rle.Message)
	})

	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := newTestClient(t, srv.URL, nil).FetchNearby(context.Background())
		var se *StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, http.StatusBadGateway, se.StatusCode)
	})

	t.Run("malformed body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"ac":[`))
		}))
		defer srv.Close()

		_, err := newTestClient(t, srv.URL, nil).FetchNearby(context.Background())
		assert.ErrorContains(t, err, "failed to parse JSON")
	})
}

func TestFetchNearbyRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ac":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, func(cfg *ClientConfig) {
		cfg.Retry = retry.Config{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
	})
	_, err := c.FetchNearby(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchNearbyDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, func(cfg *ClientConfig) {
		cfg.Retry = retry.Config{MaxRetries: 3, InitialDelay: time.Millisecond, Multiplier: 2}
	})
	_, err := c.FetchNearby(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Duration(0), parseRetryAfter("", now))
	assert.Equal(t, 30*time.Second, parseRetryAfter("30", now))
	assert.Equal(t, time.Duration(0), parseRetryAfter("-5", now))
	assert.Equal(t, 90*time.Second, parseRetryAfter(now.Add(90*time.Second).Format(http.TimeFormat), now))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon", now))
}

type staticTraffic []ADSBTarget

func (s staticTraffic) Targets(time.Time) []ADSBTarget {
	return append([]ADSBTarget(nil), s...)
}

func TestFetchNearbySimulation(t *testing.T) {
	c := newTestClient(t, "", func(cfg *ClientConfig) { cfg.SourceType = SourceSimulation })

	_, err := c.FetchNearby(context.Background())
	assert.Error(t, err, "no simulator installed")

	c.SetSimulator(staticTraffic{
		{Hex: "abc123", Lat: NewNumberField(32.1), Lon: NewNumberField(34.8)},
	})
	res, err := c.FetchNearby(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, SourceSimulation, res.Records[0].SourceType)
	assert.Equal(t, "simulation://local", res.URL)
}
