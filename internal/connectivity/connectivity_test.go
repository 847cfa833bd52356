package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/overhead/internal/retry"
	"github.com/yegors/overhead/pkg/logger"
)

func TestProbeTransitions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(http.StatusNotFound)
	}))

	m := NewMonitor(Config{ProbeURL: srv.URL, Timeout: time.Second}, srv.Client(), logger.NewNop())
	assert.Equal(t, StateConnecting, m.State())

	require.True(t, m.Probe(context.Background()), "any HTTP answer means reachable")
	assert.True(t, m.IsConnected())

	ev := <-m.Events()
	assert.Equal(t, StateOnline, ev.State)
	assert.Equal(t, StateConnecting, ev.Previous)

	srv.Close()
	assert.False(t, m.Probe(context.Background()))
	assert.Equal(t, StateOffline, m.State())

	ev = <-m.Events()
	assert.Equal(t, StateOffline, ev.State)
	assert.Equal(t, StateOnline, ev.Previous)
}

func TestSetOnlyEmitsOnChange(t *testing.T) {
	m := NewMonitor(Config{ProbeURL: "http://127.0.0.1:1"}, nil, logger.NewNop())
	m.Set(StateOnline)
	m.Set(StateOnline)
	m.Set(StateOffline)

	assert.Len(t, m.Events(), 2)
}

func TestSetDropsWhenFull(t *testing.T) {
	m := NewMonitor(Config{ProbeURL: "http://127.0.0.1:1", EventCapacity: 1}, nil, logger.NewNop())
	m.Set(StateOnline)
	m.Set(StateOffline)
	m.Set(StateOnline)
	assert.Len(t, m.Events(), 1)
	assert.Equal(t, StateOnline, m.State())
}

func TestMonitorLoopStops(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	m := NewMonitor(Config{
		ProbeURL: srv.URL,
		Interval: 10 * time.Millisecond,
		Backoff:  retry.Config{InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2},
	}, srv.Client(), logger.NewNop())

	m.Start(context.Background())
	select {
	case ev := <-m.Events():
		assert.Equal(t, StateOnline, ev.State)
	case <-time.After(2 * time.Second):
		t.Fatal("no connectivity event")
	}
	m.Stop()
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "offline", StateOffline.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "online", StateOnline.String())
	assert.True(t, Static(true).IsConnected())
	assert.False(t, Static(false).IsConnected())
}
