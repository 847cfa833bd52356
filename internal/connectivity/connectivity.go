// Package connectivity tracks whether the aggregation API is reachable and
// reports link changes as events.
package connectivity

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/yegors/overhead/internal/retry"
	"github.com/yegors/overhead/pkg/logger"
)

// State is the link state shown on the panel
type State int

const (
	StateOffline State = iota
	StateConnecting
	StateOnline
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOnline:
		return "online"
	default:
		return "offline"
	}
}

// MarshalText encodes the state by name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Event is a link state change
type Event struct {
	State    State     `json:"state"`
	Previous State     `json:"previous"`
	At       time.Time `json:"at"`
}

// Checker reports whether the network is usable right now
type Checker interface {
	IsConnected() bool
}

// Static is a Checker with a fixed answer
type Static bool

// IsConnected returns the fixed answer
func (s Static) IsConnected() bool { return bool(s) }

// Config configures the probe monitor
type Config struct {
	ProbeURL      string
	Interval      time.Duration
	Timeout       time.Duration
	Backoff       retry.Config
	UserAgent     string
	EventCapacity int
}

// Monitor probes ProbeURL and tracks the link state. While online it probes
// every Interval; while offline it retries with exponential backoff.
type Monitor struct {
	cfg        Config
	httpClient *http.Client
	logger     *logger.Logger

	mu    sync.RWMutex
	state State

	events chan Event
	stopCh chan struct{}
	wg     sync.WaitGroup
	now    func() time.Time
}

// NewMonitor creates a monitor in the Connecting state
func NewMonitor(cfg Config, httpClient *http.Client, log *logger.Logger) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.Backoff.InitialDelay <= 0 {
		cfg.Backoff = retry.DefaultConfig()
	}
	if cfg.EventCapacity <= 0 {
		cfg.EventCapacity = 8
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Monitor{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     log.Named("connectivity"),
		state:      StateConnecting,
		events:     make(chan Event, cfg.EventCapacity),
		stopCh:     make(chan struct{}),
		now:        time.Now,
	}
}

// Events returns the channel of link changes
func (m *Monitor) Events() <-chan Event {
	return m.events
}

// IsConnected reports whether the last probe succeeded
func (m *Monitor) IsConnected() bool {
	return m.State() == StateOnline
}

// State returns the current link state
func (m *Monitor) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Start runs an initial probe and then the probe loop
func (m *Monitor) Start(ctx context.Context) {
	m.logger.Info("Starting connectivity monitor",
		logger.String("probe_url", m.cfg.ProbeURL),
		logger.Duration("interval", m.cfg.Interval))

	m.wg.Add(1)
	go m.run(ctx)
}

// Stop stops the probe loop
func (m *Monitor) Stop() {
	close(m.stopCh)
	m.wg.Wait()
	m.logger.Info("Connectivity monitor stopped")
}

func (m *Monitor) run(ctx context.Context) {
	defer m.wg.Done()

	failures := 0
	for {
		if m.Probe(ctx) {
			failures = 0
		} else {
			failures++
		}

		wait := m.cfg.Interval
		if failures > 0 {
			wait = m.cfg.Backoff.Backoff(failures - 1)
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-m.stopCh:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// Probe performs one reachability check and records the result. Any HTTP
// response counts as reachable.
func (m *Monitor) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	ok := false
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.cfg.ProbeURL, nil)
	if err == nil {
		if m.cfg.UserAgent != "" {
			req.Header.Set("User-Agent", m.cfg.UserAgent)
		}
		resp, doErr := m.httpClient.Do(req)
		if doErr == nil {
			resp.Body.Close()
			ok = true
		} else {
			err = doErr
		}
	}

	if ok {
		m.Set(StateOnline)
	} else {
		m.logger.Debug("Connectivity probe failed", logger.Error(err))
		m.Set(StateOffline)
	}
	return ok
}

// Set records a new state and emits an event when it changed. Events are
// dropped when nobody is draining the channel.
func (m *Monitor) Set(state State) {
	m.mu.Lock()
	prev := m.state
	m.state = state
	m.mu.Unlock()

	if prev == state {
		return
	}

	m.logger.Info("Link state changed",
		logger.String("from", prev.String()),
		logger.String("to", state.String()))

	select {
	case m.events <- Event{State: state, Previous: prev, At: m.now()}:
	default:
		m.logger.Warn("Connectivity event dropped", logger.String("state", state.String()))
	}
}
