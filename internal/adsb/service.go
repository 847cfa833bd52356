package adsb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yegors/overhead/internal/classify"
	"github.com/yegors/overhead/internal/connectivity"
	"github.com/yegors/overhead/internal/enrichment"
	"github.com/yegors/overhead/internal/flight"
	"github.com/yegors/overhead/internal/mailbox"
	"github.com/yegors/overhead/internal/physics"
	"github.com/yegors/overhead/internal/selection"
	"github.com/yegors/overhead/pkg/logger"
)

// DefaultFetchInterval is the pause between polling cycles
const DefaultFetchInterval = 30 * time.Second

// ErrInvalidOverride is returned for a test override body that yields no flight
var ErrInvalidOverride = errors.New("invalid override payload")

// ErrStopped is returned for work handed to a loop that has exited
var ErrStopped = errors.New("service stopped")

// overrideRequest carries a parsed override into the fetch loop, which owns the caches
type overrideRequest struct {
	ctx   context.Context
	f     flight.Flight
	reply chan flight.Flight
}

// Enricher resolves the optional per-flight lookups
type Enricher interface {
	Military(ctx context.Context, hexes []string) (map[string]bool, error)
	IsMilitary(ctx context.Context, hex string) (bool, error)
	Owner(ctx context.Context, hex string) (enrichment.OwnerInfo, error)
	Route(ctx context.Context, callsign string, pos *physics.Point) (string, error)
}

// TypeTable is the static aircraft type table
type TypeTable interface {
	FriendlyName(code string) string
	SeatMax(code string) (int, bool)
}

// Publisher receives the result of every cycle
type Publisher interface {
	Publish(msg mailbox.Message) uint64
}

// ServiceConfig tunes the polling orchestrator
type ServiceConfig struct {
	FetchInterval  time.Duration
	PositionMaxAge time.Duration
	SeatThreshold  int
	MaxCandidates  int
}

// Service polls the nearby endpoint and publishes the flight of interest
type Service struct {
	client    *Client
	enricher  Enricher
	table     TypeTable
	publisher Publisher
	checker   connectivity.Checker
	events    <-chan connectivity.Event
	cfg       ServiceConfig
	logger    *logger.Logger
	now       func() time.Time

	mu             sync.RWMutex
	state          string
	lastFetchTime  time.Time
	lastFetchOK    bool
	lastError      string
	cycles         uint64
	lastSeq        uint64
	rateLimitUntil time.Time
	current        *flight.Flight

	forceCh    chan struct{}
	overrideCh chan overrideRequest
	stopCh     chan struct{}
	loopDone   chan struct{}
	running    atomic.Bool
	wg         sync.WaitGroup
}

// NewService creates a new polling orchestrator. checker and events may be nil.
func NewService(
	client *Client,
	enricher Enricher,
	table TypeTable,
	publisher Publisher,
	checker connectivity.Checker,
	events <-chan connectivity.Event,
	cfg ServiceConfig,
	loggerObj *logger.Logger,
) *Service {
	if cfg.FetchInterval <= 0 {
		cfg.FetchInterval = DefaultFetchInterval
	}
	if cfg.PositionMaxAge <= 0 {
		cfg.PositionMaxAge = DefaultPositionMaxAge
	}
	if cfg.SeatThreshold <= 0 {
		cfg.SeatThreshold = classify.DefaultSmallAircraftSeatThreshold
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = selection.DefaultMaxCandidates
	}
	return &Service{
		client:    client,
		enricher:  enricher,
		table:     table,
		publisher: publisher,
		checker:   checker,
		events:    events,
		cfg:       cfg,
		logger:    loggerObj.Named("adsb"),
		now:       time.Now,
		state:     StateIdle,
		forceCh:    make(chan struct{}, 1),
		overrideCh: make(chan overrideRequest),
		stopCh:     make(chan struct{}),
		loopDone:   make(chan struct{}),
	}
}

// Start runs the first cycle and then polls in the background
func (s *Service) Start(ctx context.Context) error {
	s.logger.Info("Starting ADS-B service",
		logger.Duration("fetch_interval", s.cfg.FetchInterval),
		logger.String("api_base", s.client.APIBase()),
	)

	s.runCycle(ctx)

	s.wg.Add(1)
	s.running.Store(true)
	go s.fetchLoop(ctx)

	return nil
}

// Stop stops the background polling
func (s *Service) Stop() {
	s.logger.Info("Stopping ADS-B service")
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("ADS-B service stopped")
}

// ForceFetch makes the loop run a cycle without waiting for the next tick.
// Calls made before the loop picks the request up coalesce into one.
func (s *Service) ForceFetch() {
	select {
	case s.forceCh <- struct{}{}:
	default:
	}
}

// fetchLoop runs one cycle per tick, per forced fetch and per reconnect
func (s *Service) fetchLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.loopDone)
	defer s.running.Store(false)

	ticker := time.NewTicker(s.cfg.FetchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runCycle(ctx)
		case <-s.forceCh:
			s.logger.Debug("Forced fetch")
			s.runCycle(ctx)
		case ev := <-s.events:
			s.handleLink(ctx, ev)
		case req := <-s.overrideCh:
			req.reply <- s.classifyOverride(req.ctx, req.f)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Service) handleLink(ctx context.Context, ev connectivity.Event) {
	s.logger.Info("Connectivity changed",
		logger.String("from", ev.Previous.String()),
		logger.String("to", ev.State.String()),
	)
	s.publish(mailbox.Message{Kind: mailbox.KindLink, Link: ev.State})

	// Coming online, including the first successful probe, refreshes at once
	if ev.State == connectivity.StateOnline && ev.Previous != connectivity.StateOnline {
		s.runCycle(ctx)
	}
}

// runCycle executes one cycle and records its outcome; a panicking cycle is logged
func (s *Service) runCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Fetch cycle panicked", logger.Any("panic", r))
			s.finishCycle(fmt.Errorf("cycle panicked: %v", r))
		}
	}()

	if until := s.rateLimitedUntil(); s.now().Before(until) {
		s.logger.Debug("Skipping fetch while rate limited", logger.Time("until", until))
		return
	}

	s.setState(StateFetching)
	err := s.fetchAndProcess(ctx)
	if err != nil {
		s.logger.Error("Failed to fetch ADS-B data", logger.Error(err))
	}
	s.finishCycle(err)
}

// fetchAndProcess runs the pipeline once and publishes exactly one flight message
func (s *Service) fetchAndProcess(ctx context.Context) error {
	if s.checker != nil && !s.checker.IsConnected() {
		s.publishInvalid(ReasonOffline)
		return ErrOffline
	}

	result, err := s.client.FetchNearby(ctx)
	if err != nil {
		var rl *RateLimitError
		if errors.As(err, &rl) {
			wait := rl.RetryAfter
			if wait <= 0 {
				wait = s.cfg.FetchInterval
			}
			s.setRateLimit(s.now().Add(wait))
			s.logger.Warn("Nearby endpoint rate limited", logger.Duration("retry_after", wait))
		}
		s.publishInvalid(ReasonFetchFailed)
		return err
	}

	home := s.client.Home()
	records := ParseAll(result.Records, home, s.cfg.PositionMaxAge)

	hexes, truncated := selection.Candidates(records, s.cfg.MaxCandidates)
	if truncated {
		s.logger.Warn("Military candidate list truncated",
			logger.Int("records", len(records)),
			logger.Int("max", s.cfg.MaxCandidates))
	}

	milMap := s.resolveMilitary(ctx, hexes)
	isMil := func(hex string) bool {
		return milMap[strings.ToLower(strings.TrimSpace(hex))]
	}

	best, tier, ok := selection.Select(records, isMil)
	if !ok {
		s.logger.Debug("No aircraft in range",
			logger.Int("raw", len(result.Records)),
			logger.Int("valid", len(records)))
		s.publishInvalid(ReasonNoAircraft)
		return nil
	}

	s.enrich(ctx, &best, milMap)
	if best.Position != nil {
		best.MagneticBearingDeg = physics.MagneticBearing(best.BearingDeg, home, s.now())
	}

	s.logger.Debug("Selected flight",
		logger.String("ident", best.Identity),
		logger.String("hex", best.Hex),
		logger.String("tier", tier.String()),
		logger.String("op_class", string(best.OpClass)),
		logger.Float64("distance_km", best.DistanceKm),
	)

	s.setCurrent(best)
	s.publish(mailbox.Message{
		Kind:   mailbox.KindFlight,
		Valid:  true,
		Flight: best,
		Tier:   tier.String(),
	})
	return nil
}

func (s *Service) resolveMilitary(ctx context.Context, hexes []string) map[string]bool {
	if len(hexes) == 0 {
		return map[string]bool{}
	}
	milMap, err := s.enricher.Military(ctx, hexes)
	switch {
	case err == nil:
	case errors.Is(err, enrichment.ErrDisabled):
	default:
		s.logger.Warn("Military batch lookup failed", logger.Error(err), logger.Int("candidates", len(hexes)))
	}
	if milMap == nil {
		milMap = map[string]bool{}
	}
	return milMap
}

// enrich fills owner, classification and route for the selected flight
func (s *Service) enrich(ctx context.Context, f *flight.Flight, milMap map[string]bool) {
	unknownType := s.table.FriendlyName(f.TypeCode) == ""
	if f.Hex != "" && (unknownType || f.Route == "") {
		info, err := s.enricher.Owner(ctx, f.Hex)
		if err == nil {
			if unknownType && info.ICAOTypeCode != "" {
				f.TypeCode = info.ICAOTypeCode
			}
			f.DisplayName = info.DisplayName
			f.RegisteredOwner = info.RegisteredOwner
		} else {
			s.logLookupError("Owner lookup failed", err, logger.String("hex", f.Hex))
		}
	}

	hex := strings.ToLower(strings.TrimSpace(f.Hex))
	isMil, known := milMap[hex]
	if !known && hex != "" {
		var err error
		isMil, err = s.enricher.IsMilitary(ctx, hex)
		if err != nil {
			s.logLookupError("Military lookup failed", err, logger.String("hex", hex))
		}
	}
	f.OpClass = classify.Classify(*f, isMil, s.table, s.cfg.SeatThreshold)

	if f.HasCallsign {
		route, err := s.enricher.Route(ctx, f.Identity, f.Position)
		if err == nil {
			f.Route = route
		} else {
			s.logLookupError("Route lookup failed", err, logger.String("callsign", f.Identity))
		}
	}
}

// logLookupError logs expected skips at debug level and real failures as warnings
func (s *Service) logLookupError(msg string, err error, fields ...logger.Field) {
	fields = append(fields, logger.Error(err))
	switch {
	case errors.Is(err, enrichment.ErrDisabled),
		errors.Is(err, enrichment.ErrLowMemory),
		errors.Is(err, enrichment.ErrRateLimited),
		errors.Is(err, enrichment.ErrNotFound):
		s.logger.Debug(msg, fields...)
	default:
		s.logger.Warn(msg, fields...)
	}
}

// ClassifyOverride turns a test override body into a classified flight.
// The body is either a nearby-style {"ac":[...]} document or {"t","ident","alt","dist","seats"}.
func (s *Service) ClassifyOverride(ctx context.Context, body []byte) (flight.Flight, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(body, &keys); err != nil {
		return flight.Flight{}, fmt.Errorf("%w: %v", ErrInvalidOverride, err)
	}

	var f flight.Flight
	if _, ok := keys["ac"]; ok {
		var resp APIResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return flight.Flight{}, fmt.Errorf("%w: %v", ErrInvalidOverride, err)
		}
		records := ParseAll(resp.Records(), s.client.Home(), s.cfg.PositionMaxAge)
		best, _, found := selection.Select(records, nil)
		if !found {
			return flight.Flight{}, ErrInvalidOverride
		}
		f = best
	} else {
		var req struct {
			Type  string   `json:"t"`
			Ident *string  `json:"ident"`
			Alt   *int     `json:"alt"`
			Dist  *float64 `json:"dist"`
			Seats int      `json:"seats"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			return flight.Flight{}, fmt.Errorf("%w: %v", ErrInvalidOverride, err)
		}
		f = flight.Flight{
			Identity:     "TEST",
			TypeCode:     strings.TrimSpace(req.Type),
			AltitudeFt:   -1,
			DistanceKm:   math.NaN(),
			SeatOverride: req.Seats,
			Valid:        true,
		}
		if req.Ident != nil {
			f.Identity = strings.TrimSpace(*req.Ident)
		}
		f.HasCallsign = f.Identity != ""
		if req.Alt != nil {
			f.AltitudeFt = *req.Alt
		}
		if req.Dist != nil {
			f.DistanceKm = *req.Dist
		}
	}

	if !s.running.Load() {
		return s.classifyOverride(ctx, f), nil
	}

	req := overrideRequest{ctx: ctx, f: f, reply: make(chan flight.Flight, 1)}
	select {
	case s.overrideCh <- req:
	case <-s.loopDone:
		return flight.Flight{}, ErrStopped
	case <-ctx.Done():
		return flight.Flight{}, ctx.Err()
	}
	select {
	case f = <-req.reply:
		return f, nil
	case <-ctx.Done():
		return flight.Flight{}, ctx.Err()
	}
}

// classifyOverride runs the military lookup and classification for an override.
// It runs on the fetch loop, or inline when the loop is not running.
func (s *Service) classifyOverride(ctx context.Context, f flight.Flight) flight.Flight {
	isMil := false
	if f.Hex != "" {
		var err error
		isMil, err = s.enricher.IsMilitary(ctx, f.Hex)
		if err != nil {
			s.logLookupError("Military lookup failed", err, logger.String("hex", f.Hex))
		}
	}
	f.OpClass = classify.Classify(f, isMil, s.table, s.cfg.SeatThreshold)

	s.logger.Info("Test override classified",
		logger.String("ident", f.Identity),
		logger.String("type", f.TypeCode),
		logger.String("op_class", string(f.OpClass)),
	)
	return f
}

func (s *Service) publishInvalid(reason string) {
	s.setCurrent(flight.Flight{})
	s.publish(mailbox.Message{Kind: mailbox.KindFlight, Reason: reason})
}

func (s *Service) publish(msg mailbox.Message) {
	seq := s.publisher.Publish(msg)
	s.mu.Lock()
	s.lastSeq = seq
	s.mu.Unlock()
}

// Status returns a snapshot of the orchestrator state
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		State:       s.state,
		LastFetch:   s.lastFetchTime,
		LastFetchOK: s.lastFetchOK,
		LastError:   s.lastError,
		Cycles:      s.cycles,
		Published:   s.lastSeq,
		Interval:    s.cfg.FetchInterval,
	}
	if !s.rateLimitUntil.IsZero() && s.now().Before(s.rateLimitUntil) {
		until := s.rateLimitUntil
		st.RateLimitUntil = &until
	}
	if s.current != nil {
		cur := *s.current
		st.Current = &cur
	}
	return st
}

func (s *Service) setState(state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (s *Service) finishCycle(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateIdle
	s.cycles++
	s.lastFetchTime = s.now().UTC()
	s.lastFetchOK = err == nil
	s.lastError = ""
	if err != nil {
		s.lastError = err.Error()
	}
}

func (s *Service) setCurrent(f flight.Flight) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !f.Valid {
		s.current = nil
		return
	}
	s.current = &f
}

func (s *Service) setRateLimit(until time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateLimitUntil = until
}

func (s *Service) rateLimitedUntil() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rateLimitUntil
}
