package simulation

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yegors/overhead/internal/adsb"
	"github.com/yegors/overhead/internal/physics"
	"github.com/yegors/overhead/pkg/logger"
)

const (
	MaxSimulatedAircraft = 10

	knotsToKmPerSecond = 1.852 / 3600
)

var (
	// ErrLimitReached is returned when MaxSimulatedAircraft are already flying
	ErrLimitReached = fmt.Errorf("maximum number of simulated aircraft (%d) reached", MaxSimulatedAircraft)
	// ErrNotFound is returned for an unknown hex
	ErrNotFound = errors.New("simulated aircraft not found")
)

// Aircraft is one simulated aircraft and its current state
type Aircraft struct {
	Hex             string    `json:"hex"`
	Callsign        string    `json:"callsign"`
	Registration    string    `json:"registration,omitempty"`
	TypeCode        string    `json:"type_code"`
	Lat             float64   `json:"lat"`
	Lon             float64   `json:"lon"`
	AltitudeFt      float64   `json:"altitude_ft"`
	HeadingDeg      float64   `json:"heading_deg"`
	SpeedKt         float64   `json:"speed_kt"`
	VerticalRateFpm float64   `json:"vertical_rate_fpm"`
	LastUpdate      time.Time `json:"last_update"`
	CreatedAt       time.Time `json:"created_at"`
}

// SpawnRequest describes a new aircraft. Empty identifiers are generated.
type SpawnRequest struct {
	Hex             string  `json:"hex"`
	Callsign        string  `json:"callsign"`
	Registration    string  `json:"registration"`
	TypeCode        string  `json:"type_code"`
	Lat             float64 `json:"lat"`
	Lon             float64 `json:"lon"`
	AltitudeFt      float64 `json:"altitude_ft"`
	HeadingDeg      float64 `json:"heading_deg"`
	SpeedKt         float64 `json:"speed_kt"`
	VerticalRateFpm float64 `json:"vertical_rate_fpm"`
}

// Service manages simulated aircraft and serves them as nearby traffic
type Service struct {
	aircraft map[string]*Aircraft
	mutex    sync.RWMutex
	rng      *rand.Rand
	now      func() time.Time
	logger   *logger.Logger
}

// NewService creates a new simulation service
func NewService(log *logger.Logger) *Service {
	return &Service{
		aircraft: make(map[string]*Aircraft),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      time.Now,
		logger:   log.Named("simulation"),
	}
}

// Spawn adds an aircraft
func (s *Service) Spawn(req SpawnRequest) (Aircraft, error) {
	if req.Lat < -90 || req.Lat > 90 || req.Lon < -180 || req.Lon > 180 {
		return Aircraft{}, fmt.Errorf("position out of range: %.4f,%.4f", req.Lat, req.Lon)
	}
	if req.SpeedKt < 0 {
		return Aircraft{}, fmt.Errorf("speed must not be negative")
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if len(s.aircraft) >= MaxSimulatedAircraft {
		return Aircraft{}, ErrLimitReached
	}

	hex := strings.ToLower(strings.TrimSpace(req.Hex))
	if hex == "" {
		hex = s.generateUniqueHex()
	} else if _, exists := s.aircraft[hex]; exists {
		return Aircraft{}, fmt.Errorf("simulated aircraft %s already exists", hex)
	}
	callsign := strings.ToUpper(strings.TrimSpace(req.Callsign))
	if callsign == "" {
		callsign = fmt.Sprintf("SIM%03d", s.rng.Intn(999)+1)
	}
	typeCode := strings.ToUpper(strings.TrimSpace(req.TypeCode))
	if typeCode == "" {
		typeCode = "C172"
	}

	now := s.now().UTC()
	ac := &Aircraft{
		Hex:             hex,
		Callsign:        callsign,
		Registration:    strings.ToUpper(strings.TrimSpace(req.Registration)),
		TypeCode:        typeCode,
		Lat:             req.Lat,
		Lon:             req.Lon,
		AltitudeFt:      max(req.AltitudeFt, 0),
		HeadingDeg:      physics.NormalizeHeading(req.HeadingDeg),
		SpeedKt:         req.SpeedKt,
		VerticalRateFpm: req.VerticalRateFpm,
		LastUpdate:      now,
		CreatedAt:       now,
	}
	s.aircraft[hex] = ac

	s.logger.Info("Created simulated aircraft",
		logger.String("hex", hex),
		logger.String("callsign", callsign),
		logger.String("type", typeCode),
		logger.Float64("lat", req.Lat),
		logger.Float64("lon", req.Lon))

	return *ac, nil
}

// UpdateControls changes heading, speed and vertical rate. The aircraft is first
// advanced to now so the change applies from this moment on.
func (s *Service) UpdateControls(hex string, heading, speed, verticalRate float64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	ac, exists := s.aircraft[strings.ToLower(hex)]
	if !exists {
		return ErrNotFound
	}
	s.advance(ac, s.now().UTC())

	ac.HeadingDeg = physics.NormalizeHeading(heading)
	ac.SpeedKt = max(speed, 0)
	ac.VerticalRateFpm = verticalRate

	s.logger.Debug("Updated simulation controls",
		logger.String("hex", ac.Hex),
		logger.Float64("heading", ac.HeadingDeg),
		logger.Float64("speed", ac.SpeedKt),
		logger.Float64("vertical_rate", verticalRate))
	return nil
}

// Remove deletes an aircraft
func (s *Service) Remove(hex string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	hex = strings.ToLower(hex)
	if _, exists := s.aircraft[hex]; !exists {
		return ErrNotFound
	}
	delete(s.aircraft, hex)
	s.logger.Info("Removed simulated aircraft", logger.String("hex", hex))
	return nil
}

// Get returns a copy of one aircraft
func (s *Service) Get(hex string) (Aircraft, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	ac, exists := s.aircraft[strings.ToLower(hex)]
	if !exists {
		return Aircraft{}, false
	}
	return *ac, true
}

// List returns all aircraft ordered by hex
func (s *Service) List() []Aircraft {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]Aircraft, 0, len(s.aircraft))
	for _, ac := range s.aircraft {
		out = append(out, *ac)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hex < out[j].Hex })
	return out
}

// Targets advances every aircraft to now and returns them as source records
func (s *Service) Targets(now time.Time) []adsb.ADSBTarget {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now = now.UTC()
	targets := make([]adsb.ADSBTarget, 0, len(s.aircraft))
	for _, ac := range s.aircraft {
		s.advance(ac, now)
		targets = append(targets, ac.target())
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].Hex < targets[j].Hex })
	return targets
}

var seedFleet = []SpawnRequest{
	{Callsign: "ELY001", TypeCode: "B738", AltitudeFt: 9000, SpeedKt: 280, VerticalRateFpm: 1500},
	{Callsign: "4XCGK", Registration: "4X-CGK", TypeCode: "C172", AltitudeFt: 2500, SpeedKt: 105},
	{Callsign: "WZZ12AB", TypeCode: "A320", AltitudeFt: 5000, SpeedKt: 210, VerticalRateFpm: -900},
	{Hex: "ae1460", Callsign: "RCH452", TypeCode: "C17", AltitudeFt: 14000, SpeedKt: 320},
	{Callsign: "ISR77", TypeCode: "PC12", AltitudeFt: 7000, SpeedKt: 240},
	{TypeCode: "R44", AltitudeFt: 800, SpeedKt: 90},
}

// SeedAround spawns up to n aircraft spread around home within radiusKm and
// returns how many were created
func (s *Service) SeedAround(home physics.Point, n int, radiusKm float64) int {
	if radiusKm <= 0 {
		radiusKm = 10
	}
	created := 0
	for i := 0; i < n; i++ {
		req := seedFleet[i%len(seedFleet)]

		s.mutex.Lock()
		bearing := s.rng.Float64() * 360
		dist := radiusKm * (0.2 + 0.7*s.rng.Float64())
		req.HeadingDeg = s.rng.Float64() * 360
		s.mutex.Unlock()

		p := physics.Destination(home, bearing, dist)
		req.Lat, req.Lon = p.Lat, p.Lon
		if _, exists := s.Get(req.Hex); req.Hex != "" && exists {
			req.Hex = ""
		}
		if _, err := s.Spawn(req); err != nil {
			s.logger.Warn("Stopped seeding simulated aircraft", logger.Error(err))
			break
		}
		created++
	}
	return created
}

// advance moves ac along its heading by dead reckoning. Caller holds the lock.
func (s *Service) advance(ac *Aircraft, now time.Time) {
	dt := now.Sub(ac.LastUpdate).Seconds()
	if dt <= 0 {
		return
	}

	if ac.SpeedKt > 0 {
		p := physics.Destination(physics.Point{Lat: ac.Lat, Lon: ac.Lon}, ac.HeadingDeg, ac.SpeedKt*knotsToKmPerSecond*dt)
		ac.Lat, ac.Lon = p.Lat, p.Lon
	}

	ac.AltitudeFt += ac.VerticalRateFpm * dt / 60
	if ac.AltitudeFt < 0 {
		ac.AltitudeFt = 0
		ac.VerticalRateFpm = 0
	}
	ac.LastUpdate = now
}

func (ac *Aircraft) target() adsb.ADSBTarget {
	alt := adsb.NewNumberField(float64(int(ac.AltitudeFt)))
	if ac.AltitudeFt <= 0 {
		alt = adsb.NewStringField("ground")
	}
	return adsb.ADSBTarget{
		Hex:          ac.Hex,
		Type:         "adsb_icao",
		Flight:       ac.Callsign,
		Registration: ac.Registration,
		AircraftType: ac.TypeCode,
		AltBaro:      alt,
		AltGeom:      alt,
		GS:           adsb.NewNumberField(ac.SpeedKt),
		Track:        adsb.NewNumberField(ac.HeadingDeg),
		BaroRate:     adsb.NewNumberField(ac.VerticalRateFpm),
		Lat:          adsb.NewNumberField(ac.Lat),
		Lon:          adsb.NewNumberField(ac.Lon),
		SeenPos:      adsb.NewNumberField(0),
		Seen:         adsb.NewNumberField(0),
		RSSI:         adsb.NewNumberField(-20),
		Messages:     adsb.NewNumberField(100),
	}
}

// generateUniqueHex returns an unused 24-bit address. Caller holds the lock.
func (s *Service) generateUniqueHex() string {
	for {
		hex := fmt.Sprintf("%06x", s.rng.Intn(0xFFFFFF))
		if _, exists := s.aircraft[hex]; !exists {
			return hex
		}
	}
}
