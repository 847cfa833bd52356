package adsb

import (
	"math"
	"strings"
	"time"

	"github.com/yegors/overhead/internal/flight"
	"github.com/yegors/overhead/internal/physics"
)

// DefaultPositionMaxAge is the oldest position report that is still trusted
const DefaultPositionMaxAge = 45 * time.Second

// messageSourceTags are values of the "type" key that describe how the record was
// received rather than what the aircraft is
var messageSourceTags = []string{"adsb_", "adsr_", "tisb_", "adsc", "mlat", "mode_s", "other", "unknown"}

// ParseAircraft validates one raw record and converts it into a flight. It returns
// false when the position is stale, missing or the (0,0) sentinel.
func ParseAircraft(rec ADSBTarget, home physics.Point, maxAge time.Duration) (flight.Flight, bool) {
	pos, ok := extractPosition(rec, maxAge)
	if !ok {
		return flight.Flight{}, false
	}

	identity, hasCallsign := resolveIdentity(rec)

	f := flight.Flight{
		Identity:    identity,
		HasCallsign: hasCallsign,
		Hex:         strings.TrimSpace(rec.Hex),
		TypeCode:    resolveTypeCode(rec),
		Category:    strings.TrimSpace(rec.Category),
		AltitudeFt:  resolveAltitude(rec),
		Position:    &pos,
		DistanceKm:  physics.HaversineKm(home, pos),
		BearingDeg:  physics.InitialBearing(home, pos),
		Valid:       true,
	}
	return f, true
}

// extractPosition applies the staleness and sentinel checks
func extractPosition(rec ADSBTarget, maxAge time.Duration) (physics.Point, bool) {
	if maxAge <= 0 {
		maxAge = DefaultPositionMaxAge
	}

	// A seen_pos equal to the limit is still fresh
	if rec.SeenPos.IsSet() && rec.SeenPos.Float64() > maxAge.Seconds() {
		return physics.Point{}, false
	}

	if !rec.Lat.IsNumber() || !rec.Lon.IsNumber() {
		return physics.Point{}, false
	}

	lat, lon := rec.Lat.Float64(), rec.Lon.Float64()
	if lat == 0 && lon == 0 {
		return physics.Point{}, false
	}
	if math.IsNaN(lat) || math.IsNaN(lon) || math.Abs(lat) > 90 || math.Abs(lon) > 180 {
		return physics.Point{}, false
	}

	return physics.Point{Lat: lat, Lon: lon}, true
}

// resolveIdentity walks callsign, registration and hex in that order
func resolveIdentity(rec ADSBTarget) (string, bool) {
	if cs := strings.TrimSpace(rec.Flight); cs != "" {
		return cs, true
	}
	if reg := strings.TrimSpace(rec.Registration); reg != "" {
		return reg, false
	}
	if hex := strings.TrimSpace(rec.Hex); hex != "" {
		return hex, false
	}
	return flight.UnknownIdentity, false
}

// resolveTypeCode prefers "t" and only falls back to "type" when it looks like a designator
func resolveTypeCode(rec ADSBTarget) string {
	if t := strings.TrimSpace(rec.AircraftType); t != "" {
		return t
	}

	t := strings.TrimSpace(rec.Type)
	if t == "" {
		return ""
	}
	lower := strings.ToLower(t)
	for _, tag := range messageSourceTags {
		if strings.HasPrefix(lower, tag) {
			return ""
		}
	}
	return t
}

// resolveAltitude returns barometric altitude, else geometric, else -1. "ground" is 0.
func resolveAltitude(rec ADSBTarget) int {
	for _, field := range []FlexibleField{rec.AltBaro, rec.AltGeom} {
		if !field.IsSet() {
			continue
		}
		if field.IsGround() {
			return 0
		}
		return int(field.Float64())
	}
	return -1
}

// ParseAll parses every record and drops the ones that fail validation
func ParseAll(records []ADSBTarget, home physics.Point, maxAge time.Duration) []flight.Flight {
	out := make([]flight.Flight, 0, len(records))
	for _, rec := range records {
		if f, ok := ParseAircraft(rec, home, maxAge); ok {
			out = append(out, f)
		}
	}
	return out
}
