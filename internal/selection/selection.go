// Package selection picks the single flight of interest from a parsed aircraft list.
package selection

import (
	"math"
	"strings"

	"github.com/yegors/overhead/internal/flight"
)

// DefaultMaxCandidates bounds the military candidate set per cycle
const DefaultMaxCandidates = 48

// Tier is the priority bucket the selected flight came from
type Tier int

const (
	TierNone Tier = iota
	TierGrounded
	TierAirborne
	TierMilitaryGrounded
	TierMilitaryAirborne
)

// String returns the tier name used in logs and the status API
func (t Tier) String() string {
	switch t {
	case TierGrounded:
		return "grounded"
	case TierAirborne:
		return "airborne"
	case TierMilitaryGrounded:
		return "military-grounded"
	case TierMilitaryAirborne:
		return "military-airborne"
	default:
		return "none"
	}
}

// MarshalText encodes the tier by name
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Military reports whether the tier is one of the military buckets
func (t Tier) Military() bool {
	return t == TierMilitaryAirborne || t == TierMilitaryGrounded
}

type best struct {
	f  flight.Flight
	ok bool
}

func (b *best) offer(f flight.Flight) {
	if !b.ok || distance(f) < distance(b.f) {
		b.f = f
		b.ok = true
	}
}

func distance(f flight.Flight) float64 {
	if !f.HasDistance() {
		return math.Inf(1)
	}
	return f.DistanceKm
}

// Select returns the flight of interest. Priority is the nearest military
// airborne record, then military grounded, then airborne, then grounded.
// Invalid records are ignored; ok is false when nothing valid remains.
// isMil may be nil.
func Select(records []flight.Flight, isMil func(hex string) bool) (flight.Flight, Tier, bool) {
	var air, ground, milAir, milGround best

	for _, f := range records {
		if !f.Valid {
			continue
		}
		mil := isMil != nil && f.Hex != "" && isMil(f.Hex)

		if f.Airborne() {
			air.offer(f)
			if mil {
				milAir.offer(f)
			}
		} else {
			ground.offer(f)
			if mil {
				milGround.offer(f)
			}
		}
	}

	switch {
	case milAir.ok:
		return milAir.f, TierMilitaryAirborne, true
	case milGround.ok:
		return milGround.f, TierMilitaryGrounded, true
	case air.ok:
		return air.f, TierAirborne, true
	case ground.ok:
		return ground.f, TierGrounded, true
	default:
		return flight.Flight{}, TierNone, false
	}
}

// Candidates returns the distinct lower-cased hex ids of valid records, in
// input order, capped at max. truncated reports whether ids were dropped.
func Candidates(records []flight.Flight, max int) (hexes []string, truncated bool) {
	if max <= 0 {
		max = DefaultMaxCandidates
	}

	seen := make(map[string]struct{}, len(records))
	for _, f := range records {
		if !f.Valid {
			continue
		}
		hex := strings.ToLower(strings.TrimSpace(f.Hex))
		if hex == "" {
			continue
		}
		if _, dup := seen[hex]; dup {
			continue
		}
		if len(hexes) >= max {
			truncated = true
			break
		}
		seen[hex] = struct{}{}
		hexes = append(hexes, hex)
	}
	return hexes, truncated
}
