package display

import (
	"math"

	"github.com/yegors/overhead/internal/flight"
)

// DistanceTolerance is the distance change, in km, that does not count as a visible change
const DistanceTolerance = 0.1

// distanceEpsilon absorbs float rounding so a delta of exactly 0.1 km stays "same"
const distanceEpsilon = 1e-9

// SameDisplay reports whether b would render identically to a on the panel
func SameDisplay(a, b flight.Flight) bool {
	if !a.Valid && !b.Valid {
		return true
	}
	if a.Valid != b.Valid {
		return false
	}
	if a.Identity != b.Identity ||
		a.TypeCode != b.TypeCode ||
		a.AltitudeFt != b.AltitudeFt ||
		a.OpClass != b.OpClass ||
		a.Route != b.Route {
		return false
	}
	return math.Abs(zeroNaN(a.DistanceKm)-zeroNaN(b.DistanceKm)) <= DistanceTolerance+distanceEpsilon
}

func zeroNaN(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}
