// Package classify assigns the operating class badge to a selected flight.
package classify

import (
	"strings"

	"github.com/yegors/overhead/internal/flight"
)

// DefaultSmallAircraftSeatThreshold is the largest seat count still treated as private
const DefaultSmallAircraftSeatThreshold = 20

// SeatTable reports the maximum typical seat count for a type code
type SeatTable interface {
	SeatMax(code string) (int, bool)
}

// Classify returns MIL for military airframes, PVT for small types, and
// otherwise COM when the flight carries a callsign or PVT when it does not.
// A threshold <= 0 uses DefaultSmallAircraftSeatThreshold. A positive
// SeatOverride replaces the table's seat count.
func Classify(f flight.Flight, isMil bool, seats SeatTable, threshold int) flight.OpClass {
	if isMil {
		return flight.OpMilitary
	}

	if threshold <= 0 {
		threshold = DefaultSmallAircraftSeatThreshold
	}

	if n := maxSeats(f, seats); n > 0 && n <= threshold {
		return flight.OpPrivate
	}

	if f.HasCallsign {
		return flight.OpCommercial
	}
	return flight.OpPrivate
}

// maxSeats returns the seat count to classify with, 0 when unknown
func maxSeats(f flight.Flight, seats SeatTable) int {
	if f.SeatOverride > 0 {
		return f.SeatOverride
	}
	code := strings.TrimSpace(f.TypeCode)
	if code == "" || seats == nil {
		return 0
	}
	if n, ok := seats.SeatMax(code); ok && n > 0 {
		return n
	}
	return 0
}
