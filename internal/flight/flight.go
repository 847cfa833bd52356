// Package flight holds the normalized flight record shared by the pipeline stages.
package flight

import (
	"encoding/json"
	"math"

	"github.com/yegors/overhead/internal/physics"
)

// OpClass is the operating category shown on the panel badge
type OpClass string

const (
	OpUnset      OpClass = ""
	OpMilitary   OpClass = "MIL"
	OpCommercial OpClass = "COM"
	OpPrivate    OpClass = "PVT"
)

// UnknownIdentity is used when a record carries no callsign, registration or hex
const UnknownIdentity = "(unknown)"

// Position is a reported aircraft position
type Position = physics.Point

// Flight is one aircraft record normalized for selection, classification and display
type Flight struct {
	Identity    string    `json:"identity"`
	HasCallsign bool      `json:"has_callsign"`
	Hex         string    `json:"hex,omitempty"`
	TypeCode    string    `json:"type_code,omitempty"`
	Category    string    `json:"category,omitempty"`
	AltitudeFt  int       `json:"altitude_ft"` // -1 when unknown
	Position    *Position `json:"position,omitempty"`
	DistanceKm  float64   `json:"distance_km"` // NaN without a position

	BearingDeg         float64 `json:"bearing_deg"`
	MagneticBearingDeg float64 `json:"magnetic_bearing_deg"`

	OpClass         OpClass `json:"op_class,omitempty"`
	Route           string  `json:"route,omitempty"`
	DisplayName     string  `json:"display_name,omitempty"`
	RegisteredOwner string  `json:"registered_owner,omitempty"`
	SeatOverride    int     `json:"seat_override,omitempty"`

	Valid bool `json:"valid"`
}

// Airborne reports whether the record counts as in flight
func (f Flight) Airborne() bool {
	return f.AltitudeFt > 0
}

// HasDistance reports whether DistanceKm carries a real value
func (f Flight) HasDistance() bool {
	return !math.IsNaN(f.DistanceKm)
}

// Callsign returns the identity when it came from a callsign, otherwise ""
func (f Flight) Callsign() string {
	if !f.HasCallsign {
		return ""
	}
	return f.Identity
}

// MarshalJSON encodes an unknown distance as null
func (f Flight) MarshalJSON() ([]byte, error) {
	type alias Flight
	out := struct {
		alias
		DistanceKm *float64 `json:"distance_km"`
	}{alias: alias(f)}
	if f.HasDistance() {
		d := f.DistanceKm
		out.DistanceKm = &d
	}
	return json.Marshal(out)
}
