// Package storage records the flights that made it onto the panel.
//
// A Sighting is written once per distinct panel change. Backends live in the
// sqlite and postgres sub-packages; event streams implement Sink.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/yegors/overhead/internal/flight"
)

// ErrClosed is returned by a Recorder after Stop
var ErrClosed = errors.New("storage: recorder closed")

// Sighting is one displayed flight
type Sighting struct {
	ID              int64     `json:"id"`
	SeenAt          time.Time `json:"seen_at"`
	Hex             string    `json:"hex,omitempty"`
	Identity        string    `json:"identity"`
	TypeCode        string    `json:"type_code,omitempty"`
	Name            string    `json:"name"`
	OpClass         string    `json:"op_class,omitempty"`
	Route           string    `json:"route,omitempty"`
	RegisteredOwner string    `json:"registered_owner,omitempty"`
	AltitudeFt      int       `json:"altitude_ft"`
	DistanceKm      *float64  `json:"distance_km"`
	BearingDeg      *float64  `json:"bearing_deg"`
	Lat             *float64  `json:"lat"`
	Lon             *float64  `json:"lon"`
}

// FromFlight builds a sighting from a displayed flight and its panel title
func FromFlight(f flight.Flight, name string, at time.Time) Sighting {
	s := Sighting{
		SeenAt:          at.UTC(),
		Hex:             f.Hex,
		Identity:        f.Identity,
		TypeCode:        f.TypeCode,
		Name:            name,
		OpClass:         string(f.OpClass),
		Route:           f.Route,
		RegisteredOwner: f.RegisteredOwner,
		AltitudeFt:      f.AltitudeFt,
	}
	if f.HasDistance() {
		d := f.DistanceKm
		s.DistanceKm = &d
		if f.Position != nil {
			b := f.BearingDeg
			s.BearingDeg = &b
		}
	}
	if f.Position != nil {
		lat, lon := f.Position.Lat, f.Position.Lon
		s.Lat = &lat
		s.Lon = &lon
	}
	return s
}

// Store persists sightings
type Store interface {
	Insert(ctx context.Context, s Sighting) (int64, error)
	Recent(ctx context.Context, limit int) ([]Sighting, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// Sink receives every recorded sighting, e.g. a message broker
type Sink interface {
	Emit(ctx context.Context, s Sighting) error
	Close() error
}
