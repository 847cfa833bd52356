// Package display turns published flights into panel content and drives the render sinks.
package display

import (
	"fmt"
	"math"
	"strings"

	"github.com/yegors/overhead/internal/flight"
	"github.com/yegors/overhead/internal/physics"
)

// PanelKind tells sinks which screen is shown
type PanelKind string

const (
	PanelFlight PanelKind = "flight"
	PanelNoData PanelKind = "no_data"
	PanelSplash PanelKind = "splash"
)

// Metric labels, in panel order
const (
	MetricDistance = "DIST"
	MetricSeats    = "SEATS"
	MetricAltitude = "ALT"
	MetricBearing  = "BRG"
)

// Placeholder is shown for any field without a value
const Placeholder = "-"

// TypeNames is the part of the aircraft type table the panel needs
type TypeNames interface {
	FriendlyName(code string) string
	SeatMax(code string) (int, bool)
}

// Metric is one labelled value on the panel rim
type Metric struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Panel is the complete content of one screen
type Panel struct {
	Kind     PanelKind      `json:"kind"`
	Title    string         `json:"title"`
	Subtitle string         `json:"subtitle"`
	OpClass  flight.OpClass `json:"op_class,omitempty"`
	Route    string         `json:"route"`
	Metrics  []Metric       `json:"metrics"`
	Override bool           `json:"override,omitempty"`
}

// Metric returns the value for label, or "" if the panel has no such metric
func (p Panel) Metric(label string) string {
	for _, m := range p.Metrics {
		if m.Label == label {
			return m.Value
		}
	}
	return ""
}

var pseudoTargets = []struct {
	prefix string
	name   string
}{
	{"TISB", "TIS-B Target"},
	{"ADSB", "ADS-B Target"},
	{"MLAT", "MLAT Target"},
	{"MODE", "Mode-S Target"},
}

// BuildPanel lays out a flight for display
func BuildPanel(f flight.Flight, names TypeNames) Panel {
	code := strings.ToUpper(strings.TrimSpace(f.TypeCode))

	title := ""
	if code != "" && names != nil {
		title = names.FriendlyName(code)
	}
	pseudo := false
	if title == "" && code != "" {
		for _, pt := range pseudoTargets {
			if strings.HasPrefix(code, pt.prefix) {
				title = pt.name
				pseudo = true
				break
			}
		}
	}
	if title == "" {
		title = f.DisplayName
	}
	if title == "" {
		title = "Unknown Aircraft"
	}

	subtitle := f.Identity
	if subtitle == "" {
		subtitle = Placeholder
	}

	route := f.Route
	if route == "" {
		route = f.RegisteredOwner
	}
	if route == "" {
		route = Placeholder
	}

	return Panel{
		Kind:     PanelFlight,
		Title:    title,
		Subtitle: subtitle,
		OpClass:  f.OpClass,
		Route:    route,
		Metrics: []Metric{
			{MetricDistance, formatDistance(f)},
			{MetricSeats, formatSeats(f, code, pseudo, names)},
			{MetricAltitude, formatAltitude(f.AltitudeFt)},
			{MetricBearing, formatBearing(f)},
		},
	}
}

// SplashPanel is the start-up and reconnecting screen
func SplashPanel(title, subtitle string) Panel {
	return emptyPanel(PanelSplash, title, subtitle)
}

// NoDataPanel is shown while nothing has been displayed and the last cycle failed
func NoDataPanel(detail string) Panel {
	return emptyPanel(PanelNoData, "No Data", detail)
}

func emptyPanel(kind PanelKind, title, subtitle string) Panel {
	return Panel{
		Kind:     kind,
		Title:    title,
		Subtitle: subtitle,
		Route:    Placeholder,
		Metrics: []Metric{
			{MetricDistance, Placeholder},
			{MetricSeats, Placeholder},
			{MetricAltitude, Placeholder},
			{MetricBearing, Placeholder},
		},
	}
}

func formatDistance(f flight.Flight) string {
	if !f.HasDistance() {
		return Placeholder
	}
	return fmt.Sprintf("%.1f km", f.DistanceKm)
}

func formatSeats(f flight.Flight, code string, pseudo bool, names TypeNames) string {
	switch {
	case pseudo:
		return Placeholder
	case f.SeatOverride > 0:
		return fmt.Sprintf("%d", f.SeatOverride)
	}
	if code == "" || names == nil {
		return Placeholder
	}
	if max, ok := names.SeatMax(code); ok && max > 0 {
		return fmt.Sprintf("%d", max)
	}
	return Placeholder
}

func formatAltitude(ft int) string {
	switch {
	case ft < 0:
		return Placeholder
	case ft == 0:
		return "ground"
	}
	return fmt.Sprintf("%d m", int(float64(ft)*physics.FeetToMeters+0.5))
}

func formatBearing(f flight.Flight) string {
	if !f.HasDistance() || f.Position == nil {
		return Placeholder
	}
	deg := int(math.Round(f.BearingDeg)) % 360
	return fmt.Sprintf("%03d°", deg)
}
