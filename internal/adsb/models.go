package adsb

import (
	"time"

	"github.com/yegors/overhead/internal/flight"
)

// Source types
const (
	SourceExternal   = "external"   // readsb-style aggregation API (adsb.lol, airplanes.live)
	SourceLocal      = "local"      // local tar1090/readsb aircraft.json
	SourceSimulation = "simulation" // synthetic traffic around the station
)

// TrafficSource supplies records without going to the network
type TrafficSource interface {
	Targets(now time.Time) []ADSBTarget
}

// APIResponse is the raw JSON envelope returned by the aggregation API. External
// APIs put records under "ac", a local readsb instance under "aircraft".
type APIResponse struct {
	Now      FlexibleField `json:"now"`
	Messages int           `json:"messages,omitempty"`
	Msg      string        `json:"msg,omitempty"`
	Total    int           `json:"total,omitempty"`
	AC       []ADSBTarget  `json:"ac"`
	Aircraft []ADSBTarget  `json:"aircraft"`
}

// Records returns whichever aircraft list the response carried
func (r *APIResponse) Records() []ADSBTarget {
	if len(r.AC) > 0 {
		return r.AC
	}
	return r.Aircraft
}

// ADSBTarget represents a single aircraft record as reported by the source.
// Numeric fields use FlexibleField so that null, strings and "ground" survive decoding.
type ADSBTarget struct {
	Hex          string        `json:"hex"`
	Type         string        `json:"type"` // message source tag, or a type code on some feeds
	Flight       string        `json:"flight"`
	Registration string        `json:"r"`
	AircraftType string        `json:"t"`
	Category     string        `json:"category"`
	Squawk       string        `json:"squawk"`
	AltBaro      FlexibleField `json:"alt_baro"`
	AltGeom      FlexibleField `json:"alt_geom"`
	GS           FlexibleField `json:"gs"`
	Track        FlexibleField `json:"track"`
	BaroRate     FlexibleField `json:"baro_rate"`
	Lat          FlexibleField `json:"lat"`
	Lon          FlexibleField `json:"lon"`
	SeenPos      FlexibleField `json:"seen_pos"`
	Seen         FlexibleField `json:"seen"`
	RSSI         FlexibleField `json:"rssi"`
	Messages     FlexibleField `json:"messages"`
	MLAT         []string      `json:"mlat"`
	TISB         []string      `json:"tisb"`
	SourceType   string        `json:"source_type,omitempty"`
}

// FetchResult is one successful poll of the aggregation API
type FetchResult struct {
	Records   []ADSBTarget
	FetchedAt time.Time
	URL       string
}

// Status is the orchestrator state exposed to the status API
type Status struct {
	State          string         `json:"state"` // "idle" or "fetching"
	LastFetch      time.Time      `json:"last_fetch"`
	LastFetchOK    bool           `json:"last_fetch_ok"`
	LastError      string         `json:"last_error,omitempty"`
	Cycles         uint64         `json:"cycles"`
	Published      uint64         `json:"published_seq"`
	RateLimitUntil *time.Time     `json:"rate_limit_until,omitempty"`
	Interval       time.Duration  `json:"interval_ns"`
	Current        *flight.Flight `json:"current,omitempty"`
}

// Orchestrator states
const (
	StateIdle     = "idle"
	StateFetching = "fetching"
)

// Publication reasons for Valid=false messages
const (
	ReasonFetchFailed = "fetch_failed"
	ReasonNoAircraft  = "no_aircraft"
	ReasonOffline     = "offline"
)
