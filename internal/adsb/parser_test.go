package adsb

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/overhead/internal/flight"
	"github.com/yegors/overhead/internal/physics"
)

var testHome = physics.Point{Lat: 32.0853, Lon: 34.7818}

func decodeTarget(t *testing.T, raw string) ADSBTarget {
	t.Helper()
	var rec ADSBTarget
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))
	return rec
}

func TestParseAircraftPositionStaleness(t *testing.T) {
	fresh := decodeTarget(t, `{"hex":"abc123","lat":32.1,"lon":34.8,"seen_pos":45}`)
	_, ok := ParseAircraft(fresh, testHome, DefaultPositionMaxAge)
	assert.True(t, ok, "seen_pos equal to the limit is accepted")

	stale := decodeTarget(t, `{"hex":"abc123","lat":32.1,"lon":34.8,"seen_pos":46}`)
	_, ok = ParseAircraft(stale, testHome, DefaultPositionMaxAge)
	assert.False(t, ok, "seen_pos above the limit is rejected")

	noSeen := decodeTarget(t, `{"hex":"abc123","lat":32.1,"lon":34.8}`)
	_, ok = ParseAircraft(noSeen, testHome, DefaultPositionMaxAge)
	assert.True(t, ok, "missing seen_pos is not a staleness failure")
}

func TestParseAircraftRejectsMissingOrZeroPosition(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"zero sentinel", `{"hex":"abc123","flight":"ELY001","lat":0,"lon":0,"alt_baro":35000,"t":"B738"}`},
		{"missing lat", `{"hex":"abc123","lon":34.8}`},
		{"null lon", `{"hex":"abc123","lat":32.1,"lon":null}`},
		{"string position", `{"hex":"abc123","lat":"32.1","lon":"34.8"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := ParseAircraft(decodeTarget(t, tt.raw), testHome, DefaultPositionMaxAge)
			assert.False(t, ok)
		})
	}

	// Only the (0,0) pair is a sentinel
	f, ok := ParseAircraft(decodeTarget(t, `{"hex":"abc123","lat":0,"lon":34.8}`), testHome, DefaultPositionMaxAge)
	require.True(t, ok)
	assert.Equal(t, 0.0, f.Position.Lat)
}

func TestParseAircraftIdentityChain(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		identity    string
		hasCallsign bool
	}{
		{"callsign trimmed", `{"flight":"ELY001  ","r":"4X-EKA","hex":"738065","lat":32.1,"lon":34.8}`, "ELY001", true},
		{"registration", `{"r":" 4X-EKA ","hex":"738065","lat":32.1,"lon":34.8}`, "4X-EKA", false},
		{"blank callsign falls through", `{"flight":"   ","r":"4X-EKA","lat":32.1,"lon":34.8}`, "4X-EKA", false},
		{"hex", `{"hex":"738065","lat":32.1,"lon":34.8}`, "738065", false},
		{"unknown", `{"lat":32.1,"lon":34.8}`, flight.UnknownIdentity, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ok := ParseAircraft(decodeTarget(t, tt.raw), testHome, DefaultPositionMaxAge)
			require.True(t, ok)
			assert.Equal(t, tt.identity, f.Identity)
			assert.Equal(t, tt.hasCallsign, f.HasCallsign)
		})
	}
}

func TestParseAircraftAltitude(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		alt  int
	}{
		{"baro", `{"lat":32.1,"lon":34.8,"alt_baro":12000,"alt_geom":12500}`, 12000},
		{"geom fallback", `{"lat":32.1,"lon":34.8,"alt_geom":12500}`, 12500},
		{"null baro uses geom", `{"lat":32.1,"lon":34.8,"alt_baro":null,"alt_geom":800}`, 800},
		{"ground", `{"lat":32.1,"lon":34.8,"alt_baro":"ground"}`, 0},
		{"unknown", `{"lat":32.1,"lon":34.8}`, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ok := ParseAircraft(decodeTarget(t, tt.raw), testHome, DefaultPositionMaxAge)
			require.True(t, ok)
			assert.Equal(t, tt.alt, f.AltitudeFt)
		})
	}
}

func TestParseAircraftTypeCode(t *testing.T) {
	f, ok := ParseAircraft(decodeTarget(t, `{"lat":32.1,"lon":34.8,"t":"B738","type":"adsb_icao"}`), testHome, 0)
	require.True(t, ok)
	assert.Equal(t, "B738", f.TypeCode)

	f, _ = ParseAircraft(decodeTarget(t, `{"lat":32.1,"lon":34.8,"type":"adsb_icao"}`), testHome, 0)
	assert.Equal(t, "", f.TypeCode, "message source tags are not type codes")

	f, _ = ParseAircraft(decodeTarget(t, `{"lat":32.1,"lon":34.8,"type":"C172"}`), testHome, 0)
	assert.Equal(t, "C172", f.TypeCode)
}

func TestParseAircraftDistance(t *testing.T) {
	f, ok := ParseAircraft(decodeTarget(t, `{"hex":"abc","lat":32.1853,"lon":34.7818,"category":"A3"}`), testHome, 0)
	require.True(t, ok)
	assert.True(t, f.Valid)
	assert.Equal(t, "A3", f.Category)
	assert.InDelta(t, 11.12, f.DistanceKm, 0.05)
	assert.InDelta(t, 0, f.BearingDeg, 0.5)
	assert.False(t, math.IsNaN(f.DistanceKm))
}

func TestParseAll(t *testing.T) {
	var resp APIResponse
	require.NoError(t, json.Unmarshal([]byte(`{"ac":[
		{"hex":"a","lat":32.1,"lon":34.8},
		{"hex":"b","lat":0,"lon":0},
		{"hex":"c","lat":32.2,"lon":34.9,"seen_pos":120}
	]}`), &resp))

	flights := ParseAll(resp.Records(), testHome, DefaultPositionMaxAge)
	require.Len(t, flights, 1)
	assert.Equal(t, "a", flights[0].Hex)
}

func TestFlexibleFieldNull(t *testing.T) {
	var ff FlexibleField
	require.NoError(t, json.Unmarshal([]byte(`null`), &ff))
	assert.False(t, ff.IsSet())

	require.NoError(t, json.Unmarshal([]byte(`"ground"`), &ff))
	assert.True(t, ff.IsSet())
	assert.True(t, ff.IsGround())
	assert.Equal(t, 0.0, ff.Float64())

	require.NoError(t, json.Unmarshal([]byte(`31000`), &ff))
	assert.Equal(t, 31000, ff.Int())
	assert.Equal(t, "31000", ff.String())

	assert.Error(t, json.Unmarshal([]byte(`{}`), &ff))
}
