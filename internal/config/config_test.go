package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadKeepsDefaultsForMissingValues(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.toml", `
[station]
latitude = 32.0114
longitude = 34.8867

[adsb]
fetch_interval_seconds = 10

[enrichment]
hexdb_enabled = false
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 10*time.Second, cfg.ADSB.FetchInterval())
	assert.Equal(t, 45*time.Second, cfg.ADSB.PositionMaxAge())
	assert.Equal(t, "https://api.adsb.lol", cfg.ADSB.APIBase)
	assert.True(t, cfg.Enrichment.MilitaryEnabled)
	assert.False(t, cfg.Enrichment.HexDBEnabled)
	assert.Equal(t, 20, cfg.Classify.SmallAircraftSeatThreshold)
	assert.Equal(t, 5*time.Minute, cfg.Display.OverrideTTL())
	assert.Equal(t, 50*time.Millisecond, cfg.Display.PollInterval())
}

func TestShippedConfigIsValid(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "config.toml"))
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.ErrorContains(t, err, "config file not found")
}

func TestStationFromAirportCSV(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeFile(t, dir, "airports.csv",
		"id,ident,type,name,latitude_deg,longitude_deg,elevation_ft\n"+
			"1,LLBG,large_airport,Ben Gurion,32.0114,34.8867,135\n"+
			"2,LLHA,medium_airport,Haifa,32.8094,35.0431,28\n")
	path := writeFile(t, dir, "config.toml", `
[station]
airport_code = "LLHA"
airports_db_path = "`+filepath.ToSlash(csvPath)+`"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.InDelta(t, 32.8094, cfg.Station.Latitude, 1e-9)
	assert.InDelta(t, 35.0431, cfg.Station.Longitude, 1e-9)

	cfg.Station.AirportCode = "XXXX"
	assert.Error(t, cfg.loadStationFromCSV())
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"OVERHEAD_API_BASE":   " api.example.net ",
		"OVERHEAD_LAT":        "51.47",
		"OVERHEAD_LON":        "-0.4543",
		"OVERHEAD_JWT_SECRET": "s3cret",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	cfg.Station.AirportCode = "LLBG"
	require.NoError(t, cfg.applyEnv(lookup))
	assert.Equal(t, "api.example.net", cfg.ADSB.APIBase)
	assert.Equal(t, 51.47, cfg.Station.Latitude)
	assert.Equal(t, -0.4543, cfg.Station.Longitude)
	assert.Empty(t, cfg.Station.AirportCode, "explicit coordinates win over the airport lookup")
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)

	env["OVERHEAD_LAT"] = "north"
	assert.Error(t, cfg.applyEnv(lookup))
}

func TestValidateRejects(t *testing.T) {
	tests := map[string]func(c *Config){
		"port":          func(c *Config) { c.Server.Port = 0 },
		"source type":   func(c *Config) { c.ADSB.SourceType = "opensky" },
		"local url":     func(c *Config) { c.ADSB.SourceType = "local" },
		"simulated":     func(c *Config) { c.ADSB.SimulatedAircraft = -1 },
		"selector":      func(c *Config) { c.ADSB.Selector = "box" },
		"radius":        func(c *Config) { c.ADSB.SearchRadiusKm = 0 },
		"interval":      func(c *Config) { c.ADSB.FetchIntervalSecs = 0 },
		"retries":       func(c *Config) { c.ADSB.MaxRetries = -1 },
		"station unset": func(c *Config) { c.Station = StationConfig{} },
		"latitude":      func(c *Config) { c.Station.Latitude = 91 },
		"log level":     func(c *Config) { c.Logging.Level = "trace" },
		"log format":    func(c *Config) { c.Logging.Format = "xml" },
		"storage":       func(c *Config) { c.Storage.Type = "mysql" },
		"sqlite path":   func(c *Config) { c.Storage.SQLitePath = "" },
		"postgres dsn":  func(c *Config) { c.Storage.Type = "postgres" },
		"kafka brokers": func(c *Config) { c.Kafka.Enabled = true },
		"static dir":    func(c *Config) { c.Server.StaticFilesDir = "/definitely/not/here" },
		"retention":     func(c *Config) { c.Storage.RetentionDays = -1 },
		"diagnostics":   func(c *Config) { c.Diagnostics.IntervalSecs = -1 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			cfg.Station.Latitude, cfg.Station.Longitude = 32, 34.8
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateNoneStorage(t *testing.T) {
	cfg := Default()
	cfg.Station.Latitude, cfg.Station.Longitude = 32, 34.8
	cfg.Storage.Type = ""
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "none", cfg.Storage.Type)
}

func TestValidateSimulationSource(t *testing.T) {
	cfg := Default()
	cfg.Station.Latitude, cfg.Station.Longitude = 32, 34.8
	cfg.ADSB.SourceType = "simulation"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3, cfg.ADSB.SimulatedAircraft)
}
