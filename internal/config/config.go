package config

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server       ServerConfig       `toml:"server"`       // HTTP server settings
	ADSB         ADSBConfig         `toml:"adsb"`         // Nearby-aircraft source settings
	Station      StationConfig      `toml:"station"`      // Physical location settings
	Enrichment   EnrichmentConfig   `toml:"enrichment"`   // Military / HexDB / route lookups
	Classify     ClassifyConfig     `toml:"classify"`     // Operating category rules
	Display      DisplayConfig      `toml:"display"`      // Panel sinks and test override
	Connectivity ConnectivityConfig `toml:"connectivity"` // Upstream reachability probe
	Logging      LoggingConfig      `toml:"logging"`      // Application logging settings
	Storage      StorageConfig      `toml:"storage"`      // Sighting history persistence
	Kafka        KafkaConfig        `toml:"kafka"`        // Sighting event stream
	Auth         AuthConfig         `toml:"auth"`         // Admin endpoint protection
	Diagnostics  DiagnosticsConfig  `toml:"diagnostics"`  // Heap statistics logging
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port               int      `toml:"port"`                  // HTTP port for the status API
	Host               string   `toml:"host"`                  // Host address to bind to (e.g., 127.0.0.1 for localhost only, 0.0.0.0 for all interfaces)
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`  // List of origins allowed for CORS requests (use ["*"] for all origins)
	ReadTimeoutSecs    int      `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request (0 = no timeout)
	WriteTimeoutSecs   int      `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout)
	IdleTimeoutSecs    int      `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request when keep-alives are enabled
	StaticFilesDir     string   `toml:"static_files_dir"`      // Optional directory with a web panel (empty disables static serving)
}

// ADSBConfig contains the nearby-aircraft source configuration
type ADSBConfig struct {
	// Source selection
	// Allowed values:
	// - "external": adsb.lol style REST API (default)
	// - "local": a local readsb / tar1090 aircraft.json
	// - "simulation": synthetic traffic seeded around the station
	SourceType        string `toml:"source_type"`
	LocalSourceURL    string `toml:"local_source_url"`   // URL for the local aircraft.json (source_type = "local")
	SimulatedAircraft int    `toml:"simulated_aircraft"` // Aircraft seeded at startup (source_type = "simulation", default 3)

	APIBase        string  `toml:"api_base"`         // Aggregator base URL; plain hosts get https://
	Selector       string  `toml:"selector"`         // "lat-lon-dist" (default), "point" or "closest"
	SearchRadiusKm float64 `toml:"search_radius_km"` // Query radius, sent as whole nautical miles clamped to [1,250]

	FetchIntervalSecs   int    `toml:"fetch_interval_seconds"`   // Polling period (default 30)
	PositionMaxAgeSecs  int    `toml:"position_max_age_seconds"` // Records with an older position are dropped (default 45)
	MaxCandidates       int    `toml:"max_candidates"`           // Cap for the batch military check (default 48)
	TimeoutSecs         int    `toml:"timeout_seconds"`          // Whole request timeout (default 30)
	ConnectTimeoutSecs  int    `toml:"connect_timeout_seconds"`  // TCP connect timeout (default 15)
	MaxRetries          int    `toml:"max_retries"`              // Extra attempts for transient fetch failures (default 0)
	RetryInitialDelayMs int    `toml:"retry_initial_delay_ms"`   // First backoff delay (default 350)
	RetryMaxDelayMs     int    `toml:"retry_max_delay_ms"`       // Backoff cap (default 6000)
	UserAgent           string `toml:"user_agent"`               // Sent on every upstream request
}

// StationConfig contains the ground location the distances are measured from.
// Either latitude/longitude or airport_code + airports_db_path must be set.
type StationConfig struct {
	Latitude       float64 `toml:"latitude"`         // Latitude in decimal degrees
	Longitude      float64 `toml:"longitude"`        // Longitude in decimal degrees
	AirportCode    string  `toml:"airport_code"`     // ICAO code of a nearby airport (e.g., "LLBG")
	AirportsDBPath string  `toml:"airports_db_path"` // Path to an airport database CSV file (OurAirports format)
}

// EnrichmentConfig contains the optional lookups
type EnrichmentConfig struct {
	MilitaryEnabled   bool `toml:"military_enabled"`
	MilitaryTTLHours  int  `toml:"military_ttl_hours"`  // default 6
	MilitaryCacheSize int  `toml:"military_cache_size"` // default 16

	HexDBEnabled         bool   `toml:"hexdb_enabled"`
	HexDBBase            string `toml:"hexdb_base"`                 // default https://hexdb.io
	HexDBTTLHours        int    `toml:"hexdb_ttl_hours"`            // default 24
	HexDBCacheSize       int    `toml:"hexdb_cache_size"`           // default 12
	HexDBMinIntervalSecs int    `toml:"hexdb_min_interval_seconds"` // default 15
	HexDBMinHeadroom     uint64 `toml:"hexdb_min_headroom_bytes"`   // default 50000

	RouteEnabled  bool `toml:"route_enabled"`
	RouteTTLHours int  `toml:"route_ttl_hours"` // default 6

	TimeoutSecs        int `toml:"timeout_seconds"`         // default 10
	ConnectTimeoutSecs int `toml:"connect_timeout_seconds"` // default 8
}

// ClassifyConfig contains the operating category rules
type ClassifyConfig struct {
	SmallAircraftSeatThreshold int    `toml:"small_aircraft_seat_threshold"` // Types seating at most this many are private (default 20)
	TypeTablePath              string `toml:"type_table_path"`               // Optional replacement for the built-in type table (JSON, optionally zstd)
}

// DisplayConfig contains the panel sink settings
type DisplayConfig struct {
	TUI                bool `toml:"tui"`                  // Draw the panel in the terminal
	LogPanels          bool `toml:"log_panels"`           // Log every panel change
	PollIntervalMs     int  `toml:"poll_interval_ms"`     // Render loop poll slice (default 50)
	OverrideTTLSecs    int  `toml:"override_ttl_seconds"` // How long a test override stays on screen (default 300)
	OverrideEndpoint   bool `toml:"override_endpoint"`    // Expose PUT /test/closest
	WebSocketBroadcast bool `toml:"websocket"`            // Push panels to /ws clients
}

// ConnectivityConfig contains the upstream reachability probe settings
type ConnectivityConfig struct {
	Enabled      bool   `toml:"enabled"`
	ProbeURL     string `toml:"probe_url"`        // default: the API base
	IntervalSecs int    `toml:"interval_seconds"` // Probe period while online (default 30)
	TimeoutSecs  int    `toml:"timeout_seconds"`  // Probe timeout (default 5)
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
	File   string `toml:"file"`   // Optional log file, useful while the terminal panel owns the screen
}

// StorageConfig contains sighting history configuration
type StorageConfig struct {
	Type          string `toml:"type"`           // "sqlite", "postgres" or "none"
	SQLitePath    string `toml:"sqlite_path"`    // Database file for the sqlite backend
	PostgresDSN   string `toml:"postgres_dsn"`   // Connection string for the postgres backend
	RetentionDays int    `toml:"retention_days"` // Sightings older than this are pruned (0 keeps everything)
}

// KafkaConfig contains the sighting event stream settings
type KafkaConfig struct {
	Enabled  bool     `toml:"enabled"`
	Brokers  []string `toml:"brokers"`
	Topic    string   `toml:"topic"`
	ClientID string   `toml:"client_id"`
}

// AuthConfig protects the mutating endpoints. An empty secret disables auth.
type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret"`
	Issuer    string `toml:"issuer"`
}

// DiagnosticsConfig contains the heap statistics settings
type DiagnosticsConfig struct {
	IntervalSecs     int    `toml:"interval_seconds"`   // default 60, 0 disables the periodic log
	MemoryLimitBytes uint64 `toml:"memory_limit_bytes"` // Budget used for headroom; 0 uses the runtime soft limit
}

// Default returns a configuration with every default filled in
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:             8080,
			Host:             "0.0.0.0",
			ReadTimeoutSecs:  15,
			WriteTimeoutSecs: 15,
			IdleTimeoutSecs:  60,
		},
		ADSB: ADSBConfig{
			SourceType:          "external",
			SimulatedAircraft:   3,
			APIBase:             "https://api.adsb.lol",
			Selector:            "lat-lon-dist",
			SearchRadiusKm:      25,
			FetchIntervalSecs:   30,
			PositionMaxAgeSecs:  45,
			MaxCandidates:       48,
			TimeoutSecs:         30,
			ConnectTimeoutSecs:  15,
			RetryInitialDelayMs: 350,
			RetryMaxDelayMs:     6000,
			UserAgent:           "overhead/dev",
		},
		Enrichment: EnrichmentConfig{
			MilitaryEnabled:      true,
			MilitaryTTLHours:     6,
			MilitaryCacheSize:    16,
			HexDBEnabled:         true,
			HexDBBase:            "https://hexdb.io",
			HexDBTTLHours:        24,
			HexDBCacheSize:       12,
			HexDBMinIntervalSecs: 15,
			HexDBMinHeadroom:     50000,
			RouteEnabled:         true,
			RouteTTLHours:        6,
			TimeoutSecs:          10,
			ConnectTimeoutSecs:   8,
		},
		Classify: ClassifyConfig{
			SmallAircraftSeatThreshold: 20,
		},
		Display: DisplayConfig{
			LogPanels:          true,
			PollIntervalMs:     50,
			OverrideTTLSecs:    300,
			OverrideEndpoint:   true,
			WebSocketBroadcast: true,
		},
		Connectivity: ConnectivityConfig{
			Enabled:      true,
			IntervalSecs: 30,
			TimeoutSecs:  5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Storage: StorageConfig{
			Type:       "sqlite",
			SQLitePath: "data/overhead.db",
		},
		Kafka: KafkaConfig{
			Topic:    "overhead.sightings",
			ClientID: "overhead",
		},
		Auth: AuthConfig{
			Issuer: "overhead",
		},
		Diagnostics: DiagnosticsConfig{
			IntervalSecs: 60,
		},
	}
}

// Load loads the configuration from the specified file path. Values missing
// from the file keep their defaults; environment overrides are applied last.
func Load(path string) (*Config, error) {
	config := Default()

	// Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	// Read the config file
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	if err := config.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	// Resolve station coordinates from the airport database when an airport is named
	if config.Station.AirportCode != "" {
		if err := config.loadStationFromCSV(); err != nil {
			return nil, fmt.Errorf("failed to load station details from CSV: %w", err)
		}
	}

	return &config, nil
}

// applyEnv overrides selected values from the environment
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("OVERHEAD_API_BASE"); ok && strings.TrimSpace(v) != "" {
		c.ADSB.APIBase = strings.TrimSpace(v)
	}
	if v, ok := lookup("OVERHEAD_LAT"); ok && v != "" {
		lat, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("invalid OVERHEAD_LAT: %w", err)
		}
		c.Station.Latitude = lat
		c.Station.AirportCode = ""
	}
	if v, ok := lookup("OVERHEAD_LON"); ok && v != "" {
		lon, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("invalid OVERHEAD_LON: %w", err)
		}
		c.Station.Longitude = lon
		c.Station.AirportCode = ""
	}
	if v, ok := lookup("OVERHEAD_JWT_SECRET"); ok {
		c.Auth.JWTSecret = v
	}
	return nil
}

// loadStationFromCSV parses the airports.csv file to find the station coordinates
func (c *Config) loadStationFromCSV() error {
	if c.Station.AirportsDBPath == "" {
		return fmt.Errorf("airports_db_path is required when airport_code is set")
	}

	file, err := os.Open(c.Station.AirportsDBPath)
	if err != nil {
		return err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.LazyQuotes = true

	// Skip header
	if _, err := reader.Read(); err != nil {
		return err
	}

	records, err := reader.ReadAll()
	if err != nil {
		return err
	}

	for _, record := range records {
		if len(record) < 6 || record[1] != c.Station.AirportCode {
			continue
		}

		lat, err := strconv.ParseFloat(record[4], 64)
		if err != nil {
			return fmt.Errorf("invalid latitude in CSV for %s: %w", c.Station.AirportCode, err)
		}
		lon, err := strconv.ParseFloat(record[5], 64)
		if err != nil {
			return fmt.Errorf("invalid longitude in CSV for %s: %w", c.Station.AirportCode, err)
		}
		c.Station.Latitude = lat
		c.Station.Longitude = lon
		return nil
	}

	return fmt.Errorf("airport code %s not found in %s", c.Station.AirportCode, c.Station.AirportsDBPath)
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	// List of paths to check in order of preference
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // Default location in configs/ folder
		"config.toml",         // Root directory
	}

	// Remove duplicates while preserving order
	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// Validate validates the configuration and fills in zero values with defaults
func (c *Config) Validate() error {
	def := Default()

	// Validate server config
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.StaticFilesDir != "" {
		if _, err := os.Stat(c.Server.StaticFilesDir); os.IsNotExist(err) {
			return fmt.Errorf("static files directory does not exist: %s", c.Server.StaticFilesDir)
		}
	}

	if err := c.ValidateADSB(); err != nil {
		return err
	}

	if err := c.ValidateStation(); err != nil {
		return err
	}

	// Enrichment defaults
	e := &c.Enrichment
	defaultInt(&e.MilitaryTTLHours, def.Enrichment.MilitaryTTLHours)
	defaultInt(&e.MilitaryCacheSize, def.Enrichment.MilitaryCacheSize)
	defaultInt(&e.HexDBTTLHours, def.Enrichment.HexDBTTLHours)
	defaultInt(&e.HexDBCacheSize, def.Enrichment.HexDBCacheSize)
	defaultInt(&e.HexDBMinIntervalSecs, def.Enrichment.HexDBMinIntervalSecs)
	defaultInt(&e.RouteTTLHours, def.Enrichment.RouteTTLHours)
	defaultInt(&e.TimeoutSecs, def.Enrichment.TimeoutSecs)
	defaultInt(&e.ConnectTimeoutSecs, def.Enrichment.ConnectTimeoutSecs)
	if e.HexDBBase == "" {
		e.HexDBBase = def.Enrichment.HexDBBase
	}

	if c.Classify.SmallAircraftSeatThreshold <= 0 {
		c.Classify.SmallAircraftSeatThreshold = def.Classify.SmallAircraftSeatThreshold
	}

	defaultInt(&c.Display.PollIntervalMs, def.Display.PollIntervalMs)
	defaultInt(&c.Display.OverrideTTLSecs, def.Display.OverrideTTLSecs)

	defaultInt(&c.Connectivity.IntervalSecs, def.Connectivity.IntervalSecs)
	defaultInt(&c.Connectivity.TimeoutSecs, def.Connectivity.TimeoutSecs)

	// Validate logging config
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid log level
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "console":
		// Valid log format
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	// Validate storage config
	switch c.Storage.Type {
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("sqlite_path is required when storage type is sqlite")
		}
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("postgres_dsn is required when storage type is postgres")
		}
	case "none", "":
		c.Storage.Type = "none"
	default:
		return fmt.Errorf("invalid storage type: %s (must be 'sqlite', 'postgres' or 'none')", c.Storage.Type)
	}
	if c.Storage.RetentionDays < 0 {
		return fmt.Errorf("invalid retention_days: %d (must be >= 0)", c.Storage.RetentionDays)
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka brokers are required when kafka is enabled")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka topic is required when kafka is enabled")
		}
	}

	if c.Diagnostics.IntervalSecs < 0 {
		return fmt.Errorf("invalid diagnostics interval: %d", c.Diagnostics.IntervalSecs)
	}

	return nil
}

// ValidateADSB validates the source settings
func (c *Config) ValidateADSB() error {
	def := Default().ADSB
	a := &c.ADSB

	switch a.SourceType {
	case "":
		a.SourceType = def.SourceType
	case "external", "local", "simulation":
	default:
		return fmt.Errorf("invalid ADSB source type: %s (must be 'external', 'local' or 'simulation')", a.SourceType)
	}
	if a.SimulatedAircraft < 0 {
		return fmt.Errorf("simulated_aircraft must not be negative")
	}
	if a.SourceType == "local" && a.LocalSourceURL == "" {
		return fmt.Errorf("local_source_url is required when source_type is local")
	}

	switch a.Selector {
	case "":
		a.Selector = def.Selector
	case "lat-lon-dist", "point", "closest":
	default:
		return fmt.Errorf("invalid selector: %s (must be 'lat-lon-dist', 'point' or 'closest')", a.Selector)
	}

	if a.APIBase == "" {
		a.APIBase = def.APIBase
	}
	if a.SearchRadiusKm <= 0 {
		return fmt.Errorf("search_radius_km must be positive")
	}
	if a.FetchIntervalSecs <= 0 {
		return fmt.Errorf("invalid fetch interval: %d", a.FetchIntervalSecs)
	}
	if a.MaxRetries < 0 {
		return fmt.Errorf("invalid max_retries: %d (must be >= 0)", a.MaxRetries)
	}
	defaultInt(&a.PositionMaxAgeSecs, def.PositionMaxAgeSecs)
	defaultInt(&a.MaxCandidates, def.MaxCandidates)
	defaultInt(&a.TimeoutSecs, def.TimeoutSecs)
	defaultInt(&a.ConnectTimeoutSecs, def.ConnectTimeoutSecs)
	defaultInt(&a.RetryInitialDelayMs, def.RetryInitialDelayMs)
	defaultInt(&a.RetryMaxDelayMs, def.RetryMaxDelayMs)
	if a.UserAgent == "" {
		a.UserAgent = def.UserAgent
	}
	return nil
}

// ValidateStation validates the station configuration
func (c *Config) ValidateStation() error {
	if c.Station.Latitude < -90 || c.Station.Latitude > 90 {
		return fmt.Errorf("invalid station latitude: %f", c.Station.Latitude)
	}
	if c.Station.Longitude < -180 || c.Station.Longitude > 180 {
		return fmt.Errorf("invalid station longitude: %f", c.Station.Longitude)
	}
	if c.Station.Latitude == 0 && c.Station.Longitude == 0 {
		return fmt.Errorf("station location is not configured (set latitude/longitude or airport_code)")
	}
	return nil
}

// FetchInterval returns the polling period
func (a ADSBConfig) FetchInterval() time.Duration {
	return time.Duration(a.FetchIntervalSecs) * time.Second
}

// PositionMaxAge returns the staleness limit for positions
func (a ADSBConfig) PositionMaxAge() time.Duration {
	return time.Duration(a.PositionMaxAgeSecs) * time.Second
}

// OverrideTTL returns how long a test override stays on screen
func (d DisplayConfig) OverrideTTL() time.Duration {
	return time.Duration(d.OverrideTTLSecs) * time.Second
}

// PollInterval returns the render loop poll slice
func (d DisplayConfig) PollInterval() time.Duration {
	return time.Duration(d.PollIntervalMs) * time.Millisecond
}

func defaultInt(v *int, def int) {
	if *v <= 0 {
		*v = def
	}
}
