package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/yegors/overhead/internal/adsb"
	"github.com/yegors/overhead/internal/aircrafttypes"
	"github.com/yegors/overhead/internal/api"
	"github.com/yegors/overhead/internal/auth"
	"github.com/yegors/overhead/internal/config"
	"github.com/yegors/overhead/internal/connectivity"
	"github.com/yegors/overhead/internal/diagnostics"
	"github.com/yegors/overhead/internal/display"
	"github.com/yegors/overhead/internal/display/tui"
	"github.com/yegors/overhead/internal/enrichment"
	"github.com/yegors/overhead/internal/mailbox"
	"github.com/yegors/overhead/internal/physics"
	"github.com/yegors/overhead/internal/retry"
	"github.com/yegors/overhead/internal/simulation"
	kafkasink "github.com/yegors/overhead/internal/sink/kafka"
	"github.com/yegors/overhead/internal/storage"
	"github.com/yegors/overhead/internal/storage/postgres"
	"github.com/yegors/overhead/internal/storage/sqlite"
	"github.com/yegors/overhead/internal/websocket"
	"github.com/yegors/overhead/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	tokenSubject := flag.String("token", "", "Print an admin token for this subject and exit (requires auth.jwt_secret)")
	flag.Parse()

	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	authService := auth.NewService(auth.Config{
		JWTSecret: cfg.Auth.JWTSecret,
		Issuer:    cfg.Auth.Issuer,
	}, log)

	if *tokenSubject != "" {
		token, err := authService.GenerateToken(*tokenSubject, auth.RoleAdmin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating token: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	log.Info("Starting overhead",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
		logger.Float64("lat", cfg.Station.Latitude),
		logger.Float64("lon", cfg.Station.Longitude),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, stop, cfg, authService, log); err != nil {
		log.Error("Fatal error", logger.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	log.Info("Server fully stopped")
}

func run(ctx context.Context, stop context.CancelFunc, cfg *config.Config, authService *auth.Service, log *logger.Logger) error {
	userAgent := cfg.ADSB.UserAgent
	if userAgent == config.Default().ADSB.UserAgent {
		userAgent = "overhead/" + Version
	}

	// Diagnostics
	memory := diagnostics.NewMemoryMonitor(cfg.Diagnostics.MemoryLimitBytes, log)
	if cfg.Diagnostics.IntervalSecs > 0 {
		go memory.Run(ctx, time.Duration(cfg.Diagnostics.IntervalSecs)*time.Second)
	}

	// Type table
	table := aircrafttypes.Default()
	if path := cfg.Classify.TypeTablePath; path != "" {
		loaded, err := aircrafttypes.LoadFile(path)
		if err != nil {
			return fmt.Errorf("failed to load type table: %w", err)
		}
		table = loaded
	}
	log.Info("Aircraft type table loaded", logger.Int("types", table.Len()))

	// Nearby client
	client := adsb.NewClient(adsb.ClientConfig{
		APIBase:        cfg.ADSB.APIBase,
		Selector:       cfg.ADSB.Selector,
		SourceType:     cfg.ADSB.SourceType,
		LocalSourceURL: cfg.ADSB.LocalSourceURL,
		Home:           physics.Point{Lat: cfg.Station.Latitude, Lon: cfg.Station.Longitude},
		RadiusKm:       cfg.ADSB.SearchRadiusKm,
		Timeout:        time.Duration(cfg.ADSB.TimeoutSecs) * time.Second,
		ConnectTimeout: time.Duration(cfg.ADSB.ConnectTimeoutSecs) * time.Second,
		UserAgent:      userAgent,
		Retry: retry.Config{
			MaxRetries:   cfg.ADSB.MaxRetries,
			InitialDelay: time.Duration(cfg.ADSB.RetryInitialDelayMs) * time.Millisecond,
			MaxDelay:     time.Duration(cfg.ADSB.RetryMaxDelayMs) * time.Millisecond,
			Multiplier:   2.0,
			Jitter:       0.125,
		},
	}, log)

	var simulator *simulation.Service
	if cfg.ADSB.SourceType == adsb.SourceSimulation {
		simulator = simulation.NewService(log)
		seeded := simulator.SeedAround(client.Home(), cfg.ADSB.SimulatedAircraft, cfg.ADSB.SearchRadiusKm)
		client.SetSimulator(simulator)
		log.Info("Simulation source enabled", logger.Int("aircraft", seeded))
	}

	// Enrichment
	ec := cfg.Enrichment
	enricher := enrichment.NewEnricher(enrichment.Config{
		APIBase:           client.APIBase(),
		HexDBBase:         adsb.NormalizeBase(ec.HexDBBase, "https://hexdb.io"),
		UserAgent:         userAgent,
		MilitaryEnabled:   ec.MilitaryEnabled,
		MilitaryTTL:       time.Duration(ec.MilitaryTTLHours) * time.Hour,
		MilitaryCacheSize: ec.MilitaryCacheSize,
		HexDBEnabled:      ec.HexDBEnabled,
		HexDBTTL:          time.Duration(ec.HexDBTTLHours) * time.Hour,
		HexDBCacheSize:    ec.HexDBCacheSize,
		HexDBMinInterval:  time.Duration(ec.HexDBMinIntervalSecs) * time.Second,
		HexDBMinHeadroom:  ec.HexDBMinHeadroom,
		RouteEnabled:      ec.RouteEnabled,
		RouteTTL:          time.Duration(ec.RouteTTLHours) * time.Hour,
	}, adsb.NewHTTPClient(
		time.Duration(ec.TimeoutSecs)*time.Second,
		time.Duration(ec.ConnectTimeoutSecs)*time.Second,
	), memory, nil, log)

	// Connectivity
	var checker connectivity.Checker = connectivity.Static(true)
	var linkEvents <-chan connectivity.Event
	var monitor *connectivity.Monitor
	if cfg.Connectivity.Enabled && simulator == nil {
		probeURL := cfg.Connectivity.ProbeURL
		if probeURL == "" {
			probeURL = client.APIBase()
		}
		monitor = connectivity.NewMonitor(connectivity.Config{
			ProbeURL:  probeURL,
			Interval:  time.Duration(cfg.Connectivity.IntervalSecs) * time.Second,
			Timeout:   time.Duration(cfg.Connectivity.TimeoutSecs) * time.Second,
			Backoff:   retry.DefaultConfig(),
			UserAgent: userAgent,
		}, nil, log)
		checker = monitor
		linkEvents = monitor.Events()
		monitor.Start(ctx)
		defer monitor.Stop()
	}

	// Sighting history
	store, err := openStore(ctx, cfg.Storage, log)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	var sinks []storage.Sink
	if cfg.Kafka.Enabled {
		producer, err := kafkasink.NewProducer(kafkasink.Config{
			Brokers:  cfg.Kafka.Brokers,
			Topic:    cfg.Kafka.Topic,
			ClientID: cfg.Kafka.ClientID,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to create kafka producer: %w", err)
		}
		defer producer.Close()
		sinks = append(sinks, producer)
	}

	// Render sinks
	var renderers display.MultiRenderer
	if cfg.Display.LogPanels {
		renderers = append(renderers, display.NewLogRenderer(log))
	}

	wsServer := websocket.NewServer(log, cfg.Server.CORSAllowedOrigins)
	wsStop := make(chan struct{})
	go wsServer.Run(wsStop)
	defer close(wsStop)
	if cfg.Display.WebSocketBroadcast {
		renderers = append(renderers, wsServer)
	}

	var recorder *storage.Recorder
	if store != nil || len(sinks) > 0 {
		recorder = storage.NewRecorder(store, sinks, storage.RecorderConfig{
			Retention: time.Duration(cfg.Storage.RetentionDays) * 24 * time.Hour,
		}, log)
		go recorder.Run(context.WithoutCancel(ctx))
		renderers = append(renderers, recorder)
	}

	var program *tea.Program
	if cfg.Display.TUI {
		var tuiRenderer *tui.Renderer
		program, tuiRenderer = tui.NewProgram(tea.WithAltScreen(), tea.WithContext(ctx))
		renderers = append(renderers, tuiRenderer)
	}

	// Pipeline
	mb := mailbox.New()
	service := adsb.NewService(client, enricher, table, mb, checker, linkEvents, adsb.ServiceConfig{
		FetchInterval:  cfg.ADSB.FetchInterval(),
		PositionMaxAge: cfg.ADSB.PositionMaxAge(),
		SeatThreshold:  cfg.Classify.SmallAircraftSeatThreshold,
		MaxCandidates:  cfg.ADSB.MaxCandidates,
	}, log)

	apiHost := client.APIBase()
	if u, err := url.Parse(apiHost); err == nil && u.Host != "" {
		apiHost = u.Host
	}
	consumer := display.NewConsumer(mb, renderers, table, display.ConsumerConfig{
		PollInterval: cfg.Display.PollInterval(),
		OverrideTTL:  cfg.Display.OverrideTTL(),
		APIHost:      apiHost,
	}, log)

	consumerCtx, stopConsumer := context.WithCancel(ctx)
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		consumer.Run(consumerCtx)
	}()

	if program != nil {
		go func() {
			if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				log.Error("Terminal panel stopped", logger.Error(err))
			}
			stop()
		}()
	}

	// HTTP API
	deps := api.Deps{
		Service:    service,
		Mailbox:    mb,
		Overrides:  consumer,
		Names:      table,
		Enrichment: enricher,
		Memory:     memory,
		Link:       checker,
		Sightings:  store,
		WebSocket:  wsServer.HandleConnection,
		Auth:       authService,
	}
	if simulator != nil {
		deps.Simulation = simulator
	}
	router := api.NewRouter(deps, cfg, log)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
	}
	go func() {
		log.Info("Starting HTTP server", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", logger.String("addr", server.Addr), logger.Error(err))
			stop()
		}
	}()

	if err := service.Start(ctx); err != nil {
		stopConsumer()
		return fmt.Errorf("failed to start ADS-B service: %w", err)
	}

	<-ctx.Done()
	log.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", logger.Error(err))
	}

	log.Info("Stopping ADS-B service...")
	service.Stop()

	stopConsumer()
	<-consumerDone

	if recorder != nil {
		recorder.Stop()
	}
	if program != nil {
		program.Quit()
	}
	return nil
}

// openStore returns nil when history is disabled
func openStore(ctx context.Context, cfg config.StorageConfig, log *logger.Logger) (storage.Store, error) {
	switch cfg.Type {
	case "sqlite":
		s, err := sqlite.NewSightingStorage(cfg.SQLitePath, log)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite storage: %w", err)
		}
		return s, nil
	case "postgres":
		s, err := postgres.Connect(ctx, postgres.DefaultConfig(cfg.PostgresDSN), log)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return s, nil
	default:
		log.Info("Sighting history disabled")
		return nil, nil
	}
}
