package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yegors/overhead/internal/adsb"
	"github.com/yegors/overhead/internal/auth"
	"github.com/yegors/overhead/internal/config"
	"github.com/yegors/overhead/internal/connectivity"
	"github.com/yegors/overhead/internal/diagnostics"
	"github.com/yegors/overhead/internal/display"
	"github.com/yegors/overhead/internal/enrichment"
	"github.com/yegors/overhead/internal/flight"
	"github.com/yegors/overhead/internal/mailbox"
	"github.com/yegors/overhead/internal/simulation"
	"github.com/yegors/overhead/internal/storage"
	"github.com/yegors/overhead/pkg/logger"
)

const (
	defaultSightingsLimit = 20
	maxSightingsLimit     = 500
	maxOverrideBody       = 64 << 10
	overrideTimeout       = 15 * time.Second
)

// FlightService is the orchestrator surface the API needs
type FlightService interface {
	Status() adsb.Status
	ForceFetch()
	ClassifyOverride(ctx context.Context, body []byte) (flight.Flight, error)
}

// LatestSource returns the newest published message
type LatestSource interface {
	Latest() (mailbox.Message, bool)
}

// Overrider accepts a test override for the display
type Overrider interface {
	Override(f flight.Flight)
}

// StatsSource reports enrichment counters
type StatsSource interface {
	Stats() enrichment.Stats
}

// MemorySource reports heap statistics
type MemorySource interface {
	Snapshot() diagnostics.MemorySnapshot
}

// Simulator manages synthetic traffic for the simulation source
type Simulator interface {
	Spawn(req simulation.SpawnRequest) (simulation.Aircraft, error)
	UpdateControls(hex string, heading, speed, verticalRate float64) error
	Remove(hex string) error
	List() []simulation.Aircraft
}

// Deps are the components behind the API. Nil optional fields disable their endpoints.
type Deps struct {
	Service    FlightService
	Mailbox    LatestSource
	Overrides  Overrider
	Names      display.TypeNames
	Enrichment StatsSource
	Memory     MemorySource
	Link       connectivity.Checker
	Sightings  storage.Store
	WebSocket  http.HandlerFunc
	Auth       *auth.Service
	Simulation Simulator
}

// Handler contains the API handlers
type Handler struct {
	deps   Deps
	config *config.Config
	logger *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(deps Deps, cfg *config.Config, log *logger.Logger) *Handler {
	return &Handler{
		deps:   deps,
		config: cfg,
		logger: log.Named("api-handler"),
	}
}

// FlightResponse is the latest publication together with its panel
type FlightResponse struct {
	mailbox.Message
	Panel *display.Panel `json:"panel,omitempty"`
}

// OverrideResponse echoes an accepted override
type OverrideResponse struct {
	Flight    flight.Flight `json:"flight"`
	Panel     display.Panel `json:"panel"`
	ExpiresIn string        `json:"expires_in"`
}

// GetHealth returns the health status of the API
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status": "ok",
	}
	if h.deps.Link != nil {
		response["connected"] = h.deps.Link.IsConnected()
	}
	if h.deps.Service != nil {
		st := h.deps.Service.Status()
		response["fetch_state"] = st.State
		response["last_fetch"] = st.LastFetch
		response["last_fetch_ok"] = st.LastFetchOK
	}
	WriteJSON(w, http.StatusOK, response)
}

// GetStatus returns the orchestrator state
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.deps.Service.Status())
}

// GetConfig returns the public configuration
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	publicConfig := map[string]interface{}{
		"station": map[string]interface{}{
			"latitude":     h.config.Station.Latitude,
			"longitude":    h.config.Station.Longitude,
			"airport_code": h.config.Station.AirportCode,
		},
		"adsb": map[string]interface{}{
			"api_base":               h.config.ADSB.APIBase,
			"selector":               h.config.ADSB.Selector,
			"search_radius_km":       h.config.ADSB.SearchRadiusKm,
			"fetch_interval_seconds": h.config.ADSB.FetchIntervalSecs,
		},
		"classify": map[string]interface{}{
			"small_aircraft_seat_threshold": h.config.Classify.SmallAircraftSeatThreshold,
		},
		"display": map[string]interface{}{
			"override_endpoint":    h.config.Display.OverrideEndpoint,
			"override_ttl_seconds": h.config.Display.OverrideTTLSecs,
			"websocket":            h.config.Display.WebSocketBroadcast,
		},
		"auth_required": h.deps.Auth != nil && h.deps.Auth.Enabled(),
	}
	WriteJSON(w, http.StatusOK, publicConfig)
}

// GetFlight returns the latest publication. Valid flights carry the rendered panel.
func (h *Handler) GetFlight(w http.ResponseWriter, r *http.Request) {
	msg, ok := h.deps.Mailbox.Latest()
	if !ok {
		WriteError(w, http.StatusNotFound, "nothing published yet")
		return
	}
	resp := FlightResponse{Message: msg}
	if msg.Kind == mailbox.KindFlight && msg.Valid {
		p := display.BuildPanel(msg.Flight, h.deps.Names)
		resp.Panel = &p
	}
	WriteJSON(w, http.StatusOK, resp)
}

// GetSightings returns the newest recorded sightings
func (h *Handler) GetSightings(w http.ResponseWriter, r *http.Request) {
	if h.deps.Sightings == nil {
		WriteError(w, http.StatusServiceUnavailable, "sighting history is disabled")
		return
	}

	limit := defaultSightingsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxSightingsLimit)
	}

	sightings, err := h.deps.Sightings.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to read sightings", logger.Error(err))
		WriteError(w, http.StatusInternalServerError, "failed to read sightings")
		return
	}
	if sightings == nil {
		sightings = []storage.Sighting{}
	}

	total, err := h.deps.Sightings.Count(r.Context())
	if err != nil {
		h.logger.Warn("Failed to count sightings", logger.Error(err))
		total = len(sightings)
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"sightings": sightings,
		"count":     len(sightings),
		"total":     total,
	})
}

// GetEnrichmentStats returns lookup counters and cache sizes
func (h *Handler) GetEnrichmentStats(w http.ResponseWriter, r *http.Request) {
	if h.deps.Enrichment == nil {
		WriteError(w, http.StatusServiceUnavailable, "enrichment is not configured")
		return
	}
	WriteJSON(w, http.StatusOK, h.deps.Enrichment.Stats())
}

// GetMemory returns heap statistics
func (h *Handler) GetMemory(w http.ResponseWriter, r *http.Request) {
	if h.deps.Memory == nil {
		WriteError(w, http.StatusServiceUnavailable, "diagnostics are not configured")
		return
	}
	WriteJSON(w, http.StatusOK, h.deps.Memory.Snapshot())
}

// ForceFetch starts a cycle now
func (h *Handler) ForceFetch(w http.ResponseWriter, r *http.Request) {
	h.deps.Service.ForceFetch()
	WriteJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// PutOverride classifies a test record and shows it for the override TTL
func (h *Handler) PutOverride(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxOverrideBody))
	if err != nil {
		WriteError(w, http.StatusRequestEntityTooLarge, "body too large")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), overrideTimeout)
	defer cancel()

	f, err := h.deps.Service.ClassifyOverride(ctx, body)
	if err != nil {
		if errors.Is(err, adsb.ErrInvalidOverride) {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("Override failed", logger.Error(err))
		WriteError(w, http.StatusInternalServerError, "override failed")
		return
	}

	h.deps.Overrides.Override(f)

	p := display.BuildPanel(f, h.deps.Names)
	p.Override = true
	WriteJSON(w, http.StatusOK, OverrideResponse{
		Flight:    f,
		Panel:     p,
		ExpiresIn: h.config.Display.OverrideTTL().String(),
	})
}

// ControlsRequest changes a simulated aircraft's controls
type ControlsRequest struct {
	HeadingDeg      float64 `json:"heading_deg"`
	SpeedKt         float64 `json:"speed_kt"`
	VerticalRateFpm float64 `json:"vertical_rate_fpm"`
}

// ListSimulated returns the simulated aircraft
func (h *Handler) ListSimulated(w http.ResponseWriter, r *http.Request) {
	aircraft := h.deps.Simulation.List()
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"aircraft": aircraft,
		"count":    len(aircraft),
		"max":      simulation.MaxSimulatedAircraft,
	})
}

// CreateSimulated spawns a simulated aircraft
func (h *Handler) CreateSimulated(w http.ResponseWriter, r *http.Request) {
	var req simulation.SpawnRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxOverrideBody)).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ac, err := h.deps.Simulation.Spawn(req)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, simulation.ErrLimitReached) {
			status = http.StatusConflict
		}
		WriteError(w, status, err.Error())
		return
	}
	h.deps.Service.ForceFetch()
	WriteJSON(w, http.StatusCreated, ac)
}

// UpdateSimulated changes heading, speed and vertical rate
func (h *Handler) UpdateSimulated(w http.ResponseWriter, r *http.Request) {
	hex := chi.URLParam(r, "hex")
	var req ControlsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxOverrideBody)).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.deps.Simulation.UpdateControls(hex, req.HeadingDeg, req.SpeedKt, req.VerticalRateFpm); err != nil {
		if errors.Is(err, simulation.ErrNotFound) {
			WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "updated", "hex": hex})
}

// DeleteSimulated removes a simulated aircraft
func (h *Handler) DeleteSimulated(w http.ResponseWriter, r *http.Request) {
	hex := chi.URLParam(r, "hex")
	if err := h.deps.Simulation.Remove(hex); err != nil {
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	h.deps.Service.ForceFetch()
	w.WriteHeader(http.StatusNoContent)
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// WriteError writes {"error": msg}
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"error": msg})
}
