package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gowtham258/Weather-Forecasting-Model/internal/features"
	"github.com/gowtham258/Weather-Forecasting-Model/internal/forecast"
	"github.com/gowtham258/Weather-Forecasting-Model/internal/imagegen"
	"github.com/gowtham258/Weather-Forecasting-Model/internal/models"
	"github.com/gowtham258/Weather-Forecasting-Model/internal/store"
)

var validate = validator.New()

// Forecaster rolls a forecast forward from the latest complete stored day.
type Forecaster interface {
	RollOut(ctx context.Context, daysAhead int) (features.Vector, []models.ForecastRecord, error)
}

type Server struct {
	store      *store.Store
	forecaster Forecaster
	port       string
	maxDays    int
	location   string
	cards      *imagegen.CardCache

	// staleAfter is how old the newest observation may be before health
	// reports degraded. The archive lags real time by several days.
	staleAfter time.Duration
}

func NewServer(store *store.Store, forecaster Forecaster, port string, maxDays int) *Server {
	return &Server{
		store:      store,
		forecaster: forecaster,
		port:       port,
		maxDays:    maxDays,
		location:   "dailycast",
		cards:      imagegen.NewCardCache(time.Hour),
		staleAfter: 10 * 24 * time.Hour,
	}
}

// SetLocation names the place shown on forecast cards.
func (s *Server) SetLocation(name string) {
	s.location = name
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/api", func(r chi.Router) {
		r.Get("/history", s.handleAPIHistory)
		r.Get("/day", s.handleAPIDay)
		r.Get("/forecast", s.handleAPIForecast)
		r.Get("/forecast/latest", s.handleAPIForecastLatest)
		r.Get("/forecast/card.png", s.handleForecastCard)
		r.Get("/ingest/health", s.handleAPIIngestHealth)
	})
	return r
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("api: listening on :%s", s.port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

type HealthStatus struct {
	Status          string     `json:"status"`
	LatestDate      string     `json:"latest_observation,omitempty"`
	AgeDays         int        `json:"age_days"`
	LatestRunID     string     `json:"latest_run_id,omitempty"`
	LatestRunAt     *time.Time `json:"latest_run_at,omitempty"`
	MaxForecastDays int        `json:"max_forecast_days"`
	Errors          []string   `json:"errors,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthStatus{Status: "ok", AgeDays: -1, MaxForecastDays: s.maxDays}

	latest, ok, err := s.store.LatestObservationDate()
	switch {
	case err != nil:
		health.Errors = append(health.Errors, "observations: "+err.Error())
	case !ok:
		health.Status = "degraded"
	default:
		age := time.Since(latest)
		health.LatestDate = latest.Format(time.DateOnly)
		health.AgeDays = int(age.Hours() / 24)
		if age > s.staleAfter {
			health.Status = "degraded"
		}
	}

	run, err := s.store.LatestForecastRun()
	if err != nil {
		health.Errors = append(health.Errors, "forecast runs: "+err.Error())
	} else if run != nil {
		health.LatestRunID = run.ID
		health.LatestRunAt = &run.CreatedAt
	}

	if len(health.Errors) > 0 {
		health.Status = "error"
	}

	status := http.StatusOK
	if health.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: write response: %v", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeDomainError maps forecasting failures to status codes: bad or missing
// history and version mismatches are 422, predictor failures 502.
func writeDomainError(w http.ResponseWriter, err error) {
	var (
		histErr    *features.InsufficientHistoryError
		missingErr *features.MissingVariableError
		encErr     *features.EncodingError
		schemaErr  *features.SchemaError
		predErr    *forecast.PredictorError
	)
	switch {
	case errors.As(err, &predErr):
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.As(err, &histErr), errors.As(err, &missingErr),
		errors.As(err, &encErr), errors.As(err, &schemaErr):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		log.Printf("api: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
