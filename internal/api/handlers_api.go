package api

import (
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gowtham258/Weather-Forecasting-Model/internal/imagegen"
	"github.com/gowtham258/Weather-Forecasting-Model/internal/ingest"
	"github.com/gowtham258/Weather-Forecasting-Model/internal/models"
)

type dateQuery struct {
	Date string `validate:"required,datetime=2006-01-02"`
}

func parseDateQuery(r *http.Request) (time.Time, error) {
	q := dateQuery{Date: r.URL.Query().Get("date")}
	if err := validate.Struct(q); err != nil {
		return time.Time{}, errors.New("date must be YYYY-MM-DD")
	}
	return time.Parse(time.DateOnly, q.Date)
}

// ObservationResponse is a stored day. Nulls upstream are JSON nulls.
type ObservationResponse struct {
	Date      string              `json:"date"`
	Values    map[string]*float64 `json:"values"`
	FetchedAt time.Time           `json:"fetched_at"`
	Flags     []string            `json:"flags,omitempty"`
}

func newObservationResponse(o models.DailyObservation) ObservationResponse {
	values := make(map[string]*float64, len(o.Values))
	for name, v := range o.Values {
		if math.IsNaN(v) {
			values[name] = nil
			continue
		}
		v := v
		values[name] = &v
	}
	return ObservationResponse{
		Date:      o.Date.Format(time.DateOnly),
		Values:    values,
		FetchedAt: o.FetchedAt,
		Flags:     ingest.ValidateObservation(o),
	}
}

func (s *Server) handleAPIHistory(w http.ResponseWriter, r *http.Request) {
	date, err := parseDateQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	obs, err := s.store.GetObservation(date)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if obs == nil {
		writeError(w, http.StatusNotFound, "no observation for "+date.Format(time.DateOnly))
		return
	}
	writeJSON(w, http.StatusOK, newObservationResponse(*obs))
}

// DayResponse answers a single-date lookup from stored history when the date
// has been observed and from a live rollout otherwise.
type DayResponse struct {
	Kind        string                 `json:"kind"`
	Observation *ObservationResponse   `json:"observation,omitempty"`
	Forecast    *models.ForecastRecord `json:"forecast,omitempty"`
	SeedDate    string                 `json:"seed_date,omitempty"`
}

func (s *Server) handleAPIDay(w http.ResponseWriter, r *http.Request) {
	date, err := parseDateQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	obs, err := s.store.GetObservation(date)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if obs != nil {
		resp := newObservationResponse(*obs)
		writeJSON(w, http.StatusOK, DayResponse{Kind: "historical", Observation: &resp})
		return
	}

	latest, ok, err := s.store.LatestObservationDate()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if ok && !date.After(latest) {
		writeError(w, http.StatusNotFound, "no historical data for "+date.Format(time.DateOnly))
		return
	}

	seed, records, err := s.forecaster.RollOut(r.Context(), s.maxDays)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	for i := range records {
		if records[i].Date.Equal(date) {
			writeJSON(w, http.StatusOK, DayResponse{
				Kind:     "forecast",
				Forecast: &records[i],
				SeedDate: seed.Date.Format(time.DateOnly),
			})
			return
		}
	}
	writeError(w, http.StatusNotFound, fmt.Sprintf("%s is outside the %d day horizon from %s",
		date.Format(time.DateOnly), s.maxDays, seed.Date.Format(time.DateOnly)))
}

type ForecastResponse struct {
	SeedDate  string                  `json:"seed_date"`
	DaysAhead int                     `json:"days_ahead"`
	Records   []models.ForecastRecord `json:"records"`
}

func (s *Server) handleAPIForecast(w http.ResponseWriter, r *http.Request) {
	days := 1
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "days must be an integer")
			return
		}
		days = n
	}
	if err := validate.Var(days, fmt.Sprintf("gte=0,lte=%d", s.maxDays)); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("days must be between 0 and %d", s.maxDays))
		return
	}

	seed, records, err := s.forecaster.RollOut(r.Context(), days)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if records == nil {
		records = []models.ForecastRecord{}
	}
	writeJSON(w, http.StatusOK, ForecastResponse{
		SeedDate:  seed.Date.Format(time.DateOnly),
		DaysAhead: days,
		Records:   records,
	})
}

func (s *Server) handleAPIForecastLatest(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.LatestForecastRun()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "no forecast runs stored")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleForecastCard renders the latest stored run as a PNG card.
func (s *Server) handleForecastCard(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.LatestForecastRun()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if run == nil || len(run.Records) == 0 {
		writeError(w, http.StatusNotFound, "no forecast runs stored")
		return
	}

	data, ok := s.cards.Get(run.ID)
	if !ok {
		data, err = imagegen.RenderForecastCard(imagegen.CardData{
			Location: s.location,
			SeedDate: run.SeedDate,
			Records:  run.Records,
		})
		if err != nil {
			log.Printf("api: render forecast card: %v", err)
			writeError(w, http.StatusInternalServerError, "could not render forecast card")
			return
		}
		s.cards.Set(run.ID, data)
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}

func (s *Server) handleAPIIngestHealth(w http.ResponseWriter, r *http.Request) {
	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || validate.Var(n, "gte=1,lte=90") != nil {
			writeError(w, http.StatusBadRequest, "days must be between 1 and 90")
			return
		}
		days = n
	}

	summary, err := s.store.GetIngestHealth(days)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	failures, err := s.store.GetRecentIngestErrors(10)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	type failure struct {
		StartedAt time.Time `json:"started_at"`
		Location  string    `json:"location"`
		From      string    `json:"from"`
		To        string    `json:"to"`
		Status    int64     `json:"http_status,omitempty"`
		Error     string    `json:"error"`
	}
	resp := struct {
		Days     int             `json:"days"`
		Summary  []ingestSummary `json:"summary"`
		Failures []failure       `json:"recent_failures"`
	}{Days: days, Summary: []ingestSummary{}, Failures: []failure{}}

	for _, h := range summary {
		resp.Summary = append(resp.Summary, ingestSummary(h))
	}
	for _, f := range failures {
		resp.Failures = append(resp.Failures, failure{
			StartedAt: f.StartedAt,
			Location:  f.Location,
			From:      f.From.Format(time.DateOnly),
			To:        f.To.Format(time.DateOnly),
			Status:    f.HTTPStatus.Int64,
			Error:     f.Error.String,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type ingestSummary struct {
	Date           string `json:"date"`
	Runs           int    `json:"runs"`
	Failures       int    `json:"failures"`
	DaysStored     int    `json:"days_stored"`
	ParseErrors    int    `json:"parse_errors"`
	CoveredThrough string `json:"covered_through,omitempty"`
}
