package api_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"image/png"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gowtham258/Weather-Forecasting-Model/internal/api"
	"github.com/gowtham258/Weather-Forecasting-Model/internal/features"
	"github.com/gowtham258/Weather-Forecasting-Model/internal/forecast"
	"github.com/gowtham258/Weather-Forecasting-Model/internal/models"
	"github.com/gowtham258/Weather-Forecasting-Model/internal/store"
)

var seedDate = time.Date(2025, 4, 11, 0, 0, 0, 0, time.UTC)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s := store.New(db)
	if err := s.Migrate(); err != nil {
		t.Fatal(err)
	}
	return s
}

// stubForecaster returns one record per day after seedDate.
type stubForecaster struct {
	err   error
	calls []int
}

func (f *stubForecaster) RollOut(_ context.Context, daysAhead int) (features.Vector, []models.ForecastRecord, error) {
	f.calls = append(f.calls, daysAhead)
	if f.err != nil {
		return features.Vector{}, nil, f.err
	}
	records := make([]models.ForecastRecord, 0, daysAhead)
	for i := 1; i <= daysAhead; i++ {
		records = append(records, models.ForecastRecord{
			Date:               seedDate.AddDate(0, 0, i),
			TemperatureMean:    28 + float64(i)/10,
			PrecipitationSum:   1.5,
			WeatherCode:        61,
			WeatherDescription: "Slight rain",
		})
	}
	return features.Vector{Date: seedDate}, records, nil
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", target, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	srv := api.NewServer(s, &stubForecaster{}, "8080", 14)

	w := get(t, srv.Handler(), "/health")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("empty store: expected 503, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"degraded"`) {
		t.Errorf("expected degraded status, got %s", w.Body.String())
	}

	yesterday := models.DateOnly(time.Now()).AddDate(0, 0, -1)
	if _, err := s.UpsertObservations([]models.DailyObservation{
		{Date: yesterday, Values: map[string]float64{"temperature_2m_mean": 27}},
	}); err != nil {
		t.Fatal(err)
	}

	w = get(t, srv.Handler(), "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var health api.HealthStatus
	if err := json.Unmarshal(w.Body.Bytes(), &health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "ok" || health.LatestDate != yesterday.Format(time.DateOnly) {
		t.Errorf("health = %+v", health)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	srv := api.NewServer(s, &stubForecaster{}, "8080", 14)

	if _, err := s.UpsertObservations([]models.DailyObservation{{
		Date:   seedDate,
		Values: map[string]float64{"temperature_2m_mean": 27.9, "precipitation_sum": math.NaN(), "weather_code": 3},
	}}); err != nil {
		t.Fatal(err)
	}

	w := get(t, srv.Handler(), "/api/history?date=2025-04-11")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp api.ObservationResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Date != "2025-04-11" {
		t.Errorf("date = %q", resp.Date)
	}
	if v := resp.Values["temperature_2m_mean"]; v == nil || *v != 27.9 {
		t.Errorf("temperature = %v", v)
	}
	if v, ok := resp.Values["precipitation_sum"]; !ok || v != nil {
		t.Errorf("null precipitation should be present as null, got %v (present=%v)", v, ok)
	}

	tests := []struct {
		target string
		want   int
	}{
		{"/api/history?date=2025-04-12", http.StatusNotFound},
		{"/api/history?date=11-04-2025", http.StatusBadRequest},
		{"/api/history", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if w := get(t, srv.Handler(), tt.target); w.Code != tt.want {
			t.Errorf("GET %s = %d, want %d", tt.target, w.Code, tt.want)
		}
	}
}

func TestForecastEndpoint(t *testing.T) {
	t.Parallel()
	fc := &stubForecaster{}
	srv := api.NewServer(setupTestStore(t), fc, "8080", 14)

	w := get(t, srv.Handler(), "/api/forecast?days=3")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp api.ForecastResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.SeedDate != "2025-04-11" || resp.DaysAhead != 3 || len(resp.Records) != 3 {
		t.Fatalf("resp = %+v", resp)
	}
	if !resp.Records[0].Date.Equal(seedDate.AddDate(0, 0, 1)) || resp.Records[0].WeatherDescription != "Slight rain" {
		t.Errorf("first record = %+v", resp.Records[0])
	}
	if !strings.Contains(w.Body.String(), `"date":"2025-04-12"`) {
		t.Errorf("expected calendar dates in body: %s", w.Body.String())
	}

	w = get(t, srv.Handler(), "/api/forecast?days=0")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"records":[]`) {
		t.Errorf("days=0: %d %s", w.Code, w.Body.String())
	}

	w = get(t, srv.Handler(), "/api/forecast")
	if w.Code != http.StatusOK || fc.calls[len(fc.calls)-1] != 1 {
		t.Errorf("default days: %d, calls %v", w.Code, fc.calls)
	}

	for _, target := range []string{"/api/forecast?days=-1", "/api/forecast?days=15", "/api/forecast?days=abc"} {
		if w := get(t, srv.Handler(), target); w.Code != http.StatusBadRequest {
			t.Errorf("GET %s = %d, want 400", target, w.Code)
		}
	}
}

func TestForecastEndpoint_ErrorMapping(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"history", &features.InsufficientHistoryError{Reason: "no stored observations"}, http.StatusUnprocessableEntity},
		{"encoding", &features.EncodingError{Label: "Heavy snow fall", Version: "enc-1"}, http.StatusUnprocessableEntity},
		{"schema", &features.SchemaError{Version: "v1", Missing: []string{"x"}}, http.StatusUnprocessableEntity},
		{"predictor", &forecast.PredictorError{Day: 2, Target: "weather_code", Err: errors.New("timeout")}, http.StatusBadGateway},
		{"other", errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := api.NewServer(setupTestStore(t), &stubForecaster{err: tt.err}, "8080", 14)
			w := get(t, srv.Handler(), "/api/forecast?days=2")
			if w.Code != tt.want {
				t.Errorf("got %d, want %d: %s", w.Code, tt.want, w.Body.String())
			}
			if !strings.Contains(w.Body.String(), `"error"`) {
				t.Errorf("expected error field: %s", w.Body.String())
			}
		})
	}
}

func TestDayEndpoint(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	srv := api.NewServer(s, &stubForecaster{}, "8080", 5)

	if _, err := s.UpsertObservations([]models.DailyObservation{
		{Date: seedDate, Values: map[string]float64{"temperature_2m_mean": 27.9}},
	}); err != nil {
		t.Fatal(err)
	}

	var resp api.DayResponse
	w := get(t, srv.Handler(), "/api/day?date=2025-04-11")
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Kind != "historical" || resp.Observation == nil {
		t.Errorf("stored date: %+v", resp)
	}

	resp = api.DayResponse{}
	w = get(t, srv.Handler(), "/api/day?date=2025-04-14")
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Kind != "forecast" || resp.Forecast == nil || resp.SeedDate != "2025-04-11" {
		t.Fatalf("future date: %+v", resp)
	}
	if math.Abs(resp.Forecast.TemperatureMean-28.3) > 1e-9 {
		t.Errorf("day 3 temperature = %v, want 28.3", resp.Forecast.TemperatureMean)
	}

	if w := get(t, srv.Handler(), "/api/day?date=2025-05-30"); w.Code != http.StatusNotFound {
		t.Errorf("beyond horizon: got %d, want 404", w.Code)
	}
}

func TestDayEndpoint_PastDateWithoutData(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	fc := &stubForecaster{err: &forecast.PredictorError{Day: 1, Target: "temperature_2m_mean", Err: errors.New("down")}}
	srv := api.NewServer(s, fc, "8080", 5)

	if _, err := s.UpsertObservations([]models.DailyObservation{
		{Date: seedDate.AddDate(0, 0, -2), Values: map[string]float64{"temperature_2m_mean": 27.1}},
		{Date: seedDate, Values: map[string]float64{"temperature_2m_mean": 27.9}},
	}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		date string
	}{
		{"gap in history", "2025-04-10"},
		{"before history starts", "2024-12-31"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, srv.Handler(), "/api/day?date="+tt.date)
			if w.Code != http.StatusNotFound {
				t.Errorf("got %d, want 404: %s", w.Code, w.Body.String())
			}
			if !strings.Contains(w.Body.String(), "no historical data") {
				t.Errorf("unexpected body: %s", w.Body.String())
			}
		})
	}
	if len(fc.calls) != 0 {
		t.Errorf("rollout ran %d times for past dates", len(fc.calls))
	}
}

func TestForecastLatestEndpoint(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	srv := api.NewServer(s, &stubForecaster{}, "8080", 14)

	if w := get(t, srv.Handler(), "/api/forecast/latest"); w.Code != http.StatusNotFound {
		t.Fatalf("no runs: got %d, want 404", w.Code)
	}

	run := &models.ForecastRun{
		SeedDate:        seedDate,
		DaysAhead:       1,
		SchemaVersion:   "lags-v1",
		EncodingVersion: "enc-1",
		CodeTable:       "wmo-4677-v1",
		Records: []models.ForecastRecord{
			{Date: seedDate.AddDate(0, 0, 1), TemperatureMean: 28.3, WeatherCode: 61, WeatherDescription: "Slight rain"},
		},
	}
	if err := s.SaveForecastRun(run); err != nil {
		t.Fatal(err)
	}

	w := get(t, srv.Handler(), "/api/forecast/latest")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got models.ForecastRun
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.ID != run.ID || len(got.Records) != 1 || got.Records[0].WeatherDescription != "Slight rain" {
		t.Errorf("latest = %+v", got)
	}
}

func TestForecastCardEndpoint(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	srv := api.NewServer(s, &stubForecaster{}, "8080", 14)
	srv.SetLocation("Kochi")

	if w := get(t, srv.Handler(), "/api/forecast/card.png"); w.Code != http.StatusNotFound {
		t.Fatalf("no runs: got %d, want 404", w.Code)
	}

	run := &models.ForecastRun{
		SeedDate:        seedDate,
		DaysAhead:       2,
		SchemaVersion:   "lags-v1",
		EncodingVersion: "enc-1",
		CodeTable:       "wmo-4677-v1",
		Records: []models.ForecastRecord{
			{Date: seedDate.AddDate(0, 0, 1), TemperatureMean: 28.3, PrecipitationSum: 4.2, WeatherCode: 61, WeatherDescription: "Slight rain"},
			{Date: seedDate.AddDate(0, 0, 2), TemperatureMean: 28.9, WeatherCode: 2, WeatherDescription: "Partly cloudy"},
		},
	}
	if err := s.SaveForecastRun(run); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		w := get(t, srv.Handler(), "/api/forecast/card.png")
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
		if ct := w.Header().Get("Content-Type"); ct != "image/png" {
			t.Errorf("Content-Type = %q", ct)
		}
		if _, err := png.Decode(w.Body); err != nil {
			t.Errorf("request %d: decode card: %v", i, err)
		}
	}
}

func TestIngestHealthEndpoint(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	srv := api.NewServer(s, &stubForecaster{}, "8080", 14)

	run, err := s.StartIngestRun("Kochi", time.Date(2025, 5, 14, 0, 0, 0, 0, time.UTC), time.Date(2025, 6, 12, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	run.HTTPStatus = sql.NullInt64{Int64: 503, Valid: true}
	run.Error = sql.NullString{String: "status 503", Valid: true}
	if err := s.CompleteIngestRun(run); err != nil {
		t.Fatal(err)
	}

	w := get(t, srv.Handler(), "/api/ingest/health")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{`"failures":1`, "status 503", `"from":"2025-05-14"`, `"to":"2025-06-12"`, `"http_status":503`} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %s: %s", want, body)
		}
	}
	if strings.Contains(body, "covered_through") {
		t.Errorf("failed fetch reported coverage: %s", body)
	}

	if w := get(t, srv.Handler(), "/api/ingest/health?days=0"); w.Code != http.StatusBadRequest {
		t.Errorf("days=0: got %d, want 400", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	srv := api.NewServer(setupTestStore(t), &stubForecaster{}, "8080", 14)
	w := get(t, srv.Handler(), "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "go_goroutines") {
		t.Error("expected Go runtime metrics")
	}
}
