package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tidwall/gjson"

	"github.com/gowtham258/Weather-Forecasting-Model/internal/httputil"
	"github.com/gowtham258/Weather-Forecasting-Model/internal/metrics"
	"github.com/gowtham258/Weather-Forecasting-Model/internal/models"
)

const (
	SourceOpenMeteo   = "open-meteo"
	EndpointArchive   = "archive"
	DefaultArchiveURL = "https://archive-api.open-meteo.com/v1/archive"
)

// DailyVariables are the daily aggregates requested from the archive.
var DailyVariables = []string{
	"weather_code", "temperature_2m_mean", "daylight_duration", "sunshine_duration", "precipitation_sum",
	"wind_speed_10m_max", "temperature_2m_min", "cloud_cover_mean", "dew_point_2m_mean",
	"apparent_temperature_mean", "apparent_temperature_max", "apparent_temperature_min",
	"temperature_2m_max", "wind_gusts_10m_max", "dew_point_2m_max", "dew_point_2m_min",
	"cloud_cover_max", "cloud_cover_min", "relative_humidity_2m_mean", "relative_humidity_2m_max",
	"relative_humidity_2m_min", "pressure_msl_mean", "pressure_msl_max", "pressure_msl_min", "wind_speed_10m_mean",
	"wind_gusts_10m_min", "wind_speed_10m_min", "wind_gusts_10m_mean", "surface_pressure_min",
	"surface_pressure_max", "surface_pressure_mean",
}

// FetchResult contains metadata about a fetch operation for auditing.
type FetchResult struct {
	HTTPStatus   int
	ResponseSize int
	RecordCount  int
	ParseErrors  int
	ParseError   string
}

// ArchiveClient fetches daily history from the Open-Meteo archive API.
type ArchiveClient struct {
	baseURL string
	client  *http.Client

	initialInterval time.Duration
	maxElapsed      time.Duration
}

func NewArchiveClient(baseURL string) *ArchiveClient {
	if baseURL == "" {
		baseURL = DefaultArchiveURL
	}
	return &ArchiveClient{
		baseURL:         baseURL,
		client:          httputil.NewClient(),
		initialInterval: 200 * time.Millisecond,
		maxElapsed:      2 * time.Minute,
	}
}

func (a *ArchiveClient) requestURL(loc models.Location, start, end time.Time) string {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(loc.Latitude, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(loc.Longitude, 'f', 4, 64))
	q.Set("start_date", start.Format(time.DateOnly))
	q.Set("end_date", end.Format(time.DateOnly))
	q.Set("daily", strings.Join(DailyVariables, ","))
	if loc.Timezone != "" {
		q.Set("timezone", loc.Timezone)
	}
	return a.baseURL + "?" + q.Encode()
}

// FetchDaily returns one observation per day in [start, end] along with the
// raw response body. Null values in the response come back as NaN.
func (a *ArchiveClient) FetchDaily(ctx context.Context, loc models.Location, start, end time.Time) ([]models.DailyObservation, []byte, *FetchResult, error) {
	if end.Before(start) {
		return nil, nil, nil, fmt.Errorf("fetch archive: end %s before start %s", end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	reqURL := a.requestURL(loc, start, end)
	result := &FetchResult{}

	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}

		callStart := time.Now()
		resp, err := a.client.Do(req)
		metrics.ArchiveAPILatency.Observe(time.Since(callStart).Seconds())
		if err != nil {
			metrics.ArchiveAPICallsTotal.WithLabelValues("error").Inc()
			return fmt.Errorf("fetch archive: %w", err)
		}
		defer resp.Body.Close()
		result.HTTPStatus = resp.StatusCode

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			metrics.ArchiveAPICallsTotal.WithLabelValues("error").Inc()
			return fmt.Errorf("fetch archive: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			metrics.ArchiveAPICallsTotal.WithLabelValues("error").Inc()
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			reason := gjson.GetBytes(b, "reason").String()
			if reason == "" {
				reason = strings.TrimSpace(string(b))
			}
			return backoff.Permanent(fmt.Errorf("fetch archive: status %d: %s", resp.StatusCode, reason))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			metrics.ArchiveAPICallsTotal.WithLabelValues("error").Inc()
			return fmt.Errorf("read body: %w", err)
		}
		metrics.ArchiveAPICallsTotal.WithLabelValues("ok").Inc()
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = a.initialInterval
	bo.MaxElapsedTime = a.maxElapsed
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, nil, result, err
	}
	result.ResponseSize = len(body)

	obs, parseErrors, err := ParseDaily(body, time.Now().UTC())
	if err != nil {
		return nil, body, result, err
	}
	result.RecordCount = len(obs)
	if len(parseErrors) > 0 {
		result.ParseErrors = len(parseErrors)
		result.ParseError = strings.Join(parseErrors, "; ")
	}
	return obs, body, result, nil
}

// ParseDaily decodes an archive response. Each requested variable is a column
// array aligned with daily.time. Malformed entries are reported in
// parseErrors and stored as NaN; a malformed document is an error.
func ParseDaily(body []byte, fetchedAt time.Time) (obs []models.DailyObservation, parseErrors []string, err error) {
	if !gjson.ValidBytes(body) {
		return nil, nil, errors.New("parse archive: invalid JSON")
	}
	if gjson.GetBytes(body, "error").Bool() {
		return nil, nil, fmt.Errorf("parse archive: %s", gjson.GetBytes(body, "reason").String())
	}

	times := gjson.GetBytes(body, "daily.time")
	if !times.IsArray() {
		return nil, nil, errors.New("parse archive: no daily.time array")
	}
	dates := times.Array()

	columns := make(map[string][]gjson.Result, len(DailyVariables))
	for _, name := range DailyVariables {
		col := gjson.GetBytes(body, "daily."+name)
		if !col.Exists() {
			continue
		}
		values := col.Array()
		if len(values) != len(dates) {
			return nil, nil, fmt.Errorf("parse archive: %s has %d values for %d days", name, len(values), len(dates))
		}
		columns[name] = values
	}

	obs = make([]models.DailyObservation, 0, len(dates))
	for i, t := range dates {
		date, err := time.Parse(time.DateOnly, t.String())
		if err != nil {
			parseErrors = append(parseErrors, fmt.Sprintf("day %d: bad date %q", i, t.String()))
			continue
		}
		o := models.DailyObservation{
			Date:      date,
			Values:    make(map[string]float64, len(columns)),
			FetchedAt: fetchedAt,
		}
		for name, values := range columns {
			switch v := values[i]; v.Type {
			case gjson.Number:
				o.Values[name] = v.Float()
			case gjson.Null:
				o.Values[name] = math.NaN()
			default:
				o.Values[name] = math.NaN()
				parseErrors = append(parseErrors, fmt.Sprintf("%s %s: non-numeric %s", t.String(), name, v.Raw))
			}
		}
		obs = append(obs, o)
	}
	return obs, parseErrors, nil
}
