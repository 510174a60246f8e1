package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/gowtham258/Weather-Forecasting-Model/internal/features"
	"github.com/gowtham258/Weather-Forecasting-Model/internal/forecast"
	"github.com/gowtham258/Weather-Forecasting-Model/internal/metrics"
	"github.com/gowtham258/Weather-Forecasting-Model/internal/models"
	"github.com/gowtham258/Weather-Forecasting-Model/internal/store"
	"github.com/gowtham258/Weather-Forecasting-Model/internal/weathercode"
)

// historyWindow is how far back the pipeline reads stored history when
// seeding a rollout. It leaves room for the archive's reporting delay.
const historyWindow = 30

// DailyJobs is the daily pipeline: refresh recent history from the archive,
// then roll a forecast forward from the latest complete day.
type DailyJobs struct {
	store    *store.Store
	archive  *ArchiveClient
	engine   *forecast.Engine
	encoding *features.Encoding
	location models.Location

	lookbackDays int
	horizon      int
	// rawRetentionDays bounds how long archive responses are kept. Zero keeps
	// them forever.
	rawRetentionDays int
}

func NewDailyJobs(store *store.Store, archive *ArchiveClient, engine *forecast.Engine, encoding *features.Encoding, location models.Location, lookbackDays, horizon int) *DailyJobs {
	return &DailyJobs{
		store:        store,
		archive:      archive,
		engine:       engine,
		encoding:     encoding,
		location:     location,
		lookbackDays: lookbackDays,
		horizon:      horizon,
	}
}

// SetRawRetention sets how many days of raw archive responses RunAll keeps.
func (d *DailyJobs) SetRawRetention(days int) {
	d.rawRetentionDays = days
}

// RunAll runs the pipeline for the day of now. A failed fetch is logged and
// the forecast still runs on stored history.
func (d *DailyJobs) RunAll(ctx context.Context, now time.Time) (*models.ForecastRun, error) {
	today := models.DateOnly(now)
	log.Printf("daily: running jobs for %s", today.Format(time.DateOnly))

	end := today.AddDate(0, 0, -1)
	start := end.AddDate(0, 0, -(d.lookbackDays - 1))
	if _, err := d.IngestArchive(ctx, start, end); err != nil {
		log.Printf("daily: ingest error: %v", err)
	}
	if _, err := d.PruneRawPayloads(now); err != nil {
		log.Printf("daily: prune raw payloads: %v", err)
	}

	run, err := d.Forecast(ctx, d.horizon)
	if err != nil {
		return nil, fmt.Errorf("forecast: %w", err)
	}
	log.Printf("daily: stored forecast run %s seeded on %s (%d days)", run.ID, run.SeedDate.Format(time.DateOnly), len(run.Records))
	return run, nil
}

// IngestArchive fetches [start, end] from the archive and stores it with an
// audit row and the raw payload. Returns the number of days stored.
func (d *DailyJobs) IngestArchive(ctx context.Context, start, end time.Time) (int, error) {
	log.Printf("ingest: fetching %s to %s for %s", start.Format(time.DateOnly), end.Format(time.DateOnly), d.location.Name)

	run, err := d.store.StartIngestRun(d.location.Name, start, end)
	if err != nil {
		log.Printf("ingest: start ingest run: %v", err)
	}

	obs, body, result, err := d.archive.FetchDaily(ctx, d.location, start, end)

	if run != nil {
		run.Success = err == nil
		if result != nil {
			run.HTTPStatus = sql.NullInt64{Int64: int64(result.HTTPStatus), Valid: result.HTTPStatus > 0}
			run.PayloadSize = result.ResponseSize
			run.DaysParsed = result.RecordCount
			run.ParseErrors = result.ParseErrors
			if result.ParseErrors > 0 {
				run.Error = sql.NullString{String: result.ParseError, Valid: true}
				log.Printf("ingest: archive parse errors: %s", result.ParseError)
			}
		}
		if err != nil {
			run.Error = sql.NullString{String: err.Error(), Valid: true}
		}
		defer func() {
			if err := d.store.CompleteIngestRun(run); err != nil {
				log.Printf("ingest: complete ingest run: %v", err)
			}
		}()
	}

	if len(body) > 0 {
		var runID *int64
		if run != nil {
			runID = &run.ID
		}
		if _, err := d.store.StoreRawPayload(runID, SourceOpenMeteo, EndpointArchive, d.location.Name, body); err != nil {
			log.Printf("ingest: store raw payload: %v", err)
		}
	}

	if err != nil {
		return 0, err
	}

	stored, err := d.storeObservations(obs)
	if err != nil {
		if run != nil {
			run.Success = false
			run.Error = sql.NullString{String: err.Error(), Valid: true}
		}
		return 0, err
	}
	if run != nil {
		run.DaysStored = stored
	}
	log.Printf("ingest: stored %d days", stored)
	return stored, nil
}

func (d *DailyJobs) storeObservations(obs []models.DailyObservation) (int, error) {
	for _, o := range obs {
		if flags := ValidateObservation(o); len(flags) > 0 {
			log.Printf("ingest: %s flagged: %s", o.Date.Format(time.DateOnly), strings.Join(flags, ","))
		}
	}

	stored, err := d.store.UpsertObservations(obs)
	if err != nil {
		return 0, fmt.Errorf("store observations: %w", err)
	}
	metrics.ObservationsIngested.Add(float64(stored))
	return stored, nil
}

// PruneRawPayloads deletes raw archive responses older than the retention
// window ending at now.
func (d *DailyJobs) PruneRawPayloads(now time.Time) (int64, error) {
	if d.rawRetentionDays <= 0 {
		return 0, nil
	}
	n, err := d.store.CleanupOldRawPayloads(now.AddDate(0, 0, -d.rawRetentionDays))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Printf("ingest: pruned %d raw payloads older than %d days", n, d.rawRetentionDays)
	}
	return n, nil
}

// ReplayRawPayloads re-parses every stored archive response for the location,
// oldest first, and upserts the result. It rebuilds history without calling
// the archive.
func (d *DailyJobs) ReplayRawPayloads() (int, error) {
	payloads, err := d.store.ListRawPayloads(SourceOpenMeteo, EndpointArchive, d.location.Name)
	if err != nil {
		return 0, fmt.Errorf("list raw payloads: %w", err)
	}

	total := 0
	for _, p := range payloads {
		body, err := d.store.GetRawPayload(p.ID)
		if err != nil {
			return total, fmt.Errorf("load raw payload %d: %w", p.ID, err)
		}
		obs, parseErrors, err := ParseDaily(body, p.FetchedAt)
		if err != nil {
			log.Printf("ingest: skip raw payload %d: %v", p.ID, err)
			continue
		}
		if len(parseErrors) > 0 {
			log.Printf("ingest: raw payload %d parse errors: %s", p.ID, strings.Join(parseErrors, "; "))
		}
		stored, err := d.storeObservations(obs)
		if err != nil {
			return total, err
		}
		total += stored
	}
	log.Printf("ingest: replayed %d payloads, %d days", len(payloads), total)
	return total, nil
}

// Forecast seeds a rollout from stored history and stores the result.
func (d *DailyJobs) Forecast(ctx context.Context, daysAhead int) (*models.ForecastRun, error) {
	seed, records, err := d.RollOut(ctx, daysAhead)
	if err != nil {
		return nil, err
	}

	run := &models.ForecastRun{
		CreatedAt:       time.Now().UTC(),
		SeedDate:        seed.Date,
		DaysAhead:       daysAhead,
		SchemaVersion:   d.engine.Schema().Version,
		EncodingVersion: d.encoding.Version,
		CodeTable:       weathercode.Version,
		Records:         records,
	}
	if err := d.store.SaveForecastRun(run); err != nil {
		return nil, fmt.Errorf("save forecast run: %w", err)
	}
	return run, nil
}

// RollOut runs the engine from the latest complete stored day without
// storing anything.
func (d *DailyJobs) RollOut(ctx context.Context, daysAhead int) (features.Vector, []models.ForecastRecord, error) {
	history, err := d.recentHistory()
	if err != nil {
		return features.Vector{}, nil, err
	}
	builder := features.NewBuilder(weathercode.Table{}, d.encoding)
	return d.engine.Forecast(ctx, builder, history, daysAhead)
}

func (d *DailyJobs) recentHistory() ([]models.DailyObservation, error) {
	latest, ok, err := d.store.LatestObservationDate()
	if err != nil {
		return nil, fmt.Errorf("latest observation date: %w", err)
	}
	if !ok {
		return nil, &features.InsufficientHistoryError{Reason: "no stored observations"}
	}
	obs, err := d.store.GetObservations(latest.AddDate(0, 0, -historyWindow), latest)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return TrimIncomplete(obs), nil
}

// TrimIncomplete drops trailing days with a null tracked variable. The
// archive reports the most recent days as null until reanalysis catches up.
func TrimIncomplete(obs []models.DailyObservation) []models.DailyObservation {
	n := len(obs)
	for n > 0 && !tracked(obs[n-1]) {
		n--
	}
	return obs[:n]
}

func tracked(o models.DailyObservation) bool {
	for _, v := range features.Variables() {
		val, ok := o.Values[v.String()]
		if !ok || math.IsNaN(val) {
			return false
		}
	}
	return true
}

// IsHistoryError reports whether err comes from missing or incomplete
// history rather than a failure of the pipeline itself.
func IsHistoryError(err error) bool {
	var (
		histErr    *features.InsufficientHistoryError
		missingErr *features.MissingVariableError
	)
	return errors.As(err, &histErr) || errors.As(err, &missingErr)
}
