package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gowtham258/Weather-Forecasting-Model/internal/api"
	"github.com/gowtham258/Weather-Forecasting-Model/internal/config"
	"github.com/gowtham258/Weather-Forecasting-Model/internal/features"
	"github.com/gowtham258/Weather-Forecasting-Model/internal/forecast"
	"github.com/gowtham258/Weather-Forecasting-Model/internal/httputil"
	"github.com/gowtham258/Weather-Forecasting-Model/internal/ingest"
	"github.com/gowtham258/Weather-Forecasting-Model/internal/models"
	"github.com/gowtham258/Weather-Forecasting-Model/internal/predictor"
	"github.com/gowtham258/Weather-Forecasting-Model/internal/store"
	"github.com/gowtham258/Weather-Forecasting-Model/internal/weathercode"
)

func openStore(cfg *config.Config) (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	log.Println("database migrated")
	return st, nil
}

// loadEngine builds the rollout engine from the trained bundle and looks up
// the description encoding the bundle was trained with.
func loadEngine(cfg *config.Config, st *store.Store) (*forecast.Engine, *features.Encoding, error) {
	bundle, err := predictor.LoadBundle(cfg.BundlePath)
	if err != nil {
		return nil, nil, err
	}
	if err := bundle.RequireSchema(features.LagSchema(bundle.Schema.Version)); err != nil {
		return nil, nil, fmt.Errorf("bundle %s: %w", cfg.BundlePath, err)
	}

	set := bundle.Set()
	if cfg.PredictorURL != "" {
		log.Printf("forecast: using model server %s", cfg.PredictorURL)
		set = predictor.NewRemote(cfg.PredictorURL, httputil.NewClient()).Set(bundle.Schema)
	}

	enc, err := st.GetEncoding(bundle.EncodingVersion)
	if err != nil {
		return nil, nil, fmt.Errorf("load encoding: %w", err)
	}
	if enc == nil {
		return nil, nil, fmt.Errorf("encoding %s from bundle %s is not in the database; run `dailycast features` on the training history", bundle.EncodingVersion, cfg.BundlePath)
	}
	if enc.CodeTable != weathercode.Version {
		return nil, nil, fmt.Errorf("encoding %s was built with code table %s, have %s", enc.Version, enc.CodeTable, weathercode.Version)
	}

	engine, err := forecast.NewEngine(set, weathercode.Table{})
	if err != nil {
		return nil, nil, err
	}
	return engine, enc, nil
}

func newDailyJobs(cfg *config.Config, st *store.Store, engine *forecast.Engine, enc *features.Encoding) *ingest.DailyJobs {
	jobs := ingest.NewDailyJobs(st, ingest.NewArchiveClient(cfg.ArchiveURL), engine, enc, cfg.Location(), cfg.LookbackDays, cfg.Horizon)
	jobs.SetRawRetention(cfg.RawRetentionDays)
	return jobs
}

type ServeCmd struct {
	Port       string `env:"PORT" default:"8080" help:"HTTP server port."`
	NoSchedule bool   `help:"Serve the API without scheduling the daily pipeline."`
}

func (c *ServeCmd) Run(cfg *config.Config, ctx context.Context) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	engine, enc, err := loadEngine(cfg, st)
	if err != nil {
		return err
	}
	jobs := newDailyJobs(cfg, st, engine, enc)
	server := api.NewServer(st, jobs, c.Port, cfg.MaxDays)
	server.SetLocation(cfg.LocationName)

	g, gctx := errgroup.WithContext(ctx)
	if c.NoSchedule {
		log.Println("scheduling disabled (--no-schedule)")
	} else {
		loc, err := cfg.TimeLocation()
		if err != nil {
			return err
		}
		scheduler := ingest.NewScheduler(jobs, loc, cfg.ScheduleAt)
		g.Go(func() error { return scheduler.Run(gctx) })
	}
	g.Go(func() error { return server.Run(gctx) })
	return g.Wait()
}

type FetchCmd struct {
	Start string `help:"First date to fetch (YYYY-MM-DD). Defaults to --lookback days before --end."`
	End   string `help:"Last date to fetch (YYYY-MM-DD). Defaults to yesterday in the location's timezone."`
}

// fetchChunk bounds the date range of one archive request.
const fetchChunk = 366

func (c *FetchCmd) Run(cfg *config.Config, ctx context.Context) error {
	loc, err := cfg.TimeLocation()
	if err != nil {
		return err
	}

	end := models.DateOnly(time.Now().In(loc)).AddDate(0, 0, -1)
	if c.End != "" {
		if end, err = time.Parse(time.DateOnly, c.End); err != nil {
			return fmt.Errorf("--end: %w", err)
		}
	}
	start := end.AddDate(0, 0, -(cfg.LookbackDays - 1))
	if c.Start != "" {
		if start, err = time.Parse(time.DateOnly, c.Start); err != nil {
			return fmt.Errorf("--start: %w", err)
		}
	}
	if end.Before(start) {
		return fmt.Errorf("--end %s is before --start %s", end.Format(time.DateOnly), start.Format(time.DateOnly))
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	jobs := newDailyJobs(cfg, st, nil, nil)
	total := 0
	for from := start; !from.After(end); from = from.AddDate(0, 0, fetchChunk) {
		to := from.AddDate(0, 0, fetchChunk-1)
		if to.After(end) {
			to = end
		}
		n, err := jobs.IngestArchive(ctx, from, to)
		if err != nil {
			return fmt.Errorf("fetch %s to %s: %w", from.Format(time.DateOnly), to.Format(time.DateOnly), err)
		}
		total += n
	}
	log.Printf("fetch: stored %d days for %s", total, cfg.LocationName)
	return nil
}

type FeaturesCmd struct {
	Out           string `default:"data/features.csv" help:"Feature table CSV output."`
	SchemaOut     string `default:"data/schema.json" help:"Schema and encoding output for the trainer."`
	SchemaVersion string `default:"lags-v1" help:"Version name recorded for the exported lag schema."`
	ReuseEncoding bool   `help:"Export with the latest stored description encoding instead of fitting a new one."`
}

// trainingManifest tells the trainer which columns and description encoding
// the exported table was built with.
type trainingManifest struct {
	Schema   features.Schema    `json:"schema"`
	Encoding *features.Encoding `json:"encoding"`
	Rows     int                `json:"rows"`
	From     string             `json:"from"`
	To       string             `json:"to"`
}

func (c *FeaturesCmd) Run(cfg *config.Config) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	var enc *features.Encoding
	if c.ReuseEncoding {
		if enc, err = st.LatestEncoding(); err != nil {
			return fmt.Errorf("load encoding: %w", err)
		}
		if enc == nil {
			return errors.New("--reuse-encoding: no stored encoding; run without it first")
		}
		if enc.CodeTable != weathercode.Version {
			return fmt.Errorf("--reuse-encoding: encoding %s was built with code table %s, have %s", enc.Version, enc.CodeTable, weathercode.Version)
		}
	}

	obs, err := st.GetAllObservations()
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	log.Printf("features: %d observed days", len(obs))

	if enc == nil {
		if enc, err = features.FitEncoding(obs, weathercode.Table{}); err != nil {
			return err
		}
		if err := st.SaveEncoding(enc); err != nil {
			return fmt.Errorf("save encoding: %w", err)
		}
	}

	table, err := features.NewBuilder(weathercode.Table{}, enc).Build(obs)
	if err != nil {
		return err
	}

	if err := writeFile(c.Out, table.WriteCSV); err != nil {
		return err
	}

	manifest := trainingManifest{
		Schema:   features.LagSchema(c.SchemaVersion),
		Encoding: enc,
		Rows:     len(table.Rows),
	}
	if len(table.Rows) > 0 {
		manifest.From = table.Rows[0].Date.Format(time.DateOnly)
		manifest.To = table.Rows[len(table.Rows)-1].Date.Format(time.DateOnly)
	}
	if err := writeFile(c.SchemaOut, func(w io.Writer) error {
		e := json.NewEncoder(w)
		e.SetIndent("", "  ")
		return e.Encode(manifest)
	}); err != nil {
		return err
	}

	log.Printf("features: wrote %d rows to %s, encoding %s with %d labels", len(table.Rows), c.Out, enc.Version, len(enc.Labels))
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

type PredictCmd struct{}

func (c *PredictCmd) Run(cfg *config.Config, ctx context.Context) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	engine, enc, err := loadEngine(cfg, st)
	if err != nil {
		return err
	}
	seed, records, err := newDailyJobs(cfg, st, engine, enc).RollOut(ctx, 1)
	if err != nil {
		return err
	}

	r := records[0]
	fmt.Printf("Latest complete observation: %s\n", seed.Date.Format(time.DateOnly))
	fmt.Printf("Predicted weather for %s:\n", r.Date.Format(time.DateOnly))
	fmt.Printf("  Temperature:   %.2f °C\n", r.TemperatureMean)
	fmt.Printf("  Precipitation: %.2f mm\n", r.PrecipitationSum)
	fmt.Printf("  Condition:     %s (code %d)\n", r.WeatherDescription, r.WeatherCode)
	return nil
}

type ForecastCmd struct {
	Days    int  `short:"d" default:"7" help:"Days to forecast."`
	NoStore bool `help:"Print the forecast without storing it as a run."`
}

func (c *ForecastCmd) Run(cfg *config.Config, ctx context.Context) error {
	if c.Days < 0 || c.Days > cfg.MaxDays {
		return fmt.Errorf("--days must be between 0 and %d", cfg.MaxDays)
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	engine, enc, err := loadEngine(cfg, st)
	if err != nil {
		return err
	}
	jobs := newDailyJobs(cfg, st, engine, enc)

	var (
		seedDate time.Time
		records  []models.ForecastRecord
	)
	if c.NoStore {
		seed, recs, err := jobs.RollOut(ctx, c.Days)
		if err != nil {
			return err
		}
		seedDate, records = seed.Date, recs
	} else {
		run, err := jobs.Forecast(ctx, c.Days)
		if err != nil {
			return err
		}
		log.Printf("forecast: stored run %s", run.ID)
		seedDate, records = run.SeedDate, run.Records
	}

	fmt.Printf("Forecast from %s\n", seedDate.Format(time.DateOnly))
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tTEMP °C\tPRECIP mm\tCODE\tCONDITION")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%d\t%s\n", r.Date.Format(time.DateOnly), r.TemperatureMean, r.PrecipitationSum, r.WeatherCode, r.WeatherDescription)
	}
	return tw.Flush()
}

type DailyCmd struct{}

func (c *DailyCmd) Run(cfg *config.Config, ctx context.Context) error {
	loc, err := cfg.TimeLocation()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	engine, enc, err := loadEngine(cfg, st)
	if err != nil {
		return err
	}
	run, err := newDailyJobs(cfg, st, engine, enc).RunAll(ctx, time.Now().In(loc))
	if err != nil {
		return err
	}
	log.Printf("daily: done, run %s", run.ID)
	return nil
}

type ReplayCmd struct{}

func (c *ReplayCmd) Run(cfg *config.Config) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	n, err := newDailyJobs(cfg, st, nil, nil).ReplayRawPayloads()
	if err != nil {
		return err
	}
	log.Printf("replay: stored %d days for %s", n, cfg.LocationName)
	return nil
}
