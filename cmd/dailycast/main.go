package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	_ "modernc.org/sqlite"

	"github.com/gowtham258/Weather-Forecasting-Model/internal/config"
)

type CLI struct {
	config.Config

	Serve    ServeCmd    `cmd:"" help:"Run the HTTP API and the daily pipeline schedule."`
	Fetch    FetchCmd    `cmd:"" help:"Fetch daily history from the Open-Meteo archive into the database."`
	Features FeaturesCmd `cmd:"" help:"Fit the description encoding and export the feature table for training."`
	Predict  PredictCmd  `cmd:"" help:"Predict the day after the latest complete observation."`
	Forecast ForecastCmd `cmd:"" help:"Roll a multi-day forecast forward from the latest complete observation."`
	Daily    DailyCmd    `cmd:"" help:"Run the daily pipeline once: fetch, forecast, store."`
	Replay   ReplayCmd   `cmd:"" help:"Rebuild stored history from the raw archive responses kept in the database."`
}

func main() {
	if err := config.LoadDotenv(); err != nil {
		log.Fatalf("dotenv: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("dailycast"),
		kong.Description("Daily weather forecasting from lagged history."),
		kong.UsageOnError(),
		kong.Bind(&cli.Config),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	if err := cli.Config.Validate(); err != nil {
		kctx.Fatalf("%v", err)
	}

	kctx.FatalIfErrorf(kctx.Run())
}
