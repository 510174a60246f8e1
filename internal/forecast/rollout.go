package forecast

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gowtham258/Weather-Forecasting-Model/internal/features"
	"github.com/gowtham258/Weather-Forecasting-Model/internal/metrics"
	"github.com/gowtham258/Weather-Forecasting-Model/internal/models"
	"github.com/gowtham258/Weather-Forecasting-Model/internal/predictor"
	"github.com/gowtham258/Weather-Forecasting-Model/internal/weathercode"
)

// PredictedVariables are the variables whose lag windows advance during a
// rollout. Every other tracked variable keeps the seed's lags for the whole
// horizon.
var PredictedVariables = []features.Variable{
	features.TemperatureMean,
	features.PrecipitationSum,
	features.WeatherCode,
}

// PredictorError reports a failed predictor call. It aborts the rollout.
type PredictorError struct {
	Day    int
	Date   time.Time
	Target string
	Err    error
}

func (e *PredictorError) Error() string {
	return fmt.Sprintf("day %d (%s): %s predictor: %v", e.Day, e.Date.Format(time.DateOnly), e.Target, e.Err)
}

func (e *PredictorError) Unwrap() error {
	return e.Err
}

// Engine applies single-step predictors recursively. It holds no state
// between calls.
type Engine struct {
	predictors predictor.Set
	resolver   weathercode.Resolver
}

func NewEngine(predictors predictor.Set, resolver weathercode.Resolver) (*Engine, error) {
	if err := predictors.Validate(); err != nil {
		return nil, err
	}
	if resolver == nil {
		resolver = weathercode.Table{}
	}
	return &Engine{predictors: predictors, resolver: resolver}, nil
}

// Schema returns the feature schema the predictors were trained on.
func (e *Engine) Schema() features.Schema {
	return e.predictors.Schema
}

// Run forecasts daysAhead days past the seed date. Each day's predictions are
// pushed into the lag window used for the next day. Any failure discards the
// whole sequence.
func (e *Engine) Run(ctx context.Context, seed *features.Vector, daysAhead int) ([]models.ForecastRecord, error) {
	records, err := e.run(ctx, seed, daysAhead)
	metrics.RolloutsTotal.WithLabelValues(resultLabel(err)).Inc()
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (e *Engine) run(ctx context.Context, seed *features.Vector, daysAhead int) ([]models.ForecastRecord, error) {
	if seed == nil {
		return nil, &features.InsufficientHistoryError{Reason: "no seed vector"}
	}
	if daysAhead < 0 {
		return nil, fmt.Errorf("days ahead must not be negative, got %d", daysAhead)
	}

	state := *seed
	records := make([]models.ForecastRecord, 0, daysAhead)
	for day := 1; day <= daysAhead; day++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		date := state.Date.AddDate(0, 0, 1)
		p, err := e.step(ctx, state, day, date)
		if err != nil {
			return nil, err
		}

		records = append(records, models.ForecastRecord{
			Date:               date,
			TemperatureMean:    p.temperature,
			PrecipitationSum:   p.precipitation,
			WeatherCode:        p.code,
			WeatherDescription: e.resolver.Describe(p.code),
		})

		state = state.Shift(date, map[features.Variable]float64{
			features.TemperatureMean:  p.temperature,
			features.PrecipitationSum: p.precipitation,
			features.WeatherCode:      float64(p.code),
		})
	}
	return records, nil
}

// Forecast seeds a rollout from the latest date in obs and runs it. The seed
// is returned with the records so callers can report what the forecast was
// anchored on.
func (e *Engine) Forecast(ctx context.Context, b *features.Builder, obs []models.DailyObservation, daysAhead int) (features.Vector, []models.ForecastRecord, error) {
	seed, err := b.Seed(obs)
	if err != nil {
		metrics.RolloutsTotal.WithLabelValues(resultLabel(err)).Inc()
		return features.Vector{}, nil, err
	}
	records, err := e.Run(ctx, &seed, daysAhead)
	if err != nil {
		return features.Vector{}, nil, err
	}
	return seed, records, nil
}

type prediction struct {
	temperature   float64
	precipitation float64
	code          int
}

// step calls the three predictors concurrently and waits for all of them.
func (e *Engine) step(ctx context.Context, state features.Vector, day int, date time.Time) (prediction, error) {
	cols, err := e.predictors.Schema.Select(state)
	if err != nil {
		return prediction{}, err
	}

	wrap := func(target string, err error) error {
		return &PredictorError{Day: day, Date: date, Target: target, Err: err}
	}

	var p prediction
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := timed(predictor.TargetTemperature, func() (float64, error) {
			return e.predictors.Temperature.Predict(gctx, maps.Clone(cols))
		})
		if err != nil {
			return wrap(predictor.TargetTemperature, err)
		}
		p.temperature = v
		return nil
	})
	g.Go(func() error {
		v, err := timed(predictor.TargetPrecipitation, func() (float64, error) {
			return e.predictors.Precipitation.Predict(gctx, maps.Clone(cols))
		})
		if err != nil {
			return wrap(predictor.TargetPrecipitation, err)
		}
		p.precipitation = v
		return nil
	})
	g.Go(func() error {
		v, err := timed(predictor.TargetWeatherCode, func() (int, error) {
			return e.predictors.WeatherCode.Classify(gctx, maps.Clone(cols))
		})
		if err != nil {
			return wrap(predictor.TargetWeatherCode, err)
		}
		p.code = v
		return nil
	})
	if err := g.Wait(); err != nil {
		return prediction{}, err
	}
	return p, nil
}

func timed[T any](target string, fn func() (T, error)) (T, error) {
	start := time.Now()
	v, err := fn()
	metrics.PredictorLatency.WithLabelValues(target).Observe(time.Since(start).Seconds())
	return v, err
}

func resultLabel(err error) string {
	var (
		histErr   *features.InsufficientHistoryError
		schemaErr *features.SchemaError
		encErr    *features.EncodingError
		predErr   *PredictorError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &predErr):
		return "predictor"
	case errors.As(err, &histErr):
		return "history"
	case errors.As(err, &schemaErr):
		return "schema"
	case errors.As(err, &encErr):
		return "encoding"
	default:
		return "error"
	}
}
