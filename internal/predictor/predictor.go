package predictor

import (
	"context"
	"errors"
	"fmt"

	"github.com/gowtham258/Weather-Forecasting-Model/internal/features"
)

// Prediction targets, named after the upstream variables they predict.
const (
	TargetTemperature   = "temperature_2m_mean"
	TargetPrecipitation = "precipitation_sum"
	TargetWeatherCode   = "weather_code"
)

// Regressor predicts one continuous value from a feature row.
type Regressor interface {
	Predict(ctx context.Context, cols features.Columns) (float64, error)
}

// Classifier predicts one weather code from a feature row.
type Classifier interface {
	Classify(ctx context.Context, cols features.Columns) (int, error)
}

// RegressorFunc adapts a function to Regressor.
type RegressorFunc func(ctx context.Context, cols features.Columns) (float64, error)

func (f RegressorFunc) Predict(ctx context.Context, cols features.Columns) (float64, error) {
	return f(ctx, cols)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, cols features.Columns) (int, error)

func (f ClassifierFunc) Classify(ctx context.Context, cols features.Columns) (int, error) {
	return f(ctx, cols)
}

// Set is the three trained predictors together with the feature schema they
// were trained on.
type Set struct {
	Schema        features.Schema
	Temperature   Regressor
	Precipitation Regressor
	WeatherCode   Classifier
}

func (s Set) Validate() error {
	if s.Temperature == nil || s.Precipitation == nil || s.WeatherCode == nil {
		return errors.New("predictor set is incomplete")
	}
	if err := s.Schema.Validate(); err != nil {
		return fmt.Errorf("predictor schema: %w", err)
	}
	return nil
}
