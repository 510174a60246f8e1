package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"

	"github.com/gowtham258/Weather-Forecasting-Model/internal/features"
	"github.com/gowtham258/Weather-Forecasting-Model/internal/metrics"
)

// Remote calls an external model server that hosts the trained predictors:
//
//	POST {baseURL}/v1/predict/{target}  {"features": {...}}  ->  {"value": x}
type Remote struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[float64]

	initialInterval time.Duration
	maxElapsed      time.Duration
}

func NewRemote(baseURL string, client *http.Client) *Remote {
	return &Remote{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		breaker: gobreaker.NewCircuitBreaker[float64](gobreaker.Settings{
			Name:        "model-server",
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 5
			},
		}),
		initialInterval: 200 * time.Millisecond,
		maxElapsed:      30 * time.Second,
	}
}

// Set returns the three remote predictors bound to schema.
func (r *Remote) Set(schema features.Schema) Set {
	return Set{
		Schema: schema,
		Temperature: RegressorFunc(func(ctx context.Context, cols features.Columns) (float64, error) {
			return r.predict(ctx, TargetTemperature, schema, cols)
		}),
		Precipitation: RegressorFunc(func(ctx context.Context, cols features.Columns) (float64, error) {
			return r.predict(ctx, TargetPrecipitation, schema, cols)
		}),
		WeatherCode: ClassifierFunc(func(ctx context.Context, cols features.Columns) (int, error) {
			v, err := r.predict(ctx, TargetWeatherCode, schema, cols)
			if err != nil {
				return 0, err
			}
			return int(math.Round(v)), nil
		}),
	}
}

type predictRequest struct {
	SchemaVersion string           `json:"schema_version"`
	Features      features.Columns `json:"features"`
}

type predictResponse struct {
	Value *float64 `json:"value"`
}

func (r *Remote) predict(ctx context.Context, target string, schema features.Schema, cols features.Columns) (float64, error) {
	if err := schema.Check(cols); err != nil {
		return 0, err
	}
	body, err := json.Marshal(predictRequest{SchemaVersion: schema.Version, Features: cols})
	if err != nil {
		return 0, fmt.Errorf("encode %s request: %w", target, err)
	}
	url := fmt.Sprintf("%s/v1/predict/%s", r.baseURL, target)

	var value float64
	operation := func() error {
		v, err := r.breaker.Execute(func() (float64, error) {
			return r.post(ctx, url, body)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(err)
		}
		if err != nil {
			return err
		}
		value = v
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.initialInterval
	bo.MaxElapsedTime = r.maxElapsed
	err = backoff.Retry(operation, backoff.WithContext(bo, ctx))
	metrics.RemotePredictorCalls.WithLabelValues(target, statusLabel(err)).Inc()
	if err != nil {
		return 0, fmt.Errorf("predict %s: %w", target, err)
	}
	return value, nil
}

// post performs one call. Client errors other than 429 are permanent.
func (r *Remote) post(ctx context.Context, url string, body []byte) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return 0, fmt.Errorf("model server status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, backoff.Permanent(fmt.Errorf("model server status %d: %s", resp.StatusCode, strings.TrimSpace(string(b))))
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	if out.Value == nil {
		return 0, backoff.Permanent(errors.New("response has no value"))
	}
	return *out.Value, nil
}

func statusLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return "error"
}
