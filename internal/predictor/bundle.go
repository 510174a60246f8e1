package predictor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/gowtham258/Weather-Forecasting-Model/internal/features"
	"github.com/gowtham258/Weather-Forecasting-Model/internal/weathercode"
)

// Linear is a weighted sum over feature columns.
type Linear struct {
	Intercept float64            `json:"intercept"`
	Weights   map[string]float64 `json:"weights"`
}

// score sums in column order so repeated calls agree bit for bit.
func (m Linear) score(order []string, cols features.Columns) float64 {
	sum := m.Intercept
	for _, name := range order {
		if w, ok := m.Weights[name]; ok {
			sum += w * cols[name]
		}
	}
	return sum
}

// Bundle is a set of trained linear predictors exported by the trainer,
// together with the schema and the encoding and code table versions the
// training features were built with.
type Bundle struct {
	Schema          features.Schema `json:"schema"`
	EncodingVersion string          `json:"encoding_version"`
	CodeTable       string          `json:"code_table"`
	Temperature     Linear          `json:"temperature_2m_mean"`
	Precipitation   Linear          `json:"precipitation_sum"`
	WeatherCode     map[int]Linear  `json:"weather_code"`
}

// LoadBundle reads and validates a bundle file.
func LoadBundle(path string) (*Bundle, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bundle: %w", err)
	}
	var bundle Bundle
	if err := json.Unmarshal(b, &bundle); err != nil {
		return nil, fmt.Errorf("decode bundle %s: %w", path, err)
	}
	if err := bundle.Validate(); err != nil {
		return nil, fmt.Errorf("bundle %s: %w", path, err)
	}
	return &bundle, nil
}

// Save writes the bundle as indented JSON.
func (b *Bundle) Save(path string) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (b *Bundle) Validate() error {
	if err := b.Schema.Validate(); err != nil {
		return err
	}
	if b.CodeTable != weathercode.Version {
		return fmt.Errorf("trained with code table %q, have %q", b.CodeTable, weathercode.Version)
	}
	if len(b.WeatherCode) == 0 {
		return errors.New("weather code model has no classes")
	}

	cols := make(map[string]bool, len(b.Schema.Columns))
	for _, c := range b.Schema.Columns {
		cols[c] = true
	}
	check := func(target string, m Linear) error {
		for name := range m.Weights {
			if !cols[name] {
				return fmt.Errorf("%s weight on column %q outside schema %s", target, name, b.Schema.Version)
			}
		}
		return nil
	}
	if err := check(TargetTemperature, b.Temperature); err != nil {
		return err
	}
	if err := check(TargetPrecipitation, b.Precipitation); err != nil {
		return err
	}
	for code, m := range b.WeatherCode {
		if err := check(fmt.Sprintf("%s class %d", TargetWeatherCode, code), m); err != nil {
			return err
		}
	}
	return nil
}

// RequireSchema fails with a *features.SchemaError unless the bundle was
// trained on exactly the columns of want.
func (b *Bundle) RequireSchema(want features.Schema) error {
	if err := b.Schema.Match(want); err != nil {
		return fmt.Errorf("bundle trained on a different feature set: %w", err)
	}
	return nil
}

// Set returns the bundle's predictors.
func (b *Bundle) Set() Set {
	codes := make([]int, 0, len(b.WeatherCode))
	for code := range b.WeatherCode {
		codes = append(codes, code)
	}
	sort.Ints(codes)

	return Set{
		Schema:        b.Schema,
		Temperature:   &linearRegressor{schema: b.Schema, model: b.Temperature},
		Precipitation: &linearRegressor{schema: b.Schema, model: b.Precipitation},
		WeatherCode:   &linearClassifier{schema: b.Schema, codes: codes, classes: b.WeatherCode},
	}
}

type linearRegressor struct {
	schema features.Schema
	model  Linear
}

func (r *linearRegressor) Predict(ctx context.Context, cols features.Columns) (float64, error) {
	if err := r.schema.Check(cols); err != nil {
		return 0, err
	}
	return r.model.score(r.schema.Columns, cols), nil
}

// linearClassifier picks the class with the highest score; ties go to the
// lower code.
type linearClassifier struct {
	schema  features.Schema
	codes   []int
	classes map[int]Linear
}

func (c *linearClassifier) Classify(ctx context.Context, cols features.Columns) (int, error) {
	if err := c.schema.Check(cols); err != nil {
		return 0, err
	}
	best := c.codes[0]
	bestScore := c.classes[best].score(c.schema.Columns, cols)
	for _, code := range c.codes[1:] {
		if s := c.classes[code].score(c.schema.Columns, cols); s > bestScore {
			best, bestScore = code, s
		}
	}
	return best, nil
}
