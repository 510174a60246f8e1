package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedWithTemps(temps [LagDays]float64) Vector {
	var v Vector
	v.Date = day0
	for _, variable := range Variables() {
		for k := 1; k <= LagDays; k++ {
			v.Lags[variable][k-1] = float64(int(variable)*10 + k)
		}
	}
	v.Lags[TemperatureMean] = temps
	return v
}

func TestShift_TemperatureScenario(t *testing.T) {
	seed := seedWithTemps([LagDays]float64{28.0, 27.5, 29.1, 26.8, 27.2, 28.9, 27.0})

	next := seed.Shift(day0.AddDate(0, 0, 1), map[Variable]float64{TemperatureMean: 28.3})

	assert.Equal(t, day0.AddDate(0, 0, 1), next.Date)
	assert.Equal(t, 28.3, next.Lag(TemperatureMean, 1))
	assert.Equal(t, 28.0, next.Lag(TemperatureMean, 2))
	assert.Equal(t, 27.2, next.Lag(TemperatureMean, 6))
	assert.Equal(t, 28.9, next.Lag(TemperatureMean, 7))

	// the seed is untouched
	assert.Equal(t, 28.0, seed.Lag(TemperatureMean, 1))
	assert.Equal(t, day0, seed.Date)
}

func TestShift_OtherVariablesFrozen(t *testing.T) {
	seed := seedWithTemps([LagDays]float64{1, 2, 3, 4, 5, 6, 7})
	next := seed.Shift(day0.AddDate(0, 0, 1), map[Variable]float64{
		TemperatureMean:  9,
		PrecipitationSum: 0.5,
		WeatherCode:      61,
	})

	for _, v := range Variables() {
		switch v {
		case TemperatureMean, PrecipitationSum, WeatherCode:
			continue
		}
		assert.Equal(t, seed.Lags[v], next.Lags[v], "%s lags changed", v)
	}
	assert.Equal(t, 0.5, next.Lag(PrecipitationSum, 1))
	assert.Equal(t, seed.Lag(PrecipitationSum, 1), next.Lag(PrecipitationSum, 2))
	assert.Equal(t, 61.0, next.Lag(WeatherCode, 1))
}

func TestColumn(t *testing.T) {
	v := seedWithTemps([LagDays]float64{1, 2, 3, 4, 5, 6, 7})
	v.Raw[PressureMSLMean] = 1012
	v.DescriptionLag1Encoded = 4

	tests := []struct {
		name string
		want float64
		ok   bool
	}{
		{"temperature_2m_mean_lag3", 3, true},
		{"pressure_msl_mean", 1012, true},
		{"pressure_msl_mean_lag7", float64(int(PressureMSLMean)*10 + 7), true},
		{ColumnDescriptionLag1Encoded, 4, true},
		{"temperature_2m_mean_lag8", 0, false},
		{ColumnDescription, 0, false},
		{"date", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := v.Column(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLagSchema(t *testing.T) {
	s := LagSchema("v1")
	require.NoError(t, s.Validate())
	assert.Len(t, s.Columns, NumVariables*LagDays)
	assert.NotContains(t, s.Columns, ColumnDescriptionLag1Encoded)

	cols, err := s.Select(seedWithTemps([LagDays]float64{1, 2, 3, 4, 5, 6, 7}))
	require.NoError(t, err)
	assert.Len(t, cols, NumVariables*LagDays)
	assert.Equal(t, 1.0, cols["temperature_2m_mean_lag1"])
	require.NoError(t, s.Check(cols))
}

func TestSchema_Check(t *testing.T) {
	s := Schema{Version: "v1", Columns: []string{"temperature_2m_mean_lag1", "precipitation_sum_lag1"}}

	require.NoError(t, s.Check(Columns{"precipitation_sum_lag1": 0, "temperature_2m_mean_lag1": 1}))

	err := s.Check(Columns{"temperature_2m_mean_lag1": 1, "weather_code_lag1": 3})
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, []string{"precipitation_sum_lag1"}, schemaErr.Missing)
	assert.Equal(t, []string{"weather_code_lag1"}, schemaErr.Extra)
	assert.Contains(t, err.Error(), "v1")
}

func TestSchema_Validate(t *testing.T) {
	tests := []struct {
		name   string
		schema Schema
	}{
		{"no version", Schema{Columns: []string{"weather_code_lag1"}}},
		{"no columns", Schema{Version: "v1"}},
		{"unknown column", Schema{Version: "v1", Columns: []string{"weather_description"}}},
		{"duplicate", Schema{Version: "v1", Columns: []string{"weather_code_lag1", "weather_code_lag1"}}},
		{"same-day column", Schema{Version: "v1", Columns: []string{"weather_code_lag1", "temperature_2m_mean"}}},
		{"encoded description", Schema{Version: "v1", Columns: []string{"weather_code_lag1", ColumnDescriptionLag1Encoded}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.schema.Validate())
		})
	}
}

func TestSchema_Equal(t *testing.T) {
	a := Schema{Version: "a", Columns: []string{"weather_code_lag1", "precipitation_sum_lag2"}}
	b := Schema{Version: "b", Columns: []string{"precipitation_sum_lag2", "weather_code_lag1"}}
	c := Schema{Version: "c", Columns: []string{"weather_code_lag1"}}
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestSchema_Match(t *testing.T) {
	want := LagSchema("lags-v1")
	require.NoError(t, LagSchema("retrained").Match(want))

	subset := Schema{Version: "small", Columns: []string{"temperature_2m_mean_lag1", "weather_code_lag1"}}
	err := subset.Match(want)
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "small", schemaErr.Version)
	assert.Len(t, schemaErr.Missing, NumVariables*LagDays-2)
	assert.NotContains(t, schemaErr.Missing, "weather_code_lag1")
	assert.Empty(t, schemaErr.Extra)

	narrow := Schema{Version: "narrow", Columns: []string{"weather_code_lag1"}}
	err = LagSchema("wide").Match(narrow)
	require.ErrorAs(t, err, &schemaErr)
	assert.Empty(t, schemaErr.Missing)
	assert.Len(t, schemaErr.Extra, NumVariables*LagDays-1)
}

func TestParseVariable(t *testing.T) {
	v, ok := ParseVariable("dew_point_2m_mean")
	require.True(t, ok)
	assert.Equal(t, DewPointMean, v)

	_, ok = ParseVariable("wind_direction_10m_dominant")
	assert.False(t, ok)
	assert.Equal(t, "variable(99)", Variable(99).String())
}
