package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		DBPath:       "data/dailycast.db",
		BundlePath:   "data/bundle.json",
		ArchiveURL:   "https://archive-api.open-meteo.com/v1/archive",
		LocationName: "Kochi",
		Latitude:     9.9399,
		Longitude:    76.2602,
		Timezone:     "Asia/Kolkata",
		Horizon:      7,
		MaxDays:      14,
		LookbackDays: 30,
		ScheduleAt:   "03:00",

		RawRetentionDays: 90,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"remote predictor", func(c *Config) { c.PredictorURL = "http://models:8000" }, ""},
		{"bad predictor url", func(c *Config) { c.PredictorURL = "models" }, "PredictorURL"},
		{"latitude out of range", func(c *Config) { c.Latitude = 91 }, "Latitude"},
		{"unknown timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, "Timezone"},
		{"horizon beyond max days", func(c *Config) { c.Horizon = 20 }, "Horizon"},
		{"lookback shorter than lag window", func(c *Config) { c.LookbackDays = 7 }, "LookbackDays"},
		{"bad schedule", func(c *Config) { c.ScheduleAt = "3am" }, "ScheduleAt"},
		{"no database", func(c *Config) { c.DBPath = "" }, "DBPath"},
		{"keep raw payloads forever", func(c *Config) { c.RawRetentionDays = 0 }, ""},
		{"negative raw retention", func(c *Config) { c.RawRetentionDays = -1 }, "RawRetentionDays"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLocation(t *testing.T) {
	c := validConfig()
	loc := c.Location()
	assert.Equal(t, "Kochi", loc.Name)
	assert.Equal(t, 9.9399, loc.Latitude)

	tz, err := c.TimeLocation()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kolkata", tz.String())
}

func TestLoadDotenv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("DAILYCAST_TEST_LOCATION=Ernakulam\n"), 0o600))
	t.Setenv("DAILYCAST_TEST_LOCATION", "")
	os.Unsetenv("DAILYCAST_TEST_LOCATION")

	require.NoError(t, LoadDotenv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "Ernakulam", os.Getenv("DAILYCAST_TEST_LOCATION"))
}
