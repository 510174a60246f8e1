package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/gowtham258/Weather-Forecasting-Model/internal/models"
)

// Config is shared by every dailycast command. Values come from flags, then
// the environment, then defaults.
type Config struct {
	DBPath     string `name:"db" env:"DAILYCAST_DB" default:"data/dailycast.db" help:"Path to SQLite database." validate:"required"`
	BundlePath string `name:"bundle" env:"DAILYCAST_BUNDLE" default:"data/bundle.json" help:"Trained predictor bundle." validate:"required"`

	PredictorURL string `name:"predictor-url" env:"DAILYCAST_PREDICTOR_URL" help:"Model server base URL. When set, predictions are served remotely using the bundle's schema." validate:"omitempty,url"`
	ArchiveURL   string `name:"archive-url" env:"DAILYCAST_ARCHIVE_URL" default:"https://archive-api.open-meteo.com/v1/archive" help:"Open-Meteo archive endpoint." validate:"required,url"`

	LocationName string  `name:"location" env:"DAILYCAST_LOCATION" default:"Kochi" help:"Location name." validate:"required"`
	Latitude     float64 `name:"latitude" env:"DAILYCAST_LATITUDE" default:"9.9399" help:"Location latitude." validate:"latitude"`
	Longitude    float64 `name:"longitude" env:"DAILYCAST_LONGITUDE" default:"76.2602" help:"Location longitude." validate:"longitude"`
	Timezone     string  `name:"timezone" env:"DAILYCAST_TIMEZONE" default:"Asia/Kolkata" help:"IANA timezone of the location." validate:"required,timezone"`

	Horizon      int    `name:"horizon" env:"DAILYCAST_HORIZON" default:"7" help:"Days forecast by the daily pipeline." validate:"gte=1,ltefield=MaxDays"`
	MaxDays      int    `name:"max-days" env:"DAILYCAST_MAX_DAYS" default:"14" help:"Longest horizon served by the API." validate:"gte=1,lte=60"`
	LookbackDays int    `name:"lookback" env:"DAILYCAST_LOOKBACK_DAYS" default:"30" help:"Days refreshed from the archive on each pipeline run." validate:"gte=8,lte=366"`
	ScheduleAt   string `name:"schedule-at" env:"DAILYCAST_SCHEDULE_AT" default:"03:00" help:"Local time of the daily pipeline." validate:"required,datetime=15:04"`

	RawRetentionDays int `name:"raw-retention" env:"DAILYCAST_RAW_RETENTION_DAYS" default:"90" help:"Days of raw archive responses kept. 0 keeps them forever." validate:"gte=0"`
}

var validate = validator.New()

// LoadDotenv loads variables from the given .env files into the environment
// without overriding ones already set. Missing files are ignored.
func LoadDotenv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) Location() models.Location {
	return models.Location{
		Name:      c.LocationName,
		Latitude:  c.Latitude,
		Longitude: c.Longitude,
		Timezone:  c.Timezone,
	}
}

// TimeLocation loads the configured timezone.
func (c *Config) TimeLocation() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", c.Timezone, err)
	}
	return loc, nil
}
