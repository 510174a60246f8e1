package ingest

import (
	"math"

	"github.com/gowtham258/Weather-Forecasting-Model/internal/models"
	"github.com/gowtham258/Weather-Forecasting-Model/internal/weathercode"
)

const (
	FlagTempOutOfRange     = "temp_out_of_range"
	FlagHumidityInvalid    = "humidity_invalid"
	FlagCloudCoverInvalid  = "cloud_cover_invalid"
	FlagWindSpeedUnlikely  = "wind_speed_unlikely"
	FlagPressureOutOfRange = "pressure_out_of_range"
	FlagPrecipNegative     = "precip_negative"
	FlagDurationInvalid    = "duration_invalid"
	FlagSunshineExceedsDay = "sunshine_exceeds_daylight"
	FlagUnknownWeatherCode = "unknown_weather_code"
	FlagTempMinAboveMax    = "temp_min_above_max"
)

// Plausible ranges hold anywhere on Earth: the observed extremes are -89.2 °C
// and 56.7 °C, and the highest inhabited stations sit near 500 hPa.
const (
	minPlausibleTemp            = -90
	maxPlausibleTemp            = 60
	minPlausibleSurfacePressure = 500
)

// ValidateObservation returns quality flags for implausible values. Nulls are
// not flagged.
func ValidateObservation(obs models.DailyObservation) []string {
	var flags []string
	outside := func(name string, lo, hi float64) bool {
		v, ok := obs.Value(name)
		return ok && (v < lo || v > hi)
	}
	add := func(flag string) {
		for _, f := range flags {
			if f == flag {
				return
			}
		}
		flags = append(flags, flag)
	}

	for _, name := range []string{"temperature_2m_mean", "temperature_2m_max", "temperature_2m_min"} {
		if outside(name, minPlausibleTemp, maxPlausibleTemp) {
			add(FlagTempOutOfRange)
		}
	}
	tmin, okMin := obs.Value("temperature_2m_min")
	tmax, okMax := obs.Value("temperature_2m_max")
	if okMin && okMax && tmin > tmax {
		add(FlagTempMinAboveMax)
	}

	if outside("relative_humidity_2m_mean", 0, 100) {
		add(FlagHumidityInvalid)
	}

	if outside("cloud_cover_mean", 0, 100) {
		add(FlagCloudCoverInvalid)
	}

	for _, name := range []string{"wind_speed_10m_mean", "wind_gusts_10m_mean", "wind_gusts_10m_max"} {
		if outside(name, 0, 200) {
			add(FlagWindSpeedUnlikely)
		}
	}

	if outside("pressure_msl_mean", 900, 1100) || outside("surface_pressure_mean", minPlausibleSurfacePressure, 1100) {
		add(FlagPressureOutOfRange)
	}

	if v, ok := obs.Value("precipitation_sum"); ok && v < 0 {
		add(FlagPrecipNegative)
	}

	if outside("daylight_duration", 0, 86400) || outside("sunshine_duration", 0, 86400) {
		add(FlagDurationInvalid)
	}
	daylight, okD := obs.Value("daylight_duration")
	sunshine, okS := obs.Value("sunshine_duration")
	if okD && okS && sunshine > daylight {
		add(FlagSunshineExceedsDay)
	}

	if code, ok := obs.Value("weather_code"); ok {
		if _, known := weathercode.Lookup(int(math.Round(code))); !known {
			add(FlagUnknownWeatherCode)
		}
	}

	return flags
}
