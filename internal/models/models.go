package models

import (
	"encoding/json"
	"math"
	"time"
)

type Location struct {
	Name      string
	Latitude  float64
	Longitude float64
	Timezone  string
}

// DailyObservation is one calendar day of upstream daily variables.
// Values holds NaN where the upstream reported null.
type DailyObservation struct {
	Date      time.Time
	Values    map[string]float64
	FetchedAt time.Time
}

// Value returns the named value and whether it is present and non-null.
func (o DailyObservation) Value(name string) (float64, bool) {
	v, ok := o.Values[name]
	if !ok || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// ForecastRecord is one predicted day of a rollout.
type ForecastRecord struct {
	Date               time.Time
	TemperatureMean    float64
	PrecipitationSum   float64
	WeatherCode        int
	WeatherDescription string
}

type forecastRecordJSON struct {
	Date               string  `json:"date"`
	TemperatureMean    float64 `json:"temperature_2m_mean"`
	PrecipitationSum   float64 `json:"precipitation_sum"`
	WeatherCode        int     `json:"weather_code"`
	WeatherDescription string  `json:"weather_description"`
}

func (r ForecastRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(forecastRecordJSON{
		Date:               r.Date.Format(time.DateOnly),
		TemperatureMean:    r.TemperatureMean,
		PrecipitationSum:   r.PrecipitationSum,
		WeatherCode:        r.WeatherCode,
		WeatherDescription: r.WeatherDescription,
	})
}

func (r *ForecastRecord) UnmarshalJSON(b []byte) error {
	var raw forecastRecordJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	date, err := time.Parse(time.DateOnly, raw.Date)
	if err != nil {
		return err
	}
	*r = ForecastRecord{
		Date:               date,
		TemperatureMean:    raw.TemperatureMean,
		PrecipitationSum:   raw.PrecipitationSum,
		WeatherCode:        raw.WeatherCode,
		WeatherDescription: raw.WeatherDescription,
	}
	return nil
}

// ForecastRun is a stored rollout and the versions it was produced with.
type ForecastRun struct {
	ID              string           `json:"id"`
	CreatedAt       time.Time        `json:"created_at"`
	SeedDate        time.Time        `json:"seed_date"`
	DaysAhead       int              `json:"days_ahead"`
	SchemaVersion   string           `json:"schema_version"`
	EncodingVersion string           `json:"encoding_version"`
	CodeTable       string           `json:"code_table"`
	Records         []ForecastRecord `json:"records"`
}

// DateOnly normalizes t to midnight UTC of its own calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
