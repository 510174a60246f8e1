package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gowtham258/Weather-Forecasting-Model/internal/models"
)

// SaveForecastRun stores a rollout and its records in one transaction. An
// empty run ID is replaced with a new UUID.
func (s *Store) SaveForecastRun(run *models.ForecastRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO forecast_runs (id, created_at, seed_date, days_ahead, schema_version, encoding_version, code_table)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.CreatedAt, formatDate(run.SeedDate), run.DaysAhead, run.SchemaVersion, run.EncodingVersion, run.CodeTable); err != nil {
		return fmt.Errorf("insert forecast run: %w", err)
	}

	for i, r := range run.Records {
		if _, err := tx.Exec(`
			INSERT INTO forecast_records (run_id, day, valid_date, temperature_2m_mean, precipitation_sum, weather_code, weather_description)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, run.ID, i+1, formatDate(r.Date), r.TemperatureMean, r.PrecipitationSum, r.WeatherCode, r.WeatherDescription); err != nil {
			return fmt.Errorf("insert forecast record %d: %w", i+1, err)
		}
	}
	return tx.Commit()
}

// LatestForecastRun returns the most recently created run, or nil.
func (s *Store) LatestForecastRun() (*models.ForecastRun, error) {
	var id string
	err := s.db.QueryRow(`SELECT id FROM forecast_runs ORDER BY created_at DESC, rowid DESC LIMIT 1`).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.GetForecastRun(id)
}

// GetForecastRun returns the run with id, or nil if it does not exist.
func (s *Store) GetForecastRun(id string) (*models.ForecastRun, error) {
	var (
		run  models.ForecastRun
		seed string
	)
	err := s.db.QueryRow(`
		SELECT id, created_at, seed_date, days_ahead, schema_version, encoding_version, code_table
		FROM forecast_runs WHERE id = ?
	`, id).Scan(&run.ID, &run.CreatedAt, &seed, &run.DaysAhead, &run.SchemaVersion, &run.EncodingVersion, &run.CodeTable)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if run.SeedDate, err = parseDate(seed); err != nil {
		return nil, fmt.Errorf("parse seed date %q: %w", seed, err)
	}

	rows, err := s.db.Query(`
		SELECT valid_date, temperature_2m_mean, precipitation_sum, weather_code, weather_description
		FROM forecast_records WHERE run_id = ?
		ORDER BY day ASC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	run.Records = []models.ForecastRecord{}
	for rows.Next() {
		var (
			r    models.ForecastRecord
			date string
		)
		if err := rows.Scan(&date, &r.TemperatureMean, &r.PrecipitationSum, &r.WeatherCode, &r.WeatherDescription); err != nil {
			return nil, err
		}
		if r.Date, err = parseDate(date); err != nil {
			return nil, fmt.Errorf("parse valid date %q: %w", date, err)
		}
		run.Records = append(run.Records, r)
	}
	return &run, rows.Err()
}
