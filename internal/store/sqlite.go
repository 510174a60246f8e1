package store

import (
	"database/sql"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/gowtham258/Weather-Forecasting-Model/internal/models"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens the sqlite database at path and applies pending migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s := New(db)
	if err := s.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func formatDate(t time.Time) string {
	return t.Format(time.DateOnly)
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(time.DateOnly, s)
}

// nullable maps NaN to SQL NULL.
func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

// UpsertObservations stores every variable of every observation, replacing
// earlier values for the same date. Returns the number of days written.
func (s *Store) UpsertObservations(obs []models.DailyObservation) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO daily_observations (date, variable, value, fetched_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(date, variable) DO UPDATE SET
			value = excluded.value,
			fetched_at = excluded.fetched_at
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, o := range obs {
		fetched := o.FetchedAt
		if fetched.IsZero() {
			fetched = time.Now().UTC()
		}
		date := formatDate(models.DateOnly(o.Date))
		for name, v := range o.Values {
			if _, err := stmt.Exec(date, name, nullable(v), fetched); err != nil {
				return 0, fmt.Errorf("upsert %s %s: %w", date, name, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(obs), nil
}

// GetObservations returns observations with start <= date <= end, ordered by
// date. NULL values come back as NaN.
func (s *Store) GetObservations(start, end time.Time) ([]models.DailyObservation, error) {
	rows, err := s.db.Query(`
		SELECT date, variable, value, fetched_at
		FROM daily_observations
		WHERE date >= ? AND date <= ?
		ORDER BY date ASC
	`, formatDate(start), formatDate(end))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanObservations(rows)
}

// GetAllObservations returns the full stored history ordered by date.
func (s *Store) GetAllObservations() ([]models.DailyObservation, error) {
	rows, err := s.db.Query(`
		SELECT date, variable, value, fetched_at
		FROM daily_observations
		ORDER BY date ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanObservations(rows)
}

// GetObservation returns the observation for date, or nil if none is stored.
func (s *Store) GetObservation(date time.Time) (*models.DailyObservation, error) {
	obs, err := s.GetObservations(date, date)
	if err != nil {
		return nil, err
	}
	if len(obs) == 0 {
		return nil, nil
	}
	return &obs[0], nil
}

// LatestObservationDate returns the most recent stored date. ok is false
// when the table is empty.
func (s *Store) LatestObservationDate() (date time.Time, ok bool, err error) {
	var latest sql.NullString
	if err := s.db.QueryRow(`SELECT MAX(date) FROM daily_observations`).Scan(&latest); err != nil {
		return time.Time{}, false, err
	}
	if !latest.Valid {
		return time.Time{}, false, nil
	}
	date, err = parseDate(latest.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse stored date %q: %w", latest.String, err)
	}
	return date, true, nil
}

func scanObservations(rows *sql.Rows) ([]models.DailyObservation, error) {
	byDate := make(map[string]*models.DailyObservation)
	for rows.Next() {
		var (
			date, variable string
			value          sql.NullFloat64
			fetched        time.Time
		)
		if err := rows.Scan(&date, &variable, &value, &fetched); err != nil {
			return nil, err
		}
		o, ok := byDate[date]
		if !ok {
			d, err := parseDate(date)
			if err != nil {
				return nil, fmt.Errorf("parse stored date %q: %w", date, err)
			}
			o = &models.DailyObservation{Date: d, Values: make(map[string]float64)}
			byDate[date] = o
		}
		if fetched.After(o.FetchedAt) {
			o.FetchedAt = fetched
		}
		if value.Valid {
			o.Values[variable] = value.Float64
		} else {
			o.Values[variable] = math.NaN()
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]models.DailyObservation, 0, len(byDate))
	for _, o := range byDate {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}
