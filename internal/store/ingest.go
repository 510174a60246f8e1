package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/gowtham258/Weather-Forecasting-Model/internal/models"
)

// IngestRun audits one archive fetch: the date window requested for a
// location and how many days came back.
type IngestRun struct {
	ID          int64
	StartedAt   time.Time
	FinishedAt  sql.NullTime
	Location    string
	From        time.Time
	To          time.Time
	HTTPStatus  sql.NullInt64
	PayloadSize int
	DaysParsed  int
	DaysStored  int
	ParseErrors int
	Success     bool
	Error       sql.NullString
}

// StartIngestRun records the start of a fetch of [from, to] for location.
func (s *Store) StartIngestRun(location string, from, to time.Time) (*IngestRun, error) {
	run := &IngestRun{
		StartedAt: time.Now().UTC(),
		Location:  location,
		From:      models.DateOnly(from),
		To:        models.DateOnly(to),
	}
	result, err := s.db.Exec(`
		INSERT INTO ingest_runs (started_at, location, range_from, range_to)
		VALUES (?, ?, ?, ?)
	`, run.StartedAt, location, run.From.Format(time.DateOnly), run.To.Format(time.DateOnly))
	if err != nil {
		return nil, fmt.Errorf("start ingest run: %w", err)
	}
	if run.ID, err = result.LastInsertId(); err != nil {
		return nil, err
	}
	return run, nil
}

// CompleteIngestRun stamps the run finished and stores its outcome.
func (s *Store) CompleteIngestRun(run *IngestRun) error {
	if run == nil {
		return nil
	}
	run.FinishedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}

	_, err := s.db.Exec(`
		UPDATE ingest_runs SET
			finished_at = ?, http_status = ?, payload_size = ?,
			days_parsed = ?, days_stored = ?, parse_errors = ?,
			success = ?, error = ?
		WHERE id = ?
	`, run.FinishedAt, run.HTTPStatus, run.PayloadSize,
		run.DaysParsed, run.DaysStored, run.ParseErrors,
		run.Success, run.Error, run.ID)
	return err
}

// IngestDay summarizes the archive fetches started on one UTC day.
type IngestDay struct {
	Date        string
	Runs        int
	Failures    int
	DaysStored  int
	ParseErrors int
	// CoveredThrough is the latest end date of a successful fetch, or empty.
	CoveredThrough string
}

// GetIngestHealth summarizes fetches of the last days days, newest first.
func (s *Store) GetIngestHealth(days int) ([]IngestDay, error) {
	rows, err := s.db.Query(`
		SELECT
			DATE(SUBSTR(started_at, 1, 19)) AS day,
			COUNT(*),
			SUM(CASE WHEN success THEN 0 ELSE 1 END),
			SUM(days_stored),
			SUM(parse_errors),
			COALESCE(MAX(CASE WHEN success THEN range_to END), '')
		FROM ingest_runs
		WHERE SUBSTR(started_at, 1, 19) > datetime('now', '-' || ? || ' days')
		GROUP BY day
		ORDER BY day DESC
	`, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []IngestDay
	for rows.Next() {
		var d IngestDay
		if err := rows.Scan(&d.Date, &d.Runs, &d.Failures, &d.DaysStored, &d.ParseErrors, &d.CoveredThrough); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetRecentIngestErrors returns the latest failed fetches.
func (s *Store) GetRecentIngestErrors(limit int) ([]IngestRun, error) {
	rows, err := s.db.Query(`
		SELECT id, started_at, finished_at, location, range_from, range_to,
		       http_status, payload_size, days_parsed, days_stored, parse_errors, error
		FROM ingest_runs
		WHERE NOT success
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []IngestRun
	for rows.Next() {
		var (
			r        IngestRun
			from, to string
		)
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Location, &from, &to,
			&r.HTTPStatus, &r.PayloadSize, &r.DaysParsed, &r.DaysStored, &r.ParseErrors, &r.Error); err != nil {
			return nil, err
		}
		if r.From, err = time.Parse(time.DateOnly, from); err != nil {
			return nil, fmt.Errorf("ingest run %d: %w", r.ID, err)
		}
		if r.To, err = time.Parse(time.DateOnly, to); err != nil {
			return nil, fmt.Errorf("ingest run %d: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
