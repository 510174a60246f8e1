package store

import (
	"database/sql"
	"fmt"
	"log"
	"time"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Initial schema",
		SQL: `
CREATE TABLE IF NOT EXISTS daily_observations (
    date TEXT NOT NULL,
    variable TEXT NOT NULL,
    value REAL,
    fetched_at DATETIME NOT NULL,
    PRIMARY KEY (date, variable)
);

CREATE INDEX IF NOT EXISTS idx_daily_observations_date ON daily_observations(date);

CREATE TABLE IF NOT EXISTS forecast_runs (
    id TEXT PRIMARY KEY,
    created_at DATETIME NOT NULL,
    seed_date TEXT NOT NULL,
    days_ahead INTEGER NOT NULL,
    schema_version TEXT NOT NULL,
    encoding_version TEXT NOT NULL,
    code_table TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_forecast_runs_created ON forecast_runs(created_at);

CREATE TABLE IF NOT EXISTS forecast_records (
    run_id TEXT NOT NULL REFERENCES forecast_runs(id) ON DELETE CASCADE,
    day INTEGER NOT NULL,
    valid_date TEXT NOT NULL,
    temperature_2m_mean REAL NOT NULL,
    precipitation_sum REAL NOT NULL,
    weather_code INTEGER NOT NULL,
    weather_description TEXT NOT NULL,
    PRIMARY KEY (run_id, day)
);
`,
	},
	{
		Version:     2,
		Description: "Add description_encodings table",
		SQL: `
CREATE TABLE IF NOT EXISTS description_encodings (
    version TEXT PRIMARY KEY,
    code_table TEXT NOT NULL,
    labels TEXT NOT NULL,
    created_at DATETIME NOT NULL
);
`,
	},
	{
		Version:     3,
		Description: "Add archive fetch audit and raw payload tables",
		SQL: `
CREATE TABLE IF NOT EXISTS ingest_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at DATETIME NOT NULL,
    finished_at DATETIME,
    location TEXT NOT NULL,
    range_from TEXT NOT NULL,
    range_to TEXT NOT NULL,
    http_status INTEGER,
    payload_size INTEGER NOT NULL DEFAULT 0,
    days_parsed INTEGER NOT NULL DEFAULT 0,
    days_stored INTEGER NOT NULL DEFAULT 0,
    parse_errors INTEGER NOT NULL DEFAULT 0,
    success BOOLEAN NOT NULL DEFAULT FALSE,
    error TEXT
);

CREATE INDEX IF NOT EXISTS idx_ingest_runs_started ON ingest_runs(started_at);

CREATE TABLE IF NOT EXISTS raw_payloads (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ingest_run_id INTEGER REFERENCES ingest_runs(id),
    fetched_at DATETIME NOT NULL,
    source TEXT NOT NULL,
    endpoint TEXT NOT NULL,
    location TEXT,
    payload_compressed BLOB NOT NULL,
    payload_hash TEXT NOT NULL UNIQUE,
    schema_version INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_raw_payloads_fetched ON raw_payloads(fetched_at);
`,
	},
}

func (s *Store) Migrate() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}

		log.Printf("migrations: applying %d - %s", m.Version, m.Description)

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx for migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Description, time.Now().UTC(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}

		log.Printf("migrations: completed %d", m.Version)
	}

	return nil
}

func (s *Store) ensureMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at DATETIME
		)
	`)
	return err
}

func (s *Store) getAppliedMigrations() (map[int]bool, error) {
	rows, err := s.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (s *Store) MigrationVersion() (int, error) {
	var version sql.NullInt64
	err := s.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}
