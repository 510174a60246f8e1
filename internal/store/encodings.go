package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gowtham258/Weather-Forecasting-Model/internal/features"
)

// SaveEncoding stores a description encoding. Versions are content hashes, so
// saving the same encoding twice is a no-op.
func (s *Store) SaveEncoding(enc *features.Encoding) error {
	labels, err := json.Marshal(enc.Labels)
	if err != nil {
		return fmt.Errorf("encode labels: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO description_encodings (version, code_table, labels, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(version) DO NOTHING
	`, enc.Version, enc.CodeTable, string(labels), time.Now().UTC())
	return err
}

// GetEncoding returns the encoding with the given version, or nil.
func (s *Store) GetEncoding(version string) (*features.Encoding, error) {
	return s.scanEncoding(s.db.QueryRow(`
		SELECT version, code_table, labels FROM description_encodings WHERE version = ?
	`, version))
}

// LatestEncoding returns the most recently stored encoding, or nil.
func (s *Store) LatestEncoding() (*features.Encoding, error) {
	return s.scanEncoding(s.db.QueryRow(`
		SELECT version, code_table, labels FROM description_encodings
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`))
}

func (s *Store) scanEncoding(row *sql.Row) (*features.Encoding, error) {
	var (
		enc    features.Encoding
		labels string
	)
	err := row.Scan(&enc.Version, &enc.CodeTable, &labels)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(labels), &enc.Labels); err != nil {
		return nil, fmt.Errorf("decode labels of %s: %w", enc.Version, err)
	}
	return &enc, nil
}
