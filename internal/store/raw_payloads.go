package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
)

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	decoder, _ = zstd.NewReader(nil)
)

// RawPayload describes a stored upstream response without its body.
type RawPayload struct {
	ID          int64
	IngestRunID sql.NullInt64
	FetchedAt   time.Time
	Location    sql.NullString
	Hash        string
}

// PayloadHash returns the hex sha256 of an uncompressed payload.
func PayloadHash(payload []byte) string {
	h := sha256.Sum256(payload)
	return hex.EncodeToString(h[:])
}

// StoreRawPayload stores a zstd-compressed API response payload.
// Returns the payload ID, or 0 if the payload was a duplicate (same hash).
func (s *Store) StoreRawPayload(runID *int64, source, endpoint, location string, payload []byte) (int64, error) {
	compressed := encoder.EncodeAll(payload, nil)

	var ingestRunID sql.NullInt64
	if runID != nil {
		ingestRunID = sql.NullInt64{Int64: *runID, Valid: true}
	}
	var loc sql.NullString
	if location != "" {
		loc = sql.NullString{String: location, Valid: true}
	}

	result, err := s.db.Exec(`
		INSERT INTO raw_payloads
		(ingest_run_id, fetched_at, source, endpoint, location, payload_compressed, payload_hash, schema_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(payload_hash) DO NOTHING
	`, ingestRunID, time.Now().UTC(), source, endpoint, loc, compressed, PayloadHash(payload))
	if err != nil {
		return 0, fmt.Errorf("insert raw payload: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	return result.LastInsertId()
}

// GetRawPayload retrieves and decompresses a stored payload by ID.
func (s *Store) GetRawPayload(id int64) ([]byte, error) {
	var compressed []byte
	err := s.db.QueryRow(`SELECT payload_compressed FROM raw_payloads WHERE id = ?`, id).
		Scan(&compressed)
	if err != nil {
		return nil, err
	}
	out, err := decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress payload %d: %w", id, err)
	}
	return out, nil
}

// ListRawPayloads returns the payloads stored for one source, endpoint and
// location, oldest first.
func (s *Store) ListRawPayloads(source, endpoint, location string) ([]RawPayload, error) {
	rows, err := s.db.Query(`
		SELECT id, ingest_run_id, fetched_at, location, payload_hash
		FROM raw_payloads
		WHERE source = ? AND endpoint = ? AND location = ?
		ORDER BY fetched_at, id
	`, source, endpoint, location)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payloads []RawPayload
	for rows.Next() {
		var p RawPayload
		if err := rows.Scan(&p.ID, &p.IngestRunID, &p.FetchedAt, &p.Location, &p.Hash); err != nil {
			return nil, err
		}
		payloads = append(payloads, p)
	}
	return payloads, rows.Err()
}

// CleanupOldRawPayloads deletes raw payloads fetched before cutoff and
// returns how many were removed.
func (s *Store) CleanupOldRawPayloads(cutoff time.Time) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM raw_payloads WHERE fetched_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
