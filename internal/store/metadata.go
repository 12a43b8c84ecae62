package store

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"
)

// Metadata keys.
const (
	MetaLastSweepAt    = "last_sweep_at"
	MetaLastSweepCount = "last_sweep_expired"
)

// SetMetadata upserts a key-value pair in the metadata table.
func (s *Store) SetMetadata(ctx context.Context, key, value string) error {
	_, err := s.exec(ctx, s.db,
		`INSERT INTO metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// GetMetadata returns the value for a metadata key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := s.queryRow(ctx, s.db, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// RecordSweep stores when the last expiry sweep ran and what it changed.
func (s *Store) RecordSweep(ctx context.Context, at time.Time, expired int) error {
	if err := s.SetMetadata(ctx, MetaLastSweepAt, at.UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return s.SetMetadata(ctx, MetaLastSweepCount, strconv.Itoa(expired))
}

// GetImportedFileHash returns the SHA-256 recorded for a catalog file, or ""
// if it was never imported.
func (s *Store) GetImportedFileHash(ctx context.Context, path string) (string, error) {
	var hash string
	err := s.queryRow(ctx, s.db, `SELECT sha256 FROM imported_files WHERE path = ?`, path).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return hash, err
}

// SetImportedFileHash records the SHA-256 of an imported catalog file.
func (s *Store) SetImportedFileHash(ctx context.Context, path, hash string) error {
	_, err := s.exec(ctx, s.db,
		`INSERT INTO imported_files (path, sha256, imported_at) VALUES (?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET sha256 = excluded.sha256, imported_at = excluded.imported_at`,
		path, hash, time.Now().UTC(),
	)
	return err
}
