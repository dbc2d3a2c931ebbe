// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Videx Contributors

package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/videx-dev/videx/internal/store"
	videxerr "github.com/videx-dev/videx/pkg/errors"
)

// Compile-time interface check.
var _ store.StyleStore = (*StyleStore)(nil)

// StyleStore implements store.StyleStore backed by SQLite: one table for
// label centroids, one append-only table for annotator observations with
// eviction beyond the retention window.
type StyleStore struct {
	db *sql.DB
}

// NewStyleStore opens (or creates) a SQLite database at dbPath and
// initialises the centroid and observation tables. An absent database
// starts empty.
func NewStyleStore(dbPath string) (*StyleStore, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}

	if err := migrateStyle(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating style tables: %w", err)
	}

	return &StyleStore{db: db}, nil
}

func migrateStyle(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS style_centroids (
	label             TEXT PRIMARY KEY,
	centroid          BLOB NOT NULL,
	observation_count INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS style_observations (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	annotator_id TEXT NOT NULL,
	embedding    BLOB NOT NULL,
	label        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_style_observations_annotator ON style_observations(annotator_id, seq);
`
	if _, err := db.Exec(ddl); err != nil {
		return err
	}
	return nil
}

// SaveCentroid upserts a label's running-mean centroid and count.
func (s *StyleStore) SaveCentroid(ctx context.Context, label string, c store.Centroid) error {
	blob, err := sqlite_vec.SerializeFloat32(c.Vector)
	if err != nil {
		return fmt.Errorf("serializing centroid: %w", err)
	}

	const q = `INSERT INTO style_centroids(label, centroid, observation_count) VALUES (?, ?, ?)
ON CONFLICT(label) DO UPDATE SET centroid = excluded.centroid, observation_count = excluded.observation_count`
	if _, err := s.db.ExecContext(ctx, q, label, blob, c.Count); err != nil {
		return videxerr.Wrap(err, videxerr.CodeStylePersistFailure, "saving centroid", videxerr.FieldLabel(label))
	}
	return nil
}

// LoadCentroids returns all persisted centroids keyed by label.
func (s *StyleStore) LoadCentroids(ctx context.Context) (map[string]store.Centroid, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT label, centroid, observation_count FROM style_centroids`)
	if err != nil {
		return nil, videxerr.Wrapf(err, videxerr.CodeStyleDatabaseFailure, "loading centroids")
	}
	defer func() { _ = rows.Close() }()

	centroids := map[string]store.Centroid{}
	for rows.Next() {
		var label string
		var blob []byte
		var count int
		if err := rows.Scan(&label, &blob, &count); err != nil {
			return nil, fmt.Errorf("scanning centroid row: %w", err)
		}
		vec, err := deserializeFloat32(blob)
		if err != nil {
			return nil, fmt.Errorf("decoding centroid for %s: %w", label, err)
		}
		centroids[label] = store.Centroid{Vector: vec, Count: count}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating centroid rows: %w", err)
	}
	return centroids, nil
}

// AppendObservation appends one observation to an annotator's history and
// evicts entries beyond keep, oldest first, in a single transaction.
func (s *StyleStore) AppendObservation(ctx context.Context, annotatorID string, obs store.StyleObservation, keep int) error {
	blob, err := sqlite_vec.SerializeFloat32(obs.Embedding)
	if err != nil {
		return fmt.Errorf("serializing observation: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return videxerr.Wrapf(err, videxerr.CodeStylePersistFailure, "beginning observation append")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO style_observations(annotator_id, embedding, label) VALUES (?, ?, ?)`,
		annotatorID, blob, obs.Label,
	); err != nil {
		return videxerr.Wrap(err, videxerr.CodeStylePersistFailure, "appending observation", videxerr.FieldAnnotatorID(annotatorID))
	}

	const evict = `DELETE FROM style_observations WHERE annotator_id = ? AND seq NOT IN (
SELECT seq FROM style_observations WHERE annotator_id = ? ORDER BY seq DESC LIMIT ?)`
	if _, err := tx.ExecContext(ctx, evict, annotatorID, annotatorID, keep); err != nil {
		return videxerr.Wrap(err, videxerr.CodeStylePersistFailure, "evicting old observations", videxerr.FieldAnnotatorID(annotatorID))
	}

	if err := tx.Commit(); err != nil {
		return videxerr.Wrapf(err, videxerr.CodeStylePersistFailure, "committing observation append")
	}
	return nil
}

// LoadProfiles returns every annotator's history, oldest observation first.
func (s *StyleStore) LoadProfiles(ctx context.Context) (map[string][]store.StyleObservation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT annotator_id, embedding, label FROM style_observations ORDER BY seq ASC`)
	if err != nil {
		return nil, videxerr.Wrapf(err, videxerr.CodeStyleDatabaseFailure, "loading profiles")
	}
	defer func() { _ = rows.Close() }()

	profiles := map[string][]store.StyleObservation{}
	for rows.Next() {
		var annotatorID string
		var blob []byte
		var label string
		if err := rows.Scan(&annotatorID, &blob, &label); err != nil {
			return nil, fmt.Errorf("scanning observation row: %w", err)
		}
		vec, err := deserializeFloat32(blob)
		if err != nil {
			return nil, fmt.Errorf("decoding observation for %s: %w", annotatorID, err)
		}
		profiles[annotatorID] = append(profiles[annotatorID], store.StyleObservation{Embedding: vec, Label: label})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating observation rows: %w", err)
	}
	return profiles, nil
}

// Close closes the underlying database connection.
func (s *StyleStore) Close() error {
	return s.db.Close()
}
