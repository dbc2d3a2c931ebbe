// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Videx Contributors

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/videx-dev/videx/internal/store"
	videxerr "github.com/videx-dev/videx/pkg/errors"
)

// Compile-time interface check.
var _ store.ExemplarStore = (*ExemplarStore)(nil)

// overFetchFactor compensates for a label filter discarding nearest
// neighbors: 3k candidates are pulled from the index (capped at its size)
// before filtering down to k.
const overFetchFactor = 3

// ExemplarStore implements store.ExemplarStore backed by SQLite. It shares
// one database with its VectorIndex so a vector and its metadata are always
// committed (and removed) in a single transaction.
//
// Writers are serialized by a mutex; readers run concurrently and never see
// a partially-written exemplar.
type ExemplarStore struct {
	mu    sync.RWMutex
	db    *sql.DB
	index *VectorIndex
}

// NewExemplarStore opens (or creates) a SQLite database at dbPath and
// initialises the vector index, metadata table, and id counter. An absent
// or empty database starts an empty store.
func NewExemplarStore(dbPath string, dimensions int) (*ExemplarStore, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}

	index, err := newVectorIndex(db, dimensions)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := migrateExemplars(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating exemplar tables: %w", err)
	}

	return &ExemplarStore{db: db, index: index}, nil
}

func migrateExemplars(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS exemplars (
	id           INTEGER PRIMARY KEY,
	document_id  TEXT NOT NULL,
	text         TEXT NOT NULL,
	label        TEXT NOT NULL,
	span_start   INTEGER NOT NULL,
	span_end     INTEGER NOT NULL,
	context      TEXT NOT NULL DEFAULT '',
	rationale    TEXT NOT NULL DEFAULT '',
	annotator_id TEXT NOT NULL DEFAULT 'default'
);
CREATE INDEX IF NOT EXISTS idx_exemplars_label ON exemplars(label);
CREATE TABLE IF NOT EXISTS exemplar_counter (
	id      INTEGER PRIMARY KEY CHECK (id = 1),
	next_id INTEGER NOT NULL
);
INSERT OR IGNORE INTO exemplar_counter(id, next_id) VALUES (1, 0);
`
	if _, err := db.Exec(ddl); err != nil {
		return err
	}
	return nil
}

// Index exposes the underlying vector index.
func (s *ExemplarStore) Index() *VectorIndex { return s.index }

// Add assigns the next unused id, writes vector and metadata in one
// transaction, and returns the id. The id counter is only ever incremented,
// so ids are never reused even after deletion.
func (s *ExemplarStore) Add(ctx context.Context, embedding []float32, ex store.Exemplar) (int64, error) {
	if err := s.index.checkDimensions(embedding); err != nil {
		return 0, err
	}
	if ex.SpanEnd <= ex.SpanStart {
		return 0, videxerr.Errorf(videxerr.CodeStoreInvalidInput,
			"span_end %d must be greater than span_start %d", ex.SpanEnd, ex.SpanStart)
	}
	if ex.AnnotatorID == "" {
		ex.AnnotatorID = store.DefaultAnnotatorID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, videxerr.Wrapf(err, videxerr.CodeStorePersistFailure, "beginning exemplar add")
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	if err := tx.QueryRowContext(ctx, `SELECT next_id FROM exemplar_counter WHERE id = 1`).Scan(&id); err != nil {
		return 0, videxerr.Wrapf(err, videxerr.CodeStorePersistFailure, "reading id counter")
	}
	if _, err := tx.ExecContext(ctx, `UPDATE exemplar_counter SET next_id = next_id + 1 WHERE id = 1`); err != nil {
		return 0, videxerr.Wrapf(err, videxerr.CodeStorePersistFailure, "advancing id counter")
	}

	if err := s.index.addTx(ctx, tx, id, embedding); err != nil {
		return 0, videxerr.Wrap(err, videxerr.CodeStorePersistFailure, "writing vector", videxerr.FieldExemplarID(id))
	}

	const q = `INSERT INTO exemplars(id, document_id, text, label, span_start, span_end, context, rationale, annotator_id)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, q,
		id, ex.DocumentID, ex.Text, ex.Label, ex.SpanStart, ex.SpanEnd, ex.Context, ex.Rationale, ex.AnnotatorID,
	); err != nil {
		return 0, videxerr.Wrap(err, videxerr.CodeStorePersistFailure, "writing metadata", videxerr.FieldExemplarID(id))
	}

	if err := tx.Commit(); err != nil {
		return 0, videxerr.Wrapf(err, videxerr.CodeStorePersistFailure, "committing exemplar %d", id)
	}
	return id, nil
}

// Search returns up to k nearest exemplars, most similar first. With a
// label filter the index is over-fetched before filtering, so rare labels
// are not starved by nearer non-matching neighbors; fewer than k results
// are returned when not enough exemplars carry the label.
func (s *ExemplarStore) Search(ctx context.Context, query []float32, k int, labelFilter string) ([]store.Match, error) {
	if k <= 0 {
		return []store.Match{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	fetchK := k
	if labelFilter != "" {
		size, err := s.index.Size(ctx)
		if err != nil {
			return nil, err
		}
		fetchK = min(k*overFetchFactor, size)
		if fetchK == 0 {
			return []store.Match{}, nil
		}
	}

	hits, err := s.index.Search(ctx, query, fetchK)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return []store.Match{}, nil
	}

	byID, err := s.metadataByID(ctx, hits)
	if err != nil {
		return nil, err
	}

	matches := make([]store.Match, 0, k)
	for _, hit := range hits {
		ex, ok := byID[hit.ID]
		if !ok {
			// Vector without metadata would violate the identity
			// invariant the write path maintains.
			return nil, videxerr.Errorf(videxerr.CodeStoreDatabaseFailure,
				"vector %d has no metadata row", hit.ID)
		}
		if labelFilter != "" && ex.Label != labelFilter {
			continue
		}
		matches = append(matches, store.Match{Exemplar: ex, Similarity: hit.Similarity})
		if len(matches) == k {
			break
		}
	}
	return matches, nil
}

func (s *ExemplarStore) metadataByID(ctx context.Context, hits []store.VectorHit) (map[int64]store.Exemplar, error) {
	ids := make([]int64, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}

	const q = `SELECT id, document_id, text, label, span_start, span_end, context, rationale, annotator_id
FROM exemplars WHERE id IN (%s)`
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(q, placeholders(len(ids))), int64Args(ids)...)
	if err != nil {
		return nil, videxerr.Wrapf(err, videxerr.CodeStoreDatabaseFailure, "loading exemplar metadata")
	}
	defer func() { _ = rows.Close() }()

	byID := make(map[int64]store.Exemplar, len(ids))
	for rows.Next() {
		var ex store.Exemplar
		if err := rows.Scan(&ex.ID, &ex.DocumentID, &ex.Text, &ex.Label, &ex.SpanStart, &ex.SpanEnd, &ex.Context, &ex.Rationale, &ex.AnnotatorID); err != nil {
			return nil, fmt.Errorf("scanning exemplar row: %w", err)
		}
		byID[ex.ID] = ex
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating exemplar rows: %w", err)
	}
	return byID, nil
}

// Remove deletes metadata and vector together, reporting whether anything
// was removed.
func (s *ExemplarStore) Remove(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.removeLocked(ctx, []int64{id})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RemoveByTextAndLabel removes every exemplar matching text and label
// exactly and returns the count removed. Zero matches is not an error.
func (s *ExemplarStore) RemoveByTextAndLabel(ctx context.Context, text, label string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM exemplars WHERE text = ? AND label = ?`, text, label)
	if err != nil {
		return 0, videxerr.Wrapf(err, videxerr.CodeStoreDatabaseFailure, "finding exemplars for removal")
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return 0, fmt.Errorf("scanning exemplar id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterating exemplar ids: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	return s.removeLocked(ctx, ids)
}

// removeLocked deletes vectors and metadata for ids in one transaction.
// Callers hold the write lock.
func (s *ExemplarStore) removeLocked(ctx context.Context, ids []int64) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, videxerr.Wrapf(err, videxerr.CodeStorePersistFailure, "beginning exemplar remove")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := s.index.removeTx(ctx, tx, ids); err != nil {
		return 0, videxerr.Wrapf(err, videxerr.CodeStorePersistFailure, "removing vectors")
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM exemplars WHERE id IN (`+placeholders(len(ids))+`)`, int64Args(ids)...)
	if err != nil {
		return 0, videxerr.Wrapf(err, videxerr.CodeStorePersistFailure, "removing metadata")
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, videxerr.Wrapf(err, videxerr.CodeStorePersistFailure, "committing exemplar remove")
	}
	return int(removed), nil
}

// Count returns the number of stored exemplars.
func (s *ExemplarStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM exemplars`).Scan(&n); err != nil {
		return 0, videxerr.Wrapf(err, videxerr.CodeStoreDatabaseFailure, "counting exemplars")
	}
	return n, nil
}

// Labels returns the distinct labels present in the store, sorted.
func (s *ExemplarStore) Labels(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT label FROM exemplars ORDER BY label`)
	if err != nil {
		return nil, videxerr.Wrapf(err, videxerr.CodeStoreDatabaseFailure, "listing labels")
	}
	defer func() { _ = rows.Close() }()

	labels := []string{}
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, fmt.Errorf("scanning label: %w", err)
		}
		labels = append(labels, label)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating labels: %w", err)
	}
	return labels, nil
}

// Close closes the underlying database connection.
func (s *ExemplarStore) Close() error {
	return s.db.Close()
}
