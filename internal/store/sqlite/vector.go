// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Videx Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/videx-dev/videx/internal/store"
	videxerr "github.com/videx-dev/videx/pkg/errors"
)

func init() {
	sqlite_vec.Auto()
}

// Compile-time interface check.
var _ store.VectorIndex = (*VectorIndex)(nil)

// VectorIndex implements store.VectorIndex backed by a sqlite-vec vec0
// virtual table. Vectors are unit-normalized, so the cosine distance d
// reported by vec0 maps to inner-product similarity as 1-d.
type VectorIndex struct {
	db         *sql.DB
	dimensions int
	ownsDB     bool
}

// NewVectorIndex opens (or creates) a SQLite database at dbPath and
// initialises the vec0 virtual table.
func NewVectorIndex(dbPath string, dimensions int) (*VectorIndex, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}

	idx, err := newVectorIndex(db, dimensions)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	idx.ownsDB = true
	return idx, nil
}

// newVectorIndex initialises the vec0 table on an already-open database.
// Used by ExemplarStore, which shares its database with the index so both
// can be written in one transaction.
func newVectorIndex(db *sql.DB, dimensions int) (*VectorIndex, error) {
	if dimensions <= 0 {
		return nil, videxerr.Errorf(videxerr.CodeStoreInvalidInput, "vector index: dimensions must be positive, got %d", dimensions)
	}

	ddl := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS exemplar_vectors USING vec0(id integer PRIMARY KEY, embedding float[%d] distance_metric=cosine)`,
		dimensions,
	)
	if _, err := db.Exec(ddl); err != nil {
		return nil, fmt.Errorf("creating exemplar_vectors virtual table: %w", err)
	}

	return &VectorIndex{db: db, dimensions: dimensions}, nil
}

func openDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	return db, nil
}

// Dimensions returns the configured vector dimension.
func (v *VectorIndex) Dimensions() int { return v.dimensions }

func (v *VectorIndex) checkDimensions(embedding []float32) error {
	if len(embedding) != v.dimensions {
		return videxerr.Errorf(videxerr.CodeIndexDimensionMismatch,
			"expected %d dimensions, got %d", v.dimensions, len(embedding))
	}
	return nil
}

// Add inserts a vector under id.
func (v *VectorIndex) Add(ctx context.Context, id int64, embedding []float32) error {
	if err := v.checkDimensions(embedding); err != nil {
		return err
	}

	blob, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return fmt.Errorf("serializing embedding: %w", err)
	}

	if _, err := v.db.ExecContext(ctx, `INSERT INTO exemplar_vectors(id, embedding) VALUES (?, ?)`, id, blob); err != nil {
		return videxerr.Wrapf(err, videxerr.CodeIndexDatabaseFailure, "inserting vector %d", id)
	}
	return nil
}

// addTx is Add running inside a caller-owned transaction.
func (v *VectorIndex) addTx(ctx context.Context, tx *sql.Tx, id int64, embedding []float32) error {
	if err := v.checkDimensions(embedding); err != nil {
		return err
	}

	blob, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return fmt.Errorf("serializing embedding: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO exemplar_vectors(id, embedding) VALUES (?, ?)`, id, blob); err != nil {
		return fmt.Errorf("inserting vector %d: %w", id, err)
	}
	return nil
}

// Search returns the k nearest vectors by inner-product similarity, most
// similar first; equal similarities order by ascending id. Searching an
// empty index (or with k <= 0) returns an empty slice.
func (v *VectorIndex) Search(ctx context.Context, query []float32, k int) ([]store.VectorHit, error) {
	if err := v.checkDimensions(query); err != nil {
		return nil, err
	}
	if k <= 0 {
		return []store.VectorHit{}, nil
	}

	blob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, fmt.Errorf("serializing query vector: %w", err)
	}

	const q = `SELECT id, distance FROM exemplar_vectors WHERE embedding MATCH ? AND k = ?`

	rows, err := v.db.QueryContext(ctx, q, blob, k)
	if err != nil {
		return nil, videxerr.Wrapf(err, videxerr.CodeIndexDatabaseFailure, "searching vectors")
	}
	defer func() { _ = rows.Close() }()

	hits := []store.VectorHit{}
	for rows.Next() {
		var id int64
		var distance float64
		if err := rows.Scan(&id, &distance); err != nil {
			return nil, fmt.Errorf("scanning vector hit: %w", err)
		}
		hits = append(hits, store.VectorHit{ID: id, Similarity: 1 - distance})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vector hits: %w", err)
	}

	sortHits(hits)
	return hits, nil
}

// sortHits orders by descending similarity with ascending-id tie-break.
// vec0 already returns ascending distance; this pins the tie-break, which
// vec0 leaves unspecified.
func sortHits(hits []store.VectorHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ID < hits[j].ID
	})
}

// Remove deletes the given ids, returning how many were actually present.
func (v *VectorIndex) Remove(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	res, err := v.db.ExecContext(ctx, `DELETE FROM exemplar_vectors WHERE id IN (`+placeholders(len(ids))+`)`, int64Args(ids)...)
	if err != nil {
		return 0, videxerr.Wrapf(err, videxerr.CodeIndexDatabaseFailure, "deleting vectors")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return int(n), nil
}

// removeTx is Remove running inside a caller-owned transaction.
func (v *VectorIndex) removeTx(ctx context.Context, tx *sql.Tx, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM exemplar_vectors WHERE id IN (`+placeholders(len(ids))+`)`, int64Args(ids)...)
	if err != nil {
		return 0, fmt.Errorf("deleting vectors: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return int(n), nil
}

// Size returns the number of vectors in the index.
func (v *VectorIndex) Size(ctx context.Context) (int, error) {
	var n int
	if err := v.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM exemplar_vectors`).Scan(&n); err != nil {
		return 0, videxerr.Wrapf(err, videxerr.CodeIndexDatabaseFailure, "counting vectors")
	}
	return n, nil
}

// Close closes the underlying database when this index owns it.
func (v *VectorIndex) Close() error {
	if !v.ownsDB {
		return nil
	}
	return v.db.Close()
}

func placeholders(n int) string {
	p := strings.Repeat("?,", n)
	return p[:len(p)-1]
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// deserializeFloat32 decodes the little-endian float32 blob layout used by
// sqlite-vec.
func deserializeFloat32(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec, nil
}
