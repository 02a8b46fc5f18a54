package vectordb

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	_ "modernc.org/sqlite"
)

const indexFile = "index.db"

// openIndex opens (or creates) a collection database.
func openIndex(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("vectordb: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS entries (
		id      TEXT PRIMARY KEY,
		ordinal INTEGER NOT NULL,
		text    TEXT NOT NULL,
		source  TEXT NOT NULL,
		vector  BLOB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("vectordb: init schema: %w", err)
	}
	return db, nil
}

func writeEntries(ctx context.Context, db *sql.DB, entries []Entry) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("vectordb: begin: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO entries (id, ordinal, text, source, vector) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("vectordb: prepare: %w", err)
	}
	defer stmt.Close()
	for i, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.ID, i, e.Text, e.Source, encodeVector(e.Vector)); err != nil {
			tx.Rollback()
			return fmt.Errorf("vectordb: insert %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("vectordb: commit: %w", err)
	}
	return nil
}

func readEntries(ctx context.Context, db *sql.DB) ([]Entry, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, text, source, vector FROM entries ORDER BY ordinal`)
	if err != nil {
		return nil, fmt.Errorf("vectordb: read: %w", err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		var blob []byte
		if err := rows.Scan(&e.ID, &e.Text, &e.Source, &blob); err != nil {
			return nil, fmt.Errorf("vectordb: scan: %w", err)
		}
		if e.Vector, err = decodeVector(blob); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// encodeVector stores float32s little-endian.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vectordb: corrupt vector of %d bytes", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}

var errDimMismatch = errors.New("vector dimensions differ")

// cosine returns the cosine similarity of a and b; zero vectors score 0.
func cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, errDimMismatch
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}
