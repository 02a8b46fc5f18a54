package vectordb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// entryNamespace seeds deterministic entry ids.
var entryNamespace = uuid.MustParse("6f1c2a8e-4b53-4d0e-9a57-3f2d7c1e9b40")

func entryID(collection string, ordinal int) string {
	return uuid.NewSHA1(entryNamespace, fmt.Appendf(nil, "%s/%d", collection, ordinal)).String()
}

// Entry is one indexed document with its embedding.
type Entry struct {
	ID     string
	Text   string
	Source string
	Vector []float32
}

// Match is a query hit.
type Match struct {
	Text   string
	Source string
	Score  float64
}

// Collection is an immutable, built index. Safe for concurrent queries.
type Collection struct {
	name     string
	dir      string
	dbMu     sync.Mutex
	db       *sql.DB
	embedder Embedder
	entries  []Entry
	inFlight atomic.Int64
}

// Name returns the unsanitized collection name.
func (c *Collection) Name() string { return c.name }

// Dir returns the on-disk directory of the collection.
func (c *Collection) Dir() string { return c.dir }

// Len returns the number of entries.
func (c *Collection) Len() int { return len(c.entries) }

// Query returns up to k entries most similar to text, by descending cosine
// similarity. An empty collection yields no matches and no error.
func (c *Collection) Query(ctx context.Context, text string, k int) ([]Match, error) {
	c.inFlight.Add(1)
	defer c.inFlight.Add(-1)

	if len(c.entries) == 0 || k <= 0 {
		return nil, nil
	}
	vecs, err := c.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("vectordb: embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("vectordb: embed query: got %d vectors", len(vecs))
	}
	q := vecs[0]

	matches := make([]Match, 0, len(c.entries))
	for _, e := range c.entries {
		score, err := cosine(q, e.Vector)
		if err != nil {
			slog.Debug("vectordb: skip entry", slog.String("id", e.ID), slog.Any("error", err))
			continue
		}
		matches = append(matches, Match{Text: e.Text, Source: e.Source, Score: score})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Close releases the SQLite handle. The data stays on disk.
func (c *Collection) Close() error {
	return c.close()
}

func (c *Collection) close() error {
	c.dbMu.Lock()
	defer c.dbMu.Unlock()
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}
