// Package vectordb is a small persisted vector index: one SQLite file per
// collection under a root directory, brute-force cosine search in memory.
package vectordb

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"
)

// ErrBusy is returned by ClearAll while a query is running.
var ErrBusy = errors.New("vectordb: collection in use")

// Embedder turns texts into vectors of a fixed dimension, one per input.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Document is one unit of text to index.
type Document struct {
	Text   string
	Source string
}

// Store owns the index root directory and the open collections beneath it.
type Store struct {
	root     string
	embedder Embedder
	batch    int

	mu   sync.Mutex
	open map[string]*Collection // keyed by sanitized name
}

// Open prepares root for use. batchSize bounds texts per Embed call.
func Open(root string, embedder Embedder, batchSize int) (*Store, error) {
	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, fmt.Errorf("vectordb: mkdir %s: %w", root, err)
	}
	if batchSize <= 0 {
		batchSize = 64
	}
	return &Store{root: root, embedder: embedder, batch: batchSize, open: make(map[string]*Collection)}, nil
}

// Root returns the index root directory.
func (s *Store) Root() string { return s.root }

var unsafeNameRe = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// SanitizeName maps a collection name to a filesystem-safe directory name.
// Characters outside [A-Za-z0-9_] become '_'. If anything was replaced, an
// FNV-1a suffix of the original name keeps e.g. "a-b" and "a.b" apart.
func SanitizeName(name string) string {
	safe := unsafeNameRe.ReplaceAllString(name, "_")
	if safe == name && name != "" {
		return safe
	}
	h := fnv.New32a()
	h.Write([]byte(name))
	return fmt.Sprintf("%s_%08x", safe, h.Sum32())
}

// Build replaces the collection called name with docs. Any previous data
// under that name, on disk or open, is destroyed first.
func (s *Store) Build(ctx context.Context, name string, docs []Document) (*Collection, error) {
	safe := SanitizeName(name)
	dir := filepath.Join(s.root, safe)

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.open[safe]; ok {
		old.close()
		delete(s.open, safe)
	}
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("vectordb: remove %s: %w", dir, err)
	}

	vecs, err := s.embedAll(ctx, docs)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, len(docs))
	for i, d := range docs {
		entries[i] = Entry{
			ID:     entryID(safe, i),
			Text:   d.Text,
			Source: d.Source,
			Vector: vecs[i],
		}
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("vectordb: mkdir %s: %w", dir, err)
	}
	db, err := openIndex(filepath.Join(dir, indexFile))
	if err != nil {
		return nil, err
	}
	if err := writeEntries(ctx, db, entries); err != nil {
		db.Close()
		return nil, err
	}

	c := &Collection{name: name, dir: dir, db: db, embedder: s.embedder, entries: entries}
	s.open[safe] = c
	slog.Info("vectordb: collection built",
		slog.String("name", name), slog.String("dir", dir), slog.Int("entries", len(entries)))
	return c, nil
}

// Load reopens a previously built collection from disk.
func (s *Store) Load(ctx context.Context, name string) (*Collection, error) {
	safe := SanitizeName(name)
	dir := filepath.Join(s.root, safe)

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.open[safe]; ok {
		return c, nil
	}
	path := filepath.Join(dir, indexFile)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("vectordb: collection %q: %w", name, err)
	}
	db, err := openIndex(path)
	if err != nil {
		return nil, err
	}
	entries, err := readEntries(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	c := &Collection{name: name, dir: dir, db: db, embedder: s.embedder, entries: entries}
	s.open[safe] = c
	return c, nil
}

// Drop closes and deletes one collection. Missing collections are not an error.
func (s *Store) Drop(name string) error {
	safe := SanitizeName(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.open[safe]; ok {
		if c.inFlight.Load() > 0 {
			return ErrBusy
		}
		c.close()
		delete(s.open, safe)
	}
	return os.RemoveAll(filepath.Join(s.root, safe))
}

// ClearAll closes every collection and removes every subdirectory of root.
// It refuses with ErrBusy while any query is in flight. Removal is
// best-effort: all directories are attempted and errors joined.
func (s *Store) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.open {
		if c.inFlight.Load() > 0 {
			return ErrBusy
		}
	}
	for safe, c := range s.open {
		c.close()
		delete(s.open, safe)
	}

	ents, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("vectordb: read %s: %w", s.root, err)
	}
	var errs []error
	for _, e := range ents {
		if !e.IsDir() {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.root, e.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	slog.Info("vectordb: cleared", slog.String("root", s.root), slog.Int("dirs", len(ents)))
	return errors.Join(errs...)
}

// embedAll embeds docs in batches, preserving order.
func (s *Store) embedAll(ctx context.Context, docs []Document) ([][]float32, error) {
	out := make([][]float32, 0, len(docs))
	for start := 0; start < len(docs); start += s.batch {
		end := min(start+s.batch, len(docs))
		texts := make([]string, 0, end-start)
		for _, d := range docs[start:end] {
			texts = append(texts, d.Text)
		}
		vecs, err := s.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("vectordb: embed batch %d-%d: %w", start, end, err)
		}
		if len(vecs) != len(texts) {
			return nil, fmt.Errorf("vectordb: embed batch %d-%d: got %d vectors for %d texts", start, end, len(vecs), len(texts))
		}
		out = append(out, vecs...)
	}
	return out, nil
}
