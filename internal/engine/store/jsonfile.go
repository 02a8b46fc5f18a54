// Package store provides durable backends for the transcript cache:
// a JSON file (default), Redis, and PostgreSQL.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// JSONFile keeps the whole cache as one JSON object (videoID → segments)
// at a fixed path. Every Put rewrites the file.
type JSONFile struct {
	path string
	mu   sync.Mutex
	data map[string][]string
}

// OpenJSONFile loads path if it exists; a missing file is an empty cache.
func OpenJSONFile(path string) (*JSONFile, error) {
	f := &JSONFile{path: path, data: make(map[string][]string)}
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return f, nil
	case err != nil:
		return nil, fmt.Errorf("read transcript cache %s: %w", path, err)
	}
	if len(raw) == 0 {
		return f, nil
	}
	if err := json.Unmarshal(raw, &f.data); err != nil {
		return nil, fmt.Errorf("decode transcript cache %s: %w", path, err)
	}
	if f.data == nil {
		f.data = make(map[string][]string)
	}
	return f, nil
}

// Path returns the backing file path.
func (f *JSONFile) Path() string { return f.path }

func (f *JSONFile) Get(_ context.Context, videoID string) ([]string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	segs, ok := f.data[videoID]
	return slices.Clone(segs), ok, nil
}

func (f *JSONFile) Put(_ context.Context, videoID string, segments []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, had := f.data[videoID]
	f.data[videoID] = slices.Clone(segments)
	if err := f.flush(); err != nil {
		if had {
			f.data[videoID] = prev
		} else {
			delete(f.data, videoID)
		}
		return err
	}
	return nil
}

func (f *JSONFile) Clear(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	had := len(f.data) > 0
	f.data = make(map[string][]string)
	err := os.Remove(f.path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return had, nil
	default:
		return had, fmt.Errorf("remove transcript cache %s: %w", f.path, err)
	}
}

// flush writes the map atomically: temp file in the same dir, then rename.
func (f *JSONFile) flush() error {
	data, err := json.MarshalIndent(f.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode transcript cache: %w", err)
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp cache file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace transcript cache %s: %w", f.path, err)
	}
	return nil
}
