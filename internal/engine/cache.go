package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// TranscriptStore is the durable key/value backend behind TranscriptCache.
// Put must persist before returning.
type TranscriptStore interface {
	Get(ctx context.Context, videoID string) ([]string, bool, error)
	Put(ctx context.Context, videoID string, segments []string) error
	// Clear removes every entry; reports whether anything was removed.
	Clear(ctx context.Context) (bool, error)
}

// TranscriptCache provides 2-tier caching of transcript segments:
// L1 in-memory mirror + L2 durable store. L2 survives restarts.
// Single-writer: callers serialize access through the Fetcher.
type TranscriptCache struct {
	l1    sync.Map // videoID → []string
	store TranscriptStore
}

// NewTranscriptCache wraps a durable store. store must not be nil.
func NewTranscriptCache(store TranscriptStore) *TranscriptCache {
	return &TranscriptCache{store: store}
}

// Get tries L1, then L2. On L2 hit, populates L1.
func (c *TranscriptCache) Get(ctx context.Context, videoID string) ([]string, bool) {
	if val, ok := c.l1.Load(videoID); ok {
		slog.Debug("cache: L1 hit", slog.String("video_id", videoID))
		metrics.CacheHits.Add(1)
		return slices.Clone(val.([]string)), true
	}

	segs, ok, err := c.store.Get(ctx, videoID)
	if err != nil {
		slog.Warn("cache: L2 get failed", slog.String("video_id", videoID), slog.Any("error", err))
	}
	if err == nil && ok {
		slog.Debug("cache: L2 hit", slog.String("video_id", videoID))
		metrics.CacheHits.Add(1)
		c.l1.Store(videoID, slices.Clone(segs))
		return segs, true
	}

	metrics.CacheMisses.Add(1)
	return nil, false
}

// Put writes through to L2 first, then L1.
func (c *TranscriptCache) Put(ctx context.Context, videoID string, segments []string) error {
	segs := slices.Clone(segments)
	if segs == nil {
		segs = []string{}
	}
	if err := c.store.Put(ctx, videoID, segs); err != nil {
		return fmt.Errorf("cache put %s: %w", videoID, err)
	}
	c.l1.Store(videoID, segs)
	return nil
}

// Clear drops both tiers. Reports true iff something was cleared.
func (c *TranscriptCache) Clear(ctx context.Context) (bool, error) {
	hadL1 := false
	c.l1.Range(func(key, _ any) bool {
		hadL1 = true
		c.l1.Delete(key)
		return true
	})
	cleared, err := c.store.Clear(ctx)
	if err != nil {
		return hadL1, fmt.Errorf("cache clear: %w", err)
	}
	return cleared || hadL1, nil
}
