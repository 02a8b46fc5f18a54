package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// TranscriptSource fetches the ordered caption segments of one video.
type TranscriptSource interface {
	Transcript(ctx context.Context, videoID string) ([]string, error)
}

// FetchResult is one fetched transcript.
type FetchResult struct {
	Ref      VideoRef
	Segments []string
	Cached   bool
}

// Fetcher resolves URLs to transcripts through the cache.
type Fetcher struct {
	mu     sync.Mutex // serializes cache writes
	cache  *TranscriptCache
	source TranscriptSource
}

// NewFetcher wires a cache in front of an external source.
func NewFetcher(cache *TranscriptCache, source TranscriptSource) *Fetcher {
	return &Fetcher{cache: cache, source: source}
}

// Fetch returns the transcript for url, consulting the cache first.
// Errors wrap ErrInvalidURL or ErrTranscriptUnavailable; a failed cache
// write is logged and does not fail the fetch.
func (f *Fetcher) Fetch(ctx context.Context, url string) (FetchResult, error) {
	ref, err := ParseVideoRef(url)
	if err != nil {
		return FetchResult{}, err
	}
	res := FetchResult{Ref: ref}

	f.mu.Lock()
	defer f.mu.Unlock()

	if segs, ok := f.cache.Get(ctx, ref.VideoID); ok {
		slog.Debug("fetcher: cache hit", slog.String("video_id", ref.VideoID), slog.Int("segments", len(segs)))
		res.Segments = segs
		res.Cached = true
		return res, nil
	}

	segs, err := f.source.Transcript(ctx, ref.VideoID)
	if err != nil {
		return res, fmt.Errorf("%w: %s: %w", ErrTranscriptUnavailable, ref.VideoID, err)
	}
	if len(segs) == 0 {
		return res, fmt.Errorf("%w: %s: empty transcript", ErrTranscriptUnavailable, ref.VideoID)
	}

	if err := f.cache.Put(ctx, ref.VideoID, segs); err != nil {
		slog.Warn("fetcher: cache write failed", slog.String("video_id", ref.VideoID), slog.Any("error", err))
	}
	res.Segments = segs
	return res, nil
}
