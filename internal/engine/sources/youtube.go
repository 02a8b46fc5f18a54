// Package sources holds the external transcript source: YouTube captions,
// fetched without an API key.
package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/CorvoHisui/qa-youtube-chatbot/internal/engine"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the YouTube origin used by NewYouTube.
const DefaultBaseURL = "https://www.youtube.com"

// YouTube fetches caption transcripts for videos.
//
// Strategies, in order:
//  1. watch page ytInitialPlayerResponse → caption track → timedtext XML
//  2. /next engagement panel → /get_transcript (works from datacenter IPs)
//  3. ANDROID Innertube /player → caption track → timedtext XML
type YouTube struct {
	http    *http.Client
	langs   []string
	baseURL string
	limiter *rate.Limiter
	retry   engine.RetryConfig
}

// NewYouTube builds a source. rps <= 0 disables pacing.
func NewYouTube(client *http.Client, langs []string, rps float64) *YouTube {
	if client == nil {
		client = http.DefaultClient
	}
	if len(langs) == 0 {
		langs = []string{"en"}
	}
	lim := rate.NewLimiter(rate.Inf, 0)
	if rps > 0 {
		lim = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return &YouTube{
		http:    client,
		langs:   langs,
		baseURL: DefaultBaseURL,
		limiter: lim,
		retry:   engine.ScrapeRetryConfig,
	}
}

// Transcript returns the caption lines of videoID in playback order.
func (y *YouTube) Transcript(ctx context.Context, videoID string) ([]string, error) {
	engine.IncrTranscriptRequests()

	strategies := []struct {
		name string
		fn   func(context.Context, string) ([]string, error)
	}{
		{"page_scrape", y.viaPageScrape},
		{"engagement_panel", y.viaEngagementPanel},
		{"android_player", y.viaPlayer},
	}

	var errs []error
	for _, s := range strategies {
		segs, err := s.fn(ctx, videoID)
		if err == nil && len(segs) > 0 {
			slog.Debug("youtube: transcript fetched",
				slog.String("id", videoID), slog.String("via", s.name), slog.Int("segments", len(segs)))
			return segs, nil
		}
		if err == nil {
			err = errors.New("empty transcript")
		}
		if ctx.Err() != nil {
			engine.IncrTranscriptErrors()
			return nil, ctx.Err()
		}
		slog.Warn("youtube: transcript strategy failed",
			slog.String("id", videoID), slog.String("via", s.name), slog.Any("error", err))
		errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
	}
	engine.IncrTranscriptErrors()
	return nil, errors.Join(errs...)
}

// do paces and retries one request built by build.
func (y *YouTube) do(ctx context.Context, build func() (*http.Request, error)) (*http.Response, error) {
	if err := y.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return engine.RetryHTTP(ctx, y.retry, func() (*http.Response, error) {
		req, err := build()
		if err != nil {
			return nil, err
		}
		return y.http.Do(req)
	})
}

func (y *YouTube) url(path string) string {
	return strings.TrimRight(y.baseURL, "/") + path
}
