package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters across the engine.
var metrics struct {
	TranscriptRequests atomic.Int64
	TranscriptErrors   atomic.Int64
	CacheHits          atomic.Int64
	CacheMisses        atomic.Int64
	LLMCalls           atomic.Int64
	LLMErrors          atomic.Int64
	EmbedRequests      atomic.Int64
	EmbedErrors        atomic.Int64
	IndexBuilds        atomic.Int64
	Queries            atomic.Int64
	Refusals           atomic.Int64
	IterationCapHits   atomic.Int64
}

var metricKeys = []string{
	"transcript_requests", "transcript_errors",
	"cache_hits", "cache_misses",
	"llm_calls", "llm_errors",
	"embed_requests", "embed_errors",
	"index_builds",
	"queries", "refusals", "iteration_cap_hits",
}

// GetMetrics returns a snapshot of all counters.
func GetMetrics() map[string]int64 {
	return map[string]int64{
		"transcript_requests": metrics.TranscriptRequests.Load(),
		"transcript_errors":   metrics.TranscriptErrors.Load(),
		"cache_hits":          metrics.CacheHits.Load(),
		"cache_misses":        metrics.CacheMisses.Load(),
		"llm_calls":           metrics.LLMCalls.Load(),
		"llm_errors":          metrics.LLMErrors.Load(),
		"embed_requests":      metrics.EmbedRequests.Load(),
		"embed_errors":        metrics.EmbedErrors.Load(),
		"index_builds":        metrics.IndexBuilds.Load(),
		"queries":             metrics.Queries.Load(),
		"refusals":            metrics.Refusals.Load(),
		"iteration_cap_hits":  metrics.IterationCapHits.Load(),
	}
}

// FormatMetrics returns metrics as a simple text format for HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	for _, k := range metricKeys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// Incrementors for sources/ sub-package.
func IncrTranscriptRequests() { metrics.TranscriptRequests.Add(1) }
func IncrTranscriptErrors()   { metrics.TranscriptErrors.Add(1) }

// TrackOperation logs a warning if an operation takes longer than threshold.
func TrackOperation(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if elapsed > 5*time.Second {
		slog.Warn("slow operation", slog.String("op", name), slog.Duration("elapsed", elapsed))
	}
	return err
}
