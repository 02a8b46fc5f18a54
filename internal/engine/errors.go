package engine

import "errors"

// Error taxonomy for ingestion and maintenance.
// Per-URL errors are absorbed by the pipeline; batch-level errors are fatal.
var (
	// ErrInvalidURL: the URL carries no extractable video id.
	ErrInvalidURL = errors.New("invalid video url")

	// ErrTranscriptUnavailable: the transcript source failed (no captions,
	// private or deleted video, rate limit, network).
	ErrTranscriptUnavailable = errors.New("transcript unavailable")

	// ErrNoChunks: every URL in the batch failed, nothing to index.
	ErrNoChunks = errors.New("no valid content to index")

	// ErrNoIndex: index construction failed or produced no handle.
	ErrNoIndex = errors.New("index unavailable")

	// ErrResourceBusy: persisted state is held by an in-flight query.
	// Retry after in-flight queries finish.
	ErrResourceBusy = errors.New("resource busy")
)
