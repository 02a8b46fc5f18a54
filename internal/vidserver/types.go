package vidserver

import (
	"github.com/CorvoHisui/qa-youtube-chatbot/internal/engine"
	"github.com/CorvoHisui/qa-youtube-chatbot/internal/engine/sources"
)

// IngestInput is the input for video_ingest.
type IngestInput struct {
	URLs []string `json:"urls,omitempty" jsonschema:"YouTube video URLs to index"`
	Text string   `json:"text,omitempty" jsonschema:"Alternative: URLs as free text, one per line"`
}

// VideoCard is the display metadata of an indexed video.
type VideoCard struct {
	URL      string                `json:"url"`
	Metadata sources.VideoMetadata `json:"metadata"`
	Markdown string                `json:"markdown,omitempty"`
}

// IngestOutput reports what was indexed.
type IngestOutput struct {
	Collection  string               `json:"collection"`
	Videos      []engine.VideoStatus `json:"videos"`
	TotalChunks int                  `json:"total_chunks"`
	Cards       []VideoCard          `json:"cards,omitempty"`
}

// AskInput is the input for video_ask.
type AskInput struct {
	Question string `json:"question" jsonschema:"Question about the content of the ingested videos"`
}

// HistoryInput is the input for video_history.
type HistoryInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Return only the last N turns (default: all)"`
}

// HistoryOutput is the conversation log of the active session.
type HistoryOutput struct {
	Collection string        `json:"collection"`
	Turns      []engine.Turn `json:"turns"`
}

// ClearOutput is the result of a single-resource clear.
type ClearOutput struct {
	Cleared bool   `json:"cleared"`
	Message string `json:"message"`
}

type emptyInput struct{}
