package engine

// --- Core data model ---

// VideoRef is a user-supplied URL with its extracted video id.
// VideoID is the transcript cache key.
type VideoRef struct {
	URL     string `json:"url"`
	VideoID string `json:"video_id"`
}

// Chunk is a contiguous run of transcript segments from one video.
type Chunk struct {
	Text      string `json:"text"`
	SourceURL string `json:"source_url"`
}

// ScoredChunk is a retrieved chunk with its similarity score.
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// RetrievalResult is ordered by descending score, len <= k.
type RetrievalResult []ScoredChunk

// Role of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry of the session conversation log.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// --- Answer (tagged result) ---

// AnswerKind tags the terminal state of a query.
type AnswerKind string

const (
	Answered AnswerKind = "answered"
	Refused  AnswerKind = "refused"
)

// RefusalReason explains a Refused answer.
type RefusalReason string

const (
	ReasonNone            RefusalReason = ""
	ReasonNoEvidence      RefusalReason = "no_evidence"
	ReasonOffTopic        RefusalReason = "off_topic"
	ReasonRetrievalFailed RefusalReason = "retrieval_failed"
	ReasonModelFailed     RefusalReason = "model_failed"
)

// Answer is the outcome of one grounded query. Text is always set.
type Answer struct {
	Kind         AnswerKind    `json:"kind"`
	Text         string        `json:"text"`
	Reason       RefusalReason `json:"reason,omitempty"`
	Steps        int           `json:"steps"`      // agent completions used
	ToolCalls    int           `json:"tool_calls"` // retrieval tool invocations
	LimitReached bool          `json:"limit_reached,omitempty"`
}

// --- Ingestion report ---

// VideoStatus records what happened to one URL of an ingestion batch.
type VideoStatus struct {
	URL      string `json:"url"`
	VideoID  string `json:"video_id,omitempty"`
	Segments int    `json:"segments"`
	Chunks   int    `json:"chunks"`
	Cached   bool   `json:"cached,omitempty"`
	Error    string `json:"error,omitempty"`
}

// IngestReport summarises an ingestion batch.
type IngestReport struct {
	Collection  string        `json:"collection"`
	Videos      []VideoStatus `json:"videos"`
	TotalChunks int           `json:"total_chunks"`
}

// Succeeded returns the statuses of URLs that contributed chunks.
func (r IngestReport) Succeeded() []VideoStatus {
	var out []VideoStatus
	for _, v := range r.Videos {
		if v.Chunks > 0 {
			out = append(out, v)
		}
	}
	return out
}
