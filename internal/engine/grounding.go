package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Retrieval and agent loop defaults.
const (
	DefaultRetrievalK    = 8
	DefaultMaxIterations = 3
)

// ToolKind names a tool the agent may call. The set is closed.
type ToolKind string

// ToolVideoTranscriptQA is the only tool: retrieval-backed QA over the indexed transcripts.
const ToolVideoTranscriptQA ToolKind = "video_transcript_qa"

// Retriever returns up to k chunks ordered by descending relevance.
// An empty result is a normal outcome, not an error.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) (RetrievalResult, error)
}

// toolOutput is what a tool hands back to the agent loop. Raw chunks never appear here.
type toolOutput struct {
	Text    string
	Refused bool
	Reason  RefusalReason
}

type toolFunc func(ctx context.Context, input string) toolOutput

// Policy answers questions strictly from retrieved transcript chunks.
// One Policy is bound to one index for the lifetime of a session.
type Policy struct {
	agent        Completer
	qa           Completer
	retriever    Retriever
	k            int
	maxIter      int
	historyTurns int
	system       string
	tools        map[ToolKind]toolFunc
}

// NewPolicy binds the agent and QA models to a retriever.
// agent and qa may be the same Completer.
func NewPolicy(cfg Config, agent, qa Completer, r Retriever) *Policy {
	p := &Policy{
		agent:        agent,
		qa:           qa,
		retriever:    r,
		k:            cfg.RetrievalK,
		maxIter:      cfg.MaxIterations,
		historyTurns: cfg.HistoryTurns,
		system:       fmt.Sprintf(agentSystemPrompt, ToolVideoTranscriptQA, RefusalNoInformation, RefusalOffTopic),
	}
	if p.k <= 0 {
		p.k = DefaultRetrievalK
	}
	if p.maxIter <= 0 {
		p.maxIter = DefaultMaxIterations
	}
	p.tools = map[ToolKind]toolFunc{
		ToolVideoTranscriptQA: p.transcriptQA,
	}
	return p
}

// transcriptQA retrieves k chunks and synthesizes an answer from them alone.
func (p *Policy) transcriptQA(ctx context.Context, input string) toolOutput {
	res, err := p.retriever.Retrieve(ctx, input, p.k)
	if err != nil {
		slog.Warn("grounding: retrieval failed", slog.String("query", input), slog.Any("error", err))
		return toolOutput{Text: RefusalNoInformation, Refused: true, Reason: ReasonRetrievalFailed}
	}
	if len(res) == 0 {
		slog.Debug("grounding: no evidence", slog.String("query", input))
		return toolOutput{Text: RefusalNoInformation, Refused: true, Reason: ReasonNoEvidence}
	}

	prompt := fmt.Sprintf(qaPrompt, stuffContext(res), input)
	text, err := callLLM(ctx, p.qa, qaSystemPrompt, prompt)
	if err != nil {
		slog.Warn("grounding: qa completion failed", slog.Any("error", err))
		return toolOutput{Text: RefusalNoInformation, Refused: true, Reason: ReasonModelFailed}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return toolOutput{Text: RefusalNoInformation, Refused: true, Reason: ReasonNoEvidence}
	}
	slog.Debug("grounding: tool answered", slog.Int("chunks", len(res)), slog.Int("chars", len(text)))
	return toolOutput{Text: text}
}

// stuffContext joins chunk texts into a single context window.
func stuffContext(res RetrievalResult) string {
	parts := make([]string, 0, len(res))
	for _, sc := range res {
		parts = append(parts, sc.Chunk.Text)
	}
	return strings.Join(parts, "\n\n")
}
