package engine

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/CorvoHisui/qa-youtube-chatbot/internal/engine/vectordb"
)

// Session is one ingested batch: a policy bound to its index plus the
// conversation log. Ask calls are serialized.
type Session struct {
	policy     *Policy
	collection *vectordb.Collection

	mu      sync.Mutex
	history []Turn
}

func newSession(policy *Policy, c *vectordb.Collection) *Session {
	return &Session{policy: policy, collection: c}
}

// Ask answers one question and appends the exchange to the history.
func (s *Session) Ask(ctx context.Context, question string) Answer {
	s.mu.Lock()
	defer s.mu.Unlock()

	ans := s.policy.Answer(ctx, question, slices.Clone(s.history))
	s.history = append(s.history,
		Turn{Role: RoleUser, Content: question},
		Turn{Role: RoleAssistant, Content: ans.Text},
	)
	slog.Info("session: answered",
		slog.String("kind", string(ans.Kind)),
		slog.String("reason", string(ans.Reason)),
		slog.Int("steps", ans.Steps),
		slog.Int("tool_calls", ans.ToolCalls),
		slog.Bool("limit_reached", ans.LimitReached))
	return ans
}

// History returns a copy of the conversation log.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history)
}

// Collection returns the name of the bound collection.
func (s *Session) Collection() string { return s.collection.Name() }

// Chunks returns the number of indexed chunks.
func (s *Session) Chunks() int { return s.collection.Len() }

// Close releases the index handle. Data stays on disk until cleared.
func (s *Session) Close() error {
	return s.collection.Close()
}
