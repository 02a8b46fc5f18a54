// Package vidserver exposes the video QA engine as MCP tools.
package vidserver

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/CorvoHisui/qa-youtube-chatbot/internal/engine"
	"github.com/CorvoHisui/qa-youtube-chatbot/internal/engine/sources"
	"github.com/CorvoHisui/qa-youtube-chatbot/internal/toolutil"
)

// Pipeline builds sessions from URL batches.
type Pipeline interface {
	Ingest(ctx context.Context, urls []string) (*engine.Session, engine.IngestReport, error)
	Resume(ctx context.Context) (*engine.Session, error)
}

// Maintainer clears persisted state.
type Maintainer interface {
	ClearTranscriptCache(ctx context.Context) (bool, error)
	ClearIndexes() error
	ClearAll(ctx context.Context) engine.MaintenanceReport
}

// MetadataSource looks up the display card of a video.
type MetadataSource interface {
	Metadata(ctx context.Context, videoID string) (sources.VideoMetadata, error)
}

// Server holds the single active session. All tool calls that touch the
// session are serialized by mu.
type Server struct {
	pipeline Pipeline
	maint    Maintainer
	meta     MetadataSource // nil disables metadata cards

	mu      sync.Mutex
	session *engine.Session
}

// New builds a server with no active session.
func New(p Pipeline, m Maintainer, meta MetadataSource) *Server {
	return &Server{pipeline: p, maint: m, meta: meta}
}

// Resume binds the collection left on disk by a previous run, if any.
func (s *Server) Resume(ctx context.Context) error {
	sess, err := s.pipeline.Resume(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replace(sess)
	slog.Info("vidserver: resumed session", slog.String("collection", sess.Collection()), slog.Int("chunks", sess.Chunks()))
	return nil
}

// replace swaps the active session; callers hold mu. The old handle is kept
// open when the new session reuses the same collection.
func (s *Server) replace(sess *engine.Session) {
	if s.session != nil && (sess == nil || sess.Collection() != s.session.Collection()) {
		if err := s.session.Close(); err != nil {
			slog.Warn("vidserver: close session", slog.Any("error", err))
		}
	}
	s.session = sess
}

var (
	errNoURLs     = errors.New("at least one video url is required")
	errNoSession  = errors.New("no videos ingested yet: call video_ingest first")
	errNoQuestion = errors.New("question is required")
)

// Ingest replaces the active session with one built from the input URLs.
func (s *Server) Ingest(ctx context.Context, input IngestInput) (IngestOutput, error) {
	urls := toolutil.MergeUnique(input.URLs, toolutil.SplitURLs(input.Text))
	if len(urls) == 0 {
		return IngestOutput{}, errNoURLs
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// The rebuild destroys the previous collection, so drop its handle first.
	s.replace(nil)
	sess, report, err := s.pipeline.Ingest(ctx, urls)
	out := IngestOutput{Collection: report.Collection, Videos: report.Videos, TotalChunks: report.TotalChunks}
	if err != nil {
		slog.Error("vidserver: ingest failed", slog.Int("urls", len(urls)), slog.Any("error", err))
		return out, errors.New(toolutil.UserError(err, engine.ErrNoChunks, engine.ErrNoIndex))
	}
	s.session = sess
	out.Cards = s.cards(ctx, report)
	return out, nil
}

// cards fetches metadata for the videos that were indexed. Failures are skipped.
func (s *Server) cards(ctx context.Context, report engine.IngestReport) []VideoCard {
	if s.meta == nil {
		return nil
	}
	var out []VideoCard
	for _, v := range report.Succeeded() {
		md, err := s.meta.Metadata(ctx, v.VideoID)
		if err != nil {
			slog.Warn("vidserver: metadata unavailable", slog.String("video_id", v.VideoID), slog.Any("error", err))
			continue
		}
		card, err := md.Card()
		if err != nil {
			slog.Warn("vidserver: render card", slog.String("video_id", v.VideoID), slog.Any("error", err))
		}
		out = append(out, VideoCard{URL: v.URL, Metadata: md, Markdown: card})
	}
	return out
}

// Ask answers a question against the active session.
func (s *Server) Ask(ctx context.Context, input AskInput) (engine.Answer, error) {
	if strings.TrimSpace(input.Question) == "" {
		return engine.Answer{}, errNoQuestion
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return engine.Answer{}, errNoSession
	}
	return s.session.Ask(ctx, input.Question), nil
}

// History returns the last input.Limit turns (all when Limit <= 0).
func (s *Server) History(_ context.Context, input HistoryInput) (HistoryOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return HistoryOutput{}, errNoSession
	}
	turns := s.session.History()
	if input.Limit > 0 && len(turns) > input.Limit {
		turns = turns[len(turns)-input.Limit:]
	}
	return HistoryOutput{Collection: s.session.Collection(), Turns: turns}, nil
}

// ClearTranscriptCache empties the transcript cache. The session is unaffected.
func (s *Server) ClearTranscriptCache(ctx context.Context) (ClearOutput, error) {
	cleared, err := s.maint.ClearTranscriptCache(ctx)
	if err != nil {
		return ClearOutput{}, err
	}
	return ClearOutput{Cleared: cleared, Message: clearMessage("transcript cache", cleared)}, nil
}

// ClearIndexes ends the active session and deletes every index.
func (s *Server) ClearIndexes(_ context.Context) (ClearOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replace(nil)
	if err := s.maint.ClearIndexes(); err != nil {
		return ClearOutput{}, err
	}
	return ClearOutput{Cleared: true, Message: "vector indexes cleared; ingest videos again to ask questions"}, nil
}

// ClearAll ends the active session and clears every persisted resource.
func (s *Server) ClearAll(ctx context.Context) (engine.MaintenanceReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replace(nil)
	return s.maint.ClearAll(ctx), nil
}

func clearMessage(what string, cleared bool) string {
	if cleared {
		return what + " cleared"
	}
	return what + " was already empty"
}
