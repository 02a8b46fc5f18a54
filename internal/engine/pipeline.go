package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/CorvoHisui/qa-youtube-chatbot/internal/engine/vectordb"
)

// Pipeline turns a batch of video URLs into a queryable Session.
type Pipeline struct {
	cfg     Config
	fetcher *Fetcher
	index   *vectordb.Store
	agent   Completer
	qa      Completer
}

// NewPipeline wires the ingestion stages. cfg must already be validated.
func NewPipeline(cfg Config, fetcher *Fetcher, index *vectordb.Store, agent, qa Completer) *Pipeline {
	return &Pipeline{cfg: cfg, fetcher: fetcher, index: index, agent: agent, qa: qa}
}

// Ingest fetches and chunks each URL in order, builds one fresh index under
// the configured collection name, and binds a grounding policy to it.
// Per-URL failures are logged and reported; only an empty batch
// (ErrNoChunks) or a failed build (ErrNoIndex) is fatal.
func (p *Pipeline) Ingest(ctx context.Context, urls []string) (*Session, IngestReport, error) {
	report := IngestReport{Collection: p.cfg.CollectionName}
	var sess *Session

	err := TrackOperation(ctx, "ingest", func(ctx context.Context) error {
		start := time.Now()
		docs := p.collect(ctx, urls, &report)
		if len(docs) == 0 {
			slog.Warn("ingest: nothing to index", slog.Int("urls", len(urls)))
			return ErrNoChunks
		}

		metrics.IndexBuilds.Add(1)
		c, err := p.index.Build(ctx, p.cfg.CollectionName, docs)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrNoIndex, err)
		}
		sess, err = p.bind(c)
		if err != nil {
			return err
		}
		slog.Info("ingest: session ready",
			slog.String("collection", p.cfg.CollectionName),
			slog.Int("videos", len(report.Succeeded())),
			slog.Int("chunks", report.TotalChunks),
			slog.Duration("elapsed", time.Since(start)))
		return nil
	})
	if err != nil {
		return nil, report, err
	}
	return sess, report, nil
}

// collect runs fetch and chunk sequentially, recording one status per URL.
func (p *Pipeline) collect(ctx context.Context, urls []string, report *IngestReport) []vectordb.Document {
	var docs []vectordb.Document
	for _, url := range urls {
		status := VideoStatus{URL: url}
		res, err := p.fetcher.Fetch(ctx, url)
		status.VideoID = res.Ref.VideoID
		if err != nil {
			slog.Warn("ingest: skipping url", slog.String("url", url), slog.Any("error", err))
			status.Error = err.Error()
			report.Videos = append(report.Videos, status)
			continue
		}

		chunks := ChunkSegments(res.Segments, res.Ref.URL, p.cfg.ChunkWindow)
		for _, ch := range chunks {
			docs = append(docs, vectordb.Document{Text: ch.Text, Source: ch.SourceURL})
		}
		status.Segments = len(res.Segments)
		status.Chunks = len(chunks)
		status.Cached = res.Cached
		report.Videos = append(report.Videos, status)
		report.TotalChunks += len(chunks)
		slog.Info("ingest: video processed",
			slog.String("video_id", res.Ref.VideoID),
			slog.Int("segments", status.Segments),
			slog.Int("chunks", status.Chunks),
			slog.Bool("cached", res.Cached))
	}
	return docs
}

// Resume reopens the collection persisted by a previous Ingest.
func (p *Pipeline) Resume(ctx context.Context) (*Session, error) {
	c, err := p.index.Load(ctx, p.cfg.CollectionName)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoIndex, err)
	}
	return p.bind(c)
}

func (p *Pipeline) bind(c *vectordb.Collection) (*Session, error) {
	if c == nil {
		return nil, ErrNoIndex
	}
	policy := NewPolicy(p.cfg, p.agent, p.qa, NewCollectionRetriever(c))
	return newSession(policy, c), nil
}

// IsFatalIngest reports whether err aborted a whole batch.
func IsFatalIngest(err error) bool {
	return errors.Is(err, ErrNoChunks) || errors.Is(err, ErrNoIndex)
}
