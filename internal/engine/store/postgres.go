package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const transcriptSchema = `CREATE TABLE IF NOT EXISTS transcript_cache (
	video_id   TEXT PRIMARY KEY,
	segments   JSONB NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Postgres stores transcripts in the transcript_cache table.
type Postgres struct {
	pool *pgxpool.Pool
}

// ConnectPostgres creates a pgx pool and ensures the schema exists.
func ConnectPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	config.MaxConns = 4
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, transcriptSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create transcript_cache: %w", err)
	}
	slog.Info("transcript store: postgres connected", slog.String("addr", config.ConnConfig.Host))
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Get(ctx context.Context, videoID string) ([]string, bool, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx,
		`SELECT segments FROM transcript_cache WHERE video_id = $1`, videoID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("postgres get: %w", err)
	}
	var segs []string
	if err := json.Unmarshal(raw, &segs); err != nil {
		return nil, false, fmt.Errorf("postgres decode %s: %w", videoID, err)
	}
	return segs, true, nil
}

func (p *Postgres) Put(ctx context.Context, videoID string, segments []string) error {
	raw, err := json.Marshal(segments)
	if err != nil {
		return fmt.Errorf("postgres encode: %w", err)
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO transcript_cache (video_id, segments, fetched_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (video_id) DO UPDATE SET segments = EXCLUDED.segments, fetched_at = now()`,
		videoID, raw,
	)
	if err != nil {
		return fmt.Errorf("postgres put: %w", err)
	}
	return nil
}

func (p *Postgres) Clear(ctx context.Context) (bool, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM transcript_cache`)
	if err != nil {
		return false, fmt.Errorf("postgres clear: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}
