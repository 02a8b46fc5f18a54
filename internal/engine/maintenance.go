package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/CorvoHisui/qa-youtube-chatbot/internal/engine/vectordb"
)

// ResourceStatus is the outcome of clearing one persisted resource.
type ResourceStatus struct {
	Cleared bool   `json:"cleared"`
	Error   string `json:"error,omitempty"`
}

// MaintenanceReport is the per-resource outcome of ClearAll.
type MaintenanceReport struct {
	TranscriptCache ResourceStatus `json:"transcript_cache"`
	Indexes         ResourceStatus `json:"indexes"`
}

// Maintenance clears persisted state. Callers quiesce sessions first;
// index clearing refuses with ErrResourceBusy while queries are running.
type Maintenance struct {
	cache *TranscriptCache
	index *vectordb.Store
}

// NewMaintenance binds the resources it may clear.
func NewMaintenance(cache *TranscriptCache, index *vectordb.Store) *Maintenance {
	return &Maintenance{cache: cache, index: index}
}

// ClearTranscriptCache empties the transcript cache. Idempotent; reports
// whether anything was removed.
func (m *Maintenance) ClearTranscriptCache(ctx context.Context) (bool, error) {
	cleared, err := m.cache.Clear(ctx)
	if err != nil {
		return cleared, err
	}
	slog.Info("maintenance: transcript cache cleared", slog.Bool("had_entries", cleared))
	return cleared, nil
}

// ClearIndexes deletes every collection under the index root. Idempotent.
func (m *Maintenance) ClearIndexes() error {
	if err := m.index.ClearAll(); err != nil {
		if errors.Is(err, vectordb.ErrBusy) {
			return fmt.Errorf("%w: %w", ErrResourceBusy, err)
		}
		return err
	}
	return nil
}

// ClearAll clears the cache and the indexes, attempting both.
func (m *Maintenance) ClearAll(ctx context.Context) MaintenanceReport {
	var r MaintenanceReport
	cleared, err := m.ClearTranscriptCache(ctx)
	r.TranscriptCache.Cleared = cleared
	if err != nil {
		r.TranscriptCache.Error = err.Error()
	}
	if err := m.ClearIndexes(); err != nil {
		r.Indexes.Error = err.Error()
	} else {
		r.Indexes.Cleared = true
	}
	return r
}
