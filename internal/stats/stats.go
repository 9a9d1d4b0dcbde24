// Package stats aggregates the corpus for the admin surface and exposes
// the readiness flag the query path gates on.
package stats

import (
	"context"

	"github.com/glinthq/onboardrag/internal/store"
)

// Snapshot is one point-in-time view of the knowledge base.
type Snapshot struct {
	store.CorpusStats

	// IsReady is true once at least one document has embedded chunks,
	// i.e. queries can return sources.
	IsReady bool `json:"isReady"`
}

// Service computes snapshots. Stateless; every call hits the store.
type Service struct {
	store store.Store
}

// New creates a stats service.
func New(st store.Store) *Service {
	return &Service{store: st}
}

// Snapshot aggregates the current corpus state.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	cs, err := s.store.CorpusStats(ctx)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		CorpusStats: *cs,
		IsReady:     cs.DocumentsWithEmbeddings > 0,
	}, nil
}
