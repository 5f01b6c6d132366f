package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tjfontaine/audiencesim/internal/core/domain"
	"github.com/tjfontaine/audiencesim/internal/core/ports"
)

type record struct {
	state   *domain.PipelineState
	created time.Time
	updated time.Time
	seq     uint64
}

// Store is an in-memory implementation of ports.RunStore
type Store struct {
	mu   sync.RWMutex
	runs map[string]*record
	seq  uint64
}

var _ ports.RunStore = (*Store)(nil)

// New creates a new in-memory store
func New() *Store {
	return &Store{
		runs: make(map[string]*record),
	}
}

func (s *Store) Save(ctx context.Context, state *domain.PipelineState) error {
	if state == nil || state.RunID == "" {
		return fmt.Errorf("run id is required: %w", domain.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.seq++
	rec, exists := s.runs[state.RunID]
	if !exists {
		rec = &record{created: now}
		s.runs[state.RunID] = rec
	}
	rec.state = state.Clone()
	rec.updated = now
	rec.seq = s.seq
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*domain.PipelineState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.runs[id]
	if !exists {
		return nil, fmt.Errorf("run %s: %w", id, domain.ErrNotFound)
	}
	return rec.state.Clone(), nil
}

func (s *Store) Latest(ctx context.Context) (*domain.PipelineState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *record
	for _, rec := range s.runs {
		if latest == nil || rec.seq > latest.seq {
			latest = rec
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("no runs stored: %w", domain.ErrNotFound)
	}
	return latest.state.Clone(), nil
}

func (s *Store) List(ctx context.Context, opts ports.ListOptions) ([]ports.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := make([]*record, 0, len(s.runs))
	for _, rec := range s.runs {
		if opts.Platform != "" && rec.state.Platform != opts.Platform {
			continue
		}
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq > recs[j].seq })

	if opts.Limit > 0 && len(recs) > opts.Limit {
		recs = recs[:opts.Limit]
	}

	out := make([]ports.RunSummary, len(recs))
	for i, rec := range recs {
		out[i] = ports.RunSummary{
			RunID:      rec.state.RunID,
			ContentID:  rec.state.ContentID,
			Platform:   rec.state.Platform,
			Status:     rec.state.Status,
			ErrorCount: len(rec.state.Errors),
			CreatedAt:  rec.created,
			UpdatedAt:  rec.updated,
		}
	}
	return out, nil
}

func (s *Store) Close() error {
	return nil
}
