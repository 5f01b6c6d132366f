package ports

import (
	"context"
	"time"

	"github.com/tjfontaine/audiencesim/internal/core/domain"
)

// StageResult is the outcome of one stage. State is always set, even on
// failure, and carries the stage's best-effort or fallback payload.
type StageResult struct {
	State *domain.PipelineState
	Err   *domain.StageError
}

// Ok returns a successful result.
func Ok(state *domain.PipelineState) StageResult {
	return StageResult{State: state}
}

// Fail returns a failed result carrying a fallback state.
func Fail(state *domain.PipelineState, err *domain.StageError) StageResult {
	return StageResult{State: state, Err: err}
}

// Stage processes the pipeline state.
type Stage interface {
	// Name returns the unique identifier for this stage.
	Name() string
	// Process returns a new state. It must not mutate its input.
	Process(ctx context.Context, state *domain.PipelineState) StageResult
}

// PersonaSource loads the persona corpus for a platform.
type PersonaSource interface {
	// Load returns the ordered personas for platform, or an error matching
	// domain.ErrNotFound when no corpus exists.
	Load(ctx context.Context, platform string) ([]domain.Persona, error)
	// Platforms lists the platforms with a corpus.
	Platforms(ctx context.Context) ([]string, error)
}

// RunSummary is the listing view of a stored run.
type RunSummary struct {
	RunID      string        `json:"run_id"`
	ContentID  string        `json:"video_id"`
	Platform   string        `json:"platform"`
	Status     domain.Status `json:"status"`
	ErrorCount int           `json:"error_count"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// ListOptions filters run listings.
type ListOptions struct {
	Platform string
	Limit    int
}

// RunStore keeps pipeline states keyed by run id. It is owned by the
// request layer; the pipeline itself never reads it.
type RunStore interface {
	// Save inserts or replaces the state for state.RunID.
	Save(ctx context.Context, state *domain.PipelineState) error
	// Get returns the state for id, or an error matching domain.ErrNotFound.
	Get(ctx context.Context, id string) (*domain.PipelineState, error)
	// Latest returns the most recently saved state.
	Latest(ctx context.Context) (*domain.PipelineState, error)
	// List returns summaries, newest first.
	List(ctx context.Context, opts ListOptions) ([]RunSummary, error)
	Close() error
}
