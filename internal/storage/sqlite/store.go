// Package sqlite persists pipeline runs in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/tjfontaine/audiencesim/internal/core/domain"
	"github.com/tjfontaine/audiencesim/internal/core/ports"
)

// Store is a SQLite implementation of ports.RunStore. Each run is one row
// holding the whole state as JSON next to its listing columns.
type Store struct {
	db *sqlx.DB
}

var _ ports.RunStore = (*Store)(nil)

type runRow struct {
	ID         string    `db:"id"`
	ContentID  string    `db:"content_id"`
	Platform   string    `db:"platform"`
	Status     string    `db:"status"`
	ErrorCount int       `db:"error_count"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// New creates a new SQLite store
func New(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			content_id TEXT NOT NULL,
			platform TEXT NOT NULL,
			status TEXT NOT NULL,
			error_count INTEGER NOT NULL DEFAULT 0,
			state TEXT NOT NULL,
			seq INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_platform ON runs(platform)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_seq ON runs(seq)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

func (s *Store) Save(ctx context.Context, state *domain.PipelineState) error {
	if state == nil || state.RunID == "" {
		return fmt.Errorf("run id is required: %w", domain.ErrValidation)
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	now := time.Now().UTC()
	query := `INSERT INTO runs (id, content_id, platform, status, error_count, state, seq, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM runs), ?, ?)
	          ON CONFLICT(id) DO UPDATE SET
	              content_id = excluded.content_id,
	              platform = excluded.platform,
	              status = excluded.status,
	              error_count = excluded.error_count,
	              state = excluded.state,
	              seq = excluded.seq,
	              updated_at = excluded.updated_at`

	_, err = s.db.ExecContext(ctx, query,
		state.RunID, state.ContentID, state.Platform, string(state.Status), len(state.Errors),
		string(data), now, now)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*domain.PipelineState, error) {
	var data string
	err := s.db.GetContext(ctx, &data, `SELECT state FROM runs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return decodeState(data)
}

func (s *Store) Latest(ctx context.Context) (*domain.PipelineState, error) {
	var data string
	err := s.db.GetContext(ctx, &data, `SELECT state FROM runs ORDER BY seq DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no runs stored: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return decodeState(data)
}

func (s *Store) List(ctx context.Context, opts ports.ListOptions) ([]ports.RunSummary, error) {
	query := `SELECT id, content_id, platform, status, error_count, created_at, updated_at
	          FROM runs`
	var args []any

	if opts.Platform != "" {
		query += ` WHERE platform = ?`
		args = append(args, opts.Platform)
	}

	query += ` ORDER BY seq DESC`

	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	var rows []runRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	out := make([]ports.RunSummary, len(rows))
	for i, r := range rows {
		out[i] = ports.RunSummary{
			RunID:      r.ID,
			ContentID:  r.ContentID,
			Platform:   r.Platform,
			Status:     domain.Status(r.Status),
			ErrorCount: r.ErrorCount,
			CreatedAt:  r.CreatedAt,
			UpdatedAt:  r.UpdatedAt,
		}
	}
	return out, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func decodeState(data string) (*domain.PipelineState, error) {
	var state domain.PipelineState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &state, nil
}
