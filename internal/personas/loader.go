// Package personas loads the persona corpus for a platform from JSON files
// and keeps it cached until the files change.
package personas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/tjfontaine/audiencesim/internal/core/domain"
	"github.com/tjfontaine/audiencesim/internal/core/ports"
)

const stageName = "persona_loading"

// Loader implements ports.PersonaSource over <dir>/<platform>.json files.
type Loader struct {
	dir     string
	logger  *slog.Logger
	mu      sync.RWMutex
	cache   map[string][]domain.Persona
	watcher *fsnotify.Watcher
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(ld *Loader) {
		if l != nil {
			ld.logger = l
		}
	}
}

// NewLoader creates a loader reading from dir.
func NewLoader(dir string, opts ...Option) *Loader {
	l := &Loader{
		dir:    dir,
		logger: slog.Default(),
		cache:  make(map[string][]domain.Persona),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Dir returns the corpus directory.
func (l *Loader) Dir() string { return l.dir }

// Load returns the ordered personas for platform. A missing corpus file is a
// not_found StageError; an invalid one is a validation StageError.
func (l *Loader) Load(ctx context.Context, platform string) ([]domain.Persona, error) {
	platform = strings.ToLower(strings.TrimSpace(platform))
	if platform == "" || strings.ContainsAny(platform, `/\.`) {
		return nil, domain.NewStageError(stageName, domain.ErrorKindValidation,
			fmt.Sprintf("invalid platform %q", platform)).WithErr(domain.ErrValidation)
	}

	l.mu.RLock()
	cached, ok := l.cache[platform]
	l.mu.RUnlock()
	if ok {
		l.logger.Debug("using cached personas",
			slog.String("platform", platform),
			slog.Int("count", len(cached)))
		return cached, nil
	}

	path := filepath.Join(l.dir, platform+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.NewStageError(stageName, domain.ErrorKindNotFound,
				fmt.Sprintf("no persona corpus for platform %q", platform)).WithErr(domain.ErrNotFound)
		}
		return nil, domain.StageErrorFrom(stageName, "read persona corpus", err)
	}

	personas, err := Parse(data)
	if err != nil {
		return nil, domain.NewStageError(stageName, domain.ErrorKindValidation,
			fmt.Sprintf("invalid persona corpus %s", path)).WithErr(err)
	}

	l.mu.Lock()
	l.cache[platform] = personas
	l.mu.Unlock()

	l.logger.Info("personas loaded",
		slog.String("platform", platform),
		slog.String("path", path),
		slog.Int("count", len(personas)))

	return personas, nil
}

// Parse decodes and validates a corpus file: a JSON array of personas with
// unique ids.
func Parse(data []byte) ([]domain.Persona, error) {
	var personas []domain.Persona
	if err := json.Unmarshal(data, &personas); err != nil {
		return nil, fmt.Errorf("decode personas: %w", err)
	}

	seen := make(map[string]struct{}, len(personas))
	for i, p := range personas {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("persona %d: %w", i, err)
		}
		if _, dup := seen[p.PersonaID]; dup {
			return nil, fmt.Errorf("duplicate persona_id %q", p.PersonaID)
		}
		seen[p.PersonaID] = struct{}{}
	}
	return personas, nil
}

// Platforms lists the platforms that have a corpus file, sorted.
func (l *Loader) Platforms(ctx context.Context) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(l.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list persona corpora: %w", err)
	}
	platforms := make([]string, 0, len(matches))
	for _, m := range matches {
		platforms = append(platforms, strings.TrimSuffix(filepath.Base(m), ".json"))
	}
	sort.Strings(platforms)
	return platforms, nil
}

// Count returns the number of personas for platform, loading it if needed.
func (l *Loader) Count(ctx context.Context, platform string) (int, error) {
	personas, err := l.Load(ctx, platform)
	if err != nil {
		return 0, err
	}
	return len(personas), nil
}

// ClearCache drops every cached corpus.
func (l *Loader) ClearCache() {
	l.mu.Lock()
	l.cache = make(map[string][]domain.Persona)
	l.mu.Unlock()
}

// Watch clears the cache whenever a corpus file is written, created or
// removed. It returns once the watcher is installed; watching stops when ctx
// is done or Close is called.
func (l *Loader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	if err := watcher.Add(l.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", l.dir, err)
	}

	l.mu.Lock()
	l.watcher = watcher
	l.mu.Unlock()

	l.logger.Info("watching persona corpus for changes", slog.String("dir", l.dir))

	go func() {
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				l.logger.Debug("persona watch stopped")
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Ext(event.Name) != ".json" {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					l.logger.Info("persona corpus changed, clearing cache", slog.String("path", event.Name))
					l.ClearCache()
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				l.logger.Error("persona watch error", slog.String("error", err.Error()))
			}
		}
	}()

	return nil
}

// Close stops watching.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.watcher != nil {
		err := l.watcher.Close()
		l.watcher = nil
		return err
	}
	return nil
}

var _ ports.PersonaSource = (*Loader)(nil)
