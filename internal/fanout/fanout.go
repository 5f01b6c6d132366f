// Package fanout runs one task per entity concurrently and collects the
// results in input order.
//
// Run never fails as a whole: a task that errors or panics is replaced by
// the caller's fallback record for that entity. The only concurrency gate is
// whatever the task itself acquires (the process-wide model limiter), so all
// tasks are launched at once and awaited together.
package fanout

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/tjfontaine/audiencesim/internal/core/domain"
	"github.com/tjfontaine/audiencesim/internal/telemetry"
)

// Options configures a fan-out batch.
type Options[E any] struct {
	// Stage names the batch in logs and metrics.
	Stage string
	// Key identifies an entity in logs.
	Key     func(E) string
	Logger  *slog.Logger
	Metrics *telemetry.Metrics
}

// Failure is passed to the fallback for an entity whose task failed.
type Failure struct {
	Kind domain.ErrorKind
	Err  error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// Run calls fn for every entity concurrently. Result i always corresponds to
// entities[i]; a failed task yields fallback(entities[i], failure).
func Run[E, R any](ctx context.Context, entities []E, fn func(context.Context, E) (R, error), fallback func(E, Failure) R, opts Options[E]) []R {
	results := make([]R, len(entities))
	if len(entities) == 0 {
		return results
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var g errgroup.Group
	for i, entity := range entities {
		g.Go(func() error {
			r, err := runOne(ctx, entity, fn)
			if err != nil {
				failure := Failure{Kind: domain.KindOf(err), Err: err}
				logger.Warn("task failed, using fallback",
					slog.String("stage", opts.Stage),
					slog.String("entity", key(opts.Key, entity, i)),
					slog.String("kind", string(failure.Kind)),
					slog.String("error", err.Error()))
				opts.Metrics.FanoutFallback(opts.Stage)
				r = fallback(entity, failure)
			}
			results[i] = r
			return nil
		})
	}
	// Tasks never return an error.
	_ = g.Wait()

	return results
}

func runOne[E, R any](ctx context.Context, entity E, fn func(context.Context, E) (R, error)) (r R, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn(ctx, entity)
}

func key[E any](fn func(E) string, e E, i int) string {
	if fn != nil {
		return fn(e)
	}
	return fmt.Sprintf("#%d", i)
}
