package provider

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/tjfontaine/audiencesim/internal/core/ports"
	"github.com/tjfontaine/audiencesim/internal/telemetry"
)

// Limiter caps the number of outstanding model calls. One Limiter is shared
// by every run in the process.
type Limiter struct {
	sem  *semaphore.Weighted
	size int64
}

// NewLimiter creates a limiter admitting n concurrent calls.
func NewLimiter(n int64) *Limiter {
	if n < 1 {
		n = 1
	}
	return &Limiter{sem: semaphore.NewWeighted(n), size: n}
}

// Size returns the configured concurrency.
func (l *Limiter) Size() int64 { return l.size }

// Acquire blocks until a slot is free or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	return l.sem.Acquire(ctx, 1)
}

// Release frees a slot.
func (l *Limiter) Release() {
	l.sem.Release(1)
}

// CallConfig is the per-call discipline applied by Limited.
type CallConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// BaseDelay is the first backoff delay; each retry doubles it.
	BaseDelay time.Duration
	// MaxDelay caps the backoff delay.
	MaxDelay time.Duration
	// Timeout bounds a single text generation attempt.
	Timeout time.Duration
	// MediaTimeout bounds a single media attempt including upload and
	// remote processing.
	MediaTimeout time.Duration
}

// DefaultCallConfig returns the defaults used when config leaves them unset.
func DefaultCallConfig() CallConfig {
	return CallConfig{
		MaxRetries:   3,
		BaseDelay:    time.Second,
		MaxDelay:     8 * time.Second,
		Timeout:      60 * time.Second,
		MediaTimeout: 10 * time.Minute,
	}
}

func normalizeCallConfig(cfg CallConfig) CallConfig {
	d := DefaultCallConfig()
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = d.BaseDelay
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = d.Timeout
	}
	if cfg.MediaTimeout <= 0 {
		cfg.MediaTimeout = d.MediaTimeout
	}
	return cfg
}

// Limited wraps an invoker with the shared limiter, a per-attempt timeout
// and capped exponential-backoff retries. Every failure it returns is a
// *TransportError.
type Limited struct {
	next    ports.ModelInvoker
	limiter *Limiter
	cfg     CallConfig
	policy  retrypolicy.RetryPolicy[string]
	metrics *telemetry.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
}

// LimitedOption configures a Limited invoker.
type LimitedOption func(*Limited)

// WithMetrics records call outcomes.
func WithMetrics(m *telemetry.Metrics) LimitedOption {
	return func(l *Limited) { l.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) LimitedOption {
	return func(l *Limited) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLimited wraps next.
func NewLimited(next ports.ModelInvoker, limiter *Limiter, cfg CallConfig, opts ...LimitedOption) *Limited {
	cfg = normalizeCallConfig(cfg)
	l := &Limited{
		next:    next,
		limiter: limiter,
		cfg:     cfg,
		logger:  slog.Default(),
		tracer:  telemetry.Tracer(),
	}
	for _, opt := range opts {
		opt(l)
	}

	l.policy = retrypolicy.NewBuilder[string]().
		WithBackoff(cfg.BaseDelay, cfg.MaxDelay).
		WithMaxRetries(cfg.MaxRetries).
		WithJitterFactor(0.1).
		HandleIf(func(_ string, err error) bool {
			return err != nil && !IsPermanent(err)
		}).
		OnRetry(func(e failsafe.ExecutionEvent[string]) {
			l.logger.Warn("retrying model call",
				slog.Int("attempt", e.Attempts()),
				slog.String("error", errString(e.LastError())))
		}).
		Build()

	return l
}

// Generate implements ports.ModelInvoker.
func (l *Limited) Generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	return l.call(ctx, "generate", modelLabel(req), l.cfg.Timeout, func(ctx context.Context) (string, error) {
		return l.next.Generate(ctx, req)
	})
}

// GenerateWithMedia implements ports.ModelInvoker.
func (l *Limited) GenerateWithMedia(ctx context.Context, req ports.MediaRequest) (string, error) {
	return l.call(ctx, "generate_media", modelLabel(req.GenerateRequest), l.cfg.MediaTimeout, func(ctx context.Context) (string, error) {
		return l.next.GenerateWithMedia(ctx, req)
	})
}

func (l *Limited) call(ctx context.Context, op, model string, timeout time.Duration, fn func(context.Context) (string, error)) (string, error) {
	ctx, span := l.tracer.Start(ctx, "model."+op, trace.WithAttributes(attribute.String("model", model)))
	defer span.End()

	start := time.Now()
	var attempts atomic.Int32
	var lastErr error

	text, err := failsafe.With(l.policy).WithContext(ctx).Get(func() (string, error) {
		attempts.Add(1)

		if err := l.limiter.Acquire(ctx); err != nil {
			return "", Permanent(err)
		}
		defer l.limiter.Release()
		l.metrics.InflightAdd(1)
		defer l.metrics.InflightAdd(-1)

		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		out, err := fn(attemptCtx)
		if err != nil {
			lastErr = err
		}
		return out, err
	})

	n := int(attempts.Load())
	span.SetAttributes(attribute.Int("attempts", n))

	if err != nil {
		cause := lastErr
		if cause == nil {
			cause = err
		}
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(cause, ctxErr) {
			cause = errors.Join(cause, ctxErr)
		}
		span.RecordError(cause)
		span.SetStatus(codes.Error, "model call failed")
		l.metrics.ModelCall(model, "error", time.Since(start))
		return "", &TransportError{Model: model, Attempts: n, Err: unwrapPermanent(cause)}
	}

	l.metrics.ModelCall(model, "ok", time.Since(start))
	return text, nil
}

func unwrapPermanent(err error) error {
	var pe *permanentError
	if errors.As(err, &pe) && pe == err {
		return pe.err
	}
	return err
}

func modelLabel(req ports.GenerateRequest) string {
	if req.Model != "" {
		return req.Model
	}
	if req.Tier != "" {
		return string(req.Tier)
	}
	return string(ports.TierDefault)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
