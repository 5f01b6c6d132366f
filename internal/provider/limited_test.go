package provider

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/tjfontaine/audiencesim/internal/core/domain"
	"github.com/tjfontaine/audiencesim/internal/core/ports"
	"github.com/tjfontaine/audiencesim/internal/telemetry"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type countingInvoker struct {
	calls    atomic.Int32
	failures int32
	err      error
	delay    time.Duration

	active    atomic.Int32
	maxActive atomic.Int32
}

func (c *countingInvoker) Generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	n := c.calls.Add(1)

	cur := c.active.Add(1)
	defer c.active.Add(-1)
	for {
		prev := c.maxActive.Load()
		if cur <= prev || c.maxActive.CompareAndSwap(prev, cur) {
			break
		}
	}

	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if n <= c.failures {
		return "", c.err
	}
	return `{"ok": true}`, nil
}

func (c *countingInvoker) GenerateWithMedia(ctx context.Context, req ports.MediaRequest) (string, error) {
	return c.Generate(ctx, req.GenerateRequest)
}

func fastConfig() CallConfig {
	return CallConfig{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   4 * time.Millisecond,
		Timeout:    time.Second,
	}
}

func TestLimited_RetriesTransientFailures(t *testing.T) {
	inv := &countingInvoker{failures: 2, err: errors.New("503 unavailable")}
	l := NewLimited(inv, NewLimiter(4), fastConfig())

	got, err := l.Generate(context.Background(), ports.GenerateRequest{Prompt: "x"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != `{"ok": true}` {
		t.Errorf("Generate() = %q", got)
	}
	if n := inv.calls.Load(); n != 3 {
		t.Errorf("calls = %d, want 3", n)
	}
}

func TestLimited_ExhaustedRetriesIsTransportError(t *testing.T) {
	cause := errors.New("connection reset")
	inv := &countingInvoker{failures: 100, err: cause}
	l := NewLimited(inv, NewLimiter(4), fastConfig())

	_, err := l.Generate(context.Background(), ports.GenerateRequest{Tier: ports.TierFast})
	if err == nil {
		t.Fatal("expected error")
	}

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("error = %T, want *TransportError", err)
	}
	if te.Attempts != 4 {
		t.Errorf("attempts = %d, want 4", te.Attempts)
	}
	if te.Model != "fast" {
		t.Errorf("model = %q, want fast", te.Model)
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to be wrapped")
	}
	if domain.KindOf(err) != domain.ErrorKindTransport {
		t.Errorf("KindOf() = %q, want transport", domain.KindOf(err))
	}
}

func TestLimited_PermanentFailureIsNotRetried(t *testing.T) {
	inv := &countingInvoker{failures: 100, err: Permanent(errors.New("bad request"))}
	l := NewLimited(inv, NewLimiter(4), fastConfig())

	_, err := l.Generate(context.Background(), ports.GenerateRequest{})
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("error = %v, want transport error", err)
	}
	if n := inv.calls.Load(); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}

func TestLimited_AttemptTimeout(t *testing.T) {
	inv := &countingInvoker{delay: time.Second}
	cfg := fastConfig()
	cfg.MaxRetries = 1
	cfg.Timeout = 5 * time.Millisecond
	l := NewLimited(inv, NewLimiter(1), cfg)

	_, err := l.Generate(context.Background(), ports.GenerateRequest{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want deadline exceeded", err)
	}
	if n := inv.calls.Load(); n != 2 {
		t.Errorf("calls = %d, want 2", n)
	}
}

func TestLimited_CapsConcurrency(t *testing.T) {
	inv := &countingInvoker{delay: 10 * time.Millisecond}
	l := NewLimited(inv, NewLimiter(2), fastConfig(), WithMetrics(telemetry.NewMetrics("test")))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Generate(context.Background(), ports.GenerateRequest{}); err != nil {
				t.Errorf("Generate() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := inv.maxActive.Load(); got > 2 {
		t.Errorf("max concurrent calls = %d, want <= 2", got)
	}
	if n := inv.calls.Load(); n != 10 {
		t.Errorf("calls = %d, want 10", n)
	}
}

func TestLimited_SharedLimiterAcrossWrappers(t *testing.T) {
	inv := &countingInvoker{delay: 10 * time.Millisecond}
	limiter := NewLimiter(1)
	a := NewLimited(inv, limiter, fastConfig())
	b := NewLimited(inv, limiter, fastConfig())

	var wg sync.WaitGroup
	for _, l := range []*Limited{a, b, a, b} {
		wg.Add(1)
		go func(l *Limited) {
			defer wg.Done()
			l.GenerateWithMedia(context.Background(), ports.MediaRequest{})
		}(l)
	}
	wg.Wait()

	if got := inv.maxActive.Load(); got != 1 {
		t.Errorf("max concurrent calls = %d, want 1", got)
	}
}

func TestLimited_CanceledContext(t *testing.T) {
	inv := &countingInvoker{}
	l := NewLimited(inv, NewLimiter(1), fastConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Generate(ctx, ports.GenerateRequest{})
	if !errors.Is(err, ErrTransport) {
		t.Errorf("error = %v, want transport error", err)
	}
}

func TestNormalizeCallConfig(t *testing.T) {
	got := normalizeCallConfig(CallConfig{MaxRetries: -1, BaseDelay: 2 * time.Second, MaxDelay: time.Second})
	if got.MaxRetries != 0 {
		t.Errorf("MaxRetries = %d, want 0", got.MaxRetries)
	}
	if got.MaxDelay != 2*time.Second {
		t.Errorf("MaxDelay = %v, want 2s", got.MaxDelay)
	}
	if got.Timeout != DefaultCallConfig().Timeout {
		t.Errorf("Timeout = %v", got.Timeout)
	}
}

func TestIsPermanent(t *testing.T) {
	base := errors.New("x")
	if IsPermanent(base) {
		t.Error("plain error reported permanent")
	}
	if !IsPermanent(Permanent(base)) {
		t.Error("Permanent() not detected")
	}
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
	if !errors.Is(Permanent(base), base) {
		t.Error("Permanent should unwrap")
	}
}
