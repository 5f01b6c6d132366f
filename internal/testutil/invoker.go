package testutil

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/tjfontaine/audiencesim/internal/core/domain"
	"github.com/tjfontaine/audiencesim/internal/core/ports"
)

// ErrInvokerDown is returned by FailingInvoker.
var ErrInvokerDown = errors.New("model unavailable")

// StubInvoker is a ports.ModelInvoker driven by a function. It records every
// request and is safe for concurrent use.
type StubInvoker struct {
	mu       sync.Mutex
	requests []ports.GenerateRequest
	media    []ports.MediaRequest

	// Respond produces the response for a request.
	Respond func(req ports.GenerateRequest) (string, error)
}

// NewStubInvoker creates a stub answering with respond.
func NewStubInvoker(respond func(req ports.GenerateRequest) (string, error)) *StubInvoker {
	return &StubInvoker{Respond: respond}
}

// FailingInvoker returns a stub that fails every call with a transport error.
func FailingInvoker() *StubInvoker {
	return NewStubInvoker(func(ports.GenerateRequest) (string, error) {
		return "", errors.Join(ErrInvokerDown, domain.ErrTransport)
	})
}

// StaticInvoker returns a stub answering every call with text.
func StaticInvoker(text string) *StubInvoker {
	return NewStubInvoker(func(ports.GenerateRequest) (string, error) {
		return text, nil
	})
}

// Generate implements ports.ModelInvoker.
func (s *StubInvoker) Generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	return s.Respond(req)
}

// GenerateWithMedia implements ports.ModelInvoker.
func (s *StubInvoker) GenerateWithMedia(ctx context.Context, req ports.MediaRequest) (string, error) {
	s.mu.Lock()
	s.media = append(s.media, req)
	s.requests = append(s.requests, req.GenerateRequest)
	s.mu.Unlock()
	return s.Respond(req.GenerateRequest)
}

// Requests returns a copy of the recorded requests.
func (s *StubInvoker) Requests() []ports.GenerateRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.GenerateRequest(nil), s.requests...)
}

// MediaRequests returns a copy of the recorded media requests.
func (s *StubInvoker) MediaRequests() []ports.MediaRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.MediaRequest(nil), s.media...)
}

// Calls returns the number of calls made.
func (s *StubInvoker) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// PromptContaining returns the first recorded prompt containing substr.
func (s *StubInvoker) PromptContaining(substr string) (string, bool) {
	for _, r := range s.Requests() {
		if strings.Contains(r.Prompt, substr) {
			return r.Prompt, true
		}
	}
	return "", false
}

var _ ports.ModelInvoker = (*StubInvoker)(nil)
