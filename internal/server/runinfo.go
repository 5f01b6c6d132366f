package server

import (
	"context"
	"net/http"
	"strconv"
	"sync"
)

// Run headers written on responses that concern a single run.
const (
	HeaderRunID         = "X-Run-ID"
	HeaderRunStatus     = "X-Run-Status"
	HeaderRunErrorCount = "X-Run-Error-Count"
)

type runInfoKey struct{}

// RunInfo is the run a response describes.
type RunInfo struct {
	mu         sync.Mutex
	set        bool
	RunID      string
	Status     string
	ErrorCount int
}

// SetRunInfo records the run a handler is responding about so
// RunInfoMiddleware can expose it as headers. No-op without the middleware.
func SetRunInfo(ctx context.Context, runID, status string, errorCount int) {
	info, ok := ctx.Value(runInfoKey{}).(*RunInfo)
	if !ok {
		return
	}
	info.mu.Lock()
	defer info.mu.Unlock()
	info.RunID = runID
	info.Status = status
	info.ErrorCount = errorCount
	info.set = true
}

// GetRunInfo returns the run recorded for ctx, or nil.
func GetRunInfo(ctx context.Context) *RunInfo {
	info, ok := ctx.Value(runInfoKey{}).(*RunInfo)
	if !ok {
		return nil
	}
	info.mu.Lock()
	defer info.mu.Unlock()
	if !info.set {
		return nil
	}
	return &RunInfo{set: true, RunID: info.RunID, Status: info.Status, ErrorCount: info.ErrorCount}
}

// RunInfoMiddleware writes X-Run-* headers before the response header is
// sent, from whatever the handler recorded with SetRunInfo.
func RunInfoMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), runInfoKey{}, &RunInfo{})
		r = r.WithContext(ctx)
		next.ServeHTTP(&runInfoResponseWriter{ResponseWriter: w, request: r}, r)
	})
}

type runInfoResponseWriter struct {
	http.ResponseWriter
	request      *http.Request
	wroteHeaders bool
}

func (rw *runInfoResponseWriter) WriteHeader(code int) {
	rw.writeRunHeaders()
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *runInfoResponseWriter) Write(b []byte) (int, error) {
	rw.writeRunHeaders()
	return rw.ResponseWriter.Write(b)
}

func (rw *runInfoResponseWriter) writeRunHeaders() {
	if rw.wroteHeaders {
		return
	}
	rw.wroteHeaders = true

	info := GetRunInfo(rw.request.Context())
	if info == nil {
		return
	}

	h := rw.Header()
	h.Set(HeaderRunID, info.RunID)
	if info.Status != "" {
		h.Set(HeaderRunStatus, info.Status)
	}
	h.Set(HeaderRunErrorCount, strconv.Itoa(info.ErrorCount))
}

func (rw *runInfoResponseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
