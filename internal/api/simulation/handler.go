// Package simulation serves the simulation API: starting runs, reading
// their results and listing what is available.
package simulation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tjfontaine/audiencesim/internal/core/domain"
	"github.com/tjfontaine/audiencesim/internal/core/ports"
	"github.com/tjfontaine/audiencesim/internal/server"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

const defaultListLimit = 50

// Runner prepares and executes pipeline runs.
type Runner interface {
	Prepare(ctx context.Context, runID string, in domain.PipelineInputs) (*domain.PipelineState, error)
	Execute(ctx context.Context, state *domain.PipelineState) *domain.PipelineState
}

// Config wires a Handler.
type Config struct {
	Runner         Runner
	Store          ports.RunStore
	Personas       ports.PersonaSource
	Logger         *slog.Logger
	UploadDir      string
	MaxUploadBytes int64
}

type Handler struct {
	runner         Runner
	store          ports.RunStore
	personas       ports.PersonaSource
	logger         *slog.Logger
	uploadDir      string
	maxUploadBytes int64
	startTime      time.Time
}

func New(cfg Config) *Handler {
	h := &Handler{
		runner:         cfg.Runner,
		store:          cfg.Store,
		personas:       cfg.Personas,
		logger:         cfg.Logger,
		uploadDir:      cfg.UploadDir,
		maxUploadBytes: cfg.MaxUploadBytes,
		startTime:      time.Now(),
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.uploadDir == "" {
		h.uploadDir = "videos"
	}
	if h.maxUploadBytes <= 0 {
		h.maxUploadBytes = 512 << 20
	}
	return h
}

// Routes registers the API under r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.handleHealth)
	r.Get("/platforms", h.handlePlatforms)
	r.Post("/upload", h.handleUpload)
	r.Post("/test/start", h.handleStart)
	r.Get("/test/{test_id}", h.handleResults)
	r.Get("/test/{test_id}/status", h.handleStatus)
	r.Get("/test-results/latest", h.handleLatest)
	r.Get("/runs", h.handleListRuns)
}

type HealthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	Uptime       string `json:"uptime"`
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:       "healthy",
		Version:      Version,
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
	})
}

type PlatformsResponse struct {
	Platforms []string `json:"platforms"`
}

func (h *Handler) handlePlatforms(w http.ResponseWriter, r *http.Request) {
	platforms, err := h.personas.Platforms(r.Context())
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	if platforms == nil {
		platforms = []string{}
	}
	writeJSON(w, http.StatusOK, PlatformsResponse{Platforms: platforms})
}

type UploadResponse struct {
	VideoID  string `json:"video_id"`
	VideoURL string `json:"video_url"`
	Filename string `json:"filename"`
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, fmt.Errorf("multipart field \"file\" is required: %w", err))
		return
	}
	defer file.Close()

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		h.writeError(w, r, http.StatusInternalServerError, fmt.Errorf("create upload dir: %w", err))
		return
	}

	videoID := uuid.NewString()
	name := videoID + strings.ToLower(filepath.Ext(header.Filename))
	path := filepath.Join(h.uploadDir, name)

	out, err := os.Create(path)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, fmt.Errorf("create upload: %w", err))
		return
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		os.Remove(path)
		h.writeError(w, r, http.StatusBadRequest, fmt.Errorf("write upload: %w", err))
		return
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		h.writeError(w, r, http.StatusInternalServerError, fmt.Errorf("close upload: %w", err))
		return
	}

	server.AddLogField(r.Context(), "video_id", videoID)
	writeJSON(w, http.StatusCreated, UploadResponse{
		VideoID:  videoID,
		VideoURL: filepath.ToSlash(path),
		Filename: name,
	})
}

type StartResponse struct {
	TestID   string        `json:"test_id"`
	Status   domain.Status `json:"status"`
	Message  string        `json:"message"`
	Duration float64       `json:"simulation_duration"`
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	var in domain.PipelineInputs
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&in); err != nil {
		h.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	runID := uuid.NewString()
	ctx := r.Context()
	server.AddLogField(ctx, "run_id", runID)

	state, err := h.runner.Prepare(ctx, runID, in)
	if err != nil {
		h.writeError(w, r, statusFor(err), err)
		return
	}

	start := time.Now()
	if err := h.store.Save(ctx, state); err != nil {
		h.writeError(w, r, http.StatusInternalServerError, err)
		return
	}

	final := h.runner.Execute(ctx, state)
	duration := time.Since(start)

	// The request context may be past its deadline; the result is still kept.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := h.store.Save(saveCtx, final); err != nil {
		h.writeError(w, r, http.StatusInternalServerError, err)
		return
	}

	server.SetRunInfo(ctx, runID, string(final.Status), len(final.Errors))
	writeJSON(w, http.StatusOK, StartResponse{
		TestID:   runID,
		Status:   final.Status,
		Message:  fmt.Sprintf("Test completed with status: %s", final.Status),
		Duration: duration.Seconds(),
	})
}

type ResultsResponse struct {
	TestID              string                      `json:"test_id"`
	VideoID             string                      `json:"video_id"`
	Platform            string                      `json:"platform"`
	ContentType         domain.ContentType          `json:"content_type"`
	Status              domain.Status               `json:"status"`
	FinalMetrics        *domain.FinalMetrics        `json:"final_metrics"`
	NodeGraphData       *domain.NodeGraphData       `json:"node_graph_data"`
	EngagementTimeline  []domain.TimelineEvent      `json:"engagement_timeline"`
	ReactionInsights    *domain.ReactionInsights    `json:"reaction_insights"`
	PlatformPredictions *domain.PlatformPredictions `json:"platform_predictions"`
	PersonaCount        int                         `json:"persona_count"`
	Errors              []string                    `json:"errors"`
}

func (h *Handler) handleResults(w http.ResponseWriter, r *http.Request) {
	state, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ResultsResponse{
		TestID:              state.RunID,
		VideoID:             state.ContentID,
		Platform:            state.Platform,
		ContentType:         state.ContentType,
		Status:              state.Status,
		FinalMetrics:        state.FinalMetrics,
		NodeGraphData:       state.NodeGraphData,
		EngagementTimeline:  state.EngagementTimeline,
		ReactionInsights:    state.ReactionInsights,
		PlatformPredictions: state.PlatformPredictions,
		PersonaCount:        len(state.Personas),
		Errors:              nonNil(state.Errors),
	})
}

type StatusResponse struct {
	TestID string        `json:"test_id"`
	Status domain.Status `json:"status"`
	Errors []string      `json:"errors"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	state, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{
		TestID: state.RunID,
		Status: state.Status,
		Errors: nonNil(state.Errors),
	})
}

// LatestResponse is the whole state of the most recent run, for
// visualization.
type LatestResponse struct {
	TestID string `json:"test_id"`
	*domain.PipelineState
}

func (h *Handler) handleLatest(w http.ResponseWriter, r *http.Request) {
	state, err := h.store.Latest(r.Context())
	if err != nil {
		h.writeError(w, r, statusFor(err), err)
		return
	}
	server.SetRunInfo(r.Context(), state.RunID, string(state.Status), len(state.Errors))
	writeJSON(w, http.StatusOK, LatestResponse{TestID: state.RunID, PipelineState: state})
}

type RunListResponse struct {
	Runs  []ports.RunSummary `json:"runs"`
	Total int                `json:"total"`
}

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	opts := ports.ListOptions{
		Platform: strings.ToLower(r.URL.Query().Get("platform")),
		Limit:    defaultListLimit,
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			h.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
		opts.Limit = limit
	}

	runs, err := h.store.List(r.Context(), opts)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []ports.RunSummary{}
	}
	writeJSON(w, http.StatusOK, RunListResponse{Runs: runs, Total: len(runs)})
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*domain.PipelineState, bool) {
	id := chi.URLParam(r, "test_id")
	state, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			err = fmt.Errorf("test %s not found: %w", id, domain.ErrNotFound)
		}
		h.writeError(w, r, statusFor(err), err)
		return nil, false
	}
	server.SetRunInfo(r.Context(), state.RunID, string(state.Status), len(state.Errors))
	return state, true
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string           `json:"error"`
	Kind      domain.ErrorKind `json:"kind,omitempty"`
	Stage     string           `json:"stage,omitempty"`
	RequestID string           `json:"request_id,omitempty"`
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	server.AddError(r.Context(), err)

	resp := ErrorResponse{
		Error:     err.Error(),
		RequestID: server.GetRequestID(r.Context()),
	}
	var se *domain.StageError
	if errors.As(err, &se) {
		resp.Error = se.Message
		resp.Kind = se.Kind
		resp.Stage = se.Stage
	}
	writeJSON(w, status, resp)
}

// statusFor maps an error onto the HTTP status it is reported with.
func statusFor(err error) int {
	var se *domain.StageError
	if errors.As(err, &se) {
		return se.HTTPStatusCode()
	}
	switch domain.KindOf(err) {
	case domain.ErrorKindNotFound:
		return http.StatusNotFound
	case domain.ErrorKindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
