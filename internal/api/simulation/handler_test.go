package simulation

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/go-cmp/cmp"

	"github.com/tjfontaine/audiencesim/internal/core/domain"
	"github.com/tjfontaine/audiencesim/internal/server"
	"github.com/tjfontaine/audiencesim/internal/storage/memory"
	"github.com/tjfontaine/audiencesim/internal/testutil"
)

// fakeRunner validates the platform against a persona source and completes
// every run with one recorded error.
type fakeRunner struct {
	personas testutil.PersonaSource
	executed int
}

func (f *fakeRunner) Prepare(ctx context.Context, runID string, in domain.PipelineInputs) (*domain.PipelineState, error) {
	state := domain.NewPipelineState(runID, in)
	if in.Platform == "" {
		return state, domain.NewStageError("persona_loading", domain.ErrorKindValidation, "platform is required")
	}
	personas, err := f.personas.Load(ctx, in.Platform)
	if err != nil {
		return state, domain.StageErrorFrom("persona_loading", "Failed to load personas for "+in.Platform, err)
	}
	state.Personas = personas
	return state, nil
}

func (f *fakeRunner) Execute(ctx context.Context, state *domain.PipelineState) *domain.PipelineState {
	f.executed++
	next := state.WithError("interactions: Interaction simulation failed (transport)")
	next.FinalMetrics = &domain.FinalMetrics{TotalPersonas: len(state.Personas)}
	next.Status = domain.StatusCompleted
	return next
}

type testEnv struct {
	router http.Handler
	runner *fakeRunner
	store  *memory.Store
	dir    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	personas := testutil.PersonaSource{"tiktok": testutil.Personas(3), "youtube": testutil.Personas(2)}
	env := &testEnv{
		runner: &fakeRunner{personas: personas},
		store:  memory.New(),
		dir:    t.TempDir(),
	}
	h := New(Config{
		Runner:    env.runner,
		Store:     env.store,
		Personas:  personas,
		UploadDir: env.dir,
	})

	r := chi.NewRouter()
	r.Use(server.RunInfoMiddleware)
	r.Route("/api/v1", h.Routes)
	env.router = r
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return v
}

func startRun(t *testing.T, env *testEnv, platform string) StartResponse {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/api/v1/test/start", map[string]any{
		"video_id":  "vid-1",
		"video_url": "/videos/vid-1.mp4",
		"platform":  platform,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("start: status %d body %s", rec.Code, rec.Body.String())
	}
	return decode[StartResponse](t, rec)
}

func TestHandler_StartAndFetch(t *testing.T) {
	env := newTestEnv(t)

	started := startRun(t, env, "tiktok")
	if started.TestID == "" || started.Status != domain.StatusCompleted {
		t.Fatalf("start response = %+v", started)
	}
	if !strings.Contains(started.Message, "completed") {
		t.Errorf("message = %q", started.Message)
	}

	rec := env.do(t, http.MethodGet, "/api/v1/test/"+started.TestID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("results: status %d", rec.Code)
	}
	if got := rec.Header().Get(server.HeaderRunID); got != started.TestID {
		t.Errorf("X-Run-ID = %q, want %q", got, started.TestID)
	}
	results := decode[ResultsResponse](t, rec)
	if results.VideoID != "vid-1" || results.Platform != "tiktok" || results.PersonaCount != 3 {
		t.Errorf("results = %+v", results)
	}
	if results.FinalMetrics == nil || results.FinalMetrics.TotalPersonas != 3 {
		t.Errorf("final metrics = %+v", results.FinalMetrics)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/test/"+started.TestID+"/status", nil)
	status := decode[StatusResponse](t, rec)
	want := StatusResponse{
		TestID: started.TestID,
		Status: domain.StatusCompleted,
		Errors: []string{"interactions: Interaction simulation failed (transport)"},
	}
	if diff := cmp.Diff(want, status); diff != "" {
		t.Errorf("status mismatch (-want +got):\n%s", diff)
	}
}

func TestHandler_StartErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     any
		wantCode int
		wantKind domain.ErrorKind
	}{
		{"unknown platform", map[string]any{"video_id": "v", "video_url": "x", "platform": "myspace"}, http.StatusNotFound, domain.ErrorKindNotFound},
		{"missing platform", map[string]any{"video_id": "v", "video_url": "x"}, http.StatusBadRequest, domain.ErrorKindValidation},
		{"malformed body", "{not json", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			rec := env.do(t, http.MethodPost, "/api/v1/test/start", tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if got := decode[ErrorResponse](t, rec); got.Kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", got.Kind, tt.wantKind)
			}
			if env.runner.executed != 0 {
				t.Error("no run should execute")
			}
		})
	}
}

func TestHandler_NotFound(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/api/v1/test/nope", "/api/v1/test/nope/status", "/api/v1/test-results/latest"} {
		rec := env.do(t, http.MethodGet, path, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("GET %s = %d, want 404", path, rec.Code)
		}
	}
}

func TestHandler_LatestAndList(t *testing.T) {
	env := newTestEnv(t)

	first := startRun(t, env, "tiktok")
	second := startRun(t, env, "youtube")

	rec := env.do(t, http.MethodGet, "/api/v1/test-results/latest", nil)
	var latest map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &latest); err != nil {
		t.Fatal(err)
	}
	if latest["test_id"] != second.TestID || latest["platform"] != "youtube" {
		t.Errorf("latest = %v", latest)
	}
	if _, ok := latest["personas"]; !ok {
		t.Error("latest should carry the whole state")
	}

	list := decode[RunListResponse](t, env.do(t, http.MethodGet, "/api/v1/runs", nil))
	if list.Total != 2 || list.Runs[0].RunID != second.TestID || list.Runs[1].RunID != first.TestID {
		t.Errorf("runs = %+v", list)
	}

	list = decode[RunListResponse](t, env.do(t, http.MethodGet, "/api/v1/runs?platform=TikTok", nil))
	if list.Total != 1 || list.Runs[0].RunID != first.TestID {
		t.Errorf("filtered runs = %+v", list)
	}

	if rec := env.do(t, http.MethodGet, "/api/v1/runs?limit=zero", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", rec.Code)
	}
}

func TestHandler_PlatformsAndHealth(t *testing.T) {
	env := newTestEnv(t)

	platforms := decode[PlatformsResponse](t, env.do(t, http.MethodGet, "/api/v1/platforms", nil))
	if diff := cmp.Diff([]string{"tiktok", "youtube"}, platforms.Platforms); diff != "" {
		t.Errorf("platforms mismatch (-want +got):\n%s", diff)
	}

	health := decode[HealthResponse](t, env.do(t, http.MethodGet, "/api/v1/health", nil))
	if health.Status != "healthy" || health.Version != Version {
		t.Errorf("health = %+v", health)
	}
}

func TestHandler_Upload(t *testing.T) {
	env := newTestEnv(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "Clip.MP4")
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte("video-bytes"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	up := decode[UploadResponse](t, rec)
	if up.Filename != up.VideoID+".mp4" {
		t.Errorf("filename = %q", up.Filename)
	}
	data, err := os.ReadFile(filepath.Join(env.dir, up.Filename))
	if err != nil || string(data) != "video-bytes" {
		t.Errorf("stored file = %q, %v", data, err)
	}
}

func TestHandler_UploadMissingFile(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/upload", "{}")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
