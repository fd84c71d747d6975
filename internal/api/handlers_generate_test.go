package api

import (
	"context"
	"image/color"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teestudio/backend/internal/canvas"
	"github.com/teestudio/backend/internal/generate"
	"github.com/teestudio/backend/internal/models"
	"github.com/teestudio/backend/internal/testutil"
)

// fakeJobs records started jobs without running them.
type fakeJobs struct {
	mu   sync.Mutex
	jobs map[string]models.GenerationJob
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{jobs: make(map[string]models.GenerationJob)}
}

func (f *fakeJobs) StartJob(sessionID, prompt string) (models.GenerationJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job := *models.NewGenerationJob("job-1", sessionID, prompt)
	f.jobs[job.ID] = job
	return job, nil
}

func (f *fakeJobs) GetJob(id string) (models.GenerationJob, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	return job, ok
}

func TestGenerateHandler(t *testing.T) {
	jobs := newFakeJobs()
	s := newTestServer(t, func(d *Dependencies) { d.Jobs = jobs })
	sid := s.createSession(t).ID

	rec := s.do(t, http.MethodPost, "/api/sessions/"+sid+"/generate", generateRequest{Prompt: "a red fox"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	resp := decodeJSON[map[string]string](t, rec)
	assert.Equal(t, "job-1", resp["jobId"])
	assert.Equal(t, string(models.JobStatusPending), resp["status"])

	rec = s.do(t, http.MethodGet, "/api/generate/job-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	job := decodeJSON[models.GenerationJob](t, rec)
	assert.Equal(t, sid, job.SessionID)
	assert.Equal(t, "a red fox", job.Prompt)

	rec = s.do(t, http.MethodGet, "/api/generate/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/sessions/"+sid+"/generate", generateRequest{Prompt: "   "})
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))

	rec = s.do(t, http.MethodPost, "/api/sessions/missing/generate", generateRequest{Prompt: "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGenerateHandler_NotConfigured(t *testing.T) {
	s := newTestServer(t)
	sid := s.createSession(t).ID

	rec := s.do(t, http.MethodPost, "/api/sessions/"+sid+"/generate", generateRequest{Prompt: "x"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/generate/any", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type generatorFunc func(ctx context.Context, prompt string) ([]byte, error)

func (f generatorFunc) Generate(ctx context.Context, prompt string) ([]byte, error) {
	return f(ctx, prompt)
}

func TestGenerateHandler_LandsOnCanvas(t *testing.T) {
	art := testutil.PNGBytes(t, 64, 64, color.RGBA{G: 200, A: 255})
	s := newTestServer(t, func(d *Dependencies) {
		gen := generatorFunc(func(ctx context.Context, prompt string) ([]byte, error) {
			return art, nil
		})
		mgr := generate.NewManager(gen, d.Sessions.(generate.Loader))
		t.Cleanup(mgr.Close)
		d.Jobs = mgr
	})
	sid := s.createSession(t).ID

	rec := s.do(t, http.MethodPost, "/api/sessions/"+sid+"/generate", generateRequest{Prompt: "green square"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	jobID := decodeJSON[map[string]string](t, rec)["jobId"]

	require.Eventually(t, func() bool {
		rec := s.do(t, http.MethodGet, "/api/generate/"+jobID, nil)
		return decodeJSON[models.GenerationJob](t, rec).Status == models.JobStatusComplete
	}, 2*time.Second, 20*time.Millisecond)

	scene := decodeJSON[canvas.Snapshot](t, s.do(t, http.MethodGet, "/api/sessions/"+sid+"/scene", nil))
	assert.Equal(t, 1, countRole(scene.Objects, "main-image"))
	assert.Equal(t, 0, countRole(scene.Objects, "placeholder"))
}
