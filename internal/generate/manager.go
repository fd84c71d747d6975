package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/teestudio/backend/internal/canvas"
	"github.com/teestudio/backend/internal/models"
)

// Generator produces image bytes for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
}

// Loader places an image into a session's canvas.
type Loader interface {
	LoadImage(ctx context.Context, sessionID string, src canvas.Source) error
}

// Load retry tuning: a busy canvas is retried this many times.
const (
	loadRetries = 10
	loadBackoff = 100 * time.Millisecond
)

// Manager runs generation jobs asynchronously.
type Manager struct {
	jobs   map[string]*models.GenerationJob
	mu     sync.RWMutex
	gen    Generator
	loader Loader

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a job manager.
func NewManager(gen Generator, loader Loader) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		jobs:   make(map[string]*models.GenerationJob),
		gen:    gen,
		loader: loader,
		ctx:    ctx,
		cancel: cancel,
	}
}

// StartJob begins async generation for a session and returns a snapshot of
// the new job.
func (m *Manager) StartJob(sessionID, prompt string) (models.GenerationJob, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return models.GenerationJob{}, ErrEmptyPrompt
	}
	if m.ctx.Err() != nil {
		return models.GenerationJob{}, errors.New("generate: manager closed")
	}

	job := models.NewGenerationJob(uuid.New().String(), sessionID, prompt)
	job.StartTime = time.Now().UnixMilli()

	m.mu.Lock()
	m.jobs[job.ID] = job
	snap := *job
	m.mu.Unlock()

	m.wg.Add(1)
	go m.processJob(job)

	return snap, nil
}

// GetJob retrieves a snapshot of a job by ID.
func (m *Manager) GetJob(id string) (models.GenerationJob, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return models.GenerationJob{}, false
	}
	return *job, true
}

func (m *Manager) processJob(job *models.GenerationJob) {
	defer m.wg.Done()
	log := slog.With("job", job.ID[:8], "session", job.SessionID)
	log.Info("generation started")

	m.setStatus(job, models.JobStatusGenerating)
	img, err := m.gen.Generate(m.ctx, job.Prompt)
	if err != nil {
		m.fail(job, fmt.Sprintf("generation failed: %v", err))
		return
	}

	m.setStatus(job, models.JobStatusLoading)
	src := canvas.Source{
		Value:  canvas.EncodeDataURL(http.DetectContentType(img), img),
		Origin: canvas.OriginGenerated,
	}
	if err := m.load(job.SessionID, src); err != nil {
		m.fail(job, fmt.Sprintf("loading image: %v", err))
		return
	}

	m.complete(job)
	log.Info("generation complete", "bytes", len(img))
}

// load retries while the canvas is busy with another mutation. A duplicate
// source means the image is already on the canvas.
func (m *Manager) load(sessionID string, src canvas.Source) error {
	for i := 0; ; i++ {
		err := m.loader.LoadImage(m.ctx, sessionID, src)
		switch {
		case err == nil, errors.Is(err, canvas.ErrDuplicateSource):
			return nil
		case !errors.Is(err, canvas.ErrBusy) || i == loadRetries:
			return err
		}
		select {
		case <-m.ctx.Done():
			return m.ctx.Err()
		case <-time.After(loadBackoff):
		}
	}
}

func (m *Manager) setStatus(job *models.GenerationJob, status models.JobStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job.Status = status
}

func (m *Manager) complete(job *models.GenerationJob) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job.Status = models.JobStatusComplete
	m.finish(job)
}

func (m *Manager) fail(job *models.GenerationJob, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job.Status = models.JobStatusError
	job.Error = msg
	m.finish(job)
	slog.Warn("generation failed", "job", job.ID[:8], "error", msg)
}

// finish stamps timing; mu must be held.
func (m *Manager) finish(job *models.GenerationJob) {
	job.EndTime = time.Now().UnixMilli()
	job.ProcessingTimeMs = job.EndTime - job.StartTime
}

// CleanupOldJobs removes finished jobs older than maxAge.
func (m *Manager) CleanupOldJobs(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge).UnixMilli()
	removed := 0
	for id, job := range m.jobs {
		if job.Done() && job.EndTime < cutoff {
			delete(m.jobs, id)
			removed++
		}
	}
	return removed
}

// Close cancels running jobs and waits for them to stop.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}
