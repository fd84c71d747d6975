package generate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teestudio/backend/internal/canvas"
	"github.com/teestudio/backend/internal/models"
)

type generatorFunc func(ctx context.Context, prompt string) ([]byte, error)

func (f generatorFunc) Generate(ctx context.Context, prompt string) ([]byte, error) {
	return f(ctx, prompt)
}

type fakeLoader struct {
	mu      sync.Mutex
	sources []canvas.Source
	busy    int
	err     error
}

func (l *fakeLoader) LoadImage(_ context.Context, _ string, src canvas.Source) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.busy > 0 {
		l.busy--
		return canvas.ErrBusy
	}
	if l.err != nil {
		return l.err
	}
	l.sources = append(l.sources, src)
	return nil
}

func (l *fakeLoader) loaded() []canvas.Source {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]canvas.Source(nil), l.sources...)
}

func okGenerator() Generator {
	return generatorFunc(func(context.Context, string) ([]byte, error) {
		return fakePNG, nil
	})
}

func waitDone(t *testing.T, m *Manager, id string) models.GenerationJob {
	t.Helper()
	var job models.GenerationJob
	require.Eventually(t, func() bool {
		j, ok := m.GetJob(id)
		job = j
		return ok && j.Done()
	}, 2*time.Second, 10*time.Millisecond)
	return job
}

func TestManagerJobLifecycle(t *testing.T) {
	t.Run("success loads generated image", func(t *testing.T) {
		loader := &fakeLoader{}
		m := NewManager(okGenerator(), loader)
		defer m.Close()

		job, err := m.StartJob("session-1", "a fox")
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusPending, job.Status)
		assert.Equal(t, "session-1", job.SessionID)

		done := waitDone(t, m, job.ID)
		assert.Equal(t, models.JobStatusComplete, done.Status)
		assert.Empty(t, done.Error)
		assert.GreaterOrEqual(t, done.EndTime, done.StartTime)

		srcs := loader.loaded()
		require.Len(t, srcs, 1)
		assert.Equal(t, canvas.OriginGenerated, srcs[0].Origin)
		assert.True(t, strings.HasPrefix(srcs[0].Value, "data:image/png;base64,"))
	})

	t.Run("generator failure", func(t *testing.T) {
		loader := &fakeLoader{}
		m := NewManager(generatorFunc(func(context.Context, string) ([]byte, error) {
			return nil, errors.New("model offline")
		}), loader)
		defer m.Close()

		job, err := m.StartJob("s", "x")
		require.NoError(t, err)
		done := waitDone(t, m, job.ID)
		assert.Equal(t, models.JobStatusError, done.Status)
		assert.Contains(t, done.Error, "model offline")
		assert.Empty(t, loader.loaded())
	})

	t.Run("busy canvas is retried", func(t *testing.T) {
		loader := &fakeLoader{busy: 2}
		m := NewManager(okGenerator(), loader)
		defer m.Close()

		job, _ := m.StartJob("s", "x")
		done := waitDone(t, m, job.ID)
		assert.Equal(t, models.JobStatusComplete, done.Status)
		assert.Len(t, loader.loaded(), 1)
	})

	t.Run("duplicate image counts as loaded", func(t *testing.T) {
		m := NewManager(okGenerator(), &fakeLoader{err: canvas.ErrDuplicateSource})
		defer m.Close()

		job, _ := m.StartJob("s", "x")
		assert.Equal(t, models.JobStatusComplete, waitDone(t, m, job.ID).Status)
	})

	t.Run("load failure", func(t *testing.T) {
		m := NewManager(okGenerator(), &fakeLoader{err: canvas.ErrImageDecode})
		defer m.Close()

		job, _ := m.StartJob("s", "x")
		done := waitDone(t, m, job.ID)
		assert.Equal(t, models.JobStatusError, done.Status)
		assert.Contains(t, done.Error, "loading image")
	})
}

func TestManagerStartJobValidation(t *testing.T) {
	m := NewManager(okGenerator(), &fakeLoader{})
	defer m.Close()

	_, err := m.StartJob("s", "   ")
	assert.ErrorIs(t, err, ErrEmptyPrompt)

	_, ok := m.GetJob("missing")
	assert.False(t, ok)
}

func TestManagerCloseCancelsJobs(t *testing.T) {
	started := make(chan struct{})
	m := NewManager(generatorFunc(func(ctx context.Context, _ string) ([]byte, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}), &fakeLoader{})

	job, err := m.StartJob("s", "slow")
	require.NoError(t, err)
	<-started
	m.Close()

	got, ok := m.GetJob(job.ID)
	require.True(t, ok)
	assert.Equal(t, models.JobStatusError, got.Status)

	_, err = m.StartJob("s", "after close")
	assert.Error(t, err)
}

func TestCleanupOldJobs(t *testing.T) {
	m := NewManager(okGenerator(), &fakeLoader{})
	defer m.Close()

	job, _ := m.StartJob("s", "x")
	waitDone(t, m, job.ID)

	assert.Equal(t, 0, m.CleanupOldJobs(time.Hour))
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 1, m.CleanupOldJobs(time.Millisecond))
	_, ok := m.GetJob(job.ID)
	assert.False(t, ok)
}
