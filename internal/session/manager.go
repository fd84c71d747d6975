package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/teestudio/backend/internal/canvas"
	"github.com/teestudio/backend/internal/models"
)

// DefaultMaxSessions limits concurrent sessions; each one holds a scene and
// its cached frames in memory.
const DefaultMaxSessions = 50

// SessionMaxAge is how long an untouched session survives cleanup.
const SessionMaxAge = 30 * time.Minute

// ErrNotFound is returned for unknown or expired sessions.
var ErrNotFound = errors.New("session not found")

// Manager owns the live design sessions. Each session exclusively owns one
// canvas engine.
type Manager struct {
	sessions    map[string]*State
	mu          sync.RWMutex
	maxSessions int

	optsMu     sync.RWMutex
	canvasOpts canvas.Options
}

// State is one design session.
type State struct {
	Info         models.SessionInfo
	Engine       *canvas.Engine
	LastAccessed time.Time

	events *hub
}

// NewManager creates a session manager. maxSessions <= 0 uses
// DefaultMaxSessions.
func NewManager(maxSessions int, opts canvas.Options) *Manager {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	return &Manager{
		sessions:    make(map[string]*State),
		maxSessions: maxSessions,
		canvasOpts:  opts,
	}
}

// SetCanvasOptions changes the engine tuning used by sessions created from
// now on. Live sessions keep theirs.
func (m *Manager) SetCanvasOptions(opts canvas.Options) {
	m.optsMu.Lock()
	defer m.optsMu.Unlock()
	m.canvasOpts = opts
}

// CanvasOptions returns the tuning for new sessions.
func (m *Manager) CanvasOptions() canvas.Options {
	m.optsMu.RLock()
	defer m.optsMu.RUnlock()
	return m.canvasOpts
}

// Create starts a session with an initialised canvas.
func (m *Manager) Create(width, height int, background, shirtColor string) (*models.SessionInfo, error) {
	if _, err := canvas.ParseColor(shirtColor); err != nil {
		return nil, fmt.Errorf("%w: shirt %v", canvas.ErrInvalidMutation, err)
	}

	id := uuid.New().String()
	now := time.Now()
	state := &State{
		Info: models.SessionInfo{
			ID:         id,
			Width:      width,
			Height:     height,
			Background: background,
			ShirtColor: shirtColor,
			CreatedAt:  now,
		},
		LastAccessed: now,
		events:       newHub(),
	}

	publish := func(ev Event) {
		ev.SessionID = id
		state.events.publish(ev)
	}
	state.Engine = canvas.New(m.CanvasOptions(), canvas.Callbacks{
		OnReady: func(*canvas.Engine) {
			publish(Event{Type: EventReady})
		},
		OnDesignChanged: func(dataURL string) {
			publish(Event{Type: EventDesignChanged, DataURL: dataURL})
		},
		OnImageLoaded: func() {
			publish(Event{Type: EventImageLoaded})
		},
		OnError: func(reason string) {
			publish(Event{Type: EventImageError, Reason: reason})
		},
	})

	if err := state.Engine.Initialize(width, height, background); err != nil {
		state.Engine.Close()
		return nil, err
	}

	m.mu.Lock()
	m.evictIfNeeded()
	m.sessions[id] = state
	m.mu.Unlock()

	slog.Info("session created", "session", shortID(id), "width", width, "height", height)
	info := state.Info
	info.LastAccessed = now
	return &info, nil
}

// evictIfNeeded drops the least recently used sessions until there is room
// for one more; mu must be held.
func (m *Manager) evictIfNeeded() {
	if len(m.sessions) < m.maxSessions {
		return
	}
	states := make([]*State, 0, len(m.sessions))
	for _, s := range m.sessions {
		states = append(states, s)
	}
	sort.Slice(states, func(i, j int) bool {
		return states[i].LastAccessed.Before(states[j].LastAccessed)
	})
	for _, s := range states[:len(m.sessions)-m.maxSessions+1] {
		m.teardown(s)
		slog.Info("evicted session to stay under limit", "session", shortID(s.Info.ID))
	}
}

// teardown closes the engine and subscribers; mu must be held.
func (m *Manager) teardown(s *State) {
	delete(m.sessions, s.Info.ID)
	s.Engine.Close()
	s.events.close()
}

// Get returns the session and marks it accessed.
func (m *Manager) Get(id string) (*State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if ok {
		s.LastAccessed = time.Now()
	}
	return s, ok
}

// Engine returns the session's canvas engine and marks it accessed.
func (m *Manager) Engine(id string) (*canvas.Engine, error) {
	s, ok := m.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.Engine, nil
}

// Info returns the session metadata.
func (m *Manager) Info(id string) (models.SessionInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return models.SessionInfo{}, false
	}
	info := s.Info
	info.LastAccessed = s.LastAccessed
	return info, true
}

// Touch extends the session's lifetime.
func (m *Manager) Touch(id string) bool {
	_, ok := m.Get(id)
	return ok
}

// Delete tears the session down. In-flight image loads are discarded and no
// further events are delivered.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return false
	}
	m.teardown(s)
	slog.Info("session deleted", "session", shortID(id))
	return true
}

// Subscribe returns a channel of the session's events and a func that ends
// the subscription. The channel is closed when the session goes away.
func (m *Manager) Subscribe(id string) (<-chan Event, func(), error) {
	s, ok := m.Get(id)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	ch, cancel := s.events.subscribe()
	return ch, cancel, nil
}

// LoadImage loads src into the session's canvas.
func (m *Manager) LoadImage(ctx context.Context, id string, src canvas.Source) error {
	e, err := m.Engine(id)
	if err != nil {
		return err
	}
	return e.LoadImage(ctx, src)
}

// List returns all live sessions, most recently accessed first.
func (m *Manager) List() []models.SessionInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := make([]models.SessionInfo, 0, len(m.sessions))
	for _, s := range m.sessions {
		info := s.Info
		info.LastAccessed = s.LastAccessed
		list = append(list, info)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].LastAccessed.After(list[j].LastAccessed)
	})
	return list
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CleanupOldSessions removes sessions not accessed within maxAge and returns
// how many were removed.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, s := range m.sessions {
		if s.LastAccessed.Before(cutoff) {
			m.teardown(s)
			removed++
			slog.Info("cleaned up idle session", "session", shortID(id),
				"idle", time.Since(s.LastAccessed).Round(time.Second))
		}
	}
	return removed
}

// Close tears down every session.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		m.teardown(s)
	}
}
