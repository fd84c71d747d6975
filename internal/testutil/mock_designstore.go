// mock_designstore.go - In-memory design store for testing
package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/teestudio/backend/internal/designstore"
	"github.com/teestudio/backend/internal/models"
)

// MockDesignStore implements designstore.Store in memory with the same
// ownership rules as the SQL stores.
type MockDesignStore struct {
	designs map[string]*models.Design
	mu      sync.RWMutex

	// Err, when set, is returned by every call.
	Err error
}

// NewMockDesignStore creates an empty store
func NewMockDesignStore() *MockDesignStore {
	return &MockDesignStore{designs: make(map[string]*models.Design)}
}

func (m *MockDesignStore) Create(ctx context.Context, d *models.Design) error {
	if m.Err != nil {
		return m.Err
	}
	if d.UserID == "" || d.Name == "" || d.TShirtColor == "" {
		return errors.New("incomplete design")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if d.ID == "" {
		d.ID = generateTestID()
	}
	now := time.Now().UTC()
	d.CreatedAt, d.UpdatedAt = now, now
	m.designs[d.ID] = clone(d)
	return nil
}

func (m *MockDesignStore) Update(ctx context.Context, d *models.Design) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.designs[d.ID]
	if !ok || cur.UserID != d.UserID {
		return designstore.ErrNotFound
	}
	d.CreatedAt = cur.CreatedAt
	d.UpdatedAt = time.Now().UTC()
	m.designs[d.ID] = clone(d)
	return nil
}

func (m *MockDesignStore) Get(ctx context.Context, userID, id string) (*models.Design, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.designs[id]
	if !ok || d.UserID != userID {
		return nil, designstore.ErrNotFound
	}
	return clone(d), nil
}

func (m *MockDesignStore) ListByUser(ctx context.Context, userID string) ([]*models.Design, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Design
	for _, d := range m.designs {
		if d.UserID == userID {
			out = append(out, clone(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m *MockDesignStore) Delete(ctx context.Context, userID, id string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.designs[id]
	if !ok || d.UserID != userID {
		return designstore.ErrNotFound
	}
	delete(m.designs, id)
	return nil
}

func (m *MockDesignStore) Close() error { return nil }

// Count returns the number of stored designs
func (m *MockDesignStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.designs)
}

var _ designstore.Store = (*MockDesignStore)(nil)

func clone(d *models.Design) *models.Design {
	cp := *d
	if d.Answers != nil {
		cp.Answers = make(map[string]string, len(d.Answers))
		for k, v := range d.Answers {
			cp.Answers[k] = v
		}
	}
	return &cp
}
