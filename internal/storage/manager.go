package storage

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/teestudio/backend/internal/canvas"
	"github.com/teestudio/backend/internal/models"
)

// ErrNotFound is returned for unknown asset ids.
var ErrNotFound = errors.New("asset not found")

// Store defines the interface for image asset storage.
type Store interface {
	Save(name, kind string, r io.Reader) (*models.FileInfo, error)
	SaveDataURL(name, kind, dataURL string) (*models.FileInfo, error)
	Get(id string) (*models.FileInfo, error)
	List(limit int) ([]*models.FileInfo, error)
	Delete(id string) error
	GetFilePath(id string) (string, error)
	RegisterFile(id, kind string) (*models.FileInfo, error)
}

// LocalStore implements Store using the local filesystem. Metadata lives in
// memory; Reindex rebuilds it from disk after a restart.
type LocalStore struct {
	mu       sync.RWMutex
	assetDir string
	files    map[string]*models.FileInfo
}

// NewLocalStore creates a new LocalStore.
func NewLocalStore(assetDir string) (*LocalStore, error) {
	if err := os.MkdirAll(assetDir, 0755); err != nil {
		return nil, fmt.Errorf("creating asset directory: %w", err)
	}

	return &LocalStore{
		assetDir: assetDir,
		files:    make(map[string]*models.FileInfo),
	}, nil
}

// Save writes r to disk under a fresh id.
func (s *LocalStore) Save(name, kind string, r io.Reader) (*models.FileInfo, error) {
	id := uuid.New().String()
	path := filepath.Join(s.assetDir, id)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	br := bufio.NewReaderSize(r, 512)
	head, _ := br.Peek(512)
	contentType := http.DetectContentType(head)

	size, err := io.Copy(f, br)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing file: %w", err)
	}

	info := &models.FileInfo{
		ID:          id,
		Name:        name,
		Size:        size,
		ContentType: contentType,
		Kind:        kind,
		UploadedAt:  time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[id] = info

	return info, nil
}

// SaveDataURL stores the payload of a base64 data URL, such as a canvas export.
func (s *LocalStore) SaveDataURL(name, kind, dataURL string) (*models.FileInfo, error) {
	data, err := canvas.DecodeDataURL(dataURL)
	if err != nil {
		return nil, fmt.Errorf("decoding data URL: %w", err)
	}
	return s.Save(name, kind, bytes.NewReader(data))
}

// Get retrieves asset metadata by ID.
func (s *LocalStore) Get(id string) (*models.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return info, nil
}

// List returns the most recent assets.
func (s *LocalStore) List(limit int) ([]*models.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var list []*models.FileInfo
	for _, info := range s.files {
		list = append(list, info)
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].UploadedAt.After(list[j].UploadedAt)
	})

	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}

	return list, nil
}

// Delete removes an asset from storage.
func (s *LocalStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	path := filepath.Join(s.assetDir, id)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}

	delete(s.files, id)
	return nil
}

// GetFilePath returns the absolute path to an asset.
func (s *LocalStore) GetFilePath(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.files[id]; !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return filepath.Join(s.assetDir, id), nil
}

// RegisterFile indexes a file that already sits in the asset directory.
func (s *LocalStore) RegisterFile(id, kind string) (*models.FileInfo, error) {
	if id == "" || id != filepath.Base(id) {
		return nil, fmt.Errorf("invalid asset id %q", id)
	}
	path := filepath.Join(s.assetDir, id)
	st, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	head := make([]byte, 512)
	n, _ := io.ReadFull(f, head)

	info := &models.FileInfo{
		ID:          id,
		Name:        id,
		Size:        st.Size(),
		ContentType: http.DetectContentType(head[:n]),
		Kind:        kind,
		UploadedAt:  st.ModTime(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[id] = info
	return info, nil
}

// Reindex registers every regular file in the asset directory and returns
// how many were found.
func (s *LocalStore) Reindex() (int, error) {
	entries, err := os.ReadDir(s.assetDir)
	if err != nil {
		return 0, fmt.Errorf("reading asset directory: %w", err)
	}
	n := 0
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if _, err := s.RegisterFile(e.Name(), models.AssetUpload); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
