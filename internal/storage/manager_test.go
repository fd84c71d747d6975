// manager_test.go - Tests for the asset store
package storage

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/teestudio/backend/internal/canvas"
	"github.com/teestudio/backend/internal/models"
)

func createTestStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store
}

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("Failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func TestNewLocalStore(t *testing.T) {
	t.Run("creates asset directory", func(t *testing.T) {
		assetDir := filepath.Join(t.TempDir(), "assets")

		if _, err := NewLocalStore(assetDir); err != nil {
			t.Fatalf("Failed to create store: %v", err)
		}

		if _, err := os.Stat(assetDir); os.IsNotExist(err) {
			t.Error("Expected asset directory to be created")
		}
	})
}

func TestLocalStore_Save(t *testing.T) {
	t.Run("saves file from reader", func(t *testing.T) {
		store := createTestStore(t)
		content := "Hello, World!"

		info, err := store.Save("test.txt", models.AssetUpload, strings.NewReader(content))
		if err != nil {
			t.Fatalf("Failed to save file: %v", err)
		}

		if info.ID == "" {
			t.Error("Expected ID to be set")
		}
		if info.Name != "test.txt" {
			t.Errorf("Expected name 'test.txt', got %v", info.Name)
		}
		if info.Size != int64(len(content)) {
			t.Errorf("Expected size %d, got %d", len(content), info.Size)
		}
		if info.Kind != models.AssetUpload {
			t.Errorf("Expected kind 'upload', got %v", info.Kind)
		}

		data, err := os.ReadFile(filepath.Join(store.assetDir, info.ID))
		if err != nil {
			t.Fatalf("Failed to read saved file: %v", err)
		}
		if string(data) != content {
			t.Errorf("Expected content '%s', got '%s'", content, string(data))
		}
	})

	t.Run("detects png", func(t *testing.T) {
		store := createTestStore(t)

		info, err := store.Save("design.png", models.AssetExport, bytes.NewReader(tinyPNG(t)))
		if err != nil {
			t.Fatalf("Failed to save file: %v", err)
		}
		if info.ContentType != "image/png" {
			t.Errorf("Expected image/png, got %s", info.ContentType)
		}
	})

	t.Run("saves empty file", func(t *testing.T) {
		store := createTestStore(t)

		info, err := store.Save("empty.txt", models.AssetUpload, strings.NewReader(""))
		if err != nil {
			t.Fatalf("Failed to save empty file: %v", err)
		}
		if info.Size != 0 {
			t.Errorf("Expected size 0, got %d", info.Size)
		}
	})
}

func TestLocalStore_SaveDataURL(t *testing.T) {
	store := createTestStore(t)
	raw := tinyPNG(t)

	info, err := store.SaveDataURL("export.png", models.AssetExport, canvas.EncodeDataURL("image/png", raw))
	if err != nil {
		t.Fatalf("Failed to save data URL: %v", err)
	}
	if info.Size != int64(len(raw)) {
		t.Errorf("Expected size %d, got %d", len(raw), info.Size)
	}
	if info.ContentType != "image/png" {
		t.Errorf("Expected image/png, got %s", info.ContentType)
	}

	if _, err := store.SaveDataURL("bad.png", models.AssetExport, "not a data url"); err == nil {
		t.Error("Expected error for malformed data URL")
	}
}

func TestLocalStore_Get(t *testing.T) {
	store := createTestStore(t)

	info, err := store.Save("test.txt", models.AssetUpload, strings.NewReader("content"))
	if err != nil {
		t.Fatalf("Failed to save file: %v", err)
	}

	retrieved, err := store.Get(info.ID)
	if err != nil {
		t.Fatalf("Failed to get file: %v", err)
	}
	if retrieved.ID != info.ID || retrieved.Name != info.Name {
		t.Errorf("Expected %+v, got %+v", info, retrieved)
	}

	_, err = store.Get("non-existent-id")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestLocalStore_List(t *testing.T) {
	store := createTestStore(t)

	ids := make([]string, 4)
	for i := range ids {
		info, err := store.Save("file.txt", models.AssetUpload, strings.NewReader("content"))
		if err != nil {
			t.Fatalf("Failed to save file: %v", err)
		}
		ids[i] = info.ID
		time.Sleep(10 * time.Millisecond)
	}

	all, err := store.List(0)
	if err != nil {
		t.Fatalf("Failed to list files: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("Expected 4 files, got %d", len(all))
	}
	if all[0].ID != ids[3] {
		t.Error("Expected files to be sorted by time descending")
	}

	limited, _ := store.List(2)
	if len(limited) != 2 {
		t.Errorf("Expected 2 files, got %d", len(limited))
	}
}

func TestLocalStore_Delete(t *testing.T) {
	store := createTestStore(t)

	info, err := store.Save("test.txt", models.AssetUpload, strings.NewReader("content"))
	if err != nil {
		t.Fatalf("Failed to save file: %v", err)
	}
	path, err := store.GetFilePath(info.ID)
	if err != nil {
		t.Fatalf("Failed to get path: %v", err)
	}

	if err := store.Delete(info.ID); err != nil {
		t.Fatalf("Failed to delete file: %v", err)
	}
	if _, err := store.Get(info.ID); err == nil {
		t.Error("Expected error when getting deleted file")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Physical file should be deleted")
	}
	if err := store.Delete(info.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestLocalStore_RegisterAndReindex(t *testing.T) {
	dir := t.TempDir()
	first, err := NewLocalStore(dir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	info, err := first.Save("design.png", models.AssetExport, bytes.NewReader(tinyPNG(t)))
	if err != nil {
		t.Fatalf("Failed to save file: %v", err)
	}

	// A fresh store over the same directory starts empty.
	second, _ := NewLocalStore(dir)
	if _, err := second.Get(info.ID); err == nil {
		t.Fatal("Expected empty index before reindex")
	}

	n, err := second.Reindex()
	if err != nil {
		t.Fatalf("Failed to reindex: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 file, got %d", n)
	}
	got, err := second.Get(info.ID)
	if err != nil {
		t.Fatalf("Failed to get reindexed file: %v", err)
	}
	if got.Size != info.Size || got.ContentType != "image/png" {
		t.Errorf("Unexpected metadata %+v", got)
	}

	if _, err := second.RegisterFile("../escape", models.AssetUpload); err == nil {
		t.Error("Expected error for path outside the asset directory")
	}
	if _, err := second.RegisterFile("missing", models.AssetUpload); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
