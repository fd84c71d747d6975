package designstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/marcboeker/go-duckdb"
)

// DuckStore keeps designs in a DuckDB file.
type DuckStore struct {
	sqlStore
}

// NewDuckStore opens or creates the database at dbPath. An empty path opens
// an in-memory database.
func NewDuckStore(dbPath string) (*DuckStore, error) {
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		pragmas := []string{
			"PRAGMA memory_limit='256MB'",
			"PRAGMA threads=2",
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				slog.Warn("duckdb pragma failed", "pragma", pragma, "error", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	s := &DuckStore{
		sqlStore: sqlStore{db: sql.OpenDB(connector), now: time.Now},
	}
	if err := s.migrate(); err != nil {
		s.db.Close()
		return nil, err
	}
	slog.Info("design store opened", "driver", DriverDuckDB, "path", dbPath)
	return s, nil
}
