// Package designstore persists saved designs for signed-in users.
package designstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/teestudio/backend/internal/models"
)

// ErrNotFound is returned when a design does not exist. Designs owned by
// another user are reported the same way.
var ErrNotFound = errors.New("design not found")

// Store defines design record persistence.
type Store interface {
	Create(ctx context.Context, d *models.Design) error
	Update(ctx context.Context, d *models.Design) error
	Get(ctx context.Context, userID, id string) (*models.Design, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Design, error)
	Delete(ctx context.Context, userID, id string) error
	Close() error
}

// Drivers accepted by Open.
const (
	DriverDuckDB = "duckdb"
	DriverSQLite = "sqlite"
)

// Open opens the store for driver at path.
func Open(driver, path string) (Store, error) {
	switch driver {
	case DriverDuckDB:
		return NewDuckStore(path)
	case DriverSQLite, "sqlite3":
		return NewSQLiteStore(path)
	}
	return nil, fmt.Errorf("unknown design store driver %q", driver)
}

const schema = `
	CREATE TABLE IF NOT EXISTS designs (
		id              VARCHAR PRIMARY KEY,
		user_id         VARCHAR NOT NULL,
		name            VARCHAR NOT NULL,
		tshirt_color    VARCHAR NOT NULL,
		image_asset_id  VARCHAR NOT NULL DEFAULT '',
		image_url       VARCHAR NOT NULL DEFAULT '',
		mockup_asset_id VARCHAR NOT NULL DEFAULT '',
		prompt          VARCHAR NOT NULL DEFAULT '',
		answers         VARCHAR NOT NULL DEFAULT '',
		created_at      BIGINT NOT NULL,
		updated_at      BIGINT NOT NULL
	)`

const columns = `id, user_id, name, tshirt_color, image_asset_id, image_url,
	mockup_asset_id, prompt, answers, created_at, updated_at`

// sqlStore holds the SQL both backends share; they differ only in how the
// database is opened.
type sqlStore struct {
	db  *sql.DB
	now func() time.Time
}

func (s *sqlStore) migrate() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("creating designs table: %w", err)
	}
	if _, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_designs_user ON designs(user_id)`); err != nil {
		return fmt.Errorf("creating designs index: %w", err)
	}
	return nil
}

func validate(d *models.Design) error {
	if d.UserID == "" {
		return errors.New("design has no owner")
	}
	if d.Name == "" {
		return errors.New("design name is required")
	}
	if d.TShirtColor == "" {
		return errors.New("t-shirt colour is required")
	}
	return nil
}

// Create inserts d, assigning ID and timestamps.
func (s *sqlStore) Create(ctx context.Context, d *models.Design) error {
	if err := validate(d); err != nil {
		return err
	}
	answers, err := encodeAnswers(d.Answers)
	if err != nil {
		return err
	}
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	now := s.now().UTC().Truncate(time.Millisecond)
	d.CreatedAt, d.UpdatedAt = now, now

	_, err = s.db.ExecContext(ctx, `INSERT INTO designs (`+columns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.UserID, d.Name, d.TShirtColor, d.ImageAssetID, d.ImageURL,
		d.MockupAssetID, d.Prompt, answers, now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return fmt.Errorf("inserting design: %w", err)
	}
	return nil
}

// Update replaces the mutable fields of a design owned by d.UserID.
func (s *sqlStore) Update(ctx context.Context, d *models.Design) error {
	if err := validate(d); err != nil {
		return err
	}
	answers, err := encodeAnswers(d.Answers)
	if err != nil {
		return err
	}
	now := s.now().UTC().Truncate(time.Millisecond)

	res, err := s.db.ExecContext(ctx, `UPDATE designs SET
			name = ?, tshirt_color = ?, image_asset_id = ?, image_url = ?,
			mockup_asset_id = ?, prompt = ?, answers = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		d.Name, d.TShirtColor, d.ImageAssetID, d.ImageURL,
		d.MockupAssetID, d.Prompt, answers, now.UnixMilli(),
		d.ID, d.UserID)
	if err != nil {
		return fmt.Errorf("updating design: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	d.UpdatedAt = now
	return nil
}

// Get returns the design if it belongs to userID.
func (s *sqlStore) Get(ctx context.Context, userID, id string) (*models.Design, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM designs
		WHERE id = ? AND user_id = ?`, id, userID)
	d, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return d, err
}

// ListByUser returns the user's designs, most recently updated first.
func (s *sqlStore) ListByUser(ctx context.Context, userID string) ([]*models.Design, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+columns+` FROM designs
		WHERE user_id = ? ORDER BY updated_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing designs: %w", err)
	}
	defer rows.Close()

	list := make([]*models.Design, 0)
	for rows.Next() {
		d, err := scan(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	return list, rows.Err()
}

// Delete removes a design owned by userID.
func (s *sqlStore) Delete(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM designs WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting design: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the database.
func (s *sqlStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(r scanner) (*models.Design, error) {
	var (
		d                models.Design
		answers          string
		created, updated int64
	)
	err := r.Scan(&d.ID, &d.UserID, &d.Name, &d.TShirtColor, &d.ImageAssetID, &d.ImageURL,
		&d.MockupAssetID, &d.Prompt, &answers, &created, &updated)
	if err != nil {
		return nil, err
	}
	if answers != "" {
		if err := json.Unmarshal([]byte(answers), &d.Answers); err != nil {
			return nil, fmt.Errorf("decoding answers of design %s: %w", d.ID, err)
		}
	}
	d.CreatedAt = time.UnixMilli(created).UTC()
	d.UpdatedAt = time.UnixMilli(updated).UTC()
	return &d, nil
}

func encodeAnswers(a map[string]string) (string, error) {
	if len(a) == 0 {
		return "", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("encoding answers: %w", err)
	}
	return string(b), nil
}
