package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/creceideas/muralla/internal/domain"
)

const schema = `
	CREATE TABLE IF NOT EXISTS images (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		uid       TEXT NOT NULL UNIQUE,
		nombre    TEXT NOT NULL,
		telefono  TEXT NOT NULL DEFAULT '',
		url       TEXT NOT NULL,
		texto     TEXT NOT NULL DEFAULT '',
		estado    INTEGER NOT NULL DEFAULT 1,
		timestamp TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_images_uid ON images (uid);
	CREATE INDEX IF NOT EXISTS idx_images_timestamp ON images (timestamp);`

// Repository implements domain.SubmissionRepository using SQLite.
type Repository struct {
	db *sql.DB

	// mu serializes Create so that assigned timestamps are monotonically
	// non-decreasing in insertion order.
	mu sync.Mutex
}

// NewRepository opens (or creates) the SQLite database at the given path,
// verifies the connection, and ensures the schema exists. The caller should
// call Close when the repository is no longer needed.
func NewRepository(path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Create appends a new submission, assigning its uid, timestamp and
// visible flag. Existing rows are never touched.
func (r *Repository) Create(ctx context.Context, sub *domain.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub.ID = uuid.NewString()
	sub.CreatedAt = time.Now().UTC()
	sub.Visible = true

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO images (uid, nombre, telefono, url, texto, estado, timestamp)
		VALUES (?, ?, ?, ?, ?, 1, ?)`,
		sub.ID,
		sub.SenderName,
		sub.SenderContact,
		sub.MediaURL,
		sub.Caption,
		sub.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

// SetVisibility updates the moderation flag by uid. Setting the current
// value again succeeds without side effects.
func (r *Repository) SetVisibility(ctx context.Context, id string, visible bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE images SET estado = ? WHERE uid = ?`,
		boolToEstado(visible), id,
	)
	if err != nil {
		return fmt.Errorf("update visibility: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListVisible returns visible submissions ordered by timestamp ascending,
// insertion order breaking ties.
func (r *Repository) ListVisible(ctx context.Context) ([]domain.Submission, error) {
	return r.list(ctx, `
		SELECT uid, nombre, telefono, url, texto, estado, timestamp
		FROM images
		WHERE estado = 1
		ORDER BY timestamp ASC, id ASC`)
}

// ListAll returns every submission regardless of flag, same ordering.
func (r *Repository) ListAll(ctx context.Context) ([]domain.Submission, error) {
	return r.list(ctx, `
		SELECT uid, nombre, telefono, url, texto, estado, timestamp
		FROM images
		ORDER BY timestamp ASC, id ASC`)
}

// CountVisible returns the number of currently visible submissions.
func (r *Repository) CountVisible(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM images WHERE estado = 1`,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count visible: %w", err)
	}
	return count, nil
}

func (r *Repository) list(ctx context.Context, query string) ([]domain.Submission, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	subs := []domain.Submission{}
	for rows.Next() {
		var (
			sub    domain.Submission
			estado int
		)
		err := rows.Scan(
			&sub.ID,
			&sub.SenderName,
			&sub.SenderContact,
			&sub.MediaURL,
			&sub.Caption,
			&estado,
			&sub.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		sub.Visible = estado == 1
		subs = append(subs, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return subs, nil
}

func boolToEstado(visible bool) int {
	if visible {
		return 1
	}
	return 0
}
