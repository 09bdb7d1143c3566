package files

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helixhealth/helix-portal/internal/shared"
)

// Repository provides PostgreSQL backed persistence for the picture
// ownership column.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetPicturePath returns the stored picture filename, empty when none.
func (r *Repository) GetPicturePath(ctx context.Context, userID string) (string, error) {
	var name string
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(picture_path, '') FROM users WHERE id = $1`, userID,
	).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", shared.ErrNotFound
		}
		return "", fmt.Errorf("files: get picture path: %w", err)
	}
	return name, nil
}

// SetPicturePath repoints the user record at a new upload.
func (r *Repository) SetPicturePath(ctx context.Context, userID, name string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET picture_path = $2, updated_at = NOW() WHERE id = $1`, userID, name,
	)
	if err != nil {
		return fmt.Errorf("files: set picture path: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ClearPicturePath removes the picture reference from the user record.
func (r *Repository) ClearPicturePath(ctx context.Context, userID string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET picture_path = NULL, updated_at = NOW() WHERE id = $1`, userID,
	)
	if err != nil {
		return fmt.Errorf("files: clear picture path: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ PictureStore = (*Repository)(nil)
