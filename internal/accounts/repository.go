package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helixhealth/helix-portal/internal/shared"
)

// Repository provides PostgreSQL backed persistence for accounts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const uniqueViolation = "23505"

const userColumns = `id, username, email, password_hash, first_name, last_name, activated,
	COALESCE(picture_path, ''), COALESCE(invite_token_hash, ''), invite_token_expires,
	COALESCE(reset_token_hash, ''), reset_token_expires, created_at, updated_at`

// Create inserts a new user together with its invite token slot.
func (r *Repository) Create(ctx context.Context, user User) error {
	query := `
		INSERT INTO users (
			id, username, email, password_hash, first_name, last_name,
			activated, invite_token_hash, invite_token_expires, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())`

	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Activated,
		user.InviteTokenHash,
		user.InviteTokenExpires,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return shared.ErrConflict
		}
		return fmt.Errorf("accounts: create user: %w", err)
	}
	return nil
}

// UsernameOrEmailTaken reports whether another user already holds the
// exact username or email.
func (r *Repository) UsernameOrEmailTaken(ctx context.Context, username, email string) (bool, error) {
	var taken bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE username = $1 OR email = $2)`,
		username, email,
	).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("accounts: uniqueness check: %w", err)
	}
	return taken, nil
}

// FindByID fetches a user by id.
func (r *Repository) FindByID(ctx context.Context, id string) (*User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// FindByUsername fetches a user by exact username.
func (r *Repository) FindByUsername(ctx context.Context, username string) (*User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

// FindByEmail fetches a user by exact email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *Repository) findOne(ctx context.Context, query string, arg any) (*User, error) {
	var (
		user          User
		inviteExpires pgtype.Timestamptz
		resetExpires  pgtype.Timestamptz
	)
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.Activated,
		&user.PicturePath,
		&user.InviteTokenHash,
		&inviteExpires,
		&user.ResetTokenHash,
		&resetExpires,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("accounts: find user: %w", err)
	}
	user.InviteTokenExpires = inviteExpires.Time
	user.ResetTokenExpires = resetExpires.Time
	return &user, nil
}

// Update applies non-nil patch fields and returns the merged record.
func (r *Repository) Update(ctx context.Context, id string, patch UpdateUserInput, passwordHash string) (*User, error) {
	query := `
		UPDATE users SET
			username = COALESCE($2, username),
			email = COALESCE($3, email),
			first_name = COALESCE($4, first_name),
			last_name = COALESCE($5, last_name),
			password_hash = COALESCE($6, password_hash),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	var hashArg pgtype.Text
	if passwordHash != "" {
		hashArg = pgtype.Text{String: passwordHash, Valid: true}
	}

	var (
		user          User
		inviteExpires pgtype.Timestamptz
		resetExpires  pgtype.Timestamptz
	)
	err := r.pool.QueryRow(ctx, query,
		id,
		textOrNull(patch.Username),
		textOrNull(patch.Email),
		textOrNull(patch.FirstName),
		textOrNull(patch.LastName),
		hashArg,
	).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.Activated,
		&user.PicturePath,
		&user.InviteTokenHash,
		&inviteExpires,
		&user.ResetTokenHash,
		&resetExpires,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, shared.ErrConflict
		}
		return nil, fmt.Errorf("accounts: update user: %w", err)
	}
	user.InviteTokenExpires = inviteExpires.Time
	user.ResetTokenExpires = resetExpires.Time
	return &user, nil
}

// SetResetToken stores (and supersedes) the reset token slot.
func (r *Repository) SetResetToken(ctx context.Context, id, tokenHash string, expires time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET reset_token_hash = $2, reset_token_expires = $3, updated_at = NOW() WHERE id = $1`,
		id, tokenHash, expires,
	)
	if err != nil {
		return fmt.Errorf("accounts: set reset token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ConsumeInviteToken redeems an invite token: in one statement it sets
// the initial password, flips activation, and clears the slot. The
// predicate on the stored hash and expiry makes concurrent redeemers
// race safely; only one UPDATE matches.
func (r *Repository) ConsumeInviteToken(ctx context.Context, tokenHash, passwordHash string) (string, error) {
	query := `
		UPDATE users SET
			password_hash = $2,
			activated = TRUE,
			invite_token_hash = NULL,
			invite_token_expires = NULL,
			updated_at = NOW()
		WHERE invite_token_hash = $1 AND invite_token_expires > NOW()
		RETURNING id`

	var id string
	if err := r.pool.QueryRow(ctx, query, tokenHash, passwordHash).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", shared.ErrToken
		}
		return "", fmt.Errorf("accounts: consume invite token: %w", err)
	}
	return id, nil
}

// ConsumeResetToken redeems a reset token, changing the password and
// clearing the slot atomically.
func (r *Repository) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string) (string, error) {
	query := `
		UPDATE users SET
			password_hash = $2,
			reset_token_hash = NULL,
			reset_token_expires = NULL,
			updated_at = NOW()
		WHERE reset_token_hash = $1 AND reset_token_expires > NOW()
		RETURNING id`

	var id string
	if err := r.pool.QueryRow(ctx, query, tokenHash, passwordHash).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", shared.ErrToken
		}
		return "", fmt.Errorf("accounts: consume reset token: %w", err)
	}
	return id, nil
}

func textOrNull(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}

var _ RepositoryPort = (*Repository)(nil)
