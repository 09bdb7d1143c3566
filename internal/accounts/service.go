package accounts

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/helixhealth/helix-portal/internal/shared"
	"github.com/helixhealth/helix-portal/internal/token"
)

// RepositoryPort defines data access methods for accounts.
type RepositoryPort interface {
	Create(ctx context.Context, user User) error
	UsernameOrEmailTaken(ctx context.Context, username, email string) (bool, error)
	FindByID(ctx context.Context, id string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, id string, patch UpdateUserInput, passwordHash string) (*User, error)
	SetResetToken(ctx context.Context, id, tokenHash string, expires time.Time) error
	ConsumeInviteToken(ctx context.Context, tokenHash, passwordHash string) (string, error)
	ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string) (string, error)
}

// Mailer delivers account lifecycle emails. The raw token travels only
// inside the link; implementations must not log it.
type Mailer interface {
	SendActivation(ctx context.Context, to, firstName, lastName, link string) error
	SendPasswordReset(ctx context.Context, to, link string) error
}

// AuditRecorder persists security-relevant account events.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service wraps identity business rules: registration, login, profile
// updates, and both single-use token flows.
type Service struct {
	repo    RepositoryPort
	hasher  *PasswordHasher
	mailer  Mailer
	audit   AuditRecorder
	baseURL string
	logger  *slog.Logger
	now     func() time.Time
}

// NewService constructs a Service. baseURL is the public link base for
// activation and reset emails; config guarantees its https scheme.
func NewService(repo RepositoryPort, hasher *PasswordHasher, mailer Mailer, audit AuditRecorder, baseURL string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		hasher:  hasher,
		mailer:  mailer,
		audit:   audit,
		baseURL: baseURL,
		logger:  logger,
		now:     time.Now,
	}
}

// recordAudit is best effort; a failing audit write never fails the
// user-facing operation.
func (s *Service) recordAudit(ctx context.Context, actorID, action, userID string) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user",
		EntityID: userID,
	})
	if err != nil {
		s.logger.Warn("record audit", slog.String("action", action), slog.Any("error", err))
	}
}

// CreateUser validates and persists a new, not-yet-activated user and
// mails an activation link carrying the raw invite token.
func (s *Service) CreateUser(ctx context.Context, input CreateUserInput) (*User, error) {
	if err := validateUsername(input.Username); err != nil {
		return nil, err
	}
	if err := validateEmail(input.Email); err != nil {
		return nil, err
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}
	firstName := normalizeName(input.FirstName)
	lastName := normalizeName(input.LastName)
	if err := validateName("first name", firstName); err != nil {
		return nil, err
	}
	if err := validateName("last name", lastName); err != nil {
		return nil, err
	}

	taken, err := s.repo.UsernameOrEmailTaken(ctx, input.Username, input.Email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, shared.ErrConflict
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}
	invite, err := token.Issue(token.KindInvite, s.now())
	if err != nil {
		return nil, err
	}

	user := User{
		ID:                 uuid.NewString(),
		Username:           input.Username,
		Email:              input.Email,
		PasswordHash:       passwordHash,
		FirstName:          firstName,
		LastName:           lastName,
		Activated:          false,
		InviteTokenHash:    invite.Hash,
		InviteTokenExpires: invite.ExpiresAt,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	link := fmt.Sprintf("%s/activate-user?token=%s&username=%s",
		s.baseURL, invite.Raw, url.QueryEscape(user.Username))
	if err := s.mailer.SendActivation(ctx, user.Email, user.FirstName, user.LastName, link); err != nil {
		s.logger.Error("queue activation email", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, fmt.Errorf("accounts: activation email: %w", err)
	}

	s.recordAudit(ctx, user.ID, "user.created", user.ID)
	return user.sanitized(), nil
}

// Authenticate validates username/password credentials. Unknown user,
// inactive account, and wrong password are indistinguishable to the
// caller so usernames cannot be enumerated.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return nil, shared.ErrAuth
	}
	if !user.Activated {
		return nil, shared.ErrAuth
	}
	if !s.hasher.Verify(user.PasswordHash, password) {
		return nil, shared.ErrAuth
	}
	return user.sanitized(), nil
}

// GetUser returns a user by id with credentials stripped.
func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return user.sanitized(), nil
}

// UpdateUser applies a patch. A supplied password is re-hashed exactly
// as at creation.
func (s *Service) UpdateUser(ctx context.Context, id string, patch UpdateUserInput) (*User, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, err
	}

	if patch.FirstName != nil {
		name := normalizeName(*patch.FirstName)
		if err := validateName("first name", name); err != nil {
			return nil, err
		}
		patch.FirstName = &name
	}
	if patch.LastName != nil {
		name := normalizeName(*patch.LastName)
		if err := validateName("last name", name); err != nil {
			return nil, err
		}
		patch.LastName = &name
	}
	if patch.Email != nil {
		if err := validateEmail(*patch.Email); err != nil {
			return nil, err
		}
	}
	if patch.Username != nil {
		if err := validateUsername(*patch.Username); err != nil {
			return nil, err
		}
	}

	passwordHash := ""
	if patch.Password != nil {
		if err := validatePassword(*patch.Password); err != nil {
			return nil, err
		}
		hash, err := s.hasher.Hash(*patch.Password)
		if err != nil {
			return nil, err
		}
		passwordHash = hash
		patch.Password = nil
	}

	user, err := s.repo.Update(ctx, id, patch, passwordHash)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, id, "user.updated", id)
	return user.sanitized(), nil
}

// SendPasswordReset issues a reset token for an activated account and
// mails the link. The new token supersedes any pending one.
func (s *Service) SendPasswordReset(ctx context.Context, email string) error {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !user.Activated {
		return shared.ErrNotFound
	}

	reset, err := token.Issue(token.KindReset, s.now())
	if err != nil {
		return err
	}
	if err := s.repo.SetResetToken(ctx, user.ID, reset.Hash, reset.ExpiresAt); err != nil {
		return err
	}

	link := fmt.Sprintf("%s/reset-password?token=%s", s.baseURL, reset.Raw)
	if err := s.mailer.SendPasswordReset(ctx, user.Email, link); err != nil {
		s.logger.Error("queue reset email", slog.String("user_id", user.ID), slog.Any("error", err))
		return fmt.Errorf("accounts: reset email: %w", err)
	}
	return nil
}

// Activate consumes an invite token, setting the account's first
// password and flipping activation in one atomic store update.
func (s *Service) Activate(ctx context.Context, rawToken, newPassword string) error {
	if !token.ValidFormat(rawToken) {
		return shared.ErrToken
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	userID, err := s.repo.ConsumeInviteToken(ctx, token.HashRaw(rawToken), passwordHash)
	if err != nil {
		return err
	}
	s.logger.Info("account activated", slog.String("user_id", userID))
	s.recordAudit(ctx, userID, "user.activated", userID)
	return nil
}

// ResetPassword consumes a reset token and applies the new password in
// one atomic store update.
func (s *Service) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	if !token.ValidFormat(rawToken) {
		return shared.ErrToken
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	userID, err := s.repo.ConsumeResetToken(ctx, token.HashRaw(rawToken), passwordHash)
	if err != nil {
		return err
	}
	s.logger.Info("password reset", slog.String("user_id", userID))
	s.recordAudit(ctx, userID, "user.password_reset", userID)
	return nil
}
