package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/helixhealth/helix-portal/internal/shared"
	"github.com/helixhealth/helix-portal/internal/token"
)

type memoryRepo struct {
	mu    sync.Mutex
	users map[string]*User
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: make(map[string]*User)}
}

func (r *memoryRepo) Create(ctx context.Context, user User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username || u.Email == user.Email {
			return shared.ErrConflict
		}
	}
	copied := user
	r.users[user.ID] = &copied
	return nil
}

func (r *memoryRepo) UsernameOrEmailTaken(ctx context.Context, username, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username || u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepo) FindByID(ctx context.Context, id string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *memoryRepo) FindByUsername(ctx context.Context, username string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryRepo) Update(ctx context.Context, id string, patch UpdateUserInput, passwordHash string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	if patch.Username != nil {
		u.Username = *patch.Username
	}
	if patch.Email != nil {
		u.Email = *patch.Email
	}
	if patch.FirstName != nil {
		u.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		u.LastName = *patch.LastName
	}
	if passwordHash != "" {
		u.PasswordHash = passwordHash
	}
	copied := *u
	return &copied, nil
}

func (r *memoryRepo) SetResetToken(ctx context.Context, id, tokenHash string, expires time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.ResetTokenHash = tokenHash
	u.ResetTokenExpires = expires
	return nil
}

func (r *memoryRepo) ConsumeInviteToken(ctx context.Context, tokenHash, passwordHash string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.InviteTokenHash == tokenHash && u.InviteTokenExpires.After(time.Now()) {
			u.PasswordHash = passwordHash
			u.Activated = true
			u.InviteTokenHash = ""
			u.InviteTokenExpires = time.Time{}
			return u.ID, nil
		}
	}
	return "", shared.ErrToken
}

func (r *memoryRepo) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ResetTokenHash == tokenHash && u.ResetTokenExpires.After(time.Now()) {
			u.PasswordHash = passwordHash
			u.ResetTokenHash = ""
			u.ResetTokenExpires = time.Time{}
			return u.ID, nil
		}
	}
	return "", shared.ErrToken
}

type sentMail struct {
	to   string
	link string
}

type mailRecorder struct {
	mu          sync.Mutex
	activations []sentMail
	resets      []sentMail
}

func (m *mailRecorder) SendActivation(ctx context.Context, to, firstName, lastName, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activations = append(m.activations, sentMail{to: to, link: link})
	return nil
}

func (m *mailRecorder) SendPasswordReset(ctx context.Context, to, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets = append(m.resets, sentMail{to: to, link: link})
	return nil
}

func newTestService() (*Service, *memoryRepo, *mailRecorder) {
	repo := newMemoryRepo()
	mailer := &mailRecorder{}
	// Minimum bcrypt cost keeps the suite fast.
	svc := NewService(repo, NewPasswordHasher(4), mailer, nil, "https://portal.test", nil)
	return svc, repo, mailer
}

func validInput() CreateUserInput {
	return CreateUserInput{
		Username:  "jdoe",
		Email:     "jdoe@example.com",
		Password:  "hunter2hunter2",
		FirstName: "Jane",
		LastName:  "Doe",
	}
}

func extractToken(t *testing.T, link string) string {
	t.Helper()
	idx := strings.Index(link, "token=")
	require.NotEqual(t, -1, idx)
	raw := link[idx+len("token="):]
	if amp := strings.IndexByte(raw, '&'); amp != -1 {
		raw = raw[:amp]
	}
	return raw
}

func TestCreateUser(t *testing.T) {
	svc, repo, mailer := newTestService()

	user, err := svc.CreateUser(context.Background(), validInput())
	require.NoError(t, err)
	require.False(t, user.Activated)
	require.Empty(t, user.PasswordHash)
	require.Empty(t, user.InviteTokenHash)

	stored := repo.users[user.ID]
	require.NotEmpty(t, stored.PasswordHash)
	require.NotEqual(t, "hunter2hunter2", stored.PasswordHash)
	require.NotEmpty(t, stored.InviteTokenHash)

	require.Len(t, mailer.activations, 1)
	raw := extractToken(t, mailer.activations[0].link)
	require.True(t, token.ValidFormat(raw))
	// Only the digest of the raw token is persisted.
	require.NotEqual(t, raw, stored.InviteTokenHash)
	require.Equal(t, token.HashRaw(raw), stored.InviteTokenHash)
}

func TestCreateUserDuplicate(t *testing.T) {
	svc, _, mailer := newTestService()

	_, err := svc.CreateUser(context.Background(), validInput())
	require.NoError(t, err)

	dup := validInput()
	dup.Username = "other"
	_, err = svc.CreateUser(context.Background(), dup)
	require.True(t, errors.Is(err, shared.ErrConflict))
	// No email for the failed creation.
	require.Len(t, mailer.activations, 1)
}

func TestCreateUserInvalidNames(t *testing.T) {
	svc, _, _ := newTestService()

	for _, name := range []string{"", strings.Repeat("a", 101), "Jane<script>", "123"} {
		input := validInput()
		input.FirstName = name
		_, err := svc.CreateUser(context.Background(), input)
		require.True(t, errors.Is(err, shared.ErrValidation), "name=%q", name)
	}
}

func TestCreateUserNormalizesNames(t *testing.T) {
	svc, repo, _ := newTestService()

	input := validInput()
	input.FirstName = "René" // decomposed é
	user, err := svc.CreateUser(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, "René", repo.users[user.ID].FirstName)
}

func activate(t *testing.T, svc *Service, mailer *mailRecorder, password string) string {
	t.Helper()
	raw := extractToken(t, mailer.activations[len(mailer.activations)-1].link)
	require.NoError(t, svc.Activate(context.Background(), raw, password))
	return raw
}

func TestAuthenticate(t *testing.T) {
	svc, repo, mailer := newTestService()

	created, err := svc.CreateUser(context.Background(), validInput())
	require.NoError(t, err)

	// Not activated yet: same error as unknown user.
	_, err = svc.Authenticate(context.Background(), "jdoe", "hunter2hunter2")
	require.True(t, errors.Is(err, shared.ErrAuth))

	activate(t, svc, mailer, "hunter2hunter2")

	user, err := svc.Authenticate(context.Background(), "jdoe", "hunter2hunter2")
	require.NoError(t, err)
	require.Equal(t, created.ID, user.ID)
	require.Empty(t, user.PasswordHash, "hash must never leave the service")

	_, err = svc.Authenticate(context.Background(), "jdoe", "wrong")
	require.True(t, errors.Is(err, shared.ErrAuth))
	_, err = svc.Authenticate(context.Background(), "nobody", "hunter2hunter2")
	require.True(t, errors.Is(err, shared.ErrAuth))

	require.NotEmpty(t, repo.users[created.ID].PasswordHash)
}

func TestActivateSingleUse(t *testing.T) {
	svc, repo, mailer := newTestService()

	created, err := svc.CreateUser(context.Background(), validInput())
	require.NoError(t, err)

	raw := activate(t, svc, mailer, "hunter2hunter2")
	require.True(t, repo.users[created.ID].Activated)
	require.Empty(t, repo.users[created.ID].InviteTokenHash, "slot cleared on consumption")

	err = svc.Activate(context.Background(), raw, "anotherpassword")
	require.True(t, errors.Is(err, shared.ErrToken))
}

func TestActivateMalformedToken(t *testing.T) {
	svc, _, _ := newTestService()

	for _, raw := range []string{"", "zzzz", "0123456789ABCDEF", "0123456789ab0011"} {
		err := svc.Activate(context.Background(), raw, "hunter2hunter2")
		require.True(t, errors.Is(err, shared.ErrToken), "raw=%q", raw)
	}
}

func TestResetPasswordExpiredToken(t *testing.T) {
	svc, repo, mailer := newTestService()

	created, err := svc.CreateUser(context.Background(), validInput())
	require.NoError(t, err)
	activate(t, svc, mailer, "hunter2hunter2")
	hashBefore := repo.users[created.ID].PasswordHash

	// Issue the reset token from two hours in the past; its 1h TTL has
	// already elapsed by the time it is redeemed.
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	require.NoError(t, svc.SendPasswordReset(context.Background(), "jdoe@example.com"))
	svc.now = time.Now

	raw := extractToken(t, mailer.resets[0].link)
	err = svc.ResetPassword(context.Background(), raw, "brandnewpassword")
	require.True(t, errors.Is(err, shared.ErrToken))
	require.Equal(t, hashBefore, repo.users[created.ID].PasswordHash, "password unchanged")
}

func TestResetPasswordFlow(t *testing.T) {
	svc, repo, mailer := newTestService()

	created, err := svc.CreateUser(context.Background(), validInput())
	require.NoError(t, err)
	activate(t, svc, mailer, "hunter2hunter2")

	require.NoError(t, svc.SendPasswordReset(context.Background(), "jdoe@example.com"))
	require.Len(t, mailer.resets, 1)
	raw := extractToken(t, mailer.resets[0].link)
	require.Equal(t, token.HashRaw(raw), repo.users[created.ID].ResetTokenHash)

	require.NoError(t, svc.ResetPassword(context.Background(), raw, "brandnewpassword"))
	require.Empty(t, repo.users[created.ID].ResetTokenHash)

	_, err = svc.Authenticate(context.Background(), "jdoe", "brandnewpassword")
	require.NoError(t, err)
}

func TestSendPasswordResetUnknownOrInactive(t *testing.T) {
	svc, _, mailer := newTestService()

	err := svc.SendPasswordReset(context.Background(), "nobody@example.com")
	require.True(t, errors.Is(err, shared.ErrNotFound))

	_, err = svc.CreateUser(context.Background(), validInput())
	require.NoError(t, err)
	err = svc.SendPasswordReset(context.Background(), "jdoe@example.com")
	require.True(t, errors.Is(err, shared.ErrNotFound), "inactive account gets no reset")
	require.Empty(t, mailer.resets)
}

func TestConcurrentResetConsumption(t *testing.T) {
	svc, _, mailer := newTestService()

	_, err := svc.CreateUser(context.Background(), validInput())
	require.NoError(t, err)
	activate(t, svc, mailer, "hunter2hunter2")
	require.NoError(t, svc.SendPasswordReset(context.Background(), "jdoe@example.com"))
	raw := extractToken(t, mailer.resets[0].link)

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results <- svc.ResetPassword(context.Background(), raw, fmt.Sprintf("concurrent-pass-%d", i))
		}(i)
	}
	wg.Wait()
	close(results)

	var wins, losses int
	for err := range results {
		if err == nil {
			wins++
		} else if errors.Is(err, shared.ErrToken) {
			losses++
		}
	}
	require.Equal(t, 1, wins, "exactly one consumer succeeds")
	require.Equal(t, 1, losses)
}

func TestUpdateUser(t *testing.T) {
	svc, repo, mailer := newTestService()

	_, err := svc.UpdateUser(context.Background(), "missing", UpdateUserInput{})
	require.True(t, errors.Is(err, shared.ErrNotFound))

	created, err := svc.CreateUser(context.Background(), validInput())
	require.NoError(t, err)
	activate(t, svc, mailer, "hunter2hunter2")
	hashBefore := repo.users[created.ID].PasswordHash

	first := "Janet"
	password := "replacement-pass"
	updated, err := svc.UpdateUser(context.Background(), created.ID, UpdateUserInput{
		FirstName: &first,
		Password:  &password,
	})
	require.NoError(t, err)
	require.Equal(t, "Janet", updated.FirstName)
	require.Empty(t, updated.PasswordHash)
	require.NotEqual(t, hashBefore, repo.users[created.ID].PasswordHash)
	require.NotEqual(t, password, repo.users[created.ID].PasswordHash)
}
