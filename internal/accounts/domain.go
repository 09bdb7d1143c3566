package accounts

import "time"

// User is the portal identity record. The token slots hold only a
// digest of the invite/reset secret plus its expiry; a populated slot
// means "pending verification, not yet consumed".
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Activated    bool
	PicturePath  string

	InviteTokenHash    string
	InviteTokenExpires time.Time
	ResetTokenHash     string
	ResetTokenExpires  time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateUserInput carries the fields accepted at registration.
type CreateUserInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// UpdateUserInput patches an existing user. Nil fields are untouched.
type UpdateUserInput struct {
	Username  *string
	Email     *string
	Password  *string
	FirstName *string
	LastName  *string
}

// sanitized returns a copy safe to hand past this package: the
// password hash and token slots never leave the accounts core.
func (u User) sanitized() *User {
	u.PasswordHash = ""
	u.InviteTokenHash = ""
	u.InviteTokenExpires = time.Time{}
	u.ResetTokenHash = ""
	u.ResetTokenExpires = time.Time{}
	return &u
}
