package engine

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/warp/vault-ledger/ledger"
)

// ErrInvalidCredentials is returned by Login for any mismatch. It does not
// say whether the username exists.
var ErrInvalidCredentials = errors.New("invalid username or password")

// Login resolves a username and password against the current users.
// Usernames match case-insensitively. Stored credentials are compared
// exactly, or with bcrypt when they hold a bcrypt hash.
func (e *Engine) Login(username, password string) (ledger.User, error) {
	cur := e.current.Load()
	if cur == nil {
		return ledger.User{}, ErrNotLoaded
	}
	for _, u := range cur.State.Users {
		if !strings.EqualFold(u.Username, strings.TrimSpace(username)) {
			continue
		}
		if CheckPassword(u.Password, password) {
			return u, nil
		}
		break
	}
	e.log.WithField("username", username).Info("login failed")
	return ledger.User{}, ErrInvalidCredentials
}

// CheckPassword compares a stored credential with a presented one.
func CheckPassword(stored, presented string) bool {
	if IsHashed(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(presented)) == nil
	}
	return stored != "" && stored == presented
}

// IsHashed reports whether a stored credential is a bcrypt hash.
func IsHashed(stored string) bool {
	return strings.HasPrefix(stored, "$2a$") ||
		strings.HasPrefix(stored, "$2b$") ||
		strings.HasPrefix(stored, "$2y$")
}

// HashPassword returns a bcrypt hash suitable for User.Password.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
