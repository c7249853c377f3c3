// Package auth provides the shared-password check used by the drill UI.
// It is a convenience gate, not a security boundary: usernames are taken
// at face value.
package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// DefaultPassword is accepted by login when no password is configured.
const DefaultPassword = "secreto"

// HeaderPassword carries the shared password on API requests.
const HeaderPassword = "X-Conjugar-Password"

const maxUsernameLen = 64

var (
	ErrUsernameRequired   = errors.New("username is required")
	ErrUsernameTooLong    = errors.New("username is too long")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Identity is an authenticated caller.
type Identity struct {
	Username string `json:"username"`
}

// Authenticator verifies login credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (Identity, error)
}

// SharedPassword accepts any username presented with the one shared password.
type SharedPassword struct {
	password []byte
}

// NewSharedPassword creates an Authenticator for password, or for
// DefaultPassword when password is empty.
func NewSharedPassword(password string) *SharedPassword {
	if password == "" {
		password = DefaultPassword
	}
	return &SharedPassword{password: []byte(password)}
}

func (s *SharedPassword) Authenticate(_ context.Context, username, password string) (Identity, error) {
	if !s.matches(password) {
		return Identity{}, ErrInvalidCredentials
	}
	name, err := NormalizeUsername(username)
	if err != nil {
		return Identity{}, err
	}
	return Identity{Username: name}, nil
}

func (s *SharedPassword) matches(password string) bool {
	return subtle.ConstantTimeCompare([]byte(password), s.password) == 1
}

// NormalizeUsername trims surrounding space and enforces length limits.
func NormalizeUsername(username string) (string, error) {
	name := strings.TrimSpace(username)
	switch {
	case name == "":
		return "", ErrUsernameRequired
	case len(name) > maxUsernameLen:
		return "", ErrUsernameTooLong
	}
	return name, nil
}

// RequirePassword rejects requests whose HeaderPassword does not match
// password. An empty password disables the check.
func RequirePassword(password string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if password == "" {
			return next
		}
		want := []byte(password)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get(HeaderPassword))
			if subtle.ConstantTimeCompare(got, want) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"code":    "unauthorized",
					"message": "missing or invalid " + HeaderPassword + " header",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
