// Package auth checks operator credentials and tracks the TUI session.
package auth

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/kingrea/releasedesk/internal/config"
)

// FailureMessage is shown beneath the login form after a rejected attempt.
const FailureMessage = "Invalid credentials. Please try again."

// Authenticator verifies usernames against bcrypt hashes from config.yaml.
type Authenticator struct {
	logger *zap.SugaredLogger

	users map[string][]byte

	mu      sync.RWMutex
	current string
}

// Option customizes an Authenticator.
type Option func(*Authenticator)

// WithLogger records login attempts.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(a *Authenticator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New builds an authenticator from the configured users.
func New(users []config.User, opts ...Option) (*Authenticator, error) {
	a := &Authenticator{
		logger: zap.NewNop().Sugar(),
		users:  make(map[string][]byte, len(users)),
	}
	for _, u := range users {
		name := strings.TrimSpace(u.Username)
		if name == "" {
			return nil, fmt.Errorf("auth: username is required")
		}
		if u.PasswordHash == "" {
			return nil, fmt.Errorf("auth: user %s has no password hash", name)
		}
		if _, dup := a.users[name]; dup {
			return nil, fmt.Errorf("auth: duplicate user %s", name)
		}
		a.users[name] = []byte(u.PasswordHash)
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Verify reports whether the credentials match without touching the session.
func (a *Authenticator) Verify(username, password string) bool {
	hash, ok := a.users[strings.TrimSpace(username)]
	if !ok || password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}

// Login opens a session when the credentials match.
func (a *Authenticator) Login(username, password string) bool {
	username = strings.TrimSpace(username)
	if !a.Verify(username, password) {
		a.logger.Warnw("login rejected", "user", username)
		return false
	}
	a.mu.Lock()
	a.current = username
	a.mu.Unlock()
	a.logger.Infow("login accepted", "user", username)
	return true
}

// Logout ends the current session.
func (a *Authenticator) Logout() {
	a.mu.Lock()
	user := a.current
	a.current = ""
	a.mu.Unlock()
	if user != "" {
		a.logger.Infow("logout", "user", user)
	}
}

func (a *Authenticator) IsAuthenticated() bool {
	return a.CurrentUser() != ""
}

func (a *Authenticator) CurrentUser() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.current
}
