// Package store is the arena's long-term persistence collaborator: accounts and
// accumulated kill/death/games-played totals. The game core only ever calls
// IncrementStats, through a StatsWriter, and never waits for it.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidUsername    = errors.New("invalid username")
)

// User is a registered account. ID is the opaque reference attached to players.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Delta is one teardown's worth of stats for a user.
type Delta struct {
	Kills       int `json:"kills"`
	Deaths      int `json:"deaths"`
	GamesPlayed int `json:"gamesPlayed"`
}

// Totals are a user's lifetime stats.
type Totals struct {
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	Kills       int    `json:"kills"`
	Deaths      int    `json:"deaths"`
	GamesPlayed int    `json:"gamesPlayed"`
}

// Store is implemented by the memory, sqlite and redis backends.
type Store interface {
	// FindOrCreateUser returns the account for username, creating it with password
	// when absent. An existing account must match password.
	FindOrCreateUser(ctx context.Context, username, password string) (User, error)
	// Authenticate checks credentials of an existing account.
	Authenticate(ctx context.Context, username, password string) (User, error)
	// IncrementStats adds d to the user's totals.
	IncrementStats(ctx context.Context, userID string, d Delta) error
	// GetStats returns lifetime totals (zero totals for a user with no games).
	GetStats(ctx context.Context, userID string) (Totals, error)
	// TopPlayers returns up to limit users ordered by kills, then fewest deaths.
	TopPlayers(ctx context.Context, limit int) ([]Totals, error)
	Close() error
}

// MaxUsernameLength bounds account names.
const MaxUsernameLength = 32

// NormalizeUsername trims and validates a username.
func NormalizeUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || len(username) > MaxUsernameLength {
		return "", ErrInvalidUsername
	}
	return username, nil
}

// HashPassword hashes password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares password against a bcrypt hash.
func CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
