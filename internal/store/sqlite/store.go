// Package sqlite persists accounts and stats in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"arena/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS player_stats (
	user_id      TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
	kills        INTEGER NOT NULL DEFAULT 0,
	deaths       INTEGER NOT NULL DEFAULT 0,
	games_played INTEGER NOT NULL DEFAULT 0,
	updated_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_player_stats_kills ON player_stats(kills DESC, deaths ASC);
`

// Config holds SQLite settings
type Config struct {
	Path         string
	MaxOpenConns int
}

// DefaultConfig returns the file used when SQLITE_PATH is unset
func DefaultConfig() Config {
	return Config{
		Path:         "arena.db",
		MaxOpenConns: 1,
	}
}

// Store is a SQLite-backed implementation of store.Store
type Store struct {
	db *sql.DB
}

// Ensure Store implements the interface
var _ store.Store = (*Store)(nil)

// Open opens (creating if needed) the database at cfg.Path and applies the schema.
func Open(cfg Config) (*Store, error) {
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 1
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", cfg.Path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", cfg.Path, err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	log.Printf("💾 SQLite store ready at %s", cfg.Path)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) FindOrCreateUser(ctx context.Context, username, password string) (store.User, error) {
	username, err := store.NormalizeUsername(username)
	if err != nil {
		return store.User{}, err
	}

	u, err := s.userByUsername(ctx, username)
	if err == nil {
		if err := store.CheckPassword(u.PasswordHash, password); err != nil {
			return store.User{}, err
		}
		return u, nil
	}
	if !errors.Is(err, store.ErrUserNotFound) {
		return store.User{}, err
	}

	hash, err := store.HashPassword(password)
	if err != nil {
		return store.User{}, err
	}

	// OR IGNORE: a concurrent registration of the same name wins and we
	// fall through to the password check against its row.
	query, args, err := sq.Insert("users").
		Options("OR IGNORE").
		Columns("id", "username", "password_hash", "created_at").
		Values(uuid.New().String(), username, hash, time.Now().UTC()).
		ToSql()
	if err != nil {
		return store.User{}, err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return store.User{}, fmt.Errorf("insert user: %w", err)
	}

	u, err = s.userByUsername(ctx, username)
	if err != nil {
		return store.User{}, err
	}
	if err := store.CheckPassword(u.PasswordHash, password); err != nil {
		return store.User{}, err
	}
	return u, nil
}

func (s *Store) Authenticate(ctx context.Context, username, password string) (store.User, error) {
	u, err := s.userByUsername(ctx, username)
	if errors.Is(err, store.ErrUserNotFound) {
		return store.User{}, store.ErrInvalidCredentials
	}
	if err != nil {
		return store.User{}, err
	}
	if err := store.CheckPassword(u.PasswordHash, password); err != nil {
		return store.User{}, err
	}
	return u, nil
}

// IncrementStats adds d to the user's row, creating it on first use.
func (s *Store) IncrementStats(ctx context.Context, userID string, d store.Delta) error {
	query, args, err := sq.Insert("player_stats").
		Columns("user_id", "kills", "deaths", "games_played", "updated_at").
		Values(userID, d.Kills, d.Deaths, d.GamesPlayed, time.Now().UTC()).
		Suffix(`ON CONFLICT(user_id) DO UPDATE SET
			kills = kills + excluded.kills,
			deaths = deaths + excluded.deaths,
			games_played = games_played + excluded.games_played,
			updated_at = excluded.updated_at`).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey {
			return store.ErrUserNotFound
		}
		return fmt.Errorf("increment stats for %s: %w", userID, err)
	}
	return nil
}

func (s *Store) GetStats(ctx context.Context, userID string) (store.Totals, error) {
	query, args, err := statsSelect().
		From("users u").
		LeftJoin("player_stats s ON s.user_id = u.id").
		Where(sq.Eq{"u.id": userID}).
		ToSql()
	if err != nil {
		return store.Totals{}, err
	}

	t, err := scanTotals(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return store.Totals{}, store.ErrUserNotFound
	}
	return t, err
}

func (s *Store) TopPlayers(ctx context.Context, limit int) ([]store.Totals, error) {
	b := statsSelect().
		From("player_stats s").
		Join("users u ON u.id = s.user_id").
		OrderBy("s.kills DESC", "s.deaths ASC", "u.username ASC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("top players: %w", err)
	}
	defer rows.Close()

	var out []store.Totals
	for rows.Next() {
		t, err := scanTotals(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) userByUsername(ctx context.Context, username string) (store.User, error) {
	query, args, err := sq.Select("id", "username", "password_hash", "created_at").
		From("users").
		Where(sq.Eq{"username": username}).
		ToSql()
	if err != nil {
		return store.User{}, err
	}

	var u store.User
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, store.ErrUserNotFound
	}
	if err != nil {
		return store.User{}, fmt.Errorf("load user %s: %w", username, err)
	}
	return u, nil
}

func statsSelect() sq.SelectBuilder {
	return sq.Select(
		"u.id",
		"u.username",
		"COALESCE(s.kills, 0)",
		"COALESCE(s.deaths, 0)",
		"COALESCE(s.games_played, 0)",
	)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTotals(row rowScanner) (store.Totals, error) {
	var t store.Totals
	err := row.Scan(&t.UserID, &t.Username, &t.Kills, &t.Deaths, &t.GamesPlayed)
	return t, err
}
