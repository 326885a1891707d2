// Package redis persists accounts and stats in Redis hashes with a sorted-set
// leaderboard.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"arena/internal/store"
)

// leaderboardScale orders by kills first; deaths break ties downward.
const leaderboardScale = 1_000_000

// Store is a Redis-backed implementation of store.Store
type Store struct {
	client *redis.Client
	cfg    Config
	newID  func() string
}

// Ensure Store implements the interface
var _ store.Store = (*Store)(nil)

// New creates a new Redis store and verifies the connection
func New(cfg Config) (*Store, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	log.Printf("💾 Redis store connected (%s)", opts.Addr)
	return NewWithClient(client, cfg), nil
}

// NewWithClient creates a Redis store with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Store {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultConfig().KeyPrefix
	}
	return &Store{client: client, cfg: cfg, newID: uuid.NewString}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
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
	u = store.User{
		ID:           s.newID(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}

	// Claim the name first; losing the race means someone else registered it.
	claimed, err := s.client.SetNX(ctx, s.usernameKey(username), u.ID, 0).Result()
	if err != nil {
		return store.User{}, fmt.Errorf("claim username: %w", err)
	}
	if !claimed {
		return s.Authenticate(ctx, username, password)
	}

	err = s.client.HSet(ctx, s.userKey(u.ID),
		"id", u.ID,
		"username", u.Username,
		"password_hash", u.PasswordHash,
		"created_at", u.CreatedAt.Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		s.releaseUsername(ctx, username, u.ID)
		return store.User{}, fmt.Errorf("save user: %w", err)
	}
	return u, nil
}

// releaseUsername drops a name claim whose user record was never written, so
// the name can be registered again. A claim taken over by another id is kept.
func (s *Store) releaseUsername(ctx context.Context, username, id string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	key := s.usernameKey(username)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		owner, err := tx.Get(ctx, key).Result()
		if err != nil || owner != id {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		return err
	}, key)
	if err != nil && !errors.Is(err, redis.Nil) {
		log.Printf("⚠️ Could not release username claim %s: %v", username, err)
	}
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

// IncrementStats applies d with HINCRBY and moves the leaderboard score in
// the same MULTI block.
func (s *Store) IncrementStats(ctx context.Context, userID string, d store.Delta) error {
	n, err := s.client.Exists(ctx, s.userKey(userID)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrUserNotFound
	}

	key := s.statsKey(userID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, key, "kills", int64(d.Kills))
		pipe.HIncrBy(ctx, key, "deaths", int64(d.Deaths))
		pipe.HIncrBy(ctx, key, "games_played", int64(d.GamesPlayed))
		pipe.ZIncrBy(ctx, s.leaderboardKey(), leaderboardScore(d.Kills, d.Deaths), userID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("increment stats for %s: %w", userID, err)
	}
	return nil
}

func (s *Store) GetStats(ctx context.Context, userID string) (store.Totals, error) {
	username, err := s.client.HGet(ctx, s.userKey(userID), "username").Result()
	if errors.Is(err, redis.Nil) {
		return store.Totals{}, store.ErrUserNotFound
	}
	if err != nil {
		return store.Totals{}, err
	}

	vals, err := s.client.HMGet(ctx, s.statsKey(userID), "kills", "deaths", "games_played").Result()
	if err != nil {
		return store.Totals{}, err
	}
	return totalsFrom(userID, username, vals), nil
}

func (s *Store) TopPlayers(ctx context.Context, limit int) ([]store.Totals, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ids, err := s.client.ZRevRange(ctx, s.leaderboardKey(), 0, stop).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	names := make([]*redis.StringCmd, len(ids))
	stats := make([]*redis.SliceCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			names[i] = pipe.HGet(ctx, s.userKey(id), "username")
			stats[i] = pipe.HMGet(ctx, s.statsKey(id), "kills", "deaths", "games_played")
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	out := make([]store.Totals, 0, len(ids))
	for i, id := range ids {
		out = append(out, totalsFrom(id, names[i].Val(), stats[i].Val()))
	}
	return out, nil
}

func (s *Store) userByUsername(ctx context.Context, username string) (store.User, error) {
	id, err := s.client.Get(ctx, s.usernameKey(username)).Result()
	if errors.Is(err, redis.Nil) {
		return store.User{}, store.ErrUserNotFound
	}
	if err != nil {
		return store.User{}, err
	}

	fields, err := s.client.HGetAll(ctx, s.userKey(id)).Result()
	if err != nil {
		return store.User{}, err
	}
	if len(fields) == 0 {
		// Name claimed but the record was never written.
		return store.User{}, store.ErrUserNotFound
	}

	created, _ := time.Parse(time.RFC3339Nano, fields["created_at"])
	return store.User{
		ID:           fields["id"],
		Username:     fields["username"],
		PasswordHash: fields["password_hash"],
		CreatedAt:    created,
	}, nil
}

func leaderboardScore(kills, deaths int) float64 {
	return float64(kills)*leaderboardScale - float64(deaths)
}

func totalsFrom(userID, username string, vals []interface{}) store.Totals {
	t := store.Totals{UserID: userID, Username: username}
	ints := []*int{&t.Kills, &t.Deaths, &t.GamesPlayed}
	for i, v := range vals {
		if i >= len(ints) {
			break
		}
		if s, ok := v.(string); ok {
			*ints[i], _ = strconv.Atoi(s)
		}
	}
	return t
}
