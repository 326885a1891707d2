// Package memory is an in-process Store. Everything is lost on restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"arena/internal/store"
)

// Store is a mutex-guarded map implementation of store.Store
type Store struct {
	mu         sync.RWMutex
	users      map[string]store.User // by id
	byUsername map[string]string     // username -> id
	stats      map[string]store.Delta
}

// New creates an empty store
func New() *Store {
	return &Store{
		users:      make(map[string]store.User),
		byUsername: make(map[string]string),
		stats:      make(map[string]store.Delta),
	}
}

// Ensure Store implements the interface
var _ store.Store = (*Store)(nil)

func (s *Store) FindOrCreateUser(ctx context.Context, username, password string) (store.User, error) {
	username, err := store.NormalizeUsername(username)
	if err != nil {
		return store.User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byUsername[username]; ok {
		u := s.users[id]
		if err := store.CheckPassword(u.PasswordHash, password); err != nil {
			return store.User{}, err
		}
		return u, nil
	}

	hash, err := store.HashPassword(password)
	if err != nil {
		return store.User{}, err
	}
	u := store.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	s.users[u.ID] = u
	s.byUsername[username] = u.ID
	return u, nil
}

func (s *Store) Authenticate(ctx context.Context, username, password string) (store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[username]
	if !ok {
		return store.User{}, store.ErrInvalidCredentials
	}
	u := s.users[id]
	if err := store.CheckPassword(u.PasswordHash, password); err != nil {
		return store.User{}, err
	}
	return u, nil
}

func (s *Store) IncrementStats(ctx context.Context, userID string, d store.Delta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return store.ErrUserNotFound
	}
	cur := s.stats[userID]
	cur.Kills += d.Kills
	cur.Deaths += d.Deaths
	cur.GamesPlayed += d.GamesPlayed
	s.stats[userID] = cur
	return nil
}

func (s *Store) GetStats(ctx context.Context, userID string) (store.Totals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return store.Totals{}, store.ErrUserNotFound
	}
	return totals(u, s.stats[userID]), nil
}

func (s *Store) TopPlayers(ctx context.Context, limit int) ([]store.Totals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.Totals, 0, len(s.stats))
	for id, d := range s.stats {
		out = append(out, totals(s.users[id], d))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kills != out[j].Kills {
			return out[i].Kills > out[j].Kills
		}
		if out[i].Deaths != out[j].Deaths {
			return out[i].Deaths < out[j].Deaths
		}
		return out[i].Username < out[j].Username
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Close() error {
	return nil
}

func totals(u store.User, d store.Delta) store.Totals {
	return store.Totals{
		UserID:      u.ID,
		Username:    u.Username,
		Kills:       d.Kills,
		Deaths:      d.Deaths,
		GamesPlayed: d.GamesPlayed,
	}
}
