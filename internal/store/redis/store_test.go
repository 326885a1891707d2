package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"arena/internal/store"
	"arena/internal/store/storetest"
)

func newMiniStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	mini := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	return NewWithClient(client, DefaultConfig()), mini
}

func TestRedisStore(t *testing.T) {
	suite.Run(t, &storetest.Suite{
		NewStore: func(t *testing.T) store.Store {
			s, _ := newMiniStore(t)
			return s
		},
	})
}

type KeyLayoutSuite struct {
	suite.Suite
	mini  *miniredis.Miniredis
	store *Store
	ctx   context.Context
}

func TestKeyLayoutSuite(t *testing.T) {
	suite.Run(t, new(KeyLayoutSuite))
}

func (s *KeyLayoutSuite) SetupTest() {
	s.store, s.mini = newMiniStore(s.T())
	s.ctx = context.Background()
}

func (s *KeyLayoutSuite) TearDownTest() {
	_ = s.store.Close()
}

func (s *KeyLayoutSuite) TestStatsHashAndLeaderboard() {
	u, err := s.store.FindOrCreateUser(s.ctx, "alice", "secret")
	s.Require().NoError(err)
	s.Require().NoError(s.store.IncrementStats(s.ctx, u.ID, store.Delta{Kills: 3, Deaths: 2, GamesPlayed: 1}))

	s.Equal("3", s.mini.HGet("arena:stats:"+u.ID, "kills"))
	s.Equal("1", s.mini.HGet("arena:stats:"+u.ID, "games_played"))

	score, err := s.mini.ZScore("arena:leaderboard", u.ID)
	s.Require().NoError(err)
	s.Equal(leaderboardScore(3, 2), score)

	id, err := s.mini.Get("arena:username:alice")
	s.Require().NoError(err)
	s.Equal(u.ID, id)
}

func (s *KeyLayoutSuite) TestFailedSaveReleasesUsername() {
	s.store.newID = func() string { return "fixed-id" }
	// A string at the user key makes the HSET fail with WRONGTYPE.
	s.Require().NoError(s.mini.Set("arena:user:fixed-id", "occupied"))

	_, err := s.store.FindOrCreateUser(s.ctx, "alice", "secret")
	s.Require().Error(err)
	s.False(s.mini.Exists("arena:username:alice"), "claim should be released after a failed save")

	s.store.newID = uuid.NewString
	u, err := s.store.FindOrCreateUser(s.ctx, "alice", "secret")
	s.Require().NoError(err)
	s.Equal("alice", u.Username)

	again, err := s.store.Authenticate(s.ctx, "alice", "secret")
	s.Require().NoError(err)
	s.Equal(u.ID, again.ID)
}

func (s *KeyLayoutSuite) TestConnectionErrorSurfaces() {
	s.mini.Close()

	err := s.store.IncrementStats(s.ctx, "anyone", store.Delta{Kills: 1})
	s.Error(err)
	s.NotErrorIs(err, store.ErrUserNotFound)
}
