// Package storetest is a conformance suite run against every Store backend.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"arena/internal/store"
)

// Suite exercises the store.Store contract. Backends embed it and set NewStore.
type Suite struct {
	suite.Suite

	// NewStore returns an empty store; it is closed after each test.
	NewStore func(t *testing.T) store.Store

	Store store.Store
	ctx   context.Context
}

func (s *Suite) SetupTest() {
	s.Require().NotNil(s.NewStore, "NewStore must be set")
	s.Store = s.NewStore(s.T())
	s.ctx = context.Background()
}

func (s *Suite) TearDownTest() {
	if s.Store != nil {
		_ = s.Store.Close()
	}
}

func (s *Suite) mustUser(name string) store.User {
	u, err := s.Store.FindOrCreateUser(s.ctx, name, "pw-"+name)
	s.Require().NoError(err)
	return u
}

// User tests

func (s *Suite) TestFindOrCreateUser() {
	created, err := s.Store.FindOrCreateUser(s.ctx, "alice", "secret")
	s.Require().NoError(err)
	s.NotEmpty(created.ID)
	s.Equal("alice", created.Username)

	again, err := s.Store.FindOrCreateUser(s.ctx, "alice", "secret")
	s.Require().NoError(err)
	s.Equal(created.ID, again.ID)
}

func (s *Suite) TestFindOrCreateUserWrongPassword() {
	s.mustUser("alice")

	_, err := s.Store.FindOrCreateUser(s.ctx, "alice", "nope")
	s.ErrorIs(err, store.ErrInvalidCredentials)
}

func (s *Suite) TestFindOrCreateUserInvalidName() {
	_, err := s.Store.FindOrCreateUser(s.ctx, "   ", "secret")
	s.ErrorIs(err, store.ErrInvalidUsername)
}

func (s *Suite) TestAuthenticate() {
	u := s.mustUser("bob")

	got, err := s.Store.Authenticate(s.ctx, "bob", "pw-bob")
	s.Require().NoError(err)
	s.Equal(u.ID, got.ID)

	_, err = s.Store.Authenticate(s.ctx, "bob", "wrong")
	s.ErrorIs(err, store.ErrInvalidCredentials)

	_, err = s.Store.Authenticate(s.ctx, "nobody", "pw")
	s.ErrorIs(err, store.ErrInvalidCredentials)
}

// Stats tests

func (s *Suite) TestGetStatsNewUser() {
	u := s.mustUser("carol")

	totals, err := s.Store.GetStats(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(store.Totals{UserID: u.ID, Username: "carol"}, totals)
}

func (s *Suite) TestGetStatsUnknownUser() {
	_, err := s.Store.GetStats(s.ctx, "missing")
	s.ErrorIs(err, store.ErrUserNotFound)
}

func (s *Suite) TestIncrementStatsAccumulates() {
	u := s.mustUser("dave")

	s.Require().NoError(s.Store.IncrementStats(s.ctx, u.ID, store.Delta{Kills: 3, Deaths: 1, GamesPlayed: 1}))
	s.Require().NoError(s.Store.IncrementStats(s.ctx, u.ID, store.Delta{Kills: 2, Deaths: 4, GamesPlayed: 1}))

	totals, err := s.Store.GetStats(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(5, totals.Kills)
	s.Equal(5, totals.Deaths)
	s.Equal(2, totals.GamesPlayed)
}

func (s *Suite) TestIncrementStatsUnknownUser() {
	err := s.Store.IncrementStats(s.ctx, "missing", store.Delta{Kills: 1, GamesPlayed: 1})
	s.ErrorIs(err, store.ErrUserNotFound)
}

func (s *Suite) TestTopPlayers() {
	a := s.mustUser("ann")
	b := s.mustUser("ben")
	c := s.mustUser("cid")
	s.mustUser("idle")

	s.Require().NoError(s.Store.IncrementStats(s.ctx, a.ID, store.Delta{Kills: 5, Deaths: 3, GamesPlayed: 1}))
	s.Require().NoError(s.Store.IncrementStats(s.ctx, b.ID, store.Delta{Kills: 5, Deaths: 1, GamesPlayed: 1}))
	s.Require().NoError(s.Store.IncrementStats(s.ctx, c.ID, store.Delta{Kills: 1, Deaths: 0, GamesPlayed: 2}))

	top, err := s.Store.TopPlayers(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(top, 3, "users without games are not ranked")
	s.Equal("ben", top[0].Username)
	s.Equal("ann", top[1].Username)
	s.Equal("cid", top[2].Username)
	s.Equal(2, top[2].GamesPlayed)

	top, err = s.Store.TopPlayers(s.ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(top, 1)
	s.Equal(b.ID, top[0].UserID)
}
