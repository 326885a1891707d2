package redis

import "fmt"

// Key helpers keep the layout in one place:
//
//	<prefix>:user:<id>          hash  id, username, password_hash, created_at
//	<prefix>:username:<name>    string -> user id
//	<prefix>:stats:<id>         hash  kills, deaths, games_played
//	<prefix>:leaderboard        zset  member=user id, score=kills*1e6-deaths

func (s *Store) userKey(id string) string {
	return fmt.Sprintf("%s:user:%s", s.cfg.KeyPrefix, id)
}

func (s *Store) usernameKey(username string) string {
	return fmt.Sprintf("%s:username:%s", s.cfg.KeyPrefix, username)
}

func (s *Store) statsKey(id string) string {
	return fmt.Sprintf("%s:stats:%s", s.cfg.KeyPrefix, id)
}

func (s *Store) leaderboardKey() string {
	return s.cfg.KeyPrefix + ":leaderboard"
}
