package game

import (
	"errors"

	"arena/internal/protocol"
)

var (
	// ErrCapacityExceeded rejects a join when the arena is full.
	ErrCapacityExceeded = errors.New("arena is full")
	// ErrUnknownPlayer marks events for ids that are not (or no longer) registered.
	// Handlers drop these silently.
	ErrUnknownPlayer = errors.New("unknown player")
)

// JoinResult describes what a successful or failed join did to the registry.
type JoinResult struct {
	Player   *Player // the new record (nil on error)
	Evicted  *Player // older record with the same name, removed before the capacity check
	Replaced *Player // previous record of the same connection (re-join)
}

// Registry maps connection ids to players. It is not safe for concurrent use;
// the Hub goroutine is its only owner.
type Registry struct {
	players    map[string]*Player
	maxPlayers int
}

// NewRegistry creates an empty registry holding at most maxPlayers records.
func NewRegistry(maxPlayers int) *Registry {
	if maxPlayers <= 0 {
		maxPlayers = 1
	}
	return &Registry{
		players:    make(map[string]*Player, maxPlayers),
		maxPlayers: maxPlayers,
	}
}

// Join inserts a fresh player for id. A same-name record on another connection
// is evicted first, so a reconnecting player reclaims their slot even when the
// arena is full. Evictions happen even if the join then fails on capacity.
// Nameless players never evict each other.
func (r *Registry) Join(id, name, userRef string) (JoinResult, error) {
	var res JoinResult

	if other := r.findByName(name); other != nil && other.ID != id {
		delete(r.players, other.ID)
		res.Evicted = other
	}

	if prev, ok := r.players[id]; ok {
		delete(r.players, id)
		res.Replaced = prev
	}

	// A re-join freed its own slot above, so only new connections can fail here.
	if len(r.players) >= r.maxPlayers {
		return res, ErrCapacityExceeded
	}

	p := NewPlayer(id, name, userRef)
	r.players[id] = p
	res.Player = p
	return res, nil
}

// Remove deletes id and returns the removed record, or nil. Idempotent.
func (r *Registry) Remove(id string) *Player {
	p, ok := r.players[id]
	if !ok {
		return nil
	}
	delete(r.players, id)
	return p
}

// Get returns the player for id, or nil.
func (r *Registry) Get(id string) *Player {
	return r.players[id]
}

// Len returns the number of registered players.
func (r *Registry) Len() int {
	return len(r.players)
}

// MaxPlayers returns the configured capacity.
func (r *Registry) MaxPlayers() int {
	return r.maxPlayers
}

// Roster returns a copy of every record keyed by id.
func (r *Registry) Roster() protocol.Roster {
	roster := make(protocol.Roster, len(r.players))
	for id, p := range r.players {
		roster[id] = p.ToState()
	}
	return roster
}

// findByName is a linear scan; the arena never holds more than a handful of players.
func (r *Registry) findByName(name string) *Player {
	if name == "" {
		return nil
	}
	for _, p := range r.players {
		if p.Name == name {
			return p
		}
	}
	return nil
}
