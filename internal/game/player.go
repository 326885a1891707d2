package game

import (
	"math"
	"time"

	"arena/internal/protocol"
)

// Vec3 and Rotation are shared with the wire format; the server stores them as sent.
type (
	Vec3     = protocol.Vec3
	Rotation = protocol.Rotation
)

// MaxHealth is full health; 0 means dead and awaiting respawn.
const MaxHealth = 100

// DefaultSpawn is where every player appears on join.
var DefaultSpawn = Vec3{X: 0, Y: 1.6, Z: 5}

// PlayerState represents the player's lifecycle state
type PlayerState int

const (
	StateAlive PlayerState = iota // health > 0
	StateDead                     // health == 0, waiting for client or auto respawn
)

func (s PlayerState) String() string {
	if s == StateDead {
		return "dead"
	}
	return "alive"
}

// Player is one connected participant. Records live only between join and
// disconnect/eviction and are owned by the Hub goroutine.
type Player struct {
	ID       string // connection id
	Name     string
	UserRef  string // external account; empty for anonymous play
	Health   int
	Position Vec3
	Rotation Rotation
	Kills    int
	Deaths   int
	Score    *int // advisory, client reported
	JoinedAt time.Time

	// life is bumped on every respawn so a stale auto-respawn can tell
	// that the death it was scheduled for is over.
	life uint64
}

// NewPlayer creates a player at the default spawn with full health.
func NewPlayer(id, name, userRef string) *Player {
	return &Player{
		ID:       id,
		Name:     name,
		UserRef:  userRef,
		Health:   MaxHealth,
		Position: DefaultSpawn,
		JoinedAt: time.Now(),
	}
}

// State derives the lifecycle state from health.
func (p *Player) State() PlayerState {
	if p.Health > 0 {
		return StateAlive
	}
	return StateDead
}

// IsDead reports whether the player is awaiting respawn.
func (p *Player) IsDead() bool {
	return p.State() == StateDead
}

// Life returns the respawn generation.
func (p *Player) Life() uint64 {
	return p.life
}

// ApplyMovement stores the client-reported transform. A supplied health value
// overwrites the server's (rounded and clamped) without firing any death side
// effects.
func (p *Player) ApplyMovement(pos Vec3, rot Rotation, health *float64) {
	p.Position = pos
	p.Rotation = rot
	if health != nil {
		p.Health = reportedHealth(*health)
	}
}

// Respawn restores full health at pos. Respawning a living player is allowed.
func (p *Player) Respawn(pos Vec3, rot Rotation) {
	p.Health = MaxHealth
	p.Position = pos
	p.Rotation = rot
	p.life++
}

// TakeDamage subtracts amount, flooring at zero. It returns true only for the
// hit that takes the player from alive to dead.
func (p *Player) TakeDamage(amount int) bool {
	if p.Health <= 0 {
		return false
	}
	p.Health = clampHealth(p.Health - amount)
	return p.Health == 0
}

// ToState converts the player to its roster entry.
func (p *Player) ToState() protocol.PlayerState {
	return protocol.PlayerState{
		ID:       p.ID,
		Name:     p.Name,
		Kills:    p.Kills,
		Deaths:   p.Deaths,
		Health:   p.Health,
		Position: p.Position,
		Rotation: p.Rotation,
		Score:    p.Score,
	}
}

func reportedHealth(h float64) int {
	switch {
	case math.IsNaN(h) || h <= 0:
		return 0
	case h >= MaxHealth:
		return MaxHealth
	}
	return int(math.Round(h))
}

func clampHealth(h int) int {
	if h < 0 {
		return 0
	}
	if h > MaxHealth {
		return MaxHealth
	}
	return h
}
