package game

import (
	"math"
	"math/rand"
)

// ShotDamage is the fixed per-hit damage: four hits from full health kill.
// It is server-authoritative and never taken from the client.
const ShotDamage = 25

// ShotOutcome is the result of resolving one shootPlayer event.
type ShotOutcome int

const (
	ShotIgnored ShotOutcome = iota // missing shooter/victim, or victim already dead
	ShotApplied                    // damage applied, victim survives
	ShotKilled                     // damage applied, victim reached 0
)

func (o ShotOutcome) String() string {
	switch o {
	case ShotApplied:
		return "applied"
	case ShotKilled:
		return "killed"
	default:
		return "ignored"
	}
}

// ShotResult carries the outcome and the records involved.
// Shooter and Victim are nil when the corresponding id is unknown.
type ShotResult struct {
	Outcome ShotOutcome
	Shooter *Player
	Victim  *Player
	Damage  int
}

// ResolveShot applies one hit from shooterID to targetID. The victim's death
// counter and the shooter's kill counter move exactly once per life, on the
// hit that takes the victim to 0. Shooting yourself is not rejected.
func ResolveShot(reg *Registry, shooterID, targetID string) ShotResult {
	res := ShotResult{
		Shooter: reg.Get(shooterID),
		Victim:  reg.Get(targetID),
	}

	if res.Shooter == nil || res.Victim == nil || res.Victim.IsDead() {
		return res
	}

	res.Damage = ShotDamage
	if !res.Victim.TakeDamage(ShotDamage) {
		res.Outcome = ShotApplied
		return res
	}

	res.Outcome = ShotKilled
	res.Victim.Deaths++
	res.Shooter.Kills++
	return res
}

// Arena describes the random spawn footprint.
type Arena struct {
	HalfExtent  float64 // x and z are drawn from [-HalfExtent, HalfExtent)
	SpawnHeight float64
}

// DefaultArena is a 30x30 square at eye height.
var DefaultArena = Arena{HalfExtent: 15, SpawnHeight: 1.6}

// RandomSpawn picks a position inside the footprint.
func (a Arena) RandomSpawn(rng *rand.Rand) Vec3 {
	return Vec3{
		X: (rng.Float64() - 0.5) * 2 * a.HalfExtent,
		Y: a.SpawnHeight,
		Z: (rng.Float64() - 0.5) * 2 * a.HalfExtent,
	}
}

// RandomYaw picks a facing in [0, 2π).
func (a Arena) RandomYaw(rng *rand.Rand) Rotation {
	return Rotation{Y: rng.Float64() * 2 * math.Pi}
}

// Contains reports whether pos lies inside the spawn footprint.
func (a Arena) Contains(pos Vec3) bool {
	return pos.X >= -a.HalfExtent && pos.X < a.HalfExtent &&
		pos.Z >= -a.HalfExtent && pos.Z < a.HalfExtent
}
