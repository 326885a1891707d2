package game

import (
	"math"
	"math/rand"
	"testing"
)

func twoPlayers(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry(2)
	if _, err := reg.Join("a", "A", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Join("b", "B", ""); err != nil {
		t.Fatal(err)
	}
	return reg
}

// TestResolveShotSequence tests four hits from full health and the single kill
func TestResolveShotSequence(t *testing.T) {
	reg := twoPlayers(t)

	want := []struct {
		health  int
		outcome ShotOutcome
	}{
		{75, ShotApplied},
		{50, ShotApplied},
		{25, ShotApplied},
		{0, ShotKilled},
	}
	for i, w := range want {
		res := ResolveShot(reg, "a", "b")
		if res.Outcome != w.outcome {
			t.Fatalf("shot %d: expected %s, got %s", i+1, w.outcome, res.Outcome)
		}
		if res.Victim.Health != w.health {
			t.Fatalf("shot %d: expected health %d, got %d", i+1, w.health, res.Victim.Health)
		}
		if res.Damage != ShotDamage {
			t.Errorf("shot %d: expected damage %d, got %d", i+1, ShotDamage, res.Damage)
		}
	}

	// Further shots on the dead victim are ignored
	for i := 0; i < 3; i++ {
		if res := ResolveShot(reg, "a", "b"); res.Outcome != ShotIgnored {
			t.Errorf("Expected ignored, got %s", res.Outcome)
		}
	}

	if b := reg.Get("b"); b.Deaths != 1 {
		t.Errorf("Expected B.deaths=1, got %d", b.Deaths)
	}
	if a := reg.Get("a"); a.Kills != 1 {
		t.Errorf("Expected A.kills=1, got %d", a.Kills)
	}
}

// TestResolveShotUnknown tests missing shooter or target
func TestResolveShotUnknown(t *testing.T) {
	reg := twoPlayers(t)

	tests := []struct {
		name, shooter, target string
	}{
		{"unknown shooter", "ghost", "b"},
		{"unknown target", "a", "ghost"},
		{"both unknown", "x", "y"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ResolveShot(reg, tt.shooter, tt.target)
			if res.Outcome != ShotIgnored {
				t.Errorf("Expected ignored, got %s", res.Outcome)
			}
			if res.Damage != 0 {
				t.Errorf("Ignored shot should deal no damage")
			}
		})
	}
	if reg.Get("b").Health != MaxHealth {
		t.Error("Target health changed by ignored shot")
	}
}

// TestResolveShotSelf tests that self-shots count as a kill and a death
func TestResolveShotSelf(t *testing.T) {
	reg := twoPlayers(t)
	for i := 0; i < 4; i++ {
		ResolveShot(reg, "a", "a")
	}
	a := reg.Get("a")
	if a.Health != 0 || a.Kills != 1 || a.Deaths != 1 {
		t.Errorf("Unexpected self-shot result: hp=%d kills=%d deaths=%d", a.Health, a.Kills, a.Deaths)
	}
}

// TestRandomSpawnWithinBounds tests the spawn footprint
func TestRandomSpawnWithinBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	arena := DefaultArena

	for i := 0; i < 1000; i++ {
		pos := arena.RandomSpawn(rng)
		if !arena.Contains(pos) {
			t.Fatalf("Spawn %+v outside arena", pos)
		}
		if pos.Y != arena.SpawnHeight {
			t.Fatalf("Expected y=%v, got %v", arena.SpawnHeight, pos.Y)
		}
		yaw := arena.RandomYaw(rng)
		if yaw.Y < 0 || yaw.Y >= 2*math.Pi {
			t.Fatalf("Yaw %v out of range", yaw.Y)
		}
	}
}
