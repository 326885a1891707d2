// Package protocol defines the JSON wire format shared by clients and the arena.
//
// Every frame is an Envelope: {"event": "<name>", "data": {...}}. Payload
// validation is type-shape only; values are trusted as sent.
package protocol

import (
	"bytes"
	"encoding/json"
)

// Inbound events (client -> server)
const (
	EventJoinGame    = "joinGame"
	EventPlayerMove  = "playerMove"
	EventShootPlayer = "shootPlayer"
	EventRespawn     = "respawn"
	EventScoreUpdate = "scoreUpdate"
)

// Outbound events (server -> client)
const (
	EventPlayerInfo        = "playerInfo"
	EventPlayerJoined      = "playerJoined"
	EventPlayerMoved       = "playerMoved"
	EventPlayerShot        = "playerShot"
	EventPlayerHit         = "playerHit"
	EventPlayerDied        = "playerDied"
	EventPlayerRespawned   = "playerRespawned"
	EventForceRespawn      = "forceRespawn"
	EventStatsUpdate       = "statsUpdate"
	EventPlayerLeft        = "playerLeft"
	EventMaxPlayersReached = "maxPlayersReached"
	// EventScoreUpdate is also used outbound with a RosterPayload.
)

// Envelope wraps every frame.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Vec3 is a world position; y is vertical.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Rotation carries the yaw only.
type Rotation struct {
	Y float64 `json:"y"`
}

// =============================================================================
// INBOUND PAYLOADS
// =============================================================================

// JoinGame is sent once per connection to enter the arena.
type JoinGame struct {
	Name   string   `json:"name"`
	UserID OpaqueID `json:"userId,omitempty"`
}

// OpaqueID is a client-supplied identifier that may arrive as a JSON string
// or number. Numbers keep their literal text; any other shape decodes to "".
type OpaqueID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *OpaqueID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0:
		*id = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = OpaqueID(s)
	case b[0] == '-' || (b[0] >= '0' && b[0] <= '9'):
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		*id = OpaqueID(n.String())
	default:
		*id = ""
	}
	return nil
}

// PlayerMove reports the client's position every frame. Health is optional and,
// when present, overwrites the server value. Clients may send fractional health.
type PlayerMove struct {
	Position Vec3     `json:"position"`
	Rotation Rotation `json:"rotation"`
	Health   *float64 `json:"health,omitempty"`
}

// ShootPlayer reports a client-side hit on TargetID.
type ShootPlayer struct {
	TargetID string `json:"targetId"`
}

// RespawnRequest is a client-initiated respawn. A nil Position lets the server pick one.
type RespawnRequest struct {
	Position *Vec3     `json:"position,omitempty"`
	Rotation *Rotation `json:"rotation,omitempty"`
}

// ScoreUpdate is advisory; last write wins.
type ScoreUpdate struct {
	Score int `json:"score"`
}

// =============================================================================
// OUTBOUND PAYLOADS
// =============================================================================

// PlayerState is one roster entry.
type PlayerState struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Kills    int      `json:"kills"`
	Deaths   int      `json:"deaths"`
	Health   int      `json:"health"`
	Position Vec3     `json:"position"`
	Rotation Rotation `json:"rotation"`
	Score    *int     `json:"score,omitempty"`
}

// Roster is the complete registry keyed by connection id.
type Roster map[string]PlayerState

// PlayerInfoPayload is sent to the joining connection only.
type PlayerInfoPayload struct {
	ID      string `json:"id"`
	Players Roster `json:"players"`
}

// RosterPayload carries the full roster (playerJoined, statsUpdate, scoreUpdate).
type RosterPayload struct {
	Players Roster `json:"players"`
}

// PlayerMovedPayload is relayed to everyone but the mover.
type PlayerMovedPayload struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Position Vec3     `json:"position"`
	Rotation Rotation `json:"rotation"`
	Health   int      `json:"health"`
}

// PlayerShotPayload is the muzzle-flash cue.
type PlayerShotPayload struct {
	ShooterID string `json:"shooterId"`
	Position  Vec3   `json:"position"`
}

// PlayerHitPayload is sent to the victim only.
type PlayerHitPayload struct {
	VictimID  string `json:"victimId"`
	ShooterID string `json:"shooterId"`
	Health    int    `json:"health"`
	Damage    int    `json:"damage"`
}

// PlayerDiedPayload announces a death.
type PlayerDiedPayload struct {
	VictimID string `json:"victimId"`
}

// PlayerRespawnedPayload announces a respawn (client or server initiated).
type PlayerRespawnedPayload struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Position Vec3     `json:"position"`
	Health   int      `json:"health"`
	Rotation Rotation `json:"rotation"`
}

// ForceRespawnPayload tells an idle client where the server respawned it.
type ForceRespawnPayload struct {
	Position Vec3 `json:"position"`
}

// PlayerLeftPayload announces a departure (disconnect or eviction).
type PlayerLeftPayload struct {
	PlayerID string `json:"playerId"`
	Players  Roster `json:"players"`
}

// MaxPlayersPayload precedes the server closing a rejected connection.
type MaxPlayersPayload struct {
	MaxPlayers int `json:"maxPlayers"`
}
