package game

import (
	"encoding/json"
	"time"
)

// EventType enum for audit log classification
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypeJoin
	EventTypeLeave
	EventTypeEvict
	EventTypeRejected
	EventTypeDamage
	EventTypeKill
	EventTypeRespawn
	EventTypeAutoRespawn
)

// EventVersion for backwards compatibility of the log format
const EventVersion uint8 = 1

// Event is one line of the audit log
type Event struct {
	Version   uint8           `json:"version"`
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"` // Unix nano
	Sequence  uint64          `json:"sequence"`
	PlayerID  string          `json:"playerId"` // Source player (for rate limiting)
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypeJoin:
		return "join"
	case EventTypeLeave:
		return "leave"
	case EventTypeEvict:
		return "evict"
	case EventTypeRejected:
		return "rejected"
	case EventTypeDamage:
		return "damage"
	case EventTypeKill:
		return "kill"
	case EventTypeRespawn:
		return "respawn"
	case EventTypeAutoRespawn:
		return "auto_respawn"
	default:
		return "unknown"
	}
}

// Typed payloads for different event types

// JoinPayload contains join details
type JoinPayload struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	UserRef  string `json:"userRef,omitempty"`
	Players  int    `json:"players"`
}

// LeavePayload is written for disconnects and evictions
type LeavePayload struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Kills    int    `json:"kills"`
	Deaths   int    `json:"deaths"`
	Flushed  bool   `json:"flushed"` // stats were handed to the sink
	Seconds  int64  `json:"sessionSeconds"`
}

// DamagePayload contains damage event details
type DamagePayload struct {
	ShooterID string `json:"shooterId"`
	VictimID  string `json:"victimId"`
	Damage    int    `json:"damage"`
	VictimHP  int    `json:"victimHp"`
}

// KillPayload contains kill event details
type KillPayload struct {
	ShooterID    string `json:"shooterId"`
	VictimID     string `json:"victimId"`
	ShooterKills int    `json:"shooterKills"`
	VictimDeaths int    `json:"victimDeaths"`
}

// RespawnPayload contains respawn event details
type RespawnPayload struct {
	PlayerID string `json:"playerId"`
	Position Vec3   `json:"position"`
}

// EncodePayload marshals a payload to JSON bytes
func EncodePayload(payload interface{}) json.RawMessage {
	if payload == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, playerID string, payload interface{}) Event {
	return Event{
		Version:   EventVersion,
		Type:      eventType.String(),
		Timestamp: time.Now().UnixNano(),
		PlayerID:  playerID,
		Payload:   EncodePayload(payload),
	}
}
