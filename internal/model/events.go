package model

import "time"

// EventType identifies the type of event
type EventType string

const (
	EventPlayerJoined    EventType = "player_joined"
	EventPlayerLeft      EventType = "player_left"
	EventRoundStarted    EventType = "round_started"
	EventProgressUpdated EventType = "progress_updated"
	EventRoundFinished   EventType = "round_finished"
)

// Event is the base structure for all session events
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	SessionID SessionID `json:"sessionId"`
	PlayerID  PlayerID  `json:"playerId,omitempty"` // The player who triggered or is affected
	Payload   any       `json:"payload,omitempty"`  // Type-specific data
}

// PlayerJoinedPayload contains data for player joined events
type PlayerJoinedPayload struct {
	Player      PlayerRef `json:"player"`
	MemberCount int       `json:"memberCount"`
	MaxPlayers  int       `json:"maxPlayers"`
}

// PlayerLeftPayload contains data for player left events
type PlayerLeftPayload struct {
	PlayerID    PlayerID `json:"playerId"`
	DisplayName string   `json:"displayName"`
	MemberCount int      `json:"memberCount"`
}

// RoundStartedPayload contains data for round started events
type RoundStartedPayload struct {
	Round        int       `json:"round"`
	Prompts      []Prompt  `json:"prompts"`
	TargetLength int       `json:"targetLength"`
	StartedAt    time.Time `json:"startedAt"`
	EndsAt       time.Time `json:"endsAt"`
}

// ProgressUpdatedPayload contains data for progress updated events
type ProgressUpdatedPayload struct {
	PlayerID  PlayerID   `json:"playerId"`
	Standings []Standing `json:"standings"`
}

// RoundFinishedPayload contains data for round finished events
type RoundFinishedPayload struct {
	Standings []Standing   `json:"standings"`
	WinnerID  PlayerID     `json:"winnerId,omitempty"` // Empty if nobody finished or tie
	Reason    FinishReason `json:"reason"`
}
