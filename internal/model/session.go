package model

import (
	"time"
	"unicode/utf8"
)

// SessionID uniquely identifies a race session
type SessionID string

// SessionStatus represents the lifecycle phase of a session
type SessionStatus string

const (
	StatusPending  SessionStatus = "pending"  // Accepting joins
	StatusActive   SessionStatus = "active"   // Round in progress
	StatusFinished SessionStatus = "finished" // Results computed
)

var statusTransitions = map[SessionStatus][]SessionStatus{
	StatusPending:  {StatusActive},
	StatusActive:   {StatusFinished},
	StatusFinished: nil,
}

// CanTransitionTo reports whether moving from s to next is allowed
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// FinishReason records why a round ended
type FinishReason string

const (
	FinishCompleted FinishReason = "completed" // Every member typed the full text
	FinishTimeout   FinishReason = "timeout"   // Time limit elapsed
	FinishHost      FinishReason = "host"      // Host ended the round early
)

// SessionConfig holds the per-session race settings
type SessionConfig struct {
	MaxPlayers  int           `json:"maxPlayers"`
	MinPlayers  int           `json:"minPlayers"`
	TimeLimit   time.Duration `json:"timeLimit"`
	PromptCount int           `json:"promptCount"`
}

// DefaultSessionConfig returns the default session configuration
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		MaxPlayers:  2,
		MinPlayers:  2,
		TimeLimit:   60 * time.Second,
		PromptCount: 4,
	}
}

// Validate checks the configuration is usable
func (c SessionConfig) Validate() error {
	switch {
	case c.MaxPlayers < 1:
		return Invalidf("max players must be at least 1, got %d", c.MaxPlayers)
	case c.MinPlayers < 1:
		return Invalidf("min players must be at least 1, got %d", c.MinPlayers)
	case c.MinPlayers > c.MaxPlayers:
		return Invalidf("min players %d exceeds max players %d", c.MinPlayers, c.MaxPlayers)
	case c.TimeLimit <= 0:
		return Invalidf("time limit must be positive, got %s", c.TimeLimit)
	case c.PromptCount < 1:
		return Invalidf("prompt count must be at least 1, got %d", c.PromptCount)
	}
	return nil
}

// Progress is a member's latest accepted typing snapshot
type Progress struct {
	CharsTyped   int        `json:"charsTyped"`
	CharsCorrect int        `json:"charsCorrect"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
}

// Finished reports whether the member has typed the whole text
func (p Progress) Finished() bool {
	return p.FinishedAt != nil
}

// Membership associates a player with a session
type Membership struct {
	Player   PlayerRef `json:"player"`
	Progress Progress  `json:"progress"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Session is a single race among a bounded set of players
type Session struct {
	ID           SessionID     `json:"id"`
	Status       SessionStatus `json:"status"`
	Config       SessionConfig `json:"config"`
	Round        int           `json:"round"`
	Prompts      []Prompt      `json:"prompts"`
	Members      []Membership  `json:"members"`
	Standings    []Standing    `json:"standings,omitempty"` // Final standings once finished
	WinnerID     PlayerID      `json:"winnerId,omitempty"`
	FinishReason FinishReason  `json:"finishReason,omitempty"`
	ResultSaved  bool          `json:"resultSaved"`
	CreatedAt    time.Time     `json:"createdAt"`
	StartedAt    *time.Time    `json:"startedAt,omitempty"`
	FinishedAt   *time.Time    `json:"finishedAt,omitempty"`
}

// Host returns the hosting member, or nil for an empty session
func (s *Session) Host() *Membership {
	if len(s.Members) == 0 {
		return nil
	}
	return &s.Members[0]
}

// Member returns the membership for the given player, or nil if not found
func (s *Session) Member(id PlayerID) *Membership {
	for i := range s.Members {
		if s.Members[i].Player.ID == id {
			return &s.Members[i]
		}
	}
	return nil
}

// TargetLength is the number of characters across all assigned prompts
func (s *Session) TargetLength() int {
	total := 0
	for _, p := range s.Prompts {
		total += utf8.RuneCountInString(p.Text)
	}
	return total
}

// EndsAt returns when the round times out, or the zero time if not started
func (s *Session) EndsAt() time.Time {
	if s.StartedAt == nil {
		return time.Time{}
	}
	return s.StartedAt.Add(s.Config.TimeLimit)
}

// AllFinished reports whether every member has completed the text
func (s *Session) AllFinished() bool {
	if len(s.Members) == 0 {
		return false
	}
	for _, m := range s.Members {
		if !m.Progress.Finished() {
			return false
		}
	}
	return true
}

// Clone returns a deep copy that shares no mutable state with s
func (s *Session) Clone() *Session {
	c := *s
	c.Prompts = append([]Prompt(nil), s.Prompts...)
	c.Standings = append([]Standing(nil), s.Standings...)
	c.Members = make([]Membership, len(s.Members))
	for i, m := range s.Members {
		c.Members[i] = m
		if m.Progress.FinishedAt != nil {
			t := *m.Progress.FinishedAt
			c.Members[i].Progress.FinishedAt = &t
		}
	}
	if s.StartedAt != nil {
		t := *s.StartedAt
		c.StartedAt = &t
	}
	if s.FinishedAt != nil {
		t := *s.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}

// Standing is a player's computed position at a point in time
type Standing struct {
	PlayerID     PlayerID   `json:"playerId"`
	DisplayName  string     `json:"displayName"`
	Rank         int        `json:"rank"`
	WPM          float64    `json:"wpm"`
	Accuracy     float64    `json:"accuracy"`
	CharsCorrect int        `json:"charsCorrect"`
	CharsTyped   int        `json:"charsTyped"`
	Finished     bool       `json:"finished"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
}

// GameResult is the persisted outcome of a finished session
type GameResult struct {
	SessionID  SessionID    `json:"sessionId"`
	WinnerID   PlayerID     `json:"winnerId,omitempty"`
	Reason     FinishReason `json:"reason"`
	PromptIDs  []string     `json:"promptIds"`
	Standings  []Standing   `json:"standings"`
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt"`
}

// NewGameResult builds the result record for a finished session
func NewGameResult(s *Session, standings []Standing) *GameResult {
	result := &GameResult{
		SessionID: s.ID,
		WinnerID:  s.WinnerID,
		Reason:    s.FinishReason,
		Standings: append([]Standing(nil), standings...),
	}
	for _, p := range s.Prompts {
		result.PromptIDs = append(result.PromptIDs, p.ID)
	}
	if s.StartedAt != nil {
		result.StartedAt = *s.StartedAt
	}
	if s.FinishedAt != nil {
		result.FinishedAt = *s.FinishedAt
	}
	return result
}

// Winner reports whether the given standing belongs to the winner
func (r *GameResult) Winner(id PlayerID) bool {
	return r.WinnerID != "" && r.WinnerID == id
}
