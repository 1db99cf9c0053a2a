package model

import "time"

// PlayerID uniquely identifies a player across the system
type PlayerID string

// PlayerStats holds cumulative race statistics for a player
type PlayerStats struct {
	GamesPlayed int     `json:"gamesPlayed"`
	GamesWon    int     `json:"gamesWon"`
	BestWPM     float64 `json:"bestWpm"`
	AverageWPM  float64 `json:"averageWpm"`
}

// Apply folds the outcome of one race into the stats
func (s *PlayerStats) Apply(wpm float64, won bool) {
	total := s.AverageWPM * float64(s.GamesPlayed)
	s.GamesPlayed++
	s.AverageWPM = (total + wpm) / float64(s.GamesPlayed)
	if wpm > s.BestWPM {
		s.BestWPM = wpm
	}
	if won {
		s.GamesWon++
	}
}

// Player represents a race participant
type Player struct {
	ID          PlayerID    `json:"id"`
	DisplayName string      `json:"displayName"`
	IsBot       bool        `json:"isBot"`
	Stats       PlayerStats `json:"stats"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// Ref returns the lightweight reference held by sessions
func (p *Player) Ref() PlayerRef {
	return PlayerRef{ID: p.ID, DisplayName: p.DisplayName, IsBot: p.IsBot}
}

// PlayerRef is the part of a player a session keeps for its lifetime
type PlayerRef struct {
	ID          PlayerID `json:"id"`
	DisplayName string   `json:"displayName"`
	IsBot       bool     `json:"isBot,omitempty"`
}
