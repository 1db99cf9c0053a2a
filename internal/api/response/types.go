package response

import (
	"math"
	"time"

	"github.com/mcoot/typerace-go/internal/model"
)

// round2 rounds a rate for display
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// PlayerStats represents cumulative stats in API responses
type PlayerStats struct {
	GamesPlayed int     `json:"gamesPlayed"`
	GamesWon    int     `json:"gamesWon"`
	BestWPM     float64 `json:"bestWpm"`
	AverageWPM  float64 `json:"averageWpm"`
}

// Player represents a player in API responses
type Player struct {
	ID          string      `json:"id"`
	DisplayName string      `json:"displayName"`
	IsBot       bool        `json:"isBot,omitempty"`
	Stats       PlayerStats `json:"stats"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// PlayerFromModel converts a model.Player to a response Player
func PlayerFromModel(p *model.Player) Player {
	return Player{
		ID:          string(p.ID),
		DisplayName: p.DisplayName,
		IsBot:       p.IsBot,
		Stats: PlayerStats{
			GamesPlayed: p.Stats.GamesPlayed,
			GamesWon:    p.Stats.GamesWon,
			BestWPM:     round2(p.Stats.BestWPM),
			AverageWPM:  round2(p.Stats.AverageWPM),
		},
		CreatedAt: p.CreatedAt,
	}
}

// LeaderboardEntry is one ranked row of the leaderboard
type LeaderboardEntry struct {
	Rank int `json:"rank"`
	Player
}

// Leaderboard is the leaderboard response
type Leaderboard struct {
	Sort    string             `json:"sort"`
	Entries []LeaderboardEntry `json:"entries"`
}

// LeaderboardFromModel ranks the players in the order given
func LeaderboardFromModel(sort string, players []*model.Player) Leaderboard {
	entries := make([]LeaderboardEntry, len(players))
	for i, p := range players {
		entries[i] = LeaderboardEntry{Rank: i + 1, Player: PlayerFromModel(p)}
	}
	return Leaderboard{Sort: sort, Entries: entries}
}

// Standing represents a player's position in API responses
type Standing struct {
	PlayerID     string     `json:"playerId"`
	DisplayName  string     `json:"displayName"`
	Rank         int        `json:"rank"`
	WPM          float64    `json:"wpm"`
	Accuracy     float64    `json:"accuracy"`
	CharsCorrect int        `json:"charsCorrect"`
	CharsTyped   int        `json:"charsTyped"`
	Finished     bool       `json:"finished"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
}

// StandingFromModel converts a model.Standing
func StandingFromModel(s model.Standing) Standing {
	return Standing{
		PlayerID:     string(s.PlayerID),
		DisplayName:  s.DisplayName,
		Rank:         s.Rank,
		WPM:          round2(s.WPM),
		Accuracy:     round2(s.Accuracy),
		CharsCorrect: s.CharsCorrect,
		CharsTyped:   s.CharsTyped,
		Finished:     s.Finished,
		FinishedAt:   s.FinishedAt,
	}
}

// StandingsFromModel converts a standings table
func StandingsFromModel(standings []model.Standing) []Standing {
	out := make([]Standing, len(standings))
	for i, s := range standings {
		out[i] = StandingFromModel(s)
	}
	return out
}

// Standings is the standings response
type Standings struct {
	SessionID string     `json:"sessionId"`
	Status    string     `json:"status"`
	Standings []Standing `json:"standings"`
}

// SessionConfig represents race settings in API responses
type SessionConfig struct {
	MaxPlayers       int `json:"maxPlayers"`
	MinPlayers       int `json:"minPlayers"`
	TimeLimitSeconds int `json:"timeLimitSeconds"`
	PromptCount      int `json:"promptCount"`
}

// Prompt represents an assigned prompt
type Prompt struct {
	ID   string `json:"id"`
	Tier string `json:"tier"`
	Text string `json:"text"`
}

// PromptsFromModel converts prompts
func PromptsFromModel(prompts []model.Prompt) []Prompt {
	out := make([]Prompt, len(prompts))
	for i, p := range prompts {
		out[i] = Prompt{ID: p.ID, Tier: p.Tier.String(), Text: p.Text}
	}
	return out
}

// Member represents a session member
type Member struct {
	PlayerID     string     `json:"playerId"`
	DisplayName  string     `json:"displayName"`
	IsBot        bool       `json:"isBot,omitempty"`
	IsHost       bool       `json:"isHost"`
	CharsTyped   int        `json:"charsTyped"`
	CharsCorrect int        `json:"charsCorrect"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
	JoinedAt     time.Time  `json:"joinedAt"`
}

// Session represents a session summary in API responses
type Session struct {
	ID           string        `json:"id"`
	Status       string        `json:"status"`
	Config       SessionConfig `json:"config"`
	Round        int           `json:"round"`
	HostID       string        `json:"hostId,omitempty"`
	Members      []Member      `json:"members"`
	Prompts      []Prompt      `json:"prompts,omitempty"`
	TargetLength int           `json:"targetLength,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	StartedAt    *time.Time    `json:"startedAt,omitempty"`
	EndsAt       *time.Time    `json:"endsAt,omitempty"`
	FinishedAt   *time.Time    `json:"finishedAt,omitempty"`
	FinishReason string        `json:"finishReason,omitempty"`
	WinnerID     string        `json:"winnerId,omitempty"`
	Standings    []Standing    `json:"standings,omitempty"`
	ResultSaved  bool          `json:"resultSaved"`
}

// SessionFromModel converts a session snapshot
func SessionFromModel(s *model.Session) Session {
	members := make([]Member, len(s.Members))
	for i, m := range s.Members {
		members[i] = Member{
			PlayerID:     string(m.Player.ID),
			DisplayName:  m.Player.DisplayName,
			IsBot:        m.Player.IsBot,
			IsHost:       i == 0,
			CharsTyped:   m.Progress.CharsTyped,
			CharsCorrect: m.Progress.CharsCorrect,
			FinishedAt:   m.Progress.FinishedAt,
			JoinedAt:     m.JoinedAt,
		}
	}

	out := Session{
		ID:     string(s.ID),
		Status: string(s.Status),
		Config: SessionConfig{
			MaxPlayers:       s.Config.MaxPlayers,
			MinPlayers:       s.Config.MinPlayers,
			TimeLimitSeconds: int(s.Config.TimeLimit / time.Second),
			PromptCount:      s.Config.PromptCount,
		},
		Round:        s.Round,
		Members:      members,
		CreatedAt:    s.CreatedAt,
		StartedAt:    s.StartedAt,
		FinishedAt:   s.FinishedAt,
		FinishReason: string(s.FinishReason),
		WinnerID:     string(s.WinnerID),
		ResultSaved:  s.ResultSaved,
	}
	if host := s.Host(); host != nil {
		out.HostID = string(host.Player.ID)
	}
	if len(s.Prompts) > 0 {
		out.Prompts = PromptsFromModel(s.Prompts)
		out.TargetLength = s.TargetLength()
	}
	if s.StartedAt != nil {
		endsAt := s.EndsAt()
		out.EndsAt = &endsAt
	}
	if len(s.Standings) > 0 {
		out.Standings = StandingsFromModel(s.Standings)
	}
	return out
}

// Result represents a persisted game result
type Result struct {
	SessionID  string     `json:"sessionId"`
	WinnerID   string     `json:"winnerId,omitempty"`
	Reason     string     `json:"reason"`
	PromptIDs  []string   `json:"promptIds"`
	Standings  []Standing `json:"standings"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt time.Time  `json:"finishedAt"`
}

// ResultFromModel converts a model.GameResult
func ResultFromModel(r *model.GameResult) Result {
	return Result{
		SessionID:  string(r.SessionID),
		WinnerID:   string(r.WinnerID),
		Reason:     string(r.Reason),
		PromptIDs:  r.PromptIDs,
		Standings:  StandingsFromModel(r.Standings),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
}

// Health is the health check response
type Health struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}
