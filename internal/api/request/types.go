package request

import (
	"time"

	"github.com/mcoot/typerace-go/internal/model"
)

// CreatePlayerRequest is the request body for creating a player
type CreatePlayerRequest struct {
	DisplayName string `json:"displayName"`
}

// CreateGameRequest is the request body for creating a game. Zero fields use
// the server defaults. An ID names the room, reusing it if it already exists.
type CreateGameRequest struct {
	ID               string `json:"id,omitempty"`
	MaxPlayers       int    `json:"maxPlayers,omitempty"`
	MinPlayers       int    `json:"minPlayers,omitempty"`
	TimeLimitSeconds int    `json:"timeLimitSeconds,omitempty"`
	PromptCount      int    `json:"promptCount,omitempty"`
}

// SessionConfig converts the request to a session configuration
func (r CreateGameRequest) SessionConfig() (model.SessionConfig, error) {
	switch {
	case r.MaxPlayers < 0:
		return model.SessionConfig{}, model.Invalidf("maxPlayers must not be negative")
	case r.MinPlayers < 0:
		return model.SessionConfig{}, model.Invalidf("minPlayers must not be negative")
	case r.TimeLimitSeconds < 0:
		return model.SessionConfig{}, model.Invalidf("timeLimitSeconds must not be negative")
	case r.PromptCount < 0:
		return model.SessionConfig{}, model.Invalidf("promptCount must not be negative")
	}
	return model.SessionConfig{
		MaxPlayers:  r.MaxPlayers,
		MinPlayers:  r.MinPlayers,
		TimeLimit:   time.Duration(r.TimeLimitSeconds) * time.Second,
		PromptCount: r.PromptCount,
	}, nil
}

// ProgressRequest is the request body for reporting typing progress
type ProgressRequest struct {
	CharsTyped   int        `json:"charsTyped"`
	CharsCorrect int        `json:"charsCorrect"`
	Timestamp    *time.Time `json:"timestamp,omitempty"`
}

// AddBotRequest is the request body for adding a pace bot to a game
type AddBotRequest struct {
	Name     string  `json:"name,omitempty"`
	WPM      float64 `json:"wpm"`
	Accuracy float64 `json:"accuracy,omitempty"`
	Strategy string  `json:"strategy,omitempty"`
}
