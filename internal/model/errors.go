package model

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors used across the application
var (
	// Request errors
	ErrValidation = errors.New("validation failed")

	// Lookup errors. Specific not-found errors wrap ErrNotFound.
	ErrNotFound         = errors.New("not found")
	ErrSessionNotFound  = fmt.Errorf("session %w", ErrNotFound)
	ErrPlayerNotFound   = fmt.Errorf("player %w", ErrNotFound)
	ErrResultNotFound   = fmt.Errorf("game result %w", ErrNotFound)
	ErrDuplicatePlayer  = errors.New("player already exists")
	ErrAlreadyInSession = errors.New("player is already in another active session")

	// Session errors
	ErrSessionFull         = errors.New("session is full")
	ErrSessionNotJoinable  = errors.New("session is not accepting joins")
	ErrDuplicateMember     = errors.New("player is already a member")
	ErrNotMember           = errors.New("player is not a member")
	ErrNotHost             = errors.New("player is not the host")
	ErrInsufficientPlayers = errors.New("insufficient players to start")
	ErrAlreadyStarted      = errors.New("round has already started")
	ErrRoundNotStarted     = errors.New("round has not started")
	ErrSessionClosed       = errors.New("session is finished")

	// Progress errors
	ErrStaleUpdate    = errors.New("progress update is stale")
	ErrMemberFinished = errors.New("player has already finished")

	// Prompt errors
	ErrInsufficientPrompts = errors.New("insufficient prompts")

	// Storage errors
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Invalidf builds an error wrapping ErrValidation
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Unavailable wraps a backend failure so callers can match ErrStorageUnavailable
func Unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, op, err)
}

// SessionError carries the session and player context of a failed operation
type SessionError struct {
	Op        string
	SessionID SessionID
	PlayerID  PlayerID
	Err       error
}

func (e *SessionError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(" session ")
	b.WriteString(string(e.SessionID))
	if e.PlayerID != "" {
		b.WriteString(" player ")
		b.WriteString(string(e.PlayerID))
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// InsufficientPromptsError reports a tier that could not fill its quota
type InsufficientPromptsError struct {
	Tier      Tier
	Available int
	Required  int
}

func (e *InsufficientPromptsError) Error() string {
	return fmt.Sprintf("insufficient prompts: tier %s has %d, need %d", e.Tier, e.Available, e.Required)
}

// Is matches ErrInsufficientPrompts
func (e *InsufficientPromptsError) Is(target error) bool {
	return target == ErrInsufficientPrompts
}
