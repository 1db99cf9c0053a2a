package storage

import (
	"context"

	"github.com/mcoot/typerace-go/internal/model"
)

// Storage is the persistence collaborator used by the race coordinator.
// Backend failures are reported wrapped in model.ErrStorageUnavailable.
type Storage interface {
	// Player operations
	SavePlayer(ctx context.Context, player *model.Player) error // ErrDuplicatePlayer on id or name clash
	GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error)
	UpdatePlayer(ctx context.Context, player *model.Player) error
	ListPlayers(ctx context.Context) ([]*model.Player, error)

	// Prompt operations
	SavePrompts(ctx context.Context, prompts []model.Prompt) error
	LoadPromptPool(ctx context.Context, activeOnly bool) ([]model.Prompt, error)

	// Result operations
	SaveGameResult(ctx context.Context, result *model.GameResult) error
	GetGameResult(ctx context.Context, id model.SessionID) (*model.GameResult, error)
}

// Closer is implemented by backends holding connections
type Closer interface {
	Close() error
}
