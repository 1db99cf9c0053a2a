package redis

import (
	"fmt"
	"strings"

	"github.com/mcoot/typerace-go/internal/model"
)

// Key prefix for all race data
const keyPrefix = "typerace"

// playerKey returns the Redis key for a Player
func playerKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:player:%s", keyPrefix, id)
}

// playerSetKey returns the Redis key for the SET of all player IDs
func playerSetKey() string {
	return fmt.Sprintf("%s:players", keyPrefix)
}

// playerNameIndexKey returns the Redis key for the display name -> player_id index.
// Names are case-folded so "Alice" and "alice" collide.
func playerNameIndexKey(displayName string) string {
	return fmt.Sprintf("%s:idx:player_name:%s", keyPrefix, strings.ToLower(strings.TrimSpace(displayName)))
}

// promptsKey returns the Redis key for the HASH of prompt id -> prompt
func promptsKey() string {
	return fmt.Sprintf("%s:prompts", keyPrefix)
}

// resultKey returns the Redis key for a GameResult
func resultKey(id model.SessionID) string {
	return fmt.Sprintf("%s:result:%s", keyPrefix, id)
}
