// Package sqlite provides a SQLite-backed storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/mcoot/typerace-go/internal/model"
	"github.com/mcoot/typerace-go/internal/storage"
	"github.com/mcoot/typerace-go/internal/storage/sqlite/migrations"
)

// Storage persists players, prompts and results in SQLite
type Storage struct {
	db *sql.DB
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

// Open opens the database at path and applies embedded migrations
func Open(ctx context.Context, path string) (*Storage, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, model.Unavailable("ping sqlite db", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Storage{db: db}, nil
}

// Close closes the SQLite handle
func (s *Storage) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}

// Player operations

func (s *Storage) SavePlayer(ctx context.Context, player *model.Player) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO players (id, display_name, name_key, is_bot, games_played, games_won, best_wpm, average_wpm, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(player.ID),
		player.DisplayName,
		strings.ToLower(strings.TrimSpace(player.DisplayName)),
		player.IsBot,
		player.Stats.GamesPlayed,
		player.Stats.GamesWon,
		player.Stats.BestWPM,
		player.Stats.AverageWPM,
		toMillis(player.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrDuplicatePlayer
		}
		return model.Unavailable("save player", err)
	}
	return nil
}

const playerColumns = `id, display_name, is_bot, games_played, games_won, best_wpm, average_wpm, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlayer(row rowScanner) (*model.Player, error) {
	var (
		p         model.Player
		id        string
		createdAt int64
	)
	if err := row.Scan(&id, &p.DisplayName, &p.IsBot, &p.Stats.GamesPlayed, &p.Stats.GamesWon,
		&p.Stats.BestWPM, &p.Stats.AverageWPM, &createdAt); err != nil {
		return nil, err
	}
	p.ID = model.PlayerID(id)
	p.CreatedAt = fromMillis(createdAt)
	return &p, nil
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+playerColumns+` FROM players WHERE id = ?`, string(id))
	player, err := scanPlayer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, model.Unavailable("get player", err)
	}
	return player, nil
}

func (s *Storage) UpdatePlayer(ctx context.Context, player *model.Player) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE players
SET is_bot = ?, games_played = ?, games_won = ?, best_wpm = ?, average_wpm = ?
WHERE id = ?`,
		player.IsBot,
		player.Stats.GamesPlayed,
		player.Stats.GamesWon,
		player.Stats.BestWPM,
		player.Stats.AverageWPM,
		string(player.ID),
	)
	if err != nil {
		return model.Unavailable("update player", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Unavailable("update player", err)
	}
	if n == 0 {
		return model.ErrPlayerNotFound
	}
	return nil
}

func (s *Storage) ListPlayers(ctx context.Context) ([]*model.Player, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+playerColumns+` FROM players ORDER BY id`)
	if err != nil {
		return nil, model.Unavailable("list players", err)
	}
	defer rows.Close()

	players := []*model.Player{}
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, model.Unavailable("list players", err)
		}
		players = append(players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Unavailable("list players", err)
	}
	return players, nil
}

// Prompt operations

func (s *Storage) SavePrompts(ctx context.Context, prompts []model.Prompt) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Unavailable("save prompts", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO prompts (id, tier, body, language, active) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET tier = excluded.tier, body = excluded.body,
    language = excluded.language, active = excluded.active`)
	if err != nil {
		return model.Unavailable("save prompts", err)
	}
	defer stmt.Close()

	for _, p := range prompts {
		if !p.Tier.Valid() {
			return model.Invalidf("prompt %s has unknown tier %d", p.ID, int(p.Tier))
		}
		if _, err := stmt.ExecContext(ctx, p.ID, p.Tier.String(), p.Text, p.Language, p.Active); err != nil {
			return model.Unavailable("save prompts", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return model.Unavailable("save prompts", err)
	}
	return nil
}

func (s *Storage) LoadPromptPool(ctx context.Context, activeOnly bool) ([]model.Prompt, error) {
	query := `SELECT id, tier, body, language, active FROM prompts`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, model.Unavailable("load prompt pool", err)
	}
	defer rows.Close()

	pool := []model.Prompt{}
	for rows.Next() {
		var (
			p    model.Prompt
			tier string
		)
		if err := rows.Scan(&p.ID, &tier, &p.Text, &p.Language, &p.Active); err != nil {
			return nil, model.Unavailable("load prompt pool", err)
		}
		if p.Tier, err = model.ParseTier(tier); err != nil {
			return nil, fmt.Errorf("prompt %s: %w", p.ID, err)
		}
		pool = append(pool, p)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Unavailable("load prompt pool", err)
	}
	return pool, nil
}

// Result operations

func (s *Storage) SaveGameResult(ctx context.Context, result *model.GameResult) error {
	promptIDs, err := json.Marshal(result.PromptIDs)
	if err != nil {
		return err
	}
	standings, err := json.Marshal(result.Standings)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO game_results (session_id, winner_id, reason, prompt_ids, standings, started_at, finished_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(session_id) DO UPDATE SET winner_id = excluded.winner_id, reason = excluded.reason,
    prompt_ids = excluded.prompt_ids, standings = excluded.standings,
    started_at = excluded.started_at, finished_at = excluded.finished_at`,
		string(result.SessionID),
		string(result.WinnerID),
		string(result.Reason),
		string(promptIDs),
		string(standings),
		toMillis(result.StartedAt),
		toMillis(result.FinishedAt),
	)
	if err != nil {
		return model.Unavailable("save game result", err)
	}
	return nil
}

func (s *Storage) GetGameResult(ctx context.Context, id model.SessionID) (*model.GameResult, error) {
	var (
		result               model.GameResult
		sessionID, winnerID  string
		reason               string
		promptIDs, standings string
		startedAt, finished  int64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT session_id, winner_id, reason, prompt_ids, standings, started_at, finished_at
FROM game_results WHERE session_id = ?`, string(id)).
		Scan(&sessionID, &winnerID, &reason, &promptIDs, &standings, &startedAt, &finished)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrResultNotFound
		}
		return nil, model.Unavailable("get game result", err)
	}

	if err := json.Unmarshal([]byte(promptIDs), &result.PromptIDs); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(standings), &result.Standings); err != nil {
		return nil, err
	}
	result.SessionID = model.SessionID(sessionID)
	result.WinnerID = model.PlayerID(winnerID)
	result.Reason = model.FinishReason(reason)
	result.StartedAt = fromMillis(startedAt)
	result.FinishedAt = fromMillis(finished)
	return &result, nil
}
