package e2e_test

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/typerace-go/internal/api"
	"github.com/mcoot/typerace-go/internal/api/response"
	"github.com/mcoot/typerace-go/internal/factory"
	"github.com/mcoot/typerace-go/internal/testutil"
)

// cliRunner manages CLI binary execution
type cliRunner struct {
	binaryPath string
	serverURL  string
}

func newCLIRunner(t *testing.T, serverURL string) *cliRunner {
	t.Helper()

	// Find project root (where go.mod is)
	projectRoot := findProjectRoot(t)

	// Build the CLI binary
	binaryPath := filepath.Join(t.TempDir(), "typerace-test")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/typerace")
	cmd.Dir = projectRoot
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "failed to build CLI: %s", string(output))

	return &cliRunner{
		binaryPath: binaryPath,
		serverURL:  serverURL,
	}
}

// player is one CLI user with their own remembered player id
type player struct {
	runner     *cliRunner
	playerFile string
}

func (r *cliRunner) newPlayer(t *testing.T) *player {
	t.Helper()
	return &player{
		runner:     r,
		playerFile: filepath.Join(t.TempDir(), "player"),
	}
}

func (p *player) run(args ...string) (string, error) {
	fullArgs := append([]string{
		"--server", p.runner.serverURL,
		"--player-file", p.playerFile,
		"--output", "json",
	}, args...)

	cmd := exec.Command(p.runner.binaryPath, fullArgs...)
	cmd.Env = append(os.Environ(), "TYPERACE_PLAYER=")
	output, err := cmd.CombinedOutput()
	return string(output), err
}

func (p *player) mustRun(t *testing.T, result any, args ...string) {
	t.Helper()
	output, err := p.run(args...)
	require.NoError(t, err, "command %v failed: %s", args, output)
	if result != nil {
		require.NoError(t, json.Unmarshal([]byte(output), result), "bad output: %s", output)
	}
}

func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// startTestServer runs the real server stack on a free port
func startTestServer(t *testing.T) string {
	t.Helper()

	ctx := context.Background()
	logger := testutil.NopLogger()

	app, err := factory.New(ctx, factory.Config{Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	_, err = app.PromptService.LoadFromFile(ctx, filepath.Join(findProjectRoot(t), "data", "prompts.yaml"))
	require.NoError(t, err)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	router := api.NewRouter(api.RouterConfig{Logger: logger, App: app})
	server := api.NewServer(router, api.DefaultServerConfig(), logger)
	go func() {
		if err := server.Serve(listener); err != nil {
			t.Logf("server error: %v", err)
		}
	}()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	})

	return "http://" + listener.Addr().String()
}

func TestCLI_HealthCheck(t *testing.T) {
	runner := newCLIRunner(t, startTestServer(t))
	p := runner.newPlayer(t)

	var health response.Health
	p.mustRun(t, &health, "health")
	assert.Equal(t, "ok", health.Status)
}

func TestCLI_PlayerCommands(t *testing.T) {
	runner := newCLIRunner(t, startTestServer(t))
	p := runner.newPlayer(t)

	var created response.Player
	p.mustRun(t, &created, "player", "create", "--name", "Alice")
	assert.Equal(t, "Alice", created.DisplayName)
	assert.NotEmpty(t, created.ID)

	// The player id is remembered between commands
	var me response.Player
	p.mustRun(t, &me, "player", "me")
	assert.Equal(t, created.ID, me.ID)

	var fetched response.Player
	p.mustRun(t, &fetched, "player", "get", created.ID)
	assert.Equal(t, "Alice", fetched.DisplayName)
}

func TestCLI_FullRace(t *testing.T) {
	runner := newCLIRunner(t, startTestServer(t))
	alice := runner.newPlayer(t)
	bob := runner.newPlayer(t)

	var aliceProfile, bobProfile response.Player
	alice.mustRun(t, &aliceProfile, "player", "create", "--name", "Alice")
	bob.mustRun(t, &bobProfile, "player", "create", "--name", "Bob")

	var game response.Session
	alice.mustRun(t, &game, "game", "create", "--time-limit", "2m")
	require.Equal(t, "pending", game.Status)
	assert.Equal(t, 120, game.Config.TimeLimitSeconds)

	bob.mustRun(t, &game, "game", "join", game.ID)
	require.Len(t, game.Members, 2)

	var prompts []response.Prompt
	alice.mustRun(t, &prompts, "game", "prompts", game.ID, "--count", "8")
	assert.Len(t, prompts, 8)

	alice.mustRun(t, &game, "game", "start", game.ID)
	require.Equal(t, "active", game.Status)
	require.Len(t, game.Prompts, 4)
	target := strconv.Itoa(game.TargetLength)

	var standings response.Standings
	bob.mustRun(t, &standings, "game", "progress", game.ID, "10", "9")
	assert.Equal(t, "active", standings.Status)

	alice.mustRun(t, &standings, "game", "progress", game.ID, target, target)
	bob.mustRun(t, &standings, "game", "progress", game.ID, target, target)
	assert.Equal(t, "finished", standings.Status)

	var result response.Result
	alice.mustRun(t, &result, "game", "result", game.ID)
	assert.Equal(t, aliceProfile.ID, result.WinnerID)
	assert.Equal(t, "completed", result.Reason)
	require.Len(t, result.Standings, 2)

	var board response.Leaderboard
	bob.mustRun(t, &board, "leaderboard", "--sort", "games_won")
	require.Len(t, board.Entries, 2)
	assert.Equal(t, aliceProfile.ID, board.Entries[0].ID)
	assert.Equal(t, 1, board.Entries[0].Stats.GamesWon)
}

func TestCLI_BotRace(t *testing.T) {
	runner := newCLIRunner(t, startTestServer(t))
	host := runner.newPlayer(t)
	host.mustRun(t, nil, "player", "create", "--name", "Host")

	var game response.Session
	host.mustRun(t, &game, "game", "create")

	var bot response.Player
	host.mustRun(t, &bot, "game", "bot", game.ID, "--wpm", "120", "--name", "Pacer")
	assert.True(t, bot.IsBot)

	host.mustRun(t, &game, "game", "get", game.ID)
	require.Len(t, game.Members, 2)

	host.mustRun(t, &game, "game", "start", game.ID)
	host.mustRun(t, &game, "game", "finish", game.ID)
	assert.Equal(t, "finished", game.Status)
	assert.Equal(t, "host", game.FinishReason)
}

func TestCLI_ErrorHandling(t *testing.T) {
	runner := newCLIRunner(t, startTestServer(t))
	p := runner.newPlayer(t)

	// Actions without a player are rejected
	output, err := p.run("game", "create")
	assert.Error(t, err)
	assert.Contains(t, output, "UNAUTHORIZED")

	p.mustRun(t, nil, "player", "create", "--name", "Carol")

	output, err = p.run("game", "join", "NOPE99")
	assert.Error(t, err)
	assert.Contains(t, output, "SESSION_NOT_FOUND")

	var game response.Session
	p.mustRun(t, &game, "game", "create")

	output, err = p.run("game", "start", game.ID)
	assert.Error(t, err)
	assert.Contains(t, output, "INSUFFICIENT_PLAYERS")

	output, err = p.run("game", "progress", game.ID, "lots", "1")
	assert.Error(t, err)
	assert.Contains(t, output, "invalid typed count")
}
