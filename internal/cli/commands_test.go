package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEnv is a config file pointing at a fresh SQLite database.
type testEnv struct {
	configPath string
	dbPath     string
}

func newTestEnv(t *testing.T, extra string) testEnv {
	t.Helper()
	dir := t.TempDir()
	env := testEnv{
		configPath: filepath.Join(dir, "roomstore.yaml"),
		dbPath:     filepath.Join(dir, "rooms.db"),
	}
	content := fmt.Sprintf("storage:\n  driver: sqlite\n  path: %s\n%s", env.dbPath, extra)
	require.NoError(t, os.WriteFile(env.configPath, []byte(content), 0o600))
	return env
}

// run executes the root command with args and returns stdout.
func (e testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (e testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	require.NoError(t, err, "roomstore %v", args)
	return out
}

func TestProjectCommands(t *testing.T) {
	env := newTestEnv(t, "")

	out := env.mustRun(t, "project", "set", "p1", "x", "10")
	assert.Contains(t, out, "Set x in p1")
	env.mustRun(t, "project", "set", "p1", "label", "hello world")
	env.mustRun(t, "project", "set", "p1", "list", `[1, "two"]`)

	out = env.mustRun(t, "inspect", "project", "p1")
	assert.Contains(t, out, "Project: p1 (enabled)")
	assert.Contains(t, out, "Variables (3):")
	assert.Contains(t, out, `label = "hello world"`)
	assert.Contains(t, out, `list = [1,"two"]`)
	assert.Contains(t, out, "x = 10")

	env.mustRun(t, "project", "rename", "p1", "x", "y")
	out = env.mustRun(t, "inspect", "project", "p1", "--format", "json")

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Variables map[string]any `json:"variables"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"y": float64(10), "label": "hello world", "list": []any{float64(1), "two"}}, resp.Data.Variables)

	env.mustRun(t, "project", "delete", "p1", "y")
	out = env.mustRun(t, "inspect", "project", "p1")
	assert.Contains(t, out, "Variables (2):")
}

func TestProjectRenameMissing(t *testing.T) {
	env := newTestEnv(t, "")

	_, err := env.run(t, "project", "rename", "p1", "ghost", "y")
	require.Error(t, err)
	assert.Equal(t, ExitNotFound, GetExitCode(err))
	assert.Equal(t, "NOT_FOUND", ErrorCode(err))
}

func TestProjectCommandsRespectPolicy(t *testing.T) {
	env := newTestEnv(t, "disabled_room_patterns: [\"p-.*\"]\n")

	env.mustRun(t, "project", "set", "p-1", "x", "1")
	out := env.mustRun(t, "inspect", "project", "p-1")
	assert.Contains(t, out, "disabled by policy")
	assert.Contains(t, out, "Variables (0):")
}

func TestInspectDisabledHidesStoredRecords(t *testing.T) {
	base := newTestEnv(t, "")
	base.mustRun(t, "project", "set", "p-1", "secret", "42")

	// same database, now behind a deny pattern
	denied := testEnv{configPath: filepath.Join(t.TempDir(), "denied.yaml"), dbPath: base.dbPath}
	content := fmt.Sprintf("storage:\n  driver: sqlite\n  path: %s\ndisabled_room_patterns: [\"p-.*\"]\n", base.dbPath)
	require.NoError(t, os.WriteFile(denied.configPath, []byte(content), 0o600))

	out := denied.mustRun(t, "inspect", "project", "p-1")
	assert.Contains(t, out, "disabled by policy")
	assert.Contains(t, out, "Variables (0):")
	assert.NotContains(t, out, "secret")

	out = denied.mustRun(t, "inspect", "room", "p-1", "--format", "json")
	assert.NotContains(t, out, "secret")
	assert.Contains(t, out, `"enabled":false`)
}

func TestReplayNormalizesArguments(t *testing.T) {
	env := newTestEnv(t, "")
	env.mustRun(t, "project", "set", "caf\u00e9", "x", "1")

	out := env.mustRun(t, "replay", "project", "cafe\u0301")
	assert.Equal(t, `{"method":"set","name":"x","value":1}`+"\n", out)

	out = env.mustRun(t, "inspect", "project", "cafe\u0301")
	assert.Contains(t, out, "x = 1")
}

func TestReplayConnect(t *testing.T) {
	env := newTestEnv(t, "")
	env.mustRun(t, "project", "set", "p1", "x", `{"a":1}`)

	out := env.mustRun(t, "replay", "project", "p1")
	assert.Equal(t, `{"method":"set","name":"x","value":{"a":1}}`+"\n", out)

	out = env.mustRun(t, "replay", "connect", "lobby", "--user", "bob")
	assert.Contains(t, out, "Nothing to replay.")

	out = env.mustRun(t, "replay", "project", "p1", "--format", "json")
	var resp struct {
		Data ReplayOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Packets, 1)
	assert.Equal(t, "set", resp.Data.Packets[0]["method"])
}

func TestInspectRoomEmpty(t *testing.T) {
	env := newTestEnv(t, "")

	out := env.mustRun(t, "inspect", "room", "lobby")
	assert.Contains(t, out, "Room: lobby (enabled)")
	assert.Contains(t, out, "Messages (0):")
	assert.Contains(t, out, "Variables (0):")
}

func TestDBFlagOverridesConfig(t *testing.T) {
	env := newTestEnv(t, "")
	other := filepath.Join(t.TempDir(), "other.db")

	env.mustRun(t, "--db", other, "project", "set", "p1", "x", "1")
	_, err := os.Stat(other)
	require.NoError(t, err)

	out := env.mustRun(t, "inspect", "project", "p1")
	assert.Contains(t, out, "Variables (0):", "the configured database was not written")
}

func TestConfigCheck(t *testing.T) {
	env := newTestEnv(t, "default_room: lobby\n")

	out := env.mustRun(t, "config", "check")
	assert.Contains(t, out, "default_room: lobby")
	assert.Contains(t, out, "driver: sqlite")
}

func TestConfigCheckInvalid(t *testing.T) {
	env := newTestEnv(t, "not_a_setting: true\n")

	_, err := env.run(t, "config", "check")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "config does not match schema")
}

func TestServe(t *testing.T) {
	env := newTestEnv(t, "")

	ready := make(chan string, 1)
	opts := &ServeOptions{
		RootOptions: &RootOptions{Format: "text", Config: env.configPath},
		Addr:        "127.0.0.1:0",
		ready:       func(addr string) { ready <- addr },
	}

	ctx, cancel := context.WithCancel(context.Background())
	cmd := &cobra.Command{}
	cmd.SetContext(ctx)
	cmd.SetOut(io.Discard)

	done := make(chan error, 1)
	go func() { done <- runServe(opts, cmd) }()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
