package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/roomstore/internal/engine"
)

const minimalScenario = `
name: minimal
description: "one broadcast"
clients: [alice]
steps:
  - client: alice
    event: gmsg
    room: lobby
    value: hi
`

func TestParseScenario_Minimal(t *testing.T) {
	sc, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)

	assert.Equal(t, "minimal", sc.Name)
	assert.Equal(t, []string{"alice"}, sc.Clients)
	require.Len(t, sc.Steps, 1)
	assert.Equal(t, "gmsg", sc.Steps[0].Event)
	assert.Equal(t, "hi", sc.Steps[0].Value)
}

func TestLoadScenario_Fixtures(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			sc, err := LoadScenario(path)
			require.NoError(t, err)
			assert.NotEmpty(t, sc.Assertions)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read scenario file")
}

func TestLoadScenario_FromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minimal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario), 0o644))

	sc, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "minimal", sc.Name)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "unknown field",
			doc:  minimalScenario + "asertions: []\n",
			want: "field asertions not found",
		},
		{
			name: "missing name",
			doc: `
description: d
clients: [a]
steps: [{client: a, event: client_identified}]
`,
			want: "name is required",
		},
		{
			name: "missing description",
			doc: `
name: n
clients: [a]
steps: [{client: a, event: client_identified}]
`,
			want: "description is required",
		},
		{
			name: "no clients",
			doc: `
name: n
description: d
steps: [{client: a, event: client_identified}]
`,
			want: "clients list is required",
		},
		{
			name: "no steps",
			doc: `
name: n
description: d
clients: [a]
`,
			want: "steps list is required",
		},
		{
			name: "duplicate client",
			doc: `
name: n
description: d
clients: [a, a]
steps: [{client: a, event: client_identified}]
`,
			want: `duplicate client "a"`,
		},
		{
			name: "unknown room member",
			doc: `
name: n
description: d
clients: [a]
rooms:
  lobby: [b]
steps: [{client: a, event: client_identified}]
`,
			want: `rooms[lobby]: unknown client "b"`,
		},
		{
			name: "unknown step client",
			doc: `
name: n
description: d
clients: [a]
steps: [{client: b, event: client_identified}]
`,
			want: `steps[0]: unknown client "b"`,
		},
		{
			name: "unknown event",
			doc: `
name: n
description: d
clients: [a]
steps: [{client: a, event: shout}]
`,
			want: `steps[0]: unknown event "shout"`,
		},
		{
			name: "unknown assertion type",
			doc: minimalScenario + `
assertions:
  - type: trace_contains
`,
			want: `unknown assertion type "trace_contains"`,
		},
		{
			name: "assertion without type",
			doc: minimalScenario + `
assertions:
  - to: alice
`,
			want: "assertions[0]: type is required",
		},
		{
			name: "delivered without packet",
			doc: minimalScenario + `
assertions:
  - type: delivered
    to: alice
`,
			want: "packet is required for delivered",
		},
		{
			name: "delivered to unknown client",
			doc: minimalScenario + `
assertions:
  - type: delivered
    to: zed
    packet: {cmd: gmsg}
`,
			want: `unknown client "zed"`,
		},
		{
			name: "negative count",
			doc: minimalScenario + `
assertions:
  - type: delivery_count
    to: alice
    count: -1
`,
			want: "count must be non-negative",
		},
		{
			name: "live variable without name",
			doc: minimalScenario + `
assertions:
  - type: live_variable
    room: proj1
`,
			want: "room and name are required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestStep_ToEvent(t *testing.T) {
	tests := []struct {
		step Step
		want engine.Event
	}{
		{Step{Event: "client_identified"}, engine.ClientIdentified{}},
		{Step{Event: "subscribe", Rooms: []string{"a", "b"}}, engine.SubscribeToRooms{Rooms: []string{"a", "b"}}},
		{Step{Event: "gmsg", Room: "r", Value: 1}, engine.BroadcastMessage{Room: "r", Value: 1}},
		{Step{Event: "pmsg", Room: "r", Target: "bob", Value: 1}, engine.PrivateMessage{Room: "r", Target: "bob", Value: 1}},
		{Step{Event: "gvar", Room: "r", Name: "n", Value: 1}, engine.BroadcastVariableSet{Room: "r", Name: "n", Value: 1}},
		{Step{Event: "pvar", Room: "r", Target: "bob", Name: "n", Value: 1}, engine.PrivateVariableSet{Room: "r", Target: "bob", Name: "n", Value: 1}},
		{Step{Event: "handshake", Project: "p"}, engine.ProjectHandshake{ProjectID: "p"}},
		{Step{Event: "create", Project: "p", Name: "n", Value: 1}, engine.ProjectVariableCreate{ProjectID: "p", Name: "n", Value: 1}},
		{Step{Event: "set", Project: "p", Name: "n", Value: 1}, engine.ProjectVariableSet{ProjectID: "p", Name: "n", Value: 1}},
		{Step{Event: "rename", Project: "p", Name: "n", NewName: "m"}, engine.ProjectVariableRename{ProjectID: "p", Name: "n", NewName: "m"}},
		{Step{Event: "delete", Project: "p", Name: "n"}, engine.ProjectVariableDelete{ProjectID: "p", Name: "n"}},
	}

	for _, tt := range tests {
		t.Run(tt.step.Event, func(t *testing.T) {
			got, err := tt.step.ToEvent()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.step.Event, engine.EventName(got))
		})
	}
}

func TestScenarioConfig(t *testing.T) {
	cfg := ScenarioConfig{
		DisablePrivateMessages: true,
		DisabledRoomPatterns:   []string{"secret-.*"},
	}
	assert.True(t, cfg.Flags().DisablePrivateMessages)
	assert.False(t, cfg.Flags().DisableBroadcastMessages)

	pol, err := cfg.Policy()
	require.NoError(t, err)
	assert.False(t, pol.IsEnabled("secret-1"))
	assert.True(t, pol.IsEnabled("lobby"))

	_, err = ScenarioConfig{EnabledRoomPatterns: []string{"("}}.Policy()
	assert.Error(t, err)
}
