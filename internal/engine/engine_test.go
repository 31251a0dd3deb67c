package engine_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/roomstore/internal/engine"
	"github.com/roach88/roomstore/internal/policy"
	"github.com/roach88/roomstore/internal/record"
	"github.com/roach88/roomstore/internal/replay"
	"github.com/roach88/roomstore/internal/store/storetest"
	"github.com/roach88/roomstore/internal/testutil"
	"github.com/roach88/roomstore/internal/testutil/teststore"
)

var n = storetest.N

type fixture struct {
	store    *testutil.SpyStore
	registry *testutil.Registry
	sender   *testutil.Sender
	engine   *engine.Engine
	logs     *bytes.Buffer

	alice, bob, carol *testutil.Client
}

func newFixture(t *testing.T, opts ...engine.Option) *fixture {
	t.Helper()
	f := &fixture{
		store:    teststore.OpenSpy(t),
		registry: testutil.NewRegistry(),
		sender:   &testutil.Sender{},
		logs:     &bytes.Buffer{},
		alice:    testutil.NewClient("alice"),
		bob:      testutil.NewClient("bob"),
		carol:    testutil.NewClient("carol"),
	}
	logger := slog.New(slog.NewTextHandler(f.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	opts = append([]engine.Option{engine.WithLogger(logger)}, opts...)
	f.engine = engine.New(f.store, f.registry, f.sender, opts...)
	return f
}

func (f *fixture) handle(t *testing.T, c engine.Client, ev engine.Event) {
	t.Helper()
	require.NoError(t, f.engine.Handle(context.Background(), c, ev))
}

func types(events []replay.OutboundEvent) []replay.EventType {
	var out []replay.EventType
	for _, ev := range events {
		out = append(out, ev.Type)
	}
	return out
}

func TestHandle_LastValueBroadcast(t *testing.T) {
	f := newFixture(t)

	f.handle(t, f.alice, engine.BroadcastMessage{Room: "lobby", Value: map[string]any{"hello": 1}})
	f.handle(t, f.alice, engine.BroadcastMessage{Room: "lobby", Value: map[string]any{"hello": 2}})

	msgs, corrupt, err := f.store.Inner.FetchMessages(context.Background(), "lobby")
	require.NoError(t, err)
	assert.Empty(t, corrupt)
	require.Len(t, msgs, 1)
	assert.Equal(t, map[string]any{"hello": n("2")}, msgs[0].Value)
	assert.Nil(t, msgs[0].Origin)
}

func TestHandle_ClientIdentifiedReplaysDefaultRoom(t *testing.T) {
	f := newFixture(t)
	f.registry.Join("default", f.alice, f.bob)

	f.handle(t, f.alice, engine.BroadcastMessage{Room: "default", Value: "welcome"})
	f.handle(t, f.alice, engine.PrivateMessage{Room: "default", Target: "bob", Value: "psst"})
	f.handle(t, f.alice, engine.BroadcastVariableSet{Room: "default", Name: "round", Value: 3})

	f.handle(t, f.bob, engine.ClientIdentified{})
	f.handle(t, f.carol, engine.ClientIdentified{})

	ident := f.alice.Identity()
	assert.Equal(t, []replay.OutboundEvent{
		{Type: replay.TypeGlobalMessage, Room: "default", Value: "welcome"},
		{Type: replay.TypePrivateMessage, Room: "default", Value: "psst", Origin: &ident},
		{Type: replay.TypeGlobalVariable, Room: "default", Name: "round", Value: n("3")},
	}, f.sender.EventsFor("bob"))

	assert.Equal(t, []replay.EventType{"gmsg", "gvar"}, types(f.sender.EventsFor("carol")))
}

func TestHandle_CustomDefaultRoom(t *testing.T) {
	f := newFixture(t, engine.WithDefaultRoom("lobby"))

	f.handle(t, f.alice, engine.BroadcastMessage{Room: "lobby", Value: "hi"})
	f.handle(t, f.alice, engine.BroadcastMessage{Room: "default", Value: "ignored"})
	f.handle(t, f.bob, engine.ClientIdentified{})

	events := f.sender.EventsFor("bob")
	require.Len(t, events, 1)
	assert.Equal(t, "lobby", events[0].Room)
}

func TestHandle_SubscribeToRooms(t *testing.T) {
	f := newFixture(t, engine.WithPolicy(policy.MustNew(nil, []string{"secret"})))

	for _, room := range []string{"a", "b", "secret"} {
		require.NoError(t, f.store.Inner.UpsertMessage(context.Background(), record.MessageRecord{Room: room, Value: room}))
	}

	f.handle(t, f.bob, engine.SubscribeToRooms{Rooms: []string{"a", "secret", "b"}})

	events := f.sender.EventsFor("bob")
	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].Room)
	assert.Equal(t, "b", events[1].Room)
	assert.Equal(t, []string{"FetchMessages", "FetchVariables", "FetchMessages", "FetchVariables"}, f.store.Calls())
}

func TestHandle_PrivateWritesPerRecipient(t *testing.T) {
	f := newFixture(t)
	f.registry.Join("game", f.alice, f.bob)

	f.handle(t, f.alice, engine.PrivateVariableSet{Room: "game", Target: "bob", Name: "hand", Value: []any{1, 2}})
	// carol is not in the room: nothing to store
	f.handle(t, f.alice, engine.PrivateVariableSet{Room: "game", Target: "carol", Name: "hand", Value: []any{3}})

	vars, _, err := f.store.Inner.FetchVariables(context.Background(), "game")
	require.NoError(t, err)
	require.Len(t, vars, 1)
	assert.Equal(t, "bob", vars[0].Target)
	assert.Equal(t, "hand", vars[0].Name)
	assert.Equal(t, []any{n("1"), n("2")}, vars[0].Value)
	require.NotNil(t, vars[0].Origin)
	assert.Equal(t, f.alice.Identity(), *vars[0].Origin)
}

func TestHandle_PrivateTargetByID(t *testing.T) {
	f := newFixture(t)
	f.registry.Join("game", f.bob)

	f.handle(t, f.alice, engine.PrivateMessage{Room: "game", Target: "id-bob", Value: "hey"})

	msgs, _, err := f.store.Inner.FetchMessages(context.Background(), "game")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "bob", msgs[0].Target, "records are keyed by the recipient's username")
}

func TestHandle_DisabledFeatureSkipsWriteAndReplay(t *testing.T) {
	flags := replay.Flags{DisablePrivateMessages: true, DisableProjectVariables: true}
	f := newFixture(t, engine.WithFlags(flags))
	f.registry.Join("lobby", f.bob)

	f.handle(t, f.alice, engine.PrivateMessage{Room: "lobby", Target: "bob", Value: "x"})
	f.handle(t, f.alice, engine.ProjectVariableSet{ProjectID: "p", Name: "v", Value: 1})
	f.handle(t, f.alice, engine.ProjectHandshake{ProjectID: "p"})

	for _, call := range f.store.Calls() {
		assert.NotEqual(t, "UpsertMessage", call)
		assert.NotEqual(t, "UpsertProjectVariable", call)
		assert.NotEqual(t, "FetchProjectVariables", call)
	}
	assert.Empty(t, f.sender.Sent())
}

func TestHandle_DeniedRoomNeverTouchesStore(t *testing.T) {
	f := newFixture(t, engine.WithPolicy(policy.MustNew([]string{"game-.*"}, []string{"game-secret"})))
	f.registry.Join("game-secret", f.bob)

	events := []engine.Event{
		engine.BroadcastMessage{Room: "game-secret", Value: 1},
		engine.PrivateMessage{Room: "game-secret", Target: "bob", Value: 1},
		engine.BroadcastVariableSet{Room: "lobby", Name: "v", Value: 1},
		engine.PrivateVariableSet{Room: "lobby", Target: "bob", Name: "v", Value: 1},
		engine.SubscribeToRooms{Rooms: []string{"lobby", "game-secret"}},
		engine.ProjectHandshake{ProjectID: "lobby"},
		engine.ProjectVariableCreate{ProjectID: "lobby", Name: "v", Value: 1},
		engine.ProjectVariableSet{ProjectID: "lobby", Name: "v", Value: 1},
		engine.ProjectVariableRename{ProjectID: "lobby", Name: "v", NewName: "w"},
		engine.ProjectVariableDelete{ProjectID: "lobby", Name: "v"},
		engine.ClientIdentified{}, // "default" is not in the allow list
	}
	for _, ev := range events {
		f.handle(t, f.alice, ev)
	}

	assert.Empty(t, f.store.Calls())
	assert.Empty(t, f.sender.Sent())
}

func TestHandle_ProjectLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.handle(t, f.alice, engine.ProjectVariableCreate{ProjectID: "proj1", Name: "x", Value: 10})
	f.handle(t, f.alice, engine.ProjectVariableSet{ProjectID: "proj1", Name: "x", Value: 20})

	vars, _, err := f.store.Inner.FetchProjectVariables(ctx, "proj1")
	require.NoError(t, err)
	assert.Equal(t, []record.ProjectVariable{{ProjectID: "proj1", Name: "x", Value: n("20")}}, vars)

	f.handle(t, f.alice, engine.ProjectVariableRename{ProjectID: "proj1", Name: "x", NewName: "y"})
	f.handle(t, f.bob, engine.ProjectHandshake{ProjectID: "proj1"})
	assert.Equal(t, []replay.OutboundEvent{
		{Type: replay.TypeProjectSet, Name: "y", Value: n("20")},
	}, f.sender.EventsFor("bob"))

	f.handle(t, f.alice, engine.ProjectVariableDelete{ProjectID: "proj1", Name: "y"})
	vars, _, err = f.store.Inner.FetchProjectVariables(ctx, "proj1")
	require.NoError(t, err)
	assert.Empty(t, vars)

	// deleting again is fine
	f.handle(t, f.alice, engine.ProjectVariableDelete{ProjectID: "proj1", Name: "y"})
}

func TestHandle_HandshakeMergesLiveState(t *testing.T) {
	f := newFixture(t)
	f.handle(t, f.alice, engine.ProjectVariableSet{ProjectID: "p1", Name: "a", Value: 1})
	f.handle(t, f.alice, engine.ProjectVariableSet{ProjectID: "p1", Name: "b", Value: 2})

	live := f.registry.Open("p1", map[string]any{"a": 99})
	f.handle(t, f.bob, engine.ProjectHandshake{ProjectID: "p1"})

	assert.Equal(t, []replay.OutboundEvent{
		{Type: replay.TypeProjectSet, Name: "b", Value: n("2")},
	}, f.sender.EventsFor("bob"))
	assert.Equal(t, map[string]any{"a": 99, "b": n("2")}, live.Snapshot())

	// a second handshake finds both names live and sends nothing
	f.handle(t, f.carol, engine.ProjectHandshake{ProjectID: "p1"})
	assert.Empty(t, f.sender.EventsFor("carol"))
}

func TestHandle_HandshakeRoomNotLive(t *testing.T) {
	f := newFixture(t)
	f.handle(t, f.alice, engine.ProjectVariableSet{ProjectID: "p1", Name: "a", Value: 1})

	f.handle(t, f.bob, engine.ProjectHandshake{ProjectID: "p1"})
	f.handle(t, f.carol, engine.ProjectHandshake{ProjectID: "p1"})

	assert.Len(t, f.sender.EventsFor("bob"), 1)
	assert.Len(t, f.sender.EventsFor("carol"), 1, "nothing was cached, so every handshake replays")
	assert.False(t, f.registry.IsRoomLive("p1"))
}

func TestHandle_RenameMissingIsNotFound(t *testing.T) {
	f := newFixture(t)

	err := f.engine.Handle(context.Background(), f.alice,
		engine.ProjectVariableRename{ProjectID: "p1", Name: "ghost", NewName: "x"})
	require.Error(t, err)
	assert.True(t, record.IsNotFound(err))

	var re *record.Error
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "p1", re.Scope)
	assert.Equal(t, "ghost", re.Key)
}

func TestHandle_InvalidEvents(t *testing.T) {
	tests := []struct {
		name string
		ev   engine.Event
	}{
		{"broadcast without room", engine.BroadcastMessage{Value: 1}},
		{"private without target", engine.PrivateMessage{Room: "r", Value: 1}},
		{"variable without name", engine.BroadcastVariableSet{Room: "r", Value: 1}},
		{"private variable without name", engine.PrivateVariableSet{Room: "r", Target: "bob"}},
		{"handshake without project", engine.ProjectHandshake{}},
		{"set without name", engine.ProjectVariableSet{ProjectID: "p"}},
		{"rename without new name", engine.ProjectVariableRename{ProjectID: "p", Name: "a"}},
		{"delete without project", engine.ProjectVariableDelete{Name: "a"}},
		{"subscribe to empty room", engine.SubscribeToRooms{Rooms: []string{""}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, engine.WithIDGenerator(engine.NewFixedGenerator("evt-1")))

			err := f.engine.Handle(context.Background(), f.alice, tt.ev)
			require.Error(t, err)
			assert.True(t, engine.IsInvalidEvent(err))

			var ee *engine.Error
			require.True(t, errors.As(err, &ee))
			assert.Equal(t, "evt-1", ee.CorrelationID)
			assert.Equal(t, engine.EventName(tt.ev), ee.Event)
			assert.Empty(t, f.store.Calls())
		})
	}
}

func TestHandle_UnknownEvent(t *testing.T) {
	f := newFixture(t)
	err := f.engine.Handle(context.Background(), f.alice, nil)
	require.Error(t, err)

	var ee *engine.Error
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, engine.ErrCodeUnknownEvent, ee.Code)
}

func TestHandle_ResolveFailure(t *testing.T) {
	f := newFixture(t)
	f.registry.ResolveErr = errors.New("registry offline")

	err := f.engine.Handle(context.Background(), f.alice, engine.PrivateMessage{Room: "r", Target: "bob", Value: 1})
	require.Error(t, err)
	assert.True(t, engine.IsResolveFailed(err))
	assert.NotContains(t, f.store.Calls(), "UpsertMessage")
}

func TestHandle_DeliveryFailure(t *testing.T) {
	f := newFixture(t)
	f.handle(t, f.alice, engine.BroadcastMessage{Room: "default", Value: 1})
	f.handle(t, f.alice, engine.BroadcastVariableSet{Room: "default", Name: "v", Value: 1})

	f.sender.Err = errors.New("connection closed")
	err := f.engine.Handle(context.Background(), f.bob, engine.ClientIdentified{})
	require.Error(t, err)
	assert.True(t, engine.IsDeliveryFailed(err))
	assert.Len(t, f.sender.Sent(), 1, "delivery stops at the first failure")
	assert.Contains(t, f.logs.String(), "event failed")
}

func TestHandle_StoreFailurePropagates(t *testing.T) {
	f := newFixture(t)
	f.store.Err = record.StorageError("upsert message", "lobby", "broadcast", errors.New("disk full"))

	err := f.engine.Handle(context.Background(), f.alice, engine.BroadcastMessage{Room: "lobby", Value: 1})
	require.Error(t, err)
	assert.True(t, record.IsStorageUnavailable(err))
}

func TestHandle_NormalizesIdentifiers(t *testing.T) {
	f := newFixture(t)
	decomposed := "cafe\u0301"
	composed := "caf\u00e9"

	f.handle(t, f.alice, engine.BroadcastVariableSet{Room: decomposed, Name: decomposed, Value: "x"})
	f.handle(t, f.bob, engine.SubscribeToRooms{Rooms: []string{composed}})

	events := f.sender.EventsFor("bob")
	require.Len(t, events, 1)
	assert.Equal(t, composed, events[0].Room)
	assert.Equal(t, composed, events[0].Name)
}

func TestHandle_LogsCorrelationID(t *testing.T) {
	f := newFixture(t,
		engine.WithIDGenerator(engine.NewFixedGenerator("evt-42")),
		engine.WithPolicy(policy.MustNew(nil, []string{"lobby"})),
	)
	f.handle(t, f.alice, engine.BroadcastMessage{Room: "lobby", Value: 1})

	assert.Contains(t, f.logs.String(), "write dropped by room policy")
	assert.Contains(t, f.logs.String(), "correlation_id=evt-42")
	assert.Contains(t, f.logs.String(), "event=gmsg")
}
