package harness

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/roomstore/internal/engine"
	"github.com/roach88/roomstore/internal/record"
	"github.com/roach88/roomstore/internal/testutil/teststore"
)

func mustParse(t *testing.T, doc string) *Scenario {
	t.Helper()
	sc, err := ParseScenario([]byte(doc))
	require.NoError(t, err)
	return sc
}

func TestRun_Fixtures(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			sc, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(sc)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
			assert.Len(t, result.Trace, len(sc.Steps))
		})
	}
}

func TestRun_TraceRecordsDeliveriesPerStep(t *testing.T) {
	sc := mustParse(t, `
name: trace
description: "deliveries are attributed to the step that caused them"
clients: [alice, bob]
steps:
  - client: alice
    event: gvar
    room: lobby
    name: n
    value: 1
  - client: bob
    event: subscribe
    rooms: [lobby]
`)
	result, err := Run(sc)
	require.NoError(t, err)
	require.Len(t, result.Trace, 2)

	first := result.Trace[0]
	assert.Equal(t, 1, first.Step)
	assert.Equal(t, "evt-001", first.CorrelationID)
	assert.Empty(t, first.Deliveries)

	second := result.Trace[1]
	assert.Equal(t, "evt-002", second.CorrelationID)
	require.Len(t, second.Deliveries, 1)
	assert.Equal(t, "bob", second.Deliveries[0].To)
	assert.Equal(t, "gvar", second.Deliveries[0].Packet["cmd"])
}

func TestRun_UnexpectedErrorFails(t *testing.T) {
	sc := mustParse(t, `
name: bad
description: "a broadcast without a room"
clients: [alice]
steps:
  - client: alice
    event: gmsg
    value: hi
`)
	result, err := Run(sc)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unexpected error")
	assert.Equal(t, string(engine.ErrCodeInvalidEvent), result.Trace[0].Error)
}

func TestRun_ExpectedErrorMissing(t *testing.T) {
	sc := mustParse(t, `
name: bad
description: "a rename that succeeds"
clients: [alice]
steps:
  - client: alice
    event: create
    project: p
    name: a
    value: 1
  - client: alice
    event: rename
    project: p
    name: a
    new_name: b
    expect_error: NOT_FOUND
`)
	result, err := Run(sc)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected error NOT_FOUND")
}

func TestRun_AssertionFailureIsReported(t *testing.T) {
	sc := mustParse(t, `
name: bad
description: "nobody receives anything"
clients: [alice]
steps:
  - client: alice
    event: client_identified
assertions:
  - type: delivery_count
    to: alice
    count: 3
`)
	result, err := Run(sc)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "assertion 0")
	assert.Contains(t, result.Errors[0], "alice receives 3 packets")
}

func TestRun_InvalidPolicy(t *testing.T) {
	sc := mustParse(t, minimalScenario)
	sc.Config.EnabledRoomPatterns = []string{"("}

	_, err := Run(sc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenario config")
}

func TestRun_DefaultRoom(t *testing.T) {
	sc := mustParse(t, `
name: default_room
description: "identification replays the configured default room"
config:
  default_room: hall
clients: [alice, bob]
steps:
  - client: alice
    event: gmsg
    room: hall
    value: welcome
  - client: bob
    event: client_identified
assertions:
  - type: delivered
    to: bob
    packet: {cmd: gmsg, rooms: hall, val: welcome}
`)
	result, err := Run(sc)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRunOn_StoreFailure(t *testing.T) {
	spy := teststore.OpenSpy(t)
	spy.Err = record.StorageError("upsert message", "lobby", "", errors.New("disk gone"))

	sc := mustParse(t, `
name: store_down
description: "store failures surface with their code"
clients: [alice]
steps:
  - client: alice
    event: gmsg
    room: lobby
    value: hi
    expect_error: STORAGE_UNAVAILABLE
`)
	result, err := RunOn(context.Background(), spy, sc)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, []string{"UpsertMessage"}, spy.Calls())
}

func TestRunOn_SharesStoreAcrossRuns(t *testing.T) {
	s := teststore.Open(t)
	ctx := context.Background()

	writer := mustParse(t, `
name: writer
description: "first session writes"
clients: [alice]
steps:
  - client: alice
    event: create
    project: p
    name: v
    value: 5
`)
	_, err := RunOn(ctx, s, writer)
	require.NoError(t, err)

	reader := mustParse(t, `
name: reader
description: "second session reads"
clients: [bob]
steps:
  - client: bob
    event: handshake
    project: p
assertions:
  - type: delivered
    to: bob
    packet: {method: set, name: v, value: 5}
`)
	result, err := RunOn(ctx, s, reader)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestErrorCode(t *testing.T) {
	engineErr := &engine.Error{Code: engine.ErrCodeDeliveryFailed, Message: "send"}
	storeErr := record.NotFoundError("rename project variable", "p", "a")

	assert.Equal(t, "", errorCode(nil))
	assert.Equal(t, "DELIVERY_FAILED", errorCode(engineErr))
	assert.Equal(t, "NOT_FOUND", errorCode(storeErr))
	assert.Equal(t, "NOT_FOUND", errorCode(fmt.Errorf("wrapped: %w", storeErr)))
	assert.Equal(t, "UNKNOWN", errorCode(errors.New("boom")))
}
