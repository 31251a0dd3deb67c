package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/roomstore/internal/record"
)

type failingCodec struct{ record.JSONCodec }

func (failingCodec) Encode(any) (string, error) { return "", errors.New("refused") }

func TestUpsert_EncodeFailureIsSerializationError(t *testing.T) {
	s := createTestStore(t, WithCodec(failingCodec{}))
	ctx := context.Background()

	err := s.UpsertMessage(ctx, record.MessageRecord{Room: "lobby", Value: 1})
	assert.True(t, record.IsSerialization(err), "got %v", err)

	err = s.UpsertVariable(ctx, record.VariableRecord{Room: "lobby", Name: "x", Value: 1})
	assert.True(t, record.IsSerialization(err), "got %v", err)

	err = s.UpsertProjectVariable(ctx, record.ProjectVariable{ProjectID: "p", Name: "x", Value: 1})
	assert.True(t, record.IsSerialization(err), "got %v", err)

	var count int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM messages").Scan(&count))
	assert.Equal(t, 0, count)
}

func TestUpsertMessage_StoresOriginAsJSON(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	origin := &record.Identity{ID: "7", Username: "alice", UUID: "a-7"}
	require.NoError(t, s.UpsertMessage(ctx, record.MessageRecord{Room: "lobby", Target: "bob", Value: "psst", Origin: origin}))
	require.NoError(t, s.UpsertMessage(ctx, record.MessageRecord{Room: "lobby", Value: "hello"}))

	var originText string
	require.NoError(t, s.db.QueryRow(`SELECT origin FROM messages WHERE room = 'lobby' AND target = 'bob'`).Scan(&originText))
	assert.Equal(t, `{"id":"7","username":"alice","uuid":"a-7"}`, originText)

	require.NoError(t, s.db.QueryRow(`SELECT origin FROM messages WHERE room = 'lobby' AND target = ''`).Scan(&originText))
	assert.Equal(t, "null", originText)
}

func TestRename_MovesUndecodableValueVerbatim(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.db.Exec(`INSERT INTO project_variables (project_id, name, value) VALUES ('p', 'a', '{raw')`)
	require.NoError(t, err)

	require.NoError(t, s.RenameProjectVariable(ctx, "p", "a", "b"))

	var name, value string
	require.NoError(t, s.db.QueryRow(`SELECT name, value FROM project_variables WHERE project_id = 'p'`).Scan(&name, &value))
	assert.Equal(t, "b", name)
	assert.Equal(t, "{raw", value)
}

func TestRename_CancelledContextLeavesStoreUnchanged(t *testing.T) {
	s := createTestStore(t)
	require.NoError(t, s.UpsertProjectVariable(context.Background(), record.ProjectVariable{ProjectID: "p", Name: "a", Value: 1}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.RenameProjectVariable(ctx, "p", "a", "b")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	vars, _, err := s.FetchProjectVariables(context.Background(), "p")
	require.NoError(t, err)
	require.Len(t, vars, 1)
	assert.Equal(t, "a", vars[0].Name)
}
