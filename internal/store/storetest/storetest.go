// Package storetest holds the behavioural suite every record.Store backend
// must pass.
package storetest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/roomstore/internal/record"
)

// Factory opens a fresh, empty store for one subtest. The factory owns
// cleanup (typically via t.Cleanup).
type Factory func(t *testing.T) record.Store

// Run executes the full suite against stores produced by open.
func Run(t *testing.T, open Factory) {
	t.Run("MessageUpsertReplaces", func(t *testing.T) { testMessageUpsertReplaces(t, open(t)) })
	t.Run("MessageTargetsAreIndependent", func(t *testing.T) { testMessageTargets(t, open(t)) })
	t.Run("MessageRoomsAreIsolated", func(t *testing.T) { testMessageRooms(t, open(t)) })
	t.Run("VariableUpsertReplaces", func(t *testing.T) { testVariableUpsertReplaces(t, open(t)) })
	t.Run("VariableKeysAreIndependent", func(t *testing.T) { testVariableKeys(t, open(t)) })
	t.Run("ProjectVariableLifecycle", func(t *testing.T) { testProjectLifecycle(t, open(t)) })
	t.Run("ProjectVariableRename", func(t *testing.T) { testProjectRename(t, open(t)) })
	t.Run("ProjectVariableRenameMissing", func(t *testing.T) { testProjectRenameMissing(t, open(t)) })
	t.Run("ProjectVariableRenameSameName", func(t *testing.T) { testProjectRenameSameName(t, open(t)) })
	t.Run("ProjectVariableRenameOverwrites", func(t *testing.T) { testProjectRenameOverwrites(t, open(t)) })
	t.Run("ProjectVariableDeleteAbsent", func(t *testing.T) { testProjectDeleteAbsent(t, open(t)) })
	t.Run("EmptyScopes", func(t *testing.T) { testEmptyScopes(t, open(t)) })
	t.Run("StructuredValues", func(t *testing.T) { testStructuredValues(t, open(t)) })
	t.Run("ConcurrentDistinctKeys", func(t *testing.T) { testConcurrentDistinctKeys(t, open(t)) })
	t.Run("Ping", func(t *testing.T) { require.NoError(t, open(t).Ping(context.Background())) })
}

// N is shorthand for the number type values decode to.
func N(s string) json.Number { return json.Number(s) }

func fetchMessages(t *testing.T, s record.Store, room string) []record.MessageRecord {
	t.Helper()
	recs, corrupt, err := s.FetchMessages(context.Background(), room)
	require.NoError(t, err)
	require.Empty(t, corrupt)
	sort.Slice(recs, func(i, j int) bool { return recs[i].Target < recs[j].Target })
	return recs
}

func fetchVariables(t *testing.T, s record.Store, room string) []record.VariableRecord {
	t.Helper()
	recs, corrupt, err := s.FetchVariables(context.Background(), room)
	require.NoError(t, err)
	require.Empty(t, corrupt)
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Name != recs[j].Name {
			return recs[i].Name < recs[j].Name
		}
		return recs[i].Target < recs[j].Target
	})
	return recs
}

func fetchProject(t *testing.T, s record.Store, projectID string) map[string]any {
	t.Helper()
	vars, corrupt, err := s.FetchProjectVariables(context.Background(), projectID)
	require.NoError(t, err)
	require.Empty(t, corrupt)
	out := make(map[string]any, len(vars))
	for _, v := range vars {
		assert.Equal(t, projectID, v.ProjectID)
		_, dup := out[v.Name]
		require.False(t, dup, "duplicate project variable %q", v.Name)
		out[v.Name] = v.Value
	}
	return out
}

func testMessageUpsertReplaces(t *testing.T, s record.Store) {
	ctx := context.Background()
	require.NoError(t, s.UpsertMessage(ctx, record.MessageRecord{Room: "lobby", Value: map[string]any{"hello": 1}}))
	require.NoError(t, s.UpsertMessage(ctx, record.MessageRecord{Room: "lobby", Value: map[string]any{"hello": 2}}))

	recs := fetchMessages(t, s, "lobby")
	require.Len(t, recs, 1)
	assert.Equal(t, "lobby", recs[0].Room)
	assert.Equal(t, "", recs[0].Target)
	assert.Equal(t, map[string]any{"hello": N("2")}, recs[0].Value)
	assert.Nil(t, recs[0].Origin)
}

func testMessageTargets(t *testing.T, s record.Store) {
	ctx := context.Background()
	origin := &record.Identity{ID: "1", Username: "carol", UUID: "c-1"}

	require.NoError(t, s.UpsertMessage(ctx, record.MessageRecord{Room: "lobby", Value: "all"}))
	require.NoError(t, s.UpsertMessage(ctx, record.MessageRecord{Room: "lobby", Target: "alice", Value: "hi alice", Origin: origin}))
	require.NoError(t, s.UpsertMessage(ctx, record.MessageRecord{Room: "lobby", Target: "bob", Value: "hi bob", Origin: origin}))
	require.NoError(t, s.UpsertMessage(ctx, record.MessageRecord{Room: "lobby", Target: "alice", Value: "again alice", Origin: origin}))

	recs := fetchMessages(t, s, "lobby")
	require.Len(t, recs, 3)

	assert.Equal(t, "", recs[0].Target)
	assert.Equal(t, "all", recs[0].Value)

	assert.Equal(t, "alice", recs[1].Target)
	assert.Equal(t, "again alice", recs[1].Value)
	assert.Equal(t, origin, recs[1].Origin)

	assert.Equal(t, "bob", recs[2].Target)
	assert.Equal(t, "hi bob", recs[2].Value)
}

func testMessageRooms(t *testing.T, s record.Store) {
	ctx := context.Background()
	require.NoError(t, s.UpsertMessage(ctx, record.MessageRecord{Room: "a", Value: "in a"}))
	require.NoError(t, s.UpsertMessage(ctx, record.MessageRecord{Room: "ab", Value: "in ab"}))

	recs := fetchMessages(t, s, "a")
	require.Len(t, recs, 1)
	assert.Equal(t, "in a", recs[0].Value)

	recs = fetchMessages(t, s, "ab")
	require.Len(t, recs, 1)
	assert.Equal(t, "in ab", recs[0].Value)
}

func testVariableUpsertReplaces(t *testing.T, s record.Store) {
	ctx := context.Background()
	require.NoError(t, s.UpsertVariable(ctx, record.VariableRecord{Room: "lobby", Name: "score", Value: 1}))
	require.NoError(t, s.UpsertVariable(ctx, record.VariableRecord{Room: "lobby", Name: "score", Value: 2}))

	recs := fetchVariables(t, s, "lobby")
	require.Len(t, recs, 1)
	assert.Equal(t, "score", recs[0].Name)
	assert.Equal(t, N("2"), recs[0].Value)
}

func testVariableKeys(t *testing.T, s record.Store) {
	ctx := context.Background()
	origin := &record.Identity{ID: "9", Username: "dave"}

	require.NoError(t, s.UpsertVariable(ctx, record.VariableRecord{Room: "lobby", Name: "x", Value: "gx"}))
	require.NoError(t, s.UpsertVariable(ctx, record.VariableRecord{Room: "lobby", Name: "x", Target: "alice", Value: "px", Origin: origin}))
	require.NoError(t, s.UpsertVariable(ctx, record.VariableRecord{Room: "lobby", Name: "y", Value: "gy"}))
	require.NoError(t, s.UpsertVariable(ctx, record.VariableRecord{Room: "other", Name: "x", Value: "elsewhere"}))

	recs := fetchVariables(t, s, "lobby")
	require.Len(t, recs, 3)

	assert.Equal(t, record.VariableRecord{Room: "lobby", Name: "x", Value: "gx"}, recs[0])
	assert.Equal(t, record.VariableRecord{Room: "lobby", Name: "x", Target: "alice", Value: "px", Origin: origin}, recs[1])
	assert.Equal(t, record.VariableRecord{Room: "lobby", Name: "y", Value: "gy"}, recs[2])
}

func testProjectLifecycle(t *testing.T, s record.Store) {
	ctx := context.Background()
	require.NoError(t, s.UpsertProjectVariable(ctx, record.ProjectVariable{ProjectID: "proj1", Name: "x", Value: 10}))
	require.NoError(t, s.UpsertProjectVariable(ctx, record.ProjectVariable{ProjectID: "proj1", Name: "x", Value: 20}))

	assert.Equal(t, map[string]any{"x": N("20")}, fetchProject(t, s, "proj1"))

	require.NoError(t, s.DeleteProjectVariable(ctx, "proj1", "x"))
	assert.Empty(t, fetchProject(t, s, "proj1"))
}

func testProjectRename(t *testing.T, s record.Store) {
	ctx := context.Background()
	require.NoError(t, s.UpsertProjectVariable(ctx, record.ProjectVariable{ProjectID: "p", Name: "a", Value: "payload"}))
	require.NoError(t, s.UpsertProjectVariable(ctx, record.ProjectVariable{ProjectID: "p", Name: "keep", Value: true}))
	require.NoError(t, s.UpsertProjectVariable(ctx, record.ProjectVariable{ProjectID: "q", Name: "a", Value: "other project"}))

	require.NoError(t, s.RenameProjectVariable(ctx, "p", "a", "b"))

	assert.Equal(t, map[string]any{"b": "payload", "keep": true}, fetchProject(t, s, "p"))
	assert.Equal(t, map[string]any{"a": "other project"}, fetchProject(t, s, "q"))
}

func testProjectRenameMissing(t *testing.T, s record.Store) {
	ctx := context.Background()
	require.NoError(t, s.UpsertProjectVariable(ctx, record.ProjectVariable{ProjectID: "p", Name: "a", Value: 1}))

	err := s.RenameProjectVariable(ctx, "p", "missing", "x")
	require.Error(t, err)
	assert.True(t, record.IsNotFound(err), "want NOT_FOUND, got %v", err)

	var rerr *record.Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "p", rerr.Scope)
	assert.Equal(t, "missing", rerr.Key)

	assert.Equal(t, map[string]any{"a": N("1")}, fetchProject(t, s, "p"))
}

func testProjectRenameSameName(t *testing.T, s record.Store) {
	ctx := context.Background()
	require.NoError(t, s.UpsertProjectVariable(ctx, record.ProjectVariable{ProjectID: "p", Name: "a", Value: 1}))

	require.NoError(t, s.RenameProjectVariable(ctx, "p", "a", "a"))
	assert.Equal(t, map[string]any{"a": N("1")}, fetchProject(t, s, "p"))

	err := s.RenameProjectVariable(ctx, "p", "zz", "zz")
	assert.True(t, record.IsNotFound(err))
}

func testProjectRenameOverwrites(t *testing.T, s record.Store) {
	ctx := context.Background()
	require.NoError(t, s.UpsertProjectVariable(ctx, record.ProjectVariable{ProjectID: "p", Name: "a", Value: "from a"}))
	require.NoError(t, s.UpsertProjectVariable(ctx, record.ProjectVariable{ProjectID: "p", Name: "b", Value: "old b"}))

	require.NoError(t, s.RenameProjectVariable(ctx, "p", "a", "b"))
	assert.Equal(t, map[string]any{"b": "from a"}, fetchProject(t, s, "p"))
}

func testProjectDeleteAbsent(t *testing.T, s record.Store) {
	ctx := context.Background()
	require.NoError(t, s.DeleteProjectVariable(ctx, "nobody", "nothing"))

	require.NoError(t, s.UpsertProjectVariable(ctx, record.ProjectVariable{ProjectID: "p", Name: "a", Value: 1}))
	require.NoError(t, s.DeleteProjectVariable(ctx, "p", "b"))
	assert.Len(t, fetchProject(t, s, "p"), 1)
}

func testEmptyScopes(t *testing.T, s record.Store) {
	assert.Empty(t, fetchMessages(t, s, "nowhere"))
	assert.Empty(t, fetchVariables(t, s, "nowhere"))
	assert.Empty(t, fetchProject(t, s, "nowhere"))
}

func testStructuredValues(t *testing.T, s record.Store) {
	ctx := context.Background()
	value := map[string]any{
		"list":   []any{1, "two", false, nil},
		"nested": map[string]any{"k": "v"},
		"html":   "<script>",
		"float":  2.5,
	}
	require.NoError(t, s.UpsertMessage(ctx, record.MessageRecord{Room: "r", Value: value}))
	require.NoError(t, s.UpsertMessage(ctx, record.MessageRecord{Room: "n", Value: nil}))

	recs := fetchMessages(t, s, "r")
	require.Len(t, recs, 1)
	assert.Equal(t, map[string]any{
		"list":   []any{N("1"), "two", false, nil},
		"nested": map[string]any{"k": "v"},
		"html":   "<script>",
		"float":  N("2.5"),
	}, recs[0].Value)

	recs = fetchMessages(t, s, "n")
	require.Len(t, recs, 1)
	assert.Nil(t, recs[0].Value)
}

func testConcurrentDistinctKeys(t *testing.T, s record.Store) {
	ctx := context.Background()
	const workers = 8

	var wg sync.WaitGroup
	errs := make(chan error, workers*3)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("v%d", i)
			errs <- s.UpsertMessage(ctx, record.MessageRecord{Room: "busy", Target: name, Value: i})
			errs <- s.UpsertVariable(ctx, record.VariableRecord{Room: "busy", Name: name, Value: i})
			errs <- s.UpsertProjectVariable(ctx, record.ProjectVariable{ProjectID: "busy", Name: name, Value: i})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Len(t, fetchMessages(t, s, "busy"), workers)
	assert.Len(t, fetchVariables(t, s, "busy"), workers)
	assert.Len(t, fetchProject(t, s, "busy"), workers)
}
