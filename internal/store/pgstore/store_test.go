package pgstore

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/roomstore/internal/record"
	"github.com/roach88/roomstore/internal/store/storetest"
)

// openTestStore connects to ROOMSTORE_TEST_POSTGRES_URL and empties the
// tables before and after each test.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("ROOMSTORE_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("ROOMSTORE_TEST_POSTGRES_URL not set")
	}

	ctx := context.Background()
	s, err := Open(ctx, url, nil)
	require.NoError(t, err)

	truncate := func() {
		_, err := s.pool.Exec(ctx, `TRUNCATE messages, variables, project_variables`)
		require.NoError(t, err)
	}
	truncate()
	t.Cleanup(func() {
		truncate()
		s.Close()
	})
	return s
}

func TestPostgresConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) record.Store {
		return openTestStore(t)
	})
}

func TestPostgres_SkipsCorruptRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertMessage(ctx, record.MessageRecord{Room: "lobby", Value: "ok"}))
	_, err := s.pool.Exec(ctx, `INSERT INTO messages (room, target, value, origin) VALUES ('lobby', 'eve', '{', 'null')`)
	require.NoError(t, err)

	recs, corrupt, err := s.FetchMessages(ctx, "lobby")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
	require.Len(t, corrupt, 1)
	assert.True(t, record.IsSerialization(corrupt[0]))
}

func TestOpen_InvalidURL(t *testing.T) {
	_, err := Open(context.Background(), "not a url ::", nil)
	assert.Error(t, err)
}
