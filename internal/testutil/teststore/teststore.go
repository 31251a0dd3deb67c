// Package teststore opens throwaway SQLite stores for tests. It is kept out
// of package testutil so the scenario harness, which ships in the binary,
// does not link the testing package.
package teststore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/roomstore/internal/store"
	"github.com/roach88/roomstore/internal/testutil"
)

// Open opens a SQLite store in a temp directory, closed on cleanup.
func Open(t testing.TB) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "roomstore.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// OpenSpy opens a SQLite store wrapped in a testutil.SpyStore.
func OpenSpy(t testing.TB) *testutil.SpyStore {
	t.Helper()
	return &testutil.SpyStore{Inner: Open(t)}
}
