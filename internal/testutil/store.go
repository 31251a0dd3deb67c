package testutil

import (
	"context"
	"sync"

	"github.com/roach88/roomstore/internal/record"
)

// SpyStore wraps a record.Store and records the name of every call.
// Corrupt errors are appended to every fetch result, and Err, when set,
// fails every call before it reaches the inner store.
type SpyStore struct {
	Inner   record.Store
	Corrupt []error
	Err     error

	mu    sync.Mutex
	calls []string
}

var _ record.Store = (*SpyStore)(nil)

// Calls returns the recorded call names.
func (s *SpyStore) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *SpyStore) record(name string) error {
	s.mu.Lock()
	s.calls = append(s.calls, name)
	s.mu.Unlock()
	return s.Err
}

func (s *SpyStore) UpsertMessage(ctx context.Context, rec record.MessageRecord) error {
	if err := s.record("UpsertMessage"); err != nil {
		return err
	}
	return s.Inner.UpsertMessage(ctx, rec)
}

func (s *SpyStore) FetchMessages(ctx context.Context, room string) ([]record.MessageRecord, []error, error) {
	if err := s.record("FetchMessages"); err != nil {
		return nil, nil, err
	}
	recs, corrupt, err := s.Inner.FetchMessages(ctx, room)
	return recs, append(corrupt, s.Corrupt...), err
}

func (s *SpyStore) UpsertVariable(ctx context.Context, rec record.VariableRecord) error {
	if err := s.record("UpsertVariable"); err != nil {
		return err
	}
	return s.Inner.UpsertVariable(ctx, rec)
}

func (s *SpyStore) FetchVariables(ctx context.Context, room string) ([]record.VariableRecord, []error, error) {
	if err := s.record("FetchVariables"); err != nil {
		return nil, nil, err
	}
	recs, corrupt, err := s.Inner.FetchVariables(ctx, room)
	return recs, append(corrupt, s.Corrupt...), err
}

func (s *SpyStore) UpsertProjectVariable(ctx context.Context, v record.ProjectVariable) error {
	if err := s.record("UpsertProjectVariable"); err != nil {
		return err
	}
	return s.Inner.UpsertProjectVariable(ctx, v)
}

func (s *SpyStore) FetchProjectVariables(ctx context.Context, projectID string) ([]record.ProjectVariable, []error, error) {
	if err := s.record("FetchProjectVariables"); err != nil {
		return nil, nil, err
	}
	recs, corrupt, err := s.Inner.FetchProjectVariables(ctx, projectID)
	return recs, append(corrupt, s.Corrupt...), err
}

func (s *SpyStore) RenameProjectVariable(ctx context.Context, projectID, oldName, newName string) error {
	if err := s.record("RenameProjectVariable"); err != nil {
		return err
	}
	return s.Inner.RenameProjectVariable(ctx, projectID, oldName, newName)
}

func (s *SpyStore) DeleteProjectVariable(ctx context.Context, projectID, name string) error {
	if err := s.record("DeleteProjectVariable"); err != nil {
		return err
	}
	return s.Inner.DeleteProjectVariable(ctx, projectID, name)
}

func (s *SpyStore) Ping(ctx context.Context) error {
	if err := s.record("Ping"); err != nil {
		return err
	}
	return s.Inner.Ping(ctx)
}

func (s *SpyStore) Close() error {
	return s.Inner.Close()
}
