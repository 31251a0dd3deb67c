package pebblestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/roach88/roomstore/internal/record"
)

// Options configures the Pebble-backed store.
type Options struct {
	// DataDir is the path to the Pebble database directory.
	DataDir string
	// Fsync determines when to sync the WAL. Default: FsyncModeAlways.
	Fsync FsyncMode
	// FsyncInterval controls group-commit when Fsync=FsyncModeInterval.
	FsyncInterval time.Duration
	// PebbleOptions allows advanced tuning of Pebble. If nil, defaults are used.
	PebbleOptions *pebble.Options
	// Metrics observes read and commit latencies. Optional.
	Metrics MetricsHook
	// Codec encodes record values. Default: record.JSONCodec.
	Codec record.Codec
}

// Store implements record.Store on Pebble.
type Store struct {
	db    *db
	codec record.Codec

	// projectMu serializes project variable mutations so the
	// read-then-batch of a rename cannot interleave with another write.
	projectMu sync.Mutex
}

var _ record.Store = (*Store)(nil)

// envelope is the stored form of message and variable records.
type envelope struct {
	Value  string `json:"value"`
	Origin string `json:"origin"`
}

// Open creates or opens the Pebble database described by opts.
func Open(opts Options) (*Store, error) {
	d, err := openDB(opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble store: %w", err)
	}
	codec := opts.Codec
	if codec == nil {
		codec = record.JSONCodec{}
	}
	return &Store{db: d, codec: codec}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.close()
}

// Ping reports whether the database is open.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return record.StorageError("ping", "", "", err)
	}
	if !s.db.isOpen() {
		return record.StorageError("ping", "", "", pebble.ErrClosed)
	}
	return nil
}

func (s *Store) encodeEnvelope(op, scope, key string, v any, origin *record.Identity) ([]byte, error) {
	valueText, err := s.codec.Encode(v)
	if err != nil {
		return nil, record.SerializationError(op, scope, key, err)
	}
	originText, err := record.EncodeOrigin(origin)
	if err != nil {
		return nil, record.SerializationError(op, scope, key, err)
	}
	data, err := json.Marshal(envelope{Value: valueText, Origin: originText})
	if err != nil {
		return nil, record.SerializationError(op, scope, key, err)
	}
	return data, nil
}

func (s *Store) decodeEnvelope(data []byte) (any, *record.Identity, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, nil, fmt.Errorf("decode envelope: %w", err)
	}
	v, err := s.codec.Decode(env.Value)
	if err != nil {
		return nil, nil, err
	}
	origin, err := record.DecodeOrigin(env.Origin)
	if err != nil {
		return nil, nil, err
	}
	return v, origin, nil
}

// set writes one key in its own batch.
func (s *Store) set(key, value []byte) error {
	return s.db.update(func(b *pebble.Batch) error {
		return b.Set(key, value, nil)
	})
}

// UpsertMessage implements record.Store.
func (s *Store) UpsertMessage(ctx context.Context, rec record.MessageRecord) error {
	const op = "upsert message"
	if err := ctx.Err(); err != nil {
		return record.StorageError(op, rec.Room, rec.Key(), err)
	}
	data, err := s.encodeEnvelope(op, rec.Room, rec.Key(), rec.Value, rec.Origin)
	if err != nil {
		return err
	}
	if err := s.set(keyMessage(rec.Room, rec.Target), data); err != nil {
		return record.StorageError(op, rec.Room, rec.Key(), err)
	}
	return nil
}

// FetchMessages implements record.Store.
func (s *Store) FetchMessages(ctx context.Context, room string) ([]record.MessageRecord, []error, error) {
	const op = "fetch messages"
	if err := ctx.Err(); err != nil {
		return nil, nil, record.StorageError(op, room, "", err)
	}

	scope := keyMessageScope(room)
	recs := []record.MessageRecord{}
	var corrupt []error
	err := s.db.scanPrefix(scope, func(key, value []byte) {
		parts, err := splitSuffix(key, scope, 1)
		if err != nil {
			corrupt = append(corrupt, record.SerializationError(op, room, string(key), err))
			return
		}
		rec := record.MessageRecord{Room: room, Target: parts[0]}
		rec.Value, rec.Origin, err = s.decodeEnvelope(value)
		if err != nil {
			corrupt = append(corrupt, record.SerializationError(op, room, rec.Key(), err))
			return
		}
		recs = append(recs, rec)
	})
	if err != nil {
		return nil, nil, record.StorageError(op, room, "", err)
	}
	return recs, corrupt, nil
}

// UpsertVariable implements record.Store.
func (s *Store) UpsertVariable(ctx context.Context, rec record.VariableRecord) error {
	const op = "upsert variable"
	if err := ctx.Err(); err != nil {
		return record.StorageError(op, rec.Room, rec.Key(), err)
	}
	data, err := s.encodeEnvelope(op, rec.Room, rec.Key(), rec.Value, rec.Origin)
	if err != nil {
		return err
	}
	if err := s.set(keyVariable(rec.Room, rec.Name, rec.Target), data); err != nil {
		return record.StorageError(op, rec.Room, rec.Key(), err)
	}
	return nil
}

// FetchVariables implements record.Store.
func (s *Store) FetchVariables(ctx context.Context, room string) ([]record.VariableRecord, []error, error) {
	const op = "fetch variables"
	if err := ctx.Err(); err != nil {
		return nil, nil, record.StorageError(op, room, "", err)
	}

	scope := keyVariableScope(room)
	recs := []record.VariableRecord{}
	var corrupt []error
	err := s.db.scanPrefix(scope, func(key, value []byte) {
		parts, err := splitSuffix(key, scope, 2)
		if err != nil {
			corrupt = append(corrupt, record.SerializationError(op, room, string(key), err))
			return
		}
		rec := record.VariableRecord{Room: room, Name: parts[0], Target: parts[1]}
		rec.Value, rec.Origin, err = s.decodeEnvelope(value)
		if err != nil {
			corrupt = append(corrupt, record.SerializationError(op, room, rec.Key(), err))
			return
		}
		recs = append(recs, rec)
	})
	if err != nil {
		return nil, nil, record.StorageError(op, room, "", err)
	}
	return recs, corrupt, nil
}

// UpsertProjectVariable implements record.Store.
func (s *Store) UpsertProjectVariable(ctx context.Context, v record.ProjectVariable) error {
	const op = "upsert project variable"
	if err := ctx.Err(); err != nil {
		return record.StorageError(op, v.ProjectID, v.Name, err)
	}
	text, err := s.codec.Encode(v.Value)
	if err != nil {
		return record.SerializationError(op, v.ProjectID, v.Name, err)
	}

	s.projectMu.Lock()
	defer s.projectMu.Unlock()
	if err := s.set(keyProject(v.ProjectID, v.Name), []byte(text)); err != nil {
		return record.StorageError(op, v.ProjectID, v.Name, err)
	}
	return nil
}

// FetchProjectVariables implements record.Store.
func (s *Store) FetchProjectVariables(ctx context.Context, projectID string) ([]record.ProjectVariable, []error, error) {
	const op = "fetch project variables"
	if err := ctx.Err(); err != nil {
		return nil, nil, record.StorageError(op, projectID, "", err)
	}

	scope := keyProjectScope(projectID)
	vars := []record.ProjectVariable{}
	var corrupt []error
	err := s.db.scanPrefix(scope, func(key, value []byte) {
		parts, err := splitSuffix(key, scope, 1)
		if err != nil {
			corrupt = append(corrupt, record.SerializationError(op, projectID, string(key), err))
			return
		}
		v, err := s.codec.Decode(string(value))
		if err != nil {
			corrupt = append(corrupt, record.SerializationError(op, projectID, parts[0], err))
			return
		}
		vars = append(vars, record.ProjectVariable{ProjectID: projectID, Name: parts[0], Value: v})
	})
	if err != nil {
		return nil, nil, record.StorageError(op, projectID, "", err)
	}
	return vars, corrupt, nil
}

// RenameProjectVariable implements record.Store. The set of newName and the
// delete of oldName share one batch.
func (s *Store) RenameProjectVariable(ctx context.Context, projectID, oldName, newName string) error {
	const op = "rename project variable"
	if err := ctx.Err(); err != nil {
		return record.StorageError(op, projectID, oldName, err)
	}

	s.projectMu.Lock()
	defer s.projectMu.Unlock()

	oldKey := keyProject(projectID, oldName)
	value, err := s.db.get(oldKey)
	if errors.Is(err, pebble.ErrNotFound) {
		return record.NotFoundError(op, projectID, oldName)
	}
	if err != nil {
		return record.StorageError(op, projectID, oldName, err)
	}
	if oldName == newName {
		return nil
	}

	err = s.db.update(func(b *pebble.Batch) error {
		if err := b.Set(keyProject(projectID, newName), value, nil); err != nil {
			return err
		}
		return b.Delete(oldKey, nil)
	})
	if err != nil {
		return record.StorageError(op, projectID, oldName, err)
	}
	return nil
}

// DeleteProjectVariable implements record.Store.
func (s *Store) DeleteProjectVariable(ctx context.Context, projectID, name string) error {
	const op = "delete project variable"
	if err := ctx.Err(); err != nil {
		return record.StorageError(op, projectID, name, err)
	}

	s.projectMu.Lock()
	defer s.projectMu.Unlock()

	err := s.db.update(func(b *pebble.Batch) error {
		return b.Delete(keyProject(projectID, name), nil)
	})
	if err != nil {
		return record.StorageError(op, projectID, name, err)
	}
	return nil
}
