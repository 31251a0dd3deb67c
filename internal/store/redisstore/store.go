// Package redisstore implements record.Store on Redis hashes.
//
// Layout, one hash per scope:
//   - {prefix}msgs:{room}        field: target           value: envelope JSON
//   - {prefix}vars:{room}        field: ["name","target"] value: envelope JSON
//   - {prefix}project:{project}  field: name             value: codec text
//
// Renames run under WATCH/MULTI on the project hash, so the new field and
// the removal of the old one are applied together.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/roach88/roomstore/internal/record"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "roomstore:"

// Options configures the Redis-backed store.
type Options struct {
	// URL is a redis:// or rediss:// connection URL.
	URL string
	// Prefix namespaces keys. Default: DefaultPrefix.
	Prefix string
	// Codec encodes record values. Default: record.JSONCodec.
	Codec record.Codec
}

// Store implements record.Store on Redis.
type Store struct {
	client *redis.Client
	prefix string
	codec  record.Codec
}

var _ record.Store = (*Store)(nil)

type envelope struct {
	Value  string `json:"value"`
	Origin string `json:"origin"`
}

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, opts Options) (*Store, error) {
	ropts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(ropts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return newStore(client, opts), nil
}

func newStore(client *redis.Client, opts Options) *Store {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	codec := opts.Codec
	if codec == nil {
		codec = record.JSONCodec{}
	}
	return &Store{client: client, prefix: prefix, codec: codec}
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return record.StorageError("ping", "", "", err)
	}
	return nil
}

func (s *Store) messagesKey(room string) string { return s.prefix + "msgs:" + room }

func (s *Store) variablesKey(room string) string { return s.prefix + "vars:" + room }

func (s *Store) projectKey(projectID string) string { return s.prefix + "project:" + projectID }

// variableField encodes (name, target) as a JSON pair so neither component
// needs escaping.
func variableField(name, target string) string {
	data, _ := json.Marshal([2]string{name, target})
	return string(data)
}

func parseVariableField(field string) (string, string, error) {
	var pair [2]string
	if err := json.Unmarshal([]byte(field), &pair); err != nil {
		return "", "", fmt.Errorf("parse variable field: %w", err)
	}
	return pair[0], pair[1], nil
}

func (s *Store) encodeEnvelope(op, scope, key string, v any, origin *record.Identity) (string, error) {
	valueText, err := s.codec.Encode(v)
	if err != nil {
		return "", record.SerializationError(op, scope, key, err)
	}
	originText, err := record.EncodeOrigin(origin)
	if err != nil {
		return "", record.SerializationError(op, scope, key, err)
	}
	data, err := json.Marshal(envelope{Value: valueText, Origin: originText})
	if err != nil {
		return "", record.SerializationError(op, scope, key, err)
	}
	return string(data), nil
}

func (s *Store) decodeEnvelope(data string) (any, *record.Identity, error) {
	var env envelope
	if err := json.Unmarshal([]byte(data), &env); err != nil {
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

// UpsertMessage implements record.Store.
func (s *Store) UpsertMessage(ctx context.Context, rec record.MessageRecord) error {
	const op = "upsert message"
	data, err := s.encodeEnvelope(op, rec.Room, rec.Key(), rec.Value, rec.Origin)
	if err != nil {
		return err
	}
	if err := s.client.HSet(ctx, s.messagesKey(rec.Room), rec.Target, data).Err(); err != nil {
		return record.StorageError(op, rec.Room, rec.Key(), err)
	}
	return nil
}

// FetchMessages implements record.Store.
func (s *Store) FetchMessages(ctx context.Context, room string) ([]record.MessageRecord, []error, error) {
	const op = "fetch messages"
	fields, err := s.client.HGetAll(ctx, s.messagesKey(room)).Result()
	if err != nil {
		return nil, nil, record.StorageError(op, room, "", err)
	}

	recs := make([]record.MessageRecord, 0, len(fields))
	var corrupt []error
	for target, data := range fields {
		rec := record.MessageRecord{Room: room, Target: target}
		rec.Value, rec.Origin, err = s.decodeEnvelope(data)
		if err != nil {
			corrupt = append(corrupt, record.SerializationError(op, room, rec.Key(), err))
			continue
		}
		recs = append(recs, rec)
	}
	return recs, corrupt, nil
}

// UpsertVariable implements record.Store.
func (s *Store) UpsertVariable(ctx context.Context, rec record.VariableRecord) error {
	const op = "upsert variable"
	data, err := s.encodeEnvelope(op, rec.Room, rec.Key(), rec.Value, rec.Origin)
	if err != nil {
		return err
	}
	field := variableField(rec.Name, rec.Target)
	if err := s.client.HSet(ctx, s.variablesKey(rec.Room), field, data).Err(); err != nil {
		return record.StorageError(op, rec.Room, rec.Key(), err)
	}
	return nil
}

// FetchVariables implements record.Store.
func (s *Store) FetchVariables(ctx context.Context, room string) ([]record.VariableRecord, []error, error) {
	const op = "fetch variables"
	fields, err := s.client.HGetAll(ctx, s.variablesKey(room)).Result()
	if err != nil {
		return nil, nil, record.StorageError(op, room, "", err)
	}

	recs := make([]record.VariableRecord, 0, len(fields))
	var corrupt []error
	for field, data := range fields {
		name, target, err := parseVariableField(field)
		if err != nil {
			corrupt = append(corrupt, record.SerializationError(op, room, field, err))
			continue
		}
		rec := record.VariableRecord{Room: room, Name: name, Target: target}
		rec.Value, rec.Origin, err = s.decodeEnvelope(data)
		if err != nil {
			corrupt = append(corrupt, record.SerializationError(op, room, rec.Key(), err))
			continue
		}
		recs = append(recs, rec)
	}
	return recs, corrupt, nil
}

// UpsertProjectVariable implements record.Store.
func (s *Store) UpsertProjectVariable(ctx context.Context, v record.ProjectVariable) error {
	const op = "upsert project variable"
	text, err := s.codec.Encode(v.Value)
	if err != nil {
		return record.SerializationError(op, v.ProjectID, v.Name, err)
	}
	if err := s.client.HSet(ctx, s.projectKey(v.ProjectID), v.Name, text).Err(); err != nil {
		return record.StorageError(op, v.ProjectID, v.Name, err)
	}
	return nil
}

// FetchProjectVariables implements record.Store.
func (s *Store) FetchProjectVariables(ctx context.Context, projectID string) ([]record.ProjectVariable, []error, error) {
	const op = "fetch project variables"
	fields, err := s.client.HGetAll(ctx, s.projectKey(projectID)).Result()
	if err != nil {
		return nil, nil, record.StorageError(op, projectID, "", err)
	}

	vars := make([]record.ProjectVariable, 0, len(fields))
	var corrupt []error
	for name, text := range fields {
		v, err := s.codec.Decode(text)
		if err != nil {
			corrupt = append(corrupt, record.SerializationError(op, projectID, name, err))
			continue
		}
		vars = append(vars, record.ProjectVariable{ProjectID: projectID, Name: name, Value: v})
	}
	return vars, corrupt, nil
}

// RenameProjectVariable implements record.Store. A concurrent write to the
// project hash aborts the transaction with redis.TxFailedErr; the store does
// not retry.
func (s *Store) RenameProjectVariable(ctx context.Context, projectID, oldName, newName string) error {
	const op = "rename project variable"
	key := s.projectKey(projectID)

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		text, err := tx.HGet(ctx, key, oldName).Result()
		if errors.Is(err, redis.Nil) {
			return record.NotFoundError(op, projectID, oldName)
		}
		if err != nil {
			return err
		}
		if oldName == newName {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, newName, text)
			pipe.HDel(ctx, key, oldName)
			return nil
		})
		return err
	}, key)
	if err == nil || record.IsNotFound(err) {
		return err
	}
	return record.StorageError(op, projectID, oldName, err)
}

// DeleteProjectVariable implements record.Store.
func (s *Store) DeleteProjectVariable(ctx context.Context, projectID, name string) error {
	if err := s.client.HDel(ctx, s.projectKey(projectID), name).Err(); err != nil {
		return record.StorageError("delete project variable", projectID, name, err)
	}
	return nil
}
