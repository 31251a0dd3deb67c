// Package pgstore implements record.Store on PostgreSQL through pgx.
//
// The schema mirrors the SQLite backend: messages, variables and
// project_variables keyed exactly by their record keys, written with
// INSERT ... ON CONFLICT DO UPDATE. Renames run inside one transaction.
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roach88/roomstore/internal/record"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS messages (
    room   TEXT NOT NULL,
    target TEXT NOT NULL DEFAULT '',
    value  TEXT NOT NULL,
    origin TEXT NOT NULL DEFAULT 'null',
    PRIMARY KEY (room, target)
);

CREATE TABLE IF NOT EXISTS variables (
    room   TEXT NOT NULL,
    name   TEXT NOT NULL,
    target TEXT NOT NULL DEFAULT '',
    value  TEXT NOT NULL,
    origin TEXT NOT NULL DEFAULT 'null',
    PRIMARY KEY (room, name, target)
);

CREATE TABLE IF NOT EXISTS project_variables (
    project_id TEXT NOT NULL,
    name       TEXT NOT NULL,
    value      TEXT NOT NULL,
    PRIMARY KEY (project_id, name)
);
`

// Store implements record.Store on PostgreSQL.
type Store struct {
	pool  *pgxpool.Pool
	codec record.Codec
}

var _ record.Store = (*Store)(nil)

// Open connects to databaseURL and creates the tables if needed.
func Open(ctx context.Context, databaseURL string, codec record.Codec) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if codec == nil {
		codec = record.JSONCodec{}
	}
	return &Store{pool: pool, codec: codec}, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return record.StorageError("ping", "", "", err)
	}
	return nil
}

func (s *Store) encode(op, scope, key string, v any, origin *record.Identity) (string, string, error) {
	valueText, err := s.codec.Encode(v)
	if err != nil {
		return "", "", record.SerializationError(op, scope, key, err)
	}
	originText, err := record.EncodeOrigin(origin)
	if err != nil {
		return "", "", record.SerializationError(op, scope, key, err)
	}
	return valueText, originText, nil
}

func (s *Store) decode(valueText, originText string) (any, *record.Identity, error) {
	v, err := s.codec.Decode(valueText)
	if err != nil {
		return nil, nil, err
	}
	origin, err := record.DecodeOrigin(originText)
	if err != nil {
		return nil, nil, err
	}
	return v, origin, nil
}

// UpsertMessage implements record.Store.
func (s *Store) UpsertMessage(ctx context.Context, rec record.MessageRecord) error {
	const op = "upsert message"
	valueText, originText, err := s.encode(op, rec.Room, rec.Key(), rec.Value, rec.Origin)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO messages (room, target, value, origin)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (room, target) DO UPDATE SET
			value = EXCLUDED.value,
			origin = EXCLUDED.origin
	`, rec.Room, rec.Target, valueText, originText)
	if err != nil {
		return record.StorageError(op, rec.Room, rec.Key(), err)
	}
	return nil
}

// FetchMessages implements record.Store.
func (s *Store) FetchMessages(ctx context.Context, room string) ([]record.MessageRecord, []error, error) {
	const op = "fetch messages"
	rows, err := s.pool.Query(ctx, `
		SELECT target, value, origin FROM messages
		WHERE room = $1
		ORDER BY target
	`, room)
	if err != nil {
		return nil, nil, record.StorageError(op, room, "", err)
	}
	defer rows.Close()

	recs := []record.MessageRecord{}
	var corrupt []error
	for rows.Next() {
		var target, valueText, originText string
		if err := rows.Scan(&target, &valueText, &originText); err != nil {
			return nil, nil, record.StorageError(op, room, "", err)
		}
		rec := record.MessageRecord{Room: room, Target: target}
		rec.Value, rec.Origin, err = s.decode(valueText, originText)
		if err != nil {
			corrupt = append(corrupt, record.SerializationError(op, room, rec.Key(), err))
			continue
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, record.StorageError(op, room, "", err)
	}
	return recs, corrupt, nil
}

// UpsertVariable implements record.Store.
func (s *Store) UpsertVariable(ctx context.Context, rec record.VariableRecord) error {
	const op = "upsert variable"
	valueText, originText, err := s.encode(op, rec.Room, rec.Key(), rec.Value, rec.Origin)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO variables (room, name, target, value, origin)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (room, name, target) DO UPDATE SET
			value = EXCLUDED.value,
			origin = EXCLUDED.origin
	`, rec.Room, rec.Name, rec.Target, valueText, originText)
	if err != nil {
		return record.StorageError(op, rec.Room, rec.Key(), err)
	}
	return nil
}

// FetchVariables implements record.Store.
func (s *Store) FetchVariables(ctx context.Context, room string) ([]record.VariableRecord, []error, error) {
	const op = "fetch variables"
	rows, err := s.pool.Query(ctx, `
		SELECT name, target, value, origin FROM variables
		WHERE room = $1
		ORDER BY name, target
	`, room)
	if err != nil {
		return nil, nil, record.StorageError(op, room, "", err)
	}
	defer rows.Close()

	recs := []record.VariableRecord{}
	var corrupt []error
	for rows.Next() {
		var name, target, valueText, originText string
		if err := rows.Scan(&name, &target, &valueText, &originText); err != nil {
			return nil, nil, record.StorageError(op, room, "", err)
		}
		rec := record.VariableRecord{Room: room, Name: name, Target: target}
		rec.Value, rec.Origin, err = s.decode(valueText, originText)
		if err != nil {
			corrupt = append(corrupt, record.SerializationError(op, room, rec.Key(), err))
			continue
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, record.StorageError(op, room, "", err)
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
	if err := upsertProjectText(ctx, s.pool, v.ProjectID, v.Name, text); err != nil {
		return record.StorageError(op, v.ProjectID, v.Name, err)
	}
	return nil
}

// execer is satisfied by *pgxpool.Pool and pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func upsertProjectText(ctx context.Context, db execer, projectID, name, text string) error {
	_, err := db.Exec(ctx, `
		INSERT INTO project_variables (project_id, name, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (project_id, name) DO UPDATE SET value = EXCLUDED.value
	`, projectID, name, text)
	return err
}

// FetchProjectVariables implements record.Store.
func (s *Store) FetchProjectVariables(ctx context.Context, projectID string) ([]record.ProjectVariable, []error, error) {
	const op = "fetch project variables"
	rows, err := s.pool.Query(ctx, `
		SELECT name, value FROM project_variables
		WHERE project_id = $1
		ORDER BY name
	`, projectID)
	if err != nil {
		return nil, nil, record.StorageError(op, projectID, "", err)
	}
	defer rows.Close()

	vars := []record.ProjectVariable{}
	var corrupt []error
	for rows.Next() {
		var name, text string
		if err := rows.Scan(&name, &text); err != nil {
			return nil, nil, record.StorageError(op, projectID, "", err)
		}
		v, err := s.codec.Decode(text)
		if err != nil {
			corrupt = append(corrupt, record.SerializationError(op, projectID, name, err))
			continue
		}
		vars = append(vars, record.ProjectVariable{ProjectID: projectID, Name: name, Value: v})
	}
	if err := rows.Err(); err != nil {
		return nil, nil, record.StorageError(op, projectID, "", err)
	}
	return vars, corrupt, nil
}

// RenameProjectVariable implements record.Store. The old row is locked with
// SELECT ... FOR UPDATE for the duration of the transaction.
func (s *Store) RenameProjectVariable(ctx context.Context, projectID, oldName, newName string) error {
	const op = "rename project variable"

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return record.StorageError(op, projectID, oldName, err)
	}
	defer tx.Rollback(ctx) // No-op if committed

	var text string
	err = tx.QueryRow(ctx, `
		SELECT value FROM project_variables
		WHERE project_id = $1 AND name = $2
		FOR UPDATE
	`, projectID, oldName).Scan(&text)
	if errors.Is(err, pgx.ErrNoRows) {
		return record.NotFoundError(op, projectID, oldName)
	}
	if err != nil {
		return record.StorageError(op, projectID, oldName, err)
	}

	if oldName != newName {
		if err := upsertProjectText(ctx, tx, projectID, newName, text); err != nil {
			return record.StorageError(op, projectID, newName, err)
		}
		if _, err := tx.Exec(ctx, `
			DELETE FROM project_variables
			WHERE project_id = $1 AND name = $2
		`, projectID, oldName); err != nil {
			return record.StorageError(op, projectID, oldName, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return record.StorageError(op, projectID, oldName, err)
	}
	return nil
}

// DeleteProjectVariable implements record.Store.
func (s *Store) DeleteProjectVariable(ctx context.Context, projectID, name string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM project_variables
		WHERE project_id = $1 AND name = $2
	`, projectID, name)
	if err != nil {
		return record.StorageError("delete project variable", projectID, name, err)
	}
	return nil
}
