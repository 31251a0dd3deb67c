package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/roach88/roomstore/internal/record"
)

// UpsertMessage stores rec as the last message for (room, target).
// Uses ON CONFLICT DO UPDATE - a second write to the same key replaces the first.
func (s *Store) UpsertMessage(ctx context.Context, rec record.MessageRecord) error {
	const op = "upsert message"
	valueText, originText, err := s.encodeRecord(op, rec.Room, rec.Key(), rec.Value, rec.Origin)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO messages (room, target, value, origin)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(room, target) DO UPDATE SET
			value = excluded.value,
			origin = excluded.origin
	`,
		rec.Room,
		rec.Target,
		valueText,
		originText,
	)
	if err != nil {
		return record.StorageError(op, rec.Room, rec.Key(), err)
	}
	return nil
}

// UpsertVariable stores rec as the last value for (room, name, target).
func (s *Store) UpsertVariable(ctx context.Context, rec record.VariableRecord) error {
	const op = "upsert variable"
	valueText, originText, err := s.encodeRecord(op, rec.Room, rec.Key(), rec.Value, rec.Origin)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO variables (room, name, target, value, origin)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(room, name, target) DO UPDATE SET
			value = excluded.value,
			origin = excluded.origin
	`,
		rec.Room,
		rec.Name,
		rec.Target,
		valueText,
		originText,
	)
	if err != nil {
		return record.StorageError(op, rec.Room, rec.Key(), err)
	}
	return nil
}

// UpsertProjectVariable stores v as the value for (project_id, name).
func (s *Store) UpsertProjectVariable(ctx context.Context, v record.ProjectVariable) error {
	const op = "upsert project variable"
	valueText, err := s.encodeValue(op, v.ProjectID, v.Name, v.Value)
	if err != nil {
		return err
	}

	if err := upsertProjectText(ctx, s.db, v.ProjectID, v.Name, valueText); err != nil {
		return record.StorageError(op, v.ProjectID, v.Name, err)
	}
	return nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertProjectText(ctx context.Context, db execer, projectID, name, valueText string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO project_variables (project_id, name, value)
		VALUES (?, ?, ?)
		ON CONFLICT(project_id, name) DO UPDATE SET value = excluded.value
	`, projectID, name, valueText)
	return err
}

// RenameProjectVariable moves oldName to newName inside one transaction, so
// a crash leaves either the old or the new key, never both or neither.
// The stored text is moved as-is without decoding.
func (s *Store) RenameProjectVariable(ctx context.Context, projectID, oldName, newName string) error {
	const op = "rename project variable"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return record.StorageError(op, projectID, oldName, err)
	}
	defer tx.Rollback() // No-op if committed

	var valueText string
	err = tx.QueryRowContext(ctx, `
		SELECT value FROM project_variables
		WHERE project_id = ? AND name = ?
	`, projectID, oldName).Scan(&valueText)
	if errors.Is(err, sql.ErrNoRows) {
		return record.NotFoundError(op, projectID, oldName)
	}
	if err != nil {
		return record.StorageError(op, projectID, oldName, err)
	}

	if oldName != newName {
		if err := upsertProjectText(ctx, tx, projectID, newName, valueText); err != nil {
			return record.StorageError(op, projectID, newName, err)
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM project_variables
			WHERE project_id = ? AND name = ?
		`, projectID, oldName); err != nil {
			return record.StorageError(op, projectID, oldName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return record.StorageError(op, projectID, oldName, err)
	}
	return nil
}

// DeleteProjectVariable removes (project_id, name) if present.
func (s *Store) DeleteProjectVariable(ctx context.Context, projectID, name string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM project_variables
		WHERE project_id = ? AND name = ?
	`, projectID, name)
	if err != nil {
		return record.StorageError("delete project variable", projectID, name, err)
	}
	return nil
}
