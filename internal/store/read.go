package store

import (
	"context"

	"github.com/roach88/roomstore/internal/record"
)

// FetchMessages returns every message record stored for room.
// Records that fail to decode are skipped and reported in the second value.
func (s *Store) FetchMessages(ctx context.Context, room string) ([]record.MessageRecord, []error, error) {
	const op = "fetch messages"
	rows, err := s.db.QueryContext(ctx, `
		SELECT target, value, origin
		FROM messages
		WHERE room = ?
		ORDER BY target COLLATE BINARY ASC
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
		rec.Value, rec.Origin, err = s.decodeRecord(op, room, rec.Key(), valueText, originText)
		if err != nil {
			corrupt = append(corrupt, err)
			continue
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, record.StorageError(op, room, "", err)
	}

	return recs, corrupt, nil
}

// FetchVariables returns every variable record stored for room.
func (s *Store) FetchVariables(ctx context.Context, room string) ([]record.VariableRecord, []error, error) {
	const op = "fetch variables"
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, target, value, origin
		FROM variables
		WHERE room = ?
		ORDER BY name COLLATE BINARY ASC, target COLLATE BINARY ASC
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
		rec.Value, rec.Origin, err = s.decodeRecord(op, room, rec.Key(), valueText, originText)
		if err != nil {
			corrupt = append(corrupt, err)
			continue
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, record.StorageError(op, room, "", err)
	}

	return recs, corrupt, nil
}

// FetchProjectVariables returns the variable table of projectID.
func (s *Store) FetchProjectVariables(ctx context.Context, projectID string) ([]record.ProjectVariable, []error, error) {
	const op = "fetch project variables"
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, value
		FROM project_variables
		WHERE project_id = ?
		ORDER BY name COLLATE BINARY ASC
	`, projectID)
	if err != nil {
		return nil, nil, record.StorageError(op, projectID, "", err)
	}
	defer rows.Close()

	vars := []record.ProjectVariable{}
	var corrupt []error
	for rows.Next() {
		var name, valueText string
		if err := rows.Scan(&name, &valueText); err != nil {
			return nil, nil, record.StorageError(op, projectID, "", err)
		}
		v, err := s.codec.Decode(valueText)
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
