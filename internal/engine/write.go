package engine

import (
	"context"
	"log/slog"

	"github.com/roach88/roomstore/internal/metrics"
	"github.com/roach88/roomstore/internal/record"
)

// admit reports whether a write to id of the given kind may proceed.
func (e *Engine) admit(log *slog.Logger, id string, disabled bool) bool {
	if disabled {
		metrics.WritesDenied.WithLabelValues("disabled").Inc()
		log.Debug("write dropped, feature disabled", "scope", id)
		return false
	}
	if !e.policy.IsEnabled(id) {
		metrics.WritesDenied.WithLabelValues("policy").Inc()
		log.Debug("write dropped by room policy", "scope", id)
		return false
	}
	return true
}

func (e *Engine) broadcastMessage(ctx context.Context, log *slog.Logger, ev BroadcastMessage) error {
	if ev.Room == "" {
		return invalidEvent("room")
	}
	if !e.admit(log, ev.Room, e.flags.DisableBroadcastMessages) {
		return nil
	}
	if err := e.store.UpsertMessage(ctx, record.MessageRecord{Room: ev.Room, Value: ev.Value}); err != nil {
		return err
	}
	metrics.RecordsWritten.WithLabelValues("message").Inc()
	return nil
}

func (e *Engine) privateMessage(ctx context.Context, log *slog.Logger, sender Client, ev PrivateMessage) error {
	if ev.Room == "" {
		return invalidEvent("room")
	}
	if ev.Target == "" {
		return invalidEvent("target")
	}
	if !e.admit(log, ev.Room, e.flags.DisablePrivateMessages) {
		return nil
	}

	recipients, err := e.resolve(ctx, ev.Room, ev.Target)
	if err != nil {
		return err
	}
	origin := sender.Identity()
	for _, to := range recipients {
		rec := record.MessageRecord{
			Room:   ev.Room,
			Target: Normalize(to.Username()),
			Value:  ev.Value,
			Origin: &origin,
		}
		if err := e.store.UpsertMessage(ctx, rec); err != nil {
			return err
		}
		metrics.RecordsWritten.WithLabelValues("message").Inc()
	}
	log.Debug("private message stored", "room", ev.Room, "recipients", len(recipients))
	return nil
}

func (e *Engine) broadcastVariable(ctx context.Context, log *slog.Logger, ev BroadcastVariableSet) error {
	if ev.Room == "" {
		return invalidEvent("room")
	}
	if ev.Name == "" {
		return invalidEvent("name")
	}
	if !e.admit(log, ev.Room, e.flags.DisableBroadcastVariables) {
		return nil
	}
	rec := record.VariableRecord{Room: ev.Room, Name: ev.Name, Value: ev.Value}
	if err := e.store.UpsertVariable(ctx, rec); err != nil {
		return err
	}
	metrics.RecordsWritten.WithLabelValues("variable").Inc()
	return nil
}

func (e *Engine) privateVariable(ctx context.Context, log *slog.Logger, sender Client, ev PrivateVariableSet) error {
	if ev.Room == "" {
		return invalidEvent("room")
	}
	if ev.Target == "" {
		return invalidEvent("target")
	}
	if ev.Name == "" {
		return invalidEvent("name")
	}
	if !e.admit(log, ev.Room, e.flags.DisablePrivateVariables) {
		return nil
	}

	recipients, err := e.resolve(ctx, ev.Room, ev.Target)
	if err != nil {
		return err
	}
	origin := sender.Identity()
	for _, to := range recipients {
		rec := record.VariableRecord{
			Room:   ev.Room,
			Name:   ev.Name,
			Target: Normalize(to.Username()),
			Value:  ev.Value,
			Origin: &origin,
		}
		if err := e.store.UpsertVariable(ctx, rec); err != nil {
			return err
		}
		metrics.RecordsWritten.WithLabelValues("variable").Inc()
	}
	log.Debug("private variable stored", "room", ev.Room, "name", ev.Name, "recipients", len(recipients))
	return nil
}

func (e *Engine) resolve(ctx context.Context, room, target string) ([]Client, error) {
	recipients, err := e.registry.ResolveRecipients(ctx, room, target)
	if err != nil {
		return nil, &Error{Code: ErrCodeResolveFailed, Message: "resolve " + target + " in " + room, Err: err}
	}
	return recipients, nil
}

func (e *Engine) setProjectVariable(ctx context.Context, log *slog.Logger, projectID, name string, value any) error {
	if projectID == "" {
		return invalidEvent("project id")
	}
	if name == "" {
		return invalidEvent("name")
	}
	if !e.admit(log, projectID, e.flags.DisableProjectVariables) {
		return nil
	}
	v := record.ProjectVariable{ProjectID: projectID, Name: name, Value: value}
	if err := e.store.UpsertProjectVariable(ctx, v); err != nil {
		return err
	}
	metrics.RecordsWritten.WithLabelValues("project_variable").Inc()
	return nil
}

// renameProjectVariable returns the store's NOT_FOUND error unchanged when
// the old name does not exist.
func (e *Engine) renameProjectVariable(ctx context.Context, log *slog.Logger, ev ProjectVariableRename) error {
	if ev.ProjectID == "" {
		return invalidEvent("project id")
	}
	if ev.Name == "" || ev.NewName == "" {
		return invalidEvent("name")
	}
	if !e.admit(log, ev.ProjectID, e.flags.DisableProjectVariables) {
		return nil
	}
	if err := e.store.RenameProjectVariable(ctx, ev.ProjectID, ev.Name, ev.NewName); err != nil {
		return err
	}
	metrics.RecordsWritten.WithLabelValues("project_variable").Inc()
	return nil
}

func (e *Engine) deleteProjectVariable(ctx context.Context, log *slog.Logger, ev ProjectVariableDelete) error {
	if ev.ProjectID == "" {
		return invalidEvent("project id")
	}
	if ev.Name == "" {
		return invalidEvent("name")
	}
	if !e.admit(log, ev.ProjectID, e.flags.DisableProjectVariables) {
		return nil
	}
	if err := e.store.DeleteProjectVariable(ctx, ev.ProjectID, ev.Name); err != nil {
		return err
	}
	metrics.RecordsWritten.WithLabelValues("project_variable").Inc()
	return nil
}
