package admin

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/roach88/roomstore/internal/engine"
	"github.com/roach88/roomstore/internal/record"
)

// Handler holds the dependencies of the admin endpoints.
type Handler struct {
	logger *slog.Logger
	store  record.Store
	engine *engine.Engine
}

func NewHandler(logger *slog.Logger, s record.Store, eng *engine.Engine) *Handler {
	return &Handler{logger: logger, store: s, engine: eng}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("encode admin response", "error", err)
	}
}

// Error sends a JSON error response.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// storeError maps a store failure to a response.
func (h *Handler) storeError(w http.ResponseWriter, err error) {
	switch {
	case record.IsNotFound(err):
		h.Error(w, http.StatusNotFound, err.Error())
	case engine.IsInvalidEvent(err):
		h.Error(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("admin store request failed", "error", err)
		h.Error(w, http.StatusServiceUnavailable, err.Error())
	}
}

// Check is the status of one health check.
type Check struct {
	Status  string `json:"status"` // "pass" or "fail"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status    string           `json:"status"` // "healthy" or "degraded"
	Checks    map[string]Check `json:"checks"`
	Timestamp string           `json:"timestamp"`
}

// Health pings the record store.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:    "healthy",
		Checks:    make(map[string]Check),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	start := time.Now()
	if err := h.store.Ping(ctx); err != nil {
		resp.Checks["storage"] = Check{Status: "fail", Message: err.Error()}
		resp.Status = "degraded"
		h.JSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	resp.Checks["storage"] = Check{Status: "pass", Latency: time.Since(start).String()}
	h.JSON(w, http.StatusOK, resp)
}

// MessageView is a stored message as shown to operators.
type MessageView struct {
	Target string           `json:"target,omitempty"`
	Value  any              `json:"value"`
	Origin *record.Identity `json:"origin,omitempty"`
}

// VariableView is a stored variable as shown to operators.
type VariableView struct {
	Name   string           `json:"name"`
	Target string           `json:"target,omitempty"`
	Value  any              `json:"value"`
	Origin *record.Identity `json:"origin,omitempty"`
}

// RoomResponse is the body of GET /rooms/{room}.
type RoomResponse struct {
	Room      string         `json:"room"`
	Enabled   bool           `json:"enabled"`
	Messages  []MessageView  `json:"messages"`
	Variables []VariableView `json:"variables"`
	Skipped   int            `json:"skipped"`
}

// Room lists every stored record of a room, private ones included.
func (h *Handler) Room(w http.ResponseWriter, r *http.Request) {
	room := engine.Normalize(chi.URLParam(r, "room"))
	resp, err := LoadRoom(r.Context(), h.store, room, h.engine.Replayer().Enabled(room))
	if err != nil {
		h.storeError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, resp)
}

// LoadRoom reads every stored record of room. A disabled room is not read
// at all and yields an empty response.
func LoadRoom(ctx context.Context, s record.Store, room string, enabled bool) (RoomResponse, error) {
	resp := RoomResponse{
		Room:      room,
		Enabled:   enabled,
		Messages:  []MessageView{},
		Variables: []VariableView{},
	}
	if !enabled {
		return resp, nil
	}

	msgs, corrupt, err := s.FetchMessages(ctx, room)
	if err != nil {
		return RoomResponse{}, err
	}
	resp.Skipped += len(corrupt)
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, MessageView{Target: m.Target, Value: m.Value, Origin: m.Origin})
	}

	vars, corrupt, err := s.FetchVariables(ctx, room)
	if err != nil {
		return RoomResponse{}, err
	}
	resp.Skipped += len(corrupt)
	for _, v := range vars {
		resp.Variables = append(resp.Variables, VariableView{Name: v.Name, Target: v.Target, Value: v.Value, Origin: v.Origin})
	}
	return resp, nil
}

// ProjectResponse is the body of GET /projects/{id}.
type ProjectResponse struct {
	ProjectID string         `json:"project_id"`
	Enabled   bool           `json:"enabled"`
	Variables map[string]any `json:"variables"`
	Skipped   int            `json:"skipped"`
}

// Project lists the stored variables of a project.
func (h *Handler) Project(w http.ResponseWriter, r *http.Request) {
	id := engine.Normalize(chi.URLParam(r, "id"))
	resp, err := LoadProject(r.Context(), h.store, id, h.engine.Replayer().Enabled(id))
	if err != nil {
		h.storeError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, resp)
}

// LoadProject reads the stored variables of a project. Like LoadRoom it
// skips the store when the project is disabled.
func LoadProject(ctx context.Context, s record.Store, projectID string, enabled bool) (ProjectResponse, error) {
	if !enabled {
		return ProjectResponse{ProjectID: projectID, Variables: map[string]any{}}, nil
	}

	vars, corrupt, err := s.FetchProjectVariables(ctx, projectID)
	if err != nil {
		return ProjectResponse{}, err
	}

	resp := ProjectResponse{
		ProjectID: projectID,
		Enabled:   enabled,
		Variables: make(map[string]any, len(vars)),
		Skipped:   len(corrupt),
	}
	for _, v := range vars {
		resp.Variables[v.Name] = v.Value
	}
	return resp, nil
}

// operator is the client identity used for admin-initiated events.
type operator struct{}

func (operator) Username() string { return "admin" }
func (operator) Identity() record.Identity {
	return record.Identity{ID: "admin", Username: "admin"}
}

// DeleteProjectVariable removes one project variable.
func (h *Handler) DeleteProjectVariable(w http.ResponseWriter, r *http.Request) {
	ev := engine.ProjectVariableDelete{
		ProjectID: chi.URLParam(r, "id"),
		Name:      chi.URLParam(r, "name"),
	}
	if err := h.engine.Handle(r.Context(), operator{}, ev); err != nil {
		h.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
