package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/roomstore/internal/policy"
	"github.com/roach88/roomstore/internal/record"
	"github.com/roach88/roomstore/internal/replay"
)

// DefaultRoom is the room replayed to a freshly identified client.
const DefaultRoom = "default"

// Client is a connected, authenticated client.
type Client interface {
	Username() string
	Identity() record.Identity
}

// Registry is the room registry owned by the session layer.
type Registry interface {
	// IsRoomLive reports whether a room or project currently has members.
	IsRoomLive(id string) bool
	// LiveGlobalVariables returns the in-memory variable table of a room.
	LiveGlobalVariables(id string) replay.LiveVariables
	// ResolveRecipients returns the members of room addressed by target.
	ResolveRecipients(ctx context.Context, room, target string) ([]Client, error)
}

// Sender delivers an outbound event to one client.
type Sender interface {
	Send(ctx context.Context, to Client, ev replay.OutboundEvent) error
}

// Engine dispatches inbound events.
type Engine struct {
	store    record.Store
	registry Registry
	sender   Sender
	replayer *replay.Replayer

	policy      *policy.Policy
	flags       replay.Flags
	defaultRoom string
	ids         IDGenerator
	logger      *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithPolicy restricts persistence and replay to enabled rooms.
func WithPolicy(p *policy.Policy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithFlags switches record kinds off.
func WithFlags(f replay.Flags) Option {
	return func(e *Engine) {
		e.flags = f
	}
}

// WithDefaultRoom overrides the room replayed on identification.
// Default: DefaultRoom.
func WithDefaultRoom(room string) Option {
	return func(e *Engine) {
		e.defaultRoom = room
	}
}

// WithIDGenerator sets the correlation id source.
// Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine writing to s. The registry and sender are the
// session layer's.
func New(s record.Store, reg Registry, snd Sender, opts ...Option) *Engine {
	e := &Engine{
		store:       s,
		registry:    reg,
		sender:      snd,
		defaultRoom: DefaultRoom,
		ids:         UUIDv7Generator{},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.defaultRoom = Normalize(e.defaultRoom)

	e.replayer = replay.New(s,
		replay.WithPolicy(e.policy),
		replay.WithFlags(e.flags),
		replay.WithLogger(e.logger),
	)
	return e
}

// Replayer returns the replayer the engine uses for reads.
func (e *Engine) Replayer() *replay.Replayer { return e.replayer }

// Handle processes one event from client. Writes are committed and replay
// events delivered before it returns. Events dropped by the policy or by a
// disabled feature return nil.
func (e *Engine) Handle(ctx context.Context, client Client, ev Event) error {
	id := e.ids.Generate()
	name := EventName(ev)
	log := e.logger.With("correlation_id", id, "event", name, "client", client.Username())

	err := e.dispatch(ctx, log, client, normalizeEvent(ev))
	if err == nil {
		return nil
	}

	var ee *Error
	if errors.As(err, &ee) && ee.Event == "" {
		ee.Event = name
		ee.CorrelationID = id
	}
	log.Warn("event failed", "error", err)
	return err
}

func (e *Engine) dispatch(ctx context.Context, log *slog.Logger, client Client, ev Event) error {
	switch ev := ev.(type) {
	case ClientIdentified:
		return e.connect(ctx, log, client, e.defaultRoom)

	case SubscribeToRooms:
		for _, room := range ev.Rooms {
			if err := e.connect(ctx, log, client, room); err != nil {
				return err
			}
		}
		return nil

	case BroadcastMessage:
		return e.broadcastMessage(ctx, log, ev)
	case PrivateMessage:
		return e.privateMessage(ctx, log, client, ev)
	case BroadcastVariableSet:
		return e.broadcastVariable(ctx, log, ev)
	case PrivateVariableSet:
		return e.privateVariable(ctx, log, client, ev)

	case ProjectHandshake:
		return e.handshake(ctx, log, client, ev)
	case ProjectVariableCreate:
		return e.setProjectVariable(ctx, log, ev.ProjectID, ev.Name, ev.Value)
	case ProjectVariableSet:
		return e.setProjectVariable(ctx, log, ev.ProjectID, ev.Name, ev.Value)
	case ProjectVariableRename:
		return e.renameProjectVariable(ctx, log, ev)
	case ProjectVariableDelete:
		return e.deleteProjectVariable(ctx, log, ev)

	default:
		return &Error{Code: ErrCodeUnknownEvent, Message: fmt.Sprintf("unsupported event %T", ev)}
	}
}

// connect replays room to client.
func (e *Engine) connect(ctx context.Context, log *slog.Logger, client Client, room string) error {
	if room == "" {
		return invalidEvent("room")
	}
	res, err := e.replayer.ConnectReplay(ctx, room, Normalize(client.Username()))
	if err != nil {
		return err
	}
	log.Debug("connect replay", "room", room, "events", len(res.Events), "skipped", len(res.Skipped))
	return e.deliver(ctx, client, res.Events)
}

func (e *Engine) handshake(ctx context.Context, log *slog.Logger, client Client, ev ProjectHandshake) error {
	if ev.ProjectID == "" {
		return invalidEvent("project id")
	}
	if e.flags.DisableProjectVariables || !e.policy.IsEnabled(ev.ProjectID) {
		return nil
	}

	live := e.registry.LiveGlobalVariables(ev.ProjectID)
	res, err := e.replayer.ProjectReplay(ctx, ev.ProjectID, live, e.registry.IsRoomLive(ev.ProjectID))
	if err != nil {
		return err
	}
	log.Debug("project replay", "project", ev.ProjectID, "events", len(res.Events), "skipped", len(res.Skipped))
	return e.deliver(ctx, client, res.Events)
}

func (e *Engine) deliver(ctx context.Context, client Client, events []replay.OutboundEvent) error {
	for i, ev := range events {
		if err := e.sender.Send(ctx, client, ev); err != nil {
			return &Error{
				Code:    ErrCodeDeliveryFailed,
				Message: fmt.Sprintf("send %s (%d of %d)", ev.Type, i+1, len(events)),
				Err:     err,
			}
		}
	}
	return nil
}
