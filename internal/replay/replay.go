package replay

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/roomstore/internal/metrics"
	"github.com/roach88/roomstore/internal/policy"
	"github.com/roach88/roomstore/internal/record"
)

// Flags switch individual record kinds off. A disabled kind is neither
// persisted nor replayed.
type Flags struct {
	DisableBroadcastMessages  bool
	DisablePrivateMessages    bool
	DisableBroadcastVariables bool
	DisablePrivateVariables   bool
	DisableProjectVariables   bool
}

// Replayer builds replay event sequences from a record store.
//
// Replayer holds no mutable state and is safe for concurrent use.
type Replayer struct {
	store  record.Store
	policy *policy.Policy
	flags  Flags
	logger *slog.Logger
}

// Option configures a Replayer.
type Option func(*Replayer)

// WithPolicy restricts replay to rooms the policy enables. Without it every
// room is enabled.
func WithPolicy(p *policy.Policy) Option {
	return func(r *Replayer) {
		r.policy = p
	}
}

// WithFlags sets the feature switches.
func WithFlags(f Flags) Option {
	return func(r *Replayer) {
		r.flags = f
	}
}

// WithLogger sets the logger used for skipped records.
// Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Replayer) {
		r.logger = l
	}
}

// New creates a Replayer reading from s.
func New(s record.Store, opts ...Option) *Replayer {
	r := &Replayer{
		store:  s,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Flags returns the feature switches in effect.
func (r *Replayer) Flags() Flags { return r.flags }

// Enabled reports whether room (or project id) takes part in persistence.
func (r *Replayer) Enabled(room string) bool { return r.policy.IsEnabled(room) }

// ConnectReplay returns the messages and variables of room visible to
// username: every broadcast record and the private records addressed to
// username, messages first. A denied room yields an empty result without
// touching the store.
func (r *Replayer) ConnectReplay(ctx context.Context, room, username string) (Result, error) {
	var res Result
	if !r.policy.IsEnabled(room) {
		metrics.ReplaysTotal.WithLabelValues("connect", "denied").Inc()
		return res, nil
	}

	if !r.flags.DisableBroadcastMessages || !r.flags.DisablePrivateMessages {
		msgs, corrupt, err := r.store.FetchMessages(ctx, room)
		if err != nil {
			metrics.ReplaysTotal.WithLabelValues("connect", "error").Inc()
			return Result{}, fmt.Errorf("connect replay of %q: %w", room, err)
		}
		r.skip(&res, "message", corrupt)

		for _, m := range msgs {
			if m.IsPrivate() {
				if r.flags.DisablePrivateMessages || m.Target != username {
					continue
				}
				res.Events = append(res.Events, OutboundEvent{
					Type:   TypePrivateMessage,
					Room:   room,
					Value:  m.Value,
					Origin: m.Origin,
				})
				continue
			}
			if r.flags.DisableBroadcastMessages {
				continue
			}
			res.Events = append(res.Events, OutboundEvent{
				Type:  TypeGlobalMessage,
				Room:  room,
				Value: m.Value,
			})
		}
	}

	if !r.flags.DisableBroadcastVariables || !r.flags.DisablePrivateVariables {
		vars, corrupt, err := r.store.FetchVariables(ctx, room)
		if err != nil {
			metrics.ReplaysTotal.WithLabelValues("connect", "error").Inc()
			return Result{}, fmt.Errorf("connect replay of %q: %w", room, err)
		}
		r.skip(&res, "variable", corrupt)

		for _, v := range vars {
			if v.IsPrivate() {
				if r.flags.DisablePrivateVariables || v.Target != username {
					continue
				}
				res.Events = append(res.Events, OutboundEvent{
					Type:   TypePrivateVariable,
					Room:   room,
					Name:   v.Name,
					Value:  v.Value,
					Origin: v.Origin,
				})
				continue
			}
			if r.flags.DisableBroadcastVariables {
				continue
			}
			res.Events = append(res.Events, OutboundEvent{
				Type:  TypeGlobalVariable,
				Room:  room,
				Name:  v.Name,
				Value: v.Value,
			})
		}
	}

	r.count("connect", res)
	return res, nil
}

// ProjectReplay returns a "set" event for every persisted variable of
// projectID whose name is absent from live. When liveExists is true the
// missing value is also written into live. Names already in live are never
// overwritten or emitted. A nil live behaves as an empty table.
func (r *Replayer) ProjectReplay(ctx context.Context, projectID string, live LiveVariables, liveExists bool) (Result, error) {
	var res Result
	if r.flags.DisableProjectVariables || !r.policy.IsEnabled(projectID) {
		metrics.ReplaysTotal.WithLabelValues("project", "denied").Inc()
		return res, nil
	}
	if live == nil {
		live = emptyVariables{}
	}

	vars, corrupt, err := r.store.FetchProjectVariables(ctx, projectID)
	if err != nil {
		metrics.ReplaysTotal.WithLabelValues("project", "error").Inc()
		return Result{}, fmt.Errorf("project replay of %q: %w", projectID, err)
	}
	r.skip(&res, "project_variable", corrupt)

	for _, v := range vars {
		if live.Has(v.Name) {
			continue
		}
		if liveExists {
			live.Set(v.Name, v.Value)
			metrics.LiveVariablesRestored.Inc()
		}
		res.Events = append(res.Events, OutboundEvent{
			Type:  TypeProjectSet,
			Name:  v.Name,
			Value: v.Value,
		})
	}

	r.count("project", res)
	return res, nil
}

func (r *Replayer) skip(res *Result, kind string, corrupt []error) {
	for _, err := range corrupt {
		r.logger.Warn("skipping undecodable record", "kind", kind, "error", err)
		metrics.CorruptRecords.WithLabelValues(kind).Inc()
	}
	res.Skipped = append(res.Skipped, corrupt...)
}

func (r *Replayer) count(kind string, res Result) {
	metrics.ReplaysTotal.WithLabelValues(kind, "ok").Inc()
	for _, ev := range res.Events {
		metrics.EventsReplayed.WithLabelValues(string(ev.Type)).Inc()
	}
	r.logger.Debug("replay built", "kind", kind, "events", len(res.Events), "skipped", len(res.Skipped))
}
