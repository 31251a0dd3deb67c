package testutil

import (
	"context"
	"sync"

	"github.com/roach88/roomstore/internal/engine"
	"github.com/roach88/roomstore/internal/replay"
)

// Registry is an in-memory room registry.
//
// Thread-safety: all methods are safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	members map[string][]engine.Client
	live    map[string]*replay.MapVariables

	// ResolveErr, when set, is returned by ResolveRecipients.
	ResolveErr error
}

var _ engine.Registry = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{
		members: make(map[string][]engine.Client),
		live:    make(map[string]*replay.MapVariables),
	}
}

// Join adds clients to room.
func (r *Registry) Join(room string, clients ...engine.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[room] = append(r.members[room], clients...)
}

// Open marks id as a live room with the given global variables and returns
// its table.
func (r *Registry) Open(id string, vars map[string]any) *replay.MapVariables {
	r.mu.Lock()
	defer r.mu.Unlock()
	mv := replay.NewMapVariables(vars)
	r.live[id] = mv
	return mv
}

// Live returns the table of a live room, or nil.
func (r *Registry) Live(id string) *replay.MapVariables {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live[id]
}

func (r *Registry) IsRoomLive(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.live[id]
	return ok
}

// LiveGlobalVariables returns the live table, or a detached empty one when
// the room is not live.
func (r *Registry) LiveGlobalVariables(id string) replay.LiveVariables {
	r.mu.Lock()
	defer r.mu.Unlock()
	if mv, ok := r.live[id]; ok {
		return mv
	}
	return replay.NewMapVariables(nil)
}

// ResolveRecipients returns the members of room whose username or id equals
// target.
func (r *Registry) ResolveRecipients(_ context.Context, room, target string) ([]engine.Client, error) {
	if r.ResolveErr != nil {
		return nil, r.ResolveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []engine.Client
	for _, c := range r.members[room] {
		if c.Username() == target || c.Identity().ID == target {
			out = append(out, c)
		}
	}
	return out, nil
}
