package testutil

import (
	"context"
	"sync"

	"github.com/roach88/roomstore/internal/engine"
	"github.com/roach88/roomstore/internal/replay"
)

// Sent is one packet delivered through a Sender.
type Sent struct {
	To    string
	Event replay.OutboundEvent
}

// Sender records every packet instead of delivering it.
type Sender struct {
	mu   sync.Mutex
	sent []Sent

	// Err, when set, is returned by Send after recording.
	Err error
}

var _ engine.Sender = (*Sender)(nil)

func (s *Sender) Send(_ context.Context, to engine.Client, ev replay.OutboundEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, Sent{To: to.Username(), Event: ev})
	return s.Err
}

// Sent returns a copy of everything sent so far.
func (s *Sender) Sent() []Sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Sent(nil), s.sent...)
}

// EventsFor returns the events sent to username, in order.
func (s *Sender) EventsFor(username string) []replay.OutboundEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []replay.OutboundEvent
	for _, p := range s.sent {
		if p.To == username {
			out = append(out, p.Event)
		}
	}
	return out
}

// Reset forgets everything sent.
func (s *Sender) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = nil
}
