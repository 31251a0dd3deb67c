package replay

import "sync"

// LiveVariables is the in-memory variable table of a running room. The
// room registry owns it; replay only reads it and adds missing names.
type LiveVariables interface {
	Has(name string) bool
	Get(name string) (any, bool)
	Set(name string, value any)
}

// MapVariables is a mutex-guarded LiveVariables backed by a map.
type MapVariables struct {
	mu   sync.RWMutex
	vars map[string]any
}

var _ LiveVariables = (*MapVariables)(nil)

// NewMapVariables returns a table seeded with a copy of initial.
func NewMapVariables(initial map[string]any) *MapVariables {
	vars := make(map[string]any, len(initial))
	for k, v := range initial {
		vars[k] = v
	}
	return &MapVariables{vars: vars}
}

func (m *MapVariables) Has(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.vars[name]
	return ok
}

func (m *MapVariables) Get(name string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vars[name]
	return v, ok
}

func (m *MapVariables) Set(name string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.vars == nil {
		m.vars = make(map[string]any)
	}
	m.vars[name] = value
}

// Snapshot returns a copy of the table.
func (m *MapVariables) Snapshot() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]any, len(m.vars))
	for k, v := range m.vars {
		out[k] = v
	}
	return out
}

// emptyVariables stands in for a nil live map.
type emptyVariables struct{}

func (emptyVariables) Has(string) bool        { return false }
func (emptyVariables) Get(string) (any, bool) { return nil, false }
func (emptyVariables) Set(string, any)        {}
