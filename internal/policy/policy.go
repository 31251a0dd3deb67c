// Package policy decides which rooms and projects take part in persistence
// and replay.
package policy

import (
	"fmt"
	"regexp"
)

// Policy evaluates room identifiers against allow and deny pattern lists.
//
// Patterns use RE2 syntax and always match the whole identifier. The deny
// list wins over the allow list; an empty allow list admits everything that
// is not denied. A nil *Policy admits everything.
//
// Policy is immutable after construction and safe for concurrent use.
type Policy struct {
	enabled  []*regexp.Regexp
	disabled []*regexp.Regexp
}

// New compiles the enabled (allow) and disabled (deny) pattern lists.
func New(enabled, disabled []string) (*Policy, error) {
	allow, err := compileAll(enabled)
	if err != nil {
		return nil, fmt.Errorf("enabled room patterns: %w", err)
	}
	deny, err := compileAll(disabled)
	if err != nil {
		return nil, fmt.Errorf("disabled room patterns: %w", err)
	}
	return &Policy{enabled: allow, disabled: deny}, nil
}

// MustNew is like New but panics on an invalid pattern. Intended for tests
// and static pattern lists.
func MustNew(enabled, disabled []string) *Policy {
	p, err := New(enabled, disabled)
	if err != nil {
		panic(err)
	}
	return p
}

// IsEnabled reports whether id may be persisted and replayed.
func (p *Policy) IsEnabled(id string) bool {
	if p == nil {
		return true
	}
	for _, re := range p.disabled {
		if re.MatchString(id) {
			return false
		}
	}
	if len(p.enabled) == 0 {
		return true
	}
	for _, re := range p.enabled {
		if re.MatchString(id) {
			return true
		}
	}
	return false
}

// compileAll anchors each pattern so it only matches the full identifier.
func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(`^(?:` + p + `)$`)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}
