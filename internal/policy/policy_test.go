package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsEnabled_NoPatternsAllowsAll(t *testing.T) {
	p := MustNew(nil, nil)

	assert.True(t, p.IsEnabled("default"))
	assert.True(t, p.IsEnabled(""))
	assert.True(t, p.IsEnabled("anything at all"))
}

func TestIsEnabled_NilPolicyAllowsAll(t *testing.T) {
	var p *Policy
	assert.True(t, p.IsEnabled("lobby"))
}

func TestIsEnabled_DenyWinsOverAllow(t *testing.T) {
	p := MustNew([]string{"lobby.*"}, []string{"lobby-secret"})

	assert.False(t, p.IsEnabled("lobby-secret"))
	assert.True(t, p.IsEnabled("lobby-main"))
}

func TestIsEnabled_AllowListDefaultsToDeny(t *testing.T) {
	p := MustNew([]string{"game-[0-9]+"}, nil)

	assert.True(t, p.IsEnabled("game-12"))
	assert.False(t, p.IsEnabled("chat"))
}

func TestIsEnabled_FullMatchOnly(t *testing.T) {
	p := MustNew([]string{"lobby"}, []string{"tmp"})

	tests := []struct {
		id   string
		want bool
	}{
		{"lobby", true},
		{"lobby2", false},
		{"my-lobby", false},
		{"tmp", false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, p.IsEnabled(tt.id))
		})
	}

	// A deny pattern only denies on full match
	deny := MustNew(nil, []string{"tmp"})
	assert.True(t, deny.IsEnabled("tmp-room"))
	assert.False(t, deny.IsEnabled("tmp"))
}

func TestIsEnabled_AlternationIsAnchoredAsAWhole(t *testing.T) {
	p := MustNew([]string{"a|b"}, nil)

	assert.True(t, p.IsEnabled("a"))
	assert.True(t, p.IsEnabled("b"))
	assert.False(t, p.IsEnabled("ab"))
	assert.False(t, p.IsEnabled("xa"))
}

func TestNew_InvalidPattern(t *testing.T) {
	_, err := New([]string{"("}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enabled room patterns")

	_, err = New(nil, []string{"[z-a]"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disabled room patterns")
}

func TestMustNew_Panics(t *testing.T) {
	assert.Panics(t, func() { MustNew([]string{"("}, nil) })
}
