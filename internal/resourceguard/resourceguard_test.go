package resourceguard

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldAcceptRejectsAtMaxConnections(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConnections = 1
	g, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)

	g.IncConnections()
	ok, reason := g.ShouldAccept()
	assert.False(t, ok)
	assert.Contains(t, reason, "max connections")
}

func TestShouldAcceptAllowsUnderLimit(t *testing.T) {
	cfg := DefaultConfig()
	g, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)

	ok, _ := g.ShouldAccept()
	assert.True(t, ok)
}

func TestIncDecConnectionsRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConnections = 1
	g, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)

	g.IncConnections()
	g.DecConnections()
	ok, _ := g.ShouldAccept()
	assert.True(t, ok)
}
