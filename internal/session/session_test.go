package session

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomTokenIsURLSafeAndUnpadded(t *testing.T) {
	tok, err := randomToken()
	require.NoError(t, err)
	assert.NotContains(t, tok, "=")
	assert.NotContains(t, tok, "+")
	assert.NotContains(t, tok, "/")

	decoded, err := base64.RawURLEncoding.DecodeString(tok)
	require.NoError(t, err)
	assert.Len(t, decoded, tokenBytes)
}

func TestRandomTokenIsNotConstant(t *testing.T) {
	a, err := randomToken()
	require.NoError(t, err)
	b, err := randomToken()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestKeyForNamespacesToken(t *testing.T) {
	assert.Equal(t, "session_abc123", keyFor("abc123"))
}
