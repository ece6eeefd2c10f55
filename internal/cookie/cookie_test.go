package cookie

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderSessionCookie(t *testing.T) {
	v, err := New("sid", "abc123").HTTPOnly().SameSiteAttr(SameSiteStrict).MaxAge(604800).Build()
	require.NoError(t, err)
	assert.Equal(t, "sid=abc123; Max-Age=604800; HttpOnly; SameSite=Strict", v)
}

func TestBuilderDefaultSameSiteOmitted(t *testing.T) {
	v, err := New("sid", "abc").Build()
	require.NoError(t, err)
	assert.NotContains(t, v, "SameSite")
}

func TestBuilderRejectsInvalidName(t *testing.T) {
	_, err := New("bad name", "v").Build()
	assert.Error(t, err)
}

func TestBuilderRejectsInvalidValue(t *testing.T) {
	_, err := New("name", "has space").Build()
	assert.Error(t, err)
}

func TestParserYieldsAllPairs(t *testing.T) {
	p := NewParser("a=1; b=2; c=3")
	var got []Pair
	for {
		pair, ok := p.Next()
		if !ok {
			break
		}
		got = append(got, pair)
	}
	require.Len(t, got, 3)
	assert.Equal(t, Pair{"a", "1"}, got[0])
	assert.Equal(t, Pair{"c", "3"}, got[2])
}

func TestParserStopsAtMalformedPair(t *testing.T) {
	p := NewParser("a=1; bad; c=3")
	pair, ok := p.Next()
	require.True(t, ok)
	assert.Equal(t, Pair{"a", "1"}, pair)

	_, ok = p.Next()
	assert.False(t, ok)
}

func TestParserYieldedPairsPrefixInput(t *testing.T) {
	header := "sid=tok1; theme=dark"
	p := NewParser(header)
	var prefix strings.Builder
	for {
		pair, ok := p.Next()
		if !ok {
			break
		}
		if prefix.Len() > 0 {
			prefix.WriteString("; ")
		}
		prefix.WriteString(pair.Name)
		prefix.WriteByte('=')
		prefix.WriteString(pair.Value)
	}
	assert.True(t, strings.HasPrefix(header, prefix.String()))
}

func TestLookupFindsCookie(t *testing.T) {
	v, ok := Lookup("a=1; sid=tok123; c=3", "sid")
	require.True(t, ok)
	assert.Equal(t, "tok123", v)
}

func TestLookupMissing(t *testing.T) {
	_, ok := Lookup("a=1; b=2", "sid")
	assert.False(t, ok)
}

func TestLookupFindsCookieWithoutSpaceAfterSemicolon(t *testing.T) {
	v, ok := Lookup("sid=tok123;theme=dark", "sid")
	require.True(t, ok)
	assert.Equal(t, "tok123", v)

	v, ok = Lookup("sid=tok123;theme=dark", "theme")
	require.True(t, ok)
	assert.Equal(t, "dark", v)
}
