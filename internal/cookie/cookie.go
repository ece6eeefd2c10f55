// Package cookie builds Set-Cookie values and parses Cookie request headers
// per spec.md §4.2 (RFC 6265 §4.1/§4.2, RFC 7230 token grammar).
package cookie

import (
	"fmt"
	"strconv"
	"strings"
)

// SameSite is the SameSite cookie attribute.
type SameSite int

const (
	// SameSiteDefault means "don't emit the attribute" — browsers treat
	// that as Lax, the implicit default spec.md §4.2 describes.
	SameSiteDefault SameSite = iota
	SameSiteStrict
	SameSiteLax
	SameSiteNone
)

// Builder constructs a single Set-Cookie header value.
type Builder struct {
	name, value string
	httpOnly    bool
	secure      bool
	maxAge      *int
	sameSite    SameSite
	err         error
}

// New validates name as an HTTP token (RFC 7230) and value as a sequence of
// cookie-octets (RFC 6265). The error, if any, surfaces from Build.
func New(name, value string) *Builder {
	b := &Builder{name: name, value: value}
	if !isToken(name) {
		b.err = fmt.Errorf("cookie: invalid name %q: not an HTTP token", name)
		return b
	}
	if !isCookieValue(value) {
		b.err = fmt.Errorf("cookie: invalid value %q: not a valid cookie-octet sequence", value)
	}
	return b
}

// HTTPOnly sets the HttpOnly attribute.
func (b *Builder) HTTPOnly() *Builder { b.httpOnly = true; return b }

// Secure sets the Secure attribute.
func (b *Builder) Secure() *Builder { b.secure = true; return b }

// MaxAge sets Max-Age in seconds.
func (b *Builder) MaxAge(seconds int) *Builder { b.maxAge = &seconds; return b }

// SameSiteAttr sets the SameSite attribute; SameSiteDefault omits it.
func (b *Builder) SameSiteAttr(s SameSite) *Builder { b.sameSite = s; return b }

// Build returns the exact Set-Cookie header value, or an error if the name
// or value failed validation.
func (b *Builder) Build() (string, error) {
	if b.err != nil {
		return "", b.err
	}
	var sb strings.Builder
	sb.WriteString(b.name)
	sb.WriteByte('=')
	sb.WriteString(b.value)
	if b.maxAge != nil {
		sb.WriteString("; Max-Age=")
		sb.WriteString(strconv.Itoa(*b.maxAge))
	}
	if b.httpOnly {
		sb.WriteString("; HttpOnly")
	}
	if b.secure {
		sb.WriteString("; Secure")
	}
	switch b.sameSite {
	case SameSiteStrict:
		sb.WriteString("; SameSite=Strict")
	case SameSiteLax:
		sb.WriteString("; SameSite=Lax")
	case SameSiteNone:
		sb.WriteString("; SameSite=None")
	}
	return sb.String(), nil
}

func isToken(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range []byte(s) {
		if !isTokenChar(c) {
			return false
		}
	}
	return true
}

// isTokenChar implements RFC 7230's tchar grammar.
func isTokenChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	switch c {
	case '!', '#', '$', '%', '&', '\'', '*', '+', '-', '.', '^', '_', '`', '|', '~':
		return true
	}
	return false
}

// isCookieValue implements RFC 6265's cookie-value grammar, accepting both
// the quoted and unquoted forms.
func isCookieValue(s string) bool {
	v := s
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		v = v[1 : len(v)-1]
	}
	for _, c := range []byte(v) {
		if !isCookieOctet(c) {
			return false
		}
	}
	return true
}

func isCookieOctet(c byte) bool {
	switch {
	case c == 0x21:
		return true
	case c >= 0x23 && c <= 0x2B:
		return true
	case c >= 0x2D && c <= 0x3A:
		return true
	case c >= 0x3C && c <= 0x5B:
		return true
	case c >= 0x5D && c <= 0x7E:
		return true
	}
	return false
}

// Pair is one name=value cookie-pair parsed from a Cookie header.
type Pair struct {
	Name  string
	Value string
}

// Parser is a zero-copy, lazy sequence over a Cookie header's cookie-pairs
// (RFC 6265 §4.2: cookie-pair (";" SP cookie-pair)*). Iteration stops
// silently at the first malformed pair; pairs already yielded remain valid.
type Parser struct {
	rest string
	done bool
}

// NewParser returns a Parser over header, the raw value of a Cookie header.
func NewParser(header string) *Parser {
	return &Parser{rest: header}
}

// Next returns the next cookie-pair, or ok=false when the header is
// exhausted or the next pair is malformed.
func (p *Parser) Next() (pair Pair, ok bool) {
	if p.done || p.rest == "" {
		return Pair{}, false
	}

	// ';' never appears in a valid cookie-octet (see isCookieOctet), so
	// splitting on the bare separator is safe even when a sender omits the
	// RFC 6265-preferred space after it.
	segment := p.rest
	if idx := strings.IndexByte(p.rest, ';'); idx >= 0 {
		segment = p.rest[:idx]
		p.rest = strings.TrimPrefix(p.rest[idx+1:], " ")
	} else {
		p.rest = ""
	}

	eq := strings.IndexByte(segment, '=')
	if eq <= 0 {
		p.done = true
		return Pair{}, false
	}
	name := segment[:eq]
	value := segment[eq+1:]
	if !isToken(name) || !isCookieValue(value) {
		p.done = true
		return Pair{}, false
	}
	if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
		value = value[1 : len(value)-1]
	}
	return Pair{Name: name, Value: value}, true
}

// Lookup scans header for the named cookie, returning its value and
// whether it was found. It stops at the first malformed pair, same as
// Parser.
func Lookup(header, name string) (string, bool) {
	p := NewParser(header)
	for {
		pair, ok := p.Next()
		if !ok {
			return "", false
		}
		if pair.Name == name {
			return pair.Value, true
		}
	}
}
