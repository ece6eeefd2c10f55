package kv

import (
	"fmt"

	"github.com/anarthal/servertech-chat-sub000/internal/apperr"
	"github.com/anarthal/servertech-chat-sub000/internal/model"
)

// The KV store's XREVRANGE replies arrive as nested arrays (RESP2's
// native shape once a client library like go-redis hands back the raw,
// type-erased reply): one top-level array per queued command, and within a
// command one array per stream entry shaped [id, [field, value]]. spec.md
// §4.4 calls for "a one-pass state machine over the flat node sequence the
// store emits"; rather than recursing over the interface{} tree directly we
// first flatten it into a token stream and then walk that stream with an
// explicit state machine, so the parsing logic is a single linear pass
// instead of a tree-shaped recursive-descent parser.

type tokenKind int

const (
	tokenArrayOpen tokenKind = iota
	tokenArrayClose
	tokenLeaf
)

type token struct {
	kind tokenKind
	leaf any
}

// flatten performs a pre-order walk of a reply tree (as returned by
// go-redis's Do().Result() for array-shaped replies), emitting an
// Open/Close-bracketed token stream.
func flatten(v any) []token {
	var out []token
	var walk func(any)
	walk = func(v any) {
		if arr, ok := v.([]any); ok {
			out = append(out, token{kind: tokenArrayOpen})
			for _, elem := range arr {
				walk(elem)
			}
			out = append(out, token{kind: tokenArrayClose})
			return
		}
		out = append(out, token{kind: tokenLeaf, leaf: v})
	}
	walk(v)
	return out
}

// parseState names the one-pass parser's position within the expected
// shape: top-level array of commands, each command an array of entries,
// each entry [id, [field, value]].
type parseState int

const (
	stateTopLevel parseState = iota
	stateCommand
	stateEntry
	stateEntryFields
	stateDone
)

// parseCommandReplies parses a top-level reply array — one element per
// queued command — into one []model.Message slice per command, preserving
// order. Any shape deviation, and an unterminated state at end of input,
// is reported as apperr.KindParseError (spec.md §4.4).
func parseCommandReplies(reply any) ([][]model.Message, error) {
	tokens := flatten(reply)
	pos := 0
	state := stateTopLevel
	var commands [][]model.Message
	var current []model.Message
	var entryID string
	var entryField string

	expect := func(k tokenKind) (token, error) {
		if pos >= len(tokens) {
			return token{}, fmt.Errorf("unexpected end of input in state %d", state)
		}
		tok := tokens[pos]
		if tok.kind != k {
			return token{}, fmt.Errorf("unexpected token kind %d, wanted %d in state %d", tok.kind, k, state)
		}
		pos++
		return tok, nil
	}

	// Outer: one ArrayOpen/Close bracketing the list of commands.
	if _, err := expect(tokenArrayOpen); err != nil {
		return nil, apperr.Of(apperr.KindParseError, err)
	}

	for pos < len(tokens) && tokens[pos].kind != tokenArrayClose {
		// Each command is itself an array of entries.
		if _, err := expect(tokenArrayOpen); err != nil {
			return nil, apperr.Of(apperr.KindParseError, err)
		}
		state = stateCommand
		current = nil

		for pos < len(tokens) && tokens[pos].kind != tokenArrayClose {
			// Each entry: [id, [field, value]]
			if _, err := expect(tokenArrayOpen); err != nil {
				return nil, apperr.Of(apperr.KindParseError, err)
			}
			state = stateEntry
			idTok, err := expect(tokenLeaf)
			if err != nil {
				return nil, apperr.Of(apperr.KindParseError, err)
			}
			entryID, err = toString(idTok.leaf)
			if err != nil {
				return nil, apperr.Of(apperr.KindParseError, err)
			}

			if _, err := expect(tokenArrayOpen); err != nil {
				return nil, apperr.Of(apperr.KindParseError, err)
			}
			state = stateEntryFields
			fieldTok, err := expect(tokenLeaf)
			if err != nil {
				return nil, apperr.Of(apperr.KindParseError, err)
			}
			entryField, err = toString(fieldTok.leaf)
			if err != nil {
				return nil, apperr.Of(apperr.KindParseError, err)
			}
			if entryField != "payload" {
				return nil, apperr.Of(apperr.KindParseError, fmt.Errorf("unexpected field %q, want \"payload\"", entryField))
			}
			valueTok, err := expect(tokenLeaf)
			if err != nil {
				return nil, apperr.Of(apperr.KindParseError, err)
			}
			rawValue, err := toBytes(valueTok.leaf)
			if err != nil {
				return nil, apperr.Of(apperr.KindParseError, err)
			}
			if _, err := expect(tokenArrayClose); err != nil { // close field pair
				return nil, apperr.Of(apperr.KindParseError, err)
			}
			if _, err := expect(tokenArrayClose); err != nil { // close entry
				return nil, apperr.Of(apperr.KindParseError, err)
			}

			msg, err := decodePayload(entryID, rawValue)
			if err != nil {
				return nil, apperr.Of(apperr.KindParseError, err)
			}
			current = append(current, msg)
		}
		if _, err := expect(tokenArrayClose); err != nil { // close command
			return nil, apperr.Of(apperr.KindParseError, err)
		}
		commands = append(commands, current)
	}

	if _, err := expect(tokenArrayClose); err != nil { // close top level
		return nil, apperr.Of(apperr.KindParseError, err)
	}
	state = stateDone
	_ = state

	if pos != len(tokens) {
		return nil, apperr.Of(apperr.KindParseError, fmt.Errorf("trailing tokens after top-level close"))
	}

	return commands, nil
}

func toString(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	default:
		return "", fmt.Errorf("expected string leaf, got %T", v)
	}
}

func toBytes(v any) ([]byte, error) {
	switch t := v.(type) {
	case string:
		return []byte(t), nil
	case []byte:
		return t, nil
	default:
		return nil, fmt.Errorf("expected string/bytes leaf, got %T", v)
	}
}
