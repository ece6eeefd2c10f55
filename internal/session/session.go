// Package session issues and resolves opaque session tokens backed by the
// KV store (spec.md §4.5). Tokens are never JWTs or otherwise
// self-describing — the store is the sole source of truth, so revocation is
// just a key delete.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/anarthal/servertech-chat-sub000/internal/apperr"
	"github.com/anarthal/servertech-chat-sub000/internal/kv"
)

// tokenBytes is the amount of entropy in a freshly issued session token
// (spec.md §4.5: "128 bits of randomness").
const tokenBytes = 16

const maxIssueAttempts = 5

func keyFor(token string) string {
	return "session_" + token
}

// Store issues and looks up session tokens against a KV client.
type Store struct {
	kv *kv.Client
}

func New(kvClient *kv.Client) *Store {
	return &Store{kv: kvClient}
}

// Issue mints a new session token bound to userID, valid for ttl, and
// returns it. Collisions (vanishingly unlikely at 128 bits, but the store's
// SET NX EX makes them detectable) are retried with a fresh token rather
// than failing the caller.
func (s *Store) Issue(ctx context.Context, userID int64, ttl time.Duration) (string, error) {
	for attempt := 0; attempt < maxIssueAttempts; attempt++ {
		token, err := randomToken()
		if err != nil {
			return "", apperr.Of(apperr.KindUnknown, err)
		}
		err = s.kv.SetIfAbsent(ctx, keyFor(token), strconv.FormatInt(userID, 10), ttl)
		if err == nil {
			return token, nil
		}
		if !apperr.Is(err, apperr.KindAlreadyExists) {
			return "", err
		}
	}
	return "", apperr.Of(apperr.KindUnknown, fmt.Errorf("session: exhausted %d token collision retries", maxIssueAttempts))
}

// Lookup resolves a session token to the user id it was issued for.
// apperr.KindNotFound is returned for an unknown or expired token; callers
// at the HTTP/websocket boundary collapse that into KindRequiresAuth rather
// than leaking the distinction to the client.
func (s *Store) Lookup(ctx context.Context, token string) (int64, error) {
	raw, err := s.kv.GetString(ctx, keyFor(token))
	if err != nil {
		return 0, err
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperr.Of(apperr.KindParseError, err)
	}
	return userID, nil
}

func randomToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
