// Package auth binds the session store to HTTP request/response headers via
// the session-id cookie (spec.md §4.6). It depends only on narrow
// interfaces for session lookup and user loading so it stays testable
// without a live KV store or database.
package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/anarthal/servertech-chat-sub000/internal/apperr"
	"github.com/anarthal/servertech-chat-sub000/internal/cookie"
	"github.com/anarthal/servertech-chat-sub000/internal/model"
)

// sessionCookieName is the name of the cookie carrying the opaque session
// token (spec.md §6).
const sessionCookieName = "sid"

// SessionTTL is how long a freshly issued session remains valid (spec.md
// §3/§6: 7 days, Max-Age=604800).
const SessionTTL = 7 * 24 * time.Hour

// SessionIssuer mints new session tokens. Satisfied by *session.Store.
type SessionIssuer interface {
	Issue(ctx context.Context, userID int64, ttl time.Duration) (string, error)
}

// SessionResolver resolves a session token to the user id it names.
// Satisfied by *session.Store.
type SessionResolver interface {
	Lookup(ctx context.Context, token string) (int64, error)
}

// UserLoader loads a user's stable identity record. Satisfied by a
// relational-repository implementation.
type UserLoader interface {
	UserByID(ctx context.Context, id int64) (model.User, error)
}

// SetSessionCookie issues a new session for userID and returns the
// Set-Cookie header value to attach to the response.
func SetSessionCookie(ctx context.Context, issuer SessionIssuer, userID int64) (string, error) {
	token, err := issuer.Issue(ctx, userID, SessionTTL)
	if err != nil {
		return "", err
	}
	return cookie.New(sessionCookieName, token).
		HTTPOnly().
		SameSiteAttr(cookie.SameSiteStrict).
		MaxAge(int(SessionTTL.Seconds())).
		Build()
}

// UserIDFromRequest extracts the session cookie from headers and resolves
// it to a user id. Missing cookie or unknown/expired token both surface as
// apperr.KindRequiresAuth — the caller gains nothing from distinguishing
// them, and collapsing avoids leaking which case occurred.
func UserIDFromRequest(ctx context.Context, resolver SessionResolver, headers http.Header) (int64, error) {
	token, ok := cookie.Lookup(headers.Get("Cookie"), sessionCookieName)
	if !ok {
		return 0, apperr.Of(apperr.KindRequiresAuth, nil)
	}
	userID, err := resolver.Lookup(ctx, token)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return 0, apperr.Of(apperr.KindRequiresAuth, err)
		}
		return 0, err
	}
	return userID, nil
}

// Authenticator bundles a SessionResolver and UserLoader behind the single
// UserFromRequest(ctx, headers) method the chat session FSM (C10) calls.
type Authenticator struct {
	Resolver SessionResolver
	Users    UserLoader
}

// UserFromRequest implements chat.AuthResolver.
func (a *Authenticator) UserFromRequest(ctx context.Context, headers http.Header) (model.User, error) {
	return UserFromRequest(ctx, a.Resolver, a.Users, headers)
}

// UserFromRequest resolves the session cookie to a user id and loads the
// full User record.
func UserFromRequest(ctx context.Context, resolver SessionResolver, users UserLoader, headers http.Header) (model.User, error) {
	userID, err := UserIDFromRequest(ctx, resolver, headers)
	if err != nil {
		return model.User{}, err
	}
	user, err := users.UserByID(ctx, userID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return model.User{}, apperr.Of(apperr.KindRequiresAuth, err)
		}
		return model.User{}, err
	}
	return user, nil
}
