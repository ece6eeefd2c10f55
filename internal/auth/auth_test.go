package auth

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anarthal/servertech-chat-sub000/internal/apperr"
	"github.com/anarthal/servertech-chat-sub000/internal/model"
)

type fakeSessions struct {
	issued  map[string]int64
	nextTok string
}

func (f *fakeSessions) Issue(_ context.Context, userID int64, _ time.Duration) (string, error) {
	if f.issued == nil {
		f.issued = make(map[string]int64)
	}
	tok := f.nextTok
	if tok == "" {
		tok = "tok1"
	}
	f.issued[tok] = userID
	return tok, nil
}

func (f *fakeSessions) Lookup(_ context.Context, token string) (int64, error) {
	id, ok := f.issued[token]
	if !ok {
		return 0, apperr.Of(apperr.KindNotFound, nil)
	}
	return id, nil
}

type fakeUsers struct {
	byID map[int64]model.User
}

func (f *fakeUsers) UserByID(_ context.Context, id int64) (model.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return model.User{}, apperr.Of(apperr.KindNotFound, nil)
	}
	return u, nil
}

func TestSetSessionCookieProducesHttpOnlyStrictCookie(t *testing.T) {
	sessions := &fakeSessions{}
	v, err := SetSessionCookie(context.Background(), sessions, 7)
	require.NoError(t, err)
	assert.Contains(t, v, "sid=")
	assert.Contains(t, v, "HttpOnly")
	assert.Contains(t, v, "SameSite=Strict")
}

func TestUserIDFromRequestMissingCookieRequiresAuth(t *testing.T) {
	sessions := &fakeSessions{}
	h := http.Header{}
	_, err := UserIDFromRequest(context.Background(), sessions, h)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindRequiresAuth))
}

func TestUserIDFromRequestUnknownTokenRequiresAuth(t *testing.T) {
	sessions := &fakeSessions{}
	h := http.Header{"Cookie": []string{"sid=bogus"}}
	_, err := UserIDFromRequest(context.Background(), sessions, h)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindRequiresAuth))
}

func TestUserIDFromRequestValidCookieResolves(t *testing.T) {
	sessions := &fakeSessions{issued: map[string]int64{"tok1": 42}}
	h := http.Header{"Cookie": []string{"sid=tok1"}}
	id, err := UserIDFromRequest(context.Background(), sessions, h)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestUserFromRequestLoadsUser(t *testing.T) {
	sessions := &fakeSessions{issued: map[string]int64{"tok1": 42}}
	users := &fakeUsers{byID: map[int64]model.User{42: {ID: 42, Username: "alice"}}}
	h := http.Header{"Cookie": []string{"sid=tok1"}}
	u, err := UserFromRequest(context.Background(), sessions, users, h)
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
}

func TestUserFromRequestMissingUserCollapsesToRequiresAuth(t *testing.T) {
	sessions := &fakeSessions{issued: map[string]int64{"tok1": 99}}
	users := &fakeUsers{}
	h := http.Header{"Cookie": []string{"sid=tok1"}}
	_, err := UserFromRequest(context.Background(), sessions, users, h)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindRequiresAuth))
}
