package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/anarthal/servertech-chat-sub000/internal/apperr"
	"github.com/anarthal/servertech-chat-sub000/internal/chat"
	"github.com/anarthal/servertech-chat-sub000/internal/model"
	"github.com/anarthal/servertech-chat-sub000/internal/security"
)

type fakeUsers struct {
	insertErr error
	nextID    int64
	inserted  bool
}

func (f *fakeUsers) InsertUser(context.Context, string, string, string) (int64, error) {
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.inserted = true
	return f.nextID, nil
}

type fakeAuthUsers struct {
	byEmail map[string]model.AuthUser
}

func (f *fakeAuthUsers) AuthUserByEmail(_ context.Context, email string) (model.AuthUser, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return model.AuthUser{}, apperr.Of(apperr.KindNotFound, nil)
	}
	return u, nil
}

type fakeSessions struct {
	err   error
	token string
}

func (f *fakeSessions) Issue(context.Context, int64, time.Duration) (string, error) {
	return f.token, f.err
}

func newHandler(t *testing.T, users *fakeUsers, authUsers *fakeAuthUsers, sessions *fakeSessions, docRoot string) *Handler {
	t.Helper()
	return New(users, authUsers, sessions, docRoot, chat.Deps{}, zerolog.Nop())
}

func TestCreateAccountSuccessSetsCookieAndReturns204(t *testing.T) {
	users := &fakeUsers{nextID: 42}
	sessions := &fakeSessions{token: "tok-abc"}
	h := newHandler(t, users, &fakeAuthUsers{}, sessions, t.TempDir())

	body := strings.NewReader(`{"username":"alice","email":"alice@example.com","password":"hunter2pass"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/create-account", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.True(t, users.inserted)
	require.Contains(t, rec.Header().Get("Set-Cookie"), "sid=tok-abc")
}

func TestCreateAccountRejectsInvalidUsername(t *testing.T) {
	h := newHandler(t, &fakeUsers{}, &fakeAuthUsers{}, &fakeSessions{}, t.TempDir())

	body := strings.NewReader(`{"username":"ab","email":"a@example.com","password":"hunter2pass"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/create-account", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "BAD_REQUEST")
}

func TestCreateAccountDuplicateUsernameReturnsUsernameExists(t *testing.T) {
	users := &fakeUsers{insertErr: apperr.Of(apperr.KindUsernameExists, nil)}
	h := newHandler(t, users, &fakeAuthUsers{}, &fakeSessions{}, t.TempDir())

	body := strings.NewReader(`{"username":"alice","email":"alice@example.com","password":"hunter2pass"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/create-account", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "USERNAME_EXISTS")
}

func TestCreateAccountDuplicateEmailReturnsEmailExists(t *testing.T) {
	users := &fakeUsers{insertErr: apperr.Of(apperr.KindEmailExists, nil)}
	h := newHandler(t, users, &fakeAuthUsers{}, &fakeSessions{}, t.TempDir())

	body := strings.NewReader(`{"username":"alice","email":"alice@example.com","password":"hunter2pass"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/create-account", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "EMAIL_EXISTS")
}

func TestLoginSuccessSetsCookieAndReturns204(t *testing.T) {
	hashed, err := security.HashPassword("hunter2pass")
	require.NoError(t, err)

	authUsers := &fakeAuthUsers{byEmail: map[string]model.AuthUser{
		"alice@example.com": {ID: 7, HashedPassword: hashed},
	}}
	sessions := &fakeSessions{token: "tok-xyz"}
	h := newHandler(t, &fakeUsers{}, authUsers, sessions, t.TempDir())

	body := strings.NewReader(`{"email":"alice@example.com","password":"hunter2pass"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/login", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Contains(t, rec.Header().Get("Set-Cookie"), "sid=tok-xyz")
}

func TestLoginUnknownEmailAndWrongPasswordReturnIdenticalBody(t *testing.T) {
	hashed, err := security.HashPassword("hunter2pass")
	require.NoError(t, err)
	authUsers := &fakeAuthUsers{byEmail: map[string]model.AuthUser{
		"alice@example.com": {ID: 7, HashedPassword: hashed},
	}}
	h := newHandler(t, &fakeUsers{}, authUsers, &fakeSessions{}, t.TempDir())

	unknownReq := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"email":"ghost@example.com","password":"hunter2pass"}`))
	unknownReq.Header.Set("Content-Type", "application/json")
	unknownRec := httptest.NewRecorder()
	h.ServeHTTP(unknownRec, unknownReq)

	wrongReq := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"email":"alice@example.com","password":"wrongwrongwrong"}`))
	wrongReq.Header.Set("Content-Type", "application/json")
	wrongRec := httptest.NewRecorder()
	h.ServeHTTP(wrongRec, wrongReq)

	require.Equal(t, http.StatusBadRequest, unknownRec.Code)
	require.Equal(t, http.StatusBadRequest, wrongRec.Code)
	require.Equal(t, unknownRec.Body.String(), wrongRec.Body.String())
	require.Contains(t, unknownRec.Body.String(), "LOGIN_FAILED")
}

func TestUnknownAPIRouteReturns404(t *testing.T) {
	h := newHandler(t, &fakeUsers{}, &fakeAuthUsers{}, &fakeSessions{}, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/api/does-not-exist", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDisallowedMethodReturns405(t *testing.T) {
	h := newHandler(t, &fakeUsers{}, &fakeAuthUsers{}, &fakeSessions{}, t.TempDir())

	req := httptest.NewRequest(http.MethodDelete, "/index.html", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServeStaticRejectsDotDot(t *testing.T) {
	h := newHandler(t, &fakeUsers{}, &fakeAuthUsers{}, &fakeSessions{}, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/../../etc/passwd", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServeStaticMapsRootToIndexAndAppendsHTMLExtension(t *testing.T) {
	docRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(docRoot, "index.html"), []byte("home"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(docRoot, "about.html"), []byte("about"), 0o644))

	h := newHandler(t, &fakeUsers{}, &fakeAuthUsers{}, &fakeSessions{}, docRoot)

	rootRec := httptest.NewRecorder()
	h.ServeHTTP(rootRec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rootRec.Code)
	require.Equal(t, "home", rootRec.Body.String())

	aboutRec := httptest.NewRecorder()
	h.ServeHTTP(aboutRec, httptest.NewRequest(http.MethodGet, "/about", nil))
	require.Equal(t, http.StatusOK, aboutRec.Code)
	require.Equal(t, "about", aboutRec.Body.String())
}
