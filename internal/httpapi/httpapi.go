// Package httpapi implements the HTTP dispatcher (C11): create-account,
// login, static file serving, and handoff to the websocket chat session
// (spec.md §4.11).
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/anarthal/servertech-chat-sub000/internal/apperr"
	"github.com/anarthal/servertech-chat-sub000/internal/auth"
	"github.com/anarthal/servertech-chat-sub000/internal/chat"
	"github.com/anarthal/servertech-chat-sub000/internal/model"
	"github.com/anarthal/servertech-chat-sub000/internal/security"
)

// maxBodyBytes is the request body cap spec.md §4.11/§5 names (10 KB).
const maxBodyBytes = 10 * 1024

// UserCreator inserts a new user row, hashed password already computed.
type UserCreator interface {
	InsertUser(ctx context.Context, username, email, hashedPassword string) (int64, error)
}

// AuthUserLoader loads the login-only credential view of a user by email.
type AuthUserLoader interface {
	AuthUserByEmail(ctx context.Context, email string) (model.AuthUser, error)
}

// SessionIssuer mints session cookies for an authenticated user id.
type SessionIssuer = auth.SessionIssuer

// Handler serves every route spec.md §4.11 names.
type Handler struct {
	users     UserCreator
	authUsers AuthUserLoader
	sessions  SessionIssuer
	docRoot   string
	chatDeps  chat.Deps
	logger    zerolog.Logger
}

// New builds a Handler wired to its collaborators.
func New(users UserCreator, authUsers AuthUserLoader, sessions SessionIssuer, docRoot string, chatDeps chat.Deps, logger zerolog.Logger) *Handler {
	return &Handler{
		users:     users,
		authUsers: authUsers,
		sessions:  sessions,
		docRoot:   docRoot,
		chatDeps:  chatDeps,
		logger:    logger.With().Str("component", "httpapi").Logger(),
	}
}

// errorBody is the {"id":CODE,"message":text} shape spec.md §6 specifies
// for 400 responses.
type errorBody struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{ID: code, Message: message})
}

// ServeHTTP routes per spec.md §4.11's table.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	switch {
	case r.URL.Path == "/api/create-account" && r.Method == http.MethodPost:
		h.handleCreateAccount(w, r)
	case r.URL.Path == "/api/login" && r.Method == http.MethodPost:
		h.handleLogin(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/"):
		http.NotFound(w, r)
	case isWebsocketUpgrade(r):
		chat.Run(r.Context(), w, r, h.chatDeps)
	case r.Method == http.MethodGet || r.Method == http.MethodHead:
		h.serveStatic(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func isWebsocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

type createAccountRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Content-Type must be application/json")
		return
	}
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "malformed JSON body")
		return
	}

	if err := security.ValidateUsername(req.Username); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	if err := security.ValidateEmail(req.Email); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	if err := security.ValidatePassword(req.Password); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	hashed, err := security.HashPassword(req.Password)
	if err != nil {
		h.logger.Error().Err(err).Msg("httpapi: password hashing failed")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	userID, err := h.users.InsertUser(r.Context(), req.Username, req.Email, hashed)
	if err != nil {
		if apperr.Is(err, apperr.KindUsernameExists) {
			writeError(w, http.StatusBadRequest, "USERNAME_EXISTS", "username already taken")
			return
		}
		if apperr.Is(err, apperr.KindEmailExists) {
			writeError(w, http.StatusBadRequest, "EMAIL_EXISTS", "email already registered")
			return
		}
		h.logger.Error().Err(err).Msg("httpapi: create-account insert failed")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	h.issueSessionAndRespond(w, r, userID)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Content-Type must be application/json")
		return
	}
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "malformed JSON body")
		return
	}
	if err := security.ValidateEmail(req.Email); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	if err := security.ValidatePassword(req.Password); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	authUser, err := h.authUsers.AuthUserByEmail(r.Context(), req.Email)
	if err != nil {
		// NotFound and hash-mismatch produce the identical LOGIN_FAILED
		// response — an enumeration defense (spec.md §4.11, §8 scenario 2).
		writeError(w, http.StatusBadRequest, "LOGIN_FAILED", "invalid email or password")
		return
	}
	if !security.VerifyPassword(req.Password, authUser.HashedPassword) {
		writeError(w, http.StatusBadRequest, "LOGIN_FAILED", "invalid email or password")
		return
	}

	h.issueSessionAndRespond(w, r, authUser.ID)
}

func (h *Handler) issueSessionAndRespond(w http.ResponseWriter, r *http.Request, userID int64) {
	cookieValue, err := auth.SetSessionCookie(r.Context(), h.sessions, userID)
	if err != nil {
		h.logger.Error().Err(err).Msg("httpapi: session issuance failed")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Set-Cookie", cookieValue)
	w.WriteHeader(http.StatusNoContent)
}

// serveStatic serves a file under docRoot: "/" maps to index.html,
// extension-less paths get .html appended, and ".." path segments are
// rejected (spec.md §6).
func (h *Handler) serveStatic(w http.ResponseWriter, r *http.Request) {
	reqPath := r.URL.Path
	if strings.Contains(reqPath, "..") {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if reqPath == "/" {
		reqPath = "/index.html"
	} else if filepath.Ext(reqPath) == "" {
		reqPath += ".html"
	}
	http.ServeFile(w, r, filepath.Join(h.docRoot, filepath.Clean(reqPath)))
}
