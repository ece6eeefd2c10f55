// Package chat implements the per-connection Chat Session FSM (C10): one
// instance per accepted websocket upgrade, carrying a client from
// Authenticating through BeforeHello into its Running dispatch loop and
// finally Closed (spec.md §4.10).
package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/anarthal/servertech-chat-sub000/internal/apperr"
	"github.com/anarthal/servertech-chat-sub000/internal/model"
	"github.com/anarthal/servertech-chat-sub000/internal/pubsub"
	"github.com/anarthal/servertech-chat-sub000/internal/wsframe"
)

// policyViolationCode is the websocket close code used when authentication
// fails at upgrade time (spec.md §4.10, §8 scenario 3).
const policyViolationCode = 1008

// AuthResolver authenticates the preserved upgrade request's cookies.
type AuthResolver interface {
	UserFromRequest(ctx context.Context, headers http.Header) (model.User, error)
}

// Appender appends one message per room to that room's stream and returns
// each message with its store-assigned id.
type Appender interface {
	AppendToStreams(ctx context.Context, byRoom map[string]model.Message) (map[string]model.Message, error)
}

// HistoryService is the subset of the room-history service (C9) sessions
// call directly.
type HistoryService interface {
	Fetch(ctx context.Context, roomIDs []string) (map[string]model.MessageBatch, model.UsernameMap, error)
	FetchOne(ctx context.Context, roomID string, lastSeenID string) (model.MessageBatch, model.UsernameMap, error)
}

// Bus is the subset of the pub/sub bus (C7) sessions use.
type Bus interface {
	SubscribeGuarded(sub pubsub.Subscriber, topicIDs ...string) *pubsub.Guard
	Publish(topicID string, payload []byte)
}

// Deps bundles every collaborator a Session needs, so construction stays a
// single call even as the server wires in more components.
type Deps struct {
	Auth     AuthResolver
	Appender Appender
	History  HistoryService
	Bus      Bus
	Logger   zerolog.Logger
}

// Session is one Chat Session FSM instance. It implements pubsub.Subscriber
// so the bus can deliver broadcasts to it directly.
type Session struct {
	deps Deps
	conn *wsframe.Conn
	user model.User

	guard *pubsub.Guard
}

// Run authenticates r, upgrades the connection, and drives the session to
// completion. It returns once the session has torn down — callers run it
// per accepted connection, typically in its own goroutine.
func Run(ctx context.Context, w http.ResponseWriter, r *http.Request, deps Deps) {
	user, authErr := deps.Auth.UserFromRequest(ctx, r.Header)

	conn, err := wsframe.Accept(w, r)
	if err != nil {
		deps.Logger.Warn().Err(err).Msg("chat: websocket upgrade failed")
		return
	}

	if authErr != nil {
		conn.Close(policyViolationCode, "authentication required")
		return
	}

	connID := uuid.New().String()
	deps.Logger = deps.Logger.With().Str("conn_id", connID).Logger()

	s := &Session{deps: deps, conn: conn, user: user}
	s.runAuthenticated(ctx)
}

// runAuthenticated covers BeforeHello through Closed: lock writes, subscribe,
// load history, emit hello, release, then dispatch until teardown.
func (s *Session) runAuthenticated(ctx context.Context) {
	roomIDs := model.RoomIDs()

	write, release, err := s.conn.LockForWrite(ctx)
	if err != nil {
		s.deps.Logger.Warn().Err(err).Msg("chat: failed to acquire write lock for hello")
		return
	}

	s.guard = s.deps.Bus.SubscribeGuarded(s, roomIDs...)
	defer s.guard.Release()

	batches, usernames, err := s.deps.History.Fetch(ctx, roomIDs)
	if err != nil {
		s.deps.Logger.Error().Err(err).Msg("chat: history load failed")
		release()
		return
	}

	helloFrame, err := buildHello(s.user, usernames, batches)
	if err != nil {
		s.deps.Logger.Error().Err(err).Msg("chat: failed to encode hello frame")
		release()
		return
	}
	if err := write(helloFrame); err != nil {
		s.deps.Logger.Warn().Err(err).Msg("chat: failed to write hello frame")
		release()
		return
	}
	release()

	s.dispatchLoop(ctx)
}

func buildHello(user model.User, usernames model.UsernameMap, batches map[string]model.MessageBatch) ([]byte, error) {
	rooms := make([]helloRoom, 0, len(model.Rooms))
	for _, room := range model.Rooms {
		batch := batches[room.ID]
		rooms = append(rooms, helloRoom{
			ID:              room.ID,
			Name:            room.Name,
			Messages:        toWireMessages(batch.Messages, usernames),
			HasMoreMessages: batch.HasMore,
		})
	}
	payload := helloPayload{
		Me:    wireUser{ID: user.ID, Username: user.Username},
		Rooms: rooms,
	}
	return encodeEnvelope("hello", payload)
}

// dispatchLoop reads one frame at a time, parses it as a tagged client
// event, and dispatches — until the connection closes, a frame fails to
// parse as an envelope, or an envelope carries an unrecognized type, any of
// which terminates the session (spec.md §4.10). A recognized event whose
// payload fails to decode is logged and the loop goes on reading.
func (s *Session) dispatchLoop(ctx context.Context) {
	for {
		payload, closed, err := s.conn.ReadMessage()
		if closed || err != nil {
			return
		}

		var env Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			s.deps.Logger.Info().Err(err).Msg("chat: malformed client frame, terminating session")
			return
		}

		switch env.Type {
		case "clientMessages":
			if err := s.handleClientMessages(ctx, env.Payload); err != nil {
				s.deps.Logger.Warn().Err(err).Msg("chat: clientMessages handling failed")
			}
		case "requestRoomHistory":
			if err := s.handleRequestRoomHistory(ctx, env.Payload); err != nil {
				s.deps.Logger.Warn().Err(err).Msg("chat: requestRoomHistory handling failed")
			}
		default:
			s.deps.Logger.Info().Str("type", env.Type).Msg("chat: unrecognized client event type, terminating session")
			return
		}
	}
}

func (s *Session) handleClientMessages(ctx context.Context, raw json.RawMessage) error {
	var in clientMessagesPayload
	if err := json.Unmarshal(raw, &in); err != nil {
		return apperr.Of(apperr.KindParseError, err)
	}

	now := time.Now().UTC()
	// Each message in the batch is appended individually so every one gets
	// its own store-assigned id, then the whole batch is published as a
	// single serverMessages frame (spec.md §4.10).
	appended := make([]model.Message, 0, len(in.Messages))
	for _, one := range in.Messages {
		m := model.Message{Content: one.Content, Timestamp: now, UserID: s.user.ID}
		result, err := s.deps.Appender.AppendToStreams(ctx, map[string]model.Message{in.RoomID: m})
		if err != nil {
			return err
		}
		appended = append(appended, result[in.RoomID])
	}

	usernames := model.UsernameMap{s.user.ID: s.user.Username}
	payload := serverMessagesPayload{
		RoomID:   in.RoomID,
		Messages: toWireMessages(appended, usernames),
	}
	frame, err := encodeEnvelope("serverMessages", payload)
	if err != nil {
		return err
	}
	s.deps.Bus.Publish(in.RoomID, frame)
	return nil
}

func (s *Session) handleRequestRoomHistory(ctx context.Context, raw json.RawMessage) error {
	var in requestRoomHistoryPayload
	if err := json.Unmarshal(raw, &in); err != nil {
		return apperr.Of(apperr.KindParseError, err)
	}

	batch, usernames, err := s.deps.History.FetchOne(ctx, in.RoomID, in.FirstMessageID)
	if err != nil {
		return err
	}

	payload := roomHistoryPayload{
		RoomID:          in.RoomID,
		Messages:        toWireMessages(batch.Messages, usernames),
		HasMoreMessages: batch.HasMore,
	}
	frame, err := encodeEnvelope("roomHistory", payload)
	if err != nil {
		return err
	}
	return s.conn.WriteLocked(ctx, frame)
}

// OnMessage implements pubsub.Subscriber: forward the pre-serialized
// payload straight to the websocket. Write failures are logged only — the
// dispatch loop's next read observes the closed connection and tears down
// (spec.md §4.10).
func (s *Session) OnMessage(topicID string, payload []byte) {
	if err := s.conn.WriteLocked(context.Background(), payload); err != nil {
		s.deps.Logger.Debug().Err(err).Str("room_id", topicID).Msg("chat: broadcast write failed")
	}
}
