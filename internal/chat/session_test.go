package chat

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"testing"

	"github.com/gobwas/ws/wsutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/anarthal/servertech-chat-sub000/internal/model"
	"github.com/anarthal/servertech-chat-sub000/internal/pubsub"
	"github.com/anarthal/servertech-chat-sub000/internal/wsframe"
)

type fakeAuth struct {
	user model.User
	err  error
}

func (f *fakeAuth) UserFromRequest(context.Context, http.Header) (model.User, error) {
	return f.user, f.err
}

type fakeAppender struct {
	nextID int
}

func (f *fakeAppender) AppendToStreams(_ context.Context, byRoom map[string]model.Message) (map[string]model.Message, error) {
	out := make(map[string]model.Message, len(byRoom))
	for room, m := range byRoom {
		f.nextID++
		m.ID = string(rune('0' + f.nextID))
		out[room] = m
	}
	return out, nil
}

type fakeHistory struct{}

func (fakeHistory) Fetch(context.Context, []string) (map[string]model.MessageBatch, model.UsernameMap, error) {
	return map[string]model.MessageBatch{}, model.UsernameMap{}, nil
}

func (fakeHistory) FetchOne(context.Context, string, string) (model.MessageBatch, model.UsernameMap, error) {
	return model.MessageBatch{}, model.UsernameMap{}, nil
}

func TestBuildHelloIncludesFixedRoomRoster(t *testing.T) {
	user := model.User{ID: 1, Username: "alice"}
	frame, err := buildHello(user, model.UsernameMap{}, map[string]model.MessageBatch{})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(frame, &env))
	require.Equal(t, "hello", env.Type)

	var payload helloPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	require.Len(t, payload.Rooms, len(model.Rooms))
	require.Equal(t, "alice", payload.Me.Username)

	gotIDs := make([]string, len(payload.Rooms))
	for i, r := range payload.Rooms {
		gotIDs[i] = r.ID
	}
	require.Equal(t, model.RoomIDs(), gotIDs)
}

func TestSessionEmitsHelloFirstThenDispatches(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	bus := pubsub.New(zerolog.Nop(), 16)
	defer bus.Close()

	deps := Deps{
		Auth:     &fakeAuth{user: model.User{ID: 7, Username: "bob"}},
		Appender: &fakeAppender{},
		History:  fakeHistory{},
		Bus:      bus,
		Logger:   zerolog.Nop(),
	}

	s := &Session{deps: deps, user: deps.Auth.(*fakeAuth).user, conn: wsframe.New(serverConn)}

	done := make(chan struct{})
	go func() {
		s.runAuthenticated(context.Background())
		close(done)
	}()

	msg, _, err := wsutil.ReadServerData(clientConn)
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(msg, &env))
	require.Equal(t, "hello", env.Type)

	clientConn.Close()
	<-done
}
