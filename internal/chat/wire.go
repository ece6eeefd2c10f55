package chat

import (
	"encoding/json"

	"github.com/anarthal/servertech-chat-sub000/internal/model"
)

// Envelope is the outer shape of every websocket frame (spec.md §6):
// {"type": <string>, "payload": <object>}.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// --- client -> server ---

type clientMessagesPayload struct {
	RoomID   string             `json:"roomId"`
	Messages []clientMessageIn  `json:"messages"`
}

type clientMessageIn struct {
	Content string `json:"content"`
}

type requestRoomHistoryPayload struct {
	RoomID        string `json:"roomId"`
	FirstMessageID string `json:"firstMessageId"`
}

// --- server -> client ---

// wireUser is the {id, username} shape embedded in SMsg and hello.me.
type wireUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// wireMessage is SMsg from spec.md §6.
type wireMessage struct {
	ID        string   `json:"id"`
	Content   string   `json:"content"`
	User      wireUser `json:"user"`
	Timestamp int64    `json:"timestamp"`
}

func toWireMessage(m model.Message, usernames model.UsernameMap) wireMessage {
	return wireMessage{
		ID:      m.ID,
		Content: m.Content,
		User: wireUser{
			ID:       m.UserID,
			Username: usernames.Lookup(m.UserID),
		},
		Timestamp: m.Timestamp.UnixMilli(),
	}
}

func toWireMessages(msgs []model.Message, usernames model.UsernameMap) []wireMessage {
	out := make([]wireMessage, len(msgs))
	for i, m := range msgs {
		out[i] = toWireMessage(m, usernames)
	}
	return out
}

type helloRoom struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Messages        []wireMessage `json:"messages"`
	HasMoreMessages bool          `json:"hasMoreMessages"`
}

type helloPayload struct {
	Me    wireUser    `json:"me"`
	Rooms []helloRoom `json:"rooms"`
}

type serverMessagesPayload struct {
	RoomID   string        `json:"roomId"`
	Messages []wireMessage `json:"messages"`
}

type roomHistoryPayload struct {
	RoomID          string        `json:"roomId"`
	Messages        []wireMessage `json:"messages"`
	HasMoreMessages bool          `json:"hasMoreMessages"`
}

func encodeEnvelope(typ string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: typ, Payload: body})
}
