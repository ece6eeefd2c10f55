package kv

import (
	"encoding/json"
	"time"

	"github.com/anarthal/servertech-chat-sub000/internal/model"
)

// streamPayload is the JSON value stored under the stream entry's sole
// "payload" field (spec.md §6: "KV store payload"). It carries no id — the
// KV store assigns that as the stream entry id.
type streamPayload struct {
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
	UserID    int64  `json:"user_id"`
}

func encodePayload(m model.Message) ([]byte, error) {
	return json.Marshal(streamPayload{
		Content:   m.Content,
		Timestamp: m.Timestamp.UnixMilli(),
		UserID:    m.UserID,
	})
}

func decodePayload(id string, raw []byte) (model.Message, error) {
	var p streamPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return model.Message{}, err
	}
	return model.Message{
		ID:        id,
		Content:   p.Content,
		Timestamp: time.UnixMilli(p.Timestamp).UTC(),
		UserID:    p.UserID,
	}, nil
}
