// Package model holds the data types shared by the room-history, KV, and
// chat-session layers (spec.md §3).
package model

import "time"

// User is the stable identity record (spec.md §3). It never carries a
// password; AuthUser is loaded separately so credential material does not
// leak into general request flows.
type User struct {
	ID       int64
	Username string
}

// AuthUser is the login-only view of a user, including the PHC hash string.
type AuthUser struct {
	ID             int64
	HashedPassword string
}

// Message is one chat message. ID is empty until the KV store assigns one
// on append; Timestamp is set by the server at ingest time, UTC millisecond
// precision.
type Message struct {
	ID        string
	Content   string
	Timestamp time.Time
	UserID    int64
}

// MessageBatch is an ordered, newest-first page of messages plus whether an
// older page exists.
type MessageBatch struct {
	Messages []Message
	HasMore  bool
}

// Room is one of the fixed, compile-time broadcast channels.
type Room struct {
	ID   string
	Name string
}

// UsernameMap resolves a user_id to its username; a missing key means the
// serializer should emit an empty username rather than fail the response.
type UsernameMap map[int64]string

// Lookup returns the username for id, or "" if unknown.
func (m UsernameMap) Lookup(id int64) string {
	return m[id]
}

// Rooms is the fixed room roster for this version of the server
// (spec.md §3, GLOSSARY). Order matters: it is the order rooms are
// subscribed to and emitted in the hello frame.
var Rooms = []Room{
	{ID: "beast", Name: "Boost.Beast"},
	{ID: "async", Name: "Boost.Async"},
	{ID: "db", Name: "Boost.MySQL"},
	{ID: "wasm", Name: "WebAssembly"},
}

// RoomIDs returns the fixed room id list, in roster order.
func RoomIDs() []string {
	ids := make([]string, len(Rooms))
	for i, r := range Rooms {
		ids[i] = r.ID
	}
	return ids
}

// ReverseRangePageSize is the fixed KV reverse-range page size (spec.md §4.4,
// §5).
const ReverseRangePageSize = 100
