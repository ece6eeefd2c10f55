// Package wsframe wraps a single websocket connection's frame I/O (C8):
// one read at a time (the chat session FSM only ever has one outstanding
// Read call), writes serialized through an asyncutil.Mutex so concurrent
// callers (the session's own dispatch loop, and pub/sub deliveries arriving
// from other goroutines) never interleave frame bytes on the wire.
package wsframe

import (
	"context"
	"net"
	"net/http"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/anarthal/servertech-chat-sub000/internal/apperr"
	"github.com/anarthal/servertech-chat-sub000/internal/asyncutil"
)

// Conn wraps one upgraded websocket connection.
type Conn struct {
	raw       net.Conn
	writeLock *asyncutil.Mutex
}

// Accept upgrades an incoming HTTP request to a websocket connection.
func Accept(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	raw, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		return nil, apperr.Of(apperr.KindBadRequest, err)
	}
	return New(raw), nil
}

// New wraps an already-upgraded net.Conn. Exposed mainly so tests can drive
// the frame layer over an in-memory net.Pipe without a real HTTP upgrade.
func New(raw net.Conn) *Conn {
	return &Conn{raw: raw, writeLock: asyncutil.New()}
}

// ReadMessage blocks for the next text or binary client frame. Control
// frames (ping/close) are handled by wsutil and do not return here except
// OpClose, which is surfaced as io.EOF-equivalent via a nil, nil return with
// closed=true.
func (c *Conn) ReadMessage() (payload []byte, closed bool, err error) {
	msg, op, err := wsutil.ReadClientData(c.raw)
	if err != nil {
		return nil, true, err
	}
	if op == ws.OpClose {
		return nil, true, nil
	}
	return msg, false, nil
}

// WriteLocked acquires the write lock and writes one text frame, per
// spec.md §9's "write-lock-first" discipline: callers that need to emit
// more than one frame atomically (e.g. hello then history) should hold the
// guard across all of them instead of calling WriteLocked per frame.
func (c *Conn) WriteLocked(ctx context.Context, payload []byte) error {
	guard, err := c.writeLock.LockGuard(ctx)
	if err != nil {
		return apperr.Of(apperr.KindCancelled, err)
	}
	defer guard.Release()
	return c.writeUnlocked(payload)
}

// LockForWrite acquires the write lock for a caller that will issue several
// frames under one critical section (e.g. hello + initial room history).
// Frames go out through the returned write function; other WriteLocked and
// LockForWrite callers block until release is called.
func (c *Conn) LockForWrite(ctx context.Context) (write func([]byte) error, release func(), err error) {
	guard, err := c.writeLock.LockGuard(ctx)
	if err != nil {
		return nil, nil, apperr.Of(apperr.KindCancelled, err)
	}
	return c.writeUnlocked, guard.Release, nil
}

func (c *Conn) writeUnlocked(payload []byte) error {
	if err := wsutil.WriteServerMessage(c.raw, ws.OpText, payload); err != nil {
		return apperr.Of(apperr.KindUnknown, err)
	}
	return nil
}

// Close sends a close frame with code and closes the underlying connection.
func (c *Conn) Close(code ws.StatusCode, reason string) error {
	_ = wsutil.WriteServerMessage(c.raw, ws.OpClose, ws.NewCloseFrameBody(code, reason))
	return c.raw.Close()
}
