package dbpool

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// state names a connection node's position in the per-connection FSM
// (spec.md §4.3).
type state int

const (
	statePendingConnect state = iota
	stateIddle
	stateInUse
	statePendingReset
	statePendingPing
	statePendingClose
)

func (s state) String() string {
	switch s {
	case statePendingConnect:
		return "pending_connect"
	case stateIddle:
		return "iddle"
	case stateInUse:
		return "in_use"
	case statePendingReset:
		return "pending_reset"
	case statePendingPing:
		return "pending_ping"
	case statePendingClose:
		return "pending_close"
	default:
		return "unknown"
	}
}

// releaseMsg is what a caller's Conn.Release sends the node when done.
type releaseMsg struct {
	shouldReset bool
}

// node runs one connection's independent state machine goroutine. The pool
// talks to it only through channels: assign hands it to a caller, release
// takes it back, and idle announces readiness to the pool's idle queue.
type node struct {
	pool    *Pool
	raw     RawConn
	assign  chan struct{}
	release chan releaseMsg
	logger  zerolog.Logger
}

func newNode(pool *Pool) *node {
	return &node{
		pool:    pool,
		assign:  make(chan struct{}, 1),
		release: make(chan releaseMsg),
		logger:  pool.logger.With().Logger(),
	}
}

// run is the node's goroutine: it loops through PendingConnect, Iddle,
// InUse, PendingReset/PendingPing and PendingClose until ctx (the pool's
// shutdown context) is cancelled.
func (n *node) run(ctx context.Context) {
	st := statePendingConnect
	for {
		var next state
		select {
		case <-ctx.Done():
			if n.raw != nil {
				n.raw.Close()
			}
			return
		default:
		}

		switch st {
		case statePendingConnect:
			next = n.doConnect(ctx)
		case stateIddle:
			next = n.doIddle(ctx)
		case stateInUse:
			next = n.doInUse(ctx)
		case statePendingReset:
			next = n.doTimed(ctx, n.pool.cfg.ResetTimeout, n.raw.Reset, stateIddle)
		case statePendingPing:
			next = n.doTimed(ctx, n.pool.cfg.PingTimeout, n.raw.Ping, stateIddle)
		case statePendingClose:
			next = n.doClose(ctx)
		}

		if ctx.Err() != nil {
			if n.raw != nil {
				n.raw.Close()
			}
			return
		}
		st = next
	}
}

func (n *node) doConnect(ctx context.Context) state {
	cctx, cancel := context.WithTimeout(ctx, n.pool.cfg.ConnectTimeout)
	defer cancel()
	raw, err := n.pool.connector.Connect(cctx)
	if err != nil {
		n.logger.Warn().Err(err).Msg("dbpool: connect failed, will retry")
		return statePendingClose
	}
	n.raw = raw
	return n.pool.announceIdle(n)
}

// doIddle waits for either an assignment from the pool, the health-check
// timer, or shutdown.
func (n *node) doIddle(ctx context.Context) state {
	timer := time.NewTimer(n.pool.cfg.HealthCheckInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return statePendingClose
	case <-n.assign:
		return stateInUse
	case <-timer.C:
		return statePendingPing
	}
}

func (n *node) doInUse(ctx context.Context) state {
	select {
	case <-ctx.Done():
		return statePendingClose
	case msg := <-n.release:
		if msg.shouldReset {
			return statePendingReset
		}
		return n.pool.announceIdle(n)
	}
}

// doTimed runs op with a bounded timeout, transitioning to onSuccess or
// PendingClose.
func (n *node) doTimed(ctx context.Context, timeout time.Duration, op func(context.Context) error, onSuccess state) state {
	octx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := op(octx); err != nil {
		n.logger.Warn().Err(err).Msg("dbpool: node operation failed")
		return statePendingClose
	}
	if onSuccess == stateIddle {
		return n.pool.announceIdle(n)
	}
	return onSuccess
}

func (n *node) doClose(ctx context.Context) state {
	if n.raw != nil {
		n.raw.Close()
		n.raw = nil
	}
	select {
	case <-ctx.Done():
		return statePendingClose
	case <-time.After(n.pool.cfg.RetryBackoff):
	}
	return statePendingConnect
}
