package dbpool

import "context"

// RawConn is the narrow surface the pool's per-node state machine needs
// from a physical connection: connect happens via Connector, everything
// after that is ping/reset/close (spec.md §4.3).
type RawConn interface {
	// Ping validates the connection is still usable, without altering
	// server-side state.
	Ping(ctx context.Context) error
	// Reset clears server-side session state (variables, temp tables, open
	// transactions) so the connection is safe to hand to a new caller.
	Reset(ctx context.Context) error
	// Close releases the underlying network connection.
	Close() error
	// Underlying returns the driver-specific handle (e.g. *sql.Conn) for
	// issuing queries. Callers type-assert to the concrete type they need.
	Underlying() any
}

// Connector dials one new RawConn. Implementations should treat ctx's
// deadline as the connect timeout; the pool itself additionally bounds the
// call with ConnectTimeout.
type Connector interface {
	Connect(ctx context.Context) (RawConn, error)
}

// Conn is the handle a caller receives from Pool.Get. Release must be
// called exactly once to return the node to the pool.
type Conn struct {
	node *node
	pool *Pool
}

// Raw exposes the underlying driver connection for issuing queries.
func (c *Conn) Raw() any {
	return c.node.raw.Underlying()
}

// Release returns the connection to the pool. shouldReset should be true
// whenever the caller's use of the connection may have left server-side
// state behind (a transaction, a temp table, a session variable) —
// spec.md §4.3 routes those through PendingReset before the node is
// reused.
func (c *Conn) Release(shouldReset bool) {
	c.pool.release(c.node, shouldReset)
}
