package dbpool

import (
	"context"
	"database/sql"

	_ "github.com/go-sql-driver/mysql"
)

// mysqlRawConn wraps a single pinned *sql.Conn. Reset runs a lightweight
// statement that terminates any open transaction without the cost of a full
// reconnect; session variables and temp tables are left as they are.
type mysqlRawConn struct {
	conn *sql.Conn
}

func (c *mysqlRawConn) Ping(ctx context.Context) error {
	return c.conn.PingContext(ctx)
}

func (c *mysqlRawConn) Reset(ctx context.Context) error {
	// ROLLBACK is a no-op outside a transaction and otherwise discards any
	// transaction the previous caller left open; it does not touch session
	// variables or temp tables, but catches the common case cheaply.
	_, err := c.conn.ExecContext(ctx, "ROLLBACK")
	return err
}

func (c *mysqlRawConn) Close() error {
	return c.conn.Close()
}

func (c *mysqlRawConn) Underlying() any {
	return c.conn
}

// MySQLConnector dials new connections against a shared *sql.DB used purely
// as a dialer — MaxOpenConns is set to the pool's max_size so database/sql
// never itself throttles below the FSM's own admission control, and every
// RawConn pins one *sql.Conn for its entire PendingConnect..PendingClose
// lifetime rather than returning it to database/sql's pool between uses.
type MySQLConnector struct {
	db *sql.DB
}

// NewMySQLConnector opens (lazily — database/sql dials on first use) a
// dialer against dsn, sized for up to maxSize concurrent raw connections.
func NewMySQLConnector(dsn string, maxSize int) (*MySQLConnector, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(maxSize)
	db.SetMaxIdleConns(maxSize)
	return &MySQLConnector{db: db}, nil
}

func (c *MySQLConnector) Connect(ctx context.Context) (RawConn, error) {
	conn, err := c.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return &mysqlRawConn{conn: conn}, nil
}

// Close shuts down the underlying dialer. Call only after every pool node
// has already transitioned out of service.
func (c *MySQLConnector) Close() error {
	return c.db.Close()
}
