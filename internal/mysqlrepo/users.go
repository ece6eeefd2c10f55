// Package mysqlrepo implements the relational repository for the users
// table (spec.md §6 persisted-state layout: users(id, username, email,
// password)), built on internal/dbpool rather than database/sql's own
// pool so every query runs against a connection the pool's FSM already
// vetted.
package mysqlrepo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/anarthal/servertech-chat-sub000/internal/apperr"
	"github.com/anarthal/servertech-chat-sub000/internal/dbpool"
	"github.com/anarthal/servertech-chat-sub000/internal/model"
)

// mysqlDuplicateEntryErrno is MySQL's error number for a unique-constraint
// violation (ER_DUP_ENTRY).
const mysqlDuplicateEntryErrno = 1062

// Repo queries and mutates the users table through a dbpool.Pool.
type Repo struct {
	pool *dbpool.Pool
}

func New(pool *dbpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) withConn(ctx context.Context, f func(*sql.Conn) error) error {
	conn, err := r.pool.Get(ctx)
	if err != nil {
		return err
	}
	shouldReset := false
	defer func() { conn.Release(shouldReset) }()

	sqlConn, ok := conn.Raw().(*sql.Conn)
	if !ok {
		return apperr.Of(apperr.KindUnknown, errors.New("mysqlrepo: unexpected connection type"))
	}
	err = f(sqlConn)
	if err != nil {
		shouldReset = true
	}
	return err
}

// UserByID loads a user's stable identity record.
func (r *Repo) UserByID(ctx context.Context, id int64) (model.User, error) {
	var u model.User
	err := r.withConn(ctx, func(conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx, "SELECT id, username FROM users WHERE id = ?", id)
		if err := row.Scan(&u.ID, &u.Username); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.Of(apperr.KindNotFound, err)
			}
			return apperr.Of(apperr.KindUnknown, err)
		}
		return nil
	})
	if err != nil {
		return model.User{}, err
	}
	return u, nil
}

// UsernamesByID batches a single SELECT ... WHERE id IN (…) over ids,
// skipping the query entirely when ids is empty (spec.md §4.9 step 3).
func (r *Repo) UsernamesByID(ctx context.Context, ids []int64) (model.UsernameMap, error) {
	out := make(model.UsernameMap, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := "SELECT id, username FROM users WHERE id IN (" + strings.Join(placeholders, ",") + ")"

	err := r.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, query, args...)
		if err != nil {
			return apperr.Of(apperr.KindUnknown, err)
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			var username string
			if err := rows.Scan(&id, &username); err != nil {
				return apperr.Of(apperr.KindUnknown, err)
			}
			out[id] = username
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AuthUserByEmail loads the login-only credential view of a user.
func (r *Repo) AuthUserByEmail(ctx context.Context, email string) (model.AuthUser, error) {
	var au model.AuthUser
	err := r.withConn(ctx, func(conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx, "SELECT id, password FROM users WHERE email = ?", email)
		if err := row.Scan(&au.ID, &au.HashedPassword); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.Of(apperr.KindNotFound, err)
			}
			return apperr.Of(apperr.KindUnknown, err)
		}
		return nil
	})
	if err != nil {
		return model.AuthUser{}, err
	}
	return au, nil
}

// InsertUser creates a new user row, classifying duplicate-key failures by
// which unique constraint fired (spec.md §6).
func (r *Repo) InsertUser(ctx context.Context, username, email, hashedPassword string) (int64, error) {
	var id int64
	err := r.withConn(ctx, func(conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx,
			"INSERT INTO users (username, email, password) VALUES (?, ?, ?)",
			username, email, hashedPassword)
		if err != nil {
			return classifyInsertErr(err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return apperr.Of(apperr.KindUnknown, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func classifyInsertErr(err error) error {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntryErrno {
		switch {
		case strings.Contains(mysqlErr.Message, "username"):
			return apperr.Of(apperr.KindUsernameExists, err)
		case strings.Contains(mysqlErr.Message, "email"):
			return apperr.Of(apperr.KindEmailExists, err)
		}
	}
	return apperr.Of(apperr.KindUnknown, err)
}
