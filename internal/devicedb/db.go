// Package devicedb reads the device call log and message log databases.
// The databases belong to the device and are only ever opened read-only.
package devicedb

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rpggio/feedsync/internal/devicelog"
)

// DB is a read-only handle on one device content database.
type DB struct {
	*sql.DB
	path string
}

// Open opens the database at path read-only.
func Open(path string) (*DB, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving device db path: %w", err)
	}
	dsn := "file:" + (&url.URL{Path: abs}).EscapedPath() + "?mode=ro&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open device db %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open device db %s: %w", path, err)
	}
	return &DB{DB: db, path: abs}, nil
}

// Path returns the absolute path of the database file.
func (db *DB) Path() string {
	return db.path
}

// position is the key-set position of the last row returned.
type position struct {
	date int64
	id   int64
	set  bool
}

// pageQuery builds a newest-first key-set page query. dateExpr must yield milliseconds.
func pageQuery(selectFrom, dateExpr string, q devicelog.Query, pos position, limit int) (string, []any) {
	var conds []string
	var args []any
	if q.Bound != 0 {
		if q.Refresh {
			conds = append(conds, dateExpr+" > ?")
		} else {
			conds = append(conds, dateExpr+" < ?")
		}
		args = append(args, q.Bound)
	}
	if pos.set {
		conds = append(conds, "("+dateExpr+" < ? OR ("+dateExpr+" = ? AND _id < ?))")
		args = append(args, pos.date, pos.date, pos.id)
	}
	query := selectFrom
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY " + dateExpr + " DESC, _id DESC LIMIT ?"
	args = append(args, limit)
	return query, args
}

// cursor pages through a table by key set, so no rows handle is held
// between pages.
type cursor[T devicelog.Event] struct {
	q    devicelog.Query
	pos  position
	done bool
	id   func(T) int64
	page func(ctx context.Context, pos position, limit int) ([]T, error)
}

func (c *cursor[T]) Next(ctx context.Context) ([]T, error) {
	if c.done {
		return nil, nil
	}
	limit := c.q.PageSize
	if limit <= 0 {
		limit = 1
	}
	rows, err := c.page(ctx, c.pos, limit)
	if err != nil {
		return nil, err
	}
	if len(rows) < limit {
		c.done = true
	}
	if len(rows) > 0 {
		last := rows[len(rows)-1]
		c.pos = position{date: last.Millis(), id: c.id(last), set: true}
	}
	return rows, nil
}

func (c *cursor[T]) Close() error {
	c.done = true
	return nil
}
