package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DBTX is the subset of database/sql used by repositories.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Dialect adapts the shared repository SQL (written with ? placeholders) to a driver.
type Dialect struct {
	name string
}

var (
	// Postgres stores timestamps as TIMESTAMPTZ and uses $N placeholders.
	Postgres = Dialect{name: "postgres"}
	// SQLite stores timestamps as unix milliseconds and uses ? placeholders.
	SQLite = Dialect{name: "sqlite"}
)

// Name returns the dialect name.
func (d Dialect) Name() string { return d.name }

// Rebind rewrites ? placeholders for the dialect. Queries must not contain literal question marks.
func (d Dialect) Rebind(query string) string {
	if d.name != Postgres.name {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Time converts t to the stored representation.
func (d Dialect) Time(t time.Time) any {
	if d.name == SQLite.name {
		return t.UTC().UnixMilli()
	}
	return t.UTC()
}

// NullableTime is Time for optional values; nil maps to NULL.
func (d Dialect) NullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return d.Time(*t)
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func (d Dialect) IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}

// NullTime scans TIMESTAMPTZ values and unix-millisecond integers alike.
type NullTime struct {
	Time  time.Time
	Valid bool
}

// Scan implements sql.Scanner.
func (n *NullTime) Scan(v any) error {
	switch t := v.(type) {
	case nil:
		n.Time, n.Valid = time.Time{}, false
	case time.Time:
		n.Time, n.Valid = t.UTC(), true
	case int64:
		n.Time, n.Valid = time.UnixMilli(t).UTC(), true
	default:
		return fmt.Errorf("db: unsupported time value %T", v)
	}
	return nil
}

// Ptr returns a pointer to the time, or nil when not valid.
func (n NullTime) Ptr() *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}
