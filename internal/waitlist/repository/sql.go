package repository

import (
	"context"
	"fmt"

	"synq/backend/internal/db"
	"synq/backend/internal/waitlist/domain"
)

// SQLRepository implements Repository on Postgres or SQLite.
type SQLRepository struct {
	db      db.DBTX
	dialect db.Dialect
}

// NewPostgresRepository returns a waitlist repository backed by Postgres.
func NewPostgresRepository(conn db.DBTX) *SQLRepository {
	return &SQLRepository{db: conn, dialect: db.Postgres}
}

// NewSQLiteRepository returns a waitlist repository backed by SQLite.
func NewSQLiteRepository(conn db.DBTX) *SQLRepository {
	return &SQLRepository{db: conn, dialect: db.SQLite}
}

func (r *SQLRepository) Add(ctx context.Context, e *domain.Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(
		`INSERT INTO waitlist (id, email, created_at) VALUES (?, ?, ?)`),
		e.ID, e.Email, r.dialect.Time(e.CreatedAt))
	if err != nil {
		if r.dialect.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) List(ctx context.Context, limit int) ([]*domain.Entry, error) {
	query := `SELECT id, email, created_at FROM waitlist ORDER BY created_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*domain.Entry
	for rows.Next() {
		var (
			e         domain.Entry
			createdAt db.NullTime
		)
		if err := rows.Scan(&e.ID, &e.Email, &createdAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		e.CreatedAt = createdAt.Time
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
