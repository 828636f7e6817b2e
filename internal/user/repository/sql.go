package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"synq/backend/internal/db"
	"synq/backend/internal/user/domain"
)

const userColumns = `id, email, name, challenge_hash, challenge_expires_at, challenge_consumed, created_at, updated_at, last_login_at, last_active_at`

// SQLRepository implements Repository on Postgres or SQLite.
type SQLRepository struct {
	db      db.DBTX
	dialect db.Dialect
}

// NewPostgresRepository returns a user repository backed by Postgres.
func NewPostgresRepository(conn db.DBTX) *SQLRepository {
	return &SQLRepository{db: conn, dialect: db.Postgres}
}

// NewSQLiteRepository returns a user repository backed by SQLite.
func NewSQLiteRepository(conn db.DBTX) *SQLRepository {
	return &SQLRepository{db: conn, dialect: db.SQLite}
}

// GetByID returns the user for id, or nil if not found.
func (r *SQLRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetByEmail returns the user with the given email, or nil if not found.
func (r *SQLRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

// FindByChallengeDigest returns the user holding a live challenge with digest, or nil.
func (r *SQLRepository) FindByChallengeDigest(ctx context.Context, digest string, now time.Time) (*domain.User, error) {
	return r.getOne(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE challenge_hash = ? AND challenge_consumed = ? AND challenge_expires_at > ?`,
		digest, false, r.dialect.Time(now))
}

// Create inserts the user together with its challenge.
func (r *SQLRepository) Create(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	var hash any
	var expiresAt any
	if u.Challenge.Hash != "" {
		hash = u.Challenge.Hash
		expiresAt = r.dialect.Time(u.Challenge.ExpiresAt)
	}
	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		u.ID, u.Email, u.Name, hash, expiresAt, u.Challenge.Consumed,
		r.dialect.Time(u.CreatedAt), r.dialect.Time(u.UpdatedAt),
		r.dialect.NullableTime(u.LastLoginAt), r.dialect.NullableTime(u.LastActiveAt))
	if err != nil {
		if r.dialect.IsUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// SetChallenge replaces the user's challenge and resets the consumed flag.
func (r *SQLRepository) SetChallenge(ctx context.Context, userID string, c domain.MagicLinkChallenge, now time.Time) error {
	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(
		`UPDATE users SET challenge_hash = ?, challenge_expires_at = ?, challenge_consumed = ?, updated_at = ?
		 WHERE id = ?`),
		c.Hash, r.dialect.Time(c.ExpiresAt), false, r.dialect.Time(now), userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ClearChallenge drops the challenge if it still carries digest; a newer challenge is left untouched.
func (r *SQLRepository) ClearChallenge(ctx context.Context, userID, digest string, now time.Time) error {
	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(
		`UPDATE users SET challenge_hash = NULL, challenge_expires_at = NULL, updated_at = ?
		 WHERE id = ? AND challenge_hash = ?`),
		r.dialect.Time(now), userID, digest)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ConsumeChallenge is a single conditional UPDATE; exactly one concurrent caller can see a row affected.
func (r *SQLRepository) ConsumeChallenge(ctx context.Context, userID, digest string, now time.Time) (bool, error) {
	ts := r.dialect.Time(now)
	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(
		`UPDATE users
		 SET challenge_consumed = ?, challenge_hash = NULL, last_login_at = ?, last_active_at = ?, updated_at = ?
		 WHERE id = ? AND challenge_hash = ? AND challenge_consumed = ? AND challenge_expires_at > ?`),
		true, ts, ts, ts, userID, digest, false, ts)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

// TouchLastActive sets last_active_at.
func (r *SQLRepository) TouchLastActive(ctx context.Context, userID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(`UPDATE users SET last_active_at = ? WHERE id = ?`),
		r.dialect.Time(at), userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) getOne(ctx context.Context, query string, args ...any) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, r.dialect.Rebind(query), args...)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var (
		u                               domain.User
		hash                            sql.NullString
		expiresAt, createdAt, updatedAt db.NullTime
		lastLoginAt, lastActiveAt       db.NullTime
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &hash, &expiresAt, &u.Challenge.Consumed,
		&createdAt, &updatedAt, &lastLoginAt, &lastActiveAt); err != nil {
		return nil, err
	}
	u.Challenge.Hash = hash.String
	u.Challenge.ExpiresAt = expiresAt.Time
	u.CreatedAt = createdAt.Time
	u.UpdatedAt = updatedAt.Time
	u.LastLoginAt = lastLoginAt.Ptr()
	u.LastActiveAt = lastActiveAt.Ptr()
	return &u, nil
}
