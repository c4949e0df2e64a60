package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"horse.fit/parrot/internal/auth"
)

// ErrDuplicateEmail reports a registration attempt with an email that is already taken.
var ErrDuplicateEmail = errors.New("email is already registered")

type AuthUser struct {
	UserID       int64      `json:"user_id"`
	UserUUID     string     `json:"user_uuid"`
	Email        string     `json:"email"`
	FullName     string     `json:"full_name"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

type AuthSession struct {
	SessionID  string    `json:"session_id"`
	UserID     int64     `json:"user_id"`
	Email      string    `json:"email"`
	FullName   string    `json:"full_name"`
	ExpiresAt  time.Time `json:"expires_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

func (p *Pool) CountUsers(ctx context.Context) (int64, error) {
	const q = `SELECT COUNT(*) FROM parrot.users`

	var count int64
	if err := p.QueryRow(ctx, q).Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

func (p *Pool) CreateUser(ctx context.Context, email, fullName, passwordHash string) (*AuthUser, error) {
	const q = `
INSERT INTO parrot.users (
	email,
	full_name,
	password_hash,
	created_at
)
VALUES ($1, $2, $3, now())
ON CONFLICT (email) DO NOTHING
RETURNING
	user_id,
	user_uuid::text,
	email,
	full_name,
	password_hash,
	created_at,
	last_login_at
`

	var row AuthUser
	if err := p.QueryRow(ctx, q, auth.NormalizeEmail(email), strings.TrimSpace(fullName), strings.TrimSpace(passwordHash)).Scan(
		&row.UserID,
		&row.UserUUID,
		&row.Email,
		&row.FullName,
		&row.PasswordHash,
		&row.CreatedAt,
		&row.LastLoginAt,
	); err != nil {
		if IsNoRows(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return &row, nil
}

func (p *Pool) GetUserByEmail(ctx context.Context, email string) (*AuthUser, error) {
	const q = `
SELECT
	user_id,
	user_uuid::text,
	email,
	full_name,
	password_hash,
	created_at,
	last_login_at
FROM parrot.users
WHERE email = $1
LIMIT 1
`

	var row AuthUser
	if err := p.QueryRow(ctx, q, auth.NormalizeEmail(email)).Scan(
		&row.UserID,
		&row.UserUUID,
		&row.Email,
		&row.FullName,
		&row.PasswordHash,
		&row.CreatedAt,
		&row.LastLoginAt,
	); err != nil {
		if IsNoRows(err) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("query user by email: %w", err)
	}
	return &row, nil
}

func (p *Pool) GetUserByID(ctx context.Context, userID int64) (*AuthUser, error) {
	const q = `
SELECT
	user_id,
	user_uuid::text,
	email,
	full_name,
	password_hash,
	created_at,
	last_login_at
FROM parrot.users
WHERE user_id = $1
LIMIT 1
`

	var row AuthUser
	if err := p.QueryRow(ctx, q, userID).Scan(
		&row.UserID,
		&row.UserUUID,
		&row.Email,
		&row.FullName,
		&row.PasswordHash,
		&row.CreatedAt,
		&row.LastLoginAt,
	); err != nil {
		if IsNoRows(err) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("query user by id: %w", err)
	}
	return &row, nil
}

func (p *Pool) SetUserLastLogin(ctx context.Context, userID int64, loginAt time.Time) error {
	const q = `
UPDATE parrot.users
SET last_login_at = $2
WHERE user_id = $1
`

	tag, err := p.Exec(ctx, q, userID, loginAt.UTC())
	if err != nil {
		return fmt.Errorf("update user last login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}
	return nil
}

func (p *Pool) CreateSession(ctx context.Context, userID int64, expiresAt, now time.Time) (string, error) {
	const q = `
INSERT INTO parrot.sessions (
	user_id,
	expires_at,
	created_at,
	last_seen_at
)
VALUES ($1, $2, $3, $3)
RETURNING session_id::text
`

	var sessionID string
	if err := p.QueryRow(ctx, q, userID, expiresAt.UTC(), now.UTC()).Scan(&sessionID); err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return sessionID, nil
}

func (p *Pool) GetSession(ctx context.Context, sessionID string) (*AuthSession, error) {
	const q = `
SELECT
	s.session_id::text,
	s.user_id,
	u.email,
	u.full_name,
	s.expires_at,
	s.last_seen_at
FROM parrot.sessions s
JOIN parrot.users u
	ON u.user_id = s.user_id
WHERE s.session_id = $1::uuid
LIMIT 1
`

	var row AuthSession
	if err := p.QueryRow(ctx, q, strings.TrimSpace(sessionID)).Scan(
		&row.SessionID,
		&row.UserID,
		&row.Email,
		&row.FullName,
		&row.ExpiresAt,
		&row.LastSeenAt,
	); err != nil {
		if IsNoRows(err) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("query session: %w", err)
	}
	return &row, nil
}

func (p *Pool) TouchSession(ctx context.Context, sessionID string, seenAt time.Time) error {
	const q = `
UPDATE parrot.sessions
SET last_seen_at = $2
WHERE session_id = $1::uuid
`

	tag, err := p.Exec(ctx, q, strings.TrimSpace(sessionID), seenAt.UTC())
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}
	return nil
}

func (p *Pool) DeleteSession(ctx context.Context, sessionID string) error {
	const q = `
DELETE FROM parrot.sessions
WHERE session_id = $1::uuid
`

	if _, err := p.Exec(ctx, q, strings.TrimSpace(sessionID)); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (p *Pool) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	const q = `
DELETE FROM parrot.sessions
WHERE expires_at <= $1
`

	tag, err := p.Exec(ctx, q, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
