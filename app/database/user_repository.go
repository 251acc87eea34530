package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lysyi3m/content-hub/app/auth"
)

var (
	_ auth.UserRepository    = (*UserRepo)(nil)
	_ auth.SessionRepository = (*SessionRepo)(nil)
)

// UserRepo handles database operations for users
type UserRepo struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) CreateUser(ctx context.Context, user auth.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, is_admin, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, user.ID, user.Email, user.PasswordHash, user.IsAdmin, user.CreatedAt.UTC())
	if err != nil {
		return wrapError("create user", err)
	}
	return nil
}

func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	return r.getUser(ctx, `SELECT id, email, password_hash, is_admin, created_at FROM users WHERE email = ?`, email)
}

func (r *UserRepo) GetUserByID(ctx context.Context, id string) (*auth.User, error) {
	return r.getUser(ctx, `SELECT id, email, password_hash, is_admin, created_at FROM users WHERE id = ?`, id)
}

func (r *UserRepo) getUser(ctx context.Context, query string, arg string) (*auth.User, error) {
	var user auth.User
	err := r.db.GetContext(ctx, &user, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *UserRepo) UpdateUserCredentials(ctx context.Context, id, passwordHash string, isAdmin bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash = ?, is_admin = ? WHERE id = ?`,
		passwordHash, isAdmin, id)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}

// IsAdmin reports whether the user exists and carries the admin flag
func (r *UserRepo) IsAdmin(ctx context.Context, id string) (bool, error) {
	var isAdmin bool
	err := r.db.GetContext(ctx, &isAdmin, `SELECT is_admin FROM users WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check admin status: %w", err)
	}
	return isAdmin, nil
}

// SessionRepo handles database operations for login sessions
type SessionRepo struct {
	db *DB
}

func NewSessionRepository(db *DB) *SessionRepo {
	return &SessionRepo{db: db}
}

func (r *SessionRepo) CreateSession(ctx context.Context, session auth.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, created_at, expires_at)
		VALUES (?, ?, ?, ?)
	`, session.ID, session.UserID, session.CreatedAt.UTC(), session.ExpiresAt.UTC())
	if err != nil {
		return wrapError("create session", err)
	}
	return nil
}

func (r *SessionRepo) GetSession(ctx context.Context, id string, now time.Time) (*auth.Session, error) {
	var session auth.Session
	err := r.db.GetContext(ctx, &session, `
		SELECT id, user_id, created_at, expires_at
		FROM sessions
		WHERE id = ? AND expires_at > ?
	`, id, now.UTC())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

func (r *SessionRepo) DeleteSession(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (r *SessionRepo) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}
