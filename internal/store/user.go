package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/mcqdb/internal/model"
)

const userColumns = `username, status, last_active, created_at, full_name, email, department, role, bio,
	total_sessions, total_time_seconds, questions_created`

func scanUser(r rowScanner) (model.User, error) {
	var u model.User
	var status string
	err := r.Scan(&u.Username, &status, &u.LastActive, &u.CreatedAt,
		&u.Profile.FullName, &u.Profile.Email, &u.Profile.Department, &u.Profile.Role, &u.Profile.Bio,
		&u.TotalSessions, &u.TotalTimeSeconds, &u.QuestionsCreated)
	u.Status = model.UserStatus(status)
	return u, err
}

// TouchUser marks a user online, creating the user on first login.
func (s *SQLite) TouchUser(ctx context.Context, username string, now time.Time) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, status, last_active, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(username) DO UPDATE SET status = excluded.status, last_active = excluded.last_active`,
		username, string(model.StatusOnline), now.UTC(), now.UTC(),
	)
	if err != nil {
		slog.Error("failed to touch user", "username", username, "error", err)
		return fmt.Errorf("touch user %s: %w", username, err)
	}
	slog.Debug("user online", "username", username)
	return nil
}

// Heartbeat refreshes the user's last activity time.
func (s *SQLite) Heartbeat(ctx context.Context, username string, now time.Time) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET last_active = ?, status = ? WHERE username = ?`,
		now.UTC(), string(model.StatusOnline), username)
	if err != nil {
		return fmt.Errorf("heartbeat %s: %w", username, err)
	}
	return expectOne(res)
}

// EndSession records a finished session, keeping the newest MaxSessionHistory entries.
func (s *SQLite) EndSession(ctx context.Context, username string, rec model.SessionRecord) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin end session: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE users SET status = ?, last_active = ?,
		 total_sessions = total_sessions + 1, total_time_seconds = total_time_seconds + ?
		 WHERE username = ?`,
		string(model.StatusOffline), rec.End.UTC(), rec.DurationSeconds, username)
	if err != nil {
		return fmt.Errorf("end session %s: %w", username, err)
	}
	if err := expectOne(res); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO user_sessions (id, username, started_at, ended_at, duration_seconds) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, username, rec.Start.UTC(), rec.End.UTC(), rec.DurationSeconds)
	if err != nil {
		return fmt.Errorf("log session %s: %w", username, err)
	}
	_, err = tx.ExecContext(ctx,
		`DELETE FROM user_sessions WHERE username = ? AND id NOT IN (
			SELECT id FROM user_sessions WHERE username = ? ORDER BY ended_at DESC, rowid DESC LIMIT ?
		)`, username, username, model.MaxSessionHistory)
	if err != nil {
		return fmt.Errorf("trim sessions %s: %w", username, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit end session: %w", err)
	}
	slog.Info("session ended", "username", username, "duration_seconds", rec.DurationSeconds)
	return nil
}

// GetUser returns a user with session history, or nil if unknown.
func (s *SQLite) GetUser(ctx context.Context, username string) (*model.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", username, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, ended_at, duration_seconds FROM user_sessions
		 WHERE username = ? ORDER BY ended_at, rowid`, username)
	if err != nil {
		return nil, fmt.Errorf("list sessions %s: %w", username, err)
	}
	defer rows.Close()
	for rows.Next() {
		var rec model.SessionRecord
		if err := rows.Scan(&rec.ID, &rec.Start, &rec.End, &rec.DurationSeconds); err != nil {
			return nil, err
		}
		u.Sessions = append(u.Sessions, rec)
	}
	return &u, rows.Err()
}

// UpdateProfile replaces the user's profile.
func (s *SQLite) UpdateProfile(ctx context.Context, username string, p model.Profile) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET full_name = ?, email = ?, department = ?, role = ?, bio = ? WHERE username = ?`,
		p.FullName, p.Email, p.Department, p.Role, p.Bio, username)
	if err != nil {
		return fmt.Errorf("update profile %s: %w", username, err)
	}
	return expectOne(res)
}

func (s *SQLite) queryUsers(ctx context.Context, query string, args ...any) ([]model.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ListUsers returns all users, most recently active first.
func (s *SQLite) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.queryUsers(ctx, `SELECT `+userColumns+` FROM users ORDER BY last_active DESC`)
}

// OnlineUsers returns users marked online whose last activity is at or after since.
func (s *SQLite) OnlineUsers(ctx context.Context, since time.Time) ([]model.User, error) {
	return s.queryUsers(ctx,
		`SELECT `+userColumns+` FROM users WHERE status = ? AND last_active >= ? ORDER BY last_active DESC`,
		string(model.StatusOnline), since.UTC())
}

// IncQuestionsCreated adds n to the user's authored question counter.
func (s *SQLite) IncQuestionsCreated(ctx context.Context, username string, n int) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET questions_created = questions_created + ? WHERE username = ?`, n, username)
	if err != nil {
		return fmt.Errorf("count questions for %s: %w", username, err)
	}
	return expectOne(res)
}

// RecentSessions returns the newest sessions across all users.
func (s *SQLite) RecentSessions(ctx context.Context, limit int) ([]model.UserSession, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT username, id, started_at, ended_at, duration_seconds FROM user_sessions
		 ORDER BY ended_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent sessions: %w", err)
	}
	defer rows.Close()
	var out []model.UserSession
	for rows.Next() {
		var us model.UserSession
		if err := rows.Scan(&us.Username, &us.ID, &us.Start, &us.End, &us.DurationSeconds); err != nil {
			return nil, err
		}
		out = append(out, us)
	}
	return out, rows.Err()
}
