// Package presence tracks who is working with the question bank: a heartbeat
// while a session runs, a session log entry when it ends, and a polling loop for
// the admin view.
package presence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/pavelanni/mcqdb/internal/model"
)

const (
	// DefaultHeartbeat is how often a running session refreshes last_active.
	DefaultHeartbeat = time.Minute
	// DefaultPollInterval is the admin view refresh period.
	DefaultPollInterval = 30 * time.Second
)

// ErrNotStarted is returned by Stop on a tracker that is not running.
var ErrNotStarted = errors.New("presence tracker not started")

// Users is the store surface a Tracker writes to.
type Users interface {
	TouchUser(ctx context.Context, username string, now time.Time) error
	Heartbeat(ctx context.Context, username string, now time.Time) error
	EndSession(ctx context.Context, username string, rec model.SessionRecord) error
}

// Tracker keeps one user's presence current for the lifetime of a session.
type Tracker struct {
	users    Users
	username string
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	id      string
	started time.Time
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewTracker returns a tracker for username. A non-positive interval uses
// DefaultHeartbeat.
func NewTracker(users Users, username string, interval time.Duration) *Tracker {
	if interval <= 0 {
		interval = DefaultHeartbeat
	}
	return &Tracker{users: users, username: username, interval: interval, now: time.Now}
}

// Start marks the user online and begins heartbeating until Stop or until ctx
// is done.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return nil
	}
	start := t.now()
	if err := t.users.TouchUser(ctx, t.username, start); err != nil {
		return fmt.Errorf("start session for %s: %w", t.username, err)
	}
	t.id = uuid.NewString()
	t.started = start

	hbCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	go t.heartbeat(hbCtx, t.done)

	slog.Info("session started", "username", t.username, "session_id", t.id)
	return nil
}

func (t *Tracker) heartbeat(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := t.users.Heartbeat(ctx, t.username, t.now()); err != nil && ctx.Err() == nil {
				slog.Warn("heartbeat failed", "username", t.username, "error", err)
			}
		}
	}
}

// Stop ends the heartbeat and logs the session. It returns the logged record.
func (t *Tracker) Stop(ctx context.Context) (model.SessionRecord, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel == nil {
		return model.SessionRecord{}, ErrNotStarted
	}
	t.cancel()
	<-t.done
	t.cancel = nil

	end := t.now()
	rec := model.SessionRecord{
		ID:              t.id,
		Start:           t.started,
		End:             end,
		DurationSeconds: int64(end.Sub(t.started) / time.Second),
	}
	if err := t.users.EndSession(ctx, t.username, rec); err != nil {
		return rec, fmt.Errorf("end session for %s: %w", t.username, err)
	}
	return rec, nil
}

// SessionID returns the ID of the running session, or "".
func (t *Tracker) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel == nil {
		return ""
	}
	return t.id
}

// Poll calls fn immediately and then every interval until ctx is done.
func Poll(ctx context.Context, interval time.Duration, fn func(context.Context)) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	fn(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// FormatDuration renders seconds as "1h 5m", or "5m" under an hour.
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	hours := seconds / 3600
	minutes := seconds % 3600 / 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

// LastSeen describes when a user was last active relative to now.
func LastSeen(u model.User, now time.Time) string {
	if u.LastActive.IsZero() {
		return "never"
	}
	return humanize.RelTime(u.LastActive, now, "ago", "from now")
}

// Summarize totals user activity for the admin view. online holds the users
// currently online and totalQuestions the size of the question bank.
func Summarize(users, online []model.User, totalQuestions int64) model.AdminSummary {
	s := model.AdminSummary{
		TotalUsers:     int64(len(users)),
		OnlineUsers:    int64(len(online)),
		TotalQuestions: totalQuestions,
	}
	for _, u := range users {
		s.TotalSessions += u.TotalSessions
		s.TotalTimeSeconds += u.TotalTimeSeconds
		s.QuestionsCreated += u.QuestionsCreated
	}
	return s
}
