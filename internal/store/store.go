// Package store persists questions and users. MongoDB is the primary backend;
// SQLite serves local development and tests.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pavelanni/mcqdb/internal/filter"
	"github.com/pavelanni/mcqdb/internal/model"
)

var (
	// ErrNotFound is returned by updates and deletes of a missing record.
	ErrNotFound = errors.New("record not found")
	// ErrUnavailable wraps failures to reach the backing database.
	ErrUnavailable = errors.New("database unavailable")
)

// Defaults for Config.
const (
	DefaultDatabase        = "mcq_database"
	DefaultTimeout         = 10 * time.Second
	DefaultSelectTimeout   = 5 * time.Second
	questionsCollection    = "questions"
	usersCollection        = "users"
	sqliteScheme           = "sqlite://"
	mongoScheme            = "mongodb://"
	mongoSRVScheme         = "mongodb+srv://"
	passwordPlaceholder    = "{password}"
	subjectDistributionMax = 10
)

// Questions is the question bank.
type Questions interface {
	// FindQuestions returns matching records, newest first.
	FindQuestions(ctx context.Context, p filter.Predicate) ([]model.Question, error)
	// GetQuestion returns nil, nil when the record does not exist.
	GetQuestion(ctx context.Context, id string) (*model.Question, error)
	// InsertQuestions stores records and returns their new IDs in order.
	InsertQuestions(ctx context.Context, qs []model.Question) ([]string, error)
	UpdateQuestion(ctx context.Context, q model.Question) error
	DeleteQuestion(ctx context.Context, id string) error
	// QuestionExists reports whether a record with the exact subject and text exists.
	QuestionExists(ctx context.Context, subject, text string) (bool, error)
	// DistinctValues returns the sorted distinct values of field among matching records.
	DistinctValues(ctx context.Context, field string, p filter.Predicate) ([]string, error)
	// Stats counts records overall, per level, distinct subjects and those authored by username.
	Stats(ctx context.Context, username string) (model.Stats, error)
	// SubjectDistribution returns per-subject counts, largest first.
	SubjectDistribution(ctx context.Context, limit int) ([]model.SubjectCount, error)
}

// Users tracks authors and their presence.
type Users interface {
	// TouchUser marks the user online, creating the record on first use.
	TouchUser(ctx context.Context, username string, now time.Time) error
	Heartbeat(ctx context.Context, username string, now time.Time) error
	// EndSession logs a finished session and marks the user offline.
	EndSession(ctx context.Context, username string, rec model.SessionRecord) error
	// GetUser returns nil, nil when the user does not exist.
	GetUser(ctx context.Context, username string) (*model.User, error)
	UpdateProfile(ctx context.Context, username string, p model.Profile) error
	// ListUsers returns all users, most recently active first, without session history.
	ListUsers(ctx context.Context) ([]model.User, error)
	// OnlineUsers returns users with status online and last activity at or after since.
	OnlineUsers(ctx context.Context, since time.Time) ([]model.User, error)
	IncQuestionsCreated(ctx context.Context, username string, n int) error
	// RecentSessions returns the latest sessions across all users.
	RecentSessions(ctx context.Context, limit int) ([]model.UserSession, error)
}

// Store is a complete backend.
type Store interface {
	Questions
	Users
	Close(ctx context.Context) error
}

// Config selects and configures a backend.
type Config struct {
	// URI is a mongodb:// or mongodb+srv:// connection string, a sqlite:// path,
	// or ":memory:" for a throwaway SQLite database.
	URI string
	// Password replaces a {password} placeholder in the URI, or fills the
	// password of a URI that names a user without one.
	Password string
	Database string
	Timeout  time.Duration
}

// Open connects to the backend named by cfg.URI.
func Open(ctx context.Context, cfg Config) (Store, error) {
	if cfg.Database == "" {
		cfg.Database = DefaultDatabase
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	switch {
	case strings.HasPrefix(cfg.URI, mongoScheme), strings.HasPrefix(cfg.URI, mongoSRVScheme):
		return openMongo(ctx, cfg)
	case cfg.URI == ":memory:":
		return openSQLite(ctx, cfg.URI, cfg.Timeout)
	case strings.HasPrefix(cfg.URI, sqliteScheme):
		return openSQLite(ctx, strings.TrimPrefix(cfg.URI, sqliteScheme), cfg.Timeout)
	}
	return nil, fmt.Errorf("unsupported store URI %q: want mongodb://, mongodb+srv://, sqlite:// or :memory:", redact(cfg.URI))
}

// redact hides credentials in a URI for logs and errors.
func redact(uri string) string {
	at := strings.LastIndex(uri, "@")
	scheme := strings.Index(uri, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return uri
	}
	return uri[:scheme+3] + "***" + uri[at:]
}

// unavailable marks err as a connectivity failure of op.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
