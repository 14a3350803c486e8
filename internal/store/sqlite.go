package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"modernc.org/sqlite"

	"github.com/pavelanni/mcqdb/internal/filter"
	"github.com/pavelanni/mcqdb/internal/model"
)

// SQLite is the embedded backend.
type SQLite struct {
	db      *sql.DB
	timeout time.Duration
}

var _ Store = (*SQLite)(nil)

const questionColumns = `id, subject, topic, classification, question, option1, option2, option3, option4,
	correct_answer, level, marks, created_by, created_at, updated_at`

// sqliteFields maps filter fields to columns.
var sqliteFields = map[string]string{
	filter.FieldSubject:        "subject",
	filter.FieldTopic:          "topic",
	filter.FieldClassification: "classification",
	filter.FieldLevel:          "level",
	filter.FieldCreatedBy:      "created_by",
	filter.FieldQuestion:       "question",
}

var (
	registerOnce sync.Once
	registerErr  error
)

// registerFold installs filter.FoldFunc for every new connection.
func registerFold() error {
	registerOnce.Do(func() {
		registerErr = sqlite.RegisterDeterministicScalarFunction(filter.FoldFunc, 1, fold)
	})
	return registerErr
}

func fold(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

func openSQLite(ctx context.Context, path string, timeout time.Duration) (*SQLite, error) {
	if err := registerFold(); err != nil {
		return nil, fmt.Errorf("register %s: %w", filter.FoldFunc, err)
	}
	dsn := path + "?_pragma=busy_timeout(5000)&_time_format=sqlite"
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, unavailable("ping database", err)
	}
	s := &SQLite{db: db, timeout: timeout}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	slog.Debug("opened sqlite store", "path", path)
	return s, nil
}

// Close closes the database.
func (s *SQLite) Close(context.Context) error {
	return s.db.Close()
}

func (s *SQLite) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS questions (
		id TEXT PRIMARY KEY,
		subject TEXT NOT NULL,
		topic TEXT NOT NULL DEFAULT '',
		classification TEXT NOT NULL DEFAULT '',
		question TEXT NOT NULL,
		option1 TEXT NOT NULL DEFAULT '',
		option2 TEXT NOT NULL DEFAULT '',
		option3 TEXT NOT NULL DEFAULT '',
		option4 TEXT NOT NULL DEFAULT '',
		correct_answer TEXT NOT NULL DEFAULT '',
		level TEXT NOT NULL DEFAULT '',
		marks INTEGER NOT NULL DEFAULT 1,
		created_by TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_questions_question_subject ON questions(question, subject);
	CREATE INDEX IF NOT EXISTS idx_questions_subject ON questions(subject);
	CREATE INDEX IF NOT EXISTS idx_questions_topic ON questions(topic);
	CREATE INDEX IF NOT EXISTS idx_questions_classification ON questions(classification);
	CREATE INDEX IF NOT EXISTS idx_questions_level ON questions(level);
	CREATE INDEX IF NOT EXISTS idx_questions_created_by ON questions(created_by);

	CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		status TEXT NOT NULL DEFAULT 'offline',
		last_active DATETIME NOT NULL,
		created_at DATETIME NOT NULL,
		full_name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		department TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT '',
		bio TEXT NOT NULL DEFAULT '',
		total_sessions INTEGER NOT NULL DEFAULT 0,
		total_time_seconds INTEGER NOT NULL DEFAULT 0,
		questions_created INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_users_last_active ON users(last_active);

	CREATE TABLE IF NOT EXISTS user_sessions (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		ended_at DATETIME NOT NULL,
		duration_seconds INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (username) REFERENCES users(username)
	);
	CREATE INDEX IF NOT EXISTS idx_user_sessions_username ON user_sessions(username, ended_at);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *SQLite) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuestion(r rowScanner) (model.Question, error) {
	var q model.Question
	var level string
	var updated sql.NullTime
	err := r.Scan(&q.ID, &q.Subject, &q.Topic, &q.Classification, &q.Text,
		&q.Option1, &q.Option2, &q.Option3, &q.Option4,
		&q.CorrectAnswer, &level, &q.Marks, &q.CreatedBy, &q.CreatedAt, &updated)
	if err != nil {
		return q, err
	}
	q.Level = model.Level(level)
	if updated.Valid {
		q.UpdatedAt = updated.Time
	}
	return q, nil
}

// FindQuestions returns matching questions, newest first.
func (s *SQLite) FindQuestions(ctx context.Context, p filter.Predicate) ([]model.Question, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	where, args := p.SQL()
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE `+where+` ORDER BY created_at DESC, rowid DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("find questions: %w", err)
	}
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// GetQuestion returns a question by ID, or nil if it does not exist.
func (s *SQLite) GetQuestion(ctx context.Context, id string) (*model.Question, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	q, err := scanQuestion(s.db.QueryRowContext(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get question %s: %w", id, err)
	}
	return &q, nil
}

// InsertQuestions stores questions in one transaction.
func (s *SQLite) InsertQuestions(ctx context.Context, qs []model.Question) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback()

	ids := make([]string, 0, len(qs))
	for _, q := range qs {
		id := primitive.NewObjectID().Hex()
		createdAt := q.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO questions (`+questionColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, q.Subject, q.Topic, q.Classification, q.Text,
			q.Option1, q.Option2, q.Option3, q.Option4,
			q.CorrectAnswer, string(q.Level), q.Marks, q.CreatedBy, createdAt.UTC(), nullTime(q.UpdatedAt),
		)
		if err != nil {
			return nil, fmt.Errorf("insert question: %w", err)
		}
		ids = append(ids, id)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit insert: %w", err)
	}
	return ids, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// UpdateQuestion overwrites the editable fields of an existing question.
func (s *SQLite) UpdateQuestion(ctx context.Context, q model.Question) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`UPDATE questions SET subject = ?, topic = ?, classification = ?, question = ?,
		 option1 = ?, option2 = ?, option3 = ?, option4 = ?, correct_answer = ?,
		 level = ?, marks = ?, updated_at = ?
		 WHERE id = ?`,
		q.Subject, q.Topic, q.Classification, q.Text,
		q.Option1, q.Option2, q.Option3, q.Option4, q.CorrectAnswer,
		string(q.Level), q.Marks, nullTime(q.UpdatedAt), q.ID,
	)
	if err != nil {
		return fmt.Errorf("update question %s: %w", q.ID, err)
	}
	return expectOne(res)
}

// DeleteQuestion removes a question.
func (s *SQLite) DeleteQuestion(ctx context.Context, id string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM questions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete question %s: %w", id, err)
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// QuestionExists reports whether the exact (subject, question) pair is stored.
func (s *SQLite) QuestionExists(ctx context.Context, subject, text string) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM questions WHERE question = ? AND subject = ? LIMIT 1`, text, subject,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check duplicate: %w", err)
	}
	return true, nil
}

// DistinctValues returns sorted distinct non-empty values of a field.
func (s *SQLite) DistinctValues(ctx context.Context, field string, p filter.Predicate) ([]string, error) {
	col, ok := sqliteFields[field]
	if !ok {
		return nil, fmt.Errorf("unknown field %q", field)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	where, args := p.SQL()
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT `+col+` FROM questions WHERE `+where+` AND `+col+` != '' ORDER BY `+col, args...)
	if err != nil {
		return nil, fmt.Errorf("distinct %s: %w", field, err)
	}
	defer rows.Close()
	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	slices.Sort(values)
	return values, rows.Err()
}

// Stats returns aggregate counts over the question bank.
func (s *SQLite) Stats(ctx context.Context, username string) (model.Stats, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var st model.Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(level = 'easy'), 0),
		       COALESCE(SUM(level = 'medium'), 0),
		       COALESCE(SUM(level = 'hard'), 0),
		       COUNT(DISTINCT subject),
		       COALESCE(SUM(created_by = ?), 0)
		FROM questions`, username,
	).Scan(&st.Total, &st.Easy, &st.Medium, &st.Hard, &st.Subjects, &st.Mine)
	if err != nil {
		return st, fmt.Errorf("question stats: %w", err)
	}
	return st, nil
}

// SubjectDistribution returns question counts per subject, largest first.
func (s *SQLite) SubjectDistribution(ctx context.Context, limit int) ([]model.SubjectCount, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT subject, COUNT(*) AS n FROM questions GROUP BY subject ORDER BY n DESC, subject LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("subject distribution: %w", err)
	}
	defer rows.Close()
	var out []model.SubjectCount
	for rows.Next() {
		var c model.SubjectCount
		if err := rows.Scan(&c.Subject, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
