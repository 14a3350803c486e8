// Package app ties the session user, the store and the local settings together
// and implements the operations shared by the CLI and the HTTP API.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pavelanni/mcqdb/internal/filter"
	"github.com/pavelanni/mcqdb/internal/model"
	"github.com/pavelanni/mcqdb/internal/page"
	"github.com/pavelanni/mcqdb/internal/settings"
	"github.com/pavelanni/mcqdb/internal/store"
	"github.com/pavelanni/mcqdb/internal/transfer"
	"github.com/pavelanni/mcqdb/internal/validate"
)

var (
	// ErrNotFound is returned for operations on a question that does not exist.
	ErrNotFound = errors.New("question not found")
	// ErrDuplicate is returned when creating a question whose subject and text
	// are already stored.
	ErrDuplicate = errors.New("question already exists")
	// ErrUnknownUser is returned for a username with no record.
	ErrUnknownUser = errors.New("unknown user")
)

// TopSubjects is the number of subjects listed in Stats.
const TopSubjects = 10

// Session is one user's working context. It is passed explicitly to every
// operation; nothing in this package keeps global state.
type Session struct {
	Store    store.Store
	Settings *settings.Settings
	Username string
	Sizing   page.Sizing
}

// Result is one page of a browse query.
type Result struct {
	Criteria  filter.Criteria  `json:"criteria"`
	Page      page.Page        `json:"page"`
	Questions []model.Question `json:"questions"`
}

// Browse runs a filtered query and returns the requested page. width is the
// client's display width in pixels, or 0 when unknown.
func (s *Session) Browse(ctx context.Context, c filter.Criteria, index, width int) (*Result, error) {
	all, err := s.Store.FindQuestions(ctx, filter.Build(c, s.Username))
	if err != nil {
		return nil, fmt.Errorf("browse questions: %w", err)
	}
	p := page.New(len(all), s.PageSize(width), index)
	return &Result{Criteria: c, Page: p, Questions: page.Slice(all, p)}, nil
}

// Find returns every question matching c, newest first.
func (s *Session) Find(ctx context.Context, c filter.Criteria) ([]model.Question, error) {
	qs, err := s.Store.FindQuestions(ctx, filter.Build(c, s.Username))
	if err != nil {
		return nil, fmt.Errorf("find questions: %w", err)
	}
	return qs, nil
}

// PageSize returns the page size for a display width in pixels, 0 meaning
// unknown.
func (s *Session) PageSize(width int) int {
	sz := s.Sizing
	if sz.Default <= 0 {
		sz = page.DefaultSizing()
	}
	return sz.For(width)
}

// Get returns a question by ID.
func (s *Session) Get(ctx context.Context, id string) (*model.Question, error) {
	q, err := s.Store.GetQuestion(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get question %s: %w", id, err)
	}
	if q == nil {
		return nil, ErrNotFound
	}
	return q, nil
}

func trimQuestion(q model.Question) model.Question {
	q.Subject = strings.TrimSpace(q.Subject)
	q.Topic = strings.TrimSpace(q.Topic)
	q.Classification = strings.TrimSpace(q.Classification)
	q.Text = strings.TrimSpace(q.Text)
	q.Level = model.Level(strings.ToLower(strings.TrimSpace(string(q.Level))))
	return q
}

// Create validates and stores a manually entered question authored by the
// session user.
func (s *Session) Create(ctx context.Context, q model.Question) (*model.Question, error) {
	q = trimQuestion(q)
	q.ID = ""
	q.CreatedBy = s.Username
	q.CreatedAt = time.Now().UTC()
	q.UpdatedAt = time.Time{}
	if err := validate.Question(q); err != nil {
		return nil, err
	}
	exists, err := s.Store.QuestionExists(ctx, q.Subject, q.Text)
	if err != nil {
		return nil, fmt.Errorf("check duplicate: %w", err)
	}
	if exists {
		return nil, ErrDuplicate
	}
	ids, err := s.Store.InsertQuestions(ctx, []model.Question{q})
	if err != nil {
		return nil, fmt.Errorf("create question: %w", err)
	}
	q.ID = ids[0]
	if err := s.Store.IncQuestionsCreated(ctx, s.Username, 1); err != nil && !errors.Is(err, store.ErrNotFound) {
		return &q, fmt.Errorf("update question count: %w", err)
	}
	slog.Info("created question", "id", q.ID, "subject", q.Subject, "username", s.Username)
	return &q, nil
}

// Update replaces the editable fields of a question. The author and creation
// time are kept; updated_at is set to now.
func (s *Session) Update(ctx context.Context, id string, q model.Question) (*model.Question, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	q = trimQuestion(q)
	q.ID = existing.ID
	q.CreatedBy = existing.CreatedBy
	q.CreatedAt = existing.CreatedAt
	q.UpdatedAt = time.Now().UTC()
	if err := validate.Question(q); err != nil {
		return nil, err
	}
	if err := s.Store.UpdateQuestion(ctx, q); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update question %s: %w", id, err)
	}
	slog.Info("updated question", "id", id, "username", s.Username)
	return &q, nil
}

// Confirmation is the caller's answer to a delete confirmation.
type Confirmation struct {
	Confirmed bool
	// Author must repeat the record's author when deleting someone else's question.
	Author string
}

// ConfirmationError is returned by Delete when the confirmation given is not
// enough. It carries the question to put to the user.
type ConfirmationError struct {
	// Own is true when the question belongs to the session user.
	Own    bool
	Author string
}

func (e *ConfirmationError) Error() string {
	if e.Own {
		return "Are you sure you want to delete your question?"
	}
	return fmt.Sprintf("This question was created by '%s'. Are you sure you want to delete it?", e.Author)
}

// MessageID returns the localization message ID for the prompt.
func (e *ConfirmationError) MessageID() string {
	if e.Own {
		return "ConfirmDeleteOwn"
	}
	return "ConfirmDeleteOther"
}

// TemplateData returns the values the localized prompt refers to.
func (e *ConfirmationError) TemplateData() map[string]any {
	return map[string]any{"Author": e.Author}
}

// DeleteCheck returns the confirmation needed before q may be deleted.
func (s *Session) DeleteCheck(q model.Question) *ConfirmationError {
	author := q.CreatedBy
	if author == "" {
		author = "Unknown"
	}
	return &ConfirmationError{Own: q.CreatedBy == s.Username, Author: author}
}

// Satisfied reports whether c answers the confirmation.
func (e *ConfirmationError) Satisfied(c Confirmation) bool {
	if !c.Confirmed {
		return false
	}
	return e.Own || c.Author == e.Author
}

// Delete removes a question once c satisfies DeleteCheck. Otherwise it returns
// the *ConfirmationError and deletes nothing.
func (s *Session) Delete(ctx context.Context, id string, c Confirmation) error {
	q, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if need := s.DeleteCheck(*q); !need.Satisfied(c) {
		return need
	}
	if err := s.Store.DeleteQuestion(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete question %s: %w", id, err)
	}
	slog.Info("deleted question", "id", id, "author", q.CreatedBy, "username", s.Username)
	return nil
}

// Stats returns the question bank summary with the largest subjects.
func (s *Session) Stats(ctx context.Context) (model.Stats, error) {
	st, err := s.Store.Stats(ctx, s.Username)
	if err != nil {
		return st, fmt.Errorf("stats: %w", err)
	}
	st.Top, err = s.Store.SubjectDistribution(ctx, TopSubjects)
	if err != nil {
		return st, fmt.Errorf("subject distribution: %w", err)
	}
	return st, nil
}

// FilterOptions lists the topics and classifications to offer for subject.
type FilterOptions struct {
	Subjects        []string      `json:"subjects"`
	Topics          []string      `json:"topics"`
	Classifications []string      `json:"classifications"`
	Levels          []model.Level `json:"levels"`
}

// FilterOptions returns picker values for a subject: the taxonomy's entries
// for a named subject, or the values present in the store for "All".
func (s *Session) FilterOptions(ctx context.Context, subject string) (*FilterOptions, error) {
	opts := &FilterOptions{Subjects: s.Settings.Subjects(), Levels: model.Levels}
	if subject != "" && subject != filter.All {
		opts.Topics = s.Settings.Topics(subject)
		opts.Classifications = s.Settings.Classifications(subject)
		return opts, nil
	}
	var err error
	if opts.Topics, err = s.Store.DistinctValues(ctx, filter.FieldTopic, filter.Predicate{}); err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	if opts.Classifications, err = s.Store.DistinctValues(ctx, filter.FieldClassification, filter.Predicate{}); err != nil {
		return nil, fmt.Errorf("list classifications: %w", err)
	}
	return opts, nil
}

// Importer returns an importer crediting the session user.
func (s *Session) Importer() *transfer.Importer {
	return &transfer.Importer{Store: s.Store, Taxonomy: s.Settings, Username: s.Username}
}

// Backup dumps every question together with the taxonomy.
func (s *Session) Backup(ctx context.Context) (model.Backup, error) {
	qs, err := s.Store.FindQuestions(ctx, filter.Predicate{})
	if err != nil {
		return model.Backup{}, fmt.Errorf("backup: %w", err)
	}
	return transfer.NewBackup(qs, s.Settings.Taxonomy(), time.Now().UTC()), nil
}
