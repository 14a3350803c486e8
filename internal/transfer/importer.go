package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pavelanni/mcqdb/internal/model"
	"github.com/pavelanni/mcqdb/internal/store"
	"github.com/pavelanni/mcqdb/internal/validate"
)

// Store is the part of the question bank an import needs.
type Store interface {
	QuestionExists(ctx context.Context, subject, text string) (bool, error)
	InsertQuestions(ctx context.Context, qs []model.Question) ([]string, error)
	IncQuestionsCreated(ctx context.Context, username string, n int) error
}

// Taxonomy receives topics and classifications suggested by a batch.
type Taxonomy interface {
	AddTopic(subject, topic string) (bool, error)
	AddClassification(subject, classification string) (bool, error)
}

// Importer checks incoming records against the bank and stores the new ones.
type Importer struct {
	Store    Store
	Taxonomy Taxonomy
	// Username is credited with the import and fills empty created_by fields.
	Username string
}

// Options controls Plan.
type Options struct {
	// ApplySuggestions adds the batch's suggested topics and classifications
	// to the taxonomy.
	ApplySuggestions bool
	// Validate excludes records that fail validation.
	Validate bool
}

// Addition is a taxonomy entry added while planning an import.
type Addition struct {
	Subject string `json:"subject"`
	Name    string `json:"name"`
}

// Rejected is a record excluded by validation.
type Rejected struct {
	Index    int            `json:"index"`
	Question model.Question `json:"question"`
	Err      error          `json:"-"`
	Reason   string         `json:"reason"`
}

// Report is the outcome of planning an import.
type Report struct {
	Total                int              `json:"total"`
	New                  []model.Question `json:"new"`
	Duplicates           []model.Question `json:"duplicates"`
	AddedTopics          []Addition       `json:"added_topics,omitempty"`
	AddedClassifications []Addition       `json:"added_classifications,omitempty"`
	Invalid              []Rejected       `json:"invalid,omitempty"`
}

// Plan normalizes the batch and sorts its records into new, duplicate and
// invalid ones. A record is a duplicate when the store already holds the same
// subject and question text, or when an earlier record of the batch does.
func (im *Importer) Plan(ctx context.Context, b *Batch, opts Options) (*Report, error) {
	r := &Report{
		Total:      len(b.Questions),
		New:        []model.Question{},
		Duplicates: []model.Question{},
	}
	questions := make([]model.Question, len(b.Questions))
	for i, q := range b.Questions {
		questions[i] = im.normalize(q)
	}

	if opts.ApplySuggestions {
		if err := im.applySuggestions(questions, b, r); err != nil {
			return nil, err
		}
	}

	seen := make(map[string]bool, len(questions))
	for i, q := range questions {
		if opts.Validate {
			if err := validate.Question(q); err != nil {
				r.Invalid = append(r.Invalid, Rejected{Index: i, Question: q, Err: err, Reason: err.Error()})
				continue
			}
		}
		key := q.Subject + "\x00" + q.Text
		if seen[key] {
			r.Duplicates = append(r.Duplicates, q)
			continue
		}
		seen[key] = true
		exists, err := im.Store.QuestionExists(ctx, q.Subject, q.Text)
		if err != nil {
			return nil, fmt.Errorf("check duplicate %d: %w", i, err)
		}
		if exists {
			r.Duplicates = append(r.Duplicates, q)
			continue
		}
		r.New = append(r.New, q)
	}

	slog.Info("planned import",
		"total", r.Total, "new", len(r.New), "duplicates", len(r.Duplicates), "invalid", len(r.Invalid))
	return r, nil
}

func (im *Importer) normalize(q model.Question) model.Question {
	q.Subject = strings.TrimSpace(q.Subject)
	q.Topic = strings.TrimSpace(q.Topic)
	q.Classification = strings.TrimSpace(q.Classification)
	q.Level = model.Level(strings.ToLower(strings.TrimSpace(string(q.Level))))
	q.CreatedBy = strings.TrimSpace(q.CreatedBy)
	if q.CreatedBy == "" {
		q.CreatedBy = im.Username
	}
	return q
}

// applySuggestions files each suggestion under the subject of the first record
// that uses it. Suggestions no record uses are skipped.
func (im *Importer) applySuggestions(questions []model.Question, b *Batch, r *Report) error {
	for _, topic := range b.SuggestedTopics {
		subject := subjectOf(questions, func(q model.Question) string { return q.Topic }, topic)
		if subject == "" {
			continue
		}
		added, err := im.Taxonomy.AddTopic(subject, topic)
		if err != nil {
			return fmt.Errorf("add topic %q: %w", topic, err)
		}
		if added {
			r.AddedTopics = append(r.AddedTopics, Addition{Subject: subject, Name: topic})
			slog.Info("added suggested topic", "subject", subject, "topic", topic)
		}
	}
	for _, class := range b.SuggestedClassifications {
		subject := subjectOf(questions, func(q model.Question) string { return q.Classification }, class)
		if subject == "" {
			continue
		}
		added, err := im.Taxonomy.AddClassification(subject, class)
		if err != nil {
			return fmt.Errorf("add classification %q: %w", class, err)
		}
		if added {
			r.AddedClassifications = append(r.AddedClassifications, Addition{Subject: subject, Name: class})
			slog.Info("added suggested classification", "subject", subject, "classification", class)
		}
	}
	return nil
}

func subjectOf(questions []model.Question, field func(model.Question) string, value string) string {
	for _, q := range questions {
		if field(q) == value {
			return q.Subject
		}
	}
	return ""
}

// Commit stores the report's new records and credits them to the importing
// user. Duplicates are never written. It returns the number of records stored
// and fills in their IDs.
func (im *Importer) Commit(ctx context.Context, r *Report) (int, error) {
	if len(r.New) == 0 {
		return 0, nil
	}
	ids, err := im.Store.InsertQuestions(ctx, r.New)
	if err != nil {
		return 0, fmt.Errorf("insert questions: %w", err)
	}
	for i, id := range ids {
		r.New[i].ID = id
	}
	if err := im.Store.IncQuestionsCreated(ctx, im.Username, len(ids)); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return len(ids), fmt.Errorf("update question count: %w", err)
		}
		slog.Warn("importing user has no record", "username", im.Username)
	}
	slog.Info("imported questions", "count", len(ids), "username", im.Username)
	return len(ids), nil
}
