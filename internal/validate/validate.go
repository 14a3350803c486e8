// Package validate checks candidate question records before they are stored.
package validate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pavelanni/mcqdb/internal/model"
)

// Code identifies the kind of validation failure.
type Code string

const (
	CodeRequired        Code = "required"
	CodeAnswerNotOption Code = "answer_not_option"
	CodeAnswerAmbiguous Code = "answer_ambiguous"
	CodeMarks           Code = "invalid_marks"
	CodeLevel           Code = "invalid_level"
)

// Error reports the first field that failed validation.
type Error struct {
	Field string
	Code  Code
}

func (e *Error) Error() string {
	switch e.Code {
	case CodeRequired:
		return fmt.Sprintf("%s is required", e.Field)
	case CodeAnswerNotOption:
		return "correct answer must match one of the options"
	case CodeAnswerAmbiguous:
		return "correct answer matches more than one option"
	case CodeMarks:
		return "marks must be a positive whole number"
	case CodeLevel:
		return "level must be one of: easy, medium, hard"
	}
	return fmt.Sprintf("%s is invalid", e.Field)
}

// MessageID returns the localization message ID for the error.
func (e *Error) MessageID() string {
	switch e.Code {
	case CodeRequired:
		return "ValidationRequired"
	case CodeAnswerNotOption:
		return "ValidationAnswerNotOption"
	case CodeAnswerAmbiguous:
		return "ValidationAnswerAmbiguous"
	case CodeMarks:
		return "ValidationMarks"
	case CodeLevel:
		return "ValidationLevel"
	}
	return "ValidationInvalid"
}

// TemplateData returns the values the localized message refers to.
func (e *Error) TemplateData() map[string]any {
	return map[string]any{"Field": e.Field}
}

// Question checks q and returns the first failure, or nil.
// Required fields are checked first, in form order, then the answer, marks and level.
func Question(q model.Question) error {
	required := []struct {
		field string
		value string
	}{
		{"subject", q.Subject},
		{"topic", q.Topic},
		{"classification", q.Classification},
		{"question", q.Text},
		{"option1", q.Option1},
		{"option2", q.Option2},
		{"option3", q.Option3},
		{"option4", q.Option4},
		{"correctAnswer", q.CorrectAnswer},
		{"level", string(q.Level)},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &Error{Field: r.field, Code: CodeRequired}
		}
	}

	matches := 0
	for _, o := range q.Options() {
		if o == q.CorrectAnswer {
			matches++
		}
	}
	switch {
	case matches == 0:
		return &Error{Field: "correctAnswer", Code: CodeAnswerNotOption}
	case matches > 1:
		return &Error{Field: "correctAnswer", Code: CodeAnswerAmbiguous}
	}

	if q.Marks < 1 {
		return &Error{Field: "marks", Code: CodeMarks}
	}
	if !q.Level.Valid() {
		return &Error{Field: "level", Code: CodeLevel}
	}
	return nil
}

// Marks parses a marks value entered as text.
func Marks(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 0, &Error{Field: "marks", Code: CodeMarks}
	}
	return n, nil
}
