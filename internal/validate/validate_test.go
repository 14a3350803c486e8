package validate

import (
	"errors"
	"testing"

	"github.com/pavelanni/mcqdb/internal/model"
)

func validQuestion() model.Question {
	return model.Question{
		Subject:        "python",
		Topic:          "lists",
		Classification: "Basics",
		Text:           "Which method adds an item to the end of a list?",
		Option1:        "append",
		Option2:        "extend",
		Option3:        "insert",
		Option4:        "add",
		CorrectAnswer:  "append",
		Level:          model.LevelEasy,
		Marks:          1,
	}
}

func TestQuestion(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(q *model.Question)
		wantField string
		wantCode  Code
	}{
		{"valid", func(q *model.Question) {}, "", ""},
		{"missing subject", func(q *model.Question) { q.Subject = "" }, "subject", CodeRequired},
		{"blank topic", func(q *model.Question) { q.Topic = "  " }, "topic", CodeRequired},
		{"missing option3", func(q *model.Question) { q.Option3 = "" }, "option3", CodeRequired},
		{"first missing reported", func(q *model.Question) { q.Text = ""; q.Option1 = "" }, "question", CodeRequired},
		{"missing level", func(q *model.Question) { q.Level = "" }, "level", CodeRequired},
		{"answer not an option", func(q *model.Question) { q.CorrectAnswer = "push" }, "correctAnswer", CodeAnswerNotOption},
		{"answer case differs", func(q *model.Question) { q.CorrectAnswer = "Append" }, "correctAnswer", CodeAnswerNotOption},
		{"answer matches two options", func(q *model.Question) { q.Option4 = "append" }, "correctAnswer", CodeAnswerAmbiguous},
		{"zero marks", func(q *model.Question) { q.Marks = 0 }, "marks", CodeMarks},
		{"unknown level", func(q *model.Question) { q.Level = "expert" }, "level", CodeLevel},
		{"answer checked before marks", func(q *model.Question) { q.CorrectAnswer = "x"; q.Marks = 0 }, "correctAnswer", CodeAnswerNotOption},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := validQuestion()
			tt.mutate(&q)
			before := q

			err := Question(q)
			if q != before {
				t.Error("Question() mutated its input")
			}
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("Question() = %v, want nil", err)
				}
				return
			}
			var verr *Error
			if !errors.As(err, &verr) {
				t.Fatalf("Question() = %v, want *Error", err)
			}
			if verr.Field != tt.wantField || verr.Code != tt.wantCode {
				t.Errorf("Question() = {%s %s}, want {%s %s}", verr.Field, verr.Code, tt.wantField, tt.wantCode)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	err := &Error{Field: "topic", Code: CodeRequired}
	if got := err.Error(); got != "topic is required" {
		t.Errorf("Error() = %q", got)
	}
	if got := err.MessageID(); got != "ValidationRequired" {
		t.Errorf("MessageID() = %q", got)
	}
	err = &Error{Field: "correctAnswer", Code: CodeAnswerNotOption}
	if got := err.Error(); got != "correct answer must match one of the options" {
		t.Errorf("Error() = %q", got)
	}
}

func TestMarks(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"1", 1, false},
		{" 5 ", 5, false},
		{"0", 0, true},
		{"-2", 0, true},
		{"two", 0, true},
		{"2.5", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := Marks(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("Marks(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("Marks(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
