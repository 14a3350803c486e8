package transfer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pavelanni/mcqdb/internal/model"
)

// ErrNoQuestions is returned for a batch without any question records.
var ErrNoQuestions = errors.New("no questions found in JSON")

// Batch is a decoded JSON question batch, as produced by an LLM.
type Batch struct {
	Questions                []model.Question
	SuggestedTopics          []string
	SuggestedClassifications []string
}

type batchDoc struct {
	Questions                []questionDoc `json:"questions"`
	SuggestedTopics          []string      `json:"suggested_topics"`
	SuggestedClassifications []string      `json:"suggested_classifications"`
}

type questionDoc struct {
	Subject        string  `json:"subject"`
	Topic          firstOf `json:"topic"`
	Classification firstOf `json:"classification"`
	Question       string  `json:"question"`
	Option1        string  `json:"option1"`
	Option2        string  `json:"option2"`
	Option3        string  `json:"option3"`
	Option4        string  `json:"option4"`
	CorrectAnswer  string  `json:"correctAnswer"`
	Level          string  `json:"level"`
	Marks          *int    `json:"marks"`
	CreatedBy      string  `json:"created_by"`
}

// firstOf accepts a string or a list of strings, keeping the first element.
type firstOf string

func (f *firstOf) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = firstOf(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("want a string or a list of strings: %w", err)
	}
	*f = ""
	if len(list) > 0 {
		*f = firstOf(list[0])
	}
	return nil
}

// DecodeBatch parses a JSON batch: an object with a "questions" list, or a bare
// list of questions. Markdown code fences around the document are ignored. Any
// malformed record rejects the whole batch.
func DecodeBatch(data []byte) (*Batch, error) {
	data = stripFences(data)
	var doc batchDoc
	var err error
	if bytes.HasPrefix(data, []byte("[")) {
		err = json.Unmarshal(data, &doc.Questions)
	} else {
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", withOffset(err))
	}
	if len(doc.Questions) == 0 {
		return nil, ErrNoQuestions
	}

	b := &Batch{
		Questions:                make([]model.Question, 0, len(doc.Questions)),
		SuggestedTopics:          doc.SuggestedTopics,
		SuggestedClassifications: doc.SuggestedClassifications,
	}
	for _, d := range doc.Questions {
		marks := DefaultMarks
		if d.Marks != nil {
			marks = *d.Marks
		}
		b.Questions = append(b.Questions, model.Question{
			Subject:        d.Subject,
			Topic:          string(d.Topic),
			Classification: string(d.Classification),
			Text:           d.Question,
			Option1:        d.Option1,
			Option2:        d.Option2,
			Option3:        d.Option3,
			Option4:        d.Option4,
			CorrectAnswer:  d.CorrectAnswer,
			Level:          model.Level(d.Level),
			Marks:          marks,
			CreatedBy:      d.CreatedBy,
		})
	}
	return b, nil
}

// withOffset adds the byte offset reported by the JSON decoder.
func withOffset(err error) error {
	var syn *json.SyntaxError
	if errors.As(err, &syn) {
		return fmt.Errorf("at offset %d: %w", syn.Offset, err)
	}
	var typ *json.UnmarshalTypeError
	if errors.As(err, &typ) {
		return fmt.Errorf("at offset %d: %w", typ.Offset, err)
	}
	return err
}

func stripFences(data []byte) []byte {
	data = bytes.TrimSpace(data)
	if !bytes.HasPrefix(data, []byte("```")) {
		return data
	}
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		data = data[i+1:]
	} else {
		data = data[3:]
	}
	data = bytes.TrimSpace(data)
	data = bytes.TrimSuffix(data, []byte("```"))
	return bytes.TrimSpace(data)
}
