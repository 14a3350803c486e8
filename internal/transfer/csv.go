// Package transfer moves questions in and out of the bank: CSV files, JSON
// batches produced by an LLM, and full backups.
package transfer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pavelanni/mcqdb/internal/model"
)

// Columns is the fixed CSV column order used by WriteCSV.
var Columns = []string{
	"subject", "topic", "classification", "question",
	"option1", "option2", "option3", "option4",
	"correctAnswer", "level", "marks", "created_by",
}

// DefaultMarks is used for CSV rows whose marks cell is empty or not a number.
const DefaultMarks = 1

// ReadCSV reads questions from a CSV stream whose first row names the columns.
// Unknown columns are ignored and missing ones read as empty.
func ReadCSV(r io.Reader) ([]model.Question, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	if _, ok := index["question"]; !ok {
		return nil, fmt.Errorf("read CSV header: missing %q column", "question")
	}

	var questions []model.Question
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV: %w", err)
		}
		if isBlank(rec) {
			continue
		}
		cell := func(name string) string {
			i, ok := index[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return rec[i]
		}
		marks, err := strconv.Atoi(strings.TrimSpace(cell("marks")))
		if err != nil {
			marks = DefaultMarks
		}
		q := model.Question{
			Subject:        cell("subject"),
			Topic:          cell("topic"),
			Classification: cell("classification"),
			Text:           cell("question"),
			Option1:        cell("option1"),
			Option2:        cell("option2"),
			Option3:        cell("option3"),
			Option4:        cell("option4"),
			CorrectAnswer:  cell("correctAnswer"),
			Level:          model.Level(cell("level")),
			Marks:          marks,
			CreatedBy:      cell("created_by"),
		}
		questions = append(questions, q)
	}
	return questions, nil
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// WriteCSV writes questions with a header row in Columns order.
func WriteCSV(w io.Writer, questions []model.Question) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}
	for _, q := range questions {
		row := []string{
			q.Subject, q.Topic, q.Classification, q.Text,
			q.Option1, q.Option2, q.Option3, q.Option4,
			q.CorrectAnswer, string(q.Level), strconv.Itoa(q.Marks), q.CreatedBy,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write CSV row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush CSV: %w", err)
	}
	return nil
}
