package transfer

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/pavelanni/mcqdb/internal/model"
)

// NewBackup bundles every question with the subject taxonomy.
func NewBackup(questions []model.Question, taxonomy map[string]model.Subject, now time.Time) model.Backup {
	if questions == nil {
		questions = []model.Question{}
	}
	return model.Backup{
		BackupDate:     now,
		TotalQuestions: len(questions),
		Questions:      questions,
		SubjectData:    taxonomy,
	}
}

// WriteBackup writes b as indented JSON.
func WriteBackup(w io.Writer, b model.Backup) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(b); err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}
	return nil
}

// ReadBackup decodes a backup written by WriteBackup.
func ReadBackup(r io.Reader) (*model.Backup, error) {
	var b model.Backup
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return nil, fmt.Errorf("decode backup: %w", withOffset(err))
	}
	return &b, nil
}

// BackupFilename is the suggested file name for a backup taken at now.
func BackupFilename(now time.Time) string {
	return "mcq_backup_" + now.Format("20060102_150405") + ".json"
}

// ExportFilename is the suggested CSV file name for a user's export.
func ExportFilename(username string) string {
	return "mcq_questions_" + username + ".csv"
}
