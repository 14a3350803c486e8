package model

import "time"

// Backup is the top-level JSON structure of a full database dump.
type Backup struct {
	BackupDate     time.Time          `json:"backup_date"`
	TotalQuestions int                `json:"total_questions"`
	Questions      []Question         `json:"questions"`
	SubjectData    map[string]Subject `json:"subject_data"`
}

// Subject holds the topics and classifications known for one subject.
type Subject struct {
	Topics          []string `json:"topics"`
	Classifications []string `json:"classifications"`
}
