package model

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Level represents question difficulty.
type Level string

const (
	LevelEasy   Level = "easy"
	LevelMedium Level = "medium"
	LevelHard   Level = "hard"
)

// Levels lists the valid levels in display order.
var Levels = []Level{LevelEasy, LevelMedium, LevelHard}

// Valid reports whether l is one of the known levels.
func (l Level) Valid() bool {
	switch l {
	case LevelEasy, LevelMedium, LevelHard:
		return true
	}
	return false
}

// ParseLevel parses a level name case-insensitively.
func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	if !l.Valid() {
		return "", fmt.Errorf("invalid level %q", s)
	}
	return l, nil
}

// Question is a stored multiple-choice question.
// Field names on the wire match the interchange format used by imports and exports.
type Question struct {
	ID             string    `json:"id,omitempty" bson:"-"`
	Subject        string    `json:"subject" bson:"subject"`
	Topic          string    `json:"topic" bson:"topic"`
	Classification string    `json:"classification" bson:"classification"`
	Text           string    `json:"question" bson:"question"`
	Option1        string    `json:"option1" bson:"option1"`
	Option2        string    `json:"option2" bson:"option2"`
	Option3        string    `json:"option3" bson:"option3"`
	Option4        string    `json:"option4" bson:"option4"`
	CorrectAnswer  string    `json:"correctAnswer" bson:"correctAnswer"`
	Level          Level     `json:"level" bson:"level"`
	Marks          int       `json:"marks" bson:"marks"`
	CreatedBy      string    `json:"created_by" bson:"created_by"`
	CreatedAt      time.Time `json:"created_at,omitzero" bson:"created_at"`
	UpdatedAt      time.Time `json:"updated_at,omitzero" bson:"updated_at,omitempty"`
}

// Options returns the four answer options in order.
func (q Question) Options() [4]string {
	return [4]string{q.Option1, q.Option2, q.Option3, q.Option4}
}

// AnswerIndex returns the 1-based option number holding the correct answer, or 0.
func (q Question) AnswerIndex() int {
	for i, o := range q.Options() {
		if o == q.CorrectAnswer {
			return i + 1
		}
	}
	return 0
}

// UserStatus is the presence state of a user.
type UserStatus string

const (
	StatusOnline  UserStatus = "online"
	StatusOffline UserStatus = "offline"
)

// OnlineWindow is how recent last_active must be for a user to count as online.
const OnlineWindow = 5 * time.Minute

// MaxSessionHistory bounds the per-user session log.
const MaxSessionHistory = 100

// Profile holds optional user details.
type Profile struct {
	FullName   string `json:"full_name" bson:"full_name"`
	Email      string `json:"email" bson:"email"`
	Department string `json:"department" bson:"department"`
	Role       string `json:"role" bson:"role"`
	Bio        string `json:"bio" bson:"bio"`
}

// SessionRecord is one logged working session.
type SessionRecord struct {
	ID              string    `json:"id" bson:"id"`
	Start           time.Time `json:"start" bson:"start"`
	End             time.Time `json:"end" bson:"end"`
	DurationSeconds int64     `json:"duration_seconds" bson:"duration_seconds"`
}

// User is a person who authors or manages questions.
type User struct {
	Username         string          `json:"username" bson:"username"`
	Status           UserStatus      `json:"status" bson:"status"`
	LastActive       time.Time       `json:"last_active" bson:"last_active"`
	CreatedAt        time.Time       `json:"created_at" bson:"created_at"`
	Profile          Profile         `json:"profile" bson:"profile"`
	TotalSessions    int64           `json:"total_sessions" bson:"total_sessions"`
	TotalTimeSeconds int64           `json:"total_time_seconds" bson:"total_time_seconds"`
	QuestionsCreated int64           `json:"questions_created" bson:"questions_created"`
	Sessions         []SessionRecord `json:"sessions,omitempty" bson:"sessions"`
}

// Online reports whether the user is currently active as of now.
func (u User) Online(now time.Time) bool {
	return u.Status == StatusOnline && now.Sub(u.LastActive) <= OnlineWindow
}

// UserSession pairs a session record with its owner, for admin listings.
type UserSession struct {
	Username string `json:"username"`
	SessionRecord
}

// SubjectCount is one row of the subject distribution.
type SubjectCount struct {
	Subject string `json:"subject" bson:"_id"`
	Count   int64  `json:"count" bson:"count"`
}

// Stats summarizes the question bank.
type Stats struct {
	Total    int64          `json:"total"`
	Easy     int64          `json:"easy"`
	Medium   int64          `json:"medium"`
	Hard     int64          `json:"hard"`
	Subjects int64          `json:"subjects"`
	Mine     int64          `json:"mine"`
	Top      []SubjectCount `json:"top_subjects"`
}

// AdminSummary aggregates user activity for the admin view.
type AdminSummary struct {
	TotalUsers       int64 `json:"total_users"`
	OnlineUsers      int64 `json:"online_users"`
	TotalSessions    int64 `json:"total_sessions"`
	TotalTimeSeconds int64 `json:"total_time_seconds"`
	TotalQuestions   int64 `json:"total_questions"`
	QuestionsCreated int64 `json:"questions_created"`
}

type userCtxKey struct{}

// ContextWithUser stores the session username in the context.
func ContextWithUser(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, userCtxKey{}, username)
}

// UserFromContext retrieves the session username from context, or "".
func UserFromContext(ctx context.Context) string {
	u, _ := ctx.Value(userCtxKey{}).(string)
	return u
}
