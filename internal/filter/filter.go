// Package filter turns user-facing browse criteria into a store query predicate.
package filter

import (
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/pavelanni/mcqdb/internal/model"
)

// All is the sentinel meaning "no constraint" for a scalar criterion.
const All = "All"

// Scope restricts results by author.
type Scope string

const (
	ScopeAll  Scope = "all"
	ScopeMine Scope = "mine"
)

// Criteria holds the browse selections for one query.
type Criteria struct {
	Subject        string `json:"subject"`
	Topic          string `json:"topic"`
	Classification string `json:"classification"`
	Level          string `json:"level"`
	Author         Scope  `json:"author"`
	Search         string `json:"search"`
}

// Field names as stored.
const (
	FieldSubject        = "subject"
	FieldTopic          = "topic"
	FieldClassification = "classification"
	FieldLevel          = "level"
	FieldCreatedBy      = "created_by"
	FieldQuestion       = "question"
)

// SearchFields are the fields a free-text search looks into.
var SearchFields = []string{FieldQuestion, FieldSubject, FieldTopic, FieldClassification, FieldCreatedBy}

// Equal is a single field equality constraint.
type Equal struct {
	Field string
	Value string
}

// Predicate is a conjunction of equality constraints and an optional
// case-insensitive substring search across SearchFields.
type Predicate struct {
	Equals []Equal
	Search string
}

// Build converts criteria into a predicate for the given session user.
func Build(c Criteria, currentUser string) Predicate {
	var p Predicate
	add := func(field, value string) {
		value = strings.TrimSpace(value)
		if value == "" || value == All {
			return
		}
		p.Equals = append(p.Equals, Equal{Field: field, Value: value})
	}
	add(FieldSubject, c.Subject)
	add(FieldTopic, c.Topic)
	add(FieldClassification, c.Classification)
	add(FieldLevel, c.Level)
	if c.Author == ScopeMine {
		p.Equals = append(p.Equals, Equal{Field: FieldCreatedBy, Value: currentUser})
	}
	p.Search = strings.TrimSpace(c.Search)
	return p
}

// Empty reports whether the predicate matches every record.
func (p Predicate) Empty() bool {
	return len(p.Equals) == 0 && p.Search == ""
}

// BSON renders the predicate as a MongoDB filter document.
func (p Predicate) BSON() bson.D {
	doc := bson.D{}
	for _, e := range p.Equals {
		doc = append(doc, bson.E{Key: e.Field, Value: e.Value})
	}
	if p.Search != "" {
		pattern := regexp.QuoteMeta(p.Search)
		or := bson.A{}
		for _, f := range SearchFields {
			or = append(or, bson.D{{Key: f, Value: bson.D{
				{Key: "$regex", Value: pattern},
				{Key: "$options", Value: "i"},
			}}})
		}
		doc = append(doc, bson.E{Key: "$or", Value: or})
	}
	return doc
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// FoldFunc names the SQL function that folds text case the way
// strings.ToLower does. The SQL store registers it.
const FoldFunc = "mcq_fold"

// SQL renders the predicate as a WHERE clause (without the keyword) and its
// arguments. An empty predicate renders as "1=1".
func (p Predicate) SQL() (string, []any) {
	var clauses []string
	var args []any
	for _, e := range p.Equals {
		clauses = append(clauses, e.Field+" = ?")
		args = append(args, e.Value)
	}
	if p.Search != "" {
		like := "%" + likeEscaper.Replace(strings.ToLower(p.Search)) + "%"
		var or []string
		for _, f := range SearchFields {
			or = append(or, FoldFunc+"("+f+`) LIKE ? ESCAPE '\'`)
			args = append(args, like)
		}
		clauses = append(clauses, "("+strings.Join(or, " OR ")+")")
	}
	if len(clauses) == 0 {
		return "1=1", nil
	}
	return strings.Join(clauses, " AND "), args
}

// Match evaluates the predicate against a record in memory.
func (p Predicate) Match(q model.Question) bool {
	for _, e := range p.Equals {
		if fieldValue(q, e.Field) != e.Value {
			return false
		}
	}
	if p.Search == "" {
		return true
	}
	needle := strings.ToLower(p.Search)
	for _, f := range SearchFields {
		if strings.Contains(strings.ToLower(fieldValue(q, f)), needle) {
			return true
		}
	}
	return false
}

func fieldValue(q model.Question, field string) string {
	switch field {
	case FieldSubject:
		return q.Subject
	case FieldTopic:
		return q.Topic
	case FieldClassification:
		return q.Classification
	case FieldLevel:
		return string(q.Level)
	case FieldCreatedBy:
		return q.CreatedBy
	case FieldQuestion:
		return q.Text
	}
	return ""
}
