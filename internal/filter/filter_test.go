package filter

import (
	"reflect"
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/pavelanni/mcqdb/internal/model"
)

func TestBuildEmpty(t *testing.T) {
	tests := []struct {
		name string
		c    Criteria
	}{
		{"zero value", Criteria{}},
		{"all sentinels", Criteria{Subject: All, Topic: All, Classification: All, Level: All, Author: ScopeAll}},
		{"blank search", Criteria{Subject: All, Search: "   "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Build(tt.c, "alice")
			if !p.Empty() {
				t.Errorf("Build() = %+v, want empty predicate", p)
			}
			if got := p.BSON(); len(got) != 0 {
				t.Errorf("BSON() = %v, want empty document", got)
			}
			if where, args := p.SQL(); where != "1=1" || args != nil {
				t.Errorf("SQL() = %q %v, want 1=1", where, args)
			}
		})
	}
}

func TestBuildSubjectLevelMine(t *testing.T) {
	p := Build(Criteria{Subject: "python", Level: "easy", Author: ScopeMine}, "alice")

	want := []Equal{
		{Field: FieldSubject, Value: "python"},
		{Field: FieldLevel, Value: "easy"},
		{Field: FieldCreatedBy, Value: "alice"},
	}
	if !reflect.DeepEqual(p.Equals, want) {
		t.Errorf("Equals = %+v, want %+v", p.Equals, want)
	}
	if p.Search != "" {
		t.Errorf("Search = %q, want empty", p.Search)
	}

	doc := p.BSON()
	wantDoc := bson.D{
		{Key: "subject", Value: "python"},
		{Key: "level", Value: "easy"},
		{Key: "created_by", Value: "alice"},
	}
	if !reflect.DeepEqual(doc, wantDoc) {
		t.Errorf("BSON() = %v, want %v", doc, wantDoc)
	}
}

func TestSearchBSONQuotesPattern(t *testing.T) {
	p := Build(Criteria{Search: " a+b? "}, "alice")
	doc := p.BSON()
	if len(doc) != 1 || doc[0].Key != "$or" {
		t.Fatalf("BSON() = %v, want single $or", doc)
	}
	or, ok := doc[0].Value.(bson.A)
	if !ok || len(or) != len(SearchFields) {
		t.Fatalf("$or = %v, want %d alternatives", doc[0].Value, len(SearchFields))
	}
	first := or[0].(bson.D)
	cond := first[0].Value.(bson.D)
	if cond[0].Value != `a\+b\?` {
		t.Errorf("$regex = %v, want quoted literal", cond[0].Value)
	}
	if cond[1].Value != "i" {
		t.Errorf("$options = %v, want i", cond[1].Value)
	}
}

func TestSQL(t *testing.T) {
	p := Build(Criteria{Topic: "loops", Search: "50%"}, "")
	where, args := p.SQL()
	if !strings.HasPrefix(where, "topic = ? AND (mcq_fold(question) LIKE ?") {
		t.Errorf("SQL() where = %q", where)
	}
	if len(args) != 1+len(SearchFields) {
		t.Fatalf("SQL() args = %d, want %d", len(args), 1+len(SearchFields))
	}
	if args[1] != `%50\%%` {
		t.Errorf("like arg = %q, want escaped percent", args[1])
	}
}

func TestMatch(t *testing.T) {
	records := []model.Question{
		{Subject: "python", Topic: "lists", Level: model.LevelEasy, CreatedBy: "alice", Text: "What does append do?"},
		{Subject: "python", Topic: "classes", Level: model.LevelHard, CreatedBy: "bob", Text: "Explain MRO"},
		{Subject: "java", Topic: "streams", Level: model.LevelEasy, CreatedBy: "alice", Text: "What is a stream?"},
	}

	tests := []struct {
		name string
		c    Criteria
		want int
	}{
		{"everything", Criteria{}, 3},
		{"python easy mine", Criteria{Subject: "python", Level: "easy", Author: ScopeMine}, 1},
		{"search case-insensitive", Criteria{Search: "STREAM"}, 1},
		{"search author field", Criteria{Search: "bob"}, 1},
		{"search and subject", Criteria{Subject: "python", Search: "what"}, 1},
		{"no match", Criteria{Subject: "c"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Build(tt.c, "alice")
			got := 0
			for _, q := range records {
				if p.Match(q) {
					got++
				}
			}
			if got != tt.want {
				t.Errorf("Match() count = %d, want %d", got, tt.want)
			}
		})
	}
}
