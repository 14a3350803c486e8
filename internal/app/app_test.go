package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/pavelanni/mcqdb/internal/filter"
	"github.com/pavelanni/mcqdb/internal/model"
	"github.com/pavelanni/mcqdb/internal/page"
	"github.com/pavelanni/mcqdb/internal/settings"
	"github.com/pavelanni/mcqdb/internal/store"
	"github.com/pavelanni/mcqdb/internal/validate"
)

func newTestSession(t *testing.T, username string) *Session {
	t.Helper()
	s, err := store.Open(context.Background(), store.Config{URI: ":memory:"})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close(context.Background()) })
	if err := s.TouchUser(context.Background(), username, time.Now().UTC()); err != nil {
		t.Fatal(err)
	}
	return &Session{Store: s, Settings: settings.InMemory(), Username: username, Sizing: page.DefaultSizing()}
}

func question(subject, text string) model.Question {
	return model.Question{
		Subject: subject, Topic: "lists", Classification: "Basics", Text: text,
		Option1: "a", Option2: "b", Option3: "c", Option4: "d",
		CorrectAnswer: "b", Level: model.LevelEasy, Marks: 1,
	}
}

// as returns a session for another user over the same store and settings.
func as(s *Session, username string) *Session {
	other := *s
	other.Username = username
	return &other
}

func TestCreateAndUpdate(t *testing.T) {
	s := newTestSession(t, "alice")
	ctx := context.Background()

	in := question(" python ", "What is a list?")
	in.CreatedBy = "mallory"
	in.Level = "Easy"
	q, err := s.Create(ctx, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if q.ID == "" || q.CreatedBy != "alice" || q.Subject != "python" || q.Level != model.LevelEasy {
		t.Errorf("created = %+v", q)
	}
	if _, err := s.Create(ctx, in); !errors.Is(err, ErrDuplicate) {
		t.Errorf("second Create = %v, want ErrDuplicate", err)
	}
	bad := question("python", "bad")
	bad.CorrectAnswer = "nope"
	var verr *validate.Error
	if _, err := s.Create(ctx, bad); !errors.As(err, &verr) {
		t.Errorf("Create(invalid) = %v, want *validate.Error", err)
	}
	u, _ := s.Store.GetUser(ctx, "alice")
	if u.QuestionsCreated != 1 {
		t.Errorf("QuestionsCreated = %d, want 1", u.QuestionsCreated)
	}

	edit := *q
	edit.Text = "What is a Python list?"
	edit.Marks = 2
	edit.CreatedBy = "bob"
	updated, err := as(s, "bob").Update(ctx, q.ID, edit)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.CreatedBy != "alice" || updated.UpdatedAt.IsZero() {
		t.Errorf("updated = %+v", updated)
	}
	got, _ := s.Get(ctx, q.ID)
	if got.Text != "What is a Python list?" || got.Marks != 2 || got.CreatedBy != "alice" {
		t.Errorf("stored = %+v", got)
	}

	edit.Marks = 0
	if _, err := s.Update(ctx, q.ID, edit); !errors.As(err, &verr) || verr.Code != validate.CodeMarks {
		t.Errorf("Update(marks 0) = %v", err)
	}
	if _, err := s.Update(ctx, "65f0c0ffee0000000000abcd", edit); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update(missing) = %v, want ErrNotFound", err)
	}
	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) = %v, want ErrNotFound", err)
	}
}

func TestDeleteConfirmation(t *testing.T) {
	s := newTestSession(t, "alice")
	ctx := context.Background()
	own, err := s.Create(ctx, question("c", "mine"))
	if err != nil {
		t.Fatal(err)
	}
	theirs, err := as(s, "bob").Create(ctx, question("c", "theirs"))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		id      string
		c       Confirmation
		wantOwn bool
		deleted bool
	}{
		{"own unconfirmed", own.ID, Confirmation{}, true, false},
		{"other confirmed without author", theirs.ID, Confirmation{Confirmed: true}, false, false},
		{"other wrong author", theirs.ID, Confirmation{Confirmed: true, Author: "carol"}, false, false},
		{"other author without confirm", theirs.ID, Confirmation{Author: "bob"}, false, false},
		{"other confirmed", theirs.ID, Confirmation{Confirmed: true, Author: "bob"}, false, true},
		{"own confirmed", own.ID, Confirmation{Confirmed: true}, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Delete(ctx, tt.id, tt.c)
			if tt.deleted {
				if err != nil {
					t.Fatalf("Delete: %v", err)
				}
				if _, err := s.Get(ctx, tt.id); !errors.Is(err, ErrNotFound) {
					t.Errorf("record still present: %v", err)
				}
				return
			}
			var cerr *ConfirmationError
			if !errors.As(err, &cerr) {
				t.Fatalf("Delete = %v, want *ConfirmationError", err)
			}
			if cerr.Own != tt.wantOwn {
				t.Errorf("Own = %v, want %v", cerr.Own, tt.wantOwn)
			}
			if _, err := s.Get(ctx, tt.id); err != nil {
				t.Errorf("record deleted without confirmation: %v", err)
			}
		})
	}

	if err := s.Delete(ctx, own.ID, Confirmation{Confirmed: true}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete(deleted) = %v, want ErrNotFound", err)
	}
}

func TestConfirmationMessages(t *testing.T) {
	s := &Session{Username: "alice"}
	if got := s.DeleteCheck(model.Question{CreatedBy: "alice"}).Error(); got != "Are you sure you want to delete your question?" {
		t.Errorf("own = %q", got)
	}
	want := "This question was created by 'bob'. Are you sure you want to delete it?"
	if got := s.DeleteCheck(model.Question{CreatedBy: "bob"}).Error(); got != want {
		t.Errorf("other = %q, want %q", got, want)
	}
	if got := s.DeleteCheck(model.Question{}).Author; got != "Unknown" {
		t.Errorf("Author for empty created_by = %q", got)
	}
}

func TestBrowsePaginates(t *testing.T) {
	s := newTestSession(t, "alice")
	ctx := context.Background()
	var qs []model.Question
	for i := range 23 {
		q := question("python", fmt.Sprintf("q%02d", i))
		q.CreatedBy = "alice"
		q.CreatedAt = time.Date(2024, 1, 1, 0, i, 0, 0, time.UTC)
		qs = append(qs, q)
	}
	java := question("java", "j")
	java.CreatedBy = "bob"
	qs = append(qs, java)
	if _, err := s.Store.InsertQuestions(ctx, qs); err != nil {
		t.Fatal(err)
	}

	c := filter.Criteria{Subject: "python"}
	seen := map[string]bool{}
	for index := 0; ; index++ {
		r, err := s.Browse(ctx, c, index, 0)
		if err != nil {
			t.Fatalf("Browse: %v", err)
		}
		if r.Page.Total != 23 || r.Page.TotalPages != 3 {
			t.Fatalf("page = %+v", r.Page)
		}
		for _, q := range r.Questions {
			if seen[q.ID] {
				t.Errorf("question %s on two pages", q.Text)
			}
			seen[q.ID] = true
		}
		if !r.Page.HasNext {
			if len(r.Questions) != 3 {
				t.Errorf("last page has %d questions, want 3", len(r.Questions))
			}
			break
		}
	}
	if len(seen) != 23 {
		t.Errorf("saw %d questions, want 23", len(seen))
	}

	r, err := s.Browse(ctx, c, 0, 800)
	if err != nil {
		t.Fatal(err)
	}
	if r.Page.Size != page.CompactSize || len(r.Questions) != page.CompactSize {
		t.Errorf("narrow page size = %d", r.Page.Size)
	}
	if r.Questions[0].Text != "q22" {
		t.Errorf("first = %q, want newest", r.Questions[0].Text)
	}

	r, err = s.Browse(ctx, filter.Criteria{Author: filter.ScopeMine, Search: "J"}, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if r.Page.Total != 0 {
		t.Errorf("mine+search = %d results, want 0", r.Page.Total)
	}
}

func TestStatsAndFilterOptions(t *testing.T) {
	s := newTestSession(t, "alice")
	ctx := context.Background()
	for i := range 12 {
		q := question(fmt.Sprintf("subject%02d", i), "q")
		q.Topic = fmt.Sprintf("topic%d", i%3)
		if _, err := s.Create(ctx, q); err != nil {
			t.Fatal(err)
		}
	}
	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Total != 12 || st.Mine != 12 || st.Subjects != 12 || len(st.Top) != TopSubjects {
		t.Errorf("Stats = %+v", st)
	}

	all, err := s.FilterOptions(ctx, filter.All)
	if err != nil {
		t.Fatal(err)
	}
	if len(all.Topics) != 3 || all.Topics[0] != "topic0" {
		t.Errorf("All topics = %v", all.Topics)
	}
	py, err := s.FilterOptions(ctx, "python")
	if err != nil {
		t.Fatal(err)
	}
	if len(py.Topics) != len(s.Settings.Topics("python")) || len(py.Levels) != 3 {
		t.Errorf("python options = %+v", py)
	}
}

func TestAdminSummary(t *testing.T) {
	s := newTestSession(t, "alice")
	ctx := context.Background()
	if _, err := s.Create(ctx, question("c", "q")); err != nil {
		t.Fatal(err)
	}
	old := time.Now().UTC().Add(-time.Hour)
	if err := s.Store.TouchUser(ctx, "bob", old); err != nil {
		t.Fatal(err)
	}
	if err := s.Store.EndSession(ctx, "bob", model.SessionRecord{ID: "b1", Start: old, End: old.Add(30 * time.Minute), DurationSeconds: 1800}); err != nil {
		t.Fatal(err)
	}

	v, err := s.AdminSummary(ctx)
	if err != nil {
		t.Fatalf("AdminSummary: %v", err)
	}
	want := model.AdminSummary{TotalUsers: 2, OnlineUsers: 1, TotalSessions: 1, TotalTimeSeconds: 1800, TotalQuestions: 1, QuestionsCreated: 1}
	if v.Summary != want {
		t.Errorf("Summary = %+v, want %+v", v.Summary, want)
	}
	if len(v.Users) != 2 || !v.Users[0].Online || v.Users[1].Online || v.Users[1].TotalTime != "30m" {
		t.Errorf("Users = %+v", v.Users)
	}

	d, err := s.UserDetails(ctx, "bob")
	if err != nil {
		t.Fatalf("UserDetails: %v", err)
	}
	if len(d.Recent) != 1 || d.Recent[0].ID != "b1" || d.Authored != 0 || d.Sessions != nil {
		t.Errorf("UserDetails = %+v", d)
	}
	if _, err := s.UserDetails(ctx, "nobody"); !errors.Is(err, ErrUnknownUser) {
		t.Errorf("UserDetails(nobody) = %v, want ErrUnknownUser", err)
	}
}

func TestBackup(t *testing.T) {
	s := newTestSession(t, "alice")
	ctx := context.Background()
	if _, err := s.Create(ctx, question("c", "q")); err != nil {
		t.Fatal(err)
	}
	b, err := s.Backup(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if b.TotalQuestions != 1 || len(b.SubjectData) != len(s.Settings.Subjects()) {
		t.Errorf("Backup = %+v", b)
	}
}
