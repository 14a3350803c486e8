package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func newTestSettings(t *testing.T) (*Settings, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.json")
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load(): %v", err)
	}
	return s, path
}

func TestLoadCreatesDefaults(t *testing.T) {
	s, path := newTestSettings(t)

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("settings file not created: %v", err)
	}
	subjects := s.Subjects()
	if len(subjects) != 9 {
		t.Errorf("Subjects() = %d entries, want 9", len(subjects))
	}
	if subjects[0] != "aptitude" {
		t.Errorf("Subjects()[0] = %q, want sorted order starting with aptitude", subjects[0])
	}
	topics := s.Topics("c")
	if len(topics) != 10 || topics[0] != "arrays" || topics[1] != "pointers" {
		t.Errorf("Topics(c) = %v", topics)
	}
	if got := s.Classifications("C "); len(got) != 4 {
		t.Errorf("Classifications(C) = %v, want 4 entries", got)
	}
	if got := s.Topics("rust"); got != nil {
		t.Errorf("Topics(rust) = %v, want nil", got)
	}
}

func TestAddSubject(t *testing.T) {
	s, path := newTestSettings(t)

	added, err := s.AddSubject("  Rust ")
	if err != nil || !added {
		t.Fatalf("AddSubject(Rust) = %v, %v; want true, nil", added, err)
	}
	if !s.HasSubject("rust") {
		t.Error("subject should be stored lowercased")
	}
	added, err = s.AddSubject("RUST")
	if err != nil || added {
		t.Errorf("AddSubject(RUST) again = %v, %v; want false, nil", added, err)
	}
	if _, err := s.AddSubject("   "); err != ErrEmptyName {
		t.Errorf("AddSubject(blank) error = %v, want ErrEmptyName", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load(): %v", err)
	}
	if !reloaded.HasSubject("rust") {
		t.Error("added subject not persisted")
	}
}

func TestAddTopicAndClassification(t *testing.T) {
	s, path := newTestSettings(t)

	added, err := s.AddTopic("c", "bit manipulation")
	if err != nil || !added {
		t.Fatalf("AddTopic() = %v, %v", added, err)
	}
	added, err = s.AddTopic("c", "bit manipulation")
	if err != nil || added {
		t.Errorf("AddTopic() duplicate = %v, %v; want false, nil", added, err)
	}

	added, err = s.AddClassification("go", "Concurrency")
	if err != nil || !added {
		t.Fatalf("AddClassification() on new subject = %v, %v", added, err)
	}
	if got := s.Topics("go"); got == nil || len(got) != 0 {
		t.Errorf("Topics(go) = %#v, want empty non-nil", got)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var onDisk struct {
		SubjectData map[string]struct {
			Topics          []string `json:"topics"`
			Classifications []string `json:"classifications"`
		} `json:"subject_data"`
	}
	if err := json.Unmarshal(raw, &onDisk); err != nil {
		t.Fatal(err)
	}
	if got := onDisk.SubjectData["go"].Classifications; !reflect.DeepEqual(got, []string{"Concurrency"}) {
		t.Errorf("persisted classifications = %v", got)
	}
	if got := onDisk.SubjectData["go"].Topics; got == nil {
		t.Error("persisted topics should be an empty list, not null")
	}
}

func TestTaxonomyIsCopy(t *testing.T) {
	s := InMemory()
	tax := s.Taxonomy()
	sub := tax["c"]
	sub.Topics[0] = "changed"
	if s.Topics("c")[0] != "arrays" {
		t.Error("Taxonomy() should return a copy")
	}
}

func TestAdminPassword(t *testing.T) {
	s, path := newTestSettings(t)

	if s.HasAdminPassword() || s.CheckAdminPassword("") {
		t.Fatal("fresh settings should have no admin password")
	}
	if err := s.SetAdminPassword("s3cret"); err != nil {
		t.Fatalf("SetAdminPassword(): %v", err)
	}
	if !s.CheckAdminPassword("s3cret") {
		t.Error("CheckAdminPassword(correct) = false")
	}
	if s.CheckAdminPassword("wrong") {
		t.Error("CheckAdminPassword(wrong) = true")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), "s3cret") {
		t.Error("password stored in plain text")
	}
}

func TestUsername(t *testing.T) {
	s, path := newTestSettings(t)
	if err := s.SetUsername(" alice "); err != nil {
		t.Fatal(err)
	}
	reloaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := reloaded.Username(); got != "alice" {
		t.Errorf("Username() = %q, want alice", got)
	}
}
