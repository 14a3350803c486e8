package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pavelanni/mcqdb/internal/llm/prompts"
	"github.com/pavelanni/mcqdb/internal/model"
	"github.com/pavelanni/mcqdb/internal/transfer"
)

func TestPrompt(t *testing.T) {
	s := newTestSession(t, "alice")
	p, err := s.Prompt(PromptRequest{Count: 5, Subject: "C", Level: "Easy", Marks: 1, Topics: []string{"arrays"}})
	if err != nil {
		t.Fatalf("Prompt: %v", err)
	}
	if p.Variant != prompts.VariantTopics || p.Seed != "" {
		t.Errorf("prompt = %+v", p)
	}
	if !strings.Contains(p.Text, "arrays") {
		t.Error("prompt should name the selected topic")
	}

	unique := PromptRequest{Count: 3, Subject: "c", Level: model.LevelHard, Marks: 2, Unique: true}
	first, err := s.Prompt(unique)
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Prompt(unique)
	if err != nil {
		t.Fatal(err)
	}
	if first.Seed != "" || first.Text != second.Text {
		t.Errorf("identical unique requests gave seed %q and differing text", first.Seed)
	}

	unique.Seed = "seed_fixed"
	p, err = s.Prompt(unique)
	if err != nil {
		t.Fatal(err)
	}
	if p.Seed != "seed_fixed" || !strings.Contains(p.Text, "seed_fixed") {
		t.Errorf("supplied seed lost: %q", p.Seed)
	}

	unique.Seed, unique.RandomSeed = "", true
	p, err = s.Prompt(unique)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(p.Seed, "seed_") || !strings.Contains(p.Text, p.Seed) {
		t.Errorf("random seed %q not in text", p.Seed)
	}

	if _, err := s.Prompt(PromptRequest{Subject: "c", Level: "easy", Marks: 1}); !errors.Is(err, prompts.ErrInvalidParams) {
		t.Errorf("Prompt(count 0) = %v, want ErrInvalidParams", err)
	}
}

type fakeGenerator struct {
	reply string
	err   error
}

func (g fakeGenerator) GenerateQuestions(context.Context, string) (string, error) {
	return g.reply, g.err
}

func TestGenerate(t *testing.T) {
	s := newTestSession(t, "alice")
	p := &Prompt{Text: "prompt"}

	b, err := s.Generate(context.Background(), fakeGenerator{reply: `{"questions": [{"subject": "c", "question": "q"}]}`}, p)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(b.Questions) != 1 {
		t.Errorf("questions = %d", len(b.Questions))
	}
	if _, err := s.Generate(context.Background(), fakeGenerator{reply: `{"questions": []}`}, p); !errors.Is(err, transfer.ErrNoQuestions) {
		t.Errorf("Generate(empty) = %v, want ErrNoQuestions", err)
	}
	boom := errors.New("boom")
	if _, err := s.Generate(context.Background(), fakeGenerator{err: boom}, p); !errors.Is(err, boom) {
		t.Errorf("Generate(error) = %v", err)
	}
}
