package prompts

import (
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/pavelanni/mcqdb/internal/model"
)

func baseParams() Params {
	return Params{
		Count:                    5,
		Subject:                  "c",
		Level:                    model.LevelEasy,
		Marks:                    2,
		Username:                 "alice",
		AvailableTopics:          []string{"arrays", "pointers", "structures"},
		AvailableClassifications: []string{"Fundamentals", "Problem Solving"},
	}
}

func TestSelect(t *testing.T) {
	tests := []struct {
		class, topics bool
		want          Variant
	}{
		{false, false, VariantOpen},
		{true, false, VariantClassifications},
		{false, true, VariantTopics},
		{true, true, VariantBoth},
	}
	for _, tt := range tests {
		if got := Select(tt.class, tt.topics); got != tt.want {
			t.Errorf("Select(%v, %v) = %s, want %s", tt.class, tt.topics, got, tt.want)
		}
	}
}

func TestGenerateHeaderAndFormat(t *testing.T) {
	out, err := Generate(baseParams())
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	for _, want := range []string{
		"Generate 5 multiple choice questions in JSON format",
		"**Subject:** c\n**Level:** easy\n**Marks per question:** 2",
		`"subject": "c"`,
		`"level": "easy"`,
		`"marks": 2,`,
		`"created_by": "alice"`,
		"**Available Classifications for c:**\nFundamentals, Problem Solving",
		"**Available Topics for c:**\narrays, pointers, structures",
		"Feel free to suggest new topics or classifications",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(out, "suggested_") {
		t.Error("prompt should not request suggestions when not allowed")
	}
	if strings.Contains(out, "Generate Unique Questions") {
		t.Error("prompt should not contain unique block")
	}
	if strings.Contains(out, "<no value>") {
		t.Error("prompt contains unresolved template value")
	}
}

func TestGenerateTopicsOnly(t *testing.T) {
	p := baseParams()
	p.Topics = []string{"arrays", "pointers"}

	out, err := Generate(p)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if !strings.Contains(out, "**MUST USE THESE TOPICS:**\narrays, pointers") {
		t.Error("prompt should constrain topics")
	}
	if !strings.Contains(out, `"{classification3} of pointers"`) {
		t.Error("prompt should use the second topic in its example")
	}
	if strings.Contains(out, "MUST USE THESE CLASSIFICATIONS") {
		t.Error("topics-only prompt should not constrain classifications")
	}
	if strings.Contains(out, "suggested_") {
		t.Error("prompt should not request suggestions when not allowed")
	}

	p.AllowSuggestions = true
	out, err = Generate(p)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if !strings.Contains(out, `],
  "suggested_classifications": ["new_class1"]`) {
		t.Errorf("prompt should request suggested classifications:\n%s", out)
	}
	if strings.Contains(out, "suggested_topics") {
		t.Error("topics-only prompt should not request suggested topics")
	}
}

func TestGenerateSuggestions(t *testing.T) {
	tests := []struct {
		name            string
		classifications []string
		topics          []string
		wantTopics      bool
		wantClass       bool
	}{
		{"open", nil, nil, true, true},
		{"classifications only", []string{"Fundamentals"}, nil, true, false},
		{"topics only", nil, []string{"arrays"}, false, true},
		{"both", []string{"Fundamentals"}, []string{"arrays"}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := baseParams()
			p.Classifications = tt.classifications
			p.Topics = tt.topics
			p.AllowSuggestions = true
			out, err := Generate(p)
			if err != nil {
				t.Fatalf("Generate() error: %v", err)
			}
			if got := strings.Contains(out, `"suggested_topics"`); got != tt.wantTopics {
				t.Errorf("suggested_topics present = %v, want %v", got, tt.wantTopics)
			}
			if got := strings.Contains(out, `"suggested_classifications"`); got != tt.wantClass {
				t.Errorf("suggested_classifications present = %v, want %v", got, tt.wantClass)
			}
		})
	}
}

func TestGenerateOpenWithSuggestionsIsWellFormed(t *testing.T) {
	p := baseParams()
	p.AllowSuggestions = true
	out, err := Generate(p)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	want := `  ],
  "suggested_topics": ["new_topic1", "new_topic2"],  // Only if new topics found
  "suggested_classifications": ["new_class1"]  // Only if new classifications found
}`
	if !strings.Contains(out, want) {
		t.Errorf("prompt suggestion block malformed:\n%s", out)
	}
}

func TestGenerateBoth(t *testing.T) {
	p := baseParams()
	p.Classifications = []string{"Fundamentals", "Problem Solving"}
	p.Topics = []string{"arrays", "pointers", "structures"}

	out, err := Generate(p)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	for _, want := range []string{
		"**MUST USE THESE CLASSIFICATIONS:**\nFundamentals, Problem Solving",
		"**MUST USE THESE TOPICS:**\narrays, pointers, structures",
		"NO new topics or classifications should be suggested",
		`"Fundamentals of arrays", "Problem Solving of pointers"`,
		"if you have 2 classifications and 3 topics, you can create up to 6 different combinations",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(out, "Available Topics") {
		t.Error("both-constrained prompt should not list available topics")
	}
}

func TestGenerateClassificationsSingle(t *testing.T) {
	p := baseParams()
	p.Classifications = []string{"Fundamentals"}

	out, err := Generate(p)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if !strings.Contains(out, `"Fundamentals of {topic1}", "Fundamentals of {topic3}"`) {
		t.Error("single classification should repeat in examples")
	}
	if !strings.Contains(out, "**Available Topics for c:**") {
		t.Error("classifications-only prompt should list available topics")
	}
}

func TestGenerateUnique(t *testing.T) {
	p := baseParams()
	p.Unique = true

	out, err := Generate(p)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if !strings.Contains(out, "**IMPORTANT - Generate Unique Questions:**") {
		t.Error("prompt should contain unique block")
	}
	if strings.Contains(out, "variation seed") {
		t.Error("prompt should not mention a seed when none is given")
	}

	p.Seed = "seed_20240101120000_1234"
	out, err = Generate(p)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if !strings.Contains(out, "- Use this variation seed for uniqueness: 'seed_20240101120000_1234'\n- Base your question themes") {
		t.Error("prompt should embed the seed")
	}
	if !strings.Contains(out, "on this seed to ensure different outputs\n\nCreate questions") {
		t.Error("unique block should be followed by a blank line")
	}
}

func TestGenerateDeterministic(t *testing.T) {
	p := baseParams()
	p.Topics = []string{"arrays"}
	p.Unique = true
	p.Seed = "seed_x"
	a, err := Generate(p)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	b, err := Generate(p)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if a != b {
		t.Error("Generate() not deterministic for identical params")
	}
}

func TestGenerateRejectsBadParams(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Params)
	}{
		{"zero count", func(p *Params) { p.Count = 0 }},
		{"no subject", func(p *Params) { p.Subject = " " }},
		{"bad level", func(p *Params) { p.Level = "trivial" }},
		{"zero marks", func(p *Params) { p.Marks = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := baseParams()
			tt.mutate(&p)
			if _, err := Generate(p); !errors.Is(err, ErrInvalidParams) {
				t.Errorf("Generate() error = %v, want ErrInvalidParams", err)
			}
		})
	}
}

func TestRandomSeed(t *testing.T) {
	now := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)
	seed := RandomSeed(now)
	if !regexp.MustCompile(`^seed_20240305140709_[1-9]\d{3}$`).MatchString(seed) {
		t.Errorf("RandomSeed() = %q, want seed_20240305140709_NNNN", seed)
	}
}
