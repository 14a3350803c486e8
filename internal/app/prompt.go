package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pavelanni/mcqdb/internal/llm/prompts"
	"github.com/pavelanni/mcqdb/internal/model"
	"github.com/pavelanni/mcqdb/internal/transfer"
)

// PromptRequest is what a user selects when generating a prompt.
type PromptRequest struct {
	Count            int         `json:"count"`
	Subject          string      `json:"subject"`
	Level            model.Level `json:"level"`
	Marks            int         `json:"marks"`
	Topics           []string    `json:"topics"`
	Classifications  []string    `json:"classifications"`
	Unique           bool        `json:"unique"`
	Seed             string      `json:"seed"`
	RandomSeed       bool        `json:"random_seed"`
	AllowSuggestions bool        `json:"allow_suggestions"`
}

// Prompt is a rendered generation prompt.
type Prompt struct {
	Variant prompts.Variant `json:"variant"`
	Seed    string          `json:"seed,omitempty"`
	Text    string          `json:"prompt"`
}

// Prompt renders the generation prompt for req, listing the subject's taxonomy
// from the settings. Identical requests render identical prompts unless
// RandomSeed asks for a fresh seed where none is given.
func (s *Session) Prompt(req PromptRequest) (*Prompt, error) {
	subject := strings.ToLower(strings.TrimSpace(req.Subject))
	p := prompts.Params{
		Count:                    req.Count,
		Subject:                  subject,
		Level:                    model.Level(strings.ToLower(string(req.Level))),
		Marks:                    req.Marks,
		Username:                 s.Username,
		Classifications:          req.Classifications,
		Topics:                   req.Topics,
		AvailableTopics:          s.Settings.Topics(subject),
		AvailableClassifications: s.Settings.Classifications(subject),
		Unique:                   req.Unique,
		Seed:                     req.Seed,
		AllowSuggestions:         req.AllowSuggestions,
	}
	if req.RandomSeed && p.Seed == "" {
		p.Seed = prompts.RandomSeed(time.Now())
	}
	text, err := prompts.Generate(p)
	if err != nil {
		return nil, err
	}
	return &Prompt{Variant: p.Variant(), Seed: p.Seed, Text: text}, nil
}

// Generator sends a prompt to a language model and returns its raw reply.
type Generator interface {
	GenerateQuestions(ctx context.Context, prompt string) (string, error)
}

// Generate sends the prompt to gen and decodes the reply as a question batch.
func (s *Session) Generate(ctx context.Context, gen Generator, p *Prompt) (*transfer.Batch, error) {
	raw, err := gen.GenerateQuestions(ctx, p.Text)
	if err != nil {
		return nil, fmt.Errorf("generate questions: %w", err)
	}
	b, err := transfer.DecodeBatch([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("decode generated questions: %w", err)
	}
	return b, nil
}
