package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/pavelanni/mcqdb/internal/model"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Variant identifies which generation template applies.
type Variant string

const (
	// VariantOpen lists the subject's full taxonomy and lets the model pick.
	VariantOpen Variant = "open"
	// VariantClassifications constrains classifications, topics are free.
	VariantClassifications Variant = "classifications"
	// VariantTopics constrains topics, classifications are free.
	VariantTopics Variant = "topics"
	// VariantBoth constrains both and forbids suggestions.
	VariantBoth Variant = "both"
)

var allVariants = []Variant{VariantOpen, VariantClassifications, VariantTopics, VariantBoth}

// Select picks the variant for the given selections.
func Select(hasClassifications, hasTopics bool) Variant {
	switch {
	case hasClassifications && hasTopics:
		return VariantBoth
	case hasClassifications:
		return VariantClassifications
	case hasTopics:
		return VariantTopics
	}
	return VariantOpen
}

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[Variant]*template.Template
)

var funcs = template.FuncMap{
	"join": func(items []string) string { return strings.Join(items, ", ") },
}

func load() error {
	loadOnce.Do(func() {
		base, err := template.New("prompt").Funcs(funcs).ParseFS(templateFS, "templates/base.tmpl")
		if err != nil {
			loadErr = fmt.Errorf("parse base template: %w", err)
			return
		}
		base = base.Lookup("base.tmpl")

		templates = make(map[Variant]*template.Template, len(allVariants))
		for _, v := range allVariants {
			name := "templates/" + string(v) + ".tmpl"
			content, err := templateFS.ReadFile(name)
			if err != nil {
				loadErr = fmt.Errorf("read prompt file %s: %w", name, err)
				return
			}
			t, err := base.Clone()
			if err != nil {
				loadErr = fmt.Errorf("clone base template: %w", err)
				return
			}
			if _, err := t.New(string(v)).Parse(string(content)); err != nil {
				loadErr = fmt.Errorf("parse prompt template %s: %w", name, err)
				return
			}
			templates[v] = t
		}
	})
	return loadErr
}

// Params describes one generation request.
type Params struct {
	Count    int
	Subject  string
	Level    model.Level
	Marks    int
	Username string

	// Selected constraints. Empty means unconstrained.
	Classifications []string
	Topics          []string

	// Full taxonomy for the subject, listed when the matching selection is empty.
	AvailableTopics          []string
	AvailableClassifications []string

	Unique           bool
	Seed             string
	AllowSuggestions bool
}

// Variant returns the template variant these params select.
func (p Params) Variant() Variant {
	return Select(len(p.Classifications) > 0, len(p.Topics) > 0)
}

// ErrInvalidParams is wrapped by Generate errors caused by bad Params.
var ErrInvalidParams = errors.New("invalid prompt parameters")

func (p Params) validate() error {
	switch {
	case p.Count < 1:
		return fmt.Errorf("%w: number of questions must be at least 1", ErrInvalidParams)
	case strings.TrimSpace(p.Subject) == "":
		return fmt.Errorf("%w: subject is required", ErrInvalidParams)
	case !p.Level.Valid():
		return fmt.Errorf("%w: invalid level %q", ErrInvalidParams, p.Level)
	case p.Marks < 1:
		return fmt.Errorf("%w: marks must be at least 1", ErrInvalidParams)
	}
	return nil
}

type templateData struct {
	Params
	FirstClassification    string
	SecondClassification   string
	FirstTopic             string
	SecondTopic            string
	Combinations           int
	SuggestTopics          bool
	SuggestClassifications bool
}

// firstTwo returns the first item and the second one, repeating the first
// when there is only one.
func firstTwo(items []string) (string, string) {
	switch len(items) {
	case 0:
		return "", ""
	case 1:
		return items[0], items[0]
	}
	return items[0], items[1]
}

// Generate renders the prompt for p. Identical params always produce identical text.
func Generate(p Params) (string, error) {
	if err := p.validate(); err != nil {
		return "", err
	}
	if err := load(); err != nil {
		return "", fmt.Errorf("templates load failed: %w", err)
	}

	v := p.Variant()
	data := templateData{
		Params:       p,
		Combinations: len(p.Classifications) * len(p.Topics),
	}
	data.FirstClassification, data.SecondClassification = firstTwo(p.Classifications)
	data.FirstTopic, data.SecondTopic = firstTwo(p.Topics)
	if p.AllowSuggestions {
		data.SuggestTopics = v == VariantOpen || v == VariantClassifications
		data.SuggestClassifications = v == VariantOpen || v == VariantTopics
	}

	var buf bytes.Buffer
	if err := templates[v].ExecuteTemplate(&buf, "base.tmpl", data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", v, err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// RandomSeed returns a variation seed of the form seed_YYYYMMDDhhmmss_NNNN.
func RandomSeed(now time.Time) string {
	return fmt.Sprintf("seed_%s_%d", now.Format("20060102150405"), 1000+rand.IntN(9000))
}
