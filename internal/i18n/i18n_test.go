package i18n

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	loc := NewLocalizer(lang)
	return WithLocalizer(context.Background(), loc)
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		lang string
		id   string
		want string
	}{
		{"en", "ErrorNotFound", "Question not found"},
		{"en", "ValidationMarks", "Marks must be a positive whole number"},
		{"ru", "ErrorNotFound", "Вопрос не найден"},
		{"ru", "ConfirmDeleteOwn", "Вы уверены, что хотите удалить свой вопрос?"},
	}
	for _, tt := range tests {
		t.Run(tt.lang+"/"+tt.id, func(t *testing.T) {
			ctx := initLang(t, tt.lang)
			if got := T(ctx, tt.id); got != tt.want {
				t.Errorf("T(%s) = %q, want %q", tt.id, got, tt.want)
			}
		})
	}
}

func TestPluralTranslation(t *testing.T) {
	tests := []struct {
		lang  string
		count int
		want  string
	}{
		{"en", 1, "Saved 1 question to database"},
		{"en", 5, "Saved 5 questions to database"},
		{"ru", 1, "Сохранён 1 вопрос"},
		{"ru", 3, "Сохранено 3 вопроса"},
		{"ru", 11, "Сохранено 11 вопросов"},
	}
	for _, tt := range tests {
		ctx := initLang(t, tt.lang)
		if got := Tp(ctx, "QuestionsSaved", tt.count); got != tt.want {
			t.Errorf("Tp(%s, %d) = %q, want %q", tt.lang, tt.count, got, tt.want)
		}
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "TopicAdded", map[string]any{"Name": "arrays", "Subject": "c"})
	if want := "Added new topic 'arrays' to subject 'c'"; got != want {
		t.Errorf("Td(TopicAdded) = %q, want %q", got, want)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "NonExistentKey")
	if got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

type confirmErr struct{ author string }

func (e *confirmErr) Error() string     { return "confirm " + e.author }
func (e *confirmErr) MessageID() string { return "ConfirmDeleteOther" }
func (e *confirmErr) TemplateData() map[string]any {
	return map[string]any{"Author": e.author}
}

type unknownErr struct{}

func (unknownErr) Error() string                { return "plain text" }
func (unknownErr) MessageID() string            { return "NoSuchMessage" }
func (unknownErr) TemplateData() map[string]any { return nil }

func TestErr(t *testing.T) {
	ctx := initLang(t, "ru")

	wrapped := fmt.Errorf("delete: %w", &confirmErr{author: "bob"})
	if got, want := Err(ctx, wrapped), "Этот вопрос создан пользователем 'bob'. Вы уверены, что хотите его удалить?"; got != want {
		t.Errorf("Err(confirm) = %q, want %q", got, want)
	}
	if got := Err(ctx, errors.New("boom")); got != "boom" {
		t.Errorf("Err(plain) = %q", got)
	}
	if got := Err(ctx, unknownErr{}); got != "plain text" {
		t.Errorf("Err(untranslated) = %q", got)
	}
}

func TestLanguages(t *testing.T) {
	initLang(t, "en")
	if n := len(Languages()); n != 2 {
		t.Errorf("Languages() = %d tags, want 2", n)
	}
}
