package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func TestBuildMessages(t *testing.T) {
	msgs := buildMessages("Generate 3 questions")
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != openai.ChatMessageRoleSystem || !strings.Contains(msgs[0].Content, "JSON") {
		t.Errorf("system message = %+v", msgs[0])
	}
	if msgs[1].Role != openai.ChatMessageRoleUser || msgs[1].Content != "Generate 3 questions" {
		t.Errorf("user message = %+v", msgs[1])
	}
}

func fakeServer(t *testing.T, content string, choices bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Model != "test-model" || req.ResponseFormat == nil {
			http.Error(w, "unexpected request", http.StatusBadRequest)
			return
		}
		resp := openai.ChatCompletionResponse{Model: req.Model}
		if choices {
			resp.Choices = []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
			}}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerateQuestions(t *testing.T) {
	tests := []struct {
		name    string
		content string
		choices bool
		want    string
		wantErr error
	}{
		{"reply", ` {"questions": []} `, true, `{"questions": []}`, nil},
		{"no choices", "", false, "", ErrEmptyResponse},
		{"blank content", "  ", true, "", ErrEmptyResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := fakeServer(t, tt.content, tt.choices)
			c := New(srv.URL+"/v1", "test-key", "test-model")
			got, err := c.GenerateQuestions(context.Background(), "prompt")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("GenerateQuestions() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("GenerateQuestions() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGenerateQuestionsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "boom"}}`, http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	c := New(srv.URL+"/v1", "k", "test-model")
	if _, err := c.GenerateQuestions(context.Background(), "prompt"); err == nil {
		t.Fatal("GenerateQuestions() error = nil, want API error")
	}
}
