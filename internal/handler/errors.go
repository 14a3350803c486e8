package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/pavelanni/mcqdb/internal/app"
	"github.com/pavelanni/mcqdb/internal/i18n"
	"github.com/pavelanni/mcqdb/internal/llm/prompts"
	"github.com/pavelanni/mcqdb/internal/model"
	"github.com/pavelanni/mcqdb/internal/settings"
	"github.com/pavelanni/mcqdb/internal/store"
	"github.com/pavelanni/mcqdb/internal/transfer"
	"github.com/pavelanni/mcqdb/internal/validate"
)

var errNoGenerator = errors.New("no language model configured")

// badRequestError marks malformed client input.
type badRequestError struct{ err error }

func badRequest(err error) error { return &badRequestError{err: err} }

func (e *badRequestError) Error() string     { return e.err.Error() }
func (e *badRequestError) Unwrap() error     { return e.err }
func (e *badRequestError) MessageID() string { return "ErrorBadRequest" }
func (e *badRequestError) TemplateData() map[string]any {
	return map[string]any{"Detail": e.err.Error()}
}

type errorResponse struct {
	Error string `json:"error"`
}

func statusOf(err error) int {
	var (
		verr *validate.Error
		cerr *app.ConfirmationError
		berr *badRequestError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &cerr), errors.Is(err, app.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, app.ErrNotFound), errors.Is(err, app.ErrUnknownUser):
		return http.StatusNotFound
	case errors.Is(err, store.ErrUnavailable), errors.Is(err, errNoGenerator):
		return http.StatusServiceUnavailable
	case errors.Is(err, transfer.ErrNoQuestions),
		errors.Is(err, prompts.ErrInvalidParams),
		errors.Is(err, settings.ErrEmptyName),
		errors.As(err, &berr):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func messageOf(ctx context.Context, err error) string {
	switch {
	case errors.Is(err, app.ErrNotFound):
		return i18n.T(ctx, "ErrorNotFound")
	case errors.Is(err, app.ErrDuplicate):
		return i18n.T(ctx, "ErrorDuplicate")
	case errors.Is(err, app.ErrUnknownUser):
		return i18n.T(ctx, "ErrorUnknownUser")
	case errors.Is(err, store.ErrUnavailable):
		return i18n.T(ctx, "ErrorUnavailable")
	case errors.Is(err, transfer.ErrNoQuestions):
		return i18n.T(ctx, "ErrorNoQuestions")
	}
	if statusOf(err) == http.StatusInternalServerError {
		return i18n.T(ctx, "ErrorInternal")
	}
	return i18n.Err(ctx, err)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	attrs := []any{
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"username", model.UserFromContext(r.Context()),
		"error", err,
	}
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", attrs...)
	} else {
		slog.Debug("request rejected", attrs...)
	}
	writeJSON(w, status, errorResponse{Error: messageOf(r.Context(), err)})
}
