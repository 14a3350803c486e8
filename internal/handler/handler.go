// Package handler serves the question bank as a JSON API.
package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/mcqdb/internal/app"
	"github.com/pavelanni/mcqdb/internal/filter"
	"github.com/pavelanni/mcqdb/internal/i18n"
	"github.com/pavelanni/mcqdb/internal/model"
)

// maxBodyBytes bounds request bodies, including uploaded import files.
const maxBodyBytes = 10 << 20

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	session *app.Session
	gen     app.Generator
}

// New creates a new Handler. gen may be nil when no language model is
// configured; prompts can then be rendered but not sent.
func New(s *app.Session, gen app.Generator) *Handler {
	return &Handler{session: s, gen: gen}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Use(h.withUser)
	r.Get("/healthz", h.handleHealth)

	r.Get("/questions", h.handleBrowse)
	r.Post("/questions", h.handleCreate)
	r.Get("/questions/{id}", h.handleGet)
	r.Put("/questions/{id}", h.handleUpdate)
	r.Delete("/questions/{id}", h.handleDelete)
	r.Get("/filters", h.handleFilterOptions)
	r.Get("/stats", h.handleStats)

	r.Post("/import/json", h.handleImportJSON)
	r.Post("/import/csv", h.handleImportCSV)
	r.Get("/export.csv", h.handleExportCSV)
	r.Get("/backup", h.handleBackup)
	r.Post("/prompts", h.handlePrompt)

	r.Get("/taxonomy", h.handleTaxonomy)
	r.Post("/taxonomy", h.handleAddSubject)
	r.Post("/taxonomy/{subject}/topics", h.handleAddTopic)
	r.Post("/taxonomy/{subject}/classifications", h.handleAddClassification)

	r.Get("/profile", h.handleProfile)
	r.Put("/profile", h.handleUpdateProfile)

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.requireAdmin)
		r.Get("/users", h.handleAdminUsers)
		r.Get("/users/{username}", h.handleAdminUser)
	})
}

// withUser tags the request context with the session user for logging.
func (h *Handler) withUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := model.ContextWithUser(r.Context(), h.session.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "app": i18n.T(r.Context(), "AppTitle")})
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		return badRequest(fmt.Errorf("decode request body: %w", err))
	}
	return nil
}

// criteriaFromQuery reads browse criteria from the query string. Missing
// scalar criteria mean "All".
func criteriaFromQuery(r *http.Request) filter.Criteria {
	q := r.URL.Query()
	orAll := func(key string) string {
		if v := q.Get(key); v != "" {
			return v
		}
		return filter.All
	}
	scope := filter.ScopeAll
	if filter.Scope(q.Get("author")) == filter.ScopeMine {
		scope = filter.ScopeMine
	}
	return filter.Criteria{
		Subject:        orAll("subject"),
		Topic:          orAll("topic"),
		Classification: orAll("classification"),
		Level:          orAll("level"),
		Author:         scope,
		Search:         q.Get("search"),
	}
}

// intParam parses an optional integer query parameter.
func intParam(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, badRequest(fmt.Errorf("parameter %s: %w", key, err))
	}
	return n, nil
}

// boolParam parses an optional boolean query parameter.
func boolParam(r *http.Request, key string, def bool) (bool, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, badRequest(fmt.Errorf("parameter %s: %w", key, err))
	}
	return b, nil
}
