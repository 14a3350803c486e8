package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/mcqdb/internal/app"
	"github.com/pavelanni/mcqdb/internal/i18n"
	"github.com/pavelanni/mcqdb/internal/model"
)

type browseResponse struct {
	*app.Result
	Summary string `json:"summary"`
}

// handleBrowse lists one page of questions. The page parameter is 1-based;
// width is the client's display width in pixels.
func (h *Handler) handleBrowse(w http.ResponseWriter, r *http.Request) {
	pageNum, err := intParam(r, "page", 1)
	if err != nil {
		writeError(w, r, err)
		return
	}
	width, err := intParam(r, "width", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.session.Browse(r.Context(), criteriaFromQuery(r), pageNum-1, width)
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary := i18n.Td(r.Context(), "PageOf", map[string]any{
		"Page":  res.Page.Index + 1,
		"Pages": res.Page.TotalPages,
		"Total": res.Page.Total,
	})
	writeJSON(w, http.StatusOK, browseResponse{Result: res, Summary: summary})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	q, err := h.session.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in model.Question
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	q, err := h.session.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var in model.Question
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	q, err := h.session.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// handleDelete removes a question. The caller confirms with confirm=yes and,
// for someone else's question, repeats its author in the author parameter.
// Without a sufficient confirmation the response is 409 with the question to
// put to the user.
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	c := app.Confirmation{Confirmed: isYes(q.Get("confirm")), Author: q.Get("author")}
	if err := h.session.Delete(r.Context(), chi.URLParam(r, "id"), c); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: i18n.T(r.Context(), "QuestionDeleted")})
}

func (h *Handler) handleFilterOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := h.session.FilterOptions(r.Context(), r.URL.Query().Get("subject"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.session.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func isYes(v string) bool {
	switch strings.ToLower(v) {
	case "yes", "y", "true", "1":
		return true
	}
	return false
}
