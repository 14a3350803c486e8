package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/mcqdb/internal/i18n"
	"github.com/pavelanni/mcqdb/internal/model"
)

type nameRequest struct {
	Name string `json:"name"`
}

type addResponse struct {
	Added   bool   `json:"added"`
	Message string `json:"message"`
}

func (h *Handler) handleTaxonomy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.Settings.Taxonomy())
}

func (h *Handler) handleAddSubject(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	added, err := h.session.Settings.AddSubject(req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeAdded(w, r, added, "SubjectAdded", map[string]any{"Name": req.Name})
}

func (h *Handler) handleAddTopic(w http.ResponseWriter, r *http.Request) {
	h.addItem(w, r, "TopicAdded", h.session.Settings.AddTopic)
}

func (h *Handler) handleAddClassification(w http.ResponseWriter, r *http.Request) {
	h.addItem(w, r, "ClassificationAdded", h.session.Settings.AddClassification)
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request, msgID string, add func(subject, name string) (bool, error)) {
	var req nameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	subject := chi.URLParam(r, "subject")
	added, err := add(subject, req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeAdded(w, r, added, msgID, map[string]any{"Name": req.Name, "Subject": subject})
}

func (h *Handler) writeAdded(w http.ResponseWriter, r *http.Request, added bool, msgID string, data map[string]any) {
	if !added {
		writeJSON(w, http.StatusOK, addResponse{Message: i18n.Td(r.Context(), "AlreadyExists", data)})
		return
	}
	writeJSON(w, http.StatusCreated, addResponse{Added: true, Message: i18n.Td(r.Context(), msgID, data)})
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	u, err := h.session.Profile(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var p model.Profile
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.session.UpdateProfile(r.Context(), p); err != nil {
		writeError(w, r, err)
		return
	}
	h.handleProfile(w, r)
}
