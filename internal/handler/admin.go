package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/mcqdb/internal/app"
	"github.com/pavelanni/mcqdb/internal/i18n"
)

// requireAdmin checks the basic-auth password against the admin password
// hash kept in the settings. The username is ignored.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, password, ok := r.BasicAuth()
		if !ok || !h.session.Settings.CheckAdminPassword(password) {
			slog.Warn("admin authentication failed", "remote", r.RemoteAddr, "path", r.URL.Path)
			w.Header().Set("WWW-Authenticate", `Basic realm="mcqdb admin"`)
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: i18n.T(r.Context(), "ErrorUnauthorized")})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type adminUsersResponse struct {
	*app.AdminView
	Online    string `json:"online_message"`
	Refreshed string `json:"refreshed_message"`
}

func (h *Handler) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	view, err := h.session.AdminSummary(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := adminUsersResponse{
		AdminView: view,
		Online:    i18n.T(r.Context(), "NoUsersOnline"),
		Refreshed: i18n.Td(r.Context(), "AdminRefreshed", map[string]any{"Time": view.RefreshedAt.Local().Format(time.TimeOnly)}),
	}
	if n := int(view.Summary.OnlineUsers); n > 0 {
		resp.Online = i18n.Tp(r.Context(), "UsersOnline", n)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleAdminUser(w http.ResponseWriter, r *http.Request) {
	d, err := h.session.UserDetails(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
