package handler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pavelanni/mcqdb/internal/app"
	"github.com/pavelanni/mcqdb/internal/i18n"
	"github.com/pavelanni/mcqdb/internal/transfer"
)

type importResponse struct {
	Report  *transfer.Report `json:"report"`
	Saved   int              `json:"saved"`
	Message string           `json:"message"`
}

// importOptions reads the import switches: commit stores the new records,
// suggestions applies suggested taxonomy entries, validate drops invalid
// records before checking for duplicates. All default to off.
func importOptions(r *http.Request) (transfer.Options, bool, error) {
	commit, err := boolParam(r, "commit", false)
	if err != nil {
		return transfer.Options{}, false, err
	}
	suggestions, err := boolParam(r, "suggestions", false)
	if err != nil {
		return transfer.Options{}, false, err
	}
	valid, err := boolParam(r, "validate", false)
	if err != nil {
		return transfer.Options{}, false, err
	}
	return transfer.Options{ApplySuggestions: suggestions, Validate: valid}, commit, nil
}

func (h *Handler) handleImportJSON(w http.ResponseWriter, r *http.Request) {
	opts, commit, err := importOptions(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, badRequest(fmt.Errorf("read request body: %w", err)))
		return
	}
	b, err := transfer.DecodeBatch(data)
	if err != nil {
		writeError(w, r, badRequest(err))
		return
	}
	h.importBatch(w, r, b, opts, commit)
}

func (h *Handler) handleImportCSV(w http.ResponseWriter, r *http.Request) {
	opts, commit, err := importOptions(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	qs, err := transfer.ReadCSV(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, badRequest(err))
		return
	}
	if len(qs) == 0 {
		writeError(w, r, transfer.ErrNoQuestions)
		return
	}
	h.importBatch(w, r, &transfer.Batch{Questions: qs}, opts, commit)
}

func (h *Handler) importBatch(w http.ResponseWriter, r *http.Request, b *transfer.Batch, opts transfer.Options, commit bool) {
	resp, err := h.plan(r.Context(), b, opts, commit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// plan checks a batch against the bank and, when commit is set, stores the
// new records.
func (h *Handler) plan(ctx context.Context, b *transfer.Batch, opts transfer.Options, commit bool) (*importResponse, error) {
	im := h.session.Importer()
	rep, err := im.Plan(ctx, b, opts)
	if err != nil {
		return nil, err
	}
	resp := &importResponse{Report: rep}
	switch {
	case len(rep.New) == 0 && len(rep.Duplicates) > 0:
		resp.Message = i18n.T(ctx, "AllDuplicates")
	case commit && len(rep.New) > 0:
		if resp.Saved, err = im.Commit(ctx, rep); err != nil {
			return nil, err
		}
		resp.Message = i18n.Tp(ctx, "QuestionsSaved", resp.Saved)
	default:
		resp.Message = i18n.Td(ctx, "ImportSummary", map[string]any{
			"Total":      rep.Total,
			"New":        len(rep.New),
			"Duplicates": len(rep.Duplicates),
			"Invalid":    len(rep.Invalid),
		})
	}
	return resp, nil
}

// handleExportCSV downloads the questions matching the query criteria.
func (h *Handler) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	qs, err := h.session.Find(r.Context(), criteriaFromQuery(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", transfer.ExportFilename(h.session.Username)))
	if err := transfer.WriteCSV(w, qs); err != nil {
		slog.Error("write CSV export", "error", err)
	}
}

func (h *Handler) handleBackup(w http.ResponseWriter, r *http.Request) {
	b, err := h.session.Backup(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", transfer.BackupFilename(time.Now())))
	if err := transfer.WriteBackup(w, b); err != nil {
		slog.Error("write backup", "error", err)
	}
}

type promptResponse struct {
	*app.Prompt
	Import *importResponse `json:"import,omitempty"`
}

// handlePrompt renders a generation prompt. With send=true the prompt goes to
// the language model and its reply is planned as an import, honoring the
// same switches as the import endpoints.
func (h *Handler) handlePrompt(w http.ResponseWriter, r *http.Request) {
	send, err := boolParam(r, "send", false)
	if err != nil {
		writeError(w, r, err)
		return
	}
	opts, commit, err := importOptions(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req app.PromptRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.session.Prompt(req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := promptResponse{Prompt: p}
	if send {
		if h.gen == nil {
			writeError(w, r, errNoGenerator)
			return
		}
		b, err := h.session.Generate(r.Context(), h.gen, p)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if resp.Import, err = h.plan(r.Context(), b, opts, commit); err != nil {
			writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
