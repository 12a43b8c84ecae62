package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/assessor/internal/catalog"
	appI18n "github.com/pavelanni/assessor/internal/i18n"
	"github.com/pavelanni/assessor/internal/store"
)

const maxCatalogBytes = 10 << 20

type importResponse struct {
	Stats   store.ImportStats `json:"stats"`
	Message string            `json:"message"`
}

type sweepResponse struct {
	Expired int    `json:"expired"`
	Message string `json:"message"`
}

func (h *Handler) handleImportCatalog(w http.ResponseWriter, r *http.Request) {
	c, err := catalog.Parse(http.MaxBytesReader(w, r.Body, maxCatalogBytes))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	stats, err := h.store.ImportCatalog(r.Context(), c)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	slog.Info("catalog uploaded via admin", "quizzes", stats.Quizzes, "questions", stats.Questions)
	writeJSON(w, http.StatusOK, importResponse{
		Stats: stats,
		Message: appI18n.Td(r.Context(), "CatalogImported", map[string]any{
			"Quizzes":   stats.Quizzes,
			"Questions": stats.Questions,
		}),
	})
}

func (h *Handler) handleSweep(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	n, err := h.attempts.Sweep(r.Context(), now)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.store.RecordSweep(r.Context(), now, n); err != nil {
		slog.Error("failed to record sweep", "error", err)
	}
	writeJSON(w, http.StatusOK, sweepResponse{
		Expired: n,
		Message: appI18n.Tp(r.Context(), "AttemptsExpired", n),
	})
}

func (h *Handler) handleAdminStudentReport(w http.ResponseWriter, r *http.Request) {
	studentID, err := pathID(r, "studentID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	report, err := h.reports.StudentReport(r.Context(), studentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) handleInspectAttempt(w http.ResponseWriter, r *http.Request) {
	graded, err := h.attempts.Inspect(r.Context(), chi.URLParam(r, "attemptID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, graded)
}
