package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/assessor/internal/attempt"
	"github.com/pavelanni/assessor/internal/model"
	"github.com/pavelanni/assessor/internal/reportcard"
	"github.com/pavelanni/assessor/internal/store"
)

// Config carries the HTTP layer's settings.
type Config struct {
	// JWTSecret enables bearer token identity. When empty the student id is
	// read from the X-Student-ID header set by a trusted gateway.
	JWTSecret string
	// AdminPassword guards the admin routes. Empty disables them.
	AdminPassword string
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store     *store.Store
	attempts  *attempt.Service
	reports   *reportcard.Aggregator
	validate  *validator.Validate
	jwtSecret []byte
	adminHash []byte
	now       func() time.Time
}

// New creates a new Handler.
func New(s *store.Store, svc *attempt.Service, reports *reportcard.Aggregator, cfg Config) (*Handler, error) {
	h := &Handler{
		store:    s,
		attempts: svc,
		reports:  reports,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
	if cfg.JWTSecret != "" {
		h.jwtSecret = []byte(cfg.JWTSecret)
	}
	if cfg.AdminPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash admin password: %w", err)
		}
		h.adminHash = hash
	}
	return h, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.identify)
			r.Post("/quizzes/{quizID}/attempts", h.handleStartAttempt)
			r.Post("/attempts/{attemptID}/submit", h.handleSubmitAttempt)
			r.Get("/attempts/{attemptID}", h.handleAttemptResult)
			r.Get("/courses/{courseID}/report-card", h.handleCourseReport)
			r.Get("/report-card", h.handleStudentReport)
		})
		r.Route("/admin", func(r chi.Router) {
			r.Use(h.requireAdmin)
			r.Post("/catalog", h.handleImportCatalog)
			r.Post("/sweep", h.handleSweep)
			r.Get("/students/{studentID}/report-card", h.handleAdminStudentReport)
			r.Get("/attempts/{attemptID}", h.handleInspectAttempt)
		})
	})
}

type answerRequest struct {
	QuestionID       int64  `json:"question_id" validate:"required,gt=0"`
	SelectedOptionID string `json:"selected_option_id" validate:"max=64"`
	AnswerText       string `json:"answer_text" validate:"max=10000"`
}

type submitRequest struct {
	Answers []answerRequest `json:"answers" validate:"max=500,dive"`
}

func (h *Handler) handleStartAttempt(w http.ResponseWriter, r *http.Request) {
	quizID, err := pathID(r, "quizID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	studentID, _ := model.StudentFromContext(r.Context())

	view, err := h.attempts.Start(r.Context(), quizID, studentID, h.now())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *Handler) handleSubmitAttempt(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %v", model.ErrInvalidInput, err))
		return
	}

	answers := make([]model.Answer, len(req.Answers))
	for i, a := range req.Answers {
		answers[i] = model.Answer{
			QuestionID:       a.QuestionID,
			SelectedOptionID: a.SelectedOptionID,
			AnswerText:       a.AnswerText,
		}
	}
	studentID, _ := model.StudentFromContext(r.Context())

	graded, err := h.attempts.Submit(r.Context(), chi.URLParam(r, "attemptID"), studentID, answers, h.now())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, graded)
}

func (h *Handler) handleAttemptResult(w http.ResponseWriter, r *http.Request) {
	studentID, _ := model.StudentFromContext(r.Context())
	graded, err := h.attempts.Result(r.Context(), chi.URLParam(r, "attemptID"), studentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, graded)
}

func (h *Handler) handleCourseReport(w http.ResponseWriter, r *http.Request) {
	courseID, err := pathID(r, "courseID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	studentID, _ := model.StudentFromContext(r.Context())

	card, err := h.reports.CourseReport(r.Context(), studentID, courseID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (h *Handler) handleStudentReport(w http.ResponseWriter, r *http.Request) {
	studentID, _ := model.StudentFromContext(r.Context())
	report, err := h.reports.StudentReport(r.Context(), studentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad %s %q", model.ErrInvalidInput, name, chi.URLParam(r, name))
	}
	return id, nil
}
