// Package catalog reads and validates course catalogs: the JSON documents
// that load courses, enrollments, quizzes and assignment results into the
// store.
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/pavelanni/assessor/internal/model"
)

// Catalog is one importable document. Ids are chosen by the author so that
// entries can reference each other and re-imports update in place.
type Catalog struct {
	Courses     []Course     `json:"courses" validate:"dive"`
	Enrollments []Enrollment `json:"enrollments" validate:"dive"`
	Quizzes     []Quiz       `json:"quizzes" validate:"dive"`
	Assignments []Assignment `json:"assignments" validate:"dive"`
	Submissions []Submission `json:"submissions" validate:"dive"`
}

type Course struct {
	ID    int64  `json:"id" validate:"required,gt=0"`
	Code  string `json:"code" validate:"required,max=32"`
	Title string `json:"title" validate:"required"`
}

type Enrollment struct {
	StudentID int64 `json:"student_id" validate:"required,gt=0"`
	CourseID  int64 `json:"course_id" validate:"required,gt=0"`
}

type Quiz struct {
	ID                     int64      `json:"id" validate:"required,gt=0"`
	CourseID               int64      `json:"course_id" validate:"required,gt=0"`
	Title                  string     `json:"title" validate:"required"`
	TotalMarks             int        `json:"total_marks" validate:"gte=0"`
	PassingMarks           int        `json:"passing_marks" validate:"gte=0"`
	DurationMinutes        int        `json:"duration_minutes" validate:"gte=0"`
	MaxAttempts            int        `json:"max_attempts" validate:"gte=0"`
	StartDate              *time.Time `json:"start_date"`
	EndDate                *time.Time `json:"end_date"`
	ShuffleQuestions       bool       `json:"shuffle_questions"`
	ShuffleOptions         bool       `json:"shuffle_options"`
	ShowResultsImmediately *bool      `json:"show_results_immediately"`
	Questions              []Question `json:"questions" validate:"dive"`
}

type Question struct {
	ID            int64    `json:"id" validate:"required,gt=0"`
	Type          string   `json:"type" validate:"required,oneof=MULTIPLE_CHOICE TRUE_FALSE SHORT_ANSWER ESSAY MATCHING FILL_BLANK"`
	Text          string   `json:"text" validate:"required"`
	Marks         *int     `json:"marks" validate:"omitempty,gte=0"`
	OrderIndex    int      `json:"order_index"`
	CorrectAnswer string   `json:"correct_answer"`
	Options       []Option `json:"options" validate:"dive"`
}

type Option struct {
	ID        string `json:"id" validate:"required,max=8"`
	Text      string `json:"text" validate:"required"`
	IsCorrect bool   `json:"is_correct"`
}

type Assignment struct {
	ID       int64  `json:"id" validate:"required,gt=0"`
	CourseID int64  `json:"course_id" validate:"required,gt=0"`
	Title    string `json:"title" validate:"required"`
	MaxScore int    `json:"max_score" validate:"required,gt=0"`
}

type Submission struct {
	AssignmentID int64     `json:"assignment_id" validate:"required,gt=0"`
	StudentID    int64     `json:"student_id" validate:"required,gt=0"`
	Status       string    `json:"status" validate:"required,oneof=submitted late graded"`
	Score        *int      `json:"score" validate:"omitempty,gte=0"`
	SubmittedAt  time.Time `json:"submitted_at" validate:"required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(catalogRules, Catalog{})
	v.RegisterStructValidation(quizRules, Quiz{})
	v.RegisterStructValidation(questionRules, Question{})
	v.RegisterStructValidation(submissionRules, Submission{})
	return v
}

// catalogRules rejects ids that collide across quizzes. Question ids are
// global in the store, so a reused id would move the question between quizzes.
func catalogRules(sl validator.StructLevel) {
	c := sl.Current().Interface().(Catalog)
	quizzes := make(map[int64]bool, len(c.Quizzes))
	owner := make(map[int64]int64)
	for _, q := range c.Quizzes {
		if quizzes[q.ID] {
			sl.ReportError(c.Quizzes, "quizzes", "Quizzes", "unique_ids", "")
			return
		}
		quizzes[q.ID] = true
		for _, qu := range q.Questions {
			if prev, ok := owner[qu.ID]; ok && prev != q.ID {
				sl.ReportError(c.Quizzes, "quizzes", "Quizzes", "unique_question_ids", "")
				return
			}
			owner[qu.ID] = q.ID
		}
	}
}

func quizRules(sl validator.StructLevel) {
	q := sl.Current().Interface().(Quiz)
	if q.TotalMarks > 0 && q.PassingMarks > q.TotalMarks {
		sl.ReportError(q.PassingMarks, "passing_marks", "PassingMarks", "ltefield_total_marks", "")
	}
	if q.StartDate != nil && q.EndDate != nil && q.EndDate.Before(*q.StartDate) {
		sl.ReportError(q.EndDate, "end_date", "EndDate", "after_start_date", "")
	}
	seen := make(map[int64]bool, len(q.Questions))
	for _, qu := range q.Questions {
		if seen[qu.ID] {
			sl.ReportError(q.Questions, "questions", "Questions", "unique_ids", "")
			break
		}
		seen[qu.ID] = true
	}
}

func questionRules(sl validator.StructLevel) {
	q := sl.Current().Interface().(Question)
	if !model.QuestionType(q.Type).IsChoice() {
		return
	}
	if len(q.Options) == 0 {
		sl.ReportError(q.Options, "options", "Options", "required_for_choice", "")
		return
	}
	ids := make(map[string]bool, len(q.Options))
	hasKey := false
	for _, o := range q.Options {
		if ids[o.ID] {
			sl.ReportError(q.Options, "options", "Options", "unique_ids", "")
			return
		}
		ids[o.ID] = true
		hasKey = hasKey || o.IsCorrect
	}
	if q.CorrectAnswer != "" && !ids[q.CorrectAnswer] {
		sl.ReportError(q.CorrectAnswer, "correct_answer", "CorrectAnswer", "option_id", "")
	}
	if q.CorrectAnswer == "" && !hasKey {
		sl.ReportError(q.CorrectAnswer, "correct_answer", "CorrectAnswer", "required_for_choice", "")
	}
}

func submissionRules(sl validator.StructLevel) {
	s := sl.Current().Interface().(Submission)
	if s.Status == string(model.SubmissionGraded) && s.Score == nil {
		sl.ReportError(s.Score, "score", "Score", "required_when_graded", "")
	}
}

// Parse decodes and validates a catalog. Unknown fields are rejected.
func Parse(r io.Reader) (*Catalog, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var c Catalog
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("%w: decode catalog: %v", model.ErrInvalidInput, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// ParseBytes is Parse over an in-memory document.
func ParseBytes(data []byte) (*Catalog, error) {
	return Parse(bytes.NewReader(data))
}

// Validate checks field rules and the cross references the document can
// resolve on its own. References to rows already in the store are checked
// by the store's foreign keys on import.
func (c *Catalog) Validate() error {
	if err := validate.Struct(c); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			return &ValidationError{Fields: describe(ve)}
		}
		return fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}

	maxScore := make(map[int64]int, len(c.Assignments))
	for _, a := range c.Assignments {
		maxScore[a.ID] = a.MaxScore
	}
	var fields []FieldError
	for i, s := range c.Submissions {
		if limit, ok := maxScore[s.AssignmentID]; ok && s.Score != nil && *s.Score > limit {
			fields = append(fields, FieldError{
				Field: fmt.Sprintf("submissions[%d].score", i),
				Rule:  "lte_max_score",
			})
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// FieldError names one failed rule.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// ValidationError lists every rule a catalog broke. It matches
// model.ErrInvalidInput with errors.Is.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Rule
	}
	return "invalid catalog: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == model.ErrInvalidInput }

func describe(ve validator.ValidationErrors) []FieldError {
	out := make([]FieldError, 0, len(ve))
	for _, fe := range ve {
		// Namespace is "Catalog.quizzes[0].questions[1].options"; drop the root.
		_, field, _ := strings.Cut(fe.Namespace(), ".")
		out = append(out, FieldError{Field: field, Rule: fe.Tag()})
	}
	return out
}

// Model conversions.

func (c Course) Model() model.Course {
	return model.Course{ID: c.ID, Code: c.Code, Title: c.Title}
}

func (e Enrollment) Model() model.Enrollment {
	return model.Enrollment{StudentID: e.StudentID, CourseID: e.CourseID}
}

// Model converts the quiz and its questions. Unset max attempts becomes 1
// and results are shown immediately unless the document says otherwise.
func (q Quiz) Model() (model.Quiz, []model.Question) {
	mq := model.Quiz{
		ID:                     q.ID,
		CourseID:               q.CourseID,
		Title:                  q.Title,
		TotalMarks:             q.TotalMarks,
		PassingMarks:           q.PassingMarks,
		DurationMinutes:        q.DurationMinutes,
		MaxAttempts:            max(q.MaxAttempts, 1),
		StartDate:              q.StartDate,
		EndDate:                q.EndDate,
		ShuffleQuestions:       q.ShuffleQuestions,
		ShuffleOptions:         q.ShuffleOptions,
		ShowResultsImmediately: q.ShowResultsImmediately == nil || *q.ShowResultsImmediately,
	}

	questions := make([]model.Question, 0, len(q.Questions))
	for _, qu := range q.Questions {
		mqu := model.Question{
			ID:            qu.ID,
			QuizID:        q.ID,
			Type:          model.QuestionType(qu.Type),
			Text:          qu.Text,
			Marks:         qu.Marks,
			OrderIndex:    qu.OrderIndex,
			CorrectAnswer: qu.CorrectAnswer,
		}
		for i, o := range qu.Options {
			mqu.Options = append(mqu.Options, model.Option{
				ID:         o.ID,
				QuestionID: qu.ID,
				Text:       o.Text,
				IsCorrect:  o.IsCorrect,
				OrderIndex: i,
			})
		}
		questions = append(questions, mqu)
	}
	return mq, questions
}

func (a Assignment) Model() model.Assignment {
	return model.Assignment{ID: a.ID, CourseID: a.CourseID, Title: a.Title, MaxScore: a.MaxScore}
}

func (s Submission) Model() model.Submission {
	return model.Submission{
		AssignmentID: s.AssignmentID,
		StudentID:    s.StudentID,
		Status:       model.SubmissionStatus(s.Status),
		Score:        s.Score,
		SubmittedAt:  s.SubmittedAt,
	}
}
