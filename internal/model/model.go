package model

import (
	"context"
	"time"
)

// QuestionType identifies how a question is answered and graded.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTrueFalse      QuestionType = "TRUE_FALSE"
	QuestionShortAnswer    QuestionType = "SHORT_ANSWER"
	QuestionEssay          QuestionType = "ESSAY"
	QuestionMatching       QuestionType = "MATCHING"
	QuestionFillBlank      QuestionType = "FILL_BLANK"
)

// IsChoice reports whether answers to this type select an option.
func (t QuestionType) IsChoice() bool {
	return t == QuestionMultipleChoice || t == QuestionTrueFalse
}

// Valid reports whether t is a known question type.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionMultipleChoice, QuestionTrueFalse, QuestionShortAnswer,
		QuestionEssay, QuestionMatching, QuestionFillBlank:
		return true
	}
	return false
}

// AttemptStatus represents the lifecycle state of a quiz attempt.
type AttemptStatus string

const (
	StatusInProgress AttemptStatus = "in_progress"
	StatusSubmitted  AttemptStatus = "submitted"
	StatusGraded     AttemptStatus = "graded"
	StatusExpired    AttemptStatus = "expired"
)

// SubmissionStatus represents the state of an assignment submission.
type SubmissionStatus string

const (
	SubmissionSubmitted SubmissionStatus = "submitted"
	SubmissionLate      SubmissionStatus = "late"
	SubmissionGraded    SubmissionStatus = "graded"
)

// Course is a unit of enrollment that owns quizzes and assignments.
type Course struct {
	ID    int64  `json:"id"`
	Code  string `json:"code"`
	Title string `json:"title"`
}

// Enrollment links a student to a course.
type Enrollment struct {
	StudentID int64 `json:"student_id"`
	CourseID  int64 `json:"course_id"`
}

// Quiz is an auto-gradable assessment belonging to a course.
type Quiz struct {
	ID                     int64      `json:"id"`
	CourseID               int64      `json:"course_id"`
	Title                  string     `json:"title"`
	TotalMarks             int        `json:"total_marks"`   // 0 means unset
	PassingMarks           int        `json:"passing_marks"` // 0 means unset
	DurationMinutes        int        `json:"duration_minutes"`
	MaxAttempts            int        `json:"max_attempts"`
	StartDate              *time.Time `json:"start_date,omitempty"`
	EndDate                *time.Time `json:"end_date,omitempty"`
	ShuffleQuestions       bool       `json:"shuffle_questions"`
	ShuffleOptions         bool       `json:"shuffle_options"`
	ShowResultsImmediately bool       `json:"show_results_immediately"`
}

// Question is an immutable item of a quiz together with its grading key.
type Question struct {
	ID            int64        `json:"id"`
	QuizID        int64        `json:"quiz_id"`
	Type          QuestionType `json:"type"`
	Text          string       `json:"text"`
	Marks         *int         `json:"marks,omitempty"`
	OrderIndex    int          `json:"order_index"`
	CorrectAnswer string       `json:"correct_answer"`
	Options       []Option     `json:"options,omitempty"`
}

// MarksOrDefault returns the question's marks, 1 when unset.
func (q Question) MarksOrDefault() int {
	if q.Marks == nil {
		return 1
	}
	return *q.Marks
}

// Option returns the option with the given id.
func (q Question) Option(id string) (Option, bool) {
	for _, o := range q.Options {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

// Option is one selectable choice of a choice-type question.
type Option struct {
	ID         string `json:"id"`
	QuestionID int64  `json:"question_id"`
	Text       string `json:"text"`
	IsCorrect  bool   `json:"is_correct"`
	OrderIndex int    `json:"order_index"`
}

// Attempt is one student's attempt at a quiz.
type Attempt struct {
	ID               string        `json:"id"`
	QuizID           int64         `json:"quiz_id"`
	StudentID        int64         `json:"student_id"`
	AttemptNumber    int           `json:"attempt_number"`
	Status           AttemptStatus `json:"status"`
	StartedAt        time.Time     `json:"started_at"`
	SubmittedAt      *time.Time    `json:"submitted_at,omitempty"`
	TimeSpentSeconds int64         `json:"time_spent_seconds"`
	Score            int           `json:"score"`
	Percentage       int           `json:"percentage"`
}

// Answer is a student's response to one question within an attempt.
type Answer struct {
	ID               int64  `json:"id"`
	AttemptID        string `json:"attempt_id"`
	QuestionID       int64  `json:"question_id"`
	SelectedOptionID string `json:"selected_option_id,omitempty"`
	AnswerText       string `json:"answer_text,omitempty"`
	IsCorrect        bool   `json:"is_correct"`
	MarksObtained    int    `json:"marks_obtained"`
}

// Blank reports whether the answer carries no response at all.
func (a Answer) Blank() bool {
	return a.SelectedOptionID == "" && a.AnswerText == ""
}

// Assignment is a manually graded piece of course work.
type Assignment struct {
	ID       int64  `json:"id"`
	CourseID int64  `json:"course_id"`
	Title    string `json:"title"`
	MaxScore int    `json:"max_score"`
}

// Submission is a student's hand-in for an assignment.
type Submission struct {
	ID           int64            `json:"id"`
	AssignmentID int64            `json:"assignment_id"`
	StudentID    int64            `json:"student_id"`
	Status       SubmissionStatus `json:"status"`
	Score        *int             `json:"score,omitempty"`
	SubmittedAt  time.Time        `json:"submitted_at"`
}

// CourseSnapshot is everything the report card needs for one
// (student, course) pair, read in a single consistent pass.
type CourseSnapshot struct {
	Course      Course
	Enrolled    bool
	Quizzes     []Quiz
	Attempts    []Attempt // graded attempts of this student only
	Assignments []Assignment
	Submissions []Submission // all submissions of this student
}

type studentCtxKey struct{}

// ContextWithStudent stores the calling student's id in context.
func ContextWithStudent(ctx context.Context, studentID int64) context.Context {
	return context.WithValue(ctx, studentCtxKey{}, studentID)
}

// StudentFromContext returns the calling student's id, if any.
func StudentFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(studentCtxKey{}).(int64)
	return id, ok
}
