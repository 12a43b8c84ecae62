// Package grading scores submitted answers against a quiz's grading key.
package grading

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/pavelanni/assessor/internal/model"
)

// Strategy grades a single answer for one question type.
type Strategy interface {
	Grade(q model.Question, a model.Answer) (bool, int)
}

// Engine routes answers to the strategy registered for their question type.
type Engine struct {
	strategies map[model.QuestionType]Strategy
}

// New returns an engine with the built-in strategies installed.
func New() *Engine {
	return &Engine{
		strategies: map[model.QuestionType]Strategy{
			model.QuestionMultipleChoice: choiceStrategy{},
			model.QuestionTrueFalse:      choiceStrategy{},
			model.QuestionShortAnswer:    textStrategy{},
			model.QuestionFillBlank:      textStrategy{},
			model.QuestionEssay:          manualStrategy{},
			model.QuestionMatching:       manualStrategy{},
		},
	}
}

// Grade scores one answer. Blank answers and types without a strategy
// score zero. Grade never fails.
func (e *Engine) Grade(q model.Question, a model.Answer) (isCorrect bool, marks int) {
	if a.Blank() {
		return false, 0
	}
	s, ok := e.strategies[q.Type]
	if !ok {
		return false, 0
	}
	return s.Grade(q, a)
}

// Result is the outcome of grading a whole submission.
type Result struct {
	Answers    []model.Answer
	Score      int
	Percentage int
	// MaxScore is the sum of the marks of all questions in the quiz.
	MaxScore int
}

// GradeAttempt grades answers in submission order and totals them. Every
// answer must reference a question of the quiz; one that does not fails the
// whole submission with model.ErrQuestionNotFound. Answers repeated for the
// same question are each graded and summed; callers that need one answer
// per question must enforce it before calling.
func (e *Engine) GradeAttempt(quiz model.Quiz, questions []model.Question, answers []model.Answer) (Result, error) {
	byID := make(map[int64]model.Question, len(questions))
	var res Result
	for _, q := range questions {
		byID[q.ID] = q
		res.MaxScore += q.MarksOrDefault()
	}

	res.Answers = make([]model.Answer, 0, len(answers))
	for _, a := range answers {
		q, ok := byID[a.QuestionID]
		if !ok {
			return Result{}, fmt.Errorf("%w: question %d", model.ErrQuestionNotFound, a.QuestionID)
		}
		a.IsCorrect, a.MarksObtained = e.Grade(q, a)
		res.Score += a.MarksObtained
		res.Answers = append(res.Answers, a)
	}
	res.Percentage = Percentage(res.Score, quiz.TotalMarks)
	return res, nil
}

// Percentage returns score/total as a whole percent, rounding halves up.
// It is 0 when total is not positive.
func Percentage(score, total int) int {
	if total <= 0 {
		return 0
	}
	p := decimal.NewFromInt(int64(score)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		Round(0)
	return int(p.IntPart())
}

// choiceStrategy matches the selected option id against the key. A stale or
// missing key falls back to the option's own IsCorrect flag.
type choiceStrategy struct{}

func (choiceStrategy) Grade(q model.Question, a model.Answer) (bool, int) {
	sel := strings.TrimSpace(a.SelectedOptionID)
	if sel == "" {
		return false, 0
	}
	if q.CorrectAnswer != "" && sel == strings.TrimSpace(q.CorrectAnswer) {
		return true, q.MarksOrDefault()
	}
	if o, ok := q.Option(sel); ok && o.IsCorrect {
		return true, q.MarksOrDefault()
	}
	return false, 0
}

// textStrategy is a case-insensitive exact match after trimming whitespace.
type textStrategy struct{}

func (textStrategy) Grade(q model.Question, a model.Answer) (bool, int) {
	got := strings.TrimSpace(a.AnswerText)
	want := strings.TrimSpace(q.CorrectAnswer)
	if got == "" || want == "" {
		return false, 0
	}
	if strings.EqualFold(got, want) {
		return true, q.MarksOrDefault()
	}
	return false, 0
}

// manualStrategy is used for types that need a human grader.
type manualStrategy struct{}

func (manualStrategy) Grade(model.Question, model.Answer) (bool, int) {
	return false, 0
}

// NeedsManual reports whether questions of type t are left for a human.
func NeedsManual(t model.QuestionType) bool {
	return t == model.QuestionEssay || t == model.QuestionMatching
}
