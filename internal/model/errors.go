package model

import "errors"

// Errors returned by the assessment core. All of them are caller errors and
// are reported to API clients as-is.
var (
	ErrAttemptLimitExceeded = errors.New("attempt limit exceeded")
	ErrQuizNotYetAvailable  = errors.New("quiz not yet available")
	ErrQuizClosed           = errors.New("quiz closed")
	ErrInvalidAttemptState  = errors.New("invalid attempt state")
	ErrNotEnrolled          = errors.New("student not enrolled in course")
	ErrQuestionNotFound     = errors.New("question not found in quiz")
	ErrNotFound             = errors.New("not found")
	ErrNoQuestions          = errors.New("quiz has no questions")
	ErrDuplicateAnswer      = errors.New("more than one answer for a question")
	ErrInvalidInput         = errors.New("invalid input")
)

// ErrConflict is returned by stores when a concurrent write won a race, for
// example a duplicate (quiz, student, attempt number). Callers retry or map
// it to one of the errors above.
var ErrConflict = errors.New("conflicting concurrent write")
