// Package notify delivers "attempt graded" notices.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pavelanni/assessor/internal/attempt"
)

// Log writes each notice to the structured log.
type Log struct {
	logger *slog.Logger
}

// NewLog returns a notifier that logs through logger, or the default logger
// when nil.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

// AttemptGraded logs the notice at info level.
func (l *Log) AttemptGraded(ctx context.Context, n attempt.Notice) error {
	l.logger.InfoContext(ctx, "attempt graded notice",
		"attempt_id", n.AttemptID,
		"quiz_id", n.QuizID,
		"student_id", n.StudentID,
		"score", n.Score,
		"total_marks", n.TotalMarks,
		"percentage", n.Percentage,
	)
	return nil
}

// Subject is the one-line summary of a notice.
func Subject(n attempt.Notice) string {
	return fmt.Sprintf("%s: attempt %d graded", n.QuizTitle, n.AttemptNumber)
}

// Body is the plain-text message for a notice.
func Body(n attempt.Notice) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your attempt %d at %q was graded on %s.\n\n",
		n.AttemptNumber, n.QuizTitle, n.GradedAt.UTC().Format("2006-01-02 15:04 MST"))
	if n.TotalMarks > 0 {
		fmt.Fprintf(&b, "Score: %d / %d (%d%%)\n", n.Score, n.TotalMarks, n.Percentage)
	} else {
		fmt.Fprintf(&b, "Score: %d\n", n.Score)
	}
	if n.Passed != nil {
		result := "not passed"
		if *n.Passed {
			result = "passed"
		}
		fmt.Fprintf(&b, "Result: %s\n", result)
	}
	fmt.Fprintf(&b, "\nAttempt ID: %s\n", n.AttemptID)
	return b.String()
}
