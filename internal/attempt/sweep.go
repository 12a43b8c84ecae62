package attempt

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/assessor/internal/model"
)

// Sweep moves in-progress attempts whose quiz window or duration has run out
// to expired and returns how many it changed. An attempt submitted while the
// sweep runs keeps its grade: the store only expires attempts that are still
// in progress.
func (s *Service) Sweep(ctx context.Context, now time.Time) (int, error) {
	open, err := s.store.ListInProgress(ctx)
	if err != nil {
		return 0, fmt.Errorf("list in-progress attempts: %w", err)
	}

	quizzes := map[int64]model.Quiz{}
	expired := 0
	for _, a := range open {
		quiz, ok := quizzes[a.QuizID]
		if !ok {
			quiz, err = s.store.GetQuiz(ctx, a.QuizID)
			if err != nil {
				return expired, fmt.Errorf("get quiz %d: %w", a.QuizID, err)
			}
			quizzes[a.QuizID] = quiz
		}
		if !s.stale(quiz, a, now) {
			continue
		}

		changed, err := s.store.ExpireAttempt(ctx, a.ID)
		if err != nil {
			return expired, fmt.Errorf("expire attempt %s: %w", a.ID, err)
		}
		if changed {
			expired++
			slog.Info("attempt expired", "attempt_id", a.ID, "quiz_id", a.QuizID, "student_id", a.StudentID)
		}
	}
	return expired, nil
}

func (s *Service) stale(quiz model.Quiz, a model.Attempt, now time.Time) bool {
	if quiz.EndDate != nil && now.After(quiz.EndDate.Add(s.expiryGrace)) {
		return true
	}
	if quiz.DurationMinutes > 0 {
		limit := a.StartedAt.Add(time.Duration(quiz.DurationMinutes)*time.Minute + s.expiryGrace)
		if now.After(limit) {
			return true
		}
	}
	return false
}
