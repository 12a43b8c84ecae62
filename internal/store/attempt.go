package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pavelanni/assessor/internal/model"
)

const attemptColumns = `id, quiz_id, student_id, attempt_number, status, started_at, submitted_at,
	time_spent_seconds, score, percentage`

func scanAttempt(row scanner) (model.Attempt, error) {
	var a model.Attempt
	err := row.Scan(&a.ID, &a.QuizID, &a.StudentID, &a.AttemptNumber, &a.Status, &a.StartedAt, &a.SubmittedAt,
		&a.TimeSpentSeconds, &a.Score, &a.Percentage)
	return a, err
}

func (s *Store) attempts(ctx context.Context, q querier, query string, args ...any) ([]model.Attempt, error) {
	rows, err := s.query(ctx, q, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountAttempts returns how many attempts a student has made on a quiz,
// whatever their state.
func (s *Store) CountAttempts(ctx context.Context, quizID, studentID int64) (int, error) {
	var n int
	err := s.queryRow(ctx, s.db,
		`SELECT COUNT(*) FROM attempts WHERE quiz_id = ? AND student_id = ?`, quizID, studentID,
	).Scan(&n)
	return n, err
}

// CreateAttempt inserts a new attempt. A taken attempt number for the same
// quiz and student yields model.ErrConflict.
func (s *Store) CreateAttempt(ctx context.Context, a model.Attempt) error {
	_, err := s.exec(ctx, s.db,
		`INSERT INTO attempts (id, quiz_id, student_id, attempt_number, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.QuizID, a.StudentID, a.AttemptNumber, a.Status, a.StartedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("attempt %d of quiz %d: %w", a.AttemptNumber, a.QuizID, model.ErrConflict)
	}
	return err
}

// GetAttempt returns an attempt by ID.
func (s *Store) GetAttempt(ctx context.Context, id string) (model.Attempt, error) {
	a, err := scanAttempt(s.queryRow(ctx, s.db, `SELECT `+attemptColumns+` FROM attempts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Attempt{}, fmt.Errorf("attempt %s: %w", id, model.ErrNotFound)
	}
	return a, err
}

// GetAnswers returns an attempt's answers in question order.
func (s *Store) GetAnswers(ctx context.Context, attemptID string) ([]model.Answer, error) {
	rows, err := s.query(ctx, s.db,
		`SELECT id, attempt_id, question_id, selected_option_id, answer_text, is_correct, marks_obtained
		 FROM answers WHERE attempt_id = ? ORDER BY question_id, id`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var answers []model.Answer
	for rows.Next() {
		var a model.Answer
		if err := rows.Scan(&a.ID, &a.AttemptID, &a.QuestionID, &a.SelectedOptionID, &a.AnswerText,
			&a.IsCorrect, &a.MarksObtained); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// CompleteAttempt records the graded result and answers of an attempt that
// is still in progress. If another transition got there first nothing is
// written and model.ErrInvalidAttemptState is returned.
func (s *Store) CompleteAttempt(ctx context.Context, a model.Attempt, answers []model.Answer) error {
	return s.inTx(ctx, nil, func(tx *sql.Tx) error {
		var submittedAt any
		if a.SubmittedAt != nil {
			submittedAt = a.SubmittedAt.UTC()
		}
		res, err := s.exec(ctx, tx,
			`UPDATE attempts SET status = ?, submitted_at = ?, time_spent_seconds = ?, score = ?, percentage = ?
			 WHERE id = ? AND status = ?`,
			a.Status, submittedAt, a.TimeSpentSeconds, a.Score, a.Percentage, a.ID, model.StatusInProgress,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("attempt %s no longer in progress: %w", a.ID, model.ErrInvalidAttemptState)
		}

		for _, ans := range answers {
			if _, err := s.exec(ctx, tx,
				`INSERT INTO answers (attempt_id, question_id, selected_option_id, answer_text, is_correct, marks_obtained)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				a.ID, ans.QuestionID, ans.SelectedOptionID, ans.AnswerText, ans.IsCorrect, ans.MarksObtained,
			); err != nil {
				return fmt.Errorf("insert answer for question %d: %w", ans.QuestionID, err)
			}
		}
		return nil
	})
}

// ExpireAttempt moves an in-progress attempt to expired and reports whether
// it did.
func (s *Store) ExpireAttempt(ctx context.Context, id string) (bool, error) {
	res, err := s.exec(ctx, s.db,
		`UPDATE attempts SET status = ? WHERE id = ? AND status = ?`,
		model.StatusExpired, id, model.StatusInProgress,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListInProgress returns every attempt that is still open.
func (s *Store) ListInProgress(ctx context.Context) ([]model.Attempt, error) {
	return s.attempts(ctx, s.db,
		`SELECT `+attemptColumns+` FROM attempts WHERE status = ? ORDER BY started_at`, model.StatusInProgress)
}

// ListAttempts returns a student's attempts on a quiz, oldest first.
func (s *Store) ListAttempts(ctx context.Context, quizID, studentID int64) ([]model.Attempt, error) {
	return s.attempts(ctx, s.db,
		`SELECT `+attemptColumns+` FROM attempts WHERE quiz_id = ? AND student_id = ? ORDER BY attempt_number`,
		quizID, studentID)
}
