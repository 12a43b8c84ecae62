package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/pavelanni/assessor/internal/catalog"
	"github.com/pavelanni/assessor/internal/model"
)

// ImportStats counts what an import wrote.
type ImportStats struct {
	Courses     int `json:"courses"`
	Enrollments int `json:"enrollments"`
	Quizzes     int `json:"quizzes"`
	Questions   int `json:"questions"`
	Assignments int `json:"assignments"`
	Submissions int `json:"submissions"`
}

// ImportCatalog upserts a validated catalog in one transaction. Entries are
// matched by their IDs. A quiz's question set is replaced only while no
// attempt references the quiz; otherwise its questions are left alone so
// existing attempts keep grading against what they were shown.
func (s *Store) ImportCatalog(ctx context.Context, c *catalog.Catalog) (ImportStats, error) {
	var st ImportStats
	err := s.inTx(ctx, nil, func(tx *sql.Tx) error {
		for _, cc := range c.Courses {
			m := cc.Model()
			if _, err := s.exec(ctx, tx,
				`INSERT INTO courses (id, code, title) VALUES (?, ?, ?)
				 ON CONFLICT(id) DO UPDATE SET code = excluded.code, title = excluded.title`,
				m.ID, m.Code, m.Title,
			); err != nil {
				return fmt.Errorf("course %d: %w", m.ID, err)
			}
			st.Courses++
		}

		for _, ce := range c.Enrollments {
			m := ce.Model()
			if _, err := s.exec(ctx, tx,
				`INSERT INTO enrollments (student_id, course_id) VALUES (?, ?)
				 ON CONFLICT(student_id, course_id) DO NOTHING`,
				m.StudentID, m.CourseID,
			); err != nil {
				return fmt.Errorf("enrollment of student %d in course %d: %w", m.StudentID, m.CourseID, err)
			}
			st.Enrollments++
		}

		for _, cq := range c.Quizzes {
			n, err := s.importQuiz(ctx, tx, cq)
			if err != nil {
				return err
			}
			st.Quizzes++
			st.Questions += n
		}

		for _, ca := range c.Assignments {
			m := ca.Model()
			if _, err := s.exec(ctx, tx,
				`INSERT INTO assignments (id, course_id, title, max_score) VALUES (?, ?, ?, ?)
				 ON CONFLICT(id) DO UPDATE SET course_id = excluded.course_id, title = excluded.title,
					max_score = excluded.max_score`,
				m.ID, m.CourseID, m.Title, m.MaxScore,
			); err != nil {
				return fmt.Errorf("assignment %d: %w", m.ID, err)
			}
			st.Assignments++
		}

		for _, cs := range c.Submissions {
			m := cs.Model()
			if _, err := s.exec(ctx, tx,
				`INSERT INTO submissions (assignment_id, student_id, status, score, submitted_at) VALUES (?, ?, ?, ?, ?)
				 ON CONFLICT(assignment_id, student_id) DO UPDATE SET status = excluded.status,
					score = excluded.score, submitted_at = excluded.submitted_at`,
				m.AssignmentID, m.StudentID, m.Status, m.Score, m.SubmittedAt.UTC(),
			); err != nil {
				return fmt.Errorf("submission of student %d for assignment %d: %w", m.StudentID, m.AssignmentID, err)
			}
			st.Submissions++
		}
		return nil
	})
	if isForeignKeyViolation(err) || isUniqueViolation(err) {
		return ImportStats{}, fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}
	if err != nil {
		return ImportStats{}, err
	}
	slog.Info("catalog imported",
		"courses", st.Courses,
		"quizzes", st.Quizzes,
		"questions", st.Questions,
		"assignments", st.Assignments,
		"submissions", st.Submissions,
	)
	return st, nil
}

func (s *Store) importQuiz(ctx context.Context, tx *sql.Tx, cq catalog.Quiz) (int, error) {
	q, questions := cq.Model()
	if _, err := s.exec(ctx, tx,
		`INSERT INTO quizzes (id, course_id, title, total_marks, passing_marks, duration_minutes, max_attempts,
			start_date, end_date, shuffle_questions, shuffle_options, show_results_immediately)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET course_id = excluded.course_id, title = excluded.title,
			total_marks = excluded.total_marks, passing_marks = excluded.passing_marks,
			duration_minutes = excluded.duration_minutes, max_attempts = excluded.max_attempts,
			start_date = excluded.start_date, end_date = excluded.end_date,
			shuffle_questions = excluded.shuffle_questions, shuffle_options = excluded.shuffle_options,
			show_results_immediately = excluded.show_results_immediately`,
		q.ID, q.CourseID, q.Title, q.TotalMarks, q.PassingMarks, q.DurationMinutes, q.MaxAttempts,
		q.StartDate, q.EndDate, q.ShuffleQuestions, q.ShuffleOptions, q.ShowResultsImmediately,
	); err != nil {
		return 0, fmt.Errorf("quiz %d: %w", q.ID, err)
	}

	var used int
	if err := s.queryRow(ctx, tx, `SELECT COUNT(*) FROM attempts WHERE quiz_id = ?`, q.ID).Scan(&used); err != nil {
		return 0, err
	}
	if used > 0 {
		slog.Warn("quiz has attempts, keeping its questions", "quiz_id", q.ID, "attempts", used)
		return 0, nil
	}

	if _, err := s.exec(ctx, tx,
		`DELETE FROM options WHERE question_id IN (SELECT id FROM questions WHERE quiz_id = ?)`, q.ID); err != nil {
		return 0, err
	}
	if _, err := s.exec(ctx, tx, `DELETE FROM questions WHERE quiz_id = ?`, q.ID); err != nil {
		return 0, err
	}
	for _, qu := range questions {
		if _, err := s.exec(ctx, tx,
			`INSERT INTO questions (id, quiz_id, type, text, marks, order_index, correct_answer)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			qu.ID, qu.QuizID, qu.Type, qu.Text, qu.Marks, qu.OrderIndex, qu.CorrectAnswer,
		); err != nil {
			return 0, fmt.Errorf("question %d: %w", qu.ID, err)
		}
		for _, o := range qu.Options {
			if _, err := s.exec(ctx, tx,
				`INSERT INTO options (question_id, id, text, is_correct, order_index) VALUES (?, ?, ?, ?, ?)`,
				o.QuestionID, o.ID, o.Text, o.IsCorrect, o.OrderIndex,
			); err != nil {
				return 0, fmt.Errorf("option %s of question %d: %w", o.ID, qu.ID, err)
			}
		}
	}
	return len(questions), nil
}
