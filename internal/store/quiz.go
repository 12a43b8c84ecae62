package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pavelanni/assessor/internal/model"
)

const quizColumns = `id, course_id, title, total_marks, passing_marks, duration_minutes, max_attempts,
	start_date, end_date, shuffle_questions, shuffle_options, show_results_immediately`

type scanner interface {
	Scan(dest ...any) error
}

func scanQuiz(row scanner) (model.Quiz, error) {
	var q model.Quiz
	err := row.Scan(&q.ID, &q.CourseID, &q.Title, &q.TotalMarks, &q.PassingMarks, &q.DurationMinutes,
		&q.MaxAttempts, &q.StartDate, &q.EndDate, &q.ShuffleQuestions, &q.ShuffleOptions, &q.ShowResultsImmediately)
	return q, err
}

// GetQuiz returns a quiz by ID.
func (s *Store) GetQuiz(ctx context.Context, id int64) (model.Quiz, error) {
	q, err := scanQuiz(s.queryRow(ctx, s.db, `SELECT `+quizColumns+` FROM quizzes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Quiz{}, fmt.Errorf("quiz %d: %w", id, model.ErrNotFound)
	}
	return q, err
}

// ListQuizzes returns the quizzes of a course ordered by ID.
func (s *Store) ListQuizzes(ctx context.Context, courseID int64) ([]model.Quiz, error) {
	return s.listQuizzes(ctx, s.db, courseID)
}

func (s *Store) listQuizzes(ctx context.Context, q querier, courseID int64) ([]model.Quiz, error) {
	rows, err := s.query(ctx, q, `SELECT `+quizColumns+` FROM quizzes WHERE course_id = ? ORDER BY id`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var quizzes []model.Quiz
	for rows.Next() {
		quiz, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, quiz)
	}
	return quizzes, rows.Err()
}

// FindQuestionsByQuiz returns a quiz's questions in stored order with their
// options attached.
func (s *Store) FindQuestionsByQuiz(ctx context.Context, quizID int64) ([]model.Question, error) {
	rows, err := s.query(ctx, s.db,
		`SELECT id, quiz_id, type, text, marks, order_index, correct_answer
		 FROM questions WHERE quiz_id = ? ORDER BY order_index, id`, quizID)
	if err != nil {
		return nil, err
	}
	var questions []model.Question
	index := make(map[int64]int)
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.QuizID, &q.Type, &q.Text, &q.Marks, &q.OrderIndex, &q.CorrectAnswer); err != nil {
			rows.Close()
			return nil, err
		}
		index[q.ID] = len(questions)
		questions = append(questions, q)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return questions, nil
	}

	rows, err = s.query(ctx, s.db,
		`SELECT o.question_id, o.id, o.text, o.is_correct, o.order_index
		 FROM options o JOIN questions q ON q.id = o.question_id
		 WHERE q.quiz_id = ? ORDER BY o.question_id, o.order_index, o.id`, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var o model.Option
		if err := rows.Scan(&o.QuestionID, &o.ID, &o.Text, &o.IsCorrect, &o.OrderIndex); err != nil {
			return nil, err
		}
		if i, ok := index[o.QuestionID]; ok {
			questions[i].Options = append(questions[i].Options, o)
		}
	}
	return questions, rows.Err()
}

// GetCourse returns a course by ID.
func (s *Store) GetCourse(ctx context.Context, id int64) (model.Course, error) {
	return s.getCourse(ctx, s.db, id)
}

func (s *Store) getCourse(ctx context.Context, q querier, id int64) (model.Course, error) {
	var c model.Course
	err := s.queryRow(ctx, q, `SELECT id, code, title FROM courses WHERE id = ?`, id).Scan(&c.ID, &c.Code, &c.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Course{}, fmt.Errorf("course %d: %w", id, model.ErrNotFound)
	}
	return c, err
}

// IsEnrolled reports whether a student is enrolled in a course.
func (s *Store) IsEnrolled(ctx context.Context, studentID, courseID int64) (bool, error) {
	return s.isEnrolled(ctx, s.db, studentID, courseID)
}

func (s *Store) isEnrolled(ctx context.Context, q querier, studentID, courseID int64) (bool, error) {
	var n int
	err := s.queryRow(ctx, q,
		`SELECT COUNT(*) FROM enrollments WHERE student_id = ? AND course_id = ?`, studentID, courseID,
	).Scan(&n)
	return n > 0, err
}

// EnrolledCourses returns the IDs of the courses a student is enrolled in.
func (s *Store) EnrolledCourses(ctx context.Context, studentID int64) ([]int64, error) {
	return s.int64s(ctx, `SELECT course_id FROM enrollments WHERE student_id = ? ORDER BY course_id`, studentID)
}

// ListStudents returns every enrolled student ID, or those of one course when
// courseID is non-zero.
func (s *Store) ListStudents(ctx context.Context, courseID int64) ([]int64, error) {
	if courseID != 0 {
		return s.int64s(ctx, `SELECT student_id FROM enrollments WHERE course_id = ? ORDER BY student_id`, courseID)
	}
	return s.int64s(ctx, `SELECT DISTINCT student_id FROM enrollments ORDER BY student_id`)
}

func (s *Store) int64s(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := s.query(ctx, s.db, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
