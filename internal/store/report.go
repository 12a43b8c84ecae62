package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/pavelanni/assessor/internal/model"
)

// CourseSnapshot reads everything a report card needs for one student in
// one course inside a single read transaction, so concurrent grading never
// produces a torn card. A missing course yields an empty, unenrolled
// snapshot.
func (s *Store) CourseSnapshot(ctx context.Context, studentID, courseID int64) (model.CourseSnapshot, error) {
	snap := model.CourseSnapshot{Course: model.Course{ID: courseID}}

	var opts *sql.TxOptions
	if s.driver == DriverPostgres {
		opts = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	err := s.inTx(ctx, opts, func(tx *sql.Tx) error {
		course, err := s.getCourse(ctx, tx, courseID)
		if errors.Is(err, model.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		snap.Course = course

		if snap.Enrolled, err = s.isEnrolled(ctx, tx, studentID, courseID); err != nil || !snap.Enrolled {
			return err
		}
		if snap.Quizzes, err = s.listQuizzes(ctx, tx, courseID); err != nil {
			return err
		}
		if snap.Attempts, err = s.attempts(ctx, tx,
			`SELECT a.id, a.quiz_id, a.student_id, a.attempt_number, a.status, a.started_at, a.submitted_at,
				a.time_spent_seconds, a.score, a.percentage
			 FROM attempts a JOIN quizzes q ON q.id = a.quiz_id
			 WHERE q.course_id = ? AND a.student_id = ? AND a.status = ?
			 ORDER BY a.quiz_id, a.attempt_number`,
			courseID, studentID, model.StatusGraded); err != nil {
			return err
		}
		if snap.Assignments, err = s.listAssignments(ctx, tx, courseID); err != nil {
			return err
		}
		snap.Submissions, err = s.listSubmissions(ctx, tx, courseID, studentID)
		return err
	})
	return snap, err
}

func (s *Store) listAssignments(ctx context.Context, q querier, courseID int64) ([]model.Assignment, error) {
	rows, err := s.query(ctx, q,
		`SELECT id, course_id, title, max_score FROM assignments WHERE course_id = ? ORDER BY id`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Assignment
	for rows.Next() {
		var a model.Assignment
		if err := rows.Scan(&a.ID, &a.CourseID, &a.Title, &a.MaxScore); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) listSubmissions(ctx context.Context, q querier, courseID, studentID int64) ([]model.Submission, error) {
	rows, err := s.query(ctx, q,
		`SELECT s.id, s.assignment_id, s.student_id, s.status, s.score, s.submitted_at
		 FROM submissions s JOIN assignments a ON a.id = s.assignment_id
		 WHERE a.course_id = ? AND s.student_id = ?
		 ORDER BY s.assignment_id`, courseID, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Submission
	for rows.Next() {
		var sub model.Submission
		if err := rows.Scan(&sub.ID, &sub.AssignmentID, &sub.StudentID, &sub.Status, &sub.Score, &sub.SubmittedAt); err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}
