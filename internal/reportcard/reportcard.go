// Package reportcard combines quiz and assignment results into weighted
// course grades and a multi-course GPA.
package reportcard

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/pavelanni/assessor/internal/model"
)

// Source reads what the aggregator needs. CourseSnapshot must return data
// from one consistent read.
type Source interface {
	CourseSnapshot(ctx context.Context, studentID, courseID int64) (model.CourseSnapshot, error)
	EnrolledCourses(ctx context.Context, studentID int64) ([]int64, error)
}

var (
	quizWeight       = decimal.RequireFromString("0.4")
	assignmentWeight = decimal.RequireFromString("0.6")
	hundred          = decimal.NewFromInt(100)
)

const defaultConcurrency = 4

// Aggregator builds report cards. It only reads and is safe for concurrent use.
type Aggregator struct {
	source      Source
	concurrency int
}

// New creates an Aggregator. concurrency bounds how many course cards a
// student report builds at once; values below 1 use a default.
func New(source Source, concurrency int) *Aggregator {
	if concurrency < 1 {
		concurrency = defaultConcurrency
	}
	return &Aggregator{source: source, concurrency: concurrency}
}

// CourseReport builds the report card of one student in one course. A
// student who is not enrolled gets a zero report graded "N/A".
func (a *Aggregator) CourseReport(ctx context.Context, studentID, courseID int64) (model.ReportCard, error) {
	snap, err := a.source.CourseSnapshot(ctx, studentID, courseID)
	if err != nil {
		return model.ReportCard{}, fmt.Errorf("course %d snapshot: %w", courseID, err)
	}
	card, _ := Build(studentID, snap)
	return card, nil
}

// StudentReport builds a card for every course the student is enrolled in
// and rolls them up into a GPA.
func (a *Aggregator) StudentReport(ctx context.Context, studentID int64) (model.StudentReport, error) {
	courseIDs, err := a.source.EnrolledCourses(ctx, studentID)
	if err != nil {
		return model.StudentReport{}, fmt.Errorf("enrolled courses: %w", err)
	}

	cards := make([]model.ReportCard, len(courseIDs))
	overall := make([]decimal.Decimal, len(courseIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, courseID := range courseIDs {
		g.Go(func() error {
			snap, err := a.source.CourseSnapshot(gctx, studentID, courseID)
			if err != nil {
				return fmt.Errorf("course %d snapshot: %w", courseID, err)
			}
			cards[i], overall[i] = Build(studentID, snap)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.StudentReport{}, err
	}

	rep := model.StudentReport{
		StudentID:   studentID,
		Courses:     cards,
		LetterGrade: NoGrade,
	}
	if len(cards) > 0 {
		gpa := decimal.Avg(overall[0], overall[1:]...)
		rep.GPA = gpa.Round(2).InexactFloat64()
		rep.LetterGrade = Letter(gpa)
	}
	slog.Debug("student report built", "student_id", studentID, "courses", len(cards), "gpa", rep.GPA)
	return rep, nil
}

// Build computes a report card from a snapshot. It also returns the unrounded
// overall score that the letter grade was taken from.
//
// Per quiz, the best graded attempt counts: highest score, ties going to the
// later submission. Quizzes nobody attempted and ungraded submissions are
// listed but left out of the averages. With both categories present the
// overall score is 40% quizzes and 60% assignments; with one it is that
// category's average.
//
// A card with no graded work, enrolled or not, has zero averages and the
// letter grade NoGrade rather than F, so an empty course does not read as a
// failed one.
func Build(studentID int64, snap model.CourseSnapshot) (model.ReportCard, decimal.Decimal) {
	card := model.ReportCard{
		StudentID:   studentID,
		CourseID:    snap.Course.ID,
		CourseCode:  snap.Course.Code,
		CourseTitle: snap.Course.Title,
		Quizzes:     []model.QuizResult{},
		Assignments: []model.AssignmentResult{},
		LetterGrade: NoGrade,
	}
	if !snap.Enrolled {
		return card, decimal.Zero
	}

	quizAvg, hasQuizzes := quizResults(&card, snap)
	assignAvg, hasAssignments := assignmentResults(&card, snap)

	var overall decimal.Decimal
	switch {
	case hasQuizzes && hasAssignments:
		overall = quizAvg.Mul(quizWeight).Add(assignAvg.Mul(assignmentWeight))
	case hasQuizzes:
		overall = quizAvg
	case hasAssignments:
		overall = assignAvg
	default:
		return card, decimal.Zero
	}

	card.QuizAverage = quizAvg.InexactFloat64()
	card.AssignmentAverage = assignAvg.InexactFloat64()
	card.OverallScore = overall.Round(2).InexactFloat64()
	card.LetterGrade = Letter(overall)
	return card, overall
}

// quizResults fills the quiz rows and returns the quiz average rounded to
// two decimals.
func quizResults(card *model.ReportCard, snap model.CourseSnapshot) (decimal.Decimal, bool) {
	byQuiz := make(map[int64][]model.Attempt)
	for _, at := range snap.Attempts {
		if at.Status == model.StatusGraded {
			byQuiz[at.QuizID] = append(byQuiz[at.QuizID], at)
		}
	}

	quizzes := append([]model.Quiz(nil), snap.Quizzes...)
	sort.Slice(quizzes, func(i, j int) bool { return quizzes[i].ID < quizzes[j].ID })

	var scored, possible int64
	counted := false
	for _, q := range quizzes {
		row := model.QuizResult{QuizID: q.ID, Title: q.Title, TotalMarks: q.TotalMarks}
		attempts := byQuiz[q.ID]
		row.AttemptsUsed = len(attempts)
		if best, ok := bestAttempt(attempts); ok {
			row.AttemptID = best.ID
			row.AttemptNumber = best.AttemptNumber
			row.BestScore = best.Score
			if q.TotalMarks > 0 {
				row.Percentage = percent(int64(best.Score), int64(q.TotalMarks)).Round(2).InexactFloat64()
			}
			if q.PassingMarks > 0 {
				p := best.Score >= q.PassingMarks
				row.Passed = &p
			}
			scored += int64(best.Score)
			possible += int64(q.TotalMarks)
			counted = true
		}
		card.Quizzes = append(card.Quizzes, row)
	}
	if !counted {
		return decimal.Zero, false
	}
	return percent(scored, possible).Round(2), true
}

// assignmentResults fills the assignment rows and returns the average over
// graded submissions rounded to two decimals.
func assignmentResults(card *model.ReportCard, snap model.CourseSnapshot) (decimal.Decimal, bool) {
	latest := make(map[int64]model.Submission)
	for _, s := range snap.Submissions {
		cur, ok := latest[s.AssignmentID]
		if !ok || preferSubmission(s, cur) {
			latest[s.AssignmentID] = s
		}
	}

	assignments := append([]model.Assignment(nil), snap.Assignments...)
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].ID < assignments[j].ID })

	var scored, possible int64
	counted := false
	for _, as := range assignments {
		row := model.AssignmentResult{AssignmentID: as.ID, Title: as.Title, MaxScore: as.MaxScore}
		if s, ok := latest[as.ID]; ok {
			row.Status = s.Status
			row.Score = s.Score
			if s.Status == model.SubmissionGraded && s.Score != nil {
				row.Graded = true
				scored += int64(*s.Score)
				possible += int64(as.MaxScore)
				counted = true
			}
		}
		card.Assignments = append(card.Assignments, row)
	}
	if !counted {
		return decimal.Zero, false
	}
	return percent(scored, possible).Round(2), true
}

// bestAttempt picks the highest score, breaking ties by the later submission.
func bestAttempt(attempts []model.Attempt) (model.Attempt, bool) {
	if len(attempts) == 0 {
		return model.Attempt{}, false
	}
	best := attempts[0]
	for _, at := range attempts[1:] {
		if at.Score > best.Score || (at.Score == best.Score && submittedLater(at, best)) {
			best = at
		}
	}
	return best, true
}

func submittedLater(a, b model.Attempt) bool {
	switch {
	case a.SubmittedAt == nil:
		return false
	case b.SubmittedAt == nil:
		return true
	default:
		return a.SubmittedAt.After(*b.SubmittedAt)
	}
}

// preferSubmission favours a graded submission, then the most recent one.
func preferSubmission(s, cur model.Submission) bool {
	sg := s.Status == model.SubmissionGraded
	cg := cur.Status == model.SubmissionGraded
	if sg != cg {
		return sg
	}
	return s.SubmittedAt.After(cur.SubmittedAt)
}

func percent(part, whole int64) decimal.Decimal {
	if whole <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(part).Mul(hundred).Div(decimal.NewFromInt(whole))
}
