package model

import "time"

// OptionForTaking is an option as shown to a student, without its key.
type OptionForTaking struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// QuestionForTaking is a question as shown to a student, without its key.
type QuestionForTaking struct {
	ID      int64             `json:"id"`
	Type    QuestionType      `json:"type"`
	Text    string            `json:"text"`
	Marks   int               `json:"marks"`
	Options []OptionForTaking `json:"options,omitempty"`
}

// AttemptForTaking is returned when an attempt starts.
type AttemptForTaking struct {
	Attempt   Attempt             `json:"attempt"`
	QuizTitle string              `json:"quiz_title"`
	Deadline  *time.Time          `json:"deadline,omitempty"`
	Questions []QuestionForTaking `json:"questions"`
}

// AttemptGraded is a finished attempt with per-answer results.
type AttemptGraded struct {
	Attempt Attempt  `json:"attempt"`
	Passed  *bool    `json:"passed,omitempty"`
	Answers []Answer `json:"answers,omitempty"`
	// ResultsHidden is set when the quiz withholds results from students.
	ResultsHidden bool `json:"results_hidden,omitempty"`
}

// Redacted returns a copy safe for a student when the quiz does not show
// results immediately.
func (g AttemptGraded) Redacted() AttemptGraded {
	g.Attempt.Score = 0
	g.Attempt.Percentage = 0
	g.Passed = nil
	g.Answers = nil
	g.ResultsHidden = true
	return g
}

// QuizResult is one quiz row of a report card.
type QuizResult struct {
	QuizID        int64   `json:"quiz_id"`
	Title         string  `json:"title"`
	TotalMarks    int     `json:"total_marks"`
	AttemptID     string  `json:"attempt_id,omitempty"`
	AttemptNumber int     `json:"attempt_number,omitempty"`
	AttemptsUsed  int     `json:"attempts_used"`
	BestScore     int     `json:"best_score"`
	Percentage    float64 `json:"percentage"`
	Passed        *bool   `json:"passed,omitempty"`
}

// AssignmentResult is one assignment row of a report card.
type AssignmentResult struct {
	AssignmentID int64            `json:"assignment_id"`
	Title        string           `json:"title"`
	MaxScore     int              `json:"max_score"`
	Status       SubmissionStatus `json:"status,omitempty"`
	Score        *int             `json:"score,omitempty"`
	Graded       bool             `json:"graded"`
}

// ReportCard is the computed result of one student in one course.
type ReportCard struct {
	StudentID         int64              `json:"student_id"`
	CourseID          int64              `json:"course_id"`
	CourseCode        string             `json:"course_code,omitempty"`
	CourseTitle       string             `json:"course_title,omitempty"`
	Quizzes           []QuizResult       `json:"quizzes"`
	Assignments       []AssignmentResult `json:"assignments"`
	QuizAverage       float64            `json:"quiz_average"`
	AssignmentAverage float64            `json:"assignment_average"`
	OverallScore      float64            `json:"overall_score"`
	LetterGrade       string             `json:"letter_grade"`
}

// StudentReport rolls up all of a student's course report cards.
type StudentReport struct {
	StudentID   int64        `json:"student_id"`
	Courses     []ReportCard `json:"courses"`
	GPA         float64      `json:"gpa"`
	LetterGrade string       `json:"letter_grade"`
}
