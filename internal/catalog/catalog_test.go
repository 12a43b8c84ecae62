package catalog

import (
	"errors"
	"strings"
	"testing"

	"github.com/pavelanni/assessor/internal/model"
)

const validCatalog = `{
  "courses": [{"id": 1, "code": "GO101", "title": "Intro to Go"}],
  "enrollments": [{"student_id": 7, "course_id": 1}],
  "quizzes": [{
    "id": 11, "course_id": 1, "title": "Basics", "total_marks": 6, "passing_marks": 3,
    "duration_minutes": 30, "shuffle_options": true,
    "questions": [
      {"id": 100, "type": "MULTIPLE_CHOICE", "text": "Which keyword starts a goroutine?", "marks": 5,
       "correct_answer": "A", "options": [{"id": "A", "text": "go"}, {"id": "B", "text": "async"}]},
      {"id": 101, "type": "SHORT_ANSWER", "text": "Zero value of a pointer?", "correct_answer": "nil"}
    ]
  }],
  "assignments": [{"id": 5, "course_id": 1, "title": "Essay", "max_score": 100}],
  "submissions": [{"assignment_id": 5, "student_id": 7, "status": "graded", "score": 50,
                   "submitted_at": "2026-02-01T10:00:00Z"}]
}`

func TestParseValid(t *testing.T) {
	c, err := Parse(strings.NewReader(validCatalog))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(c.Courses) != 1 || len(c.Quizzes) != 1 || len(c.Submissions) != 1 {
		t.Fatalf("unexpected catalog: %+v", c)
	}

	quiz, questions := c.Quizzes[0].Model()
	if quiz.MaxAttempts != 1 {
		t.Errorf("expected unset max_attempts to become 1, got %d", quiz.MaxAttempts)
	}
	if !quiz.ShowResultsImmediately {
		t.Error("expected results shown by default")
	}
	if !quiz.ShuffleOptions || quiz.ShuffleQuestions {
		t.Errorf("unexpected shuffle flags: %+v", quiz)
	}
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}
	if questions[0].QuizID != 11 || questions[0].Options[1].QuestionID != 100 || questions[0].Options[1].OrderIndex != 1 {
		t.Errorf("unexpected question conversion: %+v", questions[0])
	}
	if questions[1].Marks != nil || questions[1].MarksOrDefault() != 1 {
		t.Errorf("expected default marks, got %v", questions[1].Marks)
	}

	sub := c.Submissions[0].Model()
	if sub.Status != model.SubmissionGraded || sub.Score == nil || *sub.Score != 50 {
		t.Errorf("unexpected submission: %+v", sub)
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		wantRule string
	}{
		{
			name:     "unknown field",
			doc:      `{"courses": [], "teachers": []}`,
			wantRule: "",
		},
		{
			name:     "missing course title",
			doc:      `{"courses": [{"id": 1, "code": "X"}]}`,
			wantRule: "courses[0].title: required",
		},
		{
			name: "passing above total",
			doc: `{"quizzes": [{"id": 1, "course_id": 1, "title": "Q", "total_marks": 5, "passing_marks": 6,
			        "questions": []}]}`,
			wantRule: "quizzes[0].passing_marks: ltefield_total_marks",
		},
		{
			name: "bad question type",
			doc: `{"quizzes": [{"id": 1, "course_id": 1, "title": "Q",
			        "questions": [{"id": 1, "type": "ORAL", "text": "?"}]}]}`,
			wantRule: "quizzes[0].questions[0].type: oneof",
		},
		{
			name: "choice without options",
			doc: `{"quizzes": [{"id": 1, "course_id": 1, "title": "Q",
			        "questions": [{"id": 1, "type": "TRUE_FALSE", "text": "?", "correct_answer": "T"}]}]}`,
			wantRule: "quizzes[0].questions[0].options: required_for_choice",
		},
		{
			name: "duplicate option ids",
			doc: `{"quizzes": [{"id": 1, "course_id": 1, "title": "Q",
			        "questions": [{"id": 1, "type": "MULTIPLE_CHOICE", "text": "?", "correct_answer": "A",
			          "options": [{"id": "A", "text": "x"}, {"id": "A", "text": "y"}]}]}]}`,
			wantRule: "quizzes[0].questions[0].options: unique_ids",
		},
		{
			name: "key not an option",
			doc: `{"quizzes": [{"id": 1, "course_id": 1, "title": "Q",
			        "questions": [{"id": 1, "type": "MULTIPLE_CHOICE", "text": "?", "correct_answer": "C",
			          "options": [{"id": "A", "text": "x"}, {"id": "B", "text": "y"}]}]}]}`,
			wantRule: "quizzes[0].questions[0].correct_answer: option_id",
		},
		{
			name: "duplicate question ids",
			doc: `{"quizzes": [{"id": 1, "course_id": 1, "title": "Q",
			        "questions": [{"id": 1, "type": "ESSAY", "text": "a"}, {"id": 1, "type": "ESSAY", "text": "b"}]}]}`,
			wantRule: "quizzes[0].questions: unique_ids",
		},
		{
			name: "question id shared across quizzes",
			doc: `{"quizzes": [
			        {"id": 1, "course_id": 1, "title": "Q1", "questions": [{"id": 7, "type": "ESSAY", "text": "a"}]},
			        {"id": 2, "course_id": 1, "title": "Q2", "questions": [{"id": 7, "type": "ESSAY", "text": "b"}]}]}`,
			wantRule: "quizzes: unique_question_ids",
		},
		{
			name: "duplicate quiz ids",
			doc: `{"quizzes": [{"id": 1, "course_id": 1, "title": "Q1", "questions": []},
			        {"id": 1, "course_id": 1, "title": "Q2", "questions": []}]}`,
			wantRule: "quizzes: unique_ids",
		},
		{
			name: "graded without score",
			doc: `{"submissions": [{"assignment_id": 1, "student_id": 1, "status": "graded",
			        "submitted_at": "2026-02-01T10:00:00Z"}]}`,
			wantRule: "submissions[0].score: required_when_graded",
		},
		{
			name: "score above max",
			doc: `{"assignments": [{"id": 1, "course_id": 1, "title": "A", "max_score": 10}],
			       "submissions": [{"assignment_id": 1, "student_id": 1, "status": "graded", "score": 11,
			        "submitted_at": "2026-02-01T10:00:00Z"}]}`,
			wantRule: "submissions[0].score: lte_max_score",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBytes([]byte(tt.doc))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !errors.Is(err, model.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
			if tt.wantRule != "" && !strings.Contains(err.Error(), tt.wantRule) {
				t.Errorf("expected %q in %q", tt.wantRule, err.Error())
			}
		})
	}
}

func TestValidationErrorFields(t *testing.T) {
	_, err := ParseBytes([]byte(`{"courses": [{"id": 0, "code": "", "title": ""}]}`))
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if len(ve.Fields) != 3 {
		t.Errorf("expected 3 field errors, got %+v", ve.Fields)
	}
}

func TestShowResultsExplicitFalse(t *testing.T) {
	c, err := ParseBytes([]byte(`{"quizzes": [{"id": 1, "course_id": 1, "title": "Q", "max_attempts": 3,
	  "show_results_immediately": false, "questions": []}]}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	quiz, _ := c.Quizzes[0].Model()
	if quiz.ShowResultsImmediately {
		t.Error("expected results hidden")
	}
	if quiz.MaxAttempts != 3 {
		t.Errorf("expected 3 attempts, got %d", quiz.MaxAttempts)
	}
}
