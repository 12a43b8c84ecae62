package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/pavelanni/assessor/internal/attempt"
	"github.com/pavelanni/assessor/internal/catalog"
	"github.com/pavelanni/assessor/internal/grading"
	appI18n "github.com/pavelanni/assessor/internal/i18n"
	"github.com/pavelanni/assessor/internal/model"
	"github.com/pavelanni/assessor/internal/reportcard"
	"github.com/pavelanni/assessor/internal/store"
)

const adminPassword = "s3cret"

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

const testCatalog = `{
  "courses": [{"id": 1, "code": "GO101", "title": "Intro to Go"}],
  "enrollments": [{"student_id": 7, "course_id": 1}],
  "quizzes": [
    {"id": 11, "course_id": 1, "title": "Basics", "total_marks": 10, "passing_marks": 5, "max_attempts": 1,
     "questions": [
       {"id": 100, "type": "MULTIPLE_CHOICE", "text": "Which keyword starts a goroutine?", "marks": 5,
        "correct_answer": "A",
        "options": [{"id": "A", "text": "go", "is_correct": true}, {"id": "B", "text": "async"}]},
       {"id": 101, "type": "SHORT_ANSWER", "text": "Zero value of a pointer?", "marks": 5,
        "correct_answer": "nil"}
     ]},
    {"id": 12, "course_id": 1, "title": "Hidden", "total_marks": 5, "show_results_immediately": false,
     "questions": [{"id": 200, "type": "SHORT_ANSWER", "text": "Maps are ordered.", "marks": 5,
                    "correct_answer": "false"}]},
    {"id": 13, "course_id": 1, "title": "Closed", "total_marks": 5, "end_date": "2020-01-01T00:00:00Z",
     "questions": [{"id": 300, "type": "SHORT_ANSWER", "text": "Go has generics.", "marks": 5,
                    "correct_answer": "true"}]},
    {"id": 14, "course_id": 1, "title": "Timed", "total_marks": 5, "duration_minutes": 10, "max_attempts": 2,
     "questions": [{"id": 400, "type": "SHORT_ANSWER", "text": "Slices are values.", "marks": 5,
                    "correct_answer": "true"}]}
  ],
  "assignments": [{"id": 5, "course_id": 1, "title": "Essay", "max_score": 100}],
  "submissions": [{"assignment_id": 5, "student_id": 7, "status": "graded", "score": 50,
                   "submitted_at": "2026-02-01T10:00:00Z"}]
}`

type testServer struct {
	h      *Handler
	router http.Handler
}

func newTestServer(t *testing.T, cfg Config) *testServer {
	t.Helper()
	if err := appI18n.Init("en"); err != nil {
		t.Fatalf("init i18n: %v", err)
	}

	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	c, err := catalog.ParseBytes([]byte(testCatalog))
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}
	if _, err := s.ImportCatalog(context.Background(), c); err != nil {
		t.Fatalf("import catalog: %v", err)
	}

	var seq atomic.Int64
	svc := attempt.New(s, grading.New(), attempt.WithIDGenerator(func() string {
		return fmt.Sprintf("att-%d", seq.Add(1))
	}))
	h, err := New(s, svc, reportcard.New(s, 2), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.now = func() time.Time { return testNow }

	r := chi.NewRouter()
	r.Use(appI18n.Middleware("en"))
	h.Routes(r)
	return &testServer{h: h, router: r}
}

type reqOpt func(*http.Request)

func asStudent(id int64) reqOpt {
	return func(r *http.Request) { r.Header.Set(studentIDHeader, fmt.Sprint(id)) }
}

func asAdmin(password string) reqOpt {
	return func(r *http.Request) { r.SetBasicAuth(adminUser, password) }
}

func (ts *testServer) do(t *testing.T, method, target, body string, opts ...reqOpt) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, o := range opts {
		o(req)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestStartAndSubmit(t *testing.T) {
	ts := newTestServer(t, Config{})

	rec := ts.do(t, http.MethodPost, "/api/quizzes/11/attempts", "", asStudent(7))
	if rec.Code != http.StatusCreated {
		t.Fatalf("start status = %d, body %s", rec.Code, rec.Body)
	}
	view := decode[model.AttemptForTaking](t, rec)
	if view.Attempt.ID != "att-1" || view.Attempt.AttemptNumber != 1 {
		t.Errorf("unexpected attempt %+v", view.Attempt)
	}
	if len(view.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(view.Questions))
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("is_correct")) || bytes.Contains(rec.Body.Bytes(), []byte(`"nil"`)) {
		t.Errorf("answer key leaked to student: %s", rec.Body)
	}

	body := `{"answers": [
	  {"question_id": 100, "selected_option_id": "A"},
	  {"question_id": 101, "answer_text": "null"}
	]}`
	rec = ts.do(t, http.MethodPost, "/api/attempts/att-1/submit", body, asStudent(7))
	if rec.Code != http.StatusOK {
		t.Fatalf("submit status = %d, body %s", rec.Code, rec.Body)
	}
	graded := decode[model.AttemptGraded](t, rec)
	if graded.Attempt.Status != model.StatusGraded || graded.Attempt.Score != 5 || graded.Attempt.Percentage != 50 {
		t.Errorf("unexpected graded attempt %+v", graded.Attempt)
	}
	if graded.Passed == nil || !*graded.Passed {
		t.Errorf("expected passed, got %v", graded.Passed)
	}

	rec = ts.do(t, http.MethodGet, "/api/attempts/att-1", "", asStudent(7))
	if rec.Code != http.StatusOK {
		t.Fatalf("result status = %d", rec.Code)
	}
	if got := decode[model.AttemptGraded](t, rec); len(got.Answers) != 2 {
		t.Errorf("expected 2 answers in result, got %d", len(got.Answers))
	}

	// Max attempts is 1.
	rec = ts.do(t, http.MethodPost, "/api/quizzes/11/attempts", "", asStudent(7))
	if rec.Code != http.StatusConflict {
		t.Fatalf("second start status = %d", rec.Code)
	}
	e := decode[apiError](t, rec)
	if e.Code != "attempt_limit_exceeded" || e.Message != "You have used all attempts allowed for this quiz." {
		t.Errorf("unexpected error body %+v", e)
	}

	// Submitting again is a state error.
	rec = ts.do(t, http.MethodPost, "/api/attempts/att-1/submit", `{"answers": []}`, asStudent(7))
	if rec.Code != http.StatusConflict || decode[apiError](t, rec).Code != "invalid_attempt_state" {
		t.Errorf("resubmit: status %d body %s", rec.Code, rec.Body)
	}
}

func TestErrorMapping(t *testing.T) {
	ts := newTestServer(t, Config{})

	tests := []struct {
		name   string
		method string
		target string
		body   string
		opts   []reqOpt
		status int
		code   string
	}{
		{"no identity", http.MethodPost, "/api/quizzes/11/attempts", "", nil, http.StatusUnauthorized, "unauthorized"},
		{"bad identity", http.MethodPost, "/api/quizzes/11/attempts", "", []reqOpt{asStudent(-1)}, http.StatusUnauthorized, "unauthorized"},
		{"not enrolled", http.MethodPost, "/api/quizzes/11/attempts", "", []reqOpt{asStudent(8)}, http.StatusForbidden, "not_enrolled"},
		{"quiz closed", http.MethodPost, "/api/quizzes/13/attempts", "", []reqOpt{asStudent(7)}, http.StatusConflict, "quiz_closed"},
		{"unknown quiz", http.MethodPost, "/api/quizzes/99/attempts", "", []reqOpt{asStudent(7)}, http.StatusNotFound, "not_found"},
		{"bad quiz id", http.MethodPost, "/api/quizzes/abc/attempts", "", []reqOpt{asStudent(7)}, http.StatusBadRequest, "invalid_input"},
		{"unknown attempt", http.MethodGet, "/api/attempts/nope", "", []reqOpt{asStudent(7)}, http.StatusNotFound, "not_found"},
		{"bad json", http.MethodPost, "/api/attempts/nope/submit", `{"answers": [`, []reqOpt{asStudent(7)}, http.StatusBadRequest, "invalid_input"},
		{"unknown field", http.MethodPost, "/api/attempts/nope/submit", `{"answerz": []}`, []reqOpt{asStudent(7)}, http.StatusBadRequest, "invalid_input"},
		{"missing question id", http.MethodPost, "/api/attempts/nope/submit", `{"answers": [{"answer_text": "x"}]}`, []reqOpt{asStudent(7)}, http.StatusBadRequest, "invalid_input"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, tt.method, tt.target, tt.body, tt.opts...)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d, body %s", rec.Code, tt.status, rec.Body)
			}
			if e := decode[apiError](t, rec); e.Code != tt.code || e.Message == "" {
				t.Errorf("body = %+v, want code %q", e, tt.code)
			}
		})
	}
}

func TestSubmitRejections(t *testing.T) {
	ts := newTestServer(t, Config{})
	if rec := ts.do(t, http.MethodPost, "/api/quizzes/14/attempts", "", asStudent(7)); rec.Code != http.StatusCreated {
		t.Fatalf("start status = %d", rec.Code)
	}

	tests := []struct {
		name string
		body string
		code string
	}{
		{"question from another quiz", `{"answers": [{"question_id": 100, "selected_option_id": "A"}]}`, "question_not_found"},
		{"duplicate answers", `{"answers": [{"question_id": 400, "answer_text": "true"}, {"question_id": 400, "answer_text": "false"}]}`, "duplicate_answer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/attempts/att-1/submit", tt.body, asStudent(7))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
			}
			if e := decode[apiError](t, rec); e.Code != tt.code {
				t.Errorf("code = %q, want %q", e.Code, tt.code)
			}
		})
	}

	// The attempt is still open after rejected submits.
	rec := ts.do(t, http.MethodPost, "/api/attempts/att-1/submit", `{"answers": [{"question_id": 400, "answer_text": "true"}]}`, asStudent(7))
	if rec.Code != http.StatusOK {
		t.Fatalf("valid submit status = %d, body %s", rec.Code, rec.Body)
	}
}

func TestResultsWithheld(t *testing.T) {
	ts := newTestServer(t, Config{AdminPassword: adminPassword})

	if rec := ts.do(t, http.MethodPost, "/api/quizzes/12/attempts", "", asStudent(7)); rec.Code != http.StatusCreated {
		t.Fatalf("start status = %d", rec.Code)
	}
	rec := ts.do(t, http.MethodPost, "/api/attempts/att-1/submit", `{"answers": [{"question_id": 200, "answer_text": "false"}]}`, asStudent(7))
	if rec.Code != http.StatusOK {
		t.Fatalf("submit status = %d, body %s", rec.Code, rec.Body)
	}
	got := decode[model.AttemptGraded](t, rec)
	if !got.ResultsHidden || got.Attempt.Score != 0 || got.Answers != nil {
		t.Errorf("expected redacted result, got %+v", got)
	}

	rec = ts.do(t, http.MethodGet, "/api/admin/attempts/att-1", "", asAdmin(adminPassword))
	if rec.Code != http.StatusOK {
		t.Fatalf("inspect status = %d", rec.Code)
	}
	got = decode[model.AttemptGraded](t, rec)
	if got.ResultsHidden || got.Attempt.Score != 5 {
		t.Errorf("expected full result for admin, got %+v", got)
	}
}

func TestReportCards(t *testing.T) {
	ts := newTestServer(t, Config{AdminPassword: adminPassword})

	ts.do(t, http.MethodPost, "/api/quizzes/11/attempts", "", asStudent(7))
	ts.do(t, http.MethodPost, "/api/attempts/att-1/submit", `{"answers": [{"question_id": 100, "selected_option_id": "A"}]}`, asStudent(7))

	rec := ts.do(t, http.MethodGet, "/api/courses/1/report-card", "", asStudent(7))
	if rec.Code != http.StatusOK {
		t.Fatalf("course report status = %d, body %s", rec.Code, rec.Body)
	}
	card := decode[model.ReportCard](t, rec)
	if card.QuizAverage != 50 || card.AssignmentAverage != 50 || card.OverallScore != 50 {
		t.Errorf("unexpected card %+v", card)
	}

	rec = ts.do(t, http.MethodGet, "/api/report-card", "", asStudent(7))
	if rec.Code != http.StatusOK {
		t.Fatalf("student report status = %d", rec.Code)
	}
	report := decode[model.StudentReport](t, rec)
	if len(report.Courses) != 1 || report.GPA != 50 {
		t.Errorf("unexpected report %+v", report)
	}

	// Unenrolled students get an empty card, not an error.
	rec = ts.do(t, http.MethodGet, "/api/courses/1/report-card", "", asStudent(8))
	if rec.Code != http.StatusOK {
		t.Fatalf("unenrolled status = %d", rec.Code)
	}
	if card := decode[model.ReportCard](t, rec); card.LetterGrade != reportcard.NoGrade {
		t.Errorf("letter = %q, want %q", card.LetterGrade, reportcard.NoGrade)
	}

	rec = ts.do(t, http.MethodGet, "/api/admin/students/7/report-card", "", asAdmin(adminPassword))
	if rec.Code != http.StatusOK {
		t.Fatalf("admin report status = %d", rec.Code)
	}
	if got := decode[model.StudentReport](t, rec); got.StudentID != 7 || got.GPA != report.GPA {
		t.Errorf("admin report differs: %+v", got)
	}
}

func TestAdminAuth(t *testing.T) {
	tests := []struct {
		name     string
		password string
		opts     []reqOpt
		status   int
	}{
		{"no credentials", adminPassword, nil, http.StatusUnauthorized},
		{"wrong password", adminPassword, []reqOpt{asAdmin("guess")}, http.StatusUnauthorized},
		{"admin disabled", "", []reqOpt{asAdmin("")}, http.StatusUnauthorized},
		{"ok", adminPassword, []reqOpt{asAdmin(adminPassword)}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, Config{AdminPassword: tt.password})
			rec := ts.do(t, http.MethodPost, "/api/admin/sweep", "", tt.opts...)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.status == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("missing WWW-Authenticate header")
			}
		})
	}
}

func TestAdminImportCatalog(t *testing.T) {
	ts := newTestServer(t, Config{AdminPassword: adminPassword})

	doc := `{
	  "courses": [{"id": 2, "code": "DB201", "title": "Databases"}],
	  "quizzes": [{"id": 21, "course_id": 2, "title": "SQL", "total_marks": 5,
	    "questions": [{"id": 500, "type": "SHORT_ANSWER", "text": "Keyword to read rows?", "marks": 5,
	                   "correct_answer": "select"}]}]
	}`
	rec := ts.do(t, http.MethodPost, "/api/admin/catalog", doc, asAdmin(adminPassword))
	if rec.Code != http.StatusOK {
		t.Fatalf("import status = %d, body %s", rec.Code, rec.Body)
	}
	got := decode[importResponse](t, rec)
	if got.Stats.Quizzes != 1 || got.Stats.Questions != 1 {
		t.Errorf("unexpected stats %+v", got.Stats)
	}
	if got.Message != "Imported 1 quizzes and 1 questions." {
		t.Errorf("message = %q", got.Message)
	}

	rec = ts.do(t, http.MethodPost, "/api/admin/catalog", `{"courses": [{"id": 0, "code": "", "title": "x"}]}`, asAdmin(adminPassword))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid import status = %d", rec.Code)
	}
	if e := decode[apiError](t, rec); e.Code != "invalid_input" || len(e.Fields) != 2 {
		t.Errorf("unexpected error body %+v", e)
	}

	rec = ts.do(t, http.MethodPost, "/api/admin/catalog", `{"enrollments": [{"student_id": 9, "course_id": 42}]}`, asAdmin(adminPassword))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("dangling reference status = %d, body %s", rec.Code, rec.Body)
	}

	reused := `{"quizzes": [{"id": 22, "course_id": 2, "title": "Joins",
	    "questions": [{"id": 100, "type": "ESSAY", "text": "Explain joins."}]}]}`
	rec = ts.do(t, http.MethodPost, "/api/admin/catalog", reused, asAdmin(adminPassword))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("reused question id status = %d, body %s", rec.Code, rec.Body)
	}
	if e := decode[apiError](t, rec); e.Code != "invalid_input" {
		t.Errorf("unexpected error body %+v", e)
	}
}

func TestAdminSweep(t *testing.T) {
	ts := newTestServer(t, Config{AdminPassword: adminPassword})

	if rec := ts.do(t, http.MethodPost, "/api/quizzes/14/attempts", "", asStudent(7)); rec.Code != http.StatusCreated {
		t.Fatalf("start status = %d", rec.Code)
	}
	ts.h.now = func() time.Time { return testNow.Add(time.Hour) }

	rec := ts.do(t, http.MethodPost, "/api/admin/sweep", "", asAdmin(adminPassword))
	if rec.Code != http.StatusOK {
		t.Fatalf("sweep status = %d", rec.Code)
	}
	got := decode[sweepResponse](t, rec)
	if got.Expired != 1 || got.Message != "1 attempt expired." {
		t.Errorf("unexpected sweep response %+v", got)
	}

	v, err := ts.h.store.GetMetadata(context.Background(), store.MetaLastSweepCount)
	if err != nil || v != "1" {
		t.Errorf("recorded sweep count = %q, %v", v, err)
	}

	rec = ts.do(t, http.MethodPost, "/api/attempts/att-1/submit", `{"answers": []}`, asStudent(7))
	if rec.Code != http.StatusConflict {
		t.Errorf("submit after expiry status = %d", rec.Code)
	}
}

func TestJWTIdentity(t *testing.T) {
	const secret = "jwt-test-secret"
	ts := newTestServer(t, Config{JWTSecret: secret})

	sign := func(key, sub string, method jwt.SigningMethod) string {
		tok := jwt.NewWithClaims(method, jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		})
		s, err := tok.SignedString([]byte(key))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}
	bearer := func(tok string) reqOpt {
		return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }
	}

	tests := []struct {
		name   string
		opts   []reqOpt
		status int
	}{
		{"valid token", []reqOpt{bearer(sign(secret, "7", jwt.SigningMethodHS256))}, http.StatusOK},
		{"wrong key", []reqOpt{bearer(sign("other", "7", jwt.SigningMethodHS256))}, http.StatusUnauthorized},
		{"other algorithm", []reqOpt{bearer(sign(secret, "7", jwt.SigningMethodHS512))}, http.StatusUnauthorized},
		{"non-numeric subject", []reqOpt{bearer(sign(secret, "alice", jwt.SigningMethodHS256))}, http.StatusUnauthorized},
		{"header ignored", []reqOpt{asStudent(7)}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodGet, "/api/report-card", "", tt.opts...)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d, body %s", rec.Code, tt.status, rec.Body)
			}
		})
	}
}

func TestLocalizedErrors(t *testing.T) {
	ts := newTestServer(t, Config{})

	rec := ts.do(t, http.MethodPost, "/api/quizzes/13/attempts", "", asStudent(7), func(r *http.Request) {
		r.Header.Set("Accept-Language", "ru-RU,ru;q=0.9")
	})
	if e := decode[apiError](t, rec); e.Code != "quiz_closed" || e.Message != "Этот тест закрыт." {
		t.Errorf("unexpected localized error %+v", e)
	}
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://lms.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodOptions, "/api/report-card", nil)
	req.Header.Set("Origin", "https://lms.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", studentIDHeader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://lms.example.com" {
		t.Errorf("allowed origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/report-card", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unexpected allowed origin %q", got)
	}
}
