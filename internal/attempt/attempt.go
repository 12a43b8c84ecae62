// Package attempt implements the quiz attempt lifecycle:
//
//	in_progress -> graded          (Submit; submission and grading are one step)
//	in_progress -> expired         (Sweep, when the window or duration has passed)
//
// Attempts are never deleted once finished. Start is serialized per
// (quiz, student) so concurrent requests cannot exceed the attempt limit, and
// every transition out of in_progress is a compare-and-set in the store, so a
// second Submit, or a Sweep racing a Submit, loses cleanly.
package attempt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/assessor/internal/grading"
	"github.com/pavelanni/assessor/internal/model"
	"github.com/pavelanni/assessor/internal/questionbank"
)

// QuizStore loads quiz definitions.
type QuizStore interface {
	GetQuiz(ctx context.Context, id int64) (model.Quiz, error)
}

// QuestionStore loads a quiz's questions with their options attached.
type QuestionStore interface {
	FindQuestionsByQuiz(ctx context.Context, quizID int64) ([]model.Question, error)
}

// EnrollmentChecker answers whether a student may take a course's quizzes.
type EnrollmentChecker interface {
	IsEnrolled(ctx context.Context, studentID, courseID int64) (bool, error)
}

// AttemptStore persists attempts and their answers.
//
// CreateAttempt must fail with model.ErrConflict when the
// (quiz, student, attempt number) triple already exists. CompleteAttempt and
// ExpireAttempt must only change attempts that are still in progress;
// CompleteAttempt reports model.ErrInvalidAttemptState otherwise.
type AttemptStore interface {
	CountAttempts(ctx context.Context, quizID, studentID int64) (int, error)
	CreateAttempt(ctx context.Context, a model.Attempt) error
	GetAttempt(ctx context.Context, id string) (model.Attempt, error)
	GetAnswers(ctx context.Context, attemptID string) ([]model.Answer, error)
	CompleteAttempt(ctx context.Context, a model.Attempt, answers []model.Answer) error
	ExpireAttempt(ctx context.Context, id string) (bool, error)
	ListInProgress(ctx context.Context) ([]model.Attempt, error)
}

// Store is everything the attempt service needs from persistence.
type Store interface {
	QuizStore
	QuestionStore
	EnrollmentChecker
	AttemptStore
}

// Notice describes a freshly graded attempt.
type Notice struct {
	AttemptID     string
	QuizID        int64
	QuizTitle     string
	StudentID     int64
	AttemptNumber int
	Score         int
	TotalMarks    int
	Percentage    int
	Passed        *bool
	GradedAt      time.Time
}

// Notifier is told about graded attempts. Delivery is best effort.
type Notifier interface {
	AttemptGraded(ctx context.Context, n Notice) error
}

const (
	defaultNotifyTimeout = 30 * time.Second
	maxStartRetries      = 3
)

// Service runs attempt transitions against a Store.
type Service struct {
	store         Store
	engine        *grading.Engine
	notifier      Notifier
	notifyTimeout time.Duration
	expiryGrace   time.Duration
	newID         func() string
	locks         *keyedMutex
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier sets the notifier called after each successful submit.
func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

// WithNotifyTimeout bounds each notification call.
func WithNotifyTimeout(d time.Duration) Option { return func(s *Service) { s.notifyTimeout = d } }

// WithExpiryGrace adds slack before Sweep expires an attempt.
func WithExpiryGrace(d time.Duration) Option { return func(s *Service) { s.expiryGrace = d } }

// WithIDGenerator replaces the attempt id generator.
func WithIDGenerator(f func() string) Option { return func(s *Service) { s.newID = f } }

// New creates an attempt service.
func New(store Store, engine *grading.Engine, opts ...Option) *Service {
	s := &Service{
		store:         store,
		engine:        engine,
		notifyTimeout: defaultNotifyTimeout,
		newID:         uuid.NewString,
		locks:         newKeyedMutex(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start opens a new attempt for studentID on quizID and returns it with the
// questions to present.
func (s *Service) Start(ctx context.Context, quizID, studentID int64, now time.Time) (model.AttemptForTaking, error) {
	quiz, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return model.AttemptForTaking{}, fmt.Errorf("get quiz %d: %w", quizID, err)
	}

	enrolled, err := s.store.IsEnrolled(ctx, studentID, quiz.CourseID)
	if err != nil {
		return model.AttemptForTaking{}, fmt.Errorf("check enrollment: %w", err)
	}
	if !enrolled {
		return model.AttemptForTaking{}, model.ErrNotEnrolled
	}

	unlock := s.locks.Lock(fmt.Sprintf("%d/%d", quizID, studentID))
	defer unlock()

	for try := 0; ; try++ {
		a, questions, err := s.startOnce(ctx, quiz, studentID, now)
		if errors.Is(err, model.ErrConflict) && try < maxStartRetries {
			slog.Warn("attempt number taken, retrying", "quiz_id", quizID, "student_id", studentID)
			continue
		}
		if err != nil {
			return model.AttemptForTaking{}, err
		}

		slog.Info("attempt started",
			"attempt_id", a.ID,
			"quiz_id", quizID,
			"student_id", studentID,
			"attempt_number", a.AttemptNumber,
		)
		return model.AttemptForTaking{
			Attempt:   a,
			QuizTitle: quiz.Title,
			Deadline:  deadline(quiz, a.StartedAt),
			Questions: questionbank.ForTaking(questions),
		}, nil
	}
}

func (s *Service) startOnce(ctx context.Context, quiz model.Quiz, studentID int64, now time.Time) (model.Attempt, []model.Question, error) {
	count, err := s.store.CountAttempts(ctx, quiz.ID, studentID)
	if err != nil {
		return model.Attempt{}, nil, fmt.Errorf("count attempts: %w", err)
	}
	if count >= max(quiz.MaxAttempts, 1) {
		return model.Attempt{}, nil, model.ErrAttemptLimitExceeded
	}
	if quiz.StartDate != nil && now.Before(*quiz.StartDate) {
		return model.Attempt{}, nil, model.ErrQuizNotYetAvailable
	}
	if quiz.EndDate != nil && now.After(*quiz.EndDate) {
		return model.Attempt{}, nil, model.ErrQuizClosed
	}

	stored, err := s.store.FindQuestionsByQuiz(ctx, quiz.ID)
	if err != nil {
		return model.Attempt{}, nil, fmt.Errorf("load questions: %w", err)
	}
	questions := questionbank.QuestionsFor(quiz, stored)
	if len(questions) == 0 {
		return model.Attempt{}, nil, model.ErrNoQuestions
	}

	a := model.Attempt{
		ID:            s.newID(),
		QuizID:        quiz.ID,
		StudentID:     studentID,
		AttemptNumber: count + 1,
		Status:        model.StatusInProgress,
		StartedAt:     now,
	}
	if err := s.store.CreateAttempt(ctx, a); err != nil {
		return model.Attempt{}, nil, fmt.Errorf("create attempt: %w", err)
	}
	return a, questions, nil
}

// Submit grades answers for an in-progress attempt owned by studentID and
// finishes it. It is not idempotent: a second call fails with
// model.ErrInvalidAttemptState and leaves the first result untouched.
func (s *Service) Submit(ctx context.Context, attemptID string, studentID int64, answers []model.Answer, now time.Time) (model.AttemptGraded, error) {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return model.AttemptGraded{}, fmt.Errorf("get attempt %s: %w", attemptID, err)
	}
	if a.StudentID != studentID {
		return model.AttemptGraded{}, fmt.Errorf("attempt %s: %w", attemptID, model.ErrNotFound)
	}
	if a.Status != model.StatusInProgress {
		return model.AttemptGraded{}, fmt.Errorf("attempt %s is %s: %w", attemptID, a.Status, model.ErrInvalidAttemptState)
	}
	if err := oneAnswerPerQuestion(answers); err != nil {
		return model.AttemptGraded{}, err
	}

	quiz, err := s.store.GetQuiz(ctx, a.QuizID)
	if err != nil {
		return model.AttemptGraded{}, fmt.Errorf("get quiz %d: %w", a.QuizID, err)
	}
	// Grade against the canonical questions, never a shuffled copy.
	questions, err := s.store.FindQuestionsByQuiz(ctx, a.QuizID)
	if err != nil {
		return model.AttemptGraded{}, fmt.Errorf("load questions: %w", err)
	}

	submitted := make([]model.Answer, len(answers))
	for i, ans := range answers {
		ans.AttemptID = a.ID
		submitted[i] = ans
	}
	res, err := s.engine.GradeAttempt(quiz, questions, submitted)
	if err != nil {
		return model.AttemptGraded{}, err
	}

	submittedAt := now
	a.Status = model.StatusGraded
	a.SubmittedAt = &submittedAt
	a.TimeSpentSeconds = timeSpent(a.StartedAt, now)
	a.Score = res.Score
	a.Percentage = res.Percentage

	if err := s.store.CompleteAttempt(ctx, a, res.Answers); err != nil {
		return model.AttemptGraded{}, fmt.Errorf("complete attempt %s: %w", attemptID, err)
	}

	graded := model.AttemptGraded{
		Attempt: a,
		Passed:  passed(quiz, a.Score),
		Answers: res.Answers,
	}
	slog.Info("attempt graded",
		"attempt_id", a.ID,
		"quiz_id", a.QuizID,
		"student_id", a.StudentID,
		"score", a.Score,
		"percentage", a.Percentage,
		"manual_review", countManual(questions),
	)
	s.notify(quiz, graded)

	if !quiz.ShowResultsImmediately {
		return graded.Redacted(), nil
	}
	return graded, nil
}

// Result returns an attempt owned by studentID as the student may see it.
func (s *Service) Result(ctx context.Context, attemptID string, studentID int64) (model.AttemptGraded, error) {
	g, quiz, err := s.load(ctx, attemptID)
	if err != nil {
		return model.AttemptGraded{}, err
	}
	if g.Attempt.StudentID != studentID {
		return model.AttemptGraded{}, fmt.Errorf("attempt %s: %w", attemptID, model.ErrNotFound)
	}
	if g.Attempt.Status == model.StatusGraded && !quiz.ShowResultsImmediately {
		return g.Redacted(), nil
	}
	return g, nil
}

// Inspect returns an attempt with full results regardless of quiz settings.
func (s *Service) Inspect(ctx context.Context, attemptID string) (model.AttemptGraded, error) {
	g, _, err := s.load(ctx, attemptID)
	return g, err
}

func (s *Service) load(ctx context.Context, attemptID string) (model.AttemptGraded, model.Quiz, error) {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return model.AttemptGraded{}, model.Quiz{}, fmt.Errorf("get attempt %s: %w", attemptID, err)
	}
	quiz, err := s.store.GetQuiz(ctx, a.QuizID)
	if err != nil {
		return model.AttemptGraded{}, model.Quiz{}, fmt.Errorf("get quiz %d: %w", a.QuizID, err)
	}
	g := model.AttemptGraded{Attempt: a}
	if a.Status == model.StatusGraded {
		g.Passed = passed(quiz, a.Score)
		if g.Answers, err = s.store.GetAnswers(ctx, a.ID); err != nil {
			return model.AttemptGraded{}, model.Quiz{}, fmt.Errorf("get answers: %w", err)
		}
	}
	return g, quiz, nil
}

func (s *Service) notify(quiz model.Quiz, g model.AttemptGraded) {
	if s.notifier == nil {
		return
	}
	n := Notice{
		AttemptID:     g.Attempt.ID,
		QuizID:        quiz.ID,
		QuizTitle:     quiz.Title,
		StudentID:     g.Attempt.StudentID,
		AttemptNumber: g.Attempt.AttemptNumber,
		Score:         g.Attempt.Score,
		TotalMarks:    quiz.TotalMarks,
		Percentage:    g.Attempt.Percentage,
		Passed:        g.Passed,
		GradedAt:      *g.Attempt.SubmittedAt,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
		defer cancel()
		if err := s.notifier.AttemptGraded(ctx, n); err != nil {
			slog.Warn("grading notification failed", "attempt_id", n.AttemptID, "error", err)
		}
	}()
}

func oneAnswerPerQuestion(answers []model.Answer) error {
	seen := make(map[int64]bool, len(answers))
	for _, a := range answers {
		if seen[a.QuestionID] {
			return fmt.Errorf("%w: question %d", model.ErrDuplicateAnswer, a.QuestionID)
		}
		seen[a.QuestionID] = true
	}
	return nil
}

// timeSpent is whole seconds from start to now, clamped at zero.
func timeSpent(start, now time.Time) int64 {
	d := now.Sub(start)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}

func passed(quiz model.Quiz, score int) *bool {
	if quiz.PassingMarks <= 0 {
		return nil
	}
	p := score >= quiz.PassingMarks
	return &p
}

// deadline is the earlier of the duration limit and the quiz end date.
func deadline(quiz model.Quiz, startedAt time.Time) *time.Time {
	var d *time.Time
	if quiz.DurationMinutes > 0 {
		t := startedAt.Add(time.Duration(quiz.DurationMinutes) * time.Minute)
		d = &t
	}
	if quiz.EndDate != nil && (d == nil || quiz.EndDate.Before(*d)) {
		t := *quiz.EndDate
		d = &t
	}
	return d
}

func countManual(questions []model.Question) int {
	n := 0
	for _, q := range questions {
		if grading.NeedsManual(q.Type) {
			n++
		}
	}
	return n
}
