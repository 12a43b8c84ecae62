package questionbank

import (
	"fmt"
	"reflect"
	"sort"
	"testing"

	"github.com/pavelanni/assessor/internal/model"
)

func intPtr(n int) *int { return &n }

func testQuestions(n int) []model.Question {
	var qs []model.Question
	for i := 1; i <= n; i++ {
		qs = append(qs, model.Question{
			ID:            int64(i),
			QuizID:        1,
			Type:          model.QuestionMultipleChoice,
			Text:          fmt.Sprintf("Q%d", i),
			Marks:         intPtr(i),
			OrderIndex:    n - i, // reverse of ID order
			CorrectAnswer: "A",
			Options: []model.Option{
				{ID: "A", QuestionID: int64(i), Text: "a", IsCorrect: true, OrderIndex: 0},
				{ID: "B", QuestionID: int64(i), Text: "b", OrderIndex: 1},
				{ID: "C", QuestionID: int64(i), Text: "c", OrderIndex: 2},
				{ID: "D", QuestionID: int64(i), Text: "d", OrderIndex: 3},
			},
		})
	}
	return qs
}

func TestQuestionsForFixedOrder(t *testing.T) {
	stored := testQuestions(4)
	got := QuestionsFor(model.Quiz{}, stored)

	if len(got) != 4 {
		t.Fatalf("expected 4 questions, got %d", len(got))
	}
	for i, q := range got {
		if q.OrderIndex != i {
			t.Errorf("position %d: expected order index %d, got %d", i, i, q.OrderIndex)
		}
		if q.Options[0].ID != "A" || q.Options[3].ID != "D" {
			t.Errorf("options of question %d not in canonical order", q.ID)
		}
	}
}

func TestQuestionsForEmpty(t *testing.T) {
	got := QuestionsFor(model.Quiz{ShuffleQuestions: true}, nil)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", got)
	}
}

func TestShuffleIsPermutation(t *testing.T) {
	stored := testQuestions(10)
	quiz := model.Quiz{ShuffleQuestions: true, ShuffleOptions: true}

	for round := 0; round < 20; round++ {
		got := QuestionsFor(quiz, stored)
		if len(got) != len(stored) {
			t.Fatalf("expected %d questions, got %d", len(stored), len(got))
		}

		// Sorting both sides by id must restore identical content.
		byID := make([]model.Question, len(got))
		copy(byID, got)
		sort.Slice(byID, func(i, j int) bool { return byID[i].ID < byID[j].ID })
		for i := range byID {
			sortOptions(byID[i].Options)
			if !reflect.DeepEqual(byID[i], stored[i]) {
				t.Fatalf("round %d: question %d content changed: %+v", round, stored[i].ID, byID[i])
			}
		}
	}
}

func TestShuffleProducesDifferentOrders(t *testing.T) {
	stored := testQuestions(8)
	quiz := model.Quiz{ShuffleQuestions: true}

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		var key string
		for _, q := range QuestionsFor(quiz, stored) {
			key += fmt.Sprintf("%d,", q.ID)
		}
		seen[key] = true
	}
	// 8! orderings; 50 draws landing on a single one is practically impossible.
	if len(seen) < 2 {
		t.Errorf("expected varied orders across calls, got %d distinct", len(seen))
	}
}

func TestQuestionsForDoesNotMutateStored(t *testing.T) {
	stored := testQuestions(6)
	before := testQuestions(6)

	got := QuestionsFor(model.Quiz{ShuffleQuestions: true, ShuffleOptions: true}, stored)
	*got[0].Marks = 99
	got[0].Options[0].Text = "changed"

	if !reflect.DeepEqual(stored, before) {
		t.Error("stored questions were modified")
	}
}

func TestKeyTravelsWithOptions(t *testing.T) {
	stored := testQuestions(5)
	got := QuestionsFor(model.Quiz{ShuffleOptions: true}, stored)
	for _, q := range got {
		for _, o := range q.Options {
			if (o.ID == "A") != o.IsCorrect {
				t.Errorf("question %d option %s: IsCorrect=%v", q.ID, o.ID, o.IsCorrect)
			}
		}
		if q.CorrectAnswer != "A" {
			t.Errorf("question %d lost its correct answer", q.ID)
		}
	}
}

func TestForTaking(t *testing.T) {
	qs := []model.Question{
		{ID: 1, Type: model.QuestionTrueFalse, Text: "Sky is blue", CorrectAnswer: "T",
			Options: []model.Option{{ID: "T", Text: "True", IsCorrect: true}, {ID: "F", Text: "False"}}},
		{ID: 2, Type: model.QuestionShortAnswer, Text: "Capital of France", Marks: intPtr(3), CorrectAnswer: "Paris"},
	}
	got := ForTaking(qs)
	if len(got) != 2 {
		t.Fatalf("expected 2, got %d", len(got))
	}
	if got[0].Marks != 1 {
		t.Errorf("expected default marks 1, got %d", got[0].Marks)
	}
	if got[1].Marks != 3 {
		t.Errorf("expected marks 3, got %d", got[1].Marks)
	}
	if len(got[0].Options) != 2 || got[0].Options[0].ID != "T" {
		t.Errorf("unexpected options: %+v", got[0].Options)
	}
	if len(got[1].Options) != 0 {
		t.Errorf("expected no options for short answer, got %+v", got[1].Options)
	}
}
