// Package questionbank produces the per-attempt view of a quiz's questions.
//
// Stored questions are canonical and never modified: every call works on a
// deep copy, so the order used for presentation can be shuffled freely while
// the grading key (CorrectAnswer and the IsCorrect flags) stays attached to
// each question and option.
package questionbank

import (
	"math/rand/v2"
	"sort"

	"github.com/pavelanni/assessor/internal/model"
)

// QuestionsFor returns the questions of quiz in presentation order. A fresh
// permutation is drawn on every call when the quiz shuffles.
func QuestionsFor(quiz model.Quiz, stored []model.Question) []model.Question {
	out := make([]model.Question, len(stored))
	for i, q := range stored {
		out[i] = clone(q)
	}

	if quiz.ShuffleQuestions {
		shuffle(out)
	} else {
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].OrderIndex != out[j].OrderIndex {
				return out[i].OrderIndex < out[j].OrderIndex
			}
			return out[i].ID < out[j].ID
		})
	}

	for i := range out {
		if quiz.ShuffleOptions {
			shuffle(out[i].Options)
		} else {
			sortOptions(out[i].Options)
		}
	}
	return out
}

// ForTaking strips the grading key from questions.
func ForTaking(questions []model.Question) []model.QuestionForTaking {
	out := make([]model.QuestionForTaking, 0, len(questions))
	for _, q := range questions {
		qt := model.QuestionForTaking{
			ID:    q.ID,
			Type:  q.Type,
			Text:  q.Text,
			Marks: q.MarksOrDefault(),
		}
		for _, o := range q.Options {
			qt.Options = append(qt.Options, model.OptionForTaking{ID: o.ID, Text: o.Text})
		}
		out = append(out, qt)
	}
	return out
}

// Index maps question id to question.
func Index(questions []model.Question) map[int64]model.Question {
	m := make(map[int64]model.Question, len(questions))
	for _, q := range questions {
		m[q.ID] = q
	}
	return m
}

func clone(q model.Question) model.Question {
	c := q
	if q.Marks != nil {
		m := *q.Marks
		c.Marks = &m
	}
	if q.Options != nil {
		c.Options = make([]model.Option, len(q.Options))
		copy(c.Options, q.Options)
	}
	return c
}

// shuffle is an unseeded Fisher-Yates permutation.
func shuffle[T any](s []T) {
	rand.Shuffle(len(s), func(i, j int) {
		s[i], s[j] = s[j], s[i]
	})
}

func sortOptions(opts []model.Option) {
	sort.SliceStable(opts, func(i, j int) bool {
		if opts[i].OrderIndex != opts[j].OrderIndex {
			return opts[i].OrderIndex < opts[j].OrderIndex
		}
		return opts[i].ID < opts[j].ID
	})
}
