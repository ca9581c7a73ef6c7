package questionbank

import (
	"testing"

	"github.com/quizroom/quizroom-backend/internal/model"
)

func TestDefaultQuestionsFilter(t *testing.T) {
	all := DefaultQuestions(model.DifficultyAny)
	if len(all) == 0 {
		t.Fatal("default set is empty")
	}

	easy := DefaultQuestions(model.DifficultyEasy)
	if len(easy) == 0 || len(easy) >= len(all) {
		t.Fatalf("easy subset has %d of %d questions", len(easy), len(all))
	}
	for _, q := range easy {
		if q.Difficulty != model.DifficultyEasy {
			t.Fatalf("question %q leaked into easy set", q.Text)
		}
	}

	if got := DefaultQuestions(""); len(got) != len(all) {
		t.Fatalf("empty difficulty returned %d, want full set %d", len(got), len(all))
	}
}

func TestDefaultQuestionsAreWellFormed(t *testing.T) {
	for _, q := range DefaultQuestions(model.DifficultyAny) {
		if len(q.Choices) < 2 {
			t.Errorf("question %q has %d choices", q.Text, len(q.Choices))
		}
		if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Choices) {
			t.Errorf("question %q correct index %d out of range", q.Text, q.CorrectIndex)
		}
	}
}

func TestSampleWithoutReplacement(t *testing.T) {
	pool := DefaultQuestions(model.DifficultyAny)

	picked := sample(pool, 5)
	if len(picked) != 5 {
		t.Fatalf("sampled %d, want 5", len(picked))
	}
	seen := make(map[string]bool)
	for _, q := range picked {
		if seen[q.Text] {
			t.Fatalf("question %q drawn twice", q.Text)
		}
		seen[q.Text] = true
	}

	if got := sample(pool, len(pool)+10); len(got) != len(pool) {
		t.Fatalf("oversample returned %d, want the whole pool %d", len(got), len(pool))
	}
	if got := sample(pool, 0); got != nil {
		t.Fatal("zero sample should be empty")
	}
}

func TestCacheKeyIsOrderInsensitive(t *testing.T) {
	a := cacheKey(model.DifficultyMedium, []string{"History", "Science"})
	b := cacheKey(model.DifficultyMedium, []string{"Science", "History"})
	if a != b {
		t.Fatalf("keys differ: %q vs %q", a, b)
	}
	if a == cacheKey(model.DifficultyHard, []string{"History", "Science"}) {
		t.Fatal("difficulty not part of the key")
	}
	if cacheKey("", nil) != cacheKey(model.DifficultyAny, nil) {
		t.Fatal("empty difficulty should normalize to any")
	}
}
