package game

import (
	"testing"
	"time"
)

func TestScoreAnswer(t *testing.T) {
	tests := []struct {
		name        string
		choice      int
		elapsed     time.Duration
		limit       time.Duration
		base        int
		bonus       bool
		wantCorrect bool
		wantPoints  int
	}{
		{"instant answer gets full bonus", 1, 0, 30 * time.Second, 100, true, true, 150},
		{"five of thirty seconds", 1, 5 * time.Second, 30 * time.Second, 100, true, true, 141},
		{"half the window", 1, 15 * time.Second, 30 * time.Second, 100, true, true, 125},
		{"at the limit no bonus", 1, 30 * time.Second, 30 * time.Second, 100, true, true, 100},
		{"after the limit no bonus", 1, 45 * time.Second, 30 * time.Second, 100, true, true, 100},
		{"wrong answer scores zero", 2, 0, 30 * time.Second, 100, true, false, 0},
		{"bonus disabled", 1, 0, 30 * time.Second, 100, false, true, 100},
		{"zero limit never divides", 1, time.Second, 0, 100, true, true, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			correct, points := ScoreAnswer(1, tt.choice, tt.elapsed, tt.limit, tt.base, tt.bonus)
			if correct != tt.wantCorrect {
				t.Errorf("correct = %v, want %v", correct, tt.wantCorrect)
			}
			if points != tt.wantPoints {
				t.Errorf("points = %d, want %d", points, tt.wantPoints)
			}
		})
	}
}
