package game

import (
	"math"
	"time"
)

// ScoreAnswer computes correctness and awarded points for one submission.
// Base points are awarded only when the chosen index matches. With the bonus
// enabled, a correct answer earns up to 50% extra, decaying linearly from
// instantaneous to zero at the time limit:
//
//	bonus = floor(base * 0.5 * max(0, 1 - elapsed/limit))
//
// The function is deterministic and side-effect free.
func ScoreAnswer(correctIndex, choiceIndex int, elapsed, limit time.Duration, basePoints int, bonusEnabled bool) (correct bool, points int) {
	if choiceIndex != correctIndex {
		return false, 0
	}

	points = basePoints
	if bonusEnabled && limit > 0 {
		remaining := 1 - float64(elapsed)/float64(limit)
		if remaining > 0 {
			points += int(math.Floor(float64(basePoints) * 0.5 * remaining))
		}
	}
	return true, points
}
