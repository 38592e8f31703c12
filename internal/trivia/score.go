package trivia

import "math"

const (
	maxPoints = 1000
	minPoints = 100
)

// Score returns the points for one answer. Correct answers earn between
// minPoints and maxPoints, decaying linearly to half of maxPoints as the
// elapsed time approaches the limit. Elapsed times outside [0, limit] are
// clamped so a fabricated latency cannot push the result out of range.
func Score(isCorrect bool, elapsedMs int64, timeLimitSeconds int) int {
	if !isCorrect {
		return 0
	}

	ratio := 1.0
	if timeLimitSeconds > 0 {
		ratio = float64(elapsedMs) / float64(timeLimitSeconds*1000)
	}
	ratio = min(max(ratio, 0), 1)

	points := int(math.Round(maxPoints * (1 - ratio/2)))
	// Unreachable while ratio is clamped: the decay bottoms out at 500.
	return max(minPoints, points)
}
