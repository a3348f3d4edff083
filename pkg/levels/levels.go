// Package levels derives level progression from a raw score.
//
// Level grows with the square root of the score:
//
//	level = 0.07*sqrt(max(score, 1)) + 1
//
// so the score needed to reach whole level n is (n-1 / 0.07)^2.
package levels

import (
	"math"
	"strconv"
)

const coefficient = 0.07

// Progress summarises where a score sits inside its current level.
type Progress struct {
	Score          int64   `json:"score"`
	Level          float64 `json:"level"`
	WholeLevel     int64   `json:"whole_level"`
	PrevLevelScore float64 `json:"prev_level_score"`
	NextLevelScore float64 `json:"next_level_score"`
	LevelScore     float64 `json:"level_score"`
	Percent        float64 `json:"percent"`
}

// Level returns the fractional level for score. Scores below 1 sit at the
// floor level of 1.07.
func Level(score int64) float64 {
	return coefficient*math.Sqrt(float64(max(score, 1))) + 1
}

// NextLevelScore is the total score at which the next whole level starts.
func NextLevelScore(score int64) float64 {
	return thresholdFor(math.Ceil(Level(score) - 1))
}

// PrevLevelScore is the total score at which the current whole level started.
func PrevLevelScore(score int64) float64 {
	return thresholdFor(math.Ceil(Level(score) - 2))
}

func thresholdFor(step float64) float64 {
	if step <= 0 {
		return 0
	}
	return math.Pow(step/coefficient, 2)
}

// For computes the full progression for score.
func For(score int64) Progress {
	prev := PrevLevelScore(score)
	next := NextLevelScore(score)
	inLevel := float64(score) - prev

	percent := 0.0
	if span := next - prev; span > 0 {
		percent = math.Max(0, math.Min(100, inLevel/span*100))
	}

	level := Level(score)
	return Progress{
		Score:          score,
		Level:          level,
		WholeLevel:     int64(math.Floor(level)),
		PrevLevelScore: prev,
		NextLevelScore: next,
		LevelScore:     math.Max(0, inLevel),
		Percent:        percent,
	}
}

var suffixes = []string{"K", "M", "B", "T"}

// Humanize renders n with a K/M/B/T suffix and two decimals once it reaches
// a thousand. Smaller magnitudes are printed as whole numbers.
func Humanize(n float64) string {
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	if n < 1000 {
		return sign + strconv.FormatInt(int64(math.Floor(n)), 10)
	}

	exp := 0
	for n >= 1000 && exp < len(suffixes) {
		n /= 1000
		exp++
	}
	return sign + strconv.FormatFloat(n, 'f', 2, 64) + suffixes[exp-1]
}
