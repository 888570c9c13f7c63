// Package scoring turns raw play counters into comparable performance values.
//
// Every function here is pure: no I/O, no shared state, safe for concurrent use.
package scoring

import (
	"sort"
)

// Judgement weights used by CustomHitValue. Misses are worth nothing.
const (
	Hit300Weight = 300
	Hit100Weight = 285
	Hit50Weight  = 60
)

// Global ranking constants: only the TopScoreCount best values count, the
// i-th (0-based) weighted by 1 - i*WeightStep.
const (
	TopScoreCount = 20
	WeightStep    = 0.05
)

// Input holds the raw fields of one submission plus the beatmap difficulty
// at the time it is scored.
type Input struct {
	RawScore   int64
	Accuracy   float64
	Count300   int
	Count100   int
	Count50    int
	StarRating float64
}

// Values are the three derived fields stored with every score.
type Values struct {
	NormalValue    float64 `json:"normal_value"`
	CustomHitValue float64 `json:"custom_hit_value"`
	FinalValue     float64 `json:"final_value"`
}

// Compute derives all stored values for one submission.
func Compute(in Input) Values {
	normal := NormalValue(in.RawScore, in.Accuracy, in.StarRating)
	custom := CustomHitValue(in.Count300, in.Count100, in.Count50)
	return Values{
		NormalValue:    normal,
		CustomHitValue: custom,
		FinalValue:     FinalValue(normal, custom),
	}
}

// NormalValue is rawScore * accuracy, scaled by starRating when it is
// non-zero. A zero star rating means the difficulty is unknown. Accuracy is
// not clamped.
func NormalValue(rawScore int64, accuracy, starRating float64) float64 {
	v := float64(rawScore) * accuracy
	if starRating != 0 {
		v *= starRating
	}
	return v
}

// CustomHitValue weights the judgement counts: 300s are worth 300, 100s 285
// and 50s 60.
func CustomHitValue(count300, count100, count50 int) float64 {
	return float64(count300*Hit300Weight + count100*Hit100Weight + count50*Hit50Weight)
}

// FinalValue is the larger of the two scoring formulas.
func FinalValue(normalValue, customHitValue float64) float64 {
	if customHitValue > normalValue {
		return customHitValue
	}
	return normalValue
}

// GlobalRankScore aggregates a player's final values: the best
// TopScoreCount values, sorted descending, weighted 1.00, 0.95, ... 0.05.
// Values past the cut are ignored. An empty input scores 0.
func GlobalRankScore(finalValues []float64) float64 {
	if len(finalValues) == 0 {
		return 0
	}

	sorted := make([]float64, len(finalValues))
	copy(sorted, finalValues)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	if len(sorted) > TopScoreCount {
		sorted = sorted[:TopScoreCount]
	}

	var total float64
	for i, v := range sorted {
		total += v * Weight(i)
	}
	return total
}

// Weight is the multiplier for the i-th best value, or 0 past the cut.
func Weight(i int) float64 {
	if i < 0 || i >= TopScoreCount {
		return 0
	}
	return 1.0 - WeightStep*float64(i)
}
