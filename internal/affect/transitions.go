package affect

import "math/rand"

// WeightedEmotion pairs a drift outcome with its probability.
type WeightedEmotion struct {
	Emotion Emotion
	Weight  float64
}

// driftTable maps the current emotion to where autonomous drift goes next.
// Each row sums to 1. Neutral is the least sticky so the dashboard never
// sits idle; happy and confused are favored destinations.
var driftTable = map[Emotion][]WeightedEmotion{
	Neutral: {
		{Happy, 0.50},
		{Confused, 0.30},
		{Frustrated, 0.15},
		{Neutral, 0.05},
	},
	Happy: {
		{Happy, 0.40},
		{Neutral, 0.25},
		{Confused, 0.25},
		{Frustrated, 0.10},
	},
	Confused: {
		{Confused, 0.35},
		{Happy, 0.25},
		{Frustrated, 0.25},
		{Neutral, 0.15},
	},
	Frustrated: {
		{Confused, 0.35},
		{Frustrated, 0.25},
		{Neutral, 0.25},
		{Happy, 0.15},
	},
}

// DriftWeights returns a copy of the drift row for from, falling back to
// the neutral row.
func DriftWeights(from Emotion) []WeightedEmotion {
	row, ok := driftTable[from]
	if !ok {
		row = driftTable[Neutral]
	}
	out := make([]WeightedEmotion, len(row))
	copy(out, row)
	return out
}

// NextEmotion draws the next emotion from the drift table row for from.
// The draw is uniform in [0,1) and walks the cumulative distribution.
func NextEmotion(from Emotion, rng *rand.Rand) Emotion {
	return pick(DriftWeights(from), rng.Float64())
}

// pick walks the cumulative weights with the draw r in [0,1).
func pick(row []WeightedEmotion, r float64) Emotion {
	if len(row) == 0 {
		return Neutral
	}
	var cumulative float64
	for _, w := range row {
		cumulative += w.Weight
		if r < cumulative {
			return w.Emotion
		}
	}
	// rounding left r past the last bucket
	return row[len(row)-1].Emotion
}
