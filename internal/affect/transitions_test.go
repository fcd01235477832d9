package affect

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDriftTable_RowsSumToOne(t *testing.T) {
	for _, from := range Core {
		t.Run(string(from), func(t *testing.T) {
			var sum float64
			for _, w := range DriftWeights(from) {
				sum += w.Weight
			}
			assert.InDelta(t, 1.0, sum, 1e-9)
		})
	}
}

func TestDriftTable_CoversEveryCoreEmotion(t *testing.T) {
	for _, from := range Core {
		seen := make(map[Emotion]bool)
		for _, w := range DriftWeights(from) {
			seen[w.Emotion] = true
		}
		assert.Len(t, seen, len(Core), "row %s", from)
	}
}

func TestDriftTable_NeutralLeastSticky(t *testing.T) {
	self := func(e Emotion) float64 {
		for _, w := range DriftWeights(e) {
			if w.Emotion == e {
				return w.Weight
			}
		}
		return math.NaN()
	}

	neutral := self(Neutral)
	for _, e := range []Emotion{Happy, Confused, Frustrated} {
		assert.Less(t, neutral, self(e), "neutral self weight should be below %s", e)
	}
	// frustrated is the second least sticky
	assert.Less(t, self(Frustrated), self(Happy))
	assert.Less(t, self(Frustrated), self(Confused))
}

func TestPick_WalksCumulativeDistribution(t *testing.T) {
	row := DriftWeights(Neutral) // happy .50, confused .30, frustrated .15, neutral .05

	tests := []struct {
		draw float64
		want Emotion
	}{
		{0.0, Happy},
		{0.49, Happy},
		{0.50, Confused},
		{0.79, Confused},
		{0.80, Frustrated},
		{0.949, Frustrated},
		{0.96, Neutral},
		{0.999999, Neutral},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, pick(row, tt.draw), "draw %v", tt.draw)
	}
}

func TestPick_EmptyRowFallsBackToNeutral(t *testing.T) {
	assert.Equal(t, Neutral, pick(nil, 0.3))
}

func TestNextEmotion_FavorsHappyFromNeutral(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	counts := make(map[Emotion]int)
	for i := 0; i < 2000; i++ {
		counts[NextEmotion(Neutral, rng)]++
	}

	assert.Greater(t, counts[Happy], counts[Confused])
	assert.Greater(t, counts[Confused], counts[Frustrated])
	assert.Greater(t, counts[Frustrated], counts[Neutral])
}

func TestDriftWeights_ReturnsCopy(t *testing.T) {
	row := DriftWeights(Happy)
	row[0].Weight = 42

	assert.NotEqual(t, 42.0, DriftWeights(Happy)[0].Weight)
}
