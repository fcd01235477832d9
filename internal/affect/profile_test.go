package affect

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		raw  string
		want Emotion
	}{
		{"neutral", Neutral},
		{"happy", Happy},
		{"joy", Happy},
		{"confused", Confused},
		{"surprise", Confused},
		{"frustrated", Frustrated},
		{"angry", Frustrated},
		{"sad", Frustrated},
		{"disgust", Frustrated},
		{"fear", Frustrated},
		{"  Angry ", Frustrated},
		{"HAPPY", Happy},
		{"bored", Neutral},
		{"", Neutral},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.raw))
		})
	}
}

func TestKnown(t *testing.T) {
	assert.True(t, Known("Sad"))
	assert.False(t, Known("bored"))
}

func TestSampleMetrics_StaysInBand(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, e := range Core {
		p := ProfileFor(e)
		for i := 0; i < 200; i++ {
			m := SampleMetrics(e, rng)
			assert.True(t, p.Engagement.Contains(m.Engagement), "%s engagement %v", e, m.Engagement)
			assert.True(t, p.Attention.Contains(m.Attention), "%s attention %v", e, m.Attention)
			assert.True(t, p.CognitiveLoad.Contains(m.CognitiveLoad), "%s load %v", e, m.CognitiveLoad)
		}
	}
}

func TestSampleMetrics_Varies(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	a := SampleMetrics(Confused, rng)
	b := SampleMetrics(Confused, rng)
	assert.NotEqual(t, a, b)
}

func TestAnchorsSitInsideBands(t *testing.T) {
	for _, e := range Core {
		p := ProfileFor(e)
		assert.True(t, p.Engagement.Contains(p.Anchor.Engagement), e)
		assert.True(t, p.Attention.Contains(p.Anchor.Attention), e)
		assert.True(t, p.CognitiveLoad.Contains(p.Anchor.CognitiveLoad), e)
	}
}

func TestJitterAnchor_StaysNearAnchor(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for _, e := range Core {
		p := ProfileFor(e)
		var moved bool
		for i := 0; i < 50; i++ {
			m := JitterAnchor(e, rng)
			assert.InDelta(t, p.Anchor.Engagement, m.Engagement, anchorJitter, e)
			assert.InDelta(t, p.Anchor.Attention, m.Attention, anchorJitter, e)
			assert.InDelta(t, p.Anchor.CognitiveLoad, m.CognitiveLoad, anchorJitter, e)
			assert.True(t, p.Engagement.Contains(m.Engagement), e)
			assert.True(t, p.Attention.Contains(m.Attention), e)
			assert.True(t, p.CognitiveLoad.Contains(m.CognitiveLoad), e)
			moved = moved || m != p.Anchor
		}
		assert.True(t, moved, "anchor for %s never moved", e)
	}
}

func TestProfileFor_UnknownFallsBackToNeutral(t *testing.T) {
	assert.Equal(t, ProfileFor(Neutral), ProfileFor(Emotion("bored")))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-0.3))
	assert.Equal(t, 1.0, Clamp01(1.7))
	assert.Equal(t, 0.0, Clamp01(math.NaN()))
	assert.Equal(t, 0.2, Clamp(0.1, 0.2, 1.0))
	assert.Equal(t, 0.55, Clamp(0.55, 0.2, 1.0))
}

func TestWavesFor_OrderingHoldsOverTime(t *testing.T) {
	order := []Emotion{Happy, Neutral, Confused, Frustrated}

	for ts := 0.0; ts < 30; ts += 0.37 {
		for i := 0; i+1 < len(order); i++ {
			lo, hi := order[i], order[i+1]
			// worst case: opposite intensities
			wLo := WavesFor(lo, 1.0, ts)
			wHi := WavesFor(hi, 0.2, ts)
			assert.Less(t, wLo.Beta, wHi.Beta, "beta %s < %s at t=%v", lo, hi, ts)
			assert.Greater(t, wLo.Alpha, wHi.Alpha, "alpha %s > %s at t=%v", lo, hi, ts)

			wLo = WavesFor(lo, 0.2, ts)
			wHi = WavesFor(hi, 1.0, ts)
			assert.Less(t, wLo.Beta, wHi.Beta)
			assert.Greater(t, wLo.Alpha, wHi.Alpha)
		}
	}
}

func TestWavesFor_FrustratedDeltaElevated(t *testing.T) {
	f := WavesFor(Frustrated, 0.7, 0)
	n := WavesFor(Neutral, 0.7, 0)
	assert.Greater(t, f.Delta, n.Delta)
}

func TestWavesFor_ConfusedThetaElevated(t *testing.T) {
	c := WavesFor(Confused, 0.7, 0)
	n := WavesFor(Neutral, 0.7, 0)
	assert.Greater(t, c.Theta, n.Theta)
	assert.Greater(t, c.Beta, n.Beta)
}
