package observe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelect_EmptyBufferIsNeutral(t *testing.T) {
	d := Select(NewBuffer(5*time.Second), at(0))

	assert.Equal(t, "neutral", d.Emotion)
	assert.Equal(t, 1.0, d.Confidence)
	assert.Zero(t, d.Samples)
	assert.NotNil(t, d.Scores)
}

func TestScore_NeutralPenalty(t *testing.T) {
	s := DefaultScoring()
	happy := Observation{Label: "happy", Confidence: 0.95, Timestamp: at(0)}
	neutral := Observation{Label: "neutral", Confidence: 0.95, Timestamp: at(0)}

	assert.Greater(t, s.Score(happy, 5*time.Second, at(1000)), s.Score(neutral, 5*time.Second, at(1000)))
	assert.InDelta(t, 0.9*s.Score(happy, 5*time.Second, at(1000)), s.Score(neutral, 5*time.Second, at(1000)), 1e-12)
}

func TestScore_RecencyBoost(t *testing.T) {
	s := DefaultScoring()
	window := 5 * time.Second
	now := at(5000)

	fresh := Observation{Label: "happy", Confidence: 1.0, Timestamp: now}
	old := Observation{Label: "happy", Confidence: 1.0, Timestamp: now.Add(-window)}

	assert.InDelta(t, 1.05, s.Score(fresh, window, now), 1e-12)
	assert.InDelta(t, 1.0, s.Score(old, window, now), 1e-12)
	assert.Greater(t, s.Score(fresh, window, now), s.Score(old, window, now))
}

func TestSelect_NeutralPenaltyBreaksEqualEvidence(t *testing.T) {
	b := NewBuffer(5 * time.Second)
	b.Record("neutral", 0.95, at(0), at(0))
	b.Record("happy", 0.95, at(0), at(0))

	d := Select(b, at(0))

	assert.Equal(t, "happy", d.Emotion)
	assert.Greater(t, d.Scores["happy"], d.Scores["neutral"])
}

func TestSelect_SnapshotConsistency(t *testing.T) {
	b := NewBuffer(5 * time.Second)
	b.Record("happy", 0.9, at(1000), at(1000))
	b.Record("happy", 0.8, at(2000), at(2000))
	b.Record("confused", 0.95, at(3000), at(3000))

	now := at(3000)
	d := Select(b, now)

	// by hand: happy 0.9*(1+.05*.6) + 0.8*(1+.05*.8), confused 0.95*1.05
	wantHappy := 0.9*1.03 + 0.8*1.04
	wantConfused := 0.95 * 1.05

	require.Equal(t, "happy", d.Emotion, "the most recent sighting must not win on recency alone")
	assert.InDelta(t, wantHappy, d.Scores["happy"], 1e-9)
	assert.InDelta(t, wantConfused, d.Scores["confused"], 1e-9)
	assert.InDelta(t, wantHappy, d.TotalScore, 1e-9)
	assert.InDelta(t, 0.85, d.Confidence, 1e-9)
	assert.Equal(t, 3, d.Samples)
}

func TestSelect_ConfidenceIsRawMeanOfWinner(t *testing.T) {
	b := NewBuffer(5 * time.Second)
	b.Record("confused", 0.6, at(0), at(0))
	b.Record("confused", 0.8, at(4000), at(4000))
	b.Record("happy", 0.7, at(4000), at(4000))

	d := Select(b, at(4000))

	require.Equal(t, "confused", d.Emotion)
	assert.InDelta(t, 0.7, d.Confidence, 1e-9)
}

func TestSelect_TieGoesToSmallestLabel(t *testing.T) {
	b := NewBuffer(5 * time.Second)
	b.Record("sad", 0.8, at(0), at(0))
	b.Record("happy", 0.8, at(0), at(0))

	for i := 0; i < 20; i++ {
		assert.Equal(t, "happy", Select(b, at(0)).Emotion)
	}
}

func TestSelect_RawLabelsScoreSeparately(t *testing.T) {
	b := NewBuffer(5 * time.Second)
	b.Record("angry", 0.6, at(0), at(0))
	b.Record("sad", 0.6, at(0), at(0))
	b.Record("confused", 0.9, at(0), at(0))

	d := Select(b, at(0))

	assert.Equal(t, "confused", d.Emotion)
	assert.Len(t, d.Scores, 3)
}

func TestSelect_EvictsBeforeScoring(t *testing.T) {
	b := NewBuffer(5 * time.Second)
	b.Record("frustrated", 1.0, at(0), at(0))
	b.Record("happy", 0.4, at(5500), at(5500))

	d := Select(b, at(6000))

	assert.Equal(t, "happy", d.Emotion)
	assert.NotContains(t, d.Scores, "frustrated")
}

func TestSummarize(t *testing.T) {
	b := NewBuffer(5 * time.Second)
	b.Record("confused", 0.5, at(0), at(0))
	b.Record("confused", 0.7, at(100), at(100))
	b.Record("happy", 1.0, at(200), at(200))

	sum := DefaultScoring().Summarize(b, at(200))

	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, "confused", sum.Dominant)
	assert.InDelta(t, 2.0/3.0, sum.Frequencies["confused"], 1e-9)
	assert.InDelta(t, 0.6, sum.AverageConfidences["confused"], 1e-9)
	assert.InDelta(t, 1.0, sum.AverageConfidences["happy"], 1e-9)
	assert.Equal(t, "confused", sum.Decision.Emotion)
}

func TestSummarize_Empty(t *testing.T) {
	sum := DefaultScoring().Summarize(NewBuffer(time.Second), at(0))
	assert.Zero(t, sum.Total)
	assert.Equal(t, "neutral", sum.Dominant)
}
