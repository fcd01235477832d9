package observe

import (
	"sort"
	"time"
)

// Summary describes the window by frequency rather than composite score.
type Summary struct {
	Window             time.Duration      `json:"window"`
	Total              int                `json:"total"`
	Dominant           string             `json:"dominant"`
	Frequencies        map[string]float64 `json:"frequencies"`
	AverageConfidences map[string]float64 `json:"averageConfidences"`
	Decision           Decision           `json:"decision"`
}

// Summarize cleans the buffer against now and reports per-label frequency
// and mean confidence next to the composite decision. The dominant label
// is the most frequent one, ties going to the smallest label.
func (s Scoring) Summarize(b *Buffer, now time.Time) Summary {
	entries := b.Entries(now)
	sum := Summary{
		Window:             b.Window(),
		Total:              len(entries),
		Dominant:           "neutral",
		Frequencies:        make(map[string]float64),
		AverageConfidences: make(map[string]float64),
		Decision:           s.decide(entries, b.Window(), now),
	}
	if len(entries) == 0 {
		return sum
	}

	counts := make(map[string]int)
	for _, o := range entries {
		counts[o.Label]++
		sum.AverageConfidences[o.Label] += o.Confidence
	}

	labels := make([]string, 0, len(counts))
	for l := range counts {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	sum.Dominant = labels[0]
	for _, l := range labels {
		sum.Frequencies[l] = float64(counts[l]) / float64(len(entries))
		sum.AverageConfidences[l] /= float64(counts[l])
		if counts[l] > counts[sum.Dominant] {
			sum.Dominant = l
		}
	}
	return sum
}
