package agents

import (
	"math"

	"ShortsIntel/internal/config"
)

// Factors are the observable inputs to one insight's confidence score.
type Factors struct {
	SampleSize    int
	DataQuality   float64
	EvidenceCount int
	Agreement     float64
}

// Scorer turns factors into a bounded confidence score. The weights are
// configuration, not code.
type Scorer struct {
	weights   config.WeightsConfig
	minSample int
}

// NewScorer builds a Scorer from agent configuration, falling back to the
// default weight split when none is set.
func NewScorer(cfg config.AgentsConfig) *Scorer {
	weights := cfg.Weights
	if weights == (config.WeightsConfig{}) {
		weights = config.WeightsConfig{
			Volume:       0.25,
			Quality:      0.25,
			Evidence:     0.20,
			Significance: 0.15,
			Agreement:    0.15,
		}
	}
	minSample := cfg.MinSampleSize
	if minSample <= 0 {
		minSample = 30
	}
	return &Scorer{weights: weights, minSample: minSample}
}

// Score combines the factors into [0, 1], rounded to two decimals. Sample
// volume saturates at 100 records and evidence at 5 references; the
// significance term is all-or-nothing on the minimum sample size.
func (s *Scorer) Score(f Factors) float64 {
	volume := math.Min(1, float64(f.SampleSize)/100)
	quality := clamp01(f.DataQuality)
	evidence := math.Min(1, float64(f.EvidenceCount)/5)
	significance := 0.0
	if f.SampleSize >= s.minSample {
		significance = 1
	}
	agreement := clamp01(f.Agreement)

	score := volume*s.weights.Volume +
		quality*s.weights.Quality +
		evidence*s.weights.Evidence +
		significance*s.weights.Significance +
		agreement*s.weights.Agreement
	return math.Round(clamp01(score)*100) / 100
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
