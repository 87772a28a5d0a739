// Package scoring combines model base scores, heuristic adjustments, and
// funding boosts into one clamped 0-100 score with a discrete bucket.
package scoring

import (
	"github.com/raptorflow/lead-engine/internal/config"
	"github.com/raptorflow/lead-engine/internal/model"
)

// Weights holds per-category multipliers for the model base scores.
type Weights struct {
	Fit     float64
	Pain    float64
	Quality float64
}

// DefaultWeights returns the neutral weighting.
func DefaultWeights() Weights {
	return Weights{Fit: 1.0, Pain: 1.0, Quality: 1.0}
}

// Result is the aggregator output.
type Result struct {
	FinalScore  float64
	Bucket      model.ScoreBucket
	Adjustments []model.ScoringAdjustment
	Explanation model.ScoreExplanation
}

// Aggregator computes final lead scores. It is a pure function of its
// inputs; the same classification and adjustments always reproduce the
// same breakdown.
type Aggregator struct {
	weights      Weights
	fundingBonus float64
}

// NewAggregator creates an aggregator from scoring configuration.
func NewAggregator(cfg config.ScoringConfig) *Aggregator {
	w := Weights{Fit: cfg.WeightFit, Pain: cfg.WeightPain, Quality: cfg.WeightQuality}
	if w.Fit == 0 && w.Pain == 0 && w.Quality == 0 {
		w = DefaultWeights()
	}
	bonus := cfg.FundingBonus
	if bonus == 0 {
		bonus = 10
	}
	return &Aggregator{weights: w, fundingBonus: bonus}
}

// Score combines the weighted base scores with the heuristic adjustment
// total, an optional funding boost, and an optional manual override, then
// clamps to [0,100] and derives the bucket. When fundingRecent is true a
// synthetic funding_event adjustment is appended for auditability.
func (a *Aggregator) Score(classification model.ClassificationResult, adjustments []model.ScoringAdjustment, fundingRecent bool, manualOverride *float64) Result {
	weightedFit := classification.ScoreFit * a.weights.Fit
	weightedPain := classification.ScorePain * a.weights.Pain
	weightedQuality := classification.ScoreDataQuality * a.weights.Quality
	baseTotal := weightedFit + weightedPain + weightedQuality

	all := make([]model.ScoringAdjustment, len(adjustments))
	copy(all, adjustments)

	if fundingRecent {
		all = append(all, model.ScoringAdjustment{
			Category:   model.AdjustmentFunding,
			Adjustment: a.fundingBonus,
			Reason:     "recent funding event announced",
			Confidence: 0.9,
		})
	}

	adjustmentTotal := 0.0
	for _, adj := range all {
		adjustmentTotal += adj.Adjustment
	}

	raw := baseTotal + adjustmentTotal
	final := Clamp(raw)

	overrideApplied := false
	if manualOverride != nil {
		final = Clamp(*manualOverride)
		overrideApplied = true
	}

	bucket := model.BucketForScore(final)

	return Result{
		FinalScore:  final,
		Bucket:      bucket,
		Adjustments: all,
		Explanation: model.ScoreExplanation{
			BaseScores: map[string]float64{
				"icp_fit":        classification.ScoreFit,
				"marketing_pain": classification.ScorePain,
				"data_quality":   classification.ScoreDataQuality,
			},
			Weights: map[string]float64{
				"icp_fit":        a.weights.Fit,
				"marketing_pain": a.weights.Pain,
				"data_quality":   a.weights.Quality,
			},
			WeightedBase: map[string]float64{
				"icp_fit":        weightedFit,
				"marketing_pain": weightedPain,
				"data_quality":   weightedQuality,
			},
			BaseTotal:       baseTotal,
			Adjustments:     all,
			AdjustmentTotal: adjustmentTotal,
			RawScore:        raw,
			FinalScore:      final,
			ScoreBucket:     bucket,
			ManualOverride:  manualOverride,
			OverrideApplied: overrideApplied,
		},
	}
}

// Clamp bounds a score to [0,100].
func Clamp(score float64) float64 {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}
