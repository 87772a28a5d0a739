// Package heuristics applies deterministic rule-based scoring adjustments
// to raw signal text: ghost-job penalties, first-marketer bonuses, tone
// classification, silver-bullet and spam detection, and industry bonuses.
package heuristics

import (
	"time"

	"go.uber.org/zap"

	"github.com/raptorflow/lead-engine/internal/model"
)

// Input carries the signal fields the detectors inspect.
type Input struct {
	SignalText  string
	PostDate    *time.Time
	CompanyName string
	SourceURL   string
	Industry    string
}

// Detector inspects a signal and emits exactly one adjustment record.
// Detectors are pure functions of their input and never fail: a detector
// that finds nothing returns a zero adjustment with a "not detected"
// reason so every score stays fully auditable.
type Detector interface {
	Name() model.AdjustmentCategory
	Apply(in Input) model.ScoringAdjustment
}

// Engine runs a fixed, ordered registry of detectors.
type Engine struct {
	detectors []Detector
	now       func() time.Time
}

// NewEngine creates an engine with the standard six detectors.
func NewEngine() *Engine {
	now := time.Now
	return &Engine{
		now: now,
		detectors: []Detector{
			&ghostJobDetector{now: now},
			&firstMarketerDetector{},
			&toneDetector{},
			&silverBulletDetector{},
			&spamDetector{},
			&industryDetector{},
		},
	}
}

// Detectors returns the registry in application order.
func (e *Engine) Detectors() []Detector {
	return e.detectors
}

// ApplyAll runs every detector and returns the unweighted sum of their
// adjustments plus the full list, always exactly one record per detector.
func (e *Engine) ApplyAll(in Input) (float64, []model.ScoringAdjustment) {
	adjustments := make([]model.ScoringAdjustment, 0, len(e.detectors))
	total := 0.0

	for _, d := range e.detectors {
		adj := d.Apply(in)
		adjustments = append(adjustments, adj)
		total += adj.Adjustment
	}

	for _, adj := range adjustments {
		if adj.Adjustment > 5 || adj.Adjustment < -5 {
			zap.L().Debug("heuristics: significant adjustment",
				zap.String("category", string(adj.Category)),
				zap.Float64("adjustment", adj.Adjustment),
				zap.String("reason", adj.Reason),
			)
		}
	}

	return total, adjustments
}
