package heuristics

import (
	"fmt"
	"strings"
	"time"

	"github.com/raptorflow/lead-engine/internal/model"
)

const (
	ghostJobMaxAgePenalty    = 20.0
	ghostJobNoCompanyPenalty = 10.0
	ghostJobShortTextPenalty = 5.0
	ghostJobLongTextPenalty  = 3.0
	ghostJobTemplatePenalty  = 15.0
	ghostJobStaleDays        = 30
	ghostJobMinTextLen       = 100
	ghostJobMaxTextLen       = 5000
)

// ghostJobDetector penalizes stale postings, missing company names, and
// boilerplate text. Penalties sum; confidence scales with the total.
type ghostJobDetector struct {
	now func() time.Time
}

func (d *ghostJobDetector) Name() model.AdjustmentCategory {
	return model.AdjustmentGhostJob
}

func (d *ghostJobDetector) Apply(in Input) model.ScoringAdjustment {
	var penalty float64
	var reasons []string

	if in.PostDate != nil {
		ageDays := int(d.now().Sub(*in.PostDate).Hours() / 24)
		if ageDays > ghostJobStaleDays {
			p := float64(ageDays - ghostJobStaleDays)
			if p > ghostJobMaxAgePenalty {
				p = ghostJobMaxAgePenalty
			}
			penalty += p
			reasons = append(reasons, fmt.Sprintf("post is %d days old (stale)", ageDays))
		}
	}

	name := strings.ToLower(strings.TrimSpace(in.CompanyName))
	if name == "" || placeholderCompanyNames[name] {
		penalty += ghostJobNoCompanyPenalty
		reasons = append(reasons, "no company name provided")
	}

	textLen := len(strings.TrimSpace(in.SignalText))
	switch {
	case textLen < ghostJobMinTextLen:
		penalty += ghostJobShortTextPenalty
		reasons = append(reasons, "very short job description")
	case textLen > ghostJobMaxTextLen:
		penalty += ghostJobLongTextPenalty
		reasons = append(reasons, "excessively long boilerplate")
	}

	lower := strings.ToLower(in.SignalText)
	for _, phrase := range boilerplatePhrases {
		if strings.Contains(lower, phrase) {
			penalty += ghostJobTemplatePenalty
			reasons = append(reasons, "contains template placeholders")
			break
		}
	}

	if penalty == 0 {
		return model.ScoringAdjustment{
			Category:   model.AdjustmentGhostJob,
			Adjustment: 0,
			Reason:     "no ghost job indicators detected",
			Confidence: 0.5,
		}
	}

	confidence := penalty / 30
	if confidence > 1.0 {
		confidence = 1.0
	}
	return model.ScoringAdjustment{
		Category:   model.AdjustmentGhostJob,
		Adjustment: -penalty,
		Reason:     strings.Join(reasons, "; "),
		Confidence: confidence,
	}
}
