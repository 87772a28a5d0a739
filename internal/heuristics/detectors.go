package heuristics

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/raptorflow/lead-engine/internal/model"
)

// firstMarketerDetector boosts signals hiring a first or founding marketer:
// 5 points per distinct matched pattern, capped at 15.
type firstMarketerDetector struct{}

func (d *firstMarketerDetector) Name() model.AdjustmentCategory {
	return model.AdjustmentFirstMarketer
}

func (d *firstMarketerDetector) Apply(in Input) model.ScoringAdjustment {
	matches := 0
	for _, re := range firstMarketerPatterns {
		if re.MatchString(in.SignalText) {
			matches++
		}
	}

	if matches == 0 {
		return model.ScoringAdjustment{
			Category:   model.AdjustmentFirstMarketer,
			Adjustment: 0,
			Reason:     "not a first marketer role",
			Confidence: 0.3,
		}
	}

	bonus := float64(matches * 5)
	if bonus > 15 {
		bonus = 15
	}
	return model.ScoringAdjustment{
		Category:   model.AdjustmentFirstMarketer,
		Adjustment: bonus,
		Reason:     fmt.Sprintf("first marketer role detected (%d indicators)", matches),
		Confidence: capConfidence(float64(matches)*0.3, 1.0),
	}
}

// toneDetector classifies copy as founder-written vs HR-generated by the
// ratio of founder-voice to boilerplate pattern hits.
type toneDetector struct{}

func (d *toneDetector) Name() model.AdjustmentCategory {
	return model.AdjustmentTone
}

func (d *toneDetector) Apply(in Input) model.ScoringAdjustment {
	founder := countMatches(founderTonePatterns, in.SignalText)
	hr := countMatches(hrTonePatterns, in.SignalText)

	total := founder + hr
	if total == 0 {
		return model.ScoringAdjustment{
			Category:   model.AdjustmentTone,
			Adjustment: 0,
			Reason:     "unable to classify tone",
			Confidence: 0.1,
		}
	}

	ratio := float64(founder) / float64(total)
	switch {
	case ratio > 0.6:
		return model.ScoringAdjustment{
			Category:   model.AdjustmentTone,
			Adjustment: float64(int(ratio * 10)),
			Reason:     fmt.Sprintf("founder-written tone detected (%d founder indicators, %d HR indicators)", founder, hr),
			Confidence: ratio,
		}
	case ratio < 0.4:
		return model.ScoringAdjustment{
			Category:   model.AdjustmentTone,
			Adjustment: -float64(int((1 - ratio) * 5)),
			Reason:     fmt.Sprintf("HR/generic tone detected (%d HR indicators, %d founder indicators)", hr, founder),
			Confidence: 1 - ratio,
		}
	default:
		return model.ScoringAdjustment{
			Category:   model.AdjustmentTone,
			Adjustment: 0,
			Reason:     "mixed tone (both founder and HR elements)",
			Confidence: 0.5,
		}
	}
}

// silverBulletDetector penalizes unrealistic-growth language: 8 points per
// match, capped at 20.
type silverBulletDetector struct{}

func (d *silverBulletDetector) Name() model.AdjustmentCategory {
	return model.AdjustmentSilverBullet
}

func (d *silverBulletDetector) Apply(in Input) model.ScoringAdjustment {
	matches := countMatches(silverBulletPatterns, in.SignalText)
	if matches == 0 {
		return model.ScoringAdjustment{
			Category:   model.AdjustmentSilverBullet,
			Adjustment: 0,
			Reason:     "no unrealistic expectations detected",
			Confidence: 0.5,
		}
	}

	penalty := float64(matches * 8)
	if penalty > 20 {
		penalty = 20
	}
	return model.ScoringAdjustment{
		Category:   model.AdjustmentSilverBullet,
		Adjustment: -penalty,
		Reason:     fmt.Sprintf("unrealistic expectations detected (%d red flags)", matches),
		Confidence: capConfidence(float64(matches)*0.4, 1.0),
	}
}

// spamDetector penalizes get-rich-quick / MLM copy: 15 points per match,
// capped at 40. Heaviest single penalty category so spam dominates any
// combination of bonuses.
type spamDetector struct{}

func (d *spamDetector) Name() model.AdjustmentCategory {
	return model.AdjustmentSpam
}

func (d *spamDetector) Apply(in Input) model.ScoringAdjustment {
	matches := countMatches(spamPatterns, in.SignalText)
	if matches == 0 {
		return model.ScoringAdjustment{
			Category:   model.AdjustmentSpam,
			Adjustment: 0,
			Reason:     "no spam detected",
			Confidence: 0.8,
		}
	}

	penalty := float64(matches * 15)
	if penalty > 40 {
		penalty = 40
	}
	return model.ScoringAdjustment{
		Category:   model.AdjustmentSpam,
		Adjustment: -penalty,
		Reason:     fmt.Sprintf("spammy language detected (%d spam indicators)", matches),
		Confidence: capConfidence(float64(matches)*0.5, 1.0),
	}
}

// industryDetector awards a bonus for industry-specific pain vocabulary:
// 3 points per keyword, capped at 12. The industry tag is taken from the
// signal or auto-detected from keyword density.
type industryDetector struct{}

func (d *industryDetector) Name() model.AdjustmentCategory {
	return model.AdjustmentIndustry
}

func (d *industryDetector) Apply(in Input) model.ScoringAdjustment {
	industry := strings.ToLower(strings.TrimSpace(in.Industry))
	if _, known := industryPainKeywords[industry]; !known {
		industry = detectIndustry(in.SignalText)
	}

	if keywords, ok := industryPainKeywords[industry]; ok {
		lower := strings.ToLower(in.SignalText)
		matches := 0
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				matches++
			}
		}
		if matches > 0 {
			bonus := float64(matches * 3)
			if bonus > 12 {
				bonus = 12
			}
			return model.ScoringAdjustment{
				Category:   model.AdjustmentIndustry,
				Adjustment: bonus,
				Reason:     fmt.Sprintf("%s industry pain detected (%d keywords)", strings.ToUpper(industry), matches),
				Confidence: capConfidence(float64(matches)*0.2, 0.9),
			}
		}
	}

	return model.ScoringAdjustment{
		Category:   model.AdjustmentIndustry,
		Adjustment: 0,
		Reason:     "no industry-specific pain detected",
		Confidence: 0.3,
	}
}

// detectIndustry guesses an industry tag from signal vocabulary. Returns
// "" when nothing matches.
func detectIndustry(signalText string) string {
	lower := strings.ToLower(signalText)
	for _, m := range industryMarkers {
		for _, kw := range m.keywords {
			if strings.Contains(lower, kw) {
				return m.industry
			}
		}
	}
	return ""
}

func countMatches(patterns []*regexp.Regexp, text string) int {
	n := 0
	for _, re := range patterns {
		if re.MatchString(text) {
			n++
		}
	}
	return n
}

func capConfidence(v, max float64) float64 {
	if v > max {
		return max
	}
	return v
}
