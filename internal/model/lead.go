package model

import "time"

// LeadStatus is the lead lifecycle state machine value.
type LeadStatus string

const (
	StatusNew       LeadStatus = "new"
	StatusContacted LeadStatus = "contacted"
	StatusQualified LeadStatus = "qualified"
	StatusPitched   LeadStatus = "pitched"
	StatusTrial     LeadStatus = "trial"
	StatusWon       LeadStatus = "won"
	StatusLost      LeadStatus = "lost"
	StatusParked    LeadStatus = "parked"
)

// AllStatuses returns every valid lead status.
func AllStatuses() []LeadStatus {
	return []LeadStatus{
		StatusNew, StatusContacted, StatusQualified, StatusPitched,
		StatusTrial, StatusWon, StatusLost, StatusParked,
	}
}

// ValidStatus reports whether s is a known lead status.
func ValidStatus(s LeadStatus) bool {
	for _, v := range AllStatuses() {
		if v == s {
			return true
		}
	}
	return false
}

// ScoreBucket is the discrete quality tier derived from the total score.
type ScoreBucket string

const (
	BucketRedHot  ScoreBucket = "red_hot"
	BucketWarm    ScoreBucket = "warm"
	BucketNurture ScoreBucket = "nurture"
	BucketParked  ScoreBucket = "parked"
)

// BucketForScore maps a total score to its bucket. Half-open intervals,
// lower bound inclusive: red_hot ≥80, warm [60,80), nurture [40,60),
// parked <40.
func BucketForScore(score float64) ScoreBucket {
	switch {
	case score >= 80:
		return BucketRedHot
	case score >= 60:
		return BucketWarm
	case score >= 40:
		return BucketNurture
	default:
		return BucketParked
	}
}

// AdjustmentCategory tags a heuristic scoring adjustment.
type AdjustmentCategory string

const (
	AdjustmentGhostJob      AdjustmentCategory = "ghost_job"
	AdjustmentFirstMarketer AdjustmentCategory = "first_marketer"
	AdjustmentTone          AdjustmentCategory = "tone_classification"
	AdjustmentSilverBullet  AdjustmentCategory = "silver_bullet_seeker"
	AdjustmentSpam          AdjustmentCategory = "spam_detection"
	AdjustmentIndustry      AdjustmentCategory = "industry_specific"
	AdjustmentFunding       AdjustmentCategory = "funding_event"
)

// ScoringAdjustment is one deterministic rule-based signed correction to a
// model-derived score, with a machine-generated rationale.
type ScoringAdjustment struct {
	Category   AdjustmentCategory `json:"category"`
	Adjustment float64            `json:"adjustment"`
	Reason     string             `json:"reason"`
	Confidence float64            `json:"confidence"`
}

// Lead is the persistent entity produced by the score aggregator and owned
// by the lifecycle manager afterwards.
type Lead struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id,omitempty"`
	SignalID  string `json:"signal_id,omitempty"`

	// Scoring
	ScoreFit         float64     `json:"score_fit"`
	ScorePain        float64     `json:"score_pain"`
	ScoreDataQuality float64     `json:"score_data_quality"`
	TotalScore       float64     `json:"total_score"`
	ScoreBucket      ScoreBucket `json:"score_bucket"`

	// Classification
	ICPMatch           bool     `json:"icp_match"`
	RoleType           string   `json:"role_type,omitempty"`
	PainTags           []string `json:"pain_tags,omitempty"`
	Situation          string   `json:"situation,omitempty"`
	Problem            string   `json:"problem,omitempty"`
	Implication        string   `json:"implication,omitempty"`
	NeedPayoff         string   `json:"need_payoff,omitempty"`
	EconomicBuyerGuess string   `json:"economic_buyer_guess,omitempty"`
	KeyPain            string   `json:"key_pain,omitempty"`

	// Heuristics metadata (append-only log).
	HeuristicAdjustments []ScoringAdjustment `json:"heuristic_adjustments,omitempty"`

	// Deep context (generated asynchronously for hot leads).
	ContextDossier    string `json:"context_dossier,omitempty"`
	ChallengerInsight string `json:"challenger_insight,omitempty"`
	ReframeSuggestion string `json:"reframe_suggestion,omitempty"`

	// Lifecycle
	Status              LeadStatus `json:"status"`
	Notes               string     `json:"notes,omitempty"`
	ManualScoreOverride *float64   `json:"manual_score_override,omitempty"`
	OverrideReason      string     `json:"override_reason,omitempty"`
	AutoParkedAt        *time.Time `json:"auto_parked_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ScoreOverride is an immutable audit record of a manual score override.
type ScoreOverride struct {
	ID            string    `json:"id"`
	LeadID        string    `json:"lead_id"`
	Actor         string    `json:"actor"`
	OriginalScore float64   `json:"original_score"`
	OverrideScore float64   `json:"override_score"`
	Reason        string    `json:"reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
