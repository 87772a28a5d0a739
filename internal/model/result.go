package model

// ItemStatus is the outcome of a single batch item.
type ItemStatus string

const (
	ItemStatusCreated  ItemStatus = "created"
	ItemStatusFiltered ItemStatus = "filtered"
	ItemStatusError    ItemStatus = "error"
)

// LeadResult is the full outcome of classifying a single signal.
type LeadResult struct {
	ICPMatch             bool                 `json:"icp_match"`
	TotalScore           float64              `json:"total_score"`
	ScoreBucket          ScoreBucket          `json:"score_bucket"`
	Classification       ClassificationResult `json:"classification"`
	CompanyID            string               `json:"company_id,omitempty"`
	LeadID               string               `json:"lead_id,omitempty"`
	HeuristicAdjustments []ScoringAdjustment  `json:"heuristic_adjustments"`
	ScoreExplanation     *ScoreExplanation    `json:"score_explanation,omitempty"`
}

// ItemResult is the per-signal result within a batch.
type ItemResult struct {
	Index      int         `json:"index"`
	Snippet    string      `json:"signal"`
	Status     ItemStatus  `json:"status"`
	TotalScore float64     `json:"total_score,omitempty"`
	Bucket     ScoreBucket `json:"score_bucket,omitempty"`
	LeadID     string      `json:"lead_id,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// BatchResult summarizes a batch classification. Created+Filtered+Errors
// always equals the number of input signals.
type BatchResult struct {
	Count    int          `json:"count"`
	Created  int          `json:"created"`
	Filtered int          `json:"filtered"`
	Errors   int          `json:"errors"`
	Results  []ItemResult `json:"results"`
}

// ScoreExplanation is the reproducible breakdown of a final score.
type ScoreExplanation struct {
	BaseScores      map[string]float64  `json:"base_scores"`
	Weights         map[string]float64  `json:"scoring_weights"`
	WeightedBase    map[string]float64  `json:"weighted_base_scores"`
	BaseTotal       float64             `json:"base_total"`
	Adjustments     []ScoringAdjustment `json:"adjustments"`
	AdjustmentTotal float64             `json:"adjustment_total"`
	RawScore        float64             `json:"raw_score"`
	FinalScore      float64             `json:"final_score"`
	ScoreBucket     ScoreBucket         `json:"score_bucket"`
	ManualOverride  *float64            `json:"manual_override,omitempty"`
	OverrideApplied bool                `json:"override_applied,omitempty"`
}
