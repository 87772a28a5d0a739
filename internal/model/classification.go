package model

// ClassificationResult is the structured output of the fast classification
// model. Sub-score ranges: fit 0-50, pain 0-40, data quality 0-10.
type ClassificationResult struct {
	ICPMatch            bool     `json:"icp_match"`
	SizeBucket          string   `json:"size_bucket"`
	Region              string   `json:"region"`
	RoleType            string   `json:"role_type"`
	PainTags            []string `json:"pain_tags"`
	ScoreFit            float64  `json:"score_fit"`
	ScorePain           float64  `json:"score_pain"`
	ScoreDataQuality    float64  `json:"score_data_quality"`
	ReasonShort         string   `json:"reason_short"`
	Situation           string   `json:"situation"`
	Problem             string   `json:"problem"`
	Implication         string   `json:"implication"`
	NeedPayoff          string   `json:"need_payoff"`
	EconomicBuyerGuess  string   `json:"economic_buyer_guess"`
	KeyPain             string   `json:"key_pain"`
	ChaosFlags          []string `json:"chaos_flags"`
	SilverBulletPhrases []string `json:"silver_bullet_phrases"`
}

// BaseTotal returns the unweighted sum of the three model sub-scores.
func (c ClassificationResult) BaseTotal() float64 {
	return c.ScoreFit + c.ScorePain + c.ScoreDataQuality
}

// DefaultClassification is the fail-open result returned when the model
// call fails or its response cannot be parsed. All scores zero, no match.
func DefaultClassification() ClassificationResult {
	return ClassificationResult{
		ICPMatch:            false,
		SizeBucket:          "unknown",
		Region:              "unknown",
		RoleType:            "unclear",
		PainTags:            []string{},
		ReasonShort:         "classification failed",
		EconomicBuyerGuess:  "unknown",
		ChaosFlags:          []string{},
		SilverBulletPhrases: []string{},
	}
}

// DossierResult is the deep-context output of the larger model, generated
// asynchronously for leads above the dossier score threshold.
type DossierResult struct {
	Snapshot           string   `json:"snapshot"`
	WhyPainBullets     []string `json:"why_pain_bullets"`
	UncomfortableTruth string   `json:"uncomfortable_truth"`
	ReframeSuggestion  string   `json:"reframe_suggestion"`
	BestAngleBullets   []string `json:"best_angle_bullets"`
	ChallengerInsight  string   `json:"challenger_insight"`
}

// DefaultDossier is the fail-open dossier returned when generation fails.
func DefaultDossier() DossierResult {
	return DossierResult{
		Snapshot:           "Lead context generation failed.",
		WhyPainBullets:     []string{},
		UncomfortableTruth: "Unable to generate insight.",
		ReframeSuggestion:  "Unable to generate reframe.",
		BestAngleBullets:   []string{},
		ChallengerInsight:  "Unable to generate insight.",
	}
}
