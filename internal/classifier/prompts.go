package classifier

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Template names recognized by the loader.
const (
	templateClassification = "classification"
	templateDossier        = "dossier"
)

const defaultClassificationTemplate = `You are an expert lead qualification analyst. Your job is to analyze social media signals (posts, comments, job ads, etc.) and classify them according to an Ideal Customer Profile (ICP).

**ICP Context:**
{icp_context}

**Signal to Analyze:**
{signal_text}

**Your Task:**
Analyze the signal and return a JSON object with the following structure. Be precise and evidence-based.

**Required JSON Output:**
{
  "icp_match": <boolean>,
  "size_bucket": "<1|2-5|6-10|11-20|unknown>",
  "region": "<india|other|unknown>",
  "role_type": "<first_marketer|agency_replacement|extra_headcount|unclear>",
  "pain_tags": ["<array of pain indicators>"],
  "score_fit": <0-50, ICP fitness score>,
  "score_pain": <0-40, pain intensity score>,
  "score_data_quality": <0-10, signal quality score>,
  "situation": "<SPIN: current situation>",
  "problem": "<SPIN: problem identified>",
  "implication": "<SPIN: implications of problem>",
  "need_payoff": "<SPIN: potential payoff>",
  "economic_buyer_guess": "<founder|ceo|gm|other>",
  "key_pain": "<40 words max>",
  "chaos_flags": ["<array of chaos indicators>"],
  "silver_bullet_phrases": ["<array of compelling phrases>"]
}

**Scoring Guidelines:**
- score_fit (0-50): How well does this match the ICP? Consider company size, industry, region.
- score_pain (0-40): How intense is the marketing pain? Look for urgency, frustration, budget mentions.
- score_data_quality (0-10): How complete and reliable is the signal data?

Return ONLY the JSON object, no additional text.`

const defaultDossierTemplate = `You are a strategic sales analyst. You've been given a high-scoring lead signal that needs a detailed dossier for the sales team.

**Signal Text:**
{signal_text}

**Classification Data:**
{classification_json}

**Your Task:**
Create a comprehensive strategic dossier that will help the sales team understand WHY this lead matters and HOW to approach them effectively.

**Required JSON Output:**
{
  "snapshot": "<40 words max: executive summary>",
  "why_pain_bullets": [
    "<bullet 1: specific pain reason>",
    "<bullet 2: specific pain reason>",
    "<bullet 3: specific pain reason>"
  ],
  "uncomfortable_truth": "<1-2 sentences on consequences of inaction>",
  "reframe_suggestion": "<1 strong sentence reframing their problem>",
  "best_angle_bullets": [
    "<approach angle 1>",
    "<approach angle 2>",
    "<approach angle 3>"
  ],
  "challenger_insight": "<The one key insight that will make them rethink their approach>"
}

**Guidelines:**
- Be specific and evidence-based
- Focus on strategic insights, not generic advice
- Use Challenger Sale principles
- Make it actionable for the sales team

Return ONLY the JSON object, no additional text.`

// Templates holds the prompt text used to drive the model. Placeholders
// use the {name} form and are substituted verbatim at render time.
type Templates struct {
	templates map[string]string
}

// DefaultTemplates returns the built-in prompts.
func DefaultTemplates() *Templates {
	return &Templates{templates: map[string]string{
		templateClassification: defaultClassificationTemplate,
		templateDossier:        defaultDossierTemplate,
	}}
}

// LoadTemplates reads prompt overrides from YAML files in dir. Each file
// maps template names to prompt text. Missing names keep their built-in
// defaults; an unreadable file is skipped with a logged warning so one
// bad override never takes the classifier down.
func LoadTemplates(dir string) (*Templates, error) {
	t := DefaultTemplates()
	if dir == "" {
		return t, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "classifier: read template dir %s", dir)
	}

	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			zap.L().Warn("classifier: skipping unreadable template file",
				zap.String("path", path), zap.Error(err))
			continue
		}
		var overrides map[string]string
		if err := yaml.Unmarshal(data, &overrides); err != nil {
			zap.L().Warn("classifier: skipping malformed template file",
				zap.String("path", path), zap.Error(err))
			continue
		}
		for name, text := range overrides {
			t.templates[name] = text
		}
	}

	return t, nil
}

// RenderClassification fills the classification prompt.
func (t *Templates) RenderClassification(signalText, icpContext string) string {
	return strings.NewReplacer(
		"{signal_text}", signalText,
		"{icp_context}", icpContext,
	).Replace(t.templates[templateClassification])
}

// RenderDossier fills the dossier prompt.
func (t *Templates) RenderDossier(signalText, classificationJSON string) string {
	return strings.NewReplacer(
		"{signal_text}", signalText,
		"{classification_json}", classificationJSON,
	).Replace(t.templates[templateDossier])
}
