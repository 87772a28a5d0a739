package heuristics

import "regexp"

func compileAll(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

// firstMarketerPatterns match phrasing that implies a first or founding
// marketing hire.
var firstMarketerPatterns = compileAll([]string{
	`\bfirst\s+marketing\s+hire\b`,
	`\bfirst\s+marketer\b`,
	`\bown\s+all\s+of\s+marketing\b`,
	`\bown\s+marketing\b`,
	`\bfounding\s+marketer\b`,
	`\bhead\s+of\s+growth\b.*\bfirst\b`,
	`\b0\s*to\s*1\b.*\bmarketing\b`,
	`\bbuild.*marketing\s+from\s+scratch\b`,
	`\bestablish.*marketing\s+function\b`,
})

// founderTonePatterns match personal, mission-driven copy.
var founderTonePatterns = compileAll([]string{
	`\bwe're\s+building\b`,
	`\bour\s+mission\b`,
	`\bour\s+vision\b`,
	`\bjoin\s+us\b`,
	`\bwe\s+believe\b`,
	`\bI'm\s+looking\b`,
	`\bI\s+need\b`,
	`\bmy\s+team\b`,
	`\bhelp\s+us\s+\w+\b`,
	`\bexcited\s+to\b`,
	`\bpassionate\s+about\b`,
})

// hrTonePatterns match formal, procedural job-ad boilerplate.
var hrTonePatterns = compileAll([]string{
	`\bthe\s+successful\s+candidate\b`,
	`\bthe\s+ideal\s+candidate\b`,
	`\bresponsibilities\s+include\b`,
	`\bqualifications\b`,
	`\brequirements\b`,
	`\bcompetitive\s+salary\b`,
	`\bbenefits\s+package\b`,
	`\bequal\s+opportunity\s+employer\b`,
	`\bplease\s+submit\b`,
	`\bto\s+apply\b`,
})

// silverBulletPatterns match unrealistic-growth language.
var silverBulletPatterns = compileAll([]string{
	`\b10x\s+growth\b`,
	`\b100x\s+growth\b`,
	`\bhockey\s+stick\s+growth\b`,
	`\bovernight\s+success\b`,
	`\binstant\s+results\b`,
	`\bviral\s+growth\b`,
	`\bguaranteed\s+success\b`,
	`\btriple.*revenue.*month\b`,
	`\bexplosive\s+growth\b`,
})

// spamPatterns match get-rich-quick / MLM copy.
var spamPatterns = compileAll([]string{
	`\bearn\s+money\s+fast\b`,
	`\bwork\s+from\s+home\b`,
	`\bno\s+experience\s+needed\b`,
	`\bMLM\b`,
	`\bmulti[-\s]?level\s+marketing\b`,
	`\bpyramid\b`,
	`\bget\s+rich\s+quick\b`,
	`\bclick\s+here\b`,
	`\blimited\s+time\s+offer\b`,
})

// boilerplatePhrases indicate a copied job-post template.
var boilerplatePhrases = []string{
	"this is a template",
	"[insert company name]",
	"[company name]",
	"tbd",
	"to be determined",
}

// placeholderCompanyNames are values that count as no company name at all.
var placeholderCompanyNames = map[string]bool{
	"unknown":      true,
	"n/a":          true,
	"confidential": true,
}

// industryPainKeywords maps an industry tag to pain vocabulary specific to it.
var industryPainKeywords = map[string][]string{
	"d2c": {
		"retention", "churn", "cac", "ltv", "abandoned cart",
		"repeat purchase", "customer loyalty", "dtc",
	},
	"saas": {
		"pipeline", "mql", "sql", "conversion", "trial-to-paid",
		"activation", "onboarding", "expansion", "plg",
	},
	"b2b": {
		"lead generation", "enterprise sales", "abm", "demand gen",
		"sales cycle", "deal velocity", "pipeline",
	},
	"ecommerce": {
		"cart abandonment", "conversion rate", "aov", "roas",
		"product pages", "checkout", "seo",
	},
	"marketplace": {
		"supply-demand", "liquidity", "gmv", "take rate",
		"network effects", "two-sided",
	},
}

// industryMarkers auto-detect an industry tag from signal vocabulary.
// Ordered: the first matching industry wins.
var industryMarkers = []struct {
	industry string
	keywords []string
}{
	{"d2c", []string{"d2c", "direct to consumer", "dtc", "ecom brand"}},
	{"saas", []string{"saas", "software as a service", "b2b software"}},
	{"marketplace", []string{"marketplace", "platform", "two-sided"}},
	{"ecommerce", []string{"ecommerce", "e-commerce", "online store"}},
	{"b2b", []string{"b2b", "enterprise", "business to business"}},
}
