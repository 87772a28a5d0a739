package model

import "time"

// SourceType identifies where a signal came from.
type SourceType string

const (
	SourceTypeJobPost SourceType = "job_post"
	SourceTypeWebsite SourceType = "website"
	SourceTypeSocial  SourceType = "social"
	SourceTypeRSS     SourceType = "rss_feed"
	SourceTypeManual  SourceType = "manual"
	SourceTypeCSV     SourceType = "csv"
)

// Signal is a piece of raw text evidence considered for lead qualification.
// Produced by external collaborators (scrapers, ingestion); read by every
// pipeline stage.
type Signal struct {
	Text           string     `json:"signal_text"`
	SourceType     SourceType `json:"source_type"`
	SourceURL      string     `json:"source_url,omitempty"`
	CompanyName    string     `json:"company_name,omitempty"`
	CompanyWebsite string     `json:"company_website,omitempty"`
	PostDate       *time.Time `json:"post_date,omitempty"`
	Industry       string     `json:"industry,omitempty"`
}

// SignalRecord is the persisted form of a signal.
type SignalRecord struct {
	ID         string     `json:"id"`
	CompanyID  string     `json:"company_id,omitempty"`
	SourceType SourceType `json:"source_type"`
	SourceURL  string     `json:"source_url,omitempty"`
	RawText    string     `json:"raw_text"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Company is a minimal company record owned by the persistence layer.
type Company struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Website   string    `json:"website,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// FundingEvent records a company funding announcement. Read-only input to
// the score aggregator; owned by an external collaborator.
type FundingEvent struct {
	ID            string    `json:"id"`
	CompanyID     string    `json:"company_id"`
	EventType     string    `json:"event_type"` // seed, series_a, series_b, bridge, acquisition, ipo
	AnnouncedDate time.Time `json:"announced_date"`
	CreatedAt     time.Time `json:"created_at"`
}

// ICPProfile defines the Ideal Customer Profile criteria signals are
// matched against.
type ICPProfile struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	SizeBuckets    []string  `json:"size_buckets"`
	Industries     []string  `json:"industries"`
	PainKeywords   []string  `json:"pain_keywords"`
	HiringKeywords []string  `json:"hiring_keywords"`
	CreatedAt      time.Time `json:"created_at"`
}

// ICPContext is the merged view of all ICP profiles, computed once per
// batch and injected into the classification prompt.
type ICPContext struct {
	SizeBuckets    []string `json:"size_buckets"`
	Industries     []string `json:"industries"`
	PainKeywords   []string `json:"pain_keywords"`
	HiringKeywords []string `json:"hiring_keywords"`
}
