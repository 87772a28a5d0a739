// Package store persists companies, signals, leads, score overrides,
// funding events, and ICP profiles behind a single interface with SQLite
// and Postgres implementations.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/raptorflow/lead-engine/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = eris.New("store: not found")

// LeadFilter specifies criteria for listing leads.
type LeadFilter struct {
	Status   model.LeadStatus  `json:"status,omitempty"`
	Bucket   model.ScoreBucket `json:"bucket,omitempty"`
	MinScore float64           `json:"min_score,omitempty"`
	Limit    int               `json:"limit,omitempty"`
	Offset   int               `json:"offset,omitempty"`
}

// Store defines the persistence interface for the lead engine.
type Store interface {
	// Companies
	GetOrCreateCompany(ctx context.Context, name, website string) (*model.Company, error)

	// Signals
	CreateSignal(ctx context.Context, companyID string, sig model.Signal) (*model.SignalRecord, error)

	// Leads
	CreateLead(ctx context.Context, lead *model.Lead) (*model.Lead, error)
	GetLead(ctx context.Context, leadID string) (*model.Lead, error)
	ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error)
	UpdateLeadStatus(ctx context.Context, leadID string, status model.LeadStatus, notes string) error
	UpdateLeadScore(ctx context.Context, leadID string, score float64, bucket model.ScoreBucket, override *float64, reason string) error
	UpdateLeadDossier(ctx context.Context, leadID, dossier, challengerInsight, reframeSuggestion string) error
	ListAutoParkCandidates(ctx context.Context, cutoff time.Time) ([]model.Lead, error)
	AutoParkLead(ctx context.Context, leadID, note string, at time.Time) error

	// Score overrides
	CreateScoreOverride(ctx context.Context, o model.ScoreOverride) (*model.ScoreOverride, error)
	ListScoreOverrides(ctx context.Context, leadID string) ([]model.ScoreOverride, error)

	// Funding events
	CreateFundingEvent(ctx context.Context, companyID, eventType string, announced time.Time) (*model.FundingEvent, error)
	HasRecentFunding(ctx context.Context, companyID string, since time.Time) (bool, error)

	// ICP profiles
	ListICPProfiles(ctx context.Context) ([]model.ICPProfile, error)
	CreateICPProfile(ctx context.Context, p model.ICPProfile) (*model.ICPProfile, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// New constructs a store for the configured driver.
func New(ctx context.Context, driver, databaseURL string) (Store, error) {
	switch driver {
	case "postgres":
		return NewPostgres(ctx, databaseURL)
	case "sqlite", "":
		return NewSQLite(databaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
