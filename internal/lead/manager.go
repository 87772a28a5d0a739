// Package lead owns the lead lifecycle after scoring: status transitions,
// manual score overrides with an audit trail, and time-based auto-parking.
package lead

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/raptorflow/lead-engine/internal/config"
	"github.com/raptorflow/lead-engine/internal/model"
	"github.com/raptorflow/lead-engine/internal/scoring"
	"github.com/raptorflow/lead-engine/internal/store"
)

var (
	// ErrNotFound is returned when the referenced lead does not exist.
	ErrNotFound = eris.New("lead: not found")

	// ErrInvalidStatus is returned for a status outside the lifecycle enum.
	ErrInvalidStatus = eris.New("lead: invalid status")
)

// Manager coordinates lead lifecycle mutations against the store.
type Manager struct {
	store        store.Store
	autoParkDays int

	now func() time.Time
}

// NewManager creates a lifecycle manager.
func NewManager(st store.Store, cfg config.LifecycleConfig) *Manager {
	days := cfg.AutoParkDays
	if days <= 0 {
		days = 30
	}
	return &Manager{
		store:        st,
		autoParkDays: days,
		now:          time.Now,
	}
}

// TransitionStatus moves a lead to a new lifecycle status. Unknown statuses
// are rejected before touching the store.
func (m *Manager) TransitionStatus(ctx context.Context, leadID string, status model.LeadStatus, notes string) error {
	if !model.ValidStatus(status) {
		return eris.Wrapf(ErrInvalidStatus, "%q", status)
	}

	err := m.store.UpdateLeadStatus(ctx, leadID, status, notes)
	if eris.Is(err, store.ErrNotFound) {
		return eris.Wrapf(ErrNotFound, "%s", leadID)
	}
	if err != nil {
		return eris.Wrapf(err, "lead: transition %s", leadID)
	}

	zap.L().Info("lead status updated",
		zap.String("lead_id", leadID),
		zap.String("status", string(status)),
	)
	return nil
}

// OverrideScore replaces a lead's total score with a manually chosen value.
// The override is clamped to [0,100], the bucket recomputed, and an
// immutable audit row recorded before the lead itself changes.
func (m *Manager) OverrideScore(ctx context.Context, leadID string, newScore float64, reason, actor string) (*model.Lead, error) {
	current, err := m.store.GetLead(ctx, leadID)
	if eris.Is(err, store.ErrNotFound) {
		return nil, eris.Wrapf(ErrNotFound, "%s", leadID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "lead: load %s", leadID)
	}

	clamped := scoring.Clamp(newScore)
	bucket := model.BucketForScore(clamped)

	if _, err := m.store.CreateScoreOverride(ctx, model.ScoreOverride{
		LeadID:        leadID,
		Actor:         actor,
		OriginalScore: current.TotalScore,
		OverrideScore: clamped,
		Reason:        reason,
	}); err != nil {
		return nil, eris.Wrapf(err, "lead: record override for %s", leadID)
	}

	if err := m.store.UpdateLeadScore(ctx, leadID, clamped, bucket, &clamped, reason); err != nil {
		return nil, eris.Wrapf(err, "lead: apply override for %s", leadID)
	}

	zap.L().Info("lead score overridden",
		zap.String("lead_id", leadID),
		zap.Float64("original", current.TotalScore),
		zap.Float64("override", clamped),
		zap.String("actor", actor),
	)

	return m.store.GetLead(ctx, leadID)
}

// OverrideHistory returns a lead's override audit trail, newest first.
func (m *Manager) OverrideHistory(ctx context.Context, leadID string) ([]model.ScoreOverride, error) {
	return m.store.ListScoreOverrides(ctx, leadID)
}

// SweepResult summarizes one auto-park pass.
type SweepResult struct {
	DryRun     bool         `json:"dry_run"`
	Cutoff     time.Time    `json:"cutoff"`
	Candidates []model.Lead `json:"candidates"`
	Parked     int          `json:"parked"`
}

// AutoPark parks every lead still in status new with no activity since the
// configured cutoff. With dryRun the candidates are returned untouched.
// The store predicate makes a repeated sweep a no-op.
func (m *Manager) AutoPark(ctx context.Context, dryRun bool) (*SweepResult, error) {
	now := m.now().UTC()
	cutoff := now.AddDate(0, 0, -m.autoParkDays)

	candidates, err := m.store.ListAutoParkCandidates(ctx, cutoff)
	if err != nil {
		return nil, eris.Wrap(err, "lead: list auto-park candidates")
	}

	result := &SweepResult{DryRun: dryRun, Cutoff: cutoff, Candidates: candidates}
	if dryRun {
		return result, nil
	}

	note := fmt.Sprintf("auto-parked on %s: no activity for %d days", now.Format("2006-01-02"), m.autoParkDays)
	for _, c := range candidates {
		err := m.store.AutoParkLead(ctx, c.ID, note, now)
		if eris.Is(err, store.ErrNotFound) {
			// Raced with a manual transition or a concurrent sweep.
			continue
		}
		if err != nil {
			return result, eris.Wrapf(err, "lead: auto-park %s", c.ID)
		}
		result.Parked++
	}

	zap.L().Info("auto-park sweep complete",
		zap.Int("candidates", len(candidates)),
		zap.Int("parked", result.Parked),
		zap.Time("cutoff", cutoff),
	)
	return result, nil
}
