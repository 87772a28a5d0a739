package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raptorflow/lead-engine/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testLead(companyID, signalID string) *model.Lead {
	return &model.Lead{
		CompanyID:        companyID,
		SignalID:         signalID,
		ScoreFit:         42,
		ScorePain:        30,
		ScoreDataQuality: 8,
		TotalScore:       85,
		ScoreBucket:      model.BucketRedHot,
		ICPMatch:         true,
		RoleType:         "first_marketer",
		PainTags:         []string{"no marketing team"},
		KeyPain:          "founder doing everything alone",
		HeuristicAdjustments: []model.ScoringAdjustment{
			{Category: model.AdjustmentFirstMarketer, Adjustment: 5, Reason: "first marketing hire", Confidence: 0.3},
		},
		Status: model.StatusNew,
	}
}

// --- Companies ---

func TestSQLite_GetOrCreateCompany(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c1, err := st.GetOrCreateCompany(ctx, "Acme D2C", "https://acme.example")
	require.NoError(t, err)
	assert.NotEmpty(t, c1.ID)

	c2, err := st.GetOrCreateCompany(ctx, "Acme D2C", "https://other.example")
	require.NoError(t, err)
	assert.Equal(t, c1.ID, c2.ID, "same name must return the same company")
	assert.Equal(t, "https://acme.example", c2.Website)
}

// --- Signals ---

func TestSQLite_CreateSignal(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c, err := st.GetOrCreateCompany(ctx, "Acme", "")
	require.NoError(t, err)

	rec, err := st.CreateSignal(ctx, c.ID, model.Signal{
		Text:       "hiring our first marketer",
		SourceType: model.SourceTypeJobPost,
		SourceURL:  "https://jobs.example/1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, c.ID, rec.CompanyID)
	assert.Equal(t, "hiring our first marketer", rec.RawText)
}

// --- Leads ---

func TestSQLite_CreateAndGetLead(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	created, err := st.CreateLead(ctx, testLead("", ""))
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := st.GetLead(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.InDelta(t, 85.0, got.TotalScore, 0.001)
	assert.Equal(t, model.BucketRedHot, got.ScoreBucket)
	assert.True(t, got.ICPMatch)
	assert.Equal(t, []string{"no marketing team"}, got.PainTags)
	require.Len(t, got.HeuristicAdjustments, 1)
	assert.Equal(t, model.AdjustmentFirstMarketer, got.HeuristicAdjustments[0].Category)
	assert.Nil(t, got.ManualScoreOverride)
	assert.Nil(t, got.AutoParkedAt)
}

func TestSQLite_GetLead_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetLead(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestSQLite_ListLeads_Filters(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	hot := testLead("", "")
	_, err := st.CreateLead(ctx, hot)
	require.NoError(t, err)

	cold := testLead("", "")
	cold.TotalScore = 20
	cold.ScoreBucket = model.BucketParked
	cold.Status = model.StatusParked
	_, err = st.CreateLead(ctx, cold)
	require.NoError(t, err)

	all, err := st.ListLeads(ctx, LeadFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.InDelta(t, 85.0, all[0].TotalScore, 0.001, "sorted by score descending")

	hotOnly, err := st.ListLeads(ctx, LeadFilter{Bucket: model.BucketRedHot})
	require.NoError(t, err)
	assert.Len(t, hotOnly, 1)

	parked, err := st.ListLeads(ctx, LeadFilter{Status: model.StatusParked})
	require.NoError(t, err)
	assert.Len(t, parked, 1)

	highScore, err := st.ListLeads(ctx, LeadFilter{MinScore: 50})
	require.NoError(t, err)
	assert.Len(t, highScore, 1)
}

func TestSQLite_UpdateLeadStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	lead, err := st.CreateLead(ctx, testLead("", ""))
	require.NoError(t, err)

	require.NoError(t, st.UpdateLeadStatus(ctx, lead.ID, model.StatusContacted, "reached out on email"))

	got, err := st.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusContacted, got.Status)
	assert.Equal(t, "reached out on email", got.Notes)

	err = st.UpdateLeadStatus(ctx, "missing", model.StatusContacted, "")
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestSQLite_UpdateLeadScore(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	lead, err := st.CreateLead(ctx, testLead("", ""))
	require.NoError(t, err)

	override := 95.0
	require.NoError(t, st.UpdateLeadScore(ctx, lead.ID, 95, model.BucketRedHot, &override, "demo booked"))

	got, err := st.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.InDelta(t, 95.0, got.TotalScore, 0.001)
	require.NotNil(t, got.ManualScoreOverride)
	assert.InDelta(t, 95.0, *got.ManualScoreOverride, 0.001)
	assert.Equal(t, "demo booked", got.OverrideReason)
}

func TestSQLite_UpdateLeadDossier(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	lead, err := st.CreateLead(ctx, testLead("", ""))
	require.NoError(t, err)

	require.NoError(t, st.UpdateLeadDossier(ctx, lead.ID, "dossier text", "insight", "reframe"))

	got, err := st.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "dossier text", got.ContextDossier)
	assert.Equal(t, "insight", got.ChallengerInsight)
	assert.Equal(t, "reframe", got.ReframeSuggestion)
}

// --- Auto-park ---

func TestSQLite_AutoPark(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	lead, err := st.CreateLead(ctx, testLead("", ""))
	require.NoError(t, err)

	cutoff := time.Now().UTC().Add(1 * time.Hour)
	candidates, err := st.ListAutoParkCandidates(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, lead.ID, candidates[0].ID)

	now := time.Now().UTC()
	require.NoError(t, st.AutoParkLead(ctx, lead.ID, "auto-parked: no activity", now))

	got, err := st.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusParked, got.Status)
	require.NotNil(t, got.AutoParkedAt)
	assert.Contains(t, got.Notes, "auto-parked")

	// Second sweep finds nothing and re-parking reports not found.
	candidates, err = st.ListAutoParkCandidates(ctx, cutoff)
	require.NoError(t, err)
	assert.Empty(t, candidates)

	err = st.AutoParkLead(ctx, lead.ID, "again", now)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestSQLite_AutoParkCandidates_ExcludeRecent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.CreateLead(ctx, testLead("", ""))
	require.NoError(t, err)

	// Cutoff in the past: the lead was just created, so it is not stale.
	cutoff := time.Now().UTC().Add(-30 * 24 * time.Hour)
	candidates, err := st.ListAutoParkCandidates(ctx, cutoff)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

// --- Score overrides ---

func TestSQLite_ScoreOverrides_NewestFirst(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	lead, err := st.CreateLead(ctx, testLead("", ""))
	require.NoError(t, err)

	first, err := st.CreateScoreOverride(ctx, model.ScoreOverride{
		LeadID: lead.ID, Actor: "ops", OriginalScore: 85, OverrideScore: 90, Reason: "strong signal",
	})
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	second, err := st.CreateScoreOverride(ctx, model.ScoreOverride{
		LeadID: lead.ID, Actor: "ops", OriginalScore: 90, OverrideScore: 70, Reason: "cooled off",
	})
	require.NoError(t, err)

	overrides, err := st.ListScoreOverrides(ctx, lead.ID)
	require.NoError(t, err)
	require.Len(t, overrides, 2)
	assert.Equal(t, second.ID, overrides[0].ID)
	assert.Equal(t, first.ID, overrides[1].ID)
}

// --- Funding events ---

func TestSQLite_HasRecentFunding(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c, err := st.GetOrCreateCompany(ctx, "Funded Co", "")
	require.NoError(t, err)

	_, err = st.CreateFundingEvent(ctx, c.ID, "series_a", time.Now().UTC().Add(-10*24*time.Hour))
	require.NoError(t, err)

	recent, err := st.HasRecentFunding(ctx, c.ID, time.Now().UTC().Add(-90*24*time.Hour))
	require.NoError(t, err)
	assert.True(t, recent)

	// Lookback shorter than the event age.
	recent, err = st.HasRecentFunding(ctx, c.ID, time.Now().UTC().Add(-5*24*time.Hour))
	require.NoError(t, err)
	assert.False(t, recent)

	recent, err = st.HasRecentFunding(ctx, "unknown", time.Now().UTC().Add(-90*24*time.Hour))
	require.NoError(t, err)
	assert.False(t, recent)
}

// --- ICP profiles ---

func TestSQLite_ICPProfiles(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	p, err := st.CreateICPProfile(ctx, model.ICPProfile{
		Name:           "d2c-india",
		SizeBuckets:    []string{"1", "2-5"},
		Industries:     []string{"d2c", "ecommerce"},
		PainKeywords:   []string{"cac", "retention"},
		HiringKeywords: []string{"first marketer"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)

	profiles, err := st.ListICPProfiles(ctx)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "d2c-india", profiles[0].Name)
	assert.Equal(t, []string{"1", "2-5"}, profiles[0].SizeBuckets)
	assert.Equal(t, []string{"first marketer"}, profiles[0].HiringKeywords)
}

func TestNew_UnknownDriver(t *testing.T) {
	_, err := New(context.Background(), "oracle", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}
