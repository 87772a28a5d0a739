package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/raptorflow/lead-engine/internal/cache"
	"github.com/raptorflow/lead-engine/internal/classifier"
	"github.com/raptorflow/lead-engine/internal/config"
	"github.com/raptorflow/lead-engine/internal/model"
	"github.com/raptorflow/lead-engine/internal/store"
	"github.com/raptorflow/lead-engine/pkg/ollama"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// neutralSignal is long enough to dodge the short-text penalty and avoids
// every heuristic keyword, so the final score equals the model base total.
const neutralSignal = "Our organization is expanding operations in the analytics division and " +
	"plans to broaden reporting capabilities across several regional offices during the " +
	"next two quarters of the fiscal year."

const classificationJSON = `{
	"icp_match": true,
	"size_bucket": "2-5",
	"region": "india",
	"role_type": "first_marketer",
	"pain_tags": ["no marketing"],
	"score_fit": 42,
	"score_pain": 30,
	"score_data_quality": 8,
	"key_pain": "founder handling all marketing"
}`

func classificationServer(t *testing.T, calls *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		resp := ollama.GenerateResponse{Response: classificationJSON, Done: true}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func newTestPipeline(t *testing.T, serverURL string, mutate func(*config.Config)) (*Pipeline, store.Store) {
	t.Helper()

	cfg := &config.Config{
		Model: config.ModelConfig{
			ClassifyModel:          "gemma3:1b",
			DossierModel:           "gemma3:4b",
			ContextLengthThreshold: 2000,
			ContextWindowShort:     2048,
			ContextWindowLong:      8192,
		},
		Scoring: config.ScoringConfig{
			WeightFit:           1.0,
			WeightPain:          1.0,
			WeightQuality:       1.0,
			FundingBonus:        10,
			FundingLookbackDays: 90,
			DossierThreshold:    101, // keep the async dossier out of these tests
		},
		Batch: config.BatchConfig{MaxConcurrent: 3, Parallel: true},
	}
	if mutate != nil {
		mutate(cfg)
	}

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "leads.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	cls := classifier.New(
		ollama.NewClient(ollama.WithBaseURL(serverURL)),
		cache.NewMemory(100),
		nil,
		cfg.Model,
		time.Hour,
	)
	return New(cfg, st, cls), st
}

func TestClassifySignal_CreatesLead(t *testing.T) {
	var calls atomic.Int64
	srv := classificationServer(t, &calls)
	defer srv.Close()

	p, st := newTestPipeline(t, srv.URL, nil)
	ctx := context.Background()

	result, err := p.ClassifySignal(ctx, model.Signal{
		Text:        neutralSignal,
		SourceType:  model.SourceTypeJobPost,
		CompanyName: "Acme Analytics",
	})
	require.NoError(t, err)

	assert.True(t, result.ICPMatch)
	assert.InDelta(t, 80.0, result.TotalScore, 0.001)
	assert.Equal(t, model.BucketRedHot, result.ScoreBucket)
	require.NotEmpty(t, result.LeadID)
	require.NotEmpty(t, result.CompanyID)
	require.NotNil(t, result.ScoreExplanation)
	assert.InDelta(t, 80.0, result.ScoreExplanation.BaseTotal, 0.001)

	// Every detector reports, even at zero adjustment.
	assert.Len(t, result.HeuristicAdjustments, 6)

	lead, err := st.GetLead(ctx, result.LeadID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusNew, lead.Status)
	assert.Equal(t, result.CompanyID, lead.CompanyID)
	assert.NotEmpty(t, lead.SignalID)
}

func TestClassifySignal_FundingBonus(t *testing.T) {
	var calls atomic.Int64
	srv := classificationServer(t, &calls)
	defer srv.Close()

	p, st := newTestPipeline(t, srv.URL, nil)
	ctx := context.Background()

	company, err := st.GetOrCreateCompany(ctx, "Funded Co", "")
	require.NoError(t, err)
	_, err = st.CreateFundingEvent(ctx, company.ID, "series_a", time.Now().UTC().Add(-14*24*time.Hour))
	require.NoError(t, err)

	result, err := p.ClassifySignal(ctx, model.Signal{
		Text:        neutralSignal,
		SourceType:  model.SourceTypeJobPost,
		CompanyName: "Funded Co",
	})
	require.NoError(t, err)

	// 80 base + 10 funding bonus.
	assert.InDelta(t, 90.0, result.TotalScore, 0.001)
	require.Len(t, result.HeuristicAdjustments, 7)
	last := result.HeuristicAdjustments[6]
	assert.Equal(t, model.AdjustmentFunding, last.Category)
	assert.InDelta(t, 10.0, last.Adjustment, 0.001)
}

func TestClassifySignal_Prefilter(t *testing.T) {
	var calls atomic.Int64
	srv := classificationServer(t, &calls)
	defer srv.Close()

	p, st := newTestPipeline(t, srv.URL, func(cfg *config.Config) {
		cfg.Scoring.PrefilterThreshold = 90 // base total is 80
	})
	ctx := context.Background()

	result, err := p.ClassifySignal(ctx, model.Signal{
		Text:       neutralSignal,
		SourceType: model.SourceTypeJobPost,
	})
	require.NoError(t, err)
	assert.Empty(t, result.LeadID, "filtered signals are not persisted")

	leads, err := st.ListLeads(ctx, store.LeadFilter{})
	require.NoError(t, err)
	assert.Empty(t, leads)
}

func TestClassifySignal_EmptyText(t *testing.T) {
	var calls atomic.Int64
	srv := classificationServer(t, &calls)
	defer srv.Close()

	p, _ := newTestPipeline(t, srv.URL, nil)

	_, err := p.ClassifySignal(context.Background(), model.Signal{Text: "   "})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty signal")
}

func TestClassifyBatch_Accounting(t *testing.T) {
	var calls atomic.Int64
	srv := classificationServer(t, &calls)
	defer srv.Close()

	p, _ := newTestPipeline(t, srv.URL, nil)

	signals := []model.Signal{
		{Text: neutralSignal, SourceType: model.SourceTypeJobPost, CompanyName: "One"},
		{Text: ""}, // error: empty text
		{Text: neutralSignal + " Additional context for the second valid entry.", SourceType: model.SourceTypeSocial, CompanyName: "Two"},
	}

	batch, err := p.ClassifyBatch(context.Background(), signals)
	require.NoError(t, err)

	assert.Equal(t, 3, batch.Count)
	assert.Equal(t, 2, batch.Created)
	assert.Equal(t, 0, batch.Filtered)
	assert.Equal(t, 1, batch.Errors)
	assert.Equal(t, batch.Count, batch.Created+batch.Filtered+batch.Errors)

	require.Len(t, batch.Results, 3)
	assert.Equal(t, model.ItemStatusError, batch.Results[1].Status)
	assert.NotEmpty(t, batch.Results[1].Error)
	assert.Equal(t, 1, batch.Results[1].Index)
}

func TestClassifyBatch_SequentialMatchesParallel(t *testing.T) {
	var calls atomic.Int64
	srv := classificationServer(t, &calls)
	defer srv.Close()

	signals := []model.Signal{
		{Text: neutralSignal, SourceType: model.SourceTypeJobPost},
		{Text: ""},
		{Text: neutralSignal + " Second entry with some extra words appended for variety in text.", SourceType: model.SourceTypeSocial},
	}

	parallel, _ := newTestPipeline(t, srv.URL, nil)
	sequential, _ := newTestPipeline(t, srv.URL, func(cfg *config.Config) {
		cfg.Batch.Parallel = false
	})

	pBatch, err := parallel.ClassifyBatch(context.Background(), signals)
	require.NoError(t, err)
	sBatch, err := sequential.ClassifyBatch(context.Background(), signals)
	require.NoError(t, err)

	assert.Equal(t, pBatch.Created, sBatch.Created)
	assert.Equal(t, pBatch.Filtered, sBatch.Filtered)
	assert.Equal(t, pBatch.Errors, sBatch.Errors)
}

func TestClassifyBatch_FailOpenModelDown(t *testing.T) {
	// Unreachable model: classification fails open with zero scores, so
	// leads are still created (no prefilter) rather than erroring.
	p, _ := newTestPipeline(t, "http://127.0.0.1:1", nil)

	batch, err := p.ClassifyBatch(context.Background(), []model.Signal{
		{Text: neutralSignal, SourceType: model.SourceTypeJobPost},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, batch.Created)
	assert.Equal(t, model.BucketParked, batch.Results[0].Bucket)
}

func TestICPContext_MergesProfiles(t *testing.T) {
	var calls atomic.Int64
	srv := classificationServer(t, &calls)
	defer srv.Close()

	p, st := newTestPipeline(t, srv.URL, nil)
	ctx := context.Background()

	_, err := st.CreateICPProfile(ctx, model.ICPProfile{
		Name: "a", SizeBuckets: []string{"1", "2-5"}, Industries: []string{"d2c"},
	})
	require.NoError(t, err)
	_, err = st.CreateICPProfile(ctx, model.ICPProfile{
		Name: "b", SizeBuckets: []string{"2-5", "6-10"}, Industries: []string{"saas"},
	})
	require.NoError(t, err)

	icp, err := p.icpContext(ctx)
	require.NoError(t, err)
	assert.Contains(t, icp, "1, 2-5, 6-10")
	assert.Contains(t, icp, "d2c, saas")
	assert.Equal(t, 1, strings.Count(icp, "2-5"), "duplicates merged")
}

func TestICPContext_Empty(t *testing.T) {
	var calls atomic.Int64
	srv := classificationServer(t, &calls)
	defer srv.Close()

	p, _ := newTestPipeline(t, srv.URL, nil)

	icp, err := p.icpContext(context.Background())
	require.NoError(t, err)
	assert.Empty(t, icp)
}

func TestClassifySignal_GeneratesDossier(t *testing.T) {
	const dossierJSON = `{
		"snapshot": "Small agency drowning in manual reporting",
		"why_pain_bullets": ["founder does all marketing"],
		"uncomfortable_truth": "Growth has stalled without a dedicated marketer",
		"reframe_suggestion": "Sell time back, not tooling",
		"best_angle_bullets": ["lead with reporting automation"],
		"challenger_insight": "They are losing deals they never see"
	}`

	// First call classifies, the second is the dossier model.
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := ollama.GenerateResponse{Response: classificationJSON, Done: true}
		if calls.Add(1) > 1 {
			resp.Response = dossierJSON
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	p, st := newTestPipeline(t, srv.URL, func(c *config.Config) {
		c.Scoring.DossierThreshold = 50
	})
	ctx := context.Background()

	result, err := p.ClassifySignal(ctx, model.Signal{
		Text:        neutralSignal,
		SourceType:  model.SourceTypeJobPost,
		CompanyName: "Acme Analytics",
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.LeadID)

	p.Wait()

	found, err := st.GetLead(ctx, result.LeadID)
	require.NoError(t, err)
	assert.Equal(t, "They are losing deals they never see", found.ChallengerInsight)
	assert.Equal(t, "Sell time back, not tooling", found.ReframeSuggestion)
	assert.Contains(t, found.ContextDossier, "manual reporting")
	assert.Equal(t, int64(2), calls.Load())
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "short", snippet("  short  "))
	long := strings.Repeat("x", 100)
	assert.Len(t, snippet(long), 83)

	wide := strings.Repeat("é", 100)
	got := snippet(wide)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("é", 80)+"...", got)
}
