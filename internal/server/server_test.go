package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/raptorflow/lead-engine/internal/cache"
	"github.com/raptorflow/lead-engine/internal/classifier"
	"github.com/raptorflow/lead-engine/internal/config"
	"github.com/raptorflow/lead-engine/internal/lead"
	"github.com/raptorflow/lead-engine/internal/model"
	"github.com/raptorflow/lead-engine/internal/pipeline"
	"github.com/raptorflow/lead-engine/internal/store"
	"github.com/raptorflow/lead-engine/pkg/ollama"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

const testSignal = "Our organization is expanding operations in the analytics division and " +
	"plans to broaden reporting capabilities across several regional offices during the " +
	"next two quarters of the fiscal year."

const testClassificationJSON = `{
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

type testEnv struct {
	handler http.Handler
	store   store.Store
	cache   cache.Cache
}

func newTestServer(t *testing.T) *testEnv {
	t.Helper()

	modelSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := ollama.GenerateResponse{Response: testClassificationJSON, Done: true}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(modelSrv.Close)

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
			DossierThreshold:    101,
		},
		Batch:     config.BatchConfig{MaxConcurrent: 3, Parallel: true},
		Lifecycle: config.LifecycleConfig{AutoParkDays: 30},
	}

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "leads.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	c := cache.NewMemory(100)
	cls := classifier.New(ollama.NewClient(ollama.WithBaseURL(modelSrv.URL)), c, nil, cfg.Model, time.Hour)
	p := pipeline.New(cfg, st, cls)
	m := lead.NewManager(st, cfg.Lifecycle)

	return &testEnv{
		handler: New(st, p, m, c).Routes(),
		store:   st,
		cache:   c,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) classifyLead(t *testing.T) model.LeadResult {
	t.Helper()
	body := fmt.Sprintf(`{"text": %q, "source_type": "job_post", "company_name": "Acme Analytics"}`, testSignal)
	rec := e.do(t, http.MethodPost, "/api/classify", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result model.LeadResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.NotEmpty(t, result.LeadID)
	return result
}

func TestHealth(t *testing.T) {
	env := newTestServer(t)

	rec := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestClassify(t *testing.T) {
	env := newTestServer(t)

	result := env.classifyLead(t)
	assert.True(t, result.ICPMatch)
	assert.InDelta(t, 80.0, result.TotalScore, 0.001)
	assert.Equal(t, model.BucketRedHot, result.ScoreBucket)
}

func TestClassify_MissingText(t *testing.T) {
	env := newTestServer(t)

	rec := env.do(t, http.MethodPost, "/api/classify", `{"source_type": "manual"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClassify_InvalidBody(t *testing.T) {
	env := newTestServer(t)

	rec := env.do(t, http.MethodPost, "/api/classify", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClassifyBatch(t *testing.T) {
	env := newTestServer(t)

	body := fmt.Sprintf(`{"signals": [
		{"text": %q, "source_type": "job_post", "company_name": "Acme Analytics"},
		{"text": %q, "source_type": "website", "company_name": "Beta Studio"}
	]}`, testSignal, testSignal)
	rec := env.do(t, http.MethodPost, "/api/classify/batch", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result model.BatchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 2, result.Count)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 0, result.Errors)
}

func TestClassifyBatch_Empty(t *testing.T) {
	env := newTestServer(t)

	rec := env.do(t, http.MethodPost, "/api/classify/batch", `{"signals": []}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListLeads(t *testing.T) {
	env := newTestServer(t)
	created := env.classifyLead(t)

	rec := env.do(t, http.MethodGet, "/api/leads?bucket=red_hot&min_score=50", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Leads []model.Lead `json:"leads"`
		Count int          `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, created.LeadID, resp.Leads[0].ID)

	rec = env.do(t, http.MethodGet, "/api/leads?bucket=nurture", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Count)
}

func TestListLeads_BadQuery(t *testing.T) {
	env := newTestServer(t)

	rec := env.do(t, http.MethodGet, "/api/leads?min_score=high", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetLead(t *testing.T) {
	env := newTestServer(t)
	created := env.classifyLead(t)

	rec := env.do(t, http.MethodGet, "/api/leads/"+created.LeadID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var found model.Lead
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &found))
	assert.Equal(t, created.LeadID, found.ID)
	assert.Equal(t, model.StatusNew, found.Status)
}

func TestGetLead_NotFound(t *testing.T) {
	env := newTestServer(t)

	rec := env.do(t, http.MethodGet, "/api/leads/no-such-lead", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLeadStatus(t *testing.T) {
	env := newTestServer(t)
	created := env.classifyLead(t)

	rec := env.do(t, http.MethodPost, "/api/leads/"+created.LeadID+"/status",
		`{"status": "contacted", "notes": "intro email sent"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated model.Lead
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, model.StatusContacted, updated.Status)
	assert.Contains(t, updated.Notes, "intro email sent")
}

func TestLeadStatus_Invalid(t *testing.T) {
	env := newTestServer(t)
	created := env.classifyLead(t)

	rec := env.do(t, http.MethodPost, "/api/leads/"+created.LeadID+"/status", `{"status": "bogus"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOverride(t *testing.T) {
	env := newTestServer(t)
	created := env.classifyLead(t)

	rec := env.do(t, http.MethodPost, "/api/leads/"+created.LeadID+"/override",
		`{"score": 95, "reason": "demo booked", "actor": "ops"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated model.Lead
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.InDelta(t, 95.0, updated.TotalScore, 0.001)
	require.NotNil(t, updated.ManualScoreOverride)
	assert.InDelta(t, 95.0, *updated.ManualScoreOverride, 0.001)

	rec = env.do(t, http.MethodGet, "/api/leads/"+created.LeadID+"/overrides", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var history struct {
		Overrides []model.ScoreOverride `json:"overrides"`
		Count     int                   `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Equal(t, 1, history.Count)
	assert.Equal(t, "ops", history.Overrides[0].Actor)
}

func TestOverride_MissingScore(t *testing.T) {
	env := newTestServer(t)
	created := env.classifyLead(t)

	rec := env.do(t, http.MethodPost, "/api/leads/"+created.LeadID+"/override", `{"reason": "no score"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOverride_NotFound(t *testing.T) {
	env := newTestServer(t)

	rec := env.do(t, http.MethodPost, "/api/leads/no-such-lead/override", `{"score": 50}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSweep_DryRun(t *testing.T) {
	env := newTestServer(t)
	env.classifyLead(t)

	rec := env.do(t, http.MethodPost, "/api/sweep?dry_run=true", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var result lead.SweepResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.DryRun)
	assert.Empty(t, result.Candidates)
}

func TestCacheStatsAndClear(t *testing.T) {
	env := newTestServer(t)
	env.classifyLead(t)

	rec := env.do(t, http.MethodGet, "/api/cache/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats cache.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Size)

	rec = env.do(t, http.MethodDelete, "/api/cache", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/cache/stats", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 0, stats.Size)
}

func TestServe_DrainsInFlightRequestsOnShutdown(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		w.WriteHeader(http.StatusOK)
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	srv := &http.Server{Handler: handler}

	served := make(chan error, 1)
	go func() { served <- Serve(ctx, srv, ln, 5*time.Second) }()

	responded := make(chan int, 1)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String())
		if err != nil {
			responded <- 0
			return
		}
		resp.Body.Close() //nolint:errcheck
		responded <- resp.StatusCode
	}()

	<-entered
	cancel()

	// The drain deadline is fresh, so the in-flight request survives the
	// cancelled run context and completes once released.
	time.Sleep(50 * time.Millisecond)
	close(release)

	select {
	case code := <-responded:
		assert.Equal(t, http.StatusOK, code)
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight request was dropped during shutdown")
	}

	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop after drain")
	}
}

func TestCacheDisabled(t *testing.T) {
	env := newTestServer(t)
	handler := New(env.store, nil, nil, nil).Routes()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cache/stats", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
