// Package pipeline orchestrates the full signal-to-lead flow: cached model
// classification, heuristic adjustments, funding lookup, score aggregation,
// and persistence, with bounded-concurrency batch execution.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/raptorflow/lead-engine/internal/classifier"
	"github.com/raptorflow/lead-engine/internal/config"
	"github.com/raptorflow/lead-engine/internal/heuristics"
	"github.com/raptorflow/lead-engine/internal/model"
	"github.com/raptorflow/lead-engine/internal/resilience"
	"github.com/raptorflow/lead-engine/internal/scoring"
	"github.com/raptorflow/lead-engine/internal/store"
)

// Pipeline runs signals through classification, heuristics, and scoring
// into persisted leads.
type Pipeline struct {
	cfg        *config.Config
	store      store.Store
	classifier *classifier.Classifier
	heuristics *heuristics.Engine
	aggregator *scoring.Aggregator

	dossiers sync.WaitGroup
}

// New creates a pipeline with all stages wired.
func New(cfg *config.Config, st store.Store, cls *classifier.Classifier) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		store:      st,
		classifier: cls,
		heuristics: heuristics.NewEngine(),
		aggregator: scoring.NewAggregator(cfg.Scoring),
	}
}

// ClassifySignal runs the single-item pipeline over one signal. The
// classification itself is fail-open; persistence errors are returned.
// A signal whose pre-heuristic base total falls below the prefilter
// threshold is reported without being persisted.
func (p *Pipeline) ClassifySignal(ctx context.Context, sig model.Signal) (*model.LeadResult, error) {
	icpContext, err := p.icpContext(ctx)
	if err != nil {
		return nil, err
	}
	return p.classifyOne(ctx, sig, icpContext)
}

// ClassifyBatch runs many signals under the configured concurrency limit.
// The ICP context is computed once for the whole batch. Item failures are
// isolated into per-item error results; the totals always account for
// every input signal.
func (p *Pipeline) ClassifyBatch(ctx context.Context, signals []model.Signal) (*model.BatchResult, error) {
	icpContext, err := p.icpContext(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]model.ItemResult, len(signals))

	if p.cfg.Batch.Parallel {
		g, gCtx := errgroup.WithContext(ctx)
		limit := p.cfg.Batch.MaxConcurrent
		if limit <= 0 {
			limit = 5
		}
		g.SetLimit(limit)

		for i, sig := range signals {
			i, sig := i, sig
			g.Go(func() error {
				results[i] = p.classifyItem(gCtx, i, sig, icpContext)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, sig := range signals {
			results[i] = p.classifyItem(ctx, i, sig, icpContext)
		}
	}

	batch := &model.BatchResult{Count: len(signals), Results: results}
	for _, r := range results {
		switch r.Status {
		case model.ItemStatusCreated:
			batch.Created++
		case model.ItemStatusFiltered:
			batch.Filtered++
		default:
			batch.Errors++
		}
	}

	zap.L().Info("batch classification complete",
		zap.Int("count", batch.Count),
		zap.Int("created", batch.Created),
		zap.Int("filtered", batch.Filtered),
		zap.Int("errors", batch.Errors),
	)
	return batch, nil
}

// classifyItem wraps classifyOne with per-item failure isolation.
func (p *Pipeline) classifyItem(ctx context.Context, index int, sig model.Signal, icpContext string) model.ItemResult {
	item := model.ItemResult{Index: index, Snippet: snippet(sig.Text)}

	result, err := p.classifyOne(ctx, sig, icpContext)
	if err != nil {
		zap.L().Error("batch item failed",
			zap.Int("index", index),
			zap.Error(err),
		)
		item.Status = model.ItemStatusError
		item.Error = err.Error()
		return item
	}

	item.TotalScore = result.TotalScore
	item.Bucket = result.ScoreBucket
	item.LeadID = result.LeadID
	if result.LeadID == "" {
		item.Status = model.ItemStatusFiltered
	} else {
		item.Status = model.ItemStatusCreated
	}
	return item
}

func (p *Pipeline) classifyOne(ctx context.Context, sig model.Signal, icpContext string) (*model.LeadResult, error) {
	if strings.TrimSpace(sig.Text) == "" {
		return nil, eris.New("pipeline: empty signal text")
	}

	classification, fromCache := p.classifier.Classify(ctx, sig.Text, icpContext)
	if fromCache {
		zap.L().Debug("classification served from cache")
	}

	// Prefilter on the raw model scores, before heuristics or persistence.
	if threshold := p.cfg.Scoring.PrefilterThreshold; threshold > 0 && classification.BaseTotal() < threshold {
		zap.L().Debug("signal filtered below prefilter threshold",
			zap.Float64("base_total", classification.BaseTotal()),
			zap.Float64("threshold", threshold),
		)
		return &model.LeadResult{
			ICPMatch:       classification.ICPMatch,
			TotalScore:     classification.BaseTotal(),
			ScoreBucket:    model.BucketForScore(classification.BaseTotal()),
			Classification: classification,
		}, nil
	}

	_, adjustments := p.heuristics.ApplyAll(heuristics.Input{
		SignalText:  sig.Text,
		PostDate:    sig.PostDate,
		CompanyName: sig.CompanyName,
		SourceURL:   sig.SourceURL,
		Industry:    sig.Industry,
	})

	company, fundingRecent, err := p.resolveCompany(ctx, sig)
	if err != nil {
		return nil, err
	}

	scored := p.aggregator.Score(classification, adjustments, fundingRecent, nil)

	lead, err := p.persistLead(ctx, sig, company, classification, scored)
	if err != nil {
		return nil, err
	}

	if scored.FinalScore >= p.cfg.Scoring.DossierThreshold {
		p.dossiers.Add(1)
		go p.generateDossier(sig.Text, classification, lead.ID)
	}

	return &model.LeadResult{
		ICPMatch:             classification.ICPMatch,
		TotalScore:           scored.FinalScore,
		ScoreBucket:          scored.Bucket,
		Classification:       classification,
		CompanyID:            lead.CompanyID,
		LeadID:               lead.ID,
		HeuristicAdjustments: scored.Adjustments,
		ScoreExplanation:     &scored.Explanation,
	}, nil
}

// resolveCompany looks up or creates the signal's company and checks for
// funding activity inside the lookback window.
func (p *Pipeline) resolveCompany(ctx context.Context, sig model.Signal) (*model.Company, bool, error) {
	if sig.CompanyName == "" {
		return nil, false, nil
	}

	company, err := p.store.GetOrCreateCompany(ctx, sig.CompanyName, sig.CompanyWebsite)
	if err != nil {
		return nil, false, eris.Wrapf(err, "pipeline: resolve company %s", sig.CompanyName)
	}

	lookback := p.cfg.Scoring.FundingLookbackDays
	if lookback <= 0 {
		lookback = 90
	}
	since := time.Now().UTC().AddDate(0, 0, -lookback)
	recent, err := p.store.HasRecentFunding(ctx, company.ID, since)
	if err != nil {
		return nil, false, eris.Wrapf(err, "pipeline: funding lookup for %s", company.ID)
	}
	return company, recent, nil
}

func (p *Pipeline) persistLead(ctx context.Context, sig model.Signal, company *model.Company, classification model.ClassificationResult, scored scoring.Result) (*model.Lead, error) {
	companyID := ""
	if company != nil {
		companyID = company.ID
	}

	rec, err := p.store.CreateSignal(ctx, companyID, sig)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: persist signal")
	}

	lead := &model.Lead{
		CompanyID:            companyID,
		SignalID:             rec.ID,
		ScoreFit:             classification.ScoreFit,
		ScorePain:            classification.ScorePain,
		ScoreDataQuality:     classification.ScoreDataQuality,
		TotalScore:           scored.FinalScore,
		ScoreBucket:          scored.Bucket,
		ICPMatch:             classification.ICPMatch,
		RoleType:             classification.RoleType,
		PainTags:             classification.PainTags,
		Situation:            classification.Situation,
		Problem:              classification.Problem,
		Implication:          classification.Implication,
		NeedPayoff:           classification.NeedPayoff,
		EconomicBuyerGuess:   classification.EconomicBuyerGuess,
		KeyPain:              classification.KeyPain,
		HeuristicAdjustments: scored.Adjustments,
		Status:               model.StatusNew,
	}
	lead, err = p.store.CreateLead(ctx, lead)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: persist lead")
	}
	return lead, nil
}

// generateDossier runs the slow dossier model off the request path and
// writes the result back with retries. Detached from the caller's context
// so a finished request does not cancel it.
func (p *Pipeline) generateDossier(signalText string, classification model.ClassificationResult, leadID string) {
	defer p.dossiers.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	dossier := p.classifier.GenerateDossier(ctx, signalText, classification)

	body, err := json.Marshal(dossier)
	if err != nil {
		zap.L().Error("dossier marshal failed", zap.String("lead_id", leadID), zap.Error(err))
		return
	}

	cfg := resilience.DefaultRetryConfig()
	cfg.Operation = "dossier write-back"
	err = resilience.Do(ctx, cfg, func(ctx context.Context) error {
		return p.store.UpdateLeadDossier(ctx, leadID, string(body), dossier.ChallengerInsight, dossier.ReframeSuggestion)
	})
	if err != nil {
		zap.L().Error("dossier write-back failed", zap.String("lead_id", leadID), zap.Error(err))
		return
	}
	zap.L().Info("dossier generated", zap.String("lead_id", leadID))
}

// Wait blocks until every in-flight dossier generation has finished its
// write-back. Callers must invoke it before closing the store.
func (p *Pipeline) Wait() {
	p.dossiers.Wait()
}

// icpContext merges every stored ICP profile into one prompt context
// string. No profiles yields an empty context.
func (p *Pipeline) icpContext(ctx context.Context) (string, error) {
	profiles, err := p.store.ListICPProfiles(ctx)
	if err != nil {
		return "", eris.Wrap(err, "pipeline: load icp profiles")
	}
	if len(profiles) == 0 {
		return "", nil
	}

	merged := model.ICPContext{}
	for _, prof := range profiles {
		merged.SizeBuckets = appendUnique(merged.SizeBuckets, prof.SizeBuckets)
		merged.Industries = appendUnique(merged.Industries, prof.Industries)
		merged.PainKeywords = appendUnique(merged.PainKeywords, prof.PainKeywords)
		merged.HiringKeywords = appendUnique(merged.HiringKeywords, prof.HiringKeywords)
	}

	return fmt.Sprintf(
		"Target company sizes: %s\nTarget industries: %s\nPain indicators: %s\nHiring indicators: %s",
		strings.Join(merged.SizeBuckets, ", "),
		strings.Join(merged.Industries, ", "),
		strings.Join(merged.PainKeywords, ", "),
		strings.Join(merged.HiringKeywords, ", "),
	), nil
}

func appendUnique(dst, src []string) []string {
	seen := make(map[string]bool, len(dst))
	for _, s := range dst {
		seen[s] = true
	}
	for _, s := range src {
		if !seen[s] {
			dst = append(dst, s)
			seen[s] = true
		}
	}
	return dst
}

func snippet(text string) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) > 80 {
		return string(runes[:80]) + "..."
	}
	return text
}
