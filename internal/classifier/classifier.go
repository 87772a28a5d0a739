// Package classifier turns raw signal text into structured classification
// results via an external generative model, with deterministic caching and
// fail-open defaults.
package classifier

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/raptorflow/lead-engine/internal/cache"
	"github.com/raptorflow/lead-engine/internal/config"
	"github.com/raptorflow/lead-engine/internal/model"
	"github.com/raptorflow/lead-engine/pkg/ollama"
)

// Classifier drives the fast classification model and the larger dossier
// model. Classification is fail-open: any upstream or parse failure yields
// the default zero-score result, never an error, so one bad call cannot
// abort a batch.
type Classifier struct {
	client  ollama.Client
	cache   cache.Cache
	prompts *Templates
	cfg     config.ModelConfig
	ttl     time.Duration
}

// New creates a classifier. cache may be nil to disable response caching.
func New(client ollama.Client, c cache.Cache, prompts *Templates, cfg config.ModelConfig, ttl time.Duration) *Classifier {
	if prompts == nil {
		prompts = DefaultTemplates()
	}
	return &Classifier{
		client:  client,
		cache:   c,
		prompts: prompts,
		cfg:     cfg,
		ttl:     ttl,
	}
}

// Classify runs the fast model over one signal. The cache is consulted
// first; on a hit no upstream call is made. Exactly one upstream request
// is sent on a miss, and only successfully parsed results are written
// back to the cache.
func (c *Classifier) Classify(ctx context.Context, signalText, icpContext string) (model.ClassificationResult, bool) {
	// Substitute the fallback before the cache lookup so Get and Set key
	// on the same context string.
	if icpContext == "" {
		icpContext = "No ICP context provided."
	}

	if c.cache != nil {
		if raw, ok := c.cache.Get(ctx, signalText, icpContext, c.cfg.ClassifyModel); ok {
			var cached model.ClassificationResult
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, true
			}
			c.cache.Invalidate(ctx, signalText, icpContext, c.cfg.ClassifyModel)
		}
	}

	prompt := c.prompts.RenderClassification(signalText, icpContext)

	resp, err := c.client.Generate(ctx, ollama.GenerateRequest{
		Model:  c.cfg.ClassifyModel,
		Prompt: prompt,
		Stream: false,
		Options: ollama.Options{
			Temperature: c.cfg.ClassifyTemperature,
			TopP:        0.9,
			TopK:        40,
			NumCtx:      c.contextWindow(signalText),
		},
	})
	if err != nil {
		zap.L().Error("classifier: model call failed, using default classification",
			zap.String("model", c.cfg.ClassifyModel),
			zap.Error(err),
		)
		return model.DefaultClassification(), false
	}

	var result model.ClassificationResult
	if !parseModelJSON(resp.Response, &result) {
		zap.L().Warn("classifier: unparseable model response, using default classification",
			zap.String("model", c.cfg.ClassifyModel),
			zap.Int("response_len", len(resp.Response)),
		)
		return model.DefaultClassification(), false
	}

	if c.cache != nil {
		if raw, err := json.Marshal(result); err == nil {
			c.cache.Set(ctx, signalText, raw, icpContext, c.cfg.ClassifyModel, c.ttl)
		}
	}

	return result, false
}

// GenerateDossier runs the larger model to produce deep sales context for
// a high-scoring lead. Like classification it is fail-open and returns
// the default dossier on any failure.
func (c *Classifier) GenerateDossier(ctx context.Context, signalText string, classification model.ClassificationResult) model.DossierResult {
	clsJSON, err := json.MarshalIndent(classification, "", "  ")
	if err != nil {
		clsJSON = []byte("{}")
	}
	prompt := c.prompts.RenderDossier(signalText, string(clsJSON))

	resp, err := c.client.Generate(ctx, ollama.GenerateRequest{
		Model:  c.cfg.DossierModel,
		Prompt: prompt,
		Stream: false,
		Options: ollama.Options{
			Temperature: c.cfg.DossierTemperature,
			TopP:        0.9,
			NumCtx:      c.cfg.ContextWindowDossier,
		},
	})
	if err != nil {
		zap.L().Error("classifier: dossier generation failed, using default",
			zap.String("model", c.cfg.DossierModel),
			zap.Error(err),
		)
		return model.DefaultDossier()
	}

	var result model.DossierResult
	if !parseModelJSON(resp.Response, &result) {
		zap.L().Warn("classifier: unparseable dossier response, using default",
			zap.String("model", c.cfg.DossierModel),
		)
		return model.DefaultDossier()
	}

	return result
}

// contextWindow sizes the model context to the signal. Short signals use
// the small window to keep latency down.
func (c *Classifier) contextWindow(signalText string) int {
	if len(signalText) < c.cfg.ContextLengthThreshold {
		return c.cfg.ContextWindowShort
	}
	return c.cfg.ContextWindowLong
}

// parseModelJSON decodes the model's raw text into v. Models often wrap
// JSON in prose or code fences, so on a direct parse failure the substring
// between the first '{' and last '}' is retried. Reports whether decoding
// succeeded.
func parseModelJSON(text string, v any) bool {
	text = strings.TrimSpace(text)
	if err := json.Unmarshal([]byte(text), v); err == nil {
		return true
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return false
	}
	return json.Unmarshal([]byte(text[start:end+1]), v) == nil
}
