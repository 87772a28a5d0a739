package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/raptorflow/lead-engine/internal/cache"
	"github.com/raptorflow/lead-engine/internal/classifier"
	"github.com/raptorflow/lead-engine/internal/lead"
	"github.com/raptorflow/lead-engine/internal/pipeline"
	"github.com/raptorflow/lead-engine/internal/store"
	"github.com/raptorflow/lead-engine/pkg/ollama"
)

// engineEnv bundles the wired components shared by all commands.
type engineEnv struct {
	Store    store.Store
	Cache    cache.Cache
	Pipeline *pipeline.Pipeline
	Manager  *lead.Manager
}

// initEngine sets up the store, cache, model client, pipeline, and
// lifecycle manager from loaded config.
func initEngine(ctx context.Context) (*engineEnv, error) {
	st, err := store.New(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}

	var c cache.Cache
	if cfg.Cache.Enabled {
		c = cache.New(cfg.Cache)
	}

	prompts, err := classifier.LoadTemplates(cfg.Prompts.Path)
	if err != nil {
		zap.L().Warn("prompt template load failed, using defaults", zap.Error(err))
		prompts = classifier.DefaultTemplates()
	}

	client := ollama.NewClient(
		ollama.WithBaseURL(cfg.Model.BaseURL),
		ollama.WithTimeout(time.Duration(cfg.Model.TimeoutSecs)*time.Second),
		ollama.WithRateLimit(cfg.Model.RequestsPerSecond),
	)

	cls := classifier.New(client, c, prompts, cfg.Model, time.Duration(cfg.Cache.TTLSeconds)*time.Second)

	return &engineEnv{
		Store:    st,
		Cache:    c,
		Pipeline: pipeline.New(cfg, st, cls),
		Manager:  lead.NewManager(st, cfg.Lifecycle),
	}, nil
}

// Close tears down the environment, logging rather than failing. Pending
// dossier write-backs are drained before the store goes away.
func (e *engineEnv) Close() {
	e.Pipeline.Wait()
	if e.Cache != nil {
		if err := e.Cache.Close(); err != nil {
			zap.L().Warn("cache close failed", zap.Error(err))
		}
	}
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("store close failed", zap.Error(err))
	}
}
