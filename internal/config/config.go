package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Model      ModelConfig      `yaml:"model" mapstructure:"model"`
	Prompts    PromptsConfig    `yaml:"prompts" mapstructure:"prompts"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Lifecycle  LifecycleConfig  `yaml:"lifecycle" mapstructure:"lifecycle"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// CacheConfig configures the model response cache.
type CacheConfig struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	Backend    string `yaml:"backend" mapstructure:"backend"`
	RedisAddr  string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisDB    int    `yaml:"redis_db" mapstructure:"redis_db"`
	MaxSize    int    `yaml:"max_size" mapstructure:"max_size"`
	TTLSeconds int    `yaml:"ttl_seconds" mapstructure:"ttl_seconds"`
}

// ModelConfig configures the external generative model service.
type ModelConfig struct {
	BaseURL                string  `yaml:"base_url" mapstructure:"base_url"`
	ClassifyModel          string  `yaml:"classify_model" mapstructure:"classify_model"`
	DossierModel           string  `yaml:"dossier_model" mapstructure:"dossier_model"`
	ClassifyTemperature    float64 `yaml:"classify_temperature" mapstructure:"classify_temperature"`
	DossierTemperature     float64 `yaml:"dossier_temperature" mapstructure:"dossier_temperature"`
	ContextLengthThreshold int     `yaml:"context_length_threshold" mapstructure:"context_length_threshold"`
	ContextWindowShort     int     `yaml:"context_window_short" mapstructure:"context_window_short"`
	ContextWindowLong      int     `yaml:"context_window_long" mapstructure:"context_window_long"`
	ContextWindowDossier   int     `yaml:"context_window_dossier" mapstructure:"context_window_dossier"`
	TimeoutSecs            int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSecond      float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// PromptsConfig configures prompt template loading.
type PromptsConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ScoringConfig configures the score aggregator.
type ScoringConfig struct {
	WeightFit           float64 `yaml:"weight_fit" mapstructure:"weight_fit"`
	WeightPain          float64 `yaml:"weight_pain" mapstructure:"weight_pain"`
	WeightQuality       float64 `yaml:"weight_quality" mapstructure:"weight_quality"`
	FundingBonus        float64 `yaml:"funding_bonus" mapstructure:"funding_bonus"`
	FundingLookbackDays int     `yaml:"funding_lookback_days" mapstructure:"funding_lookback_days"`
	DossierThreshold    float64 `yaml:"dossier_threshold" mapstructure:"dossier_threshold"`
	PrefilterThreshold  float64 `yaml:"prefilter_threshold" mapstructure:"prefilter_threshold"`
}

// BatchConfig configures batch classification.
type BatchConfig struct {
	MaxConcurrent int  `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	Parallel      bool `yaml:"parallel" mapstructure:"parallel"`
}

// LifecycleConfig configures the lead lifecycle manager.
type LifecycleConfig struct {
	AutoParkEnabled    bool `yaml:"auto_park_enabled" mapstructure:"auto_park_enabled"`
	AutoParkDays       int  `yaml:"auto_park_days" mapstructure:"auto_park_days"`
	SweepIntervalHours int  `yaml:"sweep_interval_hours" mapstructure:"sweep_interval_hours"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "leads.db")
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.max_size", 1000)
	v.SetDefault("cache.ttl_seconds", 2592000) // 30 days
	v.SetDefault("model.base_url", "http://localhost:11434")
	v.SetDefault("model.classify_model", "gemma3:1b")
	v.SetDefault("model.dossier_model", "gemma3:4b")
	v.SetDefault("model.classify_temperature", 0.1)
	v.SetDefault("model.dossier_temperature", 0.4)
	v.SetDefault("model.context_length_threshold", 2000)
	v.SetDefault("model.context_window_short", 2048)
	v.SetDefault("model.context_window_long", 8192)
	v.SetDefault("model.context_window_dossier", 8192)
	v.SetDefault("model.timeout_secs", 300)
	v.SetDefault("model.requests_per_second", 2.0)
	v.SetDefault("scoring.weight_fit", 1.0)
	v.SetDefault("scoring.weight_pain", 1.0)
	v.SetDefault("scoring.weight_quality", 1.0)
	v.SetDefault("scoring.funding_bonus", 10.0)
	v.SetDefault("scoring.funding_lookback_days", 90)
	v.SetDefault("scoring.dossier_threshold", 70.0)
	v.SetDefault("scoring.prefilter_threshold", 0.0)
	v.SetDefault("batch.max_concurrent", 5)
	v.SetDefault("batch.parallel", true)
	v.SetDefault("lifecycle.auto_park_enabled", true)
	v.SetDefault("lifecycle.auto_park_days", 30)
	v.SetDefault("lifecycle.sweep_interval_hours", 24)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
