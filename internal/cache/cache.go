// Package cache stores model responses keyed by a deterministic hash of the
// request, so identical logical classifications collapse to one upstream call.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/raptorflow/lead-engine/internal/config"
)

const keyPrefix = "model_cache:"

// Stats is a point-in-time view of cache effectiveness. Hit/miss counters
// are monotonic and safe to read concurrently with Get/Set.
type Stats struct {
	Backend string `json:"backend"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Size    int    `json:"size"`
	MaxSize int    `json:"max_size,omitempty"`
}

// Cache is the model response cache contract. Backend failures are
// recovered internally: Get reports a miss, Set is best-effort.
type Cache interface {
	Get(ctx context.Context, signalText, icpContext, modelID string) (json.RawMessage, bool)
	Set(ctx context.Context, signalText string, value json.RawMessage, icpContext, modelID string, ttl time.Duration)
	Invalidate(ctx context.Context, signalText, icpContext, modelID string)
	ClearAll(ctx context.Context) error
	Stats() Stats
	Close() error
}

// Key derives the deterministic cache key for a request. Signal text and
// ICP context are lower-cased and trimmed first so request origin does not
// affect the key.
func Key(signalText, icpContext, modelID string) string {
	parts := []string{
		strings.ToLower(strings.TrimSpace(signalText)),
		strings.ToLower(strings.TrimSpace(icpContext)),
		modelID,
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// New builds a cache from configuration. A redis backend that cannot be
// reached degrades to the embedded memory backend with a logged warning;
// construction never hard-fails.
func New(cfg config.CacheConfig) Cache {
	if cfg.Backend == "redis" {
		rc, err := NewRedis(cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			zap.L().Warn("cache: redis backend unavailable, falling back to memory",
				zap.String("addr", cfg.RedisAddr),
				zap.Error(err),
			)
			return NewMemory(cfg.MaxSize)
		}
		return rc
	}
	return NewMemory(cfg.MaxSize)
}
