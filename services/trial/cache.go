package trial

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"smallbiznis-crm/pkg/rediskey"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{Name: "trial_facts_cache_hits_total"})
	cacheMiss = promauto.NewCounter(prometheus.CounterOpts{Name: "trial_facts_cache_miss_total"})
	decisions = promauto.NewCounterVec(prometheus.CounterOpts{Name: "trial_gate_decisions_total"}, []string{"state"})
)

// FactsCache stores gate inputs per tenant. Failures are treated as misses.
type FactsCache interface {
	Get(ctx context.Context, tenantID string) (*Facts, bool)
	Set(ctx context.Context, tenantID string, f Facts)
	Invalidate(ctx context.Context, tenantID string) error
}

type redisFactsCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisFactsCache(rdb *redis.Client, ttl time.Duration) FactsCache {
	return &redisFactsCache{rdb: rdb, ttl: ttl}
}

func (c *redisFactsCache) Get(ctx context.Context, tenantID string) (*Facts, bool) {
	b, err := c.rdb.Get(ctx, rediskey.BuildTrialFactsKey(tenantID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zap.L().Warn("trial facts cache read failed", zap.String("tenant_id", tenantID), zap.Error(err))
		}
		cacheMiss.Inc()
		return nil, false
	}

	var f Facts
	if err := json.Unmarshal(b, &f); err != nil {
		cacheMiss.Inc()
		return nil, false
	}

	cacheHits.Inc()
	return &f, true
}

func (c *redisFactsCache) Set(ctx context.Context, tenantID string, f Facts) {
	b, err := json.Marshal(f)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, rediskey.BuildTrialFactsKey(tenantID), b, c.ttl).Err(); err != nil {
		zap.L().Warn("trial facts cache write failed", zap.String("tenant_id", tenantID), zap.Error(err))
	}
}

func (c *redisFactsCache) Invalidate(ctx context.Context, tenantID string) error {
	return c.rdb.Del(ctx, rediskey.BuildTrialFactsKey(tenantID)).Err()
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) (*Facts, bool) { return nil, false }
func (noopCache) Set(context.Context, string, Facts)         {}
func (noopCache) Invalidate(context.Context, string) error   { return nil }
