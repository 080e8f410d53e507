package monitoring

import (
	"context"
	"time"

	"a2dpmgr/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// AddRedisCheck adds a Redis health check, used when the diagnostic cache
// is backed by Redis (§9B).
func (h *HealthChecker) AddRedisCheck(client *redis.Client, interval, timeout time.Duration) {
	h.AddCheck("redis", func(ctx context.Context) (bool, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if err := client.Ping(ctx).Err(); err != nil {
			return false, err
		}
		return true, nil
	}, interval, timeout)
}

// AddDiagnosticCacheCheck verifies the diagnostic-dump cache can be written
// and read back; a failure here never reflects on live FSM state (§9B).
func (h *HealthChecker) AddDiagnosticCacheCheck(cache ports.DiagnosticCache, interval, timeout time.Duration) {
	h.AddCheck("diagnostic_cache", func(ctx context.Context) (bool, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if err := cache.Put(ctx, "healthcheck", nil); err != nil {
			return false, err
		}
		if _, err := cache.Get(ctx, "healthcheck"); err != nil {
			return false, err
		}
		return true, nil
	}, interval, timeout)
}

// AddReadinessCheck creates a readiness check that verifies all dependencies.
func (h *HealthChecker) AddReadinessCheck(
	redisClient *redis.Client,
	cache ports.DiagnosticCache,
	interval, timeout time.Duration,
) {
	h.AddCheck("readiness", func(ctx context.Context) (bool, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if redisClient != nil {
			if err := redisClient.Ping(ctx).Err(); err != nil {
				return false, err
			}
		}

		if cache != nil {
			if err := cache.Put(ctx, "healthcheck", nil); err != nil {
				return false, err
			}
		}

		return true, nil
	}, interval, timeout)
}

// GetReadinessStatus returns readiness status for a load balancer.
func (h *HealthChecker) GetReadinessStatus(ctx context.Context) HealthStatus {
	return h.CheckAll(ctx)
}

// IsReady checks if the service is ready to accept traffic.
func (h *HealthChecker) IsReady(ctx context.Context) bool {
	status := h.CheckAll(ctx)
	return status.Status == "healthy"
}
