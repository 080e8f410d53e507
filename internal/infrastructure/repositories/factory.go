package repositories

import (
	"context"

	"a2dpmgr/internal/core/ports"
	"a2dpmgr/internal/infrastructure/repositories/memory"
	redisrepo "a2dpmgr/internal/infrastructure/repositories/redis"
	"a2dpmgr/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory creates the DiagnosticCache with Redis/memory fallback.
type RepositoryFactory struct {
	useRedis    bool
	redisClient *redis.Client
	logger      *zap.SugaredLogger
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(cfg *config.Config, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	factory := &RepositoryFactory{
		useRedis: cfg.Redis.Enabled,
		logger:   logger,
	}

	// Try to connect to Redis if enabled
	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			logger,
		)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory diagnostic cache",
				"error", err,
			)
			factory.useRedis = false
		} else {
			factory.redisClient = client
			logger.Info("using Redis-backed diagnostic cache")
		}
	}

	if !factory.useRedis {
		logger.Info("using memory diagnostic cache")
	}

	return factory, nil
}

// CreateDiagnosticCache creates the diagnostic-dump cache (Redis or memory
// with fallback). Never the source of truth for live FSM state (§9B).
func (f *RepositoryFactory) CreateDiagnosticCache() ports.DiagnosticCache {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisDiagnosticCache(f.redisClient)
	}
	return memory.NewMemoryDiagnosticCache()
}

// RedisClient exposes the underlying client for health checks, or nil
// when running with the memory-only cache.
func (f *RepositoryFactory) RedisClient() *redis.Client {
	return f.redisClient
}

// Close closes Redis connection if used
func (f *RepositoryFactory) Close() error {
	if f.redisClient != nil {
		return redisrepo.CloseRedisClient(f.redisClient)
	}
	return nil
}

// HealthCheck checks Redis connection health
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.useRedis && f.redisClient != nil {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}
