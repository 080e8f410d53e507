package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"a2dpmgr/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// RedisDiagnosticCache backs the diagnostic dump with Redis so a
// multi-process deployment's debug routes see a consistent view; the
// authoritative FSM state still lives only in the owning process's
// in-memory Role (§9B).
type RedisDiagnosticCache struct {
	client *redis.Client
	prefix string
}

func NewRedisDiagnosticCache(client *redis.Client) ports.DiagnosticCache {
	return &RedisDiagnosticCache{
		client: client,
		prefix: "a2dpmgr:diagnostic_cache:",
	}
}

func (r *RedisDiagnosticCache) key(role string) string {
	return r.prefix + role
}

func (r *RedisDiagnosticCache) Put(ctx context.Context, role string, dump []ports.PeerDump) error {
	data, err := json.Marshal(dump)
	if err != nil {
		return fmt.Errorf("failed to marshal diagnostic dump: %w", err)
	}

	if err := r.client.Set(ctx, r.key(role), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set diagnostic dump in Redis: %w", err)
	}
	return nil
}

func (r *RedisDiagnosticCache) Get(ctx context.Context, role string) ([]ports.PeerDump, error) {
	data, err := r.client.Get(ctx, r.key(role)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get diagnostic dump from Redis: %w", err)
	}

	var dump []ports.PeerDump
	if err := json.Unmarshal([]byte(data), &dump); err != nil {
		return nil, fmt.Errorf("failed to unmarshal diagnostic dump: %w", err)
	}
	return dump, nil
}

func (r *RedisDiagnosticCache) Close() error {
	return nil
}
