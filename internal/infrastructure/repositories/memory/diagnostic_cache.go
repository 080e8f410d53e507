package memory

import (
	"context"
	"sync"

	"a2dpmgr/internal/core/ports"
)

// MemoryDiagnosticCache is the default DiagnosticCache backend: an
// in-process map-of-entities guarded by a RWMutex, the same shape the
// teacher's map-based repositories use. It holds the most recent dump
// per role and nothing else — never live FSM state (§9B).
type MemoryDiagnosticCache struct {
	mu    sync.RWMutex
	dumps map[string][]ports.PeerDump
}

func NewMemoryDiagnosticCache() ports.DiagnosticCache {
	return &MemoryDiagnosticCache{
		dumps: make(map[string][]ports.PeerDump),
	}
}

func (c *MemoryDiagnosticCache) Put(ctx context.Context, role string, dump []ports.PeerDump) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dumps[role] = dump
	return nil
}

func (c *MemoryDiagnosticCache) Get(ctx context.Context, role string) ([]ports.PeerDump, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.dumps[role], nil
}

func (c *MemoryDiagnosticCache) Close() error {
	return nil
}
