package services

import (
	"context"
	"sync"
	"time"

	"a2dpmgr/internal/core/domain"
	"a2dpmgr/internal/core/ports"
	"a2dpmgr/pkg/cache"

	"go.uber.org/zap"
)

// mandatoryCodecPreferredTTL bounds how stale a cached host answer to
// QueryMandatoryCodecPreferred may be (§3's note that the value is
// host-queried and cached with a short TTL rather than re-queried on every
// ConnectReq/Pending admission check).
const mandatoryCodecPreferredTTL = 30 * time.Second

// SourceNotifier adapts a host-supplied ports.SourceCallbacks table into
// domain.HostNotifier for the Source role's StateMachine. Callbacks may be
// registered after construction (InitSource arrives after wiring), so a
// nil table is tolerated as a no-op rather than a panic.
type SourceNotifier struct {
	mu        sync.RWMutex
	cbs       ports.SourceCallbacks
	publisher ports.EventPublisher
	cache     *cache.CacheWithFallback
	role      *domain.Role
	logger    *zap.SugaredLogger
}

// NewSourceNotifier constructs a notifier with its own codec-preference
// cache. role is consulted by NotifyCodecConfigSource to read back the
// peer's recorded ConfigureCodec preference.
func NewSourceNotifier(role *domain.Role, logger *zap.SugaredLogger) *SourceNotifier {
	return &SourceNotifier{
		cache:  cache.NewCacheWithFallback(mandatoryCodecPreferredTTL),
		role:   role,
		logger: logger,
	}
}

func (n *SourceNotifier) Set(cbs ports.SourceCallbacks) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cbs = cbs
}

// SetPublisher wires an optional EventPublisher (C11) that mirrors every
// host notification onto the distributed event bus; nil disables mirroring.
func (n *SourceNotifier) SetPublisher(pub ports.EventPublisher) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.publisher = pub
}

func (n *SourceNotifier) get() ports.SourceCallbacks {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.cbs
}

func (n *SourceNotifier) getPublisher() ports.EventPublisher {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.publisher
}

func (n *SourceNotifier) NotifyConnectionState(address domain.Address, state domain.ConnectionState) {
	if cbs := n.get(); cbs != nil {
		cbs.ConnectionState(address, state)
	}
	if pub := n.getPublisher(); pub != nil {
		if err := pub.PublishConnectionState(domain.RoleSource, address, state.String()); err != nil {
			n.logger.Warnw("publish connection state failed", "address", address, "error", err)
		}
	}
}

func (n *SourceNotifier) NotifyAudioState(address domain.Address, state domain.AudioState) {
	if cbs := n.get(); cbs != nil {
		cbs.AudioState(address, state)
	}
	if pub := n.getPublisher(); pub != nil {
		if err := pub.PublishAudioState(domain.RoleSource, address, state.String()); err != nil {
			n.logger.Warnw("publish audio state failed", "address", address, "error", err)
		}
	}
}

// notifyActivePeerChanged mirrors a successful Role.SetActive onto the
// event bus; called from ApiService.SetActiveSource rather than from
// Role.SetActive itself, since domain cannot import ports (C11's
// EventPublisher lives at the ports layer).
func (n *SourceNotifier) notifyActivePeerChanged(address domain.Address) {
	if pub := n.getPublisher(); pub != nil {
		if err := pub.PublishActivePeerChanged(domain.RoleSource, address); err != nil {
			n.logger.Warnw("publish active peer changed failed", "address", address, "error", err)
		}
	}
}

// NotifyCodecConfigSource re-emits the peer's current codec configuration,
// built from its recorded ConfigureCodec preference (§4.6). SBC is the only
// codec the A2DP profile mandates, so a MandatoryCodecOnly peer always
// reports it as Current regardless of the requested priority order.
func (n *SourceNotifier) NotifyCodecConfigSource(address domain.Address) {
	cbs := n.get()
	if cbs == nil {
		return
	}
	caps := ports.CodecCaps{}
	if n.role != nil {
		if p, ok := n.role.Peer(address); ok {
			if p.MandatoryCodecOnly {
				caps.Current = "SBC"
				caps.SelectableCaps = []string{"SBC"}
			} else {
				caps.SelectableCaps = p.CodecPriorities
				caps.LocalCaps = p.CodecPriorities
				if len(p.CodecPriorities) > 0 {
					caps.Current = p.CodecPriorities[0]
				}
			}
		}
	}
	cbs.CodecConfig(address, caps)
}

func (n *SourceNotifier) NotifySinkAudioConfig(address domain.Address, sampleRateHz, channelCount int) {
	// not applicable to the Source role; SinkConfigReq on a Source's
	// StateMachine is unreachable in practice but the interface is shared.
}

func (n *SourceNotifier) QueryMandatoryCodecPreferred(ctx context.Context, address domain.Address) bool {
	cbs := n.get()
	if cbs == nil {
		return false
	}
	value, err := n.cache.GetOrSet(ctx, string(address), func(ctx context.Context) (interface{}, error) {
		return cbs.MandatoryCodecPreferred(ctx, address), nil
	}, mandatoryCodecPreferredTTL)
	if err != nil {
		return false
	}
	return value.(bool)
}

var _ domain.HostNotifier = (*SourceNotifier)(nil)

// SinkNotifier is the Sink role's equivalent adapter.
type SinkNotifier struct {
	mu        sync.RWMutex
	cbs       ports.SinkCallbacks
	publisher ports.EventPublisher
	logger    *zap.SugaredLogger
}

// NewSinkNotifier constructs a Sink notifier. logger may be nil only in
// tests that never set a publisher.
func NewSinkNotifier(logger *zap.SugaredLogger) *SinkNotifier {
	return &SinkNotifier{logger: logger}
}

func (n *SinkNotifier) Set(cbs ports.SinkCallbacks) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cbs = cbs
}

// SetPublisher wires an optional EventPublisher (C11); nil disables mirroring.
func (n *SinkNotifier) SetPublisher(pub ports.EventPublisher) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.publisher = pub
}

func (n *SinkNotifier) get() ports.SinkCallbacks {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.cbs
}

func (n *SinkNotifier) getPublisher() ports.EventPublisher {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.publisher
}

func (n *SinkNotifier) notifyActivePeerChanged(address domain.Address) {
	if pub := n.getPublisher(); pub != nil {
		if err := pub.PublishActivePeerChanged(domain.RoleSink, address); err != nil {
			n.logger.Warnw("publish active peer changed failed", "address", address, "error", err)
		}
	}
}

func (n *SinkNotifier) NotifyConnectionState(address domain.Address, state domain.ConnectionState) {
	if cbs := n.get(); cbs != nil {
		cbs.ConnectionState(address, state)
	}
	if pub := n.getPublisher(); pub != nil {
		if err := pub.PublishConnectionState(domain.RoleSink, address, state.String()); err != nil {
			n.logger.Warnw("publish connection state failed", "address", address, "error", err)
		}
	}
}

func (n *SinkNotifier) NotifyAudioState(address domain.Address, state domain.AudioState) {
	if cbs := n.get(); cbs != nil {
		cbs.AudioState(address, state)
	}
	if pub := n.getPublisher(); pub != nil {
		if err := pub.PublishAudioState(domain.RoleSink, address, state.String()); err != nil {
			n.logger.Warnw("publish audio state failed", "address", address, "error", err)
		}
	}
}

func (n *SinkNotifier) NotifyCodecConfigSource(address domain.Address) {
	// not applicable to the Sink role.
}

func (n *SinkNotifier) NotifySinkAudioConfig(address domain.Address, sampleRateHz, channelCount int) {
	if cbs := n.get(); cbs != nil {
		cbs.AudioConfig(address, sampleRateHz, channelCount)
	}
}

func (n *SinkNotifier) QueryMandatoryCodecPreferred(ctx context.Context, address domain.Address) bool {
	return false
}

var _ domain.HostNotifier = (*SinkNotifier)(nil)
