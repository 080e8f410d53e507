package services

import (
	"context"
	"sync"

	"a2dpmgr/internal/core/domain"
	"a2dpmgr/internal/core/ports"
	"a2dpmgr/pkg/circuitbreaker"
	apperrors "a2dpmgr/pkg/errors"
	"a2dpmgr/pkg/retry"

	"go.uber.org/zap"
)

// AudioSessionGateway is C7: it wraps the raw ports.AudioSession collaborator
// with retry-with-backoff and a per-peer circuit breaker, grounded directly
// on internal/infrastructure/reliability/mesh_service_wrapper.go's
// MeshServiceWrapper pattern, since §1/§7 call out that AudioSession "can
// refuse or time out". It implements ports.AudioSession (for Api/C6);
// SessionActivatorAdapter exposes it as domain.SessionActivator (for
// Role/C4's active-peer protocol), so Role never talks to the raw
// collaborator directly.
type AudioSessionGateway struct {
	session ports.AudioSession
	logger  *zap.SugaredLogger

	retryConfig    retry.Config
	globalBreaker  *circuitbreaker.CircuitBreaker
	peerBreakers   map[domain.Address]*circuitbreaker.CircuitBreaker
	peerBreakersMu sync.RWMutex
}

// NewAudioSessionGateway wires retry and circuit-breaker tuning around an
// underlying AudioSession implementation.
func NewAudioSessionGateway(session ports.AudioSession, retryCfg retry.Config, cbCfg circuitbreaker.Config, logger *zap.SugaredLogger) *AudioSessionGateway {
	g := &AudioSessionGateway{
		session:       session,
		logger:        logger,
		retryConfig:   retryCfg,
		globalBreaker: circuitbreaker.New(cbCfg),
		peerBreakers:  make(map[domain.Address]*circuitbreaker.CircuitBreaker),
	}
	g.globalBreaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Infow("audio session gateway breaker state changed", "from", from.String(), "to", to.String())
	})
	return g
}

func (g *AudioSessionGateway) peerBreaker(address domain.Address) *circuitbreaker.CircuitBreaker {
	g.peerBreakersMu.RLock()
	cb, ok := g.peerBreakers[address]
	g.peerBreakersMu.RUnlock()
	if ok {
		return cb
	}

	g.peerBreakersMu.Lock()
	defer g.peerBreakersMu.Unlock()
	if cb, ok := g.peerBreakers[address]; ok {
		return cb
	}
	cb = circuitbreaker.New(circuitbreaker.DefaultConfig())
	cb.OnStateChange(func(from, to circuitbreaker.State) {
		g.logger.Infow("peer audio session breaker state changed",
			"address", address, "from", from.String(), "to", to.String())
	})
	g.peerBreakers[address] = cb
	return cb
}

// guardedPeer runs fn through the peer's circuit breaker and, if enabled,
// retry-with-backoff. operation names the call for NewGatewayTimeoutError
// when ctx's deadline is what ended the call (§1/§7: AudioSession "can
// refuse or time out").
func (g *AudioSessionGateway) guardedPeer(ctx context.Context, address domain.Address, operation string, fn func() error) error {
	cb := g.peerBreaker(address)
	var err error
	if !g.retryConfig.Enabled {
		err = cb.Execute(ctx, fn)
	} else {
		err = retry.Retry(ctx, g.retryConfig, func() error {
			return cb.Execute(ctx, fn)
		})
	}
	if err != nil && ctx.Err() == context.DeadlineExceeded {
		appErr := apperrors.NewGatewayTimeoutError(operation)
		g.logger.Warnw("audio session gateway call timed out", "address", address, "operation", operation, "code", appErr.Code)
		return appErr
	}
	return err
}

// StartSession starts a session for address, guarded per-peer.
func (g *AudioSessionGateway) StartSession(ctx context.Context, address domain.Address, ready *domain.ReadySignal) error {
	return g.guardedPeer(ctx, address, "StartSession", func() error {
		return g.session.StartSession(ctx, address, ready)
	})
}

// EndSession ends a session for address, guarded per-peer.
func (g *AudioSessionGateway) EndSession(ctx context.Context, address domain.Address) error {
	return g.guardedPeer(ctx, address, "EndSession", func() error {
		return g.session.EndSession(ctx, address)
	})
}

// RestartSession is the active-peer swap path (§4.4); guarded by the
// destination peer's breaker since that is the side most likely to refuse.
func (g *AudioSessionGateway) RestartSession(ctx context.Context, from, to domain.Address, ready *domain.ReadySignal) error {
	return g.guardedPeer(ctx, to, "RestartSession", func() error {
		return g.session.RestartSession(ctx, from, to, ready)
	})
}

// Shutdown is guarded by the global breaker since it is not peer-scoped.
func (g *AudioSessionGateway) Shutdown(ctx context.Context, ready *domain.ReadySignal) error {
	exec := func() error { return g.session.Shutdown(ctx, ready) }
	if !g.retryConfig.Enabled {
		return g.globalBreaker.Execute(ctx, exec)
	}
	return retry.Retry(ctx, g.retryConfig, func() error {
		return g.globalBreaker.Execute(ctx, exec)
	})
}

// shutdownActivator adapts Shutdown to domain.SessionActivator's signature,
// which fires ready itself rather than returning an error — §4.4 step 2
// treats a shutdown failure/timeout as logged, not fatal.
func (g *AudioSessionGateway) shutdownActivator(ctx context.Context, ready *domain.ReadySignal) {
	if err := g.Shutdown(ctx, ready); err != nil {
		g.logger.Warnw("audio session shutdown failed or timed out", "error", err)
	}
	ready.Fire()
}

// Pass-through event callbacks: these are one-shot acknowledgements driven
// by a transport response already in hand, so there is nothing to retry.
func (g *AudioSessionGateway) OnStarted(ctx context.Context, address domain.Address, info ports.StartInfo) bool {
	return g.session.OnStarted(ctx, address, info)
}
func (g *AudioSessionGateway) OnSuspended(ctx context.Context, address domain.Address) {
	g.session.OnSuspended(ctx, address)
}
func (g *AudioSessionGateway) OnStopped(ctx context.Context, address domain.Address) {
	g.session.OnStopped(ctx, address)
}
func (g *AudioSessionGateway) OnIdle(ctx context.Context) {
	g.session.OnIdle(ctx)
}
func (g *AudioSessionGateway) OnOffloadStarted(ctx context.Context, address domain.Address, success bool) {
	g.session.OnOffloadStarted(ctx, address, success)
}

func (g *AudioSessionGateway) SetRemoteDelay(ctx context.Context, address domain.Address, delayTenthsMs uint16) error {
	return g.guardedPeer(ctx, address, "SetRemoteDelay", func() error {
		return g.session.SetRemoteDelay(ctx, address, delayTenthsMs)
	})
}
func (g *AudioSessionGateway) SetTxFlush(ctx context.Context, flush bool) error {
	return g.session.SetTxFlush(ctx, flush)
}
func (g *AudioSessionGateway) SetRxFlush(ctx context.Context, flush bool) error {
	return g.session.SetRxFlush(ctx, flush)
}

// SessionActivatorAdapter exposes the gateway as a domain.SessionActivator
// for Role/C4, fulfilling ready exactly once per call as §4.4/§7 require.
type SessionActivatorAdapter struct {
	Gateway *AudioSessionGateway
}

func (a *SessionActivatorAdapter) RestartSession(ctx context.Context, from, to domain.Address, ready *domain.ReadySignal) error {
	err := a.Gateway.RestartSession(ctx, from, to, ready)
	if err != nil {
		// A rejected or failed restart may never have reached the session.
		ready.Fire()
	}
	return err
}

func (a *SessionActivatorAdapter) Shutdown(ctx context.Context, ready *domain.ReadySignal) {
	a.Gateway.shutdownActivator(ctx, ready)
}

var _ domain.SessionActivator = (*SessionActivatorAdapter)(nil)
var _ ports.AudioSession = (*AudioSessionGateway)(nil)

// AudioEventsAdapter exposes the gateway as a domain.AudioSessionEvents for
// StateMachine/C2, which only ever needs the per-event acknowledgement
// subset and a plain success bool rather than the fuller ports.StartInfo.
type AudioEventsAdapter struct {
	Gateway *AudioSessionGateway
}

func (a *AudioEventsAdapter) OnStarted(ctx context.Context, address domain.Address, success bool) {
	a.Gateway.OnStarted(ctx, address, ports.StartInfo{Success: success})
}
func (a *AudioEventsAdapter) OnStopped(ctx context.Context, address domain.Address) {
	a.Gateway.OnStopped(ctx, address)
}
func (a *AudioEventsAdapter) OnSuspended(ctx context.Context, address domain.Address) {
	a.Gateway.OnSuspended(ctx, address)
}
func (a *AudioEventsAdapter) OnIdle(ctx context.Context) {
	a.Gateway.OnIdle(ctx)
}
func (a *AudioEventsAdapter) OnOffloadStarted(ctx context.Context, address domain.Address, success bool) {
	a.Gateway.OnOffloadStarted(ctx, address, success)
}

var _ domain.AudioSessionEvents = (*AudioEventsAdapter)(nil)
