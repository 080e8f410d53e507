package ports

import (
	"context"

	"a2dpmgr/internal/core/domain"
)

// StartInfo is passed to OnStarted with the transport's start acknowledgement.
type StartInfo struct {
	Success    bool
	Suspending bool
	Initiator  bool
}

// AudioSession is the full codec/audio-HAL collaborator contract (§6). Per
// §1 and §7 it "can refuse or time out" — callers should route through
// AudioSessionGateway (C7) rather than calling this directly, except for
// the gateway's own implementation.
type AudioSession interface {
	StartSession(ctx context.Context, address domain.Address, ready *domain.ReadySignal) error
	EndSession(ctx context.Context, address domain.Address) error
	RestartSession(ctx context.Context, from, to domain.Address, ready *domain.ReadySignal) error
	Shutdown(ctx context.Context, ready *domain.ReadySignal) error

	OnStarted(ctx context.Context, address domain.Address, info StartInfo) bool
	OnSuspended(ctx context.Context, address domain.Address)
	OnStopped(ctx context.Context, address domain.Address)
	OnIdle(ctx context.Context)
	OnOffloadStarted(ctx context.Context, address domain.Address, success bool)

	SetRemoteDelay(ctx context.Context, address domain.Address, delayTenthsMs uint16) error
	SetTxFlush(ctx context.Context, flush bool) error
	SetRxFlush(ctx context.Context, flush bool) error
}
