package services

import (
	"context"
	"time"

	"a2dpmgr/internal/core/domain"
	"a2dpmgr/internal/core/ports"
	apperrors "a2dpmgr/pkg/errors"

	"go.uber.org/zap"
)

// eventRouterQueueSize bounds the buffered channel the control thread drains;
// a transport adapter that outpaces it blocks on send, which is the intended
// backpressure point per §5.
const eventRouterQueueSize = 256

// idleSweepInterval periodically runs Role.DeleteIdlePeers as a backstop for
// peers whose own Idle OnEnter sweep raced with a concurrent FindOrCreate.
const idleSweepInterval = 5 * time.Second

type localEvent struct {
	role    domain.RoleKind
	address domain.Address
	opcode  domain.Opcode
	status  bool
}

type mediaEvent struct {
	address domain.Address
	payload []byte
}

type transportEvent struct {
	remoteRole domain.RoleKind
	raw        ports.TransportEvent
}

// EventRouter is the C5 single control thread (§4.5, §5): one dedicated
// goroutine drains a single buffered channel and feeds every event through
// exactly one PeerStateMachine, eliminating the need for per-peer locking.
// Grounded on internal/infrastructure/signal/websocket_server.go's
// goroutine-plus-channel-select dispatch loop.
type EventRouter struct {
	source *domain.Role
	sink   *domain.Role

	smSource *domain.StateMachine
	smSink   *domain.StateMachine

	pool *domain.BufferPool

	transportCh chan transportEvent
	localCh     chan localEvent
	mediaCh     chan mediaEvent
	stopCh      chan struct{}
	doneCh      chan struct{}

	metrics Metrics
	logger  *zap.SugaredLogger
}

// Metrics is the narrow set of counters/observations the router drives
// directly (C8); the fuller Prometheus-backed implementation lives in
// internal/infrastructure/monitoring.
type Metrics interface {
	ObserveDispatchLatency(role domain.RoleKind, opcode string, d time.Duration)
	IncUnhandledEvent(role domain.RoleKind, state, opcode string)
	IncAdmissionDenied(role domain.RoleKind)
	IncStateTransition(role domain.RoleKind, from, to string)
	IncMediaEvent(role domain.RoleKind, accepted bool)
}

// NewEventRouter wires both roles' state machines behind one dispatch loop.
func NewEventRouter(source, sink *domain.Role, smSource, smSink *domain.StateMachine, pool *domain.BufferPool, metrics Metrics, logger *zap.SugaredLogger) *EventRouter {
	return &EventRouter{
		source:      source,
		sink:        sink,
		smSource:    smSource,
		smSink:      smSink,
		pool:        pool,
		transportCh: make(chan transportEvent, eventRouterQueueSize),
		localCh:     make(chan localEvent, eventRouterQueueSize),
		mediaCh:     make(chan mediaEvent, eventRouterQueueSize),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
		metrics:     metrics,
		logger:      logger,
	}
}

// PostTransportEvent enqueues a raw lower-layer event for dispatch. Blocks
// if the queue is full, applying backpressure to the transport adapter.
func (r *EventRouter) PostTransportEvent(remoteRole domain.RoleKind, raw ports.TransportEvent) {
	r.transportCh <- transportEvent{remoteRole: remoteRole, raw: raw}
}

// PostLocalEvent enqueues a host-originated API event (§4.6 translated to a
// synthetic PeerEvent by Api/C6).
func (r *EventRouter) PostLocalEvent(role domain.RoleKind, address domain.Address, opcode domain.Opcode) {
	r.localCh <- localEvent{role: role, address: address, opcode: opcode}
}

// PostLocalValueEvent is PostLocalEvent plus the handler's Status flag.
func (r *EventRouter) PostLocalValueEvent(role domain.RoleKind, address domain.Address, opcode domain.Opcode, status bool) {
	r.localCh <- localEvent{role: role, address: address, opcode: opcode, status: status}
}

// PostMediaEvent enqueues a media-thread-originated event (§4.1's third
// producer, e.g. an underrun notification carrying no vendor/browse payload).
func (r *EventRouter) PostMediaEvent(address domain.Address, payload []byte) {
	r.mediaCh <- mediaEvent{address: address, payload: payload}
}

// Run drains the queues on the calling goroutine until ctx is cancelled or
// Stop is called. This IS the control thread; callers must invoke Run from
// its own dedicated goroutine and must not call it more than once.
func (r *EventRouter) Run(ctx context.Context) {
	defer close(r.doneCh)

	sweep := time.NewTicker(idleSweepInterval)
	defer sweep.Stop()

	for {
		select {
		case te := <-r.transportCh:
			r.dispatchTransport(ctx, te)

		case le := <-r.localCh:
			r.dispatchLocal(ctx, le)

		case me := <-r.mediaCh:
			r.dispatchMedia(ctx, me)

		case <-sweep.C:
			r.source.DeleteIdlePeers()
			r.sink.DeleteIdlePeers()

		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop signals Run to exit and blocks until it has. Safe to call once.
func (r *EventRouter) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

func (r *EventRouter) roleFor(kind domain.RoleKind) (*domain.Role, *domain.StateMachine) {
	if kind == domain.RoleSource {
		return r.source, r.smSource
	}
	return r.sink, r.smSink
}

func (r *EventRouter) dispatchTransport(ctx context.Context, te transportEvent) {
	role, sm := r.roleFor(te.remoteRole)

	var p *domain.Peer
	if te.raw.Address == domain.NoAddress {
		p, _ = role.PeerByHandle(te.raw.Handle)
	}
	if p == nil {
		var err error
		p, err = role.FindOrCreate(te.raw.Address, te.raw.Handle)
		if err != nil {
			r.logger.Warnw("dropping transport event for unresolvable peer",
				"role", te.remoteRole, "address", te.raw.Address, "error", err)
			return
		}
	}

	ev := domain.New(te.raw.Opcode, p.Address, te.raw.Handle, r.pool)
	ev.Status = te.raw.Status
	ev.Suspending = te.raw.Suspending
	ev.Initiator = te.raw.Initiator
	ev.EDR = te.raw.EDR
	ev.SampleRateHz = te.raw.SampleRateHz
	ev.ChannelCount = te.raw.ChannelCount
	if te.raw.VendorData != nil || te.raw.BrowseData != nil {
		ev.WithMeta(domain.MetaVendorData, te.raw.VendorData, te.raw.BrowseData)
	}
	defer ev.Release()

	r.process(ctx, te.remoteRole, role, sm, p, ev)
}

func (r *EventRouter) dispatchLocal(ctx context.Context, le localEvent) {
	role, sm := r.roleFor(le.role)

	if le.opcode == domain.OpConnectReq && !role.AllowedToConnect(le.address) {
		r.metrics.IncAdmissionDenied(le.role)
		appErr := apperrors.NewAdmissionDeniedError(string(le.address))
		r.logger.Warnw("admission denied", "role", le.role, "address", le.address, "code", appErr.Code, "error", appErr)
		return
	}

	p, err := role.FindOrCreate(le.address, domain.HandleUnknown)
	if err != nil {
		r.logger.Warnw("dropping local event for unresolvable peer",
			"role", le.role, "address", le.address, "error", err)
		return
	}

	ev := domain.New(le.opcode, le.address, p.Handle, r.pool)
	ev.Status = le.status
	defer ev.Release()

	r.process(ctx, le.role, role, sm, p, ev)
}

// dispatchMedia implements §4.5's media-thread drop/enqueue rule: a media
// event is only accepted for the peer that is both its role's active peer
// and currently stream-ready (Started with no suspend/stop flag pending);
// every other peer's media events are dropped, since there is nothing
// local state would do with media for a peer that isn't the live stream.
func (r *EventRouter) dispatchMedia(ctx context.Context, me mediaEvent) {
	for _, role := range []*domain.Role{r.source, r.sink} {
		p, ok := role.Peer(me.address)
		if !ok {
			continue
		}
		if !role.IsActivePeer(me.address) || !p.StreamReady() {
			r.metrics.IncMediaEvent(role.Kind, false)
			r.logger.Debugw("dropping media event for non-active or non-stream-ready peer",
				"role", role.Kind, "address", me.address)
			continue
		}
		r.metrics.IncMediaEvent(role.Kind, true)
	}
}

func (r *EventRouter) process(ctx context.Context, kind domain.RoleKind, role *domain.Role, sm *domain.StateMachine, p *domain.Peer, ev *domain.PeerEvent) {
	start := time.Now()
	from := p.SMState
	result := sm.Process(ctx, p, ev)
	r.metrics.ObserveDispatchLatency(kind, ev.Opcode.Name(), time.Since(start))

	if result == domain.Unhandled {
		r.metrics.IncUnhandledEvent(kind, from.String(), ev.Opcode.Name())
		appErr := apperrors.NewInvalidTransitionError(from.String(), ev.Opcode.Name())
		r.logger.Debugw("invalid transition", "role", kind, "address", p.Address, "code", appErr.Code, "error", appErr)
		return
	}
	if p.SMState != from {
		r.metrics.IncStateTransition(kind, from.String(), p.SMState.String())
	}
}

var _ ports.EventRouter = (*EventRouter)(nil)
