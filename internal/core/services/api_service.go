package services

import (
	"context"
	"sync"

	"a2dpmgr/internal/core/domain"
	"a2dpmgr/internal/core/ports"

	"go.uber.org/zap"
)

// a2dpSourceUUID/a2dpSinkUUID are the standard Bluetooth SIG service class
// UUIDs for the two stream-endpoint roles, passed to Transport.Register.
const (
	a2dpSourceUUID = "0000110A-0000-1000-8000-00805F9B34FB"
	a2dpSinkUUID   = "0000110B-0000-1000-8000-00805F9B34FB"
)

const transportEventQueueSize = 64

// ApiService is C6: the external operations surface (§4.6). Every call that
// changes FSM state is translated into a PeerEvent and handed to the
// EventRouter (C5), so a host-thread caller and the lower-transport's own
// event flow are serialized through the same control thread (§5). Init,
// cleanup, SetActive*, SetSilence, ConfigureCodec and SetAudioDelay write
// Role and Peer fields directly from the caller's goroutine.
type ApiService struct {
	source *domain.Role
	sink   *domain.Role

	sourceNotifier *SourceNotifier
	sinkNotifier   *SinkNotifier

	transport ports.Transport
	router    ports.EventRouter
	audio     ports.AudioSession

	logger *zap.SugaredLogger

	mu           sync.Mutex
	sourceHandle domain.HandleID
	sinkHandle   domain.HandleID
	sourceCancel context.CancelFunc
	sinkCancel   context.CancelFunc
}

// NewApiService wires the two Roles, their host-notifier adapters, the
// shared Transport and EventRouter, and the AudioSession gateway (for the
// delay/flush calls that bypass the state machine entirely, per §6).
func NewApiService(source, sink *domain.Role, sourceNotifier *SourceNotifier, sinkNotifier *SinkNotifier, transport ports.Transport, router ports.EventRouter, audio ports.AudioSession, logger *zap.SugaredLogger) *ApiService {
	return &ApiService{
		source:         source,
		sink:           sink,
		sourceNotifier: sourceNotifier,
		sinkNotifier:   sinkNotifier,
		transport:      transport,
		router:         router,
		audio:          audio,
		logger:         logger,
		sourceHandle:   domain.HandleUnknown,
		sinkHandle:     domain.HandleUnknown,
	}
}

func (a *ApiService) roleFor(kind domain.RoleKind) *domain.Role {
	if kind == domain.RoleSource {
		return a.source
	}
	return a.sink
}

// InitSource registers and enables the Source transport endpoint and begins
// forwarding its inbound events to the control thread (§4.6).
func (a *ApiService) InitSource(ctx context.Context, cbs ports.SourceCallbacks, maxPeers int, codecPriorities []string, offload ports.OffloadCaps) domain.ApiStatus {
	if cbs == nil || maxPeers <= 0 {
		return domain.StatusInvalidParam
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.source.MaxPeers = maxPeers
	a.source.Enabled = true
	a.source.OffloadCapable = offload.Supported && !offload.Disabled
	a.source.DefaultCodecPriorities = codecPriorities
	a.sourceNotifier.Set(cbs)

	handle, err := a.transport.Register(ctx, domain.RoleSource, "A2DP Source", domain.PeerSlot(0), a2dpSourceUUID)
	if err != nil {
		a.logger.Errorw("source transport registration failed", "error", err)
		a.source.Enabled = false
		return domain.StatusNotReady
	}
	a.sourceHandle = handle

	events := make(chan ports.TransportEvent, transportEventQueueSize)
	features := ports.FeatureRCTG | ports.FeatureMetadata
	if offload.DelayReportingEnabled {
		features |= ports.FeatureDelayReport
	}
	if offload.AvrcpAbsoluteVolumeEnabled {
		features |= ports.FeatureRCCT | ports.FeatureAdvCtrl | ports.FeatureBrowse
	}
	if err := a.transport.Enable(ctx, features, events); err != nil {
		a.logger.Errorw("source transport enable failed", "error", err)
		a.source.Enabled = false
		return domain.StatusNotReady
	}

	runCtx, cancel := context.WithCancel(ctx)
	a.sourceCancel = cancel
	go a.forward(runCtx, domain.RoleSource, events)

	return domain.StatusOk
}

// InitSink is InitSource's mirror for the Sink role.
func (a *ApiService) InitSink(ctx context.Context, cbs ports.SinkCallbacks, maxPeers int) domain.ApiStatus {
	if cbs == nil || maxPeers <= 0 {
		return domain.StatusInvalidParam
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.sink.MaxPeers = maxPeers
	a.sink.Enabled = true
	a.sinkNotifier.Set(cbs)

	handle, err := a.transport.Register(ctx, domain.RoleSink, "A2DP Sink", domain.PeerSlot(0), a2dpSinkUUID)
	if err != nil {
		a.logger.Errorw("sink transport registration failed", "error", err)
		a.sink.Enabled = false
		return domain.StatusNotReady
	}
	a.sinkHandle = handle

	events := make(chan ports.TransportEvent, transportEventQueueSize)
	features := ports.FeatureRCTG | ports.FeatureRCCT | ports.FeatureMetadata
	if err := a.transport.Enable(ctx, features, events); err != nil {
		a.logger.Errorw("sink transport enable failed", "error", err)
		a.sink.Enabled = false
		return domain.StatusNotReady
	}

	runCtx, cancel := context.WithCancel(ctx)
	a.sinkCancel = cancel
	go a.forward(runCtx, domain.RoleSink, events)

	return domain.StatusOk
}

func (a *ApiService) forward(ctx context.Context, role domain.RoleKind, events <-chan ports.TransportEvent) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			a.router.PostTransportEvent(role, ev)
		case <-ctx.Done():
			return
		}
	}
}

// CleanupSource tears down the Source role's transport registration.
func (a *ApiService) CleanupSource(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.source.Enabled = false
	if a.sourceCancel != nil {
		a.sourceCancel()
		a.sourceCancel = nil
	}
	_ = a.transport.Disable(ctx)
	if a.sourceHandle != domain.HandleUnknown {
		_ = a.transport.Deregister(ctx, a.sourceHandle)
		a.sourceHandle = domain.HandleUnknown
	}
	a.sourceNotifier.Set(nil)
}

// CleanupSink is CleanupSource's mirror.
func (a *ApiService) CleanupSink(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.sink.Enabled = false
	if a.sinkCancel != nil {
		a.sinkCancel()
		a.sinkCancel = nil
	}
	_ = a.transport.Disable(ctx)
	if a.sinkHandle != domain.HandleUnknown {
		_ = a.transport.Deregister(ctx, a.sinkHandle)
		a.sinkHandle = domain.HandleUnknown
	}
	a.sinkNotifier.Set(nil)
}

// Connect issues a host-initiated connection request (§4.6 connect).
func (a *ApiService) Connect(ctx context.Context, role domain.RoleKind, address domain.Address) domain.ApiStatus {
	r := a.roleFor(role)
	if !r.Enabled {
		return domain.StatusNotReady
	}
	if address == domain.NoAddress {
		return domain.StatusInvalidParam
	}
	a.router.PostLocalEvent(role, address, domain.OpConnectReq)
	return domain.StatusOk
}

// Disconnect issues a host-initiated disconnect request.
func (a *ApiService) Disconnect(ctx context.Context, role domain.RoleKind, address domain.Address) domain.ApiStatus {
	r := a.roleFor(role)
	if !r.Enabled {
		return domain.StatusNotReady
	}
	if address == domain.NoAddress {
		return domain.StatusInvalidParam
	}
	a.router.PostLocalEvent(role, address, domain.OpDisconnectReq)
	return domain.StatusOk
}

// SetActiveSource runs the §4.4 active-peer protocol for the Source role.
// It runs on the caller's goroutine, not the control thread; Role's mutex
// guards only the reads and writes of the active address, so concurrent
// calls are not serialized against each other. It never mutates a Peer's
// SMState, only the
// Role's active-address bookkeeping and the AudioSession collaborator, so
// running off the control thread does not race the state machine.
func (a *ApiService) SetActiveSource(ctx context.Context, address domain.Address) bool {
	ready := domain.NewReadySignal()
	ok, err := a.source.SetActive(ctx, address, ready)
	if err != nil {
		a.logger.Warnw("set active source failed", "address", address, "error", err)
	}
	if ok {
		a.sourceNotifier.notifyActivePeerChanged(address)
	}
	return ok
}

// SetActiveSink is SetActiveSource's mirror for the Sink role.
func (a *ApiService) SetActiveSink(ctx context.Context, address domain.Address) bool {
	ready := domain.NewReadySignal()
	ok, err := a.sink.SetActive(ctx, address, ready)
	if err != nil {
		a.logger.Warnw("set active sink failed", "address", address, "error", err)
	}
	if ok {
		a.sinkNotifier.notifyActivePeerChanged(address)
	}
	return ok
}

// SetSilence toggles §9C's silence-mode bit, which is excluded from active-
// peer selection but never forces a disconnect.
func (a *ApiService) SetSilence(ctx context.Context, role domain.RoleKind, address domain.Address, silence bool) domain.ApiStatus {
	r := a.roleFor(role)
	if _, ok := r.Peer(address); !ok {
		return domain.StatusInvalidParam
	}
	r.SetSilenced(address, silence)
	return domain.StatusOk
}

// ConfigureCodec records the host's codec preference for a future
// reconfiguration; codec negotiation itself is the Transport's concern
// (§1 Non-goals). If address is the active peer of its role, the current
// audio session is ended first so the reconfiguration doesn't race a live
// stream.
func (a *ApiService) ConfigureCodec(ctx context.Context, address domain.Address, prefs ports.CodecPrefs) domain.ApiStatus {
	var r *domain.Role
	var p *domain.Peer
	var ok bool
	if p, ok = a.source.Peer(address); ok {
		r = a.source
	} else if p, ok = a.sink.Peer(address); ok {
		r = a.sink
	} else {
		return domain.StatusInvalidParam
	}

	p.MandatoryCodecOnly = prefs.MandatoryOnly
	p.CodecPriorities = prefs.Priorities

	if r.IsActivePeer(address) {
		if err := a.audio.EndSession(ctx, address); err != nil {
			a.logger.Warnw("end audio session before codec reconfiguration failed", "address", address, "error", err)
		}
	}
	if r.Kind == domain.RoleSource {
		a.sourceNotifier.NotifyCodecConfigSource(address)
	}
	return domain.StatusOk
}

// StreamStart requests stream start on the role's current active peer.
func (a *ApiService) StreamStart(ctx context.Context, role domain.RoleKind) domain.ApiStatus {
	r := a.roleFor(role)
	addr := r.ActiveAddress()
	if addr == domain.NoAddress {
		return domain.StatusNotReady
	}
	a.router.PostLocalValueEvent(role, addr, domain.OpStartStreamReq, false)
	return domain.StatusOk
}

// StreamStop requests stream stop on the role's current active peer.
func (a *ApiService) StreamStop(ctx context.Context, role domain.RoleKind) domain.ApiStatus {
	r := a.roleFor(role)
	addr := r.ActiveAddress()
	if addr == domain.NoAddress {
		return domain.StatusNotReady
	}
	a.router.PostLocalEvent(role, addr, domain.OpStopStreamReq)
	return domain.StatusOk
}

// StreamSuspend requests stream suspend on the role's current active peer.
func (a *ApiService) StreamSuspend(ctx context.Context, role domain.RoleKind) domain.ApiStatus {
	r := a.roleFor(role)
	addr := r.ActiveAddress()
	if addr == domain.NoAddress {
		return domain.StatusNotReady
	}
	a.router.PostLocalEvent(role, addr, domain.OpSuspendStreamReq)
	return domain.StatusOk
}

// StreamStartOffload requests hardware-offload start on the active peer.
// Only meaningful for a Source initialised with offload-capable platform
// flags (§6's offload_supported ∧ ¬offload_disabled gate).
func (a *ApiService) StreamStartOffload(ctx context.Context, role domain.RoleKind) domain.ApiStatus {
	r := a.roleFor(role)
	if role == domain.RoleSource && !r.OffloadCapable {
		return domain.StatusNotReady
	}
	addr := r.ActiveAddress()
	if addr == domain.NoAddress {
		return domain.StatusNotReady
	}
	a.router.PostLocalEvent(role, addr, domain.OpOffloadStartReq)
	return domain.StatusOk
}

// SetLowLatency toggles SBC/AAC low-latency mode on the active peer.
func (a *ApiService) SetLowLatency(ctx context.Context, role domain.RoleKind, low bool) domain.ApiStatus {
	r := a.roleFor(role)
	addr := r.ActiveAddress()
	if addr == domain.NoAddress {
		return domain.StatusNotReady
	}
	a.router.PostLocalValueEvent(role, addr, domain.OpSetLatencyReq, low)
	return domain.StatusOk
}

// SetAudioDelay forwards a delay-report update directly to the AudioSession
// collaborator — this is not a PeerStateMachine transition (§6).
func (a *ApiService) SetAudioDelay(ctx context.Context, role domain.RoleKind, address domain.Address, delayTenthsMs uint16) domain.ApiStatus {
	r := a.roleFor(role)
	p, ok := r.Peer(address)
	if !ok {
		return domain.StatusInvalidParam
	}
	p.DelayReport = delayTenthsMs
	if err := a.audio.SetRemoteDelay(ctx, address, delayTenthsMs); err != nil {
		a.logger.Warnw("set remote delay failed", "address", address, "error", err)
		return domain.StatusNotReady
	}
	return domain.StatusOk
}

// Dump renders the role's peer set for the diagnostic surface (§6 CLI/dump).
func (a *ApiService) Dump(ctx context.Context, role domain.RoleKind) []ports.PeerDump {
	r := a.roleFor(role)
	peers := r.Snapshot()
	out := make([]ports.PeerDump, 0, len(peers))
	for _, p := range peers {
		out = append(out, ports.PeerDump{
			Address:                 p.Address,
			Role:                   p.Role.String(),
			Connected:               p.IsConnected(),
			Streaming:               p.IsStreaming(),
			AvrcpOnly:               p.IsAvrcpOnly(),
			State:                   p.SMState.String(),
			Flags:                   p.Flags.String(),
			TimerArmed:              p.OpenOnRcTimer != nil,
			Handle:                  p.Handle.String(),
			PeerID:                  int(p.Slot),
			EDR:                     p.EDR.String(),
			Supports3Mbps:           p.EDR == domain.EDR3Mbps,
			SelfInitiated:           p.SelfInitiated,
			DelayReport:             p.DelayReport,
			MandatoryCodecPreferred: p.MandatoryCodecPreferred,
			Silenced:                p.Silenced,
			IsActive:                r.IsActivePeer(p.Address),
		})
	}
	return out
}

var _ ports.Api = (*ApiService)(nil)
