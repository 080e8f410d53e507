package domain

import "context"

// StateMachine drives one Peer through the five-state lifecycle of §4.2. A
// single instance is shared by every peer of a Role; all of its state is
// the Peer and Role arguments passed to Process — it holds no per-peer
// state itself, matching §9's "no back-references, no lifetime cycles"
// design note.
type StateMachine struct {
	role      *Role
	transport TransportCommands
	notifier  HostNotifier
	audio     AudioSessionEvents

	// postConnectReq re-posts a synthetic ConnectReq for address through
	// the EventRouter's control thread. Wired in by the composition root
	// after the EventRouter exists (NewStateMachine is called before it),
	// via SetPostConnectReq. Used by the Idle/AvrcpOpen handler to arm the
	// §4.2/§8 2-second AVRCP-without-AV upgrade timer.
	postConnectReq func(Address)
}

// NewStateMachine constructs a state machine bound to one role and its
// external collaborators.
func NewStateMachine(role *Role, transport TransportCommands, notifier HostNotifier, audio AudioSessionEvents) *StateMachine {
	return &StateMachine{role: role, transport: transport, notifier: notifier, audio: audio}
}

// SetPostConnectReq wires the callback the AVRCP-upgrade timer fires
// through. Must be called once, after the EventRouter that owns fn's
// target queue is constructed.
func (sm *StateMachine) SetPostConnectReq(fn func(Address)) {
	sm.postConnectReq = fn
}

// idleReentryOpcodes are the Idle-table events that the spec documents as
// "stay in Idle" self-transitions whose re-entry must still run even
// though sm_state doesn't change: the cleanup sweep onEnter(Idle) performs
// is what makes a disconnected or admission-denied peer eligible for
// deletion (Peer.CanBeDeleted), mirroring the original's unconditional
// TransitionTo-into-Idle semantics.
var idleReentryOpcodes = map[Opcode]bool{
	OpDisconnectReq: true,
	OpConnectReq:    true,
	OpPending:       true,
}

// Process runs one event through the peer's current state, executing
// OnExit of the old state and OnEnter of the new state on any transition
// (§4.2). It returns Unhandled for events a state declares ignored, so
// callers can feed a Metrics counter.
func (sm *StateMachine) Process(ctx context.Context, p *Peer, ev *PeerEvent) Result {
	from := p.SMState
	result, to := sm.dispatch(ctx, p, ev)

	reenter := to != from
	if result == Handled && from == StateIdle && to == StateIdle && idleReentryOpcodes[ev.Opcode] {
		reenter = true
	}

	if reenter {
		sm.onExit(ctx, p, from)
		p.Previous = from
		p.SMState = to
		sm.onEnter(ctx, p, to)
	}
	return result
}

func (sm *StateMachine) dispatch(ctx context.Context, p *Peer, ev *PeerEvent) (Result, SMState) {
	switch p.SMState {
	case StateIdle:
		return sm.idle(ctx, p, ev)
	case StateOpening:
		return sm.opening(ctx, p, ev)
	case StateOpened:
		return sm.opened(ctx, p, ev)
	case StateStarted:
		return sm.started(ctx, p, ev)
	case StateClosing:
		return sm.closing(ctx, p, ev)
	default:
		return Unhandled, p.SMState
	}
}

// --- OnEnter / OnExit (§4.2 table) -----------------------------------------

func (sm *StateMachine) onEnter(ctx context.Context, p *Peer, state SMState) {
	switch state {
	case StateIdle:
		p.Flags = 0
		p.EDR = EDRNone
		if sm.role.IsActivePeer(p.Address) {
			sm.audio.OnIdle(ctx)
		}
		sm.role.ClearActiveIfDeletable(p)
		sm.role.DeleteIdlePeers()
	case StateOpening:
		sm.notifier.NotifyConnectionState(p.Address, ConnectionConnecting)
	case StateOpened:
		p.Flags.Clear(FlagLocalSuspendPending)
		p.Flags.Clear(FlagPendingStart)
		p.Flags.Clear(FlagPendingStop)
		if sm.role.Kind == RoleSink && sm.role.ActiveAddress() == NoAddress {
			ready := NewReadySignal()
			_, _ = sm.role.SetActive(ctx, p.Address, ready)
		}
	case StateStarted:
		p.Flags.Clear(FlagRemoteSuspend)
		sm.notifier.NotifyAudioState(p.Address, AudioStarted)
	case StateClosing:
		// flush TX/RX is a transport-level side effect with no further
		// state to track; the active-peer check mirrors §4.2's table.
		_ = sm.role.IsActivePeer(p.Address)
	}
}

func (sm *StateMachine) onExit(ctx context.Context, p *Peer, state SMState) {
	switch state {
	case StateOpened:
		p.Flags.Clear(FlagPendingStart)
	}
}

// --- Idle -------------------------------------------------------------------

func (sm *StateMachine) idle(ctx context.Context, p *Peer, ev *PeerEvent) (Result, SMState) {
	switch ev.Opcode {
	case OpConnectReq, OpPending:
		p.SelfInitiated = ev.Opcode == OpConnectReq
		if !sm.role.AllowedToConnect(p.Address) {
			_ = sm.transport.Close(ctx, p.Handle)
			return Handled, StateIdle
		}
		p.MandatoryCodecPreferred = sm.notifier.QueryMandatoryCodecPreferred(ctx, p.Address)
		_ = sm.transport.Open(ctx, p.Address, p.Handle, p.SelfInitiated)
		return Handled, StateOpening

	case OpAvrcpOpen:
		p.AvrcpConnected = true
		if !sm.role.AllowedToConnect(p.Address) {
			return Handled, StateIdle
		}
		address := p.Address
		p.ArmOpenOnRcTimer(func() {
			if sm.postConnectReq != nil {
				sm.postConnectReq(address)
			}
		})
		return Handled, StateIdle

	case OpDisconnectReq:
		if p.Handle != HandleUnknown {
			_ = sm.transport.Close(ctx, p.Handle)
			if p.Role == RoleSource {
				_ = sm.transport.CloseRc(ctx, p.Handle)
			}
		}
		return Handled, StateIdle

	case OpOpen:
		if !ev.Status {
			sm.notifier.NotifyConnectionState(p.Address, ConnectionDisconnected)
			return Handled, StateIdle
		}
		if !sm.role.AllowedToConnect(p.Address) {
			sm.notifier.NotifyConnectionState(p.Address, ConnectionDisconnected)
			return Handled, StateIdle
		}
		p.EDR = ev.EDR
		sm.notifier.NotifyConnectionState(p.Address, ConnectionConnected)
		return Handled, StateOpened

	case OpOffloadStartReq:
		sm.audio.OnOffloadStarted(ctx, p.Address, false)
		return Handled, StateIdle
	}
	return Unhandled, StateIdle
}

// --- Opening ----------------------------------------------------------------

func (sm *StateMachine) opening(ctx context.Context, p *Peer, ev *PeerEvent) (Result, SMState) {
	switch ev.Opcode {
	case OpOpen:
		if ev.Status {
			p.EDR = ev.EDR
			sm.notifier.NotifyConnectionState(p.Address, ConnectionConnected)
			if p.Role == RoleSink {
				// queued AVRCP play, if any, is consumed by a later
				// AvrcpRemotePlay event once Opened.
			} else {
				_ = sm.transport.OpenRc(ctx, p.Handle)
			}
			return Handled, StateOpened
		}
		if p.AvrcpConnected {
			_ = sm.transport.CloseRc(ctx, p.Handle)
		}
		sm.notifier.NotifyConnectionState(p.Address, ConnectionDisconnected)
		return Handled, StateIdle

	case OpAclDisconnected, OpReject, OpClose:
		sm.notifier.NotifyConnectionState(p.Address, ConnectionDisconnected)
		return Handled, StateIdle

	case OpDisconnectReq:
		_ = sm.transport.Close(ctx, p.Handle)
		sm.notifier.NotifyConnectionState(p.Address, ConnectionDisconnected)
		return Handled, StateIdle

	case OpSinkConfigReq:
		if p.Role == RoleSource {
			sm.notifier.NotifySinkAudioConfig(p.Address, ev.SampleRateHz, ev.ChannelCount)
		}
		return Handled, StateOpening

	case OpConnectReq, OpPending:
		return Handled, StateOpening
	}
	return Unhandled, StateOpening
}

// --- Opened ------------------------------------------------------------------

func (sm *StateMachine) opened(ctx context.Context, p *Peer, ev *PeerEvent) (Result, SMState) {
	switch ev.Opcode {
	case OpStartStreamReq:
		p.UseLatencyMode = ev.Status
		p.Flags.Set(FlagPendingStart)
		_ = sm.transport.Start(ctx, p.Handle, p.UseLatencyMode)
		return Handled, StateOpened

	case OpStart:
		if !ev.Status || ev.Suspending {
			return Handled, StateOpened
		}
		notPendingAndNotSuspended := !p.Flags.Has(FlagPendingStart) && !p.Flags.Has(FlagRemoteSuspend)
		if p.Role == RoleSink && (notPendingAndNotSuspended || !sm.role.IsActivePeer(p.Address)) {
			p.Flags.Set(FlagLocalSuspendPending)
			_ = sm.transport.Stop(ctx, p.Handle, true)
		}
		sm.audio.OnStarted(ctx, p.Address, true)
		p.Flags.Clear(FlagPendingStart)
		return Handled, StateStarted

	case OpDisconnectReq:
		_ = sm.transport.Close(ctx, p.Handle)
		if p.Role == RoleSource {
			_ = sm.transport.CloseRc(ctx, p.Handle)
		}
		sm.notifier.NotifyConnectionState(p.Address, ConnectionDisconnecting)
		return Handled, StateClosing

	case OpClose:
		if p.Flags.Has(FlagPendingStart) {
			sm.audio.OnStarted(ctx, p.Address, false)
		} else if sm.role.IsActivePeer(p.Address) {
			sm.audio.OnStopped(ctx, p.Address)
		}
		sm.notifier.NotifyConnectionState(p.Address, ConnectionDisconnected)
		return Handled, StateIdle

	case OpReconfig:
		if ev.Status {
			if sm.role.IsActivePeer(p.Address) {
				ready := NewReadySignal()
				_ = sm.role.Session.RestartSession(ctx, p.Address, p.Address, ready)
			}
			if p.Flags.Has(FlagPendingStart) {
				_ = sm.transport.Start(ctx, p.Handle, false)
			}
			if p.Role == RoleSource {
				sm.notifier.NotifyCodecConfigSource(p.Address) // §9C: re-emit even if not active
			}
			return Handled, StateOpened
		}
		if p.Flags.Has(FlagPendingStart) {
			sm.audio.OnStarted(ctx, p.Address, false)
		}
		_ = sm.transport.Close(ctx, p.Handle)
		return Handled, StateOpened

	case OpAvrcpRemotePlay:
		p.Flags.Clear(FlagRemoteSuspend)
		return Handled, StateOpened

	case OpSetLatencyReq:
		_ = sm.transport.SetLatency(ctx, p.Handle, ev.Status)
		return Handled, StateOpened

	case OpOffloadStartReq:
		sm.audio.OnOffloadStarted(ctx, p.Address, false)
		return Handled, StateOpened
	}
	return Unhandled, StateOpened
}

// --- Started -----------------------------------------------------------------

func (sm *StateMachine) started(ctx context.Context, p *Peer, ev *PeerEvent) (Result, SMState) {
	switch ev.Opcode {
	case OpStartStreamReq:
		sm.audio.OnStarted(ctx, p.Address, true)
		return Handled, StateStarted

	case OpStopStreamReq, OpSuspendStreamReq:
		p.Flags.Set(FlagLocalSuspendPending)
		p.Flags.Clear(FlagRemoteSuspend)
		sm.audio.OnStopped(ctx, p.Address)
		_ = sm.transport.Stop(ctx, p.Handle, true)
		return Handled, StateStarted

	case OpDisconnectReq:
		_ = sm.transport.Close(ctx, p.Handle)
		if p.Role == RoleSource {
			_ = sm.transport.CloseRc(ctx, p.Handle)
		}
		sm.notifier.NotifyConnectionState(p.Address, ConnectionDisconnecting)
		return Handled, StateClosing

	case OpSuspend:
		if ev.Status {
			sm.audio.OnSuspended(ctx, p.Address)
			if !p.Flags.Has(FlagLocalSuspendPending) {
				p.Flags.Set(FlagRemoteSuspend)
				sm.notifier.NotifyAudioState(p.Address, AudioRemoteSuspend)
			} else {
				sm.notifier.NotifyAudioState(p.Address, AudioStopped)
			}
			return Handled, StateOpened
		}
		p.Flags.Clear(FlagLocalSuspendPending)
		if p.Role == RoleSink && sm.role.IsActivePeer(p.Address) {
			_ = sm.transport.SetLatency(ctx, p.Handle, p.UseLatencyMode)
		}
		return Handled, StateStarted

	case OpStop:
		p.Flags.Set(FlagPendingStop)
		p.Flags.Clear(FlagLocalSuspendPending)
		sm.audio.OnStopped(ctx, p.Address)
		sm.notifier.NotifyAudioState(p.Address, AudioStopped)
		if ev.Status {
			return Handled, StateOpened
		}
		return Handled, StateStarted

	case OpClose:
		p.Flags.Set(FlagPendingStop)
		if sm.role.IsActivePeer(p.Address) {
			sm.audio.OnStopped(ctx, p.Address)
		}
		sm.notifier.NotifyConnectionState(p.Address, ConnectionDisconnected)
		return Handled, StateIdle

	case OpOffloadStartReq:
		if p.Flags.Has(FlagLocalSuspendPending) || p.Flags.Has(FlagPendingStop) {
			sm.audio.OnOffloadStarted(ctx, p.Address, false)
			return Handled, StateStarted
		}
		_ = sm.transport.OffloadStart(ctx, p.Handle)
		return Handled, StateStarted

	case OpOffloadStartRsp:
		sm.audio.OnOffloadStarted(ctx, p.Address, ev.Status)
		return Handled, StateStarted
	}
	return Unhandled, StateStarted
}

// --- Closing -----------------------------------------------------------------

func (sm *StateMachine) closing(ctx context.Context, p *Peer, ev *PeerEvent) (Result, SMState) {
	switch ev.Opcode {
	case OpClose:
		sm.notifier.NotifyConnectionState(p.Address, ConnectionDisconnected)
		return Handled, StateIdle

	case OpStop, OpStopStreamReq:
		if sm.role.IsActivePeer(p.Address) {
			sm.audio.OnStopped(ctx, p.Address)
		}
		return Handled, StateClosing

	case OpConnectReq:
		return Handled, StateIdle
	}
	return Unhandled, StateClosing
}
