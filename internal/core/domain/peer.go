package domain

import "time"

// OpenOnRcTimeout is the one-shot AVRCP-without-AV upgrade window (§3, §4.2).
const OpenOnRcTimeout = 2 * time.Second

// Peer is one remote device known to a Role: identity, flags, timers, and
// handle bindings (§3, C3). The state machine itself lives in
// StateMachine; Peer owns only cheap accessors plus the fields the
// transition tables read and write directly.
type Peer struct {
	Address  Address
	Role     RoleKind // the REMOTE's stream-endpoint role; local role is its complement
	Handle   HandleID
	Slot     PeerSlot
	SMState  SMState
	Previous SMState // StateInvalid until the first transition, including an Idle-to-Idle re-entry

	Flags Flags
	EDR   EDR

	SelfInitiated           bool
	Silenced                bool
	DelayReport             uint16
	MandatoryCodecPreferred bool
	UseLatencyMode          bool

	// CodecPriorities/MandatoryCodecOnly record the host's configure_codec
	// preference for this peer (§4.6); seeded from the role's
	// DefaultCodecPriorities on creation, overwritten by ConfigureCodec.
	CodecPriorities    []string
	MandatoryCodecOnly bool

	AvrcpConnected bool // §9C: RC leg up, independent of the AV leg

	OpenOnRcTimer *time.Timer
	timerCancel   chan struct{}
}

// NewPeer constructs a freshly-created, not-yet-deletable peer (§3 invariant 4).
func NewPeer(address Address, remoteRole RoleKind, handle HandleID, slot PeerSlot) *Peer {
	return &Peer{
		Address:  address,
		Role:     remoteRole,
		Handle:   handle,
		Slot:     slot,
		SMState:  StateIdle,
		Previous: StateInvalid,
	}
}

// CanBeDeleted is true iff sm_state == Idle and previous_state != Invalid (§4.3).
func (p *Peer) CanBeDeleted() bool {
	return p.SMState == StateIdle && p.Previous != StateInvalid
}

// IsConnected is true for the states in which the peer has an open AV leg.
func (p *Peer) IsConnected() bool {
	return p.SMState == StateOpened || p.SMState == StateStarted
}

// IsStreaming is true only while actively started.
func (p *Peer) IsStreaming() bool {
	return p.SMState == StateStarted
}

// IsAvrcpOnly is true for a peer whose RC leg is up but whose AV leg never
// connected (§9C dump diagnostic).
func (p *Peer) IsAvrcpOnly() bool {
	return p.AvrcpConnected && !p.IsConnected()
}

// StreamReady is the media-thread poll predicate from §4.2's design
// rationale: Started with none of {LocalSuspendPending, RemoteSuspend,
// PendingStop} set.
func (p *Peer) StreamReady() bool {
	if p.SMState != StateStarted {
		return false
	}
	return !p.Flags.Has(FlagLocalSuspendPending) &&
		!p.Flags.Has(FlagRemoteSuspend) &&
		!p.Flags.Has(FlagPendingStop)
}

// ArmOpenOnRcTimer starts the 2-second AVRCP-without-AV upgrade timer. fire
// is invoked on a separate goroutine if the timer is not cancelled first.
// Timer.Stop's return value is not consulted, so a fire that is already
// running when CancelOpenOnRcTimer is called still completes. fire posts an
// ordinary ConnectReq through the EventRouter, which the state machine
// handles according to the peer's state when it is dispatched.
func (p *Peer) ArmOpenOnRcTimer(fire func()) {
	p.CancelOpenOnRcTimer()
	p.OpenOnRcTimer = time.AfterFunc(OpenOnRcTimeout, fire)
}

// CancelOpenOnRcTimer stops the timer if armed; safe to call repeatedly and
// from peer destruction.
func (p *Peer) CancelOpenOnRcTimer() {
	if p.OpenOnRcTimer != nil {
		p.OpenOnRcTimer.Stop()
		p.OpenOnRcTimer = nil
	}
}
