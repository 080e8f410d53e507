package domain

import "fmt"

// Address is the 48-bit remote device identifier, immutable after Peer creation.
type Address string

// HandleID is an opaque lower-transport channel identifier, bound once by
// Transport registration. HandleUnknown marks a peer not yet bound.
type HandleID int32

const HandleUnknown HandleID = -1

// PeerSlot is the small integer slot allocated to a Peer within a Role,
// smallest-free-first, released on destruction.
type PeerSlot int

const PeerSlotInvalid PeerSlot = -1

// RoleKind is the stream-endpoint role a Peer (or the local device) plays.
type RoleKind int

const (
	RoleSource RoleKind = iota
	RoleSink
)

func (r RoleKind) String() string {
	if r == RoleSource {
		return "source"
	}
	return "sink"
}

// Complement returns the opposite endpoint role.
func (r RoleKind) Complement() RoleKind {
	if r == RoleSource {
		return RoleSink
	}
	return RoleSource
}

// SMState is one of the five PeerStateMachine states (§4.2).
type SMState int

const (
	StateInvalid SMState = iota
	StateIdle
	StateOpening
	StateOpened
	StateStarted
	StateClosing
)

func (s SMState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateOpening:
		return "Opening"
	case StateOpened:
		return "Opened"
	case StateStarted:
		return "Started"
	case StateClosing:
		return "Closing"
	default:
		return "Invalid"
	}
}

// EDR is the transport rate descriptor reported at connection time.
type EDR int

const (
	EDRNone EDR = iota
	EDR2Mbps
	EDR3Mbps
)

func (e EDR) String() string {
	switch e {
	case EDR2Mbps:
		return "EDR"
	case EDR3Mbps:
		return "EDR-3Mbps"
	default:
		return "None"
	}
}

// Flags is the bit-set over §3's orthogonal per-peer flag bits. These are
// deliberately not folded into SMState — see §4.2's design rationale.
type Flags uint8

const (
	FlagLocalSuspendPending Flags = 1 << 0
	FlagRemoteSuspend       Flags = 1 << 1
	FlagPendingStart        Flags = 1 << 2
	FlagPendingStop         Flags = 1 << 3
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }
func (f *Flags) Set(bit Flags)     { *f |= bit }
func (f *Flags) Clear(bit Flags)   { *f &^= bit }

func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	s := ""
	add := func(bit Flags, name string) {
		if f.Has(bit) {
			if s != "" {
				s += "|"
			}
			s += name
		}
	}
	add(FlagLocalSuspendPending, "LocalSuspendPending")
	add(FlagRemoteSuspend, "RemoteSuspend")
	add(FlagPendingStart, "PendingStart")
	add(FlagPendingStop, "PendingStop")
	return s
}

// ConnectionState is the host-facing connection lifecycle notification (§6).
type ConnectionState int

const (
	ConnectionDisconnected ConnectionState = iota
	ConnectionConnecting
	ConnectionConnected
	ConnectionDisconnecting
)

func (c ConnectionState) String() string {
	switch c {
	case ConnectionConnecting:
		return "Connecting"
	case ConnectionConnected:
		return "Connected"
	case ConnectionDisconnecting:
		return "Disconnecting"
	default:
		return "Disconnected"
	}
}

// AudioState is the host-facing streaming notification (§6).
type AudioState int

const (
	AudioStopped AudioState = iota
	AudioStarted
	AudioRemoteSuspend
)

func (a AudioState) String() string {
	switch a {
	case AudioStarted:
		return "Started"
	case AudioRemoteSuspend:
		return "RemoteSuspend"
	default:
		return "Stopped"
	}
}

// Result is the outcome of a PeerStateMachine handler for a given event,
// used purely for the Metrics unhandled-event counter (§4.2).
type Result int

const (
	Handled Result = iota
	Unhandled
)

// ApiStatus is the tri-state API call result (§7).
type ApiStatus int

const (
	StatusOk ApiStatus = iota
	StatusNotReady
	StatusInvalidParam
)

func (s ApiStatus) String() string {
	switch s {
	case StatusNotReady:
		return "NotReady"
	case StatusInvalidParam:
		return "InvalidParam"
	default:
		return "Ok"
	}
}

func (a Address) String() string { return string(a) }

// NoAddress is the empty active-address sentinel (§4.4).
const NoAddress Address = ""

func (h HandleID) String() string {
	if h == HandleUnknown {
		return "unknown"
	}
	return fmt.Sprintf("0x%x", int32(h))
}
