package domain

import "context"

// SessionActivator is the minimal audio-session surface Role needs for the
// active-peer protocol (§4.4). It is satisfied by the
// AudioSessionGateway (C7) in the services layer, which adds retry and
// circuit-breaker semantics on top of the full ports.AudioSession
// collaborator contract (§6) — Role itself stays agnostic of those
// concerns and only drives the state transition.
type SessionActivator interface {
	// RestartSession ends any session with from (if non-empty) and starts
	// one with to, signalling ready on completion. Returns an error if the
	// audio backend refuses or times out (§1, §7).
	RestartSession(ctx context.Context, from, to Address, ready *ReadySignal) error

	// Shutdown ends whatever session is active, signalling ready on
	// completion or after the deadline carried by ctx, whichever is first
	// (§4.4 step 2: "1-second deadline... logged but not fatal").
	Shutdown(ctx context.Context, ready *ReadySignal)
}
