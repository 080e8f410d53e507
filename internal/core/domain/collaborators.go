package domain

import "context"

// TransportCommands is the subset of the lower AVDTP/AVRCP Transport
// contract (§6) the PeerStateMachine issues commands against. The fuller
// ports.Transport interface (which also carries Register/Deregister/
// Enable/Disable, not needed by transition logic itself) structurally
// satisfies this interface — no import of ports is required here, keeping
// the domain package dependency-free per the hexagonal layering (§9).
type TransportCommands interface {
	Open(ctx context.Context, address Address, handle HandleID, isInitiator bool) error
	Close(ctx context.Context, handle HandleID) error
	Start(ctx context.Context, handle HandleID, useLatencyMode bool) error
	Stop(ctx context.Context, handle HandleID, suspend bool) error
	OpenRc(ctx context.Context, handle HandleID) error
	CloseRc(ctx context.Context, handle HandleID) error
	SetLatency(ctx context.Context, handle HandleID, low bool) error
	OffloadStart(ctx context.Context, handle HandleID) error
}

// HostNotifier is the subset of the host callback interface (§6) the state
// machine emits notifications through directly. Source/Sink-only calls are
// guarded internally by the caller checking the peer's role.
type HostNotifier interface {
	NotifyConnectionState(address Address, state ConnectionState)
	NotifyAudioState(address Address, state AudioState)
	NotifyCodecConfigSource(address Address)
	NotifySinkAudioConfig(address Address, sampleRateHz, channelCount int)
	QueryMandatoryCodecPreferred(ctx context.Context, address Address) bool
}

// AudioSessionEvents is the subset of the AudioSession collaborator (§6)
// that transition handlers call directly for per-event acknowledgement
// (start/stop/suspend acks), as distinct from the active-peer-wide
// RestartSession/Shutdown surface on SessionActivator.
type AudioSessionEvents interface {
	OnStarted(ctx context.Context, address Address, success bool)
	OnStopped(ctx context.Context, address Address)
	OnSuspended(ctx context.Context, address Address)
	OnIdle(ctx context.Context)
	OnOffloadStarted(ctx context.Context, address Address, success bool)
}
