package ports

import (
	"context"

	"a2dpmgr/internal/core/domain"
)

// CodecPrefs is the host's requested codec configuration for configure_codec (§4.6).
type CodecPrefs struct {
	MandatoryOnly bool
	Priorities    []string
}

// OffloadCaps carries the platform flags passed to init_source (§4.6, §6):
// hardware-offload capability plus the delay-report/absolute-volume feature
// gates that condition the Source's Transport.Enable feature bits. The
// bit-format of the offload capability payload itself is out of scope (§1
// Non-goals).
type OffloadCaps struct {
	Supported bool
	Disabled  bool

	DelayReportingEnabled      bool
	AvrcpAbsoluteVolumeEnabled bool
}

// Api is the C6 external operations surface (§4.6). Each method returns
// the tri-state ApiStatus (§7) rather than a bare error, since an admission
// or not-ready outcome is an expected, not exceptional, result.
type Api interface {
	InitSource(ctx context.Context, cbs SourceCallbacks, maxPeers int, codecPriorities []string, offload OffloadCaps) domain.ApiStatus
	InitSink(ctx context.Context, cbs SinkCallbacks, maxPeers int) domain.ApiStatus
	CleanupSource(ctx context.Context)
	CleanupSink(ctx context.Context)

	Connect(ctx context.Context, role domain.RoleKind, address domain.Address) domain.ApiStatus
	Disconnect(ctx context.Context, role domain.RoleKind, address domain.Address) domain.ApiStatus

	SetActiveSource(ctx context.Context, address domain.Address) bool
	SetActiveSink(ctx context.Context, address domain.Address) bool

	SetSilence(ctx context.Context, role domain.RoleKind, address domain.Address, silence bool) domain.ApiStatus
	ConfigureCodec(ctx context.Context, address domain.Address, prefs CodecPrefs) domain.ApiStatus

	StreamStart(ctx context.Context, role domain.RoleKind) domain.ApiStatus
	StreamStop(ctx context.Context, role domain.RoleKind) domain.ApiStatus
	StreamSuspend(ctx context.Context, role domain.RoleKind) domain.ApiStatus
	StreamStartOffload(ctx context.Context, role domain.RoleKind) domain.ApiStatus

	SetLowLatency(ctx context.Context, role domain.RoleKind, low bool) domain.ApiStatus
	SetAudioDelay(ctx context.Context, role domain.RoleKind, address domain.Address, delayTenthsMs uint16) domain.ApiStatus

	Dump(ctx context.Context, role domain.RoleKind) []PeerDump
}

// EventRouter is the C5 single-control-thread dispatcher (§4.5).
type EventRouter interface {
	PostTransportEvent(remoteRole domain.RoleKind, raw TransportEvent)
	PostLocalEvent(role domain.RoleKind, address domain.Address, opcode domain.Opcode)
	// PostLocalValueEvent is PostLocalEvent for the handful of host-originated
	// opcodes whose handler reads PeerEvent.Status as a flag (OpStartStreamReq's
	// use_latency_mode, OpSetLatencyReq's low).
	PostLocalValueEvent(role domain.RoleKind, address domain.Address, opcode domain.Opcode, status bool)
	PostMediaEvent(address domain.Address, payload []byte)
	Run(ctx context.Context)
	Stop()
}
