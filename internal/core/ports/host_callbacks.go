package ports

import (
	"context"

	"a2dpmgr/internal/core/domain"
)

// CodecCaps describes a Source's current/local/selectable codec
// configuration for the host-facing CodecConfig notification (§6).
type CodecCaps struct {
	Current        string
	LocalCaps      []string
	SelectableCaps []string
}

// SourceCallbacks is the host callback table for the Source role (§4.6, §6).
// Set once per role at init; calls are dispatched to a dedicated binding
// goroutine so the control thread is never blocked on host code (§5, §7).
type SourceCallbacks interface {
	ConnectionState(address domain.Address, state domain.ConnectionState)
	AudioState(address domain.Address, state domain.AudioState)
	CodecConfig(address domain.Address, caps CodecCaps)
	MandatoryCodecPreferred(ctx context.Context, address domain.Address) bool
}

// SinkCallbacks is the host callback table for the Sink role.
type SinkCallbacks interface {
	ConnectionState(address domain.Address, state domain.ConnectionState)
	AudioState(address domain.Address, state domain.AudioState)
	AudioConfig(address domain.Address, sampleRateHz, channelCount int)
}
