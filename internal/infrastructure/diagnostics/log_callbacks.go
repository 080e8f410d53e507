package diagnostics

import (
	"context"

	"a2dpmgr/internal/core/domain"
	"a2dpmgr/internal/core/ports"

	"go.uber.org/zap"
)

// LogSourceCallbacks and LogSinkCallbacks are the host callback tables used
// when a2dpmgr runs standalone (no embedding application registered its
// own): every notification is just logged at info level, and codec/sample
// queries take the conservative default.
type LogSourceCallbacks struct {
	Logger *zap.SugaredLogger
}

func (c *LogSourceCallbacks) ConnectionState(address domain.Address, state domain.ConnectionState) {
	c.Logger.Infow("source connection state", "address", address, "state", state.String())
}

func (c *LogSourceCallbacks) AudioState(address domain.Address, state domain.AudioState) {
	c.Logger.Infow("source audio state", "address", address, "state", state.String())
}

func (c *LogSourceCallbacks) CodecConfig(address domain.Address, caps ports.CodecCaps) {
	c.Logger.Infow("source codec config", "address", address)
}

func (c *LogSourceCallbacks) MandatoryCodecPreferred(ctx context.Context, address domain.Address) bool {
	return false
}

var _ ports.SourceCallbacks = (*LogSourceCallbacks)(nil)

type LogSinkCallbacks struct {
	Logger *zap.SugaredLogger
}

func (c *LogSinkCallbacks) ConnectionState(address domain.Address, state domain.ConnectionState) {
	c.Logger.Infow("sink connection state", "address", address, "state", state.String())
}

func (c *LogSinkCallbacks) AudioState(address domain.Address, state domain.AudioState) {
	c.Logger.Infow("sink audio state", "address", address, "state", state.String())
}

func (c *LogSinkCallbacks) AudioConfig(address domain.Address, sampleRateHz, channelCount int) {
	c.Logger.Infow("sink audio config", "address", address, "sample_rate_hz", sampleRateHz, "channel_count", channelCount)
}

var _ ports.SinkCallbacks = (*LogSinkCallbacks)(nil)
