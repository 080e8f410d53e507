package diagnostics

import (
	"context"
	"testing"

	"a2dpmgr/internal/core/domain"
	"a2dpmgr/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestLogSourceCallbacks_SatisfiesPortAndDoesNotPanic(t *testing.T) {
	cbs := &LogSourceCallbacks{Logger: zap.NewNop().Sugar()}
	var _ ports.SourceCallbacks = cbs

	addr := domain.Address("AA:BB:CC:DD:EE:FF")
	assert.NotPanics(t, func() {
		cbs.ConnectionState(addr, domain.ConnectionDisconnected)
		cbs.AudioState(addr, domain.AudioStopped)
		cbs.CodecConfig(addr, ports.CodecCaps{Current: "SBC"})
	})
	assert.False(t, cbs.MandatoryCodecPreferred(context.Background(), addr))
}

func TestLogSinkCallbacks_SatisfiesPortAndDoesNotPanic(t *testing.T) {
	cbs := &LogSinkCallbacks{Logger: zap.NewNop().Sugar()}
	var _ ports.SinkCallbacks = cbs

	addr := domain.Address("AA:BB:CC:DD:EE:FF")
	assert.NotPanics(t, func() {
		cbs.ConnectionState(addr, domain.ConnectionDisconnected)
		cbs.AudioState(addr, domain.AudioStopped)
		cbs.AudioConfig(addr, 44100, 2)
	})
}
