package audiosession

import (
	"context"
	"sync"

	"a2dpmgr/internal/core/domain"
	"a2dpmgr/internal/core/ports"

	"go.uber.org/zap"
)

// LocalAudioSession is a dev/test ports.AudioSession adapter: it simulates
// the host audio flinger in-process rather than binding into a platform
// audio HAL, which is out of Go's idiomatic reach (§1 Non-goals). Every
// call logs and acknowledges immediately; RestartSession signals ready on
// a short synchronous handoff rather than waiting on real hardware.
type LocalAudioSession struct {
	mu      sync.Mutex
	active  map[domain.Address]bool
	logger  *zap.SugaredLogger
}

func NewLocalAudioSession(logger *zap.SugaredLogger) *LocalAudioSession {
	return &LocalAudioSession{
		active: make(map[domain.Address]bool),
		logger: logger,
	}
}

func (s *LocalAudioSession) StartSession(ctx context.Context, address domain.Address, ready *domain.ReadySignal) error {
	s.mu.Lock()
	s.active[address] = true
	s.mu.Unlock()
	s.logger.Infow("audio session started", "address", address)
	ready.Fire()
	return nil
}

func (s *LocalAudioSession) EndSession(ctx context.Context, address domain.Address) error {
	s.mu.Lock()
	delete(s.active, address)
	s.mu.Unlock()
	s.logger.Infow("audio session ended", "address", address)
	return nil
}

func (s *LocalAudioSession) RestartSession(ctx context.Context, from, to domain.Address, ready *domain.ReadySignal) error {
	s.mu.Lock()
	delete(s.active, from)
	s.active[to] = true
	s.mu.Unlock()
	s.logger.Infow("audio session restarted", "from", from, "to", to)
	ready.Fire()
	return nil
}

func (s *LocalAudioSession) Shutdown(ctx context.Context, ready *domain.ReadySignal) error {
	s.mu.Lock()
	s.active = make(map[domain.Address]bool)
	s.mu.Unlock()
	s.logger.Info("audio session shutdown")
	ready.Fire()
	return nil
}

func (s *LocalAudioSession) OnStarted(ctx context.Context, address domain.Address, info ports.StartInfo) bool {
	s.logger.Infow("audio session stream started", "address", address, "success", info.Success)
	return info.Success
}

func (s *LocalAudioSession) OnSuspended(ctx context.Context, address domain.Address) {
	s.logger.Infow("audio session stream suspended", "address", address)
}

func (s *LocalAudioSession) OnStopped(ctx context.Context, address domain.Address) {
	s.logger.Infow("audio session stream stopped", "address", address)
}

func (s *LocalAudioSession) OnIdle(ctx context.Context) {
	s.logger.Info("audio session idle")
}

func (s *LocalAudioSession) OnOffloadStarted(ctx context.Context, address domain.Address, success bool) {
	s.logger.Infow("audio session offload started", "address", address, "success", success)
}

func (s *LocalAudioSession) SetRemoteDelay(ctx context.Context, address domain.Address, delayTenthsMs uint16) error {
	s.logger.Infow("audio session remote delay set", "address", address, "delay_tenths_ms", delayTenthsMs)
	return nil
}

func (s *LocalAudioSession) SetTxFlush(ctx context.Context, flush bool) error {
	s.logger.Infow("audio session tx flush set", "flush", flush)
	return nil
}

func (s *LocalAudioSession) SetRxFlush(ctx context.Context, flush bool) error {
	s.logger.Infow("audio session rx flush set", "flush", flush)
	return nil
}

var _ ports.AudioSession = (*LocalAudioSession)(nil)
