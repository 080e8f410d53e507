package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"a2dpmgr/internal/core/domain"
	"a2dpmgr/internal/core/ports"
	"a2dpmgr/pkg/circuitbreaker"
	"a2dpmgr/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockAudioSession is a testify/mock-based ports.AudioSession double used
// to inject the transient failures AudioSessionGateway is grounded to
// retry/trip on, per SPEC_FULL.md §1/§7's note that AudioSession "can refuse
// or time out".
type mockAudioSession struct {
	mock.Mock
}

func (m *mockAudioSession) StartSession(ctx context.Context, address domain.Address, ready *domain.ReadySignal) error {
	return m.Called(ctx, address, ready).Error(0)
}
func (m *mockAudioSession) EndSession(ctx context.Context, address domain.Address) error {
	return m.Called(ctx, address).Error(0)
}
func (m *mockAudioSession) RestartSession(ctx context.Context, from, to domain.Address, ready *domain.ReadySignal) error {
	return m.Called(ctx, from, to, ready).Error(0)
}
func (m *mockAudioSession) Shutdown(ctx context.Context, ready *domain.ReadySignal) error {
	return m.Called(ctx, ready).Error(0)
}
func (m *mockAudioSession) OnStarted(ctx context.Context, address domain.Address, info ports.StartInfo) bool {
	return m.Called(ctx, address, info).Bool(0)
}
func (m *mockAudioSession) OnSuspended(ctx context.Context, address domain.Address) { m.Called(ctx, address) }
func (m *mockAudioSession) OnStopped(ctx context.Context, address domain.Address)   { m.Called(ctx, address) }
func (m *mockAudioSession) OnIdle(ctx context.Context)                              { m.Called(ctx) }
func (m *mockAudioSession) OnOffloadStarted(ctx context.Context, address domain.Address, success bool) {
	m.Called(ctx, address, success)
}
func (m *mockAudioSession) SetRemoteDelay(ctx context.Context, address domain.Address, delayTenthsMs uint16) error {
	return m.Called(ctx, address, delayTenthsMs).Error(0)
}
func (m *mockAudioSession) SetTxFlush(ctx context.Context, flush bool) error {
	return m.Called(ctx, flush).Error(0)
}
func (m *mockAudioSession) SetRxFlush(ctx context.Context, flush bool) error {
	return m.Called(ctx, flush).Error(0)
}

var _ ports.AudioSession = (*mockAudioSession)(nil)

func noRetryConfig() retry.Config {
	return retry.Config{Enabled: false}
}

func fastRetryConfig(maxAttempts int) retry.Config {
	return retry.Config{
		Enabled:      true,
		MaxAttempts:  maxAttempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func lowThresholdBreakerConfig() circuitbreaker.Config {
	return circuitbreaker.Config{
		FailureThreshold:    1,
		SuccessThreshold:    1,
		Timeout:             time.Hour, // never auto-recovers mid-test
		MaxRequestsHalfOpen: 1,
	}
}

func TestAudioSessionGatewayStartSessionPassesThrough(t *testing.T) {
	session := &mockAudioSession{}
	session.On("StartSession", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	g := NewAudioSessionGateway(session, noRetryConfig(), lowThresholdBreakerConfig(), zap.NewNop().Sugar())
	err := g.StartSession(context.Background(), domain.Address("A"), domain.NewReadySignal())

	require.NoError(t, err)
	session.AssertCalled(t, "StartSession", mock.Anything, domain.Address("A"), mock.Anything)
}

func TestAudioSessionGatewayRetriesTransientFailure(t *testing.T) {
	session := &mockAudioSession{}
	boom := errors.New("transient audio backend error")
	session.On("EndSession", mock.Anything, mock.Anything).Return(boom).Once()
	session.On("EndSession", mock.Anything, mock.Anything).Return(nil).Once()

	g := NewAudioSessionGateway(session, fastRetryConfig(3), circuitbreaker.DefaultConfig(), zap.NewNop().Sugar())
	err := g.EndSession(context.Background(), domain.Address("A"))

	require.NoError(t, err)
	session.AssertNumberOfCalls(t, "EndSession", 2)
}

// TestAudioSessionGatewayTripsPeerBreaker exercises the per-peer circuit
// breaker: peerBreaker always builds its CircuitBreaker from
// circuitbreaker.DefaultConfig() (FailureThreshold=5) regardless of the
// cbCfg passed to NewAudioSessionGateway, which only tunes the global
// breaker used by Shutdown. After 5 failures the breaker for that address
// trips, so a further call is rejected without reaching the session.
func TestAudioSessionGatewayTripsPeerBreaker(t *testing.T) {
	session := &mockAudioSession{}
	boom := errors.New("persistent audio backend error")
	session.On("EndSession", mock.Anything, domain.Address("A")).Return(boom)

	g := NewAudioSessionGateway(session, noRetryConfig(), lowThresholdBreakerConfig(), zap.NewNop().Sugar())

	threshold := circuitbreaker.DefaultConfig().FailureThreshold
	for i := 0; i < threshold; i++ {
		assert.Error(t, g.EndSession(context.Background(), domain.Address("A")))
	}
	session.AssertNumberOfCalls(t, "EndSession", threshold)

	assert.Error(t, g.EndSession(context.Background(), domain.Address("A")))
	session.AssertNumberOfCalls(t, "EndSession", threshold)
}

// TestAudioSessionGatewayPeerBreakersAreIndependent ensures one peer's
// failures never trip another peer's breaker (guardedPeer keys per-address).
func TestAudioSessionGatewayPeerBreakersAreIndependent(t *testing.T) {
	session := &mockAudioSession{}
	boom := errors.New("persistent audio backend error")
	session.On("EndSession", mock.Anything, domain.Address("A")).Return(boom)
	session.On("EndSession", mock.Anything, domain.Address("B")).Return(nil)

	g := NewAudioSessionGateway(session, noRetryConfig(), lowThresholdBreakerConfig(), zap.NewNop().Sugar())

	threshold := circuitbreaker.DefaultConfig().FailureThreshold
	for i := 0; i < threshold; i++ {
		assert.Error(t, g.EndSession(context.Background(), domain.Address("A")))
	}
	assert.NoError(t, g.EndSession(context.Background(), domain.Address("B")))
}

func TestAudioSessionGatewayShutdownUsesGlobalBreaker(t *testing.T) {
	session := &mockAudioSession{}
	session.On("Shutdown", mock.Anything, mock.Anything).Return(nil)

	g := NewAudioSessionGateway(session, noRetryConfig(), lowThresholdBreakerConfig(), zap.NewNop().Sugar())
	err := g.Shutdown(context.Background(), domain.NewReadySignal())

	require.NoError(t, err)
	session.AssertCalled(t, "Shutdown", mock.Anything, mock.Anything)
}

func TestSessionActivatorAdapterShutdownAlwaysFiresReady(t *testing.T) {
	session := &mockAudioSession{}
	session.On("Shutdown", mock.Anything, mock.Anything).Return(errors.New("shutdown refused"))

	g := NewAudioSessionGateway(session, noRetryConfig(), lowThresholdBreakerConfig(), zap.NewNop().Sugar())
	adapter := &SessionActivatorAdapter{Gateway: g}

	ready := domain.NewReadySignal()
	adapter.Shutdown(context.Background(), ready)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, ready.Wait(ctx), "ready must fire even when the backend refuses shutdown")
}

func TestAudioEventsAdapterWrapsStartInfo(t *testing.T) {
	session := &mockAudioSession{}
	session.On("OnStarted", mock.Anything, domain.Address("A"), ports.StartInfo{Success: true}).Return(true)

	g := NewAudioSessionGateway(session, noRetryConfig(), lowThresholdBreakerConfig(), zap.NewNop().Sugar())
	adapter := &AudioEventsAdapter{Gateway: g}

	adapter.OnStarted(context.Background(), domain.Address("A"), true)
	session.AssertCalled(t, "OnStarted", mock.Anything, domain.Address("A"), ports.StartInfo{Success: true})
}
