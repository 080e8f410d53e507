package domain

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// fakeTransport is a testify/mock-based domain.TransportCommands double,
// used so PeerStateMachine tests never depend on a real AVDTP/AVRCP
// transport adapter.
type fakeTransport struct {
	mock.Mock
}

func newFakeTransport() *fakeTransport {
	ft := &fakeTransport{}
	ft.On("Open", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	ft.On("Close", mock.Anything, mock.Anything).Return(nil).Maybe()
	ft.On("Start", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	ft.On("Stop", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	ft.On("OpenRc", mock.Anything, mock.Anything).Return(nil).Maybe()
	ft.On("CloseRc", mock.Anything, mock.Anything).Return(nil).Maybe()
	ft.On("SetLatency", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	ft.On("OffloadStart", mock.Anything, mock.Anything).Return(nil).Maybe()
	return ft
}

func (f *fakeTransport) Open(ctx context.Context, address Address, handle HandleID, isInitiator bool) error {
	return f.Called(ctx, address, handle, isInitiator).Error(0)
}
func (f *fakeTransport) Close(ctx context.Context, handle HandleID) error {
	return f.Called(ctx, handle).Error(0)
}
func (f *fakeTransport) Start(ctx context.Context, handle HandleID, useLatencyMode bool) error {
	return f.Called(ctx, handle, useLatencyMode).Error(0)
}
func (f *fakeTransport) Stop(ctx context.Context, handle HandleID, suspend bool) error {
	return f.Called(ctx, handle, suspend).Error(0)
}
func (f *fakeTransport) OpenRc(ctx context.Context, handle HandleID) error {
	return f.Called(ctx, handle).Error(0)
}
func (f *fakeTransport) CloseRc(ctx context.Context, handle HandleID) error {
	return f.Called(ctx, handle).Error(0)
}
func (f *fakeTransport) SetLatency(ctx context.Context, handle HandleID, low bool) error {
	return f.Called(ctx, handle, low).Error(0)
}
func (f *fakeTransport) OffloadStart(ctx context.Context, handle HandleID) error {
	return f.Called(ctx, handle).Error(0)
}

var _ TransportCommands = (*fakeTransport)(nil)

// fakeNotifier is a testify/mock-based domain.HostNotifier double that also
// records the values it was last called with, since most assertions here
// care about the argument, not just the call count.
type fakeNotifier struct {
	mock.Mock

	lastConnectionState ConnectionState
	connectionStates    []ConnectionState
	lastAudioState      AudioState
	audioStates         []AudioState
	sinkAudioConfigs    []sinkAudioConfigCall
	mandatoryPreferred  bool
}

type sinkAudioConfigCall struct {
	address      Address
	sampleRateHz int
	channelCount int
}

func newFakeNotifier() *fakeNotifier {
	fn := &fakeNotifier{}
	fn.On("NotifyConnectionState", mock.Anything, mock.Anything).Maybe()
	fn.On("NotifyAudioState", mock.Anything, mock.Anything).Maybe()
	fn.On("NotifyCodecConfigSource", mock.Anything).Maybe()
	fn.On("NotifySinkAudioConfig", mock.Anything, mock.Anything, mock.Anything).Maybe()
	fn.On("QueryMandatoryCodecPreferred", mock.Anything, mock.Anything).Maybe()
	return fn
}

func (f *fakeNotifier) NotifyConnectionState(address Address, state ConnectionState) {
	f.Called(address, state)
	f.lastConnectionState = state
	f.connectionStates = append(f.connectionStates, state)
}

func (f *fakeNotifier) NotifyAudioState(address Address, state AudioState) {
	f.Called(address, state)
	f.lastAudioState = state
	f.audioStates = append(f.audioStates, state)
}

func (f *fakeNotifier) NotifyCodecConfigSource(address Address) {
	f.Called(address)
}

func (f *fakeNotifier) NotifySinkAudioConfig(address Address, sampleRateHz, channelCount int) {
	f.Called(address, sampleRateHz, channelCount)
	f.sinkAudioConfigs = append(f.sinkAudioConfigs, sinkAudioConfigCall{address, sampleRateHz, channelCount})
}

func (f *fakeNotifier) QueryMandatoryCodecPreferred(ctx context.Context, address Address) bool {
	f.Called(ctx, address)
	return f.mandatoryPreferred
}

var _ HostNotifier = (*fakeNotifier)(nil)

// fakeAudioEvents is a testify/mock-based domain.AudioSessionEvents double.
type fakeAudioEvents struct {
	mock.Mock
}

func newFakeAudioEvents() *fakeAudioEvents {
	fa := &fakeAudioEvents{}
	fa.On("OnStarted", mock.Anything, mock.Anything, mock.Anything).Maybe()
	fa.On("OnStopped", mock.Anything, mock.Anything).Maybe()
	fa.On("OnSuspended", mock.Anything, mock.Anything).Maybe()
	fa.On("OnIdle", mock.Anything).Maybe()
	fa.On("OnOffloadStarted", mock.Anything, mock.Anything, mock.Anything).Maybe()
	return fa
}

func (f *fakeAudioEvents) OnStarted(ctx context.Context, address Address, success bool) {
	f.Called(ctx, address, success)
}
func (f *fakeAudioEvents) OnStopped(ctx context.Context, address Address) {
	f.Called(ctx, address)
}
func (f *fakeAudioEvents) OnSuspended(ctx context.Context, address Address) {
	f.Called(ctx, address)
}
func (f *fakeAudioEvents) OnIdle(ctx context.Context) {
	f.Called(ctx)
}
func (f *fakeAudioEvents) OnOffloadStarted(ctx context.Context, address Address, success bool) {
	f.Called(ctx, address, success)
}

var _ AudioSessionEvents = (*fakeAudioEvents)(nil)

// fakeSessionActivator is a testify/mock-based domain.SessionActivator
// double for Role tests, standing in for AudioSessionGateway.
type fakeSessionActivator struct {
	mock.Mock

	restartErr error
}

func newFakeSessionActivator() *fakeSessionActivator {
	fs := &fakeSessionActivator{}
	fs.On("RestartSession", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Maybe()
	fs.On("Shutdown", mock.Anything, mock.Anything).Maybe()
	return fs
}

func (f *fakeSessionActivator) RestartSession(ctx context.Context, from, to Address, ready *ReadySignal) error {
	f.Called(ctx, from, to, ready)
	ready.Fire()
	return f.restartErr
}

func (f *fakeSessionActivator) Shutdown(ctx context.Context, ready *ReadySignal) {
	f.Called(ctx, ready)
	ready.Fire()
}

var _ SessionActivator = (*fakeSessionActivator)(nil)
