package services

import (
	"context"
	"errors"
	"testing"

	"a2dpmgr/internal/core/domain"
	"a2dpmgr/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockTransport struct {
	mock.Mock
}

func (m *mockTransport) Register(ctx context.Context, role domain.RoleKind, serviceName string, slot domain.PeerSlot, uuid string) (domain.HandleID, error) {
	args := m.Called(ctx, role, serviceName, slot, uuid)
	h, _ := args.Get(0).(domain.HandleID)
	return h, args.Error(1)
}
func (m *mockTransport) Deregister(ctx context.Context, handle domain.HandleID) error {
	return m.Called(ctx, handle).Error(0)
}
func (m *mockTransport) Enable(ctx context.Context, features ports.FeatureBit, events chan<- ports.TransportEvent) error {
	return m.Called(ctx, features, events).Error(0)
}
func (m *mockTransport) Disable(ctx context.Context) error { return m.Called(ctx).Error(0) }
func (m *mockTransport) Open(ctx context.Context, address domain.Address, handle domain.HandleID, isInitiator bool) error {
	return m.Called(ctx, address, handle, isInitiator).Error(0)
}
func (m *mockTransport) Close(ctx context.Context, handle domain.HandleID) error {
	return m.Called(ctx, handle).Error(0)
}
func (m *mockTransport) Start(ctx context.Context, handle domain.HandleID, useLatencyMode bool) error {
	return m.Called(ctx, handle, useLatencyMode).Error(0)
}
func (m *mockTransport) Stop(ctx context.Context, handle domain.HandleID, suspend bool) error {
	return m.Called(ctx, handle, suspend).Error(0)
}
func (m *mockTransport) OpenRc(ctx context.Context, handle domain.HandleID) error {
	return m.Called(ctx, handle).Error(0)
}
func (m *mockTransport) CloseRc(ctx context.Context, handle domain.HandleID) error {
	return m.Called(ctx, handle).Error(0)
}
func (m *mockTransport) SetLatency(ctx context.Context, handle domain.HandleID, low bool) error {
	return m.Called(ctx, handle, low).Error(0)
}
func (m *mockTransport) OffloadStart(ctx context.Context, handle domain.HandleID) error {
	return m.Called(ctx, handle).Error(0)
}

var _ ports.Transport = (*mockTransport)(nil)

type mockEventRouter struct {
	mock.Mock
}

func (m *mockEventRouter) PostTransportEvent(remoteRole domain.RoleKind, raw ports.TransportEvent) {
	m.Called(remoteRole, raw)
}
func (m *mockEventRouter) PostLocalEvent(role domain.RoleKind, address domain.Address, opcode domain.Opcode) {
	m.Called(role, address, opcode)
}
func (m *mockEventRouter) PostLocalValueEvent(role domain.RoleKind, address domain.Address, opcode domain.Opcode, status bool) {
	m.Called(role, address, opcode, status)
}
func (m *mockEventRouter) PostMediaEvent(address domain.Address, payload []byte) {
	m.Called(address, payload)
}
func (m *mockEventRouter) Run(ctx context.Context) { m.Called(ctx) }
func (m *mockEventRouter) Stop()                   { m.Called() }

var _ ports.EventRouter = (*mockEventRouter)(nil)

type apiFixture struct {
	source, sink *domain.Role
	transport    *mockTransport
	router       *mockEventRouter
	audio        *mockAudioSession
	api          *ApiService
}

func newAPIFixture(t *testing.T, maxPeers int) *apiFixture {
	f := &apiFixture{
		source:    domain.NewRole(domain.RoleSource, maxPeers, &fakeSessionActivatorForRouter{}),
		sink:      domain.NewRole(domain.RoleSink, maxPeers, &fakeSessionActivatorForRouter{}),
		transport: &mockTransport{},
		router:    &mockEventRouter{},
		audio:     &mockAudioSession{},
	}
	f.api = NewApiService(f.source, f.sink, NewSourceNotifier(f.source, zap.NewNop().Sugar()), NewSinkNotifier(zap.NewNop().Sugar()), f.transport, f.router, f.audio, zap.NewNop().Sugar())
	return f
}

func TestInitSourceRejectsNilCallbacksOrNonPositiveMaxPeers(t *testing.T) {
	f := newAPIFixture(t, 2)
	assert.Equal(t, domain.StatusInvalidParam, f.api.InitSource(context.Background(), nil, 2, nil, ports.OffloadCaps{}))
	assert.Equal(t, domain.StatusInvalidParam, f.api.InitSource(context.Background(), &mockSourceCallbacks{}, 0, nil, ports.OffloadCaps{}))
}

func TestInitSourceRegistersAndEnablesTransport(t *testing.T) {
	f := newAPIFixture(t, 2)
	f.transport.On("Register", mock.Anything, domain.RoleSource, mock.Anything, mock.Anything, mock.Anything).
		Return(domain.HandleID(7), nil)
	f.transport.On("Enable", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.transport.On("Disable", mock.Anything).Return(nil)
	f.transport.On("Deregister", mock.Anything, domain.HandleID(7)).Return(nil)

	status := f.api.InitSource(context.Background(), &mockSourceCallbacks{}, 3, []string{"sbc"}, ports.OffloadCaps{Supported: true})

	require.Equal(t, domain.StatusOk, status)
	assert.Equal(t, 3, f.source.MaxPeers)
	assert.True(t, f.source.Enabled)
	f.api.CleanupSource(context.Background())
}

// TestInitSourceFeatureBitsFollowPlatformFlags is the maintainer-review
// fix: RCTG|Metadata are always enabled, DelayReport is conditioned on
// delay_reporting_enabled, and RCCT|AdvCtrl|Browse are conditioned on
// avrcp_absolute_volume_enabled. The offload flags do not affect the bits.
func TestInitSourceFeatureBitsFollowPlatformFlags(t *testing.T) {
	f := newAPIFixture(t, 2)
	f.transport.On("Register", mock.Anything, domain.RoleSource, mock.Anything, mock.Anything, mock.Anything).
		Return(domain.HandleID(1), nil)

	var gotFeatures ports.FeatureBit
	f.transport.On("Enable", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			gotFeatures = args.Get(1).(ports.FeatureBit)
		}).
		Return(nil)
	f.transport.On("Disable", mock.Anything).Return(nil)
	f.transport.On("Deregister", mock.Anything, domain.HandleID(1)).Return(nil)

	status := f.api.InitSource(context.Background(), &mockSourceCallbacks{}, 1, nil, ports.OffloadCaps{
		DelayReportingEnabled:      true,
		AvrcpAbsoluteVolumeEnabled: false,
	})
	require.Equal(t, domain.StatusOk, status)

	assert.Equal(t, ports.FeatureRCTG|ports.FeatureMetadata|ports.FeatureDelayReport, gotFeatures)
	assert.False(t, gotFeatures&ports.FeatureRCCT != 0)
	f.api.CleanupSource(context.Background())
}

func TestInitSourceReturnsNotReadyWhenRegisterFails(t *testing.T) {
	f := newAPIFixture(t, 2)
	f.transport.On("Register", mock.Anything, domain.RoleSource, mock.Anything, mock.Anything, mock.Anything).
		Return(domain.HandleID(0), errors.New("registration refused"))

	status := f.api.InitSource(context.Background(), &mockSourceCallbacks{}, 1, nil, ports.OffloadCaps{})

	assert.Equal(t, domain.StatusNotReady, status)
	assert.False(t, f.source.Enabled)
}

func TestInitSinkRejectsNilCallbacksOrNonPositiveMaxPeers(t *testing.T) {
	f := newAPIFixture(t, 2)
	assert.Equal(t, domain.StatusInvalidParam, f.api.InitSink(context.Background(), nil, 1))
	assert.Equal(t, domain.StatusInvalidParam, f.api.InitSink(context.Background(), &mockSinkCallbacks{}, -1))
}

func TestCleanupSourceDisablesRoleAndDeregistersHandle(t *testing.T) {
	f := newAPIFixture(t, 2)
	f.transport.On("Register", mock.Anything, domain.RoleSource, mock.Anything, mock.Anything, mock.Anything).
		Return(domain.HandleID(9), nil)
	f.transport.On("Enable", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.transport.On("Disable", mock.Anything).Return(nil)
	f.transport.On("Deregister", mock.Anything, domain.HandleID(9)).Return(nil)
	require.Equal(t, domain.StatusOk, f.api.InitSource(context.Background(), &mockSourceCallbacks{}, 1, nil, ports.OffloadCaps{}))

	f.api.CleanupSource(context.Background())

	assert.False(t, f.source.Enabled)
	f.transport.AssertCalled(t, "Deregister", mock.Anything, domain.HandleID(9))
}

func TestConnectRejectsWhenRoleDisabledOrAddressEmpty(t *testing.T) {
	f := newAPIFixture(t, 2)
	assert.Equal(t, domain.StatusNotReady, f.api.Connect(context.Background(), domain.RoleSource, domain.Address("A")), "role starts disabled")

	f.source.Enabled = true
	assert.Equal(t, domain.StatusInvalidParam, f.api.Connect(context.Background(), domain.RoleSource, domain.NoAddress))
}

func TestConnectPostsConnectReqWhenRoleEnabled(t *testing.T) {
	f := newAPIFixture(t, 2)
	f.source.Enabled = true
	f.router.On("PostLocalEvent", domain.RoleSource, domain.Address("A"), domain.OpConnectReq).Once()

	status := f.api.Connect(context.Background(), domain.RoleSource, domain.Address("A"))

	assert.Equal(t, domain.StatusOk, status)
	f.router.AssertExpectations(t)
}

func TestDisconnectPostsDisconnectReq(t *testing.T) {
	f := newAPIFixture(t, 2)
	f.sink.Enabled = true
	f.router.On("PostLocalEvent", domain.RoleSink, domain.Address("A"), domain.OpDisconnectReq).Once()

	status := f.api.Disconnect(context.Background(), domain.RoleSink, domain.Address("A"))

	assert.Equal(t, domain.StatusOk, status)
	f.router.AssertExpectations(t)
}

func TestSetActiveSourceDelegatesToRoleSetActive(t *testing.T) {
	f := newAPIFixture(t, 2)
	a, err := f.source.FindOrCreate(domain.Address("A"), domain.HandleID(1))
	require.NoError(t, err)
	a.SMState = domain.StateOpened

	ok := f.api.SetActiveSource(context.Background(), domain.Address("A"))

	assert.True(t, ok)
	assert.Equal(t, domain.Address("A"), f.source.ActiveAddress())
}

func TestSetSilenceRejectsUnknownPeer(t *testing.T) {
	f := newAPIFixture(t, 2)
	status := f.api.SetSilence(context.Background(), domain.RoleSource, domain.Address("ghost"), true)
	assert.Equal(t, domain.StatusInvalidParam, status)
}

func TestSetSilenceTogglesPeerFlagWithoutDisconnecting(t *testing.T) {
	f := newAPIFixture(t, 2)
	a, err := f.source.FindOrCreate(domain.Address("A"), domain.HandleID(1))
	require.NoError(t, err)
	a.SMState = domain.StateOpened

	status := f.api.SetSilence(context.Background(), domain.RoleSource, domain.Address("A"), true)

	assert.Equal(t, domain.StatusOk, status)
	assert.True(t, a.Silenced)
	assert.Equal(t, domain.StateOpened, a.SMState, "silencing never disconnects")
}

// TestConfigureCodecRejectsUnknownPeer exercises the maintainer-review fix's
// guard clause: an address that belongs to neither role is invalid.
func TestConfigureCodecRejectsUnknownPeer(t *testing.T) {
	f := newAPIFixture(t, 2)
	status := f.api.ConfigureCodec(context.Background(), domain.Address("ghost"), ports.CodecPrefs{})
	assert.Equal(t, domain.StatusInvalidParam, status)
}

// TestConfigureCodecEndsSessionOnlyForActivePeer is the maintainer-review
// fix's core behaviour: a reconfiguration request for the active peer of its
// role ends the current audio session first; for a non-active peer (even if
// connected) the session is left alone.
func TestConfigureCodecEndsSessionOnlyForActivePeer(t *testing.T) {
	f := newAPIFixture(t, 2)
	a, err := f.source.FindOrCreate(domain.Address("A"), domain.HandleID(1))
	require.NoError(t, err)
	a.SMState = domain.StateOpened
	b, err := f.source.FindOrCreate(domain.Address("B"), domain.HandleID(2))
	require.NoError(t, err)
	b.SMState = domain.StateOpened

	ready := domain.NewReadySignal()
	ok, err := f.source.SetActive(context.Background(), domain.Address("A"), ready)
	require.NoError(t, err)
	require.True(t, ok)

	f.audio.On("EndSession", mock.Anything, domain.Address("A")).Return(nil).Once()

	status := f.api.ConfigureCodec(context.Background(), domain.Address("A"), ports.CodecPrefs{MandatoryOnly: true})
	assert.Equal(t, domain.StatusOk, status)
	f.audio.AssertCalled(t, "EndSession", mock.Anything, domain.Address("A"))

	status = f.api.ConfigureCodec(context.Background(), domain.Address("B"), ports.CodecPrefs{})
	assert.Equal(t, domain.StatusOk, status)
	f.audio.AssertNotCalled(t, "EndSession", mock.Anything, domain.Address("B"))
}

func TestConfigureCodecSucceedsEvenWhenEndSessionFails(t *testing.T) {
	f := newAPIFixture(t, 2)
	a, err := f.source.FindOrCreate(domain.Address("A"), domain.HandleID(1))
	require.NoError(t, err)
	a.SMState = domain.StateOpened
	ready := domain.NewReadySignal()
	ok, err := f.source.SetActive(context.Background(), domain.Address("A"), ready)
	require.NoError(t, err)
	require.True(t, ok)

	f.audio.On("EndSession", mock.Anything, domain.Address("A")).Return(errors.New("backend refused")).Once()

	status := f.api.ConfigureCodec(context.Background(), domain.Address("A"), ports.CodecPrefs{})
	assert.Equal(t, domain.StatusOk, status, "codec preference recording is not gated on the EndSession outcome")
}

func TestStreamStartRequiresActivePeer(t *testing.T) {
	f := newAPIFixture(t, 2)
	assert.Equal(t, domain.StatusNotReady, f.api.StreamStart(context.Background(), domain.RoleSource))
}

func TestStreamStartPostsStartStreamReqForActivePeer(t *testing.T) {
	f := newAPIFixture(t, 2)
	a, err := f.source.FindOrCreate(domain.Address("A"), domain.HandleID(1))
	require.NoError(t, err)
	a.SMState = domain.StateOpened
	ready := domain.NewReadySignal()
	ok, err := f.source.SetActive(context.Background(), domain.Address("A"), ready)
	require.NoError(t, err)
	require.True(t, ok)

	f.router.On("PostLocalValueEvent", domain.RoleSource, domain.Address("A"), domain.OpStartStreamReq, false).Once()

	status := f.api.StreamStart(context.Background(), domain.RoleSource)
	assert.Equal(t, domain.StatusOk, status)
	f.router.AssertExpectations(t)
}

func TestStreamStopAndSuspendPostExpectedOpcodes(t *testing.T) {
	f := newAPIFixture(t, 2)
	a, err := f.sink.FindOrCreate(domain.Address("A"), domain.HandleID(1))
	require.NoError(t, err)
	a.SMState = domain.StateStarted
	ready := domain.NewReadySignal()
	ok, err := f.sink.SetActive(context.Background(), domain.Address("A"), ready)
	require.NoError(t, err)
	require.True(t, ok)

	f.router.On("PostLocalEvent", domain.RoleSink, domain.Address("A"), domain.OpStopStreamReq).Once()
	assert.Equal(t, domain.StatusOk, f.api.StreamStop(context.Background(), domain.RoleSink))

	f.router.On("PostLocalEvent", domain.RoleSink, domain.Address("A"), domain.OpSuspendStreamReq).Once()
	assert.Equal(t, domain.StatusOk, f.api.StreamSuspend(context.Background(), domain.RoleSink))

	f.router.AssertExpectations(t)
}

func TestStreamStartOffloadRequiresActivePeer(t *testing.T) {
	f := newAPIFixture(t, 2)
	assert.Equal(t, domain.StatusNotReady, f.api.StreamStartOffload(context.Background(), domain.RoleSource))
}

// TestStreamStartOffloadRequiresOffloadCapablePlatform is the
// maintainer-review fix: a Source never initialised with offload_supported
// (or initialised with offload_disabled) must refuse StreamStartOffload
// even with an active peer.
func TestStreamStartOffloadRequiresOffloadCapablePlatform(t *testing.T) {
	f := newAPIFixture(t, 2)
	a, err := f.source.FindOrCreate(domain.Address("A"), domain.HandleID(1))
	require.NoError(t, err)
	a.SMState = domain.StateOpened
	ready := domain.NewReadySignal()
	ok, err := f.source.SetActive(context.Background(), domain.Address("A"), ready)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, domain.StatusNotReady, f.api.StreamStartOffload(context.Background(), domain.RoleSource))

	f.source.OffloadCapable = true
	f.router.On("PostLocalEvent", domain.RoleSource, domain.Address("A"), domain.OpOffloadStartReq).Once()
	assert.Equal(t, domain.StatusOk, f.api.StreamStartOffload(context.Background(), domain.RoleSource))
	f.router.AssertExpectations(t)
}

func TestSetLowLatencyPostsSetLatencyReqWithFlag(t *testing.T) {
	f := newAPIFixture(t, 2)
	a, err := f.source.FindOrCreate(domain.Address("A"), domain.HandleID(1))
	require.NoError(t, err)
	a.SMState = domain.StateOpened
	ready := domain.NewReadySignal()
	ok, err := f.source.SetActive(context.Background(), domain.Address("A"), ready)
	require.NoError(t, err)
	require.True(t, ok)

	f.router.On("PostLocalValueEvent", domain.RoleSource, domain.Address("A"), domain.OpSetLatencyReq, true).Once()

	status := f.api.SetLowLatency(context.Background(), domain.RoleSource, true)
	assert.Equal(t, domain.StatusOk, status)
	f.router.AssertExpectations(t)
}

func TestSetAudioDelayForwardsToAudioSessionAndRecordsOnPeer(t *testing.T) {
	f := newAPIFixture(t, 2)
	a, err := f.source.FindOrCreate(domain.Address("A"), domain.HandleID(1))
	require.NoError(t, err)
	f.audio.On("SetRemoteDelay", mock.Anything, domain.Address("A"), uint16(120)).Return(nil)

	status := f.api.SetAudioDelay(context.Background(), domain.RoleSource, domain.Address("A"), 120)

	assert.Equal(t, domain.StatusOk, status)
	assert.Equal(t, uint16(120), a.DelayReport)
}

func TestSetAudioDelayRejectsUnknownPeer(t *testing.T) {
	f := newAPIFixture(t, 2)
	status := f.api.SetAudioDelay(context.Background(), domain.RoleSource, domain.Address("ghost"), 50)
	assert.Equal(t, domain.StatusInvalidParam, status)
}

func TestSetAudioDelayReturnsNotReadyWhenBackendFails(t *testing.T) {
	f := newAPIFixture(t, 2)
	_, err := f.source.FindOrCreate(domain.Address("A"), domain.HandleID(1))
	require.NoError(t, err)
	f.audio.On("SetRemoteDelay", mock.Anything, domain.Address("A"), uint16(10)).Return(errors.New("delay write refused"))

	status := f.api.SetAudioDelay(context.Background(), domain.RoleSource, domain.Address("A"), 10)
	assert.Equal(t, domain.StatusNotReady, status)
}

func TestDumpReflectsPeerStateAndActiveFlag(t *testing.T) {
	f := newAPIFixture(t, 2)
	a, err := f.source.FindOrCreate(domain.Address("A"), domain.HandleID(1))
	require.NoError(t, err)
	a.SMState = domain.StateOpened
	ready := domain.NewReadySignal()
	ok, err := f.source.SetActive(context.Background(), domain.Address("A"), ready)
	require.NoError(t, err)
	require.True(t, ok)

	dump := f.api.Dump(context.Background(), domain.RoleSource)

	require.Len(t, dump, 1)
	assert.Equal(t, domain.Address("A"), dump[0].Address)
	assert.Equal(t, "Opened", dump[0].State)
	assert.True(t, dump[0].Connected)
	assert.True(t, dump[0].IsActive)
}
