package domain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var errSwapFailed = errors.New("simulated audio backend refusal")

func newTestRole(t *testing.T, maxPeers int) (*Role, *fakeSessionActivator) {
	session := newFakeSessionActivator()
	r := NewRole(RoleSink, maxPeers, session)
	r.Enabled = true
	return r, session
}

func TestFindOrCreateAllocatesSmallestFreeSlot(t *testing.T) {
	r, _ := newTestRole(t, 2)

	a, err := r.FindOrCreate(Address("A"), HandleID(1))
	require.NoError(t, err)
	assert.Equal(t, PeerSlot(0), a.Slot)

	b, err := r.FindOrCreate(Address("B"), HandleID(2))
	require.NoError(t, err)
	assert.Equal(t, PeerSlot(1), b.Slot)

	_, err = r.FindOrCreate(Address("C"), HandleID(3))
	assert.ErrorIs(t, err, ErrNoFreePeerSlot)
}

// TestFindOrCreateSeedsCodecPrioritiesFromRoleDefault is the
// maintainer-review fix: a newly admitted peer inherits the role's
// DefaultCodecPriorities (set by InitSource) as its own starting
// preference, rather than starting with an empty list regardless of what
// the host configured at init time.
func TestFindOrCreateSeedsCodecPrioritiesFromRoleDefault(t *testing.T) {
	r, _ := newTestRole(t, 1)
	r.DefaultCodecPriorities = []string{"aptx", "sbc"}

	p, err := r.FindOrCreate(Address("A"), HandleID(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"aptx", "sbc"}, p.CodecPriorities)

	p.CodecPriorities[0] = "mutated"
	assert.Equal(t, []string{"aptx", "sbc"}, r.DefaultCodecPriorities, "seeded slice must not alias the role's default")
}

func TestFindOrCreateReturnsExistingPeer(t *testing.T) {
	r, _ := newTestRole(t, 2)

	a, err := r.FindOrCreate(Address("A"), HandleID(1))
	require.NoError(t, err)

	again, err := r.FindOrCreate(Address("A"), HandleUnknown)
	require.NoError(t, err)
	assert.Same(t, a, again)
}

func TestFindOrCreateRequiresBoundHandleWhenUnknown(t *testing.T) {
	r, _ := newTestRole(t, 1)
	_, err := r.FindOrCreate(Address("A"), HandleUnknown)
	assert.ErrorIs(t, err, ErrHandleUnbound)

	r.RegisterHandle(PeerSlot(0), HandleID(9))
	p, err := r.FindOrCreate(Address("A"), HandleUnknown)
	require.NoError(t, err)
	assert.Equal(t, HandleID(9), p.Handle)
}

// TestAllowedToConnectAdmissionBoundary is the §8 boundary behaviour:
// "with max_peers=1 and one peer in Opened, a ConnectReq for a different
// address produces no state change for either peer".
func TestAllowedToConnectAdmissionBoundary(t *testing.T) {
	r, _ := newTestRole(t, 1)

	a, err := r.FindOrCreate(Address("A"), HandleID(1))
	require.NoError(t, err)
	a.SMState = StateOpened

	assert.True(t, r.AllowedToConnect(Address("A")), "in-flight peer is always allowed")
	assert.False(t, r.AllowedToConnect(Address("B")), "role already at max_peers")
}

func TestAdmittedCountOnlyCountsOpeningOpenedStarted(t *testing.T) {
	r, _ := newTestRole(t, 5)

	states := []SMState{StateIdle, StateOpening, StateOpened, StateStarted, StateClosing}
	for i, s := range states {
		p, err := r.FindOrCreate(Address(string(rune('A'+i))), HandleID(i))
		require.NoError(t, err)
		p.SMState = s
	}

	assert.Equal(t, 3, r.AdmittedCount())
}

func TestDeleteIdlePeersRemovesOnlyDeletableOnes(t *testing.T) {
	r, _ := newTestRole(t, 3)

	stuck, err := r.FindOrCreate(Address("A"), HandleID(1))
	require.NoError(t, err) // Previous stays Invalid: not deletable

	deletable, err := r.FindOrCreate(Address("B"), HandleID(2))
	require.NoError(t, err)
	deletable.Previous = StateOpened // Idle, came from somewhere: deletable

	connected, err := r.FindOrCreate(Address("C"), HandleID(3))
	require.NoError(t, err)
	connected.SMState = StateOpened
	connected.Previous = StateIdle

	r.DeleteIdlePeers()

	_, ok := r.Peer(Address("A"))
	assert.True(t, ok, "stuck peer with Previous still Invalid must survive")
	_, ok = r.Peer(Address("B"))
	assert.False(t, ok, "deletable peer must be swept")
	_, ok = r.Peer(Address("C"))
	assert.True(t, ok, "connected peer must survive")

	assert.Equal(t, stuck.Address, Address("A"))
}

func TestSetActiveToEmptyShutsDownSession(t *testing.T) {
	r, session := newTestRole(t, 1)
	a, err := r.FindOrCreate(Address("A"), HandleID(1))
	require.NoError(t, err)
	a.SMState = StateOpened

	ready := NewReadySignal()
	ok, err := r.SetActive(context.Background(), Address("A"), NewReadySignal())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.SetActive(context.Background(), NoAddress, ready)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, NoAddress, r.ActiveAddress())

	require.NoError(t, ready.Wait(context.Background()))
	session.AssertCalled(t, "Shutdown", mock.Anything, mock.Anything)
}

func TestSetActiveRejectsDisconnectedOrSilencedPeer(t *testing.T) {
	r, _ := newTestRole(t, 2)

	ready := NewReadySignal()
	ok, err := r.SetActive(context.Background(), Address("ghost"), ready)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrPeerNotConnected)
	assert.NoError(t, ready.Wait(context.Background()), "ready must fire even on failure")

	a, err := r.FindOrCreate(Address("A"), HandleID(1))
	require.NoError(t, err)
	a.SMState = StateOpened
	a.Silenced = true

	ready2 := NewReadySignal()
	ok, err = r.SetActive(context.Background(), Address("A"), ready2)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrPeerSilenced)
}

// TestSetActiveSwapFailurePreservesCurrentActive is §8 Concrete Scenario 5:
// "On restart failure: A remains active, call returns false, ready signal
// is fulfilled."
func TestSetActiveSwapFailurePreservesCurrentActive(t *testing.T) {
	session := newFakeSessionActivator()
	r := NewRole(RoleSink, 2, session)
	r.Enabled = true

	a, err := r.FindOrCreate(Address("A"), HandleID(1))
	require.NoError(t, err)
	a.SMState = StateOpened
	b, err := r.FindOrCreate(Address("B"), HandleID(2))
	require.NoError(t, err)
	b.SMState = StateOpened

	firstReady := NewReadySignal()
	ok, err := r.SetActive(context.Background(), Address("A"), firstReady)
	require.NoError(t, err)
	require.True(t, ok)

	session.restartErr = errSwapFailed
	ready := NewReadySignal()
	ok, err = r.SetActive(context.Background(), Address("B"), ready)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrActivePeerSwapFailed)
	assert.Equal(t, Address("A"), r.ActiveAddress())

	done := make(chan struct{})
	go func() { _ = ready.Wait(context.Background()); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ready signal never fired on swap failure")
	}
}

func TestClearActiveIfDeletableOnlyClearsWhenBothTrue(t *testing.T) {
	r, _ := newTestRole(t, 1)
	a, err := r.FindOrCreate(Address("A"), HandleID(1))
	require.NoError(t, err)
	a.SMState = StateOpened
	ready := NewReadySignal()
	ok, err := r.SetActive(context.Background(), Address("A"), ready)
	require.NoError(t, err)
	require.True(t, ok)

	a.SMState = StateIdle
	a.Previous = StateInvalid
	r.ClearActiveIfDeletable(a)
	assert.Equal(t, Address("A"), r.ActiveAddress(), "not deletable yet: Previous still Invalid")

	a.Previous = StateOpened
	r.ClearActiveIfDeletable(a)
	assert.Equal(t, NoAddress, r.ActiveAddress())
}
