package domain

import (
	"context"
	"sync"
	"time"
)

// ActivePeerShutdownTimeout is the deadline for ending the audio session
// when the active peer is cleared (§4.4 step 2).
const ActivePeerShutdownTimeout = 1 * time.Second

// Role is one local role's peer collection: the Source registry or the
// Sink registry (§4.4, C4). FSM mutation of its peers happens on the
// control thread (§5). The mutex below is taken by every Role method and
// guards Role's own maps and active address, so the diagnostic dump path
// (§6 CLI/dump) and ApiService's off-thread calls can use them from other
// goroutines; it does not guard the fields of the Peer values themselves.
type Role struct {
	Kind     RoleKind
	MaxPeers int
	Enabled  bool

	// OffloadCapable is set by init_source from the platform's offload
	// caps (§6) and gates StreamStartOffload.
	OffloadCapable bool

	// DefaultCodecPriorities seeds CodecPriorities on every peer this role
	// creates (§6 init_source's codec_priorities parameter).
	DefaultCodecPriorities []string

	mu           sync.RWMutex
	peers        map[Address]*Peer
	idToHandle   map[PeerSlot]HandleID
	activeAddr   Address
	silencedSet  map[Address]struct{}
	usedSlots    map[PeerSlot]struct{}

	Session SessionActivator
}

// NewRole constructs an empty role with Enabled false. AllowedToConnect does
// not consult Enabled; ApiService.Connect/Disconnect refuse a role whose
// Enabled is false, and InitSource/InitSink set it.
func NewRole(kind RoleKind, maxPeers int, session SessionActivator) *Role {
	return &Role{
		Kind:        kind,
		MaxPeers:    maxPeers,
		peers:       make(map[Address]*Peer),
		idToHandle:  make(map[PeerSlot]HandleID),
		silencedSet: make(map[Address]struct{}),
		usedSlots:   make(map[PeerSlot]struct{}),
		Session:     session,
	}
}

// AllowedToConnect implements §4.4's admission rule: an in-flight peer for
// the same address is always allowed (idempotent retry); otherwise
// admission is granted iff fewer than MaxPeers peers are currently
// connecting or connected.
func (r *Role) AllowedToConnect(address Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.peers[address]; ok && isAdmitted(p.SMState) {
		return true
	}
	count := 0
	for _, p := range r.peers {
		if isAdmitted(p.SMState) {
			count++
		}
	}
	return count < r.MaxPeers
}

func isAdmitted(s SMState) bool {
	return s == StateOpening || s == StateOpened || s == StateStarted
}

// AdmittedCount returns the number of peers currently occupying an
// admission slot, for the Metrics gauge and the §8 sum-never-exceeds-max
// invariant check in tests.
func (r *Role) AdmittedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, p := range r.peers {
		if isAdmitted(p.SMState) {
			count++
		}
	}
	return count
}

// FindOrCreate implements §4.4's peer discovery rule. handle may be
// HandleUnknown, in which case it is resolved via a prior Register binding;
// if none exists the call fails with ErrHandleUnbound.
func (r *Role) FindOrCreate(address Address, handle HandleID) (*Peer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.peers[address]; ok {
		return p, nil
	}

	slot := r.smallestFreeSlotLocked()
	if slot == PeerSlotInvalid {
		return nil, ErrNoFreePeerSlot
	}

	if handle == HandleUnknown {
		bound, ok := r.idToHandle[slot]
		if !ok {
			return nil, ErrHandleUnbound
		}
		handle = bound
	}

	p := NewPeer(address, r.Kind.Complement(), handle, slot)
	if len(r.DefaultCodecPriorities) > 0 {
		p.CodecPriorities = append([]string(nil), r.DefaultCodecPriorities...)
	}
	r.peers[address] = p
	r.usedSlots[slot] = struct{}{}
	return p, nil
}

func (r *Role) smallestFreeSlotLocked() PeerSlot {
	for slot := PeerSlot(0); slot < PeerSlot(r.MaxPeers); slot++ {
		if _, used := r.usedSlots[slot]; !used {
			return slot
		}
	}
	return PeerSlotInvalid
}

// RegisterHandle records a lower-transport handle binding for a slot,
// mutated only by the control thread on a Register event (§5).
func (r *Role) RegisterHandle(slot PeerSlot, handle HandleID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.idToHandle[slot] = handle
}

// DeregisterHandle removes a slot's handle binding on a Deregister event.
func (r *Role) DeregisterHandle(slot PeerSlot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.idToHandle, slot)
}

// Peer looks up a peer by address.
func (r *Role) Peer(address Address) (*Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[address]
	return p, ok
}

// PeerByHandle looks up a peer by its bound lower-transport handle, used
// when an inbound event carries only a handle (§4.5 peer resolution order).
func (r *Role) PeerByHandle(handle HandleID) (*Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.peers {
		if p.Handle == handle {
			return p, true
		}
	}
	return nil, false
}

// RemovePeer deletes a peer's slot and map entry; the caller is responsible
// for having already cancelled its timer (§4.3).
func (r *Role) RemovePeer(address Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.peers[address]; ok {
		delete(r.usedSlots, p.Slot)
		delete(r.peers, address)
	}
	if r.activeAddr == address {
		r.activeAddr = NoAddress
	}
}

// DeleteIdlePeers walks the peer set and removes every peer for which
// CanBeDeleted is true (§4.4).
func (r *Role) DeleteIdlePeers() {
	r.mu.Lock()
	var toDelete []Address
	for addr, p := range r.peers {
		if p.CanBeDeleted() {
			toDelete = append(toDelete, addr)
		}
	}
	r.mu.Unlock()

	for _, addr := range toDelete {
		if p, ok := r.Peer(addr); ok {
			p.CancelOpenOnRcTimer()
		}
		r.RemovePeer(addr)
	}
}

// ActiveAddress returns the current active peer's address, or NoAddress.
func (r *Role) ActiveAddress() Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeAddr
}

// IsActivePeer reports whether address is the role's current active peer.
func (r *Role) IsActivePeer(address Address) bool {
	return r.ActiveAddress() == address
}

// SetSilenced toggles a peer's silence-mode bit and membership in the
// silenced set used by §9C's active-peer-selection skip rule.
func (r *Role) SetSilenced(address Address, silenced bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.peers[address]; ok {
		p.Silenced = silenced
	}
	if silenced {
		r.silencedSet[address] = struct{}{}
	} else {
		delete(r.silencedSet, address)
	}
}

// SetActive implements §4.4's active-peer protocol. ready is fulfilled
// exactly once regardless of outcome (§7 Active-peer error handling:
// "caller's ready signal is always fulfilled").
func (r *Role) SetActive(ctx context.Context, address Address, ready *ReadySignal) (bool, error) {
	defer ready.Fire()

	current := r.ActiveAddress()
	if current == address {
		return true, nil
	}

	if address == NoAddress {
		shutdownCtx, cancel := context.WithTimeout(ctx, ActivePeerShutdownTimeout)
		defer cancel()
		internalReady := NewReadySignal()
		r.Session.Shutdown(shutdownCtx, internalReady)
		_ = internalReady.Wait(shutdownCtx) // timeout logged by caller, not fatal
		r.mu.Lock()
		r.activeAddr = NoAddress
		r.mu.Unlock()
		return true, nil
	}

	p, ok := r.Peer(address)
	if !ok || !p.IsConnected() {
		return false, ErrPeerNotConnected
	}
	if p.Silenced {
		return false, ErrPeerSilenced
	}

	internalReady := NewReadySignal()
	if err := r.Session.RestartSession(ctx, current, address, internalReady); err != nil {
		_ = internalReady.Wait(ctx)
		return false, ErrActivePeerSwapFailed
	}
	_ = internalReady.Wait(ctx)

	r.mu.Lock()
	r.activeAddr = address
	r.mu.Unlock()
	return true, nil
}

// ClearActiveIfDeletable implements the Idle OnEnter rule: "if this peer is
// both active and deletable, clear role's active peer" (§4.2 Idle row).
func (r *Role) ClearActiveIfDeletable(p *Peer) {
	if r.IsActivePeer(p.Address) && p.CanBeDeleted() {
		r.mu.Lock()
		r.activeAddr = NoAddress
		r.mu.Unlock()
	}
}

// Snapshot returns a best-effort, lock-protected copy of every peer pointer
// for the diagnostic dump (§6). The Peer values themselves are still
// mutated by the control thread; callers must treat fields as a point-in-
// time snapshot, not a live view.
func (r *Role) Snapshot() []*Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Peer, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, p)
	}
	return out
}
