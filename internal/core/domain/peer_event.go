package domain

// Opcode is the union of lower-layer and local event types a PeerStateMachine
// can receive (§4.1).
type Opcode int

const (
	OpEnable Opcode = iota
	OpRegister
	OpOpen
	OpClose
	OpStart
	OpStop
	OpSuspend
	OpProtectReq
	OpProtectRsp
	OpRcOpen
	OpRcClose
	OpRcBrowseOpen
	OpRcBrowseClose
	OpRemoteCmd
	OpRemoteRsp
	OpVendorCmd
	OpVendorRsp
	OpMetaMsg
	OpReconfig
	OpPending
	OpReject
	OpRcFeat
	OpRcPsm
	OpOffloadStartRsp

	OpConnectReq
	OpDisconnectReq
	OpStartStreamReq
	OpStopStreamReq
	OpSuspendStreamReq
	OpSinkConfigReq
	OpAclDisconnected
	OpOffloadStartReq
	OpAvrcpOpen
	OpAvrcpClose
	OpAvrcpRemotePlay
	OpSetLatencyReq
)

var opcodeNames = map[Opcode]string{
	OpEnable:           "Enable",
	OpRegister:         "Register",
	OpOpen:             "Open",
	OpClose:            "Close",
	OpStart:            "Start",
	OpStop:             "Stop",
	OpSuspend:          "Suspend",
	OpProtectReq:       "ProtectReq",
	OpProtectRsp:       "ProtectRsp",
	OpRcOpen:           "RcOpen",
	OpRcClose:          "RcClose",
	OpRcBrowseOpen:     "RcBrowseOpen",
	OpRcBrowseClose:    "RcBrowseClose",
	OpRemoteCmd:        "RemoteCmd",
	OpRemoteRsp:        "RemoteRsp",
	OpVendorCmd:        "VendorCmd",
	OpVendorRsp:        "VendorRsp",
	OpMetaMsg:          "MetaMsg",
	OpReconfig:         "Reconfig",
	OpPending:          "Pending",
	OpReject:           "Reject",
	OpRcFeat:           "RcFeat",
	OpRcPsm:            "RcPsm",
	OpOffloadStartRsp:  "OffloadStartRsp",
	OpConnectReq:       "ConnectReq",
	OpDisconnectReq:    "DisconnectReq",
	OpStartStreamReq:   "StartStreamReq",
	OpStopStreamReq:    "StopStreamReq",
	OpSuspendStreamReq: "SuspendStreamReq",
	OpSinkConfigReq:    "SinkConfigReq",
	OpAclDisconnected:  "AclDisconnected",
	OpOffloadStartReq:  "OffloadStartReq",
	OpAvrcpOpen:        "AvrcpOpen",
	OpAvrcpClose:       "AvrcpClose",
	OpAvrcpRemotePlay:  "AvrcpRemotePlay",
	OpSetLatencyReq:    "SetLatencyReq",
}

// Name is the diagnostic string for an opcode (§4.1).
func (op Opcode) Name() string {
	if n, ok := opcodeNames[op]; ok {
		return n
	}
	return "Unknown"
}

// RcMetaKind distinguishes the two nested-buffer variants of OpMetaMsg (§4.1, §9).
type RcMetaKind int

const (
	MetaNone RcMetaKind = iota
	MetaVendorData
	MetaBrowseData
)

// MetaPayload is the AVRCP meta-message payload. VendorData/BrowseData are
// drawn from a byte pool (see BufferPool) because this variant is produced
// at high frequency on the transport read path; Release must be called
// exactly once by whichever handler finishes with the event last.
type MetaPayload struct {
	Kind       RcMetaKind
	VendorData []byte
	BrowseData []byte
	pool       *BufferPool
}

// Release returns the pooled buffers to their pool. Safe to call on a
// MetaPayload with no pool (e.g. constructed directly in tests).
func (m *MetaPayload) Release() {
	if m == nil || m.pool == nil {
		return
	}
	if m.VendorData != nil {
		m.pool.Put(m.VendorData)
		m.VendorData = nil
	}
	if m.BrowseData != nil {
		m.pool.Put(m.BrowseData)
		m.BrowseData = nil
	}
}

func (m *MetaPayload) clone(pool *BufferPool) *MetaPayload {
	if m == nil {
		return nil
	}
	c := &MetaPayload{Kind: m.Kind, pool: pool}
	if m.VendorData != nil {
		c.VendorData = pool.GetCopy(m.VendorData)
	}
	if m.BrowseData != nil {
		c.BrowseData = pool.GetCopy(m.BrowseData)
	}
	return c
}

// PeerEvent is the owned, deep-copied event carrying an opcode plus an
// optional typed payload across threads (§4.1, C1). The control thread
// receives only PeerEvent values produced by New or Clone, never a raw
// reference into a producer's buffer.
type PeerEvent struct {
	Opcode  Opcode
	Address Address
	Handle  HandleID

	// Generic scalar payload fields, used by the handful of opcodes that
	// carry a simple status/flag rather than a structured or buffered one.
	Status      bool
	Suspending  bool
	Initiator   bool
	EDR         EDR
	RemoteIsSnk bool

	// SampleRateHz/ChannelCount carry OpSinkConfigReq's PCM parameters
	// (§4.6 AudioConfig). Zero for every other opcode.
	SampleRateHz int
	ChannelCount int

	Meta *MetaPayload

	pool *BufferPool
}

// New constructs a PeerEvent with no payload. Nested vendor/browse buffers
// are attached with WithMeta, which deep-copies them.
func New(opcode Opcode, address Address, handle HandleID, pool *BufferPool) *PeerEvent {
	return &PeerEvent{Opcode: opcode, Address: address, Handle: handle, pool: pool}
}

// WithMeta attaches a deep-copied meta-message payload to the event.
func (e *PeerEvent) WithMeta(kind RcMetaKind, vendorData, browseData []byte) *PeerEvent {
	m := &MetaPayload{Kind: kind, pool: e.pool}
	if vendorData != nil {
		m.VendorData = e.pool.GetCopy(vendorData)
	}
	if browseData != nil {
		m.BrowseData = e.pool.GetCopy(browseData)
	}
	e.Meta = m
	return e
}

// Clone deep-copies the event, including nested buffers, for routing to a
// second handler (§4.1).
func (e *PeerEvent) Clone() *PeerEvent {
	c := &PeerEvent{
		Opcode:       e.Opcode,
		Address:      e.Address,
		Handle:       e.Handle,
		Status:       e.Status,
		Suspending:   e.Suspending,
		Initiator:    e.Initiator,
		EDR:          e.EDR,
		RemoteIsSnk:  e.RemoteIsSnk,
		SampleRateHz: e.SampleRateHz,
		ChannelCount: e.ChannelCount,
		pool:         e.pool,
	}
	c.Meta = e.Meta.clone(e.pool)
	return c
}

// Release returns all owned buffers, including nested ones, to their pool.
func (e *PeerEvent) Release() {
	if e == nil {
		return
	}
	e.Meta.Release()
}
