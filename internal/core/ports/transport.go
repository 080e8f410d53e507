package ports

import (
	"context"

	"a2dpmgr/internal/core/domain"
)

// FeatureBit is one bit of the Transport Enable feature set (§6).
type FeatureBit uint32

const (
	FeatureRCTG FeatureBit = 1 << iota
	FeatureMetadata
	FeatureVendor
	FeatureNoScoSuspend
	FeatureDelayReport
	FeatureRCCT
	FeatureAdvCtrl
	FeatureBrowse
	FeatureCoverArt
)

// TransportEvent is a raw inbound event from the lower AVDTP/AVRCP layer
// before it has been copied onto the control thread (§4.1, §6). Router
// adapters convert this into a domain.PeerEvent via domain.New.
type TransportEvent struct {
	Opcode      domain.Opcode
	Address     domain.Address
	Handle      domain.HandleID
	Status      bool
	Suspending  bool
	Initiator   bool
	EDR         domain.EDR
	VendorData  []byte
	BrowseData  []byte

	// SampleRateHz/ChannelCount carry OpSinkConfigReq's PCM parameters
	// (§4.6 AudioConfig). Zero for every other opcode.
	SampleRateHz int
	ChannelCount int
}

// Transport is the lower AVDTP/AVRCP contract (§6). It structurally
// satisfies domain.TransportCommands (the subset the state machine calls
// directly) plus the registration/lifecycle calls the EventRouter and Api
// issue around role init/teardown.
type Transport interface {
	Register(ctx context.Context, role domain.RoleKind, serviceName string, slot domain.PeerSlot, uuid string) (domain.HandleID, error)
	Deregister(ctx context.Context, handle domain.HandleID) error
	Enable(ctx context.Context, features FeatureBit, events chan<- TransportEvent) error
	Disable(ctx context.Context) error

	Open(ctx context.Context, address domain.Address, handle domain.HandleID, isInitiator bool) error
	Close(ctx context.Context, handle domain.HandleID) error
	Start(ctx context.Context, handle domain.HandleID, useLatencyMode bool) error
	Stop(ctx context.Context, handle domain.HandleID, suspend bool) error
	OpenRc(ctx context.Context, handle domain.HandleID) error
	CloseRc(ctx context.Context, handle domain.HandleID) error
	SetLatency(ctx context.Context, handle domain.HandleID, low bool) error
	OffloadStart(ctx context.Context, handle domain.HandleID) error
}
