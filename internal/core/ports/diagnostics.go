package ports

import (
	"context"
	"time"

	"a2dpmgr/internal/core/domain"
)

// PeerDump is the diagnostic dump row for one peer (§6 CLI/dump), including
// the §9C supplemented avrcp_only diagnostic.
type PeerDump struct {
	Address                 domain.Address `json:"address"`
	Role                    string         `json:"role"`
	Connected               bool           `json:"connected"`
	Streaming               bool           `json:"streaming"`
	AvrcpOnly               bool           `json:"avrcp_only"`
	State                   string         `json:"state"`
	Flags                   string         `json:"flags"`
	TimerArmed              bool           `json:"timer_armed"`
	Handle                  string         `json:"handle"`
	PeerID                  int            `json:"peer_id"`
	EDR                     string         `json:"edr"`
	Supports3Mbps           bool           `json:"supports_3mbps"`
	SelfInitiated           bool           `json:"self_initiated"`
	DelayReport             uint16         `json:"delay_report"`
	MandatoryCodecPreferred bool           `json:"mandatory_codec_preferred"`
	Silenced                bool           `json:"silenced"`
	IsActive                bool           `json:"is_active"`
}

// DiagnosticCache is a read-only-from-the-domain's-perspective cache of the
// most recent dump, never the source of truth for live FSM state (see
// SPEC_FULL.md §9B's explicit scoping). Backed by memory or Redis.
type DiagnosticCache interface {
	Put(ctx context.Context, role string, dump []PeerDump) error
	Get(ctx context.Context, role string) ([]PeerDump, error)
	Close() error
}

// SnapshotStorage is the pluggable backend for StateSnapshotter (C12),
// grounded on the teacher's pkg/backup.Storage.
type SnapshotStorage interface {
	Save(ctx context.Context, name string, data []byte) error
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, name string) error
}

// Snapshot is the periodic postmortem record written by StateSnapshotter.
type Snapshot struct {
	Version   string                  `json:"version"`
	Timestamp time.Time               `json:"timestamp"`
	Source    []PeerDump              `json:"source,omitempty"`
	Sink      []PeerDump              `json:"sink,omitempty"`
}
