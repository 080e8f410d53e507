package ports

import "a2dpmgr/internal/core/domain"

// EventPublisher mirrors host-facing state notifications onto a
// distributed event bus (C11), so other processes in a multi-instance
// deployment observe the same connection/audio/active-peer transitions a
// local host callback table sees (§9B). Optional: a nil EventPublisher
// held by a HostNotifier adapter is a no-op.
type EventPublisher interface {
	PublishConnectionState(role domain.RoleKind, address domain.Address, state string) error
	PublishAudioState(role domain.RoleKind, address domain.Address, state string) error
	PublishActivePeerChanged(role domain.RoleKind, address domain.Address) error
}
