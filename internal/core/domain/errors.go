package domain

import "errors"

var (
	ErrPeerNotFound         = errors.New("peer not found")
	ErrPeerNotConnected     = errors.New("peer not connected")
	ErrPeerSilenced         = errors.New("peer is silenced and cannot become active")
	ErrAdmissionDenied      = errors.New("admission denied: role at max_peers")
	ErrRoleDisabled         = errors.New("role is disabled")
	ErrNoFreePeerSlot       = errors.New("no free peer slot in role")
	ErrHandleUnbound        = errors.New("handle not bound in role")
	ErrActivePeerSwapFailed = errors.New("active peer swap failed")
	ErrAudioSessionTimeout  = errors.New("audio session shutdown timed out")
	ErrInvariantViolation   = errors.New("internal invariant violation")
)
