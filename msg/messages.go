// Package msg holds the requests queued for the daemon loop. Every request
// carries a buffered reply channel that the loop answers exactly once.
package msg

import (
	"github.com/normen/goxlr-daemon/profile"
	"github.com/normen/goxlr-daemon/state"
)

// sent by api clients to the loop

type SetStateRequest struct {
	Changes []state.Change
	Reply   chan error
}

type ApplyProfileRequest struct {
	Profile *profile.Profile
	Reply   chan error
}

type ReadProfileRequest struct {
	Reply chan ProfileReply
}

type ProfileReply struct {
	Profile *profile.Profile
	Err     error
}

func NewSetState(changes ...state.Change) SetStateRequest {
	return SetStateRequest{Changes: changes, Reply: make(chan error, 1)}
}

func NewApplyProfile(p *profile.Profile) ApplyProfileRequest {
	return ApplyProfileRequest{Profile: p, Reply: make(chan error, 1)}
}

func NewReadProfile() ReadProfileRequest {
	return ReadProfileRequest{Reply: make(chan ProfileReply, 1)}
}
