// Package session implements the media session state machine: one Session per
// signaling dialog with a peer, holding a set of streams and advancing through
// an ordered lifecycle as actions arrive from the peer or the local side.
package session

import "errors"

// State is a point in the session lifecycle. States are ordered; the action
// table admits each action only within a contiguous state range.
type State int

const (
	// PendingCreated means the session exists locally but nothing has been
	// sent to the peer yet.
	PendingCreated State = iota
	// PendingInitiateSent means we sent the initiate and await acceptance.
	PendingInitiateSent
	// PendingInitiated means the peer initiated and we have not yet answered.
	PendingInitiated
	// PendingAcceptSent means we sent the accept and await the ack.
	PendingAcceptSent
	// Active means both sides have accepted.
	Active
	// Ended is terminal.
	Ended
)

// stateInvalid marks table entries whose handlers decide the next state
// themselves.
const stateInvalid State = -1

var stateNames = map[State]string{
	PendingCreated:      "pending-created",
	PendingInitiateSent: "pending-initiate-sent",
	PendingInitiated:    "pending-initiated",
	PendingAcceptSent:   "pending-accept-sent",
	Active:              "active",
	Ended:               "ended",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "invalid"
}

// Initiator records which side created the session.
type Initiator int

const (
	InitiatorLocal Initiator = iota
	InitiatorRemote
)

func (i Initiator) String() string {
	if i == InitiatorLocal {
		return "local"
	}
	return "remote"
}

// TerminateActor records which side ended the session.
type TerminateActor int

const (
	ActorUnknown TerminateActor = iota
	ActorLocal
	ActorRemote
)

func (a TerminateActor) String() string {
	switch a {
	case ActorLocal:
		return "local"
	case ActorRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// TerminateReason explains why a session ended.
type TerminateReason int

const (
	ReasonUnknown TerminateReason = iota
	ReasonRequested
	ReasonTimeout
	ReasonError
	ReasonNoStreams
)

func (r TerminateReason) String() string {
	switch r {
	case ReasonRequested:
		return "requested"
	case ReasonTimeout:
		return "timeout"
	case ReasonError:
		return "error"
	case ReasonNoStreams:
		return "no-streams"
	default:
		return "unknown"
	}
}

// Sentinel errors returned by session operations.
var (
	ErrSessionEnded   = errors.New("session already ended")
	ErrStreamNotFound = errors.New("stream not found")
	ErrStreamLimit    = errors.New("stream limit reached")
	ErrNotAvailable   = errors.New("peer does not support requested media")
	ErrGoogleOneAudio = errors.New("Google Talk calls may only contain one stream")
	ErrLastStream     = errors.New("cannot remove the last stream; terminate instead")
)
