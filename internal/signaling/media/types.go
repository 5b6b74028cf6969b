// Package media defines the types exchanged between the signaling core and
// the media engine: stream directions, codecs, transport candidates, and the
// Sink interface the engine implements per stream.
package media

import "fmt"

// Type identifies the kind of media a stream carries.
type Type int

const (
	// TypeAudio is an audio stream.
	TypeAudio Type = iota
	// TypeVideo is a video stream.
	TypeVideo
)

// String returns the string representation of the media type.
func (t Type) String() string {
	switch t {
	case TypeAudio:
		return "audio"
	case TypeVideo:
		return "video"
	default:
		return fmt.Sprintf("Unknown(%d)", int(t))
	}
}

// Direction is the effective media flow of a stream, from the local point of
// view. Send and Receive combine into Bidirectional.
type Direction int

const (
	// DirectionNone means no media flows in either direction.
	DirectionNone Direction = 0
	// DirectionSend means we send media to the peer.
	DirectionSend Direction = 1
	// DirectionReceive means we receive media from the peer.
	DirectionReceive Direction = 2
	// DirectionBidirectional means media flows both ways.
	DirectionBidirectional Direction = DirectionSend | DirectionReceive
)

// String returns the string representation of the direction.
func (d Direction) String() string {
	switch d {
	case DirectionNone:
		return "none"
	case DirectionSend:
		return "send"
	case DirectionReceive:
		return "receive"
	case DirectionBidirectional:
		return "bidirectional"
	default:
		return fmt.Sprintf("Unknown(%d)", int(d))
	}
}

// CanSend reports whether the direction includes the send capability.
func (d Direction) CanSend() bool { return d&DirectionSend != 0 }

// CanReceive reports whether the direction includes the receive capability.
func (d Direction) CanReceive() bool { return d&DirectionReceive != 0 }

// CombinedDirection is a stream's effective direction plus the flags
// indicating a send capability awaiting approval. Direction changes are
// two-phase: a newly requested "send" is parked behind LocalPendingSend until
// the local user approves it.
type CombinedDirection struct {
	Direction        Direction
	LocalPendingSend bool
	// RemotePendingSend is tracked for completeness but never set by the
	// current negotiation logic.
	RemotePendingSend bool
}

// String returns a compact representation such as "receive+pending-local-send".
func (c CombinedDirection) String() string {
	s := c.Direction.String()
	if c.LocalPendingSend {
		s += "+pending-local-send"
	}
	if c.RemotePendingSend {
		s += "+pending-remote-send"
	}
	return s
}

// ConnectionState is the transport-layer connectivity of a stream as reported
// by the media engine.
type ConnectionState int

const (
	// ConnectionDisconnected means no connectivity has been established.
	ConnectionDisconnected ConnectionState = iota
	// ConnectionConnecting means connectivity checks are in progress.
	ConnectionConnecting
	// ConnectionConnected means the media path is established.
	ConnectionConnected
)

// String returns the string representation of the connection state.
func (s ConnectionState) String() string {
	switch s {
	case ConnectionDisconnected:
		return "disconnected"
	case ConnectionConnecting:
		return "connecting"
	case ConnectionConnected:
		return "connected"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Codec describes one payload type offered or accepted on a stream.
type Codec struct {
	ID        uint8
	Name      string
	ClockRate uint
	Channels  uint
}

// Candidate is one transport candidate advertised by a peer.
type Candidate struct {
	Name       string
	Address    string
	Port       uint16
	Username   string
	Password   string
	Preference float64
	Protocol   string
	Type       string
	Network    uint8
	Generation uint8
}

// Sink is the per-stream boundary to the media engine. The signaling core
// pushes remote parameters in; the engine reports readiness back through the
// owning stream's setters.
type Sink interface {
	// ApplyRemoteCodecs hands the peer's codec list to the engine.
	ApplyRemoteCodecs(codecs []Codec) error

	// ApplyRemoteCandidates hands newly learned transport candidates to the
	// engine.
	ApplyRemoteCandidates(candidates []Candidate) error

	// Close releases engine resources for the stream. It must be idempotent.
	Close()
}

// SinkFactory constructs a Sink for a newly negotiated stream.
type SinkFactory func(streamName string, mediaType Type) (Sink, error)
