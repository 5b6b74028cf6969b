// Package events defines the typed notifications emitted by the signaling
// engine as sessions and streams change. Observers subscribe through the
// Publisher interface; the engine never blocks on a publisher.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies the kind of event.
type Type string

// Event types emitted by the engine.
const (
	// SessionCreated fires when a session object comes into existence,
	// whether locally requested or triggered by an inbound initiate.
	SessionCreated Type = "session.created"
	// SessionStateChanged fires on every committed session state transition.
	SessionStateChanged Type = "session.state_changed"
	// SessionTerminated fires exactly once when a session ends.
	SessionTerminated Type = "session.terminated"
	// StreamAdded fires when a stream joins a session.
	StreamAdded Type = "stream.added"
	// StreamClosed fires when a stream is removed from its session.
	StreamClosed Type = "stream.closed"
)

// Event is one engine notification. Only the fields relevant to the type are
// set; state names and reasons are carried as strings so observers do not
// depend on engine internals.
type Event struct {
	ID   string    `json:"event_id"`
	Type Type      `json:"event_type"`
	Time time.Time `json:"event_time"`
	Node string    `json:"node_id,omitempty"`

	SID  string `json:"sid"`
	Peer string `json:"peer,omitempty"`

	// SessionStateChanged
	OldState string `json:"old_state,omitempty"`
	NewState string `json:"new_state,omitempty"`

	// SessionTerminated
	Actor  string `json:"actor,omitempty"`
	Reason string `json:"reason,omitempty"`

	// StreamAdded / StreamClosed
	Stream    string `json:"stream,omitempty"`
	MediaType string `json:"media_type,omitempty"`
}

// Publisher receives engine events. Implementations must not call back into
// the engine synchronously.
type Publisher interface {
	Publish(ev Event)
}

// Builder constructs events with consistent identity fields.
type Builder struct {
	node string
}

// NewBuilder creates a builder stamping events with the given node id.
func NewBuilder(node string) *Builder {
	return &Builder{node: node}
}

func (b *Builder) base(t Type, sid string) Event {
	return Event{
		ID:   uuid.New().String(),
		Type: t,
		Time: time.Now().UTC(),
		Node: b.node,
		SID:  sid,
	}
}

// SessionCreated builds a session.created event.
func (b *Builder) SessionCreated(sid, peer string) Event {
	ev := b.base(SessionCreated, sid)
	ev.Peer = peer
	return ev
}

// StateChanged builds a session.state_changed event.
func (b *Builder) StateChanged(sid, oldState, newState string) Event {
	ev := b.base(SessionStateChanged, sid)
	ev.OldState = oldState
	ev.NewState = newState
	return ev
}

// Terminated builds a session.terminated event.
func (b *Builder) Terminated(sid, actor, reason string) Event {
	ev := b.base(SessionTerminated, sid)
	ev.Actor = actor
	ev.Reason = reason
	return ev
}

// StreamAdded builds a stream.added event.
func (b *Builder) StreamAdded(sid, stream, mediaType string) Event {
	ev := b.base(StreamAdded, sid)
	ev.Stream = stream
	ev.MediaType = mediaType
	return ev
}

// StreamClosed builds a stream.closed event.
func (b *Builder) StreamClosed(sid, stream string) Event {
	ev := b.base(StreamClosed, sid)
	ev.Stream = stream
	return ev
}
