// Package transport abstracts how signaling stanzas reach the peer. The
// session core only depends on the Sender interface; implementations include
// a stanza stream over a network connection and an in-memory loopback used
// by tests.
package transport

import (
	"errors"

	"github.com/chorus-im/chorus/internal/signaling/wire"
)

// ErrClosed indicates the transport has been shut down.
var ErrClosed = errors.New("transport closed")

// ReplyFunc is invoked with the peer's reply to a message sent with
// SendWithReply. Callbacks must check that the reply still matters: the
// session may have moved on (or terminated) while the round-trip was in
// flight.
type ReplyFunc func(reply *wire.Message)

// Sender is the outbound half of the signaling connection.
type Sender interface {
	// Send transmits a stanza, fire-and-forget.
	Send(msg *wire.Message) error

	// SendWithReply transmits a stanza and registers fn to receive the
	// matching iq reply. It never blocks waiting for the reply.
	SendWithReply(msg *wire.Message, fn ReplyFunc) error

	// Ack sends the iq result acknowledging orig.
	Ack(orig *wire.Message) error

	// SendError sends an iq error referencing orig.
	SendError(orig *wire.Message, serr wire.StanzaError, text string) error
}

// Handler consumes inbound request stanzas (anything that is not a reply to
// a message we sent).
type Handler func(msg *wire.Message)
