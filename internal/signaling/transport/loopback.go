package transport

import (
	"log/slog"
	"sync"

	"github.com/chorus-im/chorus/internal/signaling/wire"
)

// Loopback is one end of an in-memory signaling connection, used to exercise
// two engines against each other without a network. Delivery is queued, not
// immediate: tests (or Settle) drain the queues explicitly, which keeps
// dispatch order deterministic and avoids re-entering a session that is
// still mid-send.
type Loopback struct {
	mu      sync.Mutex
	name    string
	peer    *Loopback
	handler Handler
	inbox   []*wire.Message
	pending map[string]ReplyFunc
	closed  bool
}

// NewLoopbackPair creates two connected loopback endpoints.
func NewLoopbackPair() (*Loopback, *Loopback) {
	a := &Loopback{name: "a", pending: make(map[string]ReplyFunc)}
	b := &Loopback{name: "b", pending: make(map[string]ReplyFunc)}
	a.peer = b
	b.peer = a
	return a, b
}

// SetHandler installs the consumer for inbound request stanzas.
func (l *Loopback) SetHandler(fn Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handler = fn
}

// Send implements Sender.
func (l *Loopback) Send(msg *wire.Message) error {
	return l.peer.enqueue(msg)
}

// SendWithReply implements Sender.
func (l *Loopback) SendWithReply(msg *wire.Message, fn ReplyFunc) error {
	l.mu.Lock()
	l.pending[msg.ID()] = fn
	l.mu.Unlock()
	return l.peer.enqueue(msg)
}

// Ack implements Sender.
func (l *Loopback) Ack(orig *wire.Message) error {
	return l.peer.enqueue(wire.Ack(orig))
}

// SendError implements Sender.
func (l *Loopback) SendError(orig *wire.Message, serr wire.StanzaError, text string) error {
	return l.peer.enqueue(wire.ErrorReply(orig, serr, text))
}

// Close shuts the endpoint down; further sends fail with ErrClosed.
func (l *Loopback) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
}

func (l *Loopback) enqueue(msg *wire.Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	l.inbox = append(l.inbox, msg)
	return nil
}

// Drain dispatches every queued inbound stanza, returning the number
// processed. Replies are matched to their callbacks by iq id; everything
// else goes to the handler.
func (l *Loopback) Drain() int {
	n := 0
	for {
		l.mu.Lock()
		if len(l.inbox) == 0 {
			l.mu.Unlock()
			return n
		}
		msg := l.inbox[0]
		l.inbox = l.inbox[1:]
		handler := l.handler

		var reply ReplyFunc
		if t := msg.Type(); t == "result" || t == "error" {
			reply = l.pending[msg.ID()]
			delete(l.pending, msg.ID())
		}
		l.mu.Unlock()

		switch {
		case reply != nil:
			reply(msg)
		case handler != nil:
			handler(msg)
		default:
			slog.Warn("[Loopback] Dropping stanza with no handler", "endpoint", l.name, "id", msg.ID())
		}
		n++
	}
}

// Settle drains both endpoints until no stanzas remain in flight.
func Settle(a, b *Loopback) {
	for a.Drain()+b.Drain() > 0 {
	}
}
