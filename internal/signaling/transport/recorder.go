package transport

import (
	"sync"

	"github.com/chorus-im/chorus/internal/signaling/wire"
)

// SentMessage is one stanza captured by a Recorder.
type SentMessage struct {
	Msg *wire.Message
	// AwaitsReply reports whether the sender registered a reply callback.
	AwaitsReply bool
}

// SentError is one error reply captured by a Recorder.
type SentError struct {
	Orig *wire.Message
	Err  wire.StanzaError
	Text string
}

// Recorder is a Sender that captures everything sent through it, for tests
// that need to assert on outbound traffic and to hand-craft the peer's
// replies.
type Recorder struct {
	mu      sync.Mutex
	sent    []SentMessage
	acks    []*wire.Message
	errors  []SentError
	pending map[string]ReplyFunc
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{pending: make(map[string]ReplyFunc)}
}

// Send implements Sender.
func (r *Recorder) Send(msg *wire.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, SentMessage{Msg: msg})
	return nil
}

// SendWithReply implements Sender.
func (r *Recorder) SendWithReply(msg *wire.Message, fn ReplyFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, SentMessage{Msg: msg, AwaitsReply: true})
	r.pending[msg.ID()] = fn
	return nil
}

// Ack implements Sender.
func (r *Recorder) Ack(orig *wire.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.acks = append(r.acks, orig)
	return nil
}

// SendError implements Sender.
func (r *Recorder) SendError(orig *wire.Message, serr wire.StanzaError, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, SentError{Orig: orig, Err: serr, Text: text})
	return nil
}

// Sent returns a snapshot of the captured outbound stanzas.
func (r *Recorder) Sent() []SentMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SentMessage, len(r.sent))
	copy(out, r.sent)
	return out
}

// LastSent returns the most recently sent stanza, or nil.
func (r *Recorder) LastSent() *wire.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return nil
	}
	return r.sent[len(r.sent)-1].Msg
}

// Acks returns a snapshot of the acknowledged stanzas.
func (r *Recorder) Acks() []*wire.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*wire.Message, len(r.acks))
	copy(out, r.acks)
	return out
}

// Errors returns a snapshot of the error replies sent.
func (r *Recorder) Errors() []SentError {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SentError, len(r.errors))
	copy(out, r.errors)
	return out
}

// Reply delivers a reply for the sent stanza with the given id to its
// registered callback. It reports whether a callback was waiting.
func (r *Recorder) Reply(id string, reply *wire.Message) bool {
	r.mu.Lock()
	fn := r.pending[id]
	delete(r.pending, id)
	r.mu.Unlock()
	if fn == nil {
		return false
	}
	fn(reply)
	return true
}

// Reset discards all captured traffic but keeps pending reply callbacks.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
	r.acks = nil
	r.errors = nil
}
