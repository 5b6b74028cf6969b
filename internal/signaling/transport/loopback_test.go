package transport

import (
	"testing"

	"github.com/chorus-im/chorus/internal/signaling/wire"
)

func loopbackIQ() *wire.Message {
	msg := wire.NewIQSet("romeo@example.net/orchard")
	msg.Root().CreateAttr("from", "juliet@example.net/balcony")
	return msg
}

func TestLoopbackRequestReply(t *testing.T) {
	a, b := NewLoopbackPair()
	b.SetHandler(func(msg *wire.Message) {
		b.Ack(msg)
	})

	msg := loopbackIQ()
	var reply *wire.Message
	if err := a.SendWithReply(msg, func(r *wire.Message) { reply = r }); err != nil {
		t.Fatalf("SendWithReply() error = %v", err)
	}

	Settle(a, b)

	if reply == nil {
		t.Fatal("no reply delivered")
	}
	if !reply.IsResult() {
		t.Errorf("reply type = %q, want result", reply.Type())
	}
	if reply.ID() != msg.ID() {
		t.Errorf("reply id = %q, want %q", reply.ID(), msg.ID())
	}
}

func TestLoopbackErrorRoutedToCallback(t *testing.T) {
	a, b := NewLoopbackPair()
	b.SetHandler(func(msg *wire.Message) {
		b.SendError(msg, wire.ErrNotAllowed, "nope")
	})

	var reply *wire.Message
	a.SendWithReply(loopbackIQ(), func(r *wire.Message) { reply = r })

	Settle(a, b)

	if reply == nil {
		t.Fatal("no reply delivered")
	}
	if reply.Type() != "error" {
		t.Errorf("reply type = %q, want error", reply.Type())
	}
}

func TestLoopbackFireAndForget(t *testing.T) {
	a, b := NewLoopbackPair()
	var got *wire.Message
	b.SetHandler(func(msg *wire.Message) { got = msg })

	msg := loopbackIQ()
	if err := a.Send(msg); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	Settle(a, b)

	if got == nil || got.ID() != msg.ID() {
		t.Error("stanza not delivered to the peer handler")
	}
}

func TestLoopbackSendAfterCloseFails(t *testing.T) {
	a, b := NewLoopbackPair()
	b.Close()

	if err := a.Send(loopbackIQ()); err != ErrClosed {
		t.Errorf("Send() after peer close = %v, want ErrClosed", err)
	}
}
