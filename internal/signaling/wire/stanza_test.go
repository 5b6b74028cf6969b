package wire

import (
	"errors"
	"testing"

	"github.com/beevik/etree"
)

func inboundIQ(typ string) *Message {
	iq := etree.NewElement("iq")
	iq.CreateAttr("type", typ)
	iq.CreateAttr("id", "iq-1")
	iq.CreateAttr("from", "romeo@example.net/orchard")
	iq.CreateAttr("to", "juliet@example.net/balcony")
	return FromElement(iq)
}

func TestDecodeEnvelopeJingle(t *testing.T) {
	msg := inboundIQ("set")
	node := msg.Root().CreateElement("jingle")
	node.CreateAttr("xmlns", NSJingle)
	node.CreateAttr("action", "session-initiate")
	node.CreateAttr("sid", "abc123")
	node.CreateAttr("initiator", "romeo@example.net/orchard")

	env, err := DecodeEnvelope(msg)
	if err != nil {
		t.Fatalf("DecodeEnvelope() error = %v", err)
	}
	if env.Dialect != DialectJingle {
		t.Errorf("Dialect = %v, want jingle", env.Dialect)
	}
	if env.Action != "session-initiate" {
		t.Errorf("Action = %q, want session-initiate", env.Action)
	}
	if env.SID != "abc123" {
		t.Errorf("SID = %q, want abc123", env.SID)
	}
	if env.From != "romeo@example.net/orchard" {
		t.Errorf("From = %q", env.From)
	}
}

func TestDecodeEnvelopeGoogle(t *testing.T) {
	msg := inboundIQ("set")
	node := msg.Root().CreateElement("session")
	node.CreateAttr("xmlns", NSGoogleSession)
	node.CreateAttr("type", "initiate")
	node.CreateAttr("id", "g-77")
	node.CreateAttr("initiator", "romeo@example.net/orchard")

	env, err := DecodeEnvelope(msg)
	if err != nil {
		t.Fatalf("DecodeEnvelope() error = %v", err)
	}
	if env.Dialect != DialectGoogle {
		t.Errorf("Dialect = %v, want google", env.Dialect)
	}
	if env.Action != "initiate" {
		t.Errorf("Action = %q, want initiate", env.Action)
	}
	if env.SID != "g-77" {
		t.Errorf("SID = %q, want g-77", env.SID)
	}
}

func TestDecodeEnvelopeIgnoresNonSet(t *testing.T) {
	msg := inboundIQ("result")
	if _, err := DecodeEnvelope(msg); !errors.Is(err, ErrNotIQSet) {
		t.Errorf("error = %v, want ErrNotIQSet", err)
	}
}

func TestDecodeEnvelopeIgnoresForeignPayload(t *testing.T) {
	msg := inboundIQ("set")
	node := msg.Root().CreateElement("query")
	node.CreateAttr("xmlns", "jabber:iq:roster")

	if _, err := DecodeEnvelope(msg); !errors.Is(err, ErrNoSessionNode) {
		t.Errorf("error = %v, want ErrNoSessionNode", err)
	}
}

func TestDecodeEnvelopeMissingSID(t *testing.T) {
	msg := inboundIQ("set")
	node := msg.Root().CreateElement("jingle")
	node.CreateAttr("xmlns", NSJingle)
	node.CreateAttr("action", "session-initiate")

	if _, err := DecodeEnvelope(msg); !errors.Is(err, ErrMalformed) {
		t.Errorf("error = %v, want ErrMalformed", err)
	}
}

func TestDecodeEnvelopeMissingFrom(t *testing.T) {
	msg := inboundIQ("set")
	msg.Root().RemoveAttr("from")
	node := msg.Root().CreateElement("jingle")
	node.CreateAttr("xmlns", NSJingle)
	node.CreateAttr("action", "session-initiate")
	node.CreateAttr("sid", "abc123")

	if _, err := DecodeEnvelope(msg); !errors.Is(err, ErrMalformed) {
		t.Errorf("error = %v, want ErrMalformed", err)
	}
}

func TestNewSessionMessageRoundTrips(t *testing.T) {
	msg, node := NewSessionMessage("romeo@example.net/orchard", DialectJingle,
		"session-initiate", "abc123", "juliet@example.net/balcony")
	if node.Tag != "jingle" {
		t.Errorf("session element = %q, want jingle", node.Tag)
	}
	if msg.To() != "romeo@example.net/orchard" {
		t.Errorf("To = %q", msg.To())
	}
	if msg.ID() == "" {
		t.Error("outbound iq has no id")
	}

	// A receiver decodes it once the server has stamped the sender.
	msg.Root().CreateAttr("from", "juliet@example.net/balcony")
	env, err := DecodeEnvelope(msg)
	if err != nil {
		t.Fatalf("DecodeEnvelope() error = %v", err)
	}
	if env.SID != "abc123" || env.Action != "session-initiate" {
		t.Errorf("decoded sid=%q action=%q", env.SID, env.Action)
	}
}

func TestAck(t *testing.T) {
	orig := inboundIQ("set")
	ack := Ack(orig)
	if !ack.IsResult() {
		t.Error("ack is not an iq result")
	}
	if ack.ID() != orig.ID() {
		t.Errorf("ack id = %q, want %q", ack.ID(), orig.ID())
	}
	if ack.To() != orig.From() {
		t.Errorf("ack to = %q, want %q", ack.To(), orig.From())
	}
}

func TestErrorReplyShape(t *testing.T) {
	orig := inboundIQ("set")
	node := orig.Root().CreateElement("jingle")
	node.CreateAttr("xmlns", NSJingle)

	reply := ErrorReply(orig, ErrNotAllowed, "unknown action")
	if reply.Type() != "error" {
		t.Fatalf("reply type = %q, want error", reply.Type())
	}
	if reply.ID() != orig.ID() {
		t.Errorf("reply id = %q, want %q", reply.ID(), orig.ID())
	}

	// The offending payload is echoed back.
	if ChildWithNamespace(reply.Root(), "jingle", NSJingle) == nil {
		t.Error("offending payload not echoed in error reply")
	}

	errEl := reply.Root().SelectElement("error")
	if errEl == nil {
		t.Fatal("no error element")
	}
	if code := errEl.SelectAttrValue("code", ""); code != "405" {
		t.Errorf("error code = %q, want 405", code)
	}
	cond := errEl.SelectElement("not-allowed")
	if cond == nil {
		t.Fatal("no not-allowed condition")
	}
	if txt := errEl.SelectElement("text"); txt == nil || txt.Text() != "unknown action" {
		t.Error("missing or wrong error text")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse([]byte("<iq")); err == nil {
		t.Error("Parse accepted unterminated XML")
	}
}
