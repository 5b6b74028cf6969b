package factory

import (
	"testing"

	"github.com/beevik/etree"

	"github.com/chorus-im/chorus/internal/signaling/media"
	"github.com/chorus-im/chorus/internal/signaling/presence"
	"github.com/chorus-im/chorus/internal/signaling/session"
	"github.com/chorus-im/chorus/internal/signaling/transport"
	"github.com/chorus-im/chorus/internal/signaling/wire"
)

const (
	localJID = "juliet@example.net/balcony"
	peerJID  = "romeo@example.net/orchard"
)

func newTestFactory(t *testing.T) (*Factory, *transport.Recorder) {
	t.Helper()
	rec := transport.NewRecorder()
	f := New(Config{
		LocalAddress: localJID,
		Directory:    presence.NewDirectory(),
		Sender:       rec,
	})
	t.Cleanup(f.Close)
	return f, rec
}

// inbound builds a signaling stanza as it would arrive off the stream.
func inbound(action, sid string, build func(node *etree.Element)) *wire.Message {
	msg, node := wire.NewSessionMessage(localJID, wire.DialectJingle, action, sid, peerJID)
	msg.Root().CreateAttr("from", peerJID)
	if build != nil {
		build(node)
	}
	return msg
}

func withAudioContent(node *etree.Element) {
	content := node.CreateElement("content")
	content.CreateAttr("name", "voice")
	wire.AddDescription(content, wire.DialectJingle, media.TypeAudio,
		[]media.Codec{{ID: 8, Name: "PCMA", ClockRate: 8000}})
	wire.AddTransport(content)
}

func TestIgnoresNonSignalingStanzas(t *testing.T) {
	f, rec := newTestFactory(t)

	iq := etree.NewElement("iq")
	iq.CreateAttr("type", "set")
	iq.CreateAttr("id", "iq-1")
	iq.CreateAttr("from", peerJID)
	query := iq.CreateElement("query")
	query.CreateAttr("xmlns", "jabber:iq:roster")

	f.HandleMessage(wire.FromElement(iq))

	if n := len(rec.Errors()); n != 0 {
		t.Errorf("sent %d errors for a roster query, want 0", n)
	}
	if n := len(rec.Acks()); n != 0 {
		t.Errorf("sent %d acks for a roster query, want 0", n)
	}
}

func TestMalformedStanzaGetsBadRequest(t *testing.T) {
	f, rec := newTestFactory(t)

	iq := etree.NewElement("iq")
	iq.CreateAttr("type", "set")
	iq.CreateAttr("id", "iq-1")
	iq.CreateAttr("from", peerJID)
	node := iq.CreateElement("jingle")
	node.CreateAttr("xmlns", wire.NSJingle)
	node.CreateAttr("action", "session-initiate")
	// No sid.

	f.HandleMessage(wire.FromElement(iq))

	errs := rec.Errors()
	if len(errs) != 1 {
		t.Fatalf("sent %d errors, want 1", len(errs))
	}
	if errs[0].Err != wire.ErrBadRequest {
		t.Errorf("error = %v, want bad-request", errs[0].Err)
	}
}

func TestActionForUnknownSessionGetsBadRequest(t *testing.T) {
	f, rec := newTestFactory(t)

	f.HandleMessage(inbound("transport-info", "nope", nil))

	errs := rec.Errors()
	if len(errs) != 1 {
		t.Fatalf("sent %d errors, want 1", len(errs))
	}
	if errs[0].Err != wire.ErrBadRequest {
		t.Errorf("error = %v, want bad-request", errs[0].Err)
	}
}

func TestInboundInitiateCreatesSession(t *testing.T) {
	f, rec := newTestFactory(t)

	f.HandleMessage(inbound("session-initiate", "sess-9", withAudioContent))

	sess, ok := f.Session("sess-9")
	if !ok {
		t.Fatal("no session created for inbound initiate")
	}
	if sess.State() != session.PendingInitiated {
		t.Errorf("state = %v, want PendingInitiated", sess.State())
	}
	if len(rec.Acks()) != 1 {
		t.Errorf("sent %d acks, want 1", len(rec.Acks()))
	}
}

func TestRejectedInitiateLeavesNothingBehind(t *testing.T) {
	f, rec := newTestFactory(t)

	// A content with no description cannot create a stream.
	f.HandleMessage(inbound("session-initiate", "sess-9", func(node *etree.Element) {
		content := node.CreateElement("content")
		content.CreateAttr("name", "voice")
	}))

	if _, ok := f.Session("sess-9"); ok {
		t.Error("rejected initiate left a live session")
	}
	if len(rec.Errors()) != 1 {
		t.Errorf("sent %d errors, want 1", len(rec.Errors()))
	}
}

func TestRetriedTerminateAfterEndIsAcked(t *testing.T) {
	f, rec := newTestFactory(t)

	f.HandleMessage(inbound("session-initiate", "sess-9", withAudioContent))
	f.HandleMessage(inbound("session-terminate", "sess-9", nil))

	if _, ok := f.Session("sess-9"); ok {
		t.Fatal("terminated session still live")
	}

	// The peer retries because our ack got lost.
	f.HandleMessage(inbound("session-terminate", "sess-9", nil))

	if n := len(rec.Acks()); n != 3 {
		t.Errorf("sent %d acks, want 3 (initiate, terminate, retry)", n)
	}
	if n := len(rec.Errors()); n != 0 {
		t.Errorf("sent %d errors, want 0", n)
	}
}

func TestNewOutgoingSession(t *testing.T) {
	f, _ := newTestFactory(t)

	handle, _, err := f.cfg.Directory.HandleForAddress(peerJID)
	if err != nil {
		t.Fatal(err)
	}
	sess := f.NewOutgoingSession(handle)
	if sess.SID() == "" {
		t.Error("outgoing session has no sid")
	}

	got, ok := f.Session(sess.SID())
	if !ok || got != sess {
		t.Error("outgoing session not registered in the live table")
	}
	if len(f.Sessions()) != 1 {
		t.Errorf("Sessions() has %d entries, want 1", len(f.Sessions()))
	}
}

func TestCloseTerminatesLiveSessions(t *testing.T) {
	rec := transport.NewRecorder()
	f := New(Config{
		LocalAddress: localJID,
		Directory:    presence.NewDirectory(),
		Sender:       rec,
	})

	f.HandleMessage(inbound("session-initiate", "sess-9", withAudioContent))
	sess, ok := f.Session("sess-9")
	if !ok {
		t.Fatal("no session created")
	}

	f.Close()
	if sess.State() != session.Ended {
		t.Errorf("state after Close = %v, want Ended", sess.State())
	}
}

func TestOutgoingSessionIDsAreDistinct(t *testing.T) {
	f, _ := newTestFactory(t)

	handle, _, err := f.cfg.Directory.HandleForAddress(peerJID)
	if err != nil {
		t.Fatal(err)
	}

	seen := make(map[string]bool)
	for i := 0; i < 16; i++ {
		sess := f.NewOutgoingSession(handle)
		if seen[sess.SID()] {
			t.Fatalf("session id %q issued twice", sess.SID())
		}
		seen[sess.SID()] = true
	}
}

// stampingSender fills in the "from" attribute the way a server would before
// forwarding a stanza, so a loopback peer can tell who is talking to it.
type stampingSender struct {
	from string
	next transport.Sender
}

func (s stampingSender) Send(msg *wire.Message) error {
	msg.Root().CreateAttr("from", s.from)
	return s.next.Send(msg)
}

func (s stampingSender) SendWithReply(msg *wire.Message, fn transport.ReplyFunc) error {
	msg.Root().CreateAttr("from", s.from)
	return s.next.SendWithReply(msg, fn)
}

func (s stampingSender) Ack(orig *wire.Message) error { return s.next.Ack(orig) }

func (s stampingSender) SendError(orig *wire.Message, serr wire.StanzaError, text string) error {
	return s.next.SendError(orig, serr, text)
}

// TestTwoEnginesNegotiateCall runs a caller and a callee factory against each
// other over a loopback pair, checking that what one engine writes on the
// wire the other can parse back into the same call.
func TestTwoEnginesNegotiateCall(t *testing.T) {
	codecs := []media.Codec{{ID: 8, Name: "PCMA", ClockRate: 8000}}

	wireA, wireB := transport.NewLoopbackPair()

	dirA := presence.NewDirectory()
	callee, _, err := dirA.HandleForAddress(peerJID)
	if err != nil {
		t.Fatal(err)
	}
	dirA.SetResourceCaps(callee, "orchard",
		presence.CapsJingleAudio|presence.CapsJingleVideo)

	facA := New(Config{
		LocalAddress: localJID,
		Directory:    dirA,
		Sender:       stampingSender{localJID, wireA},
	})
	defer facA.Close()
	wireA.SetHandler(facA.HandleMessage)

	facB := New(Config{
		LocalAddress: peerJID,
		Directory:    presence.NewDirectory(),
		Sender:       stampingSender{peerJID, wireB},
	})
	defer facB.Close()
	wireB.SetHandler(facB.HandleMessage)

	caller := facA.NewOutgoingSession(callee)
	offered, err := caller.RequestStreams([]media.Type{media.TypeAudio, media.TypeVideo})
	if err != nil {
		t.Fatal(err)
	}
	for _, st := range offered {
		st.SetLocalCodecs(codecs)
	}
	transport.Settle(wireA, wireB)

	answer, ok := facB.Session(caller.SID())
	if !ok {
		t.Fatal("the callee never built a session from the initiate")
	}
	if got := caller.State(); got != session.PendingInitiated {
		t.Fatalf("caller state after ack = %v, want PendingInitiated", got)
	}

	// The callee's view of the streams must match what the caller offered.
	for _, want := range offered {
		got := answer.Stream(want.Name())
		if got == nil {
			t.Fatalf("stream %q missing on the callee", want.Name())
		}
		if got.MediaType() != want.MediaType() {
			t.Errorf("stream %q type = %v, want %v", want.Name(), got.MediaType(), want.MediaType())
		}
		dir := got.Direction()
		if dir.Direction != media.DirectionReceive || !dir.LocalPendingSend {
			t.Errorf("stream %q direction = %+v, want receive with pending send", want.Name(), dir)
		}
	}

	answer.Accept()
	for _, st := range answer.Streams() {
		st.SetLocalCodecs(codecs)
		st.SetConnectionState(media.ConnectionConnected)
	}
	transport.Settle(wireA, wireB)

	if got := caller.State(); got != session.Active {
		t.Errorf("caller state after accept = %v, want Active", got)
	}
	if got := answer.State(); got != session.Active {
		t.Errorf("callee state after accept ack = %v, want Active", got)
	}
	for _, st := range answer.Streams() {
		if d := st.Direction().Direction; d != media.DirectionBidirectional {
			t.Errorf("stream %q direction after accept = %v, want bidirectional", st.Name(), d)
		}
	}
}
