package wire

import (
	"errors"
	"fmt"

	"github.com/beevik/etree"
	"github.com/google/uuid"
)

// Errors returned while decoding inbound stanzas.
var (
	// ErrNotIQSet indicates the stanza is not an <iq type='set'>.
	ErrNotIQSet = errors.New("stanza is not an iq set")
	// ErrNoSessionNode indicates no jingle/session child was found.
	ErrNoSessionNode = errors.New("no session element in stanza")
	// ErrMalformed indicates a required attribute is missing.
	ErrMalformed = errors.New("malformed stanza")
)

// StanzaError is a protocol-level error condition reported to the peer in an
// IQ error reply.
type StanzaError struct {
	Code      int
	Condition string
}

// Stanza errors used by the signaling core.
var (
	// ErrBadRequest rejects a stanza the receiver cannot parse.
	ErrBadRequest = StanzaError{Code: 400, Condition: "bad-request"}
	// ErrNotAllowed rejects an action that is unknown or not permitted in
	// the current session state.
	ErrNotAllowed = StanzaError{Code: 405, Condition: "not-allowed"}
)

// Error implements the error interface.
func (e StanzaError) Error() string {
	return fmt.Sprintf("%s (%d)", e.Condition, e.Code)
}

// Message is one IQ stanza. It wraps the parsed element tree; the signaling
// core navigates and mutates it through etree directly.
type Message struct {
	root *etree.Element
}

// NewIQSet builds an empty <iq type='set'> addressed to the given JID, with a
// fresh unique id.
func NewIQSet(to string) *Message {
	iq := etree.NewElement("iq")
	iq.CreateAttr("type", "set")
	iq.CreateAttr("to", to)
	iq.CreateAttr("id", uuid.New().String())
	return &Message{root: iq}
}

// FromElement wraps an already parsed <iq> element.
func FromElement(el *etree.Element) *Message {
	return &Message{root: el}
}

// Parse decodes a serialized stanza.
func Parse(data []byte) (*Message, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parse stanza: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("parse stanza: %w", ErrMalformed)
	}
	return &Message{root: root}, nil
}

// Root returns the underlying <iq> element.
func (m *Message) Root() *etree.Element { return m.root }

// ID returns the stanza id, or "".
func (m *Message) ID() string { return m.root.SelectAttrValue("id", "") }

// From returns the sender address, or "".
func (m *Message) From() string { return m.root.SelectAttrValue("from", "") }

// To returns the recipient address, or "".
func (m *Message) To() string { return m.root.SelectAttrValue("to", "") }

// Type returns the iq type attribute, or "".
func (m *Message) Type() string { return m.root.SelectAttrValue("type", "") }

// IsResult reports whether the stanza is a successful iq reply.
func (m *Message) IsResult() bool { return m.Type() == "result" }

// Bytes serializes the stanza.
func (m *Message) Bytes() ([]byte, error) {
	doc := etree.NewDocument()
	doc.SetRoot(m.root.Copy())
	return doc.WriteToBytes()
}

// String serializes the stanza for logging, swallowing errors.
func (m *Message) String() string {
	b, err := m.Bytes()
	if err != nil {
		return fmt.Sprintf("<unserializable stanza: %v>", err)
	}
	return string(b)
}

// ChildWithNamespace returns the first child of el with the given element
// name and xmlns attribute, or nil.
func ChildWithNamespace(el *etree.Element, name, ns string) *etree.Element {
	for _, child := range el.ChildElements() {
		if child.Tag == name && child.SelectAttrValue("xmlns", "") == ns {
			return child
		}
	}
	return nil
}

// HasNamespace reports whether el carries the given xmlns attribute.
func HasNamespace(el *etree.Element, ns string) bool {
	return el.SelectAttrValue("xmlns", "") == ns
}

// Envelope is the decoded framing of an inbound signaling stanza: which
// dialect it speaks, the session node to operate on, and the routing
// attributes.
type Envelope struct {
	Msg     *Message
	Session *etree.Element
	Dialect Dialect
	Action  string
	SID     string
	From    string
	ID      string
}

// DecodeEnvelope frames an inbound stanza. It returns ErrNotIQSet for
// stanzas that are not signaling sets (callers should ignore those), and
// ErrNoSessionNode or ErrMalformed for stanzas that look like signaling but
// cannot be routed.
func DecodeEnvelope(m *Message) (*Envelope, error) {
	if m.root.Tag != "iq" || m.Type() != "set" {
		return nil, ErrNotIQSet
	}

	env := &Envelope{Msg: m}

	if node := ChildWithNamespace(m.root, "jingle", NSJingle); node != nil {
		env.Session = node
		env.Dialect = DialectJingle
	} else if node := ChildWithNamespace(m.root, "session", NSGoogleSession); node != nil {
		env.Session = node
		env.Dialect = DialectGoogle
	} else {
		return nil, ErrNoSessionNode
	}

	env.Action = env.Session.SelectAttrValue(env.Dialect.ActionAttr(), "")
	if env.Action == "" {
		return nil, fmt.Errorf("%w: missing action", ErrMalformed)
	}

	// Jingle uses "sid" but some legacy senders put "id" on the session
	// element regardless of dialect, so fall back.
	env.SID = env.Session.SelectAttrValue("sid", "")
	if env.SID == "" {
		env.SID = env.Session.SelectAttrValue("id", "")
	}
	if env.SID == "" {
		return nil, fmt.Errorf("%w: missing session id", ErrMalformed)
	}

	env.From = m.From()
	if env.From == "" {
		return nil, fmt.Errorf("%w: missing 'from'", ErrMalformed)
	}

	env.ID = m.ID()
	if env.ID == "" {
		return nil, fmt.Errorf("%w: missing 'id'", ErrMalformed)
	}

	return env, nil
}

// NewSessionMessage builds an outbound session action stanza: the iq set
// envelope plus the dialect's session element with its sid, action, and
// initiator attributes. It returns both the message and the session element
// for callers to append content to.
func NewSessionMessage(peer string, dialect Dialect, action, sid, initiator string) (*Message, *etree.Element) {
	msg := NewIQSet(peer)
	node := msg.root.CreateElement(dialect.SessionElement())
	node.CreateAttr("xmlns", dialect.Namespace())
	node.CreateAttr(dialect.SIDAttr(), sid)
	node.CreateAttr(dialect.ActionAttr(), action)
	node.CreateAttr("initiator", initiator)
	return msg, node
}

// Ack builds the iq result acknowledging orig.
func Ack(orig *Message) *Message {
	iq := etree.NewElement("iq")
	iq.CreateAttr("type", "result")
	iq.CreateAttr("id", orig.ID())
	if from := orig.From(); from != "" {
		iq.CreateAttr("to", from)
	}
	return &Message{root: iq}
}

// ErrorReply builds the iq error referencing orig, carrying the stanza error
// condition and an optional human-readable text.
func ErrorReply(orig *Message, serr StanzaError, text string) *Message {
	iq := etree.NewElement("iq")
	iq.CreateAttr("type", "error")
	iq.CreateAttr("id", orig.ID())
	if from := orig.From(); from != "" {
		iq.CreateAttr("to", from)
	}

	// Echo the offending payload back, per convention.
	for _, child := range orig.root.ChildElements() {
		iq.AddChild(child.Copy())
	}

	errEl := iq.CreateElement("error")
	errEl.CreateAttr("code", fmt.Sprintf("%d", serr.Code))
	errEl.CreateAttr("type", "cancel")
	cond := errEl.CreateElement(serr.Condition)
	cond.CreateAttr("xmlns", NSStanzaErrors)
	if text != "" {
		txt := errEl.CreateElement("text")
		txt.CreateAttr("xmlns", NSStanzaErrors)
		txt.SetText(text)
	}
	return &Message{root: iq}
}
