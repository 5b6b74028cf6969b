// Package wire models the protocol stanzas exchanged during call signaling:
// IQ envelopes, the Jingle and Google Session dialect framing, and the
// element forms for codec and candidate payloads.
package wire

import "fmt"

// XML namespaces used by the two signaling dialects.
const (
	// NSJingle is the Jingle session envelope namespace.
	NSJingle = "http://jabber.org/protocol/jingle"
	// NSJingleDescriptionAudio marks a Jingle audio content description.
	NSJingleDescriptionAudio = "http://jabber.org/protocol/jingle/description/audio"
	// NSJingleDescriptionVideo marks a Jingle video content description.
	NSJingleDescriptionVideo = "http://jabber.org/protocol/jingle/description/video"
	// NSGoogleSession is the legacy Google Session envelope namespace.
	NSGoogleSession = "http://www.google.com/session"
	// NSGoogleSessionPhone marks the legacy Google voice description.
	NSGoogleSessionPhone = "http://www.google.com/session/phone"
	// NSGoogleTransportP2P is the peer-to-peer transport namespace shared by
	// both dialects.
	NSGoogleTransportP2P = "http://www.google.com/transport/p2p"
	// NSStanzaErrors is the namespace of stanza error conditions.
	NSStanzaErrors = "urn:ietf:params:xml:ns:xmpp-stanzas"
)

// Dialect selects between the two incompatible wire dialects a session can
// speak. The dialect governs element names, attribute names, and how many
// content blocks a message may carry.
type Dialect int

const (
	// DialectJingle is the XMPP Jingle dialect.
	DialectJingle Dialect = iota
	// DialectGoogle is the legacy Google Session dialect: a single implicit
	// audio content block, no native reject verb.
	DialectGoogle
)

// String returns the string representation of the dialect.
func (d Dialect) String() string {
	switch d {
	case DialectJingle:
		return "jingle"
	case DialectGoogle:
		return "google"
	default:
		return fmt.Sprintf("Unknown(%d)", int(d))
	}
}

// SessionElement returns the session envelope element name for the dialect.
func (d Dialect) SessionElement() string {
	if d == DialectGoogle {
		return "session"
	}
	return "jingle"
}

// Namespace returns the session envelope namespace for the dialect.
func (d Dialect) Namespace() string {
	if d == DialectGoogle {
		return NSGoogleSession
	}
	return NSJingle
}

// SIDAttr returns the attribute carrying the session id.
func (d Dialect) SIDAttr() string {
	if d == DialectGoogle {
		return "id"
	}
	return "sid"
}

// ActionAttr returns the attribute carrying the action name.
func (d Dialect) ActionAttr() string {
	if d == DialectGoogle {
		return "type"
	}
	return "action"
}
