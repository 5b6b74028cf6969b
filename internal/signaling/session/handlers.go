package session

import (
	"fmt"

	"github.com/beevik/etree"

	"github.com/chorus-im/chorus/internal/signaling/media"
	"github.com/chorus-im/chorus/internal/signaling/wire"
)

// contentNode is one parsed content element of an inbound action. For the
// Google dialect the session node itself plays the content role and the
// stream name is fixed.
type contentNode struct {
	node  *etree.Element
	name  string
	desc  *etree.Element
	trans *etree.Element
}

// parseContents splits a session node into the content nodes the handlers
// run over. A Jingle session node with no content children yields a single
// nil content so stateless actions like terminate still run once.
func parseContents(sessionNode *etree.Element, dialect wire.Dialect) ([]*contentNode, error) {
	if dialect == wire.DialectGoogle {
		return []*contentNode{{
			node:  sessionNode,
			name:  googleStreamName,
			desc:  childNamed(sessionNode, "description"),
			trans: childTransport(sessionNode),
		}}, nil
	}

	var contents []*contentNode
	for _, child := range sessionNode.ChildElements() {
		if child.Tag != "content" {
			continue
		}
		name := child.SelectAttrValue("name", "")
		if name == "" {
			return nil, fmt.Errorf("content node without a name")
		}
		contents = append(contents, &contentNode{
			node:  child,
			name:  name,
			desc:  childNamed(child, "description"),
			trans: childTransport(child),
		})
	}
	if contents == nil {
		contents = []*contentNode{nil}
	}
	return contents, nil
}

func childNamed(el *etree.Element, tag string) *etree.Element {
	for _, child := range el.ChildElements() {
		if child.Tag == tag {
			return child
		}
	}
	return nil
}

func childTransport(el *etree.Element) *etree.Element {
	for _, child := range el.ChildElements() {
		if child.Tag == "transport" && child.NamespaceURI() == wire.NSGoogleTransportP2P {
			return child
		}
	}
	return nil
}

// lookup resolves the content's stream, which an earlier handler in the
// chain may have just created.
func (c *contentNode) lookup(s *Session) *Stream {
	if c == nil || c.name == "" {
		return nil
	}
	return s.streams.byName(c.name)
}

// handleCreate builds a new remotely created stream from a content node,
// switching session dialect if the peer's description demands it and no
// streams exist yet.
func handleCreate(s *Session, action string, content *contentNode) error {
	if content == nil {
		return fmt.Errorf("%s without a content node", action)
	}
	if content.lookup(s) != nil {
		return fmt.Errorf("stream %q already exists", content.name)
	}
	if content.desc == nil {
		return fmt.Errorf("stream %q has no content description", content.name)
	}

	var (
		dialect   wire.Dialect
		mediaType media.Type
	)
	switch content.desc.NamespaceURI() {
	case wire.NSGoogleSessionPhone:
		dialect, mediaType = wire.DialectGoogle, media.TypeAudio
	case wire.NSJingleDescriptionAudio:
		dialect, mediaType = wire.DialectJingle, media.TypeAudio
	case wire.NSJingleDescriptionVideo:
		dialect, mediaType = wire.DialectJingle, media.TypeVideo
	default:
		return fmt.Errorf("unsupported content description on stream %q", content.name)
	}

	// Google contents may omit the transport node.
	if dialect == wire.DialectJingle && content.trans == nil {
		return fmt.Errorf("unsupported transport on stream %q", content.name)
	}

	if dialect != s.dialect {
		if s.streams.len() > 0 {
			return fmt.Errorf("refusing dialect change with live streams")
		}
		s.log.Info("[Session] Switching dialect", "sid", s.sid, "dialect", dialect)
		s.dialect = dialect
	}

	if s.streams.len() >= maxStreams {
		return ErrStreamLimit
	}

	_, err := s.createStreamLocked(content.name, InitiatorRemote, mediaType)
	return err
}

// sendersToDirection maps a content's senders attribute onto a local
// direction relative to the session initiator.
func (s *Session) sendersToDirection(senders string) media.Direction {
	switch senders {
	case "initiator":
		if s.initiator == InitiatorLocal {
			return media.DirectionSend
		}
		return media.DirectionReceive
	case "responder":
		if s.initiator == InitiatorRemote {
			return media.DirectionSend
		}
		return media.DirectionReceive
	case "both":
		return media.DirectionBidirectional
	default:
		return media.DirectionNone
	}
}

// directionToSenders is the inverse mapping, used on the sending path.
func (s *Session) directionToSenders(dir media.Direction) string {
	switch dir {
	case media.DirectionSend:
		if s.initiator == InitiatorLocal {
			return "initiator"
		}
		return "responder"
	case media.DirectionReceive:
		if s.initiator == InitiatorRemote {
			return "initiator"
		}
		return "responder"
	default:
		return "both"
	}
}

// handleDirection applies the content's senders attribute. A request that
// would start local sending is not applied directly; it raises the local
// pending send flag and waits for the local user to accept.
func handleDirection(s *Session, action string, content *contentNode) error {
	if s.dialect == wire.DialectGoogle {
		return nil
	}
	if content == nil {
		return fmt.Errorf("%s without a content node", action)
	}

	st := content.lookup(s)
	if st == nil {
		return fmt.Errorf("direction for unknown stream %q", content.name)
	}

	requested := media.DirectionBidirectional
	senders := content.node.SelectAttrValue("senders", "")
	if senders != "" {
		requested = s.sendersToDirection(senders)
	}
	if requested == media.DirectionNone {
		return fmt.Errorf("invalid senders %q on stream %q", senders, content.name)
	}

	combined := st.direction
	if !combined.Direction.CanSend() && requested.CanSend() {
		requested &^= media.DirectionSend
		combined.LocalPendingSend = true
	}
	combined.Direction = requested
	st.direction = combined
	return nil
}

// handleAccept marks the content's stream as playing.
func handleAccept(s *Session, action string, content *contentNode) error {
	if content == nil {
		return fmt.Errorf("%s without a content node", action)
	}
	st := content.lookup(s)
	if st == nil {
		return fmt.Errorf("accept for unknown stream %q", content.name)
	}
	st.playing = true
	st.direction.RemotePendingSend = false
	st.sig = sigAcknowledged
	return nil
}

// handleCodecs forwards the content's payload types to the stream's media
// sink.
func handleCodecs(s *Session, action string, content *contentNode) error {
	if content == nil {
		return fmt.Errorf("%s without a content node", action)
	}
	st := content.lookup(s)
	if st == nil {
		return fmt.Errorf("codecs for unknown stream %q", content.name)
	}
	if content.desc == nil {
		return fmt.Errorf("codecs without a content description on stream %q", content.name)
	}
	codecs, err := wire.ParseCodecs(content.desc)
	if err != nil {
		return err
	}
	return st.applyRemoteCodecsLocked(codecs)
}

// handleCandidates forwards the content's transport candidates to the
// stream's media sink. Google puts candidates directly under the session
// node, so the content node doubles as the transport node there.
func handleCandidates(s *Session, action string, content *contentNode) error {
	if content == nil {
		return fmt.Errorf("%s without a content node", action)
	}
	st := content.lookup(s)
	if st == nil {
		return fmt.Errorf("candidates for unknown stream %q", content.name)
	}
	trans := content.trans
	if trans == nil {
		if s.dialect != wire.DialectGoogle {
			return fmt.Errorf("candidates without a transport node on stream %q", content.name)
		}
		trans = content.node
	}
	cands, err := wire.ParseCandidates(trans)
	if err != nil {
		return err
	}
	return st.applyRemoteCandidatesLocked(cands)
}

// handleRemove closes a stream at the peer's request. Reducing a session to
// zero streams is invalid; the peer should have terminated instead.
func handleRemove(s *Session, action string, content *contentNode) error {
	if content == nil {
		return fmt.Errorf("%s without a content node", action)
	}
	st := content.lookup(s)
	if st == nil {
		return fmt.Errorf("%s for unknown stream %q", action, content.name)
	}
	if s.streams.len() == 1 {
		return ErrLastStream
	}
	s.closeStreamLocked(st)
	return nil
}

// handleTerminate ends the session at the peer's request. No terminate is
// sent back; the bare ack suffices.
func handleTerminate(s *Session, action string, content *contentNode) error {
	s.terminateLocked(ActorRemote, ReasonRequested)
	return nil
}
