package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/beevik/etree"

	"github.com/chorus-im/chorus/internal/signaling/events"
	"github.com/chorus-im/chorus/internal/signaling/media"
	"github.com/chorus-im/chorus/internal/signaling/presence"
	"github.com/chorus-im/chorus/internal/signaling/transport"
	"github.com/chorus-im/chorus/internal/signaling/wire"
)

// DefaultTimeout is how long a session may sit in a pending state before the
// engine gives up on it.
const DefaultTimeout = 50 * time.Second

// Config carries everything a session needs at construction time.
type Config struct {
	SID          string
	LocalAddress string
	PeerHandle   presence.Handle
	PeerResource string
	Initiator    Initiator
	Dialect      wire.Dialect
	Timeout      time.Duration

	Directory *presence.Directory
	Sender    transport.Sender
	Sinks     media.SinkFactory
	Log       *slog.Logger
	Events    events.Publisher
	Metrics   *Metrics

	// OnEnded is invoked once, with the session lock held, when the session
	// reaches Ended. The callback must not call back into the session.
	OnEnded func(sid string)
}

// Session is one signaling dialog with a single peer resource. All fields are
// guarded by mu; wire sends happen under the lock, which is safe because the
// Sender contract never blocks on the peer.
type Session struct {
	mu sync.Mutex

	sid          string
	localAddr    string
	peerHandle   presence.Handle
	peerResource string
	initiator    Initiator
	dialect      wire.Dialect

	state           State
	streams         streamSet
	nextStreamID    uint
	locallyAccepted bool

	directory *presence.Directory
	sender    transport.Sender
	sinks     media.SinkFactory
	log       *slog.Logger
	events    events.Publisher
	builder   *events.Builder
	metrics   *Metrics

	guard   *timeoutGuard
	onEnded func(sid string)
}

// New constructs a session in PendingCreated.
func New(cfg Config) *Session {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	ev := cfg.Events
	if ev == nil {
		ev = events.Discard{}
	}

	s := &Session{
		sid:          cfg.SID,
		localAddr:    cfg.LocalAddress,
		peerHandle:   cfg.PeerHandle,
		peerResource: cfg.PeerResource,
		initiator:    cfg.Initiator,
		dialect:      cfg.Dialect,
		state:        PendingCreated,
		directory:    cfg.Directory,
		sender:       cfg.Sender,
		sinks:        cfg.Sinks,
		log:          log,
		events:       ev,
		builder:      events.NewBuilder(cfg.LocalAddress),
		metrics:      cfg.Metrics,
		onEnded:      cfg.OnEnded,
	}
	s.guard = newTimeoutGuard(s, cfg.Timeout)

	if s.metrics != nil {
		s.metrics.SessionsActive.Inc()
	}
	peer, _ := s.peerAddressLocked()
	s.events.Publish(s.builder.SessionCreated(s.sid, peer))
	return s
}

// SID returns the session id.
func (s *Session) SID() string { return s.sid }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dialect returns the dialect the session currently speaks.
func (s *Session) Dialect() wire.Dialect {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dialect
}

// PeerHandle returns the contact handle of the peer.
func (s *Session) PeerHandle() presence.Handle { return s.peerHandle }

// Streams returns a snapshot of the session's streams.
func (s *Session) Streams() []*Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streams.all()
}

// Stream returns the named stream, or nil.
func (s *Session) Stream(name string) *Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streams.byName(name)
}

// peerAddressLocked resolves the peer's full address from the directory.
func (s *Session) peerAddressLocked() (string, error) {
	return s.directory.FullAddress(s.peerHandle, s.peerResource)
}

// initiatorAddressLocked resolves the session initiator's full address, which
// is stamped on every outbound session element.
func (s *Session) initiatorAddressLocked() (string, error) {
	if s.initiator == InitiatorLocal {
		return s.localAddr, nil
	}
	return s.peerAddressLocked()
}

// HandleAction processes one inbound action stanza for this session. The
// stanza is acknowledged on success and answered with a not-allowed error
// when the action is unknown, arrives in the wrong state, or a handler
// rejects its payload.
func (s *Session) HandleAction(env *wire.Envelope) {
	s.mu.Lock()

	s.log.Info("[Session] Action received",
		"sid", s.sid,
		"action", env.Action,
		"state", s.state.String())

	entry := lookupAction(env.Action)
	if entry == nil {
		s.mu.Unlock()
		s.countAction(env.Action, "unknown")
		s.log.Warn("[Session] Unrecognised action", "sid", s.sid, "action", env.Action)
		s.sender.SendError(env.Msg, wire.ErrNotAllowed, "")
		return
	}
	if !entry.admits(s.state) {
		state := s.state
		s.mu.Unlock()
		s.countAction(env.Action, "wrong_state")
		s.log.Warn("[Session] Action not allowed in state",
			"sid", s.sid, "action", env.Action, "state", state.String())
		s.sender.SendError(env.Msg, wire.ErrNotAllowed, "")
		return
	}

	if err := s.runHandlersLocked(entry, env); err != nil {
		s.mu.Unlock()
		s.countAction(env.Action, "rejected")
		s.log.Warn("[Session] Action rejected",
			"sid", s.sid, "action", env.Action, "error", err.Error())
		s.sender.SendError(env.Msg, wire.ErrNotAllowed, err.Error())
		return
	}

	if entry.newState != stateInvalid {
		s.setStateLocked(entry.newState)
	}
	s.mu.Unlock()

	s.countAction(env.Action, "ok")
	s.sender.Ack(env.Msg)
}

func (s *Session) runHandlersLocked(entry *actionEntry, env *wire.Envelope) error {
	contents, err := parseContents(env.Session, env.Dialect)
	if err != nil {
		return err
	}
	for _, content := range contents {
		for _, fn := range entry.funcs {
			if err := fn(s, env.Action, content); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Session) countAction(action, result string) {
	if s.metrics != nil {
		s.metrics.ActionsTotal.WithLabelValues(action, result).Inc()
	}
}

// setStateLocked commits a state transition: logging, events, and the
// pending-state timeout guard.
func (s *Session) setStateLocked(next State) {
	if next == s.state {
		return
	}
	prev := s.state
	s.state = next

	s.log.Info("[Session] State changed",
		"sid", s.sid,
		"from", prev.String(),
		"to", next.String())
	s.events.Publish(s.builder.StateChanged(s.sid, prev.String(), next.String()))

	// The guard runs while we wait for the peer: from the moment the remote
	// end initiated, or from the moment we sent our initiate.
	if (prev == PendingCreated && next == PendingInitiated) || next == PendingInitiateSent {
		s.guard.armLocked()
	} else if next == Active {
		s.guard.disarmLocked()
	} else if next == Ended {
		s.guard.disarmLocked()
		if s.metrics != nil {
			s.metrics.SessionsActive.Dec()
		}
		if s.onEnded != nil {
			s.onEnded(s.sid)
		}
	}
}

// createStreamLocked builds a stream and its media sink. Remotely created
// Jingle streams start receive-only; sending waits for the local user.
func (s *Session) createStreamLocked(name string, creator Initiator, t media.Type) (*Stream, error) {
	dir := media.DirectionBidirectional
	if s.dialect != wire.DialectGoogle && creator == InitiatorRemote {
		dir = media.DirectionReceive
	}

	s.nextStreamID++
	st := &Stream{
		sess:      s,
		id:        s.nextStreamID,
		name:      name,
		mediaType: t,
		creator:   creator,
		direction: media.CombinedDirection{Direction: dir},
	}
	// The peer already knows about a stream it created, so candidates for
	// it may be signalled immediately.
	if creator == InitiatorRemote {
		st.sig = sigAcknowledged
	}
	if s.sinks != nil {
		sink, err := s.sinks(name, t)
		if err != nil {
			return nil, fmt.Errorf("create media sink for %q: %w", name, err)
		}
		st.sink = sink
	}
	s.streams.add(st)

	s.log.Info("[Session] Stream created",
		"sid", s.sid,
		"stream", name,
		"media_type", t.String(),
		"creator", creator.String())
	s.events.Publish(s.builder.StreamAdded(s.sid, name, t.String()))
	return st, nil
}

// closeStreamLocked tears a stream down and forgets it.
func (s *Session) closeStreamLocked(st *Stream) {
	st.closeLocked()
	s.streams.remove(st)
	s.log.Info("[Session] Stream closed", "sid", s.sid, "stream", st.name)
	s.events.Publish(s.builder.StreamClosed(s.sid, st.name))
}

// streamCodecsReadyLocked is called when a stream's local codecs arrive.
func (s *Session) streamCodecsReadyLocked(st *Stream) {
	s.log.Info("[Session] Stream has local codecs", "sid", s.sid, "stream", st.name)

	if st.playing {
		return
	}

	if s.state < Active {
		if s.initiator == InitiatorRemote {
			if s.state < PendingAcceptSent {
				s.tryAcceptLocked()
			}
			// Streams added after our accept wait for the peer's answer.
		} else {
			if s.state < PendingInitiateSent {
				s.tryInitiateLocked()
			}
			// Streams added after our initiate wait for the peer's accept.
		}
		return
	}

	// Active sessions negotiate per stream.
	if st.creator == InitiatorRemote {
		s.tryContentAcceptLocked(st)
	} else {
		s.doContentAddLocked(st)
	}
}

// streamConnectedLocked is called when a stream's transport goes connected.
func (s *Session) streamConnectedLocked(st *Stream) {
	s.log.Info("[Session] Stream connected", "sid", s.sid, "stream", st.name)

	if st.playing {
		return
	}

	if s.state < Active {
		if s.initiator == InitiatorRemote {
			s.tryAcceptLocked()
		}
		return
	}
	if st.creator == InitiatorRemote {
		s.tryContentAcceptLocked(st)
	}
}

// notReadyForAccept reports whether a stream is holding up a session accept.
// Locally added streams never do; they are signalled after the accept.
func (s *Session) notReadyForAccept(st *Stream) bool {
	if st.creator == InitiatorLocal {
		return false
	}
	return !st.ready() || !st.connected()
}

// newSessionMessageLocked builds an outbound action stanza addressed to the
// peer, returning the message and its session element.
func (s *Session) newSessionMessageLocked(action string) (*wire.Message, *etree.Element, error) {
	peer, err := s.peerAddressLocked()
	if err != nil {
		return nil, nil, err
	}
	initiator, err := s.initiatorAddressLocked()
	if err != nil {
		return nil, nil, err
	}
	msg, node := wire.NewSessionMessage(peer, s.dialect, action, s.sid, initiator)
	return msg, node, nil
}

// addContentDescriptionsLocked appends a content description per stream with
// the given creator. In the Google dialect the description lands directly on
// the session element.
func (s *Session) addContentDescriptionsLocked(node *etree.Element, creator Initiator) {
	for _, st := range s.streams.all() {
		if st.creator != creator {
			continue
		}
		s.addContentDescriptionLocked(node, st)
	}
}

func (s *Session) addContentDescriptionLocked(node *etree.Element, st *Stream) {
	content := node
	if s.dialect != wire.DialectGoogle {
		content = node.CreateElement("content")
		content.CreateAttr("name", st.name)
	}
	wire.AddDescription(content, s.dialect, st.mediaType, st.localCodecs)
	if s.dialect != wire.DialectGoogle {
		wire.AddTransport(content)
	}
}

// tryInitiateLocked sends the session initiate once every stream has local
// codecs.
func (s *Session) tryInitiateLocked() {
	for _, st := range s.streams.all() {
		if !st.ready() {
			s.log.Info("[Session] Holding initiate, stream missing local codecs",
				"sid", s.sid, "stream", st.name)
			return
		}
	}

	action := "session-initiate"
	if s.dialect == wire.DialectGoogle {
		action = "initiate"
	}

	msg, node, err := s.newSessionMessageLocked(action)
	if err != nil {
		s.log.Error("[Session] Cannot build initiate", "sid", s.sid, "error", err.Error())
		return
	}
	s.addContentDescriptionsLocked(node, InitiatorLocal)

	s.log.Info("[Session] Sending action", "sid", s.sid, "action", action)
	s.sender.SendWithReply(msg, func(reply *wire.Message) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.state == Ended {
			return
		}
		if !reply.IsResult() {
			s.log.Warn("[Session] Initiate failed", "sid", s.sid)
			s.terminateLocked(ActorLocal, ReasonError)
			return
		}
		if s.state == PendingInitiateSent {
			s.setStateLocked(PendingInitiated)
		}
	})

	// Candidates gathered so far may now be signalled.
	for _, st := range s.streams.all() {
		if st.creator == InitiatorLocal {
			st.markSentLocked()
		}
	}
	s.setStateLocked(PendingInitiateSent)
}

// tryAcceptLocked sends the session accept once the local user has accepted
// and every remotely created stream has codecs and connectivity.
func (s *Session) tryAcceptLocked() {
	if s.state < Active && !s.locallyAccepted {
		s.log.Info("[Session] Holding accept, waiting for local user", "sid", s.sid)
		return
	}
	for _, st := range s.streams.all() {
		if s.notReadyForAccept(st) {
			s.log.Info("[Session] Holding accept, stream not ready",
				"sid", s.sid, "stream", st.name)
			return
		}
	}

	action := "session-accept"
	if s.dialect == wire.DialectGoogle {
		action = "accept"
	}

	msg, node, err := s.newSessionMessageLocked(action)
	if err != nil {
		s.log.Error("[Session] Cannot build accept", "sid", s.sid, "error", err.Error())
		return
	}
	// Only remotely created streams are accepted; anything the local user
	// added before accepting is signalled afterwards with content-add.
	s.addContentDescriptionsLocked(node, InitiatorRemote)

	s.log.Info("[Session] Sending action", "sid", s.sid, "action", action)
	s.sender.SendWithReply(msg, func(reply *wire.Message) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.state == Ended {
			return
		}
		if !reply.IsResult() {
			s.log.Warn("[Session] Accept failed", "sid", s.sid)
			s.terminateLocked(ActorLocal, ReasonError)
			return
		}
		if s.state == PendingAcceptSent {
			s.setStateLocked(Active)
		}
	})

	for _, st := range s.streams.all() {
		if st.creator == InitiatorRemote {
			st.playing = true
		}
	}
	s.setStateLocked(PendingAcceptSent)
}

// tryContentAcceptLocked accepts one remotely added stream on an active
// Jingle session.
func (s *Session) tryContentAcceptLocked(st *Stream) {
	if s.state != Active || s.dialect == wire.DialectGoogle {
		return
	}
	if s.notReadyForAccept(st) {
		s.log.Info("[Session] Holding content-accept, stream not ready",
			"sid", s.sid, "stream", st.name)
		return
	}

	msg, node, err := s.newSessionMessageLocked("content-accept")
	if err != nil {
		s.log.Error("[Session] Cannot build content-accept", "sid", s.sid, "error", err.Error())
		return
	}
	s.addContentDescriptionLocked(node, st)

	s.log.Info("[Session] Sending action",
		"sid", s.sid, "action", "content-accept", "stream", st.name)
	s.sender.SendWithReply(msg, func(reply *wire.Message) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.state == Ended || reply.IsResult() {
			return
		}
		s.log.Warn("[Session] Content-accept failed, removing stream",
			"sid", s.sid, "stream", st.name)
		s.removeStreamsLocked([]*Stream{st})
	})

	st.playing = true
}

// doContentAddLocked signals one locally added stream on an active Jingle
// session.
func (s *Session) doContentAddLocked(st *Stream) {
	if s.state != Active || s.dialect == wire.DialectGoogle {
		return
	}
	if !st.ready() {
		s.log.Error("[Session] Content-add attempted without local codecs",
			"sid", s.sid, "stream", st.name)
		return
	}

	msg, node, err := s.newSessionMessageLocked("content-add")
	if err != nil {
		s.log.Error("[Session] Cannot build content-add", "sid", s.sid, "error", err.Error())
		return
	}
	s.addContentDescriptionLocked(node, st)

	s.log.Info("[Session] Sending action",
		"sid", s.sid, "action", "content-add", "stream", st.name)
	s.sender.SendWithReply(msg, func(reply *wire.Message) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.state == Ended || reply.IsResult() {
			return
		}
		s.log.Warn("[Session] Content-add failed, removing stream",
			"sid", s.sid, "stream", st.name)
		s.removeStreamsLocked([]*Stream{st})
	})

	st.markSentLocked()
}

// sendCandidatesLocked signals local candidates for one stream. Google puts
// candidates directly under the session element; Jingle wraps them in a
// content's transport.
func (s *Session) sendCandidatesLocked(st *Stream, cands []media.Candidate) {
	action := "transport-info"
	if s.dialect == wire.DialectGoogle {
		action = "candidates"
	}

	msg, node, err := s.newSessionMessageLocked(action)
	if err != nil {
		s.log.Error("[Session] Cannot build candidates", "sid", s.sid, "error", err.Error())
		return
	}
	if s.dialect == wire.DialectGoogle {
		wire.AddCandidates(node, cands)
	} else {
		content := node.CreateElement("content")
		content.CreateAttr("name", st.name)
		trans := wire.AddTransport(content)
		wire.AddCandidates(trans, cands)
	}

	s.log.Info("[Session] Sending candidates",
		"sid", s.sid, "stream", st.name, "count", len(cands))
	s.sender.Send(msg)
}

// Accept is the local user answering the call: it grants any pending send
// requests and sends the session accept if the streams are ready.
func (s *Session) Accept() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Ended {
		return
	}

	s.locallyAccepted = true

	for _, st := range s.streams.all() {
		if st.direction.LocalPendingSend {
			s.log.Info("[Session] Granting pending local send",
				"sid", s.sid, "stream", st.name)
			st.direction.Direction |= media.DirectionSend
			st.direction.LocalPendingSend = false
		}
	}

	s.tryAcceptLocked()
}

// Terminate ends the session from the local side, telling the peer if
// anything about the session was ever put on the wire.
func (s *Session) Terminate(reason TerminateReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terminateLocked(ActorLocal, reason)
}

// Error aborts the session after a fatal media-layer failure.
func (s *Session) Error(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Ended {
		return
	}
	s.log.Error("[Session] Media error", "sid", s.sid, "error", message)
	s.terminateLocked(ActorLocal, ReasonError)
}

func (s *Session) terminateLocked(actor TerminateActor, reason TerminateReason) {
	if s.state == Ended {
		return
	}

	if actor == ActorLocal {
		// Google has no way to decline other than "reject"; Jingle signals
		// a decline with a plain terminate before acceptance.
		if s.initiator == InitiatorRemote && s.state == PendingInitiated &&
			s.dialect == wire.DialectGoogle {
			s.sendActionLocked("reject")
		} else if s.state > PendingCreated {
			if s.dialect == wire.DialectGoogle {
				s.sendActionLocked("terminate")
			} else {
				s.sendActionLocked("session-terminate")
			}
		}

		// Only local termination reclaims the streams; on a remote
		// terminate the media layer keeps them until the channel owner
		// closes them.
		for _, st := range s.streams.all() {
			s.closeStreamLocked(st)
		}
	}

	s.log.Info("[Session] Terminated",
		"sid", s.sid, "actor", actor.String(), "reason", reason.String())
	if s.metrics != nil {
		s.metrics.TerminationsTotal.WithLabelValues(reason.String()).Inc()
	}
	s.events.Publish(s.builder.Terminated(s.sid, actor.String(), reason.String()))
	s.setStateLocked(Ended)
}

// sendActionLocked sends a bare session action with no contents, ignoring
// the reply.
func (s *Session) sendActionLocked(action string) {
	msg, _, err := s.newSessionMessageLocked(action)
	if err != nil {
		s.log.Error("[Session] Cannot build action",
			"sid", s.sid, "action", action, "error", err.Error())
		return
	}
	s.log.Info("[Session] Sending action", "sid", s.sid, "action", action)
	s.sender.SendWithReply(msg, func(*wire.Message) {})
}

// RequestStreams adds locally created streams of the given media types,
// choosing the peer resource and dialect on the first call. The returned
// streams still need local codecs before anything goes on the wire.
func (s *Session) RequestStreams(types []media.Type) ([]*Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Ended {
		return nil, ErrSessionEnded
	}
	if !s.directory.Known(s.peerHandle) {
		return nil, fmt.Errorf("%w: no capability information for peer", ErrNotAvailable)
	}

	wantAudio, wantVideo := false, false
	for _, t := range types {
		switch t {
		case media.TypeAudio:
			wantAudio = true
		case media.TypeVideo:
			wantVideo = true
		default:
			return nil, fmt.Errorf("invalid media type %d", int(t))
		}
	}

	var desired presence.Caps
	if wantAudio {
		desired |= presence.CapsJingleAudio
	}
	if wantVideo {
		desired |= presence.CapsJingleVideo
	}

	if s.peerResource != "" {
		// Existing call: the resource and dialect are already decided.
		if s.dialect == wire.DialectGoogle {
			return nil, ErrGoogleOneAudio
		}
		if !s.directory.ResourceHasCaps(s.peerHandle, s.peerResource, desired) {
			return nil, fmt.Errorf("%w: call member does not support requested media", ErrNotAvailable)
		}
	} else {
		// Prefer a fully capable Jingle resource so more streams can be
		// added later, then one good enough for this request, then fall
		// back to a Google voice call for audio-only requests.
		resource := s.directory.PickResource(s.peerHandle,
			presence.CapsJingleAudio|presence.CapsJingleVideo)
		if resource == "" {
			resource = s.directory.PickResource(s.peerHandle, desired)
		}
		if resource == "" && wantAudio && !wantVideo {
			resource = s.directory.PickResource(s.peerHandle, presence.CapsGoogleAudio)
			if resource != "" {
				if len(types) != 1 {
					return nil, ErrGoogleOneAudio
				}
				s.log.Info("[Session] Falling back to Google voice call", "sid", s.sid)
				s.dialect = wire.DialectGoogle
			}
		}
		if resource == "" {
			return nil, fmt.Errorf("%w: peer lacks the requested capabilities", ErrNotAvailable)
		}
		s.peerResource = resource
	}

	if s.streams.len()+len(types) > maxStreams {
		return nil, ErrStreamLimit
	}

	created := make([]*Stream, 0, len(types))
	for _, t := range types {
		name := googleStreamName
		if s.dialect != wire.DialectGoogle {
			var err error
			name, err = s.streams.nextName(t)
			if err != nil {
				return nil, err
			}
		}
		st, err := s.createStreamLocked(name, InitiatorLocal, t)
		if err != nil {
			return nil, err
		}
		created = append(created, st)
	}
	return created, nil
}

// RemoveStreams closes the given streams. Removing every stream terminates
// the session instead, since an empty session is invalid.
func (s *Session) RemoveStreams(streams []*Stream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeStreamsLocked(streams)
}

func (s *Session) removeStreamsLocked(streams []*Stream) {
	if len(streams) == 0 || s.state == Ended {
		return
	}

	if len(streams) == s.streams.len() {
		s.terminateLocked(ActorLocal, ReasonNoStreams)
		return
	}

	// Nothing to tell the peer if no initiate was ever sent.
	var node *etree.Element
	var msg *wire.Message
	if s.state > PendingCreated {
		var err error
		msg, node, err = s.newSessionMessageLocked("content-remove")
		if err != nil {
			s.log.Error("[Session] Cannot build content-remove", "sid", s.sid, "error", err.Error())
			msg = nil
		}
	}

	for _, st := range streams {
		if node != nil {
			content := node.CreateElement("content")
			content.CreateAttr("name", st.name)
		}
		s.closeStreamLocked(st)
	}

	if msg != nil {
		s.log.Info("[Session] Sending action", "sid", s.sid, "action", "content-remove")
		s.sender.SendWithReply(msg, func(*wire.Message) {})
	}
}

// RequestStreamDirection changes the local view of a stream's direction and
// tells the peer. Requesting DirectionNone removes the stream.
func (s *Session) RequestStreamDirection(st *Stream, requested media.Direction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Ended {
		return ErrSessionEnded
	}
	if s.streams.byName(st.name) != st {
		return ErrStreamNotFound
	}

	if s.dialect == wire.DialectGoogle {
		if requested == media.DirectionBidirectional {
			return nil
		}
		return fmt.Errorf("%w: google talk calls are always bidirectional", ErrNotAvailable)
	}

	if requested == media.DirectionNone {
		s.removeStreamsLocked([]*Stream{st})
		return nil
	}

	current := st.direction.Direction
	pendingLocal := st.direction.LocalPendingSend

	// If the peer asked us to send and we had not decided, this request is
	// the decision. The peer already believes we send, so compare against
	// that view when working out whether to signal.
	if pendingLocal {
		pendingLocal = false
		current ^= media.DirectionSend
	}

	st.direction = media.CombinedDirection{
		Direction:         requested,
		LocalPendingSend:  pendingLocal,
		RemotePendingSend: st.direction.RemotePendingSend,
	}

	if current == requested {
		return nil
	}
	return s.sendDirectionChangeLocked(st, requested)
}

// sendDirectionChangeLocked tells the peer about a new senders value with a
// content-modify.
func (s *Session) sendDirectionChangeLocked(st *Stream, dir media.Direction) error {
	msg, node, err := s.newSessionMessageLocked("content-modify")
	if err != nil {
		return err
	}
	content := node.CreateElement("content")
	content.CreateAttr("name", st.name)
	content.CreateAttr("senders", s.directionToSenders(dir))

	s.log.Info("[Session] Sending action",
		"sid", s.sid, "action", "content-modify",
		"stream", st.name, "direction", dir.String())
	return s.sender.SendWithReply(msg, func(reply *wire.Message) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.state == Ended || reply.IsResult() {
			return
		}
		s.log.Warn("[Session] Direction change failed", "sid", s.sid, "stream", st.name)
		s.terminateLocked(ActorLocal, ReasonError)
	})
}
