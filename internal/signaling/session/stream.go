package session

import (
	"github.com/chorus-im/chorus/internal/signaling/media"
)

// sigState tracks how far a stream has travelled over the wire.
type sigState int

const (
	// sigUnsent: the stream exists locally but the peer has not been told.
	sigUnsent sigState = iota
	// sigSent: the stream was included in an initiate, accept or content-add.
	sigSent
	// sigAcknowledged: the peer confirmed the content carrying this stream.
	sigAcknowledged
)

func (s sigState) String() string {
	switch s {
	case sigSent:
		return "sent"
	case sigAcknowledged:
		return "acknowledged"
	default:
		return "unsent"
	}
}

// Stream is one media content within a session. All mutation goes through the
// owning session's lock; media-layer callbacks (codecs ready, connection
// state, local candidates) arrive through the exported setters.
type Stream struct {
	sess *Session

	// id is unique within the session and never reused, so observers can
	// tell a recreated stream from the one it replaced even when the wire
	// name is recycled.
	id        uint
	name      string
	mediaType media.Type
	creator   Initiator

	direction media.CombinedDirection
	sig       sigState

	localCodecs    []media.Codec
	gotLocalCodecs bool
	connState      media.ConnectionState
	playing        bool
	closed         bool

	sink media.Sink

	// Local candidates gathered before the stream was signalled. Flushed
	// the moment the peer learns about the stream.
	heldCandidates []media.Candidate
}

// ID returns the stream's session-unique numeric id.
func (st *Stream) ID() uint { return st.id }

// Name returns the stream's wire name.
func (st *Stream) Name() string { return st.name }

// MediaType returns the stream's media type.
func (st *Stream) MediaType() media.Type { return st.mediaType }

// Direction returns the stream's current combined direction.
func (st *Stream) Direction() media.CombinedDirection {
	st.sess.mu.Lock()
	defer st.sess.mu.Unlock()
	return st.direction
}

// Playing reports whether the remote side has been told to play.
func (st *Stream) Playing() bool {
	st.sess.mu.Lock()
	defer st.sess.mu.Unlock()
	return st.playing
}

// SetLocalCodecs records the codecs the local media layer can handle and
// re-evaluates whether the session can now be initiated or accepted.
func (st *Stream) SetLocalCodecs(codecs []media.Codec) {
	st.sess.mu.Lock()
	defer st.sess.mu.Unlock()
	if st.closed {
		return
	}
	st.localCodecs = append([]media.Codec(nil), codecs...)
	st.gotLocalCodecs = true
	st.sess.streamCodecsReadyLocked(st)
}

// SetConnectionState records the transport connectivity of the stream. A
// transition to Connected may unblock a pending accept.
func (st *Stream) SetConnectionState(cs media.ConnectionState) {
	st.sess.mu.Lock()
	defer st.sess.mu.Unlock()
	if st.closed || cs == st.connState {
		return
	}
	st.connState = cs
	if cs == media.ConnectionConnected {
		st.sess.streamConnectedLocked(st)
	}
}

// AddLocalCandidates queues local transport candidates for the peer. If the
// stream has not been signalled yet the candidates are held and flushed when
// it is.
func (st *Stream) AddLocalCandidates(cands []media.Candidate) {
	st.sess.mu.Lock()
	defer st.sess.mu.Unlock()
	if st.closed || len(cands) == 0 {
		return
	}
	if st.sig == sigUnsent {
		st.heldCandidates = append(st.heldCandidates, cands...)
		return
	}
	st.sess.sendCandidatesLocked(st, cands)
}

// ready reports whether the local media layer has produced codecs for this
// stream.
func (st *Stream) ready() bool { return st.gotLocalCodecs }

// connected reports whether the transport layer considers the stream usable.
func (st *Stream) connected() bool { return st.connState == media.ConnectionConnected }

// markSent flips the stream to signalled and flushes held candidates.
// Caller holds the session lock.
func (st *Stream) markSentLocked() {
	if st.sig != sigUnsent {
		return
	}
	st.sig = sigSent
	if len(st.heldCandidates) > 0 {
		st.sess.sendCandidatesLocked(st, st.heldCandidates)
		st.heldCandidates = nil
	}
}

// applyRemoteCodecs forwards the peer's payload types to the media sink.
// Caller holds the session lock.
func (st *Stream) applyRemoteCodecsLocked(codecs []media.Codec) error {
	if st.sink == nil {
		return nil
	}
	return st.sink.ApplyRemoteCodecs(codecs)
}

// applyRemoteCandidates forwards the peer's transport candidates to the sink.
// Caller holds the session lock.
func (st *Stream) applyRemoteCandidatesLocked(cands []media.Candidate) error {
	if st.sink == nil {
		return nil
	}
	return st.sink.ApplyRemoteCandidates(cands)
}

// closeLocked tears down the media sink. Caller holds the session lock.
func (st *Stream) closeLocked() {
	if st.closed {
		return
	}
	st.closed = true
	if st.sink != nil {
		st.sink.Close()
	}
}
