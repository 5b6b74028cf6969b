// Package factory routes inbound signaling stanzas to sessions by session id
// and creates sessions: inbound ones when a peer initiates, outbound ones
// when the local side places a call.
package factory

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/chorus-im/chorus/internal/signaling/events"
	"github.com/chorus-im/chorus/internal/signaling/media"
	"github.com/chorus-im/chorus/internal/signaling/presence"
	"github.com/chorus-im/chorus/internal/signaling/session"
	"github.com/chorus-im/chorus/internal/signaling/store"
	"github.com/chorus-im/chorus/internal/signaling/transport"
	"github.com/chorus-im/chorus/internal/signaling/wire"
)

// endedRetention is how long an ended session id keeps answering duplicate
// terminates with a bare ack instead of an error.
const endedRetention = 32 * time.Second

// endedSweepInterval is how often expired ended-session ids are dropped.
const endedSweepInterval = 10 * time.Second

// Config wires a factory to its collaborators.
type Config struct {
	LocalAddress   string
	Directory      *presence.Directory
	Sender         transport.Sender
	Sinks          media.SinkFactory
	Log            *slog.Logger
	Events         events.Publisher
	Metrics        *session.Metrics
	SessionTimeout time.Duration
}

// Factory owns the live session table.
type Factory struct {
	cfg  Config
	log  *slog.Logger
	live *store.TTLStore[string, *session.Session]

	// Ended session ids, kept briefly so a peer retrying a terminate gets
	// an ack rather than a bad-request.
	ended *store.TTLStore[string, struct{}]
}

// New creates an empty factory.
func New(cfg Config) *Factory {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	return &Factory{
		cfg:   cfg,
		log:   log,
		live:  store.NewTTLStore[string, *session.Session](0, nil),
		ended: store.NewTTLStore[string, struct{}](endedSweepInterval, nil),
	}
}

// Close releases the factory's stores and terminates every live session.
func (f *Factory) Close() {
	for _, s := range f.Sessions() {
		s.Terminate(session.ReasonRequested)
	}
	f.live.Close()
	f.ended.Close()
}

// Session returns the live session with the given id.
func (f *Factory) Session(sid string) (*session.Session, bool) {
	return f.live.Get(sid)
}

// Sessions snapshots the live sessions.
func (f *Factory) Sessions() []*session.Session {
	var out []*session.Session
	f.live.Range(func(_ string, s *session.Session) bool {
		out = append(out, s)
		return true
	})
	return out
}

// HandleMessage is the transport inbound handler. Stanzas that are not
// signaling sets are ignored; malformed signaling stanzas get a bad-request;
// everything else is routed to a session by sid.
func (f *Factory) HandleMessage(msg *wire.Message) {
	env, err := wire.DecodeEnvelope(msg)
	if err != nil {
		switch err {
		case wire.ErrNotIQSet, wire.ErrNoSessionNode:
			return
		default:
			f.log.Warn("[Factory] Malformed signaling stanza", "error", err.Error())
			f.cfg.Sender.SendError(msg, wire.ErrBadRequest, "")
			return
		}
	}

	if sess, ok := f.live.Get(env.SID); ok {
		sess.HandleAction(env)
		return
	}

	// A terminate for a session we recently ended is answered politely; the
	// peer may not have seen our ack.
	if f.ended.Has(env.SID) && isTerminate(env.Action) {
		f.log.Info("[Factory] Acking action for ended session",
			"sid", env.SID, "action", env.Action)
		f.cfg.Sender.Ack(msg)
		return
	}

	if !isInitiate(env.Action) {
		f.log.Warn("[Factory] Action for unknown session",
			"sid", env.SID, "action", env.Action)
		f.cfg.Sender.SendError(msg, wire.ErrBadRequest, "")
		return
	}

	f.createInbound(env)
}

func isInitiate(action string) bool {
	return action == "initiate" || action == "session-initiate"
}

func isTerminate(action string) bool {
	return action == "terminate" || action == "session-terminate" || action == "reject"
}

// createInbound builds a session for a peer's initiate and dispatches the
// initiate into it. If the initiate is rejected the half-built session is
// discarded.
func (f *Factory) createInbound(env *wire.Envelope) {
	handle, resource, err := f.cfg.Directory.HandleForAddress(env.From)
	if err != nil {
		f.log.Warn("[Factory] Unparseable sender address",
			"from", env.From, "error", err.Error())
		f.cfg.Sender.SendError(env.Msg, wire.ErrBadRequest, "")
		return
	}

	f.log.Info("[Factory] Creating session for inbound initiate",
		"sid", env.SID, "from", env.From, "dialect", env.Dialect)

	sess := session.New(session.Config{
		SID:          env.SID,
		LocalAddress: f.cfg.LocalAddress,
		PeerHandle:   handle,
		PeerResource: resource,
		Initiator:    session.InitiatorRemote,
		Dialect:      env.Dialect,
		Timeout:      f.cfg.SessionTimeout,
		Directory:    f.cfg.Directory,
		Sender:       f.cfg.Sender,
		Sinks:        f.cfg.Sinks,
		Log:          f.log,
		Events:       f.cfg.Events,
		Metrics:      f.cfg.Metrics,
		OnEnded:      f.sessionEnded,
	})
	f.live.Set(env.SID, sess, 0)

	sess.HandleAction(env)

	// The action either moved the session to PendingInitiated or was
	// rejected, in which case nothing of it survives.
	if sess.State() == session.PendingCreated {
		f.log.Warn("[Factory] Inbound initiate rejected, discarding session",
			"sid", env.SID)
		sess.Terminate(session.ReasonError)
	}
}

// NewOutgoingSession creates a locally initiated session towards the given
// peer. The peer resource and dialect are settled later, when streams are
// requested and capabilities consulted.
func (f *Factory) NewOutgoingSession(peer presence.Handle) *session.Session {
	sid := uuid.New().String()
	for f.live.Has(sid) || f.ended.Has(sid) {
		sid = uuid.New().String()
	}

	f.log.Info("[Factory] Creating outgoing session", "sid", sid, "peer", uint32(peer))

	sess := session.New(session.Config{
		SID:          sid,
		LocalAddress: f.cfg.LocalAddress,
		PeerHandle:   peer,
		Initiator:    session.InitiatorLocal,
		Dialect:      wire.DialectJingle,
		Timeout:      f.cfg.SessionTimeout,
		Directory:    f.cfg.Directory,
		Sender:       f.cfg.Sender,
		Sinks:        f.cfg.Sinks,
		Log:          f.log,
		Events:       f.cfg.Events,
		Metrics:      f.cfg.Metrics,
		OnEnded:      f.sessionEnded,
	})
	f.live.Set(sid, sess, 0)
	return sess
}

// sessionEnded moves a session id from the live table to the ended table.
func (f *Factory) sessionEnded(sid string) {
	f.live.Delete(sid)
	f.ended.Set(sid, struct{}{}, endedRetention)
}
