package session

import "time"

// timeoutGuard terminates a session that sits too long in a pending state.
// It is armed when signaling starts waiting on the peer and disarmed when
// the session goes active or ends.
type timeoutGuard struct {
	sess    *Session
	timeout time.Duration
	timer   *time.Timer
}

func newTimeoutGuard(s *Session, timeout time.Duration) *timeoutGuard {
	return &timeoutGuard{sess: s, timeout: timeout}
}

// armLocked starts the countdown. Re-arming replaces the previous countdown.
// Caller holds the session lock.
func (g *timeoutGuard) armLocked() {
	if g.timer != nil {
		g.sess.log.Warn("[Session] Replacing pending-state timer", "sid", g.sess.sid)
		g.timer.Stop()
	}
	g.timer = time.AfterFunc(g.timeout, g.fire)
}

// disarmLocked stops the countdown. Caller holds the session lock.
func (g *timeoutGuard) disarmLocked() {
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}

func (g *timeoutGuard) fire() {
	s := g.sess
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Ended || s.state == Active {
		return
	}
	s.log.Warn("[Session] Session timed out", "sid", s.sid, "state", s.state.String())
	s.terminateLocked(ActorLocal, ReasonTimeout)
}
