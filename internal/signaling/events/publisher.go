package events

import "log/slog"

// LogPublisher writes events to a structured logger. It is the default
// observer when nothing else is wired.
type LogPublisher struct {
	log *slog.Logger
}

// NewLogPublisher returns a publisher logging at info level.
func NewLogPublisher(log *slog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

// Publish implements Publisher.
func (p *LogPublisher) Publish(ev Event) {
	attrs := []any{
		"event_id", ev.ID,
		"sid", ev.SID,
	}
	if ev.Peer != "" {
		attrs = append(attrs, "peer", ev.Peer)
	}
	if ev.NewState != "" {
		attrs = append(attrs, "old_state", ev.OldState, "new_state", ev.NewState)
	}
	if ev.Reason != "" || ev.Type == SessionTerminated {
		attrs = append(attrs, "actor", ev.Actor, "reason", ev.Reason)
	}
	if ev.Stream != "" {
		attrs = append(attrs, "stream", ev.Stream)
		if ev.MediaType != "" {
			attrs = append(attrs, "media_type", ev.MediaType)
		}
	}
	p.log.Info("[Events] "+string(ev.Type), attrs...)
}

// Fanout publishes each event to every wrapped publisher in order.
type Fanout []Publisher

// Publish implements Publisher.
func (f Fanout) Publish(ev Event) {
	for _, p := range f {
		p.Publish(ev)
	}
}

// Discard drops all events.
type Discard struct{}

// Publish implements Publisher.
func (Discard) Publish(Event) {}
