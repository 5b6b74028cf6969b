package transport

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/beevik/etree"

	"github.com/chorus-im/chorus/internal/signaling/wire"
)

// Stream is a Sender over a raw stanza stream (for example a TCP connection
// to the signaling server). Stanzas are framed with encoding/xml's token
// scanner and handed to the engine as parsed elements; iq replies are paired
// with their callbacks by id.
type Stream struct {
	mu      sync.Mutex
	rw      io.ReadWriter
	handler Handler
	pending map[string]ReplyFunc
	logger  *slog.Logger
	closed  bool
}

// NewStream wraps rw. The handler consumes inbound request stanzas.
func NewStream(rw io.ReadWriter, logger *slog.Logger) *Stream {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stream{
		rw:      rw,
		pending: make(map[string]ReplyFunc),
		logger:  logger,
	}
}

// SetHandler installs the consumer for inbound request stanzas.
func (s *Stream) SetHandler(fn Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = fn
}

// Send implements Sender.
func (s *Stream) Send(msg *wire.Message) error {
	return s.write(msg)
}

// SendWithReply implements Sender.
func (s *Stream) SendWithReply(msg *wire.Message, fn ReplyFunc) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.pending[msg.ID()] = fn
	s.mu.Unlock()

	if err := s.write(msg); err != nil {
		s.mu.Lock()
		delete(s.pending, msg.ID())
		s.mu.Unlock()
		return err
	}
	return nil
}

// Ack implements Sender.
func (s *Stream) Ack(orig *wire.Message) error {
	return s.write(wire.Ack(orig))
}

// SendError implements Sender.
func (s *Stream) SendError(orig *wire.Message, serr wire.StanzaError, text string) error {
	return s.write(wire.ErrorReply(orig, serr, text))
}

func (s *Stream) write(msg *wire.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return fmt.Errorf("serialize stanza: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, err := s.rw.Write(data); err != nil {
		return fmt.Errorf("write stanza: %w", err)
	}
	return nil
}

// Run reads stanzas until the stream ends or ctx is canceled, dispatching
// each to the reply callbacks or the handler. It returns the read error that
// ended the loop (io.EOF for an orderly close).
func (s *Stream) Run(ctx context.Context) error {
	dec := xml.NewDecoder(s.rw)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		tok, err := dec.Token()
		if err != nil {
			s.shutdown()
			return err
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		el, err := decodeElement(dec, start)
		if err != nil {
			s.shutdown()
			return fmt.Errorf("decode stanza: %w", err)
		}
		s.dispatch(wire.FromElement(el))
	}
}

func (s *Stream) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.pending = make(map[string]ReplyFunc)
}

func (s *Stream) dispatch(msg *wire.Message) {
	s.mu.Lock()
	handler := s.handler
	var reply ReplyFunc
	if t := msg.Type(); t == "result" || t == "error" {
		reply = s.pending[msg.ID()]
		delete(s.pending, msg.ID())
	}
	s.mu.Unlock()

	switch {
	case reply != nil:
		reply(msg)
	case handler != nil:
		handler(msg)
	default:
		s.logger.Warn("[Stream] Dropping stanza with no handler", "id", msg.ID())
	}
}

// decodeElement rebuilds the element started by start, consuming tokens up
// to and including its end tag.
func decodeElement(dec *xml.Decoder, start xml.StartElement) (*etree.Element, error) {
	el := etree.NewElement(start.Name.Local)
	for _, attr := range start.Attr {
		name := attr.Name.Local
		if attr.Name.Space == "xmlns" {
			name = "xmlns:" + attr.Name.Local
		}
		el.CreateAttr(name, attr.Value)
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, err := decodeElement(dec, t)
			if err != nil {
				return nil, err
			}
			el.AddChild(child)
		case xml.CharData:
			el.SetText(el.Text() + string(t))
		case xml.EndElement:
			return el, nil
		}
	}
}
