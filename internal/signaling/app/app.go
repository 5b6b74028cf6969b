// Package app wires the signaling engine together: configuration, peer
// directory, metrics, and the stanza stream listener feeding the session
// factory.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chorus-im/chorus/internal/signaling/config"
	"github.com/chorus-im/chorus/internal/signaling/events"
	"github.com/chorus-im/chorus/internal/signaling/factory"
	"github.com/chorus-im/chorus/internal/signaling/media"
	"github.com/chorus-im/chorus/internal/signaling/presence"
	"github.com/chorus-im/chorus/internal/signaling/session"
	"github.com/chorus-im/chorus/internal/signaling/transport"
)

// Engine is the signaling daemon: it accepts stanza stream connections and
// runs a session factory per connection.
type Engine struct {
	cfg       *config.Config
	directory *presence.Directory
	metrics   *session.Metrics
	registry  *prometheus.Registry
	events    events.Publisher

	mu         sync.Mutex
	listener   net.Listener
	metricsSrv *http.Server
}

// NewServer builds the engine from configuration.
func NewServer(cfg *config.Config) (*Engine, error) {
	directory := presence.NewDirectory()

	peers, err := config.LoadPeers(cfg.PeersPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load peers: %w", err)
	}
	seeded := 0
	for _, p := range peers.Peers {
		handle, resource, err := directory.HandleForAddress(p.JID)
		if err != nil {
			return nil, fmt.Errorf("failed to seed peer %q: %w", p.JID, err)
		}
		caps, err := presence.ParseCaps(p.Caps)
		if err != nil {
			return nil, fmt.Errorf("failed to seed peer %q: %w", p.JID, err)
		}
		directory.SetResourceCaps(handle, resource, caps)
		seeded++
	}
	if seeded > 0 {
		slog.Info("[App] Peer capabilities seeded", "path", cfg.PeersPath, "peers", seeded)
	}

	registry := prometheus.NewRegistry()

	return &Engine{
		cfg:       cfg,
		directory: directory,
		metrics:   session.NewMetrics(registry),
		registry:  registry,
		events:    events.NewLogPublisher(slog.Default()),
	}, nil
}

// Directory exposes the peer directory, e.g. for presence updates.
func (e *Engine) Directory() *presence.Directory { return e.directory }

// Start runs the metrics endpoint and the stanza stream listener until ctx
// is cancelled.
func (e *Engine) Start(ctx context.Context) error {
	if e.cfg.MetricsAddr != "" {
		e.startMetrics()
	}

	listener, err := net.Listen("tcp", e.cfg.ListenAddr())
	if err != nil {
		return fmt.Errorf("failed to bind stanza stream listener: %w", err)
	}
	e.mu.Lock()
	e.listener = listener
	e.mu.Unlock()

	slog.Info("[App] Listening for stanza streams", "addr", e.cfg.ListenAddr())

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		go e.serveConn(ctx, conn)
	}
}

// serveConn runs one stanza stream connection with its own session factory.
// Sessions die with the connection that carries them.
func (e *Engine) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	slog.Info("[App] Stanza stream connected", "remote", conn.RemoteAddr().String())

	stream := transport.NewStream(conn, slog.Default())
	fac := factory.New(factory.Config{
		LocalAddress:   e.cfg.LocalJID,
		Directory:      e.directory,
		Sender:         stream,
		Sinks:          e.sinkFactory(),
		Log:            slog.Default(),
		Events:         e.events,
		Metrics:        e.metrics,
		SessionTimeout: e.cfg.SessionTimeout,
	})
	defer fac.Close()
	stream.SetHandler(fac.HandleMessage)

	if err := stream.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Warn("[App] Stanza stream closed", "remote", conn.RemoteAddr().String(), "error", err)
		return
	}
	slog.Info("[App] Stanza stream disconnected", "remote", conn.RemoteAddr().String())
}

// sinkFactory builds media sinks for negotiated streams. The daemon has no
// media engine of its own, so remote parameters are logged and dropped.
func (e *Engine) sinkFactory() media.SinkFactory {
	return func(streamName string, mediaType media.Type) (media.Sink, error) {
		return &logSink{name: streamName}, nil
	}
}

func (e *Engine) startMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: e.cfg.MetricsAddr, Handler: mux}

	e.mu.Lock()
	e.metricsSrv = srv
	e.mu.Unlock()

	slog.Info("[App] Metrics endpoint", "addr", e.cfg.MetricsAddr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("[App] Metrics server failed", "error", err)
		}
	}()
}

// Close shuts the listener and the metrics endpoint.
func (e *Engine) Close() error {
	e.mu.Lock()
	listener := e.listener
	metricsSrv := e.metricsSrv
	e.mu.Unlock()

	if listener != nil {
		listener.Close()
	}
	if metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		metricsSrv.Shutdown(ctx)
	}
	return nil
}

// logSink discards remote media parameters after logging them.
type logSink struct {
	name string
}

func (s *logSink) ApplyRemoteCodecs(codecs []media.Codec) error {
	slog.Debug("[Media] Remote codecs", "stream", s.name, "count", len(codecs))
	return nil
}

func (s *logSink) ApplyRemoteCandidates(cands []media.Candidate) error {
	slog.Debug("[Media] Remote candidates", "stream", s.name, "count", len(cands))
	return nil
}

func (s *logSink) Close() {}
