package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

// Config holds the signaling daemon configuration
type Config struct {
	// XMPP identity and transport settings
	LocalJID string // Full JID this daemon signals as
	BindAddr string // Address to bind for the stanza stream listener
	Port     int
	LogLevel string

	// Session settings
	SessionTimeout time.Duration // How long a pending session may wait on the peer

	// PeersPath points to the YAML file seeding peer capabilities
	PeersPath string

	// Metrics endpoint (empty disables it)
	MetricsAddr string
}

// Load loads configuration from command line flags and environment variables
func Load() *Config {
	cfg := &Config{
		SessionTimeout: 50 * time.Second,
	}

	// Define flags
	flag.StringVar(&cfg.LocalJID, "jid", "chorus@localhost/chorus", "Full JID to signal as")
	flag.StringVar(&cfg.BindAddr, "bind", "0.0.0.0", "Stanza stream bind address")
	flag.IntVar(&cfg.Port, "port", 5269, "Stanza stream listening port")
	flag.StringVar(&cfg.LogLevel, "loglevel", "debug", "Log level (debug, info, warn, error)")
	flag.StringVar(&cfg.PeersPath, "peers", "resources/config/peers.yaml", "Path to peer capabilities file")
	flag.StringVar(&cfg.MetricsAddr, "metrics", ":9091", "Prometheus metrics listen address (empty to disable)")

	var timeout string
	flag.StringVar(&timeout, "session-timeout", "", "Pending session timeout (e.g. 50s)")

	flag.Parse()

	if timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			cfg.SessionTimeout = d
		}
	}

	// Override with environment variables if set
	if jid := os.Getenv("JID"); jid != "" {
		cfg.LocalJID = jid
	}
	if bind := os.Getenv("BIND"); bind != "" {
		cfg.BindAddr = bind
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if loglevel := os.Getenv("LOGLEVEL"); loglevel != "" {
		cfg.LogLevel = loglevel
	}
	if peers := os.Getenv("PEERS_PATH"); peers != "" {
		cfg.PeersPath = peers
	}
	if metrics := os.Getenv("METRICS_ADDR"); metrics != "" {
		cfg.MetricsAddr = metrics
	}
	if timeout := os.Getenv("SESSION_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			cfg.SessionTimeout = d
		}
	}

	return cfg
}

// ListenAddr returns the bind address and port joined for net.Listen.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.BindAddr, c.Port)
}

// PeerEntry describes one known peer resource and its capabilities.
type PeerEntry struct {
	JID  string   `yaml:"jid"`
	Caps []string `yaml:"caps"`
}

// PeersFile is the on-disk format of the peer capabilities file.
type PeersFile struct {
	Peers []PeerEntry `yaml:"peers"`
}

// LoadPeers reads and parses the peer capabilities file. A missing file is
// not an error; the directory then fills from live presence only.
func LoadPeers(path string) (*PeersFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &PeersFile{}, nil
		}
		return nil, fmt.Errorf("read peers file: %w", err)
	}

	var pf PeersFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse peers file %s: %w", path, err)
	}

	for _, p := range pf.Peers {
		if strings.TrimSpace(p.JID) == "" {
			return nil, fmt.Errorf("peers file %s: entry with empty jid", path)
		}
	}
	return &pf, nil
}
