// Package main provides the raftwire probe server: a node that runs the full
// messaging and transport stack under a diagnostic consensus handler.
package main

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/quorumlabs/raftwire/pkg/raft"
	"github.com/quorumlabs/raftwire/pkg/transport"
)

// ServerConfig holds parsed CLI configuration for the probe server.
type ServerConfig struct {
	ID       raft.ServerID // Node identifier (--id, generated when empty)
	Group    raft.GroupID  // Consensus group identifier (--group)
	Port     int           // Messaging port (--port)
	Advert   string        // Advertised messaging address (--advertise)
	DataDir  string        // Registry database path (--dir)
	HTTPPort int           // HTTP status port (--http-port, defaults to port+1000)
	Tick     time.Duration // Consensus tick interval (--tick)
	TUI      bool          // Launch TUI dashboard mode (--tui)

	// Peers are administered mappings installed at startup, parsed from
	// --peers "uuid=host:port,uuid=host:port".
	Peers map[raft.ServerID]string
}

// ParseFlags parses command-line flags into ServerConfig.
// It uses the provided flag.FlagSet to allow testing with custom arguments.
func ParseFlags(fs *flag.FlagSet, args []string) (*ServerConfig, error) {
	cfg := &ServerConfig{}

	var idStr, groupStr, peersStr string

	fs.StringVar(&idStr, "id", "", "Server id as a UUID (generated when empty)")
	fs.StringVar(&groupStr, "group", "", "Consensus group id as a UUID (required)")
	fs.IntVar(&cfg.Port, "port", 0, "Messaging port (required)")
	fs.StringVar(&cfg.Advert, "advertise", "", "Advertised messaging address (defaults to 127.0.0.1:port)")
	fs.StringVar(&cfg.DataDir, "dir", "", "Data directory path (required)")
	fs.StringVar(&peersStr, "peers", "", "Comma-separated uuid=host:port peer mappings")
	fs.IntVar(&cfg.HTTPPort, "http-port", 0, "HTTP status port (defaults to port+1000)")
	fs.DurationVar(&cfg.Tick, "tick", transport.DefaultTickInterval, "Consensus tick interval")
	fs.BoolVar(&cfg.TUI, "tui", false, "Launch TUI dashboard mode")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if idStr == "" {
		cfg.ID = raft.NewServerID()
	} else {
		id, err := raft.ParseServerID(idStr)
		if err != nil {
			return nil, fmt.Errorf("invalid --id: %w", err)
		}
		cfg.ID = id
	}

	if groupStr != "" {
		group, err := raft.ParseGroupID(groupStr)
		if err != nil {
			return nil, fmt.Errorf("invalid --group: %w", err)
		}
		cfg.Group = group
	}

	if peersStr != "" {
		peers, err := parsePeers(peersStr)
		if err != nil {
			return nil, err
		}
		cfg.Peers = peers
	}

	// Set default HTTP port if not specified
	if cfg.HTTPPort == 0 && cfg.Port > 0 {
		cfg.HTTPPort = cfg.Port + 1000
	}
	if cfg.Advert == "" && cfg.Port > 0 {
		cfg.Advert = fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}

	return cfg, nil
}

// parsePeers splits a comma-separated "uuid=host:port" string into mappings.
func parsePeers(peersStr string) (map[raft.ServerID]string, error) {
	peers := make(map[raft.ServerID]string)
	for _, p := range strings.Split(peersStr, ",") {
		trimmed := strings.TrimSpace(p)
		if trimmed == "" {
			continue
		}
		idx := strings.Index(trimmed, "=")
		if idx == -1 {
			return nil, fmt.Errorf("peer %q is not in uuid=host:port form", trimmed)
		}
		id, err := raft.ParseServerID(strings.TrimSpace(trimmed[:idx]))
		if err != nil {
			return nil, fmt.Errorf("peer %q has an invalid id: %w", trimmed, err)
		}
		addr := strings.TrimSpace(trimmed[idx+1:])
		if addr == "" {
			return nil, fmt.Errorf("peer %q has an empty address", trimmed)
		}
		peers[id] = addr
	}
	return peers, nil
}

// Validate checks that all required fields are present.
// Returns an error if any required field is missing.
func (c *ServerConfig) Validate() error {
	var errs []string

	if c.Group == (raft.GroupID{}) {
		errs = append(errs, "missing required flag: --group")
	}
	if c.Port == 0 {
		errs = append(errs, "missing required flag: --port")
	}
	if c.DataDir == "" {
		errs = append(errs, "missing required flag: --dir")
	}
	if c.Tick <= 0 {
		errs = append(errs, "--tick must be positive")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
