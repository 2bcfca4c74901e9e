package main

import (
	"flag"
	"testing"
	"time"

	"github.com/quorumlabs/raftwire/pkg/raft"
)

func parse(t *testing.T, args ...string) (*ServerConfig, error) {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	return ParseFlags(fs, args)
}

func TestParseFlags_Defaults(t *testing.T) {
	group := raft.NewGroupID()
	cfg, err := parse(t, "--group", group.String(), "--port", "5001", "--dir", "/tmp/raftwire")
	if err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}

	if cfg.ID.IsZero() {
		t.Error("id must be generated when not given")
	}
	if cfg.Group != group {
		t.Errorf("group mismatch: %s", cfg.Group)
	}
	if cfg.HTTPPort != 6001 {
		t.Errorf("expected http port 6001, got %d", cfg.HTTPPort)
	}
	if cfg.Advert != "127.0.0.1:5001" {
		t.Errorf("expected default advertise address, got %s", cfg.Advert)
	}
	if cfg.Tick <= 0 {
		t.Errorf("expected a positive default tick, got %s", cfg.Tick)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config: %v", err)
	}
}

func TestParseFlags_ExplicitValues(t *testing.T) {
	id := raft.NewServerID()
	group := raft.NewGroupID()
	peer := raft.NewServerID()

	cfg, err := parse(t,
		"--id", id.String(),
		"--group", group.String(),
		"--port", "5001",
		"--advertise", "10.0.0.7:5001",
		"--http-port", "8080",
		"--dir", "/tmp/raftwire",
		"--tick", "50ms",
		"--peers", peer.String()+"=10.0.0.8:5001",
	)
	if err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}

	if cfg.ID != id {
		t.Errorf("id mismatch: %s", cfg.ID)
	}
	if cfg.Advert != "10.0.0.7:5001" {
		t.Errorf("advertise mismatch: %s", cfg.Advert)
	}
	if cfg.HTTPPort != 8080 {
		t.Errorf("http port mismatch: %d", cfg.HTTPPort)
	}
	if cfg.Tick != 50*time.Millisecond {
		t.Errorf("tick mismatch: %s", cfg.Tick)
	}
	if addr := cfg.Peers[peer]; addr != "10.0.0.8:5001" {
		t.Errorf("peer mapping mismatch: %q", addr)
	}
}

func TestParseFlags_BadInputs(t *testing.T) {
	if _, err := parse(t, "--id", "nope", "--group", raft.NewGroupID().String(), "--port", "5001", "--dir", "/tmp/x"); err == nil {
		t.Error("expected error for malformed id")
	}
	if _, err := parse(t, "--group", "nope", "--port", "5001", "--dir", "/tmp/x"); err == nil {
		t.Error("expected error for malformed group")
	}
	if _, err := parse(t, "--group", raft.NewGroupID().String(), "--port", "5001", "--dir", "/tmp/x", "--peers", "noequals"); err == nil {
		t.Error("expected error for peer without =")
	}
	if _, err := parse(t, "--group", raft.NewGroupID().String(), "--port", "5001", "--dir", "/tmp/x", "--peers", "bad-uuid=10.0.0.8:5001"); err == nil {
		t.Error("expected error for peer with bad id")
	}
}

func TestValidate_MissingFlags(t *testing.T) {
	cfg, err := parse(t)
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation failure for empty config")
	}

	cfg, err = parse(t, "--group", raft.NewGroupID().String(), "--port", "5001")
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation failure without --dir")
	}
}
