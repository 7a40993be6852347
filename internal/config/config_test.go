package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromPathMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a2a-node.yaml")
	contents := `
agent:
  name: echo
  capabilities: ["text", "math"]
transport:
  kind: rest
  endpoint: "http://localhost:8645"
  pollInterval: 250ms
discovery:
  timeout: 2s
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Agent.Name != "echo" {
		t.Fatalf("agent name = %q", cfg.Agent.Name)
	}
	if cfg.Transport.Kind != TransportRest {
		t.Fatalf("transport kind = %q", cfg.Transport.Kind)
	}
	if cfg.Transport.PollInterval != 250*time.Millisecond {
		t.Fatalf("poll interval = %v", cfg.Transport.PollInterval)
	}
	if cfg.Discovery.Timeout != 2*time.Second {
		t.Fatalf("discovery timeout = %v", cfg.Discovery.Timeout)
	}
}

func TestLoadFromMissingPathReturnsDefaults(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Transport.Kind != TransportMemory {
		t.Fatalf("expected default memory transport, got %q", cfg.Transport.Kind)
	}
}

func TestValidatePeerHintsRejectsGarbage(t *testing.T) {
	if err := ValidatePeerHints([]string{"/ip4/127.0.0.1/tcp/60000"}); err != nil {
		t.Fatalf("valid multiaddr rejected: %v", err)
	}
	if err := ValidatePeerHints([]string{"not-a-multiaddr"}); err == nil {
		t.Fatalf("expected error for invalid multiaddr")
	}
}
