// Package config loads a node's YAML configuration file: identity seed,
// advertised card, transport choice, and discovery timeout. Grounded on
// the teacher's internal/bootstrap/wakuconfig package (struct-of-structs
// with yaml tags, candidate-path search, env overrides for the transport
// selection).
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// TransportKind selects which Transport implementation a node runs over.
type TransportKind string

const (
	TransportMemory  TransportKind = "memory"
	TransportRest    TransportKind = "rest"
	TransportGoWaku  TransportKind = "go-waku"
)

// Config is a node's full configuration.
type Config struct {
	Identity   IdentityConfig   `yaml:"identity"`
	Agent      AgentConfig      `yaml:"agent"`
	Transport  TransportConfig  `yaml:"transport"`
	Discovery  DiscoveryConfig  `yaml:"discovery"`
}

// IdentityConfig controls how a node derives its keypairs.
type IdentityConfig struct {
	// Mnemonic, if set, deterministically derives the node's keypairs.
	// Empty means generate fresh random keys on every start.
	Mnemonic string `yaml:"mnemonic"`
}

// AgentConfig is the advertised, non-identity portion of a node's card.
type AgentConfig struct {
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description"`
	Capabilities []string `yaml:"capabilities"`
	// Encrypted opts the node in to publishing an IntroBundle, so peers
	// can opportunistically encrypt tasks addressed to it.
	Encrypted bool `yaml:"encrypted"`
}

// TransportConfig selects and configures the transport a node runs over.
type TransportConfig struct {
	Kind           TransportKind `yaml:"kind"`
	Endpoint       string        `yaml:"endpoint"`
	PollInterval   time.Duration `yaml:"pollInterval"`
	PollRateLimit  float64       `yaml:"pollRateLimit"`
	RelayPeerHints []string      `yaml:"relayPeerHints"`
	// Port is the listen port for the go-waku relay transport (kind
	// "go-waku"). Unused by the memory and rest transports.
	Port int `yaml:"port"`
}

// DiscoveryConfig controls how long an agent waits to collect peer cards.
type DiscoveryConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns a config suitable for local development: the in-memory
// transport, no identity seed, a 5s discovery timeout.
func Default() Config {
	return Config{
		Agent: AgentConfig{
			Name:         "agent",
			Capabilities: []string{"text"},
		},
		Transport: TransportConfig{
			Kind:         TransportMemory,
			PollInterval: 500 * time.Millisecond,
		},
		Discovery: DiscoveryConfig{
			Timeout: 5 * time.Second,
		},
	}
}

// LoadFromPath reads and merges a YAML config file at path over the
// defaults. An empty path searches the same candidate locations the
// teacher's loader does.
func LoadFromPath(path string) (Config, error) {
	cfg := Default()

	candidates := []string{path}
	if path == "" {
		candidates = []string{"configs/a2a-node.yaml", "a2a-node.yaml"}
	}

	for _, candidate := range candidates {
		data, err := os.ReadFile(candidate)
		if err != nil {
			continue
		}
		var parsed Config
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", candidate, err)
		}
		merge(&cfg, parsed)
		applyEnvOverrides(&cfg)
		if err := ValidatePeerHints(cfg.Transport.RelayPeerHints); err != nil {
			return Config{}, err
		}
		return cfg, nil
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func merge(dst *Config, src Config) {
	if src.Identity.Mnemonic != "" {
		dst.Identity.Mnemonic = src.Identity.Mnemonic
	}
	if src.Agent.Name != "" {
		dst.Agent.Name = src.Agent.Name
	}
	if src.Agent.Description != "" {
		dst.Agent.Description = src.Agent.Description
	}
	if src.Agent.Capabilities != nil {
		dst.Agent.Capabilities = src.Agent.Capabilities
	}
	dst.Agent.Encrypted = dst.Agent.Encrypted || src.Agent.Encrypted

	if src.Transport.Kind != "" {
		dst.Transport.Kind = src.Transport.Kind
	}
	if src.Transport.Endpoint != "" {
		dst.Transport.Endpoint = src.Transport.Endpoint
	}
	if src.Transport.PollInterval != 0 {
		dst.Transport.PollInterval = src.Transport.PollInterval
	}
	if src.Transport.PollRateLimit != 0 {
		dst.Transport.PollRateLimit = src.Transport.PollRateLimit
	}
	if src.Transport.RelayPeerHints != nil {
		dst.Transport.RelayPeerHints = src.Transport.RelayPeerHints
	}
	if src.Transport.Port != 0 {
		dst.Transport.Port = src.Transport.Port
	}

	if src.Discovery.Timeout != 0 {
		dst.Discovery.Timeout = src.Discovery.Timeout
	}
}

func applyEnvOverrides(cfg *Config) {
	if kind := strings.TrimSpace(os.Getenv("A2A_TRANSPORT")); kind != "" {
		cfg.Transport.Kind = TransportKind(kind)
	}
	if endpoint := strings.TrimSpace(os.Getenv("A2A_TRANSPORT_ENDPOINT")); endpoint != "" {
		cfg.Transport.Endpoint = endpoint
	}
	if mnemonic := strings.TrimSpace(os.Getenv("A2A_IDENTITY_MNEMONIC")); mnemonic != "" {
		cfg.Identity.Mnemonic = mnemonic
	}
}
