//go:build real_waku

package main

import (
	"context"

	"waku-a2a/agent/internal/config"
	"waku-a2a/agent/internal/transport"
	"waku-a2a/agent/internal/transport/wakurelay"
)

func init() {
	newWakuTransport = func(ctx context.Context, cfg config.TransportConfig) (transport.Transport, error) {
		port := cfg.Port
		if port == 0 {
			port = 60000
		}
		return wakurelay.New(ctx, wakurelay.Config{
			Port:           port,
			BootstrapNodes: cfg.RelayPeerHints,
		})
	}
}
