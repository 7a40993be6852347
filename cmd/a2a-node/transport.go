package main

import (
	"context"
	"fmt"

	"waku-a2a/agent/internal/config"
	"waku-a2a/agent/internal/transport"
	"waku-a2a/agent/internal/transport/memory"
	"waku-a2a/agent/internal/transport/restbridge"
)

// newWakuTransport is populated by transport_real_waku.go when this binary
// is built with the real_waku tag. Left nil otherwise, so a go-waku
// transport request fails with a clear error instead of a missing symbol.
var newWakuTransport func(ctx context.Context, cfg config.TransportConfig) (transport.Transport, error)

func buildTransport(ctx context.Context, cfg config.TransportConfig) (transport.Transport, error) {
	switch cfg.Kind {
	case "", config.TransportMemory:
		return memory.New(), nil
	case config.TransportRest:
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("transport: rest endpoint is required")
		}
		return restbridge.New(restbridge.Config{
			Endpoint:      cfg.Endpoint,
			PollInterval:  cfg.PollInterval,
			PollRateLimit: cfg.PollRateLimit,
		}), nil
	case config.TransportGoWaku:
		if newWakuTransport == nil {
			return nil, fmt.Errorf("transport: go-waku support requires building with -tags real_waku")
		}
		if err := config.ValidatePeerHints(cfg.RelayPeerHints); err != nil {
			return nil, err
		}
		return newWakuTransport(ctx, cfg)
	default:
		return nil, fmt.Errorf("transport: unknown kind %q", cfg.Kind)
	}
}
