package config

import (
	"fmt"

	"github.com/multiformats/go-multiaddr"
)

// ValidatePeerHints checks that every configured relay peer hint parses as
// a multiaddr. This is informational only: the REST-bridge transport
// never dials these addresses directly (real peer dialing is the pub/sub
// substrate's job), but operators pointing it at a specific relay
// instance get their config validated the same way the go-waku backend
// validates its bootstrap node addresses.
func ValidatePeerHints(hints []string) error {
	for _, hint := range hints {
		if _, err := multiaddr.NewMultiaddr(hint); err != nil {
			return fmt.Errorf("config: invalid relay peer hint %q: %w", hint, err)
		}
	}
	return nil
}
