// Package privacylog wraps an slog.Handler so that key material never
// reaches a log sink in the clear. Adapted from the teacher's privacylog
// package: same SanitizingHandler/WrapHandler shape and the same
// redact-by-attr-name-then-recurse-into-groups algorithm, but the
// redacted attribute set is this module's key material (ECDH/signing
// public keys, nonces, ciphertext) rather than the teacher's chat
// identifiers.
package privacylog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

const redactedValue = "[REDACTED]"

// keyMaterialAttrs names attributes whose value is always fully redacted:
// unlike the teacher's opaque chat ids (which it fingerprints so they
// still correlate across log lines), these carry actual cryptographic
// secrets or values that would aid cryptanalysis if logged, so they are
// dropped outright rather than fingerprinted.
var keyMaterialAttrs = map[string]struct{}{
	"sender_pubkey":       {},
	"peer_public_key":     {},
	"nonce":               {},
	"ciphertext":          {},
	"shared_secret":       {},
	"ecdh_private_key":    {},
	"signing_private_key": {},
}

var sensitiveKeyParts = []string{"token", "secret", "password", "passphrase", "authorization", "auth", "private_key", "mnemonic"}

// SanitizingHandler wraps an slog.Handler, redacting key material from
// every record before it reaches next.
type SanitizingHandler struct {
	next slog.Handler
}

// WrapHandler wraps next in a SanitizingHandler. Returns nil if next is
// nil.
func WrapHandler(next slog.Handler) slog.Handler {
	if next == nil {
		return nil
	}
	return &SanitizingHandler{next: next}
}

func (h *SanitizingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *SanitizingHandler) Handle(ctx context.Context, rec slog.Record) error {
	out := slog.NewRecord(rec.Time, rec.Level, rec.Message, rec.PC)
	rec.Attrs(func(attr slog.Attr) bool {
		out.AddAttrs(SanitizeAttr(attr))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h *SanitizingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &SanitizingHandler{next: h.next.WithAttrs(sanitizeAttrs(attrs))}
}

func (h *SanitizingHandler) WithGroup(name string) slog.Handler {
	return &SanitizingHandler{next: h.next.WithGroup(name)}
}

// SanitizeAttr redacts attr if its key names key material or looks
// sensitive by substring, recursing into group values.
func SanitizeAttr(attr slog.Attr) slog.Attr {
	key := strings.TrimSpace(attr.Key)
	lowerKey := strings.ToLower(key)
	if isKeyMaterial(lowerKey) || isSensitiveKey(lowerKey) {
		return slog.String(key, redactedValue)
	}
	if attr.Value.Kind() == slog.KindGroup {
		return slog.Any(key, sanitizeGroupValue(attr.Value.Group()))
	}
	return attr
}

// SanitizeArgs redacts alternating key/value pairs the same way
// SanitizeAttr does, for callers using slog's implicit-kv logging style.
func SanitizeArgs(args ...any) []any {
	if len(args) == 0 {
		return nil
	}
	out := make([]any, 0, len(args))
	for i := 0; i < len(args); i++ {
		key, ok := args[i].(string)
		if !ok || i+1 >= len(args) {
			out = append(out, args[i])
			continue
		}
		value := args[i+1]
		i++
		lowerKey := strings.ToLower(strings.TrimSpace(key))
		if isKeyMaterial(lowerKey) || isSensitiveKey(lowerKey) {
			out = append(out, key, redactedValue)
			continue
		}
		out = append(out, key, value)
	}
	return out
}

func sanitizeAttrs(attrs []slog.Attr) []slog.Attr {
	out := make([]slog.Attr, 0, len(attrs))
	for _, attr := range attrs {
		out = append(out, SanitizeAttr(attr))
	}
	return out
}

func sanitizeGroupValue(attrs []slog.Attr) map[string]any {
	out := make(map[string]any, len(attrs))
	for _, attr := range sanitizeAttrs(attrs) {
		switch attr.Value.Kind() {
		case slog.KindString:
			out[attr.Key] = attr.Value.String()
		case slog.KindInt64:
			out[attr.Key] = attr.Value.Int64()
		case slog.KindUint64:
			out[attr.Key] = attr.Value.Uint64()
		case slog.KindFloat64:
			out[attr.Key] = attr.Value.Float64()
		case slog.KindBool:
			out[attr.Key] = attr.Value.Bool()
		case slog.KindDuration:
			out[attr.Key] = attr.Value.Duration().String()
		case slog.KindTime:
			out[attr.Key] = attr.Value.Time().UTC().Format("2006-01-02T15:04:05.000000000Z")
		default:
			out[attr.Key] = fmt.Sprint(attr.Value.Any())
		}
	}
	return out
}

func isKeyMaterial(key string) bool {
	_, ok := keyMaterialAttrs[key]
	return ok
}

func isSensitiveKey(key string) bool {
	for _, part := range sensitiveKeyParts {
		if strings.Contains(key, part) {
			return true
		}
	}
	return false
}
