package agentcrypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"waku-a2a/agent/pkg/envelope"
)

// ErrDecrypt is returned when a payload fails to decrypt, either because it
// is malformed or because the wrong key was used to open it.
var ErrDecrypt = errors.New("agentcrypto: decryption failed")

// SessionKey is a raw 32-byte ECDH shared secret, used directly as a
// ChaCha20-Poly1305 key. There is intentionally no KDF between the ECDH
// output and this key: the upstream protocol this module implements treats
// the shared secret itself as the session key, trading forward secrecy for
// simplicity (see DESIGN.md).
type SessionKey [32]byte

// Encrypt seals plaintext under a fresh random nonce and returns the
// base64-encoded nonce and ciphertext ready for the wire.
func (k SessionKey) Encrypt(plaintext []byte) (envelope.EncryptedPayload, error) {
	aead, err := chacha20poly1305.New(k[:])
	if err != nil {
		return envelope.EncryptedPayload{}, fmt.Errorf("agentcrypto: new aead: %w", err)
	}

	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return envelope.EncryptedPayload{}, fmt.Errorf("agentcrypto: nonce: %w", err)
	}

	ciphertext := aead.Seal(nil, nonce, plaintext, nil)
	return envelope.EncryptedPayload{
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	}, nil
}

// Decrypt opens a payload sealed by Encrypt with the same key.
func (k SessionKey) Decrypt(payload envelope.EncryptedPayload) ([]byte, error) {
	aead, err := chacha20poly1305.New(k[:])
	if err != nil {
		return nil, fmt.Errorf("agentcrypto: new aead: %w", err)
	}

	nonce, err := base64.StdEncoding.DecodeString(payload.Nonce)
	if err != nil || len(nonce) != chacha20poly1305.NonceSize {
		return nil, ErrDecrypt
	}
	ciphertext, err := base64.StdEncoding.DecodeString(payload.Ciphertext)
	if err != nil {
		return nil, ErrDecrypt
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}
