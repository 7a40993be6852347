// Package agentcrypto implements the two independent keypairs an agent
// holds (an X25519 ECDH keypair for opportunistic E2E encryption, and a
// secp256k1 keypair whose compressed public key is the agent's wire
// identity) plus the ChaCha20-Poly1305 session crypto built on top of them.
package agentcrypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/mr-tron/base58/base58"
	"golang.org/x/crypto/curve25519"
)

var (
	// ErrInvalidPublicKey is returned when a hex-encoded peer key cannot be
	// parsed or has the wrong length for its curve.
	ErrInvalidPublicKey = errors.New("agentcrypto: invalid public key")
)

// Identity holds both keypairs an agent needs: a secp256k1 signing keypair
// whose compressed public key is the agent's canonical wire identifier, and
// an X25519 ECDH keypair used only for E2E session key agreement.
type Identity struct {
	SigningPrivate *secp256k1.PrivateKey
	SigningPublic  *secp256k1.PublicKey

	ecdhPrivate [32]byte
	ECDHPublic  [32]byte
}

// NewIdentity generates a fresh random identity: a secp256k1 signing
// keypair and an independent X25519 ECDH keypair, exactly as the upstream
// node does (two unrelated keys, never derived from one another).
func NewIdentity() (*Identity, error) {
	signingPriv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("agentcrypto: generate signing key: %w", err)
	}

	var ecdhPriv [32]byte
	if _, err := rand.Read(ecdhPriv[:]); err != nil {
		return nil, fmt.Errorf("agentcrypto: generate ecdh key: %w", err)
	}
	var ecdhPub [32]byte
	if err := curve25519ScalarBaseMult(&ecdhPub, &ecdhPriv); err != nil {
		return nil, fmt.Errorf("agentcrypto: derive ecdh public key: %w", err)
	}

	return &Identity{
		SigningPrivate: signingPriv,
		SigningPublic:  signingPriv.PubKey(),
		ecdhPrivate:    ecdhPriv,
		ECDHPublic:     ecdhPub,
	}, nil
}

func curve25519ScalarBaseMult(dst, scalar *[32]byte) error {
	out, err := curve25519.X25519(scalar[:], curve25519.Basepoint)
	if err != nil {
		return err
	}
	copy(dst[:], out)
	return nil
}

// PublicKeyHex is the agent's canonical wire identifier: the compressed
// secp256k1 public key, hex-encoded.
func (id *Identity) PublicKeyHex() string {
	return hex.EncodeToString(id.SigningPublic.SerializeCompressed())
}

// ECDHPublicHex is the hex-encoded X25519 public key carried in an
// IntroBundle.
func (id *Identity) ECDHPublicHex() string {
	return hex.EncodeToString(id.ECDHPublic[:])
}

// ParseECDHPublicKey decodes a hex-encoded X25519 public key as published
// in a peer's IntroBundle.
func ParseECDHPublicKey(hexKey string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(hexKey)
	if err != nil || len(raw) != 32 {
		return out, ErrInvalidPublicKey
	}
	copy(out[:], raw)
	return out, nil
}

// SharedSecret computes the raw X25519 ECDH output with a peer's public
// key. Per the upstream design, this raw 32-byte secret is used directly
// as the AEAD key — there is deliberately no KDF step and no forward
// secrecy; see SessionKey in aead.go.
func (id *Identity) SharedSecret(peerPublic [32]byte) (SessionKey, error) {
	shared, err := curve25519.X25519(id.ecdhPrivate[:], peerPublic[:])
	if err != nil {
		return SessionKey{}, fmt.Errorf("agentcrypto: ecdh: %w", err)
	}
	var key SessionKey
	copy(key[:], shared)
	return key, nil
}

// DisplayID is a short, log-only identifier derived from the signing
// public key. It never appears on the wire; it exists purely so operators
// can tell agents apart in logs and CLI output without printing full keys.
func (id *Identity) DisplayID() string {
	sum := sha256.Sum256(id.SigningPublic.SerializeCompressed())
	return base58.Encode(sum[:16])
}
