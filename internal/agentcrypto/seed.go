package agentcrypto

import (
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/hkdf"
)

const (
	hkdfInfoSigning = "waku-a2a/identity/signing/v1"
	hkdfInfoECDH    = "waku-a2a/identity/ecdh/v1"
)

// NewIdentityFromMnemonic deterministically derives both keypairs from a
// BIP-39 mnemonic, letting a deployer recover the same public identity
// across restarts. This supplements the base protocol, which only
// describes freshly-generated keys (see DESIGN.md); a node with no
// mnemonic configured calls NewIdentity instead and this package persists
// nothing on its own.
func NewIdentityFromMnemonic(mnemonic string) (*Identity, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("agentcrypto: invalid mnemonic")
	}
	seed := bip39.NewSeed(mnemonic, "")

	signingSeed, err := hkdfExpand(seed, hkdfInfoSigning, 32)
	if err != nil {
		return nil, err
	}
	ecdhSeed, err := hkdfExpand(seed, hkdfInfoECDH, 32)
	if err != nil {
		return nil, err
	}

	signingPriv := secp256k1.PrivKeyFromBytes(signingSeed)

	var ecdhPriv, ecdhPub [32]byte
	copy(ecdhPriv[:], ecdhSeed)
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

// NewMnemonic generates a fresh 12-word BIP-39 mnemonic suitable for
// NewIdentityFromMnemonic.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		return "", fmt.Errorf("agentcrypto: entropy: %w", err)
	}
	return bip39.NewMnemonic(entropy)
}

func hkdfExpand(seed []byte, info string, outLen int) ([]byte, error) {
	reader := hkdf.New(sha256.New, seed, nil, []byte(info))
	out := make([]byte, outLen)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, fmt.Errorf("agentcrypto: hkdf expand: %w", err)
	}
	return out, nil
}
