// Package security holds the signing key material used to attest outbound
// webhook requests.
package security

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/goliatone/go-verify/core"
)

// Ed25519Signer signs webhook signature bases with a local ed25519 key.
// KeyID is the base64url raw public key without padding, which lets the
// subscriber verify signatures without an out-of-band key exchange.
type Ed25519Signer struct {
	private ed25519.PrivateKey
	keyID   string
	prefix  string
}

// NewEd25519Signer builds a signer from a 32-byte seed. The prefix
// identifies the local identity in outbound attestations.
func NewEd25519Signer(seed []byte, prefix string) (*Ed25519Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("security: signing seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil, fmt.Errorf("security: signer prefix is required")
	}
	private := ed25519.NewKeyFromSeed(seed)
	public := private.Public().(ed25519.PublicKey)
	return &Ed25519Signer{
		private: private,
		keyID:   base64.RawURLEncoding.EncodeToString(public),
		prefix:  prefix,
	}, nil
}

// NewEd25519SignerFromEncodedSeed decodes a base64url (no padding) seed
// before building the signer. This is the form the configuration layer
// carries.
func NewEd25519SignerFromEncodedSeed(encoded, prefix string) (*Ed25519Signer, error) {
	seed, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("security: decode signing seed: %w", err)
	}
	return NewEd25519Signer(seed, prefix)
}

// GenerateEd25519Signer creates a signer with a fresh random key. Useful
// for tests and ephemeral deployments where the subscriber learns the key
// from the keyid parameter.
func GenerateEd25519Signer(prefix string) (*Ed25519Signer, error) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("security: generate signing seed: %w", err)
	}
	return NewEd25519Signer(seed, prefix)
}

func (s *Ed25519Signer) Sign(_ context.Context, input []byte) ([]byte, error) {
	if s == nil || len(s.private) == 0 {
		return nil, fmt.Errorf("security: signer has no key material")
	}
	return ed25519.Sign(s.private, input), nil
}

func (s *Ed25519Signer) KeyID() string {
	if s == nil {
		return ""
	}
	return s.keyID
}

func (s *Ed25519Signer) SignerPrefix() string {
	if s == nil {
		return ""
	}
	return s.prefix
}

// PublicKey exposes the verification key for subscribers that pin it
// instead of trusting the keyid parameter.
func (s *Ed25519Signer) PublicKey() ed25519.PublicKey {
	if s == nil || len(s.private) == 0 {
		return nil
	}
	return s.private.Public().(ed25519.PublicKey)
}

var _ core.RequestSigner = (*Ed25519Signer)(nil)
