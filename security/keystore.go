package security

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

const sealedSeedPrefix = "verify.seed.v1:"

// SeedSource yields the raw ed25519 seed used to build the webhook signer.
type SeedSource interface {
	Seed(ctx context.Context) ([]byte, error)
}

// EnvSeedSource reads a base64url-encoded seed from an environment
// variable. Suitable for container deployments where the orchestrator
// injects the secret.
type EnvSeedSource struct {
	Variable string
}

func (s EnvSeedSource) Seed(_ context.Context) ([]byte, error) {
	name := strings.TrimSpace(s.Variable)
	if name == "" {
		return nil, fmt.Errorf("security: seed variable name is required")
	}
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return nil, fmt.Errorf("security: environment variable %s is not set", name)
	}
	seed, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("security: decode seed from %s: %w", name, err)
	}
	return seed, nil
}

// FileSeedSource reads a base64url-encoded seed from a file on disk.
type FileSeedSource struct {
	Path string
}

func (s FileSeedSource) Seed(_ context.Context) ([]byte, error) {
	path := strings.TrimSpace(s.Path)
	if path == "" {
		return nil, fmt.Errorf("security: seed file path is required")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("security: read seed file: %w", err)
	}
	seed, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("security: decode seed file %s: %w", path, err)
	}
	return seed, nil
}

type sealedSeedEnvelope struct {
	KeyID      string `json:"kid"`
	Algorithm  string `json:"alg"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// SealedSeedSource decrypts a seed sealed at rest with an application
// key. The sealed blob is an AES-256-GCM envelope produced by SealSeed.
type SealedSeedSource struct {
	key    []byte
	keyID  string
	sealed []byte
}

func NewSealedSeedSource(appKey, sealed []byte) (*SealedSeedSource, error) {
	key := bytes.TrimSpace(appKey)
	if len(key) == 0 {
		return nil, fmt.Errorf("security: app key is required")
	}
	if len(bytes.TrimSpace(sealed)) == 0 {
		return nil, fmt.Errorf("security: sealed seed is required")
	}
	return &SealedSeedSource{
		key:    normalizeAppKey(key),
		keyID:  "app-key",
		sealed: sealed,
	}, nil
}

func (s *SealedSeedSource) Seed(_ context.Context) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("security: seed source is nil")
	}
	payload := strings.TrimSpace(string(s.sealed))
	if !strings.HasPrefix(payload, sealedSeedPrefix) {
		return nil, fmt.Errorf("security: sealed seed missing %q prefix", sealedSeedPrefix)
	}
	payload = strings.TrimPrefix(payload, sealedSeedPrefix)

	var parsed sealedSeedEnvelope
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return nil, fmt.Errorf("security: decode seed envelope: %w", err)
	}
	if parsed.KeyID != "" && parsed.KeyID != s.keyID {
		return nil, fmt.Errorf("security: key id mismatch: got %q want %q", parsed.KeyID, s.keyID)
	}

	nonce, err := base64.StdEncoding.DecodeString(parsed.Nonce)
	if err != nil {
		return nil, fmt.Errorf("security: decode nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(parsed.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("security: decode ciphertext: %w", err)
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, fmt.Errorf("security: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("security: create gcm: %w", err)
	}
	seed, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("security: unseal seed: %w", err)
	}
	return seed, nil
}

// SealSeed encrypts a raw seed with an application key, producing the
// blob SealedSeedSource expects. Used at provisioning time.
func SealSeed(appKey, seed []byte) ([]byte, error) {
	key := bytes.TrimSpace(appKey)
	if len(key) == 0 {
		return nil, fmt.Errorf("security: app key is required")
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("security: seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	block, err := aes.NewCipher(normalizeAppKey(key))
	if err != nil {
		return nil, fmt.Errorf("security: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("security: create gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("security: nonce generation failed: %w", err)
	}
	sealed := gcm.Seal(nil, nonce, seed, nil)
	data, err := json.Marshal(sealedSeedEnvelope{
		KeyID:      "app-key",
		Algorithm:  "aes-256-gcm",
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(sealed),
	})
	if err != nil {
		return nil, fmt.Errorf("security: encode seed envelope: %w", err)
	}
	return append([]byte(sealedSeedPrefix), data...), nil
}

// ChainSeedSource tries each source in order and returns the first seed
// found, so deployments can prefer an injected secret and fall back to a
// provisioned file.
type ChainSeedSource struct {
	sources []SeedSource
}

func NewChainSeedSource(sources ...SeedSource) (*ChainSeedSource, error) {
	filtered := make([]SeedSource, 0, len(sources))
	for _, source := range sources {
		if source != nil {
			filtered = append(filtered, source)
		}
	}
	if len(filtered) == 0 {
		return nil, fmt.Errorf("security: at least one seed source is required")
	}
	return &ChainSeedSource{sources: filtered}, nil
}

func (s *ChainSeedSource) Seed(ctx context.Context) ([]byte, error) {
	if s == nil || len(s.sources) == 0 {
		return nil, fmt.Errorf("security: seed source is nil")
	}
	var errs []string
	for _, source := range s.sources {
		seed, err := source.Seed(ctx)
		if err == nil {
			return seed, nil
		}
		errs = append(errs, err.Error())
	}
	return nil, fmt.Errorf("security: all seed sources failed: %s", strings.Join(errs, "; "))
}

// NewSignerFromSource resolves a seed and builds the signer in one step.
func NewSignerFromSource(ctx context.Context, source SeedSource, prefix string) (*Ed25519Signer, error) {
	if source == nil {
		return nil, fmt.Errorf("security: seed source is required")
	}
	seed, err := source.Seed(ctx)
	if err != nil {
		return nil, err
	}
	return NewEd25519Signer(seed, prefix)
}

func normalizeAppKey(value []byte) []byte {
	if len(value) == 16 || len(value) == 24 || len(value) == 32 {
		key := make([]byte, len(value))
		copy(key, value)
		return key
	}
	sum := sha256.Sum256(value)
	key := make([]byte, len(sum))
	copy(key, sum[:])
	return key
}
