package archive

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"ledger-chat/domain"
	"os"
	"strings"
)

// keyTag is the first byte of an ed25519 key once widened to domain.PublicKey.
const keyTag = 0xED

// Identity signs transactions and blocks.
type Identity struct {
	private ed25519.PrivateKey
}

func NewIdentity() (Identity, error) {
	_, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Identity{}, fmt.Errorf("generate key: %w", err)
	}
	return Identity{private: private}, nil
}

func IdentityFromSeed(seed []byte) (Identity, error) {
	if len(seed) != ed25519.SeedSize {
		return Identity{}, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return Identity{private: ed25519.NewKeyFromSeed(seed)}, nil
}

// LoadOrCreateIdentity reads a hex encoded seed from path, or creates one.
func LoadOrCreateIdentity(path string) (Identity, error) {
	raw, err := os.ReadFile(path)
	if err == nil {
		seed, err := hex.DecodeString(strings.TrimSpace(string(raw)))
		if err != nil {
			return Identity{}, fmt.Errorf("identity file %s: %w", path, err)
		}
		return IdentityFromSeed(seed)
	}
	if !os.IsNotExist(err) {
		return Identity{}, fmt.Errorf("read identity: %w", err)
	}

	identity, err := NewIdentity()
	if err != nil {
		return Identity{}, err
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(identity.Seed())+"\n"), 0o600); err != nil {
		return Identity{}, fmt.Errorf("write identity: %w", err)
	}
	return identity, nil
}

func (i Identity) Seed() []byte { return i.private.Seed() }

func (i Identity) PublicKey() domain.PublicKey {
	return widenKey(i.private.Public().(ed25519.PublicKey))
}

func (i Identity) sign(hash domain.Hash) []byte {
	return ed25519.Sign(i.private, hash[:])
}

func widenKey(key ed25519.PublicKey) domain.PublicKey {
	var pk domain.PublicKey
	pk[0] = keyTag
	copy(pk[1:], key)
	return pk
}

func narrowKey(pk domain.PublicKey) (ed25519.PublicKey, bool) {
	if pk[0] != keyTag {
		return nil, false
	}
	return ed25519.PublicKey(pk[1:]), true
}

func verify(pk domain.PublicKey, hash domain.Hash, signature []byte) bool {
	key, ok := narrowKey(pk)
	if !ok || len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(key, hash[:], signature)
}
