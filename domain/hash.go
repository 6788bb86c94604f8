package domain

import (
	"encoding/hex"
	"fmt"
)

const (
	HashSize      = 32
	PublicKeySize = 33
)

// Hash identifies a block or a transaction of the ledger.
type Hash [HashSize]byte

func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashSize {
		return h, fmt.Errorf("%w: got %d bytes", ErrInvalidHash, len(b))
	}
	copy(h[:], b)
	return h, nil
}

func (h Hash) Bytes() []byte  { return h[:] }
func (h Hash) String() string { return hex.EncodeToString(h[:]) }
func (h Hash) IsZero() bool   { return h == Hash{} }

// Short returns the first 8 hex characters, for logs.
func (h Hash) Short() string { return h.String()[:8] }

// PublicKey is the compressed public key of a ledger participant.
type PublicKey [PublicKeySize]byte

func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var pk PublicKey
	if len(b) != PublicKeySize {
		return pk, fmt.Errorf("%w: got %d bytes", ErrInvalidPublicKey, len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

func (pk PublicKey) Bytes() []byte  { return pk[:] }
func (pk PublicKey) String() string { return hex.EncodeToString(pk[:]) }
func (pk PublicKey) Short() string  { return pk.String()[:10] }
