package archive

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"ledger-chat/domain"
	"ledger-chat/errors"
	"ledger-chat/ledger"
	"time"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"
)

var encMode = mustEncMode()

func mustEncMode() cbor.EncMode {
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return mode
}

const nonceSize = 16

// Transaction is a signed payload. The random nonce gives two posts of the
// same payload by the same author distinct hashes.
type Transaction struct {
	Data      []byte `cbor:"1,keyasint"`
	Author    []byte `cbor:"2,keyasint"`
	Signature []byte `cbor:"3,keyasint"`
	Nonce     []byte `cbor:"4,keyasint"`
}

// NewTransaction signs payload with identity.
func NewTransaction(identity Identity, payload []byte) Transaction {
	nonce := make([]byte, nonceSize)
	_, _ = rand.Read(nonce) // never fails since go1.24
	tx := Transaction{Data: payload, Author: identity.PublicKey().Bytes(), Nonce: nonce}
	tx.Signature = identity.sign(tx.hash())
	return tx
}

// hash covers author, nonce and data; the author and nonce have fixed sizes.
func (t Transaction) hash() domain.Hash {
	h, _ := blake2b.New256(nil)
	_, _ = h.Write(t.Author)
	_, _ = h.Write(t.Nonce)
	_, _ = h.Write(t.Data)
	var out domain.Hash
	copy(out[:], h.Sum(nil))
	return out
}

func (t Transaction) Payload() []byte { return t.Data }

// Verify never fails: a malformed author, nonce or signature is an invalid transaction.
func (t Transaction) Verify() (ledger.Verification, error) {
	hash := t.hash()
	author, err := domain.PublicKeyFromBytes(t.Author)
	if err != nil || len(t.Nonce) != nonceSize {
		return ledger.Verification{Hash: hash}, nil
	}
	return ledger.Verification{
		Valid:  verify(author, hash, t.Signature),
		Hash:   hash,
		Author: author,
	}, nil
}

// Block is a signed, timestamped list of transactions chained to its parent.
type Block struct {
	Height    uint64        `cbor:"1,keyasint"`
	Previous  []byte        `cbor:"2,keyasint"`
	Time      int64         `cbor:"3,keyasint"`
	Producer  []byte        `cbor:"4,keyasint"`
	Content   []Transaction `cbor:"5,keyasint"`
	Signature []byte        `cbor:"6,keyasint"`
}

// hash covers every field but the signature.
func (b *Block) hash() (domain.Hash, error) {
	unsigned := *b
	unsigned.Signature = nil
	raw, err := encMode.Marshal(unsigned)
	if err != nil {
		return domain.Hash{}, fmt.Errorf("encode block: %w", err)
	}
	return blake2b.Sum256(raw), nil
}

func (b *Block) Hash() domain.Hash {
	h, _ := b.hash()
	return h
}

func (b *Block) Author() domain.PublicKey {
	pk, _ := domain.PublicKeyFromBytes(b.Producer)
	return pk
}

func (b *Block) Timestamp() time.Time { return time.UnixMilli(b.Time).UTC() }

func (b *Block) Transactions() []ledger.Transaction {
	out := make([]ledger.Transaction, len(b.Content))
	for i, tx := range b.Content {
		out[i] = tx
	}
	return out
}

func (b *Block) PreviousHash() domain.Hash {
	h, _ := domain.HashFromBytes(b.Previous)
	return h
}

func (b *Block) sign(identity Identity) error {
	h, err := b.hash()
	if err != nil {
		return err
	}
	b.Signature = identity.sign(h)
	return nil
}

// check verifies the producer signature and the link to the parent.
func (b *Block) check(previous domain.Hash) error {
	h, err := b.hash()
	if err != nil {
		return err
	}
	author, err := domain.PublicKeyFromBytes(b.Producer)
	if err != nil {
		return fmt.Errorf("%w: height %d: %v", errors.ErrCorruptedBlock, b.Height, err)
	}
	if !verify(author, h, b.Signature) {
		return fmt.Errorf("%w: height %d: bad signature", errors.ErrCorruptedBlock, b.Height)
	}
	if b.Height > 0 && !bytes.Equal(b.Previous, previous[:]) {
		return fmt.Errorf("%w: height %d: broken chain", errors.ErrCorruptedBlock, b.Height)
	}
	return nil
}

func decodeBlock(raw []byte) (*Block, error) {
	var b Block
	if err := cbor.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrCorruptedBlock, err)
	}
	return &b, nil
}

func blockKey(height uint64) []byte {
	key := make([]byte, len(blockPrefix)+8)
	copy(key, blockPrefix)
	binary.BigEndian.PutUint64(key[len(blockPrefix):], height)
	return key
}
