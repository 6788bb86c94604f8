// Package ledger describes what the chat needs from a ledger client.
// Implementations live elsewhere (see ledger/archive); consumers only depend
// on these interfaces.
package ledger

import (
	"context"
	"ledger-chat/domain"
	"time"
)

// Verification is the result of checking a transaction signature.
type Verification struct {
	Valid  bool
	Hash   domain.Hash
	Author domain.PublicKey
}

type Transaction interface {
	Payload() []byte
	Verify() (Verification, error)
}

type Block interface {
	Hash() domain.Hash
	Author() domain.PublicKey
	Timestamp() time.Time
	// Transactions is empty for blocks that carry no transactions.
	Transactions() []Transaction
}

// Viewer walks a ledger forward, one block at a time, from its root block.
// Next returns io.EOF once the known frontier is reached; calling it again
// later yields blocks appended in the meantime. A Viewer has one consumer.
type Viewer interface {
	Next(ctx context.Context) (Block, error)
}

// Source opens fresh viewers over the same ledger, each starting at the root block.
type Source interface {
	RootBlock() (Block, error)
	Viewer() Viewer
}
