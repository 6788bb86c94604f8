// Package archive keeps a local copy of a space ledger in BadgerDB.
//
// Blocks are stored CBOR encoded under "block:<height>" with a big-endian
// height so that keys sort in chain order. The first block is the root block
// of the space and carries no transaction.
package archive

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"ledger-chat/domain"
	"ledger-chat/errors"
	"ledger-chat/ledger"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const blockPrefix = "block:"

var heightKey = []byte("meta:height")

type Archive struct {
	mu  sync.Mutex // serializes appends
	db  *badger.DB
	log *slog.Logger
}

func Open(path string, log *slog.Logger) (*Archive, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	return &Archive{db: db, log: log}, nil
}

// OpenReadOnly opens an archive another process may be writing to.
func OpenReadOnly(path string, log *slog.Logger) (*Archive, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open archive %s read-only: %w", path, err)
	}
	return &Archive{db: db, log: log}, nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}

// Height is the number of stored blocks.
func (a *Archive) Height() (uint64, error) {
	var height uint64
	err := a.db.View(func(txn *badger.Txn) error {
		var err error
		height, err = readHeight(txn)
		return err
	})
	return height, err
}

// Init writes the root block of a new space. It is a no-op when the archive
// already has one.
func (a *Archive) Init(producer Identity, at time.Time) (*Block, error) {
	root, err := a.RootBlock()
	if err == nil {
		return root.(*Block), nil
	}
	if err != errors.ErrEmptyLedger {
		return nil, err
	}
	return a.Append(producer, at)
}

// Append signs and stores a new block holding txs.
func (a *Archive) Append(producer Identity, at time.Time, txs ...Transaction) (*Block, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var block *Block
	err := a.db.Update(func(txn *badger.Txn) error {
		height, err := readHeight(txn)
		if err != nil {
			return err
		}

		block = &Block{
			Height:   height,
			Time:     at.UTC().UnixMilli(),
			Producer: producer.PublicKey().Bytes(),
			Content:  txs,
		}
		if height > 0 {
			parent, err := readBlock(txn, height-1)
			if err != nil {
				return err
			}
			previous := parent.Hash()
			block.Previous = previous.Bytes()
		}
		if err := block.sign(producer); err != nil {
			return err
		}

		raw, err := encMode.Marshal(block)
		if err != nil {
			return fmt.Errorf("encode block: %w", err)
		}
		if err := txn.Set(blockKey(height), raw); err != nil {
			return err
		}
		next := make([]byte, 8)
		binary.BigEndian.PutUint64(next, height+1)
		return txn.Set(heightKey, next)
	})
	if err != nil {
		return nil, err
	}
	a.log.Debug("Block appended", "height", block.Height, "transactions", len(txs))
	return block, nil
}

// Block reads the block at height; found is false past the frontier.
func (a *Archive) Block(height uint64) (*Block, bool, error) {
	var block *Block
	err := a.db.View(func(txn *badger.Txn) error {
		var err error
		block, err = readBlock(txn, height)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return block, true, nil
}

func (a *Archive) RootBlock() (ledger.Block, error) {
	block, found, err := a.Block(0)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.ErrEmptyLedger
	}
	return block, nil
}

func (a *Archive) Viewer() ledger.Viewer {
	return &Viewer{archive: a}
}

func readHeight(txn *badger.Txn) (uint64, error) {
	item, err := txn.Get(heightKey)
	if err == badger.ErrKeyNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var height uint64
	err = item.Value(func(v []byte) error {
		height = binary.BigEndian.Uint64(v)
		return nil
	})
	return height, err
}

func readBlock(txn *badger.Txn, height uint64) (*Block, error) {
	item, err := txn.Get(blockKey(height))
	if err != nil {
		return nil, err
	}
	var block *Block
	err = item.Value(func(v []byte) error {
		block, err = decodeBlock(v)
		return err
	})
	return block, err
}

// Viewer reads the archive forward and checks the chain as it goes.
type Viewer struct {
	archive  *Archive
	next     uint64
	previous domain.Hash
}

func (v *Viewer) Next(ctx context.Context) (ledger.Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	block, found, err := v.archive.Block(v.next)
	if err != nil {
		return nil, fmt.Errorf("read block %d: %w", v.next, err)
	}
	if !found {
		return nil, io.EOF
	}
	if err := block.check(v.previous); err != nil {
		return nil, err
	}
	v.previous = block.Hash()
	v.next++
	return block, nil
}
