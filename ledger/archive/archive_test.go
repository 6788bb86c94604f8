package archive

import (
	"context"
	"io"
	"ledger-chat/errors"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func openArchive(t *testing.T) *Archive {
	a, err := Open(t.TempDir(), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestArchive_AppendAndView(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	a := openArchive(t)
	producer, err := NewIdentity()
	req.NoError(err)
	alice, err := NewIdentity()
	req.NoError(err)

	// Given an empty archive
	_, err = a.RootBlock()
	req.ErrorIs(err, errors.ErrEmptyLedger)

	// When a root block and a block with two transactions are appended
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	root, err := a.Init(producer, at)
	req.NoError(err)
	again, err := a.Init(producer, at.Add(time.Hour))
	req.NoError(err)
	req.Equal(root.Hash(), again.Hash())

	_, err = a.Append(producer, at.Add(time.Minute),
		NewTransaction(alice, []byte("first")),
		NewTransaction(alice, []byte("second")))
	req.NoError(err)

	height, err := a.Height()
	req.NoError(err)
	req.Equal(uint64(2), height)

	// Then a viewer walks both blocks in order and stops at the frontier
	viewer := a.Viewer()
	block, err := viewer.Next(ctx)
	req.NoError(err)
	req.Equal(root.Hash(), block.Hash())
	req.Empty(block.Transactions())
	req.Equal(producer.PublicKey(), block.Author())

	block, err = viewer.Next(ctx)
	req.NoError(err)
	req.True(at.Add(time.Minute).Equal(block.Timestamp()))
	txs := block.Transactions()
	req.Len(txs, 2)

	verification, err := txs[0].Verify()
	req.NoError(err)
	req.True(verification.Valid)
	req.Equal(alice.PublicKey(), verification.Author)
	req.Equal([]byte("first"), txs[0].Payload())

	_, err = viewer.Next(ctx)
	req.ErrorIs(err, io.EOF)

	// When another block is appended, the same viewer picks it up
	_, err = a.Append(producer, at.Add(2*time.Minute), NewTransaction(alice, []byte("third")))
	req.NoError(err)
	block, err = viewer.Next(ctx)
	req.NoError(err)
	req.Len(block.Transactions(), 1)
}

func TestTransaction_TamperedPayload(t *testing.T) {
	req := require.New(t)
	alice, err := NewIdentity()
	req.NoError(err)

	// Given a transaction whose payload changed after signing
	tx := NewTransaction(alice, []byte("hello"))
	tx.Data = []byte("hellO")

	// Then verification reports it as invalid without failing
	verification, err := tx.Verify()
	req.NoError(err)
	req.False(verification.Valid)

	// And a truncated author is invalid as well
	tx.Author = tx.Author[:4]
	verification, err = tx.Verify()
	req.NoError(err)
	req.False(verification.Valid)
}

func TestViewer_RejectsTamperedBlock(t *testing.T) {
	req := require.New(t)
	a := openArchive(t)
	producer, err := NewIdentity()
	req.NoError(err)

	block, err := a.Init(producer, time.Now())
	req.NoError(err)

	// Given a stored block rewritten without a new signature
	block.Time++
	raw, err := encMode.Marshal(block)
	req.NoError(err)
	err = a.db.Update(func(txn *badger.Txn) error {
		return txn.Set(blockKey(0), raw)
	})
	req.NoError(err)

	// Then the viewer refuses it
	_, err = a.Viewer().Next(context.Background())
	req.ErrorIs(err, errors.ErrCorruptedBlock)
}

func TestLoadOrCreateIdentity(t *testing.T) {
	req := require.New(t)
	path := t.TempDir() + "/identity"

	created, err := LoadOrCreateIdentity(path)
	req.NoError(err)
	loaded, err := LoadOrCreateIdentity(path)
	req.NoError(err)
	req.Equal(created.PublicKey(), loaded.PublicKey())
	req.Equal(byte(keyTag), created.PublicKey()[0])
}

func TestTransaction_SamePayloadTwice(t *testing.T) {
	req := require.New(t)
	alice, err := NewIdentity()
	req.NoError(err)

	// Given the same author signing the same payload twice
	first, err := NewTransaction(alice, []byte("hi")).Verify()
	req.NoError(err)
	second, err := NewTransaction(alice, []byte("hi")).Verify()
	req.NoError(err)

	// Then both are valid transactions with their own hash
	req.True(first.Valid)
	req.True(second.Valid)
	req.NotEqual(first.Hash, second.Hash)
}

func TestTransaction_MissingNonce(t *testing.T) {
	req := require.New(t)
	alice, err := NewIdentity()
	req.NoError(err)

	// Given a transaction stripped of its nonce
	tx := NewTransaction(alice, []byte("hi"))
	tx.Nonce = nil

	// Then it is invalid
	verification, err := tx.Verify()
	req.NoError(err)
	req.False(verification.Valid)
}
