// Package projection turns the ledger of a space into the relational read model.
// Each transaction is applied at most once per space: the handled marker is
// written only after its effects, and the effects themselves are keyed by
// ledger coordinates so that replaying them is harmless.
package projection

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"ledger-chat/codec"
	"ledger-chat/domain"
	"ledger-chat/domain/event"
	"ledger-chat/errors"
	"ledger-chat/ledger"
	"ledger-chat/repositories"
	"log/slog"
	"time"
)

// ReadModel is the part of the store the projector writes to.
type ReadModel interface {
	IsHandled(spaceID int64, blockHash, transactionHash domain.Hash) (bool, error)
	MarkHandled(spaceID int64, blockHash, transactionHash domain.Hash) error
	FindUser(spaceID int64, publicKey domain.PublicKey) (repositories.User, bool, error)
	CreateUser(info repositories.UserInfo) (repositories.User, error)
	FindPublicRoom(spaceID int64, name string) (repositories.PublicRoom, bool, error)
	CreatePublicRoom(info repositories.PublicRoomInfo) (repositories.PublicRoom, error)
	FindPublicMessage(roomID int64, blockHash, transactionHash domain.Hash) (repositories.PublicMessage, bool, error)
	CreatePublicMessage(info repositories.PublicMessageInfo) (repositories.PublicMessage, error)
}

// Entry is one verified transaction with the block that carries it.
type Entry struct {
	BlockHash       domain.Hash
	BlockAuthor     domain.PublicKey
	BlockTimestamp  time.Time
	TransactionHash domain.Hash
	Author          domain.PublicKey
	Payload         []byte
}

type Outcome uint8

const (
	// OutcomeAlreadyHandled means the transaction was projected by an earlier run.
	OutcomeAlreadyHandled Outcome = iota
	// OutcomeApplied means the event is now in the read model.
	OutcomeApplied
	// OutcomeDropped means the event was valid but had nothing to project,
	// like a message sent to a room that does not exist.
	OutcomeDropped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAlreadyHandled:
		return "already_handled"
	case OutcomeApplied:
		return "applied"
	case OutcomeDropped:
		return "dropped"
	default:
		return fmt.Sprintf("outcome(%d)", uint8(o))
	}
}

// Handler receives progress notifications. It runs on the projection goroutine.
type Handler func(evt event.DomainEvent)

type Projector struct {
	log          *slog.Logger
	store        ReadModel
	codec        *codec.Codec
	spaceID      int64
	pollInterval time.Duration
	follow       bool
	now          func() time.Time
}

type Option func(p *Projector)

// WithFollow keeps ReadEvents polling the viewer for new blocks every interval
// once the frontier is reached, instead of returning.
func WithFollow(interval time.Duration) Option {
	return func(p *Projector) {
		p.follow = true
		p.pollInterval = interval
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Projector) { p.now = now }
}

func NewProjector(log *slog.Logger, store ReadModel, codec *codec.Codec, spaceID int64, opts ...Option) *Projector {
	p := &Projector{
		log:     log.With("space", spaceID),
		store:   store,
		codec:   codec,
		spaceID: spaceID,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Projector) SpaceID() int64 { return p.spaceID }

// ReadEvents drives the viewer from its current position. Transactions with an
// invalid signature are skipped. A decoding error or a room conflict stops the
// run: the caller decides whether to restart from the root block.
func (p *Projector) ReadEvents(ctx context.Context, viewer ledger.Viewer, handle Handler) error {
	var (
		caughtUp bool
		first    time.Time
	)
	if handle == nil {
		handle = func(event.DomainEvent) {}
	}
	catchUp := func() {
		if !caughtUp {
			caughtUp = true
			handle(event.CaughtUp{Space: p.spaceID, At: p.now()})
		}
	}

	for {
		block, err := viewer.Next(ctx)
		if stderrors.Is(err, io.EOF) {
			catchUp()
			if !p.follow {
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.pollInterval):
				continue
			}
		}
		if err != nil {
			return fmt.Errorf("next block: %w", err)
		}

		if first.IsZero() {
			first = block.Timestamp()
		}

		for _, tx := range block.Transactions() {
			verification, err := tx.Verify()
			if err != nil {
				return fmt.Errorf("verify transaction: %w", err)
			}
			if !verification.Valid {
				p.log.Debug("Skipping transaction with invalid signature", "transaction", verification.Hash.Short())
				continue
			}

			entry := Entry{
				BlockHash:       block.Hash(),
				BlockAuthor:     block.Author(),
				BlockTimestamp:  block.Timestamp(),
				TransactionHash: verification.Hash,
				Author:          verification.Author,
				Payload:         tx.Payload(),
			}
			outcome, evt, err := p.Apply(entry)
			if err != nil {
				return err
			}

			switch outcome {
			case OutcomeAlreadyHandled:
				if !caughtUp {
					handle(event.Verifying{
						Space:          p.spaceID,
						Fraction:       p.progress(first, entry.BlockTimestamp),
						BlockTimestamp: entry.BlockTimestamp,
					})
				}
			case OutcomeApplied:
				catchUp()
				handle(event.Projected{
					Space:           p.spaceID,
					BlockHash:       entry.BlockHash,
					BlockTimestamp:  entry.BlockTimestamp,
					TransactionHash: entry.TransactionHash,
					Author:          entry.Author,
					Event:           evt,
				})
			case OutcomeDropped:
				catchUp()
			}
		}
	}
}

// progress estimates how far the catch-up went, from the ledger time of the
// current block relative to the root block and now.
func (p *Projector) progress(first, current time.Time) float64 {
	total := p.now().Sub(first)
	if total <= 0 {
		return 1
	}
	fraction := float64(current.Sub(first)) / float64(total)
	switch {
	case fraction < 0:
		return 0
	case fraction > 1:
		return 1
	default:
		return fraction
	}
}

// Apply projects a single verified transaction and marks it handled.
func (p *Projector) Apply(entry Entry) (Outcome, event.Event, error) {
	handled, err := p.store.IsHandled(p.spaceID, entry.BlockHash, entry.TransactionHash)
	if err != nil {
		return 0, nil, err
	}
	if handled {
		return OutcomeAlreadyHandled, nil, nil
	}

	evt, err := p.codec.Deserialize(entry.Payload)
	if err != nil {
		return 0, nil, fmt.Errorf("transaction %s: %w", entry.TransactionHash.Short(), err)
	}

	author, err := p.findOrCreateUser(entry.Author)
	if err != nil {
		return 0, nil, err
	}

	applier := &applier{projector: p, entry: entry, author: author, outcome: OutcomeApplied}
	if err := evt.Accept(applier); err != nil {
		return 0, nil, err
	}

	if err := p.store.MarkHandled(p.spaceID, entry.BlockHash, entry.TransactionHash); err != nil {
		return 0, nil, err
	}
	p.log.Debug("Transaction projected",
		"kind", evt.Kind().String(),
		"outcome", applier.outcome.String(),
		"transaction", entry.TransactionHash.Short())
	return applier.outcome, evt, nil
}

func (p *Projector) findOrCreateUser(publicKey domain.PublicKey) (repositories.User, error) {
	user, found, err := p.store.FindUser(p.spaceID, publicKey)
	if err != nil {
		return repositories.User{}, err
	}
	if found {
		return user, nil
	}
	user, err = p.store.CreateUser(repositories.UserInfo{SpaceID: p.spaceID, PublicKey: publicKey})
	if err != nil {
		return repositories.User{}, fmt.Errorf("create user %s: %w", publicKey.Short(), err)
	}
	return user, nil
}

// applier writes one event. Every write is looked up by its ledger
// coordinate first so that a run interrupted before MarkHandled can replay it.
type applier struct {
	projector *Projector
	entry     Entry
	author    repositories.User
	outcome   Outcome
}

func (a *applier) VisitCreatePublicRoom(e event.CreatePublicRoom) error {
	p := a.projector
	name := e.Name.String()

	room, found, err := p.store.FindPublicRoom(p.spaceID, name)
	if err != nil {
		return err
	}
	if found {
		return a.sameCoordinate(room, name)
	}

	_, err = p.store.CreatePublicRoom(repositories.PublicRoomInfo{
		SpaceID:         p.spaceID,
		Name:            name,
		AuthorID:        a.author.ID(),
		BlockHash:       a.entry.BlockHash,
		TransactionHash: a.entry.TransactionHash,
	})
	if stderrors.Is(err, errors.ErrAlreadyExists) {
		return fmt.Errorf("%w: %q", errors.ErrRoomConflict, name)
	}
	return err
}

// sameCoordinate accepts an existing room only when this very transaction created it.
func (a *applier) sameCoordinate(room repositories.PublicRoom, name string) error {
	blockHash, err := room.BlockHash()
	if err != nil {
		return err
	}
	transactionHash, err := room.TransactionHash()
	if err != nil {
		return err
	}
	if blockHash != a.entry.BlockHash || transactionHash != a.entry.TransactionHash {
		return fmt.Errorf("%w: %q created by transaction %s", errors.ErrRoomConflict, name, transactionHash.Short())
	}
	return nil
}

func (a *applier) VisitPublicRoomMessage(e event.PublicRoomMessage) error {
	p := a.projector

	room, found, err := p.store.FindPublicRoom(p.spaceID, e.RoomName.String())
	if err != nil {
		return err
	}
	if !found {
		p.log.Debug("Dropping message to unknown room", "room", e.RoomName.String())
		a.outcome = OutcomeDropped
		return nil
	}

	_, found, err = p.store.FindPublicMessage(room.ID(), a.entry.BlockHash, a.entry.TransactionHash)
	if err != nil || found {
		return err
	}
	_, err = p.store.CreatePublicMessage(repositories.PublicMessageInfo{
		RoomID:          room.ID(),
		UserID:          a.author.ID(),
		BlockHash:       a.entry.BlockHash,
		TransactionHash: a.entry.TransactionHash,
		Timestamp:       a.entry.BlockTimestamp,
		Content:         e.Content.String(),
	})
	return err
}
