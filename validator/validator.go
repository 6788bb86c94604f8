// Package validator decides whether a candidate event may enter the ledger.
// It is the place where "first create wins" is enforced for room names.
package validator

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
)

var (
	ErrReplayedTransaction = fmt.Errorf("%w: transaction already handled", errors.ErrEventRejected)
	ErrRoomNameTaken       = fmt.Errorf("%w: room name already claimed", errors.ErrEventRejected)
)

// State is owned by the caller; it is not safe for concurrent use.
type State struct {
	HandledTransactions map[domain.Hash]struct{}
	PublicRooms         map[string]struct{}
}

func NewState() *State {
	return &State{
		HandledTransactions: make(map[domain.Hash]struct{}),
		PublicRooms:         make(map[string]struct{}),
	}
}

// HandleEvent reports whether evt, carried by the transaction, is acceptable.
// An accepted event is recorded in the state.
func (s *State) HandleEvent(transaction domain.Hash, evt event.Event) bool {
	return s.Validate(transaction, evt) == nil
}

// Validate is HandleEvent with the reason of a rejection.
func (s *State) Validate(transaction domain.Hash, evt event.Event) error {
	if _, ok := s.HandledTransactions[transaction]; ok {
		return ErrReplayedTransaction
	}
	if err := evt.Accept(admission{state: s}); err != nil {
		return err
	}
	s.HandledTransactions[transaction] = struct{}{}
	return nil
}

type admission struct {
	state *State
}

func (a admission) VisitCreatePublicRoom(e event.CreatePublicRoom) error {
	name := e.Name.String()
	if _, ok := a.state.PublicRooms[name]; ok {
		return fmt.Errorf("%w: %q", ErrRoomNameTaken, name)
	}
	a.state.PublicRooms[name] = struct{}{}
	return nil
}

// VisitPublicRoomMessage accepts any message: room existence is checked when projecting.
func (a admission) VisitPublicRoomMessage(event.PublicRoomMessage) error {
	return nil
}

// Replay feeds every valid transaction of a ledger into the state, so that
// it reflects what the ledger already admitted. Rejected events are ignored:
// they were admitted by another validator and lose to the earlier ones.
func (s *State) Replay(ctx context.Context, viewer ledger.Viewer, c *codec.Codec) error {
	for {
		block, err := viewer.Next(ctx)
		if stderrors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("replay: %w", err)
		}
		for _, tx := range block.Transactions() {
			verification, err := tx.Verify()
			if err != nil {
				return fmt.Errorf("replay: verify: %w", err)
			}
			if !verification.Valid {
				continue
			}
			evt, err := c.Deserialize(tx.Payload())
			if err != nil {
				return fmt.Errorf("replay: transaction %s: %w", verification.Hash.Short(), err)
			}
			s.HandleEvent(verification.Hash, evt)
		}
	}
}
