package event

import (
	"ledger-chat/domain"
	"time"
)

// DomainEvent is a notification emitted by a space projection.
type DomainEvent interface {
	SpaceID() int64
}

// Verifying reports the catch-up over transactions that were already projected
// during a previous run. Fraction grows from 0 to 1.
type Verifying struct {
	Space          int64
	Fraction       float64
	BlockTimestamp time.Time
}

func (e Verifying) SpaceID() int64 { return e.Space }

// CaughtUp is emitted once per run, when the projection reaches the first
// transaction it has never seen, or the end of the ledger.
type CaughtUp struct {
	Space int64
	At    time.Time
}

func (e CaughtUp) SpaceID() int64 { return e.Space }

// Projected is emitted for every event newly written to the read model.
type Projected struct {
	Space           int64
	BlockHash       domain.Hash
	BlockTimestamp  time.Time
	TransactionHash domain.Hash
	Author          domain.PublicKey
	Event           Event
}

func (e Projected) SpaceID() int64 { return e.Space }

// ProjectionFailed is emitted when a run stops on a fatal error.
type ProjectionFailed struct {
	Space int64
	Err   error
}

func (e ProjectionFailed) SpaceID() int64 { return e.Space }
