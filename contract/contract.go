//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"ledger-chat/domain/event"
	"ledger-chat/ledger"
	"ledger-chat/repositories"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// NamedWorker is a worker whose name depends on what it serves,
// e.g. one projection worker per space.
type NamedWorker interface {
	Worker
	Name() WorkerName
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// A NamedWorker is named by its Name method instead.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	if named, ok := w.(NamedWorker); ok && named.Name() != "" {
		return string(named.Name())
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink consumes projection notifications.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

type IRegistry interface {
	GetSinksForSpace(spaceID int64) []EventSink
	Subscribe(subscriberID string, spaceID int64, sink EventSink)
	Unsubscribe(subscriberID string, spaceID int64)
}

// IOrchestrator owns the projection of every registered space and the
// delivery of its notifications.
type IOrchestrator interface {
	EnsureSpace(title string, source ledger.Source) (repositories.Space, error)
	RegisterSpace(spaceID int64, source ledger.Source)
	Add(sinks ...EventSink)
	Subscribe(subscriberID string, spaceID int64, sink EventSink)
	Unsubscribe(subscriberID string, spaceID int64)
	Start(ctx context.Context) error
	Stop()
}
