package workers

import (
	"context"
	"fmt"
	"ledger-chat/contract"
	"ledger-chat/domain/event"
	"ledger-chat/ledger"
	"ledger-chat/projection"
	"log/slog"
)

// SpaceProjectionWorker keeps the read model of one space in sync with its ledger.
// Every run opens a fresh viewer from the root block: already handled transactions
// are skipped by the projector, so a restart after a failure is safe.
type SpaceProjectionWorker struct {
	log       *slog.Logger
	projector *projection.Projector
	source    ledger.Source
	events    chan<- event.DomainEvent
}

func NewSpaceProjectionWorker(log *slog.Logger,
	projector *projection.Projector,
	source ledger.Source,
	events chan<- event.DomainEvent) *SpaceProjectionWorker {
	return &SpaceProjectionWorker{
		log:       log.With("space", projector.SpaceID()),
		projector: projector,
		source:    source,
		events:    events,
	}
}

func (w *SpaceProjectionWorker) Name() contract.WorkerName {
	return contract.WorkerName(fmt.Sprintf("space_projection_%d", w.projector.SpaceID()))
}

func (w *SpaceProjectionWorker) Run(ctx context.Context) error {
	w.log.Debug("Projecting space from its root block")
	err := w.projector.ReadEvents(ctx, w.source.Viewer(), func(evt event.DomainEvent) {
		w.publish(ctx, evt)
	})
	if err == nil || ctx.Err() != nil {
		return nil
	}
	w.log.Error("Space projection stopped", "error", err)
	w.publish(ctx, event.ProjectionFailed{Space: w.projector.SpaceID(), Err: err})
	return err
}

// publish blocks while the channel is full so that no notification is lost,
// unless the worker is being stopped.
func (w *SpaceProjectionWorker) publish(ctx context.Context, evt event.DomainEvent) {
	select {
	case <-ctx.Done():
	case w.events <- evt:
	}
}
