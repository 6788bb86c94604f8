package workers

import (
	"context"
	"fmt"
	"ledger-chat/contract"
	"ledger-chat/domain/event"
	"log/slog"
	"time"
)

// EventFanout broadcasts projection notifications to in-process consumers.
//
// It provides best-effort fan-out with no guarantees regarding delivery,
// durability, or retries. Each sink gets a bounded amount of time per event,
// so a slow sink delays the others but never blocks the pipeline for good.
//
// Sinks registered for a space through the registry only receive
// notifications of that space; permanent sinks receive everything.
type EventFanout struct {
	log            *slog.Logger
	name           contract.WorkerName
	events         chan event.DomainEvent
	permanentSinks []contract.EventSink
	registry       contract.IRegistry
	sinkTimeout    time.Duration
}

func NewEventFanout(log *slog.Logger,
	permanentSinks []contract.EventSink,
	registry contract.IRegistry,
	events chan event.DomainEvent,
	sinkTimeout time.Duration) *EventFanout {
	return &EventFanout{
		log:            log,
		name:           "event_fanout",
		events:         events,
		permanentSinks: permanentSinks,
		registry:       registry,
		sinkTimeout:    sinkTimeout,
	}
}

func (w *EventFanout) Name() contract.WorkerName { return w.name }

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping event fanout")
			return nil
		case evt, ok := <-w.events:
			if !ok {
				w.log.Debug("Event channel closed")
				return nil
			}
			w.Fanout(ctx, evt)
		}
	}
}

// Fanout hands the event to every permanent sink, then to the sinks subscribed to its space.
func (w *EventFanout) Fanout(ctx context.Context, evt event.DomainEvent) {
	sinks := append([]contract.EventSink{}, w.permanentSinks...)
	if w.registry != nil {
		sinks = append(sinks, w.registry.GetSinksForSpace(evt.SpaceID())...)
	}
	for _, sink := range sinks {
		w.consume(ctx, sink, evt)
	}
}

func (w *EventFanout) consume(ctx context.Context, sink contract.EventSink, evt event.DomainEvent) {
	sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
	defer cancel()
	if err := sink.Consume(sinkCtx, evt); err != nil {
		w.log.Warn("Sink failed to consume event",
			"sink", fmt.Sprintf("%T", sink),
			"space", evt.SpaceID(),
			"error", err)
	}
}
