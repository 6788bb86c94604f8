package runtime

import (
	"context"
	"embed"
	"fmt"
	"ledger-chat/codec"
	"ledger-chat/contract"
	"ledger-chat/domain/event"
	"ledger-chat/errors"
	"ledger-chat/ledger"
	"ledger-chat/moderation"
	"ledger-chat/observability"
	"ledger-chat/projection"
	"ledger-chat/repositories"
	"ledger-chat/runtime/workers"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

//go:embed censored/*
var censoredFolder embed.FS

var _ contract.IOrchestrator = (*Orchestrator)(nil)

type OrchestratorConfig struct {
	BufferSize        int
	SinkTimeout       time.Duration
	PollInterval      time.Duration
	Follow            bool
	HeartbeatInterval time.Duration
}

type Orchestrator struct {
	mu             sync.Mutex
	log            *slog.Logger
	supervisor     contract.ISupervisor
	registry       contract.IRegistry
	store          *repositories.Store
	codec          *codec.Codec
	counters       *observability.Counters
	spaces         map[int64]ledger.Source
	permanentSinks []contract.EventSink
	events         chan event.DomainEvent
	config         OrchestratorConfig
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor,
	registry contract.IRegistry, store *repositories.Store, codec *codec.Codec,
	config OrchestratorConfig) *Orchestrator {
	return &Orchestrator{
		log:        log,
		supervisor: supervisor,
		registry:   registry,
		store:      store,
		codec:      codec,
		counters:   observability.NewCounters(log),
		spaces:     make(map[int64]ledger.Source),
		events:     make(chan event.DomainEvent, max(config.BufferSize, 1)),
		config:     config,
	}
}

// EnsureSpace returns the space rooted at the root block of source, creating it
// on first sight, and registers it for projection.
func (o *Orchestrator) EnsureSpace(title string, source ledger.Source) (repositories.Space, error) {
	root, err := source.RootBlock()
	if err != nil {
		return repositories.Space{}, fmt.Errorf("read root block: %w", err)
	}
	space, found, err := o.store.FindSpace(root.Hash())
	if err != nil {
		return repositories.Space{}, err
	}
	if !found {
		space, err = o.store.CreateSpace(repositories.SpaceInfo{
			Title:     title,
			RootBlock: root.Hash(),
			Author:    root.Author(),
		})
		if err != nil {
			return repositories.Space{}, err
		}
		o.log.Info("Space created", "space", space.ID(), "root_block", root.Hash().Short())
	}
	o.RegisterSpace(space.ID(), source)
	return space, nil
}

// RegisterSpace schedules the projection of a space when the orchestrator starts.
func (o *Orchestrator) RegisterSpace(spaceID int64, source ledger.Source) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.spaces[spaceID]; ok {
		o.log.Info(fmt.Sprintf("Space %d already registered", spaceID))
		return
	}
	o.spaces[spaceID] = source
}

// Add registers sinks receiving the notifications of every space.
func (o *Orchestrator) Add(sinks ...contract.EventSink) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.permanentSinks = append(o.permanentSinks, sinks...)
}

// Subscribe registers a sink receiving the notifications of one space only.
func (o *Orchestrator) Subscribe(subscriberID string, spaceID int64, sink contract.EventSink) {
	o.registry.Subscribe(subscriberID, spaceID, sink)
}

func (o *Orchestrator) Unsubscribe(subscriberID string, spaceID int64) {
	o.registry.Unsubscribe(subscriberID, spaceID)
}

func (o *Orchestrator) Counters() *observability.Counters { return o.counters }

// Start builds one projection worker per registered space, the fanout and
// the heartbeat, then blocks while the supervisor runs them.
func (o *Orchestrator) Start(ctx context.Context) error {
	runID := uuid.NewString()
	log := o.log.With("run", runID)

	o.mu.Lock()
	if len(o.spaces) == 0 {
		o.mu.Unlock()
		return errors.ErrNoSpaceRegistered
	}
	spaceWorkers := o.prepareSpaceWorkers(log)
	if !o.config.Follow {
		spaceWorkers = o.stopWhenCaughtUp(ctx, log, spaceWorkers)
	}
	sinks := append([]contract.EventSink{o.counters}, o.permanentSinks...)
	o.supervisor.Add(spaceWorkers...)
	o.supervisor.Add(workers.NewEventFanout(log, sinks, o.registry, o.events, o.config.SinkTimeout))
	if o.config.HeartbeatInterval > 0 {
		o.supervisor.Add(
			workers.NewHeartbeatWorker(log, o.counters, o.config.HeartbeatInterval),
			workers.NewChannelCapacityWorker(log,
				[]workers.NamedChannel{{Name: "notifications", Channel: o.events}},
				o.config.HeartbeatInterval),
		)
	}
	o.mu.Unlock()

	log.Info("Starting orchestrator and all supervised workers",
		"spaces", len(spaceWorkers), "sinks", len(sinks), "follow", o.config.Follow)
	o.supervisor.Run(ctx)
	return nil
}

func (o *Orchestrator) prepareSpaceWorkers(log *slog.Logger) []contract.Worker {
	var opts []projection.Option
	if o.config.Follow {
		opts = append(opts, projection.WithFollow(o.config.PollInterval))
	}
	ids := lo.Keys(o.spaces)
	return lo.Map(ids, func(spaceID int64, _ int) contract.Worker {
		projector := projection.NewProjector(log, o.store, o.codec, spaceID, opts...)
		return workers.NewSpaceProjectionWorker(log, projector, o.spaces[spaceID], o.events)
	})
}

// stopWhenCaughtUp stops the supervisor once every space projection returned
// successfully and the pending notifications were handed to the fanout.
func (o *Orchestrator) stopWhenCaughtUp(ctx context.Context, log *slog.Logger, spaceWorkers []contract.Worker) []contract.Worker {
	var wg sync.WaitGroup
	wg.Add(len(spaceWorkers))
	allDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(allDone)
	}()
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-allDone:
		}
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for len(o.events) > 0 {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
		log.Info("Every space caught up, stopping")
		o.supervisor.Stop()
	}()
	return lo.Map(spaceWorkers, func(w contract.Worker, _ int) contract.Worker {
		return &oneShotWorker{Worker: w, done: wg.Done}
	})
}

// oneShotWorker reports the first successful run of the wrapped worker.
type oneShotWorker struct {
	contract.Worker
	once sync.Once
	done func()
}

func (w *oneShotWorker) Name() contract.WorkerName {
	return contract.WorkerName(contract.GetWorkerName(w.Worker))
}

func (w *oneShotWorker) Run(ctx context.Context) error {
	err := w.Worker.Run(ctx)
	if err == nil {
		w.once.Do(w.done)
	}
	return err
}

// Stop cancels the supervised context; workers stop at their next blocking point.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
}

// NewModerator loads the embedded censored dictionaries, merges the extra
// words and builds the Aho-Corasick automaton.
func NewModerator(log *slog.Logger, charReplacement rune, extraWords []string) (*moderation.Moderator, error) {
	dictionaries, err := LoadDictionaries(censoredFolder, "censored")
	if err != nil {
		return nil, err
	}
	words := lo.Uniq(append(dictionaries.Words(), lo.Compact(extraWords)...))

	log.Info(fmt.Sprintf("%d censored files loaded [%s]",
		len(dictionaries), strings.Join(dictionaries.Languages(), ",")))
	log.Info(fmt.Sprintf("%d unique censored words loaded", len(words)))

	return moderation.NewModerator(words, charReplacement, log)
}
