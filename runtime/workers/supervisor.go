package workers

import (
	"context"
	"fmt"
	"ledger-chat/contract"
	"ledger-chat/errors"
	"log/slog"
	"sync"
	"time"
)

// maxBackoffFactor caps the restart delay at restartInterval * maxBackoffFactor.
const maxBackoffFactor = 32

// Supervisor owns the context of its workers.
// Each worker runs in its own goroutine, a panic or an error restarts it after
// a growing delay, a nil return ends it for good.
// Run returns once every worker is done or the parent context is canceled.
type Supervisor struct {
	mu              sync.Mutex
	cancel          context.CancelFunc
	wg              *sync.WaitGroup
	log             *slog.Logger
	workers         []contract.Worker
	restarts        map[string]int
	restartInterval time.Duration
}

func NewSupervisor(log *slog.Logger, restartInterval time.Duration) *Supervisor {
	return &Supervisor{
		wg:              &sync.WaitGroup{},
		log:             log,
		restarts:        make(map[string]int),
		restartInterval: restartInterval,
	}
}

// Run starts every registered worker and blocks until all of them are done.
// If the parent cancels, the workers stop. Calling Stop only cancels our children.
func (s *Supervisor) Run(ctx context.Context) {
	supervisedCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	for _, worker := range s.workers {
		s.Start(supervisedCtx, worker)
	}
	s.wg.Wait()
}

func (s *Supervisor) Add(worker ...contract.Worker) contract.ISupervisor {
	s.workers = append(s.workers, worker...)
	return s
}

// Start runs a worker under supervision, outside of the registered list.
func (s *Supervisor) Start(ctx context.Context, worker contract.Worker) {
	s.wg.Add(1)
	name := contract.GetWorkerName(worker)
	s.log.Debug("Starting worker", "name", name)

	go func() {
		defer s.wg.Done()
		s.supervise(ctx, worker, name)
	}()
}

func (s *Supervisor) supervise(ctx context.Context, worker contract.Worker, name string) {
	delay := s.restartInterval
	for ctx.Err() == nil {
		started := time.Now()
		err := runGuarded(ctx, worker, s.log, name)
		if err == nil {
			s.log.Info("Worker finished", "name", name)
			return
		}
		if ctx.Err() != nil {
			break
		}

		// A run that outlived the delay was healthy, start the backoff over
		if time.Since(started) > delay {
			delay = s.restartInterval
		}
		restarts := s.countRestart(name)
		s.log.Warn("Worker crashed, restarting", "name", name, "error", err, "restarts", restarts, "delay", delay)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay = min(delay*2, s.restartInterval*maxBackoffFactor)
	}
	s.log.Info("Worker stopped (context canceled)", "name", name)
}

// runGuarded turns a panic of the worker into errors.ErrWorkerPanic.
func runGuarded(ctx context.Context, worker contract.Worker, log *slog.Logger, name string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Worker panicked", "name", name, "panic", fmt.Sprint(r))
			err = errors.ErrWorkerPanic
		}
	}()
	return worker.Run(ctx)
}

func (s *Supervisor) countRestart(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restarts[name]++
	return s.restarts[name]
}

// Restarts tells how many times the named worker was restarted.
func (s *Supervisor) Restarts(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restarts[name]
}

// Stop cancels the workers; Run returns once they all noticed.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}
