package sink

import (
	"context"
	"fmt"
	"ledger-chat/domain/event"
	"log/slog"
	"math"
	"sync"

	"github.com/dustin/go-humanize"
)

// LogSink writes notifications to the logger. Catch-up progress is only
// logged when it crosses a new tenth, to keep replays of long ledgers readable.
type LogSink struct {
	log *slog.Logger

	mu       sync.Mutex
	progress map[int64]int
}

func NewLogSink(log *slog.Logger) *LogSink {
	return &LogSink{log: log, progress: make(map[int64]int)}
}

func (s *LogSink) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.Verifying:
		tenth := int(math.Floor(evt.Fraction * 10))
		if !s.advance(evt.Space, tenth) {
			return nil
		}
		s.log.Info("Verifying space",
			"space", evt.Space,
			"progress", fmt.Sprintf("%.0f%%", evt.Fraction*100),
			"block_time", humanize.Time(evt.BlockTimestamp))
	case event.CaughtUp:
		s.advance(evt.Space, 10)
		s.log.Info("Space caught up", "space", evt.Space)
	case event.Projected:
		s.log.Info("Event projected",
			"space", evt.Space,
			"kind", evt.Event.Kind().String(),
			"author", evt.Author.Short(),
			"transaction", evt.TransactionHash.Short(),
			"block_time", humanize.Time(evt.BlockTimestamp))
	case event.ProjectionFailed:
		s.log.Error("Space projection failed", "space", evt.Space, "error", evt.Err)
	}
	return nil
}

func (s *LogSink) advance(spaceID int64, tenth int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.progress[spaceID]
	if ok && tenth <= last {
		return false
	}
	s.progress[spaceID] = tenth
	return true
}
