package sink

import (
	"context"
	"ledger-chat/domain/event"
	"ledger-chat/search"
	"log/slog"
	"sync"
	"time"
)

//go:generate go run go.uber.org/mock/mockgen -source=search_sink.go -destination=../mocks/mock_search_sink.go -package=mocks

type Indexer interface {
	Index(docs ...search.Document) error
}

// SearchSink buffers projected messages and indexes them in batches.
// The flush is triggered either by reaching maxBatchSize or by flushTimeout
// elapsing after the first buffered message.
type SearchSink struct {
	mu           sync.Mutex
	timer        *time.Timer
	indexer      Indexer
	log          *slog.Logger
	docs         []search.Document
	maxBatchSize int
	flushTimeout time.Duration
}

func NewSearchSink(indexer Indexer, log *slog.Logger, maxBatchSize int, flushTimeout time.Duration) *SearchSink {
	return &SearchSink{
		indexer:      indexer,
		log:          log,
		maxBatchSize: max(maxBatchSize, 1),
		flushTimeout: flushTimeout,
	}
}

func (s *SearchSink) Consume(_ context.Context, e event.DomainEvent) error {
	projected, ok := e.(event.Projected)
	if !ok {
		return nil
	}
	message, ok := projected.Event.(event.PublicRoomMessage)
	if !ok {
		return nil
	}

	s.mu.Lock()
	s.docs = append(s.docs, search.Document{
		SpaceID:         projected.Space,
		Room:            message.RoomName.String(),
		Author:          projected.Author,
		BlockHash:       projected.BlockHash,
		TransactionHash: projected.TransactionHash,
		Timestamp:       projected.BlockTimestamp,
		Content:         message.Content.String(),
	})

	// The timer outlives the fanout context of this call
	if len(s.docs) == 1 && s.timer == nil {
		s.timer = time.AfterFunc(s.flushTimeout, func() {
			if err := s.Flush(); err != nil {
				s.log.Error("Timeout flush failed", "error", err)
			}
		})
	}

	isFull := len(s.docs) >= s.maxBatchSize
	s.mu.Unlock()

	if isFull {
		return s.Flush()
	}
	return nil
}

// Flush indexes the buffered messages. On failure the batch is dropped;
// messages are indexed again only if they are projected again.
func (s *SearchSink) Flush() error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if len(s.docs) == 0 {
		s.mu.Unlock()
		return nil
	}
	batch := s.docs
	s.docs = make([]search.Document, 0, s.maxBatchSize)
	s.mu.Unlock()

	return s.indexer.Index(batch...)
}
