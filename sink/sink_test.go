package sink_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"ledger-chat/domain"
	"ledger-chat/domain/event"
	"ledger-chat/mocks"
	"ledger-chat/search"
	"ledger-chat/sink"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var at = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func projectedRoom(t *testing.T, space int64, room string) event.Projected {
	name, err := domain.NewRoomName(domain.DefaultRules(), room)
	require.NoError(t, err)
	return event.Projected{Space: space, BlockTimestamp: at, Event: event.NewCreatePublicRoom(name)}
}

func projectedMessage(t *testing.T, space int64, room, content string, tx byte) event.Projected {
	rules := domain.DefaultRules()
	name, err := domain.NewRoomName(rules, room)
	require.NoError(t, err)
	message, err := domain.NewRoomMessage(rules, content)
	require.NoError(t, err)
	return event.Projected{
		Space:           space,
		BlockHash:       domain.Hash{tx},
		TransactionHash: domain.Hash{tx, tx},
		BlockTimestamp:  at.Add(time.Duration(tx) * time.Minute),
		Author:          domain.PublicKey{0xed, tx},
		Event:           event.NewPublicRoomMessage(name, message),
	}
}

func TestSearchSink_FlushOnSize(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	indexer := mocks.NewMockIndexer(ctrl)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s := sink.NewSearchSink(indexer, logger, 2, 10*time.Second)

	// Then one batch with both messages is indexed
	indexer.EXPECT().Index(gomock.Any()).
		DoAndReturn(func(docs ...search.Document) error {
			req.Len(docs, 2)
			req.Equal("lounge", docs[0].Room)
			req.Equal("hello", docs[0].Content)
			req.Equal(int64(1), docs[0].SpaceID)
			return nil
		}).Times(1)

	// When two messages and a room creation are consumed
	req.NoError(s.Consume(ctx, projectedRoom(t, 1, "lounge")))
	req.NoError(s.Consume(ctx, projectedMessage(t, 1, "lounge", "hello", 1)))
	req.NoError(s.Consume(ctx, projectedMessage(t, 1, "lounge", "again", 2)))

	// And nothing is left to flush
	req.NoError(s.Flush())
}

func TestSearchSink_FlushOnTimeout(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	indexer := mocks.NewMockIndexer(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s := sink.NewSearchSink(indexer, logger, 100, 30*time.Millisecond)

	done := make(chan struct{})
	indexer.EXPECT().Index(gomock.Any()).
		DoAndReturn(func(docs ...search.Document) error {
			req.Len(docs, 1)
			close(done)
			return nil
		}).Times(1)

	// When a single message is consumed with a context canceled right after
	ctx, cancel := context.WithCancel(context.Background())
	req.NoError(s.Consume(ctx, projectedMessage(t, 1, "lounge", "hello", 1)))
	cancel()

	// Then the timer still indexes it
	select {
	case <-done:
	case <-time.After(time.Second):
		req.Fail("Timeout flush did not happen")
	}
}

func TestSearchSink_IndexError(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	indexer := mocks.NewMockIndexer(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := sink.NewSearchSink(indexer, logger, 1, time.Second)

	boom := errors.New("boom")
	indexer.EXPECT().Index(gomock.Any()).Return(boom).Times(1)

	err := s.Consume(context.Background(), projectedMessage(t, 1, "lounge", "hello", 1))
	req.ErrorIs(err, boom)
}

func TestLogSink_ThrottlesProgress(t *testing.T) {
	req := require.New(t)
	var out bytes.Buffer
	logSink := sink.NewLogSink(slog.New(slog.NewTextHandler(&out, nil)))
	ctx := context.Background()

	// When progress is reported several times within the same tenth
	req.NoError(logSink.Consume(ctx, event.Verifying{Space: 1, Fraction: 0.11, BlockTimestamp: at}))
	req.NoError(logSink.Consume(ctx, event.Verifying{Space: 1, Fraction: 0.15, BlockTimestamp: at}))
	req.NoError(logSink.Consume(ctx, event.Verifying{Space: 1, Fraction: 0.52, BlockTimestamp: at}))
	req.NoError(logSink.Consume(ctx, event.CaughtUp{Space: 1}))
	req.NoError(logSink.Consume(ctx, event.ProjectionFailed{Space: 1, Err: errors.New("boom")}))
	req.NoError(logSink.Consume(ctx, projectedMessage(t, 1, "lounge", "hello", 1)))

	// Then one line per tenth is written
	logs := out.String()
	req.Equal(2, bytes.Count(out.Bytes(), []byte("Verifying space")))
	req.Contains(logs, "Space caught up")
	req.Contains(logs, "Space projection failed")
	req.Contains(logs, "kind=public_room_message")
}
