package workers

import (
	"context"
	"log/slog"
	"reflect"
	"time"
)

type NamedChannel struct {
	Name    string
	Channel any
}

// ChannelCapacityWorker periodically reports the length and capacity of channels.
// Reading len(channel) and cap(channel) is non-blocking, so this won't interfere
// with other goroutines. A channel above the warning ratio is logged as a warning.
type ChannelCapacityWorker struct {
	log            *slog.Logger
	channels       []NamedChannel
	metricInterval time.Duration
	warnRatio      float64
}

func NewChannelCapacityWorker(log *slog.Logger, channels []NamedChannel, metricInterval time.Duration) *ChannelCapacityWorker {
	return &ChannelCapacityWorker{log: log, channels: channels, metricInterval: metricInterval, warnRatio: 0.8}
}

func (w *ChannelCapacityWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for _, nc := range w.channels {
				w.report(nc)
			}
		}
	}
}

func (w *ChannelCapacityWorker) report(nc NamedChannel) {
	v := reflect.ValueOf(nc.Channel)
	if v.Kind() != reflect.Chan {
		w.log.Error("Provided object is not a channel", "name", nc.Name)
		return
	}
	capacity, length := v.Cap(), v.Len()
	if capacity > 0 && float64(length)/float64(capacity) >= w.warnRatio {
		w.log.Warn("Channel almost full", "name", nc.Name, "length", length, "capacity", capacity)
		return
	}
	w.log.Debug("Channel capacity", "name", nc.Name, "length", length, "capacity", capacity)
}
