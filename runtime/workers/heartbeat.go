package workers

import (
	"context"
	"ledger-chat/observability"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/process"
)

// HeartbeatWorker periodically logs the process health and the projection counters.
type HeartbeatWorker struct {
	log      *slog.Logger
	counters *observability.Counters
	interval time.Duration
}

func NewHeartbeatWorker(log *slog.Logger, counters *observability.Counters, interval time.Duration) *HeartbeatWorker {
	return &HeartbeatWorker{log: log, counters: counters, interval: interval}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.beat(p)
		}
	}
}

func (w *HeartbeatWorker) beat(p *process.Process) {
	snapshot := w.counters.Snapshot()
	attrs := []any{
		"verified", snapshot.Verified,
		"projected", snapshot.Projected,
		"caught_up_spaces", snapshot.CaughtUpSpaces,
		"failures", snapshot.Failures,
	}
	if !snapshot.LastProjected.IsZero() {
		attrs = append(attrs, "last_projected", humanize.Time(snapshot.LastProjected))
	}

	rss, cpu, status, err := selfStats(p)
	if err != nil {
		w.log.Warn("Failed to collect self stats", "error", err)
	} else {
		attrs = append(attrs, "rss", humanize.Bytes(rss), "cpu_percent", cpu, "status", status)
	}
	w.log.Info("Heartbeat", attrs...)
}

// selfStats retrieves memory, CPU and OS status of the given process.
func selfStats(p *process.Process) (uint64, float64, string, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, "", err
	}

	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, "", err
	}

	status, err := p.Status()
	if err != nil {
		return 0, 0, "", err
	}
	return memInfo.RSS, cpuPercent, status, nil
}
