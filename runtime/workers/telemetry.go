package workers

import (
	"chat-relay/contract"
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// TelemetryWorker periodically logs the number of live sessions
// and the resource usage of the relay process.
type TelemetryWorker struct {
	log            *slog.Logger
	group          contract.IBroadcastGroup
	metricInterval time.Duration
}

func NewTelemetryWorker(log *slog.Logger, group contract.IBroadcastGroup, metricInterval time.Duration) *TelemetryWorker {
	return &TelemetryWorker{log: log, group: group, metricInterval: metricInterval}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping telemetry")
			return nil
		case <-ticker.C:
			w.report(proc)
		}
	}
}

func (w *TelemetryWorker) report(proc *process.Process) {
	attrs := []any{"sessions", w.group.Len()}
	if cpu, err := proc.CPUPercent(); err == nil {
		attrs = append(attrs, "cpu_percent", cpu)
	} else {
		w.log.Debug("Error while finding process cpu usage", "err", err)
	}
	if mem, err := proc.MemoryInfo(); err == nil {
		attrs = append(attrs, "rss_bytes", mem.RSS)
	} else {
		w.log.Debug("Error while finding process ram usage", "err", err)
	}
	if n, err := proc.NumThreads(); err == nil {
		attrs = append(attrs, "threads", n)
	}
	w.log.Info("Relay telemetry", attrs...)
}
