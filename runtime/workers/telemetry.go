package workers

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	_ "github.com/shirou/gopsutil"
	"github.com/shirou/gopsutil/process"
)

// Stats is the registry view the telemetry worker samples.
type Stats interface {
	ConnectionCount() int
	RoomCount() int
}

// TelemetryWorker logs a periodic snapshot of the process and the
// registry. It observes its own PID, which never disappears, so a
// lookup failure is logged and retried on the next tick.
type TelemetryWorker struct {
	log      *slog.Logger
	stats    Stats
	interval time.Duration
}

func NewTelemetryWorker(log *slog.Logger, stats Stats, interval time.Duration) *TelemetryWorker {
	return &TelemetryWorker{log: log, stats: stats, interval: interval}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping telemetry")
			return nil
		case <-ticker.C:
			w.sample()
		}
	}
}

func (w *TelemetryWorker) sample() {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		w.log.Error("Error while retrieving process", "err", err)
		return
	}
	status, err := p.Status()
	if err != nil {
		w.log.Error("Error while finding process status", "err", err)
		return
	}
	cpu, err := p.CPUPercent()
	if err != nil {
		w.log.Error("Error while finding process cpu usage", "err", err)
		return
	}
	mem, err := p.MemoryInfo()
	if err != nil {
		w.log.Error("Error while finding process ram usage", "err", err)
		return
	}

	w.log.Info("Telemetry",
		"status", status,
		"cpu_percent", cpu,
		"rss_bytes", mem.RSS,
		"goroutines", runtime.NumGoroutine(),
		"connections", w.stats.ConnectionCount(),
		"active_rooms", w.stats.RoomCount(),
	)
}
