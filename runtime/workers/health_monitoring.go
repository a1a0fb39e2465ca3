package workers

import (
	"context"
	"log/slog"
	"match-chat/contract"
	"match-chat/observability"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

var _ contract.Worker = (*HealthMonitoringWorker)(nil)

// HealthMonitoringWorker samples the cpu and memory usage of the server process.
type HealthMonitoringWorker struct {
	log            *slog.Logger
	monitor        *observability.Monitor
	metricInterval time.Duration
	pid            int32
}

func NewHealthMonitoringWorker(log *slog.Logger, monitor *observability.Monitor, metricInterval time.Duration) *HealthMonitoringWorker {
	return &HealthMonitoringWorker{
		log:            log,
		monitor:        monitor,
		metricInterval: metricInterval,
		pid:            int32(os.Getpid()),
	}
}

func (w *HealthMonitoringWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(w.pid)
	if err != nil {
		return err
	}
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping health sampling")
			return nil
		case <-ticker.C:
			w.sample(p)
		}
	}
}

func (w *HealthMonitoringWorker) sample(p *process.Process) {
	stats := observability.ProcessStats{PID: w.pid, Status: "running", SampledAt: time.Now().UTC()}
	if running, err := p.IsRunning(); err == nil && !running {
		stats.Status = "stopped"
	}
	cpu, err := p.CPUPercent()
	if err != nil {
		w.log.Debug("Error while finding process cpu usage", "error", err)
	}
	ram, err := p.MemoryPercent()
	if err != nil {
		w.log.Debug("Error while finding process ram usage", "error", err)
	}
	stats.CPUPercent = cpu
	stats.RAMPercent = ram
	w.monitor.SetProcess(stats)
}
