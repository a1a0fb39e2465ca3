package workers

import (
	"context"
	"log/slog"
	"match-chat/contract"
	"match-chat/observability"
	"time"
)

var _ contract.Worker = (*ReporterWorker)(nil)

// ReporterWorker logs a summary of the runtime counters at a fixed interval.
type ReporterWorker struct {
	log      *slog.Logger
	snapshot func() observability.Stats
	interval time.Duration
}

func NewReporterWorker(log *slog.Logger, snapshot func() observability.Stats, interval time.Duration) *ReporterWorker {
	return &ReporterWorker{log: log, snapshot: snapshot, interval: interval}
}

// Run reports until the context is cancelled, with a last report on the way out.
func (w *ReporterWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.report()
			return ctx.Err()
		case <-ticker.C:
			w.report()
		}
	}
}

func (w *ReporterWorker) report() {
	stats := w.snapshot()
	w.log.Info("Runtime stats",
		"uptime", stats.Uptime,
		"connections", stats.Connections,
		"online", stats.OnlineUsers,
		"rooms", stats.Rooms,
		"published", stats.EventsPublished,
		"delivered", stats.EventsDelivered,
		"dropped", stats.EventsDropped,
		"rejected", stats.CommandsRejected,
		"messages", stats.MessagesCreated,
		"ram_mb", stats.AllocMemMb,
	)
}
