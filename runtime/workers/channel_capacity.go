package workers

import (
	"context"
	"log/slog"
	"match-chat/contract"
	"match-chat/observability"
	"reflect"
	"time"
)

var _ contract.Worker = (*ChannelCapacityWorker)(nil)

type NamedChannel struct {
	Name    string
	Channel any
}

// ChannelCapacityWorker periodically records the length and capacity of the runtime queues.
// Reading len and cap of a channel never blocks, so sampling does not slow the pipeline.
type ChannelCapacityWorker struct {
	log            *slog.Logger
	channels       []NamedChannel
	monitor        *observability.Monitor
	metricInterval time.Duration
}

func NewChannelCapacityWorker(log *slog.Logger, channels []NamedChannel,
	monitor *observability.Monitor, metricInterval time.Duration) *ChannelCapacityWorker {
	return &ChannelCapacityWorker{log: log, channels: channels, monitor: monitor, metricInterval: metricInterval}
}

func (w *ChannelCapacityWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping channel sampling")
			return nil
		case <-ticker.C:
			w.Sample()
		}
	}
}

func (w *ChannelCapacityWorker) Sample() {
	for _, nc := range w.channels {
		v := reflect.ValueOf(nc.Channel)
		if v.Kind() != reflect.Chan {
			w.log.Error("Provided object is not a channel", "name", nc.Name)
			continue
		}
		w.monitor.SetQueue(nc.Name, v.Len(), v.Cap())
	}
}
