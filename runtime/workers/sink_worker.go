package workers

import (
	"context"
	"log/slog"
	"match-chat/contract"
	"match-chat/domain/event"
	"match-chat/observability"
	"time"
)

var _ contract.Worker = (*SinkWorker)(nil)

// SinkWorker serves one permanent sink from its own queue, one event at a time,
// so the sink sees events in publication order (an index never receives a delete
// before the write it cancels). The queue outlives restarts of the worker.
type SinkWorker struct {
	log     *slog.Logger
	sink    contract.EventSink
	name    string
	queue   chan event.DomainEvent
	monitor *observability.Monitor
	timeout time.Duration
}

func NewSinkWorker(log *slog.Logger, sink contract.EventSink, bufferSize int,
	monitor *observability.Monitor, timeout time.Duration) *SinkWorker {
	name := contract.GetSinkName(sink)
	return &SinkWorker{
		log:     log.With("sink", name),
		sink:    sink,
		name:    name,
		queue:   make(chan event.DomainEvent, bufferSize),
		monitor: monitor,
		timeout: timeout,
	}
}

// Enqueue blocks while the queue is full. It only fails once ctx is done.
func (w *SinkWorker) Enqueue(ctx context.Context, evt event.DomainEvent) error {
	select {
	case w.queue <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *SinkWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping sink worker")
			return nil
		case evt := <-w.queue:
			w.consume(ctx, evt)
		}
	}
}

func (w *SinkWorker) consume(ctx context.Context, evt event.DomainEvent) {
	sinkCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	if err := w.sink.Consume(sinkCtx, evt); err != nil {
		w.monitor.IncrEventsDropped()
		w.log.Warn("Permanent sink failed", "event", evt.Type(), "error", err)
	}
}

// Channel exposes the queue to the capacity sampler.
func (w *SinkWorker) Channel() NamedChannel {
	return NamedChannel{Name: "sink-" + w.name, Channel: w.queue}
}
