package workers

import (
	"context"
	"log/slog"
	"match-chat/contract"
	"match-chat/domain/event"
	"match-chat/observability"
)

var _ contract.Worker = (*EventFanout)(nil)

// EventFanout delivers published events to the connections they target.
//
// Room events go to every connection joined to the chat, minus the connections
// of the excluded user. User events go to every connection of their recipients.
// Connection sinks never block, so they are served inline and in publication order.
// Permanent sinks (search index) each get the event queued on their own SinkWorker.
//
// There is a single EventFanout per process: it is the only reader of events.
type EventFanout struct {
	log            *slog.Logger
	registry       contract.IRegistry
	events         <-chan event.DomainEvent
	permanentSinks []*SinkWorker
	monitor        *observability.Monitor
}

func NewEventFanout(log *slog.Logger, registry contract.IRegistry, events <-chan event.DomainEvent,
	monitor *observability.Monitor, permanentSinks ...*SinkWorker) *EventFanout {
	return &EventFanout{
		log:            log,
		registry:       registry,
		events:         events,
		permanentSinks: permanentSinks,
		monitor:        monitor,
	}
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping event fanout")
			return nil
		case evt, ok := <-w.events:
			if !ok {
				w.log.Debug("Event channel is closed")
				return nil
			}
			w.Fanout(ctx, evt)
		}
	}
}

// Fanout hands one event to every sink it targets.
func (w *EventFanout) Fanout(ctx context.Context, evt event.DomainEvent) {
	for _, sink := range w.targets(evt) {
		if err := sink.Consume(ctx, evt); err != nil {
			w.monitor.IncrEventsDropped()
			w.log.Debug("Event dropped", "event", evt.Type(), "error", err)
			continue
		}
		w.monitor.IncrEventsDelivered()
	}

	for _, sink := range w.permanentSinks {
		if err := sink.Enqueue(ctx, evt); err != nil {
			w.monitor.IncrEventsDropped()
			w.log.Debug("Event not queued for permanent sink", "sink", sink.name, "event", evt.Type(), "error", err)
		}
	}
}

func (w *EventFanout) targets(evt event.DomainEvent) []contract.EventSink {
	switch e := evt.(type) {
	case event.RoomEvent:
		return w.registry.GetSinksForRoom(e.ChatID(), e.ExcludedUser())
	case event.UserEvent:
		return w.registry.GetSinksForUsers(e.Recipients()...)
	default:
		w.log.Debug("Event without audience", "event", evt.Type())
		return nil
	}
}
