// Package runtime routes realtime traffic: the connection registry, the gateway
// sessions and the orchestrator feeding the shard and fanout workers.
// It holds no business rule, the services do.
package runtime

import (
	"context"
	"embed"
	"fmt"
	"hash/fnv"
	"log/slog"
	"match-chat/contract"
	"match-chat/domain"
	"match-chat/domain/event"
	"match-chat/errors"
	"match-chat/moderation"
	"match-chat/observability"
	"match-chat/runtime/workers"
	"strings"
	"sync"
	"time"
)

//go:embed censored/*
var censoredFolder embed.FS

var _ contract.IOrchestrator = (*Orchestrator)(nil)

type Orchestrator struct {
	mu             sync.Mutex
	log            *slog.Logger
	supervisor     contract.ISupervisor
	registry       *Registry
	monitor        *observability.Monitor
	messages       workers.MessageCreator
	shards         []chan domain.Command
	events         chan event.DomainEvent
	permanentSinks []contract.EventSink
	bufferSize     int
	sinkTimeout    time.Duration
	metricInterval time.Duration
	started        bool
	done           chan struct{}
	stopOnce       sync.Once
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor, registry *Registry,
	monitor *observability.Monitor, numShards, bufferSize int,
	sinkTimeout, metricInterval time.Duration) *Orchestrator {
	if numShards <= 0 {
		numShards = 1
	}
	shards := make([]chan domain.Command, numShards)
	for i := range shards {
		shards[i] = make(chan domain.Command, bufferSize)
	}
	return &Orchestrator{
		log:            log,
		supervisor:     supervisor,
		registry:       registry,
		monitor:        monitor,
		shards:         shards,
		events:         make(chan event.DomainEvent, bufferSize),
		bufferSize:     bufferSize,
		sinkTimeout:    sinkTimeout,
		metricInterval: metricInterval,
		done:           make(chan struct{}),
	}
}

// UseMessageCreator binds the service the shards append messages with.
// It must be called before Start; the service itself publishes through the orchestrator.
func (o *Orchestrator) UseMessageCreator(messages workers.MessageCreator) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = messages
}

// RegisterSinks adds sinks receiving every event, whatever its audience.
func (o *Orchestrator) RegisterSinks(sinks ...contract.EventSink) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.permanentSinks = append(o.permanentSinks, sinks...)
}

// Publish queues an event for the fanout. It blocks while the queue is full
// so that events are never reordered, and drops the event once stopped.
func (o *Orchestrator) Publish(evt event.DomainEvent) {
	select {
	case o.events <- evt:
		o.monitor.IncrEventsPublished()
	case <-o.done:
		o.log.Debug("Orchestrator stopped, event dropped", "event", evt.Type())
	}
}

// Dispatch routes a command to the shard owning its chat.
// A full shard rejects the command instead of blocking the caller.
func (o *Orchestrator) Dispatch(ctx context.Context, cmd domain.Command) error {
	shard := shardFor(cmd.ChatKey(), len(o.shards))
	select {
	case o.shards[shard] <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		o.monitor.IncrCommandsRejected()
		o.log.Warn("Shard command channel full, rejecting command", "shard", shard, "chat_id", cmd.ChatKey())
		return fmt.Errorf("%w: shard %d", errors.ErrCommandRejected, shard)
	}
}

func shardFor(chatID string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(chatID))
	return int(h.Sum32() % uint32(n))
}

// SubmitMessage sends a draft through the ordered path of its chat and waits for the stored message.
func SubmitMessage(ctx context.Context, dispatcher contract.CommandDispatcher, draft domain.Draft) (domain.Message, error) {
	cmd := domain.NewSendMessageCommand(draft)
	if err := dispatcher.Dispatch(ctx, cmd); err != nil {
		return domain.Message{}, err
	}
	select {
	case res := <-cmd.Reply:
		return res.Message, res.Err
	case <-ctx.Done():
		return domain.Message{}, ctx.Err()
	}
}

// reportEvery spaces the stats log out relative to the sampling interval.
const reportEvery = 6

// Start registers the shard, permanent sink, fanout and sampling workers and runs them in the background.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return fmt.Errorf("%w: orchestrator already started", errors.ErrInvalidState)
	}
	if o.messages == nil {
		o.mu.Unlock()
		return fmt.Errorf("%w: no message creator bound", errors.ErrInvalidState)
	}
	o.started = true

	channels := []workers.NamedChannel{{Name: "events", Channel: o.events}}
	for i, commands := range o.shards {
		o.supervisor.Add(workers.NewChatShardWorker(i, commands, o.messages, o.monitor, o.log))
		channels = append(channels, workers.NamedChannel{Name: fmt.Sprintf("shard-%d", i), Channel: commands})
	}
	sinkWorkers := make([]*workers.SinkWorker, 0, len(o.permanentSinks))
	for _, s := range o.permanentSinks {
		w := workers.NewSinkWorker(o.log, s, o.bufferSize, o.monitor, o.sinkTimeout)
		o.supervisor.Add(w)
		sinkWorkers = append(sinkWorkers, w)
		channels = append(channels, w.Channel())
	}
	o.supervisor.Add(
		workers.NewEventFanout(o.log, o.registry, o.events, o.monitor, sinkWorkers...),
		workers.NewChannelCapacityWorker(o.log, channels, o.monitor, o.metricInterval),
		workers.NewHealthMonitoringWorker(o.log, o.monitor, o.metricInterval),
		workers.NewReporterWorker(o.log, o.Stats, o.metricInterval*reportEvery),
	)
	o.mu.Unlock()

	o.log.Info("Starting orchestrator and all supervised workers", "shards", len(o.shards))
	go o.supervisor.Run(ctx)
	return nil
}

// Stop cancels the supervised workers. Events published afterwards are dropped.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.stopOnce.Do(func() { close(o.done) })
	o.supervisor.Stop()
}

// Stats joins the registry population with the runtime counters.
func (o *Orchestrator) Stats() observability.Stats {
	return o.monitor.Snapshot(o.registry.Population())
}

// LoadModerator builds the censor from the embedded word lists.
func LoadModerator(charReplacement rune, log *slog.Logger) (*moderation.Moderator, error) {
	data, err := NewCensoredLoader(censoredFolder).LoadAll("censored")
	if err != nil {
		return nil, err
	}
	log.Info(fmt.Sprintf("%d censored files loaded [%s]", len(data.Languages), strings.Join(data.Languages, ",")))
	log.Info(fmt.Sprintf("%d unique censored words loaded", len(data.Words)))
	return moderation.NewModerator(data.Words, charReplacement, log)
}
