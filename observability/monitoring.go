// Package observability keeps the runtime counters exposed on /health.
package observability

import (
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Population is the size of the connection registry.
type Population struct {
	Connections int `json:"connections"`
	OnlineUsers int `json:"onlineUsers"`
	Rooms       int `json:"rooms"`
}

type QueueStats struct {
	Name     string `json:"name"`
	Length   int    `json:"length"`
	Capacity int    `json:"capacity"`
}

// ProcessStats is sampled by the health monitoring worker.
type ProcessStats struct {
	PID        int32     `json:"pid"`
	Status     string    `json:"status"`
	CPUPercent float64   `json:"cpuPercent"`
	RAMPercent float32   `json:"ramPercent"`
	SampledAt  time.Time `json:"sampledAt"`
}

type Stats struct {
	Population
	EventsPublished  uint64       `json:"eventsPublished"`
	EventsDelivered  uint64       `json:"eventsDelivered"`
	EventsDropped    uint64       `json:"eventsDropped"`
	CommandsRejected uint64       `json:"commandsRejected"`
	MessagesCreated  uint64       `json:"messagesCreated"`
	Queues           []QueueStats `json:"queues"`
	Process          ProcessStats `json:"process"`
	AllocMemMb       uint64       `json:"allocMemMb"`
	NumGC            uint32       `json:"numGc"`
	Goroutines       int          `json:"goroutines"`
	Uptime           string       `json:"uptime"`
}

// Monitor aggregates counters from the fanout, the shards and the sampling workers.
// It is safe for concurrent use.
type Monitor struct {
	log       *slog.Logger
	startedAt time.Time

	eventsPublished  atomic.Uint64
	eventsDelivered  atomic.Uint64
	eventsDropped    atomic.Uint64
	commandsRejected atomic.Uint64
	messagesCreated  atomic.Uint64

	mu      sync.RWMutex
	queues  map[string]QueueStats
	process ProcessStats
}

func NewMonitor(log *slog.Logger) *Monitor {
	return &Monitor{log: log, startedAt: time.Now(), queues: make(map[string]QueueStats)}
}

func (m *Monitor) IncrEventsPublished()  { m.eventsPublished.Add(1) }
func (m *Monitor) IncrEventsDelivered()  { m.eventsDelivered.Add(1) }
func (m *Monitor) IncrEventsDropped()    { m.eventsDropped.Add(1) }
func (m *Monitor) IncrCommandsRejected() { m.commandsRejected.Add(1) }
func (m *Monitor) IncrMessagesCreated()  { m.messagesCreated.Add(1) }

func (m *Monitor) SetQueue(name string, length, capacity int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queues[name] = QueueStats{Name: name, Length: length, Capacity: capacity}
}

func (m *Monitor) SetProcess(stats ProcessStats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.process = stats
}

// Snapshot reads every counter. The registry population is passed in by the caller.
func (m *Monitor) Snapshot(population Population) Stats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	m.mu.RLock()
	queues := make([]QueueStats, 0, len(m.queues))
	for _, q := range m.queues {
		queues = append(queues, q)
	}
	process := m.process
	m.mu.RUnlock()
	sort.Slice(queues, func(i, j int) bool { return queues[i].Name < queues[j].Name })

	return Stats{
		Population:       population,
		EventsPublished:  m.eventsPublished.Load(),
		EventsDelivered:  m.eventsDelivered.Load(),
		EventsDropped:    m.eventsDropped.Load(),
		CommandsRejected: m.commandsRejected.Load(),
		MessagesCreated:  m.messagesCreated.Load(),
		Queues:           queues,
		Process:          process,
		AllocMemMb:       mem.Alloc / 1024 / 1024,
		NumGC:            mem.NumGC,
		Goroutines:       runtime.NumGoroutine(),
		Uptime:           time.Since(m.startedAt).Truncate(time.Second).String(),
	}
}
