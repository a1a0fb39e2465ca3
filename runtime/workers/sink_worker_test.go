package workers

import (
	"context"
	"log/slog"
	"match-chat/domain"
	"match-chat/domain/event"
	"match-chat/mocks"
	"match-chat/observability"
	"match-chat/sink"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// slowIndex takes longer to write than to delete.
type slowIndex struct {
	mu      sync.Mutex
	ops     []string
	indexed map[string]bool
}

func (i *slowIndex) Index(_ context.Context, m domain.Message) error {
	time.Sleep(20 * time.Millisecond)
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ops = append(i.ops, "index")
	i.indexed[m.ID] = true
	return nil
}

func (i *slowIndex) Delete(_ context.Context, id string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ops = append(i.ops, "delete")
	delete(i.indexed, id)
	return nil
}

func (i *slowIndex) snapshot() ([]string, map[string]bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	indexed := make(map[string]bool, len(i.indexed))
	for k, v := range i.indexed {
		indexed[k] = v
	}
	return append([]string(nil), i.ops...), indexed
}

func TestSinkWorker_DeleteFollowsSlowIndexWrite(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	registry := mocks.NewMockIRegistry(ctrl)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	index := &slowIndex{indexed: map[string]bool{}}
	worker := NewSinkWorker(log, sink.NewSearchSink(index, log), 8, observability.NewMonitor(log), time.Second)
	fanout, _ := newFanout(t, registry, worker)
	registry.EXPECT().GetSinksForRoom("chat-1", "").Return(nil).Times(2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	// Given a text message is created then deleted right away
	message := domain.Message{ID: "m1", ChatID: "chat-1", Type: domain.TextMessage, Content: "hello"}
	fanout.Fanout(ctx, event.NewMessageCreated(message))
	fanout.Fanout(ctx, event.MessageDeleted{Chat: "chat-1", MessageID: "m1"})

	// Then the delete reaches the index after the write and the message is gone
	req.Eventually(func() bool {
		ops, _ := index.snapshot()
		return len(ops) == 2
	}, time.Second, 5*time.Millisecond)
	ops, indexed := index.snapshot()
	req.Equal([]string{"index", "delete"}, ops)
	req.False(indexed["m1"])
}

func TestSinkWorker_Timeout(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	index := mocks.NewMockEventSink(ctrl)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	monitor := observability.NewMonitor(log)
	worker := NewSinkWorker(log, index, 4, monitor, 20*time.Millisecond)
	deleted := event.MessageDeleted{Chat: "chat-1", MessageID: "m1"}
	next := event.MessageDeleted{Chat: "chat-1", MessageID: "m2"}

	canceled := make(chan error, 1)
	served := make(chan struct{})
	gomock.InOrder(
		index.EXPECT().Consume(gomock.Any(), deleted).
			DoAndReturn(func(ctx context.Context, _ event.DomainEvent) error {
				<-ctx.Done()
				canceled <- ctx.Err()
				return ctx.Err()
			}),
		index.EXPECT().Consume(gomock.Any(), next).
			DoAndReturn(func(context.Context, event.DomainEvent) error {
				close(served)
				return nil
			}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	// When the sink hangs on the first event
	req.NoError(worker.Enqueue(ctx, deleted))
	req.NoError(worker.Enqueue(ctx, next))

	// Then its context expires and the queue moves on
	select {
	case err := <-canceled:
		req.ErrorIs(err, context.DeadlineExceeded)
	case <-time.After(time.Second):
		req.Fail("permanent sink was not canceled")
	}
	select {
	case <-served:
	case <-time.After(time.Second):
		req.Fail("next event was not served")
	}
	req.Equal(uint64(1), monitor.Snapshot(observability.Population{}).EventsDropped)
}
