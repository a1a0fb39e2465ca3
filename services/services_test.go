package services_test

import (
	"context"
	"log/slog"
	"match-chat/domain"
	"match-chat/domain/event"
	"match-chat/repositories"
	"match-chat/services"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

// tickingClock advances one second per call so that timestamps stay ordered.
func tickingClock() services.Clock {
	var mu sync.Mutex
	now := epoch
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func logger() *slog.Logger {
	return logs.GetLoggerFromLevel(slog.LevelDebug)
}

type store struct {
	matches  *repositories.MatchRepository
	chats    *repositories.ChatRepository
	messages *repositories.MessageRepository
	users    *repositories.UserRepository
}

func newStore(t *testing.T) (store, *slog.Logger) {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	log := logger()
	return store{
		matches:  repositories.NewMatchRepository(db, log),
		chats:    repositories.NewChatRepository(db, log),
		messages: repositories.NewMessageRepository(db, log),
		users:    repositories.NewUserRepository(db, log),
	}, log
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (p *recordingPublisher) Publish(evt event.DomainEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *recordingPublisher) Events() []event.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]event.DomainEvent(nil), p.events...)
}

func (p *recordingPublisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

type offlinePresence struct {
	connected map[string]bool
}

func (p offlinePresence) IsConnected(userID string) bool { return p.connected[userID] }

func (p offlinePresence) IsRecentlyActive(context.Context, string) bool { return false }

// fixture wires the match, chat and message services on one in-memory store.
type fixture struct {
	store     store
	publisher *recordingPublisher
	matches   *services.MatchService
	chats     *services.ChatService
	messages  *services.MessageService
	presence  offlinePresence
}

func newFixture(t *testing.T, censor services.Censor) fixture {
	t.Helper()
	st, log := newStore(t)
	clock := tickingClock()
	publisher := &recordingPublisher{}
	presence := offlinePresence{connected: map[string]bool{}}
	chats := services.NewChatService(st.chats, st.matches, clock, log)
	return fixture{
		store:     st,
		publisher: publisher,
		matches:   services.NewMatchService(st.matches, st.chats, presence, publisher, services.NewIDs(), clock, log),
		chats:     chats,
		messages:  services.NewMessageService(st.messages, st.chats, chats, censor, publisher, 2000, clock, log),
		presence:  presence,
	}
}

// openChat makes a and b match mutually and returns their chat.
func (f fixture) openChat(t *testing.T, a, b string) domain.Chat {
	t.Helper()
	ctx := context.Background()
	_, err := f.matches.RecordSwipe(ctx, domain.Swipe{Actor: a, Target: b, Action: domain.Like})
	require.NoError(t, err)
	outcome, err := f.matches.RecordSwipe(ctx, domain.Swipe{Actor: b, Target: a, Action: domain.Like})
	require.NoError(t, err)
	require.Equal(t, domain.MutualMatch, outcome.Result)
	chat, err := f.chats.GetOrCreateChat(ctx, outcome.Match.ID, a)
	require.NoError(t, err)
	f.publisher.Reset()
	return chat
}
