package runtime_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"match-chat/auth"
	"match-chat/domain"
	"match-chat/domain/event"
	"match-chat/observability"
	"match-chat/repositories"
	"match-chat/runtime"
	"match-chat/runtime/workers"
	"match-chat/services"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

// fakeConn is an in-memory connection: the test writes inbound frames and reads outbound ones.
type fakeConn struct {
	inbound  chan event.Frame
	outbound chan event.Frame

	mu        sync.Mutex
	deadline  time.Time
	closed    chan struct{}
	closeOnce sync.Once
	closeCode int
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound:  make(chan event.Frame, 16),
		outbound: make(chan event.Frame, 64),
		closed:   make(chan struct{}),
	}
}

func (c *fakeConn) ReadFrame() (event.Frame, error) {
	c.mu.Lock()
	deadline := c.deadline
	c.mu.Unlock()
	var timeout <-chan time.Time
	if !deadline.IsZero() {
		timeout = time.After(time.Until(deadline))
	}
	select {
	case f := <-c.inbound:
		return f, nil
	case <-c.closed:
		return event.Frame{}, io.EOF
	case <-timeout:
		return event.Frame{}, fmt.Errorf("read deadline exceeded")
	}
}

func (c *fakeConn) WriteFrame(frame event.Frame) error {
	select {
	case <-c.closed:
		return io.ErrClosedPipe
	default:
	}
	c.outbound <- frame
	return nil
}

func (c *fakeConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deadline = t
	return nil
}

func (c *fakeConn) Close(code int, _ string) error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closeCode = code
		c.mu.Unlock()
		close(c.closed)
	})
	return nil
}

func (c *fakeConn) send(t *testing.T, id, name string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	c.inbound <- event.Frame{ID: id, Event: name, Data: raw}
}

// expect skips frames until one named name shows up.
func (c *fakeConn) expect(t *testing.T, name string) event.Frame {
	t.Helper()
	timeout := time.After(time.Second)
	for {
		select {
		case f := <-c.outbound:
			if f.Event == name {
				return f
			}
		case <-timeout:
			require.Failf(t, "frame not received", "expected %s", name)
			return event.Frame{}
		}
	}
}

// expectNone checks that no frame named name arrives for a short while.
func (c *fakeConn) expectNone(t *testing.T, name string) {
	t.Helper()
	timeout := time.After(100 * time.Millisecond)
	for {
		select {
		case f := <-c.outbound:
			require.NotEqual(t, name, f.Event)
		case <-timeout:
			return
		}
	}
}

type harness struct {
	ctx      context.Context
	gateway  *runtime.Gateway
	tokens   *auth.TokenService
	registry *runtime.Registry
	chatID   string
}

func newHarness(t *testing.T) harness {
	t.Helper()
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	matchRepo := repositories.NewMatchRepository(db, log)
	chatRepo := repositories.NewChatRepository(db, log)
	messageRepo := repositories.NewMessageRepository(db, log)
	userRepo := repositories.NewUserRepository(db, log)

	registry := runtime.NewRegistry()
	orchestrator := runtime.NewOrchestrator(log, workers.NewSupervisor(log, 0), registry,
		observability.NewMonitor(log), 2, 64, time.Second, time.Second)
	presence := services.NewPresenceService(registry, userRepo, matchRepo, orchestrator, time.Minute, services.UTCClock, log)
	chats := services.NewChatService(chatRepo, matchRepo, services.UTCClock, log)
	chats.UseRooms(registry)
	matches := services.NewMatchService(matchRepo, chatRepo, presence, orchestrator, services.NewIDs(), services.UTCClock, log)
	messages := services.NewMessageService(messageRepo, chatRepo, chats, nil, orchestrator, 2000, services.UTCClock, log)
	orchestrator.UseMessageCreator(messages)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		orchestrator.Stop()
	})
	req.NoError(orchestrator.Start(ctx))

	_, err = matches.RecordSwipe(ctx, domain.Swipe{Actor: "alice", Target: "bob", Action: domain.Like})
	req.NoError(err)
	outcome, err := matches.RecordSwipe(ctx, domain.Swipe{Actor: "bob", Target: "alice", Action: domain.Like})
	req.NoError(err)
	chat, err := chats.GetOrCreateChat(ctx, outcome.Match.ID, "alice")
	req.NoError(err)

	tokens := auth.NewTokenService("test-secret", "match-chat")
	gateway := runtime.NewGateway(log, tokens, presence, chats, messages, orchestrator, orchestrator,
		registry, 100*time.Millisecond, 16)
	return harness{ctx: ctx, gateway: gateway, tokens: tokens, registry: registry, chatID: chat.ID}
}

func (h harness) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := h.tokens.Generate(userID, time.Hour)
	require.NoError(t, err)
	return token
}

// connect opens a session for userID with a handshake credential and waits
// until it joined the chat room.
func (h harness) connect(t *testing.T, userID string) *fakeConn {
	t.Helper()
	before := len(h.registry.GetSinksForRoom(h.chatID, ""))
	conn := newFakeConn()
	go h.gateway.Serve(h.ctx, conn, h.token(t, userID))
	require.Eventually(t, func() bool {
		return len(h.registry.GetSinksForRoom(h.chatID, "")) == before+1
	}, time.Second, 5*time.Millisecond)
	return conn
}

func decodeAck(t *testing.T, frame event.Frame) map[string]any {
	t.Helper()
	var ack map[string]any
	require.NoError(t, json.Unmarshal(frame.Data, &ack))
	return ack
}

func TestGateway_SendMessage(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	alice := h.connect(t, "alice")
	bob := h.connect(t, "bob")

	// When alice says hello
	alice.send(t, "req-1", event.SendMessage, event.SendMessagePayload{ChatID: h.chatID, Content: "hello", Type: "text"})

	// Then alice gets her ack with the stored message
	ack := alice.expect(t, event.SendMessage)
	req.Equal("req-1", ack.ID)
	body := decodeAck(t, ack)
	req.Equal(true, body["success"])
	req.Equal("hello", body["message"].(map[string]any)["content"])

	// Then bob gets the message first, then his counter
	var pushed event.MessageCreated
	req.NoError(json.Unmarshal(bob.expect(t, string(event.NewMessageType)).Data, &pushed))
	req.Equal("hello", pushed.Message.Content)
	var unread event.UnreadCountUpdated
	req.NoError(json.Unmarshal(bob.expect(t, string(event.UnreadCountUpdateType)).Data, &unread))
	req.Equal(1, unread.UnreadCount)
	req.Equal(h.chatID, unread.Chat)

	// Then alice never gets a counter for her own message
	alice.expectNone(t, string(event.UnreadCountUpdateType))
}

func TestGateway_ParticipantGuard(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	_ = h.connect(t, "alice")
	eve := newFakeConn()
	go h.gateway.Serve(h.ctx, eve, h.token(t, "eve"))
	require.Eventually(t, func() bool { return h.registry.IsConnected("eve") }, time.Second, 5*time.Millisecond)

	// When eve targets a chat she is not part of
	eve.send(t, "1", event.SendMessage, event.SendMessagePayload{ChatID: h.chatID, Content: "hi", Type: "text"})
	eve.send(t, "2", event.JoinChat, event.ChatPayload{ChatID: h.chatID})

	// Then both are refused
	body := decodeAck(t, eve.expect(t, event.SendMessage))
	req.Equal(false, body["success"])
	req.Contains(body["error"], "forbidden")
	body = decodeAck(t, eve.expect(t, event.JoinChat))
	req.Equal(false, body["success"])
	req.Len(h.registry.GetSinksForRoom(h.chatID, ""), 1)
}

func TestGateway_TypingExcludesSender(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	alicePhone := h.connect(t, "alice")
	aliceLaptop := h.connect(t, "alice")
	bob := h.connect(t, "bob")

	alicePhone.send(t, "", event.Typing, event.TypingPayload{ChatID: h.chatID, IsTyping: true})

	var typing event.UserTyping
	req.NoError(json.Unmarshal(bob.expect(t, string(event.UserTypingType)).Data, &typing))
	req.Equal(event.UserTyping{UserID: "alice", Chat: h.chatID, IsTyping: true}, typing)
	aliceLaptop.expectNone(t, string(event.UserTypingType))
	alicePhone.expectNone(t, string(event.UserTypingType))
}

func TestGateway_MarkAsRead(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	alice := h.connect(t, "alice")
	bob := h.connect(t, "bob")

	alice.send(t, "1", event.SendMessage, event.SendMessagePayload{ChatID: h.chatID, Content: "ping", Type: "text"})
	var pushed event.MessageCreated
	req.NoError(json.Unmarshal(bob.expect(t, string(event.NewMessageType)).Data, &pushed))

	// When bob reads it
	bob.send(t, "2", event.MarkAsRead, event.MarkAsReadPayload{ChatID: h.chatID, MessageIDs: []string{pushed.Message.ID}})

	// Then bob gets the updated ids and alice the receipt
	body := decodeAck(t, bob.expect(t, event.MarkAsRead))
	req.Equal(true, body["success"])
	req.Equal([]any{pushed.Message.ID}, body["messageIds"])
	var read event.MessagesRead
	req.NoError(json.Unmarshal(alice.expect(t, string(event.MessagesReadType)).Data, &read))
	req.Equal("bob", read.ReadBy)
}

func TestGateway_Authentication(t *testing.T) {
	h := newHarness(t)

	t.Run("authenticate frame", func(t *testing.T) {
		req := require.New(t)
		conn := newFakeConn()
		go h.gateway.Serve(h.ctx, conn, "")
		conn.send(t, "", event.Authenticate, event.AuthenticatePayload{Token: h.token(t, "bob")})
		req.Eventually(func() bool { return h.registry.IsConnected("bob") }, time.Second, 5*time.Millisecond)
		_ = conn.Close(websocket.CloseNormalClosure, "")
		req.Eventually(func() bool { return !h.registry.IsConnected("bob") }, time.Second, 5*time.Millisecond)
	})

	cases := []struct {
		name  string
		setup func(t *testing.T, conn *fakeConn) string
	}{
		{
			name:  "invalid handshake token",
			setup: func(*testing.T, *fakeConn) string { return "not-a-jwt" },
		},
		{
			name: "first frame is not authenticate",
			setup: func(t *testing.T, conn *fakeConn) string {
				conn.send(t, "1", event.JoinChat, event.ChatPayload{ChatID: h.chatID})
				return ""
			},
		},
		{
			name:  "no frame within the timeout",
			setup: func(*testing.T, *fakeConn) string { return "" },
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)
			conn := newFakeConn()
			credential := tc.setup(t, conn)

			done := make(chan struct{})
			go func() {
				h.gateway.Serve(h.ctx, conn, credential)
				close(done)
			}()

			errFrame := conn.expect(t, event.Error)
			req.JSONEq(`{"message":"authentication failed"}`, string(errFrame.Data))
			select {
			case <-done:
			case <-time.After(time.Second):
				req.Fail("session did not end")
			}
			req.Equal(websocket.ClosePolicyViolation, conn.closeCode)
			req.Empty(h.registry.GetSinksForRoom(h.chatID, ""))
		})
	}
}
