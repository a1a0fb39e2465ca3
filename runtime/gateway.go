package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"match-chat/auth"
	"match-chat/contract"
	"match-chat/domain"
	"match-chat/domain/event"
	"match-chat/errors"
	"match-chat/services"
	"match-chat/sink"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const handlerTimeout = 10 * time.Second

// Conn is one realtime connection as seen by the gateway.
// WriteFrame must be safe for concurrent use: acks and pushed events share it.
type Conn interface {
	ReadFrame() (event.Frame, error)
	WriteFrame(frame event.Frame) error
	SetReadDeadline(t time.Time) error
	Close(code int, reason string) error
}

// TokenValidator resolves a bearer credential to its claims.
type TokenValidator interface {
	Validate(raw string) (auth.Claims, error)
}

// ChatGuard answers the participant question asked before every chat-scoped event.
type ChatGuard interface {
	IsParticipant(ctx context.Context, userID, chatID string) (bool, error)
	ListUserChatIDs(ctx context.Context, userID string) ([]string, error)
}

// ReadMarker is the part of the message service the gateway needs besides sending.
type ReadMarker interface {
	MarkAsRead(ctx context.Context, chatID, userID string, messageIDs []string) ([]string, error)
}

// Gateway runs the realtime sessions: authentication, room membership and event handlers.
type Gateway struct {
	log            *slog.Logger
	tokens         TokenValidator
	presence       services.IPresenceService
	chats          ChatGuard
	reads          ReadMarker
	dispatcher     contract.CommandDispatcher
	publisher      contract.EventPublisher
	registry       contract.IRegistry
	authTimeout    time.Duration
	connBufferSize int
}

func NewGateway(log *slog.Logger, tokens TokenValidator, presence services.IPresenceService,
	chats ChatGuard, reads ReadMarker, dispatcher contract.CommandDispatcher,
	publisher contract.EventPublisher, registry contract.IRegistry,
	authTimeout time.Duration, connBufferSize int) *Gateway {
	return &Gateway{
		log:            log,
		tokens:         tokens,
		presence:       presence,
		chats:          chats,
		reads:          reads,
		dispatcher:     dispatcher,
		publisher:      publisher,
		registry:       registry,
		authTimeout:    authTimeout,
		connBufferSize: connBufferSize,
	}
}

// Session is the server side of one connection.
type Session struct {
	g      *Gateway
	connID string
	userID string
	state  atomic.Int32
	sink   *sink.ConnectionSink
	log    *slog.Logger
}

func (g *Gateway) newSession() *Session {
	connID := uuid.NewString()
	return &Session{
		g:      g,
		connID: connID,
		sink:   sink.NewConnectionSink(connID, g.connBufferSize),
		log:    g.log.With("conn_id", connID),
	}
}

func (s *Session) State() domain.SessionState { return domain.SessionState(s.state.Load()) }

func (s *Session) transition(to domain.SessionState) bool {
	from := s.State()
	if !from.CanTransition(to) {
		return false
	}
	return s.state.CompareAndSwap(int32(from), int32(to))
}

// Serve runs a connection until it closes. credential is the token found at
// handshake time (query or header); when empty, the first frame must be an
// authenticate frame received within the auth timeout.
func (g *Gateway) Serve(ctx context.Context, conn Conn, credential string) {
	s := g.newSession()
	s.transition(domain.Authenticating)

	if err := s.authenticate(ctx, conn, credential); err != nil {
		s.log.Debug("Authentication failed", "error", err)
		_ = conn.WriteFrame(event.NewErrorFrame("authentication failed"))
		_ = conn.Close(websocket.ClosePolicyViolation, "authentication failed")
		s.transition(domain.Closed)
		return
	}

	var writer sync.WaitGroup
	writer.Add(1)
	go func() {
		defer writer.Done()
		s.writeLoop(ctx, conn)
	}()
	defer func() {
		s.sink.Close()
		writer.Wait()
		s.close(conn)
	}()

	for {
		frame, err := conn.ReadFrame()
		if err != nil {
			s.log.Debug("Connection read ended", "error", err)
			return
		}
		if reply := s.Handle(ctx, frame); reply != nil {
			if err := conn.WriteFrame(*reply); err != nil {
				s.log.Debug("Unable to write reply", "error", err)
				return
			}
		}
	}
}

func (s *Session) authenticate(ctx context.Context, conn Conn, credential string) error {
	if credential == "" {
		token, err := s.awaitAuthenticateFrame(conn)
		if err != nil {
			return err
		}
		credential = token
	}
	claims, err := s.g.tokens.Validate(credential)
	if err != nil {
		return err
	}
	s.userID = claims.UserID()
	s.log = s.log.With("user_id", s.userID)
	if !s.transition(domain.Joined) {
		return fmt.Errorf("%w: session is %s", errors.ErrInvalidState, s.State())
	}

	s.g.presence.Connect(ctx, s.userID, s.connID, s.sink)
	chatIDs, err := s.g.chats.ListUserChatIDs(ctx, s.userID)
	if err != nil {
		s.log.Warn("Unable to list chats to join", "error", err)
	}
	for _, chatID := range chatIDs {
		s.g.registry.Join(s.connID, chatID)
	}
	s.log.Info("Session joined", "chats", len(chatIDs))
	return nil
}

func (s *Session) awaitAuthenticateFrame(conn Conn) (string, error) {
	if err := conn.SetReadDeadline(time.Now().Add(s.g.authTimeout)); err != nil {
		return "", err
	}
	frame, err := conn.ReadFrame()
	if err != nil {
		return "", fmt.Errorf("%w: no authenticate frame: %v", errors.ErrUnauthenticated, err)
	}
	if frame.Event != event.Authenticate {
		return "", fmt.Errorf("%w: expected %s, got %s", errors.ErrUnauthenticated, event.Authenticate, frame.Event)
	}
	payload, err := auth.Decode[event.AuthenticatePayload](frame.Data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrUnauthenticated, err)
	}
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		return "", err
	}
	return payload.Token, nil
}

// writeLoop drains the connection sink until the session or the server stops.
func (s *Session) writeLoop(ctx context.Context, conn Conn) {
	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.CloseGoingAway, "server shutting down")
			return
		case <-s.sink.Done():
			return
		case evt := <-s.sink.Events():
			frame, err := event.ToFrame(evt)
			if err != nil {
				s.log.Warn("Unable to encode event", "event", evt.Type(), "error", err)
				continue
			}
			if err := conn.WriteFrame(frame); err != nil {
				s.log.Debug("Unable to push event, closing", "error", err)
				_ = conn.Close(websocket.CloseAbnormalClosure, "write failed")
				return
			}
		}
	}
}

func (s *Session) close(conn Conn) {
	if !s.transition(domain.Closed) {
		return
	}
	s.sink.Close()
	// The request context may be gone already, presence must still be recorded.
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	s.g.presence.Disconnect(ctx, s.userID, s.connID)
	_ = conn.Close(websocket.CloseNormalClosure, "")
	s.log.Info("Session closed")
}

// Handle runs one inbound frame and returns the frame to answer with, if any.
// Chat-scoped events are ignored until the session has joined.
func (s *Session) Handle(ctx context.Context, frame event.Frame) *event.Frame {
	if s.State() != domain.Joined {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	switch frame.Event {
	case event.SendMessage:
		return s.ack(frame, s.sendMessage(ctx, frame))
	case event.MarkAsRead:
		return s.ack(frame, s.markAsRead(ctx, frame))
	case event.JoinChat:
		return s.ack(frame, s.joinChat(ctx, frame))
	case event.Typing:
		s.typing(ctx, frame)
		return nil
	case event.LeaveChat:
		s.leaveChat(ctx, frame)
		return nil
	case event.Authenticate:
		return nil
	default:
		errFrame := event.NewErrorFrame(fmt.Sprintf("unknown event %q", frame.Event))
		return &errFrame
	}
}

func (s *Session) ack(request event.Frame, ack event.Ack) *event.Frame {
	reply, err := event.NewAckFrame(request, ack)
	if err != nil {
		s.log.Warn("Unable to encode ack", "event", request.Event, "error", err)
		return nil
	}
	return &reply
}

func failure(err error) event.Ack {
	return event.Ack{Success: false, Error: err.Error()}
}

// guard is the uniform participant check of every chat-scoped event.
func (s *Session) guard(ctx context.Context, chatID string) error {
	ok, err := s.g.chats.IsParticipant(ctx, s.userID, chatID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: not a participant of chat %s", errors.ErrForbidden, chatID)
	}
	return nil
}

func (s *Session) sendMessage(ctx context.Context, frame event.Frame) event.Ack {
	payload, err := auth.Decode[event.SendMessagePayload](frame.Data)
	if err != nil {
		return failure(err)
	}
	if err := s.guard(ctx, payload.ChatID); err != nil {
		return failure(err)
	}
	message, err := SubmitMessage(ctx, s.g.dispatcher, domain.Draft{
		ChatID:   payload.ChatID,
		SenderID: s.userID,
		Content:  payload.Content,
		Type:     domain.MessageType(payload.Type),
		ReplyTo:  payload.ReplyTo,
		Metadata: payload.Metadata,
	})
	if err != nil {
		return failure(err)
	}
	return event.Ack{Success: true, Message: message}
}

func (s *Session) markAsRead(ctx context.Context, frame event.Frame) event.Ack {
	payload, err := auth.Decode[event.MarkAsReadPayload](frame.Data)
	if err != nil {
		return failure(err)
	}
	if err := s.guard(ctx, payload.ChatID); err != nil {
		return failure(err)
	}
	updated, err := s.g.reads.MarkAsRead(ctx, payload.ChatID, s.userID, payload.MessageIDs)
	if err != nil {
		return failure(err)
	}
	return event.Ack{Success: true, MessageIDs: updated}
}

func (s *Session) joinChat(ctx context.Context, frame event.Frame) event.Ack {
	payload, err := auth.Decode[event.ChatPayload](frame.Data)
	if err != nil {
		return failure(err)
	}
	if err := s.guard(ctx, payload.ChatID); err != nil {
		return failure(err)
	}
	s.g.registry.Join(s.connID, payload.ChatID)
	return event.Ack{Success: true}
}

func (s *Session) typing(ctx context.Context, frame event.Frame) {
	payload, err := auth.Decode[event.TypingPayload](frame.Data)
	if err != nil {
		s.log.Debug("Typing dropped", "error", err)
		return
	}
	if err := s.guard(ctx, payload.ChatID); err != nil {
		s.log.Debug("Typing dropped", "chat_id", payload.ChatID, "error", err)
		return
	}
	s.g.publisher.Publish(event.UserTyping{UserID: s.userID, Chat: payload.ChatID, IsTyping: payload.IsTyping})
}

func (s *Session) leaveChat(ctx context.Context, frame event.Frame) {
	payload, err := auth.Decode[event.ChatPayload](frame.Data)
	if err != nil {
		return
	}
	if err := s.guard(ctx, payload.ChatID); err != nil {
		s.log.Debug("Leave dropped", "chat_id", payload.ChatID, "error", err)
		return
	}
	s.g.registry.Leave(s.connID, payload.ChatID)
}
