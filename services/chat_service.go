package services

import (
	"context"
	"fmt"
	"log/slog"
	"match-chat/domain"
	"match-chat/errors"
	"match-chat/repositories"
	"sort"
	"time"
)

type IChatService interface {
	GetOrCreateChat(ctx context.Context, matchID, userID string) (domain.Chat, error)
	Authorize(ctx context.Context, userID, chatID string) (domain.Chat, error)
	IsParticipant(ctx context.Context, userID, chatID string) (bool, error)
	IncrementUnread(ctx context.Context, chatID, senderID string) (map[string]int, error)
	ResetUnread(ctx context.Context, chatID, userID string) error
	ListUserChatIDs(ctx context.Context, userID string) ([]string, error)
	GetUnreadCount(ctx context.Context, chatID, userID string) (int, error)
	ListChats(ctx context.Context, userID string) ([]domain.Chat, error)
}

// RoomJoiner puts live connections into chat rooms.
type RoomJoiner interface {
	ConnectionsOf(userID string) []string
	Join(connID, chatID string) bool
}

type ChatService struct {
	chats   repositories.IChatRepository
	matches repositories.IMatchRepository
	rooms   RoomJoiner
	now     Clock
	log     *slog.Logger
}

func NewChatService(chats repositories.IChatRepository, matches repositories.IMatchRepository, now Clock, log *slog.Logger) *ChatService {
	return &ChatService{chats: chats, matches: matches, now: now, log: log}
}

// UseRooms makes GetOrCreateChat join the participants' live connections to the chat room,
// so a chat opened after they connected streams without an explicit joinChat.
func (s *ChatService) UseRooms(rooms RoomJoiner) {
	s.rooms = rooms
}

// GetOrCreateChat is idempotent: every call for the same match returns the same chat.
func (s *ChatService) GetOrCreateChat(ctx context.Context, matchID, userID string) (domain.Chat, error) {
	match, err := s.matches.Get(ctx, matchID)
	if err != nil {
		return domain.Chat{}, err
	}
	if match.Status != domain.MatchAccepted {
		return domain.Chat{}, fmt.Errorf("%w: match %s is %s", errors.ErrForbidden, matchID, match.Status)
	}
	if !match.Involves(userID) {
		return domain.Chat{}, fmt.Errorf("%w: %s is not part of match %s", errors.ErrForbidden, userID, matchID)
	}
	if match.ChatID == "" {
		return domain.Chat{}, fmt.Errorf("%w: accepted match %s has no chat id", errors.ErrInvalidState, matchID)
	}
	chat, created, err := s.chats.GetOrCreate(ctx, domain.NewChat(match, s.now()))
	if err != nil {
		return domain.Chat{}, err
	}
	if created {
		s.log.Debug("Chat created", "chat_id", chat.ID, "match_id", matchID)
	}
	s.joinLiveConnections(chat)
	return chat, nil
}

func (s *ChatService) joinLiveConnections(chat domain.Chat) {
	if s.rooms == nil {
		return
	}
	for _, userID := range chat.Participants {
		for _, connID := range s.rooms.ConnectionsOf(userID) {
			if s.rooms.Join(connID, chat.ID) {
				s.log.Debug("Live connection joined chat", "chat_id", chat.ID, "user_id", userID, "conn_id", connID)
			}
		}
	}
}

// Authorize returns the chat when userID takes part in it.
func (s *ChatService) Authorize(ctx context.Context, userID, chatID string) (domain.Chat, error) {
	if err := domain.ValidateID(chatID); err != nil {
		return domain.Chat{}, err
	}
	chat, err := s.chats.Get(ctx, chatID)
	if err != nil {
		return domain.Chat{}, err
	}
	if !chat.HasParticipant(userID) {
		return domain.Chat{}, fmt.Errorf("%w: %s is not a participant of chat %s", errors.ErrForbidden, userID, chatID)
	}
	return chat, nil
}

func (s *ChatService) IsParticipant(ctx context.Context, userID, chatID string) (bool, error) {
	_, err := s.Authorize(ctx, userID, chatID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errors.ErrForbidden), errors.Is(err, errors.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// IncrementUnread bumps the counter of every participant except the sender.
func (s *ChatService) IncrementUnread(ctx context.Context, chatID, senderID string) (map[string]int, error) {
	chat, err := s.chats.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}
	others := chat.Others(senderID)
	if len(others) == 0 {
		return map[string]int{}, nil
	}
	return s.chats.IncrementUnread(ctx, chatID, others...)
}

func (s *ChatService) ResetUnread(ctx context.Context, chatID, userID string) error {
	return s.chats.ResetUnread(ctx, chatID, userID)
}

// ListUserChatIDs returns the active chats of userID, the rooms a new connection joins.
func (s *ChatService) ListUserChatIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.chats.ListIDsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	active := make([]string, 0, len(ids))
	for _, id := range ids {
		chat, err := s.chats.Get(ctx, id)
		if errors.Is(err, errors.ErrNotFound) {
			s.log.Warn("Dangling chat index", "user_id", userID, "chat_id", id)
			continue
		}
		if err != nil {
			return nil, err
		}
		if chat.IsActive {
			active = append(active, id)
		}
	}
	return active, nil
}

func (s *ChatService) GetUnreadCount(ctx context.Context, chatID, userID string) (int, error) {
	if _, err := s.Authorize(ctx, userID, chatID); err != nil {
		return 0, err
	}
	return s.chats.UnreadCount(ctx, chatID, userID)
}

// ListChats returns the chats of userID, most recent activity first.
func (s *ChatService) ListChats(ctx context.Context, userID string) ([]domain.Chat, error) {
	ids, err := s.chats.ListIDsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	chats := make([]domain.Chat, 0, len(ids))
	for _, id := range ids {
		chat, err := s.chats.Get(ctx, id)
		if errors.Is(err, errors.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		chats = append(chats, chat)
	}
	sort.SliceStable(chats, func(i, j int) bool {
		a, b := lastActivity(chats[i]), lastActivity(chats[j])
		if !a.Equal(b) {
			return a.After(b)
		}
		return chats[i].ID < chats[j].ID
	})
	return chats, nil
}

func lastActivity(c domain.Chat) time.Time {
	if c.LastMessageAt != nil {
		return *c.LastMessageAt
	}
	return c.CreatedAt
}
