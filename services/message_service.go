package services

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"match-chat/contract"
	"match-chat/domain"
	"match-chat/domain/event"
	"match-chat/errors"
	"match-chat/repositories"
	"slices"

	"github.com/abadojack/whatlanggo"
	"github.com/google/uuid"
)

type IMessageService interface {
	Create(ctx context.Context, draft domain.Draft) (domain.Message, error)
	List(ctx context.Context, chatID, userID string, page domain.PageRequest) (domain.Page[domain.Message], error)
	Delete(ctx context.Context, messageID, userID string) (domain.Message, error)
	MarkAsRead(ctx context.Context, chatID, userID string, messageIDs []string) ([]string, error)
}

// ChatAuthorizer resolves a chat for one of its participants.
type ChatAuthorizer interface {
	Authorize(ctx context.Context, userID, chatID string) (domain.Chat, error)
}

// Censor masks forbidden words and reports which ones were found.
type Censor interface {
	Censor(content string) (string, []string)
}

type MessageService struct {
	messages         repositories.IMessageRepository
	chats            repositories.IChatRepository
	authorizer       ChatAuthorizer
	censor           Censor
	publisher        contract.EventPublisher
	maxContentLength int
	now              Clock
	log              *slog.Logger
}

// NewMessageService builds the service. A nil censor disables moderation and language tagging.
func NewMessageService(messages repositories.IMessageRepository, chats repositories.IChatRepository,
	authorizer ChatAuthorizer, censor Censor, publisher contract.EventPublisher,
	maxContentLength int, now Clock, log *slog.Logger) *MessageService {
	return &MessageService{
		messages:         messages,
		chats:            chats,
		authorizer:       authorizer,
		censor:           censor,
		publisher:        publisher,
		maxContentLength: maxContentLength,
		now:              now,
		log:              log,
	}
}

// Create persists the message, moves the chat forward and bumps the unread counters,
// then publishes newMessage to the room and unreadCountUpdate to every other participant.
// Callers serialize Create per chat so that publication order matches persistence order.
func (s *MessageService) Create(ctx context.Context, draft domain.Draft) (domain.Message, error) {
	if err := draft.Validate(s.maxContentLength); err != nil {
		return domain.Message{}, err
	}
	chat, err := s.authorizer.Authorize(ctx, draft.SenderID, draft.ChatID)
	if err != nil {
		return domain.Message{}, err
	}
	if draft.ReplyTo != "" {
		if err := s.checkReply(ctx, draft); err != nil {
			return domain.Message{}, err
		}
	}

	now := s.now()
	message := domain.Message{
		ID:        uuid.NewString(),
		ChatID:    draft.ChatID,
		SenderID:  draft.SenderID,
		Content:   draft.Content,
		Type:      draft.Type,
		Status:    domain.StatusSent,
		CreatedAt: now,
		UpdatedAt: now,
		ReplyTo:   draft.ReplyTo,
		Metadata:  maps.Clone(draft.Metadata),
	}
	if message.Type == domain.TextMessage && s.censor != nil {
		s.moderate(&message)
	}

	if err := s.messages.Store(ctx, message); err != nil {
		return domain.Message{}, err
	}
	if err := s.chats.TouchLastMessage(ctx, chat.ID, message.ID, message.CreatedAt); err != nil {
		return domain.Message{}, err
	}
	counts := map[string]int{}
	if others := chat.Others(draft.SenderID); len(others) > 0 {
		if counts, err = s.chats.IncrementUnread(ctx, chat.ID, others...); err != nil {
			return domain.Message{}, err
		}
	}

	s.publisher.Publish(event.NewMessageCreated(message))
	for _, userID := range slices.Sorted(maps.Keys(counts)) {
		s.publisher.Publish(event.UnreadCountUpdated{Chat: chat.ID, UnreadCount: counts[userID], UserID: userID})
	}
	return message, nil
}

func (s *MessageService) checkReply(ctx context.Context, draft domain.Draft) error {
	parent, err := s.messages.Get(ctx, draft.ReplyTo)
	if errors.Is(err, errors.ErrNotFound) {
		return fmt.Errorf("%w: replyTo %s does not exist", errors.ErrInvalidPayload, draft.ReplyTo)
	}
	if err != nil {
		return err
	}
	if parent.ChatID != draft.ChatID || parent.IsDeleted {
		return fmt.Errorf("%w: replyTo %s is not a message of this chat", errors.ErrInvalidPayload, draft.ReplyTo)
	}
	return nil
}

// moderate censors the content and tags the detected language.
func (s *MessageService) moderate(message *domain.Message) {
	lang := whatlanggo.Detect(message.Content).Lang.Iso6391()

	censored, found := s.censor.Censor(message.Content)
	if len(found) > 0 {
		s.log.Info("Message censored",
			"chat_id", message.ChatID, "user_id", message.SenderID,
			"words", len(found), "lang", lang)
		message.Content = censored
	}
	if lang != "" {
		if message.Metadata == nil {
			message.Metadata = domain.Metadata{}
		}
		message.Metadata["lang"] = lang
	}
}

func (s *MessageService) List(ctx context.Context, chatID, userID string, page domain.PageRequest) (domain.Page[domain.Message], error) {
	if _, err := s.authorizer.Authorize(ctx, userID, chatID); err != nil {
		return domain.Page[domain.Message]{}, err
	}
	return s.messages.List(ctx, chatID, page)
}

// Delete soft-deletes a message of userID. Deleting twice is a no-op.
func (s *MessageService) Delete(ctx context.Context, messageID, userID string) (domain.Message, error) {
	alreadyDeleted := false
	message, err := s.messages.Swap(ctx, messageID, func(current domain.Message) (domain.Message, error) {
		if current.SenderID != userID {
			return domain.Message{}, fmt.Errorf("%w: only the sender can delete message %s", errors.ErrForbidden, messageID)
		}
		alreadyDeleted = current.IsDeleted
		if alreadyDeleted {
			return current, nil
		}
		return current.SoftDelete(s.now()), nil
	})
	if err != nil {
		return domain.Message{}, err
	}
	if !alreadyDeleted {
		s.publisher.Publish(event.MessageDeleted{Chat: message.ChatID, MessageID: message.ID})
	}
	return message, nil
}

// MarkAsRead flags the listed messages of the chat as read and clears the reader's counter.
// Ids from other chats or already read are skipped; the ids actually updated are returned.
func (s *MessageService) MarkAsRead(ctx context.Context, chatID, userID string, messageIDs []string) ([]string, error) {
	if _, err := s.authorizer.Authorize(ctx, userID, chatID); err != nil {
		return nil, err
	}
	updated, err := s.messages.MarkRead(ctx, chatID, messageIDs, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.chats.ResetUnread(ctx, chatID, userID); err != nil {
		return nil, err
	}
	if updated == nil {
		updated = []string{}
	}
	if len(updated) > 0 {
		s.publisher.Publish(event.MessagesRead{Chat: chatID, MessageIDs: updated, ReadBy: userID})
	}
	s.publisher.Publish(event.UnreadCountUpdated{Chat: chatID, UnreadCount: 0, UserID: userID})
	return updated, nil
}
