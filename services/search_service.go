package services

import (
	"context"
	"log/slog"
	"match-chat/domain/search"
	"match-chat/errors"
	"match-chat/repositories"
)

type Hit struct {
	MessageID string  `json:"messageId"`
	SenderID  string  `json:"senderId"`
	Content   string  `json:"content"`
	Score     float64 `json:"score"`
}

// MessageIndex is the full-text index fed by the event fanout.
type MessageIndex interface {
	Search(ctx context.Context, query search.Query) ([]Hit, error)
}

type ISearchService interface {
	Search(ctx context.Context, chatID, userID, input string, limit int) ([]Hit, error)
}

type SearchService struct {
	authorizer ChatAuthorizer
	index      MessageIndex
	messages   repositories.IMessageRepository
	log        *slog.Logger
}

func NewSearchService(authorizer ChatAuthorizer, index MessageIndex, messages repositories.IMessageRepository, log *slog.Logger) *SearchService {
	return &SearchService{authorizer: authorizer, index: index, messages: messages, log: log}
}

// Search runs input against the messages of one chat. The input accepts
// "--from <userId>" and "--limit <n>"; an explicit limit wins over the inline one.
func (s *SearchService) Search(ctx context.Context, chatID, userID, input string, limit int) ([]Hit, error) {
	if _, err := s.authorizer.Authorize(ctx, userID, chatID); err != nil {
		return nil, err
	}
	query := search.NewSearchQuery(chatID, input).WithLimit(limit)
	if query.Terms == "" {
		return []Hit{}, nil
	}
	if query.Limit > 100 {
		query.Limit = 100
	}
	hits, err := s.index.Search(ctx, query)
	if err != nil {
		s.log.Warn("Search failed", "chat_id", chatID, "error", err)
		return nil, err
	}
	return s.live(ctx, chatID, hits)
}

// live drops hits whose message was deleted, or is no longer stored, since the index caught up.
func (s *SearchService) live(ctx context.Context, chatID string, hits []Hit) ([]Hit, error) {
	kept := make([]Hit, 0, len(hits))
	for _, hit := range hits {
		message, err := s.messages.Get(ctx, hit.MessageID)
		if errors.Is(err, errors.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if message.IsDeleted || message.ChatID != chatID {
			s.log.Debug("Stale search hit dropped", "chat_id", chatID, "message_id", hit.MessageID)
			continue
		}
		kept = append(kept, hit)
	}
	return kept, nil
}
