package sink

import (
	"context"
	"fmt"
	"log/slog"
	"match-chat/contract"
	"match-chat/domain"
	"match-chat/domain/event"
)

var _ contract.EventSink = SearchSink{}

// Indexer is the write side of the message search index.
type Indexer interface {
	Index(ctx context.Context, message domain.Message) error
	Delete(ctx context.Context, messageID string) error
}

// SearchSink keeps the full-text index in step with the message stream.
type SearchSink struct {
	index Indexer
	log   *slog.Logger
}

func NewSearchSink(index Indexer, log *slog.Logger) SearchSink {
	return SearchSink{index: index, log: log}
}

func (s SearchSink) Consume(ctx context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.MessageCreated:
		if evt.Message.Type != domain.TextMessage || evt.Message.IsDeleted {
			return nil
		}
		if err := s.index.Index(ctx, evt.Message); err != nil {
			return fmt.Errorf("index message %s: %w", evt.Message.ID, err)
		}
		return nil
	case event.MessageDeleted:
		if err := s.index.Delete(ctx, evt.MessageID); err != nil {
			return fmt.Errorf("unindex message %s: %w", evt.MessageID, err)
		}
		return nil
	default:
		return nil
	}
}
