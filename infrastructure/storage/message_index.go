package storage

import (
	"context"
	"fmt"
	"log/slog"
	"match-chat/domain"
	"match-chat/domain/search"
	"match-chat/services"
	"match-chat/sink"

	"github.com/blugelabs/bluge"
)

const (
	fieldID       = "_id"
	fieldChatID   = "chat_id"
	fieldSenderID = "sender_id"
	fieldContent  = "content"
)

var (
	_ services.MessageIndex = (*MessageIndex)(nil)
	_ sink.Indexer          = (*MessageIndex)(nil)
)

// MessageIndex is the bluge full-text index of text messages.
// Documents are keyed by message id, so indexing twice replaces.
type MessageIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewMessageIndex(writer *bluge.Writer, log *slog.Logger) *MessageIndex {
	return &MessageIndex{writer: writer, log: log}
}

func (i *MessageIndex) Index(ctx context.Context, message domain.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc := bluge.NewDocument(message.ID).
		AddField(bluge.NewKeywordField(fieldChatID, message.ChatID).StoreValue()).
		AddField(bluge.NewKeywordField(fieldSenderID, message.SenderID).StoreValue()).
		AddField(bluge.NewTextField(fieldContent, message.Content).StoreValue())
	return i.writer.Update(doc.ID(), doc)
}

func (i *MessageIndex) Delete(ctx context.Context, messageID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return i.writer.Delete(bluge.Identifier(messageID))
}

// Search matches the terms inside one chat, optionally restricted to one sender, best score first.
func (i *MessageIndex) Search(ctx context.Context, query search.Query) ([]services.Hit, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("open index reader: %w", err)
	}
	defer func() { _ = reader.Close() }()

	q := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(query.Terms).SetField(fieldContent)).
		AddMust(bluge.NewTermQuery(query.ChatID).SetField(fieldChatID))
	if query.SenderID != "" {
		q.AddMust(bluge.NewTermQuery(query.SenderID).SetField(fieldSenderID))
	}

	matches, err := reader.Search(ctx, bluge.NewTopNSearch(query.Limit, q))
	if err != nil {
		return nil, fmt.Errorf("search chat %s: %w", query.ChatID, err)
	}
	hits := make([]services.Hit, 0, query.Limit)
	next, err := matches.Next()
	for err == nil && next != nil {
		hit := services.Hit{Score: next.Score}
		err = next.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case fieldID:
				hit.MessageID = string(value)
			case fieldSenderID:
				hit.SenderID = string(value)
			case fieldContent:
				hit.Content = string(value)
			}
			return true
		})
		if err != nil {
			break
		}
		hits = append(hits, hit)
		next, err = matches.Next()
	}
	if err != nil {
		return nil, fmt.Errorf("read search hits: %w", err)
	}
	return hits, nil
}
