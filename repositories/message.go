//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"match-chat/domain"
	"time"

	"github.com/dgraph-io/badger/v4"
)

type MessageSwapFunc func(current domain.Message) (domain.Message, error)

type IMessageRepository interface {
	Store(ctx context.Context, message domain.Message) error
	Get(ctx context.Context, messageID string) (domain.Message, error)
	Swap(ctx context.Context, messageID string, fn MessageSwapFunc) (domain.Message, error)
	List(ctx context.Context, chatID string, page domain.PageRequest) (domain.Page[domain.Message], error)
	MarkRead(ctx context.Context, chatID string, messageIDs []string, at time.Time) ([]string, error)
}

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, log: log}
}

// messageKey is formatted as "msg:{chat_id}:{timestamp_padded}:{id}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Keep two messages created at the same nanosecond apart.
func messageKey(m domain.Message) string {
	return fmt.Sprintf("msg:%s:%019d:%s", m.ChatID, m.CreatedAt.UnixNano(), m.ID)
}

func messagePrefix(chatID string) string { return fmt.Sprintf("msg:%s:", chatID) }

// messageIDKey points from an id to its chronological key.
func messageIDKey(id string) string { return "msgid:" + id }

func (m *MessageRepository) Store(ctx context.Context, message domain.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := messageKey(message)
	return update(m.db, func(txn *badger.Txn) error {
		if err := txn.Set([]byte(messageIDKey(message.ID)), []byte(key)); err != nil {
			return err
		}
		return setJSON(txn, key, message)
	})
}

func (m *MessageRepository) Get(ctx context.Context, messageID string) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}
	var message domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		key, err := getString(txn, messageIDKey(messageID))
		if err != nil {
			return err
		}
		return getJSON(txn, key, &message)
	})
	return message, err
}

func (m *MessageRepository) Swap(ctx context.Context, messageID string, fn MessageSwapFunc) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}
	var written domain.Message
	err := update(m.db, func(txn *badger.Txn) error {
		key, err := getString(txn, messageIDKey(messageID))
		if err != nil {
			return err
		}
		var current domain.Message
		if err := getJSON(txn, key, &current); err != nil {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		written = next
		return setJSON(txn, key, next)
	})
	return written, err
}

// List walks the chat newest first, skipping deleted messages.
// The whole chat is scanned to report the total.
func (m *MessageRepository) List(ctx context.Context, chatID string, page domain.PageRequest) (domain.Page[domain.Message], error) {
	if err := ctx.Err(); err != nil {
		return domain.Page[domain.Message]{}, err
	}
	page = page.Normalize()
	offset := page.Offset()
	items := make([]domain.Message, 0, page.Limit)
	total := 0

	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(messagePrefix(chatID))
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Let's go the newest position msg:{chat}:9999999999999999999
		// Then, we go back in time
		seekKey := append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			var message domain.Message
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &message)
			})
			if err != nil {
				return err
			}
			if message.IsDeleted {
				continue
			}
			if total >= offset && len(items) < page.Limit {
				items = append(items, message)
			}
			total++
		}
		return nil
	})
	if err != nil {
		return domain.Page[domain.Message]{}, err
	}
	return domain.Page[domain.Message]{Items: items, Pagination: domain.NewPagination(total, page)}, nil
}

// MarkRead moves the listed messages of chatID to read and returns the ids it changed.
// Ids that are unknown or belong to another chat are ignored.
func (m *MessageRepository) MarkRead(ctx context.Context, chatID string, messageIDs []string, at time.Time) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var updated []string
	err := update(m.db, func(txn *badger.Txn) error {
		updated = nil
		for _, id := range messageIDs {
			key, err := getString(txn, messageIDKey(id))
			if err != nil {
				m.log.Debug("Skipping unknown message", "message_id", id)
				continue
			}
			var message domain.Message
			if err := getJSON(txn, key, &message); err != nil {
				return err
			}
			if message.ChatID != chatID || message.Status == domain.StatusRead {
				continue
			}
			message.Status = message.Status.Advance(domain.StatusRead)
			message.UpdatedAt = at
			if err := setJSON(txn, key, message); err != nil {
				return err
			}
			updated = append(updated, id)
		}
		return nil
	})
	return updated, err
}
