//go:generate go run go.uber.org/mock/mockgen -source=chat.go -destination=../mocks/mock_chat_repository.go -package=mocks
package repositories

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"match-chat/domain"
	"match-chat/errors"
	"time"

	"github.com/dgraph-io/badger/v4"
)

type IChatRepository interface {
	GetOrCreate(ctx context.Context, chat domain.Chat) (domain.Chat, bool, error)
	Get(ctx context.Context, chatID string) (domain.Chat, error)
	GetByMatch(ctx context.Context, matchID string) (domain.Chat, error)
	ListIDsByUser(ctx context.Context, userID string) ([]string, error)
	TouchLastMessage(ctx context.Context, chatID, messageID string, at time.Time) error
	IncrementUnread(ctx context.Context, chatID string, userIDs ...string) (map[string]int, error)
	ResetUnread(ctx context.Context, chatID, userID string) error
	UnreadCount(ctx context.Context, chatID, userID string) (int, error)
}

type ChatRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewChatRepository(db *badger.DB, log *slog.Logger) *ChatRepository {
	return &ChatRepository{db: db, log: log}
}

func chatKey(id string) string { return "chat:" + id }
func chatByMatchKey(matchID string) string { return "chatmatch:" + matchID }
func chatIndexPrefix(userID string) string { return fmt.Sprintf("idx:chat:%s:", userID) }
func unreadKey(chatID, userID string) string { return fmt.Sprintf("unread:%s:%s", chatID, userID) }
func unreadPrefix(chatID string) string { return fmt.Sprintf("unread:%s:", chatID) }

// GetOrCreate returns the chat already bound to chat.MatchID, or stores the given one.
// The boolean reports whether this call created it.
func (r *ChatRepository) GetOrCreate(ctx context.Context, chat domain.Chat) (domain.Chat, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Chat{}, false, err
	}
	var (
		res     domain.Chat
		created bool
	)
	err := update(r.db, func(txn *badger.Txn) error {
		created = false
		id, err := getString(txn, chatByMatchKey(chat.MatchID))
		if err == nil {
			return r.read(txn, id, &res)
		}
		if !errors.Is(err, errors.ErrNotFound) {
			return err
		}
		if err := txn.Set([]byte(chatByMatchKey(chat.MatchID)), []byte(chat.ID)); err != nil {
			return err
		}
		for _, userID := range chat.Participants {
			if err := txn.Set([]byte(chatIndexPrefix(userID)+chat.ID), nil); err != nil {
				return err
			}
			if err := txn.Set([]byte(unreadKey(chat.ID, userID)), encodeCounter(0)); err != nil {
				return err
			}
		}
		if err := setJSON(txn, chatKey(chat.ID), chat); err != nil {
			return err
		}
		res = chat
		res.UnreadCount = make(map[string]int, len(chat.Participants))
		for _, userID := range chat.Participants {
			res.UnreadCount[userID] = 0
		}
		created = true
		return nil
	})
	return res, created, err
}

func (r *ChatRepository) Get(ctx context.Context, chatID string) (domain.Chat, error) {
	if err := ctx.Err(); err != nil {
		return domain.Chat{}, err
	}
	var chat domain.Chat
	err := r.db.View(func(txn *badger.Txn) error {
		return r.read(txn, chatID, &chat)
	})
	return chat, err
}

func (r *ChatRepository) GetByMatch(ctx context.Context, matchID string) (domain.Chat, error) {
	if err := ctx.Err(); err != nil {
		return domain.Chat{}, err
	}
	var chat domain.Chat
	err := r.db.View(func(txn *badger.Txn) error {
		id, err := getString(txn, chatByMatchKey(matchID))
		if err != nil {
			return err
		}
		return r.read(txn, id, &chat)
	})
	return chat, err
}

// read loads the chat record and assembles its unread counters.
func (r *ChatRepository) read(txn *badger.Txn, chatID string, chat *domain.Chat) error {
	if err := getJSON(txn, chatKey(chatID), chat); err != nil {
		return err
	}
	chat.UnreadCount = make(map[string]int, len(chat.Participants))
	prefix := []byte(unreadPrefix(chatID))
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		userID := string(item.Key()[len(prefix):])
		err := item.Value(func(val []byte) error {
			chat.UnreadCount[userID] = decodeCounter(val)
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *ChatRepository) ListIDsByUser(ctx context.Context, userID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var ids []string
	err := r.db.View(func(txn *badger.Txn) error {
		ids = suffixes(txn, chatIndexPrefix(userID))
		return nil
	})
	return ids, err
}

func (r *ChatRepository) TouchLastMessage(ctx context.Context, chatID, messageID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return update(r.db, func(txn *badger.Txn) error {
		var chat domain.Chat
		if err := getJSON(txn, chatKey(chatID), &chat); err != nil {
			return err
		}
		if chat.LastMessageAt != nil && chat.LastMessageAt.After(at) {
			return nil
		}
		chat.LastMessageID = messageID
		chat.LastMessageAt = &at
		chat.UpdatedAt = at
		chat.UnreadCount = nil
		return setJSON(txn, chatKey(chatID), chat)
	})
}

// IncrementUnread adds one to each counter atomically and returns the new values.
// Concurrent increments on the same counter conflict and are replayed, none is lost.
func (r *ChatRepository) IncrementUnread(ctx context.Context, chatID string, userIDs ...string) (map[string]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(userIDs))
	err := update(r.db, func(txn *badger.Txn) error {
		for _, userID := range userIDs {
			key := []byte(unreadKey(chatID, userID))
			current := 0
			item, err := txn.Get(key)
			switch {
			case err == nil:
				if err := item.Value(func(val []byte) error {
					current = decodeCounter(val)
					return nil
				}); err != nil {
					return err
				}
			case !errors.Is(err, badger.ErrKeyNotFound):
				return err
			}
			counts[userID] = current + 1
			if err := txn.Set(key, encodeCounter(current+1)); err != nil {
				return err
			}
		}
		return nil
	})
	return counts, err
}

func (r *ChatRepository) ResetUnread(ctx context.Context, chatID, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return update(r.db, func(txn *badger.Txn) error {
		return txn.Set([]byte(unreadKey(chatID, userID)), encodeCounter(0))
	})
}

func (r *ChatRepository) UnreadCount(ctx context.Context, chatID, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	count := 0
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(unreadKey(chatID, userID)))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			count = decodeCounter(val)
			return nil
		})
	})
	return count, err
}

func encodeCounter(n int) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(n))
	return buf
}

func decodeCounter(val []byte) int {
	if len(val) != 8 {
		return 0
	}
	return int(binary.BigEndian.Uint64(val))
}
