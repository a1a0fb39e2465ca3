package repositories

import (
	"context"
	"match-chat/domain"
	"match-chat/errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func acceptedMatch() domain.Match {
	return domain.Match{ID: "m1", UserA: "u1", UserB: "u2", Status: domain.MatchAccepted, ChatID: "c1"}
}

func TestChatRepository_GetOrCreate_Idempotent(t *testing.T) {
	req := require.New(t)
	db, log := openDB(t)
	repo := NewChatRepository(db, log)
	ctx := context.Background()
	now := time.Now().UTC()

	// When the chat is requested twice for the same match
	first, created, err := repo.GetOrCreate(ctx, domain.NewChat(acceptedMatch(), now))
	req.NoError(err)
	req.True(created)

	other := domain.NewChat(acceptedMatch(), now)
	other.ID = "c2"
	second, created, err := repo.GetOrCreate(ctx, other)
	req.NoError(err)

	// Then the first chat wins
	req.False(created)
	req.Equal(first.ID, second.ID)
	req.Equal(map[string]int{"u1": 0, "u2": 0}, second.UnreadCount)

	byMatch, err := repo.GetByMatch(ctx, "m1")
	req.NoError(err)
	req.Equal("c1", byMatch.ID)

	ids, err := repo.ListIDsByUser(ctx, "u2")
	req.NoError(err)
	req.Equal([]string{"c1"}, ids)

	_, err = repo.Get(ctx, "c2")
	req.ErrorIs(err, errors.ErrNotFound)
}

func TestChatRepository_Unread(t *testing.T) {
	req := require.New(t)
	db, log := openDB(t)
	repo := NewChatRepository(db, log)
	ctx := context.Background()
	_, _, err := repo.GetOrCreate(ctx, domain.NewChat(acceptedMatch(), time.Now()))
	req.NoError(err)

	// When u1 sends two messages
	counts, err := repo.IncrementUnread(ctx, "c1", "u2")
	req.NoError(err)
	req.Equal(1, counts["u2"])
	counts, err = repo.IncrementUnread(ctx, "c1", "u2")
	req.NoError(err)
	req.Equal(2, counts["u2"])

	// Then only u2 has unread messages
	count, err := repo.UnreadCount(ctx, "c1", "u1")
	req.NoError(err)
	req.Equal(0, count)

	// When u2 resets
	req.NoError(repo.ResetUnread(ctx, "c1", "u2"))
	chat, err := repo.Get(ctx, "c1")
	req.NoError(err)
	req.Equal(map[string]int{"u1": 0, "u2": 0}, chat.UnreadCount)
}

func TestChatRepository_IncrementUnread_Concurrent(t *testing.T) {
	req := require.New(t)
	db, log := openDB(t)
	repo := NewChatRepository(db, log)
	ctx := context.Background()
	_, _, err := repo.GetOrCreate(ctx, domain.NewChat(acceptedMatch(), time.Now()))
	req.NoError(err)

	// When twenty increments race
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.IncrementUnread(ctx, "c1", "u2")
			req.NoError(err)
		}()
	}
	wg.Wait()

	// Then none is lost
	count, err := repo.UnreadCount(ctx, "c1", "u2")
	req.NoError(err)
	req.Equal(20, count)
}

func TestChatRepository_TouchLastMessage(t *testing.T) {
	req := require.New(t)
	db, log := openDB(t)
	repo := NewChatRepository(db, log)
	ctx := context.Background()
	now := time.Now().UTC()
	_, _, err := repo.GetOrCreate(ctx, domain.NewChat(acceptedMatch(), now))
	req.NoError(err)

	req.NoError(repo.TouchLastMessage(ctx, "c1", "msg-2", now.Add(2*time.Second)))
	// An older message never overrides a newer one
	req.NoError(repo.TouchLastMessage(ctx, "c1", "msg-1", now.Add(time.Second)))

	chat, err := repo.Get(ctx, "c1")
	req.NoError(err)
	req.Equal("msg-2", chat.LastMessageID)
	req.True(chat.LastMessageAt.Equal(now.Add(2 * time.Second)))
}
