package services_test

import (
	"context"
	"match-chat/domain"
	"match-chat/errors"
	"match-chat/runtime"
	"match-chat/sink"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChatService_GetOrCreateChat_Guards(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, nil)
	ctx := context.Background()
	pending, err := f.matches.RecordSwipe(ctx, domain.Swipe{Actor: "a", Target: "b", Action: domain.Like})
	req.NoError(err)

	// A pending match has no chat yet
	_, err = f.chats.GetOrCreateChat(ctx, pending.Match.ID, "a")
	req.ErrorIs(err, errors.ErrForbidden)

	_, err = f.matches.Accept(ctx, pending.Match.ID, "b")
	req.NoError(err)

	// Outsiders cannot open it
	_, err = f.chats.GetOrCreateChat(ctx, pending.Match.ID, "eve")
	req.ErrorIs(err, errors.ErrForbidden)

	_, err = f.chats.GetOrCreateChat(ctx, "missing", "a")
	req.ErrorIs(err, errors.ErrNotFound)

	chat, err := f.chats.GetOrCreateChat(ctx, pending.Match.ID, "b")
	req.NoError(err)
	req.ElementsMatch([]string{"a", "b"}, chat.Participants)
	req.Equal(map[string]int{"a": 0, "b": 0}, chat.UnreadCount)
	req.True(chat.IsActive)

	// Ids that could address another storage key are refused before any lookup
	_, err = f.chats.Authorize(ctx, "a", "match:"+pending.Match.ID)
	req.ErrorIs(err, errors.ErrInvalidPayload)
}

func TestChatService_UnreadCounters(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, nil)
	ctx := context.Background()
	chat := f.openChat(t, "a", "b")

	// When a sends twice
	for range 2 {
		counts, err := f.chats.IncrementUnread(ctx, chat.ID, "a")
		req.NoError(err)
		req.NotContains(counts, "a")
	}

	// Then only b accumulates
	countB, err := f.chats.GetUnreadCount(ctx, chat.ID, "b")
	req.NoError(err)
	req.Equal(2, countB)
	countA, err := f.chats.GetUnreadCount(ctx, chat.ID, "a")
	req.NoError(err)
	req.Zero(countA)

	// When b resets
	req.NoError(f.chats.ResetUnread(ctx, chat.ID, "b"))
	_, err = f.chats.IncrementUnread(ctx, chat.ID, "b")
	req.NoError(err)

	// Then b is back to zero and a is untouched by b's reset
	countB, err = f.chats.GetUnreadCount(ctx, chat.ID, "b")
	req.NoError(err)
	req.Zero(countB)
	countA, err = f.chats.GetUnreadCount(ctx, chat.ID, "a")
	req.NoError(err)
	req.Equal(1, countA)

	// Outsiders cannot peek
	_, err = f.chats.GetUnreadCount(ctx, chat.ID, "eve")
	req.ErrorIs(err, errors.ErrForbidden)
}

func TestChatService_Membership(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, nil)
	ctx := context.Background()
	first := f.openChat(t, "a", "b")
	second := f.openChat(t, "a", "c")

	ok, err := f.chats.IsParticipant(ctx, "b", first.ID)
	req.NoError(err)
	req.True(ok)
	ok, err = f.chats.IsParticipant(ctx, "c", first.ID)
	req.NoError(err)
	req.False(ok)
	ok, err = f.chats.IsParticipant(ctx, "a", "missing")
	req.NoError(err)
	req.False(ok)

	ids, err := f.chats.ListUserChatIDs(ctx, "a")
	req.NoError(err)
	req.ElementsMatch([]string{first.ID, second.ID}, ids)

	// A message in the first chat moves it to the top
	_, err = f.messages.Create(ctx, domain.Draft{ChatID: first.ID, SenderID: "b", Content: "hey", Type: domain.TextMessage})
	req.NoError(err)
	chats, err := f.chats.ListChats(ctx, "a")
	req.NoError(err)
	req.Len(chats, 2)
	req.Equal(first.ID, chats[0].ID)
	req.Equal(1, chats[0].UnreadCount["a"])
}

func TestChatService_GetOrCreateChat_JoinsLiveConnections(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, nil)
	ctx := context.Background()
	registry := runtime.NewRegistry()
	f.chats.UseRooms(registry)

	// Given both users connected before their chat exists, bob on two devices
	registry.RegisterConnection("alice", "alice-phone", sink.NewConnectionSink("alice-phone", 4))
	registry.RegisterConnection("bob", "bob-phone", sink.NewConnectionSink("bob-phone", 4))
	registry.RegisterConnection("bob", "bob-laptop", sink.NewConnectionSink("bob-laptop", 4))
	registry.RegisterConnection("eve", "eve-phone", sink.NewConnectionSink("eve-phone", 4))
	_, err := f.matches.RecordSwipe(ctx, domain.Swipe{Actor: "alice", Target: "bob", Action: domain.Like})
	req.NoError(err)
	outcome, err := f.matches.RecordSwipe(ctx, domain.Swipe{Actor: "bob", Target: "alice", Action: domain.Like})
	req.NoError(err)

	// When the chat is opened
	chat, err := f.chats.GetOrCreateChat(ctx, outcome.Match.ID, "alice")
	req.NoError(err)

	// Then every live connection of the participants is in the room
	req.True(registry.IsInRoom("alice-phone", chat.ID))
	req.True(registry.IsInRoom("bob-phone", chat.ID))
	req.True(registry.IsInRoom("bob-laptop", chat.ID))
	req.False(registry.IsInRoom("eve-phone", chat.ID))
	req.Len(registry.GetSinksForRoom(chat.ID, "alice"), 2)
}
