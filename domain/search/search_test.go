package search

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSearchQuery(t *testing.T) {
	req := require.New(t)

	// Given a command-style input
	q := NewSearchQuery("chat-1", "/find dinner friday --from u42 --limit 5")

	// Then flags are extracted and the remaining words are the terms
	req.Equal("chat-1", q.ChatID)
	req.Equal("dinner friday", q.Terms)
	req.Equal("u42", q.SenderID)
	req.Equal(5, q.Limit)
}

func TestNewSearchQuery_PlainText(t *testing.T) {
	req := require.New(t)

	q := NewSearchQuery("chat-1", "see you tomorrow")

	req.Equal("see you tomorrow", q.Terms)
	req.Empty(q.SenderID)
	req.Equal(defaultLimit, q.Limit)
	req.Equal(3, q.WithLimit(3).Limit)
	req.Equal(defaultLimit, q.WithLimit(0).Limit)
}
