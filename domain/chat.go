package domain

import (
	"time"

	"github.com/samber/lo"
)

// Chat is bound one-to-one with an accepted Match and shares its participants.
// UnreadCount is assembled from the per-participant counters on read.
type Chat struct {
	ID            string         `json:"id" dynamodbav:"id"`
	MatchID       string         `json:"matchId" dynamodbav:"matchId"`
	Participants  []string       `json:"participants" dynamodbav:"participants"`
	LastMessageID string         `json:"lastMessageId,omitempty" dynamodbav:"lastMessageId,omitempty"`
	LastMessageAt *time.Time     `json:"lastMessageAt,omitempty" dynamodbav:"lastMessageAt,omitempty"`
	UnreadCount   map[string]int `json:"unreadCount" dynamodbav:"-"`
	IsActive      bool           `json:"isActive" dynamodbav:"isActive"`
	CreatedAt     time.Time      `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt" dynamodbav:"updatedAt"`
}

func NewChat(match Match, now time.Time) Chat {
	return Chat{
		ID:           match.ChatID,
		MatchID:      match.ID,
		Participants: []string{match.UserA, match.UserB},
		UnreadCount:  map[string]int{match.UserA: 0, match.UserB: 0},
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (c Chat) HasParticipant(userID string) bool {
	return lo.Contains(c.Participants, userID)
}

// Others returns every participant but userID.
func (c Chat) Others(userID string) []string {
	return lo.Without(c.Participants, userID)
}
