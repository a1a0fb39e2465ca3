package services

import (
	"context"
	"match-chat/domain"
	"match-chat/repositories"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Clock is injected so tests can pin time.
type Clock func() time.Time

func UTCClock() time.Time { return time.Now().UTC() }

// NewIDs allocates random identifiers for matches and chats.
func NewIDs() domain.IDs {
	return domain.IDs{MatchID: uuid.NewString, ChatID: uuid.NewString}
}

// contactsOf returns the counterparts of every accepted match of userID.
func contactsOf(ctx context.Context, matches repositories.IMatchRepository, userID string) ([]string, error) {
	all, err := matches.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	accepted := lo.Filter(all, func(m domain.Match, _ int) bool { return m.Status == domain.MatchAccepted })
	return lo.Uniq(lo.Map(accepted, func(m domain.Match, _ int) string { return m.Counterpart(userID) })), nil
}
