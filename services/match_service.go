package services

import (
	"context"
	"log/slog"
	"match-chat/contract"
	"match-chat/domain"
	"match-chat/domain/event"
	"match-chat/repositories"
	"sort"

	"github.com/samber/lo"
)

type IMatchService interface {
	RecordSwipe(ctx context.Context, swipe domain.Swipe) (domain.SwipeOutcome, error)
	Accept(ctx context.Context, matchID, userID string) (domain.Match, error)
	Reject(ctx context.Context, matchID, userID string) (domain.Match, error)
	Confirmed(ctx context.Context, userID string, page domain.PageRequest) (domain.Page[domain.ConfirmedMatch], error)
	PendingReceived(ctx context.Context, userID string, page domain.PageRequest) (domain.Page[domain.Match], error)
	Sent(ctx context.Context, userID string, status *domain.MatchStatus, page domain.PageRequest) (domain.Page[domain.Match], error)
	Contacts(ctx context.Context, userID string) ([]string, error)
}

// PresenceReader is the part of presence the confirmed listing needs.
type PresenceReader interface {
	IsConnected(userID string) bool
	IsRecentlyActive(ctx context.Context, userID string) bool
}

type MatchService struct {
	matches   repositories.IMatchRepository
	chats     repositories.IChatRepository
	presence  PresenceReader
	publisher contract.EventPublisher
	ids       domain.IDs
	now       Clock
	log       *slog.Logger
}

func NewMatchService(matches repositories.IMatchRepository, chats repositories.IChatRepository,
	presence PresenceReader, publisher contract.EventPublisher,
	ids domain.IDs, now Clock, log *slog.Logger) *MatchService {
	return &MatchService{
		matches:   matches,
		chats:     chats,
		presence:  presence,
		publisher: publisher,
		ids:       ids,
		now:       now,
		log:       log,
	}
}

// RecordSwipe applies the swipe to the pair row in a single compare-and-swap.
// A mutual like accepts the existing row, its id stays the canonical match id.
func (s *MatchService) RecordSwipe(ctx context.Context, swipe domain.Swipe) (domain.SwipeOutcome, error) {
	if err := swipe.Validate(); err != nil {
		return domain.SwipeOutcome{}, err
	}
	var outcome domain.SwipeOutcome
	_, err := s.matches.SwapPair(ctx, swipe.Actor, swipe.Target, func(current *domain.Match) (*domain.Match, error) {
		next, o, err := swipe.Apply(current, s.ids, s.now())
		outcome = o
		return next, err
	})
	if err != nil {
		return domain.SwipeOutcome{}, err
	}

	switch outcome.Result {
	case domain.PendingMatch:
		s.publisher.Publish(event.MatchRequested{Match: *outcome.Match})
	case domain.MutualMatch:
		s.publisher.Publish(event.MatchAccepted{Match: *outcome.Match})
	}
	s.log.Debug("Swipe recorded",
		"user_id", swipe.Actor, "target_id", swipe.Target,
		"action", swipe.Action, "result", outcome.Result)
	return outcome, nil
}

func (s *MatchService) Accept(ctx context.Context, matchID, userID string) (domain.Match, error) {
	match, err := s.matches.Swap(ctx, matchID, func(current domain.Match) (domain.Match, error) {
		return current.Accept(userID, s.ids.ChatID(), s.now())
	})
	if err != nil {
		return domain.Match{}, err
	}
	s.publisher.Publish(event.MatchAccepted{Match: match})
	return match, nil
}

func (s *MatchService) Reject(ctx context.Context, matchID, userID string) (domain.Match, error) {
	return s.matches.Swap(ctx, matchID, func(current domain.Match) (domain.Match, error) {
		return current.Reject(userID, s.now())
	})
}

func (s *MatchService) Confirmed(ctx context.Context, userID string, page domain.PageRequest) (domain.Page[domain.ConfirmedMatch], error) {
	accepted := domain.MatchAccepted
	matches, err := s.list(ctx, userID, domain.MatchFilter{Status: &accepted, Role: domain.RoleAny}, page)
	if err != nil {
		return domain.Page[domain.ConfirmedMatch]{}, err
	}
	views := make([]domain.ConfirmedMatch, 0, len(matches.Items))
	for _, m := range matches.Items {
		other := m.Counterpart(userID)
		unread := 0
		if m.ChatID != "" {
			if unread, err = s.chats.UnreadCount(ctx, m.ChatID, userID); err != nil {
				return domain.Page[domain.ConfirmedMatch]{}, err
			}
		}
		views = append(views, domain.ConfirmedMatch{
			Match:            m,
			OtherUserID:      other,
			IsConnected:      s.presence.IsConnected(other),
			IsRecentlyActive: s.presence.IsRecentlyActive(ctx, other),
			UnreadCount:      unread,
		})
	}
	return domain.Page[domain.ConfirmedMatch]{Items: views, Pagination: matches.Pagination}, nil
}

func (s *MatchService) PendingReceived(ctx context.Context, userID string, page domain.PageRequest) (domain.Page[domain.Match], error) {
	pending := domain.MatchPending
	return s.list(ctx, userID, domain.MatchFilter{Status: &pending, Role: domain.RoleReceiver}, page)
}

// Sent lists what userID initiated, optionally narrowed to one status.
func (s *MatchService) Sent(ctx context.Context, userID string, status *domain.MatchStatus, page domain.PageRequest) (domain.Page[domain.Match], error) {
	return s.list(ctx, userID, domain.MatchFilter{Status: status, Role: domain.RoleInitiator}, page)
}

func (s *MatchService) Contacts(ctx context.Context, userID string) ([]string, error) {
	return contactsOf(ctx, s.matches, userID)
}

func (s *MatchService) list(ctx context.Context, userID string, filter domain.MatchFilter, page domain.PageRequest) (domain.Page[domain.Match], error) {
	all, err := s.matches.ListByUser(ctx, userID)
	if err != nil {
		return domain.Page[domain.Match]{}, err
	}
	kept := lo.Filter(all, func(m domain.Match, _ int) bool { return filter.Keep(userID, m) })
	sort.SliceStable(kept, func(i, j int) bool {
		a, b := filter.RecencyOf(kept[i]), filter.RecencyOf(kept[j])
		if !a.Equal(b) {
			return a.After(b)
		}
		return kept[i].ID < kept[j].ID
	})
	return domain.Paginate(kept, page), nil
}
