package repositories

import (
	"context"
	"match-chat/domain"
	"match-chat/errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func swapWith(swipe domain.Swipe) (SwapPairFunc, *domain.SwipeOutcome) {
	outcome := &domain.SwipeOutcome{}
	ids := domain.IDs{MatchID: uuid.NewString, ChatID: uuid.NewString}
	return func(current *domain.Match) (*domain.Match, error) {
		next, o, err := swipe.Apply(current, ids, time.Now().UTC())
		*outcome = o
		return next, err
	}, outcome
}

func TestMatchRepository_SwapPair_SingleRowPerPair(t *testing.T) {
	req := require.New(t)
	db, log := openDB(t)
	repo := NewMatchRepository(db, log)
	ctx := context.Background()

	// Given u1 likes u2
	fn, outcome := swapWith(domain.Swipe{Actor: "u1", Target: "u2", Action: domain.Like})
	first, err := repo.SwapPair(ctx, "u1", "u2", fn)
	req.NoError(err)
	req.Equal(domain.PendingMatch, outcome.Result)

	// When u2 likes u1, addressing the pair the other way round
	fn, outcome = swapWith(domain.Swipe{Actor: "u2", Target: "u1", Action: domain.Like})
	second, err := repo.SwapPair(ctx, "u2", "u1", fn)
	req.NoError(err)

	// Then the very same row is accepted
	req.Equal(domain.MutualMatch, outcome.Result)
	req.Equal(first.ID, second.ID)
	req.Equal(domain.MatchAccepted, second.Status)

	for _, user := range []string{"u1", "u2"} {
		matches, err := repo.ListByUser(ctx, user)
		req.NoError(err)
		req.Len(matches, 1)
		req.Equal(domain.MatchAccepted, matches[0].Status)
	}
}

func TestMatchRepository_SwapPair_NothingWritten(t *testing.T) {
	req := require.New(t)
	db, log := openDB(t)
	repo := NewMatchRepository(db, log)
	ctx := context.Background()

	fn, outcome := swapWith(domain.Swipe{Actor: "u1", Target: "u2", Action: domain.Dislike})
	written, err := repo.SwapPair(ctx, "u1", "u2", fn)

	req.NoError(err)
	req.Nil(written)
	req.Equal(domain.NoMatch, outcome.Result)
	matches, err := repo.ListByUser(ctx, "u1")
	req.NoError(err)
	req.Empty(matches)
}

func TestMatchRepository_SwapPair_ConcurrentLikes(t *testing.T) {
	req := require.New(t)
	db, log := openDB(t)
	repo := NewMatchRepository(db, log)
	ctx := context.Background()

	// When both users like each other at the same time
	var wg sync.WaitGroup
	results := make([]domain.SwipeResult, 2)
	for i, pair := range [][2]string{{"u1", "u2"}, {"u2", "u1"}} {
		wg.Add(1)
		go func(i int, actor, target string) {
			defer wg.Done()
			fn, outcome := swapWith(domain.Swipe{Actor: actor, Target: target, Action: domain.Like})
			_, err := repo.SwapPair(ctx, actor, target, fn)
			req.NoError(err)
			results[i] = outcome.Result
		}(i, pair[0], pair[1])
	}
	wg.Wait()

	// Then one swipe created the row and the other one accepted it
	req.ElementsMatch([]domain.SwipeResult{domain.PendingMatch, domain.MutualMatch}, results)
	matches, err := repo.ListByUser(ctx, "u1")
	req.NoError(err)
	req.Len(matches, 1)
	req.Equal(domain.MatchAccepted, matches[0].Status)
	req.NotEmpty(matches[0].ChatID)
}

func TestMatchRepository_Swap(t *testing.T) {
	req := require.New(t)
	db, log := openDB(t)
	repo := NewMatchRepository(db, log)
	ctx := context.Background()

	fn, _ := swapWith(domain.Swipe{Actor: "u1", Target: "u2", Action: domain.Like})
	pending, err := repo.SwapPair(ctx, "u1", "u2", fn)
	req.NoError(err)

	// When the receiver rejects
	rejected, err := repo.Swap(ctx, pending.ID, func(current domain.Match) (domain.Match, error) {
		return current.Reject("u2", time.Now())
	})
	req.NoError(err)
	req.Equal(domain.MatchRejected, rejected.Status)

	// Then the stored row is rejected
	stored, err := repo.Get(ctx, pending.ID)
	req.NoError(err)
	req.Equal(domain.MatchRejected, stored.Status)

	// And a guard failure leaves it untouched
	_, err = repo.Swap(ctx, pending.ID, func(current domain.Match) (domain.Match, error) {
		return current.Accept("u2", "chat", time.Now())
	})
	req.ErrorIs(err, errors.ErrInvalidState)

	_, err = repo.Get(ctx, "missing")
	req.ErrorIs(err, errors.ErrNotFound)
}
