//go:generate go run go.uber.org/mock/mockgen -source=match.go -destination=../mocks/mock_match_repository.go -package=mocks
package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"match-chat/domain"
	"match-chat/errors"

	"github.com/dgraph-io/badger/v4"
)

// SwapPairFunc computes the next state of a pair row. current is nil when the pair has no row.
// Returning nil leaves the store untouched.
type SwapPairFunc func(current *domain.Match) (*domain.Match, error)

type SwapFunc func(current domain.Match) (domain.Match, error)

type IMatchRepository interface {
	SwapPair(ctx context.Context, userA, userB string, fn SwapPairFunc) (*domain.Match, error)
	Swap(ctx context.Context, matchID string, fn SwapFunc) (domain.Match, error)
	Get(ctx context.Context, matchID string) (domain.Match, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Match, error)
}

type MatchRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMatchRepository(db *badger.DB, log *slog.Logger) *MatchRepository {
	return &MatchRepository{db: db, log: log}
}

func matchKey(id string) string { return "match:" + id }

// pairKey is the uniqueness constraint: one row per unordered pair.
func pairKey(a, b string) string {
	lo, hi := domain.PairKey(a, b)
	return fmt.Sprintf("pair:%s:%s", lo, hi)
}

func matchIndexPrefix(userID string) string { return fmt.Sprintf("idx:match:%s:", userID) }

// SwapPair reads the pair row and writes fn's answer in the same transaction.
// Two users liking each other at the same time both read the pair key, so one
// of the commits conflicts and is replayed against the row the other one wrote.
func (r *MatchRepository) SwapPair(ctx context.Context, userA, userB string, fn SwapPairFunc) (*domain.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var written *domain.Match
	err := update(r.db, func(txn *badger.Txn) error {
		written = nil
		var current *domain.Match
		id, err := getString(txn, pairKey(userA, userB))
		switch {
		case err == nil:
			var m domain.Match
			if err := getJSON(txn, matchKey(id), &m); err != nil {
				return err
			}
			current = &m
		case !errors.Is(err, errors.ErrNotFound):
			return err
		}

		next, err := fn(current)
		if err != nil || next == nil {
			return err
		}
		if current == nil {
			if err := r.index(txn, *next); err != nil {
				return err
			}
		}
		if err := setJSON(txn, matchKey(next.ID), next); err != nil {
			return err
		}
		written = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return written, nil
}

func (r *MatchRepository) index(txn *badger.Txn, m domain.Match) error {
	if err := txn.Set([]byte(pairKey(m.UserA, m.UserB)), []byte(m.ID)); err != nil {
		return err
	}
	for _, userID := range []string{m.UserA, m.UserB} {
		if err := txn.Set([]byte(matchIndexPrefix(userID)+m.ID), nil); err != nil {
			return err
		}
	}
	return nil
}

func (r *MatchRepository) Swap(ctx context.Context, matchID string, fn SwapFunc) (domain.Match, error) {
	if err := ctx.Err(); err != nil {
		return domain.Match{}, err
	}
	var written domain.Match
	err := update(r.db, func(txn *badger.Txn) error {
		var current domain.Match
		if err := getJSON(txn, matchKey(matchID), &current); err != nil {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		written = next
		return setJSON(txn, matchKey(matchID), next)
	})
	return written, err
}

func (r *MatchRepository) Get(ctx context.Context, matchID string) (domain.Match, error) {
	if err := ctx.Err(); err != nil {
		return domain.Match{}, err
	}
	var m domain.Match
	err := r.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, matchKey(matchID), &m)
	})
	return m, err
}

func (r *MatchRepository) ListByUser(ctx context.Context, userID string) ([]domain.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var matches []domain.Match
	err := r.db.View(func(txn *badger.Txn) error {
		for _, id := range suffixes(txn, matchIndexPrefix(userID)) {
			var m domain.Match
			if err := getJSON(txn, matchKey(id), &m); err != nil {
				r.log.Warn("Dangling match index", "user_id", userID, "match_id", id, "error", err)
				continue
			}
			matches = append(matches, m)
		}
		return nil
	})
	return matches, err
}
