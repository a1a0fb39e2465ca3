package domain

import (
	"fmt"
	"match-chat/errors"
	"time"
)

type SwipeAction string

const (
	Like      SwipeAction = "like"
	SuperLike SwipeAction = "superlike"
	Dislike   SwipeAction = "dislike"
)

func (a SwipeAction) Valid() bool {
	return a == Like || a == SuperLike || a == Dislike
}

func (a SwipeAction) IsPositive() bool {
	return a == Like || a == SuperLike
}

type SwipeResult string

const (
	NoMatch      SwipeResult = "no-match"
	PendingMatch SwipeResult = "pending"
	MutualMatch  SwipeResult = "mutual"
)

type SwipeOutcome struct {
	Result SwipeResult `json:"result"`
	Match  *Match      `json:"match,omitempty"`
}

// Swipe is one user's decision about another one.
type Swipe struct {
	Actor  string
	Target string
	Action SwipeAction
	Score  float64
}

func (s Swipe) Validate() error {
	if s.Actor == "" || s.Target == "" {
		return fmt.Errorf("%w: swipe needs an actor and a target", errors.ErrInvalidPayload)
	}
	if err := ValidateID(s.Actor); err != nil {
		return err
	}
	if err := ValidateID(s.Target); err != nil {
		return err
	}
	if s.Actor == s.Target {
		return fmt.Errorf("%w: cannot swipe yourself", errors.ErrInvalidOperation)
	}
	if !s.Action.Valid() {
		return fmt.Errorf("%w: unknown swipe action %q", errors.ErrInvalidPayload, s.Action)
	}
	if s.Score < 0 || s.Score > 1 {
		return fmt.Errorf("%w: score %.2f out of [0,1]", errors.ErrInvalidOperation, s.Score)
	}
	return nil
}

// IDs allocates identifiers for a swipe transition.
type IDs struct {
	MatchID func() string
	ChatID  func() string
}

// Apply computes the next state of the pair row.
// current is nil when the pair has never been swiped.
// A nil returned match means nothing has to be written.
//
// On a pending row initiated by the target, a like or superlike accepts it and a dislike
// rejects it (outcome no-match). Any other swipe on an existing row is ErrConflict.
func (s Swipe) Apply(current *Match, ids IDs, now time.Time) (*Match, SwipeOutcome, error) {
	if current == nil {
		if !s.Action.IsPositive() {
			return nil, SwipeOutcome{Result: NoMatch}, nil
		}
		m := Match{
			ID:          ids.MatchID(),
			UserA:       s.Actor,
			UserB:       s.Target,
			Status:      MatchPending,
			Score:       s.Score,
			IsSuperLike: s.Action == SuperLike,
			InitiatedBy: s.Actor,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return &m, SwipeOutcome{Result: PendingMatch, Match: &m}, nil
	}

	reversePending := current.Status == MatchPending &&
		current.InitiatedBy == s.Target &&
		current.UserB == s.Actor
	if !reversePending {
		return nil, SwipeOutcome{}, fmt.Errorf("%w: pair already has a %s match", errors.ErrConflict, current.Status)
	}

	next := *current
	next.UpdatedAt = now
	if !s.Action.IsPositive() {
		next.Status = MatchRejected
		return &next, SwipeOutcome{Result: NoMatch, Match: &next}, nil
	}
	next.Status = MatchAccepted
	next.ChatID = ids.ChatID()
	next.IsSuperLike = next.IsSuperLike || s.Action == SuperLike
	return &next, SwipeOutcome{Result: MutualMatch, Match: &next}, nil
}
