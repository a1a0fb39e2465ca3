package services

import (
	"context"
	"log/slog"
	"match-chat/contract"
	"match-chat/domain"
	"match-chat/repositories"
	"time"

	"github.com/samber/lo"
)

const (
	SourceProvider = "provider"
	SourceFallback = "fallback"
)

type Recommendation struct {
	UserID string  `json:"userId"`
	Score  float64 `json:"score"`
	Source string  `json:"source"`
}

type IRecommendationService interface {
	Recommend(ctx context.Context, userID string, limit int) ([]Recommendation, error)
}

// RecommendationService asks the external provider for candidates and falls back
// to the most recently active known users when the provider fails, times out or has nothing.
type RecommendationService struct {
	provider contract.RecommendationProvider
	matches  repositories.IMatchRepository
	users    repositories.IUserRepository
	timeout  time.Duration
	log      *slog.Logger
}

// NewRecommendationService accepts a nil provider, in which case only the fallback is used.
func NewRecommendationService(provider contract.RecommendationProvider, matches repositories.IMatchRepository,
	users repositories.IUserRepository, timeout time.Duration, log *slog.Logger) *RecommendationService {
	return &RecommendationService{provider: provider, matches: matches, users: users, timeout: timeout, log: log}
}

func (s *RecommendationService) Recommend(ctx context.Context, userID string, limit int) ([]Recommendation, error) {
	limit = domain.PageRequest{Limit: limit}.Normalize().Limit
	exclude, err := s.swiped(ctx, userID)
	if err != nil {
		return nil, err
	}

	if s.provider != nil {
		if recs := s.fromProvider(ctx, userID, exclude, limit); len(recs) > 0 {
			return recs, nil
		}
	}

	users, err := s.users.ListMostRecent(ctx, exclude, limit)
	if err != nil {
		return nil, err
	}
	return lo.Map(users, func(u domain.User, _ int) Recommendation {
		return Recommendation{UserID: u.ID, Source: SourceFallback}
	}), nil
}

func (s *RecommendationService) fromProvider(ctx context.Context, userID string, exclude []string, limit int) []Recommendation {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	candidates, err := s.provider.Recommend(ctx, contract.RecommendationRequest{
		UserID:     userID,
		ExcludeIDs: exclude,
		Limit:      limit,
	})
	if err != nil {
		s.log.Warn("Recommendation provider failed, using fallback", "user_id", userID, "error", err)
		return nil
	}
	excluded := lo.Keyify(exclude)
	recs := make([]Recommendation, 0, len(candidates))
	for _, c := range lo.UniqBy(candidates, func(c contract.Candidate) string { return c.UserID }) {
		if _, skip := excluded[c.UserID]; skip || c.UserID == "" {
			continue
		}
		recs = append(recs, Recommendation{UserID: c.UserID, Score: c.Score, Source: SourceProvider})
	}
	if len(recs) == 0 {
		s.log.Info("No provider recommendation, using fallback", "user_id", userID)
	}
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs
}

// swiped returns the caller and every user they already share a match with.
func (s *RecommendationService) swiped(ctx context.Context, userID string) ([]string, error) {
	matches, err := s.matches.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := lo.Map(matches, func(m domain.Match, _ int) string { return m.Counterpart(userID) })
	return lo.Uniq(append([]string{userID}, ids...)), nil
}
