package dynamo

import (
	"context"
	"fmt"
	"log/slog"
	"match-chat/domain"
	"match-chat/errors"
	"match-chat/repositories"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var _ repositories.IMatchRepository = (*MatchRepository)(nil)

type MatchRepository struct {
	table Table
	log   *slog.Logger
}

func NewMatchRepository(table Table, log *slog.Logger) *MatchRepository {
	return &MatchRepository{table: table, log: log}
}

type matchPointer struct {
	PairPK string `dynamodbav:"pairPk"`
}

func pairPK(a, b string) string {
	lo, hi := domain.PairKey(a, b)
	return fmt.Sprintf("PAIR#%s#%s", lo, hi)
}

func (r *MatchRepository) SwapPair(ctx context.Context, userA, userB string, fn repositories.SwapPairFunc) (*domain.Match, error) {
	pk := pairPK(userA, userB)
	for attempt := 0; attempt < maxConditionRetries; attempt++ {
		var current domain.Match
		found, err := r.table.get(ctx, pk, "MATCH", &current)
		if err != nil {
			return nil, err
		}
		var cur *domain.Match
		if found {
			cur = &current
		}
		next, err := fn(cur)
		if err != nil || next == nil {
			return nil, err
		}
		if cur == nil {
			err = r.create(ctx, pk, *next)
		} else {
			err = r.put(ctx, pk, *next, cur.Version)
		}
		if isConditionFailure(err) {
			r.log.Debug("Pair row changed concurrently, retrying", "pair", pk, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, err
		}
		next.Version++
		return next, nil
	}
	return nil, fmt.Errorf("%w: pair %s kept changing", errors.ErrConflict, pk)
}

// create writes the pair row together with its lookups, failing if the pair already exists.
func (r *MatchRepository) create(ctx context.Context, pk string, m domain.Match) error {
	m.Version = 1
	row, err := item(pk, "MATCH", m)
	if err != nil {
		return err
	}
	pointer, err := item("MATCH#"+m.ID, "POINTER", matchPointer{PairPK: pk})
	if err != nil {
		return err
	}
	writes := []types.TransactWriteItem{
		{Put: &types.Put{
			TableName:           aws.String(r.table.name),
			Item:                row,
			ConditionExpression: aws.String("attribute_not_exists(pk)"),
		}},
		{Put: &types.Put{TableName: aws.String(r.table.name), Item: pointer}},
	}
	for _, userID := range []string{m.UserA, m.UserB} {
		idx, err := item("USER#"+userID, "MATCH#"+m.ID, matchPointer{PairPK: pk})
		if err != nil {
			return err
		}
		writes = append(writes, types.TransactWriteItem{Put: &types.Put{TableName: aws.String(r.table.name), Item: idx}})
	}
	_, err = r.table.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: writes})
	return err
}

// put replaces the pair row only if nobody bumped its version since it was read.
func (r *MatchRepository) put(ctx context.Context, pk string, m domain.Match, readVersion int64) error {
	m.Version = readVersion + 1
	row, err := item(pk, "MATCH", m)
	if err != nil {
		return err
	}
	_, err = r.table.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table.name),
		Item:                row,
		ConditionExpression: aws.String("#v = :v"),
		ExpressionAttributeNames: map[string]string{
			"#v": "version",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberN{Value: fmt.Sprint(readVersion)},
		},
	})
	return err
}

func (r *MatchRepository) pairOf(ctx context.Context, matchID string) (string, error) {
	var pointer matchPointer
	found, err := r.table.get(ctx, "MATCH#"+matchID, "POINTER", &pointer)
	if err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("%w: match %s", errors.ErrNotFound, matchID)
	}
	return pointer.PairPK, nil
}

func (r *MatchRepository) Swap(ctx context.Context, matchID string, fn repositories.SwapFunc) (domain.Match, error) {
	pk, err := r.pairOf(ctx, matchID)
	if err != nil {
		return domain.Match{}, err
	}
	for attempt := 0; attempt < maxConditionRetries; attempt++ {
		var current domain.Match
		found, err := r.table.get(ctx, pk, "MATCH", &current)
		if err != nil {
			return domain.Match{}, err
		}
		if !found {
			return domain.Match{}, fmt.Errorf("%w: match %s", errors.ErrNotFound, matchID)
		}
		next, err := fn(current)
		if err != nil {
			return domain.Match{}, err
		}
		err = r.put(ctx, pk, next, current.Version)
		if isConditionFailure(err) {
			continue
		}
		if err != nil {
			return domain.Match{}, err
		}
		next.Version = current.Version + 1
		return next, nil
	}
	return domain.Match{}, fmt.Errorf("%w: match %s kept changing", errors.ErrConflict, matchID)
}

func (r *MatchRepository) Get(ctx context.Context, matchID string) (domain.Match, error) {
	pk, err := r.pairOf(ctx, matchID)
	if err != nil {
		return domain.Match{}, err
	}
	var m domain.Match
	found, err := r.table.get(ctx, pk, "MATCH", &m)
	if err != nil {
		return domain.Match{}, err
	}
	if !found {
		return domain.Match{}, fmt.Errorf("%w: match %s", errors.ErrNotFound, matchID)
	}
	return m, nil
}

func (r *MatchRepository) ListByUser(ctx context.Context, userID string) ([]domain.Match, error) {
	items, err := r.table.queryPrefix(ctx, "USER#"+userID, "MATCH#", true)
	if err != nil {
		return nil, err
	}
	var matches []domain.Match
	for _, it := range items {
		pkAttr, ok := it["pairPk"].(*types.AttributeValueMemberS)
		if !ok {
			continue
		}
		var m domain.Match
		found, err := r.table.get(ctx, pkAttr.Value, "MATCH", &m)
		if err != nil {
			return nil, err
		}
		if !found {
			r.log.Warn("Dangling match index", "user_id", userID, "pair", pkAttr.Value)
			continue
		}
		matches = append(matches, m)
	}
	return matches, nil
}
