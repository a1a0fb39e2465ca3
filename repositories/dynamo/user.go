package dynamo

import (
	"context"
	"fmt"
	"log/slog"
	"match-chat/domain"
	"match-chat/errors"
	"match-chat/repositories"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/samber/lo"
)

var _ repositories.IUserRepository = (*UserRepository)(nil)

type UserRepository struct {
	table Table
	log   *slog.Logger
}

func NewUserRepository(table Table, log *slog.Logger) *UserRepository {
	return &UserRepository{table: table, log: log}
}

func (r *UserRepository) Touch(ctx context.Context, userID string, at time.Time) error {
	_, err := r.table.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.table.name),
		Key:              key("USER#"+userID, "PROFILE"),
		UpdateExpression: aws.String("SET #id = :id, lastSeenAt = :at, createdAt = if_not_exists(createdAt, :at)"),
		ExpressionAttributeNames: map[string]string{
			"#id": "id",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": str(userID),
			":at": timeValue(at),
		},
	})
	return err
}

func (r *UserRepository) Get(ctx context.Context, userID string) (domain.User, error) {
	var user domain.User
	found, err := r.table.get(ctx, "USER#"+userID, "PROFILE", &user)
	if err != nil {
		return domain.User{}, err
	}
	if !found {
		return domain.User{}, fmt.Errorf("%w: user %s", errors.ErrNotFound, userID)
	}
	return user, nil
}

func (r *UserRepository) ListMostRecent(ctx context.Context, exclude []string, limit int) ([]domain.User, error) {
	paginator := dynamodb.NewScanPaginator(r.table.api, &dynamodb.ScanInput{
		TableName:                 aws.String(r.table.name),
		FilterExpression:          aws.String("sk = :profile"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":profile": str("PROFILE")},
	})
	var users []domain.User
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var batch []domain.User
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, err
		}
		users = append(users, batch...)
	}
	users = lo.Filter(users, func(u domain.User, _ int) bool { return !lo.Contains(exclude, u.ID) })
	sort.SliceStable(users, func(i, j int) bool {
		if !users[i].LastSeenAt.Equal(users[j].LastSeenAt) {
			return users[i].LastSeenAt.After(users[j].LastSeenAt)
		}
		return users[i].ID < users[j].ID
	})
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}
