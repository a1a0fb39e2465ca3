package dynamo_test

import (
	"context"
	"log/slog"
	"match-chat/domain"
	"match-chat/errors"
	"match-chat/mocks"
	"match-chat/repositories/dynamo"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const tableName = "match-chat-test"

func newTable(t *testing.T) (*mocks.MockDynamoAPI, dynamo.Table, *slog.Logger) {
	t.Helper()
	ctrl := gomock.NewController(t)
	api := mocks.NewMockDynamoAPI(ctrl)
	return api, dynamo.NewTable(api, tableName), logs.GetLoggerFromLevel(slog.LevelDebug)
}

func itemOf(t *testing.T, v any, pk, sk string) map[string]types.AttributeValue {
	t.Helper()
	av, err := attributevalue.MarshalMap(v)
	require.NoError(t, err)
	av["pk"] = &types.AttributeValueMemberS{Value: pk}
	av["sk"] = &types.AttributeValueMemberS{Value: sk}
	return av
}

func TestMatchRepository_SwapPair_CreatesRowWithIndexes(t *testing.T) {
	req := require.New(t)
	api, table, log := newTable(t)
	repo := dynamo.NewMatchRepository(table, log)
	now := time.Now().UTC()

	// Given no row exists for the pair
	api.EXPECT().GetItem(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
			pk := in.Key["pk"].(*types.AttributeValueMemberS).Value
			req.Equal("PAIR#alice#bob", pk)
			req.True(aws.ToBool(in.ConsistentRead))
			return &dynamodb.GetItemOutput{}, nil
		})

	// Then the row, the pointer and both user indexes are written in one transaction
	api.EXPECT().TransactWriteItems(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
			req.Len(in.TransactItems, 4)
			req.Equal("attribute_not_exists(pk)", aws.ToString(in.TransactItems[0].Put.ConditionExpression))
			version := in.TransactItems[0].Put.Item["version"].(*types.AttributeValueMemberN).Value
			req.Equal("1", version)
			return &dynamodb.TransactWriteItemsOutput{}, nil
		})

	// When bob likes alice for the first time
	swipe := domain.Swipe{Actor: "bob", Target: "alice", Action: domain.Like, Score: 0.5}
	ids := domain.IDs{MatchID: func() string { return "m-1" }, ChatID: func() string { return "c-1" }}
	got, err := repo.SwapPair(context.Background(), "bob", "alice", func(current *domain.Match) (*domain.Match, error) {
		next, _, err := swipe.Apply(current, ids, now)
		return next, err
	})

	req.NoError(err)
	req.NotNil(got)
	req.Equal("m-1", got.ID)
	req.Equal(domain.MatchPending, got.Status)
	req.Equal("bob", got.UserA)
}

func TestMatchRepository_SwapPair_RetriesOnConditionFailure(t *testing.T) {
	req := require.New(t)
	api, table, log := newTable(t)
	repo := dynamo.NewMatchRepository(table, log)
	now := time.Now().UTC()

	pending := domain.Match{
		ID:          "m-1",
		UserA:       "alice",
		UserB:       "bob",
		Status:      domain.MatchPending,
		InitiatedBy: "alice",
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     3,
	}
	stored := itemOf(t, pending, "PAIR#alice#bob", "MATCH")
	stored["version"] = &types.AttributeValueMemberN{Value: "3"}

	// Given a pending row that is modified concurrently once
	api.EXPECT().GetItem(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&dynamodb.GetItemOutput{Item: stored}, nil).Times(2)
	gomock.InOrder(
		api.EXPECT().PutItem(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, &types.ConditionalCheckFailedException{Message: aws.String("version moved")}),
		api.EXPECT().PutItem(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
				req.Equal("#v = :v", aws.ToString(in.ConditionExpression))
				req.Equal("3", in.ExpressionAttributeValues[":v"].(*types.AttributeValueMemberN).Value)
				req.Equal("4", in.Item["version"].(*types.AttributeValueMemberN).Value)
				return &dynamodb.PutItemOutput{}, nil
			}),
	)

	// When bob likes back
	swipe := domain.Swipe{Actor: "bob", Target: "alice", Action: domain.Like}
	ids := domain.IDs{MatchID: func() string { return "unused" }, ChatID: func() string { return "c-1" }}
	got, err := repo.SwapPair(context.Background(), "bob", "alice", func(current *domain.Match) (*domain.Match, error) {
		next, _, err := swipe.Apply(current, ids, now)
		return next, err
	})

	// Then the second attempt lands and the match becomes mutual
	req.NoError(err)
	req.Equal(domain.MatchAccepted, got.Status)
	req.Equal("c-1", got.ChatID)
}

func TestMatchRepository_Get_UnknownID(t *testing.T) {
	req := require.New(t)
	api, table, log := newTable(t)
	repo := dynamo.NewMatchRepository(table, log)

	api.EXPECT().GetItem(gomock.Any(), gomock.Any(), gomock.Any()).Return(&dynamodb.GetItemOutput{}, nil)

	_, err := repo.Get(context.Background(), "ghost")
	req.ErrorIs(err, errors.ErrNotFound)
}

func TestChatRepository_IncrementUnread_UsesAtomicAdd(t *testing.T) {
	req := require.New(t)
	api, table, log := newTable(t)
	repo := dynamo.NewChatRepository(table, log)

	// Given the counter store answers with the updated value
	api.EXPECT().UpdateItem(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
			req.Equal("ADD #c :one", aws.ToString(in.UpdateExpression))
			req.Equal("UNREAD#bob", in.Key["sk"].(*types.AttributeValueMemberS).Value)
			req.Equal(types.ReturnValueUpdatedNew, in.ReturnValues)
			return &dynamodb.UpdateItemOutput{
				Attributes: map[string]types.AttributeValue{"count": &types.AttributeValueMemberN{Value: "3"}},
			}, nil
		})

	// When a message lands for bob
	counts, err := repo.IncrementUnread(context.Background(), "c-1", "bob")

	// Then the new value is returned
	req.NoError(err)
	req.Equal(map[string]int{"bob": 3}, counts)
}

func TestChatRepository_GetOrCreate_ExistingChatWins(t *testing.T) {
	req := require.New(t)
	api, table, log := newTable(t)
	repo := dynamo.NewChatRepository(table, log)
	now := time.Now().UTC()
	existing := domain.Chat{ID: "c-1", MatchID: "m-1", Participants: []string{"alice", "bob"}, IsActive: true, CreatedAt: now, UpdatedAt: now}

	// Given another writer already created the chat of the match
	api.EXPECT().TransactWriteItems(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, &types.TransactionCanceledException{Message: aws.String("ConditionalCheckFailed")})
	api.EXPECT().GetItem(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
			switch in.Key["pk"].(*types.AttributeValueMemberS).Value {
			case "MATCHCHAT#m-1":
				return &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
					"chatId": &types.AttributeValueMemberS{Value: "c-1"},
				}}, nil
			default:
				return &dynamodb.GetItemOutput{Item: itemOf(t, existing, "CHAT#c-1", "META")}, nil
			}
		}).Times(2)
	api.EXPECT().Query(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{
			{"sk": &types.AttributeValueMemberS{Value: "UNREAD#alice"}, "count": &types.AttributeValueMemberN{Value: "2"}},
			{"sk": &types.AttributeValueMemberS{Value: "UNREAD#bob"}, "count": &types.AttributeValueMemberN{Value: "0"}},
		}}, nil)

	// When a second creation races in
	chat, created, err := repo.GetOrCreate(context.Background(), domain.Chat{ID: "c-1", MatchID: "m-1", Participants: []string{"alice", "bob"}})

	// Then the stored chat is returned untouched
	req.NoError(err)
	req.False(created)
	req.Equal("c-1", chat.ID)
	req.Equal(map[string]int{"alice": 2, "bob": 0}, chat.UnreadCount)
}

func TestMessageRepository_List_HidesDeletedMessages(t *testing.T) {
	req := require.New(t)
	api, table, log := newTable(t)
	repo := dynamo.NewMessageRepository(table, log)
	now := time.Now().UTC()

	newer := domain.Message{ID: "m-2", ChatID: "c-1", SenderID: "bob", Content: "second", Type: domain.TextMessage, Status: domain.StatusSent, CreatedAt: now, UpdatedAt: now}
	deleted := domain.Message{ID: "m-x", ChatID: "c-1", SenderID: "bob", Content: domain.DeletedPlaceholder, Type: domain.TextMessage, IsDeleted: true, CreatedAt: now.Add(-time.Second), UpdatedAt: now}
	older := domain.Message{ID: "m-1", ChatID: "c-1", SenderID: "alice", Content: "first", Type: domain.TextMessage, Status: domain.StatusSent, CreatedAt: now.Add(-time.Minute), UpdatedAt: now}

	// Given the chat partition answers newest first
	api.EXPECT().Query(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			req.False(aws.ToBool(in.ScanIndexForward))
			return &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{
				itemOf(t, newer, "CHAT#c-1", "MSG#3#m-2"),
				itemOf(t, deleted, "CHAT#c-1", "MSG#2#m-x"),
				itemOf(t, older, "CHAT#c-1", "MSG#1#m-1"),
			}}, nil
		})

	// When the first page is listed
	page, err := repo.List(context.Background(), "c-1", domain.PageRequest{Page: 1, Limit: 20})

	// Then the deleted message is absent from items and total
	req.NoError(err)
	req.Len(page.Items, 2)
	req.Equal("m-2", page.Items[0].ID)
	req.Equal("m-1", page.Items[1].ID)
	req.Equal(2, page.Pagination.Total)
}

func TestMessageRepository_MarkRead_SkipsForeignAndAlreadyRead(t *testing.T) {
	req := require.New(t)
	api, table, log := newTable(t)
	repo := dynamo.NewMessageRepository(table, log)

	// Given three ids: one in the chat, one already read, one in another chat
	api.EXPECT().GetItem(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
			chat := "CHAT#c-1"
			if in.Key["pk"].(*types.AttributeValueMemberS).Value == "MSG#foreign" {
				chat = "CHAT#c-2"
			}
			return &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
				"chatPk": &types.AttributeValueMemberS{Value: chat},
				"msgSk":  &types.AttributeValueMemberS{Value: "MSG#1#x"},
			}}, nil
		}).Times(3)
	gomock.InOrder(
		api.EXPECT().UpdateItem(gomock.Any(), gomock.Any(), gomock.Any()).Return(&dynamodb.UpdateItemOutput{}, nil),
		api.EXPECT().UpdateItem(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, &types.ConditionalCheckFailedException{Message: aws.String("already read")}),
	)

	// When they are marked read
	updated, err := repo.MarkRead(context.Background(), "c-1", []string{"fresh", "seen", "foreign"}, time.Now().UTC())

	// Then only the fresh one is reported
	req.NoError(err)
	req.Equal([]string{"fresh"}, updated)
}
