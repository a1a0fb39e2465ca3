package dynamo

import (
	"context"
	"fmt"
	"log/slog"
	"match-chat/domain"
	"match-chat/errors"
	"match-chat/repositories"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var _ repositories.IChatRepository = (*ChatRepository)(nil)

type ChatRepository struct {
	table Table
	log   *slog.Logger
}

func NewChatRepository(table Table, log *slog.Logger) *ChatRepository {
	return &ChatRepository{table: table, log: log}
}

type chatPointer struct {
	ChatID string `dynamodbav:"chatId"`
}

type counter struct {
	Count int `dynamodbav:"count"`
}

func chatPK(id string) string { return "CHAT#" + id }

func unreadSK(userID string) string { return "UNREAD#" + userID }

func (r *ChatRepository) GetOrCreate(ctx context.Context, chat domain.Chat) (domain.Chat, bool, error) {
	err := r.create(ctx, chat)
	if isConditionFailure(err) {
		existing, err := r.GetByMatch(ctx, chat.MatchID)
		return existing, false, err
	}
	if err != nil {
		return domain.Chat{}, false, err
	}
	created := chat
	created.UnreadCount = make(map[string]int, len(chat.Participants))
	for _, userID := range chat.Participants {
		created.UnreadCount[userID] = 0
	}
	return created, true, nil
}

func (r *ChatRepository) create(ctx context.Context, chat domain.Chat) error {
	table := aws.String(r.table.name)
	pointer, err := item("MATCHCHAT#"+chat.MatchID, "CHAT", chatPointer{ChatID: chat.ID})
	if err != nil {
		return err
	}
	meta, err := item(chatPK(chat.ID), "META", chat)
	if err != nil {
		return err
	}
	writes := []types.TransactWriteItem{
		{Put: &types.Put{TableName: table, Item: pointer, ConditionExpression: aws.String("attribute_not_exists(pk)")}},
		{Put: &types.Put{TableName: table, Item: meta}},
	}
	for _, userID := range chat.Participants {
		idx, err := item("USER#"+userID, "CHAT#"+chat.ID, chatPointer{ChatID: chat.ID})
		if err != nil {
			return err
		}
		unread, err := item(chatPK(chat.ID), unreadSK(userID), counter{})
		if err != nil {
			return err
		}
		writes = append(writes,
			types.TransactWriteItem{Put: &types.Put{TableName: table, Item: idx}},
			types.TransactWriteItem{Put: &types.Put{TableName: table, Item: unread}},
		)
	}
	_, err = r.table.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: writes})
	return err
}

func (r *ChatRepository) Get(ctx context.Context, chatID string) (domain.Chat, error) {
	var chat domain.Chat
	found, err := r.table.get(ctx, chatPK(chatID), "META", &chat)
	if err != nil {
		return domain.Chat{}, err
	}
	if !found {
		return domain.Chat{}, fmt.Errorf("%w: chat %s", errors.ErrNotFound, chatID)
	}
	counters, err := r.table.queryPrefix(ctx, chatPK(chatID), "UNREAD#", true)
	if err != nil {
		return domain.Chat{}, err
	}
	chat.UnreadCount = make(map[string]int, len(counters))
	for _, it := range counters {
		sk, _ := it["sk"].(*types.AttributeValueMemberS)
		n, _ := it["count"].(*types.AttributeValueMemberN)
		if sk == nil || n == nil {
			continue
		}
		count, err := strconv.Atoi(n.Value)
		if err != nil {
			return domain.Chat{}, err
		}
		chat.UnreadCount[strings.TrimPrefix(sk.Value, "UNREAD#")] = count
	}
	return chat, nil
}

func (r *ChatRepository) GetByMatch(ctx context.Context, matchID string) (domain.Chat, error) {
	var pointer chatPointer
	found, err := r.table.get(ctx, "MATCHCHAT#"+matchID, "CHAT", &pointer)
	if err != nil {
		return domain.Chat{}, err
	}
	if !found {
		return domain.Chat{}, fmt.Errorf("%w: no chat for match %s", errors.ErrNotFound, matchID)
	}
	return r.Get(ctx, pointer.ChatID)
}

func (r *ChatRepository) ListIDsByUser(ctx context.Context, userID string) ([]string, error) {
	items, err := r.table.queryPrefix(ctx, "USER#"+userID, "CHAT#", true)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if id, ok := it["chatId"].(*types.AttributeValueMemberS); ok {
			ids = append(ids, id.Value)
		}
	}
	return ids, nil
}

func (r *ChatRepository) TouchLastMessage(ctx context.Context, chatID, messageID string, at time.Time) error {
	_, err := r.table.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.table.name),
		Key:                 key(chatPK(chatID), "META"),
		UpdateExpression:    aws.String("SET lastMessageId = :id, lastMessageAt = :at, updatedAt = :at"),
		ConditionExpression: aws.String("attribute_exists(pk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": str(messageID),
			":at": timeValue(at),
		},
	})
	if isConditionFailure(err) {
		return fmt.Errorf("%w: chat %s", errors.ErrNotFound, chatID)
	}
	return err
}

// IncrementUnread relies on the ADD action, which DynamoDB applies atomically per item.
func (r *ChatRepository) IncrementUnread(ctx context.Context, chatID string, userIDs ...string) (map[string]int, error) {
	counts := make(map[string]int, len(userIDs))
	for _, userID := range userIDs {
		res, err := r.table.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:        aws.String(r.table.name),
			Key:              key(chatPK(chatID), unreadSK(userID)),
			UpdateExpression: aws.String("ADD #c :one"),
			ExpressionAttributeNames: map[string]string{
				"#c": "count",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":one": &types.AttributeValueMemberN{Value: "1"},
			},
			ReturnValues: types.ReturnValueUpdatedNew,
		})
		if err != nil {
			return nil, err
		}
		n, ok := res.Attributes["count"].(*types.AttributeValueMemberN)
		if !ok {
			return nil, fmt.Errorf("counter %s/%s came back without a count", chatID, userID)
		}
		count, err := strconv.Atoi(n.Value)
		if err != nil {
			return nil, err
		}
		counts[userID] = count
	}
	return counts, nil
}

func (r *ChatRepository) ResetUnread(ctx context.Context, chatID, userID string) error {
	_, err := r.table.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(r.table.name),
		Key:                      key(chatPK(chatID), unreadSK(userID)),
		UpdateExpression:         aws.String("SET #c = :zero"),
		ExpressionAttributeNames: map[string]string{"#c": "count"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":zero": &types.AttributeValueMemberN{Value: "0"},
		},
	})
	return err
}

func (r *ChatRepository) UnreadCount(ctx context.Context, chatID, userID string) (int, error) {
	var c counter
	if _, err := r.table.get(ctx, chatPK(chatID), unreadSK(userID), &c); err != nil {
		return 0, err
	}
	return c.Count, nil
}
