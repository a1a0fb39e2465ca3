package dynamo

import (
	"context"
	"fmt"
	"log/slog"
	"match-chat/domain"
	"match-chat/errors"
	"match-chat/repositories"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var _ repositories.IMessageRepository = (*MessageRepository)(nil)

type MessageRepository struct {
	table Table
	log   *slog.Logger
}

func NewMessageRepository(table Table, log *slog.Logger) *MessageRepository {
	return &MessageRepository{table: table, log: log}
}

type messagePointer struct {
	ChatPK string `dynamodbav:"chatPk"`
	SK     string `dynamodbav:"msgSk"`
}

func messageSK(m domain.Message) string {
	return fmt.Sprintf("MSG#%019d#%s", m.CreatedAt.UnixNano(), m.ID)
}

func (r *MessageRepository) Store(ctx context.Context, message domain.Message) error {
	table := aws.String(r.table.name)
	sk := messageSK(message)
	row, err := item(chatPK(message.ChatID), sk, message)
	if err != nil {
		return err
	}
	pointer, err := item("MSG#"+message.ID, "POINTER", messagePointer{ChatPK: chatPK(message.ChatID), SK: sk})
	if err != nil {
		return err
	}
	_, err = r.table.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{TableName: table, Item: row}},
			{Put: &types.Put{TableName: table, Item: pointer, ConditionExpression: aws.String("attribute_not_exists(pk)")}},
		},
	})
	return err
}

func (r *MessageRepository) locate(ctx context.Context, messageID string) (messagePointer, error) {
	var pointer messagePointer
	found, err := r.table.get(ctx, "MSG#"+messageID, "POINTER", &pointer)
	if err != nil {
		return messagePointer{}, err
	}
	if !found {
		return messagePointer{}, fmt.Errorf("%w: message %s", errors.ErrNotFound, messageID)
	}
	return pointer, nil
}

func (r *MessageRepository) Get(ctx context.Context, messageID string) (domain.Message, error) {
	pointer, err := r.locate(ctx, messageID)
	if err != nil {
		return domain.Message{}, err
	}
	var message domain.Message
	found, err := r.table.get(ctx, pointer.ChatPK, pointer.SK, &message)
	if err != nil {
		return domain.Message{}, err
	}
	if !found {
		return domain.Message{}, fmt.Errorf("%w: message %s", errors.ErrNotFound, messageID)
	}
	return message, nil
}

// Swap replaces the message if it still has the updatedAt it was read with.
func (r *MessageRepository) Swap(ctx context.Context, messageID string, fn repositories.MessageSwapFunc) (domain.Message, error) {
	pointer, err := r.locate(ctx, messageID)
	if err != nil {
		return domain.Message{}, err
	}
	for attempt := 0; attempt < maxConditionRetries; attempt++ {
		var current domain.Message
		found, err := r.table.get(ctx, pointer.ChatPK, pointer.SK, &current)
		if err != nil {
			return domain.Message{}, err
		}
		if !found {
			return domain.Message{}, fmt.Errorf("%w: message %s", errors.ErrNotFound, messageID)
		}
		next, err := fn(current)
		if err != nil {
			return domain.Message{}, err
		}
		if err := r.put(ctx, pointer, next, current.UpdatedAt); isConditionFailure(err) {
			continue
		} else if err != nil {
			return domain.Message{}, err
		}
		return next, nil
	}
	return domain.Message{}, fmt.Errorf("%w: message %s kept changing", errors.ErrConflict, messageID)
}

func (r *MessageRepository) put(ctx context.Context, pointer messagePointer, m domain.Message, readUpdatedAt time.Time) error {
	row, err := item(pointer.ChatPK, pointer.SK, m)
	if err != nil {
		return err
	}
	previous, err := attributevalue.Marshal(readUpdatedAt)
	if err != nil {
		return err
	}
	_, err = r.table.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table.name),
		Item:                row,
		ConditionExpression: aws.String("updatedAt = :previous"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":previous": previous,
		},
	})
	return err
}

func (r *MessageRepository) List(ctx context.Context, chatID string, page domain.PageRequest) (domain.Page[domain.Message], error) {
	items, err := r.table.queryPrefix(ctx, chatPK(chatID), "MSG#", false)
	if err != nil {
		return domain.Page[domain.Message]{}, err
	}
	var all []domain.Message
	if err := attributevalue.UnmarshalListOfMaps(items, &all); err != nil {
		return domain.Page[domain.Message]{}, err
	}
	visible := make([]domain.Message, 0, len(all))
	for _, m := range all {
		if !m.IsDeleted {
			visible = append(visible, m)
		}
	}
	return domain.Paginate(visible, page), nil
}

func (r *MessageRepository) MarkRead(ctx context.Context, chatID string, messageIDs []string, at time.Time) ([]string, error) {
	var updated []string
	for _, id := range messageIDs {
		pointer, err := r.locate(ctx, id)
		if errors.Is(err, errors.ErrNotFound) {
			continue
		}
		if err != nil {
			return updated, err
		}
		if pointer.ChatPK != chatPK(chatID) {
			continue
		}
		_, err = r.table.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:           aws.String(r.table.name),
			Key:                 key(pointer.ChatPK, pointer.SK),
			UpdateExpression:    aws.String("SET #s = :read, updatedAt = :at"),
			ConditionExpression: aws.String("#s <> :read"),
			ExpressionAttributeNames: map[string]string{
				"#s": "status",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":read": str(string(domain.StatusRead)),
				":at":   timeValue(at),
			},
		})
		if isConditionFailure(err) {
			continue
		}
		if err != nil {
			return updated, err
		}
		updated = append(updated, id)
	}
	return updated, nil
}
