//go:generate go run go.uber.org/mock/mockgen -source=client.go -destination=../../mocks/mock_dynamo_api.go -package=mocks

// Package dynamo stores matches, chats, messages and users in a single DynamoDB table.
//
// The table has a string partition key "pk" and a string sort key "sk":
//
//	PAIR#{lo}#{hi}   MATCH            the match row of an unordered pair (conditional on version)
//	MATCH#{id}       POINTER          id -> pair lookup
//	USER#{id}        MATCH#{id}       per-user match index
//	USER#{id}        CHAT#{id}        per-user chat index
//	USER#{id}        PROFILE          last-seen activity
//	MATCHCHAT#{id}   CHAT             match -> chat uniqueness
//	CHAT#{id}        META             chat record
//	CHAT#{id}        UNREAD#{user}    atomic counter
//	CHAT#{id}        MSG#{ts}#{id}    messages, chronological
//	MSG#{id}         POINTER          id -> message lookup
package dynamo

import (
	"context"
	"fmt"
	"match-chat/errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the subset of the DynamoDB client used by the repositories.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// maxConditionRetries bounds optimistic retries on a conditional write.
const maxConditionRetries = 8

// NewClient loads the default AWS configuration for region.
func NewClient(ctx context.Context, region string) (*dynamodb.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}
	return dynamodb.NewFromConfig(cfg), nil
}

// Table wraps the client with the table name and the key helpers shared by every repository.
type Table struct {
	api  DynamoAPI
	name string
}

func NewTable(api DynamoAPI, name string) Table {
	return Table{api: api, name: name}
}

func key(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: pk},
		"sk": &types.AttributeValueMemberS{Value: sk},
	}
}

func str(v string) types.AttributeValue { return &types.AttributeValueMemberS{Value: v} }

func timeValue(t time.Time) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: t.UTC().Format(time.RFC3339Nano)}
}

// item marshals v and stamps its keys.
func item(pk, sk string, v any) (map[string]types.AttributeValue, error) {
	av, err := attributevalue.MarshalMap(v)
	if err != nil {
		return nil, err
	}
	av["pk"] = str(pk)
	av["sk"] = str(sk)
	return av, nil
}

// get reads one item. found is false when the key does not exist.
func (t Table) get(ctx context.Context, pk, sk string, out any) (bool, error) {
	res, err := t.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(t.name),
		Key:            key(pk, sk),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, err
	}
	if len(res.Item) == 0 {
		return false, nil
	}
	return true, attributevalue.UnmarshalMap(res.Item, out)
}

// queryPrefix returns every item of pk whose sort key starts with prefix.
func (t Table) queryPrefix(ctx context.Context, pk, prefix string, forward bool) ([]map[string]types.AttributeValue, error) {
	paginator := dynamodb.NewQueryPaginator(t.api, &dynamodb.QueryInput{
		TableName:              aws.String(t.name),
		KeyConditionExpression: aws.String("pk = :pk AND begins_with(sk, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     str(pk),
			":prefix": str(prefix),
		},
		ScanIndexForward: aws.Bool(forward),
	})
	var items []map[string]types.AttributeValue
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

// isConditionFailure reports whether a write lost an optimistic race.
func isConditionFailure(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	var tce *types.TransactionCanceledException
	return errors.As(err, &ccf) || errors.As(err, &tce)
}
