package connector

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/checkmarxDev/chatbot-worker/pkg/message"
)

type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// DynamoConnector stores a session as one item keyed by SessionId and UserId,
// with the turns in a History list.
type DynamoConnector struct {
	client DynamoAPI
	table  string
	now    func() time.Time
}

// historyItem is the stored shape of a turn.
type historyItem struct {
	Type      string      `dynamodbav:"type"`
	Data      historyData `dynamodbav:"data"`
	RequestID string      `dynamodbav:"request_id,omitempty"`
}

type historyData struct {
	Type             string         `dynamodbav:"type"`
	Content          string         `dynamodbav:"content"`
	AdditionalKwargs map[string]any `dynamodbav:"additional_kwargs"`
}

type sessionItem struct {
	History    []historyItem `dynamodbav:"History"`
	RequestIDs []string      `dynamodbav:"RequestIds,stringset,omitempty"`
}

func NewDynamoConnector(client DynamoAPI, table string) *DynamoConnector {
	return &DynamoConnector{client: client, table: table, now: time.Now}
}

func (d *DynamoConnector) key(key message.Key) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"SessionId": &types.AttributeValueMemberS{Value: key.SessionID},
		"UserId":    &types.AttributeValueMemberS{Value: key.UserID},
	}
}

func (d *DynamoConnector) get(ctx context.Context, key message.Key) (*sessionItem, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.table),
		Key:            d.key(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	var item sessionItem
	if len(out.Item) == 0 {
		return &item, nil
	}
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (d *DynamoConnector) History(ctx context.Context, key message.Key) ([]message.Turn, error) {
	item, err := d.get(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(item.History) == 0 {
		return nil, nil
	}
	turns := make([]message.Turn, 0, len(item.History))
	for _, h := range item.History {
		turns = append(turns, message.Turn{Role: h.Type, Content: h.Data.Content, Metadata: h.Data.AdditionalKwargs})
	}
	return turns, nil
}

// Append adds the entries with a single conditional update, so either all of
// them land or none do, and a request id already present makes it a no-op.
func (d *DynamoConnector) Append(ctx context.Context, key message.Key, requestID string, entries []message.Entry) error {
	turns := foldEntries(entries)
	items := make([]historyItem, 0, len(turns))
	for _, t := range turns {
		kwargs := t.Metadata
		if kwargs == nil {
			kwargs = map[string]any{}
		}
		items = append(items, historyItem{
			Type:      t.Role,
			Data:      historyData{Type: t.Role, Content: t.Content, AdditionalKwargs: kwargs},
			RequestID: requestID,
		})
	}
	history, err := attributevalue.Marshal(items)
	if err != nil {
		return err
	}

	values := map[string]types.AttributeValue{
		":turns": history,
		":empty": &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
		":now":   &types.AttributeValueMemberS{Value: d.now().UTC().Format(time.RFC3339Nano)},
	}
	names := map[string]string{"#history": "History", "#start": "StartTime"}
	update := "SET #history = list_append(if_not_exists(#history, :empty), :turns), #start = if_not_exists(#start, :now)"
	var condition *string
	if requestID != "" {
		values[":rid"] = &types.AttributeValueMemberS{Value: requestID}
		values[":rids"] = &types.AttributeValueMemberSS{Value: []string{requestID}}
		names["#rids"] = "RequestIds"
		update += " ADD #rids :rids"
		condition = aws.String("attribute_not_exists(#rids) OR NOT contains(#rids, :rid)")
	}

	_, err = d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(d.table),
		Key:                       d.key(key),
		UpdateExpression:          aws.String(update),
		ConditionExpression:       condition,
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	var conflict *types.ConditionalCheckFailedException
	if errors.As(err, &conflict) {
		return nil
	}
	return err
}

// Recorded looks the request id up in RequestIds and takes the answer from the
// ai turn stamped with it.
func (d *DynamoConnector) Recorded(ctx context.Context, key message.Key, requestID string) (string, bool, error) {
	item, err := d.get(ctx, key)
	if err != nil {
		return "", false, err
	}
	if !slices.Contains(item.RequestIDs, requestID) {
		return "", false, nil
	}
	for i := len(item.History) - 1; i >= 0; i-- {
		h := item.History[i]
		if h.RequestID == requestID && h.Type == string(message.EntryAI) {
			return h.Data.Content, true, nil
		}
	}
	return "", true, nil
}
