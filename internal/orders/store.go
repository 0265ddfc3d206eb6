package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/imrishuroy/marketplace-ordersync/internal/aws"
	"github.com/imrishuroy/marketplace-ordersync/internal/status"
)

// ErrStatusMismatch is returned by UpdateStatus when the stored status is no
// longer the expected one (or the item is gone).
var ErrStatusMismatch = errors.New("status mismatch/conditional failed")

// Store encapsulates operations on the orders table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	indexName string
	nowFunc   func() time.Time
}

// NewStore creates a new orders Store. indexName is the GSI keyed by status;
// an empty value selects DefaultIndexName.
func NewStore(client aws.DynamoDBAPI, tableName, indexName string) *Store {
	if indexName == "" {
		indexName = DefaultIndexName
	}
	return &Store{
		client:    client,
		tableName: tableName,
		indexName: indexName,
		nowFunc:   time.Now,
	}
}

// PutIfAbsent inserts rec unless an item with the same (pk, sk) exists.
// Returns (true, nil) when inserted and (false, nil) when the item was
// already present; the existing item is left untouched.
func (s *Store) PutIfAbsent(ctx context.Context, rec OrderItemRecord) (bool, error) {
	now := s.nowFunc().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return false, fmt.Errorf("marshal record: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(pk)"),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("put item: %w", err)
	}
	return true, nil
}

// Get fetches a record by key. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, orderID, orderItemID string) (*OrderItemRecord, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key:       itemKey(orderID, orderItemID),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec OrderItemRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return &rec, nil
}

// QueryByStatus returns every record whose status equals st, following
// LastEvaluatedKey until the index is exhausted.
func (s *Store) QueryByStatus(ctx context.Context, st status.Status) ([]OrderItemRecord, error) {
	statusVal := st.String()
	var (
		out      []OrderItemRecord
		startKey map[string]types.AttributeValue
	)
	for {
		resp, err := s.client.Query(ctx, &dyn.QueryInput{
			TableName:                 &s.tableName,
			IndexName:                 &s.indexName,
			KeyConditionExpression:    awsString("#s = :status"),
			ExpressionAttributeNames:  map[string]string{"#s": AttrStatus},
			ExpressionAttributeValues: map[string]types.AttributeValue{":status": &types.AttributeValueMemberS{Value: statusVal}},
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("query %s=%s: %w", s.indexName, statusVal, err)
		}

		page := make([]OrderItemRecord, 0, len(resp.Items))
		if err := attributevalue.UnmarshalListOfMaps(resp.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal query page: %w", err)
		}
		out = append(out, page...)

		if len(resp.LastEvaluatedKey) == 0 {
			return out, nil
		}
		startKey = resp.LastEvaluatedKey
	}
}

// UpdateStatus conditionally moves a record from expected to newStatus.
// Only status and updatedAt are written, so attributes owned by other
// workflows (scrappedStatus) are preserved. Returns ErrStatusMismatch if the
// condition failed.
func (s *Store) UpdateStatus(ctx context.Context, orderID, orderItemID string, expected, newStatus status.Status) error {
	now := s.nowFunc().UTC()
	input := &dyn.UpdateItemInput{
		TableName:                &s.tableName,
		Key:                      itemKey(orderID, orderItemID),
		UpdateExpression:         awsString("SET #s = :new, #ua = :ua"),
		ConditionExpression:      awsString("#s = :expected"),
		ExpressionAttributeNames: map[string]string{"#s": AttrStatus, "#ua": AttrUpdatedAt},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":new":      &types.AttributeValueMemberS{Value: newStatus.String()},
			":expected": &types.AttributeValueMemberS{Value: expected.String()},
			":ua":       &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
		},
	}

	_, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		if isConditionalCheckFailed(err) {
			return ErrStatusMismatch
		}
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

func itemKey(orderID, orderItemID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		AttrPK: &types.AttributeValueMemberS{Value: orderID},
		AttrSK: &types.AttributeValueMemberS{Value: orderItemID},
	}
}

// isConditionalCheckFailed detects both the typed exception and the generic
// API error code some emulators return.
func isConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "ConditionalCheckFailedException"
}

func awsString(s string) *string { return &s }
