package runs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/imrishuroy/marketplace-ordersync/internal/aws"
)

// DefaultTTL keeps run entries for a week.
const DefaultTTL = 7 * 24 * time.Hour

// ErrNotInProgress is returned when finishing a run that is unknown or
// already finished.
var ErrNotInProgress = errors.New("run not in progress")

// Store records one ledger entry per sync run.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	ttlWindow time.Duration
	nowFunc   func() time.Time
}

// NewStore returns a configured Store. A zero ttlWindow selects DefaultTTL.
func NewStore(client aws.DynamoDBAPI, tableName string, ttlWindow time.Duration) *Store {
	if ttlWindow <= 0 {
		ttlWindow = DefaultTTL
	}
	return &Store{
		client:    client,
		tableName: tableName,
		ttlWindow: ttlWindow,
		nowFunc:   time.Now,
	}
}

// Start creates an IN_PROGRESS entry for runID.
// Returns (false, nil) if the run was already recorded.
func (s *Store) Start(ctx context.Context, runID, trigger string) (bool, error) {
	now := s.nowFunc().UTC()
	rec := RunRecord{
		RunID:     runID,
		Status:    StatusInProgress,
		Trigger:   trigger,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(s.ttlWindow).Unix(),
	}

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return false, fmt.Errorf("marshal run: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(run_id)"),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("put item: %w", err)
	}
	return true, nil
}

// Get retrieves a run by ID. If not found, returns (nil, nil).
func (s *Store) Get(ctx context.Context, runID string) (*RunRecord, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key:       runKey(runID),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec RunRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return &rec, nil
}

// MarkDone moves an IN_PROGRESS run to DONE and stores its summary.
func (s *Store) MarkDone(ctx context.Context, runID, summary string, itemsProcessed int) error {
	return s.finish(ctx, runID, "SET #s = :next, summary = :sum, items_processed = :n, updated_at = :ua",
		map[string]types.AttributeValue{
			":next": &types.AttributeValueMemberS{Value: StatusDone},
			":sum":  &types.AttributeValueMemberS{Value: summary},
			":n":    &types.AttributeValueMemberN{Value: strconv.Itoa(itemsProcessed)},
		})
}

// MarkFailed moves an IN_PROGRESS run to FAILED with a note.
func (s *Store) MarkFailed(ctx context.Context, runID, note string) error {
	return s.finish(ctx, runID, "SET #s = :next, note = :note, updated_at = :ua",
		map[string]types.AttributeValue{
			":next": &types.AttributeValueMemberS{Value: StatusFailed},
			":note": &types.AttributeValueMemberS{Value: note},
		})
}

func (s *Store) finish(ctx context.Context, runID, expr string, values map[string]types.AttributeValue) error {
	values[":ua"] = &types.AttributeValueMemberS{Value: s.nowFunc().UTC().Format(time.RFC3339)}
	values[":running"] = &types.AttributeValueMemberS{Value: StatusInProgress}

	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       runKey(runID),
		UpdateExpression:          awsString(expr),
		ConditionExpression:       awsString("#s = :running"),
		ExpressionAttributeNames:  map[string]string{"#s": "status"},
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return fmt.Errorf("%w: %s", ErrNotInProgress, runID)
		}
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

func runKey(runID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"run_id": &types.AttributeValueMemberS{Value: runID},
	}
}

func isConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "ConditionalCheckFailedException"
}

func awsString(s string) *string { return &s }
