package orders

import (
	"context"
	"errors"
	"sort"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// mockDynamo is a small in-memory orders table keyed by pk|sk. It understands
// the expressions issued by Store and nothing else.
type mockDynamo struct {
	mu       sync.Mutex
	items    map[string]map[string]types.AttributeValue
	pageSize int // Query page size; 0 means unlimited

	putCalls    int
	updateCalls int
	queryCalls  int

	putErr    error
	updateErr error
	queryErr  error
}

func newMockDynamo() *mockDynamo {
	return &mockDynamo{items: map[string]map[string]types.AttributeValue{}}
}

func strAttr(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func compositeKey(item map[string]types.AttributeValue) (string, error) {
	pk, sk := strAttr(item, AttrPK), strAttr(item, AttrSK)
	if pk == "" || sk == "" {
		return "", errors.New("missing pk/sk")
	}
	return pk + "|" + sk, nil
}

func (m *mockDynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putCalls++
	if m.putErr != nil {
		return nil, m.putErr
	}
	k, err := compositeKey(params.Item)
	if err != nil {
		return nil, err
	}
	if params.ConditionExpression != nil && *params.ConditionExpression == "attribute_not_exists(pk)" {
		if _, exists := m.items[k]; exists {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	m.items[k] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *mockDynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, err := compositeKey(params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := m.items[k]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *mockDynamo) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	k, err := compositeKey(params.Key)
	if err != nil {
		return nil, err
	}
	item, exists := m.items[k]
	if !exists {
		return nil, &types.ConditionalCheckFailedException{}
	}
	if params.ConditionExpression != nil && *params.ConditionExpression == "#s = :expected" {
		expected := params.ExpressionAttributeValues[":expected"].(*types.AttributeValueMemberS).Value
		if strAttr(item, AttrStatus) != expected {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	updated := make(map[string]types.AttributeValue, len(item))
	for name, v := range item {
		updated[name] = v
	}
	if v, ok := params.ExpressionAttributeValues[":new"]; ok {
		updated[AttrStatus] = v
	}
	if v, ok := params.ExpressionAttributeValues[":ua"]; ok {
		updated[AttrUpdatedAt] = v
	}
	m.items[k] = updated
	return &dyn.UpdateItemOutput{}, nil
}

// Query serves the status index. Items are returned in key order so that
// LastEvaluatedKey pagination is deterministic.
func (m *mockDynamo) Query(ctx context.Context, params *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryCalls++
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	want := params.ExpressionAttributeValues[":status"].(*types.AttributeValueMemberS).Value

	keys := make([]string, 0, len(m.items))
	for k, item := range m.items {
		if strAttr(item, AttrStatus) == want {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if params.ExclusiveStartKey != nil {
		after, _ := compositeKey(params.ExclusiveStartKey)
		start = sort.SearchStrings(keys, after)
		if start < len(keys) && keys[start] == after {
			start++
		}
	}
	end := len(keys)
	if m.pageSize > 0 && start+m.pageSize < end {
		end = start + m.pageSize
	}

	out := &dyn.QueryOutput{}
	for _, k := range keys[start:end] {
		out.Items = append(out.Items, m.items[k])
	}
	if end < len(keys) {
		last := m.items[keys[end-1]]
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			AttrPK:     last[AttrPK],
			AttrSK:     last[AttrSK],
			AttrStatus: last[AttrStatus],
		}
	}
	return out, nil
}
