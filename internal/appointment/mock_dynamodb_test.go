package appointment

import (
	"context"
	"sort"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// mockDynamoDB is an in-memory table keyed by id. It implements just enough
// of the expressions the store actually issues: the conditional status
// update, the insured index query and the stale-pending scan.
type mockDynamoDB struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue

	putErr    error
	getErr    error
	queryErr  error
	updateErr error
	scanErr   error
}

func newMockDynamoDB() *mockDynamoDB {
	return &mockDynamoDB{items: map[string]map[string]types.AttributeValue{}}
}

func stringAttr(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func (m *mockDynamoDB) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	item := map[string]types.AttributeValue{}
	for k, v := range params.Item {
		item[k] = v
	}
	m.items[stringAttr(item, "id")] = item
	return &dyn.PutItemOutput{}, nil
}

func (m *mockDynamoDB) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[stringAttr(params.Key, "id")]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *mockDynamoDB) Query(ctx context.Context, params *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	insuredID := ""
	if v, ok := params.ExpressionAttributeValues[":insuredId"].(*types.AttributeValueMemberS); ok {
		insuredID = v.Value
	}

	var matched []map[string]types.AttributeValue
	for _, item := range m.items {
		if stringAttr(item, "insuredId") == insuredID {
			matched = append(matched, item)
		}
	}

	descending := params.ScanIndexForward != nil && !*params.ScanIndexForward
	sort.Slice(matched, func(i, j int) bool {
		a, b := stringAttr(matched[i], "createdAt"), stringAttr(matched[j], "createdAt")
		if descending {
			return a > b
		}
		return a < b
	})
	return &dyn.QueryOutput{Items: matched}, nil
}

func (m *mockDynamoDB) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[stringAttr(params.Key, "id")]
	if !ok {
		return nil, &types.ConditionalCheckFailedException{}
	}

	expected := ""
	if v, ok := params.ExpressionAttributeValues[":expected"].(*types.AttributeValueMemberS); ok {
		expected = v.Value
	}
	if stringAttr(item, "status") != expected {
		return nil, &types.ConditionalCheckFailedException{}
	}

	item["status"] = params.ExpressionAttributeValues[":next"]
	item["updatedAt"] = params.ExpressionAttributeValues[":ua"]
	return &dyn.UpdateItemOutput{}, nil
}

func (m *mockDynamoDB) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	if m.scanErr != nil {
		return nil, m.scanErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := ""
	if v, ok := params.ExpressionAttributeValues[":cutoff"].(*types.AttributeValueMemberS); ok {
		cutoff = v.Value
	}

	var matched []map[string]types.AttributeValue
	for _, item := range m.items {
		if stringAttr(item, "status") == string(StatusPending) && stringAttr(item, "createdAt") < cutoff {
			matched = append(matched, item)
		}
	}
	return &dyn.ScanOutput{Items: matched}, nil
}
