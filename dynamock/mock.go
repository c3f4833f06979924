package dynamock

import (
	"context"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// DynamoDBAPICall is the shape of every DynamoDB client operation.
type DynamoDBAPICall[T, U any] = func(context.Context, *T, ...func(*dynamodb.Options)) (*U, error)

// DynamoDBAPI defines the DynamoDB operations required by commentable.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

var _ DynamoDBAPI = (*MockClient)(nil)

// MockClient delegates each operation to a func field, for tests that script
// exact responses such as a specific continuation key or a throttling error.
// Calls are counted per operation like MemoryClient.
type MockClient struct {
	GetFunc            DynamoDBAPICall[dynamodb.GetItemInput, dynamodb.GetItemOutput]
	PutFunc            DynamoDBAPICall[dynamodb.PutItemInput, dynamodb.PutItemOutput]
	UpdateFunc         DynamoDBAPICall[dynamodb.UpdateItemInput, dynamodb.UpdateItemOutput]
	DeleteFunc         DynamoDBAPICall[dynamodb.DeleteItemInput, dynamodb.DeleteItemOutput]
	QueryFunc          DynamoDBAPICall[dynamodb.QueryInput, dynamodb.QueryOutput]
	BatchGetItemFunc   DynamoDBAPICall[dynamodb.BatchGetItemInput, dynamodb.BatchGetItemOutput]
	BatchWriteItemFunc DynamoDBAPICall[dynamodb.BatchWriteItemInput, dynamodb.BatchWriteItemOutput]
	TransactWriteFunc  DynamoDBAPICall[dynamodb.TransactWriteItemsInput, dynamodb.TransactWriteItemsOutput]

	mu    sync.Mutex
	calls map[string]int
}

// NewMockClient creates a mock whose operations fail the test until a func is
// set for them.
func NewMockClient(t *testing.T) *MockClient {
	return &MockClient{
		GetFunc:            unexpected[dynamodb.GetItemInput, dynamodb.GetItemOutput](t, "GetItem"),
		PutFunc:            unexpected[dynamodb.PutItemInput, dynamodb.PutItemOutput](t, "PutItem"),
		UpdateFunc:         unexpected[dynamodb.UpdateItemInput, dynamodb.UpdateItemOutput](t, "UpdateItem"),
		DeleteFunc:         unexpected[dynamodb.DeleteItemInput, dynamodb.DeleteItemOutput](t, "DeleteItem"),
		QueryFunc:          unexpected[dynamodb.QueryInput, dynamodb.QueryOutput](t, "Query"),
		BatchGetItemFunc:   unexpected[dynamodb.BatchGetItemInput, dynamodb.BatchGetItemOutput](t, "BatchGetItem"),
		BatchWriteItemFunc: unexpected[dynamodb.BatchWriteItemInput, dynamodb.BatchWriteItemOutput](t, "BatchWriteItem"),
		TransactWriteFunc:  unexpected[dynamodb.TransactWriteItemsInput, dynamodb.TransactWriteItemsOutput](t, "TransactWriteItems"),
	}
}

func unexpected[T, U any](t *testing.T, op string) DynamoDBAPICall[T, U] {
	return func(context.Context, *T, ...func(*dynamodb.Options)) (*U, error) {
		t.Helper()
		t.Fatalf("unexpected call to %s", op)
		return nil, nil
	}
}

// Calls returns the number of times op was invoked, e.g. "Query".
func (m *MockClient) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *MockClient) record(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[op]++
}

func (m *MockClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	m.record("GetItem")
	return m.GetFunc(ctx, params, optFns...)
}

func (m *MockClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.record("PutItem")
	return m.PutFunc(ctx, params, optFns...)
}

func (m *MockClient) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	m.record("UpdateItem")
	return m.UpdateFunc(ctx, params, optFns...)
}

func (m *MockClient) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	m.record("DeleteItem")
	return m.DeleteFunc(ctx, params, optFns...)
}

func (m *MockClient) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	m.record("Query")
	return m.QueryFunc(ctx, params, optFns...)
}

func (m *MockClient) BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	m.record("BatchGetItem")
	return m.BatchGetItemFunc(ctx, params, optFns...)
}

func (m *MockClient) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	m.record("BatchWriteItem")
	return m.BatchWriteItemFunc(ctx, params, optFns...)
}

func (m *MockClient) TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	m.record("TransactWriteItems")
	return m.TransactWriteFunc(ctx, params, optFns...)
}
