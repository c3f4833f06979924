package dynamock

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func TestMockClient_Delegates(t *testing.T) {
	mock := NewMockClient(t)
	ctx := context.Background()
	throttled := &types.ProvisionedThroughputExceededException{Message: aws.String("slow down")}

	mock.GetFunc = func(_ context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
		if aws.ToString(params.TableName) != "test-table" {
			t.Errorf("Expected table test-table, got %s", aws.ToString(params.TableName))
		}
		return &dynamodb.GetItemOutput{Item: NewComment("article-1", "COMMENT_1").Build()}, nil
	}
	mock.QueryFunc = func(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
		return &dynamodb.QueryOutput{LastEvaluatedKey: key("article-1", "COMMENT_9")}, nil
	}
	mock.TransactWriteFunc = func(context.Context, *dynamodb.TransactWriteItemsInput, ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
		return nil, throttled
	}

	got, err := mock.GetItem(ctx, &dynamodb.GetItemInput{TableName: aws.String("test-table"), Key: key("article-1", "COMMENT_1")})
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if body := got.Item["body"].(*types.AttributeValueMemberS).Value; body != "comment COMMENT_1" {
		t.Errorf("Expected scripted item, got body %q", body)
	}

	for range 2 {
		out, err := mock.Query(ctx, &dynamodb.QueryInput{})
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if out.LastEvaluatedKey == nil {
			t.Error("Expected a continuation key")
		}
	}

	_, err = mock.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{})
	var pte *types.ProvisionedThroughputExceededException
	if !errors.As(err, &pte) {
		t.Errorf("Expected throttling error, got %v", err)
	}

	calls := map[string]int{"GetItem": 1, "Query": 2, "TransactWriteItems": 1, "PutItem": 0}
	for op, want := range calls {
		if got := mock.Calls(op); got != want {
			t.Errorf("Expected %d %s calls, got %d", want, op, got)
		}
	}
}

func TestNewMockClient_FailsUnscriptedCalls(t *testing.T) {
	mock := NewMockClient(t)

	ops := map[string]any{
		"GetItem":            mock.GetFunc,
		"PutItem":            mock.PutFunc,
		"UpdateItem":         mock.UpdateFunc,
		"DeleteItem":         mock.DeleteFunc,
		"Query":              mock.QueryFunc,
		"BatchGetItem":       mock.BatchGetItemFunc,
		"BatchWriteItem":     mock.BatchWriteItemFunc,
		"TransactWriteItems": mock.TransactWriteFunc,
	}
	for op, fn := range ops {
		if fn == nil {
			t.Errorf("Expected a default func for %s", op)
		}
	}
}
