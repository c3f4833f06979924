package commentable

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// TableAdmin is the subset of the DynamoDB client needed to provision the
// table. *dynamodb.Client satisfies it.
type TableAdmin interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Schema returns the create input for the table: primary_key and id as the
// key, plus the replies and reactions indexes. Both indexes share the table's
// partition key so they are declared as local secondary indexes.
func (t *Table) Schema() *dynamodb.CreateTableInput {
	return &dynamodb.CreateTableInput{
		TableName:   aws.String(t.TableName),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(AttributeNamePartition), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(AttributeNameID), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(AttributeNameRepliesTo), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(AttributeNameCommentID), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(AttributeNamePartition), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(AttributeNameID), KeyType: types.KeyTypeRange},
		},
		LocalSecondaryIndexes: []types.LocalSecondaryIndex{
			localIndex(t.RepliesIndexName, AttributeNameRepliesTo),
			localIndex(t.ReactionsIndexName, AttributeNameCommentID),
		},
	}
}

func localIndex(name, sortAttr string) types.LocalSecondaryIndex {
	return types.LocalSecondaryIndex{
		IndexName: aws.String(name),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(AttributeNamePartition), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(sortAttr), KeyType: types.KeyTypeRange},
		},
		Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
	}
}

// Provision creates the table described by Schema and waits until it is
// active. An existing table is left untouched.
func (t *Table) Provision(ctx context.Context, admin TableAdmin, wait time.Duration) error {
	_, err := admin.CreateTable(ctx, t.Schema())
	if err != nil {
		var inUse *types.ResourceInUseException
		if !errors.As(err, &inUse) {
			return storeError(fmt.Sprintf("failed to create table %s", t.TableName), err)
		}
		t.Logger.Info("table already exists", zap.String("table", t.TableName))
	}

	waiter := dynamodb.NewTableExistsWaiter(admin)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(t.TableName)}, wait); err != nil {
		return storeError(fmt.Sprintf("table %s did not become active", t.TableName), err)
	}

	t.Logger.Info("table active", zap.String("table", t.TableName))
	return nil
}
