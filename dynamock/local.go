package dynamock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DefaultLocalPort is the port DynamoDB Local listens on by default.
const DefaultLocalPort = 8000

// tableWait bounds how long table creation and deletion may take locally.
const tableWait = 30 * time.Second

// LocalDynamoDB is a connection to a DynamoDB Local instance.
type LocalDynamoDB struct {
	Client   *dynamodb.Client
	Endpoint string
}

// LocalEndpoint returns the DynamoDB Local endpoint on localhost:port.
func LocalEndpoint(port int) string {
	return fmt.Sprintf("http://localhost:%d", port)
}

// NewLocalDynamoDB connects to DynamoDB Local at endpoint with anonymous
// credentials. DynamoDB Local ignores the region.
//
//	local := dynamock.NewLocalDynamoDB(dynamock.LocalEndpoint(8000))
func NewLocalDynamoDB(endpoint string) *LocalDynamoDB {
	cfg := aws.Config{
		Region:      "us-east-1",
		Credentials: aws.AnonymousCredentials{},
	}
	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})
	return &LocalDynamoDB{Client: client, Endpoint: endpoint}
}

// Available reports whether the instance answers a ListTables call within
// two seconds.
func (l *LocalDynamoDB) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	_, err := l.Client.ListTables(ctx, &dynamodb.ListTablesInput{Limit: aws.Int32(1)})
	return err == nil
}

// CreateTable creates a table from input and waits for it to become active.
// Pass the schema of the table under test, e.g. commentable.Table.Schema.
func (l *LocalDynamoDB) CreateTable(ctx context.Context, input *dynamodb.CreateTableInput) error {
	name := aws.ToString(input.TableName)

	if _, err := l.Client.CreateTable(ctx, input); err != nil {
		return fmt.Errorf("failed to create table %s: %w", name, err)
	}

	waiter := dynamodb.NewTableExistsWaiter(l.Client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: input.TableName}, tableWait); err != nil {
		return fmt.Errorf("table %s did not become active: %w", name, err)
	}
	return nil
}

// DeleteTable deletes a table and waits until it is gone. A table that does
// not exist is not an error.
func (l *LocalDynamoDB) DeleteTable(ctx context.Context, name string) error {
	_, err := l.Client.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: aws.String(name)})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to delete table %s: %w", name, err)
	}

	waiter := dynamodb.NewTableNotExistsWaiter(l.Client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)}, tableWait); err != nil {
		return fmt.Errorf("table %s was not deleted: %w", name, err)
	}
	return nil
}

// Tables returns the names of every table on the instance.
func (l *LocalDynamoDB) Tables(ctx context.Context) ([]string, error) {
	var names []string
	paginator := dynamodb.NewListTablesPaginator(l.Client, &dynamodb.ListTablesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list tables: %w", err)
		}
		names = append(names, page.TableNames...)
	}
	return names, nil
}
