package dynamock

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// LocalEndpointEnv overrides the DynamoDB Local endpoint used by integration
// tests, e.g. DYNAMODB_LOCAL_ENDPOINT=http://dynamodb:8000.
const LocalEndpointEnv = "DYNAMODB_LOCAL_ENDPOINT"

// SchemaFunc returns the create input for a table with the given name.
type SchemaFunc func(tableName string) *dynamodb.CreateTableInput

// IntegrationTestConfig configures RunIntegrationTest.
type IntegrationTestConfig struct {
	Endpoint    string        // DynamoDB Local endpoint
	Required    bool          // fail instead of skip when the endpoint is down
	TablePrefix string        // prefix of the generated table name
	Timeout     time.Duration // bound on table cleanup
}

// DefaultIntegrationTestConfig targets LocalEndpointEnv, or localhost on the
// default port, and skips when nothing is listening.
func DefaultIntegrationTestConfig() *IntegrationTestConfig {
	endpoint := os.Getenv(LocalEndpointEnv)
	if endpoint == "" {
		endpoint = LocalEndpoint(DefaultLocalPort)
	}
	return &IntegrationTestConfig{
		Endpoint:    endpoint,
		TablePrefix: "commentable-it",
		Timeout:     30 * time.Second,
	}
}

// RunIntegrationTest creates a uniquely named table from schema on DynamoDB
// Local, runs fn against it and deletes the table afterwards. The test is
// skipped in -short mode and, unless config.Required, when DynamoDB Local is
// not reachable.
func RunIntegrationTest(t testing.TB, config *IntegrationTestConfig, schema SchemaFunc, fn func(local *LocalDynamoDB, tableName string)) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	if config == nil {
		config = DefaultIntegrationTestConfig()
	}

	local := NewLocalDynamoDB(config.Endpoint)
	ctx := context.Background()

	if !local.Available(ctx) {
		if config.Required {
			t.Fatalf("DynamoDB Local not available at %s", config.Endpoint)
		}
		t.Skipf("DynamoDB Local not available at %s", config.Endpoint)
	}

	tableName := UniqueTableName(config.TablePrefix)
	if err := local.CreateTable(ctx, schema(tableName)); err != nil {
		t.Fatalf("Failed to create test table %s: %v", tableName, err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
		defer cancel()
		if err := local.DeleteTable(ctx, tableName); err != nil {
			t.Errorf("Failed to delete test table %s: %v", tableName, err)
		}
	})

	fn(local, tableName)
}

// UniqueTableName returns prefix followed by a nanosecond timestamp. Table
// names only allow letters, digits, dots, dashes and underscores.
func UniqueTableName(prefix string) string {
	prefix = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '-'
	}, prefix)
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// BatchWriter is the subset of the DynamoDB API a Seeder needs. Both
// *dynamodb.Client and MemoryClient satisfy it.
type BatchWriter interface {
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// maxSeedPasses bounds how many times a seeding chunk is resubmitted.
const maxSeedPasses = 5

// Seeder writes fixtures to a table through the batch write API.
type Seeder struct {
	client    BatchWriter
	tableName string
}

// NewSeeder creates a Seeder for tableName.
func NewSeeder(client BatchWriter, tableName string) *Seeder {
	return &Seeder{client: client, tableName: tableName}
}

// Items writes items in chunks of 25 and returns the number written.
// Unprocessed requests are resubmitted a bounded number of times.
func (s *Seeder) Items(ctx context.Context, items ...Item) (int, error) {
	written := 0
	for start := 0; start < len(items); start += maxBatchWrite {
		chunk := items[start:min(start+maxBatchWrite, len(items))]

		requests := make([]types.WriteRequest, 0, len(chunk))
		for _, item := range chunk {
			requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
		}

		pending := map[string][]types.WriteRequest{s.tableName: requests}
		for pass := 0; len(pending[s.tableName]) > 0; pass++ {
			if pass == maxSeedPasses {
				left := len(pending[s.tableName])
				return written + len(chunk) - left, fmt.Errorf("seeding %s: %d items still unprocessed", s.tableName, left)
			}
			output, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
			if err != nil {
				return written, fmt.Errorf("failed to batch write: %w", err)
			}
			pending = output.UnprocessedItems
		}
		written += len(chunk)
	}
	return written, nil
}

// Builders builds and writes each fixture.
func (s *Seeder) Builders(ctx context.Context, builders ...*ItemBuilder) (int, error) {
	items := make([]Item, 0, len(builders))
	for _, b := range builders {
		items = append(items, b.Build())
	}
	return s.Items(ctx, items...)
}
