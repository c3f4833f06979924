// Package dynamock provides testing utilities for the commentable store.
//
// This package includes:
//   - Expectation-based mock DynamoDB client for unit testing
//   - In-memory single-table fake with pagination, conditional writes,
//     secondary indexes and injectable unprocessed batch items
//   - Fixture builders for comment, reaction and user items
//   - JSON fixture seeding
//   - Local DynamoDB integration utilities with automatic cleanup
//
// # Mock Client
//
// The MockClient provides an expectation-based mock implementation where you set
// expectations for specific operations:
//
//	mock := dynamock.NewMockClient(t)
//
//	// Set expectation for GetItem
//	mock.GetFunc = func(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
//		// Verify the operation parameters
//		return &dynamodb.GetItemOutput{}, nil
//	}
//
//	store := commentable.New(mock, "test-table")
//
// # Memory Client
//
// The MemoryClient keeps items in memory and evaluates the expressions the
// store builds, so whole flows can run without DynamoDB:
//
//	ddb := dynamock.NewMemoryClient()
//	ddb.PageSize = 2 // force multi-page queries
//
//	// Leave every key unprocessed once
//	seen := map[string]bool{}
//	ddb.UnprocessedWrite = func(req types.WriteRequest) bool {
//		id := req.DeleteRequest.Key["id"].(*types.AttributeValueMemberS).Value
//		if seen[id] {
//			return false
//		}
//		seen[id] = true
//		return true
//	}
//
// # Fixtures
//
// Builders produce raw items, including ones the store would never write:
//
//	ddb.Seed(
//		dynamock.NewComment("article-1", "COMMENT_1", dynamock.WithAuthor("USER_a")).Build(),
//		dynamock.NewComment("article-1", "COMMENT_2", dynamock.WithRepliesTo("COMMENT_1")).Build(),
//		dynamock.NewComment("article-1", "COMMENT_3", dynamock.Without("created_at")).Build(),
//	)
//
// Fixtures can also be read from JSON:
//
//	n, err := ddb.SeedJSON(strings.NewReader(`[{"primary_key": "article-1", "id": "COMMENT_1", ...}]`))
//
// # Local DynamoDB
//
// For integration testing, the package provides utilities to work with
// local DynamoDB instances:
//
//	local := dynamock.NewLocalDynamoDB(dynamock.LocalEndpoint(8000))
//	if local.Available(ctx) {
//		err := local.CreateTable(ctx, table.Schema())
//		// ... run tests
//		err = local.DeleteTable(ctx, table.TableName)
//	}
//
// # Integration Test Helpers
//
//	schema := func(name string) *dynamodb.CreateTableInput {
//		return commentable.NewTable(nil, name).Schema()
//	}
//
//	dynamock.RunIntegrationTest(t, nil, schema, func(local *dynamock.LocalDynamoDB, tableName string) {
//		seeder := dynamock.NewSeeder(local.Client, tableName)
//		_, err := seeder.Builders(ctx, dynamock.NewComment("article-1", "COMMENT_1"))
//		// ...
//	})
package dynamock
