package commentable

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"
)

// QueryAll issues the query built by in and follows LastEvaluatedKey until the
// store reports no further page, returning every matching item exactly once.
// The store's page size limit is never visible to callers.
func (t *Table) QueryAll(ctx context.Context, in QueryMarshaler) ([]Item, error) {
	input, err := in.MarshalQuery(t)
	if err != nil {
		return nil, err
	}

	var (
		items []Item
		pages int
	)

	for {
		output, err := t.queryPage(ctx, input)
		if err != nil {
			return nil, err
		}

		pages++
		items = append(items, output.Items...)

		if len(output.LastEvaluatedKey) == 0 {
			break
		}

		// Re-issue the same query from the latest continuation token
		next := *input
		next.ExclusiveStartKey = output.LastEvaluatedKey
		input = &next
	}

	observePages(pages)
	t.Logger.Debug("query completed",
		zap.Stringp("index", input.IndexName),
		zap.Int("pages", pages),
		zap.Int("items", len(items)),
	)

	return items, nil
}

func (t *Table) queryPage(ctx context.Context, input *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
	ctx, cancel := t.call(ctx)
	defer cancel()

	start := time.Now()
	output, err := t.client.Query(ctx, input)
	observeCall("query", start, err)
	if err != nil {
		return nil, storeError("failed to query items", err)
	}
	return output, nil
}
