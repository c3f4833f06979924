package commentable

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// ceiling returns the total number of batch calls allowed for n items sent in
// chunks of size.
func ceiling(n, size int) int {
	return (n+size-1)/size + 2
}

// BatchDelete removes every item in keys. Distinct keys are sent in chunks of
// at most MaxBatchSize and any unprocessed items are resubmitted, bounded by a
// total of ceil(n/MaxBatchSize)+2 calls for n distinct keys. When the ceiling is exhausted a
// *PartialDeleteError is returned carrying the keys still outstanding.
func (t *Table) BatchDelete(ctx context.Context, keys []Key) error {
	if len(keys) == 0 {
		return nil
	}

	// Duplicate keys are rejected by the store
	seen := make(map[Key]struct{}, len(keys))
	pending := make([]types.WriteRequest, 0, len(keys))
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		pending = append(pending, types.WriteRequest{
			DeleteRequest: &types.DeleteRequest{Key: key.Item()},
		})
	}

	var (
		total       = len(pending)
		limit       = ceiling(total, MaxBatchSize)
		attempts    = 0
		resubmitted = 0
	)

	for len(pending) > 0 && attempts < limit {
		if attempts > 0 && resubmitted > 0 {
			if err := t.backoff(ctx, attempts); err != nil {
				return storeError("batch delete interrupted", err)
			}
		}

		n := min(len(pending), MaxBatchSize)
		chunk := pending[:n]
		pending = pending[n:]

		unprocessed, err := t.batchWrite(ctx, chunk)
		attempts++
		if err != nil {
			return err
		}

		if len(unprocessed) > 0 {
			// Unprocessed items go to the back of the queue
			resubmitted += len(unprocessed)
			pending = append(pending, unprocessed...)
			observeResubmits("batch_write", len(unprocessed))
			t.Logger.Warn("batch delete left unprocessed items",
				zap.Int("unprocessed", len(unprocessed)),
				zap.Int("attempt", attempts),
			)
		}
	}

	if len(pending) > 0 {
		remaining := keysOf(pending)
		err := &PartialDeleteError{
			Deleted:   total - len(remaining),
			Total:     total,
			Attempts:  attempts,
			Remaining: remaining,
		}
		t.Logger.Error("batch delete exhausted retries", zap.Error(err))
		return err
	}

	t.Logger.Debug("batch delete completed",
		zap.Int("keys", total),
		zap.Int("attempts", attempts),
	)
	return nil
}

func (t *Table) batchWrite(ctx context.Context, requests []types.WriteRequest) ([]types.WriteRequest, error) {
	ctx, cancel := t.call(ctx)
	defer cancel()

	start := time.Now()
	output, err := t.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]types.WriteRequest{
			t.TableName: requests,
		},
	})
	observeCall("batch_write", start, err)
	if err != nil {
		return nil, storeError("failed to batch write items", err)
	}
	return output.UnprocessedItems[t.TableName], nil
}

// BatchGet returns the items stored at keys, sending at most MaxBatchGetSize
// keys per call and resubmitting unprocessed keys within a ceiling of
// ceil(len(keys)/MaxBatchGetSize)+2 calls. Missing keys are absent from the
// result and order is not preserved.
func (t *Table) BatchGet(ctx context.Context, keys []Key) ([]Item, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	// Duplicate keys are rejected by the store
	seen := make(map[Key]struct{}, len(keys))
	pending := make([]Item, 0, len(keys))
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		pending = append(pending, key.Item())
	}

	var (
		items    []Item
		limit    = ceiling(len(pending), MaxBatchGetSize)
		attempts = 0
	)

	for len(pending) > 0 && attempts < limit {
		if attempts > 0 {
			if err := t.backoff(ctx, attempts); err != nil {
				return nil, storeError("batch get interrupted", err)
			}
		}

		n := min(len(pending), MaxBatchGetSize)
		chunk := pending[:n]
		pending = pending[n:]

		found, unprocessed, err := t.batchGet(ctx, chunk)
		attempts++
		if err != nil {
			return nil, err
		}

		items = append(items, found...)
		if len(unprocessed) > 0 {
			pending = append(pending, unprocessed...)
			observeResubmits("batch_get", len(unprocessed))
		}
	}

	if len(pending) > 0 {
		return nil, fmt.Errorf("batch get: %d of %d keys unprocessed after %d attempts: %w: %w",
			len(pending), len(seen), attempts, ErrStore, ErrPartialFailure)
	}

	return items, nil
}

func (t *Table) batchGet(ctx context.Context, keys []Item) ([]Item, []Item, error) {
	ctx, cancel := t.call(ctx)
	defer cancel()

	start := time.Now()
	output, err := t.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
		RequestItems: map[string]types.KeysAndAttributes{
			t.TableName: {Keys: keys},
		},
	})
	observeCall("batch_get", start, err)
	if err != nil {
		return nil, nil, storeError("failed to batch get items", err)
	}

	var unprocessed []Item
	if ka, ok := output.UnprocessedKeys[t.TableName]; ok {
		unprocessed = ka.Keys
	}
	return output.Responses[t.TableName], unprocessed, nil
}
