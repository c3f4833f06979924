package dynamock

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
)

// DecodeJSONItems reads a JSON array of flat objects and converts each object
// into a stored item. Strings, booleans and numbers map to S, BOOL and N
// attributes; null maps to NULL. Every object must carry primary_key and id.
//
//	[
//	  {"primary_key": "article-1", "id": "COMMENT_1", "body": "hi", "created_at": "2024-01-01T00:00:00Z"},
//	  {"primary_key": "article-1", "id": "COMMENT_2", "replies_to": "COMMENT_1", "body": "hello", "created_at": "2024-01-01T00:00:01Z"}
//	]
func DecodeJSONItems(r io.Reader) ([]Item, error) {
	var objects []map[string]any
	if err := json.NewDecoder(r).Decode(&objects); err != nil {
		return nil, fmt.Errorf("failed to parse JSON document: %w", err)
	}

	items := make([]Item, 0, len(objects))
	for i, object := range objects {
		item, err := attributevalue.MarshalMap(object)
		if err != nil {
			return nil, fmt.Errorf("failed to convert object at index %d: %w", i, err)
		}
		if _, err := keyOf(item); err != nil {
			return nil, fmt.Errorf("object at index %d: %w", i, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// SeedJSON decodes items with DecodeJSONItems and stores them in the
// in-memory table. Returns the number of items stored.
func (m *MemoryClient) SeedJSON(r io.Reader) (int, error) {
	items, err := DecodeJSONItems(r)
	if err != nil {
		return 0, err
	}
	if err := m.Seed(items...); err != nil {
		return 0, err
	}
	return len(items), nil
}

// JSON decodes items with DecodeJSONItems and writes them to the table.
// Returns the number of items written.
func (s *Seeder) JSON(ctx context.Context, r io.Reader) (int, error) {
	items, err := DecodeJSONItems(r)
	if err != nil {
		return 0, err
	}
	return s.Items(ctx, items...)
}
