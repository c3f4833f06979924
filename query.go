package commentable

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// QueryMarshaler can marshal input into a dynamodb query request.
type QueryMarshaler interface {
	MarshalQuery(*Table) (*dynamodb.QueryInput, error)
}

// Query is a QueryMarshaler that searches a single partition, either on the
// table itself or on one of its secondary indexes.
type Query struct {
	Partition       string                      // The primary_key value
	IndexName       string                      // Optional secondary index
	SortKey         string                      // Sort attribute; defaults to id, or the index sort key
	SortEquals      string                      // Optional equality condition on the sort attribute
	SortPrefix      string                      // Optional begins_with condition on the sort attribute
	ConditionFilter expression.ConditionBuilder // Optional filters on the items
	Limit           int                         // Maximum number of items per page
	SortDescending  bool                        // Scan direction (default: false)
}

// ByPrefix returns a Query matching every item in partition whose id begins
// with prefix.
func ByPrefix(partition, prefix string) *Query {
	return &Query{Partition: partition, SortPrefix: prefix}
}

// OnIndex returns a Query on the named index matching items in partition
// whose sortKey attribute equals value.
func OnIndex(index, sortKey, partition, value string) *Query {
	return &Query{
		Partition:  partition,
		IndexName:  index,
		SortKey:    sortKey,
		SortEquals: value,
	}
}

// MarshalQuery implements QueryMarshaler for Query.
func (q *Query) MarshalQuery(t *Table) (*dynamodb.QueryInput, error) {
	if q.Partition == "" {
		return nil, fmt.Errorf("query requires a partition")
	}
	if q.SortEquals != "" && q.SortPrefix != "" {
		return nil, fmt.Errorf("query cannot combine equality and prefix conditions")
	}

	sortKey := q.SortKey
	if sortKey == "" {
		sortKey = AttributeNameID
	}

	// Build the key condition for the partition
	keyCondition := expression.Key(AttributeNamePartition).Equal(expression.Value(q.Partition))

	switch {
	case q.SortEquals != "":
		keyCondition = keyCondition.And(expression.Key(sortKey).Equal(expression.Value(q.SortEquals)))
	case q.SortPrefix != "":
		keyCondition = keyCondition.And(expression.Key(sortKey).BeginsWith(q.SortPrefix))
	}

	builder := expression.NewBuilder().WithKeyCondition(keyCondition)

	if q.ConditionFilter.IsSet() {
		builder = builder.WithFilter(q.ConditionFilter)
	}

	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(t.TableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(!q.SortDescending),
	}

	if q.ConditionFilter.IsSet() {
		input.FilterExpression = expr.Filter()
	}

	if q.IndexName != "" {
		input.IndexName = aws.String(q.IndexName)
	}

	if q.Limit > 0 {
		input.Limit = aws.Int32(int32(q.Limit))
	}

	return input, nil
}
