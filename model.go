package commentable

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// Record is the capability set shared by every entity model. Entity types
// provide only the mapping from stored attributes to their struct.
type Record[T any] interface {
	Find(ctx context.Context, key Key) (T, bool, error)
	Query(ctx context.Context, q QueryMarshaler) ([]T, error)
	Create(ctx context.Context, item Item) (T, error)
	Update(ctx context.Context, key Key, update expression.UpdateBuilder) (T, error)
	Delete(ctx context.Context, key Key) error
	BatchDelete(ctx context.Context, keys []Key) error
}

// UnmarshalFunc converts a stored item into an entity.
type UnmarshalFunc[T any] func(Item) (T, error)

// Model implements Record for a single entity type stored in the table.
type Model[T any] struct {
	table     *Table
	entity    string // entity name used in logs and errors
	prefix    string // id prefix of every record of this type
	unmarshal UnmarshalFunc[T]
}

var _ Record[struct{}] = (*Model[struct{}])(nil)

// NewModel creates a Model for records whose ids begin with prefix.
func NewModel[T any](t *Table, entity, prefix string, unmarshal UnmarshalFunc[T]) *Model[T] {
	return &Model[T]{
		table:     t,
		entity:    entity,
		prefix:    prefix,
		unmarshal: unmarshal,
	}
}

// Table returns the table the model reads and writes.
func (m *Model[T]) Table() *Table {
	return m.table
}

// Prefix returns the id prefix of the model's records.
func (m *Model[T]) Prefix() string {
	return m.prefix
}

func (m *Model[T]) log() *zap.Logger {
	return m.table.Logger.With(zap.String("entity", m.entity))
}

// Find performs a point lookup. An absent item yields found=false and no
// error.
func (m *Model[T]) Find(ctx context.Context, key Key) (T, bool, error) {
	var zero T

	cctx, cancel := m.table.call(ctx)
	defer cancel()

	start := time.Now()
	output, err := m.table.client.GetItem(cctx, &dynamodb.GetItemInput{
		TableName: aws.String(m.table.TableName),
		Key:       key.Item(),
	})
	observeCall("get_item", start, err)
	if err != nil {
		return zero, false, storeError(fmt.Sprintf("failed to get %s", m.entity), err)
	}

	if len(output.Item) == 0 {
		m.log().Debug("item not found", zap.String("primary_key", key.Partition), zap.String("id", key.ID))
		return zero, false, nil
	}

	record, err := m.unmarshal(output.Item)
	if err != nil {
		return zero, false, fmt.Errorf("failed to unmarshal %s: %w", m.entity, err)
	}
	return record, true, nil
}

// Get is Find for callers that require the item to exist. An absent item is
// ErrNotFound.
func (m *Model[T]) Get(ctx context.Context, key Key) (T, error) {
	record, found, err := m.Find(ctx, key)
	if err != nil {
		return record, err
	}
	if !found {
		return record, fmt.Errorf("%s %s: %w", m.entity, key.ID, ErrNotFound)
	}
	return record, nil
}

// Query returns every record matched by q across all pages.
func (m *Model[T]) Query(ctx context.Context, q QueryMarshaler) ([]T, error) {
	items, err := m.table.QueryAll(ctx, q)
	if err != nil {
		return nil, err
	}
	return m.unmarshalAll(items)
}

// ListByPrefix returns every record of this type in partition.
func (m *Model[T]) ListByPrefix(ctx context.Context, partition string) ([]T, error) {
	return m.Query(ctx, ByPrefix(partition, m.prefix))
}

func (m *Model[T]) unmarshalAll(items []Item) ([]T, error) {
	records := make([]T, 0, len(items))
	for i, item := range items {
		record, err := m.unmarshal(item)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s %d: %w", m.entity, i, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// Create writes item unconditionally, replacing any existing item with the
// same key.
func (m *Model[T]) Create(ctx context.Context, item Item) (T, error) {
	return m.put(ctx, item, nil)
}

// CreateUnique writes item only if no item with the same key exists. A
// collision is ErrConflict.
func (m *Model[T]) CreateUnique(ctx context.Context, item Item) (T, error) {
	return m.put(ctx, item, notExists())
}

func notExists() *expression.ConditionBuilder {
	cond := expression.AttributeNotExists(expression.Name(AttributeNameID))
	return &cond
}

func (m *Model[T]) put(ctx context.Context, item Item, cond *expression.ConditionBuilder) (T, error) {
	var zero T

	// Decode first so a malformed item is never written
	record, err := m.unmarshal(item)
	if err != nil {
		return zero, fmt.Errorf("invalid %s: %w", m.entity, err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(m.table.TableName),
		Item:      item,
	}

	if cond != nil {
		expr, err := expression.NewBuilder().WithCondition(*cond).Build()
		if err != nil {
			return zero, fmt.Errorf("failed to build condition: %w", err)
		}
		input.ConditionExpression = expr.Condition()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
	}

	cctx, cancel := m.table.call(ctx)
	defer cancel()

	start := time.Now()
	_, err = m.table.client.PutItem(cctx, input)
	observeCall("put_item", start, err)
	if err != nil {
		if isConditionFailed(err) {
			return zero, fmt.Errorf("%s: %w", m.entity, ErrConflict)
		}
		return zero, storeError(fmt.Sprintf("failed to put %s", m.entity), err)
	}

	m.log().Debug("item created", zap.Bool("conditional", cond != nil))
	return record, nil
}

// Update applies a partial update to an existing item and returns the record
// as materialized by the store. An absent item is ErrNotFound.
func (m *Model[T]) Update(ctx context.Context, key Key, update expression.UpdateBuilder) (T, error) {
	var zero T

	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.AttributeExists(expression.Name(AttributeNameID))).
		Build()
	if err != nil {
		return zero, fmt.Errorf("failed to build update expression: %w", err)
	}

	cctx, cancel := m.table.call(ctx)
	defer cancel()

	start := time.Now()
	output, err := m.table.client.UpdateItem(cctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(m.table.TableName),
		Key:                       key.Item(),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	observeCall("update_item", start, err)
	if err != nil {
		if isConditionFailed(err) {
			return zero, fmt.Errorf("%s %s: %w", m.entity, key.ID, ErrNotFound)
		}
		return zero, storeError(fmt.Sprintf("failed to update %s", m.entity), err)
	}

	record, err := m.unmarshal(output.Attributes)
	if err != nil {
		return zero, fmt.Errorf("failed to unmarshal %s: %w", m.entity, err)
	}
	return record, nil
}

// Delete removes the item at key. Deleting an absent item is not an error.
func (m *Model[T]) Delete(ctx context.Context, key Key) error {
	return m.delete(ctx, key, false)
}

// DeleteExisting removes the item at key. An absent item is ErrNotFound.
func (m *Model[T]) DeleteExisting(ctx context.Context, key Key) error {
	return m.delete(ctx, key, true)
}

func (m *Model[T]) delete(ctx context.Context, key Key, mustExist bool) error {
	input := &dynamodb.DeleteItemInput{
		TableName: aws.String(m.table.TableName),
		Key:       key.Item(),
	}

	if mustExist {
		expr, err := expression.NewBuilder().
			WithCondition(expression.AttributeExists(expression.Name(AttributeNameID))).
			Build()
		if err != nil {
			return fmt.Errorf("failed to build condition: %w", err)
		}
		input.ConditionExpression = expr.Condition()
		input.ExpressionAttributeNames = expr.Names()
	}

	cctx, cancel := m.table.call(ctx)
	defer cancel()

	start := time.Now()
	_, err := m.table.client.DeleteItem(cctx, input)
	observeCall("delete_item", start, err)
	if err != nil {
		if isConditionFailed(err) {
			return fmt.Errorf("%s %s: %w", m.entity, key.ID, ErrNotFound)
		}
		return storeError(fmt.Sprintf("failed to delete %s", m.entity), err)
	}

	m.log().Debug("item deleted", zap.String("id", key.ID))
	return nil
}

// BatchDelete removes every item in keys. See Table.BatchDelete.
func (m *Model[T]) BatchDelete(ctx context.Context, keys []Key) error {
	return m.table.BatchDelete(ctx, keys)
}

// BatchGet returns the records stored at keys. Missing keys are absent from
// the result and order is not preserved.
func (m *Model[T]) BatchGet(ctx context.Context, keys []Key) ([]T, error) {
	items, err := m.table.BatchGet(ctx, keys)
	if err != nil {
		return nil, err
	}
	return m.unmarshalAll(items)
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
