package dynamock

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Item is an alias for the dynamodb attribute value map.
type Item = map[string]types.AttributeValue

const (
	partitionKey = "primary_key"
	sortKey      = "id"

	maxBatchWrite = 25
	maxBatchGet   = 100
)

// MemoryClient is an in-memory single-table DynamoDB fake. It understands the
// expressions produced by the feature/dynamodb/expression builder for key
// conditions, attribute_exists/attribute_not_exists/begins_with conditions and
// SET/REMOVE updates, which covers every call the commentable store makes.
//
// Items are addressed by primary_key and id. Secondary indexes are declared
// in Indexes as index name to sort attribute; items lacking the attribute are
// not projected, matching DynamoDB's sparse index behavior.
type MemoryClient struct {
	// PageSize caps the number of items returned by a single Query call.
	// Zero means unlimited.
	PageSize int

	// Indexes maps secondary index names to their sort attribute.
	Indexes map[string]string

	// UnprocessedWrite, when set, is consulted for each batch write request.
	// Returning true leaves the request unprocessed.
	UnprocessedWrite func(req types.WriteRequest) bool

	// UnprocessedKey, when set, is consulted for each batch get key.
	// Returning true leaves the key unprocessed.
	UnprocessedKey func(key Item) bool

	// Fail, when set, is consulted before every operation. A non-nil error is
	// returned to the caller without touching the table.
	Fail func(op string) error

	mu    sync.Mutex
	items map[itemKey]Item
	calls map[string]int
}

type itemKey struct {
	partition string
	id        string
}

var _ DynamoDBAPI = (*MemoryClient)(nil)

// NewMemoryClient creates an empty in-memory table with the comment table's
// secondary indexes.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		Indexes: map[string]string{
			"replies_index":   "replies_to",
			"reactions_index": "comment_id",
		},
		items: make(map[itemKey]Item),
		calls: make(map[string]int),
	}
}

// Seed stores items directly, bypassing conditions and call accounting.
func (m *MemoryClient) Seed(items ...Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range items {
		key, err := keyOf(item)
		if err != nil {
			return err
		}
		m.items[key] = maps.Clone(item)
	}
	return nil
}

// SeedValues marshals each value with attributevalue.MarshalMap and stores it.
func (m *MemoryClient) SeedValues(values ...any) error {
	for _, v := range values {
		item, err := attributevalue.MarshalMap(v)
		if err != nil {
			return fmt.Errorf("failed to marshal seed value: %w", err)
		}
		if err := m.Seed(item); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the stored item at (partition, id).
func (m *MemoryClient) Lookup(partition, id string) (Item, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[itemKey{partition, id}]
	return maps.Clone(item), ok
}

// Len returns the number of stored items.
func (m *MemoryClient) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Calls returns the number of times op was invoked, e.g. "BatchWriteItem".
func (m *MemoryClient) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *MemoryClient) begin(op string) error {
	m.calls[op]++
	if m.Fail != nil {
		return m.Fail(op)
	}
	return nil
}

// GetItem implements DynamoDBAPI.
func (m *MemoryClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("GetItem"); err != nil {
		return nil, err
	}

	key, err := keyOf(params.Key)
	if err != nil {
		return nil, err
	}
	return &dynamodb.GetItemOutput{Item: maps.Clone(m.items[key])}, nil
}

// PutItem implements DynamoDBAPI.
func (m *MemoryClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("PutItem"); err != nil {
		return nil, err
	}

	key, err := keyOf(params.Item)
	if err != nil {
		return nil, err
	}

	existing := m.items[key]
	ok, err := evalCondition(aws.ToString(params.ConditionExpression), existing, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, conditionFailed()
	}

	m.items[key] = maps.Clone(params.Item)
	return &dynamodb.PutItemOutput{}, nil
}

// UpdateItem implements DynamoDBAPI.
func (m *MemoryClient) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("UpdateItem"); err != nil {
		return nil, err
	}

	key, err := keyOf(params.Key)
	if err != nil {
		return nil, err
	}

	existing := m.items[key]
	ok, err := evalCondition(aws.ToString(params.ConditionExpression), existing, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, conditionFailed()
	}

	updated := maps.Clone(existing)
	if updated == nil {
		updated = maps.Clone(params.Key)
	}
	if err := applyUpdate(aws.ToString(params.UpdateExpression), updated, params.ExpressionAttributeNames, params.ExpressionAttributeValues); err != nil {
		return nil, err
	}
	m.items[key] = updated

	output := &dynamodb.UpdateItemOutput{}
	switch params.ReturnValues {
	case types.ReturnValueAllNew:
		output.Attributes = maps.Clone(updated)
	case types.ReturnValueAllOld:
		output.Attributes = maps.Clone(existing)
	}
	return output, nil
}

// DeleteItem implements DynamoDBAPI.
func (m *MemoryClient) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("DeleteItem"); err != nil {
		return nil, err
	}

	key, err := keyOf(params.Key)
	if err != nil {
		return nil, err
	}

	existing := m.items[key]
	ok, err := evalCondition(aws.ToString(params.ConditionExpression), existing, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, conditionFailed()
	}

	delete(m.items, key)
	output := &dynamodb.DeleteItemOutput{}
	if params.ReturnValues == types.ReturnValueAllOld {
		output.Attributes = existing
	}
	return output, nil
}

// Query implements DynamoDBAPI. Results are ordered by the sort attribute of
// the table or index, then by id.
func (m *MemoryClient) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("Query"); err != nil {
		return nil, err
	}

	if params.FilterExpression != nil {
		return nil, fmt.Errorf("dynamock: filter expressions are not supported")
	}

	sortAttr := sortKey
	if index := aws.ToString(params.IndexName); index != "" {
		attr, ok := m.Indexes[index]
		if !ok {
			return nil, fmt.Errorf("dynamock: unknown index %q", index)
		}
		sortAttr = attr
	}

	cond, err := parseKeyCondition(aws.ToString(params.KeyConditionExpression), params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	if cond.partition == "" {
		return nil, fmt.Errorf("dynamock: key condition must match %s", partitionKey)
	}
	if cond.sortAttr != "" && cond.sortAttr != sortAttr {
		return nil, fmt.Errorf("dynamock: key condition on %s, expected %s", cond.sortAttr, sortAttr)
	}

	var matched []Item
	for key, item := range m.items {
		if key.partition != cond.partition {
			continue
		}
		value, ok := stringOf(item[sortAttr])
		if !ok {
			continue
		}
		if cond.hasEquals && value != cond.equals {
			continue
		}
		if cond.hasPrefix && !strings.HasPrefix(value, cond.prefix) {
			continue
		}
		matched = append(matched, item)
	}

	sort.Slice(matched, func(i, j int) bool {
		a, _ := stringOf(matched[i][sortAttr])
		b, _ := stringOf(matched[j][sortAttr])
		if a != b {
			return a < b
		}
		ai, _ := stringOf(matched[i][sortKey])
		bi, _ := stringOf(matched[j][sortKey])
		return ai < bi
	})

	if params.ScanIndexForward != nil && !*params.ScanIndexForward {
		for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
			matched[i], matched[j] = matched[j], matched[i]
		}
	}

	if len(params.ExclusiveStartKey) > 0 {
		start, err := keyOf(params.ExclusiveStartKey)
		if err != nil {
			return nil, err
		}
		for i, item := range matched {
			if key, _ := keyOf(item); key == start {
				matched = matched[i+1:]
				break
			}
		}
	}

	limit := m.PageSize
	if params.Limit != nil && (limit == 0 || int(*params.Limit) < limit) {
		limit = int(*params.Limit)
	}

	output := &dynamodb.QueryOutput{}
	page := matched
	if limit > 0 && len(matched) >= limit {
		page = matched[:limit]
		// A full page always carries a continuation key, even when the
		// next page turns out empty.
		last := page[len(page)-1]
		output.LastEvaluatedKey = Item{
			partitionKey: last[partitionKey],
			sortKey:      last[sortKey],
		}
		if sortAttr != sortKey {
			output.LastEvaluatedKey[sortAttr] = last[sortAttr]
		}
	}

	for _, item := range page {
		output.Items = append(output.Items, maps.Clone(item))
	}
	output.Count = int32(len(output.Items))
	output.ScannedCount = output.Count
	return output, nil
}

// BatchGetItem implements DynamoDBAPI.
func (m *MemoryClient) BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("BatchGetItem"); err != nil {
		return nil, err
	}

	output := &dynamodb.BatchGetItemOutput{
		Responses:       map[string][]Item{},
		UnprocessedKeys: map[string]types.KeysAndAttributes{},
	}

	for table, ka := range params.RequestItems {
		if len(ka.Keys) > maxBatchGet {
			return nil, fmt.Errorf("dynamock: batch get of %d keys exceeds %d", len(ka.Keys), maxBatchGet)
		}
		var unprocessed []Item
		for _, k := range ka.Keys {
			if m.UnprocessedKey != nil && m.UnprocessedKey(k) {
				unprocessed = append(unprocessed, k)
				continue
			}
			key, err := keyOf(k)
			if err != nil {
				return nil, err
			}
			if item, ok := m.items[key]; ok {
				output.Responses[table] = append(output.Responses[table], maps.Clone(item))
			}
		}
		if len(unprocessed) > 0 {
			output.UnprocessedKeys[table] = types.KeysAndAttributes{Keys: unprocessed}
		}
	}
	return output, nil
}

// BatchWriteItem implements DynamoDBAPI.
func (m *MemoryClient) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("BatchWriteItem"); err != nil {
		return nil, err
	}

	output := &dynamodb.BatchWriteItemOutput{
		UnprocessedItems: map[string][]types.WriteRequest{},
	}

	for table, requests := range params.RequestItems {
		if len(requests) > maxBatchWrite {
			return nil, fmt.Errorf("dynamock: batch write of %d requests exceeds %d", len(requests), maxBatchWrite)
		}
		if err := distinctWrites(requests); err != nil {
			return nil, err
		}
		for _, req := range requests {
			if m.UnprocessedWrite != nil && m.UnprocessedWrite(req) {
				output.UnprocessedItems[table] = append(output.UnprocessedItems[table], req)
				continue
			}
			switch {
			case req.PutRequest != nil:
				key, err := keyOf(req.PutRequest.Item)
				if err != nil {
					return nil, err
				}
				m.items[key] = maps.Clone(req.PutRequest.Item)
			case req.DeleteRequest != nil:
				key, err := keyOf(req.DeleteRequest.Key)
				if err != nil {
					return nil, err
				}
				delete(m.items, key)
			}
		}
	}
	return output, nil
}

// distinctWrites rejects a batch that addresses the same key twice, as
// DynamoDB does with a ValidationException.
func distinctWrites(requests []types.WriteRequest) error {
	seen := make(map[itemKey]struct{}, len(requests))
	for _, req := range requests {
		var keyItem Item
		switch {
		case req.PutRequest != nil:
			keyItem = req.PutRequest.Item
		case req.DeleteRequest != nil:
			keyItem = req.DeleteRequest.Key
		}
		key, err := keyOf(keyItem)
		if err != nil {
			return err
		}
		if _, ok := seen[key]; ok {
			return fmt.Errorf("dynamock: ValidationException: Provided list of item keys contains duplicates")
		}
		seen[key] = struct{}{}
	}
	return nil
}

// TransactWriteItems implements DynamoDBAPI for ConditionCheck, Put, Update
// and Delete items. Every condition is evaluated before any write is applied.
func (m *MemoryClient) TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("TransactWriteItems"); err != nil {
		return nil, err
	}

	type write struct {
		key    itemKey
		item   Item // nil deletes
		remove bool
	}

	var (
		writes  []write
		reasons = make([]types.CancellationReason, len(params.TransactItems))
		failed  bool
	)

	for i, ti := range params.TransactItems {
		var (
			keyItem Item
			expr    *string
			names   map[string]string
			values  map[string]types.AttributeValue
			w       write
		)

		switch {
		case ti.ConditionCheck != nil:
			keyItem, expr = ti.ConditionCheck.Key, ti.ConditionCheck.ConditionExpression
			names, values = ti.ConditionCheck.ExpressionAttributeNames, ti.ConditionCheck.ExpressionAttributeValues
		case ti.Put != nil:
			keyItem, expr = ti.Put.Item, ti.Put.ConditionExpression
			names, values = ti.Put.ExpressionAttributeNames, ti.Put.ExpressionAttributeValues
			w.item = ti.Put.Item
		case ti.Update != nil:
			keyItem, expr = ti.Update.Key, ti.Update.ConditionExpression
			names, values = ti.Update.ExpressionAttributeNames, ti.Update.ExpressionAttributeValues
		case ti.Delete != nil:
			keyItem, expr = ti.Delete.Key, ti.Delete.ConditionExpression
			names, values = ti.Delete.ExpressionAttributeNames, ti.Delete.ExpressionAttributeValues
			w.remove = true
		default:
			return nil, fmt.Errorf("dynamock: unsupported transaction item %d", i)
		}

		key, err := keyOf(keyItem)
		if err != nil {
			return nil, err
		}

		ok, err := evalCondition(aws.ToString(expr), m.items[key], names, values)
		if err != nil {
			return nil, err
		}

		reasons[i] = types.CancellationReason{Code: aws.String("None")}
		if !ok {
			failed = true
			reasons[i] = types.CancellationReason{
				Code:    aws.String("ConditionalCheckFailed"),
				Message: aws.String("The conditional request failed"),
			}
		} else if ti.Update != nil {
			updated := maps.Clone(m.items[key])
			if updated == nil {
				updated = maps.Clone(ti.Update.Key)
			}
			if err := applyUpdate(aws.ToString(ti.Update.UpdateExpression), updated, names, values); err != nil {
				return nil, err
			}
			w.item = updated
		}

		if w.item != nil || w.remove {
			w.key = key
			writes = append(writes, w)
		}
	}

	if failed {
		return nil, &types.TransactionCanceledException{
			Message:             aws.String("Transaction cancelled, please refer cancellation reasons for specific reasons"),
			CancellationReasons: reasons,
		}
	}

	for _, w := range writes {
		if w.remove {
			delete(m.items, w.key)
			continue
		}
		m.items[w.key] = maps.Clone(w.item)
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func conditionFailed() error {
	return &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
}

func keyOf(item Item) (itemKey, error) {
	pk, ok := stringOf(item[partitionKey])
	if !ok {
		return itemKey{}, fmt.Errorf("dynamock: item is missing %s", partitionKey)
	}
	id, ok := stringOf(item[sortKey])
	if !ok {
		return itemKey{}, fmt.Errorf("dynamock: item is missing %s", sortKey)
	}
	return itemKey{partition: pk, id: id}, nil
}

func stringOf(av types.AttributeValue) (string, bool) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value, true
	case *types.AttributeValueMemberN:
		return v.Value, true
	default:
		return "", false
	}
}

var (
	equalsPattern     = regexp.MustCompile(`(#\w+)\s*=\s*(:\w+)`)
	beginsWithPattern = regexp.MustCompile(`begins_with\s*\(\s*(#\w+)\s*,\s*(:\w+)\s*\)`)
	existsPattern     = regexp.MustCompile(`attribute_(not_)?exists\s*\(\s*(#\w+)\s*\)`)
	clausePattern     = regexp.MustCompile(`\b(SET|REMOVE|ADD|DELETE)\b`)
)

type keyCondition struct {
	partition string
	sortAttr  string
	equals    string
	hasEquals bool
	prefix    string
	hasPrefix bool
}

func parseKeyCondition(expr string, names map[string]string, values map[string]types.AttributeValue) (keyCondition, error) {
	var cond keyCondition

	for _, match := range equalsPattern.FindAllStringSubmatch(expr, -1) {
		name, value, err := resolve(match[1], match[2], names, values)
		if err != nil {
			return cond, err
		}
		if name == partitionKey {
			cond.partition = value
			continue
		}
		cond.sortAttr, cond.equals, cond.hasEquals = name, value, true
	}

	for _, match := range beginsWithPattern.FindAllStringSubmatch(expr, -1) {
		name, value, err := resolve(match[1], match[2], names, values)
		if err != nil {
			return cond, err
		}
		cond.sortAttr, cond.prefix, cond.hasPrefix = name, value, true
	}

	return cond, nil
}

func resolve(nameRef, valueRef string, names map[string]string, values map[string]types.AttributeValue) (string, string, error) {
	name, ok := names[nameRef]
	if !ok {
		return "", "", fmt.Errorf("dynamock: undefined attribute name %s", nameRef)
	}
	value, ok := stringOf(values[valueRef])
	if !ok {
		return "", "", fmt.Errorf("dynamock: undefined or non-scalar value %s", valueRef)
	}
	return name, value, nil
}

// evalCondition evaluates a conjunction of attribute_exists,
// attribute_not_exists, begins_with and equality terms against item, which is
// nil when no item is stored.
func evalCondition(expr string, item Item, names map[string]string, values map[string]types.AttributeValue) (bool, error) {
	if strings.TrimSpace(expr) == "" {
		return true, nil
	}
	if strings.Contains(expr, " OR ") || strings.Contains(expr, "NOT ") {
		return false, fmt.Errorf("dynamock: unsupported condition %q", expr)
	}

	for _, match := range existsPattern.FindAllStringSubmatch(expr, -1) {
		name, ok := names[match[2]]
		if !ok {
			return false, fmt.Errorf("dynamock: undefined attribute name %s", match[2])
		}
		_, present := item[name]
		if negate := match[1] != ""; present == negate {
			return false, nil
		}
	}

	for _, match := range beginsWithPattern.FindAllStringSubmatch(expr, -1) {
		name, prefix, err := resolve(match[1], match[2], names, values)
		if err != nil {
			return false, err
		}
		value, ok := stringOf(item[name])
		if !ok || !strings.HasPrefix(value, prefix) {
			return false, nil
		}
	}

	for _, match := range equalsPattern.FindAllStringSubmatch(expr, -1) {
		name, ok := names[match[1]]
		if !ok {
			return false, fmt.Errorf("dynamock: undefined attribute name %s", match[1])
		}
		if !reflect.DeepEqual(item[name], values[match[2]]) {
			return false, nil
		}
	}

	return true, nil
}

// applyUpdate applies SET and REMOVE clauses to item in place.
func applyUpdate(expr string, item Item, names map[string]string, values map[string]types.AttributeValue) error {
	bounds := clausePattern.FindAllStringSubmatchIndex(expr, -1)
	if len(bounds) == 0 {
		return fmt.Errorf("dynamock: empty update expression")
	}

	for i, b := range bounds {
		end := len(expr)
		if i+1 < len(bounds) {
			end = bounds[i+1][0]
		}
		action := expr[b[2]:b[3]]
		body := expr[b[1]:end]

		for _, term := range strings.Split(body, ",") {
			term = strings.TrimSpace(term)
			if term == "" {
				continue
			}
			switch action {
			case "SET":
				lhs, rhs, ok := strings.Cut(term, "=")
				if !ok {
					return fmt.Errorf("dynamock: unsupported SET term %q", term)
				}
				name, ok := names[strings.TrimSpace(lhs)]
				if !ok {
					return fmt.Errorf("dynamock: undefined attribute name %s", lhs)
				}
				value, ok := values[strings.TrimSpace(rhs)]
				if !ok {
					return fmt.Errorf("dynamock: unsupported SET value %q", rhs)
				}
				item[name] = value
			case "REMOVE":
				name, ok := names[term]
				if !ok {
					return fmt.Errorf("dynamock: undefined attribute name %s", term)
				}
				delete(item, name)
			default:
				return fmt.Errorf("dynamock: unsupported update action %s", action)
			}
		}
	}
	return nil
}
