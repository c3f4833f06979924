package commentable

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

const (
	// MaxBatchSize is the maximum number of write requests allowed in a
	// DynamoDB batch write operation.
	MaxBatchSize = 25

	// MaxBatchGetSize is the maximum number of keys allowed in a DynamoDB
	// batch get operation.
	MaxBatchGetSize = 100
)

// Attribute names of the persisted records. These are part of the wire
// contract and must not change.
const (
	AttributeNamePartition = "primary_key"
	AttributeNameID        = "id"
	AttributeNameUserID    = "user_id"
	AttributeNameRepliesTo = "replies_to"
	AttributeNameBody      = "body"
	AttributeNameIsDeleted = "is_deleted"
	AttributeNameCreatedAt = "created_at"
	AttributeNameCommentID = "comment_id"
	AttributeNameType      = "type"
	AttributeNameEmail     = "email"
	AttributeNameName      = "name"
	AttributeNamePicture   = "picture_url"
	AttributeNameAuthToken = "auth_token"
	AttributeNameLastReply = "last_reply"
)

// Clock is a function type that returns the current time for dependency injection.
type Clock func() time.Time

// DefaultClock returns the current UTC time.
func DefaultClock() time.Time {
	return time.Now().UTC()
}

// DynamoDBClient interface for easier testing and connection management.
type DynamoDBClient interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Table contains the DynamoDB client and table configuration shared by every
// record model. A Table holds no per-request state and is safe for
// concurrent use.
type Table struct {
	TableName          string        // Main table name
	RepliesIndexName   string        // Index keyed by (primary_key, replies_to)
	ReactionsIndexName string        // Index keyed by (primary_key, comment_id)
	CallTimeout        time.Duration // Deadline applied to every store call. Zero disables it.
	RetryBackoff       time.Duration // Base delay before resubmitting unprocessed batch items
	Tick               Clock         // Function to get current time for timestamps
	Logger             *zap.Logger   // Structured logger; defaults to a no-op logger

	client DynamoDBClient
}

// TableOption configures a Table.
type TableOption func(*Table)

// WithIndexes overrides the secondary index names.
func WithIndexes(replies, reactions string) TableOption {
	return func(t *Table) {
		t.RepliesIndexName = replies
		t.ReactionsIndexName = reactions
	}
}

// WithCallTimeout sets the deadline applied to each store call.
func WithCallTimeout(d time.Duration) TableOption {
	return func(t *Table) {
		t.CallTimeout = d
	}
}

// WithRetryBackoff sets the base delay between batch resubmissions.
func WithRetryBackoff(d time.Duration) TableOption {
	return func(t *Table) {
		t.RetryBackoff = d
	}
}

// WithClock sets the clock used for record timestamps and ids.
func WithClock(c Clock) TableOption {
	return func(t *Table) {
		t.Tick = c
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) TableOption {
	return func(t *Table) {
		t.Logger = l
	}
}

// NewTable creates a new Table with default configuration.
func NewTable(client DynamoDBClient, tableName string, opts ...TableOption) *Table {
	t := &Table{
		TableName:          tableName,
		RepliesIndexName:   "replies_index",
		ReactionsIndexName: "reactions_index",
		CallTimeout:        5 * time.Second,
		RetryBackoff:       50 * time.Millisecond,
		Tick:               DefaultClock,
		Logger:             zap.NewNop(),
		client:             client,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.Logger == nil {
		t.Logger = zap.NewNop()
	}
	if t.Tick == nil {
		t.Tick = DefaultClock
	}
	return t
}

// Client returns the underlying DynamoDB client.
func (t *Table) Client() DynamoDBClient {
	return t.client
}

// call bounds a single store call by CallTimeout.
func (t *Table) call(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, t.CallTimeout)
}

// backoff waits before the nth resubmission of unprocessed batch items.
func (t *Table) backoff(ctx context.Context, attempt int) error {
	if t.RetryBackoff <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Duration(attempt) * t.RetryBackoff):
		return nil
	}
}

// Key addresses a single item in the table.
type Key struct {
	Partition string // primary_key
	ID        string // id
}

// Item returns the DynamoDB key attributes.
func (k Key) Item() Item {
	return Item{
		AttributeNamePartition: StringValue(k.Partition),
		AttributeNameID:        StringValue(k.ID),
	}
}

// KeyOf extracts the key attributes from a stored item.
func KeyOf(item Item) (Key, error) {
	var (
		d   = decoder{item: item}
		key = Key{
			Partition: d.string(AttributeNamePartition),
			ID:        d.string(AttributeNameID),
		}
	)
	return key, d.err
}

func keysOf(requests []types.WriteRequest) []Key {
	keys := make([]Key, 0, len(requests))
	for _, req := range requests {
		if req.DeleteRequest == nil {
			continue
		}
		if key, err := KeyOf(req.DeleteRequest.Key); err == nil {
			keys = append(keys, key)
		}
	}
	return keys
}
