package dynamock

import (
	"maps"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DefaultCreated is the timestamp given to fixtures built without WithCreated.
var DefaultCreated = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// ItemOption is a functional option for configuring fixture items during
// building.
type ItemOption func(*ItemBuilder)

// ItemBuilder builds raw stored items for seeding a table. Builders produce
// attribute maps directly so fixtures can also describe records the store
// would never write, such as items missing required attributes.
type ItemBuilder struct {
	item Item
}

func newItem(partition, id string, opts []ItemOption) *ItemBuilder {
	b := &ItemBuilder{
		item: Item{
			partitionKey: str(partition),
			sortKey:      str(id),
			"created_at": str(DefaultCreated.Format(time.RFC3339Nano)),
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NewComment starts a comment fixture in scope.
func NewComment(scope, id string, opts ...ItemOption) *ItemBuilder {
	b := newItem(scope, id, nil)
	b.item["body"] = str("comment " + id)
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NewReaction starts a reaction fixture in scope.
func NewReaction(scope, id, commentID, userID, reactionType string, opts ...ItemOption) *ItemBuilder {
	b := newItem(scope, id, nil)
	b.item["comment_id"] = str(commentID)
	b.item["user_id"] = str(userID)
	b.item["type"] = str(reactionType)
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NewUser starts a user fixture. A user's partition is its own id.
func NewUser(id, name string, opts ...ItemOption) *ItemBuilder {
	b := newItem(id, id, nil)
	b.item["email"] = str(name + "@example.com")
	b.item["name"] = str(name)
	b.item["picture_url"] = str("https://example.com/" + name + ".png")
	b.item["auth_token"] = str(id + ":secret")
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build returns a copy of the built item.
func (b *ItemBuilder) Build() Item {
	return maps.Clone(b.item)
}

// Functional Options

// WithAuthor sets the comment author.
func WithAuthor(userID string) ItemOption {
	return WithString("user_id", userID)
}

// WithRepliesTo makes the comment a reply to parentID.
func WithRepliesTo(parentID string) ItemOption {
	return WithString("replies_to", parentID)
}

// WithBody sets the comment body.
func WithBody(body string) ItemOption {
	return WithString("body", body)
}

// WithDeleted sets the soft-delete flag.
func WithDeleted() ItemOption {
	return func(b *ItemBuilder) {
		b.item["is_deleted"] = &types.AttributeValueMemberBOOL{Value: true}
	}
}

// WithCreated sets the creation timestamp.
func WithCreated(created time.Time) ItemOption {
	return WithString("created_at", created.UTC().Format(time.RFC3339Nano))
}

// WithString sets an arbitrary string attribute.
func WithString(name, value string) ItemOption {
	return func(b *ItemBuilder) {
		b.item[name] = str(value)
	}
}

// WithAttribute sets an arbitrary attribute value.
func WithAttribute(name string, value types.AttributeValue) ItemOption {
	return func(b *ItemBuilder) {
		b.item[name] = value
	}
}

// Without removes an attribute.
func Without(name string) ItemOption {
	return func(b *ItemBuilder) {
		delete(b.item, name)
	}
}

func str(s string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: s}
}
