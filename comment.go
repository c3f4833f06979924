package commentable

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// ErasedBody replaces the body of a comment erased while it still has
// replies.
const ErasedBody = "This comment has been deleted."

// Comment is a comment on a commentable resource. An erased comment keeps its
// place in the thread but has no author.
type Comment struct {
	Scope     string    `json:"primary_key"`
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	RepliesTo string    `json:"replies_to,omitempty"`
	Body      string    `json:"body"`
	IsDeleted bool      `json:"is_deleted,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	LastReply string    `json:"-"`
}

// Key returns the table key of c.
func (c Comment) Key() Key {
	return Key{Partition: c.Scope, ID: c.ID}
}

// Item returns the stored attributes of c. Optional attributes are omitted
// when empty.
func (c Comment) Item() Item {
	item := Item{
		AttributeNamePartition: StringValue(c.Scope),
		AttributeNameID:        StringValue(c.ID),
		AttributeNameBody:      StringValue(c.Body),
		AttributeNameCreatedAt: TimeValue(c.CreatedAt),
	}
	if c.UserID != "" {
		item[AttributeNameUserID] = StringValue(c.UserID)
	}
	if c.RepliesTo != "" {
		item[AttributeNameRepliesTo] = StringValue(c.RepliesTo)
	}
	if c.IsDeleted {
		item[AttributeNameIsDeleted] = BoolValue(true)
	}
	if c.LastReply != "" {
		item[AttributeNameLastReply] = StringValue(c.LastReply)
	}
	return item
}

// UnmarshalComment decodes a stored comment.
func UnmarshalComment(item Item) (Comment, error) {
	d := decoder{item: item}
	c := Comment{
		Scope:     d.string(AttributeNamePartition),
		ID:        d.string(AttributeNameID),
		UserID:    d.optionalString(AttributeNameUserID),
		RepliesTo: d.optionalString(AttributeNameRepliesTo),
		Body:      d.string(AttributeNameBody),
		IsDeleted: d.optionalBool(AttributeNameIsDeleted),
		CreatedAt: d.time(AttributeNameCreatedAt),
		LastReply: d.optionalString(AttributeNameLastReply),
	}
	return c, d.err
}

// NewComment describes a comment to be posted.
type NewComment struct {
	Scope     string
	AuthorID  string
	RepliesTo string // optional parent comment id
	Body      string
}

// Comments provides access to comment records.
type Comments struct {
	*Model[Comment]
}

// NewComments creates the comment model on t.
func NewComments(t *Table) *Comments {
	return &Comments{Model: NewModel(t, "comment", CommentPrefix, UnmarshalComment)}
}

// List returns every comment on scope.
func (c *Comments) List(ctx context.Context, scope string) ([]Comment, error) {
	return c.ListByPrefix(ctx, scope)
}

// Replies returns the direct replies to the comment id on scope.
func (c *Comments) Replies(ctx context.Context, scope, id string) ([]Comment, error) {
	t := c.Table()
	return c.Query(ctx, OnIndex(t.RepliesIndexName, AttributeNameRepliesTo, scope, id))
}

// HasReplies reports whether any comment replies to the comment id on scope.
func (c *Comments) HasReplies(ctx context.Context, scope, id string) (bool, error) {
	q := OnIndex(c.Table().RepliesIndexName, AttributeNameRepliesTo, scope, id)
	q.Limit = 1

	input, err := q.MarshalQuery(c.Table())
	if err != nil {
		return false, err
	}
	output, err := c.Table().queryPage(ctx, input)
	if err != nil {
		return false, err
	}
	return len(output.Items) > 0, nil
}

// Add posts a new comment. A reply is written in a single transaction that
// also checks the parent is a comment in the same scope; any other parent is
// ErrInvalidParent.
func (c *Comments) Add(ctx context.Context, in NewComment) (Comment, error) {
	now := c.Table().Tick()
	comment := Comment{
		Scope:     in.Scope,
		ID:        NewCommentID(in.Scope, in.AuthorID, now),
		UserID:    in.AuthorID,
		RepliesTo: in.RepliesTo,
		Body:      in.Body,
		CreatedAt: now,
	}

	if comment.RepliesTo == "" {
		return c.CreateUnique(ctx, comment.Item())
	}
	if !strings.HasPrefix(comment.RepliesTo, CommentPrefix) || comment.RepliesTo == comment.ID {
		return Comment{}, fmt.Errorf("reply to %s: %w", comment.RepliesTo, ErrInvalidParent)
	}
	return comment, c.addReply(ctx, comment)
}

func (c *Comments) addReply(ctx context.Context, reply Comment) error {
	t := c.Table()

	// The parent update fails unless a comment is stored at replies_to
	parentCond := expression.AttributeExists(expression.Name(AttributeNameID)).
		And(expression.BeginsWith(expression.Name(AttributeNameID), CommentPrefix))
	parentExpr, err := expression.NewBuilder().
		WithCondition(parentCond).
		WithUpdate(expression.Set(expression.Name(AttributeNameLastReply), expression.Value(reply.ID))).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build condition: %w", err)
	}

	putExpr, err := expression.NewBuilder().WithCondition(*notExists()).Build()
	if err != nil {
		return fmt.Errorf("failed to build condition: %w", err)
	}

	parent := Key{Partition: reply.Scope, ID: reply.RepliesTo}
	input := &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Update: &types.Update{
					TableName:                 aws.String(t.TableName),
					Key:                       parent.Item(),
					UpdateExpression:          parentExpr.Update(),
					ConditionExpression:       parentExpr.Condition(),
					ExpressionAttributeNames:  parentExpr.Names(),
					ExpressionAttributeValues: parentExpr.Values(),
				},
			},
			{
				Put: &types.Put{
					TableName:                aws.String(t.TableName),
					Item:                     reply.Item(),
					ConditionExpression:      putExpr.Condition(),
					ExpressionAttributeNames: putExpr.Names(),
				},
			},
		},
	}

	cctx, cancel := t.call(ctx)
	defer cancel()

	start := time.Now()
	_, err = t.client.TransactWriteItems(cctx, input)
	observeCall("transact_write", start, err)
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			switch {
			case cancelledBy(tce, 0):
				return fmt.Errorf("reply to %s: %w", reply.RepliesTo, ErrInvalidParent)
			case cancelledBy(tce, 1):
				return fmt.Errorf("comment: %w", ErrConflict)
			}
		}
		return storeError("failed to write reply", err)
	}

	t.Logger.Debug("reply created",
		zap.String("primary_key", reply.Scope),
		zap.String("replies_to", reply.RepliesTo),
	)
	return nil
}

// cancelledBy reports whether the transaction item at index failed its
// condition.
func cancelledBy(tce *types.TransactionCanceledException, index int) bool {
	if index >= len(tce.CancellationReasons) {
		return false
	}
	return aws.ToString(tce.CancellationReasons[index].Code) == "ConditionalCheckFailed"
}

// Edit replaces the body of an existing comment.
func (c *Comments) Edit(ctx context.Context, key Key, body string) (Comment, error) {
	update := expression.Set(expression.Name(AttributeNameBody), expression.Value(body))
	return c.Update(ctx, key, update)
}

// Erase redacts an existing comment in place: the body is replaced, the
// author is unlinked and the deleted flag is set.
func (c *Comments) Erase(ctx context.Context, key Key) (Comment, error) {
	update := expression.
		Set(expression.Name(AttributeNameIsDeleted), expression.Value(true)).
		Set(expression.Name(AttributeNameBody), expression.Value(ErasedBody)).
		Remove(expression.Name(AttributeNameUserID))
	return c.Update(ctx, key, update)
}

// Remove erases the comment at key when it has replies and deletes it
// otherwise. The erased comment is returned, or nil when it was deleted or
// was already gone.
//
// The delete only succeeds while the comment's LastReply is unchanged, so a
// reply committed after the replies check turns the delete into an erase.
func (c *Comments) Remove(ctx context.Context, key Key) (*Comment, error) {
	comment, found, err := c.Find(ctx, key)
	if err != nil || !found {
		return nil, err
	}

	hasReplies, err := c.HasReplies(ctx, key.Partition, key.ID)
	if err != nil {
		return nil, err
	}

	if !hasReplies {
		err := c.deleteLeaf(ctx, comment)
		if !errors.Is(err, ErrConflict) {
			return nil, err
		}
		c.log().Info("reply landed during delete, erasing instead",
			zap.String("primary_key", key.Partition),
			zap.String("id", key.ID),
		)
	}

	erased, err := c.Erase(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &erased, nil
}

// deleteLeaf deletes comment if no reply was stamped on it since it was read.
// A changed or vanished comment is ErrConflict.
func (c *Comments) deleteLeaf(ctx context.Context, comment Comment) error {
	t := c.Table()

	lastReply := expression.Name(AttributeNameLastReply)
	cond := expression.AttributeNotExists(lastReply)
	if comment.LastReply != "" {
		cond = expression.Equal(lastReply, expression.Value(comment.LastReply))
	}
	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeExists(expression.Name(AttributeNameID)).And(cond)).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build condition: %w", err)
	}

	cctx, cancel := t.call(ctx)
	defer cancel()

	start := time.Now()
	_, err = t.client.DeleteItem(cctx, &dynamodb.DeleteItemInput{
		TableName:                 aws.String(t.TableName),
		Key:                       comment.Key().Item(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	observeCall("delete_item", start, err)
	if err != nil {
		if isConditionFailed(err) {
			return fmt.Errorf("comment %s: %w", comment.ID, ErrConflict)
		}
		return storeError("failed to delete comment", err)
	}

	c.log().Debug("item deleted", zap.String("id", comment.ID))
	return nil
}
