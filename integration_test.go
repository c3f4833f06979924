package commentable

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/nisimpson/commentable/dynamock"
)

func schema(tableName string) *dynamodb.CreateTableInput {
	return NewTable(nil, tableName).Schema()
}

func TestIntegration_CommentLifecycle(t *testing.T) {
	dynamock.RunIntegrationTest(t, nil, schema, func(local *dynamock.LocalDynamoDB, tableName string) {
		ctx := context.Background()
		store := New(local.Client, tableName, WithRetryBackoff(0))

		user, err := store.Users.FindOrRegister(ctx, ana)
		if err != nil {
			t.Fatalf("FindOrRegister failed: %v", err)
		}

		root, err := store.Comments.Add(ctx, NewComment{Scope: "article-1", AuthorID: user.ID, Body: "root"})
		if err != nil {
			t.Fatalf("Add failed: %v", err)
		}

		if _, err := store.Comments.Add(ctx, NewComment{Scope: "article-1", AuthorID: user.ID, RepliesTo: "COMMENT_GONE", Body: "x"}); !errors.Is(err, ErrInvalidParent) {
			t.Errorf("Expected ErrInvalidParent, got %v", err)
		}

		reply, err := store.Comments.Add(ctx, NewComment{Scope: "article-1", AuthorID: user.ID, RepliesTo: root.ID, Body: "reply"})
		if err != nil {
			t.Fatalf("Add reply failed: %v", err)
		}

		if _, err := store.Reactions.Add(ctx, "article-1", root.ID, user.ID, "like"); err != nil {
			t.Fatalf("Add reaction failed: %v", err)
		}

		nodes, err := store.ListThread(ctx, "article-1", user.ID)
		if err != nil {
			t.Fatalf("ListThread failed: %v", err)
		}
		if len(nodes) != 1 || len(nodes[0].Replies) != 1 || nodes[0].Replies[0].ID != reply.ID {
			t.Fatalf("Unexpected thread shape")
		}
		if nodes[0].Reactions["like"] != 1 {
			t.Errorf("Expected like:1, got %v", nodes[0].Reactions)
		}

		erased, err := store.Comments.Remove(ctx, root.Key())
		if err != nil || erased == nil || !erased.IsDeleted {
			t.Errorf("Expected root to be erased, got %+v %v", erased, err)
		}

		if err := store.Reactions.RemoveAllForComment(ctx, "article-1", root.ID); err != nil {
			t.Errorf("RemoveAllForComment failed: %v", err)
		}
	})
}
