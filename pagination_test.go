package commentable

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/nisimpson/commentable/dynamock"
)

func TestQuery_MarshalQuery(t *testing.T) {
	table := NewTable(nil, "test-table")

	t.Run("prefix scan", func(t *testing.T) {
		input, err := ByPrefix("article-1", CommentPrefix).MarshalQuery(table)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if aws.ToString(input.TableName) != "test-table" {
			t.Errorf("Expected table test-table, got %s", aws.ToString(input.TableName))
		}
		if input.IndexName != nil {
			t.Errorf("Expected no index, got %s", aws.ToString(input.IndexName))
		}
		if !aws.ToBool(input.ScanIndexForward) {
			t.Error("Expected ascending scan")
		}
		if input.Limit != nil {
			t.Error("Expected no limit")
		}
	})

	t.Run("index equality", func(t *testing.T) {
		q := OnIndex("replies_index", AttributeNameRepliesTo, "article-1", "COMMENT_1")
		q.Limit = 1
		q.SortDescending = true
		input, err := q.MarshalQuery(table)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if aws.ToString(input.IndexName) != "replies_index" {
			t.Errorf("Expected replies_index, got %s", aws.ToString(input.IndexName))
		}
		if aws.ToInt32(input.Limit) != 1 {
			t.Errorf("Expected limit 1, got %d", aws.ToInt32(input.Limit))
		}
		if aws.ToBool(input.ScanIndexForward) {
			t.Error("Expected descending scan")
		}
	})

	t.Run("filter", func(t *testing.T) {
		q := ByPrefix("article-1", CommentPrefix)
		q.ConditionFilter = expression.Name(AttributeNameIsDeleted).Equal(expression.Value(true))
		input, err := q.MarshalQuery(table)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if input.FilterExpression == nil {
			t.Error("Expected filter expression")
		}
	})

	t.Run("missing partition", func(t *testing.T) {
		if _, err := (&Query{SortPrefix: CommentPrefix}).MarshalQuery(table); err == nil {
			t.Error("Expected error, got nil")
		}
	})

	t.Run("conflicting sort conditions", func(t *testing.T) {
		q := &Query{Partition: "a", SortEquals: "x", SortPrefix: "y"}
		if _, err := q.MarshalQuery(table); err == nil {
			t.Error("Expected error, got nil")
		}
	})
}

func TestQueryAll_Completeness(t *testing.T) {
	const total = 23

	for _, pageSize := range []int{0, 1, 5, 10, 23, 50} {
		t.Run(fmt.Sprintf("page size %d", pageSize), func(t *testing.T) {
			store, client := newTestStore(t)
			client.PageSize = pageSize
			for i := range total {
				seed(t, client, dynamock.NewComment("article-1", fmt.Sprintf("COMMENT_%03d", i)))
			}
			// Noise in another partition
			seed(t, client, dynamock.NewComment("article-2", "COMMENT_000"))

			comments, err := store.Comments.List(context.Background(), "article-1")
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(comments) != total {
				t.Fatalf("Expected %d comments, got %d", total, len(comments))
			}

			seen := make(map[string]bool, total)
			for i, c := range comments {
				if seen[c.ID] {
					t.Errorf("Duplicate comment %s", c.ID)
				}
				seen[c.ID] = true
				if want := fmt.Sprintf("COMMENT_%03d", i); c.ID != want {
					t.Errorf("Expected %s at %d, got %s", want, i, c.ID)
				}
			}

			wantPages := 1
			if pageSize > 0 {
				// A full final page is followed by one empty page
				wantPages = total/pageSize + 1
			}
			if got := client.Calls("Query"); got != wantPages {
				t.Errorf("Expected %d pages, got %d", wantPages, got)
			}
		})
	}
}

func TestQueryAll_IndexPagination(t *testing.T) {
	store, client := newTestStore(t)
	client.PageSize = 2
	seed(t, client, dynamock.NewComment("article-1", "COMMENT_0"))
	for i := 1; i <= 5; i++ {
		seed(t, client, dynamock.NewComment("article-1", fmt.Sprintf("COMMENT_%d", i), dynamock.WithRepliesTo("COMMENT_0")))
	}
	seed(t, client, dynamock.NewComment("article-1", "COMMENT_9", dynamock.WithRepliesTo("COMMENT_1")))

	replies, err := store.Comments.Replies(context.Background(), "article-1", "COMMENT_0")
	if err != nil {
		t.Fatalf("Replies failed: %v", err)
	}
	if len(replies) != 5 {
		t.Errorf("Expected 5 replies, got %d", len(replies))
	}
	for _, r := range replies {
		if r.RepliesTo != "COMMENT_0" {
			t.Errorf("Unexpected reply %s to %s", r.ID, r.RepliesTo)
		}
	}
}

// pagedQuery feeds QueryAll a fixed input so the page loop can be observed
// through the mock client.
type pagedQuery struct{}

func (pagedQuery) MarshalQuery(t *Table) (*dynamodb.QueryInput, error) {
	return &dynamodb.QueryInput{TableName: aws.String(t.TableName)}, nil
}

func TestQueryAll_FollowsContinuationKey(t *testing.T) {
	client := dynamock.NewMockClient(t)
	table := NewTable(client, "test-table")

	pages := [][]Item{
		{Key{"a", "COMMENT_1"}.Item(), Key{"a", "COMMENT_2"}.Item()},
		{Key{"a", "COMMENT_3"}.Item()},
	}

	var calls int
	client.QueryFunc = func(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
		defer func() { calls++ }()
		switch calls {
		case 0:
			if params.ExclusiveStartKey != nil {
				t.Error("Expected no start key on first page")
			}
			return &dynamodb.QueryOutput{Items: pages[0], LastEvaluatedKey: pages[0][1]}, nil
		case 1:
			id, _ := String(params.ExclusiveStartKey, AttributeNameID)
			if id != "COMMENT_2" {
				t.Errorf("Expected start key COMMENT_2, got %q", id)
			}
			return &dynamodb.QueryOutput{Items: pages[1]}, nil
		default:
			t.Fatalf("Unexpected page %d", calls)
			return nil, nil
		}
	}

	items, err := table.QueryAll(context.Background(), pagedQuery{})
	if err != nil {
		t.Fatalf("QueryAll failed: %v", err)
	}
	if len(items) != 3 {
		t.Errorf("Expected 3 items, got %d", len(items))
	}
	if calls != 2 {
		t.Errorf("Expected 2 calls, got %d", calls)
	}
}
