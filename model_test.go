package commentable

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/nisimpson/commentable/dynamock"
)

var testNow = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

// newTestStore returns a store over an in-memory table with a fixed clock and
// no resubmission delay.
func newTestStore(t *testing.T) (*Store, *dynamock.MemoryClient) {
	t.Helper()
	client := dynamock.NewMemoryClient()
	store := New(client, "test-table",
		WithClock(func() time.Time { return testNow }),
		WithRetryBackoff(0),
	)
	return store, client
}

func seed(t *testing.T, client *dynamock.MemoryClient, builders ...*dynamock.ItemBuilder) {
	t.Helper()
	for _, b := range builders {
		if err := client.Seed(b.Build()); err != nil {
			t.Fatalf("Failed to seed: %v", err)
		}
	}
}

func TestModel_CreateAndFind(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	in := Comment{
		Scope:     "article-1",
		ID:        "COMMENT_1",
		UserID:    "USER_1",
		Body:      "hello",
		CreatedAt: testNow,
	}

	created, err := store.Comments.Create(ctx, in.Item())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created != in {
		t.Errorf("Expected %+v, got %+v", in, created)
	}

	found, ok, err := store.Comments.Find(ctx, in.Key())
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if !ok {
		t.Fatal("Expected comment to be found")
	}
	if found != in {
		t.Errorf("Expected %+v, got %+v", in, found)
	}
}

func TestModel_FindAbsent(t *testing.T) {
	store, _ := newTestStore(t)

	_, ok, err := store.Comments.Find(context.Background(), Key{Partition: "article-1", ID: "COMMENT_X"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if ok {
		t.Error("Expected found=false")
	}

	_, err = store.Comments.Get(context.Background(), Key{Partition: "article-1", ID: "COMMENT_X"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestModel_CreateRejectsMalformedItem(t *testing.T) {
	store, client := newTestStore(t)

	item := dynamock.NewComment("article-1", "COMMENT_1", dynamock.Without("body")).Build()
	_, err := store.Comments.Create(context.Background(), item)
	if !errors.Is(err, ErrRecordInvalid) {
		t.Errorf("Expected ErrRecordInvalid, got %v", err)
	}
	if client.Len() != 0 {
		t.Error("Expected nothing to be written")
	}
}

func TestModel_CreateUnique(t *testing.T) {
	store, client := newTestStore(t)
	seed(t, client, dynamock.NewComment("article-1", "COMMENT_1", dynamock.WithBody("original")))

	item := dynamock.NewComment("article-1", "COMMENT_1", dynamock.WithBody("replacement")).Build()
	_, err := store.Comments.CreateUnique(context.Background(), item)
	if !errors.Is(err, ErrConflict) {
		t.Errorf("Expected ErrConflict, got %v", err)
	}

	stored, _ := client.Lookup("article-1", "COMMENT_1")
	if body, _ := String(stored, AttributeNameBody); body != "original" {
		t.Errorf("Expected original body to survive, got %q", body)
	}
}

func TestModel_Update(t *testing.T) {
	store, client := newTestStore(t)
	seed(t, client, dynamock.NewComment("article-1", "COMMENT_1", dynamock.WithAuthor("USER_1")))
	ctx := context.Background()

	t.Run("returns materialized record", func(t *testing.T) {
		update := expression.Set(expression.Name(AttributeNameBody), expression.Value("edited"))
		got, err := store.Comments.Update(ctx, Key{"article-1", "COMMENT_1"}, update)
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if got.Body != "edited" {
			t.Errorf("Expected body edited, got %q", got.Body)
		}
		if got.UserID != "USER_1" {
			t.Errorf("Expected untouched user_id, got %q", got.UserID)
		}
	})

	t.Run("absent item is not found and not created", func(t *testing.T) {
		update := expression.Set(expression.Name(AttributeNameBody), expression.Value("edited"))
		_, err := store.Comments.Update(ctx, Key{"article-1", "COMMENT_X"}, update)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
		if _, ok := client.Lookup("article-1", "COMMENT_X"); ok {
			t.Error("Update should not create items")
		}
	})
}

func TestModel_Delete(t *testing.T) {
	store, client := newTestStore(t)
	seed(t, client, dynamock.NewComment("article-1", "COMMENT_1"))
	ctx := context.Background()
	key := Key{"article-1", "COMMENT_1"}

	if err := store.Comments.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := client.Lookup("article-1", "COMMENT_1"); ok {
		t.Error("Expected comment to be deleted")
	}

	// Idempotent
	if err := store.Comments.Delete(ctx, key); err != nil {
		t.Errorf("Expected second delete to succeed, got %v", err)
	}

	if err := store.Comments.DeleteExisting(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound from DeleteExisting, got %v", err)
	}
}

func TestModel_StoreFailure(t *testing.T) {
	store, client := newTestStore(t)
	boom := errors.New("connection reset")
	client.Fail = func(string) error { return boom }
	ctx := context.Background()

	_, _, err := store.Comments.Find(ctx, Key{"article-1", "COMMENT_1"})
	if !errors.Is(err, ErrStore) || !errors.Is(err, boom) {
		t.Errorf("Expected ErrStore wrapping cause, got %v", err)
	}

	_, err = store.Comments.List(ctx, "article-1")
	if !errors.Is(err, ErrStore) {
		t.Errorf("Expected ErrStore from List, got %v", err)
	}

	err = store.Comments.Delete(ctx, Key{"article-1", "COMMENT_1"})
	if !errors.Is(err, ErrStore) {
		t.Errorf("Expected ErrStore from Delete, got %v", err)
	}
}

func TestModel_CorruptRecord(t *testing.T) {
	store, client := newTestStore(t)
	seed(t, client,
		dynamock.NewComment("article-1", "COMMENT_1"),
		dynamock.NewComment("article-1", "COMMENT_2", dynamock.WithString("created_at", "not-a-time")),
	)

	_, err := store.Comments.List(context.Background(), "article-1")
	if !errors.Is(err, ErrCorruptRecord) {
		t.Errorf("Expected ErrCorruptRecord, got %v", err)
	}

	var fe *FieldError
	if !errors.As(err, &fe) || fe.Field != AttributeNameCreatedAt {
		t.Errorf("Expected field error on created_at, got %v", err)
	}
}

func TestModel_ListByPrefixSeparatesEntities(t *testing.T) {
	store, client := newTestStore(t)
	seed(t, client,
		dynamock.NewComment("article-1", "COMMENT_1"),
		dynamock.NewComment("article-2", "COMMENT_2"),
		dynamock.NewReaction("article-1", "REACTION_1", "COMMENT_1", "USER_1", "like"),
	)
	ctx := context.Background()

	comments, err := store.Comments.List(ctx, "article-1")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(comments) != 1 || comments[0].ID != "COMMENT_1" {
		t.Errorf("Expected only COMMENT_1, got %+v", comments)
	}

	reactions, err := store.Reactions.List(ctx, "article-1")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(reactions) != 1 || reactions[0].Type != "like" {
		t.Errorf("Expected one like, got %+v", reactions)
	}
}
