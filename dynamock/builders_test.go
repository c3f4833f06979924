package dynamock

import (
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func attr(item Item, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func TestNewComment(t *testing.T) {
	created := time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)
	item := NewComment("article-1", "COMMENT_2",
		WithAuthor("USER_1"),
		WithRepliesTo("COMMENT_1"),
		WithBody("hello"),
		WithCreated(created),
		WithDeleted(),
	).Build()

	tests := map[string]string{
		"primary_key": "article-1",
		"id":          "COMMENT_2",
		"user_id":     "USER_1",
		"replies_to":  "COMMENT_1",
		"body":        "hello",
		"created_at":  "2024-05-01T08:30:00Z",
	}
	for name, want := range tests {
		if got := attr(item, name); got != want {
			t.Errorf("Expected %s %q, got %q", name, want, got)
		}
	}

	if v, ok := item["is_deleted"].(*types.AttributeValueMemberBOOL); !ok || !v.Value {
		t.Error("Expected is_deleted true")
	}
}

func TestNewComment_Defaults(t *testing.T) {
	item := NewComment("article-1", "COMMENT_1").Build()

	if got := attr(item, "body"); got != "comment COMMENT_1" {
		t.Errorf("Expected default body, got %q", got)
	}
	if got := attr(item, "created_at"); got != DefaultCreated.Format(time.RFC3339Nano) {
		t.Errorf("Expected default created_at, got %q", got)
	}
	for _, name := range []string{"user_id", "replies_to", "is_deleted"} {
		if _, ok := item[name]; ok {
			t.Errorf("Expected %s to be absent", name)
		}
	}
}

func TestNewReaction(t *testing.T) {
	item := NewReaction("article-1", "REACTION_1", "COMMENT_1", "USER_1", "like").Build()

	if got := attr(item, "comment_id"); got != "COMMENT_1" {
		t.Errorf("Expected comment_id COMMENT_1, got %q", got)
	}
	if got := attr(item, "type"); got != "like" {
		t.Errorf("Expected type like, got %q", got)
	}
}

func TestNewUser(t *testing.T) {
	item := NewUser("USER_1", "ana").Build()

	if attr(item, "primary_key") != "USER_1" || attr(item, "id") != "USER_1" {
		t.Error("Expected user partition to equal its id")
	}
	if got := attr(item, "email"); got != "ana@example.com" {
		t.Errorf("Expected email ana@example.com, got %q", got)
	}
}

func TestItemBuilder_Overrides(t *testing.T) {
	item := NewComment("a", "COMMENT_1",
		Without("body"),
		WithString("created_at", "yesterday"),
		WithAttribute("user_id", &types.AttributeValueMemberN{Value: "7"}),
	).Build()

	if _, ok := item["body"]; ok {
		t.Error("Expected body to be removed")
	}
	if got := attr(item, "created_at"); got != "yesterday" {
		t.Errorf("Expected raw created_at, got %q", got)
	}
	if _, ok := item["user_id"].(*types.AttributeValueMemberN); !ok {
		t.Errorf("Expected numeric user_id, got %T", item["user_id"])
	}
}

func TestItemBuilder_BuildCopies(t *testing.T) {
	b := NewComment("a", "COMMENT_1")
	first := b.Build()
	first["body"] = str("changed")

	if got := attr(b.Build(), "body"); got == "changed" {
		t.Error("Build should return a copy")
	}
}
