package commentable

import (
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestHash(t *testing.T) {
	// SHA3-256 of the empty string
	want := "a7ffc6f8bf1ed76651c14756a061d662f580ff4de43b49fa82d80a4b80f8434a"
	if got := Hash(""); got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}

	if Hash("a") == Hash("b") {
		t.Error("Expected distinct digests")
	}
}

func TestNewCommentID(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 6_000_000, time.UTC)
	id := NewCommentID("article-1", "USER_1", now)

	millis := strconv.FormatInt(now.UnixMilli(), 10)
	if !strings.HasPrefix(id, CommentPrefix+millis) {
		t.Errorf("Expected prefix %s%s, got %s", CommentPrefix, millis, id)
	}
	if len(id) != len(CommentPrefix)+len(millis)+64 {
		t.Errorf("Unexpected id length %d", len(id))
	}

	later := NewCommentID("article-1", "USER_1", now.Add(time.Millisecond))
	if later <= id {
		t.Errorf("Expected later id to sort after %s, got %s", id, later)
	}

	if other := NewCommentID("article-1", "USER_2", now); other == id {
		t.Error("Expected different authors to yield different ids")
	}
}

func TestReactionID(t *testing.T) {
	a := ReactionID("COMMENT_1", "USER_1", "like")
	b := ReactionID("COMMENT_1", "USER_1", "like")
	if a != b {
		t.Error("Expected the same triple to yield the same id")
	}
	if !strings.HasPrefix(a, ReactionPrefix) {
		t.Errorf("Expected prefix %s, got %s", ReactionPrefix, a)
	}

	for _, other := range []string{
		ReactionID("COMMENT_1", "USER_1", "heart"),
		ReactionID("COMMENT_1", "USER_2", "like"),
		ReactionID("COMMENT_2", "USER_1", "like"),
		// Field boundaries are preserved
		ReactionID("COMMENT_1U", "SER_1", "like"),
	} {
		if other == a {
			t.Errorf("Expected distinct id, got %s", other)
		}
	}
}

func TestUserID(t *testing.T) {
	if UserID("ana@example.com") != UserID("ana@example.com") {
		t.Error("Expected deterministic user id")
	}
	if got := UserID("ana@example.com"); got != UserPrefix+Hash("ana@example.com") {
		t.Errorf("Unexpected user id %s", got)
	}
}

func TestAuthToken(t *testing.T) {
	id := UserID("ana@example.com")
	token := NewAuthToken(id)

	if token == NewAuthToken(id) {
		t.Error("Expected fresh secret per token")
	}

	got, err := ParseAuthToken(token)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got != id {
		t.Errorf("Expected %s, got %s", id, got)
	}

	for _, bad := range []string{"", "nodelimiter", ":secret", "hash:"} {
		if _, err := ParseAuthToken(bad); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}
}
