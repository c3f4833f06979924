package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nisimpson/commentable"
	"github.com/nisimpson/commentable/dynamock"
	"github.com/nisimpson/commentable/internal/auth"
	"github.com/nisimpson/commentable/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	var (
		mu  sync.Mutex
		now = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}

	store := commentable.New(dynamock.NewMemoryClient(), "test-table",
		commentable.WithClock(clock),
		commentable.WithRetryBackoff(0),
	)
	verifier := auth.VerifierFunc(func(_ context.Context, idToken string) (commentable.Identity, error) {
		switch idToken {
		case "ana":
			return commentable.Identity{Email: "ana@example.com", Name: "Ana"}, nil
		case "bob":
			return commentable.Identity{Email: "bob@example.com", Name: "Bob"}, nil
		}
		return commentable.Identity{}, auth.ErrInvalidToken
	})
	return NewRouter(service.New(store, verifier, nil), nil, Options{})
}

type response struct {
	status int
	header http.Header
	body   string
}

func do(t *testing.T, h http.Handler, method, target, body string, header ...string) response {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return response{status: rec.Code, header: rec.Header(), body: rec.Body.String()}
}

func decodeInto(t *testing.T, r response, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(r.body), v), "body: %s", r.body)
}

func signIn(t *testing.T, h http.Handler, idToken string) commentable.User {
	t.Helper()
	res := do(t, h, http.MethodPost, "/auth", `{"id_token":"`+idToken+`"}`)
	require.Equal(t, http.StatusOK, res.status, res.body)
	var user commentable.User
	decodeInto(t, res, &user)
	return user
}

func TestHealth(t *testing.T) {
	h := newTestRouter(t)
	res := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, res.status)
	assert.JSONEq(t, `{"status":"healthy"}`, res.body)
	assert.NotEmpty(t, res.header.Get("Content-Type"))
}

func TestMetrics(t *testing.T) {
	h := newTestRouter(t)
	do(t, h, http.MethodGet, "/commentables/article-1/comments", "")

	res := do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, res.body, "commentable_store_calls_total")
}

func TestAuth(t *testing.T) {
	h := newTestRouter(t)

	user := signIn(t, h, "ana")
	assert.Equal(t, "Ana", user.Name)
	assert.NotEmpty(t, user.AuthToken)

	res := do(t, h, http.MethodPost, "/auth", `{"id_token":"forged"}`)
	assert.Equal(t, http.StatusUnauthorized, res.status)
	assert.JSONEq(t, `{"error":"Invalid id_token."}`, res.body)

	res = do(t, h, http.MethodPost, "/auth", `{"id_token":`)
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.JSONEq(t, `{"error":"Invalid request body."}`, res.body)

	res = do(t, h, http.MethodPost, "/auth", "")
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.JSONEq(t, `{"error":"id_token is required"}`, res.body)
}

func TestCommentLifecycle(t *testing.T) {
	h := newTestRouter(t)
	ana := signIn(t, h, "ana")
	bob := signIn(t, h, "bob")

	res := do(t, h, http.MethodPost, "/commentables/article-1/comments",
		`{"auth_token":"`+ana.AuthToken+`","body":"First!"}`)
	require.Equal(t, http.StatusCreated, res.status, res.body)
	var root commentable.Comment
	decodeInto(t, res, &root)
	assert.Equal(t, "article-1", root.Scope)

	// Bearer header stands in for a missing body token
	res = do(t, h, http.MethodPost, "/commentables/article-1/comments",
		`{"replies_to":"`+root.ID+`","body":"Second."}`,
		"Authorization", "Bearer "+bob.AuthToken)
	require.Equal(t, http.StatusCreated, res.status, res.body)

	res = do(t, h, http.MethodPost, "/commentables/article-1/reactions",
		`{"auth_token":"`+bob.AuthToken+`","comment_id":"`+root.ID+`","reaction_type":"like"}`)
	require.Equal(t, http.StatusCreated, res.status, res.body)

	res = do(t, h, http.MethodGet, "/commentables/article-1/comments", "",
		"Authorization", "Bearer "+bob.AuthToken)
	require.Equal(t, http.StatusOK, res.status, res.body)
	var list struct {
		Data []*commentable.Node `json:"data"`
	}
	decodeInto(t, res, &list)
	require.Len(t, list.Data, 1)
	assert.Equal(t, "First!", list.Data[0].Body)
	assert.Equal(t, map[string]int{"like": 1}, list.Data[0].Reactions)
	assert.Equal(t, []string{"like"}, list.Data[0].UserReactions)
	require.Len(t, list.Data[0].Replies, 1)
	assert.Equal(t, "Bob", list.Data[0].Replies[0].Author.Name)

	res = do(t, h, http.MethodPut, "/commentables/article-1/comments",
		`{"auth_token":"`+bob.AuthToken+`","comment_id":"`+root.ID+`","body":"mine now"}`)
	assert.Equal(t, http.StatusForbidden, res.status)
	assert.JSONEq(t, `{"error":"Cannot update comment."}`, res.body)

	res = do(t, h, http.MethodPut, "/commentables/article-1/comments",
		`{"auth_token":"`+ana.AuthToken+`","comment_id":"`+root.ID+`","body":"First, edited"}`)
	require.Equal(t, http.StatusOK, res.status, res.body)

	res = do(t, h, http.MethodDelete, "/commentables/article-1/comments",
		`{"auth_token":"`+ana.AuthToken+`","comment_id":"`+root.ID+`"}`)
	require.Equal(t, http.StatusOK, res.status, res.body)
	var erased commentable.Comment
	decodeInto(t, res, &erased)
	assert.True(t, erased.IsDeleted)
	assert.Equal(t, commentable.ErasedBody, erased.Body)

	res = do(t, h, http.MethodGet, "/commentables/article-1/comments", "")
	var after struct {
		Data []*commentable.Node `json:"data"`
	}
	decodeInto(t, res, &after)
	require.Len(t, after.Data, 1)
	assert.Nil(t, after.Data[0].Author)
	assert.Empty(t, after.Data[0].Reactions)
	assert.Len(t, after.Data[0].Replies, 1)
}

func TestDeleteLeafReturnsNull(t *testing.T) {
	h := newTestRouter(t)
	ana := signIn(t, h, "ana")

	res := do(t, h, http.MethodPost, "/commentables/article-1/comments",
		`{"auth_token":"`+ana.AuthToken+`","body":"oops"}`)
	require.Equal(t, http.StatusCreated, res.status, res.body)
	var c commentable.Comment
	decodeInto(t, res, &c)

	res = do(t, h, http.MethodDelete, "/commentables/article-1/comments",
		`{"auth_token":"`+ana.AuthToken+`","comment_id":"`+c.ID+`"}`)
	assert.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "null", strings.TrimSpace(res.body))

	res = do(t, h, http.MethodGet, "/commentables/article-1/comments", "")
	assert.JSONEq(t, `{"data":[]}`, res.body)
}

func TestErrorStatuses(t *testing.T) {
	h := newTestRouter(t)
	ana := signIn(t, h, "ana")

	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
		error  string
	}{
		{
			name:   "bad access token",
			method: http.MethodPost,
			target: "/commentables/article-1/comments",
			body:   `{"auth_token":"nobody:secret","body":"hi"}`,
			status: http.StatusUnauthorized,
			error:  "Invalid access token.",
		},
		{
			name:   "unknown parent",
			method: http.MethodPost,
			target: "/commentables/article-1/comments",
			body:   `{"auth_token":"` + ana.AuthToken + `","replies_to":"COMMENT_x","body":"hi"}`,
			status: http.StatusBadRequest,
			error:  "replies_to is not a valid comment ID.",
		},
		{
			name:   "reply to a user",
			method: http.MethodPost,
			target: "/commentables/article-1/comments",
			body:   `{"auth_token":"` + ana.AuthToken + `","replies_to":"` + ana.ID + `","body":"hi"}`,
			status: http.StatusBadRequest,
			error:  "replies_to is not a valid comment ID.",
		},
		{
			name:   "reaction on unknown comment",
			method: http.MethodPost,
			target: "/commentables/article-1/reactions",
			body:   `{"auth_token":"` + ana.AuthToken + `","comment_id":"COMMENT_x","reaction_type":"like"}`,
			status: http.StatusNotFound,
			error:  "Comment not found.",
		},
		{
			name:   "unknown reaction",
			method: http.MethodDelete,
			target: "/commentables/article-1/reactions",
			body:   `{"auth_token":"` + ana.AuthToken + `","comment_id":"COMMENT_x","reaction_type":"like"}`,
			status: http.StatusNotFound,
			error:  "Reaction not found.",
		},
		{
			name:   "missing fields",
			method: http.MethodPut,
			target: "/commentables/article-1/comments",
			body:   `{"auth_token":"` + ana.AuthToken + `"}`,
			status: http.StatusBadRequest,
			error:  "comment_id is required; body is required",
		},
		{
			name:   "unknown route",
			method: http.MethodGet,
			target: "/nothing",
			status: http.StatusNotFound,
			error:  "Not found.",
		},
		{
			name:   "wrong method",
			method: http.MethodPatch,
			target: "/commentables/article-1/comments",
			status: http.StatusMethodNotAllowed,
			error:  "Method not allowed.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := do(t, h, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.status, res.status)
			assert.JSONEq(t, `{"error":"`+tt.error+`"}`, res.body)
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newTestRouter(t)
	res := do(t, h, http.MethodOptions, "/commentables/article-1/comments", "",
		"Origin", "https://example.com",
		"Access-Control-Request-Method", http.MethodPost,
	)
	assert.Equal(t, "*", res.header.Get("Access-Control-Allow-Origin"))
}
