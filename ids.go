package commentable

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"
)

// Id prefixes double as entity type discriminators within a partition.
const (
	CommentPrefix  = "COMMENT_"
	ReactionPrefix = "REACTION_"
	UserPrefix     = "USER_"
)

// TokenDelimiter separates the user part of an auth token from its secret.
const TokenDelimiter = ":"

// Hash returns the lowercase hex SHA3-256 digest of text.
func Hash(text string) string {
	sum := sha3.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// NewCommentID derives a comment id from the scope, author and creation time.
// Ids sort by creation millisecond.
func NewCommentID(scope, authorID string, now time.Time) string {
	millis := strconv.FormatInt(now.UnixMilli(), 10)
	return CommentPrefix + millis + Hash(scope+authorID+now.UTC().Format(TimeFormat))
}

// ReactionID derives the id of the reaction of reactionType by userID on
// commentID. The same triple always yields the same id, so a duplicate
// reaction collides on create.
func ReactionID(commentID, userID, reactionType string) string {
	return ReactionPrefix + Hash(strings.Join([]string{commentID, userID, reactionType}, "|"))
}

// UserID derives a user id from the user's email address.
func UserID(email string) string {
	return UserPrefix + Hash(email)
}

// NewAuthToken issues a fresh token for the user with the given id. The token
// embeds the hash part of the id followed by a random secret.
func NewAuthToken(userID string) string {
	return strings.TrimPrefix(userID, UserPrefix) + TokenDelimiter + Hash(uuid.NewString())
}

// ParseAuthToken recovers the user id embedded in token.
func ParseAuthToken(token string) (string, error) {
	hash, secret, ok := strings.Cut(token, TokenDelimiter)
	if !ok || hash == "" || secret == "" {
		return "", fmt.Errorf("malformed auth token")
	}
	return UserPrefix + hash, nil
}
