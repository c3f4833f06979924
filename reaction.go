package commentable

import (
	"context"
	"time"
)

// Reaction is a typed reaction by a user on a comment. At most one reaction
// exists per comment, user and type.
type Reaction struct {
	Scope     string    `json:"primary_key"`
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CommentID string    `json:"comment_id"`
	Type      string    `json:"reaction_type"`
	CreatedAt time.Time `json:"created_at"`
}

// Key returns the table key of r.
func (r Reaction) Key() Key {
	return Key{Partition: r.Scope, ID: r.ID}
}

// Item returns the stored attributes of r.
func (r Reaction) Item() Item {
	return Item{
		AttributeNamePartition: StringValue(r.Scope),
		AttributeNameID:        StringValue(r.ID),
		AttributeNameUserID:    StringValue(r.UserID),
		AttributeNameCommentID: StringValue(r.CommentID),
		AttributeNameType:      StringValue(r.Type),
		AttributeNameCreatedAt: TimeValue(r.CreatedAt),
	}
}

// UnmarshalReaction decodes a stored reaction.
func UnmarshalReaction(item Item) (Reaction, error) {
	d := decoder{item: item}
	r := Reaction{
		Scope:     d.string(AttributeNamePartition),
		ID:        d.string(AttributeNameID),
		UserID:    d.string(AttributeNameUserID),
		CommentID: d.string(AttributeNameCommentID),
		Type:      d.string(AttributeNameType),
		CreatedAt: d.time(AttributeNameCreatedAt),
	}
	return r, d.err
}

// Reactions provides access to reaction records.
type Reactions struct {
	*Model[Reaction]
}

// NewReactions creates the reaction model on t.
func NewReactions(t *Table) *Reactions {
	return &Reactions{Model: NewModel(t, "reaction", ReactionPrefix, UnmarshalReaction)}
}

// ReactionKey returns the key of the reaction of reactionType by userID on
// commentID.
func ReactionKey(scope, commentID, userID, reactionType string) Key {
	return Key{Partition: scope, ID: ReactionID(commentID, userID, reactionType)}
}

// List returns every reaction on scope.
func (r *Reactions) List(ctx context.Context, scope string) ([]Reaction, error) {
	return r.ListByPrefix(ctx, scope)
}

// ForComment returns every reaction on the comment commentID.
func (r *Reactions) ForComment(ctx context.Context, scope, commentID string) ([]Reaction, error) {
	t := r.Table()
	return r.Query(ctx, OnIndex(t.ReactionsIndexName, AttributeNameCommentID, scope, commentID))
}

// Add records a reaction. A reaction with the same comment, user and type
// already existing is ErrConflict.
func (r *Reactions) Add(ctx context.Context, scope, commentID, userID, reactionType string) (Reaction, error) {
	reaction := Reaction{
		Scope:     scope,
		ID:        ReactionID(commentID, userID, reactionType),
		UserID:    userID,
		CommentID: commentID,
		Type:      reactionType,
		CreatedAt: r.Table().Tick(),
	}
	return r.CreateUnique(ctx, reaction.Item())
}

// Remove deletes a single reaction. An absent reaction is ErrNotFound.
func (r *Reactions) Remove(ctx context.Context, scope, commentID, userID, reactionType string) error {
	return r.DeleteExisting(ctx, ReactionKey(scope, commentID, userID, reactionType))
}

// RemoveAllForComment deletes every reaction on the comment commentID.
func (r *Reactions) RemoveAllForComment(ctx context.Context, scope, commentID string) error {
	reactions, err := r.ForComment(ctx, scope, commentID)
	if err != nil {
		return err
	}

	keys := make([]Key, 0, len(reactions))
	for _, reaction := range reactions {
		keys = append(keys, reaction.Key())
	}
	return r.BatchDelete(ctx, keys)
}
