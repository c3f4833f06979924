package commentable

import (
	"context"

	"go.uber.org/zap"
)

// Store bundles the entity models sharing one table.
type Store struct {
	Table     *Table
	Users     *Users
	Comments  *Comments
	Reactions *Reactions

	// Orphans is the policy applied by ListThread.
	Orphans OrphanPolicy
}

// New creates a Store over the named table.
func New(client DynamoDBClient, tableName string, opts ...TableOption) *Store {
	return NewStore(NewTable(client, tableName, opts...))
}

// NewStore creates a Store over t.
func NewStore(t *Table) *Store {
	return &Store{
		Table:     t,
		Users:     NewUsers(t),
		Comments:  NewComments(t),
		Reactions: NewReactions(t),
	}
}

// ListThread loads every comment and reaction on scope, hydrates the authors
// with a single batch fetch and assembles the thread as seen by requesterID,
// which may be empty.
func (s *Store) ListThread(ctx context.Context, scope, requesterID string) ([]*Node, error) {
	comments, err := s.Comments.List(ctx, scope)
	if err != nil {
		return nil, err
	}

	reactions, err := s.Reactions.List(ctx, scope)
	if err != nil {
		return nil, err
	}

	users, err := s.Users.ByIDs(ctx, AuthorIDs(comments))
	if err != nil {
		return nil, err
	}

	s.Table.Logger.Debug("assembling thread",
		zap.String("primary_key", scope),
		zap.Int("comments", len(comments)),
		zap.Int("reactions", len(reactions)),
		zap.Int("authors", len(users)),
	)

	return BuildThread(comments, reactions, users, requesterID, WithOrphanPolicy(s.Orphans))
}
