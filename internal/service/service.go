// Package service implements the commentable operations on top of the store:
// authentication, comments, reactions and thread listing. Every failure is
// returned as an *Error carrying a Kind.
package service

import (
	"context"
	"errors"
	"strings"

	"github.com/nisimpson/commentable"
	"github.com/nisimpson/commentable/internal/auth"
	"go.uber.org/zap"
)

// AuthInput is the payload of the authentication operation.
type AuthInput struct {
	IDToken string `json:"id_token" validate:"notblank"`
}

// AddCommentInput is the payload of the add comment operation.
type AddCommentInput struct {
	Scope     string `json:"-"`
	AuthToken string `json:"auth_token" validate:"notblank"`
	RepliesTo string `json:"replies_to,omitempty"`
	Body      string `json:"body" validate:"notblank"`
}

// EditCommentInput is the payload of the edit comment operation.
type EditCommentInput struct {
	Scope     string `json:"-"`
	AuthToken string `json:"auth_token" validate:"notblank"`
	CommentID string `json:"comment_id" validate:"notblank"`
	Body      string `json:"body" validate:"notblank"`
}

// DeleteCommentInput is the payload of the delete comment operation.
type DeleteCommentInput struct {
	Scope     string `json:"-"`
	AuthToken string `json:"auth_token" validate:"notblank"`
	CommentID string `json:"comment_id" validate:"notblank"`
}

// ReactionInput is the payload of the add and delete reaction operations.
type ReactionInput struct {
	Scope        string `json:"-"`
	AuthToken    string `json:"auth_token" validate:"notblank"`
	CommentID    string `json:"comment_id" validate:"notblank"`
	ReactionType string `json:"reaction_type" validate:"notblank"`
}

// Service orchestrates store calls for each operation.
type Service struct {
	store    *commentable.Store
	verifier auth.Verifier
	logger   *zap.Logger
}

// New creates a Service.
func New(store *commentable.Store, verifier auth.Verifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    store,
		verifier: verifier,
		logger:   logger,
	}
}

// Authenticate verifies an external identity token and returns the matching
// user, registering it on first sign-in.
func (s *Service) Authenticate(ctx context.Context, in AuthInput) (commentable.User, error) {
	if err := validateInput(in); err != nil {
		return commentable.User{}, err
	}

	identity, err := s.verifier.Verify(ctx, in.IDToken)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			return commentable.User{}, newError(KindUnauthenticated, "Invalid id_token.", err)
		}
		return commentable.User{}, s.internal("failed to verify identity", err)
	}

	user, err := s.store.Users.FindOrRegister(ctx, identity)
	if err != nil {
		return commentable.User{}, s.internal("failed to find or register user", err)
	}

	s.logger.Info("user authenticated", zap.String("user_id", user.ID))
	return user, nil
}

// ListThread returns the comment forest of scope. The auth token is optional;
// when it resolves to a user the nodes carry that user's reactions.
func (s *Service) ListThread(ctx context.Context, scope, authToken string) ([]*commentable.Node, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}

	var requesterID string
	if authToken != "" {
		if user, err := s.store.Users.Authenticate(ctx, authToken); err == nil {
			requesterID = user.ID
		} else if !errors.Is(err, commentable.ErrNotFound) {
			return nil, s.internal("failed to resolve current user", err)
		}
	}

	nodes, err := s.store.ListThread(ctx, scope, requesterID)
	if err != nil {
		return nil, s.internal("failed to list comments", err)
	}
	return nodes, nil
}

// AddComment posts a comment or a reply as the token's user.
func (s *Service) AddComment(ctx context.Context, in AddCommentInput) (commentable.Comment, error) {
	if err := validateScoped(in.Scope, in); err != nil {
		return commentable.Comment{}, err
	}

	user, err := s.currentUser(ctx, in.AuthToken)
	if err != nil {
		return commentable.Comment{}, err
	}

	comment, err := s.store.Comments.Add(ctx, commentable.NewComment{
		Scope:     in.Scope,
		AuthorID:  user.ID,
		RepliesTo: strings.TrimSpace(in.RepliesTo),
		Body:      in.Body,
	})
	switch {
	case errors.Is(err, commentable.ErrInvalidParent):
		return commentable.Comment{}, newError(KindBadInput, "replies_to is not a valid comment ID.", err)
	case errors.Is(err, commentable.ErrConflict):
		return commentable.Comment{}, newError(KindConflict, "Comment already exists.", err)
	case err != nil:
		return commentable.Comment{}, s.internal("failed to add comment", err)
	}
	return comment, nil
}

// EditComment replaces the body of a comment owned by the token's user.
func (s *Service) EditComment(ctx context.Context, in EditCommentInput) (commentable.Comment, error) {
	if err := validateScoped(in.Scope, in); err != nil {
		return commentable.Comment{}, err
	}

	comment, err := s.ownComment(ctx, in.Scope, in.AuthToken, in.CommentID, "Cannot update comment.")
	if err != nil {
		return commentable.Comment{}, err
	}

	edited, err := s.store.Comments.Edit(ctx, comment.Key(), in.Body)
	switch {
	case errors.Is(err, commentable.ErrNotFound):
		return commentable.Comment{}, newError(KindNotFound, "Comment not found.", err)
	case err != nil:
		return commentable.Comment{}, s.internal("failed to edit comment", err)
	}
	return edited, nil
}

// DeleteComment removes a comment owned by the token's user together with
// its reactions. A comment with replies is erased instead and returned; a
// deleted comment yields nil.
func (s *Service) DeleteComment(ctx context.Context, in DeleteCommentInput) (*commentable.Comment, error) {
	if err := validateScoped(in.Scope, in); err != nil {
		return nil, err
	}

	comment, err := s.ownComment(ctx, in.Scope, in.AuthToken, in.CommentID, "Cannot delete comment.")
	if err != nil {
		return nil, err
	}

	erased, err := s.store.Comments.Remove(ctx, comment.Key())
	switch {
	case errors.Is(err, commentable.ErrNotFound):
		return nil, newError(KindNotFound, "Comment not found.", err)
	case err != nil:
		return nil, s.internal("failed to delete comment", err)
	}

	if err := s.store.Reactions.RemoveAllForComment(ctx, in.Scope, comment.ID); err != nil {
		return nil, s.internal("failed to delete reactions", err)
	}
	return erased, nil
}

// AddReaction records a reaction by the token's user on an existing comment.
func (s *Service) AddReaction(ctx context.Context, in ReactionInput) (commentable.Reaction, error) {
	if err := validateScoped(in.Scope, in); err != nil {
		return commentable.Reaction{}, err
	}

	user, err := s.currentUser(ctx, in.AuthToken)
	if err != nil {
		return commentable.Reaction{}, err
	}
	if _, err := s.findComment(ctx, in.Scope, in.CommentID); err != nil {
		return commentable.Reaction{}, err
	}

	reaction, err := s.store.Reactions.Add(ctx, in.Scope, in.CommentID, user.ID, in.ReactionType)
	switch {
	case errors.Is(err, commentable.ErrConflict):
		return commentable.Reaction{}, newError(KindConflict, "Reaction already exists.", err)
	case err != nil:
		return commentable.Reaction{}, s.internal("failed to add reaction", err)
	}
	return reaction, nil
}

// DeleteReaction removes a reaction by the token's user.
func (s *Service) DeleteReaction(ctx context.Context, in ReactionInput) error {
	if err := validateScoped(in.Scope, in); err != nil {
		return err
	}

	user, err := s.currentUser(ctx, in.AuthToken)
	if err != nil {
		return err
	}

	err = s.store.Reactions.Remove(ctx, in.Scope, in.CommentID, user.ID, in.ReactionType)
	switch {
	case errors.Is(err, commentable.ErrNotFound):
		return newError(KindNotFound, "Reaction not found.", err)
	case err != nil:
		return s.internal("failed to delete reaction", err)
	}
	return nil
}

func (s *Service) currentUser(ctx context.Context, token string) (commentable.User, error) {
	user, err := s.store.Users.Authenticate(ctx, token)
	switch {
	case errors.Is(err, commentable.ErrNotFound):
		return commentable.User{}, newError(KindUnauthenticated, "Invalid access token.", err)
	case err != nil:
		return commentable.User{}, s.internal("failed to resolve current user", err)
	}
	return user, nil
}

func (s *Service) findComment(ctx context.Context, scope, id string) (commentable.Comment, error) {
	if !strings.HasPrefix(id, commentable.CommentPrefix) {
		return commentable.Comment{}, newError(KindNotFound, "Comment not found.", commentable.ErrNotFound)
	}

	comment, found, err := s.store.Comments.Find(ctx, commentable.Key{Partition: scope, ID: id})
	switch {
	case err != nil:
		return commentable.Comment{}, s.internal("failed to find comment", err)
	case !found:
		return commentable.Comment{}, newError(KindNotFound, "Comment not found.", commentable.ErrNotFound)
	}
	return comment, nil
}

// ownComment resolves the current user and the comment, and requires the
// user to be its author.
func (s *Service) ownComment(ctx context.Context, scope, token, id, denied string) (commentable.Comment, error) {
	user, err := s.currentUser(ctx, token)
	if err != nil {
		return commentable.Comment{}, err
	}

	comment, err := s.findComment(ctx, scope, id)
	if err != nil {
		return commentable.Comment{}, err
	}

	if comment.UserID != user.ID {
		return commentable.Comment{}, newError(KindForbidden, denied, nil)
	}
	return comment, nil
}

func (s *Service) internal(msg string, err error) error {
	s.logger.Error(msg, zap.Error(err))
	return newError(KindInternal, msg, err)
}

func requireScope(scope string) error {
	if strings.TrimSpace(scope) == "" {
		return newError(KindBadInput, "Invalid path parameters: 'id' is required.", nil)
	}
	return nil
}

func validateScoped(scope string, in any) error {
	if err := requireScope(scope); err != nil {
		return err
	}
	return validateInput(in)
}
