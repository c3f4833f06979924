// Package commentable provides the data-access layer and comment-tree
// aggregation behind a threaded comment widget, built on a single DynamoDB
// table accessed through the AWS SDK for Go v2.
//
// # Key Concepts
//
// Users, comments and reactions share one table. Every item is addressed by a
// partition key and a sort key:
//   - primary_key (partition key): the commentable resource the item belongs
//     to, or the user's own id for user items
//   - id (sort key): the item id, prefixed by entity type (COMMENT_,
//     REACTION_, USER_)
//
// The prefix doubles as a type discriminator and a begins_with scan filter.
// Two secondary indexes replace joins:
//   - replies_index: (primary_key, replies_to) finds a comment's direct replies
//   - reactions_index: (primary_key, comment_id) finds a comment's reactions
//
// # Basic Usage
//
//	store := commentable.New(ddb, "commentable-rs")
//	comment, err := store.Comments.Add(ctx, commentable.NewComment{
//	    Scope:    "article-42",
//	    AuthorID: user.ID,
//	    Body:     "First!",
//	})
//
// # Records
//
// Each entity is a thin mapping over the generic [Model], which implements
// point lookups, fully paginated queries, conditional creates, partial
// updates and bounded batch deletes once for every entity type:
//
//	comments, err := store.Comments.List(ctx, "article-42")
//	err = store.Reactions.RemoveAllForComment(ctx, "article-42", comment.ID)
//
// # Threads
//
// [BuildThread] turns the flat comment and reaction sets of one resource into
// a nested forest annotated with reaction counts:
//
//	nodes, err := store.ListThread(ctx, "article-42", requester.ID)
package commentable
