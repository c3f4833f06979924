package commentable

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"
)

// OrphanPolicy decides what happens to a reply whose parent is not part of
// the listed comments.
type OrphanPolicy int

const (
	// OrphanReject fails the whole listing with ErrInconsistent.
	OrphanReject OrphanPolicy = iota
	// OrphanDrop omits the orphan and its replies from the listing. The
	// stored records are left untouched.
	OrphanDrop
)

func (p OrphanPolicy) String() string {
	switch p {
	case OrphanReject:
		return "reject"
	case OrphanDrop:
		return "drop"
	default:
		return fmt.Sprintf("OrphanPolicy(%d)", int(p))
	}
}

// ParseOrphanPolicy parses "reject" or "drop".
func ParseOrphanPolicy(s string) (OrphanPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reject":
		return OrphanReject, nil
	case "drop":
		return OrphanDrop, nil
	default:
		return OrphanReject, fmt.Errorf("unknown orphan policy %q", s)
	}
}

// Author is the public profile of a comment's author.
type Author struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PictureURL string `json:"picture_url"`
}

// Node is a comment in a rendered thread, with its replies and reaction
// counts.
type Node struct {
	ID            string         `json:"id"`
	Body          string         `json:"body"`
	IsDeleted     bool           `json:"is_deleted"`
	CreatedAt     time.Time      `json:"created_at"`
	Author        *Author        `json:"user,omitempty"`
	Replies       []*Node        `json:"replies"`
	Reactions     map[string]int `json:"reactions"`
	UserReactions []string       `json:"user_reactions"`

	repliesTo string
}

// ThreadOption configures BuildThread.
type ThreadOption func(*threadOptions)

type threadOptions struct {
	orphans OrphanPolicy
}

// WithOrphanPolicy sets how replies to missing parents are handled. The
// default is OrphanReject.
func WithOrphanPolicy(p OrphanPolicy) ThreadOption {
	return func(o *threadOptions) {
		o.orphans = p
	}
}

// BuildThread assembles the flat comments and reactions of one resource into
// a forest ordered by ascending id. Reactions are counted per type on their
// comment, and the types reacted by requesterID are listed on each node.
// Authors are taken from users; a comment whose author is unset or unknown
// renders without one. Reactions on unknown comments are ignored.
//
// A reply whose parent is missing, or which is part of a reply cycle, is an
// orphan and handled per the orphan policy.
func BuildThread(comments []Comment, reactions []Reaction, users map[string]User, requesterID string, opts ...ThreadOption) ([]*Node, error) {
	var options threadOptions
	for _, opt := range opts {
		opt(&options)
	}

	sorted := slices.Clone(comments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ID < sorted[j].ID
	})

	// Insert every comment before linking so input order never matters
	nodes := make(map[string]*Node, len(sorted))
	ordered := make([]*Node, 0, len(sorted))
	for _, c := range sorted {
		if _, ok := nodes[c.ID]; ok {
			continue
		}
		node := newNode(c, users)
		nodes[c.ID] = node
		ordered = append(ordered, node)
	}

	var roots []*Node
	for _, node := range ordered {
		if node.repliesTo == "" {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[node.repliesTo]
		if !ok || parent == node {
			continue
		}
		parent.Replies = append(parent.Replies, node)
	}

	// Anything not reachable from a root has a missing ancestor or is on a cycle
	reachable := make(map[*Node]bool, len(ordered))
	var walk func(*Node)
	walk = func(n *Node) {
		if reachable[n] {
			return
		}
		reachable[n] = true
		for _, child := range n.Replies {
			walk(child)
		}
	}
	for _, root := range roots {
		walk(root)
	}

	if len(reachable) < len(ordered) {
		var orphans []string
		for _, node := range ordered {
			if !reachable[node] {
				orphans = append(orphans, node.ID)
			}
		}
		if options.orphans == OrphanReject {
			return nil, fmt.Errorf("comments %s have no root: %w", strings.Join(orphans, ", "), ErrInconsistent)
		}
	}

	for _, r := range reactions {
		node, ok := nodes[r.CommentID]
		if !ok || !reachable[node] {
			continue
		}
		node.Reactions[r.Type]++
		if requesterID != "" && r.UserID == requesterID && !slices.Contains(node.UserReactions, r.Type) {
			node.UserReactions = append(node.UserReactions, r.Type)
		}
	}

	for _, node := range ordered {
		sort.Strings(node.UserReactions)
	}

	if roots == nil {
		roots = []*Node{}
	}
	return roots, nil
}

func newNode(c Comment, users map[string]User) *Node {
	node := &Node{
		ID:            c.ID,
		Body:          c.Body,
		IsDeleted:     c.IsDeleted,
		CreatedAt:     c.CreatedAt,
		Replies:       []*Node{},
		Reactions:     map[string]int{},
		UserReactions: []string{},
		repliesTo:     c.RepliesTo,
	}
	if c.UserID == "" {
		return node
	}
	if u, ok := users[c.UserID]; ok {
		node.Author = &Author{ID: u.ID, Name: u.Name, PictureURL: u.PictureURL}
	}
	return node
}

// AuthorIDs returns the distinct author ids referenced by comments.
func AuthorIDs(comments []Comment) []string {
	seen := make(map[string]struct{}, len(comments))
	var ids []string
	for _, c := range comments {
		if c.UserID == "" {
			continue
		}
		if _, ok := seen[c.UserID]; ok {
			continue
		}
		seen[c.UserID] = struct{}{}
		ids = append(ids, c.UserID)
	}
	return ids
}
