// Package assert provides fluent assertion utilities for testing DynamoDB
// items written by the commentable store. It makes tests more readable by
// providing expressive assertion methods over raw attribute maps.
//
// # Usage
//
//	import "github.com/nisimpson/commentable/dynamock/assert"
//
//	// Assert on query results
//	assert.Items(t, output.Items).
//		HasCount(3).
//		ContainsKey("article-1", "COMMENT_1").
//		HasAttribute("replies_to", "COMMENT_1")
//
//	// Assert on a single item
//	assert.Item(t, item).
//		HasKey("article-1", "COMMENT_1").
//		HasAttribute("body", "hello").
//		HasBool("is_deleted", true).
//		LacksAttribute("user_id")
package assert

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	partitionKey = "primary_key"
	sortKey      = "id"
)

// ItemsAssertion provides fluent assertions for DynamoDB items.
type ItemsAssertion struct {
	t     testing.TB
	items []map[string]types.AttributeValue
}

// Items creates a new ItemsAssertion for the given DynamoDB items.
func Items(t testing.TB, items []map[string]types.AttributeValue) *ItemsAssertion {
	return &ItemsAssertion{
		t:     t,
		items: items,
	}
}

// HasCount asserts that the items collection has the expected count.
func (a *ItemsAssertion) HasCount(expected int) *ItemsAssertion {
	a.t.Helper()
	if len(a.items) != expected {
		a.t.Errorf("expected %d items, got %d", expected, len(a.items))
	}
	return a
}

// IsEmpty asserts that the items collection is empty.
func (a *ItemsAssertion) IsEmpty() *ItemsAssertion {
	a.t.Helper()
	return a.HasCount(0)
}

// ContainsKey asserts that the items contain an item with the given key.
func (a *ItemsAssertion) ContainsKey(partition, id string) *ItemsAssertion {
	a.t.Helper()
	for _, item := range a.items {
		if stringAttr(item, partitionKey) == partition && stringAttr(item, sortKey) == id {
			return a
		}
	}
	a.t.Errorf("expected to find item %s/%s in items", partition, id)
	return a
}

// LacksKey asserts that no item has the given key.
func (a *ItemsAssertion) LacksKey(partition, id string) *ItemsAssertion {
	a.t.Helper()
	for _, item := range a.items {
		if stringAttr(item, partitionKey) == partition && stringAttr(item, sortKey) == id {
			a.t.Errorf("expected item %s/%s to be absent", partition, id)
			return a
		}
	}
	return a
}

// HasAttribute asserts that at least one item has the specified string
// attribute with the expected value.
func (a *ItemsAssertion) HasAttribute(name, expected string) *ItemsAssertion {
	a.t.Helper()
	for _, item := range a.items {
		if v, ok := item[name].(*types.AttributeValueMemberS); ok && v.Value == expected {
			return a
		}
	}
	a.t.Errorf("expected to find attribute %s with value %s in items", name, expected)
	return a
}

// HasUniqueKeys asserts that no two items share a key.
func (a *ItemsAssertion) HasUniqueKeys() *ItemsAssertion {
	a.t.Helper()
	seen := make(map[[2]string]bool, len(a.items))
	for _, item := range a.items {
		key := [2]string{stringAttr(item, partitionKey), stringAttr(item, sortKey)}
		if seen[key] {
			a.t.Errorf("duplicate item %s/%s", key[0], key[1])
		}
		seen[key] = true
	}
	return a
}

// ItemAssertion provides fluent assertions for a single DynamoDB item.
type ItemAssertion struct {
	t    testing.TB
	item map[string]types.AttributeValue
}

// Item creates a new ItemAssertion for the given DynamoDB item.
func Item(t testing.TB, item map[string]types.AttributeValue) *ItemAssertion {
	return &ItemAssertion{
		t:    t,
		item: item,
	}
}

// HasKey asserts the item's primary_key and id.
func (a *ItemAssertion) HasKey(partition, id string) *ItemAssertion {
	a.t.Helper()
	if got := stringAttr(a.item, partitionKey); got != partition {
		a.t.Errorf("expected %s %s, got %s", partitionKey, partition, got)
	}
	if got := stringAttr(a.item, sortKey); got != id {
		a.t.Errorf("expected %s %s, got %s", sortKey, id, got)
	}
	return a
}

// HasAttribute asserts that the item has a string attribute with the
// expected value.
func (a *ItemAssertion) HasAttribute(name, expected string) *ItemAssertion {
	a.t.Helper()
	v, ok := a.item[name].(*types.AttributeValueMemberS)
	if !ok {
		a.t.Errorf("expected string attribute %s, got %T", name, a.item[name])
		return a
	}
	if v.Value != expected {
		a.t.Errorf("expected %s %q, got %q", name, expected, v.Value)
	}
	return a
}

// HasBool asserts that the item has a boolean attribute with the expected
// value.
func (a *ItemAssertion) HasBool(name string, expected bool) *ItemAssertion {
	a.t.Helper()
	v, ok := a.item[name].(*types.AttributeValueMemberBOOL)
	if !ok {
		a.t.Errorf("expected boolean attribute %s, got %T", name, a.item[name])
		return a
	}
	if v.Value != expected {
		a.t.Errorf("expected %s %t, got %t", name, expected, v.Value)
	}
	return a
}

// LacksAttribute asserts that the item does not have the attribute.
func (a *ItemAssertion) LacksAttribute(name string) *ItemAssertion {
	a.t.Helper()
	if _, ok := a.item[name]; ok {
		a.t.Errorf("expected attribute %s to be absent", name)
	}
	return a
}

func stringAttr(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}
