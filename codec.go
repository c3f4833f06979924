package commentable

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Item is an alias for the dynamodb attribute value map.
type Item = map[string]types.AttributeValue

// TimeFormat is the layout used to store timestamps. Values are always
// written in UTC.
const TimeFormat = time.RFC3339Nano

// StringValue converts s to its wire representation.
func StringValue(s string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: s}
}

// BoolValue converts b to its wire representation.
func BoolValue(b bool) types.AttributeValue {
	return &types.AttributeValueMemberBOOL{Value: b}
}

// TimeValue converts t to a fixed-format UTC date-time string.
func TimeValue(t time.Time) types.AttributeValue {
	return StringValue(t.UTC().Format(TimeFormat))
}

// Marshal converts any Go value to its wire representation.
func Marshal(v any) (types.AttributeValue, error) {
	av, err := attributevalue.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal attribute: %w", err)
	}
	return av, nil
}

// String extracts the required string attribute name from item.
func String(item Item, name string) (string, error) {
	av, ok := item[name]
	if !ok {
		return "", missingField(name)
	}
	s, ok := av.(*types.AttributeValueMemberS)
	if !ok {
		return "", missingField(name)
	}
	return s.Value, nil
}

// OptionalString extracts the string attribute name from item, returning an
// empty string when the attribute is absent or NULL.
func OptionalString(item Item, name string) (string, error) {
	av, ok := item[name]
	if !ok {
		return "", nil
	}
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value, nil
	case *types.AttributeValueMemberNULL:
		return "", nil
	default:
		return "", missingField(name)
	}
}

// Bool extracts the required boolean attribute name from item.
func Bool(item Item, name string) (bool, error) {
	av, ok := item[name]
	if !ok {
		return false, missingField(name)
	}
	b, ok := av.(*types.AttributeValueMemberBOOL)
	if !ok {
		return false, missingField(name)
	}
	return b.Value, nil
}

// OptionalBool extracts the boolean attribute name from item, returning false
// when the attribute is absent or NULL.
func OptionalBool(item Item, name string) (bool, error) {
	av, ok := item[name]
	if !ok {
		return false, nil
	}
	switch v := av.(type) {
	case *types.AttributeValueMemberBOOL:
		return v.Value, nil
	case *types.AttributeValueMemberNULL:
		return false, nil
	default:
		return false, missingField(name)
	}
}

// Time extracts the required timestamp attribute name from item. A missing
// attribute is an ErrRecordInvalid; an unparsable one is an ErrCorruptRecord.
func Time(item Item, name string) (time.Time, error) {
	s, err := String(item, name)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(TimeFormat, s)
	if err != nil {
		return time.Time{}, &FieldError{Field: name, Err: fmt.Errorf("%w: %w", ErrCorruptRecord, err)}
	}
	return t.UTC(), nil
}

// decoder accumulates the first error while extracting attributes, so entity
// mappings can read every field before checking for failure.
type decoder struct {
	item Item
	err  error
}

func (d *decoder) string(name string) string {
	if d.err != nil {
		return ""
	}
	var s string
	s, d.err = String(d.item, name)
	return s
}

func (d *decoder) optionalString(name string) string {
	if d.err != nil {
		return ""
	}
	var s string
	s, d.err = OptionalString(d.item, name)
	return s
}

func (d *decoder) optionalBool(name string) bool {
	if d.err != nil {
		return false
	}
	var b bool
	b, d.err = OptionalBool(d.item, name)
	return b
}

func (d *decoder) time(name string) time.Time {
	if d.err != nil {
		return time.Time{}
	}
	var t time.Time
	t, d.err = Time(d.item, name)
	return t
}
