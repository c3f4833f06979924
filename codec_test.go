package commentable

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func TestString(t *testing.T) {
	item := Item{
		"name":  StringValue("ana"),
		"flag":  BoolValue(true),
		"empty": &types.AttributeValueMemberNULL{Value: true},
	}

	tests := []struct {
		name        string
		attr        string
		optional    bool
		want        string
		wantInvalid bool
	}{
		{name: "required present", attr: "name", want: "ana"},
		{name: "required missing", attr: "missing", wantInvalid: true},
		{name: "required wrong type", attr: "flag", wantInvalid: true},
		{name: "required null", attr: "empty", wantInvalid: true},
		{name: "optional present", attr: "name", optional: true, want: "ana"},
		{name: "optional missing", attr: "missing", optional: true, want: ""},
		{name: "optional null", attr: "empty", optional: true, want: ""},
		{name: "optional wrong type", attr: "flag", optional: true, wantInvalid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				got string
				err error
			)
			if tt.optional {
				got, err = OptionalString(item, tt.attr)
			} else {
				got, err = String(item, tt.attr)
			}

			if tt.wantInvalid {
				if !errors.Is(err, ErrRecordInvalid) {
					t.Errorf("Expected ErrRecordInvalid, got %v", err)
				}
				var fe *FieldError
				if !errors.As(err, &fe) || fe.Field != tt.attr {
					t.Errorf("Expected FieldError for %s, got %v", tt.attr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestBool(t *testing.T) {
	item := Item{"yes": BoolValue(true), "text": StringValue("true")}

	if b, err := Bool(item, "yes"); err != nil || !b {
		t.Errorf("Expected true, got %t (%v)", b, err)
	}
	if _, err := Bool(item, "text"); !errors.Is(err, ErrRecordInvalid) {
		t.Errorf("Expected ErrRecordInvalid for wrong type, got %v", err)
	}
	if b, err := OptionalBool(item, "missing"); err != nil || b {
		t.Errorf("Expected false for missing optional, got %t (%v)", b, err)
	}
	if _, err := OptionalBool(item, "text"); !errors.Is(err, ErrRecordInvalid) {
		t.Errorf("Expected ErrRecordInvalid for wrong optional type, got %v", err)
	}
}

func TestTime(t *testing.T) {
	t.Run("round trip is lossless and UTC", func(t *testing.T) {
		loc := time.FixedZone("UTC+2", 2*60*60)
		in := time.Date(2024, 3, 9, 14, 5, 6, 123456789, loc)

		got, err := Time(Item{"created_at": TimeValue(in)}, "created_at")
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if !got.Equal(in) {
			t.Errorf("Expected %v, got %v", in, got)
		}
		if got.Location() != time.UTC {
			t.Errorf("Expected UTC, got %v", got.Location())
		}
	})

	t.Run("missing is invalid", func(t *testing.T) {
		_, err := Time(Item{}, "created_at")
		if !errors.Is(err, ErrRecordInvalid) {
			t.Errorf("Expected ErrRecordInvalid, got %v", err)
		}
	})

	t.Run("unparsable is corrupt", func(t *testing.T) {
		_, err := Time(Item{"created_at": StringValue("yesterday")}, "created_at")
		if !errors.Is(err, ErrCorruptRecord) {
			t.Errorf("Expected ErrCorruptRecord, got %v", err)
		}
		if errors.Is(err, ErrRecordInvalid) {
			t.Error("Corrupt timestamp should not be reported as a missing field")
		}
		if !strings.Contains(err.Error(), "error parsing field 'created_at'") {
			t.Errorf("Unexpected message: %v", err)
		}
	})
}

func TestDecoderKeepsFirstError(t *testing.T) {
	d := decoder{item: Item{"id": StringValue("x")}}
	_ = d.string("missing")
	_ = d.time("also_missing")
	_ = d.string("id")

	var fe *FieldError
	if !errors.As(d.err, &fe) {
		t.Fatalf("Expected FieldError, got %v", d.err)
	}
	if fe.Field != "missing" {
		t.Errorf("Expected first failing field missing, got %s", fe.Field)
	}
}

func TestMarshal(t *testing.T) {
	av, err := Marshal(map[string]any{"n": 1})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, ok := av.(*types.AttributeValueMemberM); !ok {
		t.Errorf("Expected map attribute, got %T", av)
	}
}
