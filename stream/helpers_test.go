package stream

import (
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// --- getStringAttr Tests ---

func TestGetStringAttr_ExistingString(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"key": events.NewStringAttribute("3:app:x"),
	}

	result := getStringAttr(image, "key")
	if result != "3:app:x" {
		t.Errorf("expected '3:app:x', got %q", result)
	}
}

func TestGetStringAttr_MissingKey(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"other": events.NewStringAttribute("value"),
	}

	result := getStringAttr(image, "key")
	if result != "" {
		t.Errorf("expected empty string for missing key, got %q", result)
	}
}

func TestGetStringAttr_NilImage(t *testing.T) {
	var image map[string]events.DynamoDBAttributeValue

	result := getStringAttr(image, "key")
	if result != "" {
		t.Errorf("expected empty string for nil image, got %q", result)
	}
}

func TestGetStringAttr_NumberAttribute(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"key": events.NewNumberAttribute("12"),
	}

	result := getStringAttr(image, "key")
	if result != "" {
		t.Errorf("expected empty string for number attribute, got %q", result)
	}
}

// --- convertValue Tests ---

func TestConvertValue_Scalars(t *testing.T) {
	tests := []struct {
		name  string
		in    events.DynamoDBAttributeValue
		check func(types.AttributeValue) bool
	}{
		{"string", events.NewStringAttribute("s"), func(av types.AttributeValue) bool {
			v, ok := av.(*types.AttributeValueMemberS)
			return ok && v.Value == "s"
		}},
		{"number", events.NewNumberAttribute("42"), func(av types.AttributeValue) bool {
			v, ok := av.(*types.AttributeValueMemberN)
			return ok && v.Value == "42"
		}},
		{"bool", events.NewBooleanAttribute(true), func(av types.AttributeValue) bool {
			v, ok := av.(*types.AttributeValueMemberBOOL)
			return ok && v.Value
		}},
		{"binary", events.NewBinaryAttribute([]byte("b")), func(av types.AttributeValue) bool {
			v, ok := av.(*types.AttributeValueMemberB)
			return ok && string(v.Value) == "b"
		}},
		{"string set", events.NewStringSetAttribute([]string{"a", "b"}), func(av types.AttributeValue) bool {
			v, ok := av.(*types.AttributeValueMemberSS)
			return ok && len(v.Value) == 2
		}},
		{"null", events.NewNullAttribute(), func(av types.AttributeValue) bool {
			return av == nil
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := convertValue(tt.in); !tt.check(got) {
				t.Errorf("unexpected conversion: %#v", got)
			}
		})
	}
}

func TestConvertValue_Nested(t *testing.T) {
	in := events.NewMapAttribute(map[string]events.DynamoDBAttributeValue{
		"tags": events.NewListAttribute([]events.DynamoDBAttributeValue{
			events.NewStringAttribute("x"),
			events.NewNullAttribute(),
		}),
	})

	m, ok := convertValue(in).(*types.AttributeValueMemberM)
	if !ok {
		t.Fatal("expected map attribute")
	}
	l, ok := m.Value["tags"].(*types.AttributeValueMemberL)
	if !ok {
		t.Fatal("expected list attribute")
	}
	if len(l.Value) != 1 {
		t.Errorf("expected null element to be dropped, got %d elements", len(l.Value))
	}
}

func TestKindString(t *testing.T) {
	tests := map[Kind]string{
		Created: "created",
		Updated: "updated",
		Deleted: "deleted",
		Kind(9): "Kind(9)",
	}
	for k, expected := range tests {
		if got := k.String(); got != expected {
			t.Errorf("expected %q, got %q", expected, got)
		}
	}
}

// --- Benchmarks ---

func BenchmarkConvertStreamImage(b *testing.B) {
	image := map[string]events.DynamoDBAttributeValue{
		"key":       events.NewStringAttribute("3:app:obj-1"),
		"type":      events.NewStringAttribute("user"),
		"timestamp": events.NewStringAttribute("1700000000000"),
		"name":      events.NewStringAttribute("Alice"),
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = ConvertStreamImage(image)
	}
}
