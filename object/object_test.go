package object

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFromFields_Empty(t *testing.T) {
	if o := FromFields(nil); o != nil {
		t.Errorf("expected nil for nil fields, got %+v", o)
	}
	if o := FromFields(map[string]string{}); o != nil {
		t.Errorf("expected nil for empty fields, got %+v", o)
	}
}

func TestFromFields_CoreAndCustom(t *testing.T) {
	o := FromFields(map[string]string{
		"id":        "u1",
		"appid":     "app",
		"type":      "user",
		"name":      "Alice",
		"timestamp": "1700000000000",
		"updated":   "bogus",
		"color":     "blue",
	})

	want := &Object{
		ID:         "u1",
		AppID:      "app",
		Type:       "user",
		Name:       "Alice",
		Timestamp:  1700000000000,
		Properties: map[string]string{"color": "blue"},
	}
	if diff := cmp.Diff(want, o); diff != "" {
		t.Errorf("FromFields mismatch (-want +got):\n%s", diff)
	}
}

func TestSchemaFields_RoundTrip(t *testing.T) {
	in := &Object{
		ID:         "u1",
		AppID:      "app",
		Type:       "user",
		Name:       "Alice",
		CreatorID:  "c1",
		Timestamp:  42,
		Updated:    43,
		Properties: map[string]string{"color": "blue"},
	}

	out := FromFields(DefaultSchema().Fields(in, false))
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestSchemaFields_SkipImmutable(t *testing.T) {
	in := &Object{
		ID:         "u1",
		AppID:      "app",
		Type:       "user",
		Name:       "Alice",
		CreatorID:  "c1",
		Timestamp:  42,
		Updated:    43,
		Properties: map[string]string{"color": "blue", "sku": "X1"},
	}

	s := DefaultSchema().WithImmutable("sku")
	got := s.Fields(in, true)
	want := map[string]string{
		"name":    "Alice",
		"updated": "43",
		"color":   "blue",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Fields mismatch (-want +got):\n%s", diff)
	}
}

func TestSchemaFields_ZeroTimestampsOmitted(t *testing.T) {
	got := DefaultSchema().Fields(&Object{ID: "x"}, false)
	if _, ok := got["timestamp"]; ok {
		t.Error("expected zero timestamp to be omitted")
	}
	if _, ok := got["updated"]; ok {
		t.Error("expected zero updated to be omitted")
	}
}

func TestWithImmutable_DoesNotMutateReceiver(t *testing.T) {
	base := DefaultSchema()
	_ = base.WithImmutable("name")
	if base.IsImmutable("name") {
		t.Error("expected base schema to keep name mutable")
	}
}

func TestGet_CustomProperty(t *testing.T) {
	o := New("user")
	o.Set("color", "red")

	v, ok := o.Get("color")
	if !ok || v != "red" {
		t.Errorf("expected color=red, got %q (set=%v)", v, ok)
	}
	if _, ok := o.Get("missing"); ok {
		t.Error("expected missing property to be unset")
	}
}
