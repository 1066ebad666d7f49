package keys

import (
	"testing"
)

func TestComposite_Format(t *testing.T) {
	tests := []struct {
		tenant   string
		id       string
		expected string
	}{
		{"app", "u1", "3:app:u1"},
		{"", "u1", "0::u1"},
		{"app", "", "3:app:"},
		{"a:b", "c", "3:a:b:c"},
		{"日本", "x", "6:日本:x"},
	}

	for _, tt := range tests {
		result := Composite(tt.tenant, tt.id)
		if result != tt.expected {
			t.Errorf("Composite(%q, %q) = %q, want %q", tt.tenant, tt.id, result, tt.expected)
		}
	}
}

func TestComposite_NoCollisions(t *testing.T) {
	// Pairs whose naive concatenation with a separator would collide.
	pairs := [][2]string{
		{"a:b", "c"},
		{"a", "b:c"},
		{"a_b", "c"},
		{"a", "b_c"},
		{"1:a", "b"},
		{"1", "a:b"},
		{"", "1:a:b"},
	}

	seen := make(map[string][2]string)
	for _, p := range pairs {
		k := Composite(p[0], p[1])
		if prev, ok := seen[k]; ok {
			t.Errorf("collision: %v and %v both map to %q", prev, p, k)
		}
		seen[k] = p
	}
}

func TestSplit_RoundTrip(t *testing.T) {
	pairs := [][2]string{
		{"app", "u1"},
		{"a:b", "c:d"},
		{"", ""},
		{"tenant", "id:with:colons"},
		{"10", "20"},
	}

	for _, p := range pairs {
		tenant, id, ok := Split(Composite(p[0], p[1]))
		if !ok {
			t.Errorf("Split(Composite(%q, %q)) failed", p[0], p[1])
			continue
		}
		if tenant != p[0] || id != p[1] {
			t.Errorf("Split round trip: got (%q, %q), want (%q, %q)", tenant, id, p[0], p[1])
		}
	}
}

func TestSplit_Invalid(t *testing.T) {
	for _, key := range []string{"", "abc", ":x", "x:y", "5:ab:c", "3:abc", "-1::x", "3:abcx"} {
		if _, _, ok := Split(key); ok {
			t.Errorf("Split(%q) expected ok=false", key)
		}
	}
}

func TestTableName(t *testing.T) {
	if got := TableName("prod_", "app"); got != "prod_app" {
		t.Errorf("expected 'prod_app', got %q", got)
	}
	if got := TableName("", "app"); got != "app" {
		t.Errorf("expected 'app', got %q", got)
	}
}
