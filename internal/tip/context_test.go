package tip

import (
	"testing"
	"time"
)

func TestParseContextIsExact(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want Context
	}{
		{"", ContextUnspecified},
		{"return", ContextReturn},
		{"outer", ContextOuter},
		{"inner", ContextInner},
		{"Return", ContextOther},
		{" return", ContextOther},
		{"returning", ContextOther},
	}
	for _, tt := range tests {
		if got := ParseContext(tt.raw); got != tt.want {
			t.Fatalf("ParseContext(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
	if !ParseContext("return").IsReturn() {
		t.Fatalf("expected return context")
	}
	if ParseContext("outer").IsReturn() {
		t.Fatalf("outer must not be a return")
	}
}

func TestParseCategory(t *testing.T) {
	t.Parallel()
	if c, ok := ParseCategory(" OUT "); !ok || c != CategoryOut {
		t.Fatalf("ParseCategory(OUT) = %q, %v", c, ok)
	}
	if _, ok := ParseCategory("sideways"); ok {
		t.Fatalf("expected unknown category to be rejected")
	}
}

func TestShownRecordShownAt(t *testing.T) {
	t.Parallel()
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	r := ShownRecord{Timestamp: ts.Format(time.RFC3339Nano)}
	got, ok := r.ShownAt()
	if !ok || !got.Equal(ts) {
		t.Fatalf("ShownAt = %v, %v", got, ok)
	}
	if _, ok := (ShownRecord{Timestamp: "yesterday"}).ShownAt(); ok {
		t.Fatalf("expected malformed timestamp to be rejected")
	}
}
