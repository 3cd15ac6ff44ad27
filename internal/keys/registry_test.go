package keys

import (
	"reflect"
	"testing"

	"tipd/internal/tip"
)

func TestRegistryLookup(t *testing.T) {
	t.Parallel()
	r := New(Default())

	k, ok := r.Get(TipSection(tip.CategoryOut), tip.TypeWelcome)
	if !ok || k != "tipd:tips:out:welcome" {
		t.Fatalf("Get(out, welcome) = %q, %v", k, ok)
	}
	if _, ok := r.Get("nope", tip.TypeWelcome); ok {
		t.Fatalf("unknown section resolved")
	}
	if _, ok := r.Get(TipSection(tip.CategoryOut), "nope"); ok {
		t.Fatalf("unknown name resolved")
	}
	if !r.Has(SectionActivity, ChatOpenAt) {
		t.Fatalf("activity key missing")
	}
	want := []string{"activity", "tips.in", "tips.out"}
	if got := r.Sections(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Sections = %v, want %v", got, want)
	}
	if got := r.Keys(TipSection(tip.CategoryOut)); !reflect.DeepEqual(got, []string{"active_return", "followup", "welcome"}) {
		t.Fatalf("Keys(out) = %v", got)
	}
	if got := r.Keys("nope"); got != nil {
		t.Fatalf("Keys(unknown) = %v, want nil", got)
	}
}

func TestRegistryIsImmutable(t *testing.T) {
	t.Parallel()
	table := map[string]map[string]string{"s": {"n": "k"}}
	r := New(table)
	table["s"]["n"] = "changed"
	table["s"]["extra"] = "x"
	if k, _ := r.Get("s", "n"); k != "k" {
		t.Fatalf("registry observed caller mutation: %q", k)
	}
	if r.Has("s", "extra") {
		t.Fatalf("registry observed caller insertion")
	}
}

func TestMergeExtendsSections(t *testing.T) {
	t.Parallel()
	merged := Merge(Default(), map[string]map[string]string{
		TipSection(tip.CategoryOut): {"promo": "tipd:tips:out:promo"},
		"custom":                    {"a": "b"},
	})
	r := New(merged)
	if !r.Has(TipSection(tip.CategoryOut), "promo") || !r.Has(TipSection(tip.CategoryOut), tip.TypeWelcome) {
		t.Fatalf("merge lost or missed keys: %v", r.Keys(TipSection(tip.CategoryOut)))
	}
	if !r.Has("custom", "a") {
		t.Fatalf("merge missed new section")
	}
	if New(Default()).Has(TipSection(tip.CategoryOut), "promo") {
		t.Fatalf("merge mutated base")
	}
}

func TestNilRegistry(t *testing.T) {
	t.Parallel()
	var r *Registry
	if r.Has("a", "b") || r.Sections() != nil || r.Keys("a") != nil {
		t.Fatalf("nil registry should behave as empty")
	}
}
