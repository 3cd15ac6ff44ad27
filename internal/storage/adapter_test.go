package storage

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	logx "tipd/pkg/logx"
)

type brokenStore struct{ panics bool }

func (b brokenStore) fail() error {
	if b.panics {
		panic("backend exploded")
	}
	return errors.New("disk on fire")
}

func (b brokenStore) Get(context.Context, string) (string, bool, error) { return "", false, b.fail() }
func (b brokenStore) Set(context.Context, string, string) error         { return b.fail() }
func (b brokenStore) Remove(context.Context, string) error              { return b.fail() }
func (b brokenStore) Close() error                                      { return nil }

func countWarnings(buf *bytes.Buffer) int {
	return strings.Count(buf.String(), `"level":"warn"`)
}

func TestAdapterAbsorbsErrors(t *testing.T) {
	for _, panics := range []bool{false, true} {
		var buf bytes.Buffer
		var faults []string
		a := NewAdapter(brokenStore{panics: panics}, logx.NewWriter(&buf, "debug"),
			WithFaultHook(func(op string) { faults = append(faults, op) }))

		if _, ok := a.Get("k"); ok {
			t.Fatalf("Get on broken store reported a value")
		}
		if a.Set("k", "v") {
			t.Fatalf("Set on broken store reported success")
		}
		if a.Remove("k") {
			t.Fatalf("Remove on broken store reported success")
		}
		if n := countWarnings(&buf); n != 3 {
			t.Fatalf("panics=%v: warnings = %d, want 3\n%s", panics, n, buf.String())
		}
		if strings.Join(faults, ",") != "get,set,remove" {
			t.Fatalf("fault hook saw %v", faults)
		}
	}
}

func TestAdapterPassesThrough(t *testing.T) {
	a := NewAdapter(NewMemory(), logx.Nop())
	if !a.Set("k", "v") {
		t.Fatalf("Set failed")
	}
	if v, ok := a.Get("k"); !ok || v != "v" {
		t.Fatalf("Get = %q ok=%v", v, ok)
	}
	if !a.Remove("k") {
		t.Fatalf("Remove failed")
	}
	if _, ok := a.Get("k"); ok {
		t.Fatalf("expected key gone")
	}
}

func TestNilAdapterIsSafe(t *testing.T) {
	var a *Adapter
	if _, ok := a.Get("k"); ok {
		t.Fatalf("nil adapter returned a value")
	}
	if a.Set("k", "v") {
		t.Fatalf("nil adapter reported a write")
	}
}
