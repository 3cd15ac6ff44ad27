package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/redis/go-redis/v9"

	logx "tipd/pkg/logx"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok=%v err=%v, want absent", ok, err)
	}
	if err := s.Set(ctx, "a", "1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, "a", "2"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	v, ok, err := s.Get(ctx, "a")
	if err != nil || !ok || v != "2" {
		t.Fatalf("Get(a) = %q ok=%v err=%v, want 2", v, ok, err)
	}
	if err := s.Remove(ctx, "a"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := s.Remove(ctx, "a"); err != nil {
		t.Fatalf("Remove absent key should be a no-op: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "a"); ok {
		t.Fatalf("expected key removed")
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemory()
	exerciseStore(t, s)
	_ = s.Close()
	if err := s.Set(context.Background(), "k", "v"); !errors.Is(err, ErrClosed) {
		t.Fatalf("Set after Close = %v, want ErrClosed", err)
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tipd.db")
	cfg := Config{Driver: "file", Path: path}

	s, err := Open(cfg, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	exerciseStore(t, s)
	ctx := context.Background()
	if err := s.Set(ctx, "keep", "yes"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, "drop", "x"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.(Compactor).Compact(ctx); err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if err := s.Remove(ctx, "drop"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(cfg, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	if v, ok, _ := s2.Get(ctx, "keep"); !ok || v != "yes" {
		t.Fatalf("after reopen keep = %q ok=%v", v, ok)
	}
	if _, ok, _ := s2.Get(ctx, "drop"); ok {
		t.Fatalf("journaled delete after snapshot was lost")
	}
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tipd.sqlite")
	s, err := Open(Config{Driver: "sqlite", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open sqlite: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
	if err := s.(Compactor).Compact(context.Background()); err != nil {
		t.Fatalf("Compact: %v", err)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "etcd"}, logx.Nop()); !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("Open(etcd) err = %v, want ErrUnknownDriver", err)
	}
	if _, err := Open(Config{Driver: "file"}, logx.Nop()); err == nil {
		t.Fatalf("expected file driver without path to fail")
	}
	s, err := Open(Config{}, logx.Nop())
	if err != nil || s == nil {
		t.Fatalf("default driver should be memory, got %v", err)
	}
}

func TestRedisKeyPrefix(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()
	s := newRedisStore(client, "tipd:", logx.Nop())
	if got := s.key("tips:out:welcome"); got != "tipd:tips:out:welcome" {
		t.Fatalf("key = %q", got)
	}
}
