package app

import (
	"context"
	"sync/atomic"
	"testing"

	"tipd/internal/storage"
	logx "tipd/pkg/logx"
)

type compactingStore struct {
	storage.Store
	compacted atomic.Int32
}

func (s *compactingStore) Compact(context.Context) error {
	s.compacted.Add(1)
	return nil
}

func TestMaintenanceApply(t *testing.T) {
	st := &compactingStore{Store: storage.NewMemory()}
	m := NewMaintenance(st, logx.Nop())
	defer m.Stop(context.Background())

	if err := m.Apply("not a cron spec"); err == nil {
		t.Fatalf("expected parse error")
	}
	if err := m.Apply("@every 1h"); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if m.c == nil {
		t.Fatalf("cron not started")
	}
	if err := m.Apply(""); err != nil || m.c != nil {
		t.Fatalf("empty spec should stop the cron (err=%v)", err)
	}

	if !m.RunNow() || st.compacted.Load() != 1 {
		t.Fatalf("RunNow did not compact")
	}
}

func TestMaintenanceSkipsNonCompactor(t *testing.T) {
	m := NewMaintenance(storage.NewMemory(), logx.Nop())
	if err := m.Apply("@every 1h"); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if m.c != nil {
		t.Fatalf("cron started for a store that cannot compact")
	}
	if m.RunNow() {
		t.Fatalf("RunNow reported compaction on memory store")
	}
}
