package app

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"tipd/internal/config"
	"tipd/internal/storage"
	logx "tipd/pkg/logx"
)

// Maintenance runs storage housekeeping on a cron spec.
type Maintenance struct {
	store storage.Store
	log   logx.Logger

	mu   sync.Mutex
	c    *cron.Cron
	spec string
}

// NewMaintenance returns an idle scheduler; Apply starts it.
func NewMaintenance(store storage.Store, log logx.Logger) *Maintenance {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Maintenance{store: store, log: log}
}

// Apply (re)starts the cron with spec. An empty spec, or a store that cannot
// compact, stops it.
func (m *Maintenance) Apply(spec string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.c != nil && spec == m.spec {
		return nil
	}
	m.stopLocked(context.Background())

	comp, ok := m.store.(storage.Compactor)
	if spec == "" || !ok {
		m.spec = spec
		return nil
	}

	c := cron.New(cron.WithParser(config.CronParser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, func() { m.compact(comp) }); err != nil {
		return err
	}
	c.Start()
	m.c = c
	m.spec = spec
	m.log.Info("maintenance scheduled", logx.String("compact", spec))
	return nil
}

func (m *Maintenance) compact(comp storage.Compactor) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	start := time.Now()
	if err := comp.Compact(ctx); err != nil {
		m.log.Warn("storage compact failed", logx.Err(err))
		return
	}
	m.log.Debug("storage compacted", logx.Duration("took", time.Since(start)))
}

// RunNow compacts once, synchronously.
func (m *Maintenance) RunNow() bool {
	comp, ok := m.store.(storage.Compactor)
	if ok {
		m.compact(comp)
	}
	return ok
}

// Stop halts the cron and waits for a running compaction, bounded by ctx.
func (m *Maintenance) Stop(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked(ctx)
}

func (m *Maintenance) stopLocked(ctx context.Context) {
	if m.c == nil {
		return
	}
	select {
	case <-m.c.Stop().Done():
	case <-ctx.Done():
	}
	m.c = nil
}
