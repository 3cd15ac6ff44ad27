// Package app wires tipd together: config, logging, storage, the decision
// pipeline, the tip flow and the optional HTTP surface.
package app

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"tipd/internal/activity"
	"tipd/internal/config"
	"tipd/internal/eventbus"
	"tipd/internal/httpapi"
	"tipd/internal/keys"
	"tipd/internal/metrics"
	"tipd/internal/runtime/supervisor"
	"tipd/internal/scheduler"
	"tipd/internal/storage"
	"tipd/internal/tipstore"
	logx "tipd/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store storage.Store
	kv    *storage.Adapter
	keys  *keys.Registry

	tips     *tipstore.Storage
	activity *activity.Storage
	monitor  *activity.Monitor
	sched    *scheduler.Scheduler
	metrics  *metrics.Metrics
	maint    *Maintenance

	pipeline atomic.Pointer[Pipeline]
	flow     *Flow
}

// New loads the config at cfgPath and builds every component. Nothing runs
// until Start.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return newApp(cfgm, cfg)
}

func newApp(cfgm *config.Manager, cfg *config.Config) (*App, error) {
	logSvc, log := logx.New(cfg.LogConfig())

	sc, opTimeout, err := cfg.StorageConfig()
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	log.Info("storage ready", logx.String("driver", sc.Driver))

	a := &App{
		cfgm:    cfgm,
		log:     log.With(logx.String("comp", "app")),
		logs:    logSvc,
		bus:     eventbus.New(),
		store:   store,
		metrics: metrics.New(),
	}
	a.kv = storage.NewAdapter(store, log.With(logx.String("comp", "kv")),
		storage.WithOpTimeout(opTimeout),
		storage.WithFaultHook(a.metrics.StorageFault),
	)
	a.keys = keys.New(keys.Merge(keys.Default(), cfg.Keys))
	a.tips = tipstore.New(a.kv, a.keys, log.With(logx.String("comp", "tipstore")))
	a.activity = activity.NewStorage(a.kv, a.keys, log.With(logx.String("comp", "activity")))

	debounce, err := cfg.ReturnDebounce()
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	a.monitor = activity.NewMonitor(a.bus, a.activity, log.With(logx.String("comp", "monitor")),
		activity.WithReturnDebounce(debounce))
	a.sched = scheduler.New(a.bus, log.With(logx.String("comp", "scheduler")))
	a.maint = NewMaintenance(store, log.With(logx.String("comp", "maintenance")))

	p, err := buildPipeline(cfg, a.tips, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	a.pipeline.Store(p)

	timings, err := cfg.FlowTimings()
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	a.flow = NewFlow(a.bus, a.sched, a.tips, a.monitor, a.Pipeline, a.metrics,
		FlowConfig{ActiveReturnCheckDelay: timings.ActiveReturnCheckDelay, ReturningDelay: timings.ReturningDelay},
		log.With(logx.String("comp", "flow")))
	return a, nil
}

// Pipeline returns the current decision pipeline.
func (a *App) Pipeline() *Pipeline { return a.pipeline.Load() }

func (a *App) Bus() eventbus.Bus   { return a.bus }
func (a *App) Flow() *Flow         { return a.flow }
func (a *App) Logger() logx.Logger { return a.log }

// Done is closed when the app context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start launches the background tasks and the initial decision.
func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	cfg := a.cfgm.Get()

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))

	a.sup.Go("metrics.pump", func(c context.Context) error { return a.metrics.Pump(c, a.bus) })
	a.sup.Go0("eventbus.log", a.logEvents)

	a.monitor.Start()
	a.flow.Start()

	if err := a.maint.Apply(cfg.CompactSpec()); err != nil {
		return fmt.Errorf("maintenance: %w", err)
	}

	if cfg.HTTP.Enabled {
		addr := cfg.HTTPAddr()
		deps := a.httpDeps()
		deps.Pprof = cfg.HTTP.Pprof
		handler := httpapi.New(deps)
		a.sup.GoRestart("http", func(c context.Context) error {
			return httpapi.Serve(c, addr, handler, a.log.With(logx.String("comp", "http")))
		}, time.Second, 30*time.Second)
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		applied := cfg
		for {
			select {
			case <-c.Done():
				return
			case next, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(applied, next)
				applied = next
			}
		}
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	a.log.Info("app started", logx.Bool("http", cfg.HTTP.Enabled))
	return nil
}

// Tasks reports the supervised background tasks. It is empty before Start.
func (a *App) Tasks() []supervisor.TaskStats {
	if a.sup == nil {
		return nil
	}
	return a.sup.Snapshot()
}

func (a *App) httpDeps() httpapi.Deps {
	return httpapi.Deps{
		Bus:     a.bus,
		Decider: a.flow,
		History: a.tips,
		Timers:  a.sched,
		Catalog: func() httpapi.Catalog { return a.Pipeline().Catalog },
		Metrics: a.metrics.Handler(),
		Health:  a.Err,
		Tasks:   a.Tasks,
		Compact: a.maint.RunNow,
		Log:     a.log.With(logx.String("comp", "http")),
	}
}

func (a *App) logEvents(c context.Context) {
	events, unsub := a.bus.Subscribe(128)
	defer unsub()
	for {
		select {
		case <-c.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			a.log.Trace("event", logx.String("type", e.Type), logx.Time("time", e.Time))
		}
	}
}

// applyConfig applies a validated reload. Storage, keys and HTTP changes
// need a restart.
func (a *App) applyConfig(prev, next *config.Config) {
	changed, _ := config.SummarizeConfigChange(prev, next)
	if len(changed) == 0 {
		return
	}
	for _, s := range []string{"storage", "keys", "http"} {
		if slices.Contains(changed, s) {
			a.log.Warn(s + " config changed; restart required for changes to take effect")
		}
	}

	a.logs.Apply(next.LogConfig())

	if slices.Contains(changed, "messages") {
		p, err := buildPipeline(next, a.tips, a.logs.Logger())
		if err != nil {
			a.log.Warn("invalid messages config; keeping previous", logx.Err(err))
		} else {
			a.pipeline.Store(p)
		}
	}
	if slices.Contains(changed, "flow") {
		if t, err := next.FlowTimings(); err == nil {
			a.flow.SetConfig(FlowConfig{ActiveReturnCheckDelay: t.ActiveReturnCheckDelay, ReturningDelay: t.ReturningDelay})
		}
	}
	if slices.Contains(changed, "monitor") {
		a.log.Warn("monitor config changed; restart required for changes to take effect")
	}
	if slices.Contains(changed, "maintenance") {
		if err := a.maint.Apply(next.CompactSpec()); err != nil {
			a.log.Warn("invalid maintenance config; keeping previous", logx.Err(err))
		}
	}
}

// Stop shuts down in reverse start order. Each step is bounded so one
// stuck component cannot stall the rest.
func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")
	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()
		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()
		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name))
		}
	}

	step("flow", time.Second, func(context.Context) error { a.flow.Stop(); return nil })
	step("monitor", time.Second, func(context.Context) error { a.monitor.Destroy(); return nil })
	step("maintenance", 2*time.Second, func(c context.Context) error { a.maint.Stop(c); return nil })
	step("supervisor", 4*time.Second, a.sup.Wait)
	step("storage", time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	return a.logs.Close()
}
