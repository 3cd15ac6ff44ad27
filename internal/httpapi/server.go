// Package httpapi is the local control surface of tipd: environment signals
// come in, decisions, shown records and timers can be inspected.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"tipd/internal/eventbus"
	"tipd/internal/runtime/supervisor"
	"tipd/internal/scheduler"
	"tipd/internal/tip"
	logx "tipd/pkg/logx"
)

type Decider interface {
	Evaluate(c tip.Context) (string, bool)
	Acknowledge(s tip.Shown) bool
}

type History interface {
	All(cat tip.Category) map[string]tip.ShownRecord
	ClearAll(cat tip.Category)
}

type Timers interface {
	Pending() []scheduler.TimerName
}

type Catalog interface {
	ListTypes() []string
}

// Deps wires the handlers to the running daemon.
type Deps struct {
	Bus     eventbus.Bus
	Decider Decider
	History History
	Timers  Timers
	// Catalog is a func since the catalog is swapped on config reload.
	Catalog func() Catalog
	Metrics http.Handler
	// Health returns a non-nil error when the daemon is degraded.
	Health func() error
	// Tasks reports the supervised background tasks on /healthz.
	Tasks func() []supervisor.TaskStats
	// Compact runs one storage compaction; false means the driver cannot.
	Compact func() bool
	// Pprof mounts the runtime profiler under /debug.
	Pprof bool
	Log   logx.Logger
}

// signals maps URL names onto bus events.
var signals = map[string]eventbus.Event{
	"chat-open":    {Type: tip.EventChatOpen},
	"chat-close":   {Type: tip.EventChatClose},
	"message-sent": {Type: tip.EventMessageSent},
	"page-visible": {Type: tip.EventPageVisibility, Data: tip.Visibility{Visible: true}},
	"page-hidden":  {Type: tip.EventPageVisibility, Data: tip.Visibility{Visible: false}},
	"page-focus":   {Type: tip.EventPageFocus},
}

// New builds the router.
func New(d Deps) http.Handler {
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	h := &handlers{d: d}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLog(d.Log))
	r.Use(middleware.Timeout(15 * time.Second))

	r.Get("/healthz", h.health)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}
	if d.Pprof {
		r.Mount("/debug", middleware.Profiler())
	}
	r.Route("/v1", func(r chi.Router) {
		r.Get("/decision", h.decision)
		r.Post("/signals/{signal}", h.signal)
		r.Post("/tips/{category}/{type}/shown", h.shown)
		r.Get("/tips/{category}", h.listTips)
		r.Delete("/tips/{category}", h.clearTips)
		r.Get("/timers", h.timers)
		r.Get("/messages", h.messages)
		r.Post("/maintenance/compact", h.compact)
	})
	return r
}

// Serve runs an http.Server on addr until ctx is done, then shuts it down.
func Serve(ctx context.Context, addr string, handler http.Handler, log logx.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      20 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info("http listening", logx.String("addr", addr))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}

func requestLog(log logx.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("http request",
				logx.String("method", r.Method),
				logx.String("path", r.URL.Path),
				logx.Int("status", ww.Status()),
				logx.Duration("took", time.Since(start)),
				logx.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
