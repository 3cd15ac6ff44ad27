package activity

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"tipd/internal/eventbus"
	"tipd/internal/tip"
	logx "tipd/pkg/logx"
)

// DefaultReturnDebounce collapses a visibility change and the focus event
// that usually accompanies it into one page return.
const DefaultReturnDebounce = time.Second

// Monitor listens for chat and page signals on the bus while active.
type Monitor struct {
	bus   eventbus.Bus
	store *Storage
	log   logx.Logger

	mu       sync.Mutex
	active   bool
	offs     []func()
	debounce time.Duration
	limiter  *rate.Limiter
}

type MonitorOption func(*Monitor)

// WithReturnDebounce sets the minimum spacing between page-return events.
// Zero disables debouncing.
func WithReturnDebounce(d time.Duration) MonitorOption {
	return func(m *Monitor) { m.debounce = d }
}

// NewMonitor returns a monitor that records chat signals into store.
func NewMonitor(bus eventbus.Bus, store *Storage, log logx.Logger, opts ...MonitorOption) *Monitor {
	if log.IsZero() {
		log = logx.Nop()
	}
	m := &Monitor{bus: bus, store: store, log: log, debounce: DefaultReturnDebounce}
	for _, o := range opts {
		o(m)
	}
	m.limiter = newReturnLimiter(m.debounce)
	return m
}

func newReturnLimiter(d time.Duration) *rate.Limiter {
	if d <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(d), 1)
}

// Start subscribes to chat and page signals. Calling it while active is a no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		return
	}
	m.active = true
	m.offs = []func(){
		m.bus.On(tip.EventChatOpen, func(eventbus.Event) { m.MarkChatOpen() }),
		m.bus.On(tip.EventChatClose, func(eventbus.Event) { m.MarkChatClose() }),
		m.bus.On(tip.EventMessageSent, func(eventbus.Event) { m.MarkMessageSent() }),
		m.bus.On(tip.EventPageVisibility, m.onVisibility),
		m.bus.On(tip.EventPageFocus, func(eventbus.Event) { m.pageReturned("focus") }),
	}
	m.log.Debug("activity monitor started")
}

// Stop removes every listener. Calling it while inactive is a no-op.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return
	}
	for _, off := range m.offs {
		off()
	}
	m.offs = nil
	m.active = false
	m.log.Debug("activity monitor stopped")
}

// Destroy is Stop.
func (m *Monitor) Destroy() { m.Stop() }

// IsActive reports whether the monitor is subscribed to the bus.
func (m *Monitor) IsActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// MarkChatOpen records a chat open now.
func (m *Monitor) MarkChatOpen() {
	if !m.store.MarkChatOpen() {
		m.log.Warn("chat open not recorded")
	}
}

// MarkChatClose records a chat close now.
func (m *Monitor) MarkChatClose() {
	if !m.store.MarkChatClose() {
		m.log.Warn("chat close not recorded")
	}
}

// MarkMessageSent records a sent message now.
func (m *Monitor) MarkMessageSent() {
	if !m.store.MarkMessageSent() {
		m.log.Warn("message sent not recorded")
	}
}

func (m *Monitor) onVisibility(e eventbus.Event) {
	v, ok := e.Data.(tip.Visibility)
	if !ok || !v.Visible {
		return
	}
	m.pageReturned("visibility")
}

func (m *Monitor) pageReturned(source string) {
	if !m.limiter.Allow() {
		m.log.Trace("page return debounced", logx.String("source", source))
		return
	}
	m.bus.Publish(eventbus.Event{Type: tip.EventPageReturn, Data: source})
}

// ChatOpen reports whether the last recorded chat open has no later close,
// i.e. a previous session left the chat open.
func (m *Monitor) ChatOpen() bool {
	opened, ok := m.store.LastChatOpenTime()
	if !ok {
		return false
	}
	closed, ok := m.store.LastChatCloseTime()
	return !ok || opened.After(closed)
}

func (m *Monitor) LastChatOpenTime() (time.Time, bool)    { return m.store.LastChatOpenTime() }
func (m *Monitor) LastMessageSentTime() (time.Time, bool) { return m.store.LastMessageSentTime() }
func (m *Monitor) HasSentMessage() bool                   { return m.store.HasSentMessage() }

// State builds the decision input from persisted activity.
func (m *Monitor) State() tip.State {
	opened, _ := m.store.LastChatOpenTime()
	return tip.State{LastChatOpenTime: opened, HasSentMessage: m.store.HasSentMessage()}
}
