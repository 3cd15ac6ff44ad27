package app

import (
	"sync"
	"testing"
	"time"

	"tipd/internal/activity"
	"tipd/internal/config"
	"tipd/internal/decision"
	"tipd/internal/eventbus"
	"tipd/internal/keys"
	"tipd/internal/scheduler"
	"tipd/internal/storage"
	"tipd/internal/tip"
	"tipd/internal/tipstore"
	logx "tipd/pkg/logx"
)

type manualClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*manualTimer
}

type manualTimer struct {
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	was := !t.stopped && !t.fired
	t.stopped = true
	return was
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) scheduler.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*manualTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.at <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

type decisionLog struct {
	mu  sync.Mutex
	got []string
}

func (d *decisionLog) ObserveDecision(typ, trigger string) {
	d.mu.Lock()
	d.got = append(d.got, trigger+":"+typ)
	d.mu.Unlock()
}

type flowHarness struct {
	bus       eventbus.Bus
	clk       *manualClock
	sched     *scheduler.Scheduler
	tips      *tipstore.Storage
	flow      *Flow
	pipe      *Pipeline
	decisions *decisionLog

	presented []tip.Presentation
	hidden    int
}

// newFlowHarness wires a flow over in-memory storage. With autoAck the
// presenter acknowledges every tip as soon as it is asked to show it.
func newFlowHarness(t *testing.T, autoAck bool) *flowHarness {
	t.Helper()
	bus := eventbus.New()
	kv := storage.NewAdapter(storage.NewMemory(), logx.Nop())
	reg := keys.New(keys.Default())
	tips := tipstore.New(kv, reg, logx.Nop())
	act := activity.NewStorage(kv, reg, logx.Nop())
	mon := activity.NewMonitor(bus, act, logx.Nop(), activity.WithReturnDebounce(0))
	clk := &manualClock{}
	sched := scheduler.New(bus, logx.Nop(), scheduler.WithAfterFunc(clk.AfterFunc))

	p, err := buildPipeline(&config.Config{}, tips, logx.Nop())
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	h := &flowHarness{bus: bus, clk: clk, sched: sched, tips: tips, pipe: p, decisions: &decisionLog{}}
	h.flow = NewFlow(bus, sched, tips, mon, func() *Pipeline { return h.pipe }, h.decisions,
		FlowConfig{ActiveReturnCheckDelay: 3 * time.Second, ReturningDelay: 30 * time.Second}, logx.Nop())

	bus.On(tip.EventPresent, func(e eventbus.Event) {
		pr := e.Data.(tip.Presentation)
		h.presented = append(h.presented, pr)
		if autoAck {
			bus.Publish(eventbus.Event{Type: tip.EventShown, Data: tip.Shown{Type: pr.Type, Category: pr.Category}})
		}
	})
	bus.On(tip.EventHide, func(eventbus.Event) { h.hidden++ })

	mon.Start()
	t.Cleanup(func() {
		h.flow.Stop()
		mon.Stop()
	})
	return h
}

func (h *flowHarness) lastPresented(t *testing.T) tip.Presentation {
	t.Helper()
	if len(h.presented) == 0 {
		t.Fatalf("nothing presented")
	}
	return h.presented[len(h.presented)-1]
}

func TestFlowWelcomeThenFollowup(t *testing.T) {
	h := newFlowHarness(t, true)
	h.flow.Start()

	if !h.sched.HasScheduled(scheduler.TimerShow) {
		t.Fatalf("welcome not scheduled on start")
	}
	h.clk.Advance(5 * time.Second)

	pr := h.lastPresented(t)
	if pr.Type != tip.TypeWelcome || pr.Category != tip.CategoryOut || pr.DurationMS != 15000 || pr.Text == "" {
		t.Fatalf("presentation = %+v", pr)
	}
	if !h.tips.WasShown(tip.TypeWelcome, tip.CategoryOut) {
		t.Fatalf("welcome not marked as shown")
	}
	if !h.sched.HasScheduled(scheduler.TimerAutoHide) || !h.sched.HasScheduled(scheduler.TimerFollowUp) {
		t.Fatalf("pending = %v", h.sched.Pending())
	}

	h.clk.Advance(15 * time.Second)
	if h.hidden != 1 {
		t.Fatalf("hidden = %d, want 1", h.hidden)
	}

	h.clk.Advance(45 * time.Second) // follow-up delay is 60s after the ack
	h.clk.Advance(0)                // follow-up shows immediately
	if pr := h.lastPresented(t); pr.Type != tip.TypeFollowup {
		t.Fatalf("second presentation = %+v", pr)
	}

	want := []string{"start:welcome", "followup:followup"}
	if len(h.decisions.got) != len(want) {
		t.Fatalf("decisions = %v, want %v", h.decisions.got, want)
	}
	for i := range want {
		if h.decisions.got[i] != want[i] {
			t.Fatalf("decisions = %v, want %v", h.decisions.got, want)
		}
	}
}

func TestFlowChatOpenCancelsAndReturnReengages(t *testing.T) {
	h := newFlowHarness(t, true)
	h.flow.Start()

	h.bus.Publish(eventbus.Event{Type: tip.EventChatOpen})
	if h.sched.HasScheduled(scheduler.TimerShow) {
		t.Fatalf("chat open should cancel the pending show")
	}
	h.bus.Publish(eventbus.Event{Type: tip.EventMessageSent})
	h.bus.Publish(eventbus.Event{Type: tip.EventChatClose})
	if !h.sched.HasScheduled(scheduler.TimerReturning) {
		t.Fatalf("chat close should arm the returning timer")
	}

	h.clk.Advance(30 * time.Second)
	if len(h.presented) != 0 {
		t.Fatalf("engaged visitor got %+v", h.presented)
	}

	h.bus.Publish(eventbus.Event{Type: tip.EventPageVisibility, Data: tip.Visibility{Visible: true}})
	if !h.sched.HasScheduled(scheduler.TimerActiveReturnCheck) {
		t.Fatalf("page return should arm the active return check")
	}
	h.clk.Advance(3 * time.Second)
	h.clk.Advance(2 * time.Second) // active_return delay
	if pr := h.lastPresented(t); pr.Type != tip.TypeActiveReturn {
		t.Fatalf("presentation = %+v", pr)
	}

	// A second return does not repeat the tip.
	h.bus.Publish(eventbus.Event{Type: tip.EventPageFocus})
	h.clk.Advance(10 * time.Second)
	if n := len(h.presented); n != 1 {
		t.Fatalf("presented %d tips, want 1", n)
	}
}

func TestFlowEvaluateDoesNotSchedule(t *testing.T) {
	h := newFlowHarness(t, false)

	var decisions []tip.Decision
	h.bus.On(tip.EventDecision, func(e eventbus.Event) { decisions = append(decisions, e.Data.(tip.Decision)) })

	typ, ok := h.flow.Evaluate(tip.ContextUnspecified)
	if !ok || typ != tip.TypeWelcome {
		t.Fatalf("Evaluate() = %q, %v", typ, ok)
	}
	if len(h.sched.Pending()) != 0 {
		t.Fatalf("Evaluate scheduled %v", h.sched.Pending())
	}
	if len(decisions) != 1 || decisions[0].Trigger != TriggerQuery {
		t.Fatalf("decision events = %+v", decisions)
	}
}

func TestFlowAcknowledgeRejectsBadInput(t *testing.T) {
	h := newFlowHarness(t, false)
	if h.flow.Acknowledge(tip.Shown{Type: "", Category: tip.CategoryOut}) {
		t.Fatalf("empty type accepted")
	}
	if h.flow.Acknowledge(tip.Shown{Type: tip.TypeWelcome, Category: "side"}) {
		t.Fatalf("unknown category accepted")
	}
	// A type without a storage key is not recorded.
	if h.flow.Acknowledge(tip.Shown{Type: "promo", Category: tip.CategoryOut}) {
		t.Fatalf("unregistered type recorded")
	}
	if !h.flow.Acknowledge(tip.Shown{Type: tip.TypeWelcome, Category: tip.CategoryIn}) {
		t.Fatalf("in.welcome not recorded")
	}
	// in.welcome has no duration: no auto-hide.
	if h.sched.HasScheduled(scheduler.TimerAutoHide) {
		t.Fatalf("auto-hide armed for a sticky tip")
	}
}

func TestFlowStopClearsTimers(t *testing.T) {
	h := newFlowHarness(t, false)
	h.flow.Start()
	h.flow.Stop()
	if len(h.sched.Pending()) != 0 {
		t.Fatalf("pending after stop = %v", h.sched.Pending())
	}
	h.clk.Advance(time.Minute)
	if len(h.presented) != 0 {
		t.Fatalf("presented after stop: %+v", h.presented)
	}
}

func TestFlowNoReturnTipWhileChatOpen(t *testing.T) {
	h := newFlowHarness(t, true)
	h.flow.Start()

	h.bus.Publish(eventbus.Event{Type: tip.EventChatOpen})
	h.bus.Publish(eventbus.Event{Type: tip.EventMessageSent})
	h.bus.Publish(eventbus.Event{Type: tip.EventPageVisibility, Data: tip.Visibility{Visible: true}})
	if h.sched.HasScheduled(scheduler.TimerActiveReturnCheck) {
		t.Fatalf("active return check armed while the chat is open")
	}
	h.clk.Advance(3 * time.Second)
	h.clk.Advance(2 * time.Second)
	if len(h.presented) != 0 {
		t.Fatalf("presented over an open chat: %+v", h.presented)
	}

	// A check that was already pending when the chat opened is cancelled.
	h.bus.Publish(eventbus.Event{Type: tip.EventChatClose})
	h.bus.Publish(eventbus.Event{Type: tip.EventPageFocus})
	if !h.sched.HasScheduled(scheduler.TimerActiveReturnCheck) {
		t.Fatalf("page return after close should arm the check")
	}
	h.bus.Publish(eventbus.Event{Type: tip.EventChatOpen})
	if h.sched.HasScheduled(scheduler.TimerActiveReturnCheck) || h.sched.HasScheduled(scheduler.TimerReturning) {
		t.Fatalf("chat open left timers armed: %v", h.sched.Pending())
	}
	h.clk.Advance(time.Minute)
	if len(h.presented) != 0 {
		t.Fatalf("presented over an open chat: %+v", h.presented)
	}
}

func TestFlowShowDroppedWhileChatOpen(t *testing.T) {
	h := newFlowHarness(t, false)
	h.flow.Start()
	h.bus.Publish(eventbus.Event{Type: tip.EventChatOpen})
	if !h.flow.ChatOpen() {
		t.Fatalf("chat open not tracked")
	}

	h.bus.Publish(eventbus.Event{Type: tip.EventShow, Data: scheduler.ShowPayload{Type: tip.TypeWelcome}})
	if len(h.presented) != 0 {
		t.Fatalf("presented over an open chat: %+v", h.presented)
	}

	h.bus.Publish(eventbus.Event{Type: tip.EventChatClose})
	h.bus.Publish(eventbus.Event{Type: tip.EventShow, Data: scheduler.ShowPayload{Type: tip.TypeWelcome}})
	if pr := h.lastPresented(t); pr.Type != tip.TypeWelcome {
		t.Fatalf("presentation = %+v", pr)
	}
}

// comebackRule proposes active_return to anyone who has written in the chat,
// regardless of context.
type comebackRule struct{}

func (comebackRule) Name() string { return "comeback" }

func (comebackRule) Matches(state tip.State, eng *decision.Engine, _ tip.Context) (string, bool) {
	if !state.HasSentMessage || eng.Helpers().Storage.WasShown(tip.TypeActiveReturn, tip.CategoryOut) {
		return "", false
	}
	return tip.TypeActiveReturn, true
}

func TestFlowReturningDecisionServesCustomRules(t *testing.T) {
	h := newFlowHarness(t, true)
	h.flow.Start()
	h.bus.Publish(eventbus.Event{Type: tip.EventChatOpen})
	h.bus.Publish(eventbus.Event{Type: tip.EventMessageSent})
	h.bus.Publish(eventbus.Event{Type: tip.EventChatClose})

	// The built-in rules have nothing to say to a returning visitor.
	h.clk.Advance(30 * time.Second)
	if len(h.presented) != 0 {
		t.Fatalf("default rules presented %+v", h.presented)
	}
	if got := h.decisions.got[len(h.decisions.got)-1]; got != TriggerReturning+":" {
		t.Fatalf("last decision = %q", got)
	}

	h.pipe = &Pipeline{
		Catalog:  h.pipe.Catalog,
		Cooldown: h.pipe.Cooldown,
		Engine: decision.New(h.pipe.Catalog,
			decision.Helpers{Storage: h.tips, Cooldown: h.pipe.Cooldown},
			[]decision.Rule{comebackRule{}}),
	}
	h.bus.Publish(eventbus.Event{Type: tip.EventChatOpen})
	h.bus.Publish(eventbus.Event{Type: tip.EventChatClose})
	h.clk.Advance(30 * time.Second)
	h.clk.Advance(2 * time.Second) // active_return delay
	if pr := h.lastPresented(t); pr.Type != tip.TypeActiveReturn {
		t.Fatalf("presentation = %+v", pr)
	}
}
