package app

import (
	"sync"
	"time"

	"tipd/internal/decision"
	"tipd/internal/eventbus"
	"tipd/internal/scheduler"
	"tipd/internal/tip"
	"tipd/internal/tipstore"
	logx "tipd/pkg/logx"
)

// Decision triggers, used as the metrics "trigger" label.
const (
	TriggerStart             = "start"
	TriggerFollowUp          = "followup"
	TriggerActiveReturnCheck = "active_return_check"
	TriggerReturning         = "returning"
	TriggerQuery             = "query"
)

// StateSource supplies the visitor's session state at decision time.
type StateSource interface {
	State() tip.State
}

// chatState is implemented by state sources that can tell whether the chat
// was left open by a previous session.
type chatState interface {
	ChatOpen() bool
}

// DecisionObserver is told about every engine outcome.
type DecisionObserver interface {
	ObserveDecision(typ, trigger string)
}

// FlowConfig holds the fixed delays of the flow.
type FlowConfig struct {
	ActiveReturnCheckDelay time.Duration
	ReturningDelay         time.Duration
}

// Flow drives tips for one visitor session: it asks the engine when
// something happens, arms the scheduler and talks to the presenter over
// the bus (tip:present / tip:shown / tip:hide).
//
// Decide-and-mark sequences hold mu. Bus publishes happen after mu is
// released since handlers run synchronously and may call back in.
type Flow struct {
	bus      eventbus.Bus
	sched    *scheduler.Scheduler
	tips     *tipstore.Storage
	state    StateSource
	pipeline func() *Pipeline
	observer DecisionObserver
	log      logx.Logger

	mu       sync.Mutex
	cfg      FlowConfig
	offs     []func()
	showing  *tip.Shown
	chatOpen bool
}

// NewFlow returns a stopped flow. pipeline is read on every decision.
func NewFlow(bus eventbus.Bus, sched *scheduler.Scheduler, tips *tipstore.Storage, state StateSource,
	pipeline func() *Pipeline, observer DecisionObserver, cfg FlowConfig, log logx.Logger) *Flow {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Flow{
		bus:      bus,
		sched:    sched,
		tips:     tips,
		state:    state,
		pipeline: pipeline,
		observer: observer,
		cfg:      cfg,
		log:      log,
	}
}

// SetConfig replaces the delays used for future scheduling.
func (f *Flow) SetConfig(cfg FlowConfig) {
	f.mu.Lock()
	f.cfg = cfg
	f.mu.Unlock()
}

// Start subscribes to the bus and runs the initial decision.
func (f *Flow) Start() {
	f.mu.Lock()
	if f.offs != nil {
		f.mu.Unlock()
		return
	}
	f.offs = []func(){
		f.bus.On(tip.EventShow, f.onShow),
		f.bus.On(tip.EventShown, f.onShown),
		f.bus.On(tip.EventAutoHide, f.onAutoHide),
		f.bus.On(tip.EventFollowUp, f.onFollowUp),
		f.bus.On(tip.EventPageReturn, f.onPageReturn),
		f.bus.On(tip.EventActiveReturnCheck, f.onActiveReturnCheck),
		f.bus.On(tip.EventChatOpen, f.onChatOpen),
		f.bus.On(tip.EventChatClose, f.onChatClose),
		f.bus.On(tip.EventReturning, f.onReturning),
	}
	if cs, ok := f.state.(chatState); ok {
		f.chatOpen = cs.ChatOpen()
	}
	f.mu.Unlock()

	f.decideAndSchedule(TriggerStart, tip.ContextUnspecified, true)
}

// Stop unsubscribes and cancels every pending timer.
func (f *Flow) Stop() {
	f.mu.Lock()
	offs := f.offs
	f.offs = nil
	f.mu.Unlock()
	for _, off := range offs {
		off()
	}
	f.sched.ClearAll()
}

// Evaluate runs the engine without scheduling anything.
func (f *Flow) Evaluate(c tip.Context) (string, bool) {
	f.mu.Lock()
	typ, ok, ev := f.decideLocked(TriggerQuery, c)
	f.mu.Unlock()
	f.bus.Publish(ev)
	return typ, ok
}

// Acknowledge records that the presenter displayed a tip. It is the same
// path as a tip:shown event.
func (f *Flow) Acknowledge(s tip.Shown) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acknowledgeLocked(s)
}

func (f *Flow) decideLocked(trigger string, c tip.Context) (string, bool, eventbus.Event) {
	p := f.pipeline()
	typ, ok := p.Engine.Determine(f.state.State(), decision.Options{Context: c})
	if f.observer != nil {
		f.observer.ObserveDecision(typ, trigger)
	}
	f.log.Debug("decision",
		logx.String("trigger", trigger),
		logx.String("context", c.String()),
		logx.String("type", typ),
		logx.Bool("matched", ok),
	)
	ev := eventbus.Event{Type: tip.EventDecision, Data: tip.Decision{Type: typ, Context: c.String(), Trigger: trigger}}
	return typ, ok, ev
}

// decideAndSchedule arms the show timer for whatever the engine picks.
// withDelay false shows immediately.
func (f *Flow) decideAndSchedule(trigger string, c tip.Context, withDelay bool) {
	f.mu.Lock()
	typ, ok, ev := f.decideLocked(trigger, c)
	if ok {
		var delay time.Duration
		if withDelay {
			delay = f.pipeline().Catalog.Delay(tip.CategoryOut, typ)
		}
		f.sched.ScheduleShow(delay, typ)
	}
	f.mu.Unlock()
	f.bus.Publish(ev)
}

func (f *Flow) onShow(e eventbus.Event) {
	p, ok := e.Data.(scheduler.ShowPayload)
	if !ok || p.Type == "" {
		return
	}
	f.mu.Lock()
	if f.chatOpen {
		f.mu.Unlock()
		f.log.Debug("show dropped; chat is open", logx.String("type", p.Type))
		return
	}
	cat := f.pipeline().Catalog
	if !cat.Has(tip.CategoryOut, p.Type) {
		f.mu.Unlock()
		f.log.Debug("show skipped; message no longer available", logx.String("type", p.Type))
		return
	}
	def := cat.Get(tip.CategoryOut, p.Type)
	f.mu.Unlock()

	f.bus.Publish(eventbus.Event{Type: tip.EventPresent, Data: tip.Presentation{
		Type:       p.Type,
		Category:   tip.CategoryOut,
		Text:       def.Text,
		DurationMS: def.Duration.Milliseconds(),
	}})
}

func (f *Flow) onShown(e eventbus.Event) {
	s, ok := e.Data.(tip.Shown)
	if !ok {
		return
	}
	f.Acknowledge(s)
}

func (f *Flow) acknowledgeLocked(s tip.Shown) bool {
	if s.Type == "" || !s.Category.Valid() {
		return false
	}
	if !f.tips.MarkAsShown(s.Type, s.Category) {
		return false
	}
	cat := f.pipeline().Catalog
	shown := s
	f.showing = &shown
	if d := cat.Get(s.Category, s.Type).Duration; d > 0 {
		f.sched.ScheduleAutoHide(d)
	}
	if s.Type == tip.TypeWelcome && s.Category == tip.CategoryOut && cat.Has(tip.CategoryOut, tip.TypeFollowup) {
		f.sched.ScheduleFollowUp(cat.Delay(tip.CategoryOut, tip.TypeFollowup))
	}
	return true
}

func (f *Flow) onAutoHide(eventbus.Event) {
	f.mu.Lock()
	var data any
	if f.showing != nil {
		data = *f.showing
		f.showing = nil
	}
	f.mu.Unlock()
	f.bus.Publish(eventbus.Event{Type: tip.EventHide, Data: data})
}

func (f *Flow) onFollowUp(eventbus.Event) {
	f.decideAndSchedule(TriggerFollowUp, tip.ContextUnspecified, false)
}

func (f *Flow) onPageReturn(eventbus.Event) {
	f.mu.Lock()
	open := f.chatOpen
	d := f.cfg.ActiveReturnCheckDelay
	f.mu.Unlock()
	if open {
		f.log.Trace("page return ignored; chat is open")
		return
	}
	f.sched.ScheduleActiveReturnCheck(d)
}

func (f *Flow) onActiveReturnCheck(eventbus.Event) {
	f.mu.Lock()
	open := f.chatOpen
	f.mu.Unlock()
	if open {
		return
	}
	f.decideAndSchedule(TriggerActiveReturnCheck, tip.ContextReturn, true)
}

// ChatOpen reports whether the flow considers the chat open.
func (f *Flow) ChatOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chatOpen
}

func (f *Flow) onChatOpen(eventbus.Event) {
	f.mu.Lock()
	f.chatOpen = true
	f.mu.Unlock()
	f.sched.Cancel(scheduler.TimerShow)
	f.sched.Cancel(scheduler.TimerFollowUp)
	f.sched.Cancel(scheduler.TimerActiveReturnCheck)
	f.sched.Cancel(scheduler.TimerReturning)
}

func (f *Flow) onChatClose(eventbus.Event) {
	f.mu.Lock()
	f.chatOpen = false
	d := f.cfg.ReturningDelay
	f.mu.Unlock()
	f.sched.ScheduleReturning(d)
}

// onReturning decides without a context. The built-in rules only act on
// ContextReturn, so this decision matters to custom rule sets that match a
// visitor coming back from the chat.
func (f *Flow) onReturning(eventbus.Event) {
	f.decideAndSchedule(TriggerReturning, tip.ContextUnspecified, true)
}
