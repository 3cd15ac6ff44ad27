package scheduler

import (
	"sort"
	"sync"
	"time"

	"tipd/internal/eventbus"
	"tipd/internal/tip"
	logx "tipd/pkg/logx"
)

type pending struct {
	timer Timer
	gen   uint64
}

type Scheduler struct {
	bus   eventbus.Bus
	log   logx.Logger
	after AfterFunc

	mu     sync.Mutex
	timers map[TimerName]pending
	gen    uint64
}

type Option func(*Scheduler)

// WithAfterFunc replaces the timer factory (tests use a manual clock).
func WithAfterFunc(fn AfterFunc) Option {
	return func(s *Scheduler) {
		if fn != nil {
			s.after = fn
		}
	}
}

// New returns a scheduler that publishes timer events on bus.
func New(bus eventbus.Bus, log logx.Logger, opts ...Option) *Scheduler {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Scheduler{
		bus:    bus,
		log:    log,
		after:  stdAfterFunc,
		timers: map[TimerName]pending{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// schedule replaces any pending timer of the same name. A nil payload
// publishes the event without data.
func (s *Scheduler) schedule(name TimerName, delay time.Duration, event string, payload any) {
	if delay < 0 {
		delay = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.timers[name]; ok {
		_ = p.timer.Stop()
		delete(s.timers, name)
	}
	s.gen++
	gen := s.gen
	t := s.after(delay, func() { s.fire(name, gen, event, payload) })
	s.timers[name] = pending{timer: t, gen: gen}
	s.log.Debug("timer scheduled", logx.String("timer", name.String()), logx.Duration("delay", delay))
}

func (s *Scheduler) fire(name TimerName, gen uint64, event string, payload any) {
	s.mu.Lock()
	p, ok := s.timers[name]
	if !ok || p.gen != gen {
		// Cancelled or replaced after the callback was already on its way.
		s.mu.Unlock()
		return
	}
	delete(s.timers, name)
	s.mu.Unlock()

	s.log.Debug("timer fired", logx.String("timer", name.String()), logx.String("event", event))
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: event, Data: payload})
	}
}

// ScheduleShow arms the show timer for messageType.
func (s *Scheduler) ScheduleShow(delay time.Duration, messageType string) {
	s.schedule(TimerShow, delay, tip.EventShow, ShowPayload{Type: messageType})
}

func (s *Scheduler) ScheduleAutoHide(d time.Duration) {
	s.schedule(TimerAutoHide, d, tip.EventAutoHide, nil)
}

func (s *Scheduler) ScheduleFollowUp(delay time.Duration) {
	s.schedule(TimerFollowUp, delay, tip.EventFollowUp, nil)
}

func (s *Scheduler) ScheduleActiveReturnCheck(delay time.Duration) {
	s.schedule(TimerActiveReturnCheck, delay, tip.EventActiveReturnCheck, nil)
}

func (s *Scheduler) ScheduleReturning(delay time.Duration) {
	s.schedule(TimerReturning, delay, tip.EventReturning, nil)
}

// Cancel stops the named timer. Unknown or idle names are a no-op.
func (s *Scheduler) Cancel(name TimerName) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.timers[name]; ok {
		_ = p.timer.Stop()
		delete(s.timers, name)
		s.log.Debug("timer cancelled", logx.String("timer", name.String()))
	}
}

// ClearAll stops every pending timer.
func (s *Scheduler) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, p := range s.timers {
		_ = p.timer.Stop()
		delete(s.timers, name)
	}
}

// HasScheduled reports whether the named timer is armed.
func (s *Scheduler) HasScheduled(name TimerName) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[name]
	return ok
}

// Pending lists the armed timers in declaration order.
func (s *Scheduler) Pending() []TimerName {
	s.mu.Lock()
	out := make([]TimerName, 0, len(s.timers))
	for name := range s.timers {
		out = append(out, name)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
