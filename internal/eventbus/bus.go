package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event is a lightweight, in-memory signal used to decouple components.
//
// Contract:
//   - Publish MUST be non-blocking towards channel subscribers.
//   - Handlers registered with On run synchronously on the publisher's goroutine,
//     in registration order, without any bus lock held (they may Publish).
//   - Slow channel subscribers may drop events (bounded backpressure).
//
// A nil Data means the event carries no payload.
type Event struct {
	Type string
	Time time.Time
	Data any
}

type Handler func(Event)

type Bus interface {
	Publish(e Event)
	// On registers h for events of type typ. The returned func removes it.
	On(typ string, h Handler) (off func())
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

// New returns a simple in-memory bus.
//
// It intentionally does not own any background goroutines.
func New() Bus {
	return &memBus{
		subs:     map[uint64]chan Event{},
		handlers: map[string][]handlerEntry{},
	}
}

type handlerEntry struct {
	id uint64
	h  Handler
}

type memBus struct {
	mu       sync.RWMutex
	subs     map[uint64]chan Event
	handlers map[string][]handlerEntry
	seq      atomic.Uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	// Snapshot so Publish doesn't hold locks while delivering.
	b.mu.RLock()
	hs := append([]handlerEntry(nil), b.handlers[e.Type]...)
	chs := make([]chan Event, 0, len(b.subs))
	for _, ch := range b.subs {
		chs = append(chs, ch)
	}
	b.mu.RUnlock()

	for _, he := range hs {
		he.h(e)
	}

	for _, ch := range chs {
		// If a subscriber unsubscribes concurrently and the channel closes,
		// recover from a possible panic (send on closed channel).
		func() {
			defer func() { _ = recover() }()
			select {
			case ch <- e:
			default:
			}
		}()
	}
}

func (b *memBus) On(typ string, h Handler) func() {
	if h == nil {
		return func() {}
	}
	id := b.seq.Add(1)
	b.mu.Lock()
	b.handlers[typ] = append(b.handlers[typ], handlerEntry{id: id, h: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			list := b.handlers[typ]
			for i, he := range list {
				if he.id == id {
					// Copy so in-flight snapshots are unaffected.
					next := make([]handlerEntry, 0, len(list)-1)
					next = append(next, list[:i]...)
					next = append(next, list[i+1:]...)
					if len(next) == 0 {
						delete(b.handlers, typ)
					} else {
						b.handlers[typ] = next
					}
					return
				}
			}
		})
	}
}

func (b *memBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			// Closing is safe because Publish recovers from send panics.
			close(ch)
		})
	}
	return ch, unsub
}
