package storage

import (
	"context"
	"fmt"
	"time"

	logx "tipd/pkg/logx"
)

const defaultOpTimeout = 2 * time.Second

// Adapter is the fault-absorbing view of a Store.
//
// Every backend error or panic is logged at warn level and reported as
// "absent" (Get) or "not written" (Set/Remove). Nothing escapes to callers.
type Adapter struct {
	store   Store
	log     logx.Logger
	timeout time.Duration
	onFault func(op string)
}

type AdapterOption func(*Adapter)

// WithOpTimeout bounds each backend call.
func WithOpTimeout(d time.Duration) AdapterOption {
	return func(a *Adapter) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithFaultHook is invoked once per absorbed fault ("get", "set", "remove").
func WithFaultHook(fn func(op string)) AdapterOption {
	return func(a *Adapter) { a.onFault = fn }
}

func NewAdapter(store Store, log logx.Logger, opts ...AdapterOption) *Adapter {
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &Adapter{store: store, log: log, timeout: defaultOpTimeout}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Get returns the stored value; ok is false when absent or on failure.
func (a *Adapter) Get(key string) (value string, ok bool) {
	err := a.do("get", key, func(ctx context.Context) error {
		var err error
		value, ok, err = a.store.Get(ctx, key)
		return err
	})
	if err != nil {
		return "", false
	}
	return value, ok
}

// Set reports whether the value was written.
func (a *Adapter) Set(key, value string) bool {
	return a.do("set", key, func(ctx context.Context) error {
		return a.store.Set(ctx, key, value)
	}) == nil
}

// Remove reports whether the delete reached the backend.
func (a *Adapter) Remove(key string) bool {
	return a.do("remove", key, func(ctx context.Context) error {
		return a.store.Remove(ctx, key)
	}) == nil
}

func (a *Adapter) do(op, key string, fn func(ctx context.Context) error) (err error) {
	if a == nil || a.store == nil {
		return ErrClosed
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			a.log.Warn("storage "+op+" failed", logx.String("key", key), logx.Err(err))
			if a.onFault != nil {
				a.onFault(op)
			}
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	return fn(ctx)
}
