// Package decision evaluates an ordered list of rules against the visitor's
// session state and returns the first message type that matches.
//
// Rule order is priority: evaluation stops at the first match and no rule
// below it runs. The engine owns no mutable state beyond its rule list.
package decision

import (
	"tipd/internal/tip"
)

// Rule is a stateless predicate. It returns the message type it proposes and
// true, or false when it has no opinion.
type Rule interface {
	Name() string
	Matches(state tip.State, eng *Engine, c tip.Context) (string, bool)
}

// ShownStore is the tip-history view exposed to rules.
type ShownStore interface {
	WasShown(typ string, cat tip.Category) bool
}

// CooldownChecker is the cooldown view exposed to rules.
type CooldownChecker interface {
	CanShow(typ string, cat tip.Category) bool
	SeenRecently(typ string, cat tip.Category, hours float64) bool
}

// Catalog answers whether a message type exists and is enabled.
type Catalog interface {
	Has(cat tip.Category, typ string) bool
}

// Helpers is the bundle rules consult besides the catalog.
type Helpers struct {
	Storage  ShownStore
	Cooldown CooldownChecker
}

// Options carries per-call hints.
type Options struct {
	Context tip.Context
}

// TraceFunc observes each rule evaluation in order.
type TraceFunc func(rule string, typ string, matched bool)

type Engine struct {
	rules   []Rule
	helpers Helpers
	catalog Catalog
	trace   TraceFunc
}

type EngineOption func(*Engine)

// WithTrace sets a hook called for every rule evaluation.
func WithTrace(fn TraceFunc) EngineOption { return func(e *Engine) { e.trace = fn } }

// New returns an engine evaluating rules in the given order.
func New(catalog Catalog, helpers Helpers, rules []Rule, opts ...EngineOption) *Engine {
	e := &Engine{
		rules:   append([]Rule(nil), rules...),
		helpers: helpers,
		catalog: catalog,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Helpers returns the storage and cooldown views for rules.
func (e *Engine) Helpers() Helpers { return e.helpers }

// Has reports whether the message type exists and is enabled.
func (e *Engine) Has(typ string, cat tip.Category) bool {
	if e.catalog == nil {
		return false
	}
	return e.catalog.Has(cat, typ)
}

// Determine returns the type proposed by the first matching rule.
func (e *Engine) Determine(state tip.State, opts Options) (string, bool) {
	for _, r := range e.rules {
		if r == nil {
			continue
		}
		typ, ok := r.Matches(state, e, opts.Context)
		if e.trace != nil {
			e.trace(r.Name(), typ, ok)
		}
		if ok {
			return typ, true
		}
	}
	return "", false
}

// RuleNames lists the rules in priority order.
func (e *Engine) RuleNames() []string {
	out := make([]string, 0, len(e.rules))
	for _, r := range e.rules {
		if r != nil {
			out = append(out, r.Name())
		}
	}
	return out
}
