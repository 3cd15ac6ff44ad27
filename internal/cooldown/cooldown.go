// Package cooldown decides whether enough time has passed since a tip was
// last shown.
//
// A cooldown of zero hours means "show once, ever": the type is showable
// until the first show is recorded and never again after that.
package cooldown

import (
	"time"

	"tipd/internal/messages"
	"tipd/internal/tip"
	logx "tipd/pkg/logx"
)

// DefaultRecentWindowHours is the window used by rules that suppress
// themselves shortly after a related message.
const DefaultRecentWindowHours = 24.0

// Catalog is the part of the message catalog the policy reads.
type Catalog interface {
	FieldOr(cat tip.Category, typ, name string, def any) any
}

// History is the part of tip storage the policy reads.
type History interface {
	WasShown(typ string, cat tip.Category) bool
	LastShownTime(typ string, cat tip.Category) (time.Time, bool)
}

type Policy struct {
	catalog Catalog
	history History
	log     logx.Logger
	now     func() time.Time
}

type Option func(*Policy)

// WithClock overrides the time source used for cooldown windows.
func WithClock(now func() time.Time) Option {
	return func(p *Policy) {
		if now != nil {
			p.now = now
		}
	}
}

// New returns a cooldown policy reading windows from catalog and shown times from history.
func New(catalog Catalog, history History, log logx.Logger, opts ...Option) *Policy {
	if log.IsZero() {
		log = logx.Nop()
	}
	p := &Policy{catalog: catalog, history: history, log: log, now: time.Now}
	for _, o := range opts {
		o(p)
	}
	return p
}

// CooldownHours reads the configured cooldown, defaulting to 24.
func (p *Policy) CooldownHours(typ string, cat tip.Category) float64 {
	v := p.catalog.FieldOr(cat, typ, messages.FieldCooldownHours, messages.DefaultCooldownHours)
	h, ok := v.(float64)
	if !ok || h < 0 {
		return messages.DefaultCooldownHours
	}
	return h
}

// CanShow applies the cooldown. A record whose timestamp cannot be parsed
// does not block the tip: the elapsed time is unknown, so it is treated as
// expired.
func (p *Policy) CanShow(typ string, cat tip.Category) bool {
	hours := p.CooldownHours(typ, cat)
	if hours == 0 {
		return !p.history.WasShown(typ, cat)
	}
	if !p.history.WasShown(typ, cat) {
		return true
	}
	last, ok := p.history.LastShownTime(typ, cat)
	if !ok {
		p.log.Warn("last shown time unreadable; allowing tip", logx.String("type", typ), logx.String("category", string(cat)))
		return true
	}
	return p.elapsedHours(last) >= hours
}

// SeenRecently reports whether the type was shown less than hours ago.
func (p *Policy) SeenRecently(typ string, cat tip.Category, hours float64) bool {
	last, ok := p.history.LastShownTime(typ, cat)
	if !ok {
		return false
	}
	return p.elapsedHours(last) < hours
}

func (p *Policy) elapsedHours(since time.Time) float64 {
	return p.now().Sub(since).Hours()
}
