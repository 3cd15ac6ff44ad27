// Package messages holds the tip catalog: built-in definitions merged with
// operator overrides, resolved field by field.
package messages

import (
	"sort"
	"time"

	"tipd/internal/tip"
)

// DefaultCooldownHours applies when neither defaults nor overrides set a cooldown.
const DefaultCooldownHours = 24.0

// Field names accepted by Catalog.Field.
const (
	FieldText          = "text"
	FieldDelay         = "delay"
	FieldDuration      = "duration"
	FieldCooldownHours = "cooldownHours"
	FieldDisable       = "disable"
)

// Definition is a fully resolved message.
type Definition struct {
	Text          string
	Delay         time.Duration
	Duration      time.Duration
	CooldownHours float64
	Disable       bool
}

// Entry is a partial definition. Nil fields are "not specified" and fall
// back to the default; an empty Text falls back as well.
type Entry struct {
	Text          *string
	Delay         *time.Duration
	Duration      *time.Duration
	CooldownHours *float64
	Disable       *bool
}

// Set is the configuration surface: category -> type -> partial definition.
type Set map[tip.Category]map[string]Entry

// Ptr is a small helper for building Entry literals.
func Ptr[T any](v T) *T { return &v }

// DefaultSet is the built-in catalog.
func DefaultSet() Set {
	return Set{
		tip.CategoryOut: {
			tip.TypeWelcome: {
				Text:          Ptr("Hi there! Have a question? We're happy to help."),
				Delay:         Ptr(5 * time.Second),
				Duration:      Ptr(15 * time.Second),
				CooldownHours: Ptr(24.0),
			},
			tip.TypeFollowup: {
				Text:          Ptr("Still looking around? Ask us anything."),
				Delay:         Ptr(60 * time.Second),
				Duration:      Ptr(15 * time.Second),
				CooldownHours: Ptr(24.0),
			},
			tip.TypeActiveReturn: {
				Text:          Ptr("Welcome back! Want to pick up where you left off?"),
				Delay:         Ptr(2 * time.Second),
				Duration:      Ptr(20 * time.Second),
				CooldownHours: Ptr(24.0),
			},
		},
		tip.CategoryIn: {
			tip.TypeWelcome: {
				Text:  Ptr("Hello! How can we help you today?"),
				Delay: Ptr(time.Second),
			},
		},
	}
}

// Catalog is immutable after New.
type Catalog struct {
	defaults  Set
	overrides Set
}

// New layers overrides on top of defaults.
func New(defaults, overrides Set) *Catalog {
	return &Catalog{defaults: copySet(defaults), overrides: copySet(overrides)}
}

func copySet(in Set) Set {
	out := make(Set, len(in))
	for cat, types := range in {
		m := make(map[string]Entry, len(types))
		for typ, e := range types {
			m[typ] = e.clone()
		}
		out[cat] = m
	}
	return out
}

func (e Entry) clone() Entry {
	var out Entry
	if e.Text != nil {
		out.Text = Ptr(*e.Text)
	}
	if e.Delay != nil {
		out.Delay = Ptr(*e.Delay)
	}
	if e.Duration != nil {
		out.Duration = Ptr(*e.Duration)
	}
	if e.CooldownHours != nil {
		out.CooldownHours = Ptr(*e.CooldownHours)
	}
	if e.Disable != nil {
		out.Disable = Ptr(*e.Disable)
	}
	return out
}

// merged resolves the partial entry for (cat, typ). ok is false when the type
// is defined in neither layer.
func (c *Catalog) merged(cat tip.Category, typ string) (Entry, bool) {
	if c == nil {
		return Entry{}, false
	}
	def, okDef := c.defaults[cat][typ]
	ovr, okOvr := c.overrides[cat][typ]
	if !okDef && !okOvr {
		return Entry{}, false
	}
	out := def
	if ovr.Text != nil && *ovr.Text != "" {
		out.Text = ovr.Text
	}
	if ovr.Delay != nil {
		out.Delay = ovr.Delay
	}
	if ovr.Duration != nil {
		out.Duration = ovr.Duration
	}
	if ovr.CooldownHours != nil {
		out.CooldownHours = ovr.CooldownHours
	}
	if ovr.Disable != nil {
		out.Disable = ovr.Disable
	}
	return out, true
}

// Get returns the resolved definition. Unknown types yield an empty text and
// zero delay.
func (c *Catalog) Get(cat tip.Category, typ string) Definition {
	d := Definition{CooldownHours: DefaultCooldownHours}
	e, ok := c.merged(cat, typ)
	if !ok {
		return d
	}
	if e.Text != nil {
		d.Text = *e.Text
	}
	if e.Delay != nil {
		d.Delay = *e.Delay
	}
	if e.Duration != nil {
		d.Duration = *e.Duration
	}
	if e.CooldownHours != nil {
		d.CooldownHours = *e.CooldownHours
	}
	if e.Disable != nil {
		d.Disable = *e.Disable
	}
	return d
}

// Has reports whether the type is defined and not disabled.
func (c *Catalog) Has(cat tip.Category, typ string) bool {
	e, ok := c.merged(cat, typ)
	if !ok {
		return false
	}
	return e.Disable == nil || !*e.Disable
}

// Text returns the resolved text, "" for unknown types.
func (c *Catalog) Text(cat tip.Category, typ string) string { return c.Get(cat, typ).Text }

// Delay returns the resolved show delay, zero for unknown types.
func (c *Catalog) Delay(cat tip.Category, typ string) time.Duration { return c.Get(cat, typ).Delay }

// Field returns a single resolved field by name. ok is false when the type is
// unknown, the field name is unknown, or neither layer sets it.
func (c *Catalog) Field(cat tip.Category, typ, name string) (any, bool) {
	e, ok := c.merged(cat, typ)
	if !ok {
		return nil, false
	}
	switch name {
	case FieldText:
		if e.Text != nil {
			return *e.Text, true
		}
	case FieldDelay:
		if e.Delay != nil {
			return *e.Delay, true
		}
	case FieldDuration:
		if e.Duration != nil {
			return *e.Duration, true
		}
	case FieldCooldownHours:
		if e.CooldownHours != nil {
			return *e.CooldownHours, true
		}
	case FieldDisable:
		if e.Disable != nil {
			return *e.Disable, true
		}
	}
	return nil, false
}

// FieldOr returns the named field, or def when it is unset.
func (c *Catalog) FieldOr(cat tip.Category, typ, name string, def any) any {
	if v, ok := c.Field(cat, typ, name); ok {
		return v
	}
	return def
}

// FieldIn is FieldOr for the in category.
func (c *Catalog) FieldIn(typ, name string, def any) any {
	return c.FieldOr(tip.CategoryIn, typ, name, def)
}

// FieldOut is FieldOr for the out category.
func (c *Catalog) FieldOut(typ, name string, def any) any {
	return c.FieldOr(tip.CategoryOut, typ, name, def)
}

// ListTypes returns "category.type" for the union of both layers, sorted.
func (c *Catalog) ListTypes() []string {
	if c == nil {
		return nil
	}
	seen := map[string]struct{}{}
	for _, s := range []Set{c.defaults, c.overrides} {
		for cat, types := range s {
			for typ := range types {
				seen[string(cat)+"."+typ] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
