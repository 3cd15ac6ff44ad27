// Package keys maps logical (section, name) pairs onto literal storage keys.
package keys

import (
	"sort"

	"tipd/internal/tip"
)

// Activity key names within SectionActivity.
const (
	SectionActivity = "activity"

	ChatOpenAt    = "chat_open_at"
	ChatCloseAt   = "chat_close_at"
	MessageSent   = "message_sent"
	MessageSentAt = "message_sent_at"
)

// TipSection returns the section holding shown records for a category.
func TipSection(c tip.Category) string { return "tips." + string(c) }

// Registry is an immutable lookup table. Unknown sections or names resolve
// to ok=false; nothing panics.
type Registry struct {
	table map[string]map[string]string
}

// New copies table, so later mutation by the caller has no effect.
func New(table map[string]map[string]string) *Registry {
	cp := make(map[string]map[string]string, len(table))
	for sec, names := range table {
		inner := make(map[string]string, len(names))
		for n, k := range names {
			inner[n] = k
		}
		cp[sec] = inner
	}
	return &Registry{table: cp}
}

// Default is the built-in table for the known message types and activity facts.
func Default() map[string]map[string]string {
	return map[string]map[string]string{
		TipSection(tip.CategoryOut): {
			tip.TypeWelcome:      "tipd:tips:out:welcome",
			tip.TypeFollowup:     "tipd:tips:out:followup",
			tip.TypeActiveReturn: "tipd:tips:out:active_return",
		},
		TipSection(tip.CategoryIn): {
			tip.TypeWelcome: "tipd:tips:in:welcome",
		},
		SectionActivity: {
			ChatOpenAt:    "tipd:activity:chat_open_at",
			ChatCloseAt:   "tipd:activity:chat_close_at",
			MessageSent:   "tipd:activity:message_sent",
			MessageSentAt: "tipd:activity:message_sent_at",
		},
	}
}

// Merge returns base extended (and overridden) by extra. Neither input is modified.
func Merge(base, extra map[string]map[string]string) map[string]map[string]string {
	out := New(base).table
	for sec, names := range extra {
		if out[sec] == nil {
			out[sec] = map[string]string{}
		}
		for n, k := range names {
			out[sec][n] = k
		}
	}
	return out
}

// Get returns the storage key for name in section. Empty keys count as absent.
func (r *Registry) Get(section, name string) (string, bool) {
	if r == nil {
		return "", false
	}
	k, ok := r.table[section][name]
	if !ok || k == "" {
		return "", false
	}
	return k, true
}

// Has reports whether section defines a non-empty key for name.
func (r *Registry) Has(section, name string) bool {
	_, ok := r.Get(section, name)
	return ok
}

// Sections lists section names in sorted order.
func (r *Registry) Sections() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.table))
	for s := range r.table {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Keys lists the names in section, sorted. Unknown sections yield nil.
func (r *Registry) Keys(section string) []string {
	if r == nil {
		return nil
	}
	names, ok := r.table[section]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(names))
	for n := range names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
