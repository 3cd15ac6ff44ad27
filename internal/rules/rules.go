// Package rules is the reference rule set plugged into the decision engine.
package rules

import (
	"tipd/internal/decision"
	"tipd/internal/tip"
)

// Default returns the rules in priority order.
func Default() []decision.Rule {
	return []decision.Rule{Welcome{}, Followup{}, ActiveReturn{}}
}

// fresh reports whether an outbound type exists, was never shown, and its
// cooldown allows it.
func fresh(eng *decision.Engine, typ string) bool {
	if !eng.Has(typ, tip.CategoryOut) {
		return false
	}
	h := eng.Helpers()
	if h.Storage != nil && h.Storage.WasShown(typ, tip.CategoryOut) {
		return false
	}
	return h.Cooldown == nil || h.Cooldown.CanShow(typ, tip.CategoryOut)
}

func untouched(s tip.State) bool { return !s.ChatEverOpened() && !s.HasSentMessage }

// Welcome greets a visitor who has not engaged with the chat yet.
type Welcome struct{}

func (Welcome) Name() string { return tip.TypeWelcome }

func (Welcome) Matches(s tip.State, eng *decision.Engine, _ tip.Context) (string, bool) {
	if !fresh(eng, tip.TypeWelcome) || !untouched(s) {
		return "", false
	}
	return tip.TypeWelcome, true
}

// Followup nudges once more after the welcome went unanswered.
type Followup struct{}

func (Followup) Name() string { return tip.TypeFollowup }

func (Followup) Matches(s tip.State, eng *decision.Engine, _ tip.Context) (string, bool) {
	if !fresh(eng, tip.TypeFollowup) || !untouched(s) {
		return "", false
	}
	h := eng.Helpers()
	if h.Storage == nil || !h.Storage.WasShown(tip.TypeWelcome, tip.CategoryOut) {
		return "", false
	}
	return tip.TypeFollowup, true
}

// ActiveReturn re-engages a visitor who chatted before and just came back.
type ActiveReturn struct{}

func (ActiveReturn) Name() string { return tip.TypeActiveReturn }

func (ActiveReturn) Matches(s tip.State, eng *decision.Engine, c tip.Context) (string, bool) {
	if !c.IsReturn() || !s.HasSentMessage {
		return "", false
	}
	if !fresh(eng, tip.TypeActiveReturn) {
		return "", false
	}
	return tip.TypeActiveReturn, true
}
