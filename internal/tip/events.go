package tip

// Event types exchanged over the event bus.
//
// Environment signals flow in (chat:*, page:*), scheduler firings and
// presentation requests flow out (tip:*).
const (
	EventChatOpen    = "chat:open"
	EventChatClose   = "chat:close"
	EventMessageSent = "chat:message_sent"

	// EventPageVisibility carries a Visibility payload.
	EventPageVisibility = "page:visibility"
	EventPageFocus      = "page:focus"
	// EventPageReturn is derived by the activity monitor; it is never persisted.
	EventPageReturn = "page:return"

	EventShow              = "tip:show"
	EventAutoHide          = "tip:autohide"
	EventFollowUp          = "tip:followup"
	EventActiveReturnCheck = "tip:active_return_check"
	EventReturning         = "tip:returning"

	// EventPresent asks the presentation layer to render a tip (Presentation payload).
	EventPresent = "tip:present"
	// EventHide asks the presentation layer to remove the current tip.
	EventHide = "tip:hide"
	// EventShown is the presenter's acknowledgement (Shown payload).
	EventShown = "tip:shown"
	// EventDecision announces every engine outcome (Decision payload).
	EventDecision = "tip:decision"
)

// Visibility is the payload of EventPageVisibility.
type Visibility struct {
	Visible bool `json:"visible"`
}

// Presentation is the payload of EventPresent.
type Presentation struct {
	Type     string   `json:"type"`
	Category Category `json:"category"`
	Text     string   `json:"text"`
	// DurationMS is 0 when the tip stays until dismissed.
	DurationMS int64 `json:"duration_ms"`
}

// Shown is the payload of EventShown.
type Shown struct {
	Type     string   `json:"type"`
	Category Category `json:"category"`
}

// Decision is the payload of EventDecision. Type is empty when nothing matched.
type Decision struct {
	Type    string `json:"type"`
	Context string `json:"context"`
	Trigger string `json:"trigger"`
}
