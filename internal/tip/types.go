// Package tip holds the vocabulary shared by the decision core: message
// categories, well-known message types, decision contexts, session state and
// the records persisted for shown tips and visitor activity.
package tip

import (
	"strings"
	"time"
)

// Category is a message namespace.
type Category string

const (
	CategoryIn  Category = "in"
	CategoryOut Category = "out"
)

func (c Category) Valid() bool { return c == CategoryIn || c == CategoryOut }

// ParseCategory normalizes s. ok is false for anything but "in"/"out".
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	return c, c.Valid()
}

// Well-known message types used by the reference rule set.
const (
	TypeWelcome      = "welcome"
	TypeFollowup     = "followup"
	TypeActiveReturn = "active_return"
)

// State is the engine input. It is derived fresh from the activity record at
// decision time and never persisted.
type State struct {
	// LastChatOpenTime is zero when the visitor never opened the chat.
	LastChatOpenTime time.Time
	HasSentMessage   bool
}

// ChatEverOpened reports whether a chat-open timestamp exists.
func (s State) ChatEverOpened() bool { return !s.LastChatOpenTime.IsZero() }

// ShownRecord is persisted once per (type, category) and overwritten on every show.
type ShownRecord struct {
	Type      string   `json:"type"`
	Category  Category `json:"category"`
	Timestamp string   `json:"timestamp"`
	Version   int      `json:"version"`
}

// ShownAt parses Timestamp. ok is false for an empty or malformed value.
func (r ShownRecord) ShownAt() (time.Time, bool) {
	if strings.TrimSpace(r.Timestamp) == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, r.Timestamp)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ActivityRecord is the persisted session-wide activity. Zero times mean "never".
type ActivityRecord struct {
	LastChatOpenTime    time.Time `json:"last_chat_open_time"`
	LastChatCloseTime   time.Time `json:"last_chat_close_time"`
	HasSentMessage      bool      `json:"has_sent_message"`
	LastMessageSentTime time.Time `json:"last_message_sent_time"`
}

// State derives the engine input from the record.
func (r ActivityRecord) State() State {
	return State{LastChatOpenTime: r.LastChatOpenTime, HasSentMessage: r.HasSentMessage}
}
