// Package activity records what the visitor did in the chat (opened it,
// closed it, sent a message) and turns raw page signals into "page return"
// events.
package activity

import (
	"strconv"
	"time"

	"tipd/internal/keys"
	"tipd/internal/storage"
	"tipd/internal/tip"
	logx "tipd/pkg/logx"
)

// Storage persists activity facts as unix-millisecond strings.
type Storage struct {
	kv   *storage.Adapter
	keys *keys.Registry
	log  logx.Logger
	now  func() time.Time
}

type StorageOption func(*Storage)

// WithClock overrides the time source used for new timestamps.
func WithClock(now func() time.Time) StorageOption {
	return func(s *Storage) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStorage returns the activity store over kv.
func NewStorage(kv *storage.Adapter, reg *keys.Registry, log logx.Logger, opts ...StorageOption) *Storage {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Storage{kv: kv, keys: reg, log: log, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Storage) key(name string) (string, bool) {
	k, ok := s.keys.Get(keys.SectionActivity, name)
	if !ok {
		s.log.Warn("no storage key for activity", logx.String("name", name))
	}
	return k, ok
}

func (s *Storage) setTime(name string, t time.Time) bool {
	k, ok := s.key(name)
	if !ok {
		return false
	}
	return s.kv.Set(k, strconv.FormatInt(t.UnixMilli(), 10))
}

func (s *Storage) getTime(name string) (time.Time, bool) {
	k, ok := s.key(name)
	if !ok {
		return time.Time{}, false
	}
	raw, ok := s.kv.Get(k)
	if !ok {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.log.Warn("corrupt activity timestamp", logx.String("name", name), logx.String("value", raw))
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// MarkChatOpen stores the current time as the last chat open.
func (s *Storage) MarkChatOpen() bool { return s.setTime(keys.ChatOpenAt, s.now()) }

// MarkChatClose stores the current time as the last chat close.
func (s *Storage) MarkChatClose() bool { return s.setTime(keys.ChatCloseAt, s.now()) }

// MarkMessageSent sets the sticky flag and the last-sent timestamp.
func (s *Storage) MarkMessageSent() bool {
	k, ok := s.key(keys.MessageSent)
	flagOK := ok && s.kv.Set(k, "1")
	timeOK := s.setTime(keys.MessageSentAt, s.now())
	return flagOK && timeOK
}

// The Last* getters are false when the timestamp is missing or unreadable.

// LastChatOpenTime returns when the chat was last opened.
func (s *Storage) LastChatOpenTime() (time.Time, bool) { return s.getTime(keys.ChatOpenAt) }

// LastChatCloseTime returns when the chat was last closed.
func (s *Storage) LastChatCloseTime() (time.Time, bool) { return s.getTime(keys.ChatCloseAt) }

// LastMessageSentTime returns when the visitor last sent a message.
func (s *Storage) LastMessageSentTime() (time.Time, bool) { return s.getTime(keys.MessageSentAt) }

// HasSentMessage reports the sticky message-sent flag.
func (s *Storage) HasSentMessage() bool {
	k, ok := s.key(keys.MessageSent)
	if !ok {
		return false
	}
	v, ok := s.kv.Get(k)
	return ok && v == "1"
}

// Record reads every fact at once.
func (s *Storage) Record() tip.ActivityRecord {
	var r tip.ActivityRecord
	r.LastChatOpenTime, _ = s.LastChatOpenTime()
	r.LastChatCloseTime, _ = s.LastChatCloseTime()
	r.LastMessageSentTime, _ = s.LastMessageSentTime()
	r.HasSentMessage = s.HasSentMessage()
	return r
}

// Clear forgets all activity.
func (s *Storage) Clear() {
	for _, name := range s.keys.Keys(keys.SectionActivity) {
		if k, ok := s.keys.Get(keys.SectionActivity, name); ok {
			s.kv.Remove(k)
		}
	}
}
