// Package tipstore persists one "shown" record per (type, category).
package tipstore

import (
	"encoding/json"
	"time"

	"tipd/internal/keys"
	"tipd/internal/storage"
	"tipd/internal/tip"
	logx "tipd/pkg/logx"
)

const recordVersion = 1

type Storage struct {
	kv   *storage.Adapter
	keys *keys.Registry
	log  logx.Logger
	now  func() time.Time
}

type Option func(*Storage)

// WithClock overrides the time source used for new records.
func WithClock(now func() time.Time) Option {
	return func(s *Storage) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns a shown-tip store over kv with keys resolved through reg.
func New(kv *storage.Adapter, reg *keys.Registry, log logx.Logger, opts ...Option) *Storage {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Storage{kv: kv, keys: reg, log: log, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Storage) key(typ string, cat tip.Category) (string, bool) {
	return s.keys.Get(keys.TipSection(cat), typ)
}

// MarkAsShown writes a fresh record, replacing any previous one.
func (s *Storage) MarkAsShown(typ string, cat tip.Category) bool {
	k, ok := s.key(typ, cat)
	if !ok {
		s.log.Warn("no storage key for tip", logx.String("type", typ), logx.String("category", string(cat)))
		return false
	}
	rec := tip.ShownRecord{
		Type:      typ,
		Category:  cat,
		Timestamp: s.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Version:   recordVersion,
	}
	b, err := json.Marshal(rec)
	if err != nil {
		s.log.Warn("encode shown record failed", logx.String("type", typ), logx.Err(err))
		return false
	}
	return s.kv.Set(k, string(b))
}

// WasShown reports whether a record exists for the tip, readable or not.
func (s *Storage) WasShown(typ string, cat tip.Category) bool {
	k, ok := s.key(typ, cat)
	if !ok {
		return false
	}
	_, ok = s.kv.Get(k)
	return ok
}

// Record returns the stored record. Corrupt JSON is reported as absent.
func (s *Storage) Record(typ string, cat tip.Category) (tip.ShownRecord, bool) {
	k, ok := s.key(typ, cat)
	if !ok {
		return tip.ShownRecord{}, false
	}
	raw, ok := s.kv.Get(k)
	if !ok {
		return tip.ShownRecord{}, false
	}
	var rec tip.ShownRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		s.log.Warn("corrupt shown record", logx.String("key", k), logx.Err(err))
		return tip.ShownRecord{}, false
	}
	return rec, true
}

// LastShownTime is false when there is no record or its timestamp does not parse.
func (s *Storage) LastShownTime(typ string, cat tip.Category) (time.Time, bool) {
	rec, ok := s.Record(typ, cat)
	if !ok {
		return time.Time{}, false
	}
	return rec.ShownAt()
}

// Clear removes the record for one tip.
func (s *Storage) Clear(typ string, cat tip.Category) {
	k, ok := s.key(typ, cat)
	if !ok {
		s.log.Warn("no storage key for tip", logx.String("type", typ), logx.String("category", string(cat)))
		return
	}
	s.kv.Remove(k)
}

// All returns every readable record in the category, keyed by type.
func (s *Storage) All(cat tip.Category) map[string]tip.ShownRecord {
	out := map[string]tip.ShownRecord{}
	for _, typ := range s.keys.Keys(keys.TipSection(cat)) {
		if rec, ok := s.Record(typ, cat); ok {
			out[typ] = rec
		}
	}
	return out
}

// HasAnyBeenShown reports whether any tip in the category has a record.
func (s *Storage) HasAnyBeenShown(cat tip.Category) bool {
	for _, typ := range s.keys.Keys(keys.TipSection(cat)) {
		if s.WasShown(typ, cat) {
			return true
		}
	}
	return false
}

// ClearAll removes every record in the category.
func (s *Storage) ClearAll(cat tip.Category) {
	for _, typ := range s.keys.Keys(keys.TipSection(cat)) {
		s.Clear(typ, cat)
	}
}
