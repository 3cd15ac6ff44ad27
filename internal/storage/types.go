package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrClosed        = errors.New("storage closed")
	ErrUnknownDriver = errors.New("unknown storage driver")
)

// Store is the raw key/value API implemented by every backend.
// Any call may fail; callers that must not fail go through Adapter.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Close() error
}

// Compactor is implemented by backends that benefit from periodic housekeeping.
type Compactor interface {
	Compact(ctx context.Context) error
}

// Config configures storage.
//
// Driver values:
//   - "" or "memory": in-process map
//   - "file": snapshot + journal files derived from Path
//   - "sqlite": SQLite database file at Path
//   - "redis": Redis server (see RedisConfig)
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	Redis       RedisConfig
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Prefix is prepended to every key (e.g. "tipd:").
	Prefix string
}
