package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"tipd/internal/messages"
	"tipd/internal/storage"
	"tipd/internal/tip"
	logx "tipd/pkg/logx"

	"github.com/robfig/cron/v3"
)

const (
	DefaultReturnDebounce         = time.Second
	DefaultActiveReturnCheckDelay = 3 * time.Second
	DefaultReturningDelay         = 2 * time.Minute
	DefaultHTTPAddr               = "127.0.0.1:8087"
	DefaultCompactSpec            = "@every 1h"
	DefaultStorageOpTimeout       = 2 * time.Second
)

// CompactOff disables scheduled compaction.
const CompactOff = "off"

// CronParser accepts 5-field and 6-field (with seconds) specs plus descriptors.
var CronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Flow holds the resolved orchestration delays.
type Flow struct {
	ActiveReturnCheckDelay time.Duration
	ReturningDelay         time.Duration
}

// LogConfig maps the logging section onto logx.
func (c *Config) LogConfig() logx.Config {
	return logx.Config{
		Level:   c.Logging.Level,
		Console: c.Logging.Console,
		File:    logx.FileConfig{Enabled: c.Logging.File.Enabled, Path: c.Logging.File.Path},
	}
}

// StorageConfig resolves the storage section. A missing section is memory-only.
func (c *Config) StorageConfig() (storage.Config, time.Duration, error) {
	if c.Storage == nil {
		return storage.Config{Driver: "memory"}, DefaultStorageOpTimeout, nil
	}
	s := c.Storage
	busy, err := ParseDurationField("storage.busy_timeout", s.BusyTimeout)
	if err != nil {
		return storage.Config{}, 0, err
	}
	opTimeout, err := ParseDurationOrDefault("storage.op_timeout", s.OpTimeout, DefaultStorageOpTimeout)
	if err != nil {
		return storage.Config{}, 0, err
	}
	driver := strings.ToLower(strings.TrimSpace(s.Driver))
	switch driver {
	case "", "memory", "none":
	case "file", "sqlite", "sqlite3":
		if strings.TrimSpace(s.Path) == "" {
			return storage.Config{}, 0, fmt.Errorf("storage.path is required for driver %q", driver)
		}
	case "redis":
		if strings.TrimSpace(s.Redis.Addr) == "" {
			return storage.Config{}, 0, errors.New("storage.redis.addr is required for driver \"redis\"")
		}
	default:
		return storage.Config{}, 0, fmt.Errorf("storage.driver: %w: %s", storage.ErrUnknownDriver, driver)
	}
	return storage.Config{
		Driver:      driver,
		Path:        s.Path,
		BusyTimeout: busy,
		Redis: storage.RedisConfig{
			Addr:     s.Redis.Addr,
			Password: s.Redis.Password,
			DB:       s.Redis.DB,
			Prefix:   s.Redis.Prefix,
		},
	}, opTimeout, nil
}

// MessageOverrides converts the messages section into catalog overrides.
func (c *Config) MessageOverrides() (messages.Set, error) {
	out := make(messages.Set, len(c.Messages))
	for rawCat, types := range c.Messages {
		cat, ok := tip.ParseCategory(rawCat)
		if !ok {
			return nil, fmt.Errorf("messages.%s: unknown category", rawCat)
		}
		m := out[cat]
		if m == nil {
			m = make(map[string]messages.Entry, len(types))
			out[cat] = m
		}
		for typ, mc := range types {
			path := "messages." + rawCat + "." + typ
			if strings.TrimSpace(typ) == "" {
				return nil, fmt.Errorf("%s: empty message type", path)
			}
			e, err := mc.entry(path)
			if err != nil {
				return nil, err
			}
			m[typ] = e
		}
	}
	return out, nil
}

func (mc MessageConfig) entry(path string) (messages.Entry, error) {
	e := messages.Entry{Text: mc.Text, Disable: mc.Disable}
	if mc.Delay != nil {
		d, err := ParseDurationField(path+".delay", *mc.Delay)
		if err != nil {
			return messages.Entry{}, err
		}
		e.Delay = &d
	}
	if mc.Duration != nil {
		d, err := ParseDurationField(path+".duration", *mc.Duration)
		if err != nil {
			return messages.Entry{}, err
		}
		e.Duration = &d
	}
	if mc.CooldownHours != nil {
		h := *mc.CooldownHours
		if h < 0 || math.IsNaN(h) || math.IsInf(h, 0) {
			return messages.Entry{}, fmt.Errorf("%s.cooldown_hours: must be a finite number >= 0", path)
		}
		e.CooldownHours = &h
	}
	return e, nil
}

// ReturnDebounce is the minimum spacing between page-return events.
func (c *Config) ReturnDebounce() (time.Duration, error) {
	return ParseDurationOrDefault("monitor.return_debounce", c.Monitor.ReturnDebounce, DefaultReturnDebounce)
}

// FlowTimings resolves the flow delays, applying defaults.
func (c *Config) FlowTimings() (Flow, error) {
	check, err := ParseDurationOrDefault("flow.active_return_check_delay", c.Flow.ActiveReturnCheckDelay, DefaultActiveReturnCheckDelay)
	if err != nil {
		return Flow{}, err
	}
	ret, err := ParseDurationOrDefault("flow.returning_delay", c.Flow.ReturningDelay, DefaultReturningDelay)
	if err != nil {
		return Flow{}, err
	}
	return Flow{ActiveReturnCheckDelay: check, ReturningDelay: ret}, nil
}

// HTTPAddr is the control API listen address.
func (c *Config) HTTPAddr() string {
	if a := strings.TrimSpace(c.HTTP.Addr); a != "" {
		return a
	}
	return DefaultHTTPAddr
}

// CompactSpec returns the cron spec for compaction, or "" when disabled.
func (c *Config) CompactSpec() string {
	s := strings.TrimSpace(c.Maintenance.Compact)
	switch {
	case s == "":
		return DefaultCompactSpec
	case strings.EqualFold(s, CompactOff):
		return ""
	default:
		return s
	}
}

// Validate checks every section resolves. It never mutates cfg.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if _, _, err := cfg.StorageConfig(); err != nil {
		return err
	}
	if _, err := cfg.MessageOverrides(); err != nil {
		return err
	}
	for section, names := range cfg.Keys {
		if strings.TrimSpace(section) == "" {
			return errors.New("keys: empty section name")
		}
		for name, key := range names {
			if strings.TrimSpace(key) == "" {
				return fmt.Errorf("keys.%s.%s: empty key", section, name)
			}
		}
	}
	if _, err := cfg.ReturnDebounce(); err != nil {
		return err
	}
	if _, err := cfg.FlowTimings(); err != nil {
		return err
	}
	if spec := cfg.CompactSpec(); spec != "" {
		if _, err := CronParser.Parse(spec); err != nil {
			return fmt.Errorf("maintenance.compact: %w", err)
		}
	}
	return nil
}
