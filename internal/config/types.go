package config

// Config is the on-disk configuration (JSON, or YAML coerced to JSON).
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Logging LoggingConfig  `json:"logging"`
	Storage *StorageConfig `json:"storage,omitempty"`

	// Messages overrides the built-in catalog: category -> type -> fields.
	Messages map[string]map[string]MessageConfig `json:"messages,omitempty"`

	// Keys extends the storage key registry: section -> name -> key.
	// New message types need a key under "tips.<category>" to be persisted.
	Keys map[string]map[string]string `json:"keys,omitempty"`

	Monitor     MonitorConfig     `json:"monitor"`
	Flow        FlowConfig        `json:"flow"`
	HTTP        HTTPConfig        `json:"http"`
	Maintenance MaintenanceConfig `json:"maintenance"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the persistence backend.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/tipd.sqlite" }
//
// If the whole section is omitted, state lives in memory only.
type StorageConfig struct {
	Driver      string      `json:"driver"`
	Path        string      `json:"path,omitempty"`
	BusyTimeout string      `json:"busy_timeout,omitempty"` // sqlite
	OpTimeout   string      `json:"op_timeout,omitempty"`   // per get/set/remove
	Redis       RedisConfig `json:"redis,omitempty"`
}

type RedisConfig struct {
	Addr     string `json:"addr,omitempty"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db,omitempty"`
	Prefix   string `json:"prefix,omitempty"`
}

// MessageConfig is a partial message definition. Omitted (null) fields and an
// empty text fall back to the built-in definition.
type MessageConfig struct {
	Text          *string  `json:"text,omitempty"`
	Delay         *string  `json:"delay,omitempty"`
	Duration      *string  `json:"duration,omitempty"`
	CooldownHours *float64 `json:"cooldown_hours,omitempty"`
	Disable       *bool    `json:"disable,omitempty"`
}

type MonitorConfig struct {
	// ReturnDebounce collapses bursts of page-return signals. Default "1s".
	ReturnDebounce string `json:"return_debounce,omitempty"`
}

type FlowConfig struct {
	// ActiveReturnCheckDelay waits after a page return before deciding. Default "3s".
	ActiveReturnCheckDelay string `json:"active_return_check_delay,omitempty"`
	// ReturningDelay waits after the chat closes before deciding again. Default "2m".
	ReturningDelay string `json:"returning_delay,omitempty"`
}

type HTTPConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default "127.0.0.1:8087"
	// Pprof mounts net/http/pprof under /debug. Keep the listener on loopback.
	Pprof bool `json:"pprof,omitempty"`
}

type MaintenanceConfig struct {
	// Compact is a cron spec for storage compaction. Default "@every 1h"; "off" disables.
	Compact string `json:"compact,omitempty"`
}
