package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tipd/internal/tip"
)

const sampleYAML = `
logging:
  level: debug
  console: true
storage:
  driver: file
  path: ./data/tipd
messages:
  out:
    welcome:
      text: "Hey!"
      delay: 2s
      cooldown_hours: 0
    promo:
      text: "New!"
      duration: 10s
keys:
  tips.out:
    promo: tipd:tips:out:promo
flow:
  returning_delay: 30s
maintenance:
  compact: "@every 10m"
`

func TestDecodeYAML(t *testing.T) {
	cfg, err := Decode("tipd.yaml", []byte(sampleYAML))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Console {
		t.Fatalf("logging = %+v", cfg.Logging)
	}

	set, err := cfg.MessageOverrides()
	if err != nil {
		t.Fatalf("overrides: %v", err)
	}
	w := set[tip.CategoryOut][tip.TypeWelcome]
	if w.Delay == nil || *w.Delay != 2*time.Second {
		t.Fatalf("welcome delay = %v", w.Delay)
	}
	if w.CooldownHours == nil || *w.CooldownHours != 0 {
		t.Fatalf("welcome cooldown = %v", w.CooldownHours)
	}
	if w.Duration != nil {
		t.Fatalf("unset duration should stay nil")
	}

	flow, err := cfg.FlowTimings()
	if err != nil {
		t.Fatalf("flow: %v", err)
	}
	if flow.ReturningDelay != 30*time.Second || flow.ActiveReturnCheckDelay != DefaultActiveReturnCheckDelay {
		t.Fatalf("flow = %+v", flow)
	}
	if got := cfg.CompactSpec(); got != "@every 10m" {
		t.Fatalf("compact spec = %q", got)
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	if _, err := Decode("tipd.json", []byte(`{"logging":{"level":"info"},"bogus":1}`)); err == nil {
		t.Fatalf("expected unknown field error")
	}
	if _, err := Decode("tipd.json", []byte(`{} {}`)); err == nil {
		t.Fatalf("expected trailing data error")
	}
}

func TestValidate(t *testing.T) {
	neg := -1.0
	bad := "soon"
	cases := map[string]*Config{
		"unknown driver":   {Storage: &StorageConfig{Driver: "etcd"}},
		"file needs path":  {Storage: &StorageConfig{Driver: "file"}},
		"redis needs addr": {Storage: &StorageConfig{Driver: "redis"}},
		"bad category":     {Messages: map[string]map[string]MessageConfig{"side": {"x": {}}}},
		"negative cooldown": {Messages: map[string]map[string]MessageConfig{
			"out": {"welcome": {CooldownHours: &neg}},
		}},
		"bad delay": {Messages: map[string]map[string]MessageConfig{
			"in": {"welcome": {Delay: &bad}},
		}},
		"empty key":    {Keys: map[string]map[string]string{"tips.out": {"x": " "}}},
		"bad debounce": {Monitor: MonitorConfig{ReturnDebounce: "-1s"}},
		"bad cron":     {Maintenance: MaintenanceConfig{Compact: "every hour"}},
	}
	for name, cfg := range cases {
		if err := Validate(cfg); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}

	if err := Validate(&Config{}); err != nil {
		t.Fatalf("empty config should be valid: %v", err)
	}
	if err := Validate(&Config{Maintenance: MaintenanceConfig{Compact: "off"}}); err != nil {
		t.Fatalf("compact off should be valid: %v", err)
	}
}

func TestDefaults(t *testing.T) {
	cfg := &Config{}
	sc, opTimeout, err := cfg.StorageConfig()
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	if sc.Driver != "memory" || opTimeout != DefaultStorageOpTimeout {
		t.Fatalf("storage defaults = %+v %v", sc, opTimeout)
	}
	if d, _ := cfg.ReturnDebounce(); d != DefaultReturnDebounce {
		t.Fatalf("debounce = %v", d)
	}
	if cfg.HTTPAddr() != DefaultHTTPAddr {
		t.Fatalf("http addr = %q", cfg.HTTPAddr())
	}
	if cfg.CompactSpec() != DefaultCompactSpec {
		t.Fatalf("compact = %q", cfg.CompactSpec())
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	oldCfg := &Config{Logging: LoggingConfig{Level: "info"}}
	newCfg := &Config{
		Logging: LoggingConfig{Level: "debug"},
		Storage: &StorageConfig{Driver: "redis", Redis: RedisConfig{Addr: "x:6379", Password: "secret"}},
		HTTP:    HTTPConfig{Enabled: true},
	}
	changed, attrs := SummarizeConfigChange(oldCfg, newCfg)
	got := strings.Join(changed, ",")
	if got != "logging,storage,http" {
		t.Fatalf("changed = %q", got)
	}
	if len(attrs) == 0 {
		t.Fatalf("expected attrs")
	}
	if c, _ := SummarizeConfigChange(newCfg, newCfg); len(c) != 0 {
		t.Fatalf("identical configs reported changes: %v", c)
	}
}

func TestManagerLoadAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tipd.json")
	if err := os.WriteFile(path, []byte(`{"logging":{"level":"info"}}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if m.Get() != cfg {
		t.Fatalf("Get should return the committed config")
	}

	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Identical content is not republished.
	m.reload(ctx)
	select {
	case <-ch:
		t.Fatalf("unchanged config was published")
	default:
	}

	if err := os.WriteFile(path, []byte(`{"logging":{"level":"debug"}}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	m.reload(ctx)
	select {
	case got := <-ch:
		if got.Logging.Level != "debug" {
			t.Fatalf("published level = %q", got.Logging.Level)
		}
	default:
		t.Fatalf("changed config was not published")
	}

	// Invalid content is rejected and the committed config stays.
	if err := os.WriteFile(path, []byte(`{"storage":{"driver":"etcd"}}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	m.reload(ctx)
	if m.Get().Logging.Level != "debug" {
		t.Fatalf("rejected config was committed")
	}
}
