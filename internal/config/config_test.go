package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validYAML = `
telegram:
  token: "123:abc"
  owner_user_ids: [1, 2]
logging:
  level: info
  console: true
storage:
  path: ./data/test.db
llm:
  api_key: sk-test
  model: gpt-4o-mini
  timeout: 90s
scheduler:
  enabled: true
  tz_offset_minutes: 480
summary:
  batch_cap: 500
leaderboard:
  top_n: 5
  default_window: 48h
`

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", validYAML)
	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("unexpected token %q", cfg.Telegram.Token)
	}
	if !cfg.IsOwner(2) || cfg.IsOwner(3) {
		t.Fatalf("owner check broken: %+v", cfg.Telegram.OwnerUserIDs)
	}
	if cfg.Scheduler.TZOffsetMinutes != 480 {
		t.Fatalf("tz offset = %d", cfg.Scheduler.TZOffsetMinutes)
	}
	if cfg.LLMTimeout() != 90*time.Second {
		t.Fatalf("llm timeout = %v", cfg.LLMTimeout())
	}
	if cfg.BatchCap() != 500 {
		t.Fatalf("batch cap = %d", cfg.BatchCap())
	}
	if cfg.TopN() != 5 {
		t.Fatalf("top n = %d", cfg.TopN())
	}
	if cfg.DefaultWindow() != 48*time.Hour {
		t.Fatalf("default window = %v", cfg.DefaultWindow())
	}
	if m.Get() != cfg {
		t.Fatalf("Get must return committed config")
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "config.yaml", validYAML+"\nnot_a_real_key: 1\n")
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatalf("expected unknown-field error")
	}
}

func TestValidateErrors(t *testing.T) {
	base := func() *Config {
		return &Config{
			Telegram:  TelegramConfig{Token: "123:abc"},
			Storage:   StorageConfig{Path: "./x.db"},
			LLM:       LLMConfig{APIKey: "sk"},
			Scheduler: SchedulerConfig{Enabled: true},
		}
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	c := base()
	c.Telegram.Token = " "
	if err := c.Validate(); err == nil {
		t.Fatalf("missing token accepted")
	}

	c = base()
	c.LLM.APIKey = ""
	if err := c.Validate(); err == nil {
		t.Fatalf("missing api key with scheduler enabled accepted")
	}
	c.Scheduler.Enabled = false
	if err := c.Validate(); err != nil {
		t.Fatalf("api key should be optional with scheduler off: %v", err)
	}

	c = base()
	c.Scheduler.TZOffsetMinutes = 15 * 60
	if err := c.Validate(); err == nil {
		t.Fatalf("out-of-range tz offset accepted")
	}

	c = base()
	c.LLM.Timeout = "ninety seconds"
	if err := c.Validate(); err == nil {
		t.Fatalf("malformed duration accepted")
	}

	c = base()
	c.Leaderboard.DefaultWindow = "two days"
	if err := c.Validate(); err == nil {
		t.Fatalf("malformed default window accepted")
	}
}

func TestDefaultsApplied(t *testing.T) {
	c := &Config{}
	if c.PollTimeout() != defaultPollTimeout {
		t.Fatalf("poll timeout default = %v", c.PollTimeout())
	}
	if c.JobBuffer() != defaultJobBuffer {
		t.Fatalf("job buffer default = %v", c.JobBuffer())
	}
	if c.BatchCap() != defaultBatchCap || c.TopN() != defaultTopN {
		t.Fatalf("count defaults = %d / %d", c.BatchCap(), c.TopN())
	}
	if c.Model() != defaultModel {
		t.Fatalf("model default = %q", c.Model())
	}
	if c.Retention() != 0 {
		t.Fatalf("retention should default to disabled")
	}
}

func TestSummarizeChange(t *testing.T) {
	oldCfg := &Config{Telegram: TelegramConfig{Token: "a"}, Logging: LoggingConfig{Level: "info"}}
	newCfg := &Config{Telegram: TelegramConfig{Token: "a"}, Logging: LoggingConfig{Level: "debug"},
		Scheduler: SchedulerConfig{Enabled: true}}

	changed, _ := SummarizeChange(oldCfg, newCfg)
	want := map[string]bool{"logging": true, "scheduler": true}
	if len(changed) != len(want) {
		t.Fatalf("changed = %v", changed)
	}
	for _, s := range changed {
		if !want[s] {
			t.Fatalf("unexpected section %q in %v", s, changed)
		}
	}
}
