package config

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Telegram    TelegramConfig    `json:"telegram"`
	Logging     LoggingConfig     `json:"logging"`
	Storage     StorageConfig     `json:"storage"`
	LLM         LLMConfig         `json:"llm"`
	Scheduler   SchedulerConfig   `json:"scheduler"`
	Summary     SummaryConfig     `json:"summary,omitempty"`
	Leaderboard LeaderboardConfig `json:"leaderboard,omitempty"`
	LinuxDo     LinuxDoConfig     `json:"linuxdo,omitempty"`
}

type TelegramConfig struct {
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file,omitempty"`
	Telegram LoggingTelegram `json:"telegram,omitempty"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// LoggingTelegram mirrors log lines above min_level to a chat, rate limited.
type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ChatID     int64  `json:"chat_id,omitempty"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

type StorageConfig struct {
	Path string `json:"path"`
	// BusyTimeout is a Go duration string (sqlite busy_timeout pragma).
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// LLMConfig points at any OpenAI-compatible chat completion endpoint.
type LLMConfig struct {
	APIKey      string  `json:"api_key"`
	BaseURL     string  `json:"base_url,omitempty"`
	Model       string  `json:"model,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	// Timeout bounds a single completion call. Go duration string.
	Timeout string `json:"timeout,omitempty"`
}

// SchedulerConfig controls the minute tick that drives digest jobs.
type SchedulerConfig struct {
	Enabled bool `json:"enabled"`

	// TZOffsetMinutes shifts cron evaluation away from UTC, e.g. 480 for
	// UTC+8. Group schedules are interpreted in this offset.
	TZOffsetMinutes int `json:"tz_offset_minutes,omitempty"`

	// JobBuffer is added on top of the LLM timeout to form the per-job
	// deadline. Go duration string.
	JobBuffer string `json:"job_buffer,omitempty"`
}

type SummaryConfig struct {
	// BatchCap limits how many pending messages a single summary consumes.
	BatchCap int `json:"batch_cap,omitempty"`
	// Retention is how long summarized messages are kept before cleanup.
	// Go duration string; empty disables cleanup.
	Retention string `json:"retention,omitempty"`
}

type LeaderboardConfig struct {
	TopN int `json:"top_n,omitempty"`
	// DefaultWindow is used when a group has no window of its own.
	// Go duration string; defaults to 24h.
	DefaultWindow string `json:"default_window,omitempty"`
}

type LinuxDoConfig struct {
	Enabled bool   `json:"enabled"`
	BaseURL string `json:"base_url,omitempty"`
	// APIToken is the fallback _t cookie used when a user has not stored
	// their own token.
	APIToken string `json:"api_token,omitempty"`
}

const (
	defaultPollTimeout = 10 * time.Second
	defaultLLMTimeout  = 2 * time.Minute
	defaultJobBuffer   = 30 * time.Second
	defaultBatchCap    = 1000
	defaultTopN        = 10
	defaultModel       = "gpt-4o-mini"
)

// Validate checks cross-field constraints and duration syntax. It is also
// installed as the reload validator so a bad edit never replaces a good
// running config.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		return fmt.Errorf("storage.path is required")
	}
	if c.Scheduler.Enabled && strings.TrimSpace(c.LLM.APIKey) == "" {
		return fmt.Errorf("llm.api_key is required when the scheduler is enabled")
	}
	// Valid UTC offsets fall within +-14h.
	if c.Scheduler.TZOffsetMinutes < -14*60 || c.Scheduler.TZOffsetMinutes > 14*60 {
		return fmt.Errorf("scheduler.tz_offset_minutes out of range: %d", c.Scheduler.TZOffsetMinutes)
	}
	if c.Summary.BatchCap < 0 {
		return fmt.Errorf("summary.batch_cap must be >= 0")
	}
	if c.Leaderboard.TopN < 0 {
		return fmt.Errorf("leaderboard.top_n must be >= 0")
	}
	for _, f := range []struct{ path, raw string }{
		{"telegram.poll_timeout", c.Telegram.PollTimeout},
		{"storage.busy_timeout", c.Storage.BusyTimeout},
		{"llm.timeout", c.LLM.Timeout},
		{"scheduler.job_buffer", c.Scheduler.JobBuffer},
		{"summary.retention", c.Summary.Retention},
		{"leaderboard.default_window", c.Leaderboard.DefaultWindow},
	} {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}
	return nil
}

// Duration accessors apply defaults for omitted fields. Validate has already
// rejected malformed values, so parse errors here fall back to the default.

func (c *Config) PollTimeout() time.Duration {
	d, _ := ParseDurationOrDefault("telegram.poll_timeout", c.Telegram.PollTimeout, defaultPollTimeout)
	return d
}

func (c *Config) LLMTimeout() time.Duration {
	d, _ := ParseDurationOrDefault("llm.timeout", c.LLM.Timeout, defaultLLMTimeout)
	return d
}

func (c *Config) JobBuffer() time.Duration {
	d, _ := ParseDurationOrDefault("scheduler.job_buffer", c.Scheduler.JobBuffer, defaultJobBuffer)
	return d
}

func (c *Config) BatchCap() int {
	if c.Summary.BatchCap <= 0 {
		return defaultBatchCap
	}
	return c.Summary.BatchCap
}

func (c *Config) Retention() time.Duration {
	d, _ := ParseDurationField("summary.retention", c.Summary.Retention)
	return d
}

func (c *Config) DefaultWindow() time.Duration {
	d, _ := ParseDurationOrDefault("leaderboard.default_window", c.Leaderboard.DefaultWindow, 24*time.Hour)
	return d
}

func (c *Config) TopN() int {
	if c.Leaderboard.TopN <= 0 {
		return defaultTopN
	}
	return c.Leaderboard.TopN
}

func (c *Config) Model() string {
	if strings.TrimSpace(c.LLM.Model) == "" {
		return defaultModel
	}
	return c.LLM.Model
}

// IsOwner reports whether the user may run administrative commands.
func (c *Config) IsOwner(userID int64) bool {
	for _, id := range c.Telegram.OwnerUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}
