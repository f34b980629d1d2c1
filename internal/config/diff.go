package config

import (
	"reflect"
	"sort"
	"strings"

	"digestbot/pkg/logx"
)

// SummarizeChange returns a compact list of changed sections plus safe
// structured attrs for logging. Secrets (bot token, api key) never appear in
// the attrs, only whether they are set.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	if strings.TrimSpace(oldCfg.Telegram.Token) != strings.TrimSpace(newCfg.Telegram.Token) ||
		!reflect.DeepEqual(oldCfg.Telegram.OwnerUserIDs, newCfg.Telegram.OwnerUserIDs) ||
		strings.TrimSpace(oldCfg.Telegram.PollTimeout) != strings.TrimSpace(newCfg.Telegram.PollTimeout) {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.token_set", strings.TrimSpace(newCfg.Telegram.Token) != ""),
			logx.Int("telegram.owner_count", len(newCfg.Telegram.OwnerUserIDs)),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}

	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.Bool("storage.path_set", strings.TrimSpace(newCfg.Storage.Path) != ""),
			logx.String("storage.busy_timeout", strings.TrimSpace(newCfg.Storage.BusyTimeout)),
		)
	}

	if oldCfg.LLM != newCfg.LLM {
		changed = append(changed, "llm")
		attrs = append(attrs,
			logx.Bool("llm.api_key_set", strings.TrimSpace(newCfg.LLM.APIKey) != ""),
			logx.String("llm.model", newCfg.Model()),
			logx.String("llm.base_url", strings.TrimSpace(newCfg.LLM.BaseURL)),
		)
	}

	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.Bool("scheduler.enabled", newCfg.Scheduler.Enabled),
			logx.Int("scheduler.tz_offset_minutes", newCfg.Scheduler.TZOffsetMinutes),
			logx.Duration("scheduler.job_buffer", newCfg.JobBuffer()),
		)
	}

	if oldCfg.Summary != newCfg.Summary {
		changed = append(changed, "summary")
		attrs = append(attrs, logx.Int("summary.batch_cap", newCfg.BatchCap()))
	}

	if oldCfg.Leaderboard != newCfg.Leaderboard {
		changed = append(changed, "leaderboard")
		attrs = append(attrs, logx.Int("leaderboard.top_n", newCfg.TopN()))
	}

	if oldCfg.LinuxDo != newCfg.LinuxDo {
		changed = append(changed, "linuxdo")
		attrs = append(attrs, logx.Bool("linuxdo.enabled", newCfg.LinuxDo.Enabled))
	}

	sort.Strings(changed)
	return changed, attrs
}
