package config

import (
	"strings"

	"communibot/pkg/logx"
)

// SummarizeChange reports which config sections differ between two
// snapshots, plus log attributes describing the new values. Secrets
// (telegram token, AI key) are reduced to set/unset booleans.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	var changed []string
	var attrs []logx.Field
	section := func(name string, fields ...logx.Field) {
		changed = append(changed, name)
		attrs = append(attrs, fields...)
	}

	if oldCfg.Telegram != newCfg.Telegram {
		section("telegram",
			logx.Bool("telegram.token_set", strings.TrimSpace(newCfg.Telegram.Token) != ""),
			logx.String("telegram.poll_timeout", newCfg.Telegram.PollTimeout),
		)
	}
	if oldCfg.Logging != newCfg.Logging {
		section("logging",
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file", newCfg.Logging.File.Enabled),
		)
	}
	if oldCfg.Storage != newCfg.Storage {
		section("storage", logx.String("storage.path", newCfg.Storage.Path))
	}
	if oldCfg.Scheduler != newCfg.Scheduler {
		section("scheduler",
			logx.String("scheduler.tick_interval", newCfg.Scheduler.TickInterval),
			logx.String("scheduler.timezone", newCfg.Scheduler.Timezone),
		)
	}
	if oldCfg.Broadcast != newCfg.Broadcast {
		section("broadcast",
			logx.Int("broadcast.workers", newCfg.Broadcast.Workers),
			logx.String("broadcast.send_timeout", newCfg.Broadcast.SendTimeout),
			logx.Int("broadcast.rate_per_sec", newCfg.Broadcast.RatePerSec),
		)
	}
	if oldCfg.AI != newCfg.AI {
		section("ai",
			logx.Bool("ai.enabled", newCfg.AI.Enabled),
			logx.Bool("ai.key_set", strings.TrimSpace(newCfg.AI.APIKey) != ""),
			logx.String("ai.model", newCfg.AI.Model),
		)
	}
	if oldCfg.Housekeeping != newCfg.Housekeeping {
		section("housekeeping",
			logx.Bool("housekeeping.enabled", newCfg.Housekeeping.Enabled),
			logx.String("housekeeping.prune_spec", newCfg.Housekeeping.PruneSpec),
		)
	}
	return changed, attrs
}
