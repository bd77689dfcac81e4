// Package config loads the bot configuration from a JSON or YAML file,
// validates it, and republishes it to subscribers when the file changes
// on disk.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the full on-disk configuration. All duration fields are Go
// duration strings (e.g. "500ms", "10s", "1m"); empty means "use the
// default".
type Config struct {
	Telegram     TelegramConfig     `json:"telegram"`
	Logging      LoggingConfig      `json:"logging"`
	Storage      StorageConfig      `json:"storage"`
	Scheduler    SchedulerConfig    `json:"scheduler"`
	Broadcast    BroadcastConfig    `json:"broadcast"`
	AI           AIConfig           `json:"ai"`
	Housekeeping HousekeepingConfig `json:"housekeeping"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is the long-poll timeout; default "10s".
	PollTimeout string `json:"poll_timeout,omitempty"`
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

type StorageConfig struct {
	// Path is the sqlite database file; default "./communibot.db".
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// SchedulerConfig controls the announcement trigger loop.
type SchedulerConfig struct {
	TickInterval string `json:"tick_interval,omitempty"` // default "1m"
	// Timezone is an IANA name (e.g. "Asia/Jakarta"); schedules fire in
	// this zone. Default "UTC".
	Timezone      string `json:"timezone,omitempty"`
	ShutdownGrace string `json:"shutdown_grace,omitempty"`
}

// BroadcastConfig controls the fan-out dispatcher.
type BroadcastConfig struct {
	Workers       int    `json:"workers,omitempty"`      // default 4
	SendTimeout   string `json:"send_timeout,omitempty"` // default "10s"
	RatePerSec    int    `json:"rate_per_sec,omitempty"` // default 10
	ShutdownGrace string `json:"shutdown_grace,omitempty"`
}

// AIConfig controls the chat responder. When disabled the bot still
// answers commands; free text gets a static pointer to /help.
type AIConfig struct {
	Enabled      bool   `json:"enabled"`
	APIKey       string `json:"api_key,omitempty"`
	BaseURL      string `json:"base_url,omitempty"`
	Model        string `json:"model,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty"`
	MaxTokens    int    `json:"max_tokens,omitempty"`
	Timeout      string `json:"timeout,omitempty"`
}

// HousekeepingConfig controls periodic maintenance jobs.
type HousekeepingConfig struct {
	Enabled bool `json:"enabled"`
	// PruneSpec is a cron expression for the audit-prune job;
	// default "0 3 * * *" (03:00 in the scheduler timezone).
	PruneSpec string `json:"prune_spec,omitempty"`
	// AuditRetention is how long broadcast audit rows are kept;
	// default "720h" (30 days).
	AuditRetention string `json:"audit_retention,omitempty"`
}

// Validate checks the parts of the config that would otherwise fail deep
// inside a service at startup or, worse, on hot reload.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if tz := strings.TrimSpace(c.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("scheduler.timezone: %w", err)
		}
	}
	for _, f := range []struct{ path, raw string }{
		{"telegram.poll_timeout", c.Telegram.PollTimeout},
		{"storage.busy_timeout", c.Storage.BusyTimeout},
		{"scheduler.tick_interval", c.Scheduler.TickInterval},
		{"scheduler.shutdown_grace", c.Scheduler.ShutdownGrace},
		{"broadcast.send_timeout", c.Broadcast.SendTimeout},
		{"broadcast.shutdown_grace", c.Broadcast.ShutdownGrace},
		{"ai.timeout", c.AI.Timeout},
		{"housekeeping.audit_retention", c.Housekeeping.AuditRetention},
	} {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}
	if c.Broadcast.Workers < 0 {
		return fmt.Errorf("broadcast.workers must be >= 0")
	}
	if c.Broadcast.RatePerSec < 0 {
		return fmt.Errorf("broadcast.rate_per_sec must be >= 0")
	}
	if c.AI.Enabled {
		if strings.TrimSpace(c.AI.APIKey) == "" {
			return fmt.Errorf("ai.api_key is required when ai.enabled")
		}
		if strings.TrimSpace(c.AI.Model) == "" {
			return fmt.Errorf("ai.model is required when ai.enabled")
		}
	}
	return nil
}
