package config

import "os"

// applyEnvOverrides lets secrets live outside the config file. A set
// variable wins over the file value; everything else stays file-driven.
func applyEnvOverrides(c *Config) {
	if v := os.Getenv("TELEGRAM_API_KEY"); v != "" {
		c.Telegram.Token = v
	}
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		c.AI.APIKey = v
	}
}
