package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config is read once at startup and immutable afterwards. The API key has
// no default on purpose: without one the generate operation fails with a
// missing-credential error while the status endpoint stays up.
type Config struct {
	APIKey string `env:"LLM_API_KEY"`
	Model  string `env:"LLM_MODEL" envDefault:"claude-3-5-sonnet-20241022"`
	APIURL string `env:"LLM_API_URL" envDefault:"https://api.anthropic.com/v1/messages"`

	Port int `env:"PORT" envDefault:"3000"`

	// Optional AWS integrations.
	ParamPrefix  string `env:"PARAM_PREFIX"`
	HistoryTable string `env:"HISTORY_TABLE"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// KeyConfigured reports whether any credential source is set. Computed once
// at startup; the adapter still detects a missing key at call time.
func (c *Config) KeyConfigured() bool {
	return strings.TrimSpace(c.APIKey) != "" || strings.TrimSpace(c.ParamPrefix) != ""
}

// NeedsAWS reports whether any optional AWS integration is enabled.
func (c *Config) NeedsAWS() bool {
	return strings.TrimSpace(c.ParamPrefix) != "" || strings.TrimSpace(c.HistoryTable) != ""
}
