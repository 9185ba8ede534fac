// Package botcfg loads and validates the bot's runtime configuration.
package botcfg

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"maunium.net/go/mautrix/id"

	"github.com/nestorlabs/nestor/pkg/agent"
	"github.com/nestorlabs/nestor/pkg/threads"
)

// Config is the full runtime configuration of the bot.
type Config struct {
	HomeserverURL string
	UserID        id.UserID
	AccessToken   string
	// DeviceID may be left empty, whoami fills it in at startup.
	DeviceID    id.DeviceID
	PickleKey   string
	DatabaseURI string

	// HistoryLimit is the number of thread replies fetched per response.
	HistoryLimit int
	// IgnoreInitialSync skips events received before the bot connected.
	IgnoreInitialSync bool

	Agent   agent.Config
	Logging LoggingConfig
}

// SetDefaults registers defaults on v for every optional key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database_uri", "nestor.db")
	v.SetDefault("history_limit", threads.DefaultHistoryLimit)
	v.SetDefault("ignore_initial_sync", true)
	v.SetDefault("agent.model", agent.DefaultModel)
	v.SetDefault("agent.max_tokens", 1024)
	v.SetDefault("agent.history_token_budget", 8192)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "pretty-colored")
}

// Load extracts the configuration from v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		HomeserverURL: v.GetString("homeserver_url"),
		UserID:        id.UserID(v.GetString("user_id")),
		AccessToken:   v.GetString("access_token"),
		DeviceID:      id.DeviceID(v.GetString("device_id")),
		PickleKey:     v.GetString("pickle_key"),
		DatabaseURI:   v.GetString("database_uri"),

		HistoryLimit:      v.GetInt("history_limit"),
		IgnoreInitialSync: v.GetBool("ignore_initial_sync"),

		Agent: agent.Config{
			APIKey:             v.GetString("agent.api_key"),
			BaseURL:            v.GetString("agent.base_url"),
			Model:              v.GetString("agent.model"),
			SystemPrompt:       v.GetString("agent.system_prompt"),
			MaxTokens:          v.GetInt("agent.max_tokens"),
			HistoryTokenBudget: v.GetInt("agent.history_token_budget"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
			File:   v.GetString("logging.file"),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	if cfg.HomeserverURL == "" {
		return fmt.Errorf("homeserver_url is not set")
	}
	if cfg.UserID == "" {
		return fmt.Errorf("user_id is not set")
	}
	if !strings.HasPrefix(string(cfg.UserID), "@") {
		return fmt.Errorf("user_id %q is not a full Matrix user ID", cfg.UserID)
	}
	if cfg.AccessToken == "" {
		return fmt.Errorf("access_token is not set")
	}
	if cfg.PickleKey == "" {
		return fmt.Errorf("pickle_key is not set, generate one with the generate-pickle-key command")
	}
	if cfg.HistoryLimit <= 0 {
		return fmt.Errorf("history_limit must be positive")
	}
	return nil
}
