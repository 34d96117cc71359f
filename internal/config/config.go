// Package config loads application configuration from file and environment.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Notion Notion `yaml:"notion" mapstructure:"notion"`
	Line   Line   `yaml:"line" mapstructure:"line"`
	Stripe Stripe `yaml:"stripe" mapstructure:"stripe"`
	Retry  Retry  `yaml:"retry" mapstructure:"retry"`
	Form   Form   `yaml:"form" mapstructure:"form"`
	Genres Genres `yaml:"genres" mapstructure:"genres"`
	Log    Log    `yaml:"log" mapstructure:"log"`
}

// Notion holds the lead database credentials.
type Notion struct {
	Token  string `yaml:"token" mapstructure:"token"`
	LeadDB string `yaml:"lead_db" mapstructure:"lead_db"`
}

// Line holds LINE Messaging API push settings.
type Line struct {
	Token   string `yaml:"token" mapstructure:"token"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	// UserID is the fallback notification recipient, appended after all
	// genre-configured recipients.
	UserID string `yaml:"user_id" mapstructure:"user_id"`
}

// Stripe holds checkout link settings. An empty Key disables link creation.
type Stripe struct {
	Key        string `yaml:"key" mapstructure:"key"`
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	Mode       string `yaml:"mode" mapstructure:"mode"`
	SuccessURL string `yaml:"success_url" mapstructure:"success_url"`
	CancelURL  string `yaml:"cancel_url" mapstructure:"cancel_url"`
}

// Retry configures the backoff policy applied to all outbound API calls.
type Retry struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
}

// Form carries an incoming lead submission for this run. The registration
// use case runs only when ExternalID is non-empty.
type Form struct {
	ExternalID string `yaml:"external_id" mapstructure:"external_id"`
	Name       string `yaml:"name" mapstructure:"name"`
	Email      string `yaml:"email" mapstructure:"email"`
	Phone      string `yaml:"phone" mapstructure:"phone"`
	Product    string `yaml:"product" mapstructure:"product"`
}

// Genres points at the genre configuration file.
type Genres struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// Log configures logging.
type Log struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from config.yaml and the LEADSYNC_* environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LEADSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Empty defaults register env-only keys with viper so AutomaticEnv
	// values survive Unmarshal.
	v.SetDefault("notion.token", "")
	v.SetDefault("notion.lead_db", "")
	v.SetDefault("line.token", "")
	v.SetDefault("line.user_id", "")
	v.SetDefault("stripe.key", "")
	v.SetDefault("form.external_id", "")
	v.SetDefault("form.name", "")
	v.SetDefault("form.email", "")
	v.SetDefault("form.phone", "")
	v.SetDefault("form.product", "")
	v.SetDefault("line.base_url", "https://api.line.me")
	v.SetDefault("stripe.base_url", "https://api.stripe.com")
	v.SetDefault("stripe.mode", "subscription")
	v.SetDefault("stripe.success_url", "https://example.com/success")
	v.SetDefault("stripe.cancel_url", "https://example.com/cancel")
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 1000)
	v.SetDefault("retry.max_backoff_ms", 8000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("genres.path", "genres.yaml")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the credentials every run needs are present.
// Stripe is deliberately not required; link creation is optional.
func (c *Config) Validate() error {
	var missing []string
	if c.Notion.Token == "" {
		missing = append(missing, "notion.token")
	}
	if c.Notion.LeadDB == "" {
		missing = append(missing, "notion.lead_db")
	}
	if c.Line.Token == "" {
		missing = append(missing, "line.token")
	}
	if len(missing) > 0 {
		return eris.New("config: required settings missing: " + strings.Join(missing, ", "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg Log) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
