package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/caseflow-systems/leadrelay/internal/mapper"
	"github.com/caseflow-systems/leadrelay/internal/models"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Inbox     InboxConfig     `mapstructure:"inbox"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Fallbacks FallbacksConfig `mapstructure:"fallbacks"`
	Intake    IntakeConfig    `mapstructure:"intake"`
	Auth      AuthConfig      `mapstructure:"auth"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// InboxConfig points at the downstream lead inbox API.
type InboxConfig struct {
	URL     string        `mapstructure:"url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type DispatchConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BackoffBase time.Duration `mapstructure:"backoff_base"`
	BackoffCap  time.Duration `mapstructure:"backoff_cap"`
	Jitter      bool          `mapstructure:"jitter"`
	RateLimit   int           `mapstructure:"rate_limit"`
	RateWindow  time.Duration `mapstructure:"rate_window"`
}

type SyncConfig struct {
	BaseURL           string `mapstructure:"base_url"`
	PageSize          int    `mapstructure:"page_size"`
	HeaderCurrentPage string `mapstructure:"header_current_page"`
	HeaderPerPage     string `mapstructure:"header_per_page"`
	HeaderTotalCount  string `mapstructure:"header_total_count"`
	HeaderTotalPages  string `mapstructure:"header_total_pages"`
	HeaderHasNextPage string `mapstructure:"header_has_next_page"`
}

// FallbacksConfig overrides the default substitution values per field.
type FallbacksConfig struct {
	FirstName    string `mapstructure:"first_name"`
	LastName     string `mapstructure:"last_name"`
	Message      string `mapstructure:"message"`
	Email        string `mapstructure:"email"`
	PhoneNumber  string `mapstructure:"phone_number"`
	ReferringURL string `mapstructure:"referring_url"`
	Source       string `mapstructure:"source"`
}

// IntakeConfig guards the inbound webhook endpoints.
type IntakeConfig struct {
	MaxBodySize      int64         `mapstructure:"max_body_size"`
	RateLimitEnabled bool          `mapstructure:"rate_limit_enabled"`
	RateLimitRedis   string        `mapstructure:"rate_limit_redis"`
	RateLimitPerKey  int           `mapstructure:"rate_limit_per_key"`
	RateLimitWindow  time.Duration `mapstructure:"rate_limit_window"`
}

type AuthConfig struct {
	Mode         string   `mapstructure:"mode"` // none, apikey, jwt
	APIKeyHashes []string `mapstructure:"api_key_hashes"`
	JWTSecret    string   `mapstructure:"jwt_secret"`
	JWTIssuer    string   `mapstructure:"jwt_issuer"`
}

type NATSConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("inbox.url", "https://grow.clio.com/inbox_leads")
	v.SetDefault("inbox.token", "")
	v.SetDefault("inbox.timeout", "30s")
	v.SetDefault("dispatch.max_attempts", 3)
	v.SetDefault("dispatch.backoff_base", "1s")
	v.SetDefault("dispatch.backoff_cap", "30s")
	v.SetDefault("dispatch.jitter", true)
	v.SetDefault("dispatch.rate_limit", 50)
	v.SetDefault("dispatch.rate_window", "1m")
	v.SetDefault("sync.base_url", "https://grow.clio.com/api/v1")
	v.SetDefault("sync.page_size", 50)
	v.SetDefault("sync.header_current_page", "X-Current-Page")
	v.SetDefault("sync.header_per_page", "X-Per-Page")
	v.SetDefault("sync.header_total_count", "X-Total-Count")
	v.SetDefault("sync.header_total_pages", "X-Total-Pages")
	v.SetDefault("sync.header_has_next_page", "X-Has-Next-Page")
	v.SetDefault("intake.max_body_size", 1048576)
	v.SetDefault("intake.rate_limit_enabled", false)
	v.SetDefault("intake.rate_limit_redis", "redis://localhost:6379/0")
	v.SetDefault("intake.rate_limit_per_key", 120)
	v.SetDefault("intake.rate_limit_window", "1m")
	v.SetDefault("auth.mode", "none")
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/leadrelay")
	}

	// Environment variables override
	v.SetEnvPrefix("LEADRELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces the startup invariants: a usable auth mode and a
// total fallback policy.
func (c *Config) Validate() error {
	switch c.Auth.Mode {
	case "", "none", "apikey", "jwt":
	default:
		return fmt.Errorf("unknown auth mode %q", c.Auth.Mode)
	}
	if c.Auth.Mode == "apikey" && len(c.Auth.APIKeyHashes) == 0 {
		return fmt.Errorf("auth mode apikey requires api_key_hashes")
	}
	if c.Auth.Mode == "jwt" && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth mode jwt requires jwt_secret")
	}
	return c.FallbackPolicy().Validate()
}

// FallbackPolicy merges the configured overrides onto the default
// policy. Empty override values leave the default in place; the result
// is audited by Validate.
func (c *Config) FallbackPolicy() mapper.FallbackPolicy {
	policy := mapper.DefaultPolicy()
	overrides := map[string]string{
		models.FieldFirstName:    c.Fallbacks.FirstName,
		models.FieldLastName:     c.Fallbacks.LastName,
		models.FieldMessage:      c.Fallbacks.Message,
		models.FieldEmail:        c.Fallbacks.Email,
		models.FieldPhoneNumber:  c.Fallbacks.PhoneNumber,
		models.FieldReferringURL: c.Fallbacks.ReferringURL,
		models.FieldSource:       c.Fallbacks.Source,
	}
	for field, value := range overrides {
		if value != "" {
			policy[field] = value
		}
	}
	return policy
}
