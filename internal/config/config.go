package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Session   SessionConfig   `mapstructure:"session"`
	Lifecycle LifecycleConfig `mapstructure:"lifecycle"`
	Webhooks  WebhooksConfig  `mapstructure:"webhooks"`
	QR        QRConfig        `mapstructure:"qr"`
	Security  SecurityConfig  `mapstructure:"security"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	PublicHost   string        `mapstructure:"public_host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type AuthConfig struct {
	KeyFile string `mapstructure:"key_file"`
}

// SessionConfig points at the messaging client's own device store.
type SessionConfig struct {
	Driver string       `mapstructure:"driver"`
	SQLite SQLiteConfig `mapstructure:"sqlite"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type LifecycleConfig struct {
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	InitTimeout    time.Duration `mapstructure:"init_timeout"`
	AutoInitialize bool          `mapstructure:"auto_initialize"`
}

type WebhooksConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	Concurrency int           `mapstructure:"concurrency"`
	UserAgent   string        `mapstructure:"user_agent"`
}

type QRConfig struct {
	Size int `mapstructure:"size"`
}

type SecurityConfig struct {
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("wabridge")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/wabridge")
	}

	setDefaults(v)

	v.SetEnvPrefix("WABRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// PORT and HOST are what existing deployments set.
	_ = v.BindEnv("server.port", "WABRIDGE_SERVER_PORT", "PORT")
	_ = v.BindEnv("server.public_host", "WABRIDGE_SERVER_PUBLIC_HOST", "HOST")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.public_host", "localhost")
	v.SetDefault("server.read_timeout", 30*time.Second)
	// POST /auth/initialize may wait for the full init timeout.
	v.SetDefault("server.write_timeout", 150*time.Second)

	v.SetDefault("auth.key_file", ".auth_key")

	v.SetDefault("session.driver", "sqlite")
	v.SetDefault("session.sqlite.path", "./whatsapp-sessions/session.db")

	v.SetDefault("lifecycle.max_retries", 5)
	v.SetDefault("lifecycle.retry_delay", 10*time.Second)
	v.SetDefault("lifecycle.init_timeout", 120*time.Second)
	v.SetDefault("lifecycle.auto_initialize", true)

	v.SetDefault("webhooks.timeout", 30*time.Second)
	v.SetDefault("webhooks.concurrency", 16)
	v.SetDefault("webhooks.user_agent", "WhatsAppBridge/1.0")

	v.SetDefault("qr.size", 256)

	v.SetDefault("security.rate_limit.enabled", true)
	v.SetDefault("security.rate_limit.requests", 100)
	v.SetDefault("security.rate_limit.window", 15*time.Minute)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
