package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port              int    `env:"PORT" envDefault:"8080"`
	DatabaseURL       string `env:"DATABASE_URL,required"`
	RedisURL          string `env:"REDIS_URL,required"`
	AdminUser         string `env:"ADMIN_USER" envDefault:"admin"`
	AdminPasswordHash string `env:"ADMIN_PASSWORD_HASH"`
	LogLevel          string `env:"LOG_LEVEL" envDefault:"info"`
	WhatsAppLogLevel  string `env:"WHATSAPP_LOG_LEVEL" envDefault:"warn"`

	// QRFileDir, when set, receives a qr-<session>.txt file per QR emission.
	QRFileDir string `env:"QR_FILE_DIR"`

	DefaultCountryCode   string `env:"DEFAULT_COUNTRY_CODE" envDefault:"55"`
	StateWaitSeconds     int    `env:"SEND_STATE_WAIT_SECONDS" envDefault:"3"`
	VerifyAttempts       int    `env:"SEND_VERIFY_ATTEMPTS" envDefault:"3"`
	VerifyTimeoutSeconds int    `env:"SEND_VERIFY_TIMEOUT_SECONDS" envDefault:"10"`
	SendAttempts         int    `env:"SEND_ATTEMPTS" envDefault:"3"`
	SendTimeoutSeconds   int    `env:"SEND_TIMEOUT_SECONDS" envDefault:"30"`

	SchedulerSpec          string `env:"SCHEDULER_SPEC" envDefault:"@every 1m"`
	ScheduledRetentionDays int    `env:"SCHEDULED_RETENTION_DAYS" envDefault:"30"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) StateWait() time.Duration {
	return time.Duration(c.StateWaitSeconds) * time.Second
}

func (c *Config) VerifyTimeout() time.Duration {
	return time.Duration(c.VerifyTimeoutSeconds) * time.Second
}

func (c *Config) SendTimeout() time.Duration {
	return time.Duration(c.SendTimeoutSeconds) * time.Second
}

func (c *Config) ScheduledRetention() time.Duration {
	return time.Duration(c.ScheduledRetentionDays) * 24 * time.Hour
}

func (c *Config) Validate(isProduction bool) error {
	if c.AdminPasswordHash != "" {
		if !strings.HasPrefix(c.AdminPasswordHash, "$2a$") &&
			!strings.HasPrefix(c.AdminPasswordHash, "$2b$") &&
			!strings.HasPrefix(c.AdminPasswordHash, "$2y$") {
			return fmt.Errorf("ADMIN_PASSWORD_HASH must be a bcrypt hash (generate with: go run scripts/hash-password.go <password>)")
		}
	}

	if c.VerifyAttempts < 1 || c.SendAttempts < 1 {
		return fmt.Errorf("SEND_VERIFY_ATTEMPTS and SEND_ATTEMPTS must be at least 1")
	}

	if c.DefaultCountryCode == "" || strings.Trim(c.DefaultCountryCode, "0123456789") != "" {
		return fmt.Errorf("DEFAULT_COUNTRY_CODE must contain digits only")
	}

	if isProduction {
		if c.AdminPasswordHash == "" {
			log.Warn().Msg("ADMIN_PASSWORD_HASH is empty in production: admin routes are disabled")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
