package email

import (
	"time"

	"mmh_backend/internal/config"
)

type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
	Timeout   time.Duration
}

func DefaultConfig() *SMTPConfig {
	return &SMTPConfig{
		Host:    "localhost",
		Port:    587,
		Timeout: 10 * time.Second,
	}
}

// ConfigFrom maps the application email section onto SMTPConfig.
func ConfigFrom(cfg config.EmailConfig) *SMTPConfig {
	c := DefaultConfig()
	c.Host = cfg.SMTPHost
	if cfg.SMTPPort > 0 {
		c.Port = cfg.SMTPPort
	}
	c.Username = cfg.SMTPUsername
	c.Password = cfg.SMTPPassword
	c.FromEmail = cfg.FromEmail
	c.FromName = cfg.FromName
	if cfg.Timeout > 0 {
		c.Timeout = cfg.Timeout
	}
	return c
}
