package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Env             string        `yaml:"env"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver       string `yaml:"driver"` // postgres, mysql, sqlite
	DSN          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	AutoMigrate  bool   `yaml:"auto_migrate"`
}

type JWTConfig struct {
	Secret     string        `yaml:"secret"`
	AccessTTL  time.Duration `yaml:"access_ttl"`
	RefreshTTL time.Duration `yaml:"refresh_ttl"`
}

type AuthConfig struct {
	RequireVerifiedEmail bool          `yaml:"require_verified_email"`
	VerificationTTL      time.Duration `yaml:"verification_ttl"`
	ResetTTL             time.Duration `yaml:"reset_ttl"`
	FrontendURL          string        `yaml:"frontend_url"`
}

type EmailConfig struct {
	SMTPHost     string        `yaml:"smtp_host"`
	SMTPPort     int           `yaml:"smtp_port"`
	SMTPUsername string        `yaml:"smtp_user"`
	SMTPPassword string        `yaml:"smtp_password"`
	FromEmail    string        `yaml:"from_email"`
	FromName     string        `yaml:"from_name"`
	Timeout      time.Duration `yaml:"timeout"`
}

// Enabled reports whether real SMTP delivery is configured.
func (e EmailConfig) Enabled() bool {
	return e.SMTPHost != ""
}

type RegistryConfig struct {
	BaseURL              string        `yaml:"base_url"`
	Timeout              time.Duration `yaml:"timeout"`
	AllowFreeMailDomains bool          `yaml:"allow_free_mail_domains"`
	CacheTTL             time.Duration `yaml:"cache_ttl"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

type RabbitMQConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

type PricingConfig struct {
	// MinOrderPolicy is "raise" (total lifted to the minimum) or "reject".
	MinOrderPolicy string `yaml:"min_order_policy"`
}

type CommissionConfig struct {
	StandardRate     string            `yaml:"standard_rate"`
	ReducedRate      string            `yaml:"reduced_rate"`
	ReducedFromTotal string            `yaml:"reduced_from_total"`
	MediaTypeRates   map[string]string `yaml:"media_type_rates"`
}

type WorkersConfig struct {
	OfferExpiryInterval time.Duration `yaml:"offer_expiry_interval"`
}

type StorageConfig struct {
	Driver         string `yaml:"driver"` // local, s3, r2
	BasePath       string `yaml:"base_path"`
	BaseURL        string `yaml:"base_url"`
	Bucket         string `yaml:"bucket"`
	Region         string `yaml:"region"`
	Endpoint       string `yaml:"endpoint"`
	AccessKey      string `yaml:"access_key"`
	SecretKey      string `yaml:"secret_key"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	JWT        JWTConfig        `yaml:"jwt"`
	Auth       AuthConfig       `yaml:"auth"`
	Email      EmailConfig      `yaml:"email"`
	Registry   RegistryConfig   `yaml:"registry"`
	Redis      RedisConfig      `yaml:"redis"`
	RabbitMQ   RabbitMQConfig   `yaml:"rabbitmq"`
	Pricing    PricingConfig    `yaml:"pricing"`
	Commission CommissionConfig `yaml:"commission"`
	Workers    WorkersConfig    `yaml:"workers"`
	Storage    StorageConfig    `yaml:"storage"`

	FirstAdminEmail    string `yaml:"first_admin_email"`
	FirstAdminPassword string `yaml:"first_admin_password"`
}

var AppConfig *Config

// Default returns a configuration usable for local development and tests.
func Default() *Config {
	cfg := &Config{}
	cfg.Server = ServerConfig{Host: "0.0.0.0", Port: 8080, Env: "development", ShutdownTimeout: 10 * time.Second}
	cfg.Database = DatabaseConfig{Driver: "postgres", MaxOpenConns: 20, MaxIdleConns: 5, AutoMigrate: true}
	cfg.JWT = JWTConfig{AccessTTL: 15 * time.Minute, RefreshTTL: 30 * 24 * time.Hour}
	cfg.Auth = AuthConfig{RequireVerifiedEmail: true, VerificationTTL: 24 * time.Hour, ResetTTL: time.Hour, FrontendURL: "http://localhost:3000"}
	cfg.Email = EmailConfig{SMTPPort: 587, FromEmail: "no-reply@mmh.local", FromName: "Media Market Hub", Timeout: 10 * time.Second}
	cfg.Registry = RegistryConfig{
		BaseURL:              "https://ares.gov.cz/ekonomicke-subjekty-v-be/rest",
		Timeout:              5 * time.Second,
		AllowFreeMailDomains: true,
		CacheTTL:             24 * time.Hour,
	}
	cfg.RabbitMQ = RabbitMQConfig{Exchange: "mmh.orders"}
	cfg.Pricing = PricingConfig{MinOrderPolicy: "raise"}
	cfg.Commission = CommissionConfig{StandardRate: "0.05", ReducedRate: "0.025", ReducedFromTotal: "100000"}
	cfg.Workers = WorkersConfig{OfferExpiryInterval: time.Hour}
	cfg.Storage = StorageConfig{Driver: "local", BasePath: "./uploads", BaseURL: "/files", MaxUploadBytes: 10 << 20}
	return cfg
}

// Load reads .env (if present), then the YAML file at CONFIG_PATH (if present),
// then applies environment overrides on top.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env not loaded: %v", err)
	}

	cfg := Default()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	if err := loadFile(configPath, cfg); err != nil {
		return nil, err
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig populates AppConfig and stops the process on failure.
func LoadConfig() {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	AppConfig = cfg
}

func GetConfig() *Config {
	if AppConfig == nil {
		LoadConfig()
	}
	return AppConfig
}

func loadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open config file %s: %w", path, err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Env, "SERVER_ENV")
	setString(&cfg.Server.Host, "SERVER_HOST")
	setInt(&cfg.Server.Port, "SERVER_PORT")

	setString(&cfg.Database.Driver, "DATABASE_DRIVER")
	setString(&cfg.Database.DSN, "DATABASE_URL")

	setString(&cfg.JWT.Secret, "JWT_SECRET")

	setString(&cfg.Email.SMTPHost, "SMTP_HOST")
	setInt(&cfg.Email.SMTPPort, "SMTP_PORT")
	setString(&cfg.Email.SMTPUsername, "SMTP_USER")
	setString(&cfg.Email.SMTPPassword, "SMTP_PASSWORD")
	setString(&cfg.Email.FromEmail, "SMTP_FROM")

	setString(&cfg.Registry.BaseURL, "ARES_BASE_URL")
	setString(&cfg.Redis.URL, "REDIS_URL")
	setString(&cfg.RabbitMQ.URL, "RABBITMQ_URL")
	setString(&cfg.Pricing.MinOrderPolicy, "MIN_ORDER_POLICY")

	setString(&cfg.Storage.Driver, "STORAGE_DRIVER")
	setString(&cfg.Storage.Bucket, "STORAGE_BUCKET")
	setString(&cfg.Storage.Endpoint, "STORAGE_ENDPOINT")
	setString(&cfg.Storage.AccessKey, "STORAGE_ACCESS_KEY")
	setString(&cfg.Storage.SecretKey, "STORAGE_SECRET_KEY")
	setString(&cfg.Storage.BaseURL, "STORAGE_BASE_URL")

	setString(&cfg.FirstAdminEmail, "FIRST_ADMIN_EMAIL")
	setString(&cfg.FirstAdminPassword, "FIRST_ADMIN_PASSWORD")
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("config: ignoring %s=%q: %v", key, v, err)
		return
	}
	*dst = n
}

// Validate checks values that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("config: unknown database driver %q", c.Database.Driver)
	}
	switch c.Pricing.MinOrderPolicy {
	case "raise", "reject":
	default:
		return fmt.Errorf("config: pricing.min_order_policy must be raise or reject, got %q", c.Pricing.MinOrderPolicy)
	}
	switch c.Storage.Driver {
	case "local", "s3", "r2":
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	if c.JWT.Secret == "" && c.IsProduction() {
		return fmt.Errorf("config: jwt.secret is required in production")
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 {
		return fmt.Errorf("config: jwt ttl values must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}
