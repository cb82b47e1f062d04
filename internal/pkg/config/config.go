package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ManuelReschke/MeterGate/internal/pkg/env"
	"github.com/go-playground/validator/v10"
)

// Config is the typed runtime configuration.
type Config struct {
	AppEnv  string `validate:"required,oneof=dev test prod"`
	AppHost string `validate:"required"`
	AppPort string `validate:"required,numeric"`

	DBHost     string `validate:"required"`
	DBPort     string `validate:"required,numeric"`
	DBUser     string
	DBPassword string
	DBName     string `validate:"required"`

	CacheHost string
	CachePort string `validate:"omitempty,numeric"`

	StripeSecretKey     string
	StripeWebhookSecret string

	AdminUser     string
	AdminPassword string `validate:"required_with=AdminUser"`

	DefaultPremiumWindow time.Duration `validate:"gt=0"`
	LookupTimeout        time.Duration `validate:"gt=0"`

	Jobs Jobs
	Mail Mail
	S3   S3
}

// Jobs configures the lifecycle scheduler.
type Jobs struct {
	Enabled              bool
	LockEnabled          bool
	LockTTL              time.Duration `validate:"gt=0"`
	BatchSize            int           `validate:"gt=0,lte=10000"`
	SecurityWindow       time.Duration `validate:"gt=0"`
	QuotaResetSchedule   string        `validate:"required"`
	RotationSchedule     string        `validate:"required"`
	SecuritySchedule     string        `validate:"required"`
	WeeklyReportSchedule string        `validate:"required"`
}

// Mail configures the weekly report mail sink. Disabled when To is empty.
type Mail struct {
	Host     string `validate:"required_with=To"`
	Port     string `validate:"omitempty,numeric"`
	Username string
	Password string
	Sender   string `validate:"omitempty,email"`
	To       string `validate:"omitempty,email"`
}

// S3 configures the weekly report archive. Disabled when Bucket is empty.
type S3 struct {
	Bucket          string
	Region          string `validate:"required_with=Bucket"`
	Endpoint        string `validate:"omitempty,url"`
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
	PathStyle       bool
}

var validate = validator.New()

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:  env.GetEnv("APP_ENV", "prod"),
		AppHost: env.GetEnv("APP_HOST", "0.0.0.0"),
		AppPort: env.GetEnv("APP_PORT", "4000"),

		DBHost:     env.GetEnv("DB_HOST", "127.0.0.1"),
		DBPort:     env.GetEnv("DB_PORT", "3306"),
		DBUser:     env.GetEnv("DB_USER", ""),
		DBPassword: env.GetEnv("DB_PASSWORD", ""),
		DBName:     env.GetEnv("DB_NAME", "metergate"),

		CacheHost: env.GetEnv("CACHE_HOST", ""),
		CachePort: env.GetEnv("CACHE_PORT", "6379"),

		StripeSecretKey:     strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", "")),
		StripeWebhookSecret: strings.TrimSpace(env.GetEnv("STRIPE_WEBHOOK_SECRET", "")),

		AdminUser:     env.GetEnv("ADMIN_USER", ""),
		AdminPassword: env.GetEnv("ADMIN_PASSWORD", ""),

		Jobs: Jobs{
			QuotaResetSchedule:   env.GetEnv("JOBS_QUOTA_RESET_SCHEDULE", "0 0 * * *"),
			RotationSchedule:     env.GetEnv("JOBS_ROTATION_SCHEDULE", "0 1 * * *"),
			SecuritySchedule:     env.GetEnv("JOBS_SECURITY_SCHEDULE", "0 2 * * *"),
			WeeklyReportSchedule: env.GetEnv("JOBS_WEEKLY_REPORT_SCHEDULE", "0 6 * * 1"),
		},
		Mail: Mail{
			Host:     env.GetEnv("SMTP_HOST", ""),
			Port:     env.GetEnv("SMTP_PORT", "25"),
			Username: env.GetEnv("SMTP_USERNAME", ""),
			Password: env.GetEnv("SMTP_PASSWORD", ""),
			Sender:   env.GetEnv("SMTP_SENDER", ""),
			To:       env.GetEnv("REPORT_MAIL_TO", ""),
		},
		S3: S3{
			Bucket:          env.GetEnv("REPORT_S3_BUCKET", ""),
			Region:          env.GetEnv("REPORT_S3_REGION", ""),
			Endpoint:        env.GetEnv("REPORT_S3_ENDPOINT", ""),
			AccessKeyID:     env.GetEnv("REPORT_S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: env.GetEnv("REPORT_S3_SECRET_ACCESS_KEY", ""),
			Prefix:          env.GetEnv("REPORT_S3_PREFIX", "reports/weekly"),
		},
	}

	days, err := intEnv("BILLING_DEFAULT_PREMIUM_DAYS", 30)
	if err != nil {
		return nil, err
	}
	cfg.DefaultPremiumWindow = time.Duration(days) * 24 * time.Hour
	if cfg.LookupTimeout, err = durationEnv("BILLING_LOOKUP_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.Jobs.Enabled, err = boolEnv("JOBS_ENABLED", true); err != nil {
		return nil, err
	}
	if cfg.Jobs.LockEnabled, err = boolEnv("JOBS_LOCK_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.Jobs.LockTTL, err = durationEnv("JOBS_LOCK_TTL", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Jobs.BatchSize, err = intEnv("JOBS_BATCH_SIZE", 500); err != nil {
		return nil, err
	}
	if cfg.Jobs.SecurityWindow, err = durationEnv("SECURITY_WINDOW", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.S3.PathStyle, err = boolEnv("REPORT_S3_PATH_STYLE", false); err != nil {
		return nil, err
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// CacheEnabled reports whether a Redis host is configured.
func (c *Config) CacheEnabled() bool {
	return strings.TrimSpace(c.CacheHost) != ""
}

// CachePortInt returns the Redis port as a number.
func (c *Config) CachePortInt() int {
	p, err := strconv.Atoi(c.CachePort)
	if err != nil {
		return 6379
	}
	return p
}

// ListenAddr returns host:port for the HTTP server.
func (c *Config) ListenAddr() string {
	return c.AppHost + ":" + c.AppPort
}

func intEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(env.GetEnv(key, ""))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func boolEnv(key string, def bool) (bool, error) {
	raw := strings.TrimSpace(env.GetEnv(key, ""))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(env.GetEnv(key, ""))
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

// IsDev reports whether the service runs in development mode.
func (c *Config) IsDev() bool {
	return c.AppEnv == "dev"
}
