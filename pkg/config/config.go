package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates every subsystem's settings, loaded once at process start.
type Config struct {
	Server    ServerConfig
	Scraper   ScraperConfig
	Scheduler SchedulerConfig
	SMTP      SMTPConfig
	Store     StoreConfig
	Logging   LoggingConfig
	Redis     RedisConfig
}

// ServerConfig holds process-wide identity settings.
type ServerConfig struct {
	Environment string
}

// ScraperConfig controls the Fetcher and Parser.
type ScraperConfig struct {
	UserAgent        string
	FetchTimeoutSec  int
	MaxRetries       int
	BrowserPoolSize  int
	RateLimitSeconds int
	RespectRobotsTxt bool
	TransactionType  string // "huur" or "koop"
}

// SchedulerConfig controls job cadence and concurrency.
type SchedulerConfig struct {
	MaxConcurrentCycles int
	CycleTimeoutMinutes int
	SemaphoreWaitSec    int
	SafetyFloorMinutes  int
	HeartbeatSec        int
	StaggerMinMinutes   int
	StaggerMaxMinutes   int
	ManualTriggerSec    int
}

// SMTPConfig controls the Notifier's outgoing mail transport.
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	UseTLS    bool
}

// StoreConfig controls the Persistence component.
type StoreConfig struct {
	DBPath      string
	MaxRetained int
}

// LoggingConfig controls the ambient logger.
type LoggingConfig struct {
	Level  string
	Format string
}

// RedisConfig is optional; when Addr is empty the manual-trigger rate
// limiter falls back to an in-process limiter.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Load builds a Config from environment variables (and an optional .env
// file in the working directory): defaults are applied first and the
// environment or .env values override them.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Environment: v.GetString("ENVIRONMENT"),
		},
		Scraper: ScraperConfig{
			UserAgent:        v.GetString("SCRAPER_USER_AGENT"),
			FetchTimeoutSec:  v.GetInt("FETCH_TIMEOUT_SECONDS"),
			MaxRetries:       v.GetInt("FETCH_MAX_RETRIES"),
			BrowserPoolSize:  v.GetInt("BROWSER_POOL_SIZE"),
			RateLimitSeconds: v.GetInt("SCRAPER_RATE_LIMIT_SECONDS"),
			RespectRobotsTxt: v.GetBool("RESPECT_ROBOTS_TXT"),
			TransactionType:  v.GetString("TRANSACTION_TYPE"),
		},
		Scheduler: SchedulerConfig{
			MaxConcurrentCycles: v.GetInt("SCHEDULER_MAX_CONCURRENT"),
			CycleTimeoutMinutes: v.GetInt("SCHEDULER_CYCLE_TIMEOUT_MINUTES"),
			SemaphoreWaitSec:    v.GetInt("SCHEDULER_SEMAPHORE_WAIT_SECONDS"),
			SafetyFloorMinutes:  v.GetInt("SCHEDULER_SAFETY_FLOOR_MINUTES"),
			HeartbeatSec:        v.GetInt("SCHEDULER_HEARTBEAT_SECONDS"),
			StaggerMinMinutes:   v.GetInt("SCHEDULER_STAGGER_MIN_MINUTES"),
			StaggerMaxMinutes:   v.GetInt("SCHEDULER_STAGGER_MAX_MINUTES"),
			ManualTriggerSec:    v.GetInt("MANUAL_TRIGGER_RATE_LIMIT_SECONDS"),
		},
		SMTP: SMTPConfig{
			Host:      v.GetString("SMTP_HOST"),
			Port:      v.GetInt("SMTP_PORT"),
			Username:  v.GetString("SMTP_USER"),
			Password:  v.GetString("SMTP_PASS"),
			FromEmail: v.GetString("FROM_EMAIL"),
			UseTLS:    v.GetBool("SMTP_USE_TLS"),
		},
		Store: StoreConfig{
			DBPath:      v.GetString("DB_PATH"),
			MaxRetained: v.GetInt("MAX_RETAINED_LISTINGS"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
	}

	if cfg.SMTP.FromEmail == "" {
		if cfg.SMTP.Username != "" {
			cfg.SMTP.FromEmail = cfg.SMTP.Username
		} else {
			cfg.SMTP.FromEmail = "noreply@fundawatch.local"
		}
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("ENVIRONMENT", "development")

	// Scraper
	v.SetDefault("SCRAPER_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("FETCH_TIMEOUT_SECONDS", 60)
	v.SetDefault("FETCH_MAX_RETRIES", 3)
	v.SetDefault("BROWSER_POOL_SIZE", 2)
	v.SetDefault("SCRAPER_RATE_LIMIT_SECONDS", 5)
	v.SetDefault("RESPECT_ROBOTS_TXT", true)
	v.SetDefault("TRANSACTION_TYPE", "huur")

	// Scheduler
	v.SetDefault("SCHEDULER_MAX_CONCURRENT", 3)
	v.SetDefault("SCHEDULER_CYCLE_TIMEOUT_MINUTES", 10)
	v.SetDefault("SCHEDULER_SEMAPHORE_WAIT_SECONDS", 120)
	v.SetDefault("SCHEDULER_SAFETY_FLOOR_MINUTES", 30)
	v.SetDefault("SCHEDULER_HEARTBEAT_SECONDS", 3600)
	v.SetDefault("SCHEDULER_STAGGER_MIN_MINUTES", 2)
	v.SetDefault("SCHEDULER_STAGGER_MAX_MINUTES", 7)
	v.SetDefault("MANUAL_TRIGGER_RATE_LIMIT_SECONDS", 60)

	// SMTP
	v.SetDefault("SMTP_HOST", "smtp.gmail.com")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USE_TLS", true)

	// Store
	v.SetDefault("DB_PATH", "./database.json")
	v.SetDefault("MAX_RETAINED_LISTINGS", 1000)

	// Logging
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	// Redis (optional)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_DB", 0)
}

// IsConstrained reports whether the process is running under a
// resource-constrained deployment platform, detected via well-known
// environment variables rather than explicit configuration.
func IsConstrained() bool {
	for _, key := range []string{"RAILWAY_ENVIRONMENT", "RAILWAY_PROJECT_ID", "RAILWAY_SERVICE_ID", "PORT"} {
		if os.Getenv(key) != "" {
			return true
		}
	}
	return false
}

// FetchTimeout returns the per-fetch soft deadline, lowered under constrained mode.
func (c *Config) FetchTimeout(constrained bool) time.Duration {
	if constrained {
		return 30 * time.Second
	}
	return time.Duration(c.Scraper.FetchTimeoutSec) * time.Second
}

// SafetyFloor returns the scheduler's minimum cadence in constrained mode, zero otherwise.
func (c *Config) SafetyFloor(constrained bool) time.Duration {
	if !constrained {
		return 0
	}
	return time.Duration(c.Scheduler.SafetyFloorMinutes) * time.Minute
}

// HeartbeatInterval returns the sync-with-profiles cadence.
func (c *Config) HeartbeatInterval(constrained bool) time.Duration {
	if constrained {
		return 30 * time.Second
	}
	return time.Hour
}

// ManualTriggerInterval returns the per-IP manual-trigger rate limit window.
func (c *Config) ManualTriggerInterval(constrained bool) time.Duration {
	if constrained {
		return 300 * time.Second
	}
	return time.Duration(c.Scheduler.ManualTriggerSec) * time.Second
}
