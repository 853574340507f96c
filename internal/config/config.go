package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config represents the complete service configuration
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Redis     RedisConfig     `toml:"redis"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Notifier  NotifierConfig  `toml:"notifier"`
	Kafka     KafkaConfig     `toml:"kafka"`
	MinIO     MinIOConfig     `toml:"minio"`
	Auth      AuthConfig      `toml:"auth"`
	Inventory InventoryConfig `toml:"inventory"`
}

type ServerConfig struct {
	Port     int    `toml:"port"`
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
}

type DatabaseConfig struct {
	URL           string `toml:"url"`
	MaxConns      int32  `toml:"max_conns"`
	LockTimeoutMS int    `toml:"lock_timeout_ms"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// SchedulerConfig contains the periodic job intervals
type SchedulerConfig struct {
	Enabled                     bool `toml:"enabled"`
	SweepIntervalMinutes        int  `toml:"sweep_interval_minutes"`
	ExpiringSuppliesIntervalHrs int  `toml:"expiring_supplies_interval_hours"`
	ReactivationIntervalMinutes int  `toml:"reactivation_interval_minutes"`
}

// NotifierConfig contains email, SMS and delivery queue settings
type NotifierConfig struct {
	FromAddress  string  `toml:"from_address"`
	SMTPHost     string  `toml:"smtp_host"`
	SMTPPort     int     `toml:"smtp_port"`
	SMTPUsername string  `toml:"smtp_username"`
	SMTPPassword string  `toml:"smtp_password"`
	SMSAPIURL    string  `toml:"sms_api_url"`
	SMSAPIKey    string  `toml:"sms_api_key"`
	SMSSender    string  `toml:"sms_sender_name"`
	SMSPerSecond float64 `toml:"sms_per_second"`
	AsyncQueue   bool    `toml:"async_queue"`
	Concurrency  int     `toml:"concurrency"`
}

type KafkaConfig struct {
	Brokers []string `toml:"brokers"`
	Topic   string   `toml:"topic"`
}

type MinIOConfig struct {
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	UseSSL    bool   `toml:"use_ssl"`
	Bucket    string `toml:"bucket"`
}

type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret"`
	JWKSURL   string `toml:"jwks_url"`
}

// InventoryConfig holds the domain knobs of the lifecycle engine
type InventoryConfig struct {
	TimeZone            string  `toml:"time_zone"`
	NearOverdueFraction float64 `toml:"near_overdue_fraction"`
	ExpiringSupplyDays  int     `toml:"expiring_supply_days"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Port: 8080, Env: "development", LogLevel: "info"},
		Database: DatabaseConfig{MaxConns: 10, LockTimeoutMS: 5000},
		Redis:    RedisConfig{Addr: "localhost:6379"},
		Scheduler: SchedulerConfig{
			Enabled:                     true,
			SweepIntervalMinutes:        30,
			ExpiringSuppliesIntervalHrs: 24,
			ReactivationIntervalMinutes: 60,
		},
		Notifier: NotifierConfig{
			FromAddress:  "noreply@resourcehive.com",
			SMTPPort:     587,
			SMSSender:    "ResourceHive",
			SMSPerSecond: 2,
			Concurrency:  5,
		},
		Kafka: KafkaConfig{Topic: "resourcehive-lifecycle"},
		MinIO: MinIOConfig{Bucket: "resourcehive-reports"},
		Inventory: InventoryConfig{
			TimeZone:            "Asia/Manila",
			NearOverdueFraction: 0.8,
			ExpiringSupplyDays:  30,
		},
	}
}

// Load reads .env, the optional TOML file and environment overrides, in that order
func Load(filename string) (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg := Default()
	if filename != "" {
		if _, err := toml.DecodeFile(filename, cfg); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to load config file: %w", err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setInt(&c.Redis.DB, "REDIS_DB")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Auth.JWKSURL, "JWKS_URL")
	setString(&c.MinIO.Endpoint, "MINIO_ENDPOINT")
	setString(&c.MinIO.AccessKey, "MINIO_ACCESS_KEY")
	setString(&c.MinIO.SecretKey, "MINIO_SECRET_KEY")
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		c.MinIO.UseSSL = v == "true"
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	setString(&c.Notifier.SMTPHost, "SMTP_HOST")
	setInt(&c.Notifier.SMTPPort, "SMTP_PORT")
	setString(&c.Notifier.SMTPUsername, "SMTP_USERNAME")
	setString(&c.Notifier.SMTPPassword, "SMTP_PASSWORD")
	setString(&c.Notifier.SMSAPIURL, "SMS_API_URL")
	setString(&c.Notifier.SMSAPIKey, "SMS_API_KEY")
	setInt(&c.Server.Port, "PORT")
	setString(&c.Server.LogLevel, "LOG_LEVEL")
	setString(&c.Server.Env, "APP_ENV")
	setString(&c.Inventory.TimeZone, "TIME_ZONE")
}

// Validate checks the values the engine depends on
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Inventory.TimeZone); err != nil {
		return fmt.Errorf("invalid time zone %q: %w", c.Inventory.TimeZone, err)
	}
	if c.Inventory.NearOverdueFraction <= 0 || c.Inventory.NearOverdueFraction >= 1 {
		return fmt.Errorf("near_overdue_fraction must be between 0 and 1, got %v", c.Inventory.NearOverdueFraction)
	}
	if c.Inventory.ExpiringSupplyDays <= 0 {
		return fmt.Errorf("expiring_supply_days must be positive")
	}
	if c.Scheduler.SweepIntervalMinutes <= 0 {
		return fmt.Errorf("sweep_interval_minutes must be positive")
	}
	if c.Scheduler.ExpiringSuppliesIntervalHrs <= 0 || c.Scheduler.ReactivationIntervalMinutes <= 0 {
		return fmt.Errorf("scheduler intervals must be positive")
	}
	return nil
}

// Location returns the configured local zone; Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Inventory.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Path returns the config file named by RESOURCEHIVE_CONFIG, or config.toml
func Path() string {
	if p := os.Getenv("RESOURCEHIVE_CONFIG"); p != "" {
		return p
	}
	return "config.toml"
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.Database.LockTimeoutMS) * time.Millisecond
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
