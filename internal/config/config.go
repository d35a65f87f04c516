package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/medflow/appointment-saga/internal/appointment"
)

// Config carries everything the binaries read from the environment. Each
// entrypoint validates only the fields it actually needs.
type Config struct {
	Env      string // dev, prod
	HTTPPort string // default 8080

	AppointmentsTable string // DynamoDB table for the global aggregate
	CreatedTopicARN   string // SNS topic for the create fan-out
	CompletionBusName string // EventBridge bus for the complete fan-in ("" = default bus)

	// Queue URLs, used by the local flow runner.
	CreatedQueuePE     string
	CreatedQueueCL     string
	CompletionQueueURL string

	CountryISO appointment.CountryISO // which country a regional processor serves

	RegionalDB RegionalDBConfig

	RedisAddr     string
	RedisUsername string
	RedisPassword string
	CacheTTL      time.Duration

	StalePendingAfter time.Duration // reconciler threshold

	LogLevel  string
	LogFormat string // json, console
}

// RegionalDBConfig describes the shared Postgres host; the database name is
// derived per country.
type RegionalDBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	SSLMode  string
}

// DSNFor builds the connection string for one country's database.
func (c RegionalDBConfig) DSNFor(country appointment.CountryISO) string {
	dbname := "appointments_" + strings.ToLower(string(country))
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, dbname, c.SSLMode,
	)
}

// Load reads configuration from the environment, with .env support for local
// development.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Env:      getEnv("APP_ENV", "dev"),
		HTTPPort: getEnv("HTTP_PORT", "8080"),

		AppointmentsTable: os.Getenv("APPOINTMENTS_TABLE"),
		CreatedTopicARN:   os.Getenv("CREATED_TOPIC_ARN"),
		CompletionBusName: os.Getenv("COMPLETION_BUS_NAME"),

		CreatedQueuePE:     os.Getenv("CREATED_QUEUE_PE_URL"),
		CreatedQueueCL:     os.Getenv("CREATED_QUEUE_CL_URL"),
		CompletionQueueURL: os.Getenv("COMPLETION_QUEUE_URL"),

		CountryISO: appointment.CountryISO(os.Getenv("COUNTRY_ISO")),

		RegionalDB: RegionalDBConfig{
			Host:     getEnv("RDS_HOST", "localhost"),
			Port:     getInt("RDS_PORT", 5432),
			User:     getEnv("RDS_USER", "postgres"),
			Password: os.Getenv("RDS_PASSWORD"),
			SSLMode:  getEnv("RDS_SSLMODE", "disable"),
		},

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisUsername: os.Getenv("REDIS_USERNAME"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		CacheTTL:      getDuration("CACHE_TTL", 30*time.Second),

		StalePendingAfter: getDuration("STALE_PENDING_AFTER", 15*time.Minute),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if cfg.CountryISO != "" && !appointment.ValidCountry(cfg.CountryISO) {
		return Config{}, fmt.Errorf("invalid COUNTRY_ISO %q: must be PE or CL", cfg.CountryISO)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		fmt.Fprintf(os.Stderr, "invalid integer for %s=%q, using default %d\n", key, v, def)
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		fmt.Fprintf(os.Stderr, "invalid duration for %s=%q, using default %s\n", key, v, def)
	}
	return def
}
