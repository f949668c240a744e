// Package config loads application configuration from environment
// variables.  A .env file in the working directory, when present, is read
// first; variables already set in the environment win over it.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers accepted in STORE_DRIVER.
const (
	StoreMySQL    = "mysql"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env  string // APP_ENV: application environment (e.g. "dev", "prod")
	Port string // APP_PORT: HTTP port to listen on

	StoreDriver    string // STORE_DRIVER: mysql, postgres or memory
	DBUser         string // DB_USER: MySQL username
	DBPass         string // DB_PASS: MySQL password (optional)
	DBHost         string // DB_HOST: MySQL host address
	DBPort         string // DB_PORT: MySQL port number
	DBName         string // DB_NAME: MySQL database name
	DatabaseURL    string // DATABASE_URL: PostgreSQL connection URL
	DBMaxOpenConns int    // DB_MAX_OPEN_CONNS: pool size
	AutoMigrate    bool   // DB_AUTO_MIGRATE: apply the schema at startup

	SweepInterval      time.Duration // SWEEP_INTERVAL: expiry sweeper period
	ExpiringSoonWindow time.Duration // EXPIRING_SOON_WINDOW: metrics lookahead

	OperatorJWTSecret string // OPERATOR_JWT_SECRET: enables operator auth when set

	RabbitMQURL            string // RABBITMQ_URL or AMQP_URL
	BookingEventsEnabled   bool   // BOOKING_EVENTS_ENABLED: publish booking.confirmed
	BookingConsumerEnabled bool   // BOOKING_CONSUMER_ENABLED: run the log consumer
	BookingLogDir          string // BOOKING_LOG_DIR: where booking.log is written

	LogLevel  string // LOG_LEVEL
	LogFormat string // LOG_FORMAT: json or text
}

// LoadDotEnv reads .env into the environment when the file exists.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration values from environment variables.  Required
// variables depend on STORE_DRIVER; every missing one is reported in the
// returned error.
func Load() (Config, error) {
	cfg := Config{
		Env:  envStr("APP_ENV", "dev"),
		Port: envStr("APP_PORT", "8080"),

		StoreDriver:    strings.ToLower(envStr("STORE_DRIVER", StoreMySQL)),
		DBUser:         os.Getenv("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"), // empty allowed
		DBHost:         os.Getenv("DB_HOST"),
		DBPort:         envStr("DB_PORT", "3306"),
		DBName:         os.Getenv("DB_NAME"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		DBMaxOpenConns: envInt("DB_MAX_OPEN_CONNS", 25),
		AutoMigrate:    envBool("DB_AUTO_MIGRATE", true),

		SweepInterval:      envDur("SWEEP_INTERVAL", 30*time.Second),
		ExpiringSoonWindow: envDur("EXPIRING_SOON_WINDOW", 5*time.Minute),

		OperatorJWTSecret: os.Getenv("OPERATOR_JWT_SECRET"),

		RabbitMQURL:            envStr("RABBITMQ_URL", os.Getenv("AMQP_URL")),
		BookingEventsEnabled:   envBool("BOOKING_EVENTS_ENABLED", true),
		BookingConsumerEnabled: envBool("BOOKING_CONSUMER_ENABLED", false),
		BookingLogDir:          envStr("BOOKING_LOG_DIR", "logs"),

		LogLevel:  envStr("LOG_LEVEL", "info"),
		LogFormat: envStr("LOG_FORMAT", "json"),
	}

	var errs []error
	switch cfg.StoreDriver {
	case StoreMySQL:
		for _, kv := range [][2]string{{"DB_USER", cfg.DBUser}, {"DB_HOST", cfg.DBHost}, {"DB_NAME", cfg.DBName}} {
			if kv[1] == "" {
				errs = append(errs, fmt.Errorf("missing required env var: %s", kv[0]))
			}
		}
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			errs = append(errs, errors.New("missing required env var: DATABASE_URL"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("invalid STORE_DRIVER %q", cfg.StoreDriver))
	}
	if cfg.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", cfg.SweepInterval))
	}
	if cfg.DBMaxOpenConns < 1 {
		errs = append(errs, fmt.Errorf("DB_MAX_OPEN_CONNS must be positive, got %d", cfg.DBMaxOpenConns))
	}
	if cfg.BookingConsumerEnabled && cfg.RabbitMQURL == "" {
		errs = append(errs, errors.New("BOOKING_CONSUMER_ENABLED requires RABBITMQ_URL or AMQP_URL"))
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// PublishBookings reports whether confirmed bookings go to the broker.
func (c Config) PublishBookings() bool {
	return c.BookingEventsEnabled && c.RabbitMQURL != ""
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
