package config

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig      `koanf:"app"`
	Postgres PostgresConfig `koanf:"postgres"`
	Redis    RedisConfig    `koanf:"redis"`
	Logger   LoggerConfig   `koanf:"log"`
	Auth     AuthConfig     `koanf:"auth"`
	Notify   NotifyConfig   `koanf:"notify"`
	Schedule ScheduleConfig `koanf:"schedule"`
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string `koanf:"name"`
	Env                   string `koanf:"env"`
	Host                  string `koanf:"host"`
	Port                  string `koanf:"port"`
	Version               string `koanf:"version"`
	RequestTimeoutSeconds int    `koanf:"request_timeout_seconds"`
}

// PostgresConfig holds DB connection values. An empty DSN selects the in-memory store.
type PostgresConfig struct {
	DSN            string `koanf:"dsn"`
	MaxConns       int32  `koanf:"max_conns"`
	MinConns       int32  `koanf:"min_conns"`
	RunMigrations  bool   `koanf:"run_migrations"`
	MigrationsDir  string `koanf:"migrations_dir"`
	ConnMaxIdleSec int32  `koanf:"conn_max_idle_sec"`
	ConnMaxLifeSec int32  `koanf:"conn_max_life_sec"`
}

// RedisConfig holds Redis connection values. An empty Addr selects process-local locking.
type RedisConfig struct {
	Addr           string `koanf:"addr"`
	Password       string `koanf:"password"`
	DB             int    `koanf:"db"`
	LockTTLSeconds int    `koanf:"lock_ttl_seconds"`
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string `koanf:"level"`
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string `koanf:"jwt_secret"`
	AccessTokenTTLMinutes int    `koanf:"access_token_ttl_minutes"`
	BcryptCost            int    `koanf:"bcrypt_cost"`
}

// NotifyConfig controls the best-effort notification pipeline.
type NotifyConfig struct {
	Enabled            bool   `koanf:"enabled"`
	QueueSize          int    `koanf:"queue_size"`
	SendTimeoutSeconds int    `koanf:"send_timeout_seconds"`
	Sender             string `koanf:"sender"`
}

// ScheduleConfig holds calendar and booking rules.
type ScheduleConfig struct {
	Timezone                  string `koanf:"timezone"`
	EnforceAppointmentOverlap bool   `koanf:"enforce_appointment_overlap"`
	EnforceSlotOverlap        bool   `koanf:"enforce_slot_overlap"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		App: AppConfig{
			Name:                  "booking-service",
			Env:                   "development",
			Host:                  "0.0.0.0",
			Port:                  "8080",
			Version:               "dev",
			RequestTimeoutSeconds: 30,
		},
		Postgres: PostgresConfig{
			MaxConns:       10,
			MinConns:       2,
			RunMigrations:  true,
			MigrationsDir:  "migrations",
			ConnMaxIdleSec: 30,
			ConnMaxLifeSec: 300,
		},
		Redis: RedisConfig{
			Addr:           "127.0.0.1:6379",
			LockTTLSeconds: 5,
		},
		Logger: LoggerConfig{
			Level: "info",
		},
		Auth: AuthConfig{
			JWTSecret:             "dev-secret",
			AccessTokenTTLMinutes: 60,
			BcryptCost:            12,
		},
		Notify: NotifyConfig{
			Enabled:            true,
			QueueSize:          256,
			SendTimeoutSeconds: 5,
			Sender:             "whatsapp:+14155238886",
		},
		Schedule: ScheduleConfig{
			Timezone:                  "Local",
			EnforceAppointmentOverlap: true,
			EnforceSlotOverlap:        true,
		},
	}
}

// Validate checks values that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	if c.App.Port == "" {
		return errors.New("app.port must not be empty")
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("auth.bcrypt_cost must be within [%d,%d]", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret must not be empty")
	}
	if _, err := c.Schedule.Location(); err != nil {
		return fmt.Errorf("schedule.timezone: %w", err)
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// LockTTL returns how long a per-operator booking lock is held at most.
func (r RedisConfig) LockTTL() time.Duration {
	if r.LockTTLSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(r.LockTTLSeconds) * time.Second
}

// SendTimeout bounds a single notification delivery.
func (n NotifyConfig) SendTimeout() time.Duration {
	if n.SendTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(n.SendTimeoutSeconds) * time.Second
}

// Location resolves the configured timezone.
func (s ScheduleConfig) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(s.Timezone)
}
