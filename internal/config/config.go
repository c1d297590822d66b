package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invoicely/invoicely/internal/types"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment DeploymentConfig `mapstructure:"deployment" validate:"required"`
	Server     ServerConfig     `mapstructure:"server" validate:"required"`
	Logging    LoggingConfig    `mapstructure:"logging" validate:"required"`
	Postgres   PostgresConfig   `mapstructure:"postgres" validate:"required"`
	Ledger     LedgerConfig     `mapstructure:"ledger" validate:"required"`
	Invoice    InvoiceConfig    `mapstructure:"invoice" validate:"required"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Email      EmailConfig      `mapstructure:"email"`
	Sentry     SentryConfig     `mapstructure:"sentry"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Activity   ActivityConfig   `mapstructure:"activity"`
	Events     EventsConfig     `mapstructure:"events"`
}

type DeploymentConfig struct {
	Mode types.RunMode `mapstructure:"mode" validate:"required,oneof=local api aws_lambda_api"`
}

type ServerConfig struct {
	Address string `mapstructure:"address" validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `mapstructure:"level" validate:"required"`
}

type PostgresConfig struct {
	Host                   string `mapstructure:"host"`
	Port                   int    `mapstructure:"port"`
	User                   string `mapstructure:"user"`
	Password               string `mapstructure:"password"`
	DBName                 string `mapstructure:"dbname"`
	SSLMode                string `mapstructure:"sslmode"`
	MaxOpenConns           int    `mapstructure:"max_open_conns"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes"`
	// LockTimeout bounds how long a transaction waits for an invoice row lock
	LockTimeout time.Duration `mapstructure:"lock_timeout"`
}

// LedgerConfig tunes the payment ledger reconciliation engine
type LedgerConfig struct {
	DeletePolicy types.PaymentDeletePolicy `mapstructure:"delete_policy" validate:"required,oneof=literal clamped"`
	// MaxRetries is the number of extra attempts after a lock or serialization conflict
	MaxRetries           uint64        `mapstructure:"max_retries"`
	RetryInitialInterval time.Duration `mapstructure:"retry_initial_interval"`
	TxTimeout            time.Duration `mapstructure:"tx_timeout"`
}

type InvoiceConfig struct {
	// SweepOnList runs the overdue sweep before every invoice listing
	SweepOnList           bool                        `mapstructure:"sweep_on_list"`
	SignatureStatusPolicy types.SignatureStatusPolicy `mapstructure:"signature_status_policy" validate:"required,oneof=reset_to_draft preserve"`
	PublicBaseURL         string                      `mapstructure:"public_base_url"`
	DefaultCurrency       string                      `mapstructure:"default_currency"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type EmailConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	APIKey      string `mapstructure:"api_key"`
	FromAddress string `mapstructure:"from_address"`
	ReplyTo     string `mapstructure:"reply_to"`
}

type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// RateLimitConfig applies to the unauthenticated public routes
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type ActivityConfig struct {
	Capacity int `mapstructure:"capacity"`
}

// EventsConfig tunes the in-process event router feeding the activity log
type EventsConfig struct {
	MaxRetries      int           `mapstructure:"max_retries"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

func NewConfig() (*Configuration, error) {
	// a missing .env is not an error
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/invoicely")

	v.SetEnvPrefix("INVOICELY")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	d := GetDefaultConfig()
	v.SetDefault("deployment.mode", d.Deployment.Mode)
	v.SetDefault("server.address", d.Server.Address)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("postgres.host", d.Postgres.Host)
	v.SetDefault("postgres.port", d.Postgres.Port)
	v.SetDefault("postgres.user", d.Postgres.User)
	v.SetDefault("postgres.password", d.Postgres.Password)
	v.SetDefault("postgres.dbname", d.Postgres.DBName)
	v.SetDefault("postgres.sslmode", d.Postgres.SSLMode)
	v.SetDefault("postgres.max_open_conns", d.Postgres.MaxOpenConns)
	v.SetDefault("postgres.max_idle_conns", d.Postgres.MaxIdleConns)
	v.SetDefault("postgres.conn_max_lifetime_minutes", d.Postgres.ConnMaxLifetimeMinutes)
	v.SetDefault("postgres.lock_timeout", d.Postgres.LockTimeout)
	v.SetDefault("ledger.delete_policy", d.Ledger.DeletePolicy)
	v.SetDefault("ledger.max_retries", d.Ledger.MaxRetries)
	v.SetDefault("ledger.retry_initial_interval", d.Ledger.RetryInitialInterval)
	v.SetDefault("ledger.tx_timeout", d.Ledger.TxTimeout)
	v.SetDefault("invoice.sweep_on_list", d.Invoice.SweepOnList)
	v.SetDefault("invoice.signature_status_policy", d.Invoice.SignatureStatusPolicy)
	v.SetDefault("invoice.public_base_url", d.Invoice.PublicBaseURL)
	v.SetDefault("invoice.default_currency", d.Invoice.DefaultCurrency)
	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("ratelimit.enabled", d.RateLimit.Enabled)
	v.SetDefault("ratelimit.requests_per_second", d.RateLimit.RequestsPerSecond)
	v.SetDefault("ratelimit.burst", d.RateLimit.Burst)
	v.SetDefault("activity.capacity", d.Activity.Capacity)
	v.SetDefault("sentry.sample_rate", d.Sentry.SampleRate)
	v.SetDefault("events.max_retries", d.Events.MaxRetries)
	v.SetDefault("events.initial_interval", d.Events.InitialInterval)
	v.SetDefault("events.max_interval", d.Events.MaxInterval)
	v.SetDefault("events.multiplier", d.Events.Multiplier)
	v.SetDefault("events.max_elapsed_time", d.Events.MaxElapsedTime)
}

func (c Configuration) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

// GetDefaultConfig returns a default configuration for local development
// This is useful for running scripts, tests or other non-web applications
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Server:     ServerConfig{Address: ":8080"},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Postgres: PostgresConfig{
			Host:                   "localhost",
			Port:                   5432,
			User:                   "invoicely",
			Password:               "invoicely",
			DBName:                 "invoicely",
			SSLMode:                "disable",
			MaxOpenConns:           10,
			MaxIdleConns:           5,
			ConnMaxLifetimeMinutes: 30,
			LockTimeout:            5 * time.Second,
		},
		Ledger: LedgerConfig{
			DeletePolicy:         types.PaymentDeleteClamped,
			MaxRetries:           3,
			RetryInitialInterval: 50 * time.Millisecond,
			TxTimeout:            15 * time.Second,
		},
		Invoice: InvoiceConfig{
			SweepOnList:           true,
			SignatureStatusPolicy: types.SignatureStatusResetToDraft,
			PublicBaseURL:         "http://localhost:3000",
			DefaultCurrency:       types.DefaultCurrency,
		},
		Cache:     CacheConfig{Enabled: true, TTL: 10 * time.Minute},
		RateLimit: RateLimitConfig{Enabled: true, RequestsPerSecond: 5, Burst: 10},
		Activity:  ActivityConfig{Capacity: 100},
		Sentry:    SentryConfig{SampleRate: 1.0},
		Events: EventsConfig{
			MaxRetries:      3,
			InitialInterval: 100 * time.Millisecond,
			MaxInterval:     2 * time.Second,
			Multiplier:      2,
			MaxElapsedTime:  10 * time.Second,
		},
	}
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s host=%s port=%d sslmode=%s",
		c.User,
		c.Password,
		c.DBName,
		c.Host,
		c.Port,
		c.SSLMode,
	)
}

// GetURL returns the connection string in URL form, as expected by the migration driver
func (c PostgresConfig) GetURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.DBName,
		c.SSLMode,
	)
}
