package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Reply modes
const (
	// ModeSync waits for extraction and dispatch and replies with the outcome.
	ModeSync = "sync"
	// ModeAsync replies with a placeholder and schedules out of band.
	ModeAsync = "async"
	// ModeRelay forwards authenticated free-form turns to the inbox queue.
	ModeRelay = "relay"
)

// EnvPrefix is prepended to every key that has no legacy environment name
const EnvPrefix = "SMS_HELPER"

// Config holds all configuration settings
type Config struct {
	Server struct {
		Port int    `mapstructure:"port"`
		Host string `mapstructure:"host"`
		// PublicURL is the externally visible webhook URL, used for signature checks
		PublicURL string `mapstructure:"public_url"`
		// ForceHTTPS redirects plain HTTP requests
		ForceHTTPS bool `mapstructure:"force_https"`
		// CORSOrigin is the single origin allowed to call the admin API
		CORSOrigin string `mapstructure:"cors_origin"`
	} `mapstructure:"server"`
	Database struct {
		DSN           string `mapstructure:"dsn"`
		EncryptionKey string `mapstructure:"encryption_key"`
	} `mapstructure:"database"`
	JWT struct {
		Secret      string        `mapstructure:"secret"`
		TokenExpiry time.Duration `mapstructure:"token_expiry"`
	} `mapstructure:"jwt"`
	Admin struct {
		Username     string `mapstructure:"username"`
		PasswordHash string `mapstructure:"password_hash"`
		// TOTPSecret enables a second factor on the admin login when set
		TOTPSecret string `mapstructure:"totp_secret"`
	} `mapstructure:"admin"`
	Logging struct {
		Level   string `mapstructure:"level"`
		Path    string `mapstructure:"path"`
		Console bool   `mapstructure:"console"`
	} `mapstructure:"logging"`
	Twilio struct {
		AccountSID        string `mapstructure:"account_sid"`
		AuthToken         string `mapstructure:"auth_token"`
		ValidateSignature bool   `mapstructure:"validate_signature"`
		HistoryLimit      int    `mapstructure:"history_limit"`
	} `mapstructure:"twilio"`
	OpenAI struct {
		APIKey  string `mapstructure:"api_key"`
		Model   string `mapstructure:"model"`
		BaseURL string `mapstructure:"base_url"`
	} `mapstructure:"openai"`
	Security struct {
		PIN string `mapstructure:"pin"`
	} `mapstructure:"security"`
	Assistant struct {
		Mode             string        `mapstructure:"mode"`
		ResetKeyword     string        `mapstructure:"reset_keyword"`
		WelcomeText      string        `mapstructure:"welcome_text"`
		BindSenderNumber bool          `mapstructure:"bind_sender_number"`
		AsyncTimeout     time.Duration `mapstructure:"async_timeout"`
	} `mapstructure:"assistant"`
	Scheduler struct {
		Endpoint      string        `mapstructure:"endpoint"`
		DefaultNumber string        `mapstructure:"default_number"`
		WorkNumber    string        `mapstructure:"work_number"`
		Timeout       time.Duration `mapstructure:"timeout"`
	} `mapstructure:"scheduler"`
	TimeService struct {
		URL     string        `mapstructure:"url"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"time_service"`
	Queue struct {
		URL  string `mapstructure:"url"`
		Name string `mapstructure:"name"`
	} `mapstructure:"queue"`
	Telemetry struct {
		SentryDSN        string  `mapstructure:"sentry_dsn"`
		Environment      string  `mapstructure:"environment"`
		Required         bool    `mapstructure:"required"`
		TracesSampleRate float64 `mapstructure:"traces_sample_rate"`
	} `mapstructure:"telemetry"`
}

// legacyEnv maps config keys to the variable names used by existing deployments
var legacyEnv = map[string][]string{
	"twilio.account_sid":   {"ACCOUNT_SID", "TWILIO_ACCOUNT_SID"},
	"twilio.auth_token":    {"AUTH_TOKEN", "TWILIO_AUTH_TOKEN"},
	"security.pin":         {"SECURITY_PIN"},
	"scheduler.endpoint":   {"AMAZON_ENDPOINT"},
	"queue.url":            {"AMAZON_QUEUE_ENDPOINT", "RABBITMQ_URL"},
	"telemetry.sentry_dsn": {"SENTRY_DSN"},
	"openai.api_key":       {"OPENAI_API_KEY"},
	"openai.model":         {"OPENAI_MODEL"},
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	config := &Config{}
	config.Server.Port = 8080
	config.Server.Host = "localhost"
	config.Database.DSN = "file:sms.db?cache=shared&mode=rwc"
	config.JWT.Secret = DefaultJWTSecret
	config.JWT.TokenExpiry = 24 * time.Hour
	config.Admin.Username = "admin"
	config.Logging.Level = "info"
	config.Logging.Path = "server.log"
	config.Logging.Console = true
	config.Twilio.HistoryLimit = 100
	config.OpenAI.Model = "gpt-3.5-turbo-1106"
	config.Assistant.Mode = ModeSync
	config.Assistant.ResetKeyword = "about"
	config.Assistant.WelcomeText = DefaultWelcomeText
	config.Assistant.AsyncTimeout = 2 * time.Minute
	config.Scheduler.DefaultNumber = "+15554443333"
	config.Scheduler.WorkNumber = "+12221110000"
	config.Scheduler.Timeout = 30 * time.Second
	config.TimeService.URL = "http://worldtimeapi.org/api/timezone/America/Los_Angeles"
	config.TimeService.Timeout = 10 * time.Second
	config.Queue.Name = "sms.inbox"
	config.Telemetry.Environment = "production"
	config.Telemetry.Required = true
	config.Telemetry.TracesSampleRate = 1.0
	return config
}

// DefaultJWTSecret is a placeholder; Validate refuses it while the admin API is enabled
const DefaultJWTSecret = "your-secret-key"

// AdminEnabled reports whether the admin login and turn log API are served
func (c *Config) AdminEnabled() bool {
	return c.Admin.PasswordHash != ""
}

// DefaultWelcomeText is sent after a correct PIN and for the reset keyword
const DefaultWelcomeText = `Welcome to your SMS assistant.
  - I can schedule calls and text reminders for you.
  - I can answer any questions, within reason.
  - Text 'about' to see this message again`

// Load reads configuration from an optional JSON file and the environment.
// A .env file in the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	if path != "" {
		cleanPath := filepath.Clean(path)
		fileInfo, err := os.Stat(cleanPath)
		if err != nil {
			return nil, fmt.Errorf("config file error: %w", err)
		}
		if !fileInfo.Mode().IsRegular() {
			return nil, fmt.Errorf("config path is not a regular file")
		}
		v.SetConfigFile(cleanPath)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range legacyEnv {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return &config, nil
}

// Validate reports the first missing or inconsistent setting.
// Missing values are fatal at startup, never checked per request.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return errors.New("invalid server port")
	}
	if c.Twilio.AccountSID == "" || c.Twilio.AuthToken == "" {
		return errors.New("twilio account SID and auth token are required (ACCOUNT_SID, AUTH_TOKEN)")
	}
	if strings.TrimSpace(c.Security.PIN) == "" {
		return errors.New("security PIN is required (SECURITY_PIN)")
	}
	if c.Assistant.ResetKeyword == "" {
		return errors.New("reset keyword is required")
	}
	if c.AdminEnabled() {
		if s := c.JWT.Secret; s == "" || s == DefaultJWTSecret {
			return errors.New("a non-default JWT secret is required when the admin API is enabled (SMS_HELPER_JWT_SECRET)")
		}
	}
	if o := c.Server.CORSOrigin; o != "" && !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
		return fmt.Errorf("cors origin %q must start with http:// or https://", o)
	}
	if k := c.Database.EncryptionKey; k != "" && len(k) != 32 {
		return errors.New("database encryption key must be 32 bytes")
	}
	if c.Telemetry.Required && c.Telemetry.SentryDSN == "" {
		return errors.New("sentry DSN is required (SENTRY_DSN)")
	}

	switch c.Assistant.Mode {
	case ModeSync, ModeAsync:
		if c.OpenAI.APIKey == "" {
			return errors.New("OpenAI API key is required (OPENAI_API_KEY)")
		}
		if c.Scheduler.Endpoint == "" {
			return errors.New("scheduler endpoint is required (AMAZON_ENDPOINT)")
		}
	case ModeRelay:
		if c.Queue.URL == "" {
			return errors.New("queue URL is required in relay mode (AMAZON_QUEUE_ENDPOINT)")
		}
	default:
		return fmt.Errorf("unknown assistant mode %q", c.Assistant.Mode)
	}

	return nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.public_url", d.Server.PublicURL)
	v.SetDefault("server.force_https", d.Server.ForceHTTPS)
	v.SetDefault("server.cors_origin", d.Server.CORSOrigin)
	v.SetDefault("database.dsn", d.Database.DSN)
	v.SetDefault("database.encryption_key", d.Database.EncryptionKey)
	v.SetDefault("jwt.secret", d.JWT.Secret)
	v.SetDefault("jwt.token_expiry", d.JWT.TokenExpiry)
	v.SetDefault("admin.username", d.Admin.Username)
	v.SetDefault("admin.password_hash", d.Admin.PasswordHash)
	v.SetDefault("admin.totp_secret", d.Admin.TOTPSecret)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.path", d.Logging.Path)
	v.SetDefault("logging.console", d.Logging.Console)
	v.SetDefault("twilio.account_sid", d.Twilio.AccountSID)
	v.SetDefault("twilio.auth_token", d.Twilio.AuthToken)
	v.SetDefault("twilio.validate_signature", d.Twilio.ValidateSignature)
	v.SetDefault("twilio.history_limit", d.Twilio.HistoryLimit)
	v.SetDefault("openai.api_key", d.OpenAI.APIKey)
	v.SetDefault("openai.model", d.OpenAI.Model)
	v.SetDefault("openai.base_url", d.OpenAI.BaseURL)
	v.SetDefault("security.pin", d.Security.PIN)
	v.SetDefault("assistant.mode", d.Assistant.Mode)
	v.SetDefault("assistant.reset_keyword", d.Assistant.ResetKeyword)
	v.SetDefault("assistant.welcome_text", d.Assistant.WelcomeText)
	v.SetDefault("assistant.bind_sender_number", d.Assistant.BindSenderNumber)
	v.SetDefault("assistant.async_timeout", d.Assistant.AsyncTimeout)
	v.SetDefault("scheduler.endpoint", d.Scheduler.Endpoint)
	v.SetDefault("scheduler.default_number", d.Scheduler.DefaultNumber)
	v.SetDefault("scheduler.work_number", d.Scheduler.WorkNumber)
	v.SetDefault("scheduler.timeout", d.Scheduler.Timeout)
	v.SetDefault("time_service.url", d.TimeService.URL)
	v.SetDefault("time_service.timeout", d.TimeService.Timeout)
	v.SetDefault("queue.url", d.Queue.URL)
	v.SetDefault("queue.name", d.Queue.Name)
	v.SetDefault("telemetry.sentry_dsn", d.Telemetry.SentryDSN)
	v.SetDefault("telemetry.environment", d.Telemetry.Environment)
	v.SetDefault("telemetry.required", d.Telemetry.Required)
	v.SetDefault("telemetry.traces_sample_rate", d.Telemetry.TracesSampleRate)
}
