package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/ariebrainware/medelle-reminder/util"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	MailDriverSMTP = "smtp"
	MailDriverLog  = "log"
)

var (
	storeDrivers = []string{"json", "bolt", "sqlite", "mysql", "postgres"}
	mailDrivers  = []string{MailDriverSMTP, MailDriverLog}
)

// Config holds the application's configuration values.
type Config struct {
	AppName  string `mapstructure:"APPNAME"`
	AppEnv   string `mapstructure:"APPENV"`
	AppPort  uint16 `mapstructure:"APPPORT"`
	GinMode  string `mapstructure:"GINMODE"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	StoreDriver       string `mapstructure:"STORE_DRIVER"`
	StorePath         string `mapstructure:"STORE_PATH"`
	StoreDSN          string `mapstructure:"STORE_DSN"`
	StoreResetOnStart bool   `mapstructure:"STORE_RESET_ON_START"`

	Timezone      string `mapstructure:"TZ_NAME"`
	ReminderAt    string `mapstructure:"REMINDER_AT"`
	ReminderDedup bool   `mapstructure:"REMINDER_DEDUP"`

	MailDriver      string        `mapstructure:"MAIL_DRIVER"`
	SMTPHost        string        `mapstructure:"SMTP_HOST"`
	SMTPPort        int           `mapstructure:"SMTP_PORT"`
	SMTPUser        string        `mapstructure:"SMTP_USER"`
	SMTPPassword    string        `mapstructure:"SMTP_PASSWORD"`
	MailFrom        string        `mapstructure:"MAIL_FROM"`
	MailCC          string        `mapstructure:"MAIL_CC"`
	MailSendTimeout time.Duration `mapstructure:"MAIL_SEND_TIMEOUT"`
	MailPreviewURL  string        `mapstructure:"MAIL_PREVIEW_URL"`
	OperatorEmail   string        `mapstructure:"OPERATOR_EMAIL"`

	RedisEnabled  bool   `mapstructure:"REDIS_ENABLED"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	TestSendRateLimit  int           `mapstructure:"TEST_SEND_RATE_LIMIT"`
	TestSendRateWindow time.Duration `mapstructure:"TEST_SEND_RATE_WINDOW"`
}

var config *Config
var once sync.Once

// LoadConfig loads the environment variables (optionally from a .env file) and
// returns a singleton Config instance.
func LoadConfig() *Config {
	once.Do(func() {
		cfg, err := Load()
		if err != nil {
			log.Fatalf("Error loading configuration: %v", err)
		}
		config = cfg
	})
	return config
}

// Load reads the configuration without caching it.
func Load() (*Config, error) {
	// A missing .env file is fine, the process environment is authoritative.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	cfg.MailDriver = strings.ToLower(strings.TrimSpace(cfg.MailDriver))
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	defaults := map[string]interface{}{
		"APPNAME":               "Medelle Estética",
		"APPENV":                "development",
		"APPPORT":               3000,
		"GINMODE":               "debug",
		"LOG_LEVEL":             "info",
		"STORE_DRIVER":          "json",
		"STORE_PATH":            "data/patients.json",
		"STORE_DSN":             "",
		"STORE_RESET_ON_START":  false,
		"TZ_NAME":               "America/Sao_Paulo",
		"REMINDER_AT":           "09:00",
		"REMINDER_DEDUP":        false,
		"MAIL_DRIVER":           MailDriverSMTP,
		"SMTP_HOST":             "",
		"SMTP_PORT":             587,
		"SMTP_USER":             "",
		"SMTP_PASSWORD":         "",
		"MAIL_FROM":             `"Medelle Estética" <contato@medelle.com>`,
		"MAIL_CC":               "",
		"MAIL_SEND_TIMEOUT":     30 * time.Second,
		"MAIL_PREVIEW_URL":      "",
		"OPERATOR_EMAIL":        "",
		"REDIS_ENABLED":         false,
		"REDIS_ADDR":            "localhost:6379",
		"REDIS_PASSWORD":        "",
		"REDIS_DB":              0,
		"TEST_SEND_RATE_LIMIT":  5,
		"TEST_SEND_RATE_WINDOW": 15 * time.Minute,
	}
	// Unmarshal only sees keys viper knows about, registering a default also
	// binds the environment variable of the same name.
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

// Validate checks that the configuration is safe to run. It refuses to start
// with an SMTP transport lacking credentials instead of falling back to a
// built-in secret.
func (c *Config) Validate() error {
	if !util.Contains(c.StoreDriver, storeDrivers) {
		return fmt.Errorf("STORE_DRIVER must be one of %s, got %q", strings.Join(storeDrivers, ", "), c.StoreDriver)
	}
	switch c.StoreDriver {
	case "json", "bolt", "sqlite":
		if c.StorePath == "" && c.StoreDSN == "" {
			return fmt.Errorf("STORE_PATH is required for STORE_DRIVER=%s", c.StoreDriver)
		}
	default:
		if c.StoreDSN == "" {
			return fmt.Errorf("STORE_DSN is required for STORE_DRIVER=%s", c.StoreDriver)
		}
	}

	if _, err := c.Location(); err != nil {
		return fmt.Errorf("TZ_NAME %q is not a valid IANA zone: %w", c.Timezone, err)
	}
	if _, err := time.Parse("15:04", c.ReminderAt); err != nil {
		return fmt.Errorf("REMINDER_AT must use the HH:MM format, got %q", c.ReminderAt)
	}

	if !util.Contains(c.MailDriver, mailDrivers) {
		return fmt.Errorf("MAIL_DRIVER must be one of %s, got %q", strings.Join(mailDrivers, ", "), c.MailDriver)
	}
	if c.OperatorEmail == "" {
		return errors.New("OPERATOR_EMAIL is required")
	}
	if c.MailFrom == "" {
		return errors.New("MAIL_FROM is required")
	}
	if c.MailSendTimeout <= 0 {
		return errors.New("MAIL_SEND_TIMEOUT must be positive")
	}
	if c.MailDriver == MailDriverSMTP {
		if c.SMTPHost == "" {
			return errors.New("SMTP_HOST is required when MAIL_DRIVER=smtp")
		}
		if c.SMTPPassword == "" {
			return errors.New("SMTP_PASSWORD is required when MAIL_DRIVER=smtp")
		}
	}
	return nil
}

// Location resolves the zone reminders are computed in.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

func (c *Config) IsTest() bool {
	return c.AppEnv == "test"
}
