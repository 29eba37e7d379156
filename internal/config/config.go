// Package config loads the host configuration from an INI file, a .env file
// and SYSTEM_STATS_* environment variables, in increasing precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"
)

const (
	DefaultPort          = "9182"
	DefaultNatsURL       = "nats://127.0.0.1:4222"
	DefaultSubjectPrefix = "system_stats"
	DefaultPushInterval  = time.Second
	DefaultLogLevel      = "info"
)

// Config holds runtime configuration.
type Config struct {
	SystemName string

	Port string

	NatsURL       string
	SubjectPrefix string
	PushInterval  time.Duration

	Log struct {
		Level      string
		File       string
		MaxSizeMB  int
		MaxBackups int
		MaxAgeDays int
	}
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	cfg := &Config{
		Port:          DefaultPort,
		NatsURL:       DefaultNatsURL,
		SubjectPrefix: DefaultSubjectPrefix,
		PushInterval:  DefaultPushInterval,
	}
	cfg.Log.Level = DefaultLogLevel
	cfg.Log.MaxSizeMB = 10
	cfg.Log.MaxBackups = 3
	cfg.Log.MaxAgeDays = 28
	return cfg
}

// Load reads path if it exists, then applies the environment. A missing
// file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			f, err := ini.Load(path)
			if err != nil {
				return nil, fmt.Errorf("load config %s: %w", path, err)
			}
			if err := cfg.loadINI(f); err != nil {
				return nil, fmt.Errorf("config %s: %w", path, err)
			}
		}
	}

	// .env is optional
	_ = godotenv.Load()

	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadINI(f *ini.File) error {
	if sec := f.Section("system"); sec.HasKey("name") {
		c.SystemName = sec.Key("name").String()
	}

	if sec := f.Section("server"); sec.HasKey("port") {
		c.Port = sec.Key("port").String()
	}

	nats := f.Section("nats")
	if nats.HasKey("url") {
		c.NatsURL = nats.Key("url").String()
	}
	if nats.HasKey("subject_prefix") {
		c.SubjectPrefix = nats.Key("subject_prefix").String()
	}
	if nats.HasKey("push_interval") {
		d, err := nats.Key("push_interval").Duration()
		if err != nil {
			return fmt.Errorf("nats.push_interval: %w", err)
		}
		c.PushInterval = d
	}

	log := f.Section("log")
	if log.HasKey("level") {
		c.Log.Level = log.Key("level").String()
	}
	if log.HasKey("file") {
		c.Log.File = log.Key("file").String()
	}
	c.Log.MaxSizeMB = log.Key("max_size_mb").MustInt(c.Log.MaxSizeMB)
	c.Log.MaxBackups = log.Key("max_backups").MustInt(c.Log.MaxBackups)
	c.Log.MaxAgeDays = log.Key("max_age_days").MustInt(c.Log.MaxAgeDays)
	return nil
}

func (c *Config) loadEnv() error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString("SYSTEM_STATS_SYSTEM_NAME", &c.SystemName)
	setString("SYSTEM_STATS_PORT", &c.Port)
	setString("SYSTEM_STATS_NATS_URL", &c.NatsURL)
	setString("SYSTEM_STATS_SUBJECT_PREFIX", &c.SubjectPrefix)
	setString("SYSTEM_STATS_LOG_LEVEL", &c.Log.Level)
	setString("SYSTEM_STATS_LOG_FILE", &c.Log.File)

	if raw := os.Getenv("SYSTEM_STATS_PUSH_INTERVAL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("SYSTEM_STATS_PUSH_INTERVAL: %w", err)
		}
		c.PushInterval = d
	}
	if raw := os.Getenv("SYSTEM_STATS_LOG_MAX_SIZE_MB"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("SYSTEM_STATS_LOG_MAX_SIZE_MB: %w", err)
		}
		c.Log.MaxSizeMB = n
	}
	return nil
}

// ResolveSystemName fills SystemName from the hostname when unset.
func (c *Config) ResolveSystemName() error {
	if c.SystemName != "" {
		return nil
	}
	hn, err := os.Hostname()
	if err != nil {
		return fmt.Errorf("system name not set and hostname unavailable: %w", err)
	}
	c.SystemName = hn
	return nil
}

// Validate checks values the host cannot run without.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port must be set")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid port %q", c.Port)
	}
	if c.PushInterval <= 0 {
		return fmt.Errorf("push interval must be positive, got %s", c.PushInterval)
	}
	return nil
}
