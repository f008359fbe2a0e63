// Package config loads inboxsweep settings from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"inboxsweep/internal/classify"
	"inboxsweep/internal/gmail"
	"inboxsweep/internal/logging"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "INBOXSWEEP_"

type Config struct {
	Scan        ScanConfig        `yaml:"scan"`
	Classifier  ClassifierConfig  `yaml:"classifier"`
	Unsubscribe UnsubscribeConfig `yaml:"unsubscribe"`
	Storage     StorageConfig     `yaml:"storage"`
	OAuth       OAuthConfig       `yaml:"oauth"`
	Server      ServerConfig      `yaml:"server"`
	Log         logging.Config    `yaml:"log"`
}

type ScanConfig struct {
	MaxPages       int    `yaml:"max_pages"`
	Mode           string `yaml:"mode"`
	PageSize       int    `yaml:"page_size"`
	SettleMS       int    `yaml:"settle_ms"`
	Fanout         int    `yaml:"fanout"`
	Retries        int    `yaml:"retries"`
	GmailQuery     string `yaml:"gmail_query"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

func (c ScanConfig) SettleDelay() time.Duration {
	return time.Duration(c.SettleMS) * time.Millisecond
}

func (c ScanConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type ClassifierConfig struct {
	Threshold     int      `yaml:"threshold"`
	High          []string `yaml:"high"`
	Medium        []string `yaml:"medium"`
	Low           []string `yaml:"low"`
	Transactional []string `yaml:"transactional"`
}

// Rules returns the built-in rules extended with the configured vocabulary.
func (c ClassifierConfig) Rules() classify.Rules {
	r := classify.DefaultRules().Extend(c.High, c.Medium, c.Low, c.Transactional)
	if c.Threshold > 0 {
		r.Threshold = c.Threshold
	}
	return r
}

type UnsubscribeConfig struct {
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	UserAgent      string `yaml:"user_agent"`
}

func (c UnsubscribeConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// KV backends.
const (
	KVMemory = "memory"
	KVSQLite = "sqlite"
	KVRedis  = "redis"
)

type StorageConfig struct {
	SQLitePath  string `yaml:"sqlite_path"`
	KV          string `yaml:"kv"`
	RedisAddr   string `yaml:"redis_addr"`
	RedisPrefix string `yaml:"redis_prefix"`
}

type OAuthConfig struct {
	ClientSecretPath string `yaml:"client_secret_path"`
}

type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Default returns the configuration used when no file is given.
func Default() Config {
	cfg := Config{Log: logging.Config{Redact: true}}
	applyDefaults(&cfg)
	return cfg
}

// Load reads a YAML file and fills unset fields with defaults. An empty path
// yields Default().
func Load(path string) (*Config, error) {
	cfg := Config{Log: logging.Config{Redact: true}}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Scan.MaxPages == 0 {
		cfg.Scan.MaxPages = 5
	}
	if cfg.Scan.Mode == "" {
		cfg.Scan.Mode = "quick"
	}
	if cfg.Scan.PageSize == 0 {
		cfg.Scan.PageSize = 50
	}
	if cfg.Scan.SettleMS == 0 {
		cfg.Scan.SettleMS = 2000
	}
	if cfg.Scan.Fanout == 0 {
		cfg.Scan.Fanout = 10
	}
	if cfg.Scan.Retries == 0 {
		cfg.Scan.Retries = 3
	}
	if cfg.Scan.GmailQuery == "" {
		cfg.Scan.GmailQuery = gmail.DefaultQuery
	}
	if cfg.Scan.TimeoutSeconds == 0 {
		cfg.Scan.TimeoutSeconds = 30
	}
	if cfg.Unsubscribe.TimeoutSeconds == 0 {
		cfg.Unsubscribe.TimeoutSeconds = 30
	}
	if cfg.Unsubscribe.UserAgent == "" {
		cfg.Unsubscribe.UserAgent = "inboxsweep/1.0"
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "inboxsweep.db"
	}
	if cfg.Storage.KV == "" {
		cfg.Storage.KV = KVSQLite
	}
	if cfg.Storage.RedisAddr == "" {
		cfg.Storage.RedisAddr = "localhost:6379"
	}
	if cfg.Storage.RedisPrefix == "" {
		cfg.Storage.RedisPrefix = "inboxsweep:"
	}
	if cfg.OAuth.ClientSecretPath == "" {
		cfg.OAuth.ClientSecretPath = "credentials.json"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8787
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
}

// Validate rejects values no component can run with.
func (c Config) Validate() error {
	switch c.Scan.Mode {
	case "quick", "deep":
	default:
		return fmt.Errorf("scan.mode %q: want quick or deep", c.Scan.Mode)
	}
	switch c.Storage.KV {
	case KVMemory, KVSQLite, KVRedis:
	default:
		return fmt.Errorf("storage.kv %q: want memory, sqlite or redis", c.Storage.KV)
	}
	if c.Scan.MaxPages < 1 || c.Scan.PageSize < 1 || c.Scan.Fanout < 1 {
		return fmt.Errorf("scan.max_pages, scan.page_size and scan.fanout must be positive")
	}
	return nil
}

// LoadFromEnv loads .env when present, then the YAML file, then applies
// INBOXSWEEP_* overrides.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := env("SCAN_MODE"); v != "" {
		cfg.Scan.Mode = v
	}
	if n, ok := envInt("SCAN_MAX_PAGES"); ok {
		cfg.Scan.MaxPages = n
	}
	if v := env("GMAIL_QUERY"); v != "" {
		cfg.Scan.GmailQuery = v
	}
	if n, ok := envInt("CLASSIFIER_THRESHOLD"); ok {
		cfg.Classifier.Threshold = n
	}
	if v := env("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := env("KV"); v != "" {
		cfg.Storage.KV = v
	}
	if v := env("REDIS_ADDR"); v != "" {
		cfg.Storage.RedisAddr = v
	}
	if v := env("CLIENT_SECRET_PATH"); v != "" {
		cfg.OAuth.ClientSecretPath = v
	}
	if v := env("HOST"); v != "" {
		cfg.Server.Host = v
	}
	if n, ok := envInt("PORT"); ok {
		cfg.Server.Port = n
	}
	if v := env("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := env("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := env("LOG_REDACT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Log.Redact = b
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func env(name string) string {
	return strings.TrimSpace(os.Getenv(EnvPrefix + name))
}

func envInt(name string) (int, bool) {
	v := env(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
