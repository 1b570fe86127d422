// Package config loads the argview configuration file.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/aretw0/argview/internal/logging"
	"github.com/aretw0/argview/pkg/adapters/websocket"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Store kinds.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// Defaults.
const (
	DefaultURL              = "http://localhost:8080"
	DefaultLogLevel         = "info"
	DefaultSubscriberBuffer = 16
	DefaultLockTTL          = 30 * time.Second
)

// Config is the complete runtime configuration of the CLI.
type Config struct {
	// URL of the remote process. http(s) is mapped to ws(s).
	URL string `yaml:"url"`
	// Protocol spoken with the remote: "socketio" (default) or "envelope".
	Protocol string `yaml:"protocol"`
	// Listen is the address of the renderer HTTP API. Empty disables it.
	Listen   string `yaml:"listen"`
	LogLevel string `yaml:"log_level"`
	// RunID names the observed run. A random id is generated when empty.
	RunID string `yaml:"run_id"`

	Store StoreConfig `yaml:"store"`
	Lock  LockConfig  `yaml:"lock"`

	// Journal is the sqlite file inbound messages are recorded to. Empty disables recording.
	Journal string `yaml:"journal"`
	// Metrics exposes Prometheus metrics on /metrics of the HTTP API.
	Metrics          bool `yaml:"metrics"`
	SubscriberBuffer int  `yaml:"subscriber_buffer"`
}

// StoreConfig selects where published snapshots are retained.
type StoreConfig struct {
	Kind string `yaml:"kind"`
	// Path is the directory of the file store.
	Path          string        `yaml:"path"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	TTL           time.Duration `yaml:"ttl"`

	// Redact lists regular expressions; node attributes whose key matches
	// are masked in retained snapshots.
	Redact []string `yaml:"redact"`
	// EncryptionKey is a base64 AES-256 key. When set, retained trees are encrypted.
	EncryptionKey string `yaml:"encryption_key"`
	// FallbackKeys still decrypt snapshots written before a key rotation.
	FallbackKeys []string `yaml:"fallback_keys"`
}

// Keys decodes the encryption keys. active is nil when encryption is off.
func (s StoreConfig) Keys() (active []byte, fallback [][]byte, err error) {
	if s.EncryptionKey == "" {
		return nil, nil, nil
	}
	if active, err = decodeKey("store.encryption_key", s.EncryptionKey); err != nil {
		return nil, nil, err
	}
	for i, k := range s.FallbackKeys {
		key, err := decodeKey(fmt.Sprintf("store.fallback_keys[%d]", i), k)
		if err != nil {
			return nil, nil, err
		}
		fallback = append(fallback, key)
	}
	return active, fallback, nil
}

func decodeKey(field, value string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("%s must decode to 32 bytes, got %d", field, len(key))
	}
	return key, nil
}

// LockConfig enables the distributed lock around every mutation.
// It requires the redis store.
type LockConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		URL:              DefaultURL,
		LogLevel:         DefaultLogLevel,
		Store:            StoreConfig{Kind: StoreMemory},
		Lock:             LockConfig{TTL: DefaultLockTTL},
		SubscriberBuffer: DefaultSubscriberBuffer,
	}
}

// Load reads a YAML (or JSON) file on top of the defaults.
// An empty path returns the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := Decode(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Decode merges a YAML document into cfg. Values are weakly typed, so
// "30s" and "true" are accepted for durations and booleans alike.
func Decode(data []byte, cfg *Config) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if raw == nil {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "yaml",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		Result:           cfg,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(raw); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Validate reports inconsistent settings.
func (c Config) Validate() error {
	var errs []error
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if _, err := websocket.ParseProtocol(c.Protocol); err != nil {
		errs = append(errs, err)
	}
	switch c.Store.Kind {
	case StoreMemory:
	case StoreFile:
	case StoreRedis:
		if c.Store.RedisAddr == "" {
			errs = append(errs, errors.New("store.redis_addr is required for the redis store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store kind %q", c.Store.Kind))
	}
	if c.Store.TTL < 0 {
		errs = append(errs, errors.New("store.ttl must not be negative"))
	}
	if _, _, err := c.Store.Keys(); err != nil {
		errs = append(errs, err)
	}
	for _, p := range c.Store.Redact {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("store.redact: %w", err))
		}
	}
	if c.Lock.Enabled {
		if c.Store.Kind != StoreRedis {
			errs = append(errs, errors.New("lock.enabled requires the redis store"))
		}
		if c.Lock.TTL <= 0 {
			errs = append(errs, errors.New("lock.ttl must be positive"))
		}
	}
	if c.SubscriberBuffer < 1 {
		errs = append(errs, errors.New("subscriber_buffer must be at least 1"))
	}
	if c.Metrics && c.Listen == "" {
		errs = append(errs, errors.New("metrics requires listen"))
	}
	return errors.Join(errs...)
}
