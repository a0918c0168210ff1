package types

import (
	"errors"
	"time"
)

// Config holds the lock backend and runtime parameters for the memento store.
type Config struct {
	DataDir        string `json:"data_dir" yaml:"data_dir"`
	LockBackend    string `json:"lock_backend" yaml:"lock_backend"`
	RedisAddr      string `json:"redis_addr" yaml:"redis_addr"`
	RedisNamespace string `json:"redis_namespace" yaml:"redis_namespace"`
	LockTTL        int    `json:"lock_ttl" yaml:"lock_ttl"` // seconds; 0 means no expiry
	LogLevel       string `json:"log_level" yaml:"log_level"`
	MetricsFile    string `json:"metrics_file" yaml:"metrics_file"`
}

// Supported lock backends.
const (
	LockBackendMemory = "memory"
	LockBackendRedis  = "redis"
)

// Supported log levels.
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// DefaultRedisNamespace is used when redis_namespace is not configured.
const DefaultRedisNamespace = "default"

// Config validation errors.
var (
	ErrLockBackendUnknown = errors.New("unknown lock backend")
	ErrRedisAddrEmpty     = errors.New("redis address must not be empty")
	ErrLogLevelUnknown    = errors.New("unknown log level")
	ErrLockTTLInvalid     = errors.New("lock ttl must not be negative")
)

var knownLockBackends = map[string]bool{
	LockBackendMemory: true,
	LockBackendRedis:  true,
}

var knownLogLevels = map[string]bool{
	LogLevelDebug: true,
	LogLevelInfo:  true,
	LogLevelWarn:  true,
	LogLevelError: true,
}

// Validate checks that the Config is well-formed. An empty lock backend or
// log level selects the default.
func (c Config) Validate() error {
	if c.LockBackend != "" && !knownLockBackends[c.LockBackend] {
		return ErrLockBackendUnknown
	}
	if c.LockBackend == LockBackendRedis && c.RedisAddr == "" {
		return ErrRedisAddrEmpty
	}
	if c.LogLevel != "" && !knownLogLevels[c.LogLevel] {
		return ErrLogLevelUnknown
	}
	if c.LockTTL < 0 {
		return ErrLockTTLInvalid
	}
	return nil
}

// GetLockBackend returns the configured lock backend or LockBackendMemory.
func (c Config) GetLockBackend() string {
	if c.LockBackend == "" {
		return LockBackendMemory
	}
	return c.LockBackend
}

// GetRedisNamespace returns the configured namespace or DefaultRedisNamespace.
func (c Config) GetRedisNamespace() string {
	if c.RedisNamespace == "" {
		return DefaultRedisNamespace
	}
	return c.RedisNamespace
}

// GetLockTTL returns the lock expiry as a duration.
func (c Config) GetLockTTL() time.Duration {
	return time.Duration(c.LockTTL) * time.Second
}

// GetLogLevel returns the configured log level or LogLevelWarn.
func (c Config) GetLogLevel() string {
	if c.LogLevel == "" {
		return LogLevelWarn
	}
	return c.LogLevel
}
