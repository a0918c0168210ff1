package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/mantidproject/mantid-sub073/internal/paths"
	"github.com/mantidproject/mantid-sub073/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	envPrefix      = "MEMENTO"

	cfgKeyDataDir        = "data_dir"
	cfgKeyLockBackend    = "lock_backend"
	cfgKeyRedisAddr      = "redis_addr"
	cfgKeyRedisNamespace = "redis_namespace"
	cfgKeyLockTTL        = "lock_ttl"
	cfgKeyLogLevel       = "log_level"
	cfgKeyMetricsFile    = "metrics_file"
)

// envKeys may be overridden by MEMENTO_<KEY> variables. data_dir is not
// among them; paths.ResolveDataDir applies its own precedence.
var envKeys = []string{
	cfgKeyLockBackend,
	cfgKeyRedisAddr,
	cfgKeyRedisNamespace,
	cfgKeyLockTTL,
	cfgKeyLogLevel,
	cfgKeyMetricsFile,
}

// defaultConfigYAML is written to config.yaml on first run.
const defaultConfigYAML = `# memento configuration

# Lock registry: memory (one process) or redis (shared between processes)
lock_backend: memory
# redis_addr: localhost:6379
# redis_namespace: default
# lock_ttl: 0

log_level: warn

# Data directory (optional; overridable by --data-dir flag)
# data_dir:

# Counters are written here in Prometheus text format after each command
# metrics_file:
`

// loadConfig reads config.yaml from configDir using Viper, creating the
// directory and a default file on first run.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyLockBackend, types.LockBackendMemory)
	v.SetDefault(cfgKeyLogLevel, types.LogLevelWarn)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(envPrefix)
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

func ensureDefaultConfigFile(configDir string) error {
	path := paths.ConfigFile(configDir)
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}

// resolveConfig builds the validated runtime config from flags, config.yaml
// and the environment.
func resolveConfig(f *rootFlags) (types.Config, error) {
	configDir, err := paths.ResolveConfigDir(f.configDir)
	if err != nil {
		return types.Config{}, sysError(fmt.Errorf("resolve config dir: %w", err))
	}
	v, err := loadConfig(configDir)
	if err != nil {
		return types.Config{}, sysError(err)
	}
	dataDir, err := paths.ResolveDataDir(f.dataDir, v.GetString(cfgKeyDataDir))
	if err != nil {
		return types.Config{}, sysError(fmt.Errorf("resolve data dir: %w", err))
	}
	cfg := types.Config{
		DataDir:        dataDir,
		LockBackend:    v.GetString(cfgKeyLockBackend),
		RedisAddr:      v.GetString(cfgKeyRedisAddr),
		RedisNamespace: v.GetString(cfgKeyRedisNamespace),
		LockTTL:        v.GetInt(cfgKeyLockTTL),
		LogLevel:       v.GetString(cfgKeyLogLevel),
		MetricsFile:    v.GetString(cfgKeyMetricsFile),
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", paths.ConfigFile(configDir), err)
	}
	return cfg, nil
}
