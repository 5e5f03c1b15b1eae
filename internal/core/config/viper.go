package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. OB_ENGINE_PORT.
const EnvPrefix = "OB"

// databaseURLEnv is the only accepted source for database credentials.
const databaseURLEnv = EnvPrefix + "_ENGINE_DATABASE_URL"

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string) (*EngineConfig, error) {
	return LoadConfigWith(viper.New(), configPath)
}

// LoadConfigWith loads configuration into v, which may already carry bound
// CLI flags.
func LoadConfigWith(v *viper.Viper, configPath string) (*EngineConfig, error) {
	d := DefaultEngineConfig()

	// Set defaults matching DefaultEngineConfig
	v.SetDefault("engine.host", d.Host)
	v.SetDefault("engine.port", d.Port)
	v.SetDefault("engine.max_connections", d.MaxConnections)
	v.SetDefault("engine.request_timeout", d.RequestTimeout.String())
	v.SetDefault("engine.max_batch_size", d.MaxBatchSize)
	v.SetDefault("engine.cache_size", d.CacheSize)
	v.SetDefault("engine.metrics_addr", d.MetricsAddr)
	v.SetDefault("engine.definition_set", d.DefinitionSet)
	v.SetDefault("engine.database_url", d.DatabaseURL)

	// Bind environment variables with OB_ prefix
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &EngineConfig{
		Host:           v.GetString("engine.host"),
		Port:           v.GetInt("engine.port"),
		MaxConnections: v.GetInt("engine.max_connections"),
		RequestTimeout: v.GetDuration("engine.request_timeout"),
		MaxBatchSize:   v.GetInt("engine.max_batch_size"),
		CacheSize:      v.GetInt("engine.cache_size"),
		MetricsAddr:    v.GetString("engine.metrics_addr"),
		DefinitionSet:  v.GetString("engine.definition_set"),
		DatabaseURL:    v.GetString("engine.database_url"),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig checks port range and positive limits.
func validateConfig(cfg *EngineConfig) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Port)
	}
	if cfg.MaxConnections <= 0 {
		return fmt.Errorf("max_connections must be positive, got %d", cfg.MaxConnections)
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.RequestTimeout)
	}
	if cfg.MaxBatchSize <= 0 {
		return fmt.Errorf("max_batch_size must be positive, got %d", cfg.MaxBatchSize)
	}
	if cfg.CacheSize <= 0 {
		return fmt.Errorf("cache_size must be positive, got %d", cfg.CacheSize)
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("database_url must not be empty")
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only database credentials.
func validateNoSecretsInConfig(v *viper.Viper) error {
	if os.Getenv(databaseURLEnv) != "" {
		return nil
	}
	if v.InConfig("engine.database_url") && hasPassword(v.GetString("engine.database_url")) {
		return fmt.Errorf("database credentials not allowed in config files (use %s environment variable)", databaseURLEnv)
	}
	return nil
}
