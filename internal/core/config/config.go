// Package config provides configuration management for opbuilder services.
package config

import (
	"fmt"
	"net/url"
	"time"
)

// EngineConfig holds configuration for the evaluation service.
type EngineConfig struct {
	Host           string
	Port           int
	MaxConnections int
	RequestTimeout time.Duration
	MaxBatchSize   int
	CacheSize      int
	MetricsAddr    string
	DefinitionSet  string
	DatabaseURL    string
}

// DefaultEngineConfig returns configuration with default values.
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		Host:           "0.0.0.0",
		Port:           50061,
		MaxConnections: 1000,
		RequestTimeout: 30 * time.Second,
		MaxBatchSize:   1000,
		CacheSize:      4096,
		MetricsAddr:    ":9090",
		DefinitionSet:  "",
		DatabaseURL:    "sqlite://./data/opbuilder.db",
	}
}

// Addr returns the gRPC listen address.
func (c *EngineConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// hasPassword reports whether a database URL embeds a password.
func hasPassword(dbURL string) bool {
	u, err := url.Parse(dbURL)
	if err != nil || u.User == nil {
		return false
	}
	_, ok := u.User.Password()
	return ok
}
