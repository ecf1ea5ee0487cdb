// Package config loads the balancer's tunables from environment
// variables, falling back to sensible defaults for local development.
package config

import (
	"os"
	"strconv"
)

// Config holds the balancer's startup configuration.
type Config struct {
	ClientAddr       string
	BackendAddr      string
	AdminMetricsAddr string // empty disables the /metrics and /healthz HTTP server
	PingIntervalMs   int
	DefaultMode      string
	LogFile          string
	LogLevel         string
}

// NewFromEnv builds a Config from the process environment, applying
// defaults for every unset variable.
func NewFromEnv() *Config {
	metricsAddr, ok := os.LookupEnv("ADMIN_METRICS_ADDR")
	if !ok {
		metricsAddr = ":9090"
	}
	return &Config{
		ClientAddr:       getenv("CLIENT_ADDR", ":11114"),
		BackendAddr:      getenv("BACKEND_ADDR", ":11115"),
		AdminMetricsAddr: metricsAddr,
		PingIntervalMs:   getenvInt("PING_INTERVAL_MS", 1000),
		DefaultMode:      getenv("DEFAULT_MODE", "static"),
		LogFile:          getenv("LOG_FILE", "logs/balancer.log"),
		LogLevel:         getenv("LOG_LEVEL", "INFO"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
