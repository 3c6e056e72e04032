// Package config loads transport and agent configuration from environment
// variables, with compiled-in defaults matching the reference protocol
// parameters (stop-and-wait window of one, 20ms handshake timeout, 100ms
// retransmit timeout).
package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// globalConfig stores the configuration most recently loaded by a process
// entrypoint, so library code that doesn't hold a *Config can still reach it.
var (
	globalConfig *Config
	configMutex  sync.Mutex
)

// Config holds the application configuration.
type Config struct {
	Transport TransportConfig `json:"transport"`
	Logging   LoggingConfig   `json:"logging"`
}

// LoadOptions holds command-line override options.
type LoadOptions struct {
	LogLevel         string
	SendWindowSize   int
	PeerBookCapacity int
}

// TransportConfig holds the tunables for the RUDP transport core.
type TransportConfig struct {
	SendWindowSize    int           `json:"sendWindowSize" env:"SANS_SEND_WINDOW" default:"1"`
	PeerBookCapacity  int           `json:"peerBookCapacity" env:"SANS_PEERBOOK_CAPACITY" default:"128"`
	HandshakeTimeout  time.Duration `json:"handshakeTimeout" env:"SANS_HANDSHAKE_TIMEOUT" default:"20ms"`
	RetransmitTimeout time.Duration `json:"retransmitTimeout" env:"SANS_RETRANSMIT_TIMEOUT" default:"100ms"`
	RetransmitBackoff time.Duration `json:"retransmitBackoff" env:"SANS_RETRANSMIT_BACKOFF" default:"10ms"`
	WorkerIdlePoll    time.Duration `json:"workerIdlePoll" env:"SANS_WORKER_IDLE_POLL" default:"1ms"`
	MaxDatagramSize   int           `json:"maxDatagramSize" env:"SANS_MAX_DATAGRAM" default:"1024"`
	MaxRetransmits    int           `json:"maxRetransmits" env:"SANS_MAX_RETRANSMITS" default:"0"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `json:"level" env:"SANS_LOG_LEVEL" default:"info"`
}

// Load loads configuration from environment variables with defaults.
func Load() (*Config, error) {
	return LoadWithOverrides(LoadOptions{})
}

// LoadWithOverrides loads configuration, applying any non-zero overrides.
func LoadWithOverrides(opts LoadOptions) (*Config, error) {
	cfg := &Config{}

	cfg.Transport.SendWindowSize = getIntOverrideOrEnv(opts.SendWindowSize, "SANS_SEND_WINDOW", 1)
	cfg.Transport.PeerBookCapacity = getIntOverrideOrEnv(opts.PeerBookCapacity, "SANS_PEERBOOK_CAPACITY", 128)
	cfg.Transport.HandshakeTimeout = getDurationWithDefault("SANS_HANDSHAKE_TIMEOUT", 20*time.Millisecond)
	cfg.Transport.RetransmitTimeout = getDurationWithDefault("SANS_RETRANSMIT_TIMEOUT", 100*time.Millisecond)
	cfg.Transport.RetransmitBackoff = getDurationWithDefault("SANS_RETRANSMIT_BACKOFF", 10*time.Millisecond)
	cfg.Transport.WorkerIdlePoll = getDurationWithDefault("SANS_WORKER_IDLE_POLL", time.Millisecond)
	cfg.Transport.MaxDatagramSize = getIntWithDefault("SANS_MAX_DATAGRAM", 1024)
	cfg.Transport.MaxRetransmits = getIntWithDefault("SANS_MAX_RETRANSMITS", 0)

	cfg.Logging.Level = getOverrideOrEnv(opts.LogLevel, "SANS_LOG_LEVEL", "info")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	configMutex.Lock()
	globalConfig = cfg
	configMutex.Unlock()

	return cfg, nil
}

// GetGlobalConfig returns the configuration most recently loaded by Load, or
// nil if nothing has called Load yet.
func GetGlobalConfig() *Config {
	configMutex.Lock()
	defer configMutex.Unlock()
	return globalConfig
}

// Validate checks the configuration for self-consistency.
func (c *Config) Validate() error {
	if c.Transport.SendWindowSize <= 0 {
		return fmt.Errorf("send window size must be positive")
	}
	if c.Transport.PeerBookCapacity <= 0 {
		return fmt.Errorf("peer book capacity must be positive")
	}
	if c.Transport.MaxDatagramSize <= 0 {
		return fmt.Errorf("max datagram size must be positive")
	}
	if c.Transport.MaxRetransmits < 0 {
		return fmt.Errorf("max retransmits cannot be negative")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	return nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getDurationWithDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getOverrideOrEnv(override, envKey, defaultValue string) string {
	if override != "" {
		return override
	}
	return getEnvWithDefault(envKey, defaultValue)
}

func getIntOverrideOrEnv(override int, envKey string, defaultValue int) int {
	if override != 0 {
		return override
	}
	return getIntWithDefault(envKey, defaultValue)
}
