package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		want    *Config
		wantErr bool
	}{
		{
			name:    "default configuration",
			envVars: map[string]string{},
			want: &Config{
				Transport: TransportConfig{
					SendWindowSize:    1,
					PeerBookCapacity:  128,
					HandshakeTimeout:  20 * time.Millisecond,
					RetransmitTimeout: 100 * time.Millisecond,
					RetransmitBackoff: 10 * time.Millisecond,
					WorkerIdlePoll:    time.Millisecond,
					MaxDatagramSize:   1024,
					MaxRetransmits:    0,
				},
				Logging: LoggingConfig{Level: "info"},
			},
			wantErr: false,
		},
		{
			name: "custom environment variables",
			envVars: map[string]string{
				"SANS_SEND_WINDOW":        "4",
				"SANS_PEERBOOK_CAPACITY":  "16",
				"SANS_LOG_LEVEL":          "debug",
				"SANS_MAX_DATAGRAM":       "2048",
				"SANS_RETRANSMIT_TIMEOUT": "250ms",
			},
			want: &Config{
				Transport: TransportConfig{
					SendWindowSize:    4,
					PeerBookCapacity:  16,
					HandshakeTimeout:  20 * time.Millisecond,
					RetransmitTimeout: 250 * time.Millisecond,
					RetransmitBackoff: 10 * time.Millisecond,
					WorkerIdlePoll:    time.Millisecond,
					MaxDatagramSize:   2048,
					MaxRetransmits:    0,
				},
				Logging: LoggingConfig{Level: "debug"},
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k := range tt.envVars {
				os.Unsetenv(k)
			}
			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}

			cfg, err := Load()

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want.Transport, cfg.Transport)
			assert.Equal(t, tt.want.Logging.Level, cfg.Logging.Level)

			for k := range tt.envVars {
				os.Unsetenv(k)
			}
		})
	}
}

func TestLoadWithOverrides(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		opts    LoadOptions
		want    *Config
	}{
		{
			name:    "command-line overrides",
			envVars: map[string]string{},
			opts: LoadOptions{
				LogLevel:         "warn",
				SendWindowSize:   8,
				PeerBookCapacity: 256,
			},
			want: &Config{
				Transport: TransportConfig{
					SendWindowSize:   8,
					PeerBookCapacity: 256,
				},
				Logging: LoggingConfig{Level: "warn"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k := range tt.envVars {
				os.Unsetenv(k)
			}

			cfg, err := LoadWithOverrides(tt.opts)

			require.NoError(t, err)
			assert.Equal(t, tt.want.Transport.SendWindowSize, cfg.Transport.SendWindowSize)
			assert.Equal(t, tt.want.Transport.PeerBookCapacity, cfg.Transport.PeerBookCapacity)
			assert.Equal(t, tt.want.Logging.Level, cfg.Logging.Level)

			for k := range tt.envVars {
				os.Unsetenv(k)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	validTransport := TransportConfig{
		SendWindowSize:   1,
		PeerBookCapacity: 128,
		MaxDatagramSize:  1024,
		MaxRetransmits:   0,
	}

	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid configuration",
			cfg: &Config{
				Transport: validTransport,
				Logging:   LoggingConfig{Level: "info"},
			},
			wantErr: false,
		},
		{
			name: "zero send window",
			cfg: &Config{
				Transport: TransportConfig{SendWindowSize: 0, PeerBookCapacity: 128, MaxDatagramSize: 1024},
				Logging:   LoggingConfig{Level: "info"},
			},
			wantErr: true,
			errMsg:  "send window size must be positive",
		},
		{
			name: "zero peer book capacity",
			cfg: &Config{
				Transport: TransportConfig{SendWindowSize: 1, PeerBookCapacity: 0, MaxDatagramSize: 1024},
				Logging:   LoggingConfig{Level: "info"},
			},
			wantErr: true,
			errMsg:  "peer book capacity must be positive",
		},
		{
			name: "zero max datagram size",
			cfg: &Config{
				Transport: TransportConfig{SendWindowSize: 1, PeerBookCapacity: 128, MaxDatagramSize: 0},
				Logging:   LoggingConfig{Level: "info"},
			},
			wantErr: true,
			errMsg:  "max datagram size must be positive",
		},
		{
			name: "negative max retransmits",
			cfg: &Config{
				Transport: TransportConfig{SendWindowSize: 1, PeerBookCapacity: 128, MaxDatagramSize: 1024, MaxRetransmits: -1},
				Logging:   LoggingConfig{Level: "info"},
			},
			wantErr: true,
			errMsg:  "max retransmits cannot be negative",
		},
		{
			name: "invalid log level",
			cfg: &Config{
				Transport: validTransport,
				Logging:   LoggingConfig{Level: "invalid"},
			},
			wantErr: true,
			errMsg:  "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()

			if tt.wantErr {
				assert.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
				return
			}

			assert.NoError(t, err)
		})
	}
}

func TestGetEnvWithDefault(t *testing.T) {
	key := "TEST_CONFIG_VAR"
	defaultValue := "default"
	testValue := "test_value"

	os.Unsetenv(key)
	result := getEnvWithDefault(key, defaultValue)
	assert.Equal(t, defaultValue, result)

	os.Setenv(key, testValue)
	result = getEnvWithDefault(key, defaultValue)
	assert.Equal(t, testValue, result)

	os.Unsetenv(key)
}

func TestGetIntWithDefault(t *testing.T) {
	key := "TEST_INT_VAR"
	defaultValue := 42
	testValue := "100"

	os.Unsetenv(key)
	result := getIntWithDefault(key, defaultValue)
	assert.Equal(t, defaultValue, result)

	os.Setenv(key, testValue)
	result = getIntWithDefault(key, defaultValue)
	assert.Equal(t, 100, result)

	os.Setenv(key, "invalid")
	result = getIntWithDefault(key, defaultValue)
	assert.Equal(t, defaultValue, result)

	os.Unsetenv(key)
}

func TestGetDurationWithDefault(t *testing.T) {
	key := "TEST_DURATION_VAR"
	defaultValue := 30 * time.Second
	testValue := "60s"

	os.Unsetenv(key)
	result := getDurationWithDefault(key, defaultValue)
	assert.Equal(t, defaultValue, result)

	os.Setenv(key, testValue)
	result = getDurationWithDefault(key, defaultValue)
	assert.Equal(t, 60*time.Second, result)

	os.Setenv(key, "invalid")
	result = getDurationWithDefault(key, defaultValue)
	assert.Equal(t, defaultValue, result)

	os.Unsetenv(key)
}

func TestGetOverrideOrEnv(t *testing.T) {
	key := "TEST_OVERRIDE_VAR"
	override := "override_value"
	envValue := "env_value"
	defaultValue := "default_value"

	os.Setenv(key, envValue)
	result := getOverrideOrEnv(override, key, defaultValue)
	assert.Equal(t, override, result)

	result = getOverrideOrEnv("", key, defaultValue)
	assert.Equal(t, envValue, result)

	os.Unsetenv(key)
	result = getOverrideOrEnv("", key, defaultValue)
	assert.Equal(t, defaultValue, result)

	os.Unsetenv(key)
}

func TestGetIntOverrideOrEnv(t *testing.T) {
	key := "TEST_INT_OVERRIDE_VAR"
	defaultValue := 7

	os.Unsetenv(key)
	result := getIntOverrideOrEnv(3, key, defaultValue)
	assert.Equal(t, 3, result)

	os.Setenv(key, "9")
	result = getIntOverrideOrEnv(0, key, defaultValue)
	assert.Equal(t, 9, result)

	os.Unsetenv(key)
	result = getIntOverrideOrEnv(0, key, defaultValue)
	assert.Equal(t, defaultValue, result)
}

func TestGetGlobalConfig(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	got := GetGlobalConfig()
	require.NotNil(t, got)
	assert.Equal(t, cfg.Transport, got.Transport)
}
