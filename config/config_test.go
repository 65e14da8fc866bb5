package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/NethermindEth/rpcpeer/config"
	"github.com/NethermindEth/rpcpeer/jsonrpc"
	"github.com/NethermindEth/rpcpeer/transport"
	"github.com/NethermindEth/rpcpeer/utils"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(flags)
	require.NoError(t, flags.Parse(args))
	return flags
}

func tempCfgFile(t *testing.T, cfg string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "rpcpeer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("", newFlags(t))
	require.NoError(t, err)

	assert.Equal(t, utils.INFO, cfg.LogLevel.Level())
	assert.True(t, cfg.Colour)
	assert.Equal(t, jsonrpc.DefaultTimeout, cfg.Timeout)
	assert.Equal(t, config.IDGeneratorSequential, cfg.IDGenerator)
	assert.Equal(t, transport.DefaultReadLimit, cfg.ReadLimit)
	assert.Equal(t, transport.DefaultConcurrency, cfg.Concurrency)
	assert.False(t, cfg.Stdio)
	assert.Empty(t, cfg.HTTPAddr)
	assert.Empty(t, cfg.WebsocketAddr)
	assert.Empty(t, cfg.IPCPath)
	assert.Empty(t, cfg.MetricsAddr)
	assert.Empty(t, cfg.CORSOrigins)
}

func TestLoadPrecedence(t *testing.T) {
	tests := map[string]struct {
		cfgFile string
		env     map[string]string
		args    []string
		check   func(t *testing.T, cfg *config.Config)
	}{
		"flags": {
			args: []string{
				"--log-level", "debug", "--timeout", "2s", "--id-generator", "uuid",
				"--http-addr", "localhost:6060", "--cors-origins", "a.com,b.com", "--stdio",
			},
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, utils.DEBUG, cfg.LogLevel.Level())
				assert.Equal(t, 2*time.Second, cfg.Timeout)
				assert.Equal(t, config.IDGeneratorUUID, cfg.IDGenerator)
				assert.Equal(t, "localhost:6060", cfg.HTTPAddr)
				assert.Equal(t, []string{"a.com", "b.com"}, cfg.CORSOrigins)
				assert.True(t, cfg.Stdio)
			},
		},
		"config file": {
			cfgFile: `log-level: warn
timeout: 1m
read-limit: 1024
ws-addr: localhost:6061
cors-origins:
  - x.com
`,
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, utils.WARN, cfg.LogLevel.Level())
				assert.Equal(t, time.Minute, cfg.Timeout)
				assert.Equal(t, 1024, cfg.ReadLimit)
				assert.Equal(t, "localhost:6061", cfg.WebsocketAddr)
				assert.Equal(t, []string{"x.com"}, cfg.CORSOrigins)
			},
		},
		"environment overrides config file": {
			cfgFile: "timeout: 1m\nipc-path: /tmp/file.ipc\n",
			env: map[string]string{
				"RPCPEER_TIMEOUT":      "3s",
				"RPCPEER_CORS_ORIGINS": "e.com,f.com",
			},
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, 3*time.Second, cfg.Timeout)
				assert.Equal(t, "/tmp/file.ipc", cfg.IPCPath)
				assert.Equal(t, []string{"e.com", "f.com"}, cfg.CORSOrigins)
			},
		},
		"non-positive timeout disables it": {
			args: []string{"--timeout=-1s"},
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, -time.Second, cfg.Timeout)
			},
		},
		"flags override environment and config file": {
			cfgFile: "timeout: 1m\nconcurrency: 4\n",
			env:     map[string]string{"RPCPEER_TIMEOUT": "3s"},
			args:    []string{"--timeout", "4s"},
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, 4*time.Second, cfg.Timeout)
				assert.Equal(t, 4, cfg.Concurrency)
			},
		},
	}

	for description, test := range tests {
		t.Run(description, func(t *testing.T) {
			for key, value := range test.env {
				t.Setenv(key, value)
			}
			var cfgFile string
			if test.cfgFile != "" {
				cfgFile = tempCfgFile(t, test.cfgFile)
			}

			cfg, err := config.Load(cfgFile, newFlags(t, test.args...))
			require.NoError(t, err)
			test.check(t, cfg)
		})
	}
}

func TestLoadErrors(t *testing.T) {
	tests := map[string]struct {
		cfgFile string
		args    []string
		err     string
	}{
		"unknown id generator": {
			args: []string{"--id-generator", "random"},
			err:  `unknown id generator "random" (known: sequential, uuid)`,
		},
		"zero read limit": {
			args: []string{"--read-limit", "0"},
			err:  "read limit must be positive",
		},
		"zero concurrency": {
			cfgFile: "concurrency: 0\n",
			err:     "concurrency must be positive",
		},
		"unknown log level": {
			cfgFile: "log-level: verbose\n",
			err:     utils.ErrUnknownLogLevel.Error(),
		},
	}

	for description, test := range tests {
		t.Run(description, func(t *testing.T) {
			var cfgFile string
			if test.cfgFile != "" {
				cfgFile = tempCfgFile(t, test.cfgFile)
			}

			_, err := config.Load(cfgFile, newFlags(t, test.args...))
			require.ErrorContains(t, err, test.err)
		})
	}

	t.Run("missing config file", func(t *testing.T) {
		_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"), newFlags(t))
		require.Error(t, err)
	})
}

func TestNewIDGenerator(t *testing.T) {
	sequential := (&config.Config{IDGenerator: config.IDGeneratorSequential}).NewIDGenerator()
	assert.Equal(t, jsonrpc.NumberID(1), sequential.NextID())
	assert.Equal(t, jsonrpc.NumberID(2), sequential.NextID())

	uuids := (&config.Config{IDGenerator: config.IDGeneratorUUID}).NewIDGenerator()
	id := uuids.NextID()
	assert.False(t, id.IsNumber())
	assert.Len(t, id.String(), 38)
}

func TestYAML(t *testing.T) {
	cfg, err := config.Load("", newFlags(t, "--log-level", "trace", "--timeout", "90s", "--http-addr", "localhost:6060"))
	require.NoError(t, err)

	data, err := cfg.YAML()
	require.NoError(t, err)
	assert.Contains(t, string(data), "log-level: trace\n")
	assert.Contains(t, string(data), "timeout: 1m30s\n")

	reloaded, err := config.Load(tempCfgFile(t, string(data)), newFlags(t))
	require.NoError(t, err)
	assert.Equal(t, utils.TRACE, reloaded.LogLevel.Level())
	assert.Equal(t, 90*time.Second, reloaded.Timeout)
	assert.Equal(t, "localhost:6060", reloaded.HTTPAddr)
}
