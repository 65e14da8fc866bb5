// Package config holds the rpcpeer configuration and loads it from a yaml
// file, command line flags and RPCPEER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/NethermindEth/rpcpeer/jsonrpc"
	"github.com/NethermindEth/rpcpeer/utils"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "RPCPEER"

const (
	IDGeneratorSequential = "sequential"
	IDGeneratorUUID       = "uuid"
)

// Config is the top-level rpcpeer configuration. An empty address disables the
// matching transport.
type Config struct {
	LogLevel    utils.LogLevel `mapstructure:"log-level" yaml:"log-level"`
	Colour      bool           `mapstructure:"colour" yaml:"colour"`
	Timeout     time.Duration  `mapstructure:"timeout" yaml:"timeout"`
	IDGenerator string         `mapstructure:"id-generator" yaml:"id-generator"`
	ReadLimit   int            `mapstructure:"read-limit" yaml:"read-limit"`
	Concurrency int            `mapstructure:"concurrency" yaml:"concurrency"`

	Stdio         bool     `mapstructure:"stdio" yaml:"stdio"`
	HTTPAddr      string   `mapstructure:"http-addr" yaml:"http-addr"`
	WebsocketAddr string   `mapstructure:"ws-addr" yaml:"ws-addr"`
	IPCPath       string   `mapstructure:"ipc-path" yaml:"ipc-path"`
	MetricsAddr   string   `mapstructure:"metrics-addr" yaml:"metrics-addr"`
	CORSOrigins   []string `mapstructure:"cors-origins" yaml:"cors-origins"`
}

// Load merges the yaml file at cfgFile, the environment and flags into a
// Config. Flags set on the command line win over the environment, which wins
// over the file, which wins over flag defaults.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigType("yaml")
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(flags); err != nil {
		return nil, err
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.IDGenerator {
	case IDGeneratorSequential, IDGeneratorUUID:
	default:
		return fmt.Errorf("unknown id generator %q (known: %s, %s)", c.IDGenerator, IDGeneratorSequential, IDGeneratorUUID)
	}
	if c.ReadLimit <= 0 {
		return errors.New("read limit must be positive")
	}
	if c.Concurrency <= 0 {
		return errors.New("concurrency must be positive")
	}
	return nil
}

// NewIDGenerator returns a fresh generator of the configured kind.
func (c *Config) NewIDGenerator() jsonrpc.IDGenerator {
	if c.IDGenerator == IDGeneratorUUID {
		return jsonrpc.UUIDs{}
	}
	return jsonrpc.NewSequentialIDs()
}

// YAML renders the configuration in the format Load reads.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
